package pmem

import (
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

// pageSize is used only to round writeback ranges out to page boundaries,
// since msync operates on whole pages.
var pageSize = unix.Getpagesize()

// CachelineWriteback flushes the bytes backing addr[:n] out of any volatile
// cache and onto the region's durable storage. For an anonymous region this
// is a harmless no-op (msync on a MAP_ANON|MAP_PRIVATE mapping simply has
// nothing to synchronize to a file).
//
// Callers must invoke this on every byte range a mutation publishes before
// the pointer to that range becomes visible to another thread via a CAS —
// see pht's node and bucket-head publish sequence.
func (r *Region) CachelineWriteback(addr unsafe.Pointer, n int) error {
	if r.anon || n <= 0 {
		return nil
	}

	base := uintptr(unsafe.Pointer(&r.data[0]))
	off := uintptr(addr) - base
	if int(off) >= len(r.data) {
		return nil
	}

	start := int(off) &^ (pageSize - 1)
	end := int(off) + n
	if end > len(r.data) {
		end = len(r.data)
	}
	end = (end + pageSize - 1) &^ (pageSize - 1)
	if end > len(r.data) {
		end = len(r.data)
	}

	return unix.Msync(r.data[start:end], unix.MS_SYNC)
}

// StoreFence issues a full memory barrier.
//
// Every golang.org/x/sys/unix syscall and every sync/atomic operation in
// this module already has full-barrier semantics under the Go memory
// model, so this is a documented no-op rather than an assembly SFENCE —
// it exists so call sites that publish a pointer can name the fence
// explicitly, matching the persist-fence-then-publish ordering rule the
// hash table depends on.
func StoreFence() {
	var b atomic.Int32
	b.Add(1)
}
