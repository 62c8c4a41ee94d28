package pmem

import (
	"errors"
	"sync/atomic"
	"unsafe"
)

// DefaultAlignment is the default allocation alignment. It must be at
// least 2 so pht's tagged pointers have a spare low bit for the mark.
const DefaultAlignment = 8

// ErrExhausted is returned by Alloc once the arena's backing region has no
// room left for the requested allocation. Unlike the teacher repo this
// arena never grows past its region: a pmem region is a fixed-size file,
// and growing it at runtime would move previously-handed-out addresses.
var ErrExhausted = errors.New("pmem: arena exhausted")

// Arena is a lock-free bump allocator over a Region's arena bytes.
// Concurrent Alloc calls are safe; there is no Free or Reset — allocations
// live for the lifetime of the region, matching a persistent table that
// never resizes or compacts.
type Arena struct {
	data      []byte
	offset    atomic.Uint64
	alignment int
}

// NewArena wraps data (typically Region.ArenaBytes()) in a bump allocator.
// Offset 0 is reserved as a null sentinel, so the first real allocation
// begins at the alignment boundary.
func NewArena(data []byte) *Arena {
	a := &Arena{data: data, alignment: DefaultAlignment}
	a.offset.Store(uint64(a.alignment))
	return a
}

// Alloc reserves size bytes, aligned to the arena's alignment, and returns
// both the region-relative offset (stable across a reopen) and the backing
// slice to write into.
func (a *Arena) Alloc(size int) (uint64, []byte, error) {
	if size <= 0 {
		return 0, nil, nil
	}

	mask := uint64(a.alignment - 1)
	alignedSize := (uint64(size) + mask) &^ mask

	for {
		old := a.offset.Load()
		newOff := old + alignedSize
		if newOff > uint64(len(a.data)) {
			return 0, nil, ErrExhausted
		}
		if a.offset.CompareAndSwap(old, newOff) {
			return old, a.data[old:newOff:newOff], nil
		}
	}
}

// Get returns an unsafe.Pointer to the byte at the given offset. It
// performs no bounds checking beyond what is implied by a valid offset
// previously returned by Alloc.
func (a *Arena) Get(offset uint64) unsafe.Pointer {
	return unsafe.Add(unsafe.Pointer(&a.data[0]), offset) //nolint:gosec // required for the region-relative addressing scheme
}

// Used returns the number of bytes handed out so far, including the
// reserved null offset.
func (a *Arena) Used() uint64 {
	return a.offset.Load()
}

// Cap returns the arena's total capacity in bytes.
func (a *Arena) Cap() int {
	return len(a.data)
}
