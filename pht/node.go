package pht

import (
	"sync/atomic"
	"unsafe"

	"github.com/coredb/nvmds/pht/pmem"
)

// markBit is the low bit stolen from a node's arena offset to mark it as
// logically deleted. It is always free to steal because pmem.Arena hands
// out offsets aligned to pmem.DefaultAlignment (>= 2), so a real node
// offset's low bit is always zero.
const markBit uint64 = 1

func withMark(off uint64) uint64    { return off | markBit }
func withoutMark(off uint64) uint64 { return off &^ markBit }
func isMarked(off uint64) bool      { return off&markBit != 0 }

// nodeHeader is the fixed-size, persistent record for one bucket-chain
// entry. It is addressed by arena offset, never by a Go pointer that could
// move — the struct is laid out directly over arena bytes via unsafe, so
// it must contain no Go pointers, interfaces, or slices, only fixed-width
// integers.
type nodeHeader struct {
	keyOff uint64
	keyLen uint64
	valOff uint64
	valLen uint64
	next   atomic.Uint64 // tagged offset of the next node in the chain
}

const nodeHeaderSize = 40 // 4 * 8 + sizeof(atomic.Uint64)

// nodeAt reinterprets the arena bytes at offset as a *nodeHeader. offset
// must have been returned by allocNode.
func nodeAt(arena *pmem.Arena, offset uint64) *nodeHeader {
	return (*nodeHeader)(arena.Get(offset)) //nolint:gosec // arena-relative addressing, no embedded pointers
}

// allocNode carves out a header plus copies of key and val from the arena,
// writes all three back to durable storage, and returns the header's
// offset. The node is not yet linked into any bucket chain — the caller
// still owns fencing and publishing it via a head/next CAS.
func allocNode(region *pmem.Region, arena *pmem.Arena, key, val []byte) (uint64, *nodeHeader, error) {
	hdrOff, hdrBuf, err := arena.Alloc(nodeHeaderSize)
	if err != nil {
		return 0, nil, err
	}

	var keyOff, valOff uint64
	if len(key) > 0 {
		var kb []byte
		keyOff, kb, err = arena.Alloc(len(key))
		if err != nil {
			return 0, nil, err
		}
		copy(kb, key)
		if err := region.CachelineWriteback(arena.Get(keyOff), len(key)); err != nil {
			return 0, nil, err
		}
	}
	if len(val) > 0 {
		var vb []byte
		valOff, vb, err = arena.Alloc(len(val))
		if err != nil {
			return 0, nil, err
		}
		copy(vb, val)
		if err := region.CachelineWriteback(arena.Get(valOff), len(val)); err != nil {
			return 0, nil, err
		}
	}

	hdr := (*nodeHeader)(unsafe.Pointer(&hdrBuf[0])) //nolint:gosec // hdrBuf is exactly nodeHeaderSize bytes from the arena
	hdr.keyOff = keyOff
	hdr.keyLen = uint64(len(key))
	hdr.valOff = valOff
	hdr.valLen = uint64(len(val))
	hdr.next.Store(0)

	if err := region.CachelineWriteback(unsafe.Pointer(hdr), nodeHeaderSize); err != nil {
		return 0, nil, err
	}

	return hdrOff, hdr, nil
}

// nextSlot returns this node's next field as a CAS-able slot, so findNode
// can treat "bucket head" and "mid-chain predecessor" identically.
func (h *nodeHeader) nextSlot() *atomic.Uint64 {
	return &h.next
}

// nextFieldAddr returns the address of the next field for writeback
// purposes after a mark CAS.
func (h *nodeHeader) nextFieldAddr() unsafe.Pointer {
	return unsafe.Pointer(&h.next)
}

func (h *nodeHeader) keyBytes(arena *pmem.Arena) []byte {
	if h.keyLen == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(arena.Get(h.keyOff)), int(h.keyLen)) //nolint:gosec // bounded by keyLen recorded at allocation
}

func (h *nodeHeader) valBytes(arena *pmem.Arena) []byte {
	if h.valLen == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(arena.Get(h.valOff)), int(h.valLen)) //nolint:gosec // bounded by valLen recorded at allocation
}

// bucketSlot returns the atomic tagged-offset slot for bucket index i.
// Bucket heads and node.next fields share the same representation
// (*atomic.Uint64 over an 8-byte-aligned arena-relative slot), so findNode
// never needs to distinguish "head of chain" from "mid-chain" CAS targets.
func bucketSlot(buckets []byte, i uint64) *atomic.Uint64 {
	return (*atomic.Uint64)(unsafe.Pointer(&buckets[i*8])) //nolint:gosec // buckets is 8-byte-stride, 8-byte-aligned storage
}
