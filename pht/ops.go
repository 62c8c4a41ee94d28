package pht

import (
	"context"
	"sync/atomic"
	"unsafe"

	"github.com/coredb/nvmds/pht/pmem"
)

// Get returns the value stored for key, if present. It never blocks and
// never allocates in the arena.
func (t *PHT) Get(tid int, key []byte) ([]byte, bool) {
	t.dom.StartOp(tid)
	defer t.dom.EndOp(tid)

	head := bucketSlot(t.buckets, t.bucketIndex(key))
	_, _, curr, _, found := t.findNode(head, key)
	if !found {
		return nil, false
	}
	return cloneBytes(curr.valBytes(t.arena)), true
}

// Insert installs key/val only if key is absent. It returns false without
// modifying the table if key is already present.
func (t *PHT) Insert(tid int, key, val []byte) (bool, error) {
	t.dom.StartOp(tid)
	defer t.dom.EndOp(tid)

	idx := t.bucketIndex(key)
	head := bucketSlot(t.buckets, idx)
	for {
		prev, currOff, _, _, found := t.findNode(head, key)
		if found {
			return false, nil
		}

		newOff, newHdr, err := allocNode(t.region, t.arena, key, val)
		if err != nil {
			return false, err
		}
		newHdr.next.Store(currOff)
		if err := t.region.CachelineWriteback(newHdr.nextFieldAddr(), 8); err != nil {
			return false, err
		}
		pmem.StoreFence()

		if prev.CompareAndSwap(currOff, newOff) {
			if err := t.region.CachelineWriteback(unsafe.Pointer(prev), 8); err != nil {
				return true, err
			}
			pmem.StoreFence()
			return true, nil
		}
		// Lost the race; the node we just allocated is abandoned in the
		// arena (never freed, matching the no-resize/no-compaction
		// contract) and we retry the whole find+insert.
		t.logger.LogCASRetry(context.Background(), "insert", idx)
	}
}

// Put installs key/val unconditionally, returning the previous value (if
// any). If key is already present, Put splices a freshly allocated node in
// ahead of the old one and retires the old one — the same
// allocate-new-node/CAS-prev/mark-old/retire skeleton Insert uses for an
// absent key, never a plain mutation of the existing node's fields. The
// previous value is captured before the installing CAS so a concurrent
// unlink of the same node can never be observed as this call's result.
func (t *PHT) Put(tid int, key, val []byte) ([]byte, error) {
	t.dom.StartOp(tid)
	defer t.dom.EndOp(tid)

	idx := t.bucketIndex(key)
	head := bucketSlot(t.buckets, idx)
	for {
		prev, currOff, curr, nextTagged, found := t.findNode(head, key)
		if !found {
			newOff, newHdr, err := allocNode(t.region, t.arena, key, val)
			if err != nil {
				return nil, err
			}
			newHdr.next.Store(currOff)
			if err := t.region.CachelineWriteback(newHdr.nextFieldAddr(), 8); err != nil {
				return nil, err
			}
			pmem.StoreFence()

			if prev.CompareAndSwap(currOff, newOff) {
				if err := t.region.CachelineWriteback(unsafe.Pointer(prev), 8); err != nil {
					return nil, err
				}
				pmem.StoreFence()
				return nil, nil
			}
			t.logger.LogCASRetry(context.Background(), "put", idx)
			continue
		}

		prevVal := cloneBytes(curr.valBytes(t.arena))
		ok, err := t.spliceReplace(head, tid, prev, currOff, curr, nextTagged, key, val)
		if err != nil {
			return nil, err
		}
		if !ok {
			t.logger.LogCASRetry(context.Background(), "put", idx)
			continue
		}
		return prevVal, nil
	}
}

// Replace installs val only if key is already present, returning the
// previous value. It is a no-op (ok=false) if key is absent. Like Put, it
// splices a fresh node in ahead of the old one rather than mutating the
// old node's fields.
func (t *PHT) Replace(tid int, key, val []byte) ([]byte, bool, error) {
	t.dom.StartOp(tid)
	defer t.dom.EndOp(tid)

	idx := t.bucketIndex(key)
	head := bucketSlot(t.buckets, idx)
	for {
		prev, currOff, curr, nextTagged, found := t.findNode(head, key)
		if !found {
			return nil, false, nil
		}

		prevVal := cloneBytes(curr.valBytes(t.arena))
		ok, err := t.spliceReplace(head, tid, prev, currOff, curr, nextTagged, key, val)
		if err != nil {
			return nil, false, err
		}
		if !ok {
			t.logger.LogCASRetry(context.Background(), "replace", idx)
			continue
		}
		return prevVal, true, nil
	}
}

// spliceReplace installs a freshly allocated key/val node immediately ahead
// of an already-found curr (temporarily duplicating key in the chain, which
// is safe because findNode always stops at the first match), publishes it
// via a CAS on prev — the replace linearization point — then marks curr's
// own next field and tries to splice curr out of the new node's next field,
// retiring curr on success. It returns ok=false if the publishing CAS on
// prev lost a race; the caller retries the whole find from scratch, leaving
// the allocated-but-unpublished node abandoned in the arena, matching
// Insert's no-free-on-lost-race discipline.
func (t *PHT) spliceReplace(head *atomic.Uint64, tid int, prev *atomic.Uint64, currOff uint64, curr *nodeHeader, nextTagged uint64, key, val []byte) (bool, error) {
	newOff, newHdr, err := allocNode(t.region, t.arena, key, val)
	if err != nil {
		return false, err
	}
	newHdr.next.Store(currOff)
	if err := t.region.CachelineWriteback(newHdr.nextFieldAddr(), 8); err != nil {
		return false, err
	}
	pmem.StoreFence()

	if !prev.CompareAndSwap(currOff, newOff) {
		return false, nil
	}
	if err := t.region.CachelineWriteback(unsafe.Pointer(prev), 8); err != nil {
		return true, err
	}
	pmem.StoreFence()

	// curr is no longer reachable from head (newOff duplicates its key
	// ahead of it and findNode stops at the first match), but it is still
	// chained behind newOff. Mark it logically deleted, then try to splice
	// it out of newOff's own next field and retire it.
	for !curr.next.CompareAndSwap(nextTagged, withMark(nextTagged)) {
		nextTagged = curr.next.Load()
	}
	if err := t.region.CachelineWriteback(curr.nextFieldAddr(), 8); err != nil {
		return true, err
	}
	pmem.StoreFence()

	if newHdr.next.CompareAndSwap(currOff, withoutMark(nextTagged)) {
		if err := t.region.CachelineWriteback(newHdr.nextFieldAddr(), 8); err != nil {
			return true, err
		}
		pmem.StoreFence()
		t.dom.Retire(curr, tid)
	} else {
		// Someone else (e.g. a concurrent Remove targeting the same key,
		// now routed to newOff) changed newOff's next field first.
		// findNode's opportunistic unlink will reconcile the chain on the
		// next traversal; there is nothing more to do here.
		t.findNode(head, key)
	}
	return true, nil
}

// Remove marks and then physically unlinks key's node, returning the value
// it held. It is a no-op (ok=false) if key is absent.
//
// The five-step protocol: (1) find key's node and its successor link, (2)
// mark the node's own next field so concurrent readers see it as deleted,
// retrying the mark CAS if the successor changed underneath, (3) persist
// and fence the mark, (4) attempt to physically unlink it from prev — a
// failed unlink is not an error, the next thread to traverse the chain
// will finish the job, (5) retire the node so reclamation can eventually
// drop Go's last reference to it.
func (t *PHT) Remove(tid int, key []byte) ([]byte, bool, error) {
	t.dom.StartOp(tid)
	defer t.dom.EndOp(tid)

	idx := t.bucketIndex(key)
	head := bucketSlot(t.buckets, idx)
	for {
		prev, currOff, curr, nextTagged, found := t.findNode(head, key)
		if !found {
			return nil, false, nil
		}

		if isMarked(nextTagged) {
			t.logger.LogCASRetry(context.Background(), "remove", idx)
			continue // raced with another remover; retry the find
		}

		if !curr.next.CompareAndSwap(nextTagged, withMark(nextTagged)) {
			t.logger.LogCASRetry(context.Background(), "remove", idx)
			continue // successor changed, restart from a fresh find
		}
		_ = t.region.CachelineWriteback(curr.nextFieldAddr(), 8)
		pmem.StoreFence()

		val := cloneBytes(curr.valBytes(t.arena))

		// Best-effort physical unlink; the mark alone already makes the
		// removal linearized and durable once fenced. A failed CAS here
		// just means another thread beat us to it or relinked past curr
		// already; findNode will unlink curr on the next traversal.
		prev.CompareAndSwap(currOff, withoutMark(nextTagged))

		t.dom.Retire(curr, tid)
		return val, true, nil
	}
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
