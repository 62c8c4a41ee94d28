// Package pht implements a persistent, lock-free, chained hash table.
//
// Buckets are Harris-style singly-linked chains of nodes. A node is marked
// for logical deletion by stealing the low bit of the arena offset stored
// in its own next field; a marked node is then physically unlinked,
// opportunistically, by whichever thread next traverses past it. Every mutation that publishes a
// pointer into the table first writes the node's bytes back to durable
// storage and issues a store fence, so a chain a reader observes is always
// one a crash could have left behind — durable linearizability without a
// separate write-ahead log.
package pht

import (
	"bytes"
	"context"
	"errors"
	"sync/atomic"
	"unsafe"

	"github.com/coredb/nvmds"
	"github.com/coredb/nvmds/internal/hash"
	"github.com/coredb/nvmds/pht/pmem"
	"github.com/coredb/nvmds/reclaim"
	"github.com/coredb/nvmds/resource"
)

// ErrClosed is returned by any operation on a table whose region has been
// closed.
var ErrClosed = errors.New("pht: table is closed")

// DefaultBucketCount matches the spec's IDX_SIZE floor for a table that
// expects to hold on the order of a million live keys without excessive
// chain length.
const DefaultBucketCount = 1 << 20

// Option configures a PHT at construction.
type Option func(*options)

type options struct {
	bucketCount uint64
	threadCount int
	controller  *resource.Controller
	logger      *nvmds.Logger
}

// WithBucketCount sets the fixed number of buckets. It can only be set
// when formatting a new region (New); a recovered region keeps the bucket
// count recorded in its root header.
func WithBucketCount(n uint64) Option {
	return func(o *options) { o.bucketCount = n }
}

// WithThreadCount sizes the underlying reclamation domain's per-thread
// reservation and retire-list slots.
func WithThreadCount(n int) Option {
	return func(o *options) { o.threadCount = n }
}

// WithResourceController gates the arena's total capacity against c's
// memory admission control: New/Recover fail if the region's arena bytes
// would exceed c's configured MemoryLimitBytes. A nil controller (the
// default) imposes no limit.
func WithResourceController(c *resource.Controller) Option {
	return func(o *options) { o.controller = c }
}

// WithLogger attaches a structured logger for recovery, snapshot-export,
// CAS-retry and retire/reclaim events. A nil logger is ignored; without
// this option the events are discarded.
func WithLogger(l *nvmds.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// PHT is a persistent lock-free hash table over a pmem.Region.
type PHT struct {
	region      *pmem.Region
	arena       *pmem.Arena
	buckets     []byte
	bucketCount uint64
	dom         *reclaim.Domain[nodeHeader]
	closed      atomic.Bool
	controller  *resource.Controller
	arenaBytes  int64
	logger      *nvmds.Logger
}

// New formats region with a fresh, empty table of bucketCount buckets
// (DefaultBucketCount unless overridden) and returns a PHT ready for use.
// Call New exactly once per region's lifetime; reopening an existing,
// already-formatted region is Recover, not New.
func New(region *pmem.Region, opts ...Option) (*PHT, error) {
	o := options{bucketCount: DefaultBucketCount, threadCount: 1, logger: nvmds.NoopLogger()}
	for _, fn := range opts {
		fn(&o)
	}

	bucketTableSize := o.bucketCount * 8
	if uint64(len(region.ArenaBytes())) < bucketTableSize {
		return nil, errors.New("pht: region too small for bucket count")
	}

	if err := region.WriteRoot(o.bucketCount); err != nil {
		return nil, err
	}

	buckets := region.ArenaBytes()[:bucketTableSize]
	for i := range buckets {
		buckets[i] = 0
	}
	if err := region.CachelineWriteback(unsafe.Pointer(&buckets[0]), len(buckets)); err != nil {
		return nil, err
	}
	pmem.StoreFence()

	arenaBytes := region.ArenaBytes()[bucketTableSize:]
	if !o.controller.TryAcquireMemory(int64(len(arenaBytes))) {
		return nil, errors.New("pht: arena capacity denied by resource controller")
	}
	arena := pmem.NewArena(arenaBytes)

	return &PHT{
		region:      region,
		arena:       arena,
		buckets:     buckets,
		bucketCount: o.bucketCount,
		dom:         reclaim.NewDomain[nodeHeader](o.threadCount, reclaim.WithLogger[nodeHeader](o.logger)),
		controller:  o.controller,
		arenaBytes:  int64(len(arenaBytes)),
		logger:      o.logger,
	}, nil
}

// Recover re-attaches to a region a previous process formatted with New.
// It trusts the region's root header checksum rather than rescanning the
// bucket table: the table's chains are exactly as durable as the last
// completed mutation's persist-fence left them.
func Recover(region *pmem.Region, opts ...Option) (*PHT, error) {
	o := options{threadCount: 1, logger: nvmds.NoopLogger()}
	for _, fn := range opts {
		fn(&o)
	}

	root, err := region.Root()
	if err != nil {
		o.logger.LogRecover(context.Background(), region.Path(), 0, err)
		return nil, err
	}

	bucketTableSize := root.BucketCount * 8
	buckets := region.ArenaBytes()[:bucketTableSize]
	arenaBytes := region.ArenaBytes()[bucketTableSize:]
	if !o.controller.TryAcquireMemory(int64(len(arenaBytes))) {
		err := errors.New("pht: arena capacity denied by resource controller")
		o.logger.LogRecover(context.Background(), region.Path(), root.BucketCount, err)
		return nil, err
	}
	arena := pmem.NewArena(arenaBytes)

	o.logger.LogRecover(context.Background(), region.Path(), root.BucketCount, nil)

	return &PHT{
		region:      region,
		arena:       arena,
		buckets:     buckets,
		bucketCount: root.BucketCount,
		dom:         reclaim.NewDomain[nodeHeader](o.threadCount, reclaim.WithLogger[nodeHeader](o.logger)),
		controller:  o.controller,
		arenaBytes:  int64(len(arenaBytes)),
		logger:      o.logger,
	}, nil
}

// Close finalizes the root header and releases the underlying region. It
// does not wait for in-flight operations; callers are responsible for
// quiescing all threads (no more StartOp/EndOp) before calling Close.
func (t *PHT) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	t.controller.ReleaseMemory(t.arenaBytes)
	if err := pmem.FinalizeProcess(t.region); err != nil {
		return err
	}
	return t.region.Close()
}

func (t *PHT) bucketIndex(key []byte) uint64 {
	return uint64(hash.CRC32C(key)) % t.bucketCount
}

// findNode locates key within the chain reachable from head, returning the
// predecessor slot (the last unmarked link observed before curr), curr's
// offset and header (0, nil if the chain ends before a match), and the raw
// tagged value read from curr's next field. While walking, any node found
// already marked for deletion is physically unlinked via CAS on prev
// before the walk continues; a failed unlink simply restarts the whole
// walk from head, matching the original's retry-from-scratch discipline.
func (t *PHT) findNode(head *atomic.Uint64, key []byte) (prev *atomic.Uint64, currOff uint64, curr *nodeHeader, nextTagged uint64, found bool) {
restart:
	prev = head
	currTagged := prev.Load()

	for {
		if withoutMark(currTagged) == 0 {
			return prev, 0, nil, 0, false
		}

		currOff = withoutMark(currTagged)
		curr = nodeAt(t.arena, currOff)
		nextTagged = curr.next.Load()

		if isMarked(nextTagged) {
			// curr is logically deleted: try to physically unlink it.
			if !prev.CompareAndSwap(currTagged, withoutMark(nextTagged)) {
				t.logger.LogCASRetry(context.Background(), "findNode-unlink", withoutMark(currTagged))
				goto restart
			}
			currTagged = withoutMark(nextTagged)
			continue
		}

		cmp := bytes.Compare(curr.keyBytes(t.arena), key)
		if cmp == 0 {
			return prev, currOff, curr, nextTagged, true
		}
		if cmp > 0 {
			// Chain is ascending; key would be here if present.
			return prev, currOff, curr, nextTagged, false
		}

		prev = curr.nextSlot()
		currTagged = nextTagged
	}
}
