package reclaim

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/coredb/nvmds"
	"github.com/coredb/nvmds/internal/container"
)

// inactive marks a reservation slot as not currently inside an operation.
const inactive = ^uint64(0)

// DefaultRetireBatch is the number of retired pointers a thread accumulates
// locally before it bumps the global epoch and attempts to drain its own
// retire list. Smaller values reclaim sooner at the cost of more frequent
// epoch bumps; larger values amortize the bump but let more garbage pile up.
const DefaultRetireBatch = 64

type retired[T any] struct {
	ptr   *T
	epoch uint64
}

// Domain is an epoch-based reclamation domain for a single lock-free
// structure. Each structure that needs safe reclamation (pht's bucket
// chains) owns exactly one Domain sized to its thread count.
type Domain[T any] struct {
	threadCount int
	retireBatch int
	logger      *nvmds.Logger

	epoch        atomic.Uint64
	reservations []container.Padded[atomic.Uint64]
	retiredLists [][]retired[T]

	totalRetired   atomic.Uint64
	totalReclaimed atomic.Uint64
}

// DomainOption configures a Domain at construction.
type DomainOption[T any] func(*Domain[T])

// WithLogger attaches a structured logger for retire/reclaim events. A nil
// logger is ignored; without this option the events are discarded.
func WithLogger[T any](l *nvmds.Logger) DomainOption[T] {
	return func(d *Domain[T]) {
		if l != nil {
			d.logger = l
		}
	}
}

// NewDomain creates a reclamation domain with one reservation slot and one
// retire list per thread in [0, threadCount).
func NewDomain[T any](threadCount int, opts ...DomainOption[T]) *Domain[T] {
	if threadCount <= 0 {
		panic(fmt.Sprintf("reclaim: invalid thread count %d", threadCount))
	}

	d := &Domain[T]{
		threadCount:  threadCount,
		retireBatch:  DefaultRetireBatch,
		logger:       nvmds.NoopLogger(),
		reservations: make([]container.Padded[atomic.Uint64], threadCount),
		retiredLists: make([][]retired[T], threadCount),
	}
	for _, fn := range opts {
		fn(d)
	}
	for i := range d.reservations {
		d.reservations[i].Value.Store(inactive)
	}
	d.epoch.Store(1)
	return d
}

// StartOp marks thread tid as entering a traversal of the protected
// structure. Every pointer published before this call's observed epoch may
// safely be dereferenced until the matching EndOp.
func (d *Domain[T]) StartOp(tid int) {
	d.reservations[tid].Value.Store(d.epoch.Load())
}

// EndOp marks thread tid as having left its traversal. It no longer holds
// any reference obtained during the bracketed operation.
func (d *Domain[T]) EndOp(tid int) {
	d.reservations[tid].Value.Store(inactive)
}

// Retire hands ptr to the reclamation domain instead of letting it go out
// of scope directly. The underlying Go value becomes eligible for garbage
// collection only once no thread's reservation could still observe it.
func (d *Domain[T]) Retire(ptr *T, tid int) {
	if ptr == nil {
		return
	}

	epoch := d.epoch.Load()
	list := append(d.retiredLists[tid], retired[T]{ptr: ptr, epoch: epoch})
	d.retiredLists[tid] = list
	d.totalRetired.Add(1)
	d.logger.LogRetire(context.Background(), tid, epoch)

	if len(list) >= d.retireBatch {
		d.epoch.Add(1)
		d.reclaim(tid)
	}
}

// reclaim drops local references to every pointer in tid's retire list that
// was retired strictly before the oldest active reservation across all
// threads. Dropped entries become ordinary Go garbage.
func (d *Domain[T]) reclaim(tid int) {
	min := d.minReservation()

	list := d.retiredLists[tid]
	kept := list[:0]
	freed := 0
	for _, r := range list {
		if r.epoch < min {
			freed++
			continue
		}
		kept = append(kept, r)
	}
	d.retiredLists[tid] = kept
	if freed > 0 {
		d.totalReclaimed.Add(uint64(freed))
	}
	d.logger.LogReclaim(context.Background(), tid, freed)
}

// Flush forces an epoch bump and a reclamation pass over tid's retire list.
// Benchmarks call this between phases to account reclamation cost outside
// the timed region, rather than relying on it happening opportunistically
// inside Retire.
func (d *Domain[T]) Flush(tid int) {
	d.epoch.Add(1)
	d.reclaim(tid)
}

func (d *Domain[T]) minReservation() uint64 {
	min := d.epoch.Load()
	for i := range d.reservations {
		v := d.reservations[i].Value.Load()
		if v != inactive && v < min {
			min = v
		}
	}
	return min
}

// Stats reports cumulative reclamation counters for observability.
type Stats struct {
	Epoch          uint64
	TotalRetired   uint64
	TotalReclaimed uint64
	Pending        uint64
}

// Stats returns a snapshot of the domain's counters. Pending is an
// approximation: it is only exact immediately after every thread has
// called Flush.
func (d *Domain[T]) Stats() Stats {
	retiredN := d.totalRetired.Load()
	reclaimedN := d.totalReclaimed.Load()
	pending := uint64(0)
	for i := range d.retiredLists {
		pending += uint64(len(d.retiredLists[i]))
	}
	return Stats{
		Epoch:          d.epoch.Load(),
		TotalRetired:   retiredN,
		TotalReclaimed: reclaimedN,
		Pending:        pending,
	}
}
