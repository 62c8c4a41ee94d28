package tgraph

import (
	"context"
	"math/rand"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/coredb/nvmds/model"
)

// lockedRand wraps a *rand.Rand with a mutex so concurrent AddVertex calls
// can share one random source.
type lockedRand struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func (l *lockedRand) Intn(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rng.Intn(n)
}

// sampleSize mirrors the original rideable's meanEdgesPerVertex * 100 /
// vertexLoad working-set size: at vertexLoad percent occupancy, sampling
// that many candidates yields roughly meanEdgesPerVertex live neighbors.
func (g *TGraph) sampleSize() int {
	load := g.cfg.VertexLoad
	if load <= 0 {
		load = 100
	}
	n := g.cfg.MeanEdgesPerVertex * 100 / load
	if n < 0 {
		n = 0
	}
	return n
}

// intner is satisfied by both *lockedRand and *rand.Rand, so candidateSet
// accepts either kind of source.
type intner interface{ Intn(n int) int }

// candidateSet samples n random vertex ids, skipping any draw equal to
// self, then adds self so the result is the full lock set. It uses a
// Roaring bitmap to dedupe-as-you-go and yield an ascending iteration
// order for free, replacing the original's sort+unique sequence over a
// plain vector.
func candidateSet(rng intner, numVertices int, self model.VertexID, n int) []model.VertexID {
	bm := roaring.New()
	for i := 0; i < n; i++ {
		u := model.VertexID(rng.Intn(numVertices))
		if u == self {
			continue
		}
		bm.Add(uint32(u))
	}
	bm.Add(uint32(self))

	ids := make([]model.VertexID, 0, bm.GetCardinality())
	it := bm.Iterator()
	for it.HasNext() {
		ids = append(ids, model.VertexID(it.Next()))
	}
	return ids
}

// dedupeAscending dedupes and sorts ids ascending using the same Roaring
// bitmap approach as candidateSet, rather than a sort.Slice-and-compact
// pass over a plain slice.
func dedupeAscending(ids []model.VertexID) []model.VertexID {
	bm := roaring.New()
	for _, id := range ids {
		bm.Add(uint32(id))
	}

	out := make([]model.VertexID, 0, bm.GetCardinality())
	it := bm.Iterator()
	for it.HasNext() {
		out = append(out, model.VertexID(it.Next()))
	}
	return out
}

// AddVertex installs a new vertex at id v, wiring edges to whichever of
// its sampled neighbor candidates are currently present. It fails if v
// already has a vertex installed. Candidate sampling draws from globalRand,
// a package-level source shared by every graph and safe for concurrent use.
func (g *TGraph) AddVertex(v model.VertexID) bool {
	return g.addVertex(v, globalRand)
}

// globalRand is a mutex-protected *rand.Rand shared by every AddVertex
// call. It is seeded with a fixed value at init and then only ever
// advanced, not reseeded; New(WithSeed) seeds only the construction-time
// population, not this shared source.
var globalRand = &lockedRand{rng: rand.New(rand.NewSource(1))}

func (g *TGraph) addVertex(v model.VertexID, rng intner) bool {
	assertInBounds(g, v)

	ids := candidateSet(rng, len(g.slots), v, g.sampleSize())
	g.lockAscending(ids)
	defer g.unlockDescending(ids)

	vSlot := g.slot(v)
	if vSlot.state.vertex != nil {
		return false
	}

	vSlot.state.vertex = &Vertex{ID: v}
	for _, u := range ids {
		if u == v {
			continue
		}
		uSlot := g.slot(u)
		if uSlot.state.vertex == nil {
			continue
		}
		key := edgeKey{v, u}
		r := &Relation{Src: v, Dst: u, Weight: -1}
		vSlot.state.adjacency[key] = r
		uSlot.state.incoming[key] = r
	}

	for _, id := range ids {
		g.slot(id).seq.Add(1)
	}
	return true
}

// RemoveVertex removes v and every edge incident to it. It fails if v is
// absent. The protocol is two-phase: Phase A scans v's current neighbor
// set under only v's lock; Phase B re-validates that snapshot is still
// current (via v's sequence number) after acquiring every touched
// vertex's lock in ascending order, restarting from Phase A on a mismatch
// caused by a concurrent mutation racing the scan.
func (g *TGraph) RemoveVertex(v model.VertexID) bool {
	assertInBounds(g, v)

	for {
		g.lock(v)
		vSlot := g.slot(v)
		if vSlot.state.vertex == nil {
			g.unlock(v)
			return false
		}
		snapshotSeq := vSlot.seq.Load()

		neighbors := make([]model.VertexID, 0, len(vSlot.state.adjacency)+len(vSlot.state.incoming))
		for k := range vSlot.state.adjacency {
			neighbors = append(neighbors, k.dst)
		}
		for k := range vSlot.state.incoming {
			neighbors = append(neighbors, k.src)
		}
		g.unlock(v)

		neighbors = append(neighbors, v)
		ids := dedupeAscending(neighbors)

		g.lockAscending(ids)

		if vSlot.seq.Load() != snapshotSeq {
			g.unlockDescending(ids)
			continue
		}

		edgesRemoved := 0
		for _, other := range ids {
			if other == v {
				continue
			}
			otherSlot := g.slot(other)

			srcKey := edgeKey{other, v}
			dstKey := edgeKey{v, other}
			_, hadIncoming := otherSlot.state.adjacency[srcKey]
			_, hadOutgoing := otherSlot.state.incoming[dstKey]

			if Debug && !hadIncoming && !hadOutgoing {
				panic("tgraph: observed neighbor that was originally there but no longer is")
			}

			delete(otherSlot.state.adjacency, srcKey)
			delete(otherSlot.state.incoming, dstKey)
			if hadIncoming || hadOutgoing {
				edgesRemoved++
			}
		}

		clear(vSlot.state.adjacency)
		clear(vSlot.state.incoming)
		vSlot.state.vertex = nil

		for _, id := range ids {
			g.slot(id).seq.Add(1)
		}
		g.unlockDescending(ids)

		g.logger.LogVertexRemoved(context.Background(), uint32(v), edgesRemoved)
		return true
	}
}
