package tgraph

import (
	"context"

	"github.com/coredb/nvmds/model"
)

func bounds(g *TGraph, v model.VertexID) bool {
	return int(v) >= 0 && int(v) < len(g.slots)
}

func assertInBounds(g *TGraph, v model.VertexID) {
	if Debug && !bounds(g, v) {
		panic("tgraph: vertex id out of range")
	}
}

// AddEdge inserts a directed, weighted edge from src to dst. It fails if
// either endpoint is absent, src == dst, or the edge already exists.
// Locks are acquired min-then-max to satisfy the ascending-order rule.
func (g *TGraph) AddEdge(src, dst model.VertexID, weight int) bool {
	assertInBounds(g, src)
	assertInBounds(g, dst)
	if src == dst {
		return false
	}

	lo, hi := src, dst
	if lo > hi {
		lo, hi = hi, lo
	}
	g.lock(lo)
	g.lock(hi)
	defer g.unlock(lo)
	defer g.unlock(hi)

	srcSlot, dstSlot := g.slot(src), g.slot(dst)
	if srcSlot.state.vertex == nil || dstSlot.state.vertex == nil {
		g.logger.LogEdgeAdded(context.Background(), uint32(src), uint32(dst), errAbsentEndpoint)
		return false
	}

	key := edgeKey{src, dst}
	if _, exists := srcSlot.state.adjacency[key]; exists {
		g.logger.LogEdgeAdded(context.Background(), uint32(src), uint32(dst), errEdgeExists)
		return false
	}

	r := &Relation{Src: src, Dst: dst, Weight: weight}
	srcSlot.state.adjacency[key] = r
	dstSlot.state.incoming[key] = r
	srcSlot.seq.Add(1)
	dstSlot.seq.Add(1)

	g.logger.LogEdgeAdded(context.Background(), uint32(src), uint32(dst), nil)
	return true
}

// RemoveEdge erases the edge from src to dst, if present. It fails if
// either endpoint is absent or the edge does not exist.
func (g *TGraph) RemoveEdge(src, dst model.VertexID) bool {
	assertInBounds(g, src)
	assertInBounds(g, dst)
	if src == dst {
		return false
	}

	lo, hi := src, dst
	if lo > hi {
		lo, hi = hi, lo
	}
	g.lock(lo)
	g.lock(hi)
	defer g.unlock(lo)
	defer g.unlock(hi)

	srcSlot, dstSlot := g.slot(src), g.slot(dst)
	if srcSlot.state.vertex == nil || dstSlot.state.vertex == nil {
		return false
	}

	key := edgeKey{src, dst}
	if _, ok := srcSlot.state.adjacency[key]; !ok {
		return false
	}

	// Erase from the owning side first, then the referencing side, then
	// the relation itself becomes unreachable and Go's GC reclaims it —
	// there is no separate free() step.
	delete(srcSlot.state.adjacency, key)
	delete(dstSlot.state.incoming, key)
	srcSlot.seq.Add(1)
	dstSlot.seq.Add(1)
	return true
}

// HasEdge reports whether src has an outgoing edge to dst, linearized at
// the point src's lock is acquired.
func (g *TGraph) HasEdge(src, dst model.VertexID) bool {
	assertInBounds(g, src)
	assertInBounds(g, dst)

	g.lock(src)
	defer g.unlock(src)

	srcSlot := g.slot(src)
	if srcSlot.state.vertex == nil {
		return false
	}
	_, ok := srcSlot.state.adjacency[edgeKey{src, dst}]
	return ok
}
