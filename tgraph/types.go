package tgraph

import (
	"sync"
	"sync/atomic"

	"github.com/coredb/nvmds"
	"github.com/coredb/nvmds/internal/container"
	"github.com/coredb/nvmds/model"
)

// Vertex is the payload installed into a slot by AddVertex. It carries no
// mutable state of its own beyond identity; all mutable graph state (the
// adjacency/incoming sets) lives on the slot, not the vertex.
type Vertex struct {
	ID model.VertexID
}

// Relation is a directed, weighted edge from Src to Dst. A relation is
// owned by Src's adjacency set; Dst's incoming set holds a reference to
// the same *Relation, never a copy, so RemoveEdge only has one object to
// free once it has erased both references.
type Relation struct {
	Src, Dst model.VertexID
	Weight   int
}

type edgeKey struct {
	src, dst model.VertexID
}

// slotState is the guarded state of one cache-line-padded entry in the
// graph's fixed vertex table.
// vertex is nil when the slot is unoccupied. adjacency holds relations
// this vertex owns (outgoing edges); incoming holds relations owned by
// some other slot's adjacency set (edges pointing at this vertex). Both
// maps, and vertex itself, are guarded by mu; seq is bumped while mu is
// held, once per observable change to this slot.
type slotState struct {
	vertex    *Vertex
	adjacency map[edgeKey]*Relation
	incoming  map[edgeKey]*Relation
}

type vertexSlot struct {
	mu    sync.Mutex
	state slotState
	seq   atomic.Uint32
}

// Config parameterizes a TGraph's fixed size and initial population
// density, matching the constructor parameters of the original rideable
// (numVertices, meanEdgesPerVertex, vertexLoad).
type Config struct {
	// NumVertices is the fixed size of the vertex slot table. It cannot
	// grow after construction.
	NumVertices int
	// MeanEdgesPerVertex sizes both AddVertex's neighbor sample and the
	// constructor's initial-population edge fill.
	MeanEdgesPerVertex int
	// VertexLoad is the percentage (0-100) of slots populated with a
	// vertex at construction time.
	VertexLoad int
}

// TGraph is a fixed-size, lock-based concurrent directed graph.
type TGraph struct {
	slots  []container.Padded[vertexSlot]
	cfg    Config
	logger *nvmds.Logger
}
