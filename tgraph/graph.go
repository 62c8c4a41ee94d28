package tgraph

import (
	"errors"
	"fmt"

	"github.com/coredb/nvmds/internal/container"
	"github.com/coredb/nvmds/internal/conv"
	"github.com/coredb/nvmds/model"
)

// ErrInvalidConfig is returned by New when NumVertices is non-positive.
var ErrInvalidConfig = errors.New("tgraph: NumVertices must be positive")

// Debug gates the fatal protocol assertions the original rideable performs
// on lock-order and neighbor-set/seq consistency violations. Leave false in
// production; the checks cost a map lookup and a seq read per touched
// vertex when enabled.
var Debug = false

// New allocates a fixed vertex-slot table of cfg.NumVertices entries and
// seeds it: cfg.VertexLoad percent of slots receive a vertex, and each
// populated vertex samples roughly cfg.MeanEdgesPerVertex random edges,
// matching the two-pass fill the original rideable's constructor performs.
// The sampling source defaults to a wall-clock seed; pass WithSeed for a
// reproducible initial graph.
func New(cfg Config, opts ...Option) (*TGraph, error) {
	if cfg.NumVertices <= 0 {
		return nil, ErrInvalidConfig
	}
	if _, err := conv.IntToUint32(cfg.NumVertices); err != nil {
		return nil, fmt.Errorf("tgraph: NumVertices does not fit a VertexID: %w", err)
	}

	o := defaultBuildOptions()
	for _, fn := range opts {
		fn(&o)
	}

	g := &TGraph{
		slots:  make([]container.Padded[vertexSlot], cfg.NumVertices),
		cfg:    cfg,
		logger: o.logger,
	}
	for i := range g.slots {
		g.slots[i].Value.state.adjacency = make(map[edgeKey]*Relation)
		g.slots[i].Value.state.incoming = make(map[edgeKey]*Relation)
	}

	populate(g, o.seed, o.workers, o.controller)
	return g, nil
}

func (g *TGraph) slot(v model.VertexID) *vertexSlot {
	return &g.slots[v].Value
}

func (g *TGraph) lock(v model.VertexID)   { g.slot(v).mu.Lock() }
func (g *TGraph) unlock(v model.VertexID) { g.slot(v).mu.Unlock() }

// lockAscending acquires every id in ids, which must already be sorted
// ascending and deduplicated, in that order. Callers release with
// unlockDescending to honor the ascending-acquire/descending-release rule.
func (g *TGraph) lockAscending(ids []model.VertexID) {
	for i, id := range ids {
		if Debug && i > 0 && ids[i-1] >= id {
			panic("tgraph: lock ids not strictly ascending")
		}
		g.lock(id)
	}
}

func (g *TGraph) unlockDescending(ids []model.VertexID) {
	for i := len(ids) - 1; i >= 0; i-- {
		g.unlock(ids[i])
	}
}
