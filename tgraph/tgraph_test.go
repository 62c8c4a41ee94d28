package tgraph

import (
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/coredb/nvmds/model"
)

func newEmptyGraph(t *testing.T, n int) *TGraph {
	t.Helper()
	g, err := New(Config{NumVertices: n}, WithSeed(1))
	require.NoError(t, err)
	return g
}

// S4: a ring of 16 vertices, each with exactly one outgoing and one
// incoming edge; removing vertex 0 must leave no relation in vertex 15's or
// vertex 1's sets that references 0.
func TestRingTopologyAndVertexRemoval(t *testing.T) {
	const n = 16
	g := newEmptyGraph(t, n)

	for i := 0; i < n; i++ {
		require.True(t, g.AddVertex(model.VertexID(i)))
	}
	for i := 0; i < n; i++ {
		require.True(t, g.AddEdge(model.VertexID(i), model.VertexID((i+1)%n), i))
	}

	for i := 0; i < n; i++ {
		slot := g.slot(model.VertexID(i))
		require.Len(t, slot.state.adjacency, 1, "vertex %d adjacency", i)
		require.Len(t, slot.state.incoming, 1, "vertex %d incoming", i)
	}

	require.True(t, g.RemoveVertex(0))

	require.False(t, g.HasEdge(15, 0))
	require.False(t, g.HasEdge(0, 1))

	slot15 := g.slot(15)
	_, ok := slot15.state.adjacency[edgeKey{15, 0}]
	require.False(t, ok)

	slot1 := g.slot(1)
	_, ok = slot1.state.incoming[edgeKey{0, 1}]
	require.False(t, ok)
}

func TestAddEdgeRejectsSelfLoopAndMissingEndpoint(t *testing.T) {
	g := newEmptyGraph(t, 4)
	require.True(t, g.AddVertex(0))

	require.False(t, g.AddEdge(0, 0, 1), "self-loops are never allowed")
	require.False(t, g.AddEdge(0, 1, 1), "dst has no installed vertex")
}

func TestAddEdgeRejectsDuplicate(t *testing.T) {
	g := newEmptyGraph(t, 4)
	require.True(t, g.AddVertex(0))
	require.True(t, g.AddVertex(1))

	require.True(t, g.AddEdge(0, 1, 7))
	require.False(t, g.AddEdge(0, 1, 9), "duplicate edge must fail")
	require.True(t, g.HasEdge(0, 1))
}

func TestRemoveVertexOnAbsentFails(t *testing.T) {
	g := newEmptyGraph(t, 4)
	require.False(t, g.RemoveVertex(2))
}

// S5: concurrent add_edge/remove_edge on random pairs; after join, every
// (s,d) pair must be symmetric across both sides or absent from both.
func TestConcurrentEdgeMutationStaysSymmetric(t *testing.T) {
	const n = 32
	g := newEmptyGraph(t, n)
	for i := 0; i < n; i++ {
		require.True(t, g.AddVertex(model.VertexID(i)))
	}

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for i := 0; i < 500; i++ {
				s := model.VertexID(rng.Intn(n))
				d := model.VertexID(rng.Intn(n))
				if s == d {
					continue
				}
				if rng.Intn(2) == 0 {
					g.AddEdge(s, d, 0)
				} else {
					g.RemoveEdge(s, d)
				}
			}
		}(int64(w) + 1)
	}
	wg.Wait()

	for s := 0; s < n; s++ {
		srcSlot := g.slot(model.VertexID(s))
		for key := range srcSlot.state.adjacency {
			dstSlot := g.slot(key.dst)
			_, ok := dstSlot.state.incoming[key]
			require.True(t, ok, "edge %v present in adjacency but not incoming", key)
		}
	}
	for d := 0; d < n; d++ {
		dstSlot := g.slot(model.VertexID(d))
		for key := range dstSlot.state.incoming {
			srcSlot := g.slot(key.src)
			_, ok := srcSlot.state.adjacency[key]
			require.True(t, ok, "edge %v present in incoming but not adjacency", key)
		}
	}
}

func TestConcurrentAddRemoveVertex(t *testing.T) {
	const n = 64
	g := newEmptyGraph(t, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			g.AddVertex(model.VertexID(i))
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NotNil(t, g.slot(model.VertexID(i)).state.vertex)
	}

	wg = sync.WaitGroup{}
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			g.RemoveVertex(model.VertexID(i))
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.Nil(t, g.slot(model.VertexID(i)).state.vertex)
	}
}

func TestStatsReflectsPopulatedGraph(t *testing.T) {
	g := newEmptyGraph(t, 8)
	for i := 0; i < 8; i++ {
		require.True(t, g.AddVertex(model.VertexID(i)))
	}
	for i := 0; i < 7; i++ {
		require.True(t, g.AddEdge(model.VertexID(i), model.VertexID(i+1), 0))
	}

	s := g.Stats()
	require.Equal(t, 8, s.NumVertices)
	require.Equal(t, 7, s.NumEdges)
	require.InDelta(t, 7.0/8.0, s.AverageDegree, 1e-9)
}

func TestConstructionTimePopulationIsReproducible(t *testing.T) {
	cfg := Config{NumVertices: 200, MeanEdgesPerVertex: 10, VertexLoad: 50}
	g1, err := New(cfg, WithSeed(42))
	require.NoError(t, err)
	g2, err := New(cfg, WithSeed(42))
	require.NoError(t, err)

	require.Equal(t, g1.Stats(), g2.Stats())
}

func TestSampleSizeNames(t *testing.T) {
	g := &TGraph{cfg: Config{MeanEdgesPerVertex: 20, VertexLoad: 50}}
	require.Equal(t, 40, g.sampleSize())
}
