package tgraph

import (
	"context"
	"math/rand"
	"sync"

	"github.com/coredb/nvmds/model"
	"github.com/coredb/nvmds/resource"
)

// populate seeds g with an initial vertex set (cfg.VertexLoad percent of
// slots) and, for each present vertex, roughly cfg.MeanEdgesPerVertex
// random edges to other present vertices. This is a direct port of the
// original rideable's two-pass constructor fill loop: vertex placement
// runs single-threaded (it is a simple coin-flip per slot), but the
// second, heavier edge-sampling pass is sharded across workers goroutines,
// one contiguous range of source vertices each, gated through ctrl's
// background-worker admission if ctrl is non-nil.
func populate(g *TGraph, seed int64, workers int, ctrl *resource.Controller) {
	load := g.cfg.VertexLoad
	if load <= 0 {
		return
	}

	placeRNG := rand.New(rand.NewSource(seed))
	for i := range g.slots {
		if placeRNG.Intn(100) < load {
			g.slots[i].Value.state.vertex = &Vertex{ID: model.VertexID(i)}
		}
	}

	if workers <= 1 {
		populateEdgesRange(g, rand.New(rand.NewSource(seed+1)), 0, len(g.slots))
		return
	}

	shardSize := (len(g.slots) + workers - 1) / workers
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		lo := w * shardSize
		hi := lo + shardSize
		if hi > len(g.slots) {
			hi = len(g.slots)
		}
		if lo >= hi {
			continue
		}

		wg.Add(1)
		go func(w, lo, hi int) {
			defer wg.Done()
			if ctrl != nil {
				if err := ctrl.AcquireBackground(context.Background()); err != nil {
					return
				}
				defer ctrl.ReleaseBackground()
			}
			populateEdgesRange(g, rand.New(rand.NewSource(seed+1+int64(w))), lo, hi)
		}(w, lo, hi)
	}
	wg.Wait()
}

// populateEdgesRange samples edges for source vertices in [lo, hi). A
// worker's source range is disjoint from every other worker's, but the
// destination side of a sampled edge can land in any other worker's
// range, so every edge install still goes through the same ascending
// two-lock discipline AddEdge uses: without it, two workers racing an
// edge onto the same destination's incoming map would be a concurrent,
// unsynchronized map write.
func populateEdgesRange(g *TGraph, rng *rand.Rand, lo, hi int) {
	load := g.cfg.VertexLoad
	if load <= 0 {
		return
	}
	sampleN := g.cfg.MeanEdgesPerVertex * 100 / load

	for i := lo; i < hi; i++ {
		src := model.VertexID(i)
		if g.slots[i].Value.state.vertex == nil {
			continue
		}
		for j := 0; j < sampleN; j++ {
			dst := model.VertexID(rng.Intn(len(g.slots)))
			if dst == src {
				continue
			}
			if g.slots[dst].Value.state.vertex == nil {
				continue
			}
			g.AddEdge(src, dst, -1)
		}
	}
}
