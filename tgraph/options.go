package tgraph

import (
	"time"

	"github.com/coredb/nvmds"
	"github.com/coredb/nvmds/resource"
)

// Option configures a TGraph at construction.
type Option func(*buildOptions)

type buildOptions struct {
	seed       int64
	logger     *nvmds.Logger
	workers    int
	controller *resource.Controller
}

// WithSeed fixes the random source used for initial-population sampling,
// in place of the default wall-clock seed, so a test can reproduce a
// specific starting graph.
func WithSeed(seed int64) Option {
	return func(o *buildOptions) { o.seed = seed }
}

// WithLogger attaches a logger used for vertex-removal and edge-addition
// lifecycle events during construction and subsequent mutation.
func WithLogger(l *nvmds.Logger) Option {
	return func(o *buildOptions) { o.logger = l }
}

// WithPopulationWorkers bounds the number of goroutines New uses to sample
// the initial edge set concurrently. A value <= 1 populates serially.
func WithPopulationWorkers(n int) Option {
	return func(o *buildOptions) { o.workers = n }
}

// WithResourceController gates the number of concurrent population
// worker goroutines through c's background-worker admission control,
// matching the arena-side admission pht.WithResourceController performs.
// A nil controller (the default) leaves population unbounded.
func WithResourceController(c *resource.Controller) Option {
	return func(o *buildOptions) { o.controller = c }
}

func defaultBuildOptions() buildOptions {
	return buildOptions{seed: time.Now().UnixNano(), workers: 1, logger: nvmds.NoopLogger()}
}
