// Package parallel provides the coarse-grained fan-out used by training:
// independent per-class models and independent data shards.
package parallel

import (
	"context"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Config controls parallel execution behavior.
type Config struct {
	Enabled      bool // Whether parallel execution is enabled.
	NumWorkers   int  // Number of worker goroutines to use.
	MinChunkSize int  // Minimum items per goroutine to avoid overhead.
}

// DefaultConfig returns defaults based on CPU count.
//
// MinChunkSize is 1: the work items here (a class model update, a shard)
// are already coarse.
func DefaultConfig() Config {
	n := runtime.NumCPU()
	return Config{
		Enabled:      n > 1,
		NumWorkers:   n,
		MinChunkSize: 1,
	}
}

func (c Config) workers() int {
	if c.NumWorkers <= 0 {
		return runtime.NumCPU()
	}
	return c.NumWorkers
}

// For executes f(i) for i in [0, n) with optional parallelism.
// Falls back to sequential execution if parallelism is disabled or n is too small.
func For(n int, f func(i int), cfg Config) {
	if !cfg.Enabled || n < max(cfg.MinChunkSize, 2) {
		for i := range n {
			f(i)
		}
		return
	}

	var wg sync.WaitGroup
	workers := cfg.workers()
	chunkSize := max((n+workers-1)/workers, cfg.MinChunkSize, 1)

	for start := 0; start < n; start += chunkSize {
		end := min(start+chunkSize, n)
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			for i := s; i < e; i++ {
				f(i)
			}
		}(start, end)
	}
	wg.Wait()
}

// Shards runs fn(ctx, i) for every shard i in [0, n) on at most
// cfg.NumWorkers goroutines.
//
// The first error cancels the context passed to the remaining shards and
// is returned. With parallelism disabled shards run one after another.
func Shards(ctx context.Context, n int, fn func(ctx context.Context, shard int) error, cfg Config) error {
	g, ctx := errgroup.WithContext(ctx)
	if cfg.Enabled {
		g.SetLimit(cfg.workers())
	} else {
		g.SetLimit(1)
	}

	for i := range n {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return fn(ctx, i)
		})
	}
	return g.Wait()
}
