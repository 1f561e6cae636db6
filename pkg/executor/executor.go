// Package executor provides the two bounded concurrency pools every
// pipeline stage threads through explicitly: Network, for outbound HTTP,
// and Work, for CPU-ish post-processing (parsing, signature verification).
// Both are process-wide singletons sized to roughly 8 concurrent slots.
package executor

import (
	"context"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

const defaultConcurrency = 8

// Pool bounds concurrent execution of Go funcs to a fixed number of
// in-flight goroutines.
type Pool struct {
	sem *semaphore.Weighted
}

// NewPool creates a Pool that allows at most n goroutines to run
// concurrently.
func NewPool(n int64) *Pool {
	if n <= 0 {
		n = defaultConcurrency
	}
	return &Pool{sem: semaphore.NewWeighted(n)}
}

// Go runs fn once a slot is available, blocking until one is or ctx is
// cancelled. The returned error is either ctx.Err() (slot never acquired)
// or fn's own error.
func (p *Pool) Go(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer p.sem.Release(1)
	return fn(ctx)
}

// GoGroup runs fns concurrently, each gated by the pool, and returns the
// first error encountered (if any) after all have completed — the pattern
// used by the swarm broadcast.
func (p *Pool) GoGroup(ctx context.Context, fns ...func(ctx context.Context) error) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, fn := range fns {
		fn := fn
		g.Go(func() error {
			return p.Go(gctx, fn)
		})
	}
	return g.Wait()
}

// Pools bundles the two process-wide executors a NetworkContext threads
// through its components.
type Pools struct {
	Network *Pool
	Work    *Pool
}

// NewPools constructs the default Network/Work pool pair.
func NewPools() *Pools {
	return &Pools{
		Network: NewPool(defaultConcurrency),
		Work:    NewPool(defaultConcurrency),
	}
}
