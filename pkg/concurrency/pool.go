// Package concurrency provides a bounded CPU worker pool for running
// independent per-item tasks (one activation, one Beaver triple) in
// parallel. The orchestrator does not use it: its offline and online
// phases process layers and activations one after another. Grounded on golang.org/x/sync's
// errgroup+semaphore pairing (the same combination luxfi-threshold's go.mod
// already pulls in for its own round-parallel signing paths).
package concurrency

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Pool bounds how many goroutines run concurrently and cancels the rest of
// a batch as soon as one task returns an error.
type Pool struct {
	sem *semaphore.Weighted
	g   *errgroup.Group
	ctx context.Context
}

// NewPool creates a pool with width workers; width<=0 defaults to
// runtime.NumCPU(), which is unrelated to wire.NumStreams.
func NewPool(ctx context.Context, width int) *Pool {
	if width <= 0 {
		width = runtime.NumCPU()
	}
	g, gctx := errgroup.WithContext(ctx)
	return &Pool{sem: semaphore.NewWeighted(int64(width)), g: g, ctx: gctx}
}

// Go schedules fn to run once a worker slot is free. It returns
// immediately: the slot is acquired inside the spawned goroutine.
func (p *Pool) Go(fn func(ctx context.Context) error) {
	p.g.Go(func() error {
		if err := p.sem.Acquire(p.ctx, 1); err != nil {
			return err
		}
		defer p.sem.Release(1)
		return fn(p.ctx)
	})
}

// Wait blocks until every scheduled task has returned, and reports the
// first error any of them produced.
func (p *Pool) Wait() error {
	return p.g.Wait()
}

// Map runs fn once per index in [0, n) across the pool and returns the
// first error encountered, matching the ACG/MPC-offline batch shape where
// every item (one activation, one Beaver triple) is independent.
func Map(ctx context.Context, width, n int, fn func(ctx context.Context, i int) error) error {
	p := NewPool(ctx, width)
	for i := 0; i < n; i++ {
		i := i
		p.Go(func(ctx context.Context) error { return fn(ctx, i) })
	}
	return p.Wait()
}
