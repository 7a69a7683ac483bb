// Package workpool implements the bounded CPU-bound worker pool spec.md
// §5 calls for: "CPU-bound steps (hashing, cryptographic signing, image
// rasterisation) run on a bounded worker pool sized to core count;
// request handlers submit work and await completion with cancellation."
package workpool

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Pool bounds how many CPU-bound steps run concurrently across the
// whole process, independent of how many request handlers are in
// flight. A buffered channel is the semaphore; capacity defaults to
// runtime.NumCPU() when size is not positive.
type Pool struct {
	sem  chan struct{}
	size int
}

func New(size int) *Pool {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	return &Pool{sem: make(chan struct{}, size), size: size}
}

// Size returns the pool's concurrency ceiling.
func (p *Pool) Size() int { return p.size }

func (p *Pool) acquire(ctx context.Context) error {
	select {
	case p.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool) release() { <-p.sem }

// Submit runs fn on the pool, blocking the caller until a slot is free
// and fn returns, or ctx is cancelled first. This is the shape request
// handlers use: submit one CPU-bound step and await its result.
func (p *Pool) Submit(ctx context.Context, fn func(context.Context) (interface{}, error)) (interface{}, error) {
	if err := p.acquire(ctx); err != nil {
		return nil, err
	}
	defer p.release()
	return fn(ctx)
}

// Run fans tasks out across the pool and waits for all of them,
// returning the first error (spec.md §5: request handlers "await
// completion with cancellation" — a task's sibling's failure cancels
// the group's context for the rest). Useful for batched CPU-bound work,
// e.g. hashing several pages of a document in parallel.
func (p *Pool) Run(ctx context.Context, tasks ...func(context.Context) error) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, task := range tasks {
		task := task
		g.Go(func() error {
			if err := p.acquire(gctx); err != nil {
				return err
			}
			defer p.release()
			return task(gctx)
		})
	}
	return g.Wait()
}
