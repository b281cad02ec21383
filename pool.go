package hotqueue

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// WorkerPool runs several consumers over one queue. Every message is
// delivered to exactly one consumer because Redis pops are atomic.
type WorkerPool[T any] struct {
	queue    *Queue[T]
	handler  func(context.Context, T) error
	workers  int
	readOpts []ReadOption

	processed atomic.Int64
}

type poolConfig struct {
	workers  int
	readOpts []ReadOption
}

type PoolOption func(*poolConfig)

func WithWorkerCount(n int) PoolOption {
	return func(c *poolConfig) { c.workers = n }
}

// WithReadOptions sets the options each consumer passes to Consume.
func WithReadOptions(opts ...ReadOption) PoolOption {
	return func(c *poolConfig) { c.readOpts = append(c.readOpts, opts...) }
}

func NewWorkerPool[T any](q *Queue[T], handler func(context.Context, T) error, opts ...PoolOption) *WorkerPool[T] {
	cfg := poolConfig{workers: 1}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.workers < 1 {
		cfg.workers = 1
	}
	return &WorkerPool[T]{
		queue:    q,
		handler:  handler,
		workers:  cfg.workers,
		readOpts: cfg.readOpts,
	}
}

// Run starts the consumers and waits until all of them stop, either because
// the queue ran dry, ctx was cancelled, or one of them failed. The first
// failure cancels the others and is returned.
func (p *WorkerPool[T]) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	log := p.queue.opt.Logger

	for id := range p.workers {
		run := p.queue.Handle(func(ctx context.Context, msg T) error {
			if err := p.handler(ctx, msg); err != nil {
				return err
			}
			p.processed.Add(1)
			return nil
		}, p.readOpts...)

		g.Go(func() error {
			log.Debug().Int("worker", id).Msg("worker started")
			err := run(gctx)
			log.Debug().Int("worker", id).Err(err).Msg("worker stopped")
			return err
		})
	}
	return g.Wait()
}

// Processed returns how many messages the handler completed successfully.
func (p *WorkerPool[T]) Processed() int64 {
	return p.processed.Load()
}
