package hotqueue

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Queue is a FIFO message queue stored in a single Redis list.
// It holds no state besides its connection, so it is safe for concurrent
// use by multiple goroutines and processes.
type Queue[T any] struct {
	cmd  redis.Cmdable
	opt  Options
	name string
	key  string

	// owned is set when Open created the client; Close releases it.
	owned *redis.Client
	addr  string
	db    int
}

func New[T any](cmd redis.Cmdable, name string, opts ...Option) (*Queue[T], error) {
	// The name is used verbatim in the key.
	if strings.TrimSpace(name) == "" {
		return nil, ErrInvalidQueueName
	}

	opt := Options{
		Prefix:        defaultPrefix,
		Codec:         JSONCodec{},
		Logger:        zerolog.Nop(),
		BlockInterval: defaultBlockInterval,
	}
	for _, fn := range opts {
		if fn != nil {
			fn(&opt)
		}
	}
	if opt.Prefix == "" {
		opt.Prefix = defaultPrefix
	}
	if opt.Codec == nil {
		opt.Codec = JSONCodec{}
	}
	opt.BlockInterval = opt.BlockInterval.Truncate(time.Second)
	if opt.BlockInterval < time.Second {
		opt.BlockInterval = defaultBlockInterval
	}

	q := &Queue[T]{cmd: cmd, opt: opt, name: name, key: opt.Prefix + ":" + name}
	q.opt.Logger = opt.Logger.With().Str("queue", name).Logger()
	return q, nil
}

// Open connects to Redis with ropt and returns a queue owning that
// connection. Call Close to release it.
func Open[T any](ropt *redis.Options, name string, opts ...Option) (*Queue[T], error) {
	client := redis.NewClient(ropt)
	q, err := New[T](client, name, opts...)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	q.owned = client
	q.addr, q.db = ropt.Addr, ropt.DB
	return q, nil
}

// Close releases the connection acquired by Open. It is a no-op for queues
// built with New, whose connection belongs to the caller.
func (q *Queue[T]) Close() error {
	if q.owned == nil {
		return nil
	}
	c := q.owned
	q.owned = nil
	return c.Close()
}

func (q *Queue[T]) Name() string { return q.name }

// Key returns the Redis key holding the queue, usually "hotqueue:<name>".
func (q *Queue[T]) Key() string { return q.key }

// String describes the queue. Queues from Open also report the Redis
// address and database they connected to.
func (q *Queue[T]) String() string {
	if q.addr != "" {
		return fmt.Sprintf("<HotQueue: '%s', key='%s', addr='%s', db=%d>", q.name, q.key, q.addr, q.db)
	}
	return fmt.Sprintf("<HotQueue: '%s', key='%s'>", q.name, q.key)
}

// Len returns the number of messages waiting in the queue.
func (q *Queue[T]) Len(ctx context.Context) (int64, error) {
	n, err := q.cmd.LLen(ctx, q.key).Result()
	if err != nil {
		q.opt.Metrics.observeError(q.name, "len")
		return 0, err
	}
	return n, nil
}

// Clear deletes the queue key, discarding all pending messages.
func (q *Queue[T]) Clear(ctx context.Context) error {
	if err := q.cmd.Del(ctx, q.key).Err(); err != nil {
		q.opt.Metrics.observeError(q.name, "clear")
		return err
	}
	return nil
}

// Put appends msgs to the tail of the queue in the given order.
// All messages are encoded before anything is pushed, so an encoding
// failure leaves the queue untouched.
func (q *Queue[T]) Put(ctx context.Context, msgs ...T) error {
	if len(msgs) == 0 {
		return nil
	}
	vals := make([]any, 0, len(msgs))
	for _, m := range msgs {
		b, err := q.opt.Codec.Marshal(m)
		if err != nil {
			q.opt.Metrics.observeError(q.name, "encode")
			return err
		}
		vals = append(vals, b)
	}
	if err := q.cmd.RPush(ctx, q.key, vals...).Err(); err != nil {
		q.opt.Metrics.observeError(q.name, "put")
		return err
	}
	q.opt.Metrics.observePut(q.name, len(msgs))
	return nil
}

// Get pops one message from the head of the queue.
//
// By default it does not wait and returns ok == false when the queue is
// empty. With Block(true) it waits up to Timeout (forever when zero) and
// returns ok == false when the timeout expires.
func (q *Queue[T]) Get(ctx context.Context, opts ...ReadOption) (msg T, ok bool, err error) {
	ro := applyReadOptions(readOptions{}, opts)

	start := time.Now()
	var data []byte
	if ro.block {
		data, ok, err = q.blockingPop(ctx, ro.timeout)
	} else {
		data, ok, err = q.pop(ctx)
	}
	if err != nil {
		if ctx.Err() == nil {
			q.opt.Metrics.observeError(q.name, "get")
		}
		return msg, false, err
	}
	q.opt.Metrics.observeGet(q.name, ok, time.Since(start))
	if !ok {
		return msg, false, nil
	}

	if err := q.opt.Codec.Unmarshal(data, &msg); err != nil {
		q.opt.Metrics.observeError(q.name, "decode")
		return msg, false, err
	}
	return msg, true, nil
}

func (q *Queue[T]) pop(ctx context.Context) ([]byte, bool, error) {
	b, err := q.cmd.LPop(ctx, q.key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, false, nil
		}
		return nil, false, err
	}
	return b, true, nil
}

// blockingPop uses BLPOP in rounds of at most BlockInterval (BLPOP has
// seconds resolution). A sub-second remainder is covered by polling LPOP.
func (q *Queue[T]) blockingPop(ctx context.Context, timeout time.Duration) ([]byte, bool, error) {
	deadline := time.Now().Add(timeout)
	remaining := timeout

	for {
		if err := ctx.Err(); err != nil {
			return nil, false, err
		}

		wait := q.opt.BlockInterval
		if timeout > 0 {
			if remaining <= 0 {
				return nil, false, nil
			}
			if remaining < time.Second {
				return q.pollUntil(ctx, deadline)
			}
			if remaining < wait {
				wait = remaining.Truncate(time.Second)
			}
		}

		res, err := q.cmd.BLPop(ctx, wait, q.key).Result()
		if err != nil {
			if err == redis.Nil {
				remaining = time.Until(deadline)
				continue
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, false, ctxErr
			}
			return nil, false, err
		}
		if len(res) == 2 {
			return []byte(res[1]), true, nil
		}
	}
}

func (q *Queue[T]) pollUntil(ctx context.Context, deadline time.Time) ([]byte, bool, error) {
	for {
		b, ok, err := q.pop(ctx)
		if err != nil || ok {
			return b, ok, err
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, false, nil
		}

		// Sleep a bit to avoid hot-looping.
		sleep := 10 * time.Millisecond
		if remaining < sleep {
			sleep = remaining
		}
		select {
		case <-ctx.Done():
			return nil, false, ctx.Err()
		case <-time.After(sleep):
		}
	}
}

// Consume returns a sequence yielding messages as they arrive.
//
// It blocks for each message by default; pass Block(false) to drain what is
// currently queued, or Timeout to stop after a quiet period. The sequence
// ends when no message is available, and ends quietly when ctx is
// cancelled. A Redis or decoding error is yielded once and ends the
// sequence.
func (q *Queue[T]) Consume(ctx context.Context, opts ...ReadOption) iter.Seq2[T, error] {
	ro := applyReadOptions(readOptions{block: true}, opts)
	return func(yield func(T, error) bool) {
		var n int
		log := q.opt.Logger
		for {
			msg, ok, err := q.Get(ctx, Block(ro.block), Timeout(ro.timeout))
			if err != nil {
				if isCancelled(ctx, err) {
					log.Debug().Int("consumed", n).Msg("consume cancelled")
					return
				}
				log.Debug().Err(err).Int("consumed", n).Msg("consume failed")
				var zero T
				yield(zero, err)
				return
			}
			if !ok {
				log.Debug().Int("consumed", n).Msg("consume drained")
				return
			}
			n++
			if !yield(msg, nil) {
				return
			}
		}
	}
}

// Worker wraps fn so that calling the result drives Consume with opts and
// invokes fn once per message, in order, on the calling goroutine.
//
//	run := q.Worker(func(m Job) { process(m) }, hotqueue.Timeout(time.Second))
//	err := run(ctx)
func (q *Queue[T]) Worker(fn func(T), opts ...ReadOption) func(context.Context) error {
	return q.Handle(func(_ context.Context, msg T) error {
		fn(msg)
		return nil
	}, opts...)
}

// Handle is like Worker but fn may fail; the first error stops the loop
// and is returned.
func (q *Queue[T]) Handle(fn func(context.Context, T) error, opts ...ReadOption) func(context.Context) error {
	return func(ctx context.Context) error {
		for msg, err := range q.Consume(ctx, opts...) {
			if err != nil {
				return err
			}
			if err := fn(ctx, msg); err != nil {
				return err
			}
		}
		return nil
	}
}

func isCancelled(ctx context.Context, err error) bool {
	if ctx.Err() == nil {
		return false
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
