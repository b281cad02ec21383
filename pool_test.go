package hotqueue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWorkerPool(t *testing.T) {
	_, c := newTestRedis(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	q := mustNewQueue[int](t, c, "pool")

	const total = 50
	msgs := make([]int, total)
	for i := range msgs {
		msgs[i] = i
	}
	require.NoError(t, q.Put(ctx, msgs...))

	var (
		mu   sync.Mutex
		seen = map[int]int{}
	)
	pool := NewWorkerPool(q, func(ctx context.Context, n int) error {
		mu.Lock()
		seen[n]++
		mu.Unlock()
		time.Sleep(time.Millisecond)
		return nil
	},
		WithWorkerCount(5),
		WithReadOptions(Timeout(time.Second)),
	)

	require.NoError(t, pool.Run(ctx))
	require.EqualValues(t, total, pool.Processed())
	require.Len(t, seen, total)
	for n, count := range seen {
		require.Equal(t, 1, count, "message %d delivered more than once", n)
	}

	n, err := q.Len(ctx)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestWorkerPool_NonBlockingDrain(t *testing.T) {
	_, c := newTestRedis(t)
	ctx := context.Background()
	q := mustNewQueue[string](t, c, "pool")
	require.NoError(t, q.Put(ctx, "a", "b", "c"))

	var got []string
	pool := NewWorkerPool(q, func(_ context.Context, s string) error {
		got = append(got, s)
		return nil
	}, WithReadOptions(Block(false)), WithWorkerCount(0))

	require.NoError(t, pool.Run(ctx))
	require.Equal(t, []string{"a", "b", "c"}, got, "a single worker keeps FIFO order")
}

func TestWorkerPool_ErrorStopsAll(t *testing.T) {
	_, c := newTestRedis(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	q := mustNewQueue[string](t, c, "pool")
	require.NoError(t, q.Put(ctx, "ok", "bad"))

	boom := errors.New("boom")
	pool := NewWorkerPool(q, func(_ context.Context, s string) error {
		if s == "bad" {
			return fmt.Errorf("handle %q: %w", s, boom)
		}
		return nil
	}, WithWorkerCount(3))

	// Blocking consumers without a timeout only stop because the failure
	// cancels them.
	start := time.Now()
	require.ErrorIs(t, pool.Run(ctx), boom)
	require.Less(t, time.Since(start), 5*time.Second)
	require.EqualValues(t, 1, pool.Processed())
}

func TestWorkerPool_CancelIsClean(t *testing.T) {
	_, c := newTestRedis(t)
	q := mustNewQueue[string](t, c, "pool")

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	pool := NewWorkerPool(q, func(context.Context, string) error { return nil }, WithWorkerCount(2))
	require.NoError(t, pool.Run(ctx))
	require.Zero(t, pool.Processed())
}
