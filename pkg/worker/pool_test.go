package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolProcessesWork(t *testing.T) {
	var processed atomic.Int64
	pool := NewPool[int](2, 16, func(_ context.Context, _ int) error {
		processed.Add(1)
		return nil
	})

	require.NoError(t, pool.Start(context.Background()))

	for i := 0; i < 10; i++ {
		require.NoError(t, pool.Submit(i))
	}

	require.NoError(t, pool.Stop(time.Second))
	assert.Equal(t, int64(10), processed.Load())

	stats := pool.Stats()
	assert.Equal(t, int64(10), stats.Submitted)
	assert.Equal(t, int64(10), stats.Processed)
	assert.Equal(t, int64(0), stats.Failed)
}

func TestPoolSubmitBeforeStart(t *testing.T) {
	pool := NewPool[int](1, 1, func(_ context.Context, _ int) error { return nil })
	assert.ErrorIs(t, pool.Submit(1), ErrPoolNotStarted)
}

func TestPoolSubmitAfterStop(t *testing.T) {
	pool := NewPool[int](1, 4, func(_ context.Context, _ int) error { return nil })
	require.NoError(t, pool.Start(context.Background()))
	require.NoError(t, pool.Stop(time.Second))

	assert.ErrorIs(t, pool.Submit(1), ErrPoolStopped)
}

func TestPoolNonBlockingSubmit(t *testing.T) {
	block := make(chan struct{})
	pool := NewPool[int](1, 1, func(_ context.Context, _ int) error {
		<-block
		return nil
	})
	require.NoError(t, pool.Start(context.Background()))

	// First item occupies the worker, second fills the queue. Further
	// submits must be rejected, never blocked.
	require.NoError(t, pool.Submit(1))
	require.NoError(t, pool.Submit(2))

	var sawFull bool
	deadline := time.After(time.Second)
	for !sawFull {
		select {
		case <-deadline:
			t.Fatal("submit never reported a full queue")
		default:
			if err := pool.Submit(3); errors.Is(err, ErrQueueFull) {
				sawFull = true
			}
		}
	}

	close(block)
	require.NoError(t, pool.Stop(time.Second))
	assert.Greater(t, pool.Stats().Dropped, int64(0))
}

func TestPoolCountsFailures(t *testing.T) {
	pool := NewPool[int](1, 4, func(_ context.Context, n int) error {
		if n%2 == 0 {
			return errors.New("even numbers fail")
		}
		return nil
	})
	require.NoError(t, pool.Start(context.Background()))

	for i := 0; i < 4; i++ {
		require.NoError(t, pool.Submit(i))
	}
	require.NoError(t, pool.Stop(time.Second))

	stats := pool.Stats()
	assert.Equal(t, int64(4), stats.Processed)
	assert.Equal(t, int64(2), stats.Failed)
}

func TestPoolDoubleStartAndStop(t *testing.T) {
	pool := NewPool[int](1, 1, func(_ context.Context, _ int) error { return nil })
	require.NoError(t, pool.Start(context.Background()))
	assert.ErrorIs(t, pool.Start(context.Background()), ErrPoolAlreadyStarted)

	require.NoError(t, pool.Stop(time.Second))
	require.NoError(t, pool.Stop(time.Second)) // idempotent
}
