package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_ProcessesSubmittedWork(t *testing.T) {
	var mu sync.Mutex
	var got []int

	pool := NewPool(2, 10, func(_ context.Context, n int) error {
		mu.Lock()
		got = append(got, n)
		mu.Unlock()
		return nil
	})

	require.NoError(t, pool.Start(context.Background()))
	for i := 0; i < 5; i++ {
		require.NoError(t, pool.Submit(i))
	}
	require.NoError(t, pool.Stop(time.Second))

	assert.Len(t, got, 5)
	stats := pool.Stats()
	assert.Equal(t, int64(5), stats.Submitted)
	assert.Equal(t, int64(5), stats.Processed)
	assert.Equal(t, int64(0), stats.Dropped)
}

func TestPool_SingleWorkerPreservesOrder(t *testing.T) {
	var mu sync.Mutex
	var got []int

	pool := NewPool(1, 100, func(_ context.Context, n int) error {
		mu.Lock()
		got = append(got, n)
		mu.Unlock()
		return nil
	})

	require.NoError(t, pool.Start(context.Background()))
	for i := 0; i < 50; i++ {
		require.NoError(t, pool.Submit(i))
	}
	require.NoError(t, pool.Stop(time.Second))

	require.Len(t, got, 50)
	for i, n := range got {
		assert.Equal(t, i, n)
	}
}

func TestPool_SubmitBeforeStart(t *testing.T) {
	pool := NewPool(1, 1, func(_ context.Context, _ int) error { return nil })
	assert.ErrorIs(t, pool.Submit(1), ErrPoolNotStarted)
}

func TestPool_SubmitAfterStop(t *testing.T) {
	pool := NewPool(1, 1, func(_ context.Context, _ int) error { return nil })
	require.NoError(t, pool.Start(context.Background()))
	require.NoError(t, pool.Stop(time.Second))
	assert.ErrorIs(t, pool.Submit(1), ErrPoolStopped)
}

func TestPool_QueueFullDropsWork(t *testing.T) {
	block := make(chan struct{})
	pool := NewPool(1, 1, func(_ context.Context, _ int) error {
		<-block
		return nil
	})

	require.NoError(t, pool.Start(context.Background()))

	// First item occupies the worker, second fills the queue. The worker
	// may not have picked up the first item yet, so allow one extra.
	var dropErr error
	for i := 0; i < 3; i++ {
		if err := pool.Submit(i); err != nil {
			dropErr = err
			break
		}
	}
	assert.ErrorIs(t, dropErr, ErrQueueFull)
	assert.GreaterOrEqual(t, pool.Stats().Dropped, int64(1))

	close(block)
	require.NoError(t, pool.Stop(time.Second))
}

func TestPool_DoubleStart(t *testing.T) {
	pool := NewPool(1, 1, func(_ context.Context, _ int) error { return nil })
	require.NoError(t, pool.Start(context.Background()))
	assert.ErrorIs(t, pool.Start(context.Background()), ErrPoolAlreadyStarted)
	require.NoError(t, pool.Stop(time.Second))
}

func TestPool_FailedWorkCounted(t *testing.T) {
	pool := NewPool(1, 10, func(_ context.Context, n int) error {
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

func TestNewPool_NilProcessorPanics(t *testing.T) {
	assert.Panics(t, func() {
		NewPool[int](1, 1, nil)
	})
}
