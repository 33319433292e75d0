package parallel

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerPool_ExecuteFuncKeepsOrder(t *testing.T) {
	pool := NewWorkerPool[int, int](DefaultPoolConfig())

	inputs := []int{1, 2, 3, 4, 5}
	results := pool.ExecuteFunc(context.Background(), inputs, func(ctx context.Context, workerID int, input int) (int, error) {
		return input * 2, nil
	})

	require.Len(t, results, len(inputs))
	for i, r := range results {
		assert.NoError(t, r.Error)
		assert.Equal(t, inputs[i]*2, r.Result)
		assert.GreaterOrEqual(t, r.WorkerID, 0)
	}
}

func TestWorkerPool_WorkerIDsAreDense(t *testing.T) {
	pool := NewWorkerPool[int, int](PoolConfig{MaxWorkers: 3})

	var mu sync.Mutex
	seen := map[int]bool{}
	inputs := make([]int, 30)
	pool.ExecuteFunc(context.Background(), inputs, func(ctx context.Context, workerID int, input int) (int, error) {
		mu.Lock()
		seen[workerID] = true
		mu.Unlock()
		return 0, nil
	})

	for id := range seen {
		assert.True(t, id >= 0 && id < 3, "worker id %d out of range", id)
	}
	assert.Equal(t, 3, pool.Workers())
}

func TestWorkerPool_Timeout(t *testing.T) {
	pool := NewWorkerPool[int, int](PoolConfig{MaxWorkers: 1}.WithTimeout(20 * time.Millisecond))

	inputs := make([]int, 10)
	results := pool.ExecuteFunc(context.Background(), inputs, func(ctx context.Context, workerID int, input int) (int, error) {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(50 * time.Millisecond):
			return input, nil
		}
	})

	require.Len(t, results, 10)
	failed := 0
	for _, r := range results {
		if r.Error != nil {
			failed++
		}
	}
	assert.Greater(t, failed, 0)
}

func TestWorkerPool_Metrics(t *testing.T) {
	pool := NewWorkerPool[int, int](DefaultPoolConfig().WithWorkers(2).WithMetrics())

	pool.ExecuteFunc(context.Background(), []int{1, 2, 3}, func(ctx context.Context, workerID int, input int) (int, error) {
		if input == 2 {
			return 0, errors.New("boom")
		}
		return input, nil
	})

	m := pool.Metrics()
	assert.Equal(t, int64(3), m.TotalTasks)
	assert.Equal(t, int64(2), m.CompletedTasks)
	assert.Equal(t, int64(1), m.FailedTasks)
}

func TestForEach_FirstErrorInInputOrder(t *testing.T) {
	errA := errors.New("a")
	errB := errors.New("b")

	err := ForEach(context.Background(), []int{0, 1, 2, 3}, PoolConfig{MaxWorkers: 4}, func(ctx context.Context, workerID int, item int) (struct{}, error) {
		switch item {
		case 1:
			time.Sleep(10 * time.Millisecond)
			return struct{}{}, errA
		case 3:
			return struct{}{}, errB
		}
		return struct{}{}, nil
	})
	assert.Equal(t, errA, err)

	assert.NoError(t, ForEach(context.Background(), nil, DefaultPoolConfig(), func(ctx context.Context, workerID int, item int) (struct{}, error) {
		return struct{}{}, errA
	}))
}
