// Package parallel provides a generic worker pool used to weave targets concurrently.
package parallel

import (
	"context"
	"runtime"
	"sync"
	"time"
)

// PoolConfig configures the worker pool behavior.
type PoolConfig struct {
	// MaxWorkers is the maximum number of concurrent workers.
	// Default: min(runtime.NumCPU(), 8)
	MaxWorkers int

	// TaskBufferSize is the buffer size for the task channel.
	// Default: MaxWorkers * 2
	TaskBufferSize int

	// Timeout is the maximum time for the entire operation.
	// Default: 0 (no timeout)
	Timeout time.Duration

	// CollectMetrics enables collection of execution metrics.
	CollectMetrics bool
}

// DefaultPoolConfig returns a default pool configuration.
func DefaultPoolConfig() PoolConfig {
	workers := runtime.NumCPU()
	if workers > 8 {
		workers = 8
	}
	if workers < 2 {
		workers = 2
	}
	return PoolConfig{
		MaxWorkers:     workers,
		TaskBufferSize: workers * 2,
	}
}

// WithWorkers returns a new config with the specified number of workers.
func (c PoolConfig) WithWorkers(n int) PoolConfig {
	c.MaxWorkers = n
	return c
}

// WithTimeout returns a new config with the specified timeout.
func (c PoolConfig) WithTimeout(d time.Duration) PoolConfig {
	c.Timeout = d
	return c
}

// WithMetrics returns a new config with metrics collection enabled.
func (c PoolConfig) WithMetrics() PoolConfig {
	c.CollectMetrics = true
	return c
}

// PoolMetrics holds execution statistics.
type PoolMetrics struct {
	TotalTasks     int64
	CompletedTasks int64
	FailedTasks    int64
	TotalDuration  time.Duration
	MaxTaskTime    time.Duration
}

// WorkerFunc processes one input on the worker identified by workerID.
// Worker IDs are dense, starting at 0, and stable for the worker's lifetime,
// so callers can keep per-worker state without locking.
type WorkerFunc[T any, R any] func(ctx context.Context, workerID int, input T) (R, error)

// TaskResult holds the result of a task execution.
type TaskResult[T any, R any] struct {
	Input    T
	Result   R
	Error    error
	WorkerID int
	Duration time.Duration
}

// WorkerPool manages a pool of workers for parallel task execution.
type WorkerPool[T any, R any] struct {
	config  PoolConfig
	metrics PoolMetrics
	mu      sync.Mutex
}

// NewWorkerPool creates a new worker pool with the given configuration.
func NewWorkerPool[T any, R any](config PoolConfig) *WorkerPool[T, R] {
	if config.MaxWorkers <= 0 {
		config.MaxWorkers = DefaultPoolConfig().MaxWorkers
	}
	if config.TaskBufferSize <= 0 {
		config.TaskBufferSize = config.MaxWorkers * 2
	}
	return &WorkerPool[T, R]{config: config}
}

// Workers returns the configured number of workers.
func (p *WorkerPool[T, R]) Workers() int {
	return p.config.MaxWorkers
}

// ExecuteFunc runs fn for every input and returns results in input order.
// Inputs not processed because the context ended carry the context error.
func (p *WorkerPool[T, R]) ExecuteFunc(ctx context.Context, inputs []T, fn WorkerFunc[T, R]) []TaskResult[T, R] {
	if len(inputs) == 0 {
		return nil
	}

	startTime := time.Now()

	if p.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.Timeout)
		defer cancel()
	}

	results := make([]TaskResult[T, R], len(inputs))
	done := make([]bool, len(inputs))
	taskCh := make(chan int, p.config.TaskBufferSize)

	var wg sync.WaitGroup
	numWorkers := min(p.config.MaxWorkers, len(inputs))

	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for idx := range taskCh {
				if ctx.Err() != nil {
					continue
				}
				taskStart := time.Now()
				result, err := fn(ctx, workerID, inputs[idx])
				duration := time.Since(taskStart)

				results[idx] = TaskResult[T, R]{
					Input:    inputs[idx],
					Result:   result,
					Error:    err,
					WorkerID: workerID,
					Duration: duration,
				}
				done[idx] = true

				if p.config.CollectMetrics {
					p.updateMetrics(duration, err)
				}
			}
		}(w)
	}

submit:
	for i := range inputs {
		select {
		case <-ctx.Done():
			break submit
		case taskCh <- i:
		}
	}
	close(taskCh)
	wg.Wait()

	for i := range results {
		if !done[i] {
			results[i] = TaskResult[T, R]{Input: inputs[i], Error: ctx.Err(), WorkerID: -1}
		}
	}

	if p.config.CollectMetrics {
		p.mu.Lock()
		p.metrics.TotalDuration = time.Since(startTime)
		p.mu.Unlock()
	}

	return results
}

// updateMetrics updates the pool metrics (thread-safe).
func (p *WorkerPool[T, R]) updateMetrics(duration time.Duration, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.metrics.TotalTasks++
	if err != nil {
		p.metrics.FailedTasks++
	} else {
		p.metrics.CompletedTasks++
	}
	if duration > p.metrics.MaxTaskTime {
		p.metrics.MaxTaskTime = duration
	}
}

// Metrics returns the current execution metrics.
func (p *WorkerPool[T, R]) Metrics() PoolMetrics {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.metrics
}

// ForEach executes fn for each item in parallel and returns the error of the
// first failing item in input order.
func ForEach[T any](ctx context.Context, items []T, config PoolConfig, fn WorkerFunc[T, struct{}]) error {
	pool := NewWorkerPool[T, struct{}](config)
	for _, r := range pool.ExecuteFunc(ctx, items, fn) {
		if r.Error != nil {
			return r.Error
		}
	}
	return nil
}
