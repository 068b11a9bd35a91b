package book

import (
	"context"
	"runtime"
	"sync"
)

// ProgressCallback receives batch progress events.
type ProgressCallback interface {
	OnStart(total int)
	OnProgress(done, total int)
	OnComplete()
}

// WorkerConfig bounds a per-stage worker pool.
type WorkerConfig struct {
	// MaxWorkers caps concurrency; 0 means runtime.NumCPU().
	MaxWorkers int
	// MemoryBudgetBytes and PeakPageBytes further cap workers to
	// budget/page so the working set stays bounded. Zero disables the
	// cap.
	MemoryBudgetBytes uint64
	PeakPageBytes     uint64
	// Progress is optional.
	Progress ProgressCallback
}

// EffectiveWorkers resolves the worker count for n items.
func (c WorkerConfig) EffectiveWorkers(n int) int {
	workers := c.MaxWorkers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if c.MemoryBudgetBytes > 0 && c.PeakPageBytes > 0 {
		byMemory := int(c.MemoryBudgetBytes / c.PeakPageBytes)
		if byMemory < 1 {
			byMemory = 1
		}
		if workers > byMemory {
			workers = byMemory
		}
	}
	if workers > n {
		workers = n
	}
	if workers < 1 {
		workers = 1
	}
	return workers
}

type pageJob struct {
	index int
}

type pageResult[T any] struct {
	index int
	value T
	err   error
}

// MapPages runs fn over page indices [0, n) on a bounded worker pool.
// Results come back indexed, so aggregation order never depends on
// scheduling. The context is checked between pages: in-flight pages
// complete, no new page begins after cancellation.
func MapPages[T any](ctx context.Context, n int, cfg WorkerConfig, fn func(ctx context.Context, pageIndex int) (T, error)) ([]T, []error) {
	values := make([]T, n)
	errs := make([]error, n)
	if n == 0 {
		return values, errs
	}

	if cfg.Progress != nil {
		cfg.Progress.OnStart(n)
		defer cfg.Progress.OnComplete()
	}

	workers := cfg.EffectiveWorkers(n)
	jobs := make(chan pageJob, n)
	results := make(chan pageResult[T], n)

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case job, ok := <-jobs:
					if !ok {
						return
					}
					if ctx.Err() != nil {
						return
					}
					value, err := fn(ctx, job.index)
					select {
					case results <- pageResult[T]{index: job.index, value: value, err: err}:
					case <-ctx.Done():
						return
					}
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i := range n {
			select {
			case jobs <- pageJob{index: i}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	seen := make([]bool, n)
	done := 0
	for res := range results {
		values[res.index] = res.value
		errs[res.index] = res.err
		seen[res.index] = true
		done++
		if cfg.Progress != nil {
			cfg.Progress.OnProgress(done, n)
		}
	}

	// Pages never started before cancellation report the context error.
	if err := ctx.Err(); err != nil {
		for i := range errs {
			if !seen[i] {
				errs[i] = err
			}
		}
	}
	return values, errs
}

// ForEachPage is MapPages without a value.
func ForEachPage(ctx context.Context, n int, cfg WorkerConfig, fn func(ctx context.Context, pageIndex int) error) []error {
	_, errs := MapPages(ctx, n, cfg, func(ctx context.Context, i int) (struct{}, error) {
		return struct{}{}, fn(ctx, i)
	})
	return errs
}
