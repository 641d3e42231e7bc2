// Package parallel provides the worker scheduling primitives used by the
// estimators and the selection harness.
package parallel

import (
	"context"
	"runtime"
	"sync"
)

// Parallelize divides the specified total number (items) according to the
// number of CPU cores, and executes the specified function (fn) in parallel
// for each range (start, end).
func Parallelize(items int, fn func(start, end int)) {
	if items == 0 {
		return
	}

	numWorkers := runtime.NumCPU()
	if numWorkers > items {
		numWorkers = items // No need for more workers than items
	}

	// Number of items each worker handles (ceiling division)
	chunkSize := (items + numWorkers - 1) / numWorkers

	var wg sync.WaitGroup

	for i := 0; i < numWorkers; i++ {
		start := i * chunkSize
		end := start + chunkSize
		if end > items {
			end = items
		}

		if start >= end {
			continue
		}

		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			fn(s, e)
		}(start, end)
	}

	wg.Wait()
}

// ParallelizeWithThreshold performs parallelization only when the number of
// items exceeds the threshold. Below the threshold the work runs sequentially.
func ParallelizeWithThreshold(items int, threshold int, fn func(start, end int)) {
	if items <= threshold {
		fn(0, items)
		return
	}

	Parallelize(items, fn)
}

// Pool dispatches independent tasks to a bounded set of workers. Unlike
// Parallelize it is context-aware: cancelling the context stops the
// dispatch of new tasks while tasks already picked up run to completion,
// so no worker resource is leaked mid-task.
type Pool struct {
	workers int
}

// NewPool creates a Pool with the given worker count. A count below 1
// falls back to the number of CPU cores.
func NewPool(workers int) *Pool {
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	return &Pool{workers: workers}
}

// Workers returns the configured worker count.
func (p *Pool) Workers() int {
	return p.workers
}

// Run executes task(i) for i in [0, n) across the pool's workers and waits
// for all dispatched tasks to finish. Tasks write their own results, indexed
// by i, so the reduction order is the caller's to control.
//
// When the context is cancelled, undisbursed indices are abandoned and Run
// returns ctx.Err() after in-flight tasks complete. Otherwise Run returns
// the first task error by index order, or nil.
func (p *Pool) Run(ctx context.Context, n int, task func(i int) error) error {
	if n == 0 {
		return nil
	}

	workers := p.workers
	if workers > n {
		workers = n
	}

	indices := make(chan int)
	taskErrs := make([]error, n)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indices {
				taskErrs[i] = task(i)
			}
		}()
	}

	var cancelled bool
dispatch:
	for i := 0; i < n; i++ {
		select {
		case <-ctx.Done():
			cancelled = true
			break dispatch
		case indices <- i:
		}
	}
	close(indices)

	wg.Wait()

	if cancelled {
		return ctx.Err()
	}
	for _, err := range taskErrs {
		if err != nil {
			return err
		}
	}
	return nil
}
