package engine

import (
	"context"
	"fmt"
	"runtime/debug"
)

// MapResult holds the outcome for a single input item. Err is set when
// the worker failed for that item; interpreting a failed slot is the
// caller's job, the mapper only fans out and fans in.
type MapResult[R any] struct {
	Index int
	Value R
	Err   error
}

// Failed reports whether any slot carries an error.
func Failed[R any](results []MapResult[R]) bool {
	for _, r := range results {
		if r.Err != nil {
			return true
		}
	}
	return false
}

// Map applies worker to every item with at most concurrency invocations
// in flight, and returns results in input order regardless of completion
// order. concurrency <= 0 means sequential; the effective limit is capped
// at len(items). A failing or panicking worker only poisons its own slot
// — the batch always runs to completion.
func Map[T, R any](ctx context.Context, items []T, concurrency int, worker func(ctx context.Context, index int, item T) (R, error)) []MapResult[R] {
	results := make([]MapResult[R], len(items))
	if len(items) == 0 {
		return results
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	if concurrency > len(items) {
		concurrency = len(items)
	}

	sem := make(chan struct{}, concurrency)
	done := make(chan int, len(items))

	for i := range items {
		go func(idx int, item T) {
			sem <- struct{}{}
			defer func() { <-sem }()
			defer func() { done <- idx }()
			// Each goroutine writes only its own slot, so no locking is
			// needed around results.
			defer func() {
				if r := recover(); r != nil {
					results[idx].Err = fmt.Errorf("worker panic: %v\n%s", r, debug.Stack())
				}
			}()
			results[idx].Index = idx
			results[idx].Value, results[idx].Err = worker(ctx, idx, item)
		}(i, items[i])
	}

	for range items {
		<-done
	}
	return results
}
