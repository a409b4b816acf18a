package async

import (
	"context"
	"fmt"
	"sync"
)

// Outcome is the per-item result of a batch execution. It is created
// once per item and never mutated afterwards.
type Outcome[T, R any] struct {
	Item   T
	Result R
	Err    error
}

// OK reports whether the item's transform succeeded
func (o Outcome[T, R]) OK() bool {
	return o.Err == nil
}

// Map runs fn over items with at most limit transforms in flight at
// once. Every item produces exactly one Outcome; a failing or panicking
// transform becomes a failed Outcome and never aborts its siblings.
// Outcomes are returned in completion order, not input order.
//
// limit >= len(items) degenerates to full parallelism and limit = 1 to
// strict sequential execution. An empty item slice returns an empty
// outcome slice immediately.
func Map[T, R any](ctx context.Context, items []T, limit int, fn func(context.Context, T) (R, error)) []Outcome[T, R] {
	if len(items) == 0 {
		return []Outcome[T, R]{}
	}
	if limit <= 0 {
		limit = 1
	}

	sem := make(chan struct{}, limit)
	results := make(chan Outcome[T, R], len(items))
	var wg sync.WaitGroup

	for _, item := range items {
		// Admission blocks here once limit transforms are in flight.
		sem <- struct{}{}
		wg.Add(1)
		go func(item T) {
			defer wg.Done()
			defer func() { <-sem }()
			results <- runOne(ctx, item, fn)
		}(item)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	outcomes := make([]Outcome[T, R], 0, len(items))
	for o := range results {
		outcomes = append(outcomes, o)
	}
	return outcomes
}

func runOne[T, R any](ctx context.Context, item T, fn func(context.Context, T) (R, error)) (out Outcome[T, R]) {
	out.Item = item
	defer func() {
		if r := recover(); r != nil {
			out.Err = fmt.Errorf("transform panicked: %v", r)
		}
	}()
	out.Result, out.Err = fn(ctx, item)
	return out
}
