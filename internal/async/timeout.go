package async

import (
	"context"
	"errors"
	"time"
)

// ErrTimeout is returned when an operation does not settle before its
// deadline.
var ErrTimeout = errors.New("operation timed out")

// WithTimeout races op against a deadline. A context carrying the
// deadline is passed into op so cooperative operations cancel promptly,
// but the race does not depend on op honoring it: once the deadline
// fires the racer returns ErrTimeout and the late result, if any, is
// discarded. The caller must not assume a timed-out op stopped running.
func WithTimeout[T any](ctx context.Context, timeout time.Duration, op func(context.Context) (T, error)) (T, error) {
	opCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type settled struct {
		val T
		err error
	}

	// Buffered so the op goroutine can always deliver and exit.
	done := make(chan settled, 1)
	go func() {
		val, err := op(opCtx)
		done <- settled{val: val, err: err}
	}()

	select {
	case s := <-done:
		return s.val, s.err
	case <-opCtx.Done():
		var zero T
		if err := ctx.Err(); err != nil {
			// Parent cancellation, not a deadline.
			return zero, err
		}
		return zero, ErrTimeout
	}
}
