package hw

import (
	"context"
	"time"
)

// Call runs fn with a deadline of timeout. If fn does not return in time the
// result is abandoned and ErrTimeout is returned; fn keeps running in its own
// goroutine until the underlying operation completes.
func Call[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	opCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		value T
		err   error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn(opCtx)
		done <- result{value: v, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil && opCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			return zero, Wrap(ErrTimeout, "", "", r.err)
		}
		return r.value, r.err
	case <-opCtx.Done():
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		return zero, Wrap(ErrTimeout, "", "", opCtx.Err())
	}
}
