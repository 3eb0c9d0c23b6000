package controlloop

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"hddfancontrol/internal/hw"
)

type outcome[T any] struct {
	value T
	err   error
	ran   bool
}

// fanOut runs the operations returned by op on at most workers goroutines,
// each bounded by timeout. A nil operation is skipped and reported as not
// ran. Results are indexed like the input.
func fanOut[T any](ctx context.Context, workers int, timeout time.Duration, n int, op func(i int) func(context.Context) (T, error)) []outcome[T] {
	results := make([]outcome[T], n)
	var g errgroup.Group
	g.SetLimit(workers)
	for i := range n {
		fn := op(i)
		if fn == nil {
			continue
		}
		g.Go(func() error {
			v, err := hw.Call(ctx, timeout, fn)
			results[i] = outcome[T]{value: v, err: err, ran: true}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// gate admits one operation at a time on a unit. An operation abandoned by
// its timeout keeps the gate until it really returns.
type gate chan struct{}

func newGate() gate { return make(gate, 1) }

// exclusive wraps fn so it runs only while it holds g. Waiting for an
// earlier operation counts against the caller's deadline, so a unit that
// stays hung fails every tick without piling up goroutines behind it.
func exclusive[T any](g gate, unit string, fn func(context.Context) (T, error)) func(context.Context) (T, error) {
	return func(ctx context.Context) (T, error) {
		select {
		case g <- struct{}{}:
		case <-ctx.Done():
			var zero T
			return zero, hw.Wrap(hw.ErrTimeout, unit, "previous operation still running", ctx.Err())
		}
		defer func() { <-g }()
		return fn(ctx)
	}
}
