package retry

import (
	"context"
	"time"

	"dikto/errs"
)

// Per-operation deadline budgets. API calls get generous headroom for
// larger payloads; keystroke simulation is expected sub-second and
// fails fast.
const (
	TranscribeTimeout = 30 * time.Second
	CleanTimeout      = 15 * time.Second
	EditTimeout       = 20 * time.Second
	ClipboardTimeout  = 2 * time.Second
)

// WithTimeout races op against a deadline. If the deadline fires first
// the result is a Timeout-category error naming the operation, and op's
// eventual outcome is discarded. The derived context is cancelled either
// way so a context-aware op can stop early.
func WithTimeout[T any](ctx context.Context, name string, d time.Duration, op func(ctx context.Context) (T, error)) (T, error) {
	opCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type outcome struct {
		v   T
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		v, err := op(opCtx)
		done <- outcome{v, err}
	}()

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case o := <-done:
		return o.v, o.err
	case <-timer.C:
		var zero T
		return zero, errs.TimeoutError(name, d)
	}
}
