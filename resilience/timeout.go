package resilience

import (
	"context"
	"time"
)

// ExecuteWithTimeout runs op under a deadline of d from now.
//
// The operation runs in its own goroutine with a context that is canceled
// when the deadline passes, so every caller blocked on the result is
// released in bounded time even when op ignores cancellation and hangs.
// A deadline miss returns ErrTimeout; cancellation of ctx itself returns
// ctx.Err(); otherwise op's own error is returned. When d <= 0 no extra
// deadline is applied and op is bounded by ctx alone.
//
// An abandoned op keeps running until it observes its canceled context;
// its eventual return value is discarded.
func ExecuteWithTimeout(ctx context.Context, d time.Duration, op func(context.Context) error) error {
	if d <= 0 {
		return op(ctx)
	}

	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	// Buffered so the goroutine can exit after the result is abandoned.
	done := make(chan error, 1)
	go func() {
		done <- op(ctx)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return ErrTimeout
		}
		return ctx.Err()
	}
}
