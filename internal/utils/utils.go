package utils

import (
	"context"
	"time"
)

// newTimer is swapped in tests to avoid real waits.
var newTimer = func(d time.Duration) (<-chan time.Time, func() bool) {
	t := time.NewTimer(d)
	return t.C, t.Stop
}

// Pause blocks for d. It returns ctx.Err() as soon as the context is done and
// releases the timer in that case. Non-positive durations return at once.
func Pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	fired, stop := newTimer(d)
	select {
	case <-ctx.Done():
		stop()
		return ctx.Err()
	case <-fired:
		return nil
	}
}
