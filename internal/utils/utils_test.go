package utils

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fakeTimer(t *testing.T) *[]time.Duration {
	t.Helper()

	original := newTimer
	t.Cleanup(func() { newTimer = original })

	var durations []time.Duration
	newTimer = func(d time.Duration) (<-chan time.Time, func() bool) {
		durations = append(durations, d)
		ch := make(chan time.Time, 1)
		ch <- time.Time{}
		return ch, func() bool { return true }
	}
	return &durations
}

func TestPause(t *testing.T) {
	tests := []struct {
		name      string
		d         time.Duration
		wantTimer []time.Duration
	}{
		{name: "positive", d: 2 * time.Second, wantTimer: []time.Duration{2 * time.Second}},
		{name: "zero", d: 0},
		{name: "negative", d: -time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			requested := fakeTimer(t)

			if err := Pause(context.Background(), tt.d); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(*requested) != len(tt.wantTimer) {
				t.Fatalf("expected timers %v, got %v", tt.wantTimer, *requested)
			}
			for i := range tt.wantTimer {
				if (*requested)[i] != tt.wantTimer[i] {
					t.Fatalf("expected timers %v, got %v", tt.wantTimer, *requested)
				}
			}
		})
	}
}

func TestPauseStopsTimerOnCancellation(t *testing.T) {
	original := newTimer
	t.Cleanup(func() { newTimer = original })

	stopped := false
	newTimer = func(time.Duration) (<-chan time.Time, func() bool) {
		return make(chan time.Time), func() bool { stopped = true; return true }
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := Pause(ctx, time.Minute); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if !stopped {
		t.Fatalf("expected the timer to be stopped")
	}
}

func TestPauseReportsCancelledContextWithoutDelay(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := Pause(ctx, 0); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
