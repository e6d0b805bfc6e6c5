package ai

import (
	"context"
	"time"

	"github.com/spigell/apply-assistant/internal/utils"
)

type delayed struct {
	next  Answerer
	delay time.Duration
}

// WithDelay waits d before every call to a. Providers with strict request
// rate limits need the pause between consecutive completions.
func WithDelay(a Answerer, d time.Duration) Answerer {
	if d <= 0 {
		return a
	}
	return &delayed{next: a, delay: d}
}

func (d *delayed) Answer(ctx context.Context, turns []Turn) (string, error) {
	if err := utils.Pause(ctx, d.delay); err != nil {
		return "", err
	}
	return d.next.Answer(ctx, turns)
}

func (d *delayed) Model() string { return d.next.Model() }
