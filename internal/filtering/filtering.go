// Package filtering drops scraped postings before they are ingested.
package filtering

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spigell/apply-assistant/internal/store"
)

// Filter is a single filtering step.
type Filter interface {
	Name() string
	IsEnabled() bool
	Apply(ctx context.Context, postings []store.Posting) ([]store.Posting, Step, error)
}

// Step describes the result of executing a filtering step.
type Step struct {
	Initial int
	Dropped int
	Left    int
}

func step(initial, left int) Step {
	return Step{Initial: initial, Dropped: initial - left, Left: left}
}

// Status represents runtime information about a filter.
type Status struct {
	Name    string
	Enabled bool
	Details map[string]string
}

type statusProvider interface {
	Status() Status
}

// Run executes the enabled filters in order and returns what is left.
func Run(ctx context.Context, steps []Filter, postings []store.Posting, logger *zap.Logger) ([]store.Posting, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	for _, f := range steps {
		if !f.IsEnabled() {
			logger.Debug("filter disabled", zap.String("name", f.Name()))
			continue
		}

		next, info, err := f.Apply(ctx, postings)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.Name(), err)
		}

		logger.Info("filter step",
			zap.String("name", f.Name()),
			zap.Int("initial", info.Initial),
			zap.Int("dropped", info.Dropped),
			zap.Int("left", info.Left),
		)
		postings = next

		if len(postings) == 0 {
			break
		}
	}

	return postings, nil
}

// Describe returns status entries for the provided filters.
func Describe(steps []Filter) []Status {
	statuses := make([]Status, 0, len(steps))
	for _, f := range steps {
		if reporter, ok := f.(statusProvider); ok {
			statuses = append(statuses, reporter.Status())
			continue
		}
		statuses = append(statuses, Status{Name: f.Name(), Enabled: f.IsEnabled()})
	}
	return statuses
}

func keep(postings []store.Posting, drop func(store.Posting) bool) []store.Posting {
	out := make([]store.Posting, 0, len(postings))
	for _, p := range postings {
		if !drop(p) {
			out = append(out, p)
		}
	}
	return out
}
