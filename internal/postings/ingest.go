package postings

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/spigell/apply-assistant/internal/logger"
	"github.com/spigell/apply-assistant/internal/store"
)

// ErrNoAnalyzer is returned when analysis is requested but no model is configured.
var ErrNoAnalyzer = errors.New("posting analysis is not configured")

// Store persists postings.
type Store interface {
	SavePosting(ctx context.Context, p store.Posting) (store.Posting, error)
}

type IngestReport struct {
	Stored   []store.Posting
	Analyzed int
	Failed   int
}

type Ingester struct {
	store    Store
	analyzer *Analyzer
	logger   *zap.Logger
}

// NewIngester returns an ingester. analyzer may be nil when postings are
// only stored.
func NewIngester(s Store, analyzer *Analyzer, logger *zap.Logger) *Ingester {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ingester{store: s, analyzer: analyzer, logger: logger}
}

// Ingest stores the postings for the user. With analyze set every posting is
// summarised first; a failed analysis is logged and the posting is stored as
// scraped.
func (i *Ingester) Ingest(ctx context.Context, userID string, postings []store.Posting, analyze bool) (*IngestReport, error) {
	if analyze && i.analyzer == nil {
		return nil, ErrNoAnalyzer
	}

	log := logger.WithUser(i.logger, userID)
	report := &IngestReport{}

	for _, p := range postings {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		p.UserID = userID
		if id := ownedID(userID, p.ID); id != "" {
			p.ID = id
		}

		if analyze {
			analysis, err := i.analyzer.Analyze(ctx, p)
			if err != nil {
				if ctx.Err() != nil {
					return report, ctx.Err()
				}
				report.Failed++
				log.Warn("posting analysis failed, storing it as scraped",
					zap.String("title", p.Title),
					zap.Error(err),
				)
			} else {
				report.Analyzed++
				p.Summary = analysis.Summary
				p.Skills = analysis.Skills
				log.Debug("posting analyzed",
					zap.String("title", p.Title),
					zap.String("seniority", analysis.Seniority),
					zap.Bool("fit", analysis.Fit),
					zap.Float64("score", analysis.Score),
				)
			}
		}

		saved, err := i.store.SavePosting(ctx, p)
		if err != nil {
			return report, fmt.Errorf("storing posting %q: %w", p.Title, err)
		}
		report.Stored = append(report.Stored, saved)
	}

	log.Info("postings ingested",
		zap.Int("stored", len(report.Stored)),
		zap.Int("analyzed", report.Analyzed),
		zap.Int("failed", report.Failed),
	)

	return report, nil
}
