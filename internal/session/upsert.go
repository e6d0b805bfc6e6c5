package session

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spigell/apply-assistant/internal/logger"
	"github.com/spigell/apply-assistant/internal/store"
	"github.com/spigell/apply-assistant/internal/vectorindex"
)

// UpsertReport summarizes a bulk upsert.
type UpsertReport struct {
	UserID  string
	Indexed int
	// Skipped lists question ids whose text normalized to nothing.
	Skipped []string
}

// UpsertUserQuestions embeds every question the user answered and writes
// them to the index tagged with the user as owner. An empty userID indexes
// all stored questions without owner metadata.
func (s *Session) UpsertUserQuestions(ctx context.Context, userID string) (*UpsertReport, error) {
	log := logger.WithUser(s.logger, userID)
	report := &UpsertReport{UserID: userID}

	questions, err := s.questions(ctx, userID)
	if err != nil {
		return nil, err
	}

	if len(questions) == 0 {
		log.Warn("no questions found, nothing to upsert")
		return report, nil
	}

	ids := make([]string, 0, len(questions))
	docs := make([][]string, 0, len(questions))
	for _, q := range questions {
		tokens := s.normalizer.Normalize(q.Text)
		if len(tokens) == 0 {
			log.Warn("question has no indexable words, skipping",
				zap.String(logger.FieldQuestionID, q.ID),
			)
			report.Skipped = append(report.Skipped, q.ID)
			continue
		}
		ids = append(ids, q.ID)
		docs = append(docs, tokens)
	}

	if len(docs) == 0 {
		return report, nil
	}

	vectors, err := s.embedder.Embed(ctx, docs)
	if err != nil {
		return nil, fmt.Errorf("embedding questions: %w", err)
	}

	metadata := vectorindex.OwnerMetadata(userID)
	entries := make([]vectorindex.Entry, len(ids))
	for i, id := range ids {
		entries[i] = vectorindex.Entry{ID: id, Vector: vectors[i], Metadata: metadata}
	}

	if err := s.index.Upsert(ctx, entries); err != nil {
		return nil, fmt.Errorf("upserting questions: %w", err)
	}

	report.Indexed = len(entries)
	log.Info("questions vectorized and upserted",
		zap.Int("indexed", report.Indexed),
		zap.Int("skipped", len(report.Skipped)),
	)

	return report, nil
}

func (s *Session) questions(ctx context.Context, userID string) ([]store.Question, error) {
	if userID == "" {
		qs, err := s.store.AllQuestions(ctx)
		if err != nil {
			return nil, fmt.Errorf("loading questions: %w", err)
		}
		return qs, nil
	}

	qs, err := s.store.QuestionsForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading questions for user: %w", err)
	}
	return qs, nil
}

// DeleteQuestions removes the questions from the index.
func (s *Session) DeleteQuestions(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := s.index.Delete(ctx, ids); err != nil {
		return fmt.Errorf("deleting questions: %w", err)
	}
	s.logger.Info("questions removed from index", zap.Int("count", len(ids)))
	return nil
}
