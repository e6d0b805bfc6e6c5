package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spigell/apply-assistant/internal/ai"
	"github.com/spigell/apply-assistant/internal/logger"
	"github.com/spigell/apply-assistant/internal/store"
	"github.com/spigell/apply-assistant/internal/utils"
	"github.com/spigell/apply-assistant/internal/vectorindex"
)

type TuneRequest struct {
	Templates    Templates
	Question     string
	HistoryLimit int
	AnswerLimit  int
	// Filter restricts retrieval, e.g. to one owner. Nil searches every entry.
	Filter *vectorindex.Filter
}

type TuneResult struct {
	Matches []vectorindex.Match
	// History holds the resolved pairs in retrieval order. Questions with
	// identical text appear once, carrying the last resolved answer.
	History []store.QAPair
	// Draft is the completion for the untouched prompt, empty when warm-up
	// is disabled or the model declined.
	Draft string
	// Answers has exactly AnswerLimit entries; an empty string marks a
	// declined completion.
	Answers []string
}

type pair struct {
	questionID string
	question   string
	answer     string
}

// tuning is the per-call state of QueryTuneAnswer.
type tuning struct {
	req     TuneRequest
	log     *zap.Logger
	pairs   []pair
	system  string
	running string
	answers []string
}

// QueryTuneAnswer retrieves the historical answers closest to the question
// and asks the model to rewrite them for it, AnswerLimit times. Each round
// sees the previous rounds' answers so it can produce a different one.
func (s *Session) QueryTuneAnswer(ctx context.Context, req TuneRequest) (*TuneResult, error) {
	if req.HistoryLimit <= 0 || req.AnswerLimit <= 0 {
		return nil, fmt.Errorf("%w: history limit %d, answer limit %d", ErrInvalidLimit, req.HistoryLimit, req.AnswerLimit)
	}
	if strings.TrimSpace(req.Question) == "" {
		return nil, ErrEmptyQuestion
	}

	t := &tuning{
		req: req,
		log: logger.WithFields(s.logger, zap.String("question", utils.TruncateForLog(req.Question, s.maxLogLen))),
	}

	matches, err := s.retrieve(ctx, t)
	if err != nil {
		return nil, err
	}

	if err := s.resolve(ctx, t, matches); err != nil {
		return nil, err
	}

	t.system = req.Templates.System
	t.running = renderUser(req.Templates.User, renderPairs(req.Templates.HistoricalPair, t.pairs), req.Question)

	result := &TuneResult{Matches: matches, History: make([]store.QAPair, len(t.pairs))}
	for i, p := range t.pairs {
		result.History[i] = store.QAPair{QuestionID: p.questionID, Question: p.question, Answer: p.answer}
	}

	if s.warmUp {
		draft, err := s.complete(ctx, t, t.running)
		if err != nil {
			return nil, fmt.Errorf("%w: draft: %w", ErrGeneration, err)
		}
		result.Draft = draft
	}

	suffix := req.Templates.RewriteSuffix
	if req.AnswerLimit == 1 {
		suffix = ""
	}

	for round := 1; round <= req.AnswerLimit; round++ {
		answer, err := s.complete(ctx, t, t.running+suffix)
		if err != nil {
			return nil, fmt.Errorf("%w: answer %d: %w", ErrGeneration, round, err)
		}

		t.answers = append(t.answers, answer)
		if answer == "" {
			t.log.Warn("model declined to answer, recording an empty answer", zap.Int("round", round))
			continue
		}

		t.log.Info("tuned answer generated",
			zap.Int("round", round),
			zap.String("answer", utils.TruncateForLog(answer, s.maxLogLen)),
		)
		t.running += " " + answer
	}

	result.Answers = t.answers
	return result, nil
}

func (s *Session) retrieve(ctx context.Context, t *tuning) ([]vectorindex.Match, error) {
	tokens := s.normalizer.Normalize(t.req.Question)
	if len(tokens) == 0 {
		return nil, fmt.Errorf("%w: no indexable words", ErrEmptyQuestion)
	}

	vectors, err := s.embedder.Embed(ctx, [][]string{tokens})
	if err != nil {
		return nil, fmt.Errorf("embedding question: %w", err)
	}

	matches, err := s.index.Query(ctx, vectors[0], t.req.HistoryLimit, t.req.Filter)
	if err != nil {
		return nil, fmt.Errorf("querying index: %w", err)
	}

	t.log.Debug("similar questions retrieved", zap.Int("matches", len(matches)))
	return matches, nil
}

// resolve looks up the answer of every match. Identical question texts keep
// the position of their first match and the answer of their last.
func (s *Session) resolve(ctx context.Context, t *tuning, matches []vectorindex.Match) error {
	position := make(map[string]int, len(matches))
	for _, m := range matches {
		qa, err := s.store.AnswerForQuestion(ctx, m.ID)
		if errors.Is(err, store.ErrNotFound) {
			t.log.Warn("indexed question has no stored answer, skipping",
				zap.String(logger.FieldQuestionID, m.ID),
			)
			continue
		}
		if err != nil {
			return fmt.Errorf("resolving question %s: %w", m.ID, err)
		}

		p := pair{questionID: qa.QuestionID, question: qa.Question, answer: qa.Answer}
		if i, ok := position[p.question]; ok {
			t.pairs[i] = p
			continue
		}
		position[p.question] = len(t.pairs)
		t.pairs = append(t.pairs, p)
	}

	if len(t.pairs) == 0 {
		return ErrNoHistory
	}

	t.log.Info("historical pairs resolved", zap.Int("pairs", len(t.pairs)), zap.Int("matches", len(matches)))
	return nil
}

// complete sends [system, user] and maps a declined completion to "".
func (s *Session) complete(ctx context.Context, t *tuning, user string) (string, error) {
	t.log.Debug("requesting completion",
		zap.Int("prompt_length", utf8.RuneCountInString(user)),
		zap.String("prompt_preview", utils.TruncateForLog(user, s.maxLogLen)),
	)

	out, err := s.answerer.Answer(ctx, []ai.Turn{ai.System(t.system), ai.User(user)})
	if errors.Is(err, ai.ErrEmptyCompletion) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}
