// Package session wires the normalizer, embedder, vector index, relational
// store and generative model into the question answering pipeline.
package session

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/spigell/apply-assistant/internal/ai"
	"github.com/spigell/apply-assistant/internal/embedding"
	"github.com/spigell/apply-assistant/internal/logger"
	"github.com/spigell/apply-assistant/internal/store"
	"github.com/spigell/apply-assistant/internal/vectorindex"
)

var (
	// ErrInvalidLimit is returned when a history or answer limit is not positive.
	ErrInvalidLimit = errors.New("limits must be positive")
	// ErrEmptyQuestion is returned when the new question has no text.
	ErrEmptyQuestion = errors.New("question must not be empty")
	// ErrNoHistory is returned when no similar historical question could be
	// resolved to an answer.
	ErrNoHistory = errors.New("no historical answers found")
	// ErrGeneration wraps failures of the language model.
	ErrGeneration = errors.New("generating answer")
)

const defaultMaxLogLength = 200

// QuestionStore is the part of the relational store the pipeline reads.
type QuestionStore interface {
	QuestionsForUser(ctx context.Context, userID string) ([]store.Question, error)
	AllQuestions(ctx context.Context) ([]store.Question, error)
	AnswerForQuestion(ctx context.Context, questionID string) (store.QAPair, error)
}

// Normalizer turns raw text into the tokens fed to the embedder.
type Normalizer interface {
	Normalize(text string) []string
}

type Dependencies struct {
	Store      QuestionStore
	Index      vectorindex.Index
	Embedder   embedding.Embedder
	Normalizer Normalizer
	Answerer   ai.Answerer
	Logger     *zap.Logger
}

type Option func(*Session)

// WithWarmUp toggles the draft completion generated before the tuning loop.
func WithWarmUp(enabled bool) Option {
	return func(s *Session) { s.warmUp = enabled }
}

// WithMaxLogLength bounds previews of prompts and answers in logs.
func WithMaxLogLength(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.maxLogLen = n
		}
	}
}

// Session holds long-lived collaborators only. Every call keeps its state
// on the stack, so one Session serves concurrent requests.
type Session struct {
	store      QuestionStore
	index      vectorindex.Index
	embedder   embedding.Embedder
	normalizer Normalizer
	answerer   ai.Answerer
	logger     *zap.Logger

	warmUp    bool
	maxLogLen int
}

func New(deps Dependencies, opts ...Option) (*Session, error) {
	switch {
	case deps.Store == nil:
		return nil, errors.New("session requires a question store")
	case deps.Index == nil:
		return nil, errors.New("session requires a vector index")
	case deps.Embedder == nil:
		return nil, errors.New("session requires an embedder")
	case deps.Normalizer == nil:
		return nil, errors.New("session requires a normalizer")
	case deps.Answerer == nil:
		return nil, errors.New("session requires an answerer")
	}

	if deps.Embedder.Dimensions() != deps.Index.Dimensions() {
		return nil, fmt.Errorf("%w: embedder %s produces %d dimensions, index expects %d",
			vectorindex.ErrDimensionMismatch, deps.Embedder.Name(), deps.Embedder.Dimensions(), deps.Index.Dimensions())
	}

	s := &Session{
		store:      deps.Store,
		index:      deps.Index,
		embedder:   deps.Embedder,
		normalizer: deps.Normalizer,
		answerer:   deps.Answerer,
		logger:     logger.Component(deps.Logger, "session"),
		warmUp:     true,
		maxLogLen:  defaultMaxLogLength,
	}
	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}
