package cmd

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/spigell/apply-assistant/internal/ai"
	"github.com/spigell/apply-assistant/internal/ai/gemini"
	"github.com/spigell/apply-assistant/internal/ai/openai"
	"github.com/spigell/apply-assistant/internal/embedding"
	openaiembed "github.com/spigell/apply-assistant/internal/embedding/openai"
	"github.com/spigell/apply-assistant/internal/embedding/subword"
	"github.com/spigell/apply-assistant/internal/logger"
	"github.com/spigell/apply-assistant/internal/postings"
	"github.com/spigell/apply-assistant/internal/secrets"
	"github.com/spigell/apply-assistant/internal/session"
	"github.com/spigell/apply-assistant/internal/store"
	"github.com/spigell/apply-assistant/internal/textprep"
	"github.com/spigell/apply-assistant/internal/vectorindex"
	"github.com/spigell/apply-assistant/internal/vectorindex/chromem"
	"github.com/spigell/apply-assistant/internal/vectorindex/qdrant"
)

var errAIDisabled = errors.New("ai provider is disabled (set ai.provider)")

// disabledAnswerer stands in when commands run without a language model.
type disabledAnswerer struct{}

func (disabledAnswerer) Answer(context.Context, []ai.Turn) (string, error) {
	return "", errAIDisabled
}

func (disabledAnswerer) Model() string { return providerNone }

// assistant bundles the long-lived collaborators shared by the commands.
type assistant struct {
	config     *Config
	logger     *zap.Logger
	db         *store.DB
	index      vectorindex.Index
	embedder   embedding.Embedder
	normalizer *textprep.Normalizer
	answerer   ai.Answerer
	session    *session.Session
}

// newAssistant opens every backend. Without withAI the session gets an
// answerer that refuses to generate, which is enough for indexing.
func newAssistant(ctx context.Context, config *Config, log *zap.Logger, withAI bool) (*assistant, error) {
	a := &assistant{config: config, logger: log, normalizer: textprep.New()}

	var err error
	if a.db, err = openStore(ctx, config); err != nil {
		return nil, err
	}

	if a.embedder, err = newEmbedder(ctx, config, a.normalizer, log); err != nil {
		a.Close()
		return nil, fmt.Errorf("building embedder: %w", err)
	}

	if a.index, err = newIndex(ctx, config, a.embedder.Dimensions(), log); err != nil {
		a.Close()
		return nil, fmt.Errorf("building vector index: %w", err)
	}

	a.answerer = disabledAnswerer{}
	if withAI {
		if a.answerer, err = newAnswerer(ctx, config.AI, log); err != nil {
			a.Close()
			return nil, fmt.Errorf("building ai answerer: %w", err)
		}
	}

	a.session, err = session.New(session.Dependencies{
		Store:      a.db,
		Index:      a.index,
		Embedder:   a.embedder,
		Normalizer: a.normalizer,
		Answerer:   a.answerer,
		Logger:     log,
	},
		session.WithWarmUp(config.Tuning.WarmUp),
		session.WithMaxLogLength(config.AI.MaxLogLength),
	)
	if err != nil {
		a.Close()
		return nil, err
	}

	return a, nil
}

func (a *assistant) Close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("closing database", zap.Error(err))
		}
	}
}

// tuneRequest builds a request with the configured templates and limits.
func (a *assistant) tuneRequest(userID, question string) session.TuneRequest {
	req := session.TuneRequest{
		Templates:    a.config.Prompts,
		Question:     question,
		HistoryLimit: a.config.Tuning.HistoryLimit,
		AnswerLimit:  a.config.Tuning.AnswerLimit,
	}
	if a.config.Tuning.FilterByUser && userID != "" {
		req.Filter = vectorindex.OwnerFilter(userID)
	}
	return req
}

// ingester builds the posting pipeline. The analyzer is attached only when
// a language model is available.
func (a *assistant) ingester() *postings.Ingester {
	var analyzer *postings.Analyzer
	if _, disabled := a.answerer.(disabledAnswerer); !disabled {
		cfg := a.config.Postings
		analyzer = postings.NewAnalyzer(a.answerer, cfg.MinimumFitScore, a.config.AI.MaxLogLength, logger.Component(a.logger, "postings"))
		analyzer.SetPromptOverrides(cfg.Prompt)
	}
	return postings.NewIngester(a.db, analyzer, logger.Component(a.logger, "postings"))
}

func openStore(ctx context.Context, config *Config) (*store.DB, error) {
	db, err := store.Open(ctx, config.Database)
	if err != nil {
		return nil, fmt.Errorf("opening %s database: %w", config.Database.Driver, err)
	}
	return db, nil
}

func newEmbedder(ctx context.Context, config *Config, normalizer *textprep.Normalizer, log *zap.Logger) (embedding.Embedder, error) {
	cfg := config.Embedder
	log = logger.WithFields(logger.Component(log, "embedder"), zap.String(logger.FieldBackend, cfg.Backend))

	switch cfg.Backend {
	case embedderOpenAI:
		apiKey, err := secrets.Load(secrets.Source{
			Name:  "openai api key",
			Value: cfg.OpenAI.APIKey,
			File:  cfg.OpenAI.APIKeyFile,
			Env:   "OPENAI_API_KEY",
		})
		if err != nil {
			return nil, fmt.Errorf("%w (set embedder.openai.api-key-file or OPENAI_API_KEY_FILE)", err)
		}
		embedder, err := openaiembed.New(openaiembed.Config{
			APIKey:     apiKey,
			BaseURL:    cfg.OpenAI.BaseURL,
			Model:      cfg.OpenAI.Model,
			Dimensions: cfg.OpenAI.Dimensions,
		})
		if err != nil {
			return nil, err
		}
		return embedder, nil
	default:
		model, err := newSubword(cfg)
		if err != nil {
			return nil, err
		}
		if err := session.Initialize(ctx, model, normalizer, modelSource(cfg), log); err != nil {
			return nil, err
		}
		return model, nil
	}
}

func newSubword(cfg *EmbedderConfig) (*subword.Model, error) {
	return subword.New(subword.Config{Dimensions: cfg.Dimensions, MinN: cfg.MinN, MaxN: cfg.MaxN})
}

func modelSource(cfg *EmbedderConfig) session.ModelSource {
	return session.ModelSource{ModelPath: cfg.ModelPath, CorpusPath: cfg.Corpus}
}

// newIndex opens the configured index and checks that it is reachable.
// Without explicit index dimensions the embedder's are used.
func newIndex(ctx context.Context, config *Config, embedderDims int, log *zap.Logger) (vectorindex.Index, error) {
	cfg := config.Index
	dims := cfg.Dimensions
	if dims == 0 {
		dims = embedderDims
	}
	log = logger.WithFields(logger.Component(log, "index"), zap.String(logger.FieldBackend, cfg.Backend))

	var (
		index vectorindex.Index
		err   error
	)
	switch cfg.Backend {
	case backendQdrant:
		apiKey, keyErr := secrets.Optional(secrets.Source{
			Name:  "qdrant api key",
			Value: cfg.Qdrant.APIKey,
			File:  cfg.Qdrant.APIKeyFile,
			Env:   "QDRANT_API_KEY",
		})
		if keyErr != nil {
			return nil, keyErr
		}
		index, err = qdrant.New(qdrant.Config{
			URL:        cfg.Qdrant.URL,
			APIKey:     apiKey,
			Collection: cfg.Collection,
			Dimensions: dims,
			Timeout:    cfg.Qdrant.Timeout,
		}, log)
	default:
		index, err = chromem.New(chromem.Config{
			Collection: cfg.Collection,
			Dimensions: dims,
			Path:       cfg.Chromem.Path,
			Compress:   cfg.Chromem.Compress,
		}, log)
	}
	if err != nil {
		return nil, err
	}

	exists, err := index.Exists(ctx)
	if err != nil {
		return nil, err
	}
	log.Debug("vector index ready", zap.Bool("collection_exists", exists), zap.Int("dimensions", dims))

	return index, nil
}

func newAnswerer(ctx context.Context, cfg *AIConfig, log *zap.Logger) (ai.Answerer, error) {
	var (
		answerer ai.Answerer
		err      error
	)

	switch cfg.Provider {
	case providerNone:
		return disabledAnswerer{}, nil
	case providerOpenAI:
		apiKey, keyErr := secrets.Load(secrets.Source{
			Name:  "openai api key",
			Value: cfg.OpenAI.APIKey,
			File:  cfg.OpenAI.APIKeyFile,
			Env:   "OPENAI_API_KEY",
		})
		if keyErr != nil {
			return nil, fmt.Errorf("%w (set ai.openai.api-key-file or OPENAI_API_KEY_FILE)", keyErr)
		}
		answerer, err = openai.NewProvider(openai.Config{
			APIKey:      apiKey,
			BaseURL:     cfg.OpenAI.BaseURL,
			Model:       cfg.OpenAI.Model,
			MaxTokens:   cfg.OpenAI.MaxTokens,
			Temperature: cfg.OpenAI.Temperature,
		}, log)
	default:
		apiKey, keyErr := secrets.Load(secrets.Source{
			Name:  "gemini api key",
			Value: cfg.Gemini.APIKey,
			File:  cfg.Gemini.APIKeyFile,
			Env:   "GEMINI_API_KEY",
		})
		if keyErr != nil {
			return nil, fmt.Errorf("%w (set ai.gemini.api-key-file or GEMINI_API_KEY_FILE)", keyErr)
		}
		answerer, err = gemini.NewGenerator(ctx, gemini.Config{
			APIKey:        apiKey,
			Model:         cfg.Gemini.Model,
			MaxRetries:    cfg.Gemini.MaxRetries,
			MaxQuotaDelay: cfg.Gemini.MaxQuotaDelay,
			Temperature:   cfg.Gemini.Temperature,
		}, log)
	}
	if err != nil {
		return nil, err
	}

	ai.Describe(log, cfg.Provider, answerer).Info("ai answerer ready",
		zap.Duration("request_delay", cfg.RequestDelay),
	)

	return ai.WithDelay(answerer, cfg.RequestDelay), nil
}
