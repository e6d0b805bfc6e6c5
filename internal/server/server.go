// Package server exposes the assistant over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/spigell/apply-assistant/internal/logger"
	"github.com/spigell/apply-assistant/internal/postings"
	"github.com/spigell/apply-assistant/internal/session"
	"github.com/spigell/apply-assistant/internal/store"
)

const (
	defaultAddr           = ":8080"
	defaultRequestTimeout = 120 * time.Second
	shutdownTimeout       = 15 * time.Second
)

type Config struct {
	Addr           string        `mapstructure:"addr"`
	RequestTimeout time.Duration `mapstructure:"request-timeout"`
	AllowedOrigins []string      `mapstructure:"allowed-origins"`
}

// Tuning holds the pipeline parameters applied to every /question request.
type Tuning struct {
	Templates    session.Templates
	HistoryLimit int
	AnswerLimit  int
	FilterByUser bool
}

// Assistant is the question pipeline served by /question and /upsert.
type Assistant interface {
	QueryTuneAnswer(ctx context.Context, req session.TuneRequest) (*session.TuneResult, error)
	UpsertUserQuestions(ctx context.Context, userID string) (*session.UpsertReport, error)
}

// Ingester stores postings submitted to /posting.
type Ingester interface {
	Ingest(ctx context.Context, userID string, p []store.Posting, analyze bool) (*postings.IngestReport, error)
}

type Dependencies struct {
	Assistant Assistant
	// Postings is optional; without it /posting answers 501.
	Postings        Ingester
	AnalyzePostings bool
	Tuning          Tuning
	Logger          *zap.Logger
}

type Server struct {
	cfg    Config
	deps   Dependencies
	logger *zap.Logger
	router chi.Router
}

func New(cfg Config, deps Dependencies) *Server {
	if cfg.Addr == "" {
		cfg.Addr = defaultAddr
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	s := &Server{cfg: cfg, deps: deps, logger: logger.Component(deps.Logger, "http")}
	s.router = s.buildRouter()
	return s
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.cfg.RequestTimeout))

	origins := s.cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/", s.handleIndex)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Post("/question", s.handleQuestion)
	r.Post("/upsert", s.handleUpsert)
	r.Post("/posting", s.handlePosting)

	return r
}

// Handler returns the router serving every endpoint.
func (s *Server) Handler() http.Handler { return s.router }

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      s.cfg.RequestTimeout + 10*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", s.cfg.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return nil
}
