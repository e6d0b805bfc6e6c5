package cmd

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/apply-assistant/internal/session"
	"github.com/spigell/apply-assistant/internal/vectorindex"
)

func testConfig(t *testing.T) *Config {
	t.Helper()

	dir := t.TempDir()
	config, err := loadConfig(newViper(t, ""))
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	config.Database.DSN = filepath.Join(dir, "db", "assistant.db")
	config.Index.Chromem.Path = ""
	config.Embedder.ModelPath = filepath.Join(dir, "subword.json.gz")
	config.Embedder.Corpus = filepath.Join(dir, "missing.csv")
	config.Embedder.Dimensions = 64
	config.AI.Provider = providerNone
	return config
}

func TestAssistantIndexesRecordedAnswers(t *testing.T) {
	ctx := context.Background()
	a, err := newAssistant(ctx, testConfig(t), zap.NewNop(), false)
	if err != nil {
		t.Fatalf("newAssistant: %v", err)
	}
	defer a.Close()

	if a.index.Dimensions() != 64 {
		t.Fatalf("expected index dimensions from the embedder, got %d", a.index.Dimensions())
	}

	if err := recordAnswer(ctx, a, "U1", "Why do you want this job?", "I like the product.", true); err != nil {
		t.Fatalf("recordAnswer: %v", err)
	}

	vec, err := a.embedder.Embed(ctx, [][]string{a.normalizer.Normalize("Why do you want this job?")})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	matches, err := a.index.Query(ctx, vec[0], 1, vectorindex.OwnerFilter("U1"))
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected the recorded question to be indexed, got %+v", matches)
	}

	_, err = a.session.QueryTuneAnswer(ctx, a.tuneRequest("U1", "Why this job?"))
	if !errors.Is(err, errAIDisabled) {
		t.Fatalf("expected the disabled answerer to refuse, got %v", err)
	}

	req := a.tuneRequest("U1", "Why this job?")
	req.HistoryLimit = 0
	if _, err := a.session.QueryTuneAnswer(ctx, req); !errors.Is(err, session.ErrInvalidLimit) {
		t.Fatalf("expected an explicit zero limit to be rejected, got %v", err)
	}
}

func TestTuneRequest(t *testing.T) {
	config := testConfig(t)
	a := &assistant{config: config}

	req := a.tuneRequest("U1", "Why?")
	if req.HistoryLimit != config.Tuning.HistoryLimit || req.AnswerLimit != config.Tuning.AnswerLimit || req.Filter != nil {
		t.Fatalf("unexpected request %+v", req)
	}

	config.Tuning.FilterByUser = true
	if req := a.tuneRequest("U1", "Why?"); req.Filter == nil || req.Filter.Match[vectorindex.OwnerKey] != "U1" {
		t.Fatalf("expected owner filter, got %+v", req.Filter)
	}
	if req := a.tuneRequest("", "Why?"); req.Filter != nil {
		t.Fatalf("expected no filter without a user")
	}
}

func TestIntFlag(t *testing.T) {
	newCmd := func() *cobra.Command {
		cmd := &cobra.Command{Use: "ask"}
		cmd.Flags().Int("history-limit", 0, "")
		return cmd
	}

	if got := intFlag(newCmd(), "history-limit", 3); got != 3 {
		t.Fatalf("expected fallback when unset, got %d", got)
	}

	cmd := newCmd()
	if err := cmd.Flags().Set("history-limit", "5"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if got := intFlag(cmd, "history-limit", 3); got != 5 {
		t.Fatalf("expected 5, got %d", got)
	}

	cmd = newCmd()
	if err := cmd.Flags().Set("history-limit", "0"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if got := intFlag(cmd, "history-limit", 3); got != 0 {
		t.Fatalf("expected an explicit zero to be kept, got %d", got)
	}
}

func TestNewAnswerer(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	config := testConfig(t)

	answerer, err := newAnswerer(context.Background(), config.AI, zap.NewNop())
	if err != nil {
		t.Fatalf("newAnswerer: %v", err)
	}
	if _, ok := answerer.(disabledAnswerer); !ok {
		t.Fatalf("expected disabled answerer, got %T", answerer)
	}

	for _, provider := range []string{providerGemini, providerOpenAI} {
		config.AI.Provider = provider
		_, err := newAnswerer(context.Background(), config.AI, zap.NewNop())
		if err == nil || !strings.Contains(err.Error(), "API_KEY_FILE") {
			t.Fatalf("%s: expected missing key hint, got %v", provider, err)
		}
	}

	config.AI.Provider = providerOpenAI
	config.AI.OpenAI.APIKey = "inline"
	answerer, err = newAnswerer(context.Background(), config.AI, zap.NewNop())
	if err != nil {
		t.Fatalf("newAnswerer: %v", err)
	}
	if answerer.Model() != config.AI.OpenAI.Model {
		t.Fatalf("unexpected model %s", answerer.Model())
	}
}

func TestIngesterAnalyzesOnlyWithModel(t *testing.T) {
	ctx := context.Background()
	a, err := newAssistant(ctx, testConfig(t), zap.NewNop(), false)
	if err != nil {
		t.Fatalf("newAssistant: %v", err)
	}
	defer a.Close()

	if _, err := a.ingester().Ingest(ctx, "U1", nil, true); err == nil {
		t.Fatalf("expected analysis to be unavailable without a model")
	}
}
