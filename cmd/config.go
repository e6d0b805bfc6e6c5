package cmd

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/spigell/apply-assistant/internal/ai/gemini"
	"github.com/spigell/apply-assistant/internal/ai/openai"
	"github.com/spigell/apply-assistant/internal/embedding/subword"
	"github.com/spigell/apply-assistant/internal/session"
	"github.com/spigell/apply-assistant/internal/store"
	"github.com/spigell/apply-assistant/internal/vectorindex/chromem"
)

const (
	backendChromem = "chromem"
	backendQdrant  = "qdrant"

	embedderSubword = "subword"
	embedderOpenAI  = "openai"

	providerGemini = "gemini"
	providerOpenAI = "openai"
	providerNone   = "none"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.driver", store.DriverSQLite)
	v.SetDefault("database.dsn", "data/apply-assistant.db")

	v.SetDefault("index.backend", backendChromem)
	v.SetDefault("index.collection", chromem.DefaultCollection)
	v.SetDefault("index.chromem.path", "data/index")
	v.SetDefault("index.chromem.compress", true)
	v.SetDefault("index.qdrant.url", "http://localhost:6333")
	v.SetDefault("index.qdrant.timeout", 30*time.Second)

	v.SetDefault("embedder.backend", embedderSubword)
	v.SetDefault("embedder.model-path", "data/subword.json.gz")
	v.SetDefault("embedder.corpus", "data/corpus.csv")
	v.SetDefault("embedder.dimensions", subword.DefaultDimensions)
	v.SetDefault("embedder.min-n", subword.DefaultMinN)
	v.SetDefault("embedder.max-n", subword.DefaultMaxN)

	v.SetDefault("ai.provider", providerGemini)
	v.SetDefault("ai.request-delay", time.Duration(0))
	v.SetDefault("ai.max-log-length", 200)
	v.SetDefault("ai.gemini.model", gemini.DefaultModel)
	v.SetDefault("ai.gemini.max-retries", 3)
	v.SetDefault("ai.gemini.max-quota-delay", 30*time.Second)
	v.SetDefault("ai.openai.model", openai.DefaultModel)
	v.SetDefault("ai.openai.max-tokens", 1024)

	templates := session.DefaultTemplates()
	v.SetDefault("prompts.system", templates.System)
	v.SetDefault("prompts.user", templates.User)
	v.SetDefault("prompts.historical-pair", templates.HistoricalPair)
	v.SetDefault("prompts.rewrite-suffix", templates.RewriteSuffix)

	v.SetDefault("tuning.history-limit", 3)
	v.SetDefault("tuning.answer-limit", 3)
	v.SetDefault("tuning.warm-up", true)
	v.SetDefault("tuning.filter-by-user", false)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.request-timeout", 120*time.Second)

	v.SetDefault("postings.analyze", false)
}

func getConfig() (*Config, error) {
	return loadConfig(viper.GetViper())
}

func loadConfig(v *viper.Viper) (*Config, error) {
	var config *Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}
	if config == nil {
		return nil, errors.New("config is required")
	}

	if config.Index == nil {
		config.Index = &IndexConfig{}
	}
	if config.Index.Chromem == nil {
		config.Index.Chromem = &ChromemConfig{}
	}
	if config.Index.Qdrant == nil {
		config.Index.Qdrant = &QdrantConfig{}
	}
	if config.Embedder == nil {
		config.Embedder = &EmbedderConfig{}
	}
	if config.Embedder.OpenAI == nil {
		config.Embedder.OpenAI = &OpenAIEmbedderConfig{}
	}
	if config.AI == nil {
		config.AI = &AIConfig{}
	}
	if config.AI.Gemini == nil {
		config.AI.Gemini = &GeminiConfig{}
	}
	if config.AI.OpenAI == nil {
		config.AI.OpenAI = &OpenAIConfig{}
	}
	if config.Tuning == nil {
		config.Tuning = &TuningConfig{}
	}
	if config.Postings == nil {
		config.Postings = &PostingsConfig{}
	}

	config.Index.Backend = strings.ToLower(strings.TrimSpace(config.Index.Backend))
	config.Embedder.Backend = strings.ToLower(strings.TrimSpace(config.Embedder.Backend))
	config.AI.Provider = strings.ToLower(strings.TrimSpace(config.AI.Provider))

	return config, config.validate()
}

func (c *Config) validate() error {
	switch c.Index.Backend {
	case backendChromem, backendQdrant:
	default:
		return fmt.Errorf("unsupported index backend: %q", c.Index.Backend)
	}

	switch c.Embedder.Backend {
	case embedderSubword, embedderOpenAI:
	default:
		return fmt.Errorf("unsupported embedder backend: %q", c.Embedder.Backend)
	}

	switch c.AI.Provider {
	case providerGemini, providerOpenAI, providerNone:
	default:
		return fmt.Errorf("unsupported ai provider: %q", c.AI.Provider)
	}

	if c.Tuning.HistoryLimit <= 0 || c.Tuning.AnswerLimit <= 0 {
		return fmt.Errorf("tuning limits must be positive, got history %d and answers %d", c.Tuning.HistoryLimit, c.Tuning.AnswerLimit)
	}

	for name, tpl := range map[string]string{
		"prompts.user":            c.Prompts.User,
		"prompts.historical-pair": c.Prompts.HistoricalPair,
	} {
		if strings.TrimSpace(tpl) == "" {
			return fmt.Errorf("%s must not be empty", name)
		}
	}

	return nil
}
