package cmd

import (
	"errors"
	"io/fs"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spigell/apply-assistant/internal/postings"
	"github.com/spigell/apply-assistant/internal/server"
	"github.com/spigell/apply-assistant/internal/session"
	"github.com/spigell/apply-assistant/internal/store"
)

const (
	app = "apply-assistant"
)

type Config struct {
	Database store.Config      `mapstructure:"database"`
	Index    *IndexConfig      `mapstructure:"index"`
	Embedder *EmbedderConfig   `mapstructure:"embedder"`
	AI       *AIConfig         `mapstructure:"ai"`
	Prompts  session.Templates `mapstructure:"prompts"`
	Tuning   *TuningConfig     `mapstructure:"tuning"`
	Server   server.Config     `mapstructure:"server"`
	Postings *PostingsConfig   `mapstructure:"postings"`
}

type IndexConfig struct {
	Backend    string         `mapstructure:"backend"`
	Collection string         `mapstructure:"collection"`
	Dimensions int            `mapstructure:"dimensions"`
	Chromem    *ChromemConfig `mapstructure:"chromem"`
	Qdrant     *QdrantConfig  `mapstructure:"qdrant"`
}

type ChromemConfig struct {
	Path     string `mapstructure:"path"`
	Compress bool   `mapstructure:"compress"`
}

type QdrantConfig struct {
	URL        string        `mapstructure:"url"`
	APIKey     string        `mapstructure:"api-key"`
	APIKeyFile string        `mapstructure:"api-key-file"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type EmbedderConfig struct {
	Backend    string                `mapstructure:"backend"`
	ModelPath  string                `mapstructure:"model-path"`
	Corpus     string                `mapstructure:"corpus"`
	Dimensions int                   `mapstructure:"dimensions"`
	MinN       int                   `mapstructure:"min-n"`
	MaxN       int                   `mapstructure:"max-n"`
	OpenAI     *OpenAIEmbedderConfig `mapstructure:"openai"`
}

type OpenAIEmbedderConfig struct {
	APIKey     string `mapstructure:"api-key"`
	APIKeyFile string `mapstructure:"api-key-file"`
	BaseURL    string `mapstructure:"base-url"`
	Model      string `mapstructure:"model"`
	Dimensions int    `mapstructure:"dimensions"`
}

type AIConfig struct {
	Provider     string        `mapstructure:"provider"`
	RequestDelay time.Duration `mapstructure:"request-delay"`
	MaxLogLength int           `mapstructure:"max-log-length"`
	Gemini       *GeminiConfig `mapstructure:"gemini"`
	OpenAI       *OpenAIConfig `mapstructure:"openai"`
}

type GeminiConfig struct {
	APIKey        string        `mapstructure:"api-key"`
	APIKeyFile    string        `mapstructure:"api-key-file"`
	Model         string        `mapstructure:"model"`
	MaxRetries    int           `mapstructure:"max-retries"`
	MaxQuotaDelay time.Duration `mapstructure:"max-quota-delay"`
	Temperature   *float32      `mapstructure:"temperature"`
}

type OpenAIConfig struct {
	APIKey      string  `mapstructure:"api-key"`
	APIKeyFile  string  `mapstructure:"api-key-file"`
	BaseURL     string  `mapstructure:"base-url"`
	Model       string  `mapstructure:"model"`
	MaxTokens   int     `mapstructure:"max-tokens"`
	Temperature float32 `mapstructure:"temperature"`
}

type TuningConfig struct {
	HistoryLimit int  `mapstructure:"history-limit"`
	AnswerLimit  int  `mapstructure:"answer-limit"`
	WarmUp       bool `mapstructure:"warm-up"`
	FilterByUser bool `mapstructure:"filter-by-user"`
}

type PostingsConfig struct {
	Analyze          bool                     `mapstructure:"analyze"`
	MinimumFitScore  float64                  `mapstructure:"minimum-fit-score"`
	ExcludeFile      string                   `mapstructure:"exclude-file"`
	ExcludeCompanies []string                 `mapstructure:"exclude-companies"`
	RequiredKeywords []string                 `mapstructure:"required-keywords"`
	Prompt           postings.PromptOverrides `mapstructure:"prompt"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "apply-assistant drafts answers to job application questions from your earlier answers",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	for key, env := range map[string]string{
		"ai.gemini.api-key-file":       "GEMINI_API_KEY_FILE",
		"ai.openai.api-key-file":       "OPENAI_API_KEY_FILE",
		"embedder.openai.api-key-file": "OPENAI_API_KEY_FILE",
		"index.qdrant.api-key-file":    "QDRANT_API_KEY_FILE",
		"database.dsn":                 "APPLY_ASSISTANT_DATABASE_DSN",
	} {
		if err := viper.BindEnv(key, env); err != nil {
			log.Fatalf("binding %s environment variable: %v", env, err)
		}
	}

	setDefaults(viper.GetViper())
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is apply-assistant.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	// Secrets paths may come from a .env file next to the config.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("loading .env file: %v", err)
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		// Defaults are enough to run against a local sqlite file.
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return
		}
		// We can't proceed if the config file parsed with error.
		log.Fatal(err)
	}
}
