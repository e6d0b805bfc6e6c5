package cmd

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/apply-assistant/internal/logger"
)

// bootstrap builds the logger and the configuration every command starts
// from. Failures are fatal.
func bootstrap(command string) (*zap.Logger, *Config) {
	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting the "+app, zap.String("command", command), zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(redacted(config), "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	return logger, config
}

// redacted returns a copy of the config without inline secrets.
func redacted(c *Config) Config {
	out := *c

	index := *c.Index
	qd := *c.Index.Qdrant
	qd.APIKey = mask(qd.APIKey)
	index.Qdrant = &qd
	out.Index = &index

	embedder := *c.Embedder
	eo := *c.Embedder.OpenAI
	eo.APIKey = mask(eo.APIKey)
	embedder.OpenAI = &eo
	out.Embedder = &embedder

	aiCfg := *c.AI
	g := *c.AI.Gemini
	g.APIKey = mask(g.APIKey)
	o := *c.AI.OpenAI
	o.APIKey = mask(o.APIKey)
	aiCfg.Gemini, aiCfg.OpenAI = &g, &o
	out.AI = &aiCfg

	return out
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	return "***"
}
