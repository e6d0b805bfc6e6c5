package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/apply-assistant/internal/session"
	"github.com/spigell/apply-assistant/internal/textprep"
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train the subword embedding model on a CSV corpus and save it",
	Run: func(_ *cobra.Command, _ []string) {
		train()
	},
}

func init() {
	rootCmd.AddCommand(trainCmd)

	trainCmd.Flags().String("corpus", "", "CSV file with a header row, one sentence per row (default from embedder.corpus)")
	trainCmd.Flags().String("model-path", "", "where the trained model is written (default from embedder.model-path)")
	bindFlag(trainCmd, "embedder.corpus", "corpus")
	bindFlag(trainCmd, "embedder.model-path", "model-path")
}

func train() {
	logger, config := bootstrap("train")

	if config.Embedder.Backend != embedderSubword {
		logger.Fatal("only the subword embedder can be trained", zap.String("backend", config.Embedder.Backend))
	}

	model, err := newSubword(config.Embedder)
	if err != nil {
		logger.Fatal("building the subword model", zap.Error(err))
	}

	src := modelSource(config.Embedder)
	sentences, err := session.Train(context.Background(), model, textprep.New(), src)
	if err != nil {
		logger.Fatal("training the embedding model", zap.Error(err))
	}

	logger.Info("embedding model trained",
		zap.String("corpus", src.CorpusPath),
		zap.String("model", src.ModelPath),
		zap.Int("sentences", sentences),
		zap.Int("vocabulary", model.Vocabulary()),
	)
	logger.Warn("vectors changed, re-run upsert to re-index stored questions")
}
