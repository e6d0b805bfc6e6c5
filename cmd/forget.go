package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var forgetCmd = &cobra.Command{
	Use:   "forget",
	Short: "Remove questions from the vector index; stored answers are kept",
	Run: func(cmd *cobra.Command, _ []string) {
		forget(cmd)
	},
}

func init() {
	rootCmd.AddCommand(forgetCmd)

	forgetCmd.Flags().StringSlice("id", nil, "question ids to remove, repeatable or comma separated")
	forgetCmd.MarkFlagRequired("id")
}

func forget(cmd *cobra.Command) {
	logger, config := bootstrap("forget")
	ctx := context.Background()

	ids, _ := cmd.Flags().GetStringSlice("id")

	a, err := newAssistant(ctx, config, logger, false)
	if err != nil {
		logger.Fatal("building the assistant", zap.Error(err))
	}
	defer a.Close()

	if err := a.session.DeleteQuestions(ctx, ids); err != nil {
		logger.Fatal("removing questions", zap.Error(err))
	}
}
