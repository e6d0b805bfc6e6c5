package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var upsertCmd = &cobra.Command{
	Use:   "upsert",
	Short: "Embed the stored questions of a user (or of everyone) into the vector index",
	Run: func(cmd *cobra.Command, _ []string) {
		upsert(cmd)
	},
}

func init() {
	rootCmd.AddCommand(upsertCmd)

	upsertCmd.Flags().StringP("user", "u", "", "user id whose questions are indexed. Default is all questions without owner metadata.")
}

func upsert(cmd *cobra.Command) {
	logger, config := bootstrap("upsert")
	ctx := context.Background()

	a, err := newAssistant(ctx, config, logger, false)
	if err != nil {
		logger.Fatal("building the assistant", zap.Error(err))
	}
	defer a.Close()

	userID, _ := cmd.Flags().GetString("user")
	report, err := a.session.UpsertUserQuestions(ctx, userID)
	if err != nil {
		logger.Fatal("upserting questions", zap.Error(err))
	}

	logger.Info("questions indexed",
		zap.String("user_id", userID),
		zap.Int("indexed", report.Indexed),
		zap.Strings("skipped", report.Skipped),
	)
}
