package cmd

import (
	"context"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Store a question and your answer to it",
	Run: func(cmd *cobra.Command, _ []string) {
		record(cmd)
	},
}

func init() {
	rootCmd.AddCommand(recordCmd)

	recordCmd.Flags().StringP("user", "u", "", "user id owning the answer")
	recordCmd.Flags().StringP("question", "q", "", "question text")
	recordCmd.Flags().StringP("answer", "a", "", "answer text")
	recordCmd.Flags().Bool("index", true, "embed the user's questions right after recording")

	for _, name := range []string{"user", "question", "answer"} {
		recordCmd.MarkFlagRequired(name)
	}
}

func record(cmd *cobra.Command) {
	logger, config := bootstrap("record")
	ctx := context.Background()

	userID, _ := cmd.Flags().GetString("user")
	question, _ := cmd.Flags().GetString("question")
	answer, _ := cmd.Flags().GetString("answer")
	index, _ := cmd.Flags().GetBool("index")

	if strings.TrimSpace(question) == "" || strings.TrimSpace(answer) == "" {
		logger.Fatal("question and answer must not be empty")
	}

	a, err := newAssistant(ctx, config, logger, false)
	if err != nil {
		logger.Fatal("building the assistant", zap.Error(err))
	}
	defer a.Close()

	if err := recordAnswer(ctx, a, userID, question, answer, index); err != nil {
		logger.Fatal("recording the answer", zap.Error(err))
	}
}

// recordAnswer stores the pair and optionally re-indexes the user's questions
// so the pair is retrievable right away.
func recordAnswer(ctx context.Context, a *assistant, userID, question, answer string, index bool) error {
	pair, err := a.db.Record(ctx, userID, question, answer)
	if err != nil {
		return err
	}
	a.logger.Info("answer recorded", zap.String("user_id", userID), zap.String("question_id", pair.QuestionID))

	if !index {
		return nil
	}

	report, err := a.session.UpsertUserQuestions(ctx, userID)
	if err != nil {
		return err
	}
	a.logger.Info("questions indexed", zap.String("user_id", userID), zap.Int("indexed", report.Indexed))
	return nil
}
