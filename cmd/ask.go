package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/apply-assistant/internal/session"
	"github.com/spigell/apply-assistant/internal/utils"
)

const (
	PromptSkip  = "None of them"
	PromptDraft = "Use the draft"
)

var askCmd = &cobra.Command{
	Use:   "ask",
	Short: "Draft answers to a new question from the most similar answered ones",
	Run: func(cmd *cobra.Command, _ []string) {
		ask(cmd)
	},
}

func init() {
	rootCmd.AddCommand(askCmd)

	askCmd.Flags().StringP("user", "u", "", "user id asking the question")
	askCmd.Flags().StringP("question", "q", "", "the new question. Asked for interactively when empty.")
	askCmd.Flags().Int("history-limit", 0, "similar answered questions to use (default from tuning.history-limit, must be positive)")
	askCmd.Flags().Int("answer-limit", 0, "answer variants to generate (default from tuning.answer-limit, must be positive)")
	askCmd.Flags().BoolP("interactive", "i", false, "pick an answer and record it as yours")
}

func ask(cmd *cobra.Command) {
	logger, config := bootstrap("ask")
	ctx := context.Background()

	userID, _ := cmd.Flags().GetString("user")
	question, _ := cmd.Flags().GetString("question")
	interactive, _ := cmd.Flags().GetBool("interactive")

	if strings.TrimSpace(question) == "" {
		if !interactive {
			logger.Fatal("question is required", zap.String("hint", "pass --question or --interactive"))
		}
		var err error
		if question, err = askQuestion(); err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}
	}

	a, err := newAssistant(ctx, config, logger, true)
	if err != nil {
		logger.Fatal("building the assistant", zap.Error(err))
	}
	defer a.Close()

	req := a.tuneRequest(userID, question)
	req.HistoryLimit = intFlag(cmd, "history-limit", req.HistoryLimit)
	req.AnswerLimit = intFlag(cmd, "answer-limit", req.AnswerLimit)

	res, err := a.session.QueryTuneAnswer(ctx, req)
	if errors.Is(err, session.ErrNoHistory) {
		logger.Info("exiting", zap.String("reason", "no similar answered questions found"), zap.String("hint", "record some answers and run upsert"))
		return
	}
	if err != nil {
		logger.Fatal("answering the question", zap.Error(err))
	}

	for _, pair := range res.History {
		logger.Info("similar question",
			zap.String("question_id", pair.QuestionID),
			zap.String("question", pair.Question),
			zap.String("answer", utils.TruncateForLog(pair.Answer, config.AI.MaxLogLength)),
		)
	}

	printAnswers(res)

	if !interactive {
		return
	}

	answer, err := pickAnswer(res)
	if err != nil {
		logger.Fatal("exiting", zap.Error(err))
	}
	if answer == "" {
		logger.Info("exiting", zap.String("reason", "no answer picked"))
		return
	}

	if err := recordAnswer(ctx, a, userID, question, answer, true); err != nil {
		logger.Fatal("recording the answer", zap.Error(err))
	}
}

func printAnswers(res *session.TuneResult) {
	if res.Draft != "" {
		fmt.Printf("Draft:\n%s\n\n", res.Draft)
	}
	for i, answer := range res.Answers {
		if answer == "" {
			answer = "(the model declined to answer)"
		}
		fmt.Printf("Answer %d:\n%s\n\n", i+1, answer)
	}
}

func askQuestion() (string, error) {
	prompt := promptui.Prompt{
		Label: "Question",
		Validate: func(s string) error {
			if strings.TrimSpace(s) == "" {
				return errors.New("question must not be empty")
			}
			return nil
		},
	}
	return prompt.Run()
}

// pickAnswer returns the chosen answer text, or "" when the user skipped.
func pickAnswer(res *session.TuneResult) (string, error) {
	items := make([]string, 0, len(res.Answers)+2)
	answers := make(map[string]string, len(res.Answers)+1)
	for i, answer := range res.Answers {
		if answer == "" {
			continue
		}
		label := fmt.Sprintf("%d. %s", i+1, utils.TruncateForLog(answer, 80))
		items = append(items, label)
		answers[label] = answer
	}
	if res.Draft != "" {
		items = append(items, PromptDraft)
		answers[PromptDraft] = res.Draft
	}

	selectPrompt := promptui.Select{
		Label: "Record which answer as yours?",
		Items: append(items, PromptSkip),
		Size:  len(items) + 1,
	}

	_, selected, err := selectPrompt.Run()
	if err != nil {
		return "", err
	}
	return answers[selected], nil
}

// intFlag returns the flag value when it was set on the command line, even
// to zero, and fallback otherwise.
func intFlag(cmd *cobra.Command, name string, fallback int) int {
	if !cmd.Flags().Changed(name) {
		return fallback
	}
	value, _ := cmd.Flags().GetInt(name)
	return value
}
