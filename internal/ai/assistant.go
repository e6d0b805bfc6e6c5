// Package ai defines the contract between the assistant and generative
// language models.
package ai

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/apply-assistant/internal/logger"
)

// ErrEmptyCompletion is returned when the model produced no text.
var ErrEmptyCompletion = errors.New("model returned an empty completion")

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message of a prompt. A prompt is an ordered list of turns with
// the system turn first.
type Turn struct {
	Role    Role
	Content string
}

func System(content string) Turn { return Turn{Role: RoleSystem, Content: content} }

func User(content string) Turn { return Turn{Role: RoleUser, Content: content} }

// Answerer produces a single completion for a prompt.
type Answerer interface {
	Answer(ctx context.Context, turns []Turn) (string, error)
	Model() string
}

// Describe returns a logger annotated with the provider and model serving a.
func Describe(l *zap.Logger, provider string, a Answerer) *zap.Logger {
	model := ""
	if a != nil {
		model = a.Model()
	}
	return logger.WithCommonFields(l, provider, model)
}

// Split separates the system instruction from the conversation. Multiple
// system turns are joined with blank lines.
func Split(turns []Turn) (string, []Turn) {
	var system []string
	rest := make([]Turn, 0, len(turns))
	for _, t := range turns {
		if t.Role == RoleSystem {
			if s := strings.TrimSpace(t.Content); s != "" {
				system = append(system, s)
			}
			continue
		}
		rest = append(rest, t)
	}
	return strings.Join(system, "\n\n"), rest
}
