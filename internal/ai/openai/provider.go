// Package openai answers prompts with the OpenAI Chat Completions API or any
// compatible endpoint.
package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/spigell/apply-assistant/internal/ai"
	"github.com/spigell/apply-assistant/internal/logger"
	"github.com/spigell/apply-assistant/internal/utils"
)

const (
	DefaultModel     = "gpt-4o-mini"
	defaultMaxTokens = 1024

	providerName = "openai"
)

type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float32
}

// Provider implements ai.Answerer using the Chat Completions API.
type Provider struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
	logger      *zap.Logger
}

var _ ai.Answerer = (*Provider)(nil)

func NewProvider(cfg Config, log *zap.Logger) (*Provider, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("openai api key is required")
	}

	clientCfg := openai.DefaultConfig(apiKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}

	return &Provider{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		logger:      logger.WithCommonFields(log, providerName, model),
	}, nil
}

func (p *Provider) Model() string { return p.model }

func (p *Provider) Answer(ctx context.Context, turns []ai.Turn) (string, error) {
	if len(turns) == 0 {
		return "", errors.New("prompt must not be empty")
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(turns))
	for _, t := range turns {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    chatRole(t.Role),
			Content: t.Content,
		})
	}

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       p.model,
		Messages:    messages,
		MaxTokens:   p.maxTokens,
		Temperature: p.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}

	var content string
	if len(resp.Choices) > 0 {
		content = strings.TrimSpace(resp.Choices[0].Message.Content)
		p.logger.Debug("chat completion response",
			zap.String("finish_reason", string(resp.Choices[0].FinishReason)),
			zap.Int("completion_tokens", resp.Usage.CompletionTokens),
			zap.String("response_preview", utils.TruncateForLog(content, 120)),
		)
	}

	if content == "" {
		return "", ai.ErrEmptyCompletion
	}

	return content, nil
}

func chatRole(role ai.Role) string {
	switch role {
	case ai.RoleSystem:
		return openai.ChatMessageRoleSystem
	case ai.RoleAssistant:
		return openai.ChatMessageRoleAssistant
	default:
		return openai.ChatMessageRoleUser
	}
}
