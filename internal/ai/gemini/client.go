package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/spigell/apply-assistant/internal/ai"
	"github.com/spigell/apply-assistant/internal/logger"
)

const (
	DefaultModel         = "gemini-2.5-flash"
	defaultMaxRetries    = 3
	defaultMaxQuotaDelay = 30 * time.Second
	baseBackoff          = time.Second

	providerName = "gemini"
)

var sleep = time.Sleep

type chatSession interface {
	SendMessage(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

type chatCreator interface {
	Create(ctx context.Context, model string, config *genai.GenerateContentConfig, history []*genai.Content) (chatSession, error)
}

type genaiChats struct {
	chats *genai.Chats
}

func (c genaiChats) Create(ctx context.Context, model string, config *genai.GenerateContentConfig, history []*genai.Content) (chatSession, error) {
	return c.chats.Create(ctx, model, config, history)
}

type Config struct {
	APIKey        string
	Model         string
	MaxRetries    int
	MaxQuotaDelay time.Duration
	Temperature   *float32
}

// Generator wraps the Google GenAI chat API. Every call starts a fresh chat
// seeded with the earlier turns of the prompt.
type Generator struct {
	chats         chatCreator
	model         string
	maxRetries    int
	maxQuotaDelay time.Duration
	temperature   *float32
	logger        *zap.Logger
}

var _ ai.Answerer = (*Generator)(nil)

// NewGenerator creates a new Generator configured for the Gemini API backend.
func NewGenerator(ctx context.Context, cfg Config, log *zap.Logger) (*Generator, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultModel
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.MaxQuotaDelay <= 0 {
		cfg.MaxQuotaDelay = defaultMaxQuotaDelay
	}

	return &Generator{
		chats:         genaiChats{chats: client.Chats},
		model:         model,
		maxRetries:    cfg.MaxRetries,
		maxQuotaDelay: cfg.MaxQuotaDelay,
		temperature:   cfg.Temperature,
		logger:        logger.WithCommonFields(log, providerName, model),
	}, nil
}

// Answer maps the system turns to the system instruction, earlier turns to
// chat history and sends the last user turn.
func (g *Generator) Answer(ctx context.Context, turns []ai.Turn) (string, error) {
	if g == nil || g.chats == nil {
		return "", errors.New("gemini generator is not initialized")
	}

	system, conversation := ai.Split(turns)
	if len(conversation) == 0 || conversation[len(conversation)-1].Role != ai.RoleUser {
		return "", errors.New("prompt must end with a user turn")
	}

	message := strings.TrimSpace(conversation[len(conversation)-1].Content)
	if message == "" {
		return "", errors.New("prompt must not be empty")
	}

	history := make([]*genai.Content, 0, len(conversation)-1)
	for _, t := range conversation[:len(conversation)-1] {
		role := genai.RoleUser
		if t.Role == ai.RoleAssistant {
			role = genai.RoleModel
		}
		history = append(history, genai.NewContentFromText(t.Content, genai.Role(role)))
	}

	config := &genai.GenerateContentConfig{Temperature: g.temperature}
	if system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	attempts := max(g.maxRetries, 1)
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		output, err := g.send(ctx, config, history, message)
		if err == nil {
			return output, nil
		}
		lastErr = err

		wait, retry := g.retryDelay(err, attempt)
		if !retry || attempt == attempts {
			break
		}

		g.logger.Warn("gemini request failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
		sleep(wait)
		if err := ctx.Err(); err != nil {
			return "", err
		}
	}

	return "", lastErr
}

func (g *Generator) send(ctx context.Context, config *genai.GenerateContentConfig, history []*genai.Content, message string) (string, error) {
	chat, err := g.chats.Create(ctx, g.model, config, history)
	if err != nil {
		return "", fmt.Errorf("create chat: %w", err)
	}

	resp, err := chat.SendMessage(ctx, genai.Part{Text: message})
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	output := responseText(resp)
	if output == "" {
		return "", ai.ErrEmptyCompletion
	}

	return output, nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}

	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil || part.Thought {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(text)
		}
	}

	return strings.TrimSpace(builder.String())
}

// retryDelay decides whether err is temporary and how long to wait before
// the next attempt.
func (g *Generator) retryDelay(err error, attempt int) (time.Duration, bool) {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return 0, false
	}

	backoff := baseBackoff << (attempt - 1)

	switch {
	case apiErr.Code >= http.StatusInternalServerError:
		return backoff, true
	case apiErr.Code == http.StatusTooManyRequests:
		wait, ok := quotaDelay(apiErr)
		if !ok {
			return backoff, true
		}
		if wait > g.maxQuotaDelay {
			g.logger.Warn("gemini quota delay exceeds limit, giving up",
				zap.Duration("requested", wait),
				zap.Duration("limit", g.maxQuotaDelay),
			)
			return 0, false
		}
		return wait, true
	default:
		return 0, false
	}
}

var (
	retryAfterSeconds = regexp.MustCompile(`(?i)retry (?:after|in) ([0-9]+(?:\.[0-9]+)?) ?(s|sec|secs|second|seconds)\b`)
	retryDuration     = regexp.MustCompile(`^[0-9]+(?:\.[0-9]+)?s$`)
)

// quotaDelay extracts the server-suggested wait from a RetryInfo detail or
// from the message text.
func quotaDelay(apiErr genai.APIError) (time.Duration, bool) {
	for _, detail := range apiErr.Details {
		raw, ok := detail["retryDelay"].(string)
		if !ok || !retryDuration.MatchString(raw) {
			continue
		}
		if d, err := time.ParseDuration(raw); err == nil {
			return d, true
		}
	}

	if m := retryAfterSeconds.FindStringSubmatch(apiErr.Message); m != nil {
		seconds, err := strconv.ParseFloat(m[1], 64)
		if err == nil {
			return time.Duration(seconds * float64(time.Second)), true
		}
	}

	return 0, false
}

func (g *Generator) Model() string {
	if g == nil {
		return ""
	}
	return g.model
}
