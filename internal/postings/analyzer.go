package postings

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	_ "embed"

	"go.uber.org/zap"

	"github.com/spigell/apply-assistant/internal/ai"
	"github.com/spigell/apply-assistant/internal/store"
	"github.com/spigell/apply-assistant/internal/utils"
)

//go:embed prompt.md
var promptTemplate string

const defaultMaxLogLength = 200

// Analysis is the model's reading of one posting.
type Analysis struct {
	Summary   string
	Skills    []string
	Seniority string
	Fit       bool
	Score     float64
	Raw       string
}

type Analyzer struct {
	answerer  ai.Answerer
	minScore  float64
	overrides PromptOverrides
	logger    *zap.Logger
	maxLogLen int
}

func NewAnalyzer(answerer ai.Answerer, minScore float64, maxLogLength int, logger *zap.Logger) *Analyzer {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Analyzer{
		answerer:  answerer,
		minScore:  minScore,
		logger:    logger,
		maxLogLen: maxLogLength,
	}
}

func (a *Analyzer) SetPromptOverrides(o PromptOverrides) {
	a.overrides = o
}

func (a *Analyzer) Analyze(ctx context.Context, p store.Posting) (*Analysis, error) {
	if strings.TrimSpace(p.Title) == "" && strings.TrimSpace(p.Description) == "" {
		return nil, ErrIncomplete
	}

	payload, err := json.MarshalIndent(map[string]string{
		"title":       p.Title,
		"company":     p.Company,
		"location":    p.Location,
		"description": p.Description,
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal posting payload: %w", err)
	}

	prompt := a.buildPrompt(string(payload))

	a.logger.Debug("posting analysis request",
		zap.String("posting_id", p.ID),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, a.maxLogLen)),
	)

	raw, err := a.answerer.Answer(ctx, []ai.Turn{ai.User(prompt)})
	if err != nil {
		return nil, err
	}

	a.logger.Debug("posting analysis response",
		zap.String("posting_id", p.ID),
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, a.maxLogLen)),
	)

	analysis, err := parseResponse(raw)
	if err != nil {
		return nil, err
	}

	if a.minScore > 0 && analysis.Score < a.minScore {
		a.logger.Debug("set fit to false by score threshold",
			zap.String("posting_id", p.ID),
			zap.Float64("score", analysis.Score),
			zap.Float64("threshold", a.minScore),
		)
		analysis.Fit = false
	}

	analysis.Raw = raw
	return analysis, nil
}

func (a *Analyzer) buildPrompt(postingJSON string) string {
	template := promptTemplate
	if strings.TrimSpace(template) == "" {
		template = "Posting:\n{{POSTING_JSON}}\n\nJSON Response:"
	}
	replacements := append(a.overrides.replacements(), "{{POSTING_JSON}}", postingJSON)
	return strings.NewReplacer(replacements...).Replace(template)
}

func parseResponse(raw string) (*Analysis, error) {
	cleaned := extractJSON(raw)

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return nil, fmt.Errorf("parse analysis response: %w", err)
	}

	score := coerceFloat(data["score"])
	if math.IsNaN(score) {
		score = 0
	}

	return &Analysis{
		Summary:   coerceString(data["summary"]),
		Skills:    coerceStrings(data["skills"]),
		Seniority: strings.ToLower(coerceString(data["seniority"])),
		Fit:       coerceBool(data["fit"]),
		Score:     score,
	}, nil
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	raw = strings.TrimSpace(raw)

	// Models sometimes wrap the object in prose.
	if start, end := strings.Index(raw, "{"), strings.LastIndex(raw, "}"); start >= 0 && end > start {
		raw = raw[start : end+1]
	}
	return raw
}

func coerceBool(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case string:
		lower := strings.ToLower(strings.TrimSpace(val))
		return lower == "true" || lower == "yes"
	case float64:
		return val != 0
	default:
		return false
	}
}

func coerceFloat(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case string:
		trimmed := strings.TrimSpace(val)
		if trimmed == "" {
			return math.NaN()
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

func coerceString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case fmt.Stringer:
		return strings.TrimSpace(val.String())
	default:
		if v == nil {
			return ""
		}
		bytes, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(bytes)
	}
}

// coerceStrings accepts a JSON list or a comma separated string.
func coerceStrings(v any) []string {
	var items []string
	switch val := v.(type) {
	case []any:
		for _, item := range val {
			items = append(items, coerceString(item))
		}
	case string:
		items = strings.Split(val, ",")
	default:
		return nil
	}

	out := make([]string, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		key := strings.ToLower(item)
		if _, dup := seen[key]; item == "" || dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, item)
	}
	return out
}
