package postings

import (
	"strings"
	"unicode"
)

const (
	maxOverrideRunes        = 300
	maxUserInstructionRunes = 600
	nonePlaceholder         = "none"
)

// PromptOverrides personalise the analysis prompt. Every field is optional
// and is sanitised before it reaches the model.
type PromptOverrides struct {
	Criteria         string `mapstructure:"criteria"`
	DealBreakers     string `mapstructure:"deal-breakers"`
	Keywords         string `mapstructure:"keywords"`
	Region           string `mapstructure:"region"`
	UserInstructions string `mapstructure:"user-instructions"`
}

func (o PromptOverrides) replacements() []string {
	return []string{
		"{{CRITERIA}}", singleLine(o.Criteria),
		"{{DEAL_BREAKERS}}", singleLine(o.DealBreakers),
		"{{KEYWORDS}}", keywords(o.Keywords),
		"{{REGION}}", singleLine(o.Region),
		"{{USER_INSTRUCTIONS}}", instructionsBlock(o.UserInstructions),
	}
}

// singleLine collapses whitespace, defuses section markers and caps length.
func singleLine(s string) string {
	s = defuse(strings.Join(strings.Fields(s), " "))
	if s == "" {
		return nonePlaceholder
	}
	return truncateRunes(s, maxOverrideRunes)
}

func keywords(s string) string {
	var out []string
	for _, k := range strings.Split(s, ",") {
		if k = strings.Join(strings.Fields(k), " "); k != "" {
			out = append(out, k)
		}
	}
	return singleLine(strings.Join(out, ", "))
}

// instructionsBlock renders free-form instructions as an indented list, one
// item per non-empty line.
func instructionsBlock(s string) string {
	s = truncateRunes(strings.TrimSpace(s), maxUserInstructionRunes)

	var lines []string
	for _, line := range strings.Split(s, "\n") {
		line = defuse(strings.Join(strings.FieldsFunc(line, unicode.IsSpace), " "))
		if line != "" {
			lines = append(lines, "  - "+line)
		}
	}
	if len(lines) == 0 {
		return "  - " + nonePlaceholder
	}
	return strings.Join(lines, "\n")
}

// defuse turns square brackets into parentheses so user text cannot open a
// prompt section.
func defuse(s string) string {
	return strings.NewReplacer("[", "(", "]", ")").Replace(s)
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
