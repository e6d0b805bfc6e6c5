package session

import (
	"strings"
	"testing"
)

func TestRenderPairs(t *testing.T) {
	tests := []struct {
		name     string
		template string
		pairs    []pair
		want     string
	}{
		{
			name:     "substitutes in order",
			template: "Q: hist_question A: hist_answer|",
			pairs:    []pair{{question: "one?", answer: "1"}, {question: "two?", answer: "2"}},
			want:     "Q: one? A: 1|Q: two? A: 2|",
		},
		{
			name:     "template without tokens is unchanged",
			template: "no placeholders here",
			pairs:    []pair{{question: "one?", answer: "1"}},
			want:     "no placeholders here",
		},
		{
			name:     "substituted text is not rescanned",
			template: "hist_question => hist_answer",
			pairs:    []pair{{question: "say hist_answer", answer: "hist_question"}},
			want:     "say hist_answer => hist_question",
		},
		{
			name:     "no pairs",
			template: "hist_question",
			want:     "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := renderPairs(tt.template, tt.pairs); got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestRenderUser(t *testing.T) {
	got := renderUser("Before: substring_to_replace | Now: new_question", "Q: a A: b", "Why new_question?")
	want := "Before: Q: a A: b | Now: Why new_question?"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}

	if got := renderUser("plain", "history", "question"); got != "plain" {
		t.Fatalf("template without tokens must be unchanged, got %q", got)
	}
}

func TestDefaultTemplatesCarryTokens(t *testing.T) {
	tpl := DefaultTemplates()
	for name, check := range map[string]bool{
		"user history":  strings.Contains(tpl.User, TokenHistory),
		"user question": strings.Contains(tpl.User, TokenNewQuestion),
		"pair question": strings.Contains(tpl.HistoricalPair, TokenHistQuestion),
		"pair answer":   strings.Contains(tpl.HistoricalPair, TokenHistAnswer),
		"suffix":        tpl.RewriteSuffix != "",
		"system":        tpl.System != "",
	} {
		if !check {
			t.Fatalf("default templates miss %s", name)
		}
	}
}
