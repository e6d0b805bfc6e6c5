package session

import "strings"

// Placeholder tokens recognized in prompt templates.
const (
	TokenHistQuestion = "hist_question"
	TokenHistAnswer   = "hist_answer"
	TokenHistory      = "substring_to_replace"
	TokenNewQuestion  = "new_question"
)

// Templates shape the prompts sent to the model.
type Templates struct {
	// System is sent verbatim as the system turn.
	System string `mapstructure:"system"`
	// User contains TokenHistory and TokenNewQuestion.
	User string `mapstructure:"user"`
	// HistoricalPair is rendered once per historical pair and contains
	// TokenHistQuestion and TokenHistAnswer.
	HistoricalPair string `mapstructure:"historical-pair"`
	// RewriteSuffix asks for yet another distinct answer.
	RewriteSuffix string `mapstructure:"rewrite-suffix"`
}

// DefaultTemplates returns the prompts used when none are configured.
func DefaultTemplates() Templates {
	return Templates{
		System: "You help a job seeker fill out application forms. " +
			"Rewrite their earlier answers so they fit the new question. " +
			"Keep the facts from the earlier answers, stay in the first person and reply with the answer text only.",
		User: "Here are questions I answered before, with my answers:\n" + TokenHistory +
			"\nAnswer this new question the way I would: " + TokenNewQuestion,
		HistoricalPair: "Question: " + TokenHistQuestion + "\nAnswer: " + TokenHistAnswer + "\n",
		RewriteSuffix:  "\nGive one more answer that is different from the answers above.",
	}
}

// renderPairs substitutes each pair into the template and concatenates the
// results in order. Replacement is a single pass, so a historical answer
// that happens to contain a token is left as is.
func renderPairs(template string, pairs []pair) string {
	var b strings.Builder
	for _, p := range pairs {
		r := strings.NewReplacer(TokenHistQuestion, p.question, TokenHistAnswer, p.answer)
		b.WriteString(r.Replace(template))
	}
	return b.String()
}

func renderUser(template, history, question string) string {
	return strings.NewReplacer(TokenHistory, history, TokenNewQuestion, question).Replace(template)
}
