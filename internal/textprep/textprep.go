// Package textprep turns raw question text into normalized token sequences:
// accents are stripped, case is folded, punctuation and English stopwords are
// dropped and the remaining words are reduced to their stems.
package textprep

import (
	"strings"
	"unicode"

	"github.com/kljensen/snowball/english"
	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalizer is safe for concurrent use.
type Normalizer struct {
	stopwords map[string]struct{}
	stem      bool
	minLength int
}

// Option customizes a Normalizer.
type Option func(*Normalizer)

// WithoutStemming keeps words in their folded surface form.
func WithoutStemming() Option {
	return func(n *Normalizer) { n.stem = false }
}

// WithStopwords replaces the default stopword list.
func WithStopwords(words []string) Option {
	return func(n *Normalizer) { n.stopwords = toSet(words) }
}

// WithMinLength drops tokens shorter than l runes after folding.
func WithMinLength(l int) Option {
	return func(n *Normalizer) { n.minLength = l }
}

func New(opts ...Option) *Normalizer {
	n := &Normalizer{
		stopwords: toSet(defaultStopwords),
		stem:      true,
		minLength: 1,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Normalize returns the cleaned token sequence for text. The result may be
// empty when text consists only of punctuation and stopwords.
func (n *Normalizer) Normalize(text string) []string {
	folded := fold(text)

	words := strings.FieldsFunc(folded, isSeparator)
	tokens := make([]string, 0, len(words))
	for _, word := range words {
		word = strings.Trim(word, "'")
		word = strings.TrimSuffix(word, "'s")
		if word == "" {
			continue
		}
		if _, stop := n.stopwords[word]; stop {
			continue
		}
		if n.stem && isLatin(word) {
			word = english.Stem(word, false)
		}
		if len([]rune(word)) < n.minLength {
			continue
		}
		tokens = append(tokens, word)
	}

	return tokens
}

// NormalizeAll normalizes every text, keeping positions aligned with the input.
func (n *Normalizer) NormalizeAll(texts []string) [][]string {
	out := make([][]string, len(texts))
	for i, text := range texts {
		out[i] = n.Normalize(text)
	}
	return out
}

var stripMarks = runes.Remove(runes.In(unicode.Mn))

func fold(text string) string {
	t := transform.Chain(norm.NFKD, stripMarks, norm.NFC)
	stripped, _, err := transform.String(t, text)
	if err != nil {
		stripped = text
	}
	stripped = strings.NewReplacer("’", "'", "‘", "'").Replace(stripped)
	return cases.Fold().String(stripped)
}

func isSeparator(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsNumber(r) && r != '\''
}

func isLatin(word string) bool {
	for _, r := range word {
		if r > unicode.MaxASCII || !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

func toSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[cases.Fold().String(strings.TrimSpace(w))] = struct{}{}
	}
	return set
}
