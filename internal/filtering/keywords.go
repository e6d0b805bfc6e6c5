package filtering

import (
	"context"
	"strings"

	"github.com/spigell/apply-assistant/internal/store"
)

type keywordsFilter struct {
	keywords []string
}

// NewRequiredKeywords keeps postings mentioning at least one keyword in the
// title or description.
func NewRequiredKeywords(keywords []string) Filter {
	f := &keywordsFilter{}
	for _, k := range keywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			f.keywords = append(f.keywords, k)
		}
	}
	return f
}

func (f *keywordsFilter) Name() string { return "required_keywords" }

func (f *keywordsFilter) IsEnabled() bool { return len(f.keywords) > 0 }

func (f *keywordsFilter) Apply(_ context.Context, postings []store.Posting) ([]store.Posting, Step, error) {
	left := keep(postings, func(p store.Posting) bool {
		text := strings.ToLower(p.Title + "\n" + p.Description)
		for _, k := range f.keywords {
			if strings.Contains(text, k) {
				return false
			}
		}
		return true
	})
	return left, step(len(postings), len(left)), nil
}

func (f *keywordsFilter) Status() Status {
	return Status{
		Name:    f.Name(),
		Enabled: f.IsEnabled(),
		Details: map[string]string{"keywords": strings.Join(f.keywords, ",")},
	}
}
