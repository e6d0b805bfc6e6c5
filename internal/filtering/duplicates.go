package filtering

import (
	"context"

	"github.com/spigell/apply-assistant/internal/store"
)

type duplicatesFilter struct{}

// NewDuplicates keeps the first of several postings sharing an id, or a
// title and company when the id is unknown. Job boards repost the same offer
// through several aggregators.
func NewDuplicates() Filter {
	return duplicatesFilter{}
}

func (duplicatesFilter) Name() string { return "duplicates" }

func (duplicatesFilter) IsEnabled() bool { return true }

func (duplicatesFilter) Apply(_ context.Context, postings []store.Posting) ([]store.Posting, Step, error) {
	seen := make(map[string]struct{}, len(postings))
	left := keep(postings, func(p store.Posting) bool {
		key := "title:" + normalizeName(p.Title) + "|" + normalizeName(p.Company)
		if p.ID != "" {
			key = "id:" + p.ID
		}
		if _, dup := seen[key]; dup {
			return true
		}
		seen[key] = struct{}{}
		return false
	})
	return left, step(len(postings), len(left)), nil
}
