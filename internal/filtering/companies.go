package filtering

import (
	"context"
	"strings"

	"github.com/spigell/apply-assistant/internal/store"
)

type companiesFilter struct {
	companies map[string]struct{}
	names     []string
}

// NewExcludedCompanies drops postings of the listed companies. Names are
// compared case-insensitively.
func NewExcludedCompanies(companies []string) Filter {
	f := &companiesFilter{companies: make(map[string]struct{}, len(companies))}
	for _, c := range companies {
		if c = normalizeName(c); c != "" {
			f.companies[c] = struct{}{}
			f.names = append(f.names, c)
		}
	}
	return f
}

func (f *companiesFilter) Name() string { return "excluded_companies" }

func (f *companiesFilter) IsEnabled() bool { return len(f.companies) > 0 }

func (f *companiesFilter) Apply(_ context.Context, postings []store.Posting) ([]store.Posting, Step, error) {
	left := keep(postings, func(p store.Posting) bool {
		_, excluded := f.companies[normalizeName(p.Company)]
		return excluded
	})
	return left, step(len(postings), len(left)), nil
}

func (f *companiesFilter) Status() Status {
	return Status{
		Name:    f.Name(),
		Enabled: f.IsEnabled(),
		Details: map[string]string{"companies": strings.Join(f.names, ",")},
	}
}

func normalizeName(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
