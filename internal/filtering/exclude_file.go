package filtering

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/spigell/apply-assistant/internal/store"
)

// Excluded is the content of an exclude file: external ids of postings that
// were already handled.
type Excluded struct {
	Postings []string `json:"postings"`
}

// LoadExcluded reads an exclude file. A missing file is an empty list.
func LoadExcluded(path string) (*Excluded, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &Excluded{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading exclude file: %w", err)
	}

	var e Excluded
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("parsing exclude file %s: %w", path, err)
	}
	return &e, nil
}

// Append adds the external ids of the postings, skipping known ones.
func (e *Excluded) Append(postings []store.Posting) int {
	known := e.set()
	added := 0
	for _, p := range postings {
		if p.ID == "" {
			continue
		}
		if _, ok := known[p.ID]; ok {
			continue
		}
		known[p.ID] = struct{}{}
		e.Postings = append(e.Postings, p.ID)
		added++
	}
	sort.Strings(e.Postings)
	return added
}

// Save writes the file, creating parent directories.
func (e *Excluded) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating exclude file directory: %w", err)
	}

	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding exclude file: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing exclude file: %w", err)
	}
	return nil
}

func (e *Excluded) set() map[string]struct{} {
	out := make(map[string]struct{}, len(e.Postings))
	for _, id := range e.Postings {
		out[id] = struct{}{}
	}
	return out
}

type excludeFileFilter struct {
	path string
}

// NewExcludeFile drops postings whose external id is listed in the file.
func NewExcludeFile(path string) Filter {
	return &excludeFileFilter{path: path}
}

func (f *excludeFileFilter) Name() string { return "exclude_file" }

func (f *excludeFileFilter) IsEnabled() bool { return f.path != "" }

func (f *excludeFileFilter) Apply(_ context.Context, postings []store.Posting) ([]store.Posting, Step, error) {
	excluded, err := LoadExcluded(f.path)
	if err != nil {
		return nil, Step{}, err
	}

	ids := excluded.set()
	left := keep(postings, func(p store.Posting) bool {
		_, ok := ids[p.ID]
		return p.ID != "" && ok
	})
	return left, step(len(postings), len(left)), nil
}

func (f *excludeFileFilter) Status() Status {
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Details: map[string]string{"path": f.path}}
}
