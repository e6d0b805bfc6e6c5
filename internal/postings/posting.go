// Package postings ingests scraped job postings and enriches them with a
// model-written analysis.
package postings

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"

	"github.com/spigell/apply-assistant/internal/store"
)

// ErrIncomplete marks a scraped record with neither a title nor a description.
var ErrIncomplete = errors.New("posting has no title and no description")

// record mirrors one entry of a SerpApi Google Jobs result.
type record struct {
	JobID       string `mapstructure:"job_id"`
	Title       string `mapstructure:"title"`
	Company     string `mapstructure:"company_name"`
	Location    string `mapstructure:"location"`
	Description string `mapstructure:"description"`
	Via         string `mapstructure:"via"`
}

// Decode converts scraped records into postings. Unknown keys are ignored
// and scalar values are converted to strings.
func Decode(raw []map[string]any) ([]store.Posting, error) {
	out := make([]store.Posting, 0, len(raw))
	for i, entry := range raw {
		var r record
		decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			Result:           &r,
		})
		if err != nil {
			return nil, fmt.Errorf("creating decoder: %w", err)
		}
		if err := decoder.Decode(entry); err != nil {
			return nil, fmt.Errorf("decoding posting %d: %w", i, err)
		}

		p := store.Posting{
			ID:          strings.TrimSpace(r.JobID),
			Title:       strings.TrimSpace(r.Title),
			Company:     strings.TrimSpace(r.Company),
			Location:    strings.TrimSpace(r.Location),
			Description: strings.TrimSpace(r.Description),
			Source:      source(r.Via),
		}
		if p.Title == "" && p.Description == "" {
			return nil, fmt.Errorf("posting %d: %w", i, ErrIncomplete)
		}
		out = append(out, p)
	}

	return out, nil
}

// ReadFile loads scraped postings from a JSON file holding either a list of
// records or a SerpApi response with a jobs_results list.
func ReadFile(path string) ([]store.Posting, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading postings: %w", err)
	}

	var list []map[string]any
	if err := json.Unmarshal(data, &list); err != nil {
		var envelope struct {
			Jobs []map[string]any `json:"jobs_results"`
		}
		if err2 := json.Unmarshal(data, &envelope); err2 != nil {
			return nil, fmt.Errorf("parsing postings %s: %w", path, err)
		}
		list = envelope.Jobs
	}

	return Decode(list)
}

// ownedID derives a stable id for a posting of a user, so re-ingesting the
// same scrape replaces earlier rows instead of duplicating them.
func ownedID(userID, externalID string) string {
	if externalID == "" {
		return ""
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(userID+"/"+externalID)).String()
}

func source(via string) string {
	via = strings.TrimSpace(via)
	if len(via) > 4 && strings.EqualFold(via[:4], "via ") {
		via = strings.TrimSpace(via[4:])
	}
	return via
}
