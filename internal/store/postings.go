package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Posting is a scraped job posting, optionally enriched by analysis.
type Posting struct {
	ID          string   `json:"id"`
	UserID      string   `json:"user_id"`
	Title       string   `json:"title"`
	Company     string   `json:"company"`
	Location    string   `json:"location"`
	Description string   `json:"description"`
	Source      string   `json:"source"`
	Summary     string   `json:"summary"`
	Skills      []string `json:"skills"`
}

// SavePosting inserts the posting, assigning an id when it has none. Saving
// a posting with a known id replaces it.
func (d *DB) SavePosting(ctx context.Context, p Posting) (Posting, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Skills == nil {
		p.Skills = []string{}
	}

	skills, err := json.Marshal(p.Skills)
	if err != nil {
		return Posting{}, fmt.Errorf("encoding skills: %w", err)
	}

	_, err = d.ExecContext(ctx, d.rebind(`
		INSERT INTO postings (id, user_id, title, company, location, description, source, summary, skills, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			user_id = excluded.user_id,
			title = excluded.title,
			company = excluded.company,
			location = excluded.location,
			description = excluded.description,
			source = excluded.source,
			summary = excluded.summary,
			skills = excluded.skills`),
		p.ID, p.UserID, p.Title, p.Company, p.Location, p.Description, p.Source, p.Summary, string(skills), d.timestamp())
	if err != nil {
		return Posting{}, fmt.Errorf("saving posting: %w", err)
	}

	return p, nil
}

// Postings lists the user's postings in insertion order.
func (d *DB) Postings(ctx context.Context, userID string) ([]Posting, error) {
	rows, err := d.QueryContext(ctx, d.rebind(`
		SELECT id, user_id, title, company, location, description, source, summary, skills
		FROM postings
		WHERE user_id = ?
		ORDER BY created_at, id`), userID)
	if err != nil {
		return nil, fmt.Errorf("querying postings: %w", err)
	}
	defer rows.Close()

	var out []Posting
	for rows.Next() {
		var (
			p      Posting
			skills string
		)
		if err := rows.Scan(&p.ID, &p.UserID, &p.Title, &p.Company, &p.Location, &p.Description, &p.Source, &p.Summary, &skills); err != nil {
			return nil, fmt.Errorf("scanning posting: %w", err)
		}
		if err := json.Unmarshal([]byte(skills), &p.Skills); err != nil {
			return nil, fmt.Errorf("decoding skills of posting %s: %w", p.ID, err)
		}
		out = append(out, p)
	}

	return out, rows.Err()
}
