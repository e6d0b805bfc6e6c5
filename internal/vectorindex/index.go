// Package vectorindex stores question embeddings and answers nearest
// neighbour queries over them.
package vectorindex

import (
	"context"
	"errors"
	"fmt"
)

// OwnerKey is the metadata key carrying the user a question belongs to.
const OwnerKey = "owner_user_id"

var (
	// ErrDimensionMismatch is returned when a vector length differs from the
	// dimensionality of the index.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrUnavailable is returned when the index backend cannot be reached.
	ErrUnavailable = errors.New("vector index unavailable")
	// ErrCollectionMissing is returned by operations that never create the
	// collection on their own.
	ErrCollectionMissing = errors.New("collection does not exist")
)

// Entry is a vector with its id and optional metadata. A nil Metadata map
// means no metadata is stored.
type Entry struct {
	ID       string
	Vector   []float32
	Metadata map[string]string
}

// Match is a query hit. Higher scores are more similar.
type Match struct {
	ID    string  `json:"id"`
	Score float32 `json:"score"`
}

// Filter restricts a query to entries whose metadata equals every pair.
type Filter struct {
	Match map[string]string
}

// Index is a cosine-similarity vector collection. Upsert and Query create
// the collection when it does not exist yet.
type Index interface {
	Exists(ctx context.Context) (bool, error)
	Create(ctx context.Context, dimensions int) error
	Upsert(ctx context.Context, entries []Entry) error
	Query(ctx context.Context, vector []float32, limit int, filter *Filter) ([]Match, error)
	Delete(ctx context.Context, ids []string) error
	Dimensions() int
}

// OwnerFilter restricts a query to the user's entries. An empty user means
// no restriction.
func OwnerFilter(userID string) *Filter {
	if userID == "" {
		return nil
	}
	return &Filter{Match: map[string]string{OwnerKey: userID}}
}

// OwnerMetadata returns the metadata stored with a user's entries, or nil
// when the owner is unknown.
func OwnerMetadata(userID string) map[string]string {
	if userID == "" {
		return nil
	}
	return map[string]string{OwnerKey: userID}
}

// CheckDimensions verifies every vector has exactly dimensions elements.
func CheckDimensions(dimensions int, vectors ...[]float32) error {
	for i, v := range vectors {
		if len(v) != dimensions {
			return fmt.Errorf("%w: vector %d has %d elements, index expects %d", ErrDimensionMismatch, i, len(v), dimensions)
		}
	}
	return nil
}

// CheckEntries validates ids and vector lengths before an upsert.
func CheckEntries(dimensions int, entries []Entry) error {
	for i, e := range entries {
		if e.ID == "" {
			return fmt.Errorf("entry %d has an empty id", i)
		}
		if err := CheckDimensions(dimensions, e.Vector); err != nil {
			return fmt.Errorf("entry %s: %w", e.ID, err)
		}
	}
	return nil
}
