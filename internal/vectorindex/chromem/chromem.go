// Package chromem keeps the vector index inside the process with chromem-go,
// optionally persisted to a directory.
package chromem

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	chromem "github.com/philippgille/chromem-go"
	"go.uber.org/zap"

	"github.com/spigell/apply-assistant/internal/vectorindex"
)

const DefaultCollection = "questions"

// errNoEmbedder guards against chromem embedding content on its own: vectors
// are always computed by the caller.
var errNoEmbedder = errors.New("chromem collection embeds nothing; vectors must be supplied")

type Config struct {
	Collection string
	Dimensions int
	// Path enables persistence when set.
	Path     string
	Compress bool
}

type Index struct {
	db         *chromem.DB
	collection string
	dims       int
	logger     *zap.Logger
}

var _ vectorindex.Index = (*Index)(nil)

// New opens the chromem database described by cfg.
func New(cfg Config, logger *zap.Logger) (*Index, error) {
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive, got %d", cfg.Dimensions)
	}
	if cfg.Collection == "" {
		cfg.Collection = DefaultCollection
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	db := chromem.NewDB()
	if cfg.Path != "" {
		var err error
		db, err = chromem.NewPersistentDB(cfg.Path, cfg.Compress)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", vectorindex.ErrUnavailable, err)
		}
	}

	return &Index{
		db:         db,
		collection: cfg.Collection,
		dims:       cfg.Dimensions,
		logger:     logger.With(zap.String("collection", cfg.Collection)),
	}, nil
}

func (i *Index) Dimensions() int { return i.dims }

func (i *Index) Exists(context.Context) (bool, error) {
	return i.get() != nil, nil
}

// Create is a no-op for an existing collection.
func (i *Index) Create(_ context.Context, dimensions int) error {
	if dimensions != i.dims {
		return fmt.Errorf("%w: requested %d, index configured for %d", vectorindex.ErrDimensionMismatch, dimensions, i.dims)
	}
	if i.get() != nil {
		return nil
	}

	if _, err := i.db.CreateCollection(i.collection, nil, noEmbedding); err != nil {
		return fmt.Errorf("creating collection %s: %w", i.collection, err)
	}
	i.logger.Info("collection created", zap.Int("dimensions", dimensions))

	return nil
}

func (i *Index) Upsert(ctx context.Context, entries []vectorindex.Entry) error {
	if err := vectorindex.CheckEntries(i.dims, entries); err != nil {
		return err
	}

	col, err := i.ensure(ctx)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	docs := make([]chromem.Document, len(entries))
	for n, e := range entries {
		docs[n] = chromem.Document{
			ID:        e.ID,
			Metadata:  e.Metadata,
			Embedding: e.Vector,
		}
	}

	if err := col.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("adding documents: %w", err)
	}

	return nil
}

func (i *Index) Query(ctx context.Context, vector []float32, limit int, filter *vectorindex.Filter) ([]vectorindex.Match, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}
	if err := vectorindex.CheckDimensions(i.dims, vector); err != nil {
		return nil, err
	}

	col, err := i.ensure(ctx)
	if err != nil {
		return nil, err
	}

	// chromem-go requires nResults <= collection size.
	count := col.Count()
	if count == 0 {
		return nil, nil
	}
	limit = min(limit, count)

	var where map[string]string
	if filter != nil && len(filter.Match) > 0 {
		where = filter.Match
	}

	results, err := col.QueryEmbedding(ctx, vector, limit, where, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}

	matches := make([]vectorindex.Match, len(results))
	for n, r := range results {
		matches[n] = vectorindex.Match{ID: r.ID, Score: r.Similarity}
	}

	return matches, nil
}

func (i *Index) Delete(ctx context.Context, ids []string) error {
	col := i.get()
	if col == nil {
		return fmt.Errorf("deleting from %s: %w", i.collection, vectorindex.ErrCollectionMissing)
	}
	if len(ids) == 0 {
		return nil
	}

	if err := col.Delete(ctx, nil, nil, ids...); err != nil {
		return fmt.Errorf("deleting documents: %w", err)
	}

	return nil
}

func (i *Index) get() *chromem.Collection {
	return i.db.GetCollection(i.collection, noEmbedding)
}

func (i *Index) ensure(ctx context.Context) (*chromem.Collection, error) {
	if col := i.get(); col != nil {
		return col, nil
	}
	if err := i.Create(ctx, i.dims); err != nil {
		return nil, err
	}
	return i.get(), nil
}

func noEmbedding(context.Context, string) ([]float32, error) {
	return nil, errNoEmbedder
}
