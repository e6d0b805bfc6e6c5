// Package embedding defines how normalized token sequences become vectors.
package embedding

import (
	"context"
	"errors"
)

// ErrEmptyInput is returned when a token sequence carries nothing to embed.
var ErrEmptyInput = errors.New("nothing to embed")

// Embedder generates fixed-length vectors for normalized token sequences.
type Embedder interface {
	// Embed returns one vector per token sequence, in input order.
	Embed(ctx context.Context, docs [][]string) ([][]float32, error)

	// Dimensions returns the length of every produced vector.
	Dimensions() int

	// Name returns the name/identifier of the embedding model.
	Name() string
}

// Trainable is implemented by embedders whose parameters are learned locally
// and persisted to a model artifact.
type Trainable interface {
	Embedder
	Retrain(ctx context.Context, corpus [][]string) error
	Save(path string) error
	Load(path string) error
}
