// Package openai embeds questions with the OpenAI embeddings API.
package openai

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/spigell/apply-assistant/internal/embedding"
)

const (
	DefaultModel      = "text-embedding-3-small"
	DefaultDimensions = 1536

	maxBatchSize = 100
)

type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int
}

// Embedder sends the normalized tokens joined by spaces, so both local and
// remote embedders see the same text.
type Embedder struct {
	client *openai.Client
	model  string
	dims   int
}

var _ embedding.Embedder = (*Embedder)(nil)

func New(cfg Config) (*Embedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai embedder requires an API key")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = DefaultDimensions
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &Embedder{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
		dims:   cfg.Dimensions,
	}, nil
}

func (e *Embedder) Name() string { return e.model }

func (e *Embedder) Dimensions() int { return e.dims }

func (e *Embedder) Embed(ctx context.Context, docs [][]string) ([][]float32, error) {
	if len(docs) == 0 {
		return nil, nil
	}

	texts := make([]string, len(docs))
	for i, doc := range docs {
		if len(doc) == 0 {
			return nil, fmt.Errorf("document %d: %w", i, embedding.ErrEmptyInput)
		}
		texts[i] = strings.Join(doc, " ")
	}

	out := make([][]float32, len(texts))
	for start := 0; start < len(texts); start += maxBatchSize {
		end := min(start+maxBatchSize, len(texts))
		batch := texts[start:end]

		resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input:      batch,
			Model:      openai.EmbeddingModel(e.model),
			Dimensions: e.dims,
		})
		if err != nil {
			return nil, fmt.Errorf("openai embedding request failed: %w", err)
		}

		if len(resp.Data) != len(batch) {
			return nil, fmt.Errorf("openai returned %d embeddings, expected %d", len(resp.Data), len(batch))
		}

		// Items carry their input position and are not guaranteed to be ordered.
		for _, item := range resp.Data {
			if item.Index < 0 || item.Index >= len(batch) {
				return nil, fmt.Errorf("openai returned embedding index %d outside a batch of %d", item.Index, len(batch))
			}
			if out[start+item.Index] != nil {
				return nil, fmt.Errorf("openai returned embedding index %d twice", item.Index)
			}
			if len(item.Embedding) != e.dims {
				return nil, fmt.Errorf("openai returned %d dimensions, expected %d", len(item.Embedding), e.dims)
			}
			out[start+item.Index] = item.Embedding
		}
	}

	return out, nil
}
