// Package subword implements a fastText-style sentence embedder. Every word
// is represented by hashed character n-grams so unseen words still land near
// their known relatives, and words are weighted by an inverse document
// frequency that is learned incrementally from training corpora.
package subword

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"sync"

	"github.com/spigell/apply-assistant/internal/embedding"
)

const (
	DefaultDimensions = 300
	DefaultMinN       = 3
	DefaultMaxN       = 6

	name = "subword"
)

// Config controls the shape of the model.
type Config struct {
	Dimensions int
	MinN       int
	MaxN       int
}

// Model is safe for concurrent use; Retrain and Load take a write lock.
type Model struct {
	dims int
	minN int
	maxN int

	mu   sync.RWMutex
	docs int
	df   map[string]int
}

var _ embedding.Trainable = (*Model)(nil)

func New(cfg Config) (*Model, error) {
	if cfg.Dimensions == 0 {
		cfg.Dimensions = DefaultDimensions
	}
	if cfg.MinN == 0 {
		cfg.MinN = DefaultMinN
	}
	if cfg.MaxN == 0 {
		cfg.MaxN = DefaultMaxN
	}

	if cfg.Dimensions < 0 {
		return nil, fmt.Errorf("dimensions must be positive, got %d", cfg.Dimensions)
	}
	if cfg.MinN < 1 || cfg.MaxN < cfg.MinN {
		return nil, fmt.Errorf("invalid n-gram range [%d, %d]", cfg.MinN, cfg.MaxN)
	}

	return &Model{
		dims: cfg.Dimensions,
		minN: cfg.MinN,
		maxN: cfg.MaxN,
		df:   make(map[string]int),
	}, nil
}

func (m *Model) Name() string { return name }

func (m *Model) Dimensions() int { return m.dims }

// Documents returns how many token sequences the model has been trained on.
func (m *Model) Documents() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.docs
}

// Vocabulary returns the number of distinct words seen during training.
func (m *Model) Vocabulary() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.df)
}

// Retrain adds corpus statistics to the model. Calling it repeatedly keeps
// extending the vocabulary rather than starting over.
func (m *Model) Retrain(ctx context.Context, corpus [][]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, doc := range corpus {
		if err := ctx.Err(); err != nil {
			return err
		}
		if len(doc) == 0 {
			continue
		}

		seen := make(map[string]struct{}, len(doc))
		for _, word := range doc {
			if _, ok := seen[word]; ok {
				continue
			}
			seen[word] = struct{}{}
			m.df[word]++
		}
		m.docs++
	}

	return nil
}

// Embed returns one L2-normalized vector per token sequence. An empty
// sequence yields embedding.ErrEmptyInput.
func (m *Model) Embed(ctx context.Context, docs [][]string) ([][]float32, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([][]float32, len(docs))
	for i, doc := range docs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vec, err := m.sentenceVector(doc)
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
		out[i] = vec
	}

	return out, nil
}

func (m *Model) sentenceVector(words []string) ([]float32, error) {
	if len(words) == 0 {
		return nil, embedding.ErrEmptyInput
	}

	acc := make([]float64, m.dims)
	var total float64
	for _, word := range words {
		if word == "" {
			continue
		}
		weight := m.idf(word)
		m.addWord(acc, word, weight)
		total += weight
	}

	if total == 0 {
		return nil, embedding.ErrEmptyInput
	}

	var norm float64
	for i := range acc {
		acc[i] /= total
		norm += acc[i] * acc[i]
	}
	norm = math.Sqrt(norm)

	vec := make([]float32, m.dims)
	if norm == 0 {
		return nil, embedding.ErrEmptyInput
	}
	for i, v := range acc {
		vec[i] = float32(v / norm)
	}

	return vec, nil
}

// addWord spreads the word's n-grams over the buckets. Each word vector is
// the mean of its features, so long words do not dominate short ones.
func (m *Model) addWord(acc []float64, word string, weight float64) {
	features := m.features(word)
	share := weight / float64(len(features))
	for _, f := range features {
		bucket, sign := m.bucket(f)
		acc[bucket] += sign * share
	}
}

func (m *Model) features(word string) []string {
	runes := []rune("<" + word + ">")
	features := []string{word}
	for n := m.minN; n <= m.maxN; n++ {
		for start := 0; start+n <= len(runes); start++ {
			gram := string(runes[start : start+n])
			if gram == "<"+word+">" {
				continue
			}
			features = append(features, gram)
		}
	}
	return features
}

func (m *Model) bucket(feature string) (int, float64) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64()

	sign := 1.0
	if sum>>63 == 1 {
		sign = -1.0
	}
	return int(sum % uint64(m.dims)), sign
}

// idf is the smoothed inverse document frequency; an untrained model weights
// every word equally.
func (m *Model) idf(word string) float64 {
	n := float64(m.docs)
	return math.Log((1+n)/(1+float64(m.df[word]))) + 1
}
