package subword

import (
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const artifactVersion = 1

type artifact struct {
	Version    int            `json:"version"`
	Dimensions int            `json:"dimensions"`
	MinN       int            `json:"min_n"`
	MaxN       int            `json:"max_n"`
	Documents  int            `json:"documents"`
	Frequency  map[string]int `json:"document_frequency"`
}

// ErrShapeMismatch is returned by Load when the artifact was produced by a
// model with different dimensions or n-gram range.
var ErrShapeMismatch = errors.New("model artifact shape mismatch")

// Save writes the model statistics to path. The file is replaced atomically.
func (m *Model) Save(path string) error {
	m.mu.RLock()
	a := artifact{
		Version:    artifactVersion,
		Dimensions: m.dims,
		MinN:       m.minN,
		MaxN:       m.maxN,
		Documents:  m.docs,
		Frequency:  make(map[string]int, len(m.df)),
	}
	for word, count := range m.df {
		a.Frequency[word] = count
	}
	m.mu.RUnlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating model directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temporary model file: %w", err)
	}
	defer os.Remove(tmp.Name())

	zw := gzip.NewWriter(tmp)
	if err := json.NewEncoder(zw).Encode(a); err != nil {
		tmp.Close()
		return fmt.Errorf("encoding model: %w", err)
	}
	if err := zw.Close(); err != nil {
		tmp.Close()
		return fmt.Errorf("compressing model: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing model file: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing model file: %w", err)
	}

	return nil
}

// Load replaces the model statistics with the ones stored at path.
func (m *Model) Load(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	zr, err := gzip.NewReader(file)
	if err != nil {
		return fmt.Errorf("reading model %q: %w", path, err)
	}
	defer zr.Close()

	var a artifact
	if err := json.NewDecoder(zr).Decode(&a); err != nil {
		return fmt.Errorf("decoding model %q: %w", path, err)
	}

	if a.Version != artifactVersion {
		return fmt.Errorf("unsupported model version %d", a.Version)
	}

	if a.Dimensions != m.dims || a.MinN != m.minN || a.MaxN != m.maxN {
		return fmt.Errorf("%w: artifact has %d dims n-grams [%d,%d], model has %d dims n-grams [%d,%d]",
			ErrShapeMismatch, a.Dimensions, a.MinN, a.MaxN, m.dims, m.minN, m.maxN)
	}

	if a.Frequency == nil {
		a.Frequency = make(map[string]int)
	}

	m.mu.Lock()
	m.docs = a.Documents
	m.df = a.Frequency
	m.mu.Unlock()

	return nil
}
