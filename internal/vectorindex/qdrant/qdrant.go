// Package qdrant is a minimal REST client to Qdrant implementing
// vectorindex.Index. Collections use cosine distance.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/apply-assistant/internal/utils"
	"github.com/spigell/apply-assistant/internal/vectorindex"
)

const (
	DefaultCollection = "questions"
	defaultTimeout    = 15 * time.Second
)

type Config struct {
	URL        string
	APIKey     string
	Collection string
	Dimensions int
	Timeout    time.Duration
}

type Index struct {
	baseURL    string
	apiKey     string
	collection string
	dims       int
	client     *http.Client
	logger     *zap.Logger
}

var _ vectorindex.Index = (*Index)(nil)

func New(cfg Config, logger *zap.Logger) (*Index, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("qdrant url is required")
	}
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive, got %d", cfg.Dimensions)
	}
	if cfg.Collection == "" {
		cfg.Collection = DefaultCollection
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Index{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		dims:       cfg.Dimensions,
		client:     &http.Client{Timeout: cfg.Timeout},
		logger:     logger.With(zap.String("collection", cfg.Collection)),
	}, nil
}

func (i *Index) Dimensions() int { return i.dims }

type collectionInfo struct {
	Result struct {
		Config struct {
			Params struct {
				Vectors struct {
					Size int `json:"size"`
				} `json:"vectors"`
			} `json:"params"`
		} `json:"config"`
	} `json:"result"`
}

func (i *Index) Exists(ctx context.Context) (bool, error) {
	_, exists, err := i.info(ctx)
	return exists, err
}

// info returns the vector size of the collection and whether it exists.
func (i *Index) info(ctx context.Context) (int, bool, error) {
	var info collectionInfo
	status, err := i.do(ctx, http.MethodGet, i.collectionPath(""), nil, &info)
	if status == http.StatusNotFound {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return info.Result.Config.Params.Vectors.Size, true, nil
}

// Create creates the collection. An existing collection is accepted when its
// vector size matches.
func (i *Index) Create(ctx context.Context, dimensions int) error {
	if dimensions != i.dims {
		return fmt.Errorf("%w: requested %d, index configured for %d", vectorindex.ErrDimensionMismatch, dimensions, i.dims)
	}

	size, exists, err := i.info(ctx)
	if err != nil {
		return err
	}
	if exists {
		if size != 0 && size != dimensions {
			return fmt.Errorf("%w: collection %s has %d dimensions, index configured for %d",
				vectorindex.ErrDimensionMismatch, i.collection, size, dimensions)
		}
		return nil
	}

	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimensions,
			"distance": "Cosine",
		},
	}
	if _, err := i.do(ctx, http.MethodPut, i.collectionPath(""), body, nil); err != nil {
		return fmt.Errorf("creating collection %s: %w", i.collection, err)
	}
	i.logger.Info("collection created", zap.Int("dimensions", dimensions))

	return nil
}

func (i *Index) Upsert(ctx context.Context, entries []vectorindex.Entry) error {
	if err := vectorindex.CheckEntries(i.dims, entries); err != nil {
		return err
	}
	if err := i.Create(ctx, i.dims); err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	points := make([]map[string]any, len(entries))
	for n, e := range entries {
		point := map[string]any{
			"id":     e.ID,
			"vector": e.Vector,
		}
		if e.Metadata != nil {
			point["payload"] = e.Metadata
		}
		points[n] = point
	}

	body := map[string]any{"points": points}
	if _, err := i.do(ctx, http.MethodPut, i.collectionPath("/points?wait=true"), body, nil); err != nil {
		return fmt.Errorf("upserting points: %w", err)
	}

	return nil
}

type searchResponse struct {
	Result []struct {
		ID    json.RawMessage `json:"id"`
		Score float32         `json:"score"`
	} `json:"result"`
}

func (i *Index) Query(ctx context.Context, vector []float32, limit int, filter *vectorindex.Filter) ([]vectorindex.Match, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}
	if err := vectorindex.CheckDimensions(i.dims, vector); err != nil {
		return nil, err
	}
	if err := i.Create(ctx, i.dims); err != nil {
		return nil, err
	}

	req := map[string]any{
		"vector":       vector,
		"limit":        limit,
		"with_payload": false,
	}
	if filter != nil && len(filter.Match) > 0 {
		must := make([]map[string]any, 0, len(filter.Match))
		for key, value := range filter.Match {
			must = append(must, map[string]any{
				"key":   key,
				"match": map[string]any{"value": value},
			})
		}
		req["filter"] = map[string]any{"must": must}
	}

	var resp searchResponse
	if _, err := i.do(ctx, http.MethodPost, i.collectionPath("/points/search"), req, &resp); err != nil {
		return nil, fmt.Errorf("searching points: %w", err)
	}

	matches := make([]vectorindex.Match, 0, len(resp.Result))
	for _, r := range resp.Result {
		matches = append(matches, vectorindex.Match{ID: pointID(r.ID), Score: r.Score})
	}

	return matches, nil
}

func (i *Index) Delete(ctx context.Context, ids []string) error {
	_, exists, err := i.info(ctx)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("deleting from %s: %w", i.collection, vectorindex.ErrCollectionMissing)
	}
	if len(ids) == 0 {
		return nil
	}

	body := map[string]any{"points": ids}
	if _, err := i.do(ctx, http.MethodPost, i.collectionPath("/points/delete?wait=true"), body, nil); err != nil {
		return fmt.Errorf("deleting points: %w", err)
	}

	return nil
}

func (i *Index) collectionPath(suffix string) string {
	return fmt.Sprintf("%s/collections/%s%s", i.baseURL, url.PathEscape(i.collection), suffix)
}

// do sends a JSON request and decodes the JSON response into out. The HTTP
// status is returned even when err is set so callers can tell 404 apart.
func (i *Index) do(ctx context.Context, method, target string, body, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return 0, fmt.Errorf("building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if i.apiKey != "" {
		req.Header.Set("api-key", i.apiKey)
	}

	resp, err := i.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %s: %v", vectorindex.ErrUnavailable, method, target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		i.logger.Debug("qdrant request failed",
			zap.String("method", method),
			zap.Int("status", resp.StatusCode),
			zap.String("body", utils.TruncateForLog(string(payload), 200)),
		)
		return resp.StatusCode, fmt.Errorf("qdrant %s %s failed: %s", method, target, resp.Status)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decoding response: %w", err)
		}
	}

	return resp.StatusCode, nil
}

// pointID accepts both string (UUID) and numeric point ids.
func pointID(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}
