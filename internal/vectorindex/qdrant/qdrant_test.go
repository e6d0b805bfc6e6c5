package qdrant

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/spigell/apply-assistant/internal/vectorindex"
)

type point struct {
	ID      string            `json:"id"`
	Vector  []float32         `json:"vector"`
	Payload map[string]string `json:"payload"`
}

// fakeQdrant serves the subset of the Qdrant REST API the client uses.
type fakeQdrant struct {
	mu       sync.Mutex
	size     int
	exists   bool
	points   map[string]point
	apiKeys  []string
	searches []map[string]any
}

func (f *fakeQdrant) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.apiKeys = append(f.apiKeys, r.Header.Get("api-key"))
	path := strings.TrimPrefix(r.URL.Path, "/collections/questions")

	switch {
	case path == "" && r.Method == http.MethodGet:
		if !f.exists {
			http.Error(w, `{"status":{"error":"Not found"}}`, http.StatusNotFound)
			return
		}
		writeJSON(w, map[string]any{"result": map[string]any{
			"config": map[string]any{"params": map[string]any{"vectors": map[string]any{"size": f.size, "distance": "Cosine"}}},
		}})
	case path == "" && r.Method == http.MethodPut:
		var body struct {
			Vectors struct {
				Size     int    `json:"size"`
				Distance string `json:"distance"`
			} `json:"vectors"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.Vectors.Distance != "Cosine" {
			http.Error(w, "bad distance", http.StatusBadRequest)
			return
		}
		f.exists = true
		f.size = body.Vectors.Size
		f.points = make(map[string]point)
		writeJSON(w, map[string]any{"result": true})
	case path == "/points" && r.Method == http.MethodPut:
		if r.URL.Query().Get("wait") != "true" {
			http.Error(w, "wait required", http.StatusBadRequest)
			return
		}
		var body struct {
			Points []point `json:"points"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		for _, p := range body.Points {
			f.points[p.ID] = p
		}
		writeJSON(w, map[string]any{"result": map[string]any{"status": "completed"}})
	case path == "/points/search" && r.Method == http.MethodPost:
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.searches = append(f.searches, body)
		writeJSON(w, map[string]any{"result": f.search(body)})
	case path == "/points/delete" && r.Method == http.MethodPost:
		var body struct {
			Points []string `json:"points"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		for _, id := range body.Points {
			delete(f.points, id)
		}
		writeJSON(w, map[string]any{"result": map[string]any{"status": "completed"}})
	default:
		http.Error(w, "unexpected "+r.Method+" "+r.URL.Path, http.StatusNotFound)
	}
}

func (f *fakeQdrant) search(body map[string]any) []map[string]any {
	raw, _ := body["vector"].([]any)
	query := make([]float32, len(raw))
	for n, v := range raw {
		query[n] = float32(v.(float64))
	}

	owner := ""
	if filter, ok := body["filter"].(map[string]any); ok {
		must := filter["must"].([]any)
		cond := must[0].(map[string]any)
		owner = cond["match"].(map[string]any)["value"].(string)
	}

	type hit struct {
		id    string
		score float32
	}
	var hits []hit
	for _, p := range f.points {
		if owner != "" && p.Payload[vectorindex.OwnerKey] != owner {
			continue
		}
		var dot float32
		for n := range query {
			dot += query[n] * p.Vector[n]
		}
		hits = append(hits, hit{p.ID, dot})
	}
	sort.Slice(hits, func(a, b int) bool { return hits[a].score > hits[b].score })

	limit := int(body["limit"].(float64))
	if len(hits) > limit {
		hits = hits[:limit]
	}
	out := make([]map[string]any, len(hits))
	for n, h := range hits {
		out[n] = map[string]any{"id": h.id, "score": h.score, "version": 1}
	}
	return out
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func newIndex(t *testing.T, fake *fakeQdrant, dims int) *Index {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	idx, err := New(Config{URL: srv.URL + "/", APIKey: "secret", Dimensions: dims}, zap.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return idx
}

func TestUpsertAndQuery(t *testing.T) {
	fake := &fakeQdrant{}
	idx := newIndex(t, fake, 2)
	ctx := context.Background()

	err := idx.Upsert(ctx, []vectorindex.Entry{
		{ID: "11111111-1111-1111-1111-111111111111", Vector: []float32{1, 0}, Metadata: vectorindex.OwnerMetadata("u1")},
		{ID: "22222222-2222-2222-2222-222222222222", Vector: []float32{0, 1}, Metadata: vectorindex.OwnerMetadata("u2")},
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if !fake.exists || fake.size != 2 {
		t.Fatalf("expected collection of size 2 to be created, got exists=%v size=%d", fake.exists, fake.size)
	}

	matches, err := idx.Query(ctx, []float32{1, 0}, 2, nil)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(matches) != 2 || matches[0].ID != "11111111-1111-1111-1111-111111111111" {
		t.Fatalf("unexpected matches %+v", matches)
	}

	filtered, err := idx.Query(ctx, []float32{1, 0}, 2, vectorindex.OwnerFilter("u2"))
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(filtered) != 1 || filtered[0].ID != "22222222-2222-2222-2222-222222222222" {
		t.Fatalf("unexpected filtered matches %+v", filtered)
	}

	for _, key := range fake.apiKeys {
		if key != "secret" {
			t.Fatalf("expected api-key header on every request, got %q", key)
		}
	}
}

func TestUpsertOmitsEmptyPayload(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet:
			writeJSON(w, map[string]any{"result": map[string]any{}})
		case r.Method == http.MethodPut:
			_ = json.NewDecoder(r.Body).Decode(&got)
			writeJSON(w, map[string]any{"result": true})
		}
	}))
	defer srv.Close()

	idx, err := New(Config{URL: srv.URL, Dimensions: 1}, zap.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := idx.Upsert(context.Background(), []vectorindex.Entry{{ID: "1", Vector: []float32{1}}}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	points := got["points"].([]any)
	if _, ok := points[0].(map[string]any)["payload"]; ok {
		t.Fatalf("payload must be omitted when metadata is nil: %v", points[0])
	}
}

func TestCreateRejectsExistingCollectionWithOtherSize(t *testing.T) {
	fake := &fakeQdrant{exists: true, size: 300, points: map[string]point{}}
	idx := newIndex(t, fake, 2)

	err := idx.Upsert(context.Background(), []vectorindex.Entry{{ID: "a", Vector: []float32{1, 0}}})
	if !errors.Is(err, vectorindex.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestQueryDimensionMismatch(t *testing.T) {
	idx := newIndex(t, &fakeQdrant{}, 3)

	_, err := idx.Query(context.Background(), []float32{1}, 1, nil)
	if !errors.Is(err, vectorindex.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	fake := &fakeQdrant{}
	idx := newIndex(t, fake, 2)
	ctx := context.Background()

	if err := idx.Delete(ctx, []string{"a"}); !errors.Is(err, vectorindex.ErrCollectionMissing) {
		t.Fatalf("expected ErrCollectionMissing, got %v", err)
	}

	if err := idx.Upsert(ctx, []vectorindex.Entry{{ID: "a", Vector: []float32{1, 0}}, {ID: "b", Vector: []float32{0, 1}}}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := idx.Delete(ctx, []string{"a"}); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok := fake.points["a"]; ok {
		t.Fatalf("expected point a to be deleted")
	}
}

func TestUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	idx, err := New(Config{URL: url, Dimensions: 2}, zap.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := idx.Exists(context.Background()); !errors.Is(err, vectorindex.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestPointID(t *testing.T) {
	if got := pointID(json.RawMessage(`"abc"`)); got != "abc" {
		t.Fatalf("unexpected string id %q", got)
	}
	if got := pointID(json.RawMessage(`42`)); got != "42" {
		t.Fatalf("unexpected numeric id %q", got)
	}
}
