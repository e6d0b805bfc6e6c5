package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/spigell/apply-assistant/internal/ai"
	"github.com/spigell/apply-assistant/internal/store"
	"github.com/spigell/apply-assistant/internal/vectorindex"
)

type fakeStore struct {
	byUser  map[string][]store.Question
	all     []store.Question
	answers map[string]store.QAPair
	err     error
}

func (f *fakeStore) QuestionsForUser(_ context.Context, userID string) ([]store.Question, error) {
	return f.byUser[userID], f.err
}

func (f *fakeStore) AllQuestions(context.Context) ([]store.Question, error) {
	return f.all, f.err
}

func (f *fakeStore) AnswerForQuestion(_ context.Context, id string) (store.QAPair, error) {
	if f.err != nil {
		return store.QAPair{}, f.err
	}
	qa, ok := f.answers[id]
	if !ok {
		return store.QAPair{}, fmt.Errorf("question %s: %w", id, store.ErrNotFound)
	}
	return qa, nil
}

type fakeIndex struct {
	dims      int
	matches   []vectorindex.Match
	queryErr  error
	calls     []string
	upserts   [][]vectorindex.Entry
	lastLimit int
	filter    *vectorindex.Filter
	deleted   []string
}

func (f *fakeIndex) Exists(context.Context) (bool, error) {
	f.calls = append(f.calls, "exists")
	return true, nil
}

func (f *fakeIndex) Create(context.Context, int) error {
	f.calls = append(f.calls, "create")
	return nil
}

func (f *fakeIndex) Upsert(_ context.Context, entries []vectorindex.Entry) error {
	f.calls = append(f.calls, "upsert")
	f.upserts = append(f.upserts, entries)
	return nil
}

func (f *fakeIndex) Query(_ context.Context, _ []float32, limit int, filter *vectorindex.Filter) ([]vectorindex.Match, error) {
	f.calls = append(f.calls, "query")
	f.lastLimit = limit
	f.filter = filter
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	if len(f.matches) > limit {
		return f.matches[:limit], nil
	}
	return f.matches, nil
}

func (f *fakeIndex) Delete(_ context.Context, ids []string) error {
	f.calls = append(f.calls, "delete")
	f.deleted = append(f.deleted, ids...)
	return nil
}

func (f *fakeIndex) Dimensions() int { return f.dims }

type fakeEmbedder struct {
	dims int
	docs [][]string
}

func (f *fakeEmbedder) Embed(_ context.Context, docs [][]string) ([][]float32, error) {
	f.docs = append(f.docs, docs...)
	out := make([][]float32, len(docs))
	for i, doc := range docs {
		v := make([]float32, f.dims)
		v[0] = float32(len(doc))
		out[i] = v
	}
	return out, nil
}

func (f *fakeEmbedder) Dimensions() int { return f.dims }

func (f *fakeEmbedder) Name() string { return "fake" }

// echoAnswerer replies with the round number and the length of the prompt it
// saw, and records every prompt.
type echoAnswerer struct {
	prompts []string
	systems []string
}

func (e *echoAnswerer) Answer(_ context.Context, turns []ai.Turn) (string, error) {
	e.systems = append(e.systems, turns[0].Content)
	user := turns[len(turns)-1].Content
	e.prompts = append(e.prompts, user)
	return fmt.Sprintf("answer-%d(len=%d)", len(e.prompts), len(user)), nil
}

func (e *echoAnswerer) Model() string { return "echo" }

type scriptedReply struct {
	text string
	err  error
}

type scriptedAnswerer struct {
	replies []scriptedReply
	prompts []string
}

func (s *scriptedAnswerer) Answer(_ context.Context, turns []ai.Turn) (string, error) {
	s.prompts = append(s.prompts, turns[len(turns)-1].Content)
	if len(s.replies) == 0 {
		return "", fmt.Errorf("unexpected call")
	}
	r := s.replies[0]
	s.replies = s.replies[1:]
	return r.text, r.err
}

func (s *scriptedAnswerer) Model() string { return "scripted" }

type wordNormalizer struct{}

func (wordNormalizer) Normalize(text string) []string {
	return strings.Fields(strings.ToLower(text))
}
