package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jumppguru/backend/internal/vector/milvus"
)

type stubEmbedder struct {
	vec []float32
	err error
}

func (s *stubEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	return s.vec, s.err
}

type stubIndex struct {
	results []milvus.SearchResult
	err     error
	gotTopK int
}

func (s *stubIndex) Search(_ context.Context, _ []float32, topK int) ([]milvus.SearchResult, error) {
	s.gotTopK = topK
	return s.results, s.err
}

func TestQuery_FiltersAndOrders(t *testing.T) {
	index := &stubIndex{results: []milvus.SearchResult{
		{ChunkID: "c1", Text: "light reactions", Score: 0.72},
		{ChunkID: "c2", Text: "calvin cycle", Score: 0.85},
		{ChunkID: "c3", Text: "unrelated", Score: 0.4},
	}}
	r := NewRetriever(&stubEmbedder{vec: []float32{0.1}}, index, nil)

	matches, err := r.Query(context.Background(), "photosynthesis", 10, 0.6)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	require.Equal(t, "calvin cycle", matches[0].Text)
	require.Equal(t, "light reactions", matches[1].Text)
	require.Equal(t, 10, index.gotTopK)
}

func TestQuery_TruncatesToTopK(t *testing.T) {
	index := &stubIndex{results: []milvus.SearchResult{
		{Text: "a", Score: 0.9},
		{Text: "b", Score: 0.8},
		{Text: "c", Score: 0.7},
	}}
	r := NewRetriever(&stubEmbedder{vec: []float32{0.1}}, index, nil)

	matches, err := r.Query(context.Background(), "q", 2, 0.5)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	require.Equal(t, "a", matches[0].Text)
}

func TestQuery_NothingAboveThresholdIsEmptyNotError(t *testing.T) {
	index := &stubIndex{results: []milvus.SearchResult{{Text: "a", Score: 0.2}}}
	r := NewRetriever(&stubEmbedder{vec: []float32{0.1}}, index, nil)

	matches, err := r.Query(context.Background(), "q", 5, 0.6)
	require.NoError(t, err)
	require.Empty(t, matches)
}

func TestQuery_EmbedderFailurePropagates(t *testing.T) {
	r := NewRetriever(&stubEmbedder{err: errors.New("provider down")}, &stubIndex{}, nil)

	_, err := r.Query(context.Background(), "q", 5, 0.6)
	require.Error(t, err)
}

type fakeCache struct {
	store map[string][]float32
	sets  int
}

func (f *fakeCache) GetEmbedding(_ context.Context, hash string) ([]float32, bool, error) {
	v, ok := f.store[hash]
	return v, ok, nil
}

func (f *fakeCache) SetEmbedding(_ context.Context, hash string, embedding []float32) error {
	f.store[hash] = embedding
	f.sets++
	return nil
}

func TestQuery_EmbeddingCacheAvoidsSecondProviderCall(t *testing.T) {
	calls := 0
	embedder := &countingEmbedder{vec: []float32{0.5}, calls: &calls}
	cache := &fakeCache{store: map[string][]float32{}}
	r := NewRetriever(embedder, &stubIndex{}, cache)

	_, err := r.Query(context.Background(), "same query", 5, 0.6)
	require.NoError(t, err)
	_, err = r.Query(context.Background(), "same query", 5, 0.6)
	require.NoError(t, err)

	require.Equal(t, 1, calls)
	require.Equal(t, 1, cache.sets)
}

type countingEmbedder struct {
	vec   []float32
	calls *int
}

func (c *countingEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	*c.calls++
	return c.vec, nil
}
