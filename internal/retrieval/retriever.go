package retrieval

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/jumppguru/backend/internal/vector/milvus"
	"github.com/jumppguru/backend/pkg/logger"
	"github.com/jumppguru/backend/pkg/utils"
)

// ChunkMatch is an ephemeral retrieval hit. Only the chunks behind it are
// persisted, never the match itself.
type ChunkMatch struct {
	Text      string
	SourceURL string
	Score     float64
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type Index interface {
	Search(ctx context.Context, queryEmbedding []float32, topK int) ([]milvus.SearchResult, error)
}

// EmbeddingCache is optional; a nil cache disables it.
type EmbeddingCache interface {
	GetEmbedding(ctx context.Context, textHash string) ([]float32, bool, error)
	SetEmbedding(ctx context.Context, textHash string, embedding []float32) error
}

type Retriever struct {
	embedder Embedder
	index    Index
	cache    EmbeddingCache
}

func NewRetriever(embedder Embedder, index Index, cache EmbeddingCache) *Retriever {
	return &Retriever{
		embedder: embedder,
		index:    index,
		cache:    cache,
	}
}

// Query embeds the text, searches the chunk index and keeps matches at or
// above minScore, best first, at most topK. An empty result is a valid state,
// not an error; it is what triggers the web fallback upstream. Embedding or
// index failures do propagate, and the caller must degrade them to "no
// chunks".
func (r *Retriever) Query(ctx context.Context, text string, topK int, minScore float64) ([]ChunkMatch, error) {
	embedding, err := r.embedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("retrieval embedding failed: %w", err)
	}

	results, err := r.index.Search(ctx, embedding, topK)
	if err != nil {
		return nil, fmt.Errorf("retrieval search failed: %w", err)
	}

	matches := make([]ChunkMatch, 0, len(results))
	for _, res := range results {
		if float64(res.Score) < minScore {
			continue
		}
		matches = append(matches, ChunkMatch{
			Text:      res.Text,
			SourceURL: res.SourceURL,
			Score:     float64(res.Score),
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}

	logger.Debug("retrieval completed",
		zap.Int("candidates", len(results)),
		zap.Int("matches", len(matches)),
		zap.Float64("min_score", minScore),
	)

	return matches, nil
}

func (r *Retriever) embedQuery(ctx context.Context, text string) ([]float32, error) {
	if r.cache == nil {
		return r.embedder.Embed(ctx, text)
	}

	hash := utils.HashString(text)
	if cached, ok, err := r.cache.GetEmbedding(ctx, hash); err == nil && ok {
		return cached, nil
	}

	embedding, err := r.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	if err := r.cache.SetEmbedding(ctx, hash, embedding); err != nil {
		logger.Warn("failed to cache embedding", zap.Error(err))
	}

	return embedding, nil
}
