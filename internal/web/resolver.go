package web

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jumppguru/backend/internal/llm"
	"github.com/jumppguru/backend/internal/metrics"
	"github.com/jumppguru/backend/internal/textsplit"
	"github.com/jumppguru/backend/internal/vector/milvus"
	"github.com/jumppguru/backend/pkg/logger"
	"github.com/jumppguru/backend/pkg/utils"
)

// NothingFoundAnswer is the terminal, user-visible reply when the search step
// yields no candidate URLs. It is a valid outcome, not an error.
const NothingFoundAnswer = "Sorry, I couldn't find anything useful on the web."

const (
	contextCharLimit   = 7000
	chunkMaxLen        = 300
	webChunkConfidence = 0.8
	reindexTimeout     = 60 * time.Second
)

type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]string, error)
}

type PageFetcher interface {
	Fetch(ctx context.Context, pageURL string) (string, error)
}

type Generator interface {
	Complete(ctx context.Context, systemPrompt string, history []llm.Turn, userPrompt string) (string, error)
	Summarize(ctx context.Context, pageText string) (string, error)
}

type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

type ChunkStore interface {
	Insert(ctx context.Context, chunks []milvus.KnowledgeChunk) error
}

// Resolver answers a query from the live web when retrieval came up empty:
// search, scrape and summarize each hit in parallel, answer from the combined
// context, and grow the knowledge base with what was learned.
type Resolver struct {
	searcher   Searcher
	fetcher    PageFetcher
	generator  Generator
	embedder   Embedder
	chunks     ChunkStore
	maxResults int

	background sync.WaitGroup
}

func NewResolver(searcher Searcher, fetcher PageFetcher, generator Generator, embedder Embedder, chunks ChunkStore, maxResults int) *Resolver {
	if maxResults <= 0 {
		maxResults = 3
	}
	return &Resolver{
		searcher:   searcher,
		fetcher:    fetcher,
		generator:  generator,
		embedder:   embedder,
		chunks:     chunks,
		maxResults: maxResults,
	}
}

// Answer runs the full web fallback pipeline. Only a failure of the final
// generation call is returned as an error; every earlier stage degrades.
func (r *Resolver) Answer(ctx context.Context, query, languageTag string, history []llm.Turn) (string, error) {
	urls, err := r.searcher.Search(ctx, query, r.maxResults)
	if err != nil {
		logger.Warn("web search failed", zap.Error(err))
		urls = nil
	}
	if len(urls) == 0 {
		logger.Info("web search returned no URLs", zap.String("query", query))
		return NothingFoundAnswer, nil
	}

	summaries := r.scrapeAndSummarize(ctx, urls)

	var nonEmpty []string
	for _, s := range summaries {
		if strings.TrimSpace(s) != "" {
			nonEmpty = append(nonEmpty, s)
		}
	}
	webContext := utils.Truncate(strings.Join(nonEmpty, "\n\n"), contextCharLimit)

	logger.Info("web context assembled",
		zap.Int("urls", len(urls)),
		zap.Int("usable_summaries", len(nonEmpty)),
		zap.Int("context_len", len(webContext)),
	)

	if webContext != "" {
		r.reindexInBackground(webContext, query, urls)
	}

	// An empty context still generates: a low-confidence answer beats none.
	answer, err := r.generator.Complete(
		ctx,
		llm.TeacherSystemPrompt(languageTag),
		history,
		llm.ContextAnswerPrompt(webContext, query),
	)
	if err != nil {
		return "", fmt.Errorf("web fallback generation failed: %w", err)
	}

	return answer, nil
}

// scrapeAndSummarize fans out over the URLs and waits for every branch to
// settle. A failed branch contributes an empty summary; siblings are never
// cancelled because of it. Result order matches URL order.
func (r *Resolver) scrapeAndSummarize(ctx context.Context, urls []string) []string {
	summaries := make([]string, len(urls))

	var wg sync.WaitGroup
	for i, pageURL := range urls {
		wg.Add(1)
		go func(i int, pageURL string) {
			defer wg.Done()

			text, err := r.fetcher.Fetch(ctx, pageURL)
			if err != nil {
				metrics.ScrapeFailures.Inc()
				logger.Warn("scrape failed", zap.String("url", pageURL), zap.Error(err))
				return
			}
			if strings.TrimSpace(text) == "" {
				return
			}

			summary, err := r.generator.Summarize(ctx, text)
			if err != nil {
				metrics.ScrapeFailures.Inc()
				logger.Warn("summarize failed", zap.String("url", pageURL), zap.Error(err))
				return
			}
			summaries[i] = summary
		}(i, pageURL)
	}
	wg.Wait()

	return summaries
}

// reindexInBackground persists the gathered context as knowledge chunks on a
// detached task so indexing never delays the user-visible answer. Failures are
// logged and swallowed.
func (r *Resolver) reindexInBackground(webContext, query string, sourceURLs []string) {
	r.background.Add(1)
	go func() {
		defer r.background.Done()

		ctx, cancel := context.WithTimeout(context.Background(), reindexTimeout)
		defer cancel()

		if err := r.reindex(ctx, webContext, query, sourceURLs); err != nil {
			logger.Warn("web context re-index failed", zap.Error(err))
		}
	}()
}

func (r *Resolver) reindex(ctx context.Context, webContext, query string, sourceURLs []string) error {
	texts := textsplit.Chunk(webContext, chunkMaxLen)
	if len(texts) == 0 {
		return nil
	}

	embeddings, err := r.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed web chunks: %w", err)
	}
	if len(embeddings) != len(texts) {
		return fmt.Errorf("embedding count mismatch: got %d, expected %d", len(embeddings), len(texts))
	}

	source := strings.Join(sourceURLs, " ")
	now := time.Now()
	chunks := make([]milvus.KnowledgeChunk, 0, len(texts))
	for i, text := range texts {
		chunks = append(chunks, milvus.KnowledgeChunk{
			ID:          uuid.NewString(),
			Embedding:   embeddings[i],
			Text:        text,
			OriginQuery: query,
			SourceURL:   source,
			ContentType: "web_summary",
			Confidence:  webChunkConfidence,
			Subject:     "general",
			CreatedAt:   now,
		})
	}

	if err := r.chunks.Insert(ctx, chunks); err != nil {
		return fmt.Errorf("failed to store web chunks: %w", err)
	}

	metrics.ChunksIndexed.Add(float64(len(chunks)))
	logger.Info("web context re-indexed",
		zap.Int("chunks", len(chunks)),
		zap.String("origin_query", query),
	)
	return nil
}

// Drain blocks until pending background re-index tasks finish. Called during
// graceful shutdown.
func (r *Resolver) Drain() {
	r.background.Wait()
}
