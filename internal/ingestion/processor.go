package ingestion

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jumppguru/backend/internal/metrics"
	"github.com/jumppguru/backend/internal/textsplit"
	"github.com/jumppguru/backend/internal/vector/milvus"
	"github.com/jumppguru/backend/pkg/logger"
)

// Curated material enters at full confidence; web-derived chunks carry their
// own lower score at the point they are indexed.
const curatedConfidence = 1.0

type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

type ChunkStore interface {
	Insert(ctx context.Context, chunks []milvus.KnowledgeChunk) error
}

// Processor turns raw curated texts into embedded knowledge chunks. This is
// the admin-facing path into the knowledge base; the web resolver feeds the
// same store on its own.
type Processor struct {
	embedder Embedder
	chunks   ChunkStore
}

func NewProcessor(embedder Embedder, chunks ChunkStore) *Processor {
	return &Processor{embedder: embedder, chunks: chunks}
}

// Ingest chunks, embeds and stores the given texts under one subject and
// content type. It returns the number of chunks written. Unlike the answer
// pipeline, nothing here degrades: an ingestion either lands fully or fails.
func (p *Processor) Ingest(ctx context.Context, subject, contentType string, texts []string) (int, error) {
	if subject == "" {
		subject = "general"
	}
	if contentType == "" {
		contentType = "curated"
	}

	var pieces []string
	for _, text := range texts {
		if strings.TrimSpace(text) == "" {
			continue
		}
		pieces = append(pieces, textsplit.Chunk(text, textsplit.DefaultMaxChunkLen)...)
	}
	if len(pieces) == 0 {
		return 0, fmt.Errorf("no usable text to ingest")
	}

	embeddings, err := p.embedder.EmbedBatch(ctx, pieces)
	if err != nil {
		return 0, fmt.Errorf("failed to embed ingested texts: %w", err)
	}
	if len(embeddings) != len(pieces) {
		return 0, fmt.Errorf("embedding count mismatch: got %d, expected %d", len(embeddings), len(pieces))
	}

	now := time.Now()
	chunks := make([]milvus.KnowledgeChunk, 0, len(pieces))
	for i, piece := range pieces {
		chunks = append(chunks, milvus.KnowledgeChunk{
			ID:          uuid.NewString(),
			Embedding:   embeddings[i],
			Text:        piece,
			ContentType: contentType,
			Confidence:  curatedConfidence,
			Subject:     subject,
			CreatedAt:   now,
		})
	}

	if err := p.chunks.Insert(ctx, chunks); err != nil {
		return 0, fmt.Errorf("failed to store ingested chunks: %w", err)
	}

	metrics.ChunksIndexed.Add(float64(len(chunks)))
	logger.Info("material ingested",
		zap.String("subject", subject),
		zap.String("content_type", contentType),
		zap.Int("texts", len(texts)),
		zap.Int("chunks", len(chunks)),
	)

	return len(chunks), nil
}
