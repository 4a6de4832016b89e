package milvus

import (
	"context"
	"fmt"
	"time"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.uber.org/zap"

	"github.com/jumppguru/backend/pkg/logger"
)

type Client struct {
	client         client.Client
	collectionName string
	vectorDim      int
}

// KnowledgeChunk is a stored span of text with its embedding and provenance.
// Chunks are insert-only; nothing updates them in place.
type KnowledgeChunk struct {
	ID          string
	Embedding   []float32
	Text        string
	OriginQuery string
	SourceURL   string
	ContentType string
	Confidence  float64
	Subject     string
	CreatedAt   time.Time
}

type SearchResult struct {
	ChunkID   string
	Text      string
	SourceURL string
	Subject   string
	Score     float32
}

func NewClient(endpoint, apiKey, collectionName string, vectorDim int) (*Client, error) {
	c, err := client.NewGrpcClient(context.Background(), endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create milvus client: %w", err)
	}

	logger.Info("Milvus client initialized",
		zap.String("endpoint", endpoint),
		zap.String("collection", collectionName),
	)

	return &Client{
		client:         c,
		collectionName: collectionName,
		vectorDim:      vectorDim,
	}, nil
}

func (m *Client) Close() error {
	return m.client.Close()
}

func (m *Client) EnsureCollection(ctx context.Context) error {
	has, err := m.client.HasCollection(ctx, m.collectionName)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}
	if has {
		logger.Info("collection already exists", zap.String("collection", m.collectionName))
		return nil
	}

	schema := &entity.Schema{
		CollectionName: m.collectionName,
		Description:    "Educational knowledge chunk embeddings",
		Fields: []*entity.Field{
			{
				Name:       "chunk_id",
				DataType:   entity.FieldTypeVarChar,
				PrimaryKey: true,
				AutoID:     false,
				TypeParams: map[string]string{"max_length": "64"},
			},
			{
				Name:       "embedding",
				DataType:   entity.FieldTypeFloatVector,
				TypeParams: map[string]string{"dim": fmt.Sprintf("%d", m.vectorDim)},
			},
			{
				Name:       "text",
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "4096"},
			},
			{
				Name:       "origin_query",
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "1024"},
			},
			{
				Name:       "source_url",
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "2048"},
			},
			{
				Name:       "content_type",
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "64"},
			},
			{
				Name:     "confidence",
				DataType: entity.FieldTypeDouble,
			},
			{
				Name:       "subject",
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "128"},
			},
			{
				Name:     "created_at",
				DataType: entity.FieldTypeInt64,
			},
		},
	}

	if err := m.client.CreateCollection(ctx, schema, entity.DefaultShardNumber); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	idx, _ := entity.NewIndexIvfFlat(entity.IP, 1024)
	if err := m.client.CreateIndex(ctx, m.collectionName, "embedding", idx, false); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	if err := m.client.LoadCollection(ctx, m.collectionName, false); err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}

	logger.Info("collection created and loaded", zap.String("collection", m.collectionName))

	return nil
}

// Insert persists new knowledge chunks. There is no update path.
func (m *Client) Insert(ctx context.Context, chunks []KnowledgeChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	ids := make([]string, len(chunks))
	embeddings := make([][]float32, len(chunks))
	texts := make([]string, len(chunks))
	originQueries := make([]string, len(chunks))
	sourceURLs := make([]string, len(chunks))
	contentTypes := make([]string, len(chunks))
	confidences := make([]float64, len(chunks))
	subjects := make([]string, len(chunks))
	createdAts := make([]int64, len(chunks))

	for i, chunk := range chunks {
		ids[i] = chunk.ID
		embeddings[i] = chunk.Embedding
		texts[i] = chunk.Text
		originQueries[i] = chunk.OriginQuery
		sourceURLs[i] = chunk.SourceURL
		contentTypes[i] = chunk.ContentType
		confidences[i] = chunk.Confidence
		subjects[i] = chunk.Subject
		createdAts[i] = chunk.CreatedAt.Unix()
	}

	_, err := m.client.Insert(
		ctx,
		m.collectionName,
		"",
		entity.NewColumnVarChar("chunk_id", ids),
		entity.NewColumnFloatVector("embedding", m.vectorDim, embeddings),
		entity.NewColumnVarChar("text", texts),
		entity.NewColumnVarChar("origin_query", originQueries),
		entity.NewColumnVarChar("source_url", sourceURLs),
		entity.NewColumnVarChar("content_type", contentTypes),
		entity.NewColumnDouble("confidence", confidences),
		entity.NewColumnVarChar("subject", subjects),
		entity.NewColumnInt64("created_at", createdAts),
	)
	if err != nil {
		return fmt.Errorf("failed to insert chunks: %w", err)
	}

	if err := m.client.Flush(ctx, m.collectionName, false); err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}

	logger.Info("knowledge chunks inserted", zap.Int("count", len(chunks)))

	return nil
}

// Search runs ANN search over the chunk embeddings, best matches first.
func (m *Client) Search(ctx context.Context, queryEmbedding []float32, topK int) ([]SearchResult, error) {
	sp, _ := entity.NewIndexIvfFlatSearchParam(16)

	searchResult, err := m.client.Search(
		ctx,
		m.collectionName,
		[]string{},
		"",
		[]string{"chunk_id", "text", "source_url", "subject"},
		[]entity.Vector{entity.FloatVector(queryEmbedding)},
		"embedding",
		entity.IP,
		topK,
		sp,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	results := make([]SearchResult, 0)
	for _, sr := range searchResult {
		chunkIDCol := sr.Fields.GetColumn("chunk_id")
		textCol := sr.Fields.GetColumn("text")
		sourceURLCol := sr.Fields.GetColumn("source_url")
		subjectCol := sr.Fields.GetColumn("subject")

		for i := 0; i < sr.ResultCount; i++ {
			chunkID, _ := chunkIDCol.Get(i)
			text, _ := textCol.Get(i)
			sourceURL, _ := sourceURLCol.Get(i)
			subject, _ := subjectCol.Get(i)

			results = append(results, SearchResult{
				ChunkID:   chunkID.(string),
				Text:      text.(string),
				SourceURL: sourceURL.(string),
				Subject:   subject.(string),
				Score:     sr.Scores[i],
			})
		}
	}

	logger.Debug("vector search completed",
		zap.Int("top_k", topK),
		zap.Int("results", len(results)),
	)

	return results, nil
}
