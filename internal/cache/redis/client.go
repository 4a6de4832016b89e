package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/jumppguru/backend/pkg/logger"
)

// Client caches query embeddings and resolved answers. Every method is
// best-effort from the caller's point of view: a cold or down cache only costs
// a provider round trip.
type Client struct {
	client *redis.Client
	ttl    time.Duration
}

func NewClient(host string, port int, password string, db int, ttl time.Duration) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	if _, err := client.Ping(context.Background()).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis client initialized", zap.String("addr", fmt.Sprintf("%s:%d", host, port)))

	return &Client{client: client, ttl: ttl}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) SetEmbedding(ctx context.Context, textHash string, embedding []float32) error {
	data, err := json.Marshal(embedding)
	if err != nil {
		return fmt.Errorf("failed to marshal embedding: %w", err)
	}

	if err := c.client.Set(ctx, "embedding:"+textHash, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set embedding cache: %w", err)
	}

	return nil
}

func (c *Client) GetEmbedding(ctx context.Context, textHash string) ([]float32, bool, error) {
	data, err := c.client.Get(ctx, "embedding:"+textHash).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get embedding cache: %w", err)
	}

	var embedding []float32
	if err := json.Unmarshal(data, &embedding); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal embedding: %w", err)
	}

	logger.Debug("embedding cache hit", zap.String("text_hash", textHash))
	return embedding, true, nil
}

// CachedAnswer is a fully resolved response stored under the query hash.
type CachedAnswer struct {
	Answer   string `json:"answer"`
	Language string `json:"language"`
	Source   string `json:"source"`
}

func (c *Client) SetAnswer(ctx context.Context, queryHash string, answer CachedAnswer) error {
	data, err := json.Marshal(answer)
	if err != nil {
		return fmt.Errorf("failed to marshal answer: %w", err)
	}

	if err := c.client.Set(ctx, "answer:"+queryHash, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set answer cache: %w", err)
	}

	return nil
}

func (c *Client) GetAnswer(ctx context.Context, queryHash string) (CachedAnswer, bool, error) {
	var answer CachedAnswer

	data, err := c.client.Get(ctx, "answer:"+queryHash).Bytes()
	if err == redis.Nil {
		return answer, false, nil
	}
	if err != nil {
		return answer, false, fmt.Errorf("failed to get answer cache: %w", err)
	}

	if err := json.Unmarshal(data, &answer); err != nil {
		return answer, false, fmt.Errorf("failed to unmarshal answer: %w", err)
	}

	logger.Debug("answer cache hit", zap.String("query_hash", queryHash))
	return answer, true, nil
}
