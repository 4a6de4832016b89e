package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/jumppguru/backend/internal/storage/models"
	"github.com/jumppguru/backend/pkg/logger"
)

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS conversation_turns (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		conversation_key TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_turns_conversation ON conversation_turns(conversation_key, seq);

	CREATE TABLE IF NOT EXISTS analytics (
		id TEXT PRIMARY KEY,
		user_id TEXT,
		query TEXT NOT NULL,
		response TEXT,
		language TEXT,
		source TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_analytics_user ON analytics(user_id);
	CREATE INDEX IF NOT EXISTS idx_analytics_created ON analytics(created_at);

	CREATE TABLE IF NOT EXISTS routing_decisions (
		id TEXT PRIMARY KEY,
		query_id TEXT,
		intent TEXT,
		complexity TEXT,
		sources TEXT,
		strategy TEXT,
		confidence REAL,
		reasoning TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_decisions_query ON routing_decisions(query_id);
	`

	if _, err := c.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

// SaveMessage appends one turn to a conversation. The conversation record is
// implicit: the first append for a key creates it. Turns are never edited.
func (c *Client) SaveMessage(ctx context.Context, conversationKey, role, content string) error {
	query := `INSERT INTO conversation_turns (conversation_key, role, content, created_at) VALUES (?, ?, ?, ?)`

	_, err := c.db.ExecContext(ctx, query, conversationKey, role, content, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to save message: %w", err)
	}

	return nil
}

// RecentMessages returns at most the last `limit` turns for a conversation, in
// original insertion order. An unknown key yields an empty slice, not an error.
func (c *Client) RecentMessages(ctx context.Context, conversationKey string, limit int) ([]models.ConversationTurn, error) {
	if limit <= 0 {
		return nil, nil
	}

	query := `
		SELECT seq, role, content, created_at FROM conversation_turns
		WHERE conversation_key = ?
		ORDER BY seq DESC
		LIMIT ?
	`

	rows, err := c.db.QueryContext(ctx, query, conversationKey, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent messages: %w", err)
	}
	defer rows.Close()

	var turns []models.ConversationTurn
	for rows.Next() {
		var t models.ConversationTurn
		var createdAt int64

		if err := rows.Scan(&t.Seq, &t.Role, &t.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		t.CreatedAt = time.Unix(createdAt, 0)
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}

	// Rows arrive newest-first; flip back to insertion order.
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}

	return turns, nil
}

func (c *Client) InsertAnalytics(ctx context.Context, record *models.AnalyticsRecord) error {
	query := `INSERT INTO analytics (id, user_id, query, response, language, source, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`

	createdAt := record.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := c.db.ExecContext(ctx, query,
		record.ID,
		record.UserID,
		record.Query,
		record.Response,
		record.Language,
		record.Source,
		createdAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert analytics record: %w", err)
	}

	return nil
}

func (c *Client) InsertDecision(ctx context.Context, record *models.DecisionRecord) error {
	sourcesJSON, _ := json.Marshal(record.Sources)

	query := `
		INSERT INTO routing_decisions (id, query_id, intent, complexity, sources, strategy, confidence, reasoning, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := c.db.ExecContext(ctx, query,
		record.ID,
		record.QueryID,
		record.Intent,
		record.Complexity,
		string(sourcesJSON),
		record.Strategy,
		record.Confidence,
		record.Reasoning,
		time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert routing decision: %w", err)
	}

	return nil
}
