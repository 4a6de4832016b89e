package models

import "time"

// ConversationTurn is one immutable message in a user's conversation log.
// Turns are append-only and strictly ordered by Seq within a conversation.
type ConversationTurn struct {
	Seq       int64
	Role      string
	Content   string
	CreatedAt time.Time
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// AnalyticsRecord is the append-only per-query observability trail written by
// the orchestrator after every resolved query.
type AnalyticsRecord struct {
	ID        string
	UserID    string
	Query     string
	Response  string
	Language  string
	Source    string
	CreatedAt time.Time
}

// DecisionRecord captures a model-assisted routing decision. Write-once; never
// consulted on the answer path.
type DecisionRecord struct {
	ID         string
	QueryID    string
	Intent     string
	Complexity string
	Sources    []string
	Strategy   string
	Confidence float64
	Reasoning  string
	CreatedAt  time.Time
}
