package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jumppguru/backend/internal/storage/models"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	c, err := NewClient(":memory:")
	require.NoError(t, err)
	require.NoError(t, c.InitSchema())
	t.Cleanup(func() { c.Close() })
	return c
}

func TestRecentMessages_UnknownUserIsEmpty(t *testing.T) {
	c := newTestClient(t)

	turns, err := c.RecentMessages(context.Background(), "nobody", 10)
	require.NoError(t, err)
	require.Empty(t, turns)
}

func TestSaveMessage_RoundTrip(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.SaveMessage(ctx, "user-1", models.RoleUser, "what is gravity"))

	turns, err := c.RecentMessages(ctx, "user-1", 1)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	require.Equal(t, models.RoleUser, turns[0].Role)
	require.Equal(t, "what is gravity", turns[0].Content)
}

func TestRecentMessages_OrderAndLimit(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.SaveMessage(ctx, "user-1", models.RoleUser, "q1"))
	require.NoError(t, c.SaveMessage(ctx, "user-1", models.RoleAssistant, "a1"))
	require.NoError(t, c.SaveMessage(ctx, "user-1", models.RoleUser, "q2"))
	require.NoError(t, c.SaveMessage(ctx, "user-1", models.RoleAssistant, "a2"))
	require.NoError(t, c.SaveMessage(ctx, "user-2", models.RoleUser, "other"))

	turns, err := c.RecentMessages(ctx, "user-1", 3)
	require.NoError(t, err)
	require.Len(t, turns, 3)
	require.Equal(t, "a1", turns[0].Content)
	require.Equal(t, "q2", turns[1].Content)
	require.Equal(t, "a2", turns[2].Content)
}

func TestRecentMessages_Idempotent(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.SaveMessage(ctx, "user-1", models.RoleUser, "q1"))
	require.NoError(t, c.SaveMessage(ctx, "user-1", models.RoleAssistant, "a1"))

	first, err := c.RecentMessages(ctx, "user-1", 10)
	require.NoError(t, err)
	second, err := c.RecentMessages(ctx, "user-1", 10)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestInsertAnalyticsAndDecision(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	err := c.InsertAnalytics(ctx, &models.AnalyticsRecord{
		ID:       "rec-1",
		UserID:   "user-1",
		Query:    "what is gravity",
		Response: "it pulls things down",
		Language: "english",
		Source:   "LLM",
	})
	require.NoError(t, err)

	err = c.InsertDecision(ctx, &models.DecisionRecord{
		ID:         "dec-1",
		QueryID:    "rec-1",
		Intent:     "factual",
		Complexity: "simple",
		Sources:    []string{"llm"},
		Strategy:   "direct",
		Confidence: 0.9,
		Reasoning:  "simple factual lookup",
	})
	require.NoError(t, err)
}
