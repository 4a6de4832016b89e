package orchestrator

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jumppguru/backend/internal/cache/redis"
	"github.com/jumppguru/backend/internal/llm"
	"github.com/jumppguru/backend/internal/retrieval"
	"github.com/jumppguru/backend/internal/storage/models"
)

type memConversations struct {
	turns   map[string][]models.ConversationTurn
	saveErr error
	loadErr error
}

func newMemConversations() *memConversations {
	return &memConversations{turns: map[string][]models.ConversationTurn{}}
}

func (m *memConversations) SaveMessage(_ context.Context, key, role, content string) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.turns[key] = append(m.turns[key], models.ConversationTurn{
		Seq:     int64(len(m.turns[key]) + 1),
		Role:    role,
		Content: content,
	})
	return nil
}

func (m *memConversations) RecentMessages(_ context.Context, key string, limit int) ([]models.ConversationTurn, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	turns := m.turns[key]
	if len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	return turns, nil
}

type memAnalytics struct {
	analytics []*models.AnalyticsRecord
	decisions []*models.DecisionRecord
}

func (m *memAnalytics) InsertAnalytics(_ context.Context, r *models.AnalyticsRecord) error {
	m.analytics = append(m.analytics, r)
	return nil
}

func (m *memAnalytics) InsertDecision(_ context.Context, r *models.DecisionRecord) error {
	m.decisions = append(m.decisions, r)
	return nil
}

type stubRetriever struct {
	chunks []retrieval.ChunkMatch
	err    error
	calls  int
}

func (s *stubRetriever) Query(_ context.Context, _ string, _ int, _ float64) ([]retrieval.ChunkMatch, error) {
	s.calls++
	return s.chunks, s.err
}

type recordingGenerator struct {
	answer     string
	err        error
	calls      int
	lastPrompt string
	lastSystem string
	lastTurns  []llm.Turn
}

func (g *recordingGenerator) Complete(_ context.Context, systemPrompt string, history []llm.Turn, userPrompt string) (string, error) {
	g.calls++
	g.lastSystem = systemPrompt
	g.lastTurns = history
	g.lastPrompt = userPrompt
	return g.answer, g.err
}

type stubWeb struct {
	answer string
	err    error
	calls  int
}

func (s *stubWeb) Answer(_ context.Context, _, _ string, _ []llm.Turn) (string, error) {
	s.calls++
	return s.answer, s.err
}

type memAnswerCache struct {
	entries map[string]redis.CachedAnswer
}

func (m *memAnswerCache) GetAnswer(_ context.Context, hash string) (redis.CachedAnswer, bool, error) {
	a, ok := m.entries[hash]
	return a, ok, nil
}

func (m *memAnswerCache) SetAnswer(_ context.Context, hash string, a redis.CachedAnswer) error {
	m.entries[hash] = a
	return nil
}

type fixture struct {
	conversations *memConversations
	analytics     *memAnalytics
	retriever     *stubRetriever
	generator     *recordingGenerator
	web           *stubWeb
}

func newFixture() *fixture {
	return &fixture{
		conversations: newMemConversations(),
		analytics:     &memAnalytics{},
		retriever:     &stubRetriever{},
		generator:     &recordingGenerator{answer: "generated answer"},
		web:           &stubWeb{answer: "web answer"},
	}
}

func (f *fixture) orchestrator(cache AnswerCache) *Orchestrator {
	return New(f.conversations, f.analytics, f.retriever, f.generator, f.web,
		NewRouter(RoutingModeHeuristic, nil), cache, Config{TopK: 10, MinScore: 0.6, RecentTurns: 10})
}

func TestResolve_SimpleFactualQueryAnswersDirectly(t *testing.T) {
	f := newFixture()
	o := f.orchestrator(nil)

	res, err := o.Resolve(context.Background(), Request{UserID: "u1", Query: "What is the capital of France?"})
	require.NoError(t, err)
	require.Equal(t, SourceLLM, res.Source)
	require.Equal(t, "generated answer", res.Answer)
	require.Equal(t, "english", res.Language)

	// The direct tier never consults retrieval or the web.
	require.Zero(t, f.retriever.calls)
	require.Zero(t, f.web.calls)
	o.Drain()
}

func TestResolve_ChunksAboveThresholdAnswerFromKnowledgeBase(t *testing.T) {
	f := newFixture()
	f.retriever.chunks = []retrieval.ChunkMatch{
		{Text: "first chunk", Score: 0.85},
		{Text: "second chunk", Score: 0.72},
	}
	o := f.orchestrator(nil)

	res, err := o.Resolve(context.Background(), Request{UserID: "u1", Query: "Explain photosynthesis in detail"})
	require.NoError(t, err)
	require.Equal(t, SourceRAG, res.Source)
	require.Zero(t, f.web.calls)

	require.Contains(t, f.generator.lastPrompt, "first chunk")
	require.Contains(t, f.generator.lastPrompt, "second chunk")
	require.Less(t,
		strings.Index(f.generator.lastPrompt, "first chunk"),
		strings.Index(f.generator.lastPrompt, "second chunk"),
	)
	o.Drain()
}

func TestResolve_EmptyRetrievalEscalatesToWebExactlyOnce(t *testing.T) {
	f := newFixture()
	o := f.orchestrator(nil)

	res, err := o.Resolve(context.Background(), Request{UserID: "u1", Query: "Explain an extremely obscure topic"})
	require.NoError(t, err)
	require.Equal(t, SourceWeb, res.Source)
	require.Equal(t, "web answer", res.Answer)
	require.Equal(t, 1, f.retriever.calls)
	require.Equal(t, 1, f.web.calls)
	require.Zero(t, f.generator.calls)
	o.Drain()
}

func TestResolve_RetrievalErrorDegradesToWeb(t *testing.T) {
	f := newFixture()
	f.retriever.err = errors.New("index unavailable")
	o := f.orchestrator(nil)

	res, err := o.Resolve(context.Background(), Request{UserID: "u1", Query: "Explain gravity thoroughly"})
	require.NoError(t, err)
	require.Equal(t, SourceWeb, res.Source)
	require.Equal(t, 1, f.web.calls)
	o.Drain()
}

func TestResolve_GenerationFailurePropagates(t *testing.T) {
	f := newFixture()
	f.generator.err = errors.New("provider down")
	o := f.orchestrator(nil)

	_, err := o.Resolve(context.Background(), Request{UserID: "u1", Query: "What is osmosis?"})
	require.Error(t, err)
	o.Drain()
}

func TestResolve_EmptyQueryRejected(t *testing.T) {
	f := newFixture()
	o := f.orchestrator(nil)

	_, err := o.Resolve(context.Background(), Request{UserID: "u1", Query: "   "})
	require.Error(t, err)

	_, err = o.Resolve(context.Background(), Request{Query: "valid"})
	require.Error(t, err)
}

func TestResolve_HistoryFlowsIntoPrompt(t *testing.T) {
	f := newFixture()
	o := f.orchestrator(nil)

	_, err := o.Resolve(context.Background(), Request{UserID: "u1", Query: "What is a noun?"})
	require.NoError(t, err)

	_, err = o.Resolve(context.Background(), Request{UserID: "u1", Query: "What is a verb?"})
	require.NoError(t, err)

	require.Len(t, f.generator.lastTurns, 2)
	require.Equal(t, models.RoleUser, f.generator.lastTurns[0].Role)
	require.Equal(t, "What is a noun?", f.generator.lastTurns[0].Content)
	require.Equal(t, models.RoleAssistant, f.generator.lastTurns[1].Role)
	o.Drain()
}

func TestResolve_ChatIDSeparatesConversations(t *testing.T) {
	f := newFixture()
	o := f.orchestrator(nil)

	_, err := o.Resolve(context.Background(), Request{UserID: "u1", ChatID: "chat-a", Query: "What is a noun?"})
	require.NoError(t, err)

	_, err = o.Resolve(context.Background(), Request{UserID: "u1", ChatID: "chat-b", Query: "What is a verb?"})
	require.NoError(t, err)

	require.Len(t, f.conversations.turns["chat-a"], 2)
	require.Len(t, f.conversations.turns["chat-b"], 2)
	require.Empty(t, f.generator.lastTurns)
	o.Drain()
}

func TestResolve_CachedAnswerSkipsPipeline(t *testing.T) {
	f := newFixture()
	cache := &memAnswerCache{entries: map[string]redis.CachedAnswer{}}
	o := f.orchestrator(cache)

	res1, err := o.Resolve(context.Background(), Request{UserID: "u1", Query: "What is the capital of France?"})
	require.NoError(t, err)
	require.Equal(t, 1, f.generator.calls)

	res2, err := o.Resolve(context.Background(), Request{UserID: "u2", Query: "What is the capital of France?"})
	require.NoError(t, err)
	require.Equal(t, 1, f.generator.calls)
	require.Equal(t, res1.Answer, res2.Answer)
	require.Equal(t, res1.Source, res2.Source)
	o.Drain()
}

func TestResolve_PersistenceFailureDoesNotSinkAnswer(t *testing.T) {
	f := newFixture()
	f.conversations.saveErr = errors.New("disk full")
	o := f.orchestrator(nil)

	res, err := o.Resolve(context.Background(), Request{UserID: "u1", Query: "What is osmosis?"})
	require.NoError(t, err)
	require.Equal(t, "generated answer", res.Answer)
	o.Drain()
}

func TestResolve_HistoryLoadFailureDegradesToEmptyHistory(t *testing.T) {
	f := newFixture()
	f.conversations.loadErr = errors.New("db locked")
	o := f.orchestrator(nil)

	res, err := o.Resolve(context.Background(), Request{UserID: "u1", Query: "What is osmosis?"})
	require.NoError(t, err)
	require.Equal(t, "generated answer", res.Answer)
	require.Empty(t, f.generator.lastTurns)
	o.Drain()
}

func TestResolve_AnalyticsRecordedInBackground(t *testing.T) {
	f := newFixture()
	o := f.orchestrator(nil)

	_, err := o.Resolve(context.Background(), Request{UserID: "u1", Query: "What is osmosis?"})
	require.NoError(t, err)
	o.Drain()

	require.Len(t, f.analytics.analytics, 1)
	require.Equal(t, "u1", f.analytics.analytics[0].UserID)
	require.Equal(t, SourceLLM, f.analytics.analytics[0].Source)
	// Heuristic decisions leave no routing record.
	require.Empty(t, f.analytics.decisions)
}

func TestResolve_ModelDecisionRecorded(t *testing.T) {
	f := newFixture()
	classifier := &stubClassifier{replies: []string{
		`{"intent":"conceptual","complexity":"moderate","sources":["rag"],"strategy":"retrieval","confidence":0.8,"reasoning":"needs context"}`,
	}}
	o := New(f.conversations, f.analytics, f.retriever, f.generator, f.web,
		NewRouter(RoutingModeModel, classifier), nil, Config{})

	_, err := o.Resolve(context.Background(), Request{UserID: "u1", Query: "Explain gravity"})
	require.NoError(t, err)
	o.Drain()

	require.Len(t, f.analytics.decisions, 1)
	require.Equal(t, "retrieval", f.analytics.decisions[0].Strategy)
	require.Equal(t, "conceptual", f.analytics.decisions[0].Intent)
	require.NotEmpty(t, f.analytics.decisions[0].QueryID)
}

func TestResolve_HinglishHintShapesPersona(t *testing.T) {
	f := newFixture()
	o := f.orchestrator(nil)

	res, err := o.Resolve(context.Background(), Request{
		UserID: "u1", Query: "What is gravity?", LanguageHint: "hinglish",
	})
	require.NoError(t, err)
	require.Equal(t, "hinglish", res.Language)
	require.Contains(t, f.generator.lastSystem, "Hinglish")
	o.Drain()
}
