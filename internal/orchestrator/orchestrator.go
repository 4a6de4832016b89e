package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jumppguru/backend/internal/cache/redis"
	"github.com/jumppguru/backend/internal/language"
	"github.com/jumppguru/backend/internal/llm"
	"github.com/jumppguru/backend/internal/metrics"
	"github.com/jumppguru/backend/internal/retrieval"
	"github.com/jumppguru/backend/internal/storage/models"
	"github.com/jumppguru/backend/pkg/logger"
	"github.com/jumppguru/backend/pkg/utils"
)

// Answer provenance labels, surfaced verbatim to clients.
const (
	SourceLLM = "LLM"
	SourceRAG = "RAG"
	SourceWeb = "WEB"
)

const recordTimeout = 10 * time.Second

type Request struct {
	UserID       string
	Query        string
	LanguageHint string
	ChatID       string
}

type Result struct {
	Answer   string
	Language string
	Source   string
}

type ConversationStore interface {
	SaveMessage(ctx context.Context, conversationKey, role, content string) error
	RecentMessages(ctx context.Context, conversationKey string, limit int) ([]models.ConversationTurn, error)
}

type AnalyticsStore interface {
	InsertAnalytics(ctx context.Context, record *models.AnalyticsRecord) error
	InsertDecision(ctx context.Context, record *models.DecisionRecord) error
}

type Retriever interface {
	Query(ctx context.Context, text string, topK int, minScore float64) ([]retrieval.ChunkMatch, error)
}

type Generator interface {
	Complete(ctx context.Context, systemPrompt string, history []llm.Turn, userPrompt string) (string, error)
}

type WebAnswerer interface {
	Answer(ctx context.Context, query, languageTag string, history []llm.Turn) (string, error)
}

// AnswerCache short-circuits repeat queries. Nil disables it.
type AnswerCache interface {
	GetAnswer(ctx context.Context, queryHash string) (redis.CachedAnswer, bool, error)
	SetAnswer(ctx context.Context, queryHash string, answer redis.CachedAnswer) error
}

type Config struct {
	TopK        int
	MinScore    float64
	RecentTurns int
}

// Orchestrator drives a query through routing, the tiered answer pipeline and
// conversation persistence. Direct and retrieval strategies can escalate; the
// web tier is terminal.
type Orchestrator struct {
	conversations ConversationStore
	analytics     AnalyticsStore
	retriever     Retriever
	generator     Generator
	web           WebAnswerer
	router        *Router
	answerCache   AnswerCache
	cfg           Config

	background sync.WaitGroup
}

func New(
	conversations ConversationStore,
	analytics AnalyticsStore,
	retriever Retriever,
	generator Generator,
	web WebAnswerer,
	router *Router,
	answerCache AnswerCache,
	cfg Config,
) *Orchestrator {
	if cfg.TopK <= 0 {
		cfg.TopK = 10
	}
	if cfg.MinScore <= 0 {
		cfg.MinScore = 0.6
	}
	if cfg.RecentTurns <= 0 {
		cfg.RecentTurns = 10
	}
	return &Orchestrator{
		conversations: conversations,
		analytics:     analytics,
		retriever:     retriever,
		generator:     generator,
		web:           web,
		router:        router,
		answerCache:   answerCache,
		cfg:           cfg,
	}
}

// Resolve answers one query end to end. An error means no answer could be
// produced at all; every intermediate failure degrades to the next tier
// instead.
func (o *Orchestrator) Resolve(ctx context.Context, req Request) (Result, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return Result{}, fmt.Errorf("query must not be empty")
	}
	if strings.TrimSpace(req.UserID) == "" {
		return Result{}, fmt.Errorf("userId must not be empty")
	}

	start := time.Now()
	lang := language.Resolve(req.LanguageHint, query)
	convKey := conversationKey(req)

	history := o.loadHistory(ctx, convKey)

	if cached, ok := o.cachedAnswer(ctx, query); ok {
		result := Result{Answer: cached.Answer, Language: cached.Language, Source: cached.Source}
		o.persistTurns(ctx, convKey, query, cached.Answer)
		o.recordInBackground(req, query, result, Decision{})
		metrics.QueryTotal.WithLabelValues(result.Source, result.Language).Inc()
		return result, nil
	}

	decision := o.router.Decide(ctx, query)
	logger.Info("query routed",
		zap.String("user_id", req.UserID),
		zap.String("strategy", string(decision.Strategy)),
		zap.Bool("from_model", decision.FromModel),
	)

	result, err := o.answer(ctx, query, string(lang), history, decision.Strategy)
	if err != nil {
		metrics.QueryFailures.Inc()
		return Result{}, err
	}
	result.Language = string(lang)

	o.persistTurns(ctx, convKey, query, result.Answer)
	o.storeAnswer(ctx, query, result)
	o.recordInBackground(req, query, result, decision)

	metrics.QueryDuration.WithLabelValues(result.Source).Observe(time.Since(start).Seconds())
	metrics.QueryTotal.WithLabelValues(result.Source, result.Language).Inc()

	return result, nil
}

// answer executes the routed strategy. Retrieval with no usable chunks falls
// through to the web tier, which always yields some reply or a hard error.
func (o *Orchestrator) answer(ctx context.Context, query, lang string, history []llm.Turn, strategy Strategy) (Result, error) {
	switch strategy {
	case StrategyDirect:
		answer, err := o.generator.Complete(ctx, llm.TeacherSystemPrompt(lang), history, query)
		if err != nil {
			return Result{}, fmt.Errorf("direct answer generation failed: %w", err)
		}
		return Result{Answer: answer, Source: SourceLLM}, nil

	case StrategyWeb:
		return o.webAnswer(ctx, query, lang, history)

	default:
		chunks, err := o.retriever.Query(ctx, query, o.cfg.TopK, o.cfg.MinScore)
		if err != nil {
			logger.Warn("retrieval failed, escalating to web", zap.Error(err))
			chunks = nil
		}
		if len(chunks) == 0 {
			return o.webAnswer(ctx, query, lang, history)
		}

		texts := make([]string, 0, len(chunks))
		for _, c := range chunks {
			texts = append(texts, c.Text)
		}
		knowledgeContext := strings.Join(texts, "\n\n")

		answer, err := o.generator.Complete(
			ctx,
			llm.TeacherSystemPrompt(lang),
			history,
			llm.ContextAnswerPrompt(knowledgeContext, query),
		)
		if err != nil {
			return Result{}, fmt.Errorf("retrieval answer generation failed: %w", err)
		}
		return Result{Answer: answer, Source: SourceRAG}, nil
	}
}

func (o *Orchestrator) webAnswer(ctx context.Context, query, lang string, history []llm.Turn) (Result, error) {
	metrics.WebSearchTriggered.Inc()
	answer, err := o.web.Answer(ctx, query, lang, history)
	if err != nil {
		return Result{}, err
	}
	return Result{Answer: answer, Source: SourceWeb}, nil
}

// loadHistory returns the recent turns of the conversation as prompt history.
// A store failure only costs context, never the query.
func (o *Orchestrator) loadHistory(ctx context.Context, convKey string) []llm.Turn {
	turns, err := o.conversations.RecentMessages(ctx, convKey, o.cfg.RecentTurns)
	if err != nil {
		logger.Warn("failed to load conversation history", zap.String("conversation", convKey), zap.Error(err))
		return nil
	}

	history := make([]llm.Turn, 0, len(turns))
	for _, t := range turns {
		history = append(history, llm.Turn{Role: t.Role, Content: t.Content})
	}
	return history
}

// persistTurns appends the user query and the assistant reply, in that order,
// so the next query's history window sees them chronologically. Failures are
// logged; the answer has already been produced and is not withheld.
func (o *Orchestrator) persistTurns(ctx context.Context, convKey, query, answer string) {
	if err := o.conversations.SaveMessage(ctx, convKey, models.RoleUser, query); err != nil {
		logger.Error("failed to persist user turn", zap.String("conversation", convKey), zap.Error(err))
		return
	}
	if err := o.conversations.SaveMessage(ctx, convKey, models.RoleAssistant, answer); err != nil {
		logger.Error("failed to persist assistant turn", zap.String("conversation", convKey), zap.Error(err))
	}
}

func (o *Orchestrator) cachedAnswer(ctx context.Context, query string) (redis.CachedAnswer, bool) {
	if o.answerCache == nil {
		return redis.CachedAnswer{}, false
	}

	cached, ok, err := o.answerCache.GetAnswer(ctx, utils.HashString(query))
	if err != nil {
		logger.Warn("answer cache lookup failed", zap.Error(err))
		return redis.CachedAnswer{}, false
	}
	if ok {
		metrics.CacheHits.WithLabelValues("answer").Inc()
	}
	return cached, ok
}

func (o *Orchestrator) storeAnswer(ctx context.Context, query string, result Result) {
	if o.answerCache == nil {
		return
	}

	err := o.answerCache.SetAnswer(ctx, utils.HashString(query), redis.CachedAnswer{
		Answer:   result.Answer,
		Language: result.Language,
		Source:   result.Source,
	})
	if err != nil {
		logger.Warn("failed to cache answer", zap.Error(err))
	}
}

// recordInBackground writes the analytics trail off the request path. The
// records are observability data; losing one is logged, never surfaced.
func (o *Orchestrator) recordInBackground(req Request, query string, result Result, decision Decision) {
	if o.analytics == nil {
		return
	}

	o.background.Add(1)
	go func() {
		defer o.background.Done()

		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		defer cancel()

		queryID := uuid.NewString()
		err := o.analytics.InsertAnalytics(ctx, &models.AnalyticsRecord{
			ID:       queryID,
			UserID:   req.UserID,
			Query:    query,
			Response: result.Answer,
			Language: result.Language,
			Source:   result.Source,
		})
		if err != nil {
			logger.Warn("failed to record analytics", zap.Error(err))
		}

		if !decision.FromModel {
			return
		}
		err = o.analytics.InsertDecision(ctx, &models.DecisionRecord{
			ID:         uuid.NewString(),
			QueryID:    queryID,
			Intent:     decision.Intent,
			Complexity: decision.Complexity,
			Sources:    decision.Sources,
			Strategy:   string(decision.Strategy),
			Confidence: decision.Confidence,
			Reasoning:  decision.Reasoning,
		})
		if err != nil {
			logger.Warn("failed to record routing decision", zap.Error(err))
		}
	}()
}

// Drain blocks until pending background analytics writes finish. Called during
// graceful shutdown.
func (o *Orchestrator) Drain() {
	o.background.Wait()
}

// conversationKey scopes history. An explicit chat id keeps parallel chats of
// one user separate; without one the user id is the conversation.
func conversationKey(req Request) string {
	if req.ChatID != "" {
		return req.ChatID
	}
	return req.UserID
}
