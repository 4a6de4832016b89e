package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/jumppguru/backend/internal/metrics"
	"github.com/jumppguru/backend/pkg/logger"
)

type Strategy string

const (
	StrategyDirect    Strategy = "direct"
	StrategyRetrieval Strategy = "retrieval"
	StrategyWeb       Strategy = "web"
)

// Decision is the routing verdict for one query. Heuristic decisions carry
// only a strategy; model-assisted ones carry the full classification.
type Decision struct {
	Intent     string   `json:"intent"`
	Complexity string   `json:"complexity"`
	Sources    []string `json:"sources"`
	Strategy   Strategy `json:"strategy"`
	Confidence float64  `json:"confidence"`
	Reasoning  string   `json:"reasoning"`

	// FromModel marks decisions the classifier produced (vs heuristics).
	FromModel bool `json:"-"`
}

const (
	RoutingModeHeuristic = "heuristic"
	RoutingModeModel     = "model"
)

// Queries matching any of these are simple enough for a direct completion
// without consulting retrieval or the web.
var directPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^what is`),
	regexp.MustCompile(`^who is`),
	regexp.MustCompile(`^define`),
	regexp.MustCompile(`^when did`),
	regexp.MustCompile(`^where is`),
	regexp.MustCompile(`capital of`),
	regexp.MustCompile(`^name the`),
	regexp.MustCompile(`\d+ \+ \d+`),
	regexp.MustCompile(`^how many`),
	regexp.MustCompile(`^who won`),
}

type Classifier interface {
	ClassifyQuery(ctx context.Context, query string, strict bool) (string, error)
}

// Router picks a strategy per query. It never returns an error: any failure
// in model-assisted mode degrades to the deterministic heuristic.
type Router struct {
	mode       string
	classifier Classifier
}

func NewRouter(mode string, classifier Classifier) *Router {
	if mode != RoutingModeModel || classifier == nil {
		mode = RoutingModeHeuristic
	}
	return &Router{mode: mode, classifier: classifier}
}

func (r *Router) Decide(ctx context.Context, query string) Decision {
	if r.mode == RoutingModeModel {
		if decision, ok := r.modelDecision(ctx, query); ok {
			return decision
		}
		metrics.RoutingFallbacks.Inc()
	}
	return heuristicDecision(query)
}

// modelDecision asks the classifier once, and once more with a stricter
// instruction if the first reply did not parse. The boolean is false when
// both attempts failed and the heuristic should take over.
func (r *Router) modelDecision(ctx context.Context, query string) (Decision, bool) {
	for _, strict := range []bool{false, true} {
		raw, err := r.classifier.ClassifyQuery(ctx, query, strict)
		if err != nil {
			logger.Warn("routing classification failed", zap.Bool("strict", strict), zap.Error(err))
			continue
		}

		decision, err := parseDecision(raw)
		if err != nil {
			logger.Warn("routing decision did not parse", zap.Bool("strict", strict), zap.Error(err))
			continue
		}
		return decision, true
	}
	return Decision{}, false
}

func heuristicDecision(query string) Decision {
	if isDirectAnswerable(query) {
		return Decision{Strategy: StrategyDirect}
	}
	return Decision{Strategy: StrategyRetrieval}
}

func isDirectAnswerable(query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	for _, p := range directPatterns {
		if p.MatchString(q) {
			return true
		}
	}
	return false
}

// parseDecision extracts the JSON object from a model reply that may be
// wrapped in fences or prose. Anything without a known strategy is a parse
// failure, never a silently coerced decision.
func parseDecision(raw string) (Decision, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return Decision{}, fmt.Errorf("no JSON object in routing reply")
	}

	var decision Decision
	if err := json.Unmarshal([]byte(raw[start:end+1]), &decision); err != nil {
		return Decision{}, fmt.Errorf("malformed routing reply: %w", err)
	}

	switch decision.Strategy {
	case StrategyDirect, StrategyRetrieval, StrategyWeb:
	default:
		return Decision{}, fmt.Errorf("unknown routing strategy %q", decision.Strategy)
	}

	decision.FromModel = true
	return decision, nil
}
