package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	QueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "guru_query_duration_seconds",
			Help:    "Query resolution duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"source"},
	)

	QueryTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guru_query_total",
			Help: "Total number of queries resolved",
		},
		[]string{"source", "language"},
	)

	QueryFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "guru_query_failures_total",
			Help: "Queries that produced no answer at all",
		},
	)

	RoutingFallbacks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "guru_routing_fallbacks_total",
			Help: "Model-assisted routing decisions that fell back to heuristics",
		},
	)

	WebSearchTriggered = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "guru_web_fallback_total",
			Help: "Queries that reached the web resolver",
		},
	)

	ScrapeFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "guru_scrape_failures_total",
			Help: "Per-URL scrape or summarize failures inside the web fan-out",
		},
	)

	ChunksIndexed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "guru_chunks_indexed_total",
			Help: "Knowledge chunks written by web re-indexing and ingestion",
		},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guru_cache_hits_total",
			Help: "Cache hits by cache type",
		},
		[]string{"cache_type"},
	)
)

func Init() {
	prometheus.MustRegister(QueryDuration)
	prometheus.MustRegister(QueryTotal)
	prometheus.MustRegister(QueryFailures)
	prometheus.MustRegister(RoutingFallbacks)
	prometheus.MustRegister(WebSearchTriggered)
	prometheus.MustRegister(ScrapeFailures)
	prometheus.MustRegister(ChunksIndexed)
	prometheus.MustRegister(CacheHits)
}

func Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
