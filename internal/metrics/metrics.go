package metrics

import "github.com/prometheus/client_golang/prometheus"

// Prometheus metrics for the retrieval and conversation pipeline.
var (
	EmbeddingCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "convoca",
			Name:      "embedding_cache_total",
			Help:      "Embedding cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)

	SearchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "convoca",
			Name:      "search_duration_seconds",
			Help:      "Hybrid search duration in seconds",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"mode"}, // "semantic" / "filter" / "hybrid"
	)

	ModelCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "convoca",
			Name:      "model_calls_total",
			Help:      "Completion calls by tier and outcome",
		},
		[]string{"tier", "outcome"}, // outcome: "ok" / "error" / "escalated"
	)

	ConversationTurnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "convoca",
			Name:      "conversation_turns_total",
			Help:      "Conversation turns by intent and terminal state",
		},
		[]string{"intent", "result"}, // result: "answered" / "clarification" / "error"
	)
)

func init() {
	prometheus.MustRegister(
		EmbeddingCacheTotal,
		SearchDuration,
		ModelCallsTotal,
		ConversationTurnsTotal,
	)
}
