package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Generation Prometheus metrics.
var (
	GenerationRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_requests_total",
			Help:      "Total number of structured generation requests",
		},
		[]string{"provider", "model", "status"},
	)

	GenerationRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_request_duration_seconds",
			Help:      "Structured generation request duration in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 60},
		},
		[]string{"provider", "model"},
	)

	GenerationTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_tokens_total",
			Help:      "Total generation tokens consumed",
		},
		[]string{"provider", "model", "type"},
	)

	GenerationErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_errors_total",
			Help:      "Total generation errors",
		},
		[]string{"provider", "model", "error_type"},
	)

	GenerationCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_cache_total",
			Help:      "Generation cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)

	QueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_total",
			Help:      "Total number of queries by outcome",
		},
		[]string{"status"}, // "success" / "error" / "invalid"
	)

	QueryDocuments = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_documents",
			Help:      "Number of documents per query before and after filtering",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		},
		[]string{"stage"}, // "received" / "dispatched"
	)
)

var registerGenerationOnce sync.Once

// RegisterGenerationMetrics registers the generation and query metrics. Safe to call more than once.
func RegisterGenerationMetrics() {
	registerGenerationOnce.Do(func() {
		prometheus.MustRegister(
			GenerationRequestsTotal,
			GenerationRequestDuration,
			GenerationTokensTotal,
			GenerationErrorsTotal,
			GenerationCacheTotal,
			QueriesTotal,
			QueryDocuments,
		)
	})
}
