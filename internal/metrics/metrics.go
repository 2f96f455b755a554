// Package metrics registers the Prometheus collectors exported at /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Acquisition
	StrategyAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "viralscout_strategy_attempts_total",
			Help: "Acquisition strategy attempts by outcome",
		},
		[]string{"platform", "strategy", "outcome"}, // "ok", "empty", "blocked", "error", "panic"
	)

	StrategyDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "viralscout_strategy_duration_seconds",
			Help:    "Duration of a single acquisition strategy attempt",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
		},
		[]string{"platform", "strategy"},
	)

	AdapterPosts = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "viralscout_adapter_posts",
			Help: "Posts returned by the last fetch of each platform adapter",
		},
		[]string{"platform"},
	)

	AdapterExhausted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "viralscout_adapter_exhausted_total",
			Help: "Fetches where every strategy of a platform yielded nothing",
		},
		[]string{"platform"},
	)

	AdapterTimeouts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "viralscout_adapter_timeouts_total",
			Help: "Platform fetches abandoned after exceeding their budget",
		},
		[]string{"platform"},
	)

	// Circuit breakers
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "viralscout_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "viralscout_circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// Cache
	CacheOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "viralscout_cache_operations_total",
			Help: "Cache operations by result",
		},
		[]string{"operation", "result"},
	)

	CacheBackendErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "viralscout_cache_backend_errors_total",
			Help: "Errors returned by the shared cache backend",
		},
	)

	CacheDegraded = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "viralscout_cache_degraded",
			Help: "1 while the cache is serving from the in-process fallback",
		},
	)

	// Aggregation
	AggregationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "viralscout_aggregation_duration_seconds",
			Help:    "End-to-end aggregation latency",
			Buckets: []float64{0.01, 0.1, 0.5, 1, 2.5, 5, 10, 15, 20, 30},
		},
	)

	AggregationPosts = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "viralscout_aggregation_posts",
			Help:    "Posts returned per aggregation after ranking",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		},
	)

	// HTTP
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "viralscout_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

// ObserveStrategy records one strategy attempt.
func ObserveStrategy(platform, strategy, outcome string, d time.Duration) {
	StrategyAttempts.WithLabelValues(platform, strategy, outcome).Inc()
	StrategyDuration.WithLabelValues(platform, strategy).Observe(d.Seconds())
}

// ObserveHTTP records one served request.
func ObserveHTTP(method, route string, status int, d time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}
