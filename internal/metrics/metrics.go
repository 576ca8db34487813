// Package metrics exposes the Prometheus collectors of the recommendation service.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "animeterminal"

var (
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route pattern and status code.",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			// recommendation requests routinely wait on the completion service
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 20, 45},
		},
		[]string{"method", "route"},
	)

	PipelineRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_runs_total",
			Help:      "Recommendation pipeline runs by generator and outcome kind.",
		},
		[]string{"generator", "outcome"},
	)

	CompletionAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "completion_attempts_total",
			Help:      "Title generation attempts against the completion service.",
		},
		[]string{"outcome"},
	)

	MetadataLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "metadata_lookups_total",
			Help:      "Per-title metadata lookups.",
		},
		[]string{"outcome"},
	)

	FallbackActivations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fallback_activations_total",
			Help:      "Times a fallback stage was entered.",
		},
		[]string{"stage"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state (0 closed, 1 half-open, 2 open).",
		},
		[]string{"name"},
	)
)

// RecordHTTPRequest records one served request.
func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordPipelineRun records the outcome of a pipeline run; outcome is "ok" or an error kind.
func RecordPipelineRun(generator, outcome string) {
	PipelineRuns.WithLabelValues(generator, outcome).Inc()
}

// RecordCompletionAttempt records a single generation attempt.
func RecordCompletionAttempt(success bool) {
	CompletionAttempts.WithLabelValues(outcomeLabel(success)).Inc()
}

// RecordMetadataLookup records a single title lookup.
func RecordMetadataLookup(success bool) {
	MetadataLookups.WithLabelValues(outcomeLabel(success)).Inc()
}

// RecordFallback records entry into a fallback stage.
func RecordFallback(stage string) {
	FallbackActivations.WithLabelValues(stage).Inc()
}

// SetBreakerState publishes a breaker state as its numeric value.
func SetBreakerState(name string, state int) {
	CircuitBreakerState.WithLabelValues(name).Set(float64(state))
}

func outcomeLabel(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
