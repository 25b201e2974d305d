// Package metrics registers the Prometheus metrics used by the AI gateway.
// Import this package (via blank import) from the server entry point to
// register all metrics before the /metrics handler is mounted.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal counts gateway runs labelled by mode and terminal outcome
	// ("success", "invalid_request", "invalid_mode", "rate_limited",
	// "timeout", "canceled", "provider_error", "internal").
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aicore_requests_total",
			Help: "Total number of AI requests processed by the gateway.",
		},
		[]string{"mode", "status"},
	)

	// RequestDuration observes end-to-end gateway latency in seconds.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "aicore_request_duration_seconds",
			Help:    "End-to-end AI request duration in seconds.",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 45, 60},
		},
		[]string{"mode"},
	)

	// TokensUsed counts provider-reported token consumption per mode.
	TokensUsed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aicore_tokens_used_total",
			Help: "Total tokens consumed by completed AI requests.",
		},
		[]string{"mode"},
	)

	// RateLimitRejections counts admits denied by the fixed-window limiter.
	RateLimitRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aicore_rate_limit_rejections_total",
			Help: "Total requests rejected by the per-caller rate limit.",
		},
		[]string{"mode"},
	)

	// ProviderErrors counts provider-side failures by kind
	// ("timeout", "provider_error").
	ProviderErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aicore_provider_errors_total",
			Help: "Total completion-provider failures by kind.",
		},
		[]string{"kind"},
	)

	// UsageWriteFailures counts usage records that could not be persisted.
	// Writes are non-fatal to the request; this counter is how operators
	// notice the sink is unhealthy.
	UsageWriteFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "aicore_usage_write_failures_total",
			Help: "Total usage-record writes that failed.",
		},
	)
)
