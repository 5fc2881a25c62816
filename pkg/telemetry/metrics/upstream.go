package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/webdev/pkg/config"
)

// UpstreamMetrics tracks requests forwarded to the upstream server.
//
// Metrics:
//   - webdev_upstream_responses_total: relayed responses by status class
//   - webdev_upstream_failures_total: forwards without a response by kind
//   - webdev_upstream_duration_seconds: time until the response finished
type UpstreamMetrics struct {
	responses *prometheus.CounterVec
	failures  *prometheus.CounterVec
	duration  *prometheus.HistogramVec
}

// NewUpstreamMetrics creates and registers upstream metrics with the provided registry.
func NewUpstreamMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *UpstreamMetrics {
	um := &UpstreamMetrics{
		responses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "upstream_responses_total",
				Help:      "Total number of upstream responses relayed, by status class",
			},
			[]string{"class"},
		),

		failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "upstream_failures_total",
				Help:      "Total number of forwards that got no upstream response, by kind",
			},
			[]string{"kind"},
		),

		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "upstream_duration_seconds",
				Help:      "Duration of forwarded requests in seconds",
				Buckets:   cfg.RequestDurationBuckets,
			},
			[]string{"outcome"},
		),
	}

	registry.MustRegister(um.responses, um.failures, um.duration)

	return um
}

// RecordResponse records a relayed upstream response.
func (um *UpstreamMetrics) RecordResponse(status int, duration time.Duration) {
	um.responses.WithLabelValues(statusClass(status)).Inc()
	um.duration.WithLabelValues("response").Observe(duration.Seconds())
}

// RecordFailure records a forward that failed before a response arrived.
func (um *UpstreamMetrics) RecordFailure(kind string, duration time.Duration) {
	um.failures.WithLabelValues(kind).Inc()
	um.duration.WithLabelValues("failure").Observe(duration.Seconds())
}

func statusClass(status int) string {
	switch {
	case status >= 100 && status < 200:
		return "1xx"
	case status < 300:
		return "2xx"
	case status < 400:
		return "3xx"
	case status < 500:
		return "4xx"
	case status < 600:
		return "5xx"
	default:
		return "other"
	}
}
