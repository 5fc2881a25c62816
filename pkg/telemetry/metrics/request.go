package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/webdev/pkg/config"
)

// RequestMetrics tracks requests served by the server.
//
// Metrics:
//   - webdev_requests_total: requests by method and status code
//   - webdev_request_duration_seconds: latency histogram by method
//   - webdev_response_size_bytes: response body size histogram
//   - webdev_requests_in_flight: requests currently being served
type RequestMetrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	responseSize    prometheus.Histogram
	inFlight        prometheus.Gauge
}

// NewRequestMetrics creates and registers request metrics with the provided registry.
func NewRequestMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *RequestMetrics {
	rm := &RequestMetrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "requests_total",
				Help:      "Total number of HTTP requests served",
			},
			[]string{"method", "code"},
		),

		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds",
				Buckets:   cfg.RequestDurationBuckets,
			},
			[]string{"method"},
		),

		responseSize: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "response_size_bytes",
				Help:      "Size of response bodies in bytes",
				Buckets:   prometheus.ExponentialBuckets(256, 4, 9), // 256B to 16MB
			},
		),

		inFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "requests_in_flight",
				Help:      "Number of HTTP requests currently being served",
			},
		),
	}

	registry.MustRegister(
		rm.requestsTotal,
		rm.requestDuration,
		rm.responseSize,
		rm.inFlight,
	)

	return rm
}

// RecordRequest records a completed request.
func (rm *RequestMetrics) RecordRequest(method string, status int, duration time.Duration, bytes int64) {
	method = normalizeMethod(method)
	rm.requestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
	rm.requestDuration.WithLabelValues(method).Observe(duration.Seconds())
	if bytes > 0 {
		rm.responseSize.Observe(float64(bytes))
	}
}

// InFlight adjusts the in-flight gauge.
func (rm *RequestMetrics) InFlight(delta int) {
	rm.inFlight.Add(float64(delta))
}

// normalizeMethod folds non-standard methods into "other".
func normalizeMethod(method string) string {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut,
		http.MethodPatch, http.MethodDelete, http.MethodOptions,
		http.MethodConnect, http.MethodTrace:
		return method
	default:
		return "other"
	}
}
