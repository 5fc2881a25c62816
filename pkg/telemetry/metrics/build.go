package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/webdev/pkg/config"
)

// BuildMetrics tracks build jobs and publishes.
//
// Metrics:
//   - webdev_builds_total: finished builds by terminal state
//   - webdev_build_duration_seconds: build duration histogram
//   - webdev_builds_running: builds currently running
//   - webdev_publishes_total: publish attempts by result
//   - webdev_publish_duration_seconds: publish duration histogram
//   - webdev_last_publish_timestamp_seconds: time of the last successful publish
type BuildMetrics struct {
	buildsTotal     *prometheus.CounterVec
	buildDuration   prometheus.Histogram
	running         prometheus.Gauge
	publishesTotal  *prometheus.CounterVec
	publishDuration prometheus.Histogram
	lastPublish     prometheus.Gauge
}

// NewBuildMetrics creates and registers build metrics with the provided registry.
func NewBuildMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *BuildMetrics {
	bm := &BuildMetrics{
		buildsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "builds_total",
				Help:      "Total number of finished builds, by state",
			},
			[]string{"state"},
		),

		buildDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "build_duration_seconds",
				Help:      "Duration of builds in seconds",
				Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
		),

		running: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "builds_running",
				Help:      "Number of builds currently running",
			},
		),

		publishesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "publishes_total",
				Help:      "Total number of publish attempts, by result",
			},
			[]string{"result"},
		),

		publishDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "publish_duration_seconds",
				Help:      "Duration of publishes in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8), // 1ms to 16s
			},
		),

		lastPublish: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "last_publish_timestamp_seconds",
				Help:      "Unix time of the last successful publish",
			},
		),
	}

	registry.MustRegister(
		bm.buildsTotal,
		bm.buildDuration,
		bm.running,
		bm.publishesTotal,
		bm.publishDuration,
		bm.lastPublish,
	)

	return bm
}

// Started records a build starting.
func (bm *BuildMetrics) Started() {
	bm.running.Inc()
}

// Finished records a build reaching a terminal state.
func (bm *BuildMetrics) Finished(state string, duration time.Duration) {
	bm.running.Dec()
	bm.buildsTotal.WithLabelValues(state).Inc()
	bm.buildDuration.Observe(duration.Seconds())
}

// Published records a publish attempt.
func (bm *BuildMetrics) Published(ok bool, duration time.Duration) {
	result := "success"
	if !ok {
		result = "error"
	}
	bm.publishesTotal.WithLabelValues(result).Inc()
	bm.publishDuration.Observe(duration.Seconds())
	if ok {
		bm.lastPublish.SetToCurrentTime()
	}
}
