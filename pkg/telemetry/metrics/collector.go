package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/webdev/pkg/build"
	"mercator-hq/webdev/pkg/config"
	"mercator-hq/webdev/pkg/proxy"
)

// Collector owns every metric of the server and implements the observer
// interfaces of the middleware, forwarder, build runner and router.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	requestMetrics  *RequestMetrics
	upstreamMetrics *UpstreamMetrics
	buildMetrics    *BuildMetrics
}

// NewCollector creates a collector and registers its metrics with
// registry. If registry is nil a new one is created.
//
// Example:
//
//	cfg := &config.MetricsConfig{
//		Enabled:   true,
//		Namespace: "webdev",
//	}
//	collector := metrics.NewCollector(cfg, nil)
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	if cfg.Namespace == "" {
		cfg.Namespace = "webdev"
	}
	if len(cfg.RequestDurationBuckets) == 0 {
		// Static hits are sub-millisecond; forwarded requests can wait on
		// a cold dev server.
		cfg.RequestDurationBuckets = []float64{0.001, 0.005, 0.025, 0.1, 0.25, 1, 2.5, 10, 30}
	}

	return &Collector{
		config:          cfg,
		registry:        registry,
		requestMetrics:  NewRequestMetrics(cfg, registry),
		upstreamMetrics: NewUpstreamMetrics(cfg, registry),
		buildMetrics:    NewBuildMetrics(cfg, registry),
	}
}

// RecordRequest records a completed request.
func (c *Collector) RecordRequest(method string, status int, duration time.Duration, bytes int64) {
	if !c.config.Enabled {
		return
	}
	c.requestMetrics.RecordRequest(method, status, duration, bytes)
}

// InFlight adjusts the number of requests being served.
func (c *Collector) InFlight(delta int) {
	if !c.config.Enabled {
		return
	}
	c.requestMetrics.InFlight(delta)
}

// ForwardCompleted records an upstream response that was relayed.
func (c *Collector) ForwardCompleted(status int, duration time.Duration) {
	if !c.config.Enabled {
		return
	}
	c.upstreamMetrics.RecordResponse(status, duration)
}

// ForwardFailed records a forward that produced no upstream response.
func (c *Collector) ForwardFailed(kind proxy.ErrorKind, duration time.Duration) {
	if !c.config.Enabled {
		return
	}
	c.upstreamMetrics.RecordFailure(kind.String(), duration)
}

// JobStarted records a build starting.
func (c *Collector) JobStarted(*build.Job) {
	if !c.config.Enabled {
		return
	}
	c.buildMetrics.Started()
}

// JobFinished records a build result.
func (c *Collector) JobFinished(_ *build.Job, res build.Result) {
	if !c.config.Enabled {
		return
	}
	c.buildMetrics.Finished(res.State.String(), res.Duration())
}

// Published records a publish attempt.
func (c *Collector) Published(_ string, duration time.Duration, err error) {
	if !c.config.Enabled {
		return
	}
	c.buildMetrics.Published(err == nil, duration)
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
