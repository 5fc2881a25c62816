// Package metrics provides Prometheus metrics for the development server.
//
// # Metrics Categories
//
//   - Request metrics: count, latency and response size of every request
//     served, plus requests in flight
//   - Upstream metrics: forwarded responses by status class and forwarding
//     failures by kind
//   - Build metrics: build results, durations, running builds, publishes
//     and the time of the last successful publish
//
// # Usage
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//
//	// Wire it where events happen
//	handler = middleware.MetricsMiddleware(collector)(handler)
//	fwd, _ := proxy.NewForwarder(proxy.ForwarderConfig{Observer: collector, ...})
//	runner, _ := build.NewRunner(build.Config{Observers: []build.Observer{collector}, ...})
//	svc := router.New(rcfg, fwd, router.WithPublishObserver(collector))
//
//	// Expose them
//	mux.Handle("/_webdev/metrics", collector.Handler())
//
// # Label Cardinality
//
// Every label has a closed value set. Request methods outside the standard
// set are reported as "other" and status codes are reported as classes
// ("2xx", "5xx", ...) for upstream responses.
//
// # Thread Safety
//
// All collector methods are safe for concurrent use.
package metrics
