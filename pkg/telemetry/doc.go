// Package telemetry groups webdev's observability packages.
//
// # Components
//
//   - logging: slog construction (json, text, console), credential
//     redaction, request and job IDs carried in the context
//   - metrics: Prometheus collectors for requests, upstream forwards,
//     builds and publishes
//   - tracing: OpenTelemetry provider with an OTLP gRPC exporter and
//     otelhttp instrumentation for the server and the upstream transport
//   - health: liveness, readiness and version endpoints
//
// # Usage
//
//	logger, err := logging.New(logging.Config{Level: "info", Format: "console"})
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	tracer, err := tracing.New(&cfg.Telemetry.Tracing, version)
//	defer tracer.Shutdown(context.Background())
//
// Metrics and tracing are wired into the server middleware chain, the
// forwarder and the build runner by cmd/webdev.
package telemetry
