// Package tracing provides OpenTelemetry tracing for the development server.
//
// # Overview
//
// New builds a tracer provider that exports spans over OTLP/gRPC. The
// provider feeds two otelhttp instrumentations:
//
//   - the server middleware, which continues W3C trace context sent by the
//     browser or test harness and starts one server span per request
//   - the upstream transport (WrapTransport), which starts a client span
//     per forwarded request and injects traceparent so the dev server can
//     join the trace
//
// Build waits and publishes get their own spans from the router, tagged
// with the attributes defined in this package.
//
// # Sampling Strategies
//
// Three sampling strategies are supported:
//   - always: Sample all traces
//   - never: Sample no traces
//   - ratio: Sample a fraction of traces by trace ID
//
// All samplers are parent-based, so an incoming sampled traceparent is
// always honoured.
//
// # Usage
//
//	tracer, err := tracing.New(&cfg.Telemetry.Tracing, version)
//	if err != nil {
//	    return err
//	}
//	defer tracer.Shutdown(context.Background())
//
//	fwdCfg.WrapTransport = tracer.WrapTransport
//	handler = middleware.TracingMiddleware(tracer.TracerProvider(), tracer.Propagator())(handler)
//
// When tracing is disabled every method returns no-op implementations.
package tracing
