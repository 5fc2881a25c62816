package middleware

import (
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// TracingMiddleware starts a server span per request, continuing any trace
// propagated by the client. Spans are named "<METHOD> <path>".
//
// Example usage:
//
//	handler = TracingMiddleware(tp, propagation.TraceContext{})(handler)
func TracingMiddleware(tp trace.TracerProvider, propagators propagation.TextMapPropagator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, "webdev",
			otelhttp.WithTracerProvider(tp),
			otelhttp.WithPropagators(propagators),
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		)
	}
}
