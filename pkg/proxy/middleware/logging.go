package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/felixge/httpsnoop"

	"mercator-hq/webdev/pkg/telemetry/logging"
)

// LoggingMiddleware logs HTTP requests and responses with structured logging.
// It records method, path, status code, latency and bytes written; the
// request ID is attached by the logger from the context.
// Sensitive request headers are redacted in the debug-level start record.
//
// Log format (JSON):
//
//	{
//	  "time": "2025-11-16T10:30:00Z",
//	  "level": "INFO",
//	  "msg": "request completed",
//	  "method": "GET",
//	  "path": "/assets/app.js",
//	  "status": 200,
//	  "latency_ms": 3,
//	  "bytes": 48211,
//	  "request_id": "a1b2c3d4-...",
//	  "remote_addr": "127.0.0.1:54321"
//	}
//
// Example usage:
//
//	handler = LoggingMiddleware(handler)
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()
		ctx := context.WithValue(r.Context(), StartTimeKey, startTime)
		r = r.WithContext(ctx)

		if slog.Default().Enabled(ctx, slog.LevelDebug) {
			slog.DebugContext(ctx, "request started",
				"method", r.Method,
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr,
				"user_agent", r.UserAgent(),
				"headers", logging.RedactHeaders(r.Header),
			)
		}

		// httpsnoop keeps Flusher and Hijacker visible to the handler, which
		// streaming responses and upgrade tunnels rely on.
		m := httpsnoop.CaptureMetrics(next, w, r)

		logLevel := slog.LevelInfo
		if m.Code >= 500 {
			logLevel = slog.LevelError
		} else if m.Code >= 400 {
			logLevel = slog.LevelWarn
		}

		slog.Log(ctx, logLevel, "request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", m.Code,
			"latency_ms", m.Duration.Milliseconds(),
			"bytes", m.Written,
			"remote_addr", r.RemoteAddr,
			"user_agent", r.UserAgent(),
		)
	})
}

// GetStartTime extracts the request start time from the context.
// Returns zero time if not found.
func GetStartTime(ctx context.Context) time.Time {
	if startTime, ok := ctx.Value(StartTimeKey).(time.Time); ok {
		return startTime
	}
	return time.Time{}
}
