package middleware

import (
	"net/http"
	"time"

	"github.com/felixge/httpsnoop"
)

// RequestRecorder receives one observation per completed request.
type RequestRecorder interface {
	RecordRequest(method string, status int, duration time.Duration, bytes int64)
	InFlight(delta int)
}

// MetricsMiddleware reports request counts, latency and response sizes to rec.
//
// Example usage:
//
//	handler = MetricsMiddleware(collector)(handler)
func MetricsMiddleware(rec RequestRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec.InFlight(1)
			defer rec.InFlight(-1)

			m := httpsnoop.CaptureMetrics(next, w, r)
			rec.RecordRequest(r.Method, m.Code, m.Duration, m.Written)
		})
	}
}
