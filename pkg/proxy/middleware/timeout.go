package middleware

import (
	"context"
	"net/http"
	"time"
)

// TimeoutMiddleware bounds each request with a context deadline. It never
// writes to the response itself: handlers observe the deadline through
// r.Context() and answer 504, whether the deadline passes while forwarding
// or while the router waits for a build. A non-positive timeout disables
// the middleware.
//
// Upgrade requests are exempt since a tunnel lives as long as its peers.
//
// Example usage:
//
//	handler = TimeoutMiddleware(60 * time.Second)(handler)
func TimeoutMiddleware(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if timeout <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isUpgradeRequest(r) {
				next.ServeHTTP(w, r)
				return
			}
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
