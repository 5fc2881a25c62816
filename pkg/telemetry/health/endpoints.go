package health

import (
	"encoding/json"
	"net/http"
	"runtime"
	"strings"
)

// VersionInfo contains build and version information.
type VersionInfo struct {
	// Version is the semantic version (e.g., "1.0.0")
	Version string `json:"version"`

	// Commit is the git commit hash
	Commit string `json:"commit"`

	// BuildTime is when the binary was built
	BuildTime string `json:"build_time"`

	// GoVersion is the Go version used to build
	GoVersion string `json:"go_version"`
}

// LivenessHandler returns an HTTP handler for the liveness probe endpoint.
// It performs a simple check to verify the process is alive.
//
// Example response:
//
//	{
//	    "status": "ok",
//	    "timestamp": "2025-11-20T10:30:00Z"
//	}
func (c *Checker) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Only accept GET requests
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		status := c.CheckLiveness(r.Context())

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)

		if r.Method != http.MethodHead {
			_ = json.NewEncoder(w).Encode(status)
		}
	}
}

// ReadinessHandler returns an HTTP handler for the readiness probe endpoint.
// It performs all registered component health checks.
//
// Returns:
//   - 200 OK: System is ready to serve traffic
//   - 503 Service Unavailable: System is not ready (degraded or unhealthy)
//
// Example response (ready):
//
//	{
//	    "status": "ready",
//	    "checks": {
//	        "assets": {"status": "ok", "duration_ms": 0.1},
//	        "upstream": {"status": "ok", "duration_ms": 1.2}
//	    },
//	    "timestamp": "2025-11-20T10:30:00Z"
//	}
//
// Example response (degraded):
//
//	{
//	    "status": "degraded",
//	    "checks": {
//	        "assets": {"status": "ok"},
//	        "upstream": {"status": "unhealthy", "message": "dial tcp 127.0.0.1:3001: connect: connection refused"}
//	    },
//	    "timestamp": "2025-11-20T10:30:00Z"
//	}
func (c *Checker) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Only accept GET requests
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		status := c.CheckReadiness(r.Context())

		w.Header().Set("Content-Type", "application/json")

		// Return 503 if not ready
		if status.Status == "degraded" || status.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}

		if r.Method != http.MethodHead {
			_ = json.NewEncoder(w).Encode(status)
		}
	}
}

// VersionHandler returns an HTTP handler for the version information endpoint.
// An empty GoVersion is filled from the running binary.
//
// Example response:
//
//	{
//	    "version": "1.0.0",
//	    "commit": "abc123def456",
//	    "build_time": "2025-11-20T00:00:00Z",
//	    "go_version": "go1.25.0"
//	}
func VersionHandler(info VersionInfo) http.HandlerFunc {
	if info.GoVersion == "" {
		info.GoVersion = runtime.Version()
	}

	return func(w http.ResponseWriter, r *http.Request) {
		// Only accept GET requests
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)

		if r.Method != http.MethodHead {
			_ = json.NewEncoder(w).Encode(info)
		}
	}
}

// Register mounts the liveness, readiness and version handlers under
// prefix on mux:
//
//	health.Register(mux, "/_webdev", checker, info)
//	// GET /_webdev/health, /_webdev/ready, /_webdev/version
func Register(mux *http.ServeMux, prefix string, checker *Checker, info VersionInfo) {
	prefix = strings.TrimSuffix(prefix, "/")
	mux.HandleFunc(prefix+"/health", checker.LivenessHandler())
	mux.HandleFunc(prefix+"/ready", checker.ReadinessHandler())
	mux.HandleFunc(prefix+"/version", VersionHandler(info))
}
