// Package handlers provides the admin HTTP handlers mounted under the
// server's admin prefix (default /_webdev).
//
//	GET  /_webdev/status      most recent build the router waited on
//	POST /_webdev/rebuild     build and publish now
//	POST /_webdev/invalidate  mark the published output stale
//	GET  /_webdev/builds      recent build history (?limit=N)
//
// Health, readiness and version endpoints are registered by the health
// package; metrics by the metrics package.
//
// Errors use the same JSON envelope as the forwarder:
//
//	{"error": {"message": "...", "type": "server_error", "code": "build_failed"}}
package handlers
