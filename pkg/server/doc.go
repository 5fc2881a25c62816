// Package server hosts webdev's HTTP listener.
//
// Every request outside the admin prefix goes to the application handler:
// the router in production mode, the forwarder in development mode. Under
// the admin prefix (default /_webdev) the server mounts:
//
//	GET  /_webdev/health      liveness
//	GET  /_webdev/ready       readiness (asset root, upstream, last build)
//	GET  /_webdev/version     build information
//	GET  /_webdev/metrics     Prometheus metrics, when enabled
//	GET  /_webdev/status      state of the most recent build
//	POST /_webdev/rebuild     build and publish synchronously
//	POST /_webdev/invalidate  mark the published output stale
//	GET  /_webdev/builds      build history, when enabled
//
// Unknown admin paths answer with a JSON 404 instead of falling through to
// the application.
//
// # Middleware
//
// The chain, outermost first, is recovery, tracing, request ID, logging,
// metrics, CORS, compression and the request timeout.
//
// # Lifecycle
//
//	srv, err := server.New(server.Options{Config: &cfg.Server, App: svc})
//	if err != nil {
//	    return err
//	}
//	return srv.Start(ctx) // returns after ctx is cancelled and shutdown completes
//
// Shutdown waits up to server.shutdown_timeout for in-flight requests.
package server
