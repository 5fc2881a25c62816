// Package router composes static serving, on-demand builds and upstream
// forwarding into a single http.Handler.
//
// For each request the Service first asks the static layer. On a miss, and
// only while no build has succeeded in the current session, it triggers a
// build (sharing any build already running for the asset root), publishes
// the output, and checks the static layer once more. Everything else is
// forwarded upstream.
//
// Build and publish failures never reach the client directly: they are
// logged with the job ID and output tail and the request is forwarded.
// A request whose deadline passes while it waits for a build is answered
// with a 504; one whose client disconnects gets no response at all.
package router
