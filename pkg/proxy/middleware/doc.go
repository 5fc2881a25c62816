// Package middleware provides HTTP middleware for cross-cutting concerns of
// the development server.
//
// # Middleware Chain
//
// The server assembles the chain outermost first:
//
//	Recovery → Tracing → RequestID → Logging → Metrics → CORS → Compression → Timeout → router
//
// Recovery sits outside everything so a panic anywhere becomes a 500, except
// http.ErrAbortHandler which is re-raised so net/http drops the connection.
// The forwarder relies on that to signal a truncated upstream body.
//
// # Request ID
//
// RequestIDMiddleware keeps a well-formed client X-Request-ID and otherwise
// generates a UUID. The ID is stored in the context, echoed on the response
// and set on the request headers so the upstream dev server sees it too.
//
// # Logging
//
// LoggingMiddleware records one structured line per request:
//
//	level=INFO msg="request completed" method=GET path=/assets/app.js status=200 latency_ms=3 bytes=48211 request_id=...
//
// 4xx responses log at WARN and 5xx at ERROR. At debug level a start record
// with redacted request headers is also written. Response writers are
// wrapped with httpsnoop so Flusher and Hijacker stay reachable.
//
// # Compression and Timeout
//
// CompressionMiddleware gzips eligible responses with klauspost/compress.
// Event streams and upgrade requests are never compressed.
//
// TimeoutMiddleware only attaches a context deadline. It never writes a
// response; the forwarder reports an expired deadline as 504.
//
// # Thread Safety
//
// All middleware functions are safe for concurrent use.
package middleware
