// Package proxy forwards requests that the local asset tree cannot answer to
// an upstream origin.
//
// # Header Transform
//
// PrepareRequestHeaders turns an inbound header set into the one sent
// upstream:
//
//   - Hop-by-hop headers are removed: Connection and everything it names,
//     Keep-Alive, Proxy-Authenticate, Proxy-Authorization, Proxy-Connection,
//     TE (except "trailers"), Trailer, Transfer-Encoding and Upgrade.
//   - The client IP is appended to X-Forwarded-For.
//   - A for/proto/by element is appended to Forwarded (RFC 7239).
//   - "<version> <pseudonym>" is appended to Via.
//
// Existing chain entries are copied verbatim. A malformed Forwarded or
// X-Forwarded-For header is rejected with an *InvalidHeaderError instead of
// being dropped.
//
// # Forwarding
//
// Forwarder streams request and response bodies without buffering them and
// never retries. Transport failures surface as a *ProxyError:
//
//	Unreachable  connect, DNS or TLS failure          502 Bad Gateway
//	Timeout      response header timeout or deadline  504 Gateway Timeout
//
// Requests carrying "Connection: Upgrade" are tunnelled after the upstream
// answers 101 Switching Protocols.
//
// Example usage:
//
//	fwd, err := proxy.NewForwarder(proxy.ForwarderConfig{
//	    Upstream:              "http://127.0.0.1:3001",
//	    ResponseHeaderTimeout: 30 * time.Second,
//	})
//	if err != nil {
//	    return err
//	}
//	http.Handle("/", fwd)
package proxy
