package middleware

import (
	"net/http"

	"github.com/klauspost/compress/gzhttp"
	"golang.org/x/net/http/httpguts"
)

// CompressionConfig configures response compression.
type CompressionConfig struct {
	Enabled bool

	// MinSize is the smallest body, in bytes, worth compressing.
	MinSize int
}

// CompressionMiddleware gzips responses for clients that accept it. Bodies
// that already carry a Content-Encoding are left alone, and event streams
// and upgrade tunnels bypass the compressor entirely.
//
// Example usage:
//
//	mw, err := CompressionMiddleware(CompressionConfig{Enabled: true, MinSize: 1024})
//	if err != nil {
//	    return err
//	}
//	handler = mw(handler)
func CompressionMiddleware(config CompressionConfig) (func(http.Handler) http.Handler, error) {
	if !config.Enabled {
		return func(next http.Handler) http.Handler { return next }, nil
	}

	minSize := config.MinSize
	if minSize <= 0 {
		minSize = gzhttp.DefaultMinSize
	}
	wrap, err := gzhttp.NewWrapper(
		gzhttp.MinSize(minSize),
		gzhttp.ExceptContentTypes([]string{"text/event-stream"}),
	)
	if err != nil {
		return nil, err
	}

	return func(next http.Handler) http.Handler {
		compressed := wrap(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isUpgradeRequest(r) {
				next.ServeHTTP(w, r)
				return
			}
			compressed.ServeHTTP(w, r)
		})
	}, nil
}

func isUpgradeRequest(r *http.Request) bool {
	return r.Header.Get("Upgrade") != "" &&
		httpguts.HeaderValuesContainsToken(r.Header["Connection"], "Upgrade")
}
