package proxy

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Observer receives the outcome of each forward. Implementations must be
// safe for concurrent use.
type Observer interface {
	ForwardCompleted(status int, duration time.Duration)
	ForwardFailed(kind ErrorKind, duration time.Duration)
}

// ForwarderConfig configures a Forwarder.
type ForwarderConfig struct {
	// Upstream is the origin every request is forwarded to, e.g. "http://127.0.0.1:3001".
	Upstream string

	// ResponseHeaderTimeout bounds the wait for upstream response headers.
	// Zero means no timeout.
	ResponseHeaderTimeout time.Duration

	// DialTimeout bounds connection establishment.
	DialTimeout time.Duration

	// MaxIdleConns is the size of the idle connection pool to the upstream.
	MaxIdleConns int

	// IdleConnTimeout closes idle pooled connections after this duration.
	IdleConnTimeout time.Duration

	// InsecureSkipVerify disables upstream certificate verification.
	InsecureSkipVerify bool

	// Pseudonym identifies this proxy in Via and Forwarded.
	Pseudonym string

	// FlushInterval controls response flushing. Negative flushes after every
	// write; zero flushes only when the body ends. Streaming responses are
	// always flushed immediately.
	FlushInterval time.Duration

	// WrapTransport, when set, decorates the upstream transport (tracing).
	WrapTransport func(http.RoundTripper) http.RoundTripper

	// Transport replaces the default transport entirely. Used by tests.
	Transport http.RoundTripper

	// Observer is notified of every forward outcome. Optional.
	Observer Observer

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Forwarder relays requests to a single upstream origin.
type Forwarder struct {
	upstream      *url.URL
	transport     http.RoundTripper
	pseudonym     string
	flushInterval time.Duration
	observer      Observer
	logger        *slog.Logger
}

// NewForwarder validates cfg and builds a Forwarder with a pooled transport.
func NewForwarder(cfg ForwarderConfig) (*Forwarder, error) {
	upstream, err := url.Parse(cfg.Upstream)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream URL %q: %w", cfg.Upstream, err)
	}
	if upstream.Scheme != "http" && upstream.Scheme != "https" {
		return nil, fmt.Errorf("invalid upstream URL %q: scheme must be http or https", cfg.Upstream)
	}
	if upstream.Host == "" {
		return nil, fmt.Errorf("invalid upstream URL %q: missing host", cfg.Upstream)
	}

	transport := cfg.Transport
	if transport == nil {
		transport = NewTransport(cfg)
	}
	if cfg.WrapTransport != nil {
		transport = cfg.WrapTransport(transport)
	}

	pseudonym := cfg.Pseudonym
	if pseudonym == "" {
		pseudonym = DefaultPseudonym
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Forwarder{
		upstream:      upstream,
		transport:     transport,
		pseudonym:     pseudonym,
		flushInterval: cfg.FlushInterval,
		observer:      cfg.Observer,
		logger:        logger,
	}, nil
}

// NewTransport returns the pooled upstream transport described by cfg.
// Environment proxy settings are ignored and response bodies are passed
// through without transparent decompression.
func NewTransport(cfg ForwarderConfig) *http.Transport {
	dialer := &net.Dialer{
		Timeout:   cfg.DialTimeout,
		KeepAlive: 30 * time.Second,
	}
	return &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          cfg.MaxIdleConns,
		MaxIdleConnsPerHost:   cfg.MaxIdleConns,
		IdleConnTimeout:       cfg.IdleConnTimeout,
		ResponseHeaderTimeout: cfg.ResponseHeaderTimeout,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.InsecureSkipVerify, //nolint:gosec // opt-in for self-signed dev servers
		},
		DisableCompression: true,
		ForceAttemptHTTP2:  true,
	}
}

// Upstream returns a copy of the upstream base URL.
func (f *Forwarder) Upstream() *url.URL {
	u := *f.upstream
	return &u
}

// Forward sends r to the upstream and returns its response with the body
// still streaming. Failures are returned as *InvalidHeaderError or
// *ProxyError; a request whose client has gone away returns the context error.
func (f *Forwarder) Forward(r *http.Request) (*http.Response, error) {
	fc, err := NewForwardContext(r, f.upstream, f.pseudonym)
	if err != nil {
		return nil, err
	}

	ctx := r.Context()
	out := r.Clone(ctx)
	out.URL = fc.URL()
	out.Host = ""
	out.Header = fc.Header()
	out.RequestURI = ""
	out.Close = false
	if r.ContentLength == 0 {
		// Keep the transport from retrying with a nil body on a reused connection.
		out.Body = nil
	}
	resp, err := f.transport.RoundTrip(out)
	if err != nil {
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, classifyTransportError(f.upstream.Host, err)
	}
	return resp, nil
}

// ServeHTTP forwards r and streams the upstream response to w.
func (f *Forwarder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()

	resp, err := f.Forward(r)
	if err != nil {
		f.fail(w, r, err, time.Since(start))
		return
	}

	if resp.StatusCode == http.StatusSwitchingProtocols {
		f.handleUpgrade(w, r, resp)
		return
	}
	defer resp.Body.Close()

	RemoveHopHeaders(resp.Header)
	copyHeader(w.Header(), resp.Header)

	announced := len(resp.Trailer)
	if announced > 0 {
		keys := make([]string, 0, announced)
		for k := range resp.Trailer {
			keys = append(keys, k)
		}
		w.Header().Add("Trailer", strings.Join(keys, ", "))
	}

	w.WriteHeader(resp.StatusCode)

	if err := f.copyResponse(w, resp.Body, f.flushIntervalFor(resp)); err != nil {
		if ctx.Err() != nil {
			f.logger.DebugContext(ctx, "client went away during response",
				"path", r.URL.Path,
			)
			return
		}
		f.logger.WarnContext(ctx, "upstream body copy failed",
			"path", r.URL.Path,
			"error", err,
		)
		// Abort the connection so a truncated body is not mistaken for a complete one.
		panic(http.ErrAbortHandler)
	}

	if len(resp.Trailer) > 0 {
		if len(resp.Trailer) == announced {
			copyHeader(w.Header(), resp.Trailer)
		} else {
			for k, vv := range resp.Trailer {
				for _, v := range vv {
					w.Header().Add(http.TrailerPrefix+k, v)
				}
			}
		}
	}

	if f.observer != nil {
		f.observer.ForwardCompleted(resp.StatusCode, time.Since(start))
	}
}

func (f *Forwarder) fail(w http.ResponseWriter, r *http.Request, err error, elapsed time.Duration) {
	ctx := r.Context()

	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		f.logger.DebugContext(ctx, "client cancelled before upstream responded",
			"path", r.URL.Path,
		)
		return
	}

	var proxyErr *ProxyError
	if errors.As(err, &proxyErr) {
		f.logger.WarnContext(ctx, "upstream request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"upstream", f.upstream.Host,
			"kind", proxyErr.Kind.String(),
			"error", proxyErr.Err,
		)
		if f.observer != nil {
			f.observer.ForwardFailed(proxyErr.Kind, elapsed)
		}
	} else {
		f.logger.WarnContext(ctx, "rejected request before forwarding",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
	}

	_ = WriteErrorResponse(w, HandleError(err))
}

// flushIntervalFor returns -1 for responses that must stream immediately.
func (f *Forwarder) flushIntervalFor(resp *http.Response) time.Duration {
	if mt, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type")); mt == "text/event-stream" {
		return -1
	}
	if resp.ContentLength == -1 {
		return -1
	}
	return f.flushInterval
}

// copyResponse streams src to w, flushing according to interval.
func (f *Forwarder) copyResponse(w http.ResponseWriter, src io.Reader, interval time.Duration) error {
	rc := http.NewResponseController(w)
	buf := make([]byte, 32*1024)
	lastFlush := time.Now()

	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return werr
			}
			if interval < 0 || (interval > 0 && time.Since(lastFlush) >= interval) {
				if err := rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
					return err
				}
				lastFlush = time.Now()
			}
		}
		if rerr == io.EOF {
			return nil
		}
		if rerr != nil {
			return rerr
		}
	}
}

func copyHeader(dst, src http.Header) {
	for k, vv := range src {
		for _, v := range vv {
			dst.Add(k, v)
		}
	}
}
