package proxy

import (
	"net/http"
	"net/url"
	"strings"
)

// ForwardContext captures everything needed to forward one request. It is
// built once at request entry and never modified; accessors return copies.
type ForwardContext struct {
	method     string
	target     *url.URL
	header     http.Header
	clientAddr string
	proto      string
	host       string
	upstream   *url.URL
}

// NewForwardContext prepares the outbound request head for r against the
// upstream base. It fails with an *InvalidHeaderError when r carries a
// malformed forwarding chain.
func NewForwardContext(r *http.Request, upstream *url.URL, by string) (*ForwardContext, error) {
	proto := "http"
	if r.TLS != nil {
		proto = "https"
	}

	header, err := PrepareRequestHeaders(r.Header, Hop{
		ClientAddr: r.RemoteAddr,
		Proto:      proto,
		ProtoMajor: r.ProtoMajor,
		ProtoMinor: r.ProtoMinor,
		By:         by,
	})
	if err != nil {
		return nil, err
	}

	if header.Get("X-Forwarded-Host") == "" && r.Host != "" {
		header.Set("X-Forwarded-Host", r.Host)
	}
	if header.Get("X-Forwarded-Proto") == "" {
		header.Set("X-Forwarded-Proto", proto)
	}

	up := *upstream
	return &ForwardContext{
		method:     r.Method,
		target:     rewriteURL(&up, r.URL),
		header:     header,
		clientAddr: r.RemoteAddr,
		proto:      proto,
		host:       r.Host,
		upstream:   &up,
	}, nil
}

// Method returns the request method.
func (fc *ForwardContext) Method() string { return fc.method }

// URL returns a copy of the outbound URL.
func (fc *ForwardContext) URL() *url.URL {
	u := *fc.target
	return &u
}

// Header returns a copy of the outbound header set.
func (fc *ForwardContext) Header() http.Header { return fc.header.Clone() }

// ClientAddr returns the inbound peer address.
func (fc *ForwardContext) ClientAddr() string { return fc.clientAddr }

// Proto returns the inbound scheme.
func (fc *ForwardContext) Proto() string { return fc.proto }

// Host returns the Host the client asked for.
func (fc *ForwardContext) Host() string { return fc.host }

// Upstream returns a copy of the upstream base URL.
func (fc *ForwardContext) Upstream() *url.URL {
	u := *fc.upstream
	return &u
}

// rewriteURL points in at base. With a bare origin the path and query are
// untouched; a base path is prefixed and a base query is merged first.
func rewriteURL(base, in *url.URL) *url.URL {
	out := *in
	out.Scheme = base.Scheme
	out.Host = base.Host
	out.User = nil
	out.Path, out.RawPath = joinURLPath(base, in)

	switch {
	case base.RawQuery == "":
	case in.RawQuery == "":
		out.RawQuery = base.RawQuery
	default:
		out.RawQuery = base.RawQuery + "&" + in.RawQuery
	}
	return &out
}

func joinURLPath(a, b *url.URL) (path, rawpath string) {
	if a.Path == "" || a.Path == "/" {
		return b.Path, b.RawPath
	}
	if a.RawPath == "" && b.RawPath == "" {
		return singleJoiningSlash(a.Path, b.Path), ""
	}

	apath := a.EscapedPath()
	bpath := b.EscapedPath()
	aslash := strings.HasSuffix(apath, "/")
	bslash := strings.HasPrefix(bpath, "/")

	switch {
	case aslash && bslash:
		return a.Path + b.Path[1:], apath + bpath[1:]
	case !aslash && !bslash:
		return a.Path + "/" + b.Path, apath + "/" + bpath
	}
	return a.Path + b.Path, apath + bpath
}

func singleJoiningSlash(a, b string) string {
	aslash := strings.HasSuffix(a, "/")
	bslash := strings.HasPrefix(b, "/")
	switch {
	case aslash && bslash:
		return a + b[1:]
	case !aslash && !bslash:
		return a + "/" + b
	}
	return a + b
}
