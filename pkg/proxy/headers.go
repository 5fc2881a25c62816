package proxy

import (
	"fmt"
	"net"
	"net/http"
	"net/textproto"
	"strings"

	"golang.org/x/net/http/httpguts"
)

// hopHeaders are meaningful for a single connection only and are never
// forwarded. Headers named by Connection are removed in addition to these.
var hopHeaders = []string{
	"Connection",
	"Proxy-Connection", // non-standard but still sent by some clients
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

const (
	// HeaderForwarded is the RFC 7239 forwarding header.
	HeaderForwarded = "Forwarded"

	// HeaderXForwardedFor is the de-facto client address chain header.
	HeaderXForwardedFor = "X-Forwarded-For"

	// HeaderVia records the protocol and pseudonym of each proxy hop.
	HeaderVia = "Via"
)

// Hop describes the connection segment this proxy is responsible for.
type Hop struct {
	// ClientAddr is the peer address of the inbound connection ("ip" or "ip:port").
	ClientAddr string

	// Proto is the scheme the client used to reach the proxy ("http" or "https").
	Proto string

	// ProtoMajor and ProtoMinor are the inbound HTTP version.
	ProtoMajor int
	ProtoMinor int

	// By identifies this proxy in Forwarded and Via.
	By string
}

// RemoveHopHeaders deletes hop-by-hop headers from h in place, including every
// header listed in Connection. It is applied to both requests and responses.
func RemoveHopHeaders(h http.Header) {
	for _, f := range h["Connection"] {
		for _, sf := range strings.Split(f, ",") {
			if sf = textproto.TrimString(sf); sf != "" {
				h.Del(sf)
			}
		}
	}
	for _, name := range hopHeaders {
		h.Del(name)
	}
}

// IsUpgrade reports whether h requests a protocol upgrade, returning the
// requested protocol.
func IsUpgrade(h http.Header) (string, bool) {
	if !httpguts.HeaderValuesContainsToken(h["Connection"], "Upgrade") {
		return "", false
	}
	proto := h.Get("Upgrade")
	if proto == "" {
		return "", false
	}
	return proto, true
}

// PrepareRequestHeaders returns the header set to send upstream for a request
// that arrived with headers. The input map is not modified.
//
// Hop-by-hop headers are stripped, the client is appended to
// X-Forwarded-For and Forwarded, and this hop is appended to Via. Existing
// chain entries are carried over byte for byte. Malformed Forwarded or
// X-Forwarded-For values yield an *InvalidHeaderError.
func PrepareRequestHeaders(headers http.Header, hop Hop) (http.Header, error) {
	if err := validateForwarded(headers.Values(HeaderForwarded)); err != nil {
		return nil, err
	}
	if err := validateXForwardedFor(headers.Values(HeaderXForwardedFor)); err != nil {
		return nil, err
	}

	out := headers.Clone()
	if out == nil {
		out = make(http.Header)
	}

	upgrade, isUpgrade := IsUpgrade(headers)
	keepTrailers := httpguts.HeaderValuesContainsToken(headers["Te"], "trailers")

	RemoveHopHeaders(out)

	if keepTrailers {
		out.Set("Te", "trailers")
	}
	if isUpgrade {
		out.Set("Connection", "Upgrade")
		out.Set("Upgrade", upgrade)
	}

	clientIP := clientHost(hop.ClientAddr)
	if clientIP != "" {
		out.Set(HeaderXForwardedFor, appendList(headers.Values(HeaderXForwardedFor), clientIP))
	}

	element := ForwardedElement{
		For:   clientIP,
		Proto: hop.Proto,
		By:    hop.By,
	}
	out.Set(HeaderForwarded, appendList(headers.Values(HeaderForwarded), element.String()))

	out.Set(HeaderVia, appendList(headers.Values(HeaderVia), viaEntry(hop)))

	return out, nil
}

// appendList joins the existing header lines and entry into a single
// comma-separated value. Existing text is kept verbatim.
func appendList(existing []string, entry string) string {
	var prior []string
	for _, v := range existing {
		if v = textproto.TrimString(v); v != "" {
			prior = append(prior, v)
		}
	}
	if len(prior) == 0 {
		return entry
	}
	return strings.Join(prior, ", ") + ", " + entry
}

func viaEntry(hop Hop) string {
	by := hop.By
	if by == "" {
		by = DefaultPseudonym
	}
	switch {
	case hop.ProtoMajor >= 2:
		return fmt.Sprintf("%d %s", hop.ProtoMajor, by)
	case hop.ProtoMajor == 1:
		return fmt.Sprintf("1.%d %s", hop.ProtoMinor, by)
	default:
		return "1.1 " + by
	}
}

// clientHost strips the port from addr. Unix socket peers and other
// non-IP addresses return "".
func clientHost(addr string) string {
	if addr == "" {
		return ""
	}
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}
	host = strings.Trim(host, "[]")
	if net.ParseIP(host) == nil {
		return ""
	}
	return host
}
