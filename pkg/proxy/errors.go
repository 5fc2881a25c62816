package proxy

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"

	"mercator-hq/webdev/pkg/proxy/types"
)

var (
	// ErrInvalidHeader is matched by every *InvalidHeaderError.
	ErrInvalidHeader = errors.New("invalid forwarding header")

	// ErrUnreachable is matched by a *ProxyError of kind Unreachable.
	ErrUnreachable = errors.New("upstream unreachable")

	// ErrTimeout is matched by a *ProxyError of kind Timeout.
	ErrTimeout = errors.New("upstream timeout")
)

// BadGatewayMessage is the client-facing text for an unreachable upstream.
const BadGatewayMessage = "Bad gateway. Is your dev server running?"

// InvalidHeaderError reports a malformed forwarding header on an inbound request.
type InvalidHeaderError struct {
	Header string
	Value  string
	Reason string
}

func (e *InvalidHeaderError) Error() string {
	return fmt.Sprintf("invalid %s header %q: %s", e.Header, e.Value, e.Reason)
}

func (e *InvalidHeaderError) Unwrap() error {
	return ErrInvalidHeader
}

func invalidHeader(header, value, reason string) *InvalidHeaderError {
	return &InvalidHeaderError{Header: header, Value: value, Reason: reason}
}

// ErrorKind classifies forwarding failures.
type ErrorKind int

const (
	// Unreachable covers connect, DNS and TLS failures.
	Unreachable ErrorKind = iota
	// Timeout covers the response header timeout and request deadlines.
	Timeout
)

func (k ErrorKind) String() string {
	switch k {
	case Unreachable:
		return "unreachable"
	case Timeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// ProxyError is the single terminal error for a failed forward.
type ProxyError struct {
	Kind     ErrorKind
	Upstream string
	Err      error
}

func (e *ProxyError) Error() string {
	return fmt.Sprintf("upstream %s %s: %v", e.Upstream, e.Kind, e.Err)
}

// Unwrap exposes both the kind sentinel and the transport error.
func (e *ProxyError) Unwrap() []error {
	sentinel := ErrUnreachable
	if e.Kind == Timeout {
		sentinel = ErrTimeout
	}
	return []error{sentinel, e.Err}
}

// classifyTransportError maps a RoundTrip error to a ProxyError.
func classifyTransportError(upstream string, err error) *ProxyError {
	return &ProxyError{
		Kind:     transportErrorKind(err),
		Upstream: upstream,
		Err:      err,
	}
}

func transportErrorKind(err error) ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return Timeout
	}

	// Dial timeouts are connection failures, not slow upstreams.
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return Unreachable
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return Unreachable
	}

	var (
		recordErr  tls.RecordHeaderError
		verifyErr  *tls.CertificateVerificationError
		unknownCA  x509.UnknownAuthorityError
		hostnameEr x509.HostnameError
	)
	if errors.As(err, &recordErr) || errors.As(err, &verifyErr) ||
		errors.As(err, &unknownCA) || errors.As(err, &hostnameEr) {
		return Unreachable
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Timeout
	}

	return Unreachable
}

// HandleError converts errors from the forwarding path to client-facing
// error responses. Messages never carry upstream addresses or file paths.
//
// Example usage:
//
//	if err != nil {
//	    WriteErrorResponse(w, HandleError(err))
//	    return
//	}
func HandleError(err error) *types.ErrorResponse {
	var headerErr *InvalidHeaderError
	if errors.As(err, &headerErr) {
		return types.NewInvalidRequestError(
			fmt.Sprintf("Malformed %s header", headerErr.Header),
			headerErr.Header,
			types.CodeInvalidHeader,
		)
	}

	var upgradeErr *UpgradeError
	if errors.As(err, &upgradeErr) {
		return types.NewErrorResponse(
			"Protocol upgrade failed",
			types.ErrorTypeBadGateway,
			"",
			types.CodeUpgradeFailed,
		)
	}

	var proxyErr *ProxyError
	if errors.As(err, &proxyErr) {
		if proxyErr.Kind == Timeout {
			return types.NewGatewayTimeoutError("Upstream timed out")
		}
		return types.NewBadGatewayError(BadGatewayMessage)
	}

	return types.NewServerError(
		"An internal error occurred. Please try again later.",
	)
}
