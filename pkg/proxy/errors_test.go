package proxy

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"testing"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestTransportErrorKind(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"deadline", fmt.Errorf("wrapped: %w", context.DeadlineExceeded), Timeout},
		{"dial refused", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, Unreachable},
		{"dial timeout", &net.OpError{Op: "dial", Net: "tcp", Err: timeoutErr{}}, Unreachable},
		{"dns", &net.DNSError{Err: "no such host", Name: "devbox"}, Unreachable},
		{"read timeout", &net.OpError{Op: "read", Net: "tcp", Err: timeoutErr{}}, Timeout},
		{"other", errors.New("EOF"), Unreachable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := transportErrorKind(tt.err); got != tt.want {
				t.Errorf("transportErrorKind() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestProxyError_Is(t *testing.T) {
	cause := errors.New("refused")
	err := error(&ProxyError{Kind: Unreachable, Upstream: "localhost:3000", Err: cause})

	if !errors.Is(err, ErrUnreachable) {
		t.Error("errors.Is(err, ErrUnreachable) = false")
	}
	if errors.Is(err, ErrTimeout) {
		t.Error("errors.Is(err, ErrTimeout) = true")
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false")
	}
}

func TestHandleError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantParam  string
	}{
		{"invalid header", invalidHeader(HeaderForwarded, "for", "bad"), http.StatusBadRequest, HeaderForwarded},
		{"unreachable", &ProxyError{Kind: Unreachable, Err: errors.New("x")}, http.StatusBadGateway, ""},
		{"timeout", &ProxyError{Kind: Timeout, Err: errors.New("x")}, http.StatusGatewayTimeout, ""},
		{"upgrade", &UpgradeError{Reason: "x"}, http.StatusBadGateway, ""},
		{"unknown", errors.New("x"), http.StatusInternalServerError, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := HandleError(tt.err)
			if got := resp.Error.HTTPStatusCode(); got != tt.wantStatus {
				t.Errorf("Status code = %v, want %v", got, tt.wantStatus)
			}
			if resp.Error.Param != tt.wantParam {
				t.Errorf("Param = %q, want %q", resp.Error.Param, tt.wantParam)
			}
		})
	}
}
