package proxy

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
)

// UpgradeError reports a protocol upgrade that could not be tunnelled.
type UpgradeError struct {
	Reason string
	Err    error
}

func (e *UpgradeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("upgrade failed: %s: %v", e.Reason, e.Err)
	}
	return "upgrade failed: " + e.Reason
}

func (e *UpgradeError) Unwrap() error {
	return e.Err
}

// handleUpgrade relays a 101 Switching Protocols response and then copies
// bytes in both directions until either side closes.
func (f *Forwarder) handleUpgrade(w http.ResponseWriter, r *http.Request, resp *http.Response) {
	ctx := r.Context()

	reqProto, _ := IsUpgrade(r.Header)
	resProto, _ := IsUpgrade(resp.Header)
	if !strings.EqualFold(reqProto, resProto) {
		resp.Body.Close()
		f.upgradeFailed(w, r, &UpgradeError{
			Reason: fmt.Sprintf("upstream switched to %q, client asked for %q", resProto, reqProto),
		})
		return
	}

	backConn, ok := resp.Body.(io.ReadWriteCloser)
	if !ok {
		resp.Body.Close()
		f.upgradeFailed(w, r, &UpgradeError{Reason: "upstream body is not writable"})
		return
	}

	rc := http.NewResponseController(w)
	conn, brw, err := rc.Hijack()
	if err != nil {
		backConn.Close()
		f.upgradeFailed(w, r, &UpgradeError{Reason: "client connection cannot be hijacked", Err: err})
		return
	}
	defer conn.Close()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
		case <-stop:
		}
		backConn.Close()
	}()

	RemoveHopHeaders(resp.Header)
	resp.Header.Set("Connection", "Upgrade")
	resp.Header.Set("Upgrade", resProto)
	resp.Body = nil
	if err := resp.Write(brw); err != nil {
		f.logger.WarnContext(ctx, "failed to write upgrade response", "error", err)
		return
	}
	if err := brw.Flush(); err != nil {
		f.logger.WarnContext(ctx, "failed to flush upgrade response", "error", err)
		return
	}

	f.logger.DebugContext(ctx, "tunnel established",
		"path", r.URL.Path,
		"protocol", resProto,
	)

	errc := make(chan error, 2)
	go tunnel(errc, conn, backConn)
	go tunnel(errc, backConn, brw.Reader)
	err = <-errc
	if err != nil && !errors.Is(err, io.EOF) && !isClosedConn(err) {
		f.logger.DebugContext(ctx, "tunnel closed with error", "error", err)
	}
}

func tunnel(errc chan<- error, dst io.Writer, src io.Reader) {
	_, err := io.Copy(dst, src)
	errc <- err
}

func isClosedConn(err error) bool {
	return errors.Is(err, net.ErrClosed)
}

func (f *Forwarder) upgradeFailed(w http.ResponseWriter, r *http.Request, err *UpgradeError) {
	f.logger.WarnContext(r.Context(), "protocol upgrade failed",
		"path", r.URL.Path,
		"error", err,
	)
	_ = WriteErrorResponse(w, HandleError(err))
}
