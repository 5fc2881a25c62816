package health

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"

	"mercator-hq/webdev/pkg/build"
	"mercator-hq/webdev/pkg/router"
)

// DirCheck reports unhealthy unless path is an existing directory.
func DirCheck(path string) CheckFunc {
	return func(context.Context) error {
		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return fmt.Errorf("%s is not a directory", path)
		}
		return nil
	}
}

// DialCheck reports unhealthy unless a TCP connection to the host of
// rawURL can be opened. The connection is closed immediately.
func DialCheck(rawURL string) CheckFunc {
	return func(ctx context.Context) error {
		u, err := url.Parse(rawURL)
		if err != nil {
			return err
		}
		host := u.Host
		if u.Port() == "" {
			port := "80"
			if u.Scheme == "https" {
				port = "443"
			}
			host = net.JoinHostPort(u.Hostname(), port)
		}
		var d net.Dialer
		conn, err := d.DialContext(ctx, "tcp", host)
		if err != nil {
			return err
		}
		return conn.Close()
	}
}

// StatusSource reports the most recent build.
type StatusSource interface {
	Status() router.Status
}

// BuildCheck reports unhealthy while the most recent build failed or its
// output could not be published. A server that has not built yet is
// healthy.
func BuildCheck(src StatusSource) CheckFunc {
	return func(context.Context) error {
		st := src.Status()
		if st.State == build.Failed.String() {
			return errors.New("last build failed: " + st.Error)
		}
		if st.JobID != "" && st.State == build.Succeeded.String() && !st.Published {
			return errors.New("last build was not published: " + st.Error)
		}
		return nil
	}
}
