// Package static serves the published asset tree.
//
// Each request opens the serving path once and reads only through that
// handle, so a publish that lands mid-request cannot mix files from two
// builds into one response.
package static

import (
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path"
	"strings"

	"mercator-hq/webdev/pkg/publish"
)

// DefaultIndex is served for directory requests.
const DefaultIndex = "index.html"

// Option configures a Server.
type Option func(*Server)

// WithPublisher pins each request to a published generation with a lease.
func WithPublisher(p *publish.Publisher) Option {
	return func(s *Server) {
		s.publisher = p
	}
}

// WithIndex sets the file served for directory requests.
func WithIndex(name string) Option {
	return func(s *Server) {
		if name != "" {
			s.index = name
		}
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// Server answers GET and HEAD requests from the asset root.
type Server struct {
	root      string
	index     string
	publisher *publish.Publisher
	logger    *slog.Logger
}

// New returns a Server for root.
func New(root string, opts ...Option) *Server {
	s := &Server{
		root:   root,
		index:  DefaultIndex,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// handle is an open generation of the asset root.
type handle interface {
	FS() fs.FS
	Stat(name string) (fs.FileInfo, error)
	Close() error
}

func (s *Server) open() (handle, error) {
	if s.publisher != nil {
		return s.publisher.Open()
	}
	return os.OpenRoot(s.root)
}

// Serve writes the asset for r and returns true, or returns false without
// writing anything when the request is not a static hit.
func (s *Server) Serve(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		return false
	}

	h, err := s.open()
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.WarnContext(r.Context(), "failed to open asset root", "error", err)
		}
		return false
	}
	defer h.Close()

	name := strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")
	if name == "" {
		name = "."
	}

	info, err := h.Stat(name)
	if err != nil {
		return false
	}

	if info.IsDir() {
		index := path.Join(name, s.index)
		info, err = h.Stat(index)
		if err != nil || !info.Mode().IsRegular() {
			// Without an index the directory is not ours to answer.
			return false
		}
		if !strings.HasSuffix(r.URL.Path, "/") {
			target := r.URL.Path + "/"
			if r.URL.RawQuery != "" {
				target += "?" + r.URL.RawQuery
			}
			http.Redirect(w, r, target, http.StatusMovedPermanently)
			return true
		}
		name = index
	}
	if !info.Mode().IsRegular() {
		return false
	}

	w.Header().Set("Cache-Control", "no-cache")
	http.ServeFileFS(w, r, h.FS(), name)
	return true
}

// ServeHTTP serves static hits and answers 404 otherwise.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !s.Serve(w, r) {
		http.NotFound(w, r)
	}
}
