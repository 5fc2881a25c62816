package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"

	"mercator-hq/webdev/pkg/config"
	"mercator-hq/webdev/pkg/proxy"
	"mercator-hq/webdev/pkg/proxy/handlers"
	"mercator-hq/webdev/pkg/proxy/middleware"
	"mercator-hq/webdev/pkg/proxy/types"
	"mercator-hq/webdev/pkg/telemetry/health"
	"mercator-hq/webdev/pkg/telemetry/metrics"
	"mercator-hq/webdev/pkg/telemetry/tracing"
)

// Options wires the server to the rest of webdev. Only Config and App are
// required.
type Options struct {
	Config *config.ServerConfig

	// App serves every request outside the admin prefix: the router in
	// production mode, the forwarder in development mode.
	App http.Handler

	// Controller enables the status, rebuild and invalidate endpoints.
	Controller handlers.BuildController

	// History enables the builds endpoint.
	History handlers.HistoryLister

	Checker *health.Checker
	Version health.VersionInfo
	Metrics *metrics.Collector
	Tracer  *tracing.Tracer
	Logger  *slog.Logger
}

// Server is the webdev HTTP server.
type Server struct {
	config     *config.ServerConfig
	handler    http.Handler
	logger     *slog.Logger
	httpServer *http.Server

	mu        sync.RWMutex
	isRunning bool
	addr      string
}

// New builds the route table and middleware chain.
func New(opts Options) (*Server, error) {
	if opts.Config == nil {
		return nil, errors.New("server config is required")
	}
	if opts.App == nil {
		return nil, errors.New("application handler is required")
	}
	if opts.Checker == nil {
		opts.Checker = health.New(0)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	s := &Server{
		config: opts.Config,
		logger: opts.Logger.With("component", "server"),
	}

	handler, err := s.setupRoutes(opts)
	if err != nil {
		return nil, err
	}
	s.handler = handler

	s.httpServer = &http.Server{
		Addr:           s.config.ListenAddress,
		Handler:        handler,
		ReadTimeout:    s.config.ReadTimeout,
		WriteTimeout:   s.config.WriteTimeout,
		IdleTimeout:    s.config.IdleTimeout,
		MaxHeaderBytes: s.config.MaxHeaderBytes,
		ErrorLog:       slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}

	return s, nil
}

// Start listens on the configured address and serves until ctx is
// cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.ListenAddress)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.ListenAddress, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled or the server fails.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		ln.Close()
		return fmt.Errorf("server is already running")
	}
	s.isRunning = true
	s.addr = ln.Addr().String()
	s.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", "address", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
		close(errChan)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.WithoutCancel(ctx))
	case err, ok := <-errChan:
		s.setStopped()
		if ok {
			return err
		}
		return nil
	}
}

// Shutdown gracefully shuts down the server within the configured
// shutdown timeout. Hijacked upgrade connections are not waited for.
func (s *Server) Shutdown(ctx context.Context) error {
	if !s.IsRunning() {
		return nil
	}

	s.logger.Info("initiating graceful shutdown", "timeout", s.config.ShutdownTimeout.String())

	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	var shutdownErr error
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("error during server shutdown", "error", err)
		shutdownErr = fmt.Errorf("server shutdown error: %w", err)
	}

	s.setStopped()
	s.logger.Info("server stopped")
	return shutdownErr
}

func (s *Server) setStopped() {
	s.mu.Lock()
	s.isRunning = false
	s.mu.Unlock()
}

// IsRunning returns true if the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Addr returns the address the server is listening on, once running.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.addr
}

// Handler returns the configured HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// setupRoutes configures admin routes, the application catch-all and the
// middleware chain.
func (s *Server) setupRoutes(opts Options) (http.Handler, error) {
	mux := http.NewServeMux()
	prefix := strings.TrimSuffix(s.config.AdminPrefix, "/")

	health.Register(mux, prefix, opts.Checker, opts.Version)
	if opts.Metrics != nil {
		mux.Handle(prefix+"/metrics", opts.Metrics.Handler())
	}
	if opts.Controller != nil {
		mux.Handle(prefix+"/status", handlers.NewStatusHandler(opts.Controller))
		mux.Handle(prefix+"/rebuild", handlers.NewRebuildHandler(opts.Controller, s.logger))
		mux.Handle(prefix+"/invalidate", handlers.NewInvalidateHandler(opts.Controller))
	}
	if opts.History != nil {
		mux.Handle(prefix+"/builds", handlers.NewBuildsHandler(opts.History))
	}
	// Unknown admin paths never reach the application.
	mux.HandleFunc(prefix+"/", func(w http.ResponseWriter, r *http.Request) {
		proxy.WriteErrorResponse(w, types.NewErrorResponse(
			"unknown admin endpoint "+r.URL.Path, types.ErrorTypeNotFound, "", "not_found"))
	})
	mux.Handle("/", opts.App)

	// Apply middleware chain, innermost first
	var handler http.Handler = mux

	// Timeout middleware
	handler = middleware.TimeoutMiddleware(s.config.RequestTimeout)(handler)

	// Compression middleware
	compress, err := middleware.CompressionMiddleware(middleware.CompressionConfig{
		Enabled: s.config.Compression.Enabled,
		MinSize: s.config.Compression.MinSize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to configure compression: %w", err)
	}
	handler = compress(handler)

	// CORS middleware
	handler = middleware.CORSMiddleware(s.convertCORSConfig())(handler)

	// Metrics middleware
	if opts.Metrics != nil {
		handler = middleware.MetricsMiddleware(opts.Metrics)(handler)
	}

	// Logging middleware
	handler = middleware.LoggingMiddleware(handler)

	// Request ID middleware
	handler = middleware.RequestIDMiddleware(handler)

	// Tracing middleware
	if opts.Tracer != nil && opts.Tracer.Enabled() {
		handler = middleware.TracingMiddleware(opts.Tracer.TracerProvider(), opts.Tracer.Propagator())(handler)
	}

	// Recovery middleware (outermost)
	handler = middleware.RecoveryMiddleware(handler)

	return handler, nil
}

// convertCORSConfig converts config.CORSConfig to middleware.CORSConfig.
func (s *Server) convertCORSConfig() *middleware.CORSConfig {
	return &middleware.CORSConfig{
		Enabled:          s.config.CORS.Enabled,
		AllowedOrigins:   s.config.CORS.AllowedOrigins,
		AllowedMethods:   s.config.CORS.AllowedMethods,
		AllowedHeaders:   s.config.CORS.AllowedHeaders,
		ExposedHeaders:   s.config.CORS.ExposedHeaders,
		MaxAge:           s.config.CORS.MaxAge,
		AllowCredentials: s.config.CORS.AllowCredentials,
	}
}
