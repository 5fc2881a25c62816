package router

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"mercator-hq/webdev/pkg/build"
	"mercator-hq/webdev/pkg/proxy"
	"mercator-hq/webdev/pkg/proxy/types"
	"mercator-hq/webdev/pkg/telemetry/logging"
	"mercator-hq/webdev/pkg/telemetry/tracing"
)

// StaticServer serves static hits and reports misses without writing.
type StaticServer interface {
	Serve(w http.ResponseWriter, r *http.Request) bool
}

// Builder starts or joins the build for an asset root.
type Builder interface {
	Trigger(root string) *build.Job
}

// Publisher makes a staging tree the served tree.
type Publisher interface {
	Publish(staging string) error
}

// PublishObserver is notified after each publish attempt.
type PublishObserver interface {
	Published(jobID string, duration time.Duration, err error)
}

// Config configures a Service.
type Config struct {
	// Root is the asset root builds are keyed on.
	Root string

	// OnDemand enables building on the first static miss of a session.
	OnDemand bool
}

// Status summarizes the most recent build the Service waited on.
type Status struct {
	JobID      string    `json:"job_id,omitempty"`
	State      string    `json:"state"`
	Published  bool      `json:"published"`
	Error      string    `json:"error,omitempty"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
}

// Service is the request entry point.
type Service struct {
	cfg       Config
	static    StaticServer
	builder   Builder
	publisher Publisher
	forward   http.Handler
	logger    *slog.Logger
	tracer    trace.Tracer
	observers []PublishObserver

	mu        sync.Mutex
	built     bool
	lastJobID string
	lastErr   error
	status    Status
}

// Option configures a Service.
type Option func(*Service)

// WithStatic sets the static layer. Without one every request is forwarded.
func WithStatic(s StaticServer) Option {
	return func(svc *Service) { svc.static = s }
}

// WithBuilds enables on-demand builds through b and p.
func WithBuilds(b Builder, p Publisher) Option {
	return func(svc *Service) {
		svc.builder = b
		svc.publisher = p
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(svc *Service) { svc.logger = logger }
}

// WithTracerProvider sets the provider for build and publish spans.
// Defaults to the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(svc *Service) { svc.tracer = tp.Tracer(tracing.InstrumentationName) }
}

// WithPublishObserver registers o for publish outcomes.
func WithPublishObserver(o PublishObserver) Option {
	return func(svc *Service) { svc.observers = append(svc.observers, o) }
}

// New returns a Service that forwards misses to forward.
func New(cfg Config, forward http.Handler, opts ...Option) *Service {
	s := &Service{
		cfg:     cfg,
		forward: forward,
		logger:  slog.Default(),
		tracer:  otel.Tracer(tracing.InstrumentationName),
		status:  Status{State: build.Idle.String()},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ServeHTTP implements the static → build → forward fallback chain.
func (s *Service) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if s.serveStatic(w, r) {
		return
	}

	if s.needsBuild() {
		err := s.buildAndPublish(r.Context())
		switch {
		case err == nil:
			if s.serveStatic(w, r) {
				return
			}
		case errors.Is(r.Context().Err(), context.Canceled):
			// Client is gone; nobody to forward for.
			return
		case errors.Is(r.Context().Err(), context.DeadlineExceeded):
			s.logger.WarnContext(r.Context(), "request deadline passed while waiting for build")
			_ = proxy.WriteErrorResponse(w, types.NewGatewayTimeoutError("Upstream timed out"))
			return
		}
	}

	s.forward.ServeHTTP(w, r)
}

func (s *Service) serveStatic(w http.ResponseWriter, r *http.Request) bool {
	return s.static != nil && s.static.Serve(w, r)
}

func (s *Service) needsBuild() bool {
	if !s.cfg.OnDemand || s.builder == nil || s.publisher == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.built
}

// Invalidate marks the published output stale. The next static miss
// triggers a new build.
func (s *Service) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.built = false
}

// Rebuild builds and publishes now, independent of any request.
func (s *Service) Rebuild(ctx context.Context) error {
	if s.builder == nil || s.publisher == nil {
		return errors.New("builds are not configured")
	}
	return s.buildAndPublish(ctx)
}

// Status returns the state of the most recent build.
func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// buildAndPublish waits for the build of the asset root and publishes its
// output. Coalesced callers share both the build and the publish.
func (s *Service) buildAndPublish(ctx context.Context) error {
	job := s.builder.Trigger(s.cfg.Root)
	ctx = logging.WithJobID(ctx, job.ID())

	ctx, span := s.tracer.Start(ctx, "build.wait")
	defer span.End()
	tracing.SetBuildAttributes(span, job.ID(), job.Root())

	res, err := job.Wait(ctx)
	if err == nil || ctx.Err() == nil {
		tracing.SetBuildResult(span, res.State.String(), res.ExitCode)
	}
	tracing.SetStatus(span, err)
	if err != nil {
		if ctx.Err() != nil {
			s.logger.DebugContext(ctx, "stopped waiting for build", "error", err)
			return err
		}
		if s.recordFailure(job.ID(), res, err) {
			s.logger.ErrorContext(ctx, "build failed",
				"exit_code", res.ExitCode,
				"error", err,
				"tail", res.Tail,
			)
		}
		return err
	}

	return s.publishOnce(ctx, res)
}

func (s *Service) publishOnce(ctx context.Context, res build.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lastJobID == res.JobID {
		return s.lastErr
	}

	_, span := s.tracer.Start(ctx, "publish")
	start := time.Now()
	err := s.publisher.Publish(res.StagingDir)
	elapsed := time.Since(start)
	if g, ok := s.publisher.(interface{ Generation() uint64 }); ok && err == nil {
		tracing.SetGeneration(span, g.Generation())
	}
	tracing.SetStatus(span, err)
	span.End()

	s.lastJobID = res.JobID
	s.lastErr = err
	s.status = Status{
		JobID:      res.JobID,
		State:      res.State.String(),
		Published:  err == nil,
		FinishedAt: res.FinishedAt,
	}

	for _, o := range s.observers {
		o.Published(res.JobID, elapsed, err)
	}

	if err != nil {
		s.status.Error = err.Error()
		s.logger.ErrorContext(ctx, "publish failed", "error", err)
		return err
	}

	s.built = true
	s.logger.InfoContext(ctx, "build published",
		"build_duration", res.Duration(),
		"publish_duration", elapsed,
	)
	return nil
}

// recordFailure stores a failed build in the status and reports whether
// this caller is the first to see it.
func (s *Service) recordFailure(jobID string, res build.Result, err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status.JobID == jobID {
		return false
	}
	s.status = Status{
		JobID:      jobID,
		State:      build.Failed.String(),
		Error:      err.Error(),
		FinishedAt: res.FinishedAt,
	}
	return true
}
