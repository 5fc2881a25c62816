package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"mercator-hq/webdev/pkg/build"
	"mercator-hq/webdev/pkg/config"
	"mercator-hq/webdev/pkg/devserver"
	"mercator-hq/webdev/pkg/history"
	"mercator-hq/webdev/pkg/janitor"
	"mercator-hq/webdev/pkg/proxy"
	"mercator-hq/webdev/pkg/publish"
	"mercator-hq/webdev/pkg/router"
	"mercator-hq/webdev/pkg/server"
	"mercator-hq/webdev/pkg/static"
	"mercator-hq/webdev/pkg/telemetry/health"
	"mercator-hq/webdev/pkg/telemetry/metrics"
	"mercator-hq/webdev/pkg/telemetry/tracing"
	"mercator-hq/webdev/pkg/watch"
)

// appOptions carries what differs between run and build.
type appOptions struct {
	// Console receives build and dev server output.
	Console io.Writer

	// Progress, when set, observes builds and publishes.
	Progress progressObserver

	// Serve creates the HTTP server and background workers.
	Serve bool
}

// progressObserver is satisfied by cli.ProgressReporter.
type progressObserver interface {
	build.Observer
	router.PublishObserver
}

// app holds every component of a running webdev process.
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	tracer    *tracing.Tracer
	metrics   *metrics.Collector
	history   *history.Store
	runner    *build.Runner
	publisher *publish.Publisher
	forwarder *proxy.Forwarder
	router    *router.Service
	devServer *devserver.Server
	watcher   *watch.Watcher
	janitor   *janitor.Janitor
	server    *server.Server
}

func newApp(cfg *config.Config, logger *slog.Logger, opts appOptions) (a *app, err error) {
	a = &app{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			a.close(context.Background())
		}
	}()

	a.tracer, err = tracing.New(&cfg.Telemetry.Tracing, Version)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	if cfg.Telemetry.Metrics.Enabled {
		a.metrics = metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
	}

	if cfg.History.Enabled {
		a.history, err = history.Open(history.Config{
			Driver:      cfg.History.Driver,
			Path:        cfg.History.Path,
			BusyTimeout: cfg.History.BusyTimeout,
			Logger:      logger,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open build history: %w", err)
		}
	}

	fwdCfg := proxy.ForwarderConfig{
		Upstream:              cfg.UpstreamURL(),
		ResponseHeaderTimeout: cfg.Upstream.ResponseHeaderTimeout,
		DialTimeout:           cfg.Upstream.DialTimeout,
		MaxIdleConns:          cfg.Upstream.MaxIdleConns,
		IdleConnTimeout:       cfg.Upstream.IdleConnTimeout,
		InsecureSkipVerify:    cfg.Upstream.InsecureSkipVerify,
		Pseudonym:             cfg.Upstream.Via,
		FlushInterval:         cfg.Upstream.FlushInterval,
		WrapTransport:         a.tracer.WrapTransport,
		Logger:                logger,
	}
	if a.metrics != nil {
		fwdCfg.Observer = a.metrics
	}
	a.forwarder, err = proxy.NewForwarder(fwdCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create forwarder: %w", err)
	}

	var appHandler http.Handler = a.forwarder
	if cfg.IsDevelopment() {
		if opts.Serve {
			a.devServer, err = devserver.New(devserver.Config{
				Command:        cfg.DevServer.Command,
				InstallCommand: cfg.Build.InstallCommand,
				Dir:            cfg.Build.WorkingDir,
				Port:           cfg.DevServer.Port,
				ReadyTimeout:   cfg.DevServer.ReadyTimeout,
				Env:            envMap(cfg.DevServer.Env),
				Console:        opts.Console,
				Logger:         logger,
			})
			if err != nil {
				return nil, fmt.Errorf("failed to configure dev server: %w", err)
			}
		}
	} else {
		if err := a.setupBuilds(opts); err != nil {
			return nil, err
		}
		appHandler = a.router
	}

	if !opts.Serve {
		return a, nil
	}

	if err := a.setupWorkers(); err != nil {
		return nil, err
	}

	checker := health.New(cfg.Telemetry.Health.CheckTimeout)
	checker.RegisterCheck("upstream", health.DialCheck(cfg.UpstreamURL()))
	srvOpts := server.Options{
		Config:  &cfg.Server,
		App:     appHandler,
		Checker: checker,
		Version: health.VersionInfo{Version: Version, Commit: GitCommit, BuildTime: BuildDate},
		Metrics: a.metrics,
		Tracer:  a.tracer,
		Logger:  logger,
	}
	if a.router != nil {
		checker.RegisterCheck("assets", health.DirCheck(cfg.Assets.Root))
		checker.RegisterCheck("build", health.BuildCheck(a.router))
		srvOpts.Controller = a.router
	}
	if a.history != nil {
		srvOpts.History = a.history
	}

	a.server, err = server.New(srvOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to create server: %w", err)
	}

	return a, nil
}

func (a *app) setupBuilds(opts appOptions) error {
	cfg := a.cfg

	observers := []build.Observer{}
	if a.metrics != nil {
		observers = append(observers, a.metrics)
	}
	if a.history != nil {
		observers = append(observers, a.history)
	}
	if opts.Progress != nil {
		observers = append(observers, opts.Progress)
	}

	var err error
	a.runner, err = build.NewRunner(build.Config{
		Command:        cfg.Build.Command,
		InstallCommand: cfg.Build.InstallCommand,
		WorkingDir:     cfg.Build.WorkingDir,
		OutputEnv:      cfg.Build.OutputEnv,
		OutputArg:      cfg.Build.OutputArg,
		StagingDir:     cfg.Build.StagingDir,
		Timeout:        cfg.Build.Timeout,
		TailLines:      cfg.Build.TailLines,
		Env:            cfg.Build.Env,
		StampRevision:  cfg.Build.StampRevision,
		Console:        opts.Console,
		Logger:         a.logger,
		Observers:      observers,
	})
	if err != nil {
		return fmt.Errorf("failed to create build runner: %w", err)
	}

	a.publisher, err = publish.New(cfg.Assets.Root,
		publish.WithLogger(a.logger),
		publish.WithDigest(cfg.Assets.Digest),
	)
	if err != nil {
		return fmt.Errorf("failed to create publisher: %w", err)
	}

	staticServer := static.New(cfg.Assets.Root,
		static.WithPublisher(a.publisher),
		static.WithIndex(cfg.Assets.Index),
		static.WithLogger(a.logger),
	)

	routerOpts := []router.Option{
		router.WithStatic(staticServer),
		router.WithBuilds(a.runner, a.publisher),
		router.WithLogger(a.logger),
		router.WithTracerProvider(a.tracer.TracerProvider()),
	}
	if a.metrics != nil {
		routerOpts = append(routerOpts, router.WithPublishObserver(a.metrics))
	}
	if a.history != nil {
		routerOpts = append(routerOpts, router.WithPublishObserver(a.history))
	}
	if opts.Progress != nil {
		routerOpts = append(routerOpts, router.WithPublishObserver(opts.Progress))
	}

	a.router = router.New(router.Config{
		Root:     cfg.Assets.Root,
		OnDemand: cfg.Build.OnDemand,
	}, a.forwarder, routerOpts...)

	return nil
}

func (a *app) setupWorkers() error {
	cfg := a.cfg
	var err error

	if cfg.Watch.Enabled && a.router != nil {
		paths := make([]string, len(cfg.Watch.Paths))
		for i, p := range cfg.Watch.Paths {
			paths[i] = resolvePath(cfg.Build.WorkingDir, p)
		}
		a.watcher, err = watch.New(watch.Config{
			Paths:      paths,
			Extensions: cfg.Watch.Extensions,
			Ignore:     []string{cfg.Assets.Root},
			Debounce:   cfg.Watch.Debounce,
			SkipHidden: cfg.Watch.SkipHidden,
			Rebuild:    cfg.Watch.Rebuild,
			Logger:     a.logger,
		}, a.router)
		if err != nil {
			return fmt.Errorf("failed to start source watcher: %w", err)
		}
	}

	if cfg.Janitor.Enabled {
		jcfg := janitor.Config{
			Schedule: cfg.Janitor.Schedule,
			MaxAge:   cfg.Janitor.MaxAge,
			Retain:   cfg.History.Retain,
			Logger:   a.logger,
		}
		if a.publisher != nil {
			jcfg.Trees = a.publisher
		}
		if a.runner != nil {
			jcfg.Staging = a.runner
		}
		if a.history != nil {
			jcfg.History = a.history
		}
		a.janitor, err = janitor.New(jcfg)
		if err != nil {
			return fmt.Errorf("failed to configure janitor: %w", err)
		}
	}

	return nil
}

// serve runs the HTTP server and every background worker until ctx is
// cancelled or one of them fails.
func (a *app) serve(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.server.Start(ctx)
	})

	if a.devServer != nil {
		g.Go(func() error {
			if err := a.devServer.Run(ctx); err != nil {
				return fmt.Errorf("dev server: %w", err)
			}
			return nil
		})
	}

	if a.watcher != nil {
		g.Go(func() error {
			return a.watcher.Run(ctx)
		})
	}

	if a.janitor != nil {
		if err := a.janitor.Start(ctx); err != nil {
			return err
		}
	}

	if a.router != nil && a.cfg.Build.OnStartup {
		g.Go(func() error {
			// A failed startup build is reported and retried on demand.
			if err := a.router.Rebuild(ctx); err != nil && ctx.Err() == nil {
				a.logger.Warn("startup build failed", "error", err)
			}
			return nil
		})
	}

	return g.Wait()
}

// close releases every component. It is safe on a partially built app.
func (a *app) close(ctx context.Context) error {
	var errs []error

	if a.janitor != nil {
		a.janitor.Stop()
	}
	if a.watcher != nil {
		if err := a.watcher.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.runner != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
		if err := a.runner.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("build runner shutdown: %w", err))
		}
		cancel()
	}
	if a.publisher != nil {
		a.publisher.Flush()
	}
	if a.history != nil {
		if err := a.history.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.tracer != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := a.tracer.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("tracer shutdown: %w", err))
		}
		cancel()
	}

	return errors.Join(errs...)
}

func envMap(env []string) map[string]string {
	if len(env) == 0 {
		return nil
	}
	m := make(map[string]string, len(env))
	for _, kv := range env {
		k, v, _ := strings.Cut(kv, "=")
		m[k] = v
	}
	return m
}

func resolvePath(base, p string) string {
	if filepath.IsAbs(p) || base == "" {
		return p
	}
	return filepath.Join(base, p)
}
