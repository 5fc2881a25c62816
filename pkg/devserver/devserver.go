package devserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/kballard/go-shellquote"
	"github.com/matgreaves/run"
)

// DefaultReadyTimeout bounds the wait for the port when Config.ReadyTimeout
// is zero.
const DefaultReadyTimeout = 30 * time.Second

// ErrNotReady is returned when the dev server never accepted a connection
// within the ready timeout.
var ErrNotReady = errors.New("dev server did not become ready")

// Config configures a supervised dev server.
type Config struct {
	// Command starts the dev server, e.g. "pnpm dev".
	Command string

	// InstallCommand runs to completion before Command. Optional.
	InstallCommand string

	Dir  string
	Port int

	ReadyTimeout time.Duration

	// Env is added to the inherited environment. PORT is always set.
	Env map[string]string

	// Console receives prefixed process output. Nil discards it.
	Console io.Writer

	Logger *slog.Logger
}

// Server supervises the dev server process.
type Server struct {
	cfg     Config
	argv    []string
	install []string
	logger  *slog.Logger

	ready     chan struct{}
	readyOnce sync.Once
}

// New validates cfg.
func New(cfg Config) (*Server, error) {
	argv, err := shellquote.Split(cfg.Command)
	if err != nil {
		return nil, fmt.Errorf("invalid dev server command: %w", err)
	}
	if len(argv) == 0 {
		return nil, errors.New("dev server command is empty")
	}

	var install []string
	if cfg.InstallCommand != "" {
		install, err = shellquote.Split(cfg.InstallCommand)
		if err != nil {
			return nil, fmt.Errorf("invalid install command: %w", err)
		}
	}

	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid dev server port %d", cfg.Port)
	}
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = DefaultReadyTimeout
	}
	if cfg.Console == nil {
		cfg.Console = io.Discard
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Server{
		cfg:     cfg,
		argv:    argv,
		install: install,
		logger:  cfg.Logger.With("component", "devserver"),
		ready:   make(chan struct{}),
	}, nil
}

// Address is the host:port the dev server is expected to listen on.
func (s *Server) Address() string {
	return net.JoinHostPort("localhost", strconv.Itoa(s.cfg.Port))
}

// Ready is closed once the dev server accepts connections.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Run installs dependencies, starts the dev server and waits for its port.
// It blocks until ctx is cancelled or the process exits. A process that
// exits on its own, or never opens its port, is an error.
func (s *Server) Run(ctx context.Context) error {
	steps := run.Sequence{}
	if len(s.install) > 0 {
		steps = append(steps, s.process("install", s.install, installPrefix))
	}
	steps = append(steps, run.Group{
		"process": s.process("dev", s.argv, devPrefix),
		"ready": run.Sequence{
			run.Func(s.waitReady),
			run.Idle,
		},
	})

	err := steps.Run(ctx)
	if ctx.Err() != nil {
		s.logger.Info("dev server stopped")
		return nil
	}
	if err == nil {
		err = errors.New("dev server exited")
	}
	return err
}

func (s *Server) waitReady(ctx context.Context) error {
	start := time.Now()
	if err := WaitForPort(ctx, s.Address(), s.cfg.ReadyTimeout); err != nil {
		return err
	}
	s.logger.Info("dev server ready", "address", s.Address(), "duration", time.Since(start))
	s.readyOnce.Do(func() { close(s.ready) })
	return nil
}

func (s *Server) process(name string, argv []string, prefix string) run.Runner {
	out := newLineWriter(s.cfg.Console, prefix)
	return run.Sequence{
		run.Func(func(context.Context) error {
			s.logger.Info("starting "+name+" command", "command", strings.Join(argv, " "))
			return nil
		}),
		run.Process{
			Name:   name,
			Path:   argv[0],
			Args:   argv[1:],
			Dir:    s.cfg.Dir,
			Env:    s.environ(),
			Stdout: out,
			Stderr: out,
		},
	}
}

func (s *Server) environ() map[string]string {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}
	for k, v := range s.cfg.Env {
		env[k] = v
	}
	env["PORT"] = strconv.Itoa(s.cfg.Port)
	return env
}

// WaitForPort dials addr with exponential backoff until a connection
// succeeds or timeout elapses.
func WaitForPort(ctx context.Context, addr string, timeout time.Duration) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxInterval = time.Second

	var dialer net.Dialer
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		dctx, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		conn, err := dialer.DialContext(dctx, "tcp", addr)
		if err != nil {
			return struct{}{}, err
		}
		return struct{}{}, conn.Close()
	}, backoff.WithBackOff(b), backoff.WithMaxElapsedTime(timeout))
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w on %s after %s: %v", ErrNotReady, addr, timeout, err)
	}
	return nil
}
