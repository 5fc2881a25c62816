package build

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/kballard/go-shellquote"
	"golang.org/x/sync/singleflight"

	"mercator-hq/webdev/pkg/source"
)

// StagingPattern is the os.MkdirTemp pattern for staging directories.
const StagingPattern = "webdev-build-*"

// DefaultOutputEnv is the environment variable that carries the staging path.
const DefaultOutputEnv = "WEBDEV_OUT_DIR"

// Observer receives job lifecycle callbacks. JobFinished runs before waiters
// are released. Implementations must be safe for concurrent use.
type Observer interface {
	JobStarted(job *Job)
	JobFinished(job *Job, res Result)
}

// Config configures a Runner.
type Config struct {
	// Command is the build command line, split with shell quoting rules.
	Command string

	// InstallCommand, when set, runs once before the first build.
	InstallCommand string

	// WorkingDir is where commands run. Defaults to the current directory.
	WorkingDir string

	// OutputEnv names the variable that receives the staging path.
	OutputEnv string

	// OutputArg, when set, is appended with the staging path as its value.
	OutputArg string

	// StagingDir is the parent for staging directories. Defaults to os.TempDir().
	StagingDir string

	// Timeout bounds each job. Zero means no limit.
	Timeout time.Duration

	// TailLines is how many output lines a failed result keeps.
	TailLines int

	// WaitDelay bounds how long output pipes may stay open after the
	// process exits or is killed.
	WaitDelay time.Duration

	// Env is appended to the inherited environment.
	Env []string

	// StampRevision records the Git revision of WorkingDir on each result.
	StampRevision bool

	// Console receives prefixed subprocess output. Nil disables it.
	Console io.Writer

	Logger    *slog.Logger
	Observers []Observer
}

// Runner owns the job registry. At most one job runs per asset root.
type Runner struct {
	cfg     Config
	argv    []string
	install []string
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	jobs   map[string]*Job
	closed bool

	installs  singleflight.Group
	installed atomic.Bool
}

// NewRunner validates cfg and returns a Runner ready to accept triggers.
func NewRunner(cfg Config) (*Runner, error) {
	argv, err := shellquote.Split(cfg.Command)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCommand, err)
	}
	if len(argv) == 0 {
		return nil, fmt.Errorf("%w: command is empty", ErrInvalidCommand)
	}

	var install []string
	if cfg.InstallCommand != "" {
		install, err = shellquote.Split(cfg.InstallCommand)
		if err != nil {
			return nil, fmt.Errorf("%w: install command: %v", ErrInvalidCommand, err)
		}
	}

	if cfg.OutputEnv == "" {
		cfg.OutputEnv = DefaultOutputEnv
	}
	if cfg.StagingDir == "" {
		cfg.StagingDir = os.TempDir()
	}
	if cfg.TailLines <= 0 {
		cfg.TailLines = 50
	}
	if cfg.WaitDelay <= 0 {
		cfg.WaitDelay = 5 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &Runner{
		cfg:     cfg,
		argv:    argv,
		install: install,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		jobs:    make(map[string]*Job),
	}
	if len(install) == 0 {
		r.installed.Store(true)
	}
	return r, nil
}

// AddObserver registers o for subsequent jobs. Call before the first Trigger.
func (r *Runner) AddObserver(o Observer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cfg.Observers = append(r.cfg.Observers, o)
}

// StagingDir returns the parent directory of staging directories.
func (r *Runner) StagingDir() string {
	return r.cfg.StagingDir
}

// Trigger returns the running job for root, starting a new one if none is
// running. The lookup and the spawn happen under one lock, so concurrent
// callers for the same root always share a job.
func (r *Runner) Trigger(root string) *Job {
	key := rootKey(root)

	r.mu.Lock()
	defer r.mu.Unlock()

	if job, ok := r.jobs[key]; ok {
		return job
	}

	job := newJob(uuid.NewString(), key)
	if r.closed {
		job.finish(Result{
			JobID:      job.id,
			Root:       key,
			State:      Failed,
			ExitCode:   -1,
			Err:        &FailedError{JobID: job.id, ExitCode: -1, Err: ErrRunnerClosed},
			StartedAt:  job.startedAt,
			FinishedAt: time.Now(),
		})
		return job
	}

	r.jobs[key] = job
	observers := append([]Observer(nil), r.cfg.Observers...)
	r.wg.Add(1)
	go r.run(job, observers)
	return job
}

// Active returns the running job for root, if any.
func (r *Runner) Active(root string) (*Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[rootKey(root)]
	return job, ok
}

// Shutdown kills running jobs and waits for them to finish or for ctx to
// expire. Later triggers fail immediately.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.cancel()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Install runs the install command if it has not yet succeeded. Concurrent
// callers share a single execution.
func (r *Runner) Install(ctx context.Context) error {
	if r.installed.Load() {
		return nil
	}
	ch := r.installs.DoChan("install", func() (any, error) {
		if r.installed.Load() {
			return nil, nil
		}
		// Detached from the caller so one impatient waiter cannot kill a
		// shared install.
		err := r.runInstall(r.ctx)
		if err == nil {
			r.installed.Store(true)
		}
		return nil, err
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runner) runInstall(ctx context.Context) error {
	start := time.Now()
	r.logger.Info("running install command", "command", r.cfg.InstallCommand)

	sink := &outputSink{
		console: r.cfg.Console,
		prefix:  installPrefix,
		logger:  r.logger.With("phase", "install"),
		tail:    newTailBuffer(r.cfg.TailLines),
	}
	exitCode, err := r.exec(ctx, r.install, nil, sink)
	if err != nil {
		r.logger.Error("install command failed",
			"exit_code", exitCode,
			"error", err,
			"tail", sink.tail.Lines(),
		)
		return fmt.Errorf("install command failed: %w", err)
	}
	r.logger.Info("install command finished", "duration", time.Since(start))
	return nil
}

func (r *Runner) run(job *Job, observers []Observer) {
	defer r.wg.Done()

	for _, o := range observers {
		o.JobStarted(job)
	}

	res := r.execute(job)

	for _, o := range observers {
		o.JobFinished(job, res)
	}

	r.mu.Lock()
	if r.jobs[job.root] == job {
		delete(r.jobs, job.root)
	}
	r.mu.Unlock()

	job.finish(res)
}

func (r *Runner) execute(job *Job) Result {
	logger := r.logger.With("job_id", job.id, "root", job.root)
	res := Result{
		JobID:     job.id,
		Root:      job.root,
		ExitCode:  -1,
		StartedAt: job.startedAt,
	}

	ctx := r.ctx
	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}

	fail := func(exitCode int, tail []string, err error) Result {
		res.State = Failed
		res.ExitCode = exitCode
		res.Tail = tail
		res.Err = &FailedError{JobID: job.id, ExitCode: exitCode, Tail: tail, Err: err}
		res.FinishedAt = time.Now()
		logger.Warn("build failed",
			"exit_code", exitCode,
			"error", err,
			"duration", res.Duration(),
		)
		return res
	}

	if r.cfg.StampRevision {
		rev, err := source.DescribeClean(r.workingDir())
		if err == nil {
			res.Revision = rev
		} else if !errors.Is(err, source.ErrNotRepository) {
			logger.Debug("could not read source revision", "error", err)
		}
	}

	if err := r.Install(ctx); err != nil {
		return fail(-1, nil, err)
	}

	if err := os.MkdirAll(r.cfg.StagingDir, 0o755); err != nil {
		return fail(-1, nil, fmt.Errorf("failed to create staging parent: %w", err))
	}
	staging, err := os.MkdirTemp(r.cfg.StagingDir, StagingPattern)
	if err != nil {
		return fail(-1, nil, fmt.Errorf("failed to create staging directory: %w", err))
	}

	argv := append([]string(nil), r.argv...)
	if r.cfg.OutputArg != "" {
		argv = append(argv, r.cfg.OutputArg, staging)
	}
	env := []string{r.cfg.OutputEnv + "=" + staging}

	logger.Info("build started", "command", r.cfg.Command, "staging", staging)

	sink := &outputSink{
		console: r.cfg.Console,
		prefix:  buildPrefix,
		logger:  logger,
		tail:    newTailBuffer(r.cfg.TailLines),
	}
	exitCode, err := r.exec(ctx, argv, env, sink)
	if err != nil {
		if rmErr := os.RemoveAll(staging); rmErr != nil {
			logger.Warn("failed to remove staging directory", "staging", staging, "error", rmErr)
		}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("build timed out after %s: %w", r.cfg.Timeout, err)
		}
		return fail(exitCode, sink.tail.Lines(), err)
	}

	res.State = Succeeded
	res.ExitCode = 0
	res.StagingDir = staging
	res.FinishedAt = time.Now()
	logger.Info("build succeeded", "duration", res.Duration())
	return res
}

// exec runs argv to completion, streaming output to sink. It returns the
// exit code (-1 if the process did not run to an exit) and any error.
func (r *Runner) exec(ctx context.Context, argv, env []string, sink *outputSink) (int, error) {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = r.workingDir()
	cmd.Env = append(append(os.Environ(), r.cfg.Env...), env...)
	cmd.WaitDelay = r.cfg.WaitDelay

	stdout := &lineWriter{sink: sink, stream: "stdout"}
	stderr := &lineWriter{sink: sink, stream: "stderr"}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return -1, fmt.Errorf("failed to start %s: %w", argv[0], err)
	}
	err := cmd.Wait()
	stdout.Flush()
	stderr.Flush()

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode(), err
		}
		return -1, err
	}
	return 0, nil
}

func (r *Runner) workingDir() string {
	if r.cfg.WorkingDir == "" {
		return "."
	}
	return r.cfg.WorkingDir
}

func rootKey(root string) string {
	if abs, err := filepath.Abs(root); err == nil {
		return abs
	}
	return filepath.Clean(root)
}
