package janitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// TreeSweeper removes superseded published trees. *publish.Publisher
// satisfies it.
type TreeSweeper interface {
	Sweep(maxAge time.Duration) (int, error)
}

// StagingSweeper removes abandoned staging directories. *build.Runner
// satisfies it.
type StagingSweeper interface {
	SweepStaging(maxAge time.Duration) (int, error)
}

// HistoryPruner trims the build history. *history.Store satisfies it.
type HistoryPruner interface {
	Prune(ctx context.Context, keep int) (int, error)
}

// Config configures a Janitor. Any of the sweep targets may be nil.
type Config struct {
	// Schedule is a standard five-field cron expression. Empty disables
	// scheduling; RunOnce still works.
	Schedule string

	// MaxAge is how old a superseded tree or staging directory must be
	// before it is removed.
	MaxAge time.Duration

	// Retain is how many history records to keep. Zero keeps everything.
	Retain int

	Trees   TreeSweeper
	Staging StagingSweeper
	History HistoryPruner
	Logger  *slog.Logger
}

// Report summarizes one sweep.
type Report struct {
	Trees   int
	Staging int
	Builds  int
}

// Janitor periodically removes leftovers of past builds.
type Janitor struct {
	config  Config
	cron    *cron.Cron
	logger  *slog.Logger
	mu      sync.Mutex
	running bool
}

// New creates a janitor. The schedule is parsed here so a bad expression
// fails at startup.
func New(cfg Config) (*Janitor, error) {
	if cfg.Schedule != "" {
		if _, err := cron.ParseStandard(cfg.Schedule); err != nil {
			return nil, fmt.Errorf("invalid cron schedule %q: %w", cfg.Schedule, err)
		}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Janitor{
		config: cfg,
		cron:   cron.New(),
		logger: cfg.Logger.With("component", "janitor"),
	}, nil
}

// Start schedules sweeps until ctx is cancelled.
func (j *Janitor) Start(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.config.Schedule == "" {
		j.logger.Info("janitor schedule not configured, skipping")
		return nil
	}
	if j.running {
		return errors.New("janitor already running")
	}

	if _, err := j.cron.AddFunc(j.config.Schedule, func() {
		_, _ = j.RunOnce(ctx)
	}); err != nil {
		return fmt.Errorf("failed to schedule janitor: %w", err)
	}

	j.cron.Start()
	j.running = true

	j.logger.Info("janitor started",
		"schedule", j.config.Schedule,
		"max_age", j.config.MaxAge.String(),
		"retain", j.config.Retain,
	)

	go func() {
		<-ctx.Done()
		j.Stop()
	}()

	return nil
}

// RunOnce performs a single sweep. Every target is attempted even when an
// earlier one fails; the errors are joined.
func (j *Janitor) RunOnce(ctx context.Context) (Report, error) {
	var report Report
	var errs []error

	if j.config.Trees != nil {
		n, err := j.config.Trees.Sweep(j.config.MaxAge)
		report.Trees = n
		if err != nil {
			errs = append(errs, fmt.Errorf("sweep published trees: %w", err))
		}
	}

	if j.config.Staging != nil {
		n, err := j.config.Staging.SweepStaging(j.config.MaxAge)
		report.Staging = n
		if err != nil {
			errs = append(errs, fmt.Errorf("sweep staging: %w", err))
		}
	}

	if j.config.History != nil && j.config.Retain > 0 {
		n, err := j.config.History.Prune(ctx, j.config.Retain)
		report.Builds = n
		if err != nil {
			errs = append(errs, fmt.Errorf("prune history: %w", err))
		}
	}

	err := errors.Join(errs...)
	if err != nil {
		j.logger.Error("janitor sweep failed", "error", err)
	}
	if report.Trees+report.Staging+report.Builds > 0 {
		j.logger.Info("janitor sweep completed",
			"trees_removed", report.Trees,
			"staging_removed", report.Staging,
			"builds_pruned", report.Builds,
		)
	} else if err == nil {
		j.logger.Debug("janitor sweep completed, nothing to remove")
	}

	return report, err
}

// Stop stops scheduling and waits for a running sweep to finish.
func (j *Janitor) Stop() {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.running {
		<-j.cron.Stop().Done()
		j.running = false
		j.logger.Info("janitor stopped")
	}
}

// IsRunning reports whether sweeps are scheduled.
func (j *Janitor) IsRunning() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.running
}

// NextRun returns the next scheduled sweep, or nil when nothing is
// scheduled.
func (j *Janitor) NextRun() *time.Time {
	j.mu.Lock()
	defer j.mu.Unlock()

	entries := j.cron.Entries()
	if len(entries) == 0 {
		return nil
	}
	next := entries[0].Next
	return &next
}
