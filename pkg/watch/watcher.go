package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is used when Config.Debounce is zero.
const DefaultDebounce = 200 * time.Millisecond

// Target receives change notifications. *router.Service satisfies it.
type Target interface {
	Invalidate()
	Rebuild(ctx context.Context) error
}

// Config configures a Watcher.
type Config struct {
	// Paths are files or directories to watch. Directories are watched
	// recursively, including ones created after the watcher starts.
	Paths []string

	// Extensions limits which files count as changes, e.g. ".ts". Empty
	// means every file.
	Extensions []string

	// Ignore lists directories that are never watched, typically the asset
	// root so a rebuild does not trigger itself.
	Ignore []string

	Debounce   time.Duration
	SkipHidden bool

	// Rebuild runs a build after invalidating instead of waiting for the
	// next request.
	Rebuild bool

	Logger *slog.Logger
}

// Watcher turns source changes into invalidations.
type Watcher struct {
	watcher  *fsnotify.Watcher
	target   Target
	config   Config
	ignore   []string
	logger   *slog.Logger
	debounce *Debouncer

	mu      sync.Mutex
	running bool

	closeOnce sync.Once
	closeErr  error
}

// New creates a watcher and registers every configured path. A path that
// does not exist is an error.
func New(cfg Config, target Target) (*Watcher, error) {
	if target == nil {
		return nil, errors.New("watch target is required")
	}
	if len(cfg.Paths) == 0 {
		return nil, errors.New("at least one watch path is required")
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		watcher:  fsw,
		target:   target,
		config:   cfg,
		logger:   cfg.Logger.With("component", "watch"),
		debounce: NewDebouncer(cfg.Debounce),
	}
	for _, dir := range cfg.Ignore {
		if abs, err := filepath.Abs(dir); err == nil {
			w.ignore = append(w.ignore, abs)
		}
	}

	for _, path := range cfg.Paths {
		if err := w.addPath(path); err != nil {
			fsw.Close()
			return nil, fmt.Errorf("failed to watch %s: %w", path, err)
		}
	}

	return w, nil
}

// Run processes events until ctx is cancelled, then closes the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return errors.New("watcher already running")
	}
	w.running = true
	w.mu.Unlock()

	defer w.Close()

	w.logger.Info("source watcher started",
		"paths", w.config.Paths,
		"debounce_ms", w.config.Debounce.Milliseconds(),
		"rebuild", w.config.Rebuild,
	)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("source watcher stopped")
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return errors.New("watcher events channel closed")
			}
			w.handle(ctx, event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return errors.New("watcher errors channel closed")
			}
			w.logger.Error("source watcher error", "error", err)
		}
	}
}

// Close stops the debouncer and releases the fsnotify watcher.
func (w *Watcher) Close() error {
	w.closeOnce.Do(func() {
		w.debounce.Stop()
		if err := w.watcher.Close(); err != nil {
			w.closeErr = fmt.Errorf("failed to close watcher: %w", err)
		}
	})
	return w.closeErr
}

func (w *Watcher) handle(ctx context.Context, event fsnotify.Event) {
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if w.skipDir(event.Name) {
				return
			}
			if err := w.addDirectory(event.Name); err != nil {
				w.logger.Warn("failed to watch new directory", "path", event.Name, "error", err)
			}
			return
		}
	}

	if !w.shouldProcess(event) {
		return
	}

	w.logger.Debug("source change detected", "path", event.Name, "op", event.Op.String())

	w.debounce.Trigger(func() {
		w.logger.Info("sources changed, invalidating output", "path", event.Name)
		w.target.Invalidate()

		if !w.config.Rebuild || ctx.Err() != nil {
			return
		}
		if err := w.target.Rebuild(ctx); err != nil && ctx.Err() == nil {
			w.logger.Error("rebuild after source change failed", "error", err)
		}
	})
}

func (w *Watcher) addPath(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return w.addDirectory(path)
	}
	return w.watcher.Add(path)
}

func (w *Watcher) addDirectory(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && w.skipDir(path) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			return fmt.Errorf("failed to watch directory %q: %w", path, err)
		}
		w.logger.Debug("watching directory", "path", path)
		return nil
	})
}

func (w *Watcher) skipDir(path string) bool {
	if w.config.SkipHidden && isHidden(path) {
		return true
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	for _, ignored := range w.ignore {
		if abs == ignored || strings.HasPrefix(abs, ignored+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func (w *Watcher) shouldProcess(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}
	if w.config.SkipHidden && isHidden(event.Name) {
		return false
	}
	if w.skipDir(filepath.Dir(event.Name)) {
		return false
	}
	if len(w.config.Extensions) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(event.Name))
	for _, want := range w.config.Extensions {
		if ext == strings.ToLower(want) {
			return true
		}
	}
	return false
}

func isHidden(path string) bool {
	base := filepath.Base(path)
	return len(base) > 1 && strings.HasPrefix(base, ".")
}
