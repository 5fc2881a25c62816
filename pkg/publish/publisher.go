package publish

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// moveDir moves a staging tree next to the serving path. Tests replace it to
// simulate a staging directory on another volume.
var moveDir = os.Rename

// Option configures a Publisher.
type Option func(*Publisher)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// WithDigest controls whether unchanged trees are detected and discarded.
// Enabled by default.
func WithDigest(enabled bool) Option {
	return func(p *Publisher) {
		p.digest = enabled
	}
}

// Publisher owns the serving path. It is the only writer of that path.
type Publisher struct {
	root   string
	parent string
	base   string
	logger *slog.Logger
	digest bool

	// publishMu serializes Publish and Sweep.
	publishMu sync.Mutex
	seq       uint64
	consumed  map[string]struct{}
	current   string // digest of the served tree; "" when unknown

	// mu guards the generation, leases and retired trees. It is held across
	// the swap and across Open so a reader never pins the wrong generation.
	mu      sync.Mutex
	gen     uint64
	leases  map[uint64]int
	retired map[uint64]string

	removals sync.WaitGroup
}

// New returns a Publisher for the serving path root. The path need not
// exist yet; its parent must.
func New(root string, opts ...Option) (*Publisher, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("invalid asset root %q: %w", root, err)
	}
	parent := filepath.Dir(abs)
	if info, err := os.Stat(parent); err != nil {
		return nil, fmt.Errorf("asset root parent: %w", err)
	} else if !info.IsDir() {
		return nil, fmt.Errorf("asset root parent %s is not a directory", parent)
	}

	p := &Publisher{
		root:     abs,
		parent:   parent,
		base:     filepath.Base(abs),
		logger:   slog.Default(),
		digest:   true,
		seq:      uint64(time.Now().UnixNano()),
		consumed: make(map[string]struct{}),
		leases:   make(map[uint64]int),
		retired:  make(map[uint64]string),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Root returns the absolute serving path.
func (p *Publisher) Root() string { return p.root }

// Generation returns the number of trees published by this Publisher.
func (p *Publisher) Generation() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.gen
}

// Publish makes the tree at staging the served tree. The staging directory
// is consumed. Publishing an already consumed staging path, or a tree
// identical to the one being served, is a no-op.
func (p *Publisher) Publish(staging string) error {
	staging = filepath.Clean(staging)

	p.publishMu.Lock()
	defer p.publishMu.Unlock()

	if _, ok := p.consumed[staging]; ok {
		p.logger.Debug("staging directory already published", "staging", staging)
		return nil
	}

	info, err := os.Stat(staging)
	if err != nil {
		return &SwapError{Root: p.root, Step: "stat staging", Err: err}
	}
	if !info.IsDir() {
		return &SwapError{Root: p.root, Step: "stat staging", Err: fmt.Errorf("%s is not a directory", staging)}
	}

	start := time.Now()

	var digest string
	if p.digest {
		digest, err = treeDigest(staging)
		if err != nil {
			return &SwapError{Root: p.root, Step: "digest staging", Err: err}
		}
		if p.current == "" {
			if cur, err := treeDigest(p.root); err == nil {
				p.current = cur
			}
		}
		if digest == p.current {
			if err := os.RemoveAll(staging); err != nil {
				p.logger.Warn("failed to remove unchanged staging directory", "staging", staging, "error", err)
			}
			p.consumed[staging] = struct{}{}
			p.logger.Info("build output unchanged, keeping current tree", "root", p.root)
			return nil
		}
	}

	p.seq++
	next := p.sibling("next", p.seq)
	if err := os.RemoveAll(next); err != nil {
		return &SwapError{Root: p.root, Step: "prepare sibling", Err: err}
	}

	if err := moveDir(staging, next); err != nil {
		if !isCrossDevice(err) {
			if rmErr := os.RemoveAll(staging); rmErr != nil {
				p.logger.Warn("failed to remove unpublished staging directory", "staging", staging, "error", rmErr)
			}
			return &SwapError{Root: p.root, Step: "move staging", Err: err}
		}
		if err := copyTree(staging, next); err != nil {
			_ = os.RemoveAll(next)
			return &SwapError{Root: p.root, Step: "copy staging", Err: err}
		}
		if err := os.RemoveAll(staging); err != nil {
			p.logger.Warn("failed to remove copied staging directory", "staging", staging, "error", err)
		}
	}
	p.consumed[staging] = struct{}{}

	if err := p.swap(next); err != nil {
		if rmErr := os.RemoveAll(next); rmErr != nil {
			p.logger.Warn("failed to remove unpublished tree", "path", next, "error", rmErr)
		}
		return err
	}

	p.current = digest
	p.logger.Info("published build output",
		"root", p.root,
		"generation", p.Generation(),
		"duration", time.Since(start),
	)
	return nil
}

// swap installs next at the serving path and retires the previous tree.
func (p *Publisher) swap(next string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, err := os.Lstat(p.root); errors.Is(err, fs.ErrNotExist) {
		if err := os.Rename(next, p.root); err != nil {
			return &SwapError{Root: p.root, Step: "install tree", Err: err}
		}
		p.gen++
		return nil
	}

	if err := exchange(next, p.root); err != nil {
		return &SwapError{Root: p.root, Step: "exchange trees", Err: err}
	}

	// next now holds the superseded tree.
	oldGen := p.gen
	p.gen++

	old := p.sibling("old", oldGen)
	if err := os.Rename(next, old); err != nil {
		p.logger.Debug("keeping superseded tree under its staging name", "path", next, "error", err)
		old = next
	}

	if p.leases[oldGen] == 0 {
		p.removeLater(old)
	} else {
		p.retired[oldGen] = old
	}
	return nil
}

func (p *Publisher) sibling(kind string, n uint64) string {
	return filepath.Join(p.parent, fmt.Sprintf(".%s.%s-%d", p.base, kind, n))
}

func (p *Publisher) removeLater(path string) {
	p.removals.Add(1)
	go func() {
		defer p.removals.Done()
		if err := os.RemoveAll(path); err != nil {
			p.logger.Warn("failed to remove superseded tree", "path", path, "error", err)
			return
		}
		p.logger.Debug("removed superseded tree", "path", path)
	}()
}

// Flush waits for background removal of superseded trees.
func (p *Publisher) Flush() {
	p.removals.Wait()
}
