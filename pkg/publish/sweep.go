package publish

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Sweep removes next/old siblings of the serving path older than maxAge
// that are not pinned by a lease. They are left behind when the process
// exits between the steps of a publish. It returns the number removed.
func (p *Publisher) Sweep(maxAge time.Duration) (int, error) {
	p.publishMu.Lock()
	defer p.publishMu.Unlock()

	entries, err := os.ReadDir(p.parent)
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", p.parent, err)
	}

	pinned := p.pinned()
	prefixes := []string{"." + p.base + ".next-", "." + p.base + ".old-"}
	cutoff := time.Now().Add(-maxAge)
	removed := 0

	for _, entry := range entries {
		name := entry.Name()
		if !hasAnyPrefix(name, prefixes) {
			continue
		}
		path := filepath.Join(p.parent, name)
		if _, ok := pinned[path]; ok {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.RemoveAll(path); err != nil {
			p.logger.Warn("failed to remove orphaned tree", "path", path, "error", err)
			continue
		}
		removed++
	}

	if removed > 0 {
		p.logger.Info("removed orphaned publish directories", "count", removed)
	}
	return removed, nil
}

func (p *Publisher) pinned() map[string]struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]struct{}, len(p.retired))
	for _, path := range p.retired {
		out[path] = struct{}{}
	}
	return out
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(s, prefix) {
			return true
		}
	}
	return false
}
