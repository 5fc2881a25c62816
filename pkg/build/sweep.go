package build

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// SweepStaging removes staging directories under the runner's staging
// parent that are older than maxAge. Such directories are left behind by
// builds whose output was never published, or by a process that exited
// mid-build. Nothing is removed while a job is running. It returns the
// number removed.
func (r *Runner) SweepStaging(maxAge time.Duration) (int, error) {
	if r.busy() {
		return 0, nil
	}
	prefix := strings.TrimSuffix(StagingPattern, "*")

	entries, err := os.ReadDir(r.cfg.StagingDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read staging directory: %w", err)
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), prefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}

		path := filepath.Join(r.cfg.StagingDir, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			r.logger.Warn("failed to remove stale staging directory", "path", path, "error", err)
			continue
		}
		removed++
	}

	if removed > 0 {
		r.logger.Info("removed stale staging directories", "count", removed)
	}
	return removed, nil
}

func (r *Runner) busy() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs) > 0
}
