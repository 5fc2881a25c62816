package history

import (
	"errors"
	"time"

	"mercator-hq/webdev/pkg/build"
)

// ErrNotFound is returned by Get for an unknown job ID.
var ErrNotFound = errors.New("build record not found")

// Record is one build as stored in the history database.
type Record struct {
	JobID        string    `json:"job_id"`
	Root         string    `json:"root"`
	State        string    `json:"state"`
	ExitCode     int       `json:"exit_code"`
	Error        string    `json:"error,omitempty"`
	Tail         []string  `json:"tail,omitempty"`
	Revision     string    `json:"revision,omitempty"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at,omitempty"`
	Published    bool      `json:"published"`
	PublishedAt  time.Time `json:"published_at,omitempty"`
	PublishError string    `json:"publish_error,omitempty"`
}

// Duration returns how long the build ran, or zero while it is running.
func (r Record) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// FromResult converts a finished build into a Record.
func FromResult(res build.Result) Record {
	rec := Record{
		JobID:      res.JobID,
		Root:       res.Root,
		State:      res.State.String(),
		ExitCode:   res.ExitCode,
		StartedAt:  res.StartedAt,
		FinishedAt: res.FinishedAt,
	}
	if res.Err != nil {
		rec.Error = res.Err.Error()
	}
	if res.State == build.Failed {
		rec.Tail = res.Tail
	}
	if res.Revision != nil {
		rec.Revision = res.Revision.Short()
	}
	return rec
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
