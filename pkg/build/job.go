package build

import (
	"context"
	"time"

	"mercator-hq/webdev/pkg/source"
)

// State is the lifecycle state of a build job.
type State int

const (
	Idle State = iota
	Running
	Succeeded
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether s is Succeeded or Failed.
func (s State) Terminal() bool {
	return s == Succeeded || s == Failed
}

// Result is the terminal outcome of a job. Every waiter receives the same
// value.
type Result struct {
	JobID      string
	Root       string
	State      State
	StagingDir string // empty after a failure
	ExitCode   int
	Tail       []string
	Err        error
	Revision   *source.Revision
	StartedAt  time.Time
	FinishedAt time.Time
}

// Duration returns how long the job ran.
func (r Result) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Job is one execution of the build command for an asset root.
type Job struct {
	id        string
	root      string
	startedAt time.Time

	done   chan struct{}
	result Result
}

func newJob(id, root string) *Job {
	return &Job{
		id:        id,
		root:      root,
		startedAt: time.Now(),
		done:      make(chan struct{}),
	}
}

// ID returns the job's unique identifier.
func (j *Job) ID() string { return j.id }

// Root returns the asset root the job builds for.
func (j *Job) Root() string { return j.root }

// StartedAt returns when the job was created.
func (j *Job) StartedAt() time.Time { return j.startedAt }

// Done is closed once the job reaches a terminal state.
func (j *Job) Done() <-chan struct{} { return j.done }

// State returns Running until the job finishes, then its terminal state.
func (j *Job) State() State {
	select {
	case <-j.done:
		return j.result.State
	default:
		return Running
	}
}

// Wait blocks until the job finishes or ctx is done. A failed job returns
// its Result together with a *FailedError. Cancelling ctx only stops this
// waiter.
func (j *Job) Wait(ctx context.Context) (Result, error) {
	select {
	case <-j.done:
		return j.result, j.result.Err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// finish publishes res to all waiters. It must be called exactly once.
func (j *Job) finish(res Result) {
	j.result = res
	close(j.done)
}
