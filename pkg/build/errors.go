package build

import (
	"errors"
	"fmt"
)

var (
	// ErrBuildFailed is matched by every *FailedError.
	ErrBuildFailed = errors.New("build failed")

	// ErrRunnerClosed is returned for jobs triggered after Shutdown.
	ErrRunnerClosed = errors.New("build runner is shut down")

	// ErrInvalidCommand is returned by NewRunner for an empty or unparsable command.
	ErrInvalidCommand = errors.New("invalid build command")
)

// FailedError describes a build that did not exit cleanly.
type FailedError struct {
	JobID string

	// ExitCode is the process exit status, or -1 when the process never
	// started or was killed.
	ExitCode int

	// Tail holds the last lines of combined output.
	Tail []string

	// Err is the underlying cause (exit error, spawn error, timeout).
	Err error
}

func (e *FailedError) Error() string {
	if e.ExitCode >= 0 {
		return fmt.Sprintf("build %s failed with exit code %d", e.JobID, e.ExitCode)
	}
	return fmt.Sprintf("build %s failed: %v", e.JobID, e.Err)
}

// Unwrap exposes both ErrBuildFailed and the underlying cause.
func (e *FailedError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrBuildFailed}
	}
	return []error{ErrBuildFailed, e.Err}
}
