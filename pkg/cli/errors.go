package cli

import (
	"errors"
	"fmt"

	"mercator-hq/webdev/pkg/build"
)

// Exit codes returned by the webdev command.
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitConfigError = 2
	ExitBuildFailed = 3
)

// ConfigError represents an error in configuration.
type ConfigError struct {
	Field   string
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("config error: %s", e.Message)
	}
	return fmt.Sprintf("config error in %s: %s", e.Field, e.Message)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// CommandError represents an error from a command execution.
type CommandError struct {
	Command string
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command %s failed: %v", e.Command, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a new ConfigError.
func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{
		Field:   field,
		Message: message,
	}
}

// WrapConfigError turns a configuration load failure into a ConfigError.
func WrapConfigError(path string, err error) *ConfigError {
	field := path
	if field == "" {
		field = "environment"
	}
	return &ConfigError{Field: field, Message: err.Error(), Err: err}
}

// NewCommandError creates a new CommandError.
func NewCommandError(command string, err error) *CommandError {
	return &CommandError{
		Command: command,
		Err:     err,
	}
}

// ExitCode maps an error returned by a command to a process exit status.
func ExitCode(err error) int {
	var cfgErr *ConfigError
	switch {
	case err == nil:
		return ExitOK
	case errors.As(err, &cfgErr):
		return ExitConfigError
	case errors.Is(err, build.ErrBuildFailed):
		return ExitBuildFailed
	default:
		return ExitFailure
	}
}
