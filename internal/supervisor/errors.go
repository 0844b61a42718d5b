package supervisor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrEmptyCommand is returned when an invocation has no command line.
var ErrEmptyCommand = errors.New("empty command line")

// TimeoutError is returned when every launch of a command hit the timeout.
type TimeoutError struct {
	Command  string        // Command line that timed out
	Timeout  time.Duration // Per-launch timeout
	Launches int           // Number of launches performed
}

// Error implements the error interface for TimeoutError.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("command %q timed out after %v (%d launch(es))", e.Command, e.Timeout, e.Launches)
}

// Unwrap returns context.DeadlineExceeded to support error wrapping.
func (e *TimeoutError) Unwrap() error {
	return context.DeadlineExceeded
}

// NonZeroExitError is returned for a non-zero exit when the invocation asked for it.
type NonZeroExitError struct {
	Command  string // Command line that failed
	ExitCode int    // Process exit code
	Output   string // Captured output (stderr if non-empty, else stdout)
}

// Error implements the error interface for NonZeroExitError.
func (e *NonZeroExitError) Error() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("command %q exited with code %d", e.Command, e.ExitCode))
	if out := strings.TrimSpace(e.Output); out != "" {
		sb.WriteString(fmt.Sprintf(": %s", out))
	}
	return sb.String()
}

// StartError is returned when the process could not be started at all.
type StartError struct {
	Command string
	Err     error
}

// Error implements the error interface for StartError.
func (e *StartError) Error() string {
	return fmt.Sprintf("failed to start %q: %v", e.Command, e.Err)
}

// Unwrap returns the underlying error for error wrapping support.
func (e *StartError) Unwrap() error {
	return e.Err
}

// IsTimeoutError checks if the error is or wraps a TimeoutError.
func IsTimeoutError(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}

// IsNonZeroExitError checks if the error is or wraps a NonZeroExitError.
func IsNonZeroExitError(err error) bool {
	var ne *NonZeroExitError
	return errors.As(err, &ne)
}

// IsStartError checks if the error is or wraps a StartError.
func IsStartError(err error) bool {
	var se *StartError
	return errors.As(err, &se)
}
