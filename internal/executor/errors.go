package executor

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// LoopPhase identifies where in the attempt loop an error occurred.
type LoopPhase int

const (
	// PhaseGenerateCode is the initial code generation from the task text.
	PhaseGenerateCode LoopPhase = iota
	// PhaseGenerateTests is the per-attempt test suite generation.
	PhaseGenerateTests
	// PhaseWrite persists the code and test artifacts.
	PhaseWrite
	// PhaseBuild runs the build command.
	PhaseBuild
	// PhaseTest runs the test command.
	PhaseTest
	// PhaseFix asks for a corrected code artifact.
	PhaseFix
	// PhaseDesignDoc generates the design document after success.
	PhaseDesignDoc
)

// String returns the string representation of LoopPhase.
func (p LoopPhase) String() string {
	switch p {
	case PhaseGenerateCode:
		return "generate code"
	case PhaseGenerateTests:
		return "generate tests"
	case PhaseWrite:
		return "write artifacts"
	case PhaseBuild:
		return "build"
	case PhaseTest:
		return "test"
	case PhaseFix:
		return "fix"
	case PhaseDesignDoc:
		return "design document"
	default:
		return "unknown"
	}
}

// ErrAttemptsExhausted is recorded on results that ran out of attempts.
// It is never returned from Run.
var ErrAttemptsExhausted = errors.New("maximum attempts reached")

// TaskError reports why a task was aborted.
type TaskError struct {
	TaskID    string    // ID of the aborted task
	Phase     LoopPhase // Loop phase that failed
	Attempt   int       // Attempt ordinal, 0 before the first attempt
	Err       error     // Underlying error
	Timestamp time.Time // When the error occurred
}

// NewTaskError creates a new TaskError with the current timestamp.
func NewTaskError(taskID string, phase LoopPhase, attempt int, err error) *TaskError {
	return &TaskError{
		TaskID:    taskID,
		Phase:     phase,
		Attempt:   attempt,
		Err:       err,
		Timestamp: time.Now(),
	}
}

// Error implements the error interface for TaskError.
func (e *TaskError) Error() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("task %s: %s failed", e.TaskID, e.Phase))
	if e.Attempt > 0 {
		sb.WriteString(fmt.Sprintf(" on attempt %d", e.Attempt))
	}
	if e.Err != nil {
		sb.WriteString(fmt.Sprintf(": %v", e.Err))
	}
	return sb.String()
}

// Unwrap returns the underlying error for error wrapping support.
func (e *TaskError) Unwrap() error {
	return e.Err
}

// IsTaskError checks if the error is or wraps a TaskError.
func IsTaskError(err error) bool {
	if err == nil {
		return false
	}
	var te *TaskError
	return errors.As(err, &te)
}
