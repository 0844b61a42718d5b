package workspace

import (
	"errors"
	"fmt"
)

// ErrNotLocked is returned by Unlock when the workspace lock is not held.
var ErrNotLocked = errors.New("workspace is not locked")

// ArtifactWriteError is returned when a code or test artifact cannot be
// persisted. The attempt loop treats it as fatal for the task.
type ArtifactWriteError struct {
	Path string
	Err  error
}

func (e *ArtifactWriteError) Error() string {
	return fmt.Sprintf("failed to write generated files (%s): %v", e.Path, e.Err)
}

func (e *ArtifactWriteError) Unwrap() error {
	return e.Err
}

// IsArtifactWriteError reports whether err is or wraps an ArtifactWriteError.
func IsArtifactWriteError(err error) bool {
	var target *ArtifactWriteError
	return errors.As(err, &target)
}

// ScaffoldError reports a failed scaffold step.
type ScaffoldError struct {
	Step string
	Err  error
}

func (e *ScaffoldError) Error() string {
	return fmt.Sprintf("scaffold step %q failed: %v", e.Step, e.Err)
}

func (e *ScaffoldError) Unwrap() error {
	return e.Err
}
