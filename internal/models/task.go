package models

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Task is one natural-language request handed to the attempt loop.
// The description is immutable for the lifetime of a loop execution.
type Task struct {
	ID          string    // Correlation ID used in logs, history and traces
	Description string    // Natural-language description provided by the user
	SubmittedAt time.Time // When the session accepted the task
}

// NewTask creates a Task with a fresh ID.
func NewTask(description string) Task {
	return Task{
		ID:          uuid.NewString(),
		Description: strings.TrimSpace(description),
		SubmittedAt: time.Now(),
	}
}

// Validate checks that the task carries a description.
func (t Task) Validate() error {
	if strings.TrimSpace(t.Description) == "" {
		return errors.New("task description is required")
	}
	return nil
}

// ShortID returns the first eight characters of the task ID for display.
func (t Task) ShortID() string {
	if len(t.ID) <= 8 {
		return t.ID
	}
	return t.ID[:8]
}
