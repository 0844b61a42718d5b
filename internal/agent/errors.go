package agent

import (
	"errors"
	"fmt"
)

// ErrEmptyPrompt is returned when Generate is called with a blank prompt.
var ErrEmptyPrompt = errors.New("prompt cannot be empty")

// TransportError is a transient failure of the round-trip itself:
// connectivity, non-2xx status, or the per-call deadline.
type TransportError struct {
	StatusCode int // HTTP status when the server answered, 0 otherwise
	Err        error
}

// Error implements the error interface for TransportError.
func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("generation transport error (status %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("generation transport error: %v", e.Err)
}

// Unwrap returns the underlying error for error wrapping support.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// ContractError means the backend answered but the response did not carry
// choices[0].message.content. It is never retried.
type ContractError struct {
	Reason string
	Err    error // Decode error, if any
}

// Error implements the error interface for ContractError.
func (e *ContractError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("generation contract violation: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("generation contract violation: %s", e.Reason)
}

// Unwrap returns the underlying error for error wrapping support.
func (e *ContractError) Unwrap() error {
	return e.Err
}

// GenerationError is returned by Gateway.Generate when no text was produced.
// Err is the last error seen, unchanged.
type GenerationError struct {
	Attempts int
	Err      error
}

// Error implements the error interface for GenerationError.
func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed after %d attempt(s): %v", e.Attempts, e.Err)
}

// Unwrap returns the last underlying error.
func (e *GenerationError) Unwrap() error {
	return e.Err
}

// IsTransportError checks if the error is or wraps a TransportError.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsContractError checks if the error is or wraps a ContractError.
func IsContractError(err error) bool {
	var ce *ContractError
	return errors.As(err, &ce)
}

// IsGenerationError checks if the error is or wraps a GenerationError.
func IsGenerationError(err error) bool {
	var ge *GenerationError
	return errors.As(err, &ge)
}
