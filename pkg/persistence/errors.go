// Package persistence provides standardized error types for persistence operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrStepExecutionNotFound indicates a step execution was not found by the given identifier.
	ErrStepExecutionNotFound = errors.New("step execution not found")

	// ErrInvalidExecutionID indicates an execution identifier unusable by the backing store.
	ErrInvalidExecutionID = errors.New("invalid execution ID")
)

// StepExecutionError wraps step-execution-related errors with additional context.
type StepExecutionError struct {
	Op          string // Operation being performed (e.g., "StepExecutionByID", "Save", "Delete")
	ExecutionID string // Step execution ID if applicable
	Err         error  // Underlying error
	Message     string // Additional context message
}

func (e *StepExecutionError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s operation failed for step execution %s: %s (%v)", e.Op, e.ExecutionID, e.Message, e.Err)
	}

	return fmt.Sprintf("%s operation failed for step execution %s: %v", e.Op, e.ExecutionID, e.Err)
}

func (e *StepExecutionError) Unwrap() error {
	return e.Err
}

// Is implements error comparison for step execution errors.
func (e *StepExecutionError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewStepExecutionError creates a new step execution error with context.
func NewStepExecutionError(op, executionID string, err error) *StepExecutionError {
	return &StepExecutionError{
		Op:          op,
		ExecutionID: executionID,
		Err:         err,
	}
}

// IsStepExecutionNotFound checks if an error indicates a step execution was not found.
func IsStepExecutionNotFound(err error) bool {
	return errors.Is(err, ErrStepExecutionNotFound)
}
