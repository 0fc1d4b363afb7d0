package models

import (
	"time"

	"github.com/google/uuid"
)

// ExecutionStatus represents the lifecycle state of a step execution.
type ExecutionStatus string

const (
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
)

// StepExecution is the unit of work that owns exactly one execution context. It
// carries the identity and lifecycle state a checkpoint store persists alongside
// the context itself.
type StepExecution struct {
	ID          string            `json:"id"           validate:"required"`
	JobName     string            `json:"job_name"     validate:"required,min=1"`
	StepName    string            `json:"step_name"    validate:"required,min=1"`
	Status      ExecutionStatus   `json:"status"       validate:"required,oneof=running completed failed"`
	Context     *ExecutionContext `json:"context"`
	ExitMessage string            `json:"exit_message,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
}

// NewStepExecution creates a running step execution with a fresh ID and an
// empty, clean context.
func NewStepExecution(jobName, stepName string) *StepExecution {
	now := time.Now().UTC()

	return &StepExecution{
		ID:        uuid.NewString(),
		JobName:   jobName,
		StepName:  stepName,
		Status:    ExecutionStatusRunning,
		Context:   NewExecutionContext(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Complete marks the execution as completed.
func (se *StepExecution) Complete() {
	now := time.Now().UTC()
	se.Status = ExecutionStatusCompleted
	se.UpdatedAt = now
	se.CompletedAt = &now
}

// Fail marks the execution as failed with an exit message.
func (se *StepExecution) Fail(message string) {
	now := time.Now().UTC()
	se.Status = ExecutionStatusFailed
	se.ExitMessage = message
	se.UpdatedAt = now
	se.CompletedAt = &now
}

// IsFinished reports whether the execution reached a terminal status.
func (se *StepExecution) IsFinished() bool {
	return se.Status == ExecutionStatusCompleted || se.Status == ExecutionStatusFailed
}
