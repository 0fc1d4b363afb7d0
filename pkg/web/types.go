package web

import (
	"time"

	"github.com/stepflow/stepflow/pkg/models"
)

// ExecutionSummary is the list representation of a step execution. The full
// context is only returned by the single-execution endpoint.
type ExecutionSummary struct {
	ID          string     `json:"id"`
	JobName     string     `json:"job_name"`
	StepName    string     `json:"step_name"`
	Status      string     `json:"status"`
	ContextSize int        `json:"context_size"`
	ExitMessage string     `json:"exit_message,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

type ListExecutionsResponse struct {
	Executions []*ExecutionSummary `json:"executions"`
	TotalCount int                 `json:"total_count"`
	JobName    string              `json:"job_name,omitempty"`
}

func newExecutionSummary(execution *models.StepExecution) *ExecutionSummary {
	contextSize := 0
	if execution.Context != nil {
		contextSize = execution.Context.Len()
	}

	return &ExecutionSummary{
		ID:          execution.ID,
		JobName:     execution.JobName,
		StepName:    execution.StepName,
		Status:      string(execution.Status),
		ContextSize: contextSize,
		ExitMessage: execution.ExitMessage,
		CreatedAt:   execution.CreatedAt,
		UpdatedAt:   execution.UpdatedAt,
		CompletedAt: execution.CompletedAt,
	}
}
