// Package persistence provides the data storage abstraction layer for
// checkpointed step executions.
package persistence

import (
	"context"
	"time"

	"github.com/stepflow/stepflow/pkg/models"
)

// Persistence stores step executions together with their serialized execution
// contexts. It is the durability collaborator of the core container: the
// context itself only guarantees it survives a serializer round trip.
type Persistence interface {
	SaveStepExecution(ctx context.Context, stepExecution *models.StepExecution) error
	StepExecutionByID(ctx context.Context, executionID string) (*models.StepExecution, error)
	StepExecutions(ctx context.Context) ([]*models.StepExecution, error)
	StepExecutionsByJob(ctx context.Context, jobName string) ([]*models.StepExecution, error)
	DeleteStepExecution(ctx context.Context, executionID string) error

	// DeleteCompletedBefore removes finished executions whose completion time is
	// before cutoff and returns how many were removed.
	DeleteCompletedBefore(ctx context.Context, cutoff time.Time) (int, error)

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
