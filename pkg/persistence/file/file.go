// Package file provides file-based persistence for checkpointed step executions.
package file

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/stepflow/stepflow/pkg/models"
	"github.com/stepflow/stepflow/pkg/serialization"
)

// Persistence implements the persistence.Persistence interface using the file system.
type Persistence struct {
	root              string
	stepExecutionRepo *StepExecutionRepository
}

// NewPersistence creates a file persistence layer rooted at the given directory,
// using the default gob serializer for execution contexts.
func NewPersistence(root string) *Persistence {
	return NewPersistenceWithSerializer(root, serialization.NewGobSerializer())
}

// NewPersistenceWithSerializer creates a file persistence layer with an explicit
// context serializer.
func NewPersistenceWithSerializer(root string, serializer serialization.Serializer) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{
		root:              cleanRoot,
		stepExecutionRepo: NewStepExecutionRepository(cleanRoot, serializer),
	}
}

// Close performs any necessary cleanup. For file-based persistence, there is nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck checks if the file persistence layer is healthy by verifying the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return fmt.Errorf("persistence root directory does not exist: %s", fp.root)
	}

	return nil
}

func (fp *Persistence) SaveStepExecution(ctx context.Context, stepExecution *models.StepExecution) error {
	return fp.stepExecutionRepo.Save(ctx, stepExecution)
}

func (fp *Persistence) StepExecutionByID(ctx context.Context, executionID string) (*models.StepExecution, error) {
	return fp.stepExecutionRepo.GetByID(ctx, executionID)
}

func (fp *Persistence) StepExecutions(ctx context.Context) ([]*models.StepExecution, error) {
	return fp.stepExecutionRepo.GetAll(ctx)
}

func (fp *Persistence) StepExecutionsByJob(ctx context.Context, jobName string) ([]*models.StepExecution, error) {
	return fp.stepExecutionRepo.GetByJob(ctx, jobName)
}

func (fp *Persistence) DeleteStepExecution(ctx context.Context, executionID string) error {
	return fp.stepExecutionRepo.Delete(ctx, executionID)
}

func (fp *Persistence) DeleteCompletedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	return fp.stepExecutionRepo.DeleteCompletedBefore(ctx, cutoff)
}
