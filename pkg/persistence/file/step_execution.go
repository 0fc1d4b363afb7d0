package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/stepflow/stepflow/pkg/models"
	"github.com/stepflow/stepflow/pkg/persistence"
	"github.com/stepflow/stepflow/pkg/serialization"
)

const stepExecutionsDir = "step_executions"

// stepExecutionDocument is the on-disk form of a step execution. The context is
// opaque serializer output; everything else is plain JSON so the files stay
// inspectable.
type stepExecutionDocument struct {
	ID          string     `json:"id"`
	JobName     string     `json:"job_name"`
	StepName    string     `json:"step_name"`
	Status      string     `json:"status"`
	Context     []byte     `json:"context"`
	ExitMessage string     `json:"exit_message,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// StepExecutionRepository handles step-execution-related file operations.
type StepExecutionRepository struct {
	root       string // File system root for storing step executions
	serializer serialization.Serializer
}

// NewStepExecutionRepository creates a new step execution repository.
func NewStepExecutionRepository(root string, serializer serialization.Serializer) *StepExecutionRepository {
	return &StepExecutionRepository{root: root, serializer: serializer}
}

// validateExecutionID validates that the execution ID is safe for file operations.
func (r *StepExecutionRepository) validateExecutionID(executionID string) error {
	if executionID == "" {
		return fmt.Errorf("%w: empty", persistence.ErrInvalidExecutionID)
	}

	// Check for path traversal attempts
	if strings.Contains(executionID, "..") || strings.Contains(executionID, "/") || strings.Contains(executionID, "\\") {
		return fmt.Errorf("%w: %q contains invalid characters", persistence.ErrInvalidExecutionID, executionID)
	}

	return nil
}

// Save writes a step execution and its serialized context to the file system.
func (r *StepExecutionRepository) Save(_ context.Context, stepExecution *models.StepExecution) error {
	if err := r.validateExecutionID(stepExecution.ID); err != nil {
		return persistence.NewStepExecutionError("Save", stepExecution.ID, err)
	}

	executionContext := stepExecution.Context
	if executionContext == nil {
		executionContext = models.NewExecutionContext()
	}

	contextBytes, err := r.serializer.Serialize(executionContext)
	if err != nil {
		return persistence.NewStepExecutionError("Save", stepExecution.ID, err)
	}

	dir := filepath.Join(r.root, stepExecutionsDir)

	err = os.MkdirAll(dir, 0750)
	if err != nil {
		return fmt.Errorf("failed to create step executions directory: %w", err)
	}

	document := stepExecutionDocument{
		ID:          stepExecution.ID,
		JobName:     stepExecution.JobName,
		StepName:    stepExecution.StepName,
		Status:      string(stepExecution.Status),
		Context:     contextBytes,
		ExitMessage: stepExecution.ExitMessage,
		CreatedAt:   stepExecution.CreatedAt,
		UpdatedAt:   stepExecution.UpdatedAt,
		CompletedAt: stepExecution.CompletedAt,
	}

	data, err := json.Marshal(document)
	if err != nil {
		return fmt.Errorf("failed to marshal step execution %s: %w", stepExecution.ID, err)
	}

	filePath := filepath.Join(dir, stepExecution.ID+".json")

	err = os.WriteFile(filePath, data, 0600)
	if err != nil {
		return fmt.Errorf("failed to write step execution %s: %w", stepExecution.ID, err)
	}

	return nil
}

// GetByID retrieves a step execution by its ID from the file system.
func (r *StepExecutionRepository) GetByID(_ context.Context, executionID string) (*models.StepExecution, error) {
	if err := r.validateExecutionID(executionID); err != nil {
		return nil, persistence.NewStepExecutionError("GetByID", executionID, err)
	}

	filePath := filepath.Join(r.root, stepExecutionsDir, executionID+".json")

	data, err := os.ReadFile(filePath) // #nosec G304 -- filePath is validated and constructed safely
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.NewStepExecutionError("GetByID", executionID, persistence.ErrStepExecutionNotFound)
		}

		return nil, fmt.Errorf("failed to read step execution %s: %w", executionID, err)
	}

	return r.decode(executionID, data)
}

// GetAll retrieves every stored step execution.
func (r *StepExecutionRepository) GetAll(ctx context.Context) ([]*models.StepExecution, error) {
	return r.list(ctx, func(*models.StepExecution) bool { return true })
}

// GetByJob retrieves all step executions recorded for a job.
func (r *StepExecutionRepository) GetByJob(ctx context.Context, jobName string) ([]*models.StepExecution, error) {
	return r.list(ctx, func(se *models.StepExecution) bool { return se.JobName == jobName })
}

// Delete removes a stored step execution.
func (r *StepExecutionRepository) Delete(_ context.Context, executionID string) error {
	if err := r.validateExecutionID(executionID); err != nil {
		return persistence.NewStepExecutionError("Delete", executionID, err)
	}

	filePath := filepath.Join(r.root, stepExecutionsDir, executionID+".json")

	err := os.Remove(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return persistence.NewStepExecutionError("Delete", executionID, persistence.ErrStepExecutionNotFound)
		}

		return fmt.Errorf("failed to delete step execution %s: %w", executionID, err)
	}

	return nil
}

// DeleteCompletedBefore removes finished executions completed before cutoff.
func (r *StepExecutionRepository) DeleteCompletedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	executions, err := r.GetAll(ctx)
	if err != nil {
		return 0, err
	}

	deleted := 0

	for _, stepExecution := range executions {
		if !stepExecution.IsFinished() || stepExecution.CompletedAt == nil {
			continue
		}

		if stepExecution.CompletedAt.Before(cutoff) {
			err := r.Delete(ctx, stepExecution.ID)
			if err != nil {
				return deleted, err
			}

			deleted++
		}
	}

	return deleted, nil
}

func (r *StepExecutionRepository) list(ctx context.Context, keep func(*models.StepExecution) bool) ([]*models.StepExecution, error) {
	dir := filepath.Join(r.root, stepExecutionsDir)

	// Check if directory exists
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return []*models.StepExecution{}, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read step executions directory: %w", err)
	}

	executions := []*models.StepExecution{}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		executionID := strings.TrimSuffix(entry.Name(), ".json")

		stepExecution, err := r.GetByID(ctx, executionID)
		if err != nil {
			// Skip invalid files
			continue
		}

		if keep(stepExecution) {
			executions = append(executions, stepExecution)
		}
	}

	return executions, nil
}

func (r *StepExecutionRepository) decode(executionID string, data []byte) (*models.StepExecution, error) {
	err := serialization.ValidateDocument(data)
	if err != nil {
		return nil, persistence.NewStepExecutionError("GetByID", executionID, err)
	}

	var document stepExecutionDocument

	err = json.Unmarshal(data, &document)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal step execution %s: %w", executionID, err)
	}

	executionContext, err := r.serializer.Deserialize(document.Context)
	if err != nil {
		return nil, persistence.NewStepExecutionError("GetByID", executionID, err)
	}

	return &models.StepExecution{
		ID:          document.ID,
		JobName:     document.JobName,
		StepName:    document.StepName,
		Status:      models.ExecutionStatus(document.Status),
		Context:     executionContext,
		ExitMessage: document.ExitMessage,
		CreatedAt:   document.CreatedAt,
		UpdatedAt:   document.UpdatedAt,
		CompletedAt: document.CompletedAt,
	}, nil
}
