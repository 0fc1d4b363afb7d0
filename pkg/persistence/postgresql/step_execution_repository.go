package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/stepflow/stepflow/pkg/models"
	"github.com/stepflow/stepflow/pkg/persistence"
	"github.com/stepflow/stepflow/pkg/serialization"
)

// StepExecutionRepository handles step-execution-related database operations.
type StepExecutionRepository struct {
	db         *sql.DB
	logger     *slog.Logger
	serializer serialization.Serializer
}

// NewStepExecutionRepository creates a new step execution repository.
func NewStepExecutionRepository(db *sql.DB, logger *slog.Logger, serializer serialization.Serializer) *StepExecutionRepository {
	return &StepExecutionRepository{db: db, logger: logger, serializer: serializer}
}

const stepExecutionColumns = `id, job_name, step_name, status, context, exit_message, created_at, updated_at, completed_at`

// Save upserts a step execution and its serialized context.
func (r *StepExecutionRepository) Save(ctx context.Context, stepExecution *models.StepExecution) error {
	executionContext := stepExecution.Context
	if executionContext == nil {
		executionContext = models.NewExecutionContext()
	}

	contextBytes, err := r.serializer.Serialize(executionContext)
	if err != nil {
		return persistence.NewStepExecutionError("Save", stepExecution.ID, err)
	}

	query := `
		INSERT INTO step_executions (
			id, job_name, step_name, status, context,
			exit_message, created_at, updated_at, completed_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			job_name = EXCLUDED.job_name,
			step_name = EXCLUDED.step_name,
			status = EXCLUDED.status,
			context = EXCLUDED.context,
			exit_message = EXCLUDED.exit_message,
			updated_at = EXCLUDED.updated_at,
			completed_at = EXCLUDED.completed_at
	`

	_, err = r.db.ExecContext(ctx, query,
		stepExecution.ID,
		stepExecution.JobName,
		stepExecution.StepName,
		stepExecution.Status,
		contextBytes,
		stepExecution.ExitMessage,
		stepExecution.CreatedAt,
		stepExecution.UpdatedAt,
		stepExecution.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save step execution: %w", err)
	}

	return nil
}

// GetByID retrieves a step execution by its ID from the database.
func (r *StepExecutionRepository) GetByID(ctx context.Context, executionID string) (*models.StepExecution, error) {
	query := `
		SELECT ` + stepExecutionColumns + `
		FROM step_executions
		WHERE id = $1
	`

	row := r.db.QueryRowContext(ctx, query, executionID)

	stepExecution, err := r.scanStepExecution(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewStepExecutionError("GetByID", executionID, persistence.ErrStepExecutionNotFound)
		}

		return nil, fmt.Errorf("failed to scan step execution: %w", err)
	}

	return stepExecution, nil
}

// GetAll retrieves every stored step execution, newest first.
func (r *StepExecutionRepository) GetAll(ctx context.Context) ([]*models.StepExecution, error) {
	query := `
		SELECT ` + stepExecutionColumns + `
		FROM step_executions
		ORDER BY created_at DESC
	`

	return r.query(ctx, query)
}

// GetByJob retrieves all step executions recorded for a job, newest first.
func (r *StepExecutionRepository) GetByJob(ctx context.Context, jobName string) ([]*models.StepExecution, error) {
	query := `
		SELECT ` + stepExecutionColumns + `
		FROM step_executions
		WHERE job_name = $1
		ORDER BY created_at DESC
	`

	return r.query(ctx, query, jobName)
}

// Delete removes a stored step execution.
func (r *StepExecutionRepository) Delete(ctx context.Context, executionID string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM step_executions WHERE id = $1", executionID)
	if err != nil {
		return fmt.Errorf("failed to delete step execution: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}

	if affected == 0 {
		return persistence.NewStepExecutionError("Delete", executionID, persistence.ErrStepExecutionNotFound)
	}

	return nil
}

// DeleteCompletedBefore removes finished executions completed before cutoff.
func (r *StepExecutionRepository) DeleteCompletedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	query := `
		DELETE FROM step_executions
		WHERE status IN ('completed', 'failed')
		  AND completed_at IS NOT NULL
		  AND completed_at < $1
	`

	result, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune step executions: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}

	return int(affected), nil
}

func (r *StepExecutionRepository) query(ctx context.Context, query string, args ...any) ([]*models.StepExecution, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query step executions: %w", err)
	}

	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", closeErr)
		}
	}()

	executions := []*models.StepExecution{}

	for rows.Next() {
		stepExecution, err := r.scanStepExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan step execution: %w", err)
		}

		executions = append(executions, stepExecution)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate step executions: %w", err)
	}

	return executions, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *StepExecutionRepository) scanStepExecution(row rowScanner) (*models.StepExecution, error) {
	var (
		stepExecution models.StepExecution
		contextBytes  []byte
		completedAt   sql.NullTime
	)

	err := row.Scan(
		&stepExecution.ID,
		&stepExecution.JobName,
		&stepExecution.StepName,
		&stepExecution.Status,
		&contextBytes,
		&stepExecution.ExitMessage,
		&stepExecution.CreatedAt,
		&stepExecution.UpdatedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	if completedAt.Valid {
		stepExecution.CompletedAt = &completedAt.Time
	}

	executionContext, err := r.serializer.Deserialize(contextBytes)
	if err != nil {
		return nil, persistence.NewStepExecutionError("GetByID", stepExecution.ID, err)
	}

	stepExecution.Context = executionContext

	return &stepExecution, nil
}
