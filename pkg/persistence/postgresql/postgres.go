// Package postgresql provides PostgreSQL persistence for checkpointed step executions.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq" // postgres driver
	"github.com/stepflow/stepflow/pkg/models"
	"github.com/stepflow/stepflow/pkg/persistence/sqlbase"
	"github.com/stepflow/stepflow/pkg/serialization"
)

// Persistence implements the persistence layer for PostgreSQL.
type Persistence struct {
	db                *sql.DB
	logger            *slog.Logger
	stepExecutionRepo *StepExecutionRepository
}

// NewPersistence creates a new PostgreSQL persistence layer using the default
// gob serializer for execution contexts.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	return NewPersistenceWithSerializer(ctx, logger, databaseURL, serialization.NewGobSerializer())
}

// NewPersistenceWithSerializer creates a new PostgreSQL persistence layer with
// an explicit context serializer.
func NewPersistenceWithSerializer(ctx context.Context, logger *slog.Logger, databaseURL string, serializer serialization.Serializer) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())
	stepExecutionRepo := NewStepExecutionRepository(database, logger, serializer)

	postgres := &Persistence{
		db:                database,
		logger:            logger,
		stepExecutionRepo: stepExecutionRepo,
	}

	// Run migrations on initialization
	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return postgres, nil
}

// Close closes the database connection.
func (p *Persistence) Close(_ context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

func (p *Persistence) SaveStepExecution(ctx context.Context, stepExecution *models.StepExecution) error {
	return p.stepExecutionRepo.Save(ctx, stepExecution)
}

func (p *Persistence) StepExecutionByID(ctx context.Context, executionID string) (*models.StepExecution, error) {
	return p.stepExecutionRepo.GetByID(ctx, executionID)
}

func (p *Persistence) StepExecutions(ctx context.Context) ([]*models.StepExecution, error) {
	return p.stepExecutionRepo.GetAll(ctx)
}

func (p *Persistence) StepExecutionsByJob(ctx context.Context, jobName string) ([]*models.StepExecution, error) {
	return p.stepExecutionRepo.GetByJob(ctx, jobName)
}

func (p *Persistence) DeleteStepExecution(ctx context.Context, executionID string) error {
	return p.stepExecutionRepo.Delete(ctx, executionID)
}

func (p *Persistence) DeleteCompletedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	return p.stepExecutionRepo.DeleteCompletedBefore(ctx, cutoff)
}
