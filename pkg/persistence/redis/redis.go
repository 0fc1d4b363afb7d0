// Package redis provides Redis persistence for checkpointed step executions.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/stepflow/stepflow/pkg/models"
	"github.com/stepflow/stepflow/pkg/persistence"
	"github.com/stepflow/stepflow/pkg/serialization"
)

const (
	executionKeyPrefix = "stepflow:step_executions:"
	executionIndexKey  = "stepflow:step_executions"
)

// stepExecutionDocument mirrors the file adapter's on-disk form; the context is
// opaque serializer output.
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

// Persistence implements the persistence layer for Redis.
type Persistence struct {
	client     redis.UniversalClient
	serializer serialization.Serializer
}

// NewPersistence creates a Redis persistence layer from a redis:// URL, using
// the default gob serializer for execution contexts.
func NewPersistence(ctx context.Context, redisURL string) (*Persistence, error) {
	return NewPersistenceWithSerializer(ctx, redisURL, serialization.NewGobSerializer())
}

// NewPersistenceWithSerializer creates a Redis persistence layer with an
// explicit context serializer.
func NewPersistenceWithSerializer(ctx context.Context, redisURL string, serializer serialization.Serializer) (*Persistence, error) {
	options, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(options)

	err = client.Ping(ctx).Err()
	if err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return &Persistence{client: client, serializer: serializer}, nil
}

// Close closes the Redis connection.
func (p *Persistence) Close(_ context.Context) error {
	err := p.client.Close()
	if err != nil {
		return fmt.Errorf("failed to close redis client: %w", err)
	}

	return nil
}

// HealthCheck verifies the Redis connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.client.Ping(ctx).Err()
	if err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
	}

	return nil
}

func (p *Persistence) SaveStepExecution(ctx context.Context, stepExecution *models.StepExecution) error {
	executionContext := stepExecution.Context
	if executionContext == nil {
		executionContext = models.NewExecutionContext()
	}

	contextBytes, err := p.serializer.Serialize(executionContext)
	if err != nil {
		return persistence.NewStepExecutionError("Save", stepExecution.ID, err)
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

	pipe := p.client.TxPipeline()
	pipe.Set(ctx, executionKeyPrefix+stepExecution.ID, data, 0)
	pipe.SAdd(ctx, executionIndexKey, stepExecution.ID)

	_, err = pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to save step execution %s: %w", stepExecution.ID, err)
	}

	return nil
}

func (p *Persistence) StepExecutionByID(ctx context.Context, executionID string) (*models.StepExecution, error) {
	data, err := p.client.Get(ctx, executionKeyPrefix+executionID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, persistence.NewStepExecutionError("GetByID", executionID, persistence.ErrStepExecutionNotFound)
		}

		return nil, fmt.Errorf("failed to read step execution %s: %w", executionID, err)
	}

	return p.decode(executionID, data)
}

func (p *Persistence) StepExecutions(ctx context.Context) ([]*models.StepExecution, error) {
	return p.list(ctx, func(*models.StepExecution) bool { return true })
}

func (p *Persistence) StepExecutionsByJob(ctx context.Context, jobName string) ([]*models.StepExecution, error) {
	return p.list(ctx, func(se *models.StepExecution) bool { return se.JobName == jobName })
}

func (p *Persistence) DeleteStepExecution(ctx context.Context, executionID string) error {
	removed, err := p.client.Del(ctx, executionKeyPrefix+executionID).Result()
	if err != nil {
		return fmt.Errorf("failed to delete step execution %s: %w", executionID, err)
	}

	if removed == 0 {
		return persistence.NewStepExecutionError("Delete", executionID, persistence.ErrStepExecutionNotFound)
	}

	err = p.client.SRem(ctx, executionIndexKey, executionID).Err()
	if err != nil {
		return fmt.Errorf("failed to unindex step execution %s: %w", executionID, err)
	}

	return nil
}

func (p *Persistence) DeleteCompletedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	executions, err := p.StepExecutions(ctx)
	if err != nil {
		return 0, err
	}

	deleted := 0

	for _, stepExecution := range executions {
		if !stepExecution.IsFinished() || stepExecution.CompletedAt == nil {
			continue
		}

		if stepExecution.CompletedAt.Before(cutoff) {
			err := p.DeleteStepExecution(ctx, stepExecution.ID)
			if err != nil {
				return deleted, err
			}

			deleted++
		}
	}

	return deleted, nil
}

func (p *Persistence) list(ctx context.Context, keep func(*models.StepExecution) bool) ([]*models.StepExecution, error) {
	ids, err := p.client.SMembers(ctx, executionIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list step executions: %w", err)
	}

	executions := []*models.StepExecution{}

	for _, executionID := range ids {
		stepExecution, err := p.StepExecutionByID(ctx, executionID)
		if err != nil {
			// A dangling index entry is not fatal.
			if persistence.IsStepExecutionNotFound(err) {
				continue
			}

			return nil, err
		}

		if keep(stepExecution) {
			executions = append(executions, stepExecution)
		}
	}

	return executions, nil
}

func (p *Persistence) decode(executionID string, data []byte) (*models.StepExecution, error) {
	var document stepExecutionDocument

	err := json.Unmarshal(data, &document)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal step execution %s: %w", executionID, err)
	}

	executionContext, err := p.serializer.Deserialize(document.Context)
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
