// Package checkpoint persists dirty execution contexts at unit-of-work
// boundaries and restores them on restart.
package checkpoint

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/stepflow/stepflow/pkg/eventbus"
	"github.com/stepflow/stepflow/pkg/events"
	"github.com/stepflow/stepflow/pkg/models"
	"github.com/stepflow/stepflow/pkg/otelhelper"
	"github.com/stepflow/stepflow/pkg/persistence"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// Checkpointer saves step executions whose context changed since the last
// checkpoint and clears the dirty flag once the save succeeded. Publishing
// checkpoint events is optional: a nil event bus disables it.
type Checkpointer struct {
	persistence persistence.Persistence
	eventBus    eventbus.EventPublisher
	validator   *validator.Validate
	logger      *slog.Logger
}

// NewCheckpointer creates a checkpointer on top of a persistence layer.
func NewCheckpointer(p persistence.Persistence, eventBus eventbus.EventPublisher, logger *slog.Logger) *Checkpointer {
	return &Checkpointer{
		persistence: p,
		eventBus:    eventBus,
		validator:   validator.New(),
		logger:      logger,
	}
}

// Checkpoint persists the step execution if its context is dirty. A clean
// context is a no-op so callers can checkpoint unconditionally at chunk
// boundaries. The dirty flag is cleared only after a successful save.
func (c *Checkpointer) Checkpoint(ctx context.Context, stepExecution *models.StepExecution) error {
	tracer := otel.Tracer("stepflow/checkpoint")

	ctx, span := otelhelper.StartSpan(ctx, tracer, "checkpoint.save",
		attribute.String(otelhelper.ExecutionIDKey, stepExecution.ID),
		attribute.String(otelhelper.JobNameKey, stepExecution.JobName),
		attribute.String(otelhelper.StepNameKey, stepExecution.StepName),
	)
	defer span.End()

	if stepExecution.Context == nil {
		stepExecution.Context = models.NewExecutionContext()
	}

	if !stepExecution.Context.IsDirty() {
		c.logger.DebugContext(ctx, "context is clean, skipping checkpoint",
			"execution_id", stepExecution.ID)

		return nil
	}

	err := c.validator.Struct(stepExecution)
	if err != nil {
		otelhelper.SetError(span, err)

		return fmt.Errorf("invalid step execution: %w", err)
	}

	err = c.persistence.SaveStepExecution(ctx, stepExecution)
	if err != nil {
		otelhelper.SetError(span, err)

		return fmt.Errorf("failed to checkpoint step execution %s: %w", stepExecution.ID, err)
	}

	stepExecution.Context.ClearDirtyFlag()

	c.logger.InfoContext(ctx, "checkpoint saved",
		"execution_id", stepExecution.ID,
		"job_name", stepExecution.JobName,
		"step_name", stepExecution.StepName,
		"entries", stepExecution.Context.Len())

	c.publish(ctx, stepExecution.ID, events.CheckpointSaved{
		BaseEvent:   events.NewBaseEvent(events.CheckpointSavedEvent, stepExecution.JobName),
		ExecutionID: stepExecution.ID,
		StepName:    stepExecution.StepName,
		EntryCount:  stepExecution.Context.Len(),
	})

	return nil
}

// Restore loads a step execution from the backing store. The restored context
// is clean: the loaded state is the new baseline.
func (c *Checkpointer) Restore(ctx context.Context, executionID string) (*models.StepExecution, error) {
	tracer := otel.Tracer("stepflow/checkpoint")

	ctx, span := otelhelper.StartSpan(ctx, tracer, "checkpoint.restore",
		attribute.String(otelhelper.ExecutionIDKey, executionID),
	)
	defer span.End()

	stepExecution, err := c.persistence.StepExecutionByID(ctx, executionID)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	c.logger.InfoContext(ctx, "checkpoint restored",
		"execution_id", stepExecution.ID,
		"job_name", stepExecution.JobName,
		"entries", stepExecution.Context.Len())

	c.publish(ctx, stepExecution.ID, events.CheckpointRestored{
		BaseEvent:   events.NewBaseEvent(events.CheckpointRestoredEvent, stepExecution.JobName),
		ExecutionID: stepExecution.ID,
		StepName:    stepExecution.StepName,
		EntryCount:  stepExecution.Context.Len(),
	})

	return stepExecution, nil
}

func (c *Checkpointer) publish(ctx context.Context, key string, event eventbus.Event) {
	if c.eventBus == nil {
		return
	}

	err := c.eventBus.Publish(ctx, key, event)
	if err != nil {
		// Checkpoint durability never depends on notification delivery.
		c.logger.WarnContext(ctx, "failed to publish checkpoint event",
			"event_type", event.GetType(), "error", err)
	}
}
