package checkpoint

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stepflow/stepflow/pkg/eventbus"
	"github.com/stepflow/stepflow/pkg/events"
	"github.com/stepflow/stepflow/pkg/persistence"
)

// Janitor prunes finished step executions past a retention window on a cron
// schedule.
type Janitor struct {
	persistence persistence.Persistence
	eventBus    eventbus.EventPublisher
	retention   time.Duration
	logger      *slog.Logger
	cron        *cron.Cron
}

// NewJanitor creates a janitor that keeps finished executions for the given
// retention duration.
func NewJanitor(p persistence.Persistence, eventBus eventbus.EventPublisher, retention time.Duration, logger *slog.Logger) *Janitor {
	return &Janitor{
		persistence: p,
		eventBus:    eventBus,
		retention:   retention,
		logger:      logger,
		cron:        cron.New(),
	}
}

// Start schedules pruning with a cron expression (e.g. "@hourly").
func (j *Janitor) Start(schedule string) error {
	_, err := j.cron.AddFunc(schedule, func() {
		_, err := j.RunOnce(context.Background())
		if err != nil {
			j.logger.Error("scheduled prune failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule janitor: %w", err)
	}

	j.cron.Start()
	j.logger.Info("janitor started", "schedule", schedule, "retention", j.retention)

	return nil
}

// Stop halts the schedule and waits for a running prune to finish.
func (j *Janitor) Stop() {
	<-j.cron.Stop().Done()
}

// RunOnce prunes immediately and returns how many executions were removed.
func (j *Janitor) RunOnce(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().Add(-j.retention)

	deleted, err := j.persistence.DeleteCompletedBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune step executions: %w", err)
	}

	if deleted == 0 {
		return 0, nil
	}

	j.logger.InfoContext(ctx, "pruned step executions", "deleted", deleted, "cutoff", cutoff)

	if j.eventBus != nil {
		event := events.CheckpointPruned{
			BaseEvent: events.NewBaseEvent(events.CheckpointPrunedEvent, ""),
			Deleted:   deleted,
			Cutoff:    cutoff,
		}

		err := j.eventBus.Publish(ctx, "janitor", event)
		if err != nil {
			j.logger.WarnContext(ctx, "failed to publish prune event", "error", err)
		}
	}

	return deleted, nil
}
