// Package events defines event types and structures for checkpoint lifecycle notifications.
package events

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

// Topic carries all checkpoint lifecycle events.
const Topic = "stepflow.checkpoints"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	CheckpointSavedEvent    EventType = "checkpoint.saved"
	CheckpointRestoredEvent EventType = "checkpoint.restored"
	CheckpointPrunedEvent   EventType = "checkpoint.pruned"
)

type BaseEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	JobName   string         `json:"job_name,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// NewBaseEvent creates the common envelope for a checkpoint event.
func NewBaseEvent(eventType EventType, jobName string) BaseEvent {
	return BaseEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		JobName:   jobName,
	}
}

// CheckpointSaved is published after a dirty execution context has been
// persisted and its dirty flag cleared.
type CheckpointSaved struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	StepName    string `json:"step_name"`
	EntryCount  int    `json:"entry_count"`
}

func (e CheckpointSaved) GetType() EventType {
	return CheckpointSavedEvent
}

// CheckpointRestored is published after a step execution has been loaded from
// the backing store.
type CheckpointRestored struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	StepName    string `json:"step_name"`
	EntryCount  int    `json:"entry_count"`
}

func (e CheckpointRestored) GetType() EventType {
	return CheckpointRestoredEvent
}

// CheckpointPruned is published after the janitor removed finished executions
// past the retention window.
type CheckpointPruned struct {
	BaseEvent

	Deleted int       `json:"deleted"`
	Cutoff  time.Time `json:"cutoff"`
}

func (e CheckpointPruned) GetType() EventType {
	return CheckpointPrunedEvent
}
