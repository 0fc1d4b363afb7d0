package eventbus_test

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stepflow/stepflow/pkg/channels/gochannel"
	"github.com/stepflow/stepflow/pkg/eventbus"
	"github.com/stepflow/stepflow/pkg/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatermillEventBus_PublishSubscribe(t *testing.T) {
	t.Parallel()

	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	received := make(chan *events.CheckpointSaved, 1)

	bus.Handle(events.CheckpointSavedEvent, func(_ context.Context, event any) error {
		saved, ok := event.(*events.CheckpointSaved)
		require.True(t, ok)

		received <- saved

		return nil
	})

	require.NoError(t, bus.Subscribe(ctx))

	published := eventbus.Event(events.CheckpointSaved{
		BaseEvent:   events.NewBaseEvent(events.CheckpointSavedEvent, "nightly-import"),
		ExecutionID: "exec-123",
		StepName:    "load-accounts",
		EntryCount:  2,
	})

	require.NoError(t, bus.Publish(ctx, "exec-123", published))

	select {
	case saved := <-received:
		assert.Equal(t, "exec-123", saved.ExecutionID)
		assert.Equal(t, "load-accounts", saved.StepName)
		assert.Equal(t, 2, saved.EntryCount)
	case <-ctx.Done():
		t.Fatal("timed out waiting for event")
	}
}

func TestWatermillEventBus_UnhandledTypeIsAcked(t *testing.T) {
	t.Parallel()

	pub, sub, err := gochannel.CreateChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, bus.Subscribe(ctx))

	// No handler registered for pruned events; publishing must not error.
	event := eventbus.Event(events.CheckpointPruned{
		BaseEvent: events.NewBaseEvent(events.CheckpointPrunedEvent, ""),
		Deleted:   3,
		Cutoff:    time.Now().UTC(),
	})

	assert.NoError(t, bus.Publish(ctx, "janitor", event))
}

func TestWatermillEventBus_GenerateID(t *testing.T) {
	t.Parallel()

	pub, sub, err := gochannel.CreateChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)

	first := bus.GenerateID()
	second := bus.GenerateID()

	assert.NotEmpty(t, first)
	assert.NotEqual(t, first, second)
}
