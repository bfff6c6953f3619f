package eventbus

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xjanova/postxagent/pkg/channels/gochannel"
	"github.com/xjanova/postxagent/pkg/events"
)

func newTestBus(t *testing.T) EventBus {
	t.Helper()

	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := NewWatermillEventBus(pub, sub)

	t.Cleanup(func() {
		err := bus.Close()
		require.NoError(t, err)
	})

	return bus
}

func TestWatermillEventBus_GenerateID(t *testing.T) {
	bus := newTestBus(t)

	id1 := bus.GenerateID()
	id2 := bus.GenerateID()

	assert.NotEmpty(t, id1)
	assert.NotEmpty(t, id2)
	assert.NotEqual(t, id1, id2)
}

func TestWatermillEventBus_PublishAndSubscribe(t *testing.T) {
	bus := newTestBus(t)
	ctx := context.Background()

	received := make(chan any, 1)

	err := bus.Handle(events.ExecutionCompletedEvent, func(_ context.Context, event any) error {
		received <- event

		return nil
	})
	require.NoError(t, err)

	require.NoError(t, bus.Subscribe(ctx))

	published := events.ExecutionCompleted{
		BaseEvent:  events.NewBaseEvent(events.ExecutionCompletedEvent, "wf-1", "run-1"),
		DurationMs: 1200,
		StepsRun:   3,
	}

	require.NoError(t, bus.Publish(ctx, "wf-1", published))

	select {
	case event := <-received:
		completed, ok := event.(*events.ExecutionCompleted)

		require.True(t, ok)
		assert.Equal(t, "wf-1", completed.WorkflowID)
		assert.Equal(t, "run-1", completed.ExecutionID)
		assert.Equal(t, int64(1200), completed.DurationMs)
	case <-time.After(5 * time.Second):
		t.Fatal("did not receive event within timeout")
	}
}

func TestWatermillEventBus_OnlySubscribedTypesAreHandled(t *testing.T) {
	bus := newTestBus(t)
	ctx := context.Background()

	received := make(chan any, 2)

	err := bus.Handle(events.StepFailedEvent, func(_ context.Context, event any) error {
		received <- event

		return nil
	})
	require.NoError(t, err)

	require.NoError(t, bus.Subscribe(ctx))

	// Unhandled types are acked and dropped, not delivered.
	require.NoError(t, bus.Publish(ctx, "wf-1", events.StepStarted{
		BaseEvent: events.NewBaseEvent(events.StepStartedEvent, "wf-1", "run-1"),
		StepID:    "open-composer",
	}))
	require.NoError(t, bus.Publish(ctx, "wf-1", events.StepFailed{
		BaseEvent: events.NewBaseEvent(events.StepFailedEvent, "wf-1", "run-1"),
		StepID:    "submit",
	}))

	select {
	case event := <-received:
		failed, ok := event.(*events.StepFailed)

		require.True(t, ok)
		assert.Equal(t, "submit", failed.StepID)
	case <-time.After(5 * time.Second):
		t.Fatal("did not receive event within timeout")
	}

	assert.Empty(t, received)
}
