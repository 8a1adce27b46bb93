package eventbus

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBusPublishBroadcast(t *testing.T) {
	bus := NewRunEventBus()
	calledA := false
	calledB := false

	bus.Subscribe(RunEventSectionStart, func(ctx context.Context, event RunEvent) error {
		calledA = true
		return nil
	})
	bus.Subscribe(RunEventSectionStart, func(ctx context.Context, event RunEvent) error {
		calledB = true
		return nil
	})

	event := RunEvent{Type: RunEventSectionStart, Section: "Project Pitch"}
	err := bus.Publish(context.Background(), event.Type, event)

	assert.NoError(t, err)
	assert.True(t, calledA, "first subscriber should run")
	assert.True(t, calledB, "second subscriber should run")
}

func TestBusUnsubscribe(t *testing.T) {
	bus := NewRunEventBus()
	called := false
	unsubscribe := bus.Subscribe(RunEventComplete, func(ctx context.Context, event RunEvent) error {
		called = true
		return nil
	})
	unsubscribe()

	event := RunEvent{Type: RunEventComplete}
	err := bus.Publish(context.Background(), event.Type, event)

	assert.NoError(t, err)
	assert.False(t, called, "unsubscribed handler should not run")
}

func TestBusPublishJoinErrors(t *testing.T) {
	bus := NewRunEventBus()
	bus.Subscribe(RunEventError, func(ctx context.Context, event RunEvent) error {
		return errors.New("err-a")
	})
	bus.Subscribe(RunEventError, func(ctx context.Context, event RunEvent) error {
		return errors.New("err-b")
	})

	err := bus.Publish(context.Background(), RunEventError, RunEvent{Type: RunEventError})

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "err-a")
	assert.Contains(t, err.Error(), "err-b")
}

func TestSubscribeAllSeesEverySequenceEvent(t *testing.T) {
	bus := NewRunEventBus()
	var seen []RunEventType
	unsubscribe := SubscribeAll(bus, func(ctx context.Context, event RunEvent) error {
		seen = append(seen, event.Type)
		return nil
	})

	sequence := []RunEvent{
		{Type: RunEventStatus, Message: "Initializing system..."},
		{Type: RunEventInit, TotalSections: 4},
		{Type: RunEventSectionStart, Section: "Project Pitch", Number: 1, Total: 4},
		{Type: RunEventSectionComplete, Section: "Project Pitch", WordCount: 640},
		{Type: RunEventComplete, TotalWords: 5200},
	}
	for _, event := range sequence {
		assert.NoError(t, bus.Publish(context.Background(), event.Type, event))
	}

	assert.Equal(t, len(sequence), len(seen), "every published event should reach the handler")
	for i, event := range sequence {
		assert.Equal(t, event.Type, seen[i], "event order should be preserved")
	}

	unsubscribe()
	assert.NoError(t, bus.Publish(context.Background(), RunEventStatus, RunEvent{Type: RunEventStatus}))
	assert.Equal(t, len(sequence), len(seen), "unsubscribe should cover every type")
}
