package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunEventBusDeliversToSubscriber(t *testing.T) {
	bus := NewRunEventBus()
	events, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	bus.Publish("run-1", "cfg-1", "running", "")

	select {
	case ev := <-events:
		assert.Equal(t, "run-1", ev.RunID)
		assert.Equal(t, "running", ev.State)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestRunEventBusUnsubscribeClosesChannel(t *testing.T) {
	bus := NewRunEventBus()
	events, unsubscribe := bus.Subscribe()
	unsubscribe()

	_, ok := <-events
	assert.False(t, ok)
}

func TestRunEventBusDropsOldestWhenSubscriberFallsBehind(t *testing.T) {
	bus := NewRunEventBus()
	events, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	for i := 0; i < 64; i++ {
		bus.Publish("run-x", "cfg-x", "running", "")
	}

	ev, ok := <-events
	require.True(t, ok)
	assert.Equal(t, "run-x", ev.RunID)
}
