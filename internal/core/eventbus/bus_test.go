package eventbus_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/farepilot/internal/core/control"
	"github.com/colonyops/farepilot/internal/core/eventbus"
	"github.com/colonyops/farepilot/internal/core/eventbus/testbus"
)

func TestNilBusPublishIsNoop(t *testing.T) {
	var bus *eventbus.EventBus
	assert.NotPanics(t, func() {
		bus.PublishEngineTimeout(eventbus.EngineTimeoutPayload{State: control.StateRefreshing})
	})
}

func TestPublishDropsWhenBufferFull(t *testing.T) {
	bus := eventbus.New(1)

	var dropped atomic.Int32
	bus.OnDrop(func(eventbus.Event, any) { dropped.Add(1) })

	// not started, so the second publish cannot be enqueued
	bus.PublishEnginePaused(eventbus.EnginePausedPayload{})
	bus.PublishEnginePaused(eventbus.EnginePausedPayload{})

	assert.Equal(t, int32(1), dropped.Load())
}

func TestSubscriberPanicIsIsolated(t *testing.T) {
	bus := eventbus.New(8)

	var panics atomic.Int32
	bus.OnPanic(func(eventbus.Event, any, any) { panics.Add(1) })

	delivered := make(chan eventbus.StateChangedPayload, 1)
	bus.SubscribeEngineStateChanged(func(eventbus.StateChangedPayload) { panic("boom") })
	bus.SubscribeEngineStateChanged(func(p eventbus.StateChangedPayload) { delivered <- p })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go bus.Start(ctx)

	bus.PublishEngineStateChanged(eventbus.StateChangedPayload{To: control.StateAnalyzing})

	select {
	case p := <-delivered:
		assert.Equal(t, control.StateAnalyzing, p.To)
	case <-time.After(time.Second):
		require.FailNow(t, "second subscriber never ran")
	}
	assert.Equal(t, int32(1), panics.Load())
}

func TestTestbusRecordsInOrder(t *testing.T) {
	tb := testbus.New(t)

	tb.PublishEngineTimeout(eventbus.EngineTimeoutPayload{State: control.StateRefreshing})
	tb.PublishEngineTimeout(eventbus.EngineTimeoutPayload{State: control.StateAnalyzing})

	require.True(t, tb.WaitForCount(eventbus.EventEngineTimeout, 2, time.Second))
	got := tb.Of(eventbus.EventEngineTimeout)
	assert.Equal(t, control.StateRefreshing, got[0].(eventbus.EngineTimeoutPayload).State)
	assert.Equal(t, control.StateAnalyzing, got[1].(eventbus.EngineTimeoutPayload).State)

	tb.Reset()
	assert.Empty(t, tb.Events())
}
