package eventbus_test

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/farepilot/internal/core/control"
	"github.com/colonyops/farepilot/internal/core/eventbus"
	"github.com/colonyops/farepilot/internal/core/eventbus/testbus"
	"github.com/colonyops/farepilot/internal/core/record"
)

func TestRegisterDebugLogger(t *testing.T) {
	var buf bytes.Buffer
	tb := testbus.New(t)
	eventbus.RegisterDebugLogger(tb.EventBus, zerolog.New(&buf).Level(zerolog.DebugLevel))

	tb.PublishEngineStateChanged(eventbus.StateChangedPayload{
		CycleID: "c-1",
		From:    control.StateIdle,
		To:      control.StateAwaitingOpportunity,
	})
	tb.PublishOrderAccepted(eventbus.OrderAcceptedPayload{
		Record: record.New(record.Fields{Origin: "Seoul Station", Destination: "Airport", Price: 42000}),
	})
	tb.AssertPublished(t, eventbus.EventOrderAccepted)

	require.Equal(t, 2, bytes.Count(buf.Bytes(), []byte("event published")), "publish hooks run on the publisher")

	out := buf.String()
	assert.Contains(t, out, `"to":"awaiting-opportunity"`)
	assert.Contains(t, out, `"cycle_id":"c-1"`)
	assert.Contains(t, out, `"price":42000`)
}

func TestRegisterDebugLoggerQuietAboveDebug(t *testing.T) {
	var buf bytes.Buffer
	tb := testbus.New(t)
	eventbus.RegisterDebugLogger(tb.EventBus, zerolog.New(&buf).Level(zerolog.InfoLevel))

	tb.PublishEnginePaused(eventbus.EnginePausedPayload{Paused: true})
	tb.AssertPublished(t, eventbus.EventEnginePaused)

	assert.Empty(t, buf.String())
}
