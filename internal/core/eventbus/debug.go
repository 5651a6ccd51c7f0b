package eventbus

import (
	"fmt"

	"github.com/rs/zerolog"
)

// RegisterDebugLogger logs every published event at debug level with its
// key fields. Drops are logged as warnings and subscriber panics as errors.
func RegisterDebugLogger(bus *EventBus, logger zerolog.Logger) {
	bus.OnPublish(func(event Event, payload any) {
		if !logger.Debug().Enabled() {
			return
		}
		ev := logger.Debug().Str("event", string(event))
		describe(ev, payload).Msg("event published")
	})

	bus.OnDrop(func(event Event, _ any) {
		logger.Warn().Str("event", string(event)).Msg("event bus full, dropped event")
	})

	bus.OnPanic(func(event Event, _ any, recovered any) {
		logger.Error().
			Str("event", string(event)).
			Str("panic", fmt.Sprint(recovered)).
			Msg("subscriber panicked")
	})
}

// describe adds the fields that identify a payload in a log line.
func describe(ev *zerolog.Event, payload any) *zerolog.Event {
	switch p := payload.(type) {
	case StateChangedPayload:
		return ev.Str("cycle_id", p.CycleID).Str("from", string(p.From)).Str("to", string(p.To))
	case RecordEvaluatedPayload:
		return ev.Str("record", p.Record.Key()).Bool("accepted", p.Accepted)
	case OrderAcceptedPayload:
		return ev.Str("cycle_id", p.CycleID).Str("record", p.Record.Key()).Int("price", p.Record.Price())
	case EngineFaultPayload:
		return ev.Str("state", string(p.State)).Str("class", string(p.Class))
	case EngineTimeoutPayload:
		return ev.Str("state", string(p.State)).Dur("elapsed", p.Elapsed)
	case EnginePausedPayload:
		return ev.Bool("paused", p.Paused)
	case NotificationPublishedPayload:
		return ev.Str("level", string(p.Level)).Str("source", string(p.Source))
	default:
		return ev
	}
}
