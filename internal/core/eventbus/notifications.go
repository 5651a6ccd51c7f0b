package eventbus

import (
	"fmt"
	"time"

	"github.com/colonyops/farepilot/internal/core/control"
	"github.com/colonyops/farepilot/internal/core/notify"
)

// NotificationRouter maps domain events to user-facing notifications.
type NotificationRouter struct {
	bus *EventBus
}

// NewNotificationRouter constructs a router for event-to-notification mappings.
func NewNotificationRouter(bus *EventBus) *NotificationRouter {
	return &NotificationRouter{bus: bus}
}

// Register subscribes all supported event mappings.
func (r *NotificationRouter) Register() {
	if r == nil || r.bus == nil {
		return
	}

	r.bus.SubscribeOrderAccepted(func(p OrderAcceptedPayload) {
		r.notifyf(notify.LevelInfo, notify.SourceAccept, "accepted %s → %s for %d",
			p.Record.Origin(), p.Record.Destination(), p.Record.Price())
	})

	r.bus.SubscribeEngineTimeout(func(p EngineTimeoutPayload) {
		r.notifyf(notify.LevelWarning, notify.SourceTimeout, "timed out in %s after %s", p.State, p.Elapsed.Round(time.Millisecond))
	})

	r.bus.SubscribeEngineFault(func(p EngineFaultPayload) {
		if p.Class == FaultTransient {
			return
		}
		r.notifyf(notify.LevelError, notify.SourceFault, "%s fault in %s: %s", p.Class, p.State, p.Err)
	})

	r.bus.SubscribeEnginePaused(func(p EnginePausedPayload) {
		if !p.Paused || p.State == control.StateAwaitingOpportunity {
			return
		}
		r.notifyf(notify.LevelWarning, notify.SourcePause, "engine paused in %s: %s", p.State, p.Reason)
	})

	r.bus.SubscribeFiltersReloaded(func(p FiltersReloadedPayload) {
		r.notifyf(notify.LevelInfo, notify.SourceFilters, "filters reloaded (mode %s)", p.Filters.Mode)
	})
}

func (r *NotificationRouter) notifyf(level notify.Level, src notify.Source, format string, args ...any) {
	r.bus.PublishNotificationPublished(NotificationPublishedPayload{
		Level:   level,
		Source:  src,
		Message: fmt.Sprintf(format, args...),
	})
}
