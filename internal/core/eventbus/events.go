// Package eventbus provides a typed publish/subscribe event bus for
// cross-component communication within farepilot.
package eventbus

import (
	"time"

	"github.com/colonyops/farepilot/internal/core/control"
	"github.com/colonyops/farepilot/internal/core/filter"
	"github.com/colonyops/farepilot/internal/core/notify"
	"github.com/colonyops/farepilot/internal/core/record"
)

// Events defines all event types and their payload structs.
var Events = map[string]any{
	// Keep list sorted A-Z
	"click.attempted":        ClickAttemptedPayload{},
	"engine.fault":           EngineFaultPayload{},
	"engine.paused":          EnginePausedPayload{},
	"engine.state-changed":   StateChangedPayload{},
	"engine.timeout":         EngineTimeoutPayload{},
	"filters.reloaded":       FiltersReloadedPayload{},
	"notification.published": NotificationPublishedPayload{},
	"order.accepted":         OrderAcceptedPayload{},
	"record.evaluated":       RecordEvaluatedPayload{},
}

// StateChangedPayload is emitted on every applied transition.
type StateChangedPayload struct {
	CycleID string
	From    control.State
	To      control.State
	Kind    control.Kind
	Reason  string
	At      time.Time
}

// EnginePausedPayload is emitted when the engine pauses or resumes.
type EnginePausedPayload struct {
	Paused bool
	State  control.State
	Reason string
}

// EngineTimeoutPayload is emitted when a state outlives its timeout.
type EngineTimeoutPayload struct {
	CycleID string
	State   control.State
	Elapsed time.Duration
}

// Fault classes carried by EngineFaultPayload.
const (
	FaultTransient  = "transient"
	FaultPrivileged = "privileged"
	FaultFatal      = "fatal"
)

// EngineFaultPayload is emitted when a handler fails.
type EngineFaultPayload struct {
	CycleID string
	State   control.State
	Class   string
	Err     string
}

// RecordEvaluatedPayload is emitted for every item the analysis pass
// extracts and evaluates.
type RecordEvaluatedPayload struct {
	CycleID  string
	Record   record.Record
	Accepted bool
	Branch   filter.Branch
	Reason   string
}

// ClickAttemptedPayload is emitted for every input synthesis attempt.
type ClickAttemptedPayload struct {
	CycleID string
	State   control.State
	Channel string
	X, Y    int
	Target  string
	OK      bool
	Err     string
}

// OrderAcceptedPayload is emitted when the confirm workflow completes.
type OrderAcceptedPayload struct {
	CycleID string
	Record  record.Record
	At      time.Time
}

// FiltersReloadedPayload is emitted when the filters file changes on disk.
type FiltersReloadedPayload struct {
	Filters filter.Config
}

// NotificationPublishedPayload carries a user-facing notification.
type NotificationPublishedPayload struct {
	Level   notify.Level
	Source  notify.Source
	Message string
}
