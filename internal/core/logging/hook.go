package logging

import (
	"context"

	"github.com/rs/zerolog"
)

// ContextHook copies cycle_id and state from an event's context onto the event.
type ContextHook struct{}

// Run adds contextual fields to the zerolog event.
func (h ContextHook) Run(e *zerolog.Event, _ zerolog.Level, _ string) {
	ctx := e.GetCtx()
	if ctx == nil || ctx == context.Background() {
		return
	}

	if id := GetCycleID(ctx); id != "" {
		e.Str("cycle_id", id)
	}
	if s := GetState(ctx); s != "" {
		e.Str("state", s)
	}
}
