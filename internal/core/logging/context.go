package logging

import "context"

type contextKey string

const (
	cycleIDKey contextKey = "cycle_id"
	stateKey   contextKey = "state"
)

// WithCycleID tags ctx with the id of the opportunity cycle being worked.
func WithCycleID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, cycleIDKey, id)
}

// WithState tags ctx with the engine state a tick is running in.
func WithState(ctx context.Context, state string) context.Context {
	return context.WithValue(ctx, stateKey, state)
}

// GetCycleID returns the cycle id from ctx, or "" if none is set.
func GetCycleID(ctx context.Context) string {
	if id, ok := ctx.Value(cycleIDKey).(string); ok {
		return id
	}
	return ""
}

// GetState returns the engine state from ctx, or "" if none is set.
func GetState(ctx context.Context) string {
	if s, ok := ctx.Value(stateKey).(string); ok {
		return s
	}
	return ""
}
