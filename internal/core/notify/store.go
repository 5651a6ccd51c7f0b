// Package notify defines operator-facing notifications.
package notify

import (
	"context"
	"fmt"
	"time"
)

// Level is the severity of a notification.
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Severity orders levels; unknown levels rank below info.
func (l Level) Severity() int {
	switch l {
	case LevelInfo:
		return 1
	case LevelWarning:
		return 2
	case LevelError:
		return 3
	default:
		return 0
	}
}

// ParseLevel accepts info, warning (or warn) and error. Empty means info.
func ParseLevel(s string) (Level, error) {
	switch s {
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarning, nil
	case "error":
		return LevelError, nil
	}
	return "", fmt.Errorf("unknown notification level %q", s)
}

// Source names the engine event a notification came from.
type Source string

const (
	SourceAccept  Source = "accept"
	SourceTimeout Source = "timeout"
	SourceFault   Source = "fault"
	SourcePause   Source = "pause"
	SourceFilters Source = "filters"
)

// Notification is one message shown to the operator.
type Notification struct {
	ID        int64     `json:"id,omitempty"`
	Level     Level     `json:"level"`
	Source    Source    `json:"source,omitempty"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// Query narrows a listing. Zero values mean no limit and every level.
type Query struct {
	Limit    int
	MinLevel Level
}

// Store persists notifications so `farepilot history` can show them.
type Store interface {
	Save(ctx context.Context, n Notification) (int64, error)
	List(ctx context.Context, q Query) ([]Notification, error)
}
