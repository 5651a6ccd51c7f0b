package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/colonyops/farepilot/internal/core/eventbus"
)

// drainEventsMsg tells the model the buffer has events to drain.
type drainEventsMsg struct{}

// EventBuffer collects bus payloads for the dashboard and emits coalesced
// drain signals. Bus subscribers never block on the UI.
type EventBuffer struct {
	mu     sync.Mutex
	events []any
	limit  int
	signal chan struct{}
}

// NewEventBuffer constructs a buffer holding at most limit undrained
// events; older ones are discarded first.
func NewEventBuffer(limit int) *EventBuffer {
	if limit <= 0 {
		limit = 256
	}
	return &EventBuffer{
		limit:  limit,
		signal: make(chan struct{}, 1),
	}
}

// Attach subscribes the buffer to the events the dashboard shows.
func (b *EventBuffer) Attach(bus *eventbus.EventBus) {
	bus.SubscribeEngineStateChanged(func(p eventbus.StateChangedPayload) { b.Push(p) })
	bus.SubscribeRecordEvaluated(func(p eventbus.RecordEvaluatedPayload) { b.Push(p) })
	bus.SubscribeOrderAccepted(func(p eventbus.OrderAcceptedPayload) { b.Push(p) })
	bus.SubscribeNotificationPublished(func(p eventbus.NotificationPublishedPayload) { b.Push(p) })
}

// Push appends an event and emits a non-blocking drain signal.
func (b *EventBuffer) Push(ev any) {
	b.mu.Lock()
	b.events = append(b.events, ev)
	if over := len(b.events) - b.limit; over > 0 {
		b.events = append(b.events[:0], b.events[over:]...)
	}
	b.mu.Unlock()

	select {
	case b.signal <- struct{}{}:
	default:
	}
}

// Drain returns all buffered events and clears the buffer.
func (b *EventBuffer) Drain() []any {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.events) == 0 {
		return nil
	}

	out := make([]any, len(b.events))
	copy(out, b.events)
	b.events = b.events[:0]
	return out
}

// WaitForSignal blocks until there are events ready to drain.
func (b *EventBuffer) WaitForSignal() tea.Cmd {
	return func() tea.Msg {
		<-b.signal
		return drainEventsMsg{}
	}
}
