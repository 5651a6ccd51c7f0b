package eventbus

import (
	"context"
	"sync"
)

// Event names a published event type.
type Event string

const (
	EventClickAttempted        Event = "click.attempted"
	EventEngineFault           Event = "engine.fault"
	EventEnginePaused          Event = "engine.paused"
	EventEngineStateChanged    Event = "engine.state-changed"
	EventEngineTimeout         Event = "engine.timeout"
	EventFiltersReloaded       Event = "filters.reloaded"
	EventNotificationPublished Event = "notification.published"
	EventOrderAccepted         Event = "order.accepted"
	EventRecordEvaluated       Event = "record.evaluated"
)

type envelope struct {
	event   Event
	payload any
}

// EventBus dispatches events on a single goroutine started with Start.
// Publishing never blocks; events are dropped when the buffer is full.
// A nil *EventBus accepts publishes and discards them.
type EventBus struct {
	ch    chan envelope
	hooks hooks

	mu   sync.RWMutex
	subs map[Event][]func(any)
}

// New creates a bus with the given buffer size.
func New(size int) *EventBus {
	if size <= 0 {
		size = 1
	}
	return &EventBus{
		ch:   make(chan envelope, size),
		subs: make(map[Event][]func(any)),
	}
}

// Start dispatches events until ctx is canceled.
func (bus *EventBus) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case env := <-bus.ch:
			bus.dispatch(env)
		}
	}
}

func (bus *EventBus) dispatch(env envelope) {
	bus.mu.RLock()
	subs := make([]func(any), len(bus.subs[env.event]))
	copy(subs, bus.subs[env.event])
	bus.mu.RUnlock()

	for _, fn := range subs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					bus.runOnPanic(env.event, env.payload, r)
				}
			}()
			fn(env.payload)
		}()
	}
}

func (bus *EventBus) subscribe(event Event, fn func(any)) {
	bus.mu.Lock()
	bus.subs[event] = append(bus.subs[event], fn)
	bus.mu.Unlock()
	bus.runOnSubscribe(event)
}

func (bus *EventBus) publish(event Event, payload any) {
	if bus == nil {
		return
	}
	bus.send(event, payload)
}

func subscribeTyped[T any](bus *EventBus, event Event, fn func(T)) {
	bus.subscribe(event, func(p any) {
		if v, ok := p.(T); ok {
			fn(v)
		}
	})
}

func (bus *EventBus) PublishClickAttempted(p ClickAttemptedPayload) {
	bus.publish(EventClickAttempted, p)
}

func (bus *EventBus) SubscribeClickAttempted(fn func(ClickAttemptedPayload)) {
	subscribeTyped(bus, EventClickAttempted, fn)
}

func (bus *EventBus) PublishEngineFault(p EngineFaultPayload) {
	bus.publish(EventEngineFault, p)
}

func (bus *EventBus) SubscribeEngineFault(fn func(EngineFaultPayload)) {
	subscribeTyped(bus, EventEngineFault, fn)
}

func (bus *EventBus) PublishEnginePaused(p EnginePausedPayload) {
	bus.publish(EventEnginePaused, p)
}

func (bus *EventBus) SubscribeEnginePaused(fn func(EnginePausedPayload)) {
	subscribeTyped(bus, EventEnginePaused, fn)
}

func (bus *EventBus) PublishEngineStateChanged(p StateChangedPayload) {
	bus.publish(EventEngineStateChanged, p)
}

func (bus *EventBus) SubscribeEngineStateChanged(fn func(StateChangedPayload)) {
	subscribeTyped(bus, EventEngineStateChanged, fn)
}

func (bus *EventBus) PublishEngineTimeout(p EngineTimeoutPayload) {
	bus.publish(EventEngineTimeout, p)
}

func (bus *EventBus) SubscribeEngineTimeout(fn func(EngineTimeoutPayload)) {
	subscribeTyped(bus, EventEngineTimeout, fn)
}

func (bus *EventBus) PublishFiltersReloaded(p FiltersReloadedPayload) {
	bus.publish(EventFiltersReloaded, p)
}

func (bus *EventBus) SubscribeFiltersReloaded(fn func(FiltersReloadedPayload)) {
	subscribeTyped(bus, EventFiltersReloaded, fn)
}

func (bus *EventBus) PublishNotificationPublished(p NotificationPublishedPayload) {
	bus.publish(EventNotificationPublished, p)
}

func (bus *EventBus) SubscribeNotificationPublished(fn func(NotificationPublishedPayload)) {
	subscribeTyped(bus, EventNotificationPublished, fn)
}

func (bus *EventBus) PublishOrderAccepted(p OrderAcceptedPayload) {
	bus.publish(EventOrderAccepted, p)
}

func (bus *EventBus) SubscribeOrderAccepted(fn func(OrderAcceptedPayload)) {
	subscribeTyped(bus, EventOrderAccepted, fn)
}

func (bus *EventBus) PublishRecordEvaluated(p RecordEvaluatedPayload) {
	bus.publish(EventRecordEvaluated, p)
}

func (bus *EventBus) SubscribeRecordEvaluated(fn func(RecordEvaluatedPayload)) {
	subscribeTyped(bus, EventRecordEvaluated, fn)
}
