// Package engine runs the control loop: it polls the latest UI snapshot,
// dispatches the handler for the current state and applies its decision.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/colonyops/farepilot/internal/core/control"
	"github.com/colonyops/farepilot/internal/core/eventbus"
	"github.com/colonyops/farepilot/internal/core/extract"
	"github.com/colonyops/farepilot/internal/core/logging"
	"github.com/colonyops/farepilot/internal/core/record"
	"github.com/colonyops/farepilot/internal/core/uitree"
)

// Deps are the engine's collaborators. Device, Filters and Chain are
// required.
type Deps struct {
	Device      Device
	Filters     FilterSource
	Chain       *extract.Chain
	Bus         *eventbus.EventBus
	Clock       Clock
	Rand        func() float64
	Notifier    Notifier
	Instruments Instruments
	Logger      zerolog.Logger
}

// Status is a point-in-time view of the engine for display.
type Status struct {
	State     control.State
	Running   bool
	Paused    bool
	CycleID   string
	EnteredAt time.Time
	Target    *record.Record
}

// Engine owns the current state, the shared context and the timers. All
// ticks and control calls are serialized on mu, so no two handlers ever run
// concurrently.
type Engine struct {
	env      *env
	clock    Clock
	handlers map[control.State]Handler
	cell     uitree.Cell

	mu         sync.Mutex
	ctx        context.Context
	state      control.State
	running    bool
	paused     bool
	epoch      uint64
	enteredAt  time.Time
	tick       Timer
	timeout    Timer
	timeoutGen uint64
	shared     Shared
}

// New builds an idle engine.
func New(opts Options, deps Deps) (*Engine, error) {
	switch {
	case deps.Device == nil:
		return nil, errors.New("engine: device is required")
	case deps.Filters == nil:
		return nil, errors.New("engine: filter source is required")
	case deps.Chain == nil:
		return nil, errors.New("engine: extraction chain is required")
	}
	if deps.Clock == nil {
		deps.Clock = RealClock()
	}
	if deps.Instruments == nil {
		deps.Instruments = nopInstruments{}
	}

	logInterval := opts.RefreshLogInterval
	if logInterval <= 0 {
		logInterval = time.Second
	}

	env := &env{
		opts:        opts,
		chain:       deps.Chain,
		filters:     deps.Filters,
		bus:         deps.Bus,
		notifier:    deps.Notifier,
		instruments: deps.Instruments,
		rand:        deps.Rand,
		clock:       deps.Clock,
		log:         deps.Logger,
		refreshLog:  rate.NewLimiter(rate.Every(logInterval), 1),
	}

	e := &Engine{
		env:      env,
		clock:    deps.Clock,
		handlers: env.handlers(),
		state:    control.StateIdle,
		shared: Shared{
			PauseOnFailure: opts.PauseOnFailure,
			Device:         deps.Device,
		},
	}

	for _, s := range control.AllStates() {
		if _, ok := e.handlers[s]; !ok {
			return nil, fmt.Errorf("engine: no handler registered for state %s", s)
		}
	}

	return e, nil
}

// SubmitSnapshot replaces the latest observed tree. It never blocks on a
// tick in progress; the next tick uses whatever is newest.
func (e *Engine) SubmitSnapshot(s *uitree.Snapshot) {
	e.cell.Submit(s)
}

// Start leaves idle for awaiting-opportunity and begins ticking. Device
// calls made by handlers use ctx.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		return ErrAlreadyRunning
	}

	e.ctx = ctx
	e.running = true
	e.paused = false
	e.epoch++
	e.shared.reset()

	e.env.log.Info().Msg("engine started")
	e.setState(control.StateAwaitingOpportunity, control.KindTransition, "start")
	e.schedule(0)
	return nil
}

// Stop halts the loop and returns to idle. It is idempotent; once it
// returns no handler runs until the next Start.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.running {
		return
	}

	e.running = false
	e.paused = false
	e.epoch++
	if e.tick != nil {
		e.tick.Stop()
		e.tick = nil
	}
	e.setState(control.StateIdle, control.KindTransition, "stop")
	e.shared.Target = nil
	e.env.log.Info().Msg("engine stopped")
}

// Pause suspends handler execution. The state machine position is kept and
// the state timeout is disarmed until Resume.
func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pause("operator")
}

// Resume clears a pause and re-enters awaiting-opportunity. It does
// nothing on an engine that is not paused.
func (e *Engine) Resume() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.running || !e.paused {
		return
	}

	e.paused = false
	e.env.log.Info().Msg("engine resumed")
	e.env.bus.PublishEnginePaused(eventbus.EnginePausedPayload{
		Paused: false,
		State:  e.state,
		Reason: "resume",
	})
	e.setState(control.StateAwaitingOpportunity, control.KindTransition, "resume")
	if e.tick != nil {
		e.tick.Stop()
	}
	e.schedule(0)
}

// Status returns the current position of the engine.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := Status{
		State:     e.state,
		Running:   e.running,
		Paused:    e.paused,
		CycleID:   e.shared.CycleID,
		EnteredAt: e.enteredAt,
	}
	if e.shared.Target != nil {
		t := *e.shared.Target
		st.Target = &t
	}
	return st
}

func (e *Engine) pause(reason string) {
	if !e.running || e.paused {
		return
	}
	e.paused = true
	e.disarmTimeout()
	e.env.log.Info().Str("state", e.state.String()).Str("reason", reason).Msg("engine paused")
	e.env.bus.PublishEnginePaused(eventbus.EnginePausedPayload{
		Paused: true,
		State:  e.state,
		Reason: reason,
	})
}

// schedule arms the next tick for the current epoch.
func (e *Engine) schedule(d time.Duration) {
	epoch := e.epoch
	e.tick = e.clock.AfterFunc(d, func() { e.run(epoch) })
}

func (e *Engine) run(epoch uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.running || epoch != e.epoch {
		return
	}
	e.schedule(e.step())
}

// step runs one tick and returns the delay before the next.
func (e *Engine) step() time.Duration {
	opts := e.env.opts

	snap := e.cell.Latest()
	if !snap.Live(opts.Context) {
		return opts.NoSnapshotDelay
	}
	if e.paused {
		return opts.PausedDelay
	}

	if next, ok := e.state.AutoAdvance(); ok {
		e.setState(next, control.KindTransition, "auto-advance from "+e.state.String())
	}

	e.shared.Now = e.clock.Now()
	ctx := logging.WithState(logging.WithCycleID(e.ctx, e.shared.CycleID), e.state.String())
	e.env.instruments.Tick(e.state)

	d, err := e.invoke(ctx, e.handlers[e.state], snap)
	if err != nil {
		return e.fault(ctx, snap, err)
	}
	e.apply(d)
	return opts.delay(e.state)
}

// invoke calls h, converting a panic into an error.
func (e *Engine) invoke(ctx context.Context, h Handler, snap *uitree.Snapshot) (d control.Decision, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", errHandlerPanic, r)
		}
	}()
	return h.Handle(ctx, snap, &e.shared)
}

// fault classifies a handler error and returns the backoff.
func (e *Engine) fault(ctx context.Context, snap *uitree.Snapshot, err error) time.Duration {
	opts := e.env.opts

	class, delay := eventbus.FaultFatal, opts.FaultDelay
	switch {
	case errors.Is(err, ErrSnapshotInvalidated):
		class, delay = eventbus.FaultTransient, opts.InvalidatedDelay
	case errors.Is(err, ErrPrivilegedDenied):
		class, delay = eventbus.FaultPrivileged, opts.PrivilegedDelay
	}

	e.env.log.Warn().Ctx(ctx).Err(err).Str("class", class).Dur("backoff", delay).Msg("handler fault")
	e.env.bus.PublishEngineFault(eventbus.EngineFaultPayload{
		CycleID: e.shared.CycleID,
		State:   e.state,
		Class:   class,
		Err:     err.Error(),
	})

	if class == eventbus.FaultTransient {
		e.cell.Invalidate(snap)
		return delay
	}

	e.setState(control.StateErrorUnknown, control.KindError, fmt.Sprintf("%s fault: %v", class, err))
	if e.shared.PauseOnFailure {
		e.pause(class + " fault")
	}
	return delay
}

func (e *Engine) apply(d control.Decision) {
	switch d.Kind {
	case control.KindNoChange:
		return
	case control.KindTransition, control.KindError, control.KindPauseAndTransition:
		if _, ok := e.handlers[d.Next]; !ok {
			e.setState(control.StateErrorUnknown, control.KindError, fmt.Sprintf("invalid transition target %q", d.Next))
			return
		}
		e.setState(d.Next, d.Kind, d.Reason)
		if d.Kind == control.KindPauseAndTransition {
			e.pause(d.Reason)
		}
	default:
		e.setState(control.StateErrorUnknown, control.KindError, "unknown decision "+d.Kind.String())
	}
}

// setState moves to next and re-arms the timeout in the same critical
// section, so a timer armed for the old state can never fire against the
// new one.
func (e *Engine) setState(next control.State, kind control.Kind, reason string) {
	from := e.state
	e.state = next
	e.enteredAt = e.clock.Now()

	if next.ClearsTarget() {
		e.shared.Target = nil
	}
	if next == control.StateAwaitingOpportunity {
		e.shared.CycleID = uuid.NewString()
	}
	if h, ok := e.handlers[next].(enterer); ok {
		h.Enter(from)
	}
	e.armTimeout()

	ev := e.env.log.Info()
	if kind == control.KindError {
		ev = e.env.log.Warn()
	}
	ev.Str("cycle_id", e.shared.CycleID).
		Str("from", from.String()).
		Str("to", next.String()).
		Str("kind", kind.String()).
		Str("reason", reason).
		Msg("state changed")

	e.env.bus.PublishEngineStateChanged(eventbus.StateChangedPayload{
		CycleID: e.shared.CycleID,
		From:    from,
		To:      next,
		Kind:    kind,
		Reason:  reason,
		At:      e.enteredAt,
	})
}

func (e *Engine) disarmTimeout() {
	e.timeoutGen++
	if e.timeout != nil {
		e.timeout.Stop()
		e.timeout = nil
	}
}

func (e *Engine) armTimeout() {
	e.disarmTimeout()
	if !e.running || e.paused || !e.state.ArmsTimeout() {
		return
	}

	gen, epoch, state := e.timeoutGen, e.epoch, e.state
	d := e.env.opts.timeout(state)
	if d <= 0 {
		return
	}
	e.timeout = e.clock.AfterFunc(d, func() { e.expire(gen, epoch) })
}

func (e *Engine) expire(gen, epoch uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.running || e.paused || epoch != e.epoch || gen != e.timeoutGen {
		return
	}

	state := e.state
	elapsed := e.clock.Now().Sub(e.enteredAt)
	e.env.log.Warn().
		Str("cycle_id", e.shared.CycleID).
		Str("state", state.String()).
		Dur("elapsed", elapsed).
		Msg("state timed out")
	e.env.bus.PublishEngineTimeout(eventbus.EngineTimeoutPayload{
		CycleID: e.shared.CycleID,
		State:   state,
		Elapsed: elapsed,
	})
	e.setState(control.StateErrorTimeout, control.KindError,
		fmt.Sprintf("timeout after %s in %s", elapsed.Round(time.Millisecond), state))
}
