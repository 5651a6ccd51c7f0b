package engine

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/farepilot/internal/core/control"
	"github.com/colonyops/farepilot/internal/core/eventbus"
	"github.com/colonyops/farepilot/internal/core/eventbus/testbus"
	"github.com/colonyops/farepilot/internal/core/extract"
	"github.com/colonyops/farepilot/internal/core/record"
	"github.com/colonyops/farepilot/internal/core/uitree"
)

type handlerFunc func(ctx context.Context, snap *uitree.Snapshot, sc *Shared) (control.Decision, error)

func (f handlerFunc) Handle(ctx context.Context, snap *uitree.Snapshot, sc *Shared) (control.Decision, error) {
	return f(ctx, snap, sc)
}

var stay = handlerFunc(func(context.Context, *uitree.Snapshot, *Shared) (control.Decision, error) {
	return control.NoChange(), nil
})

type tickCounter struct {
	mu    sync.Mutex
	ticks map[control.State]int
}

func (c *tickCounter) Tick(s control.State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ticks == nil {
		c.ticks = map[control.State]int{}
	}
	c.ticks[s]++
}

func (c *tickCounter) AnalysisDuration(time.Duration) {}

func (c *tickCounter) total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, v := range c.ticks {
		n += v
	}
	return n
}

type harness struct {
	engine   *Engine
	clock    *fakeClock
	device   *fakeDevice
	bus      *testbus.Bus
	ticks    *tickCounter
	notifier *captureNotifier
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()

	chain, err := extract.New(extract.DefaultRules(), extract.ModeFirst)
	require.NoError(t, err)

	h := &harness{
		clock: newFakeClock(),
		device: &fakeDevice{
			t: t,
			routes: map[string]string{
				"call_1":      "detail",
				"btn_accept":  "confirm",
				"btn_confirm": "waiting",
				"btn_dismiss": "list",
			},
			back: "list",
		},
		bus:      testbus.New(t),
		ticks:    &tickCounter{},
		notifier: &captureNotifier{},
	}

	h.engine, err = New(opts, Deps{
		Device:      h.device,
		Filters:     StaticFilters(testFilters()),
		Chain:       chain,
		Bus:         h.bus.EventBus,
		Clock:       h.clock,
		Rand:        func() float64 { return 0 },
		Notifier:    h.notifier,
		Instruments: h.ticks,
		Logger:      zerolog.Nop(),
	})
	require.NoError(t, err)
	h.device.submit = h.engine.SubmitSnapshot
	t.Cleanup(h.engine.Stop)
	return h
}

// runUntil advances in small steps until cond holds or limit passes.
func (h *harness) runUntil(t *testing.T, limit time.Duration, cond func(Status) bool) {
	t.Helper()
	const step = 10 * time.Millisecond
	for elapsed := time.Duration(0); elapsed <= limit; elapsed += step {
		if cond(h.engine.Status()) {
			return
		}
		h.clock.Advance(step)
	}
	require.FailNow(t, "condition not reached", "state %s after %s", h.engine.Status().State, limit)
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(DefaultOptions(), Deps{})
	require.Error(t, err)
}

func TestEngineHappyPath(t *testing.T) {
	h := newHarness(t, testOptions())
	h.device.show("list")

	require.NoError(t, h.engine.Start(context.Background()))
	require.ErrorIs(t, h.engine.Start(context.Background()), ErrAlreadyRunning)

	h.runUntil(t, 10*time.Second, func(s Status) bool { return s.Paused })

	st := h.engine.Status()
	assert.Equal(t, control.StateAwaitingOpportunity, st.State)
	assert.True(t, st.Running)
	assert.Nil(t, st.Target)

	assert.Equal(t, []string{"btn_refresh", "call_1", "btn_accept", "btn_confirm"}, h.device.clicked)
	require.Len(t, h.notifier.got, 1)
	assert.Equal(t, 42000, h.notifier.got[0].Price())

	h.bus.AssertPublished(t, eventbus.EventOrderAccepted)
	h.bus.AssertPublished(t, eventbus.EventEnginePaused)

	// no handler runs while paused
	before := h.ticks.total()
	h.clock.Advance(30 * time.Second)
	assert.Equal(t, before, h.ticks.total())
	assert.Equal(t, control.StateAwaitingOpportunity, h.engine.Status().State)

	h.engine.Resume()
	assert.False(t, h.engine.Status().Paused)
}

func TestEngineEscalatesWhenDetailNeverRenders(t *testing.T) {
	h := newHarness(t, testOptions())
	h.device.routes["call_1"] = "list" // click delivered, list stays on screen
	h.device.show("list")

	opened := func() int {
		n := 0
		for _, id := range h.device.clicked {
			if id == "call_1" {
				n++
			}
		}
		return n
	}

	require.NoError(t, h.engine.Start(context.Background()))
	h.runUntil(t, 10*time.Second, func(s Status) bool { return opened() > 0 && s.Target == nil })

	assert.Equal(t, testOptions().TargetAttempts, opened())

	require.Eventually(t, func() bool {
		for _, p := range h.bus.Of(eventbus.EventEngineStateChanged) {
			sc := p.(eventbus.StateChangedPayload)
			if sc.From == control.StateTargetingItem && sc.To == control.StateErrorUnknown {
				return true
			}
		}
		return false
	}, time.Second, 10*time.Millisecond)
	h.bus.AssertNotPublished(t, eventbus.EventEngineTimeout, 50*time.Millisecond)
}

func TestEngineTimeoutRecovers(t *testing.T) {
	h := newHarness(t, testOptions())
	h.device.show("other")

	require.NoError(t, h.engine.Start(context.Background()))
	h.clock.Advance(9 * time.Second)
	assert.Equal(t, control.StateListScreenDetected, h.engine.Status().State)

	h.runUntil(t, 3*time.Second, func(s Status) bool {
		return s.State == control.StateListScreenDetected && h.device.backs > 0
	})

	require.True(t, h.bus.WaitFor(eventbus.EventEngineTimeout, time.Second))
	p := h.bus.Of(eventbus.EventEngineTimeout)[0].(eventbus.EngineTimeoutPayload)
	assert.Equal(t, control.StateListScreenDetected, p.State)
	assert.Equal(t, 10*time.Second, p.Elapsed)
	assert.Equal(t, 1, h.device.backs)
}

func TestEngineStop(t *testing.T) {
	h := newHarness(t, testOptions())
	h.device.show("other")

	require.NoError(t, h.engine.Start(context.Background()))
	h.clock.Advance(time.Second)
	require.Positive(t, h.ticks.total())

	h.engine.Stop()
	h.engine.Stop()

	n := h.ticks.total()
	h.clock.Advance(time.Minute)
	assert.Equal(t, n, h.ticks.total())
	assert.Zero(t, h.clock.pending())

	st := h.engine.Status()
	assert.Equal(t, control.StateIdle, st.State)
	assert.False(t, st.Running)

	// restartable
	require.NoError(t, h.engine.Start(context.Background()))
	h.clock.Advance(0)
	assert.Greater(t, h.ticks.total(), n)
}

func TestEnginePauseDisarmsTimeout(t *testing.T) {
	h := newHarness(t, testOptions())
	h.device.show("other")

	require.NoError(t, h.engine.Start(context.Background()))
	h.clock.Advance(time.Second)

	h.engine.Pause()
	st := h.engine.Status()
	require.True(t, st.Paused)
	assert.Equal(t, control.StateListScreenDetected, st.State)

	h.clock.Advance(time.Minute)
	assert.Equal(t, control.StateListScreenDetected, h.engine.Status().State)

	h.engine.Resume()
	st = h.engine.Status()
	assert.False(t, st.Paused)
	assert.Equal(t, control.StateAwaitingOpportunity, st.State)
}

func TestEngineSnapshotGate(t *testing.T) {
	opts := testOptions()
	h := newHarness(t, opts)

	require.NoError(t, h.engine.Start(context.Background()))
	h.clock.Advance(time.Second)
	assert.Zero(t, h.ticks.total(), "no snapshot, no dispatch")

	foreign, err := uitree.ParseHTML(strings.NewReader("<html>"+screens["list"]+"</html>"), "com.other.app")
	require.NoError(t, err)
	h.engine.SubmitSnapshot(foreign)
	h.clock.Advance(time.Second)
	assert.Zero(t, h.ticks.total(), "foreign context, no dispatch")
	assert.Equal(t, control.StateAwaitingOpportunity, h.engine.Status().State)
}

func TestEngineFaults(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		panics      bool
		pauseOnFail bool
		wantState   control.State
		wantPaused  bool
		wantClass   string
	}{
		{name: "invalidated snapshot is transient", err: ErrSnapshotInvalidated, wantState: control.StateListScreenDetected, wantClass: eventbus.FaultTransient},
		{name: "privileged denial", err: ErrPrivilegedDenied, wantState: control.StateErrorUnknown, wantClass: eventbus.FaultPrivileged},
		{name: "unexpected error", err: errSoft, wantState: control.StateErrorUnknown, wantClass: eventbus.FaultFatal},
		{name: "panic", panics: true, wantState: control.StateErrorUnknown, wantClass: eventbus.FaultFatal},
		{name: "fail closed pauses", err: errSoft, pauseOnFail: true, wantState: control.StateErrorUnknown, wantPaused: true, wantClass: eventbus.FaultFatal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := testOptions()
			opts.PauseOnFailure = tt.pauseOnFail
			h := newHarness(t, opts)
			h.device.show("other")

			var calls int
			h.engine.handlers[control.StateListScreenDetected] = handlerFunc(func(context.Context, *uitree.Snapshot, *Shared) (control.Decision, error) {
				calls++
				if calls > 1 {
					return control.NoChange(), nil
				}
				if tt.panics {
					panic("boom")
				}
				return control.NoChange(), tt.err
			})
			h.engine.handlers[control.StateErrorUnknown] = stay

			require.NoError(t, h.engine.Start(context.Background()))
			// awaiting -> list, then the faulting tick
			h.clock.Advance(0)
			h.clock.Advance(100 * time.Millisecond)

			st := h.engine.Status()
			assert.Equal(t, tt.wantState, st.State)
			assert.Equal(t, tt.wantPaused, st.Paused)
			assert.True(t, st.Running, "faults never stop the loop")

			require.True(t, h.bus.WaitFor(eventbus.EventEngineFault, time.Second))
			p := h.bus.Of(eventbus.EventEngineFault)[0].(eventbus.EngineFaultPayload)
			assert.Equal(t, tt.wantClass, p.Class)

			if tt.err == ErrSnapshotInvalidated {
				assert.Nil(t, h.engine.cell.Latest())
			}
		})
	}
}

func TestEngineInvalidDecisionTarget(t *testing.T) {
	h := newHarness(t, testOptions())
	h.device.show("other")
	h.engine.handlers[control.StateListScreenDetected] = handlerFunc(func(context.Context, *uitree.Snapshot, *Shared) (control.Decision, error) {
		return control.Transition("nowhere", "bad"), nil
	})
	h.engine.handlers[control.StateErrorUnknown] = stay

	require.NoError(t, h.engine.Start(context.Background()))
	h.clock.Advance(100 * time.Millisecond)
	assert.Equal(t, control.StateErrorUnknown, h.engine.Status().State)
}

func TestTimeoutArmedOnEveryStateChange(t *testing.T) {
	h := newHarness(t, testOptions())
	e := h.engine
	for s := range e.handlers {
		e.handlers[s] = stay
	}
	require.NoError(t, e.Start(context.Background()))

	e.mu.Lock()
	defer e.mu.Unlock()

	for _, s := range control.AllStates() {
		prev := e.timeout
		e.setState(s, control.KindTransition, "test")

		if prev != nil {
			assert.True(t, prev.(*fakeTimer).stopped, "previous timer disarmed entering %s", s)
		}
		if s.ArmsTimeout() {
			assert.NotNil(t, e.timeout, "timeout armed for %s", s)
		} else {
			assert.Nil(t, e.timeout, "no timeout for %s", s)
		}
	}
}

func TestTimeoutNeverFiresAgainstNewState(t *testing.T) {
	h := newHarness(t, testOptions())
	e := h.engine
	for s := range e.handlers {
		e.handlers[s] = stay
	}
	h.device.show("other")
	require.NoError(t, e.Start(context.Background()))

	e.mu.Lock()
	e.setState(control.StateRefreshing, control.KindTransition, "test")
	e.mu.Unlock()

	h.clock.Advance(9 * time.Second)
	e.mu.Lock()
	e.setState(control.StateAnalyzing, control.KindTransition, "test")
	e.mu.Unlock()

	h.clock.Advance(9 * time.Second)
	assert.Equal(t, control.StateAnalyzing, e.Status().State)

	h.clock.Advance(2 * time.Second)
	require.True(t, h.bus.WaitFor(eventbus.EventEngineTimeout, time.Second))

	timeouts := h.bus.Of(eventbus.EventEngineTimeout)
	require.Len(t, timeouts, 1)
	assert.Equal(t, control.StateAnalyzing, timeouts[0].(eventbus.EngineTimeoutPayload).State)
}

func TestTargetClearedOnEntry(t *testing.T) {
	h := newHarness(t, testOptions())
	e := h.engine
	rec := record.New(record.Fields{Origin: "A", Destination: "B", Price: 1})

	e.mu.Lock()
	defer e.mu.Unlock()

	for _, s := range control.AllStates() {
		r := rec
		e.shared.Target = &r
		e.setState(s, control.KindTransition, "test")
		if s == control.StateAwaitingOpportunity || s == control.StateErrorAlreadyTaken {
			assert.Nil(t, e.shared.Target, s.String())
		} else {
			assert.NotNil(t, e.shared.Target, s.String())
		}
	}
}

func TestConfirmTimeoutIsLonger(t *testing.T) {
	opts := DefaultOptions()
	assert.Equal(t, 20*time.Second, opts.timeout(control.StateAwaitingConfirmation))
	assert.Equal(t, 10*time.Second, opts.timeout(control.StateRefreshing))

	opts.Timeouts = map[control.State]time.Duration{control.StateRefreshing: 3 * time.Second}
	assert.Equal(t, 3*time.Second, opts.timeout(control.StateRefreshing))
}
