package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/farepilot/internal/core/control"
	"github.com/colonyops/farepilot/internal/core/eventbus"
	"github.com/colonyops/farepilot/internal/core/eventbus/testbus"
	"github.com/colonyops/farepilot/internal/core/filter"
	"github.com/colonyops/farepilot/internal/core/record"
)

var tickTime = time.Date(2026, 10, 17, 10, 0, 0, 0, time.UTC)

func listRecord(t *testing.T, env *env, i int) record.Record {
	t.Helper()
	recs := env.chain.ExtractAll(screen(t, "list").FindByID("call_list"))
	require.Greater(t, len(recs), i)
	return recs[i]
}

// steppingClock moves forward by step on every Now call.
type steppingClock struct {
	now  time.Time
	step time.Duration
}

func (c *steppingClock) Now() time.Time {
	now := c.now
	c.now = c.now.Add(c.step)
	return now
}

func (c *steppingClock) AfterFunc(time.Duration, func()) Timer { return nil }

type durationRecorder struct {
	nopInstruments
	got []time.Duration
}

func (r *durationRecorder) AnalysisDuration(d time.Duration) { r.got = append(r.got, d) }

func TestRefreshDelayBounds(t *testing.T) {
	const base = 5.0
	for range 1000 {
		d := RefreshDelay(base, nil)
		assert.GreaterOrEqual(t, d, 4500*time.Millisecond)
		assert.LessOrEqual(t, d, 5500*time.Millisecond)
	}

	assert.InDelta(t, float64(4500*time.Millisecond), float64(RefreshDelay(base, func() float64 { return 0 })), float64(time.Microsecond))
	assert.InDelta(t, float64(5*time.Second), float64(RefreshDelay(base, func() float64 { return 0.5 })), float64(time.Microsecond))
}

func TestListHandlerRefreshGate(t *testing.T) {
	tests := []struct {
		name string
		ago  time.Duration
		want control.Kind
	}{
		{name: "4.4s ago is too early", ago: 4400 * time.Millisecond, want: control.KindNoChange},
		{name: "4.6s ago is due", ago: 4600 * time.Millisecond, want: control.KindTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, testOptions())
			h := &listHandler{env: env}
			sc := &Shared{Now: tickTime, LastRefresh: tickTime.Add(-tt.ago)}

			d, err := h.Handle(context.Background(), screen(t, "list"), sc)
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.Kind)
			if tt.want == control.KindTransition {
				assert.Equal(t, control.StateRefreshing, d.Next)
				assert.Equal(t, tt.ago, sc.RefreshElapsed)
			}
			assert.InDelta(t, float64(4500*time.Millisecond), float64(sc.RefreshTarget), float64(time.Microsecond))
			assert.InDelta(t, float64(4500*time.Millisecond), float64(sc.RefreshMin), float64(time.Microsecond))
			assert.InDelta(t, float64(5500*time.Millisecond), float64(sc.RefreshMax), float64(time.Microsecond))
		})
	}
}

func TestListHandlerKeepsTargetUntilRefresh(t *testing.T) {
	env := newTestEnv(t, testOptions())
	draws := []float64{1, 0, 0.5} // 5.5s, then 4.5s, then 5s
	var drawn int
	env.rand = func() float64 {
		v := draws[drawn]
		drawn++
		return v
	}
	h := &listHandler{env: env}
	sc := &Shared{Now: tickTime, LastRefresh: tickTime.Add(-5 * time.Second), Device: &fakeDevice{t: t}}

	for range 5 {
		d, err := h.Handle(context.Background(), screen(t, "list"), sc)
		require.NoError(t, err)
		assert.Equal(t, control.KindNoChange, d.Kind, "5s elapsed is short of the 5.5s target")
	}
	assert.Equal(t, 1, drawn)
	assert.InDelta(t, float64(5500*time.Millisecond), float64(sc.RefreshTarget), float64(time.Microsecond))

	sc.Now = tickTime.Add(600 * time.Millisecond)
	d, err := h.Handle(context.Background(), screen(t, "list"), sc)
	require.NoError(t, err)
	assert.Equal(t, control.StateRefreshing, d.Next)

	r := &refreshHandler{env: env}
	_, err = r.Handle(context.Background(), screen(t, "list"), sc)
	require.NoError(t, err)
	assert.Zero(t, sc.RefreshTarget, "the next refresh draws a new target")

	_, err = h.Handle(context.Background(), screen(t, "list"), sc)
	require.NoError(t, err)
	assert.Equal(t, 2, drawn)
	assert.InDelta(t, float64(4500*time.Millisecond), float64(sc.RefreshTarget), float64(time.Microsecond))
}

func TestListHandlerEdges(t *testing.T) {
	env := newTestEnv(t, testOptions())
	h := &listHandler{env: env}

	d, err := h.Handle(context.Background(), screen(t, "other"), &Shared{Now: tickTime})
	require.NoError(t, err)
	assert.Equal(t, control.KindNoChange, d.Kind, "list not showing is not an error")

	d, err = h.Handle(context.Background(), screen(t, "list"), &Shared{Now: tickTime})
	require.NoError(t, err)
	assert.Equal(t, control.StateRefreshing, d.Next, "never refreshed refreshes at once")
}

func TestRefreshHandler(t *testing.T) {
	env := newTestEnv(t, testOptions())
	h := &refreshHandler{env: env}

	dev := &fakeDevice{t: t}
	sc := &Shared{Now: tickTime, Device: dev}
	d, err := h.Handle(context.Background(), screen(t, "list"), sc)
	require.NoError(t, err)
	assert.Equal(t, control.StateAnalyzing, d.Next)
	assert.Equal(t, tickTime, sc.LastRefresh)
	assert.Equal(t, []string{"btn_refresh"}, dev.clicked)

	d, err = h.Handle(context.Background(), screen(t, "other"), &Shared{Now: tickTime, Device: dev})
	require.NoError(t, err)
	assert.Equal(t, control.KindError, d.Kind)
	assert.Equal(t, control.StateErrorUnknown, d.Next)

	failing := &fakeDevice{t: t, activateErr: errSoft, tapErr: errSoft}
	sc = &Shared{Now: tickTime, Device: failing}
	d, err = h.Handle(context.Background(), screen(t, "list"), sc)
	require.NoError(t, err)
	assert.Equal(t, control.StateErrorUnknown, d.Next)
	assert.True(t, sc.LastRefresh.IsZero())
}

func TestAnalyzeHandler(t *testing.T) {
	t.Run("picks the highest eligible price", func(t *testing.T) {
		env := newTestEnv(t, testOptions())
		tb := testbus.New(t)
		env.bus = tb.EventBus
		h := &analyzeHandler{env: env}

		sc := &Shared{Now: tickTime}
		d, err := h.Handle(context.Background(), screen(t, "list"), sc)
		require.NoError(t, err)
		assert.Equal(t, control.StateTargetingItem, d.Next)
		require.NotNil(t, sc.Target)
		assert.Equal(t, 42000, sc.Target.Price())
		assert.Equal(t, "Seoul Station", sc.Target.Origin())

		require.True(t, tb.WaitForCount(eventbus.EventRecordEvaluated, 3, time.Second))
		for _, p := range tb.Of(eventbus.EventRecordEvaluated) {
			ev := p.(eventbus.RecordEvaluatedPayload)
			assert.Equal(t, ev.Accepted, ev.Reason == "", "reason present exactly when rejected")
			if ev.Record.Category() == "Hourly" {
				assert.False(t, ev.Accepted)
			}
		}
	})

	t.Run("duration is measured on the engine clock", func(t *testing.T) {
		env := newTestEnv(t, testOptions())
		env.clock = &steppingClock{now: tickTime, step: 25 * time.Millisecond}
		rec := &durationRecorder{}
		env.instruments = rec
		h := &analyzeHandler{env: env}

		_, err := h.Handle(context.Background(), screen(t, "list"), &Shared{Now: tickTime})
		require.NoError(t, err)
		assert.Equal(t, []time.Duration{25 * time.Millisecond}, rec.got)
	})

	t.Run("nothing eligible returns to awaiting", func(t *testing.T) {
		env := newTestEnv(t, testOptions())
		cfg := filter.Default()
		cfg.MinAmount = 1_000_000
		env.filters = StaticFilters(cfg)
		h := &analyzeHandler{env: env}

		sc := &Shared{Now: tickTime}
		d, err := h.Handle(context.Background(), screen(t, "list"), sc)
		require.NoError(t, err)
		assert.Equal(t, control.StateAwaitingOpportunity, d.Next)
		assert.Nil(t, sc.Target)
	})

	t.Run("invalid configuration is an error", func(t *testing.T) {
		env := newTestEnv(t, testOptions())
		env.filters = StaticFilters(filter.Config{Mode: "bogus"})
		h := &analyzeHandler{env: env}

		d, err := h.Handle(context.Background(), screen(t, "list"), &Shared{Now: tickTime})
		require.NoError(t, err)
		assert.Equal(t, control.KindError, d.Kind)
		assert.Equal(t, control.StateErrorUnknown, d.Next)
	})
}

func TestTargetHandlerBoundedRetry(t *testing.T) {
	env := newTestEnv(t, testOptions())
	rec := listRecord(t, env, 1)

	dev := &fakeDevice{t: t, activateErr: errSoft, tapErr: errSoft}
	sc := &Shared{Target: &rec, Device: dev}
	h := &targetHandler{env: env}
	h.Enter(control.StateAnalyzing)

	snap := screen(t, "list")
	for i := range 3 {
		d, err := h.Handle(context.Background(), snap, sc)
		require.NoError(t, err)
		assert.Equal(t, control.KindNoChange, d.Kind, "attempt %d", i+1)
	}

	d, err := h.Handle(context.Background(), snap, sc)
	require.NoError(t, err)
	assert.Equal(t, control.KindError, d.Kind)
	assert.Equal(t, control.StateErrorUnknown, d.Next)
	assert.Equal(t, 3, dev.activations)
	assert.Equal(t, 3, dev.taps)
}

func TestTargetHandler(t *testing.T) {
	env := newTestEnv(t, testOptions())
	rec := listRecord(t, env, 1)

	t.Run("opens the item", func(t *testing.T) {
		dev := &fakeDevice{t: t}
		h := &targetHandler{env: env}
		d, err := h.Handle(context.Background(), screen(t, "list"), &Shared{Target: &rec, Device: dev})
		require.NoError(t, err)
		assert.Equal(t, control.StateDetailScreenDetected, d.Next)
		assert.Equal(t, []string{"call_1"}, dev.clicked)
	})

	t.Run("falls back to a tap on the item bounds", func(t *testing.T) {
		dev := &fakeDevice{t: t, activateErr: errSoft}
		dev.cur = screen(t, "list")
		h := &targetHandler{env: env}
		d, err := h.Handle(context.Background(), dev.cur, &Shared{Target: &rec, Device: dev})
		require.NoError(t, err)
		assert.Equal(t, control.StateDetailScreenDetected, d.Next)
		assert.Equal(t, 1, dev.taps)
		assert.Equal(t, []string{"call_1"}, dev.clicked)
	})

	t.Run("already assigned", func(t *testing.T) {
		h := &targetHandler{env: env}
		d, err := h.Handle(context.Background(), screen(t, "taken"), &Shared{Target: &rec, Device: &fakeDevice{t: t}})
		require.NoError(t, err)
		assert.Equal(t, control.StateErrorAlreadyTaken, d.Next)
	})

	t.Run("missing target", func(t *testing.T) {
		h := &targetHandler{env: env}
		d, err := h.Handle(context.Background(), screen(t, "list"), &Shared{Device: &fakeDevice{t: t}})
		require.NoError(t, err)
		assert.Equal(t, control.StateErrorUnknown, d.Next)
	})

	t.Run("faults propagate", func(t *testing.T) {
		h := &targetHandler{env: env}
		dev := &fakeDevice{t: t, activateErr: ErrSnapshotInvalidated}
		_, err := h.Handle(context.Background(), screen(t, "list"), &Shared{Target: &rec, Device: dev})
		require.ErrorIs(t, err, ErrSnapshotInvalidated)
	})

	t.Run("a bounce from detail spends an attempt", func(t *testing.T) {
		h := &targetHandler{env: env}
		h.Enter(control.StateAnalyzing)
		for range env.opts.TargetAttempts {
			h.Enter(control.StateDetailScreenDetected)
		}
		assert.Equal(t, env.opts.TargetAttempts, h.attempts)

		dev := &fakeDevice{t: t}
		d, err := h.Handle(context.Background(), screen(t, "list"), &Shared{Target: &rec, Device: dev})
		require.NoError(t, err)
		assert.Equal(t, control.StateErrorUnknown, d.Next)
		assert.Zero(t, dev.activations)

		h.Enter(control.StateAnalyzing)
		assert.Equal(t, 0, h.attempts)
	})
}

func TestTargetHandlerVerifiesRow(t *testing.T) {
	env := newTestEnv(t, testOptions())

	recs := env.chain.ExtractAll(screen(t, "rows").FindByID("call_list"))
	require.Len(t, recs, 2)
	rec := recs[1]
	require.Equal(t, "Seoul Station", rec.Origin())

	tests := []struct {
		name   string
		screen string
		want   control.State
		opened bool
	}{
		{name: "same order", screen: "rows", want: control.StateDetailScreenDetected, opened: true},
		{name: "reordered rows with shared ids", screen: "rows-swapped", want: control.StateDetailScreenDetected, opened: true},
		{name: "row gone", screen: "rows-gone", want: control.StateAwaitingOpportunity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := &fakeDevice{t: t}
			dev.cur = screen(t, tt.screen)
			h := &targetHandler{env: env}
			h.Enter(control.StateAnalyzing)

			d, err := h.Handle(context.Background(), dev.cur, &Shared{Target: &rec, Device: dev})
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.Next)

			if !tt.opened {
				assert.Zero(t, dev.activations)
				assert.Zero(t, dev.taps)
				return
			}
			require.Len(t, dev.activated, 1)
			assert.Contains(t, dev.activated[0].Segments(), "Seoul Station → Airport Terminal 1")
		})
	}
}

func TestDetailHandler(t *testing.T) {
	env := newTestEnv(t, testOptions())

	t.Run("presses the action control", func(t *testing.T) {
		dev := &fakeDevice{t: t}
		dev.cur = screen(t, "detail")
		h := &detailHandler{env: env}
		d, err := h.Handle(context.Background(), dev.cur, &Shared{Device: dev})
		require.NoError(t, err)
		assert.Equal(t, control.StateAwaitingConfirmation, d.Next)
		assert.Equal(t, []string{"btn_accept"}, dev.clicked)
	})

	t.Run("not rendered bounces to targeting after grace", func(t *testing.T) {
		h := &detailHandler{env: env}
		h.Enter(control.StateTargetingItem)
		sc := &Shared{Device: &fakeDevice{t: t}}
		for range env.opts.DetailGraceTicks {
			d, err := h.Handle(context.Background(), screen(t, "other"), sc)
			require.NoError(t, err)
			assert.Equal(t, control.KindNoChange, d.Kind)
		}
		d, err := h.Handle(context.Background(), screen(t, "other"), sc)
		require.NoError(t, err)
		assert.Equal(t, control.KindTransition, d.Kind)
		assert.Equal(t, control.StateTargetingItem, d.Next)
	})

	t.Run("control not found yet", func(t *testing.T) {
		h := &detailHandler{env: env}
		d, err := h.Handle(context.Background(), screen(t, "waiting"), &Shared{Device: &fakeDevice{t: t}})
		require.NoError(t, err)
		assert.Equal(t, control.KindNoChange, d.Kind)
	})

	t.Run("click failed", func(t *testing.T) {
		h := &detailHandler{env: env}
		dev := &fakeDevice{t: t, tapErr: errSoft}
		d, err := h.Handle(context.Background(), screen(t, "detail"), &Shared{Device: dev})
		require.NoError(t, err)
		assert.Equal(t, control.StateErrorUnknown, d.Next)
	})

	t.Run("already assigned", func(t *testing.T) {
		h := &detailHandler{env: env}
		d, err := h.Handle(context.Background(), screen(t, "taken"), &Shared{Device: &fakeDevice{t: t}})
		require.NoError(t, err)
		assert.Equal(t, control.StateErrorAlreadyTaken, d.Next)
	})
}

func TestConfirmHandler(t *testing.T) {
	env := newTestEnv(t, testOptions())

	t.Run("debounces, presses, then waits", func(t *testing.T) {
		dev := &fakeDevice{t: t}
		h := &confirmHandler{env: env}
		h.Enter(control.StateDetailScreenDetected)
		sc := &Shared{Device: dev}
		snap := screen(t, "confirm")

		// first sighting, then stable: press
		for range 2 {
			d, err := h.Handle(context.Background(), snap, sc)
			require.NoError(t, err)
			assert.Equal(t, control.KindNoChange, d.Kind)
		}
		assert.Equal(t, []string{"btn_confirm"}, dev.clicked)

		waiting := screen(t, "waiting")
		for range env.opts.ConfirmWaitTicks - 1 {
			d, err := h.Handle(context.Background(), waiting, sc)
			require.NoError(t, err)
			assert.Equal(t, control.KindNoChange, d.Kind)
		}
		d, err := h.Handle(context.Background(), waiting, sc)
		require.NoError(t, err)
		assert.Equal(t, control.StateAccepted, d.Next)
		assert.Len(t, dev.clicked, 1)
	})

	t.Run("dismisses a dead opportunity", func(t *testing.T) {
		dev := &fakeDevice{t: t}
		h := &confirmHandler{env: env}
		h.Enter(control.StateDetailScreenDetected)

		d, err := h.Handle(context.Background(), screen(t, "taken"), &Shared{Device: dev})
		require.NoError(t, err)
		assert.Equal(t, control.KindError, d.Kind)
		assert.Equal(t, control.StateErrorAlreadyTaken, d.Next)
		assert.Equal(t, []string{"btn_dismiss"}, dev.clicked)
	})

	t.Run("dialog during the wait phase", func(t *testing.T) {
		dev := &fakeDevice{t: t}
		h := &confirmHandler{env: env}
		h.Enter(control.StateDetailScreenDetected)
		sc := &Shared{Device: dev}
		snap := screen(t, "confirm")
		for range 2 {
			_, err := h.Handle(context.Background(), snap, sc)
			require.NoError(t, err)
		}

		d, err := h.Handle(context.Background(), screen(t, "taken"), sc)
		require.NoError(t, err)
		assert.Equal(t, control.StateErrorAlreadyTaken, d.Next)
	})

	t.Run("bounded activation attempts", func(t *testing.T) {
		dev := &fakeDevice{t: t, activateErr: errSoft, tapErr: errSoft}
		h := &confirmHandler{env: env}
		h.Enter(control.StateDetailScreenDetected)
		sc := &Shared{Device: dev}
		snap := screen(t, "confirm")

		// one debounce tick plus one tick per attempt
		for range 1 + env.opts.ConfirmAttempts {
			d, err := h.Handle(context.Background(), snap, sc)
			require.NoError(t, err)
			assert.Equal(t, control.KindNoChange, d.Kind)
		}
		d, err := h.Handle(context.Background(), snap, sc)
		require.NoError(t, err)
		assert.Equal(t, control.StateErrorUnknown, d.Next)
		assert.Equal(t, env.opts.ConfirmAttempts, dev.activations)
	})

	t.Run("privileged denial is a fault", func(t *testing.T) {
		opts := testOptions()
		opts.Screens.PrivilegedConfirm = true
		penv := newTestEnv(t, opts)

		dev := &fakeDevice{t: t, activateErr: errSoft, tapErr: errSoft, privErr: ErrPrivilegedDenied}
		h := &confirmHandler{env: penv}
		h.Enter(control.StateDetailScreenDetected)
		sc := &Shared{Device: dev}
		snap := screen(t, "confirm")

		_, err := h.Handle(context.Background(), snap, sc)
		require.NoError(t, err)
		_, err = h.Handle(context.Background(), snap, sc)
		require.ErrorIs(t, err, ErrPrivilegedDenied)
		assert.Equal(t, 1, dev.privTaps)
	})
}

type captureNotifier struct {
	got []record.Record
}

func (n *captureNotifier) Accepted(_ context.Context, r record.Record) {
	n.got = append(n.got, r)
}

func TestAcceptedHandler(t *testing.T) {
	env := newTestEnv(t, testOptions())
	n := &captureNotifier{}
	env.notifier = n
	rec := listRecord(t, env, 0)

	h := &acceptedHandler{env: env}
	d, err := h.Handle(context.Background(), screen(t, "waiting"), &Shared{Target: &rec})
	require.NoError(t, err)
	assert.Equal(t, control.KindPauseAndTransition, d.Kind)
	assert.Equal(t, control.StateAwaitingOpportunity, d.Next)
	require.Len(t, n.got, 1)
	assert.Equal(t, rec.Key(), n.got[0].Key())
}

func TestRecoveryHandler(t *testing.T) {
	env := newTestEnv(t, testOptions())
	rec := listRecord(t, env, 0)

	dev := &fakeDevice{t: t}
	h := &recoveryHandler{env: env}
	h.Enter(control.StateErrorTimeout)
	sc := &Shared{Target: &rec, Device: dev, Now: tickTime}

	other := screen(t, "other")
	for i := 1; i <= 2; i++ {
		d, err := h.Handle(context.Background(), other, sc)
		require.NoError(t, err)
		assert.Equal(t, control.KindNoChange, d.Kind)
		assert.Equal(t, i, dev.backs)
		assert.Equal(t, i, h.BackPresses())
		sc.Now = sc.Now.Add(400 * time.Millisecond)
	}

	d, err := h.Handle(context.Background(), screen(t, "list"), sc)
	require.NoError(t, err)
	assert.Equal(t, control.KindTransition, d.Kind)
	assert.Equal(t, control.StateListScreenDetected, d.Next)
	assert.Equal(t, 0, h.BackPresses())
	assert.Nil(t, sc.Target)
	assert.Equal(t, 2, dev.backs)
}

func TestRecoveryHandlerKeepsGoingOnSoftBackFailure(t *testing.T) {
	env := newTestEnv(t, testOptions())
	dev := &fakeDevice{t: t, backErr: errSoft}
	h := &recoveryHandler{env: env}

	d, err := h.Handle(context.Background(), screen(t, "other"), &Shared{Device: dev, Now: tickTime})
	require.NoError(t, err)
	assert.Equal(t, control.KindNoChange, d.Kind)

	dev.backErr = ErrSnapshotInvalidated
	_, err = h.Handle(context.Background(), screen(t, "other"), &Shared{Device: dev, Now: tickTime})
	assert.True(t, errors.Is(err, ErrSnapshotInvalidated))
}

func TestErrorHandlers(t *testing.T) {
	env := newTestEnv(t, testOptions())

	for _, s := range []control.State{control.StateErrorAlreadyTaken, control.StateErrorTimeout} {
		d, err := env.handlers()[s].Handle(context.Background(), screen(t, "other"), &Shared{})
		require.NoError(t, err)
		assert.Equal(t, control.StateTimeoutRecovery, d.Next, s.String())
	}

	d, err := env.handlers()[control.StateErrorUnknown].Handle(context.Background(), screen(t, "other"), &Shared{})
	require.NoError(t, err)
	assert.Equal(t, control.StateAwaitingOpportunity, d.Next)

	d, err = env.handlers()[control.StateAwaitingOpportunity].Handle(context.Background(), screen(t, "other"), &Shared{})
	require.NoError(t, err)
	assert.Equal(t, control.StateListScreenDetected, d.Next)
}
