package engine

import (
	"context"
	"time"

	"github.com/colonyops/farepilot/internal/core/control"
	"github.com/colonyops/farepilot/internal/core/uitree"
)

// recoverHandler serves the error states the loop auto-advances. It only
// runs when invoked directly.
type recoverHandler struct{}

func (recoverHandler) Handle(context.Context, *uitree.Snapshot, *Shared) (control.Decision, error) {
	return control.Transition(control.StateTimeoutRecovery, "recover"), nil
}

// unknownHandler retries the cycle after a soft fault.
type unknownHandler struct {
	env *env
}

func (h *unknownHandler) Handle(ctx context.Context, _ *uitree.Snapshot, sc *Shared) (control.Decision, error) {
	ev := h.env.log.Warn().Ctx(ctx)
	if sc.Target != nil {
		ev = ev.Str("key", sc.Target.Key())
	}
	ev.Msg("unknown error, restarting cycle")
	return control.Transition(control.StateAwaitingOpportunity, "retry after error"), nil
}

// recoveryHandler navigates back until the list screen shows. It has no
// attempt cap.
type recoveryHandler struct {
	env         *env
	backPresses int
	started     time.Time
}

func (h *recoveryHandler) Enter(control.State) {
	h.backPresses = 0
	h.started = time.Time{}
}

// BackPresses returns the back navigations issued in the current visit.
func (h *recoveryHandler) BackPresses() int { return h.backPresses }

func (h *recoveryHandler) Handle(ctx context.Context, snap *uitree.Snapshot, sc *Shared) (control.Decision, error) {
	if h.started.IsZero() {
		h.started = sc.Now
	}

	if listVisible(snap, h.env.opts.Screens) {
		presses, took := h.backPresses, sc.Now.Sub(h.started)
		sc.Target = nil
		h.backPresses = 0
		h.started = time.Time{}
		return control.Transitionf(control.StateListScreenDetected,
			"list visible after %d back presses in %s", presses, took.Round(time.Millisecond)), nil
	}

	err := sc.Device.NavigateBack(ctx)
	if err != nil && isFault(err) {
		return control.NoChange(), err
	}
	h.backPresses++
	ev := h.env.log.Debug()
	if err != nil {
		ev = h.env.log.Info().Err(err)
	}
	ev.Ctx(ctx).
		Int("back_presses", h.backPresses).
		Dur("elapsed", sc.Now.Sub(h.started)).
		Msg("navigated back")
	return control.NoChange(), nil
}
