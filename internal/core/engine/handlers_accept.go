package engine

import (
	"context"

	"github.com/colonyops/farepilot/internal/core/control"
	"github.com/colonyops/farepilot/internal/core/eventbus"
	"github.com/colonyops/farepilot/internal/core/record"
	"github.com/colonyops/farepilot/internal/core/uitree"
)

// targetHandler opens the chosen item.
type targetHandler struct {
	env      *env
	attempts int
}

// Enter resets the attempt count for a new target. A bounce back from the
// detail state counts as a spent attempt: the click was delivered but the
// detail screen never rendered.
func (h *targetHandler) Enter(from control.State) {
	if from == control.StateDetailScreenDetected {
		h.attempts++
		return
	}
	h.attempts = 0
}

func (h *targetHandler) Handle(ctx context.Context, snap *uitree.Snapshot, sc *Shared) (control.Decision, error) {
	if sc.Target == nil {
		return control.Fail(control.StateErrorUnknown, "no target in context"), nil
	}
	if snap.HasAnyText(h.env.opts.Screens.AlreadyAssignedTexts) {
		return control.Fail(control.StateErrorAlreadyTaken, "already assigned marker on screen"), nil
	}
	if h.attempts >= h.env.opts.TargetAttempts {
		return control.Failf(control.StateErrorUnknown, "target activation failed after %d attempts", h.attempts), nil
	}

	node := h.locate(snap, *sc.Target)
	if node == nil {
		h.env.log.Info().Ctx(ctx).Str("key", sc.Target.Key()).Msg("target no longer listed")
		return control.Transition(control.StateAwaitingOpportunity, "target no longer listed"), nil
	}

	ok, err := h.env.activate(ctx, sc, control.StateTargetingItem, node, node.Bounds)
	if err != nil {
		return control.NoChange(), err
	}
	if !ok {
		h.attempts++
		h.env.log.Info().Ctx(ctx).
			Int("attempt", h.attempts).
			Int("max", h.env.opts.TargetAttempts).
			Str("key", sc.Target.Key()).
			Msg("target activation failed")
		return control.NoChange(), nil
	}
	return control.Transition(control.StateDetailScreenDetected, "target opened"), nil
}

// locate finds the node for target in snap. The stored path is only trusted
// when the subtree there still extracts to the same record; otherwise the
// list is re-read and the row is matched by key. It returns nil when the
// record is no longer on screen.
func (h *targetHandler) locate(snap *uitree.Snapshot, target record.Record) *uitree.Node {
	if ref, ok := target.Target(); ok {
		if n := snap.Resolve(ref); n != nil {
			if r, ok := h.env.chain.Extract(n); ok && r.Key() == target.Key() {
				return n
			}
		}
	}

	list := snap.FindByID(h.env.opts.Screens.ListContainerID)
	for _, r := range h.env.chain.ExtractAll(list) {
		if r.Key() != target.Key() {
			continue
		}
		if ref, ok := r.Target(); ok {
			if n := snap.Resolve(ref); n != nil {
				return n
			}
		}
	}
	return nil
}

// detailHandler presses the primary action on the detail screen.
type detailHandler struct {
	env     *env
	waiting int
}

func (h *detailHandler) Enter(control.State) { h.waiting = 0 }

func (h *detailHandler) Handle(ctx context.Context, snap *uitree.Snapshot, sc *Shared) (control.Decision, error) {
	s := h.env.opts.Screens
	if snap.HasAnyText(s.AlreadyAssignedTexts) {
		return control.Fail(control.StateErrorAlreadyTaken, "already assigned marker on detail screen"), nil
	}

	if !snap.HasAnyText(s.DetailMarkers) {
		h.waiting++
		if h.waiting <= h.env.opts.DetailGraceTicks {
			return control.NoChange(), nil
		}
		return control.Transitionf(control.StateTargetingItem, "detail screen not rendered after %d ticks", h.waiting), nil
	}

	node, via := snap.Locate(s.ActionID, s.ActionTexts)
	if node == nil {
		h.env.log.Info().Ctx(ctx).
			Str("id", s.ActionID).
			Strs("texts", s.ActionTexts).
			Msg("action control not found")
		return control.NoChange(), nil
	}

	bounds := node.Bounds
	if bounds.Empty() {
		if a := node.ClickableAncestor(); a != nil {
			bounds = a.Bounds
		}
	}
	ok, err := h.env.tap(ctx, sc, control.StateDetailScreenDetected, bounds)
	if err != nil {
		return control.NoChange(), err
	}
	if !ok {
		return control.Failf(control.StateErrorUnknown, "action control (%s) click failed", via), nil
	}
	return control.Transitionf(control.StateAwaitingConfirmation, "action pressed via %s", via), nil
}

type confirmPhase int

const (
	confirmLocating confirmPhase = iota
	confirmWaiting
)

// confirmHandler debounces and presses the confirm control, then waits for
// a dismissal dialog. A wait that ends without one counts as accepted.
type confirmHandler struct {
	env      *env
	phase    confirmPhase
	lastKey  string
	stable   int
	attempts int
	waited   int
}

func (h *confirmHandler) Enter(control.State) {
	h.phase = confirmLocating
	h.lastKey = ""
	h.stable = 0
	h.attempts = 0
	h.waited = 0
}

func (h *confirmHandler) Handle(ctx context.Context, snap *uitree.Snapshot, sc *Shared) (control.Decision, error) {
	kind, found, err := h.env.dismissDialogs(ctx, snap, sc, control.StateAwaitingConfirmation)
	if err != nil {
		return control.NoChange(), err
	}
	if found {
		return control.Failf(control.StateErrorAlreadyTaken, "%s dialog dismissed", kind), nil
	}

	if h.phase == confirmWaiting {
		h.waited++
		if h.waited >= h.env.opts.ConfirmWaitTicks {
			return control.Transitionf(control.StateAccepted, "no dismissal dialog within %d ticks", h.waited), nil
		}
		return control.NoChange(), nil
	}

	s := h.env.opts.Screens
	node, via := snap.Locate(s.ConfirmID, s.ConfirmTexts)
	if node == nil {
		h.stable = 0
		h.lastKey = ""
		return control.NoChange(), nil
	}

	key := node.Ref().String()
	if key == h.lastKey {
		h.stable++
	} else {
		h.lastKey = key
		h.stable = 1
	}
	if h.stable < h.env.opts.ConfirmStableTicks {
		return control.NoChange(), nil
	}

	if h.attempts >= h.env.opts.ConfirmAttempts {
		return control.Failf(control.StateErrorUnknown, "confirm activation failed after %d attempts", h.attempts), nil
	}

	ok, err := h.env.activate(ctx, sc, control.StateAwaitingConfirmation, node, node.Bounds)
	if err != nil {
		return control.NoChange(), err
	}
	if !ok && s.PrivilegedConfirm {
		ok, err = h.env.privilegedTap(ctx, sc, control.StateAwaitingConfirmation, node.Bounds)
		if err != nil {
			return control.NoChange(), err
		}
	}
	if !ok {
		h.attempts++
		return control.NoChange(), nil
	}

	h.env.log.Info().Ctx(ctx).Str("via", via).Msg("confirm pressed, watching for dismissal dialogs")
	h.phase = confirmWaiting
	return control.NoChange(), nil
}

// acceptedHandler announces the accept and pauses the engine.
type acceptedHandler struct {
	env *env
}

func (h *acceptedHandler) Handle(ctx context.Context, _ *uitree.Snapshot, sc *Shared) (control.Decision, error) {
	if sc.Target != nil {
		rec := *sc.Target
		h.env.log.Info().Ctx(ctx).
			Str("key", rec.Key()).
			Int("price", rec.Price()).
			Msg("opportunity accepted")
		h.env.bus.PublishOrderAccepted(eventbus.OrderAcceptedPayload{
			CycleID: sc.CycleID,
			Record:  rec,
			At:      sc.Now,
		})
		if h.env.notifier != nil {
			h.env.notifier.Accepted(ctx, rec)
		}
	}
	return control.PauseAndTransition(control.StateAwaitingOpportunity, "accepted"), nil
}
