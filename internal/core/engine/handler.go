package engine

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/colonyops/farepilot/internal/core/control"
	"github.com/colonyops/farepilot/internal/core/eventbus"
	"github.com/colonyops/farepilot/internal/core/extract"
	"github.com/colonyops/farepilot/internal/core/uitree"
)

// Handler decides what to do in one state. A returned error is a fault;
// soft failures are expressed as decisions.
type Handler interface {
	Handle(ctx context.Context, snap *uitree.Snapshot, sc *Shared) (control.Decision, error)
}

// enterer is implemented by handlers with per-visit state.
type enterer interface {
	Enter(from control.State)
}

// env carries the collaborators handlers share.
type env struct {
	opts        Options
	chain       *extract.Chain
	filters     FilterSource
	bus         *eventbus.EventBus
	notifier    Notifier
	instruments Instruments
	rand        func() float64
	clock       Clock
	log         zerolog.Logger
	refreshLog  *rate.Limiter
}

// handlers builds the dispatch table.
func (e *env) handlers() map[control.State]Handler {
	return map[control.State]Handler{
		control.StateIdle:                 idleHandler{},
		control.StateAwaitingOpportunity:  awaitingHandler{},
		control.StateListScreenDetected:   &listHandler{env: e},
		control.StateRefreshing:           &refreshHandler{env: e},
		control.StateAnalyzing:            &analyzeHandler{env: e},
		control.StateTargetingItem:        &targetHandler{env: e},
		control.StateDetailScreenDetected: &detailHandler{env: e},
		control.StateAwaitingConfirmation: &confirmHandler{env: e},
		control.StateAccepted:             &acceptedHandler{env: e},
		control.StateErrorAlreadyTaken:    recoverHandler{},
		control.StateErrorTimeout:         recoverHandler{},
		control.StateErrorUnknown:         &unknownHandler{env: e},
		control.StateTimeoutRecovery:      &recoveryHandler{env: e},
	}
}

// activate tries direct activation of node's nearest actionable
// self-or-ancestor, then a synthetic tap at node's center. fallback is tapped
// when node is nil. It reports whether either channel delivered.
func (e *env) activate(ctx context.Context, sc *Shared, state control.State, node *uitree.Node, fallback uitree.Rect) (bool, error) {
	if node == nil {
		return e.tap(ctx, sc, state, fallback)
	}
	if target := node.ClickableAncestor(); target != nil {
		err := sc.Device.Activate(ctx, target)
		x, y := target.Bounds.Center()
		e.clicked(ctx, sc, state, "direct", x, y, target.Ref().String(), err)
		if err == nil {
			return true, nil
		}
		if isFault(err) {
			return false, err
		}
	}
	if !node.Bounds.Empty() {
		fallback = node.Bounds
	}
	return e.tap(ctx, sc, state, fallback)
}

// tap sends a synthetic tap at the center of r.
func (e *env) tap(ctx context.Context, sc *Shared, state control.State, r uitree.Rect) (bool, error) {
	if r.Empty() {
		e.log.Debug().Ctx(ctx).Stringer("bounds", r).Msg("no tappable bounds")
		return false, nil
	}
	x, y := r.Center()
	err := sc.Device.SyntheticTap(ctx, x, y)
	e.clicked(ctx, sc, state, "synthetic", x, y, r.String(), err)
	if err != nil && isFault(err) {
		return false, err
	}
	return err == nil, nil
}

// privilegedTap sends a tap through the privileged channel.
func (e *env) privilegedTap(ctx context.Context, sc *Shared, state control.State, r uitree.Rect) (bool, error) {
	x, y := r.Center()
	err := sc.Device.PrivilegedTap(ctx, x, y)
	e.clicked(ctx, sc, state, "privileged", x, y, r.String(), err)
	if err != nil && isFault(err) {
		return false, err
	}
	return err == nil, nil
}

func (e *env) clicked(ctx context.Context, sc *Shared, state control.State, channel string, x, y int, target string, err error) {
	p := eventbus.ClickAttemptedPayload{
		CycleID: sc.CycleID,
		State:   state,
		Channel: channel,
		X:       x,
		Y:       y,
		Target:  target,
		OK:      err == nil,
	}
	ev := e.log.Debug()
	if err != nil {
		p.Err = err.Error()
		ev = e.log.Info().Err(err)
	}
	ev.Ctx(ctx).
		Str("channel", channel).
		Int("x", x).
		Int("y", y).
		Str("target", target).
		Bool("ok", err == nil).
		Msg("click attempted")
	e.bus.PublishClickAttempted(p)
}

func (e *env) dismissDialogs(ctx context.Context, snap *uitree.Snapshot, sc *Shared, state control.State) (string, bool, error) {
	var kind string
	switch {
	case snap.HasAnyText(e.opts.Screens.AlreadyAssignedTexts):
		kind = "already-assigned"
	case snap.HasAnyText(e.opts.Screens.CanceledTexts):
		kind = "canceled"
	default:
		return "", false, nil
	}

	btn, _ := snap.Locate(e.opts.Screens.DismissID, e.opts.Screens.DismissTexts)
	if btn == nil {
		e.log.Info().Ctx(ctx).Str("dialog", kind).Msg("dismiss control not found")
		return kind, true, nil
	}
	if _, err := e.activate(ctx, sc, state, btn, btn.Bounds); err != nil {
		return kind, true, fmt.Errorf("dismiss %s dialog: %w", kind, err)
	}
	return kind, true, nil
}
