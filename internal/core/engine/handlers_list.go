package engine

import (
	"context"
	"slices"
	"time"

	"github.com/colonyops/farepilot/internal/core/control"
	"github.com/colonyops/farepilot/internal/core/eventbus"
	"github.com/colonyops/farepilot/internal/core/filter"
	"github.com/colonyops/farepilot/internal/core/record"
	"github.com/colonyops/farepilot/internal/core/uitree"
)

// idleHandler is never dispatched by a running loop.
type idleHandler struct{}

func (idleHandler) Handle(context.Context, *uitree.Snapshot, *Shared) (control.Decision, error) {
	return control.NoChange(), nil
}

// awaitingHandler starts a cycle. Refresh gating lives in the list state.
type awaitingHandler struct{}

func (awaitingHandler) Handle(context.Context, *uitree.Snapshot, *Shared) (control.Decision, error) {
	return control.Transition(control.StateListScreenDetected, "cycle start"), nil
}

// listHandler waits for the list screen and decides when to refresh.
type listHandler struct {
	env *env
}

func (h *listHandler) Handle(ctx context.Context, snap *uitree.Snapshot, sc *Shared) (control.Decision, error) {
	if !listVisible(snap, h.env.opts.Screens) {
		return control.NoChange(), nil
	}

	// One jittered target per refresh, kept until it elapses.
	if sc.RefreshTarget == 0 {
		base := h.env.opts.RefreshInterval
		sc.RefreshMin = time.Duration(base * 0.9 * float64(time.Second))
		sc.RefreshMax = time.Duration(base * 1.1 * float64(time.Second))
		sc.RefreshTarget = RefreshDelay(base, h.env.rand)
	}

	elapsed := sc.Now.Sub(sc.LastRefresh)
	if !sc.LastRefresh.IsZero() && elapsed < sc.RefreshTarget {
		return control.NoChange(), nil
	}

	sc.RefreshElapsed = elapsed
	if sc.LastRefresh.IsZero() {
		return control.Transition(control.StateRefreshing, "first refresh"), nil
	}
	return control.Transitionf(control.StateRefreshing, "elapsed %s >= target %s",
		elapsed.Round(time.Millisecond), sc.RefreshTarget.Round(time.Millisecond)), nil
}

func listVisible(snap *uitree.Snapshot, s Screens) bool {
	if snap.HasAnyText(s.ListMarkers) {
		return true
	}
	return s.ListContainerID != "" && snap.FindByID(s.ListContainerID) != nil
}

// refreshHandler activates the list's refresh control.
type refreshHandler struct {
	env *env
}

func (h *refreshHandler) Handle(ctx context.Context, snap *uitree.Snapshot, sc *Shared) (control.Decision, error) {
	s := h.env.opts.Screens
	node, via := snap.Locate(s.RefreshID, s.RefreshTexts)
	if node == nil {
		return control.Fail(control.StateErrorUnknown, "refresh control not found"), nil
	}
	if node.ClickableAncestor() == nil {
		return control.Failf(control.StateErrorUnknown, "refresh control (%s) not actionable", via), nil
	}

	ok, err := h.env.activate(ctx, sc, control.StateRefreshing, node, node.Bounds)
	if err != nil {
		return control.NoChange(), err
	}
	if !ok {
		return control.Failf(control.StateErrorUnknown, "refresh control (%s) click failed", via), nil
	}

	if h.env.refreshLog.Allow() {
		h.env.log.Info().Ctx(ctx).
			Dur("elapsed", sc.RefreshElapsed).
			Dur("target", sc.RefreshTarget).
			Dur("min", sc.RefreshMin).
			Dur("max", sc.RefreshMax).
			Str("via", via).
			Msg("list refreshed")
	}
	sc.LastRefresh = sc.Now
	sc.RefreshTarget = 0
	return control.Transition(control.StateAnalyzing, "refreshed"), nil
}

// analyzeHandler extracts every list item, evaluates it and picks the best
// candidate.
type analyzeHandler struct {
	env *env
}

func (h *analyzeHandler) Handle(ctx context.Context, snap *uitree.Snapshot, sc *Shared) (control.Decision, error) {
	start := h.env.clock.Now()
	defer func() { h.env.instruments.AnalysisDuration(h.env.clock.Now().Sub(start)) }()

	cfg := h.env.filters.Filters()
	if err := cfg.Validate(); err != nil {
		return control.Failf(control.StateErrorUnknown, "invalid filter configuration: %v", err), nil
	}

	list := snap.FindByID(h.env.opts.Screens.ListContainerID)
	if list == nil {
		return control.Transition(control.StateAwaitingOpportunity, "list container not found"), nil
	}

	records := h.env.chain.ExtractAll(list)
	candidates := make([]record.Record, 0, len(records))
	for _, r := range records {
		v := filter.Evaluate(r, cfg, sc.Now)

		ev := h.env.log.Info().Ctx(ctx).
			Str("key", r.Key()).
			Stringer("confidence", r.Confidence()).
			Str("strategy", r.Debug()["strategy"]).
			Bool("accepted", v.Accepted)
		if v.Accepted {
			ev = ev.Str("branch", string(v.Branch)).Str("matched", v.Matched)
		} else {
			ev = ev.Str("reason", v.RejectReason())
		}
		ev.Msg("record evaluated")

		h.env.bus.PublishRecordEvaluated(eventbus.RecordEvaluatedPayload{
			CycleID:  sc.CycleID,
			Record:   r,
			Accepted: v.Accepted,
			Branch:   v.Branch,
			Reason:   v.RejectReason(),
		})

		if v.Accepted {
			candidates = append(candidates, r)
		}
	}

	if len(candidates) == 0 {
		return control.Transitionf(control.StateAwaitingOpportunity,
			"no eligible records among %d", len(records)), nil
	}

	slices.SortStableFunc(candidates, func(a, b record.Record) int {
		return b.Price() - a.Price()
	})
	best := candidates[0]
	sc.Target = &best

	return control.Transitionf(control.StateTargetingItem, "best of %d: %s", len(candidates), best.Key()), nil
}
