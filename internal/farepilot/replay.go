package farepilot

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/colonyops/farepilot/internal/core/filter"
	"github.com/colonyops/farepilot/internal/core/uitree"
)

// ErrNoList is returned by Replay when the capture has no list container.
var ErrNoList = errors.New("list container not found")

// ReplayItem is the verdict for one extracted record.
type ReplayItem struct {
	Index       int    `json:"index"`
	Origin      string `json:"origin"`
	Destination string `json:"destination"`
	Price       int    `json:"price"`
	Scheduled   string `json:"scheduled,omitempty"`
	Category    string `json:"category,omitempty"`
	Confidence  string `json:"confidence"`
	Strategy    string `json:"strategy,omitempty"`
	Accepted    bool   `json:"accepted"`
	Branch      string `json:"branch,omitempty"`
	Matched     string `json:"matched,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

// ReplayResult is what an analysis pass would have decided for a capture.
type ReplayResult struct {
	Source  string       `json:"source"`
	Context string       `json:"context,omitempty"`
	Items   []ReplayItem `json:"items"`
	Best    *ReplayItem  `json:"best,omitempty"` // highest priced acceptance
}

// Replay runs extraction and the filters over an HTML capture without
// touching any device. now places scheduled times and windows.
func (a *App) Replay(source string, r io.Reader, rules filter.Config, now time.Time) (ReplayResult, error) {
	if err := rules.Validate(); err != nil {
		return ReplayResult{}, fmt.Errorf("invalid filters: %w", err)
	}

	chain, err := a.Config.Chain()
	if err != nil {
		return ReplayResult{}, fmt.Errorf("build extraction chain: %w", err)
	}

	snap, err := uitree.ParseHTML(r, "")
	if err != nil {
		return ReplayResult{}, err
	}

	res := ReplayResult{Source: source, Context: snap.Context, Items: []ReplayItem{}}
	if want := a.Config.Target.Context; want != "" && snap.Context != "" && !snap.Live(want) {
		return res, fmt.Errorf("capture context %q does not match %q", snap.Context, want)
	}

	list := snap.FindByID(a.Config.Screens.ListContainerID)
	if list == nil {
		return res, ErrNoList
	}

	for i, rec := range chain.ExtractAll(list) {
		v := filter.Evaluate(rec, rules, now)
		res.Items = append(res.Items, ReplayItem{
			Index:       i,
			Origin:      rec.Origin(),
			Destination: rec.Destination(),
			Price:       rec.Price(),
			Scheduled:   rec.Scheduled(),
			Category:    rec.Category(),
			Confidence:  rec.Confidence().String(),
			Strategy:    rec.Debug()["strategy"],
			Accepted:    v.Accepted,
			Branch:      string(v.Branch),
			Matched:     v.Matched,
			Reason:      v.RejectReason(),
		})
	}

	accepted := make([]ReplayItem, 0, len(res.Items))
	for _, it := range res.Items {
		if it.Accepted {
			accepted = append(accepted, it)
		}
	}
	if len(accepted) > 0 {
		slices.SortStableFunc(accepted, func(x, y ReplayItem) int { return y.Price - x.Price })
		res.Best = &accepted[0]
	}
	return res, nil
}
