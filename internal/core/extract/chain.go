package extract

import (
	"fmt"
	"slices"

	"github.com/colonyops/farepilot/internal/core/record"
	"github.com/colonyops/farepilot/internal/core/uitree"
)

// Mode selects how a Chain combines its strategies.
type Mode string

const (
	// ModeFirst returns the first successful strategy in priority order.
	ModeFirst Mode = "first"
	// ModeBest runs every strategy and keeps the highest confidence result.
	ModeBest Mode = "best"
)

// Chain runs strategies from highest to lowest confidence.
type Chain struct {
	mode       Mode
	strategies []Strategy
}

// Strategy names accepted by New.
const (
	NameIdentifier = "identifier"
	NamePattern    = "pattern"
	NameHeuristic  = "heuristic"
)

// New builds the standard chain. With no names every strategy is enabled;
// otherwise only the named ones are.
func New(rules Rules, mode Mode, enabled ...string) (*Chain, error) {
	c, err := compile(rules)
	if err != nil {
		return nil, err
	}
	switch mode {
	case "", ModeFirst, ModeBest:
	default:
		return nil, fmt.Errorf("unknown extraction mode %q", mode)
	}

	all := []Strategy{Identifier{c}, Pattern{c}, Heuristic{c}}
	if len(enabled) == 0 {
		return NewChain(mode, all...), nil
	}

	picked := make([]Strategy, 0, len(enabled))
	for _, name := range enabled {
		i := slices.IndexFunc(all, func(s Strategy) bool { return s.Name() == name })
		if i < 0 {
			return nil, fmt.Errorf("unknown extraction strategy %q", name)
		}
		picked = append(picked, all[i])
	}
	return NewChain(mode, picked...), nil
}

// NewChain orders strategies by descending confidence, keeping the given
// order among equals.
func NewChain(mode Mode, strategies ...Strategy) *Chain {
	if mode == "" {
		mode = ModeFirst
	}
	s := slices.Clone(strategies)
	slices.SortStableFunc(s, func(a, b Strategy) int {
		return int(b.Confidence()) - int(a.Confidence())
	})
	return &Chain{mode: mode, strategies: s}
}

func (c *Chain) Mode() Mode { return c.mode }

// Extract returns the record for item, or false when no strategy produced
// one.
func (c *Chain) Extract(item *uitree.Node) (record.Record, bool) {
	if item == nil {
		return record.Record{}, false
	}

	var (
		best  record.Record
		found bool
	)
	for _, s := range c.strategies {
		r, ok := s.Extract(item)
		if !ok {
			continue
		}
		if c.mode == ModeFirst {
			return r, true
		}
		if !found || r.Confidence() > best.Confidence() {
			best, found = r, true
		}
	}
	return best, found
}

// ExtractAll runs Extract over every child of list and returns the records
// in display order.
func (c *Chain) ExtractAll(list *uitree.Node) []record.Record {
	if list == nil {
		return nil
	}
	out := make([]record.Record, 0, len(list.Children))
	for _, item := range list.Children {
		if r, ok := c.Extract(item); ok {
			out = append(out, r)
		}
	}
	return out
}
