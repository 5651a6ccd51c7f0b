package extract

import (
	"strconv"
	"strings"

	"github.com/colonyops/farepilot/internal/core/record"
	"github.com/colonyops/farepilot/internal/core/uitree"
)

// Strategy reads a record from an item subtree. Implementations are
// stateless: the same input always yields the same output.
type Strategy interface {
	Name() string
	Confidence() record.Confidence
	Extract(item *uitree.Node) (record.Record, bool)
}

// fields is the intermediate result shared by every strategy before the
// target is resolved.
type fields struct {
	origin, dest        string
	price               int
	scheduled, category string
	debug               map[string]string
}

// complete reports whether every required field was found: time, route
// and a positive price.
func (f fields) complete() bool {
	return f.scheduled != "" && f.origin != "" && f.dest != "" && f.price > 0
}

func build(item *uitree.Node, f fields, s Strategy) record.Record {
	target := ResolveTarget(item)
	ref := target.Ref()

	debug := f.debug
	if debug == nil {
		debug = map[string]string{}
	}
	debug["strategy"] = s.Name()
	debug["target"] = ref.String()

	return record.New(record.Fields{
		Origin:      f.origin,
		Destination: f.dest,
		Price:       f.price,
		Category:    f.category,
		Scheduled:   f.scheduled,
		Bounds:      item.Bounds,
		Target:      &ref,
		Confidence:  s.Confidence(),
		Debug:       debug,
	})
}

// ResolveTarget returns the node a click on item should be sent to: the
// nearest actionable self-or-ancestor, or item itself when none is.
func ResolveTarget(item *uitree.Node) *uitree.Node {
	if n := item.ClickableAncestor(); n != nil {
		return n
	}
	return item
}

func nodeText(n *uitree.Node) string {
	if n == nil {
		return ""
	}
	if t := strings.TrimSpace(n.Text); t != "" {
		return t
	}
	return strings.TrimSpace(n.Desc)
}

// Identifier reads the well-known field identifiers.
type Identifier struct{ c *compiled }

func (Identifier) Name() string                  { return NameIdentifier }
func (Identifier) Confidence() record.Confidence { return record.ConfidenceVeryHigh }

func (s Identifier) Extract(item *uitree.Node) (record.Record, bool) {
	schedule := nodeText(item.FindByID(s.c.ScheduleID))
	route := nodeText(item.FindByID(s.c.RouteID))
	fare := nodeText(item.FindByID(s.c.FareID))
	if schedule == "" || route == "" || fare == "" {
		return record.Record{}, false
	}

	f := fields{debug: map[string]string{}}
	f.scheduled, f.category = s.c.splitSchedule(schedule)

	var via string
	var ok bool
	if f.origin, f.dest, via, ok = s.c.splitRoute(route); !ok {
		return record.Record{}, false
	}
	f.debug["route"] = via

	f.price = s.c.parsePrice(fare)
	if !f.complete() {
		return record.Record{}, false
	}
	return build(item, f, s), true
}

// Pattern scans the item's text segments with the configured markers and
// patterns.
type Pattern struct{ c *compiled }

func (Pattern) Name() string                  { return NamePattern }
func (Pattern) Confidence() record.Confidence { return record.ConfidenceHigh }

func (s Pattern) Extract(item *uitree.Node) (record.Record, bool) {
	segs := item.Segments()
	used := make([]bool, len(segs))
	f := fields{debug: map[string]string{"segments": strconv.Itoa(len(segs))}}

	scanFare(s.c, segs, used, &f)
	scanSchedule(s.c, segs, used, &f)

	for i, seg := range segs {
		if used[i] {
			continue
		}
		if o, d, ok := s.c.matchRoute(seg); ok {
			f.origin, f.dest = o, d
			used[i] = true
			f.debug["route"] = "pattern"
			break
		}
	}
	if f.origin == "" {
		for i, seg := range segs {
			if used[i] {
				continue
			}
			if o, d, ok := s.c.splitArrow(seg); ok {
				f.origin, f.dest = o, d
				used[i] = true
				f.debug["route"] = "arrow"
				break
			}
		}
	}
	if f.origin == "" {
		positional(s.c, segs, used, &f)
	}

	if !f.complete() {
		return record.Record{}, false
	}
	return build(item, f, s), true
}

// Heuristic reads price and time like Pattern but assigns origin and
// destination purely by position.
type Heuristic struct{ c *compiled }

func (Heuristic) Name() string                  { return NameHeuristic }
func (Heuristic) Confidence() record.Confidence { return record.ConfidenceLow }

func (s Heuristic) Extract(item *uitree.Node) (record.Record, bool) {
	segs := item.Segments()
	used := make([]bool, len(segs))
	f := fields{debug: map[string]string{"segments": strconv.Itoa(len(segs))}}

	scanFare(s.c, segs, used, &f)
	scanSchedule(s.c, segs, used, &f)
	positional(s.c, segs, used, &f)

	if !f.complete() {
		return record.Record{}, false
	}
	return build(item, f, s), true
}

// scanFare takes the price from the first segment carrying both a currency
// and a fee marker.
func scanFare(c *compiled, segs []string, used []bool, f *fields) {
	for i, seg := range segs {
		if !c.isFareSegment(seg) {
			continue
		}
		if p := c.parsePrice(seg); p > 0 {
			f.price = p
			used[i] = true
			f.debug["price_segment"] = strconv.Itoa(i)
			return
		}
	}
}

func scanSchedule(c *compiled, segs []string, used []bool, f *fields) {
	for i, seg := range segs {
		if used[i] {
			continue
		}
		if at, cat := c.splitSchedule(seg); at != "" {
			f.scheduled, f.category = at, cat
			used[i] = true
			f.debug["time_segment"] = strconv.Itoa(i)
			return
		}
	}
}

func positional(c *compiled, segs []string, used []bool, f *fields) {
	var picked []string
	for i, seg := range segs {
		if used[i] || !c.qualifies(seg) {
			continue
		}
		picked = append(picked, seg)
		used[i] = true
		if len(picked) == 2 {
			break
		}
	}
	if len(picked) == 2 {
		f.origin, f.dest = picked[0], picked[1]
		f.debug["route"] = "position"
	}
}
