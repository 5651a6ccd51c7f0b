// Package record defines the structured opportunity extracted from a list
// item.
package record

import (
	"fmt"
	"maps"

	"github.com/colonyops/farepilot/internal/core/uitree"
)

// Confidence ranks how trustworthy an extraction is. Higher is better. It
// picks between competing strategy results and feeds diagnostics; it never
// affects eligibility.
type Confidence int

const (
	ConfidenceLow      Confidence = iota + 1 // positional heuristics
	ConfidenceHigh                           // pattern based
	ConfidenceVeryHigh                       // identifier based
)

func (c Confidence) String() string {
	switch c {
	case ConfidenceLow:
		return "low"
	case ConfidenceHigh:
		return "high"
	case ConfidenceVeryHigh:
		return "very-high"
	default:
		return "unknown"
	}
}

// Record is one extracted opportunity. Records are values: build them with
// New and never mutate them; a later extraction of the same item supersedes
// the earlier record.
type Record struct {
	origin      string
	destination string
	price       int
	category    string
	scheduled   string
	bounds      uitree.Rect
	target      *uitree.Ref
	confidence  Confidence
	debug       map[string]string
}

// Fields carries the inputs for New.
type Fields struct {
	Origin      string
	Destination string
	Price       int
	Category    string
	Scheduled   string
	Bounds      uitree.Rect
	Target      *uitree.Ref
	Confidence  Confidence
	Debug       map[string]string
}

// New builds a Record, copying every reference field so the result shares
// nothing with f.
func New(f Fields) Record {
	r := Record{
		origin:      f.Origin,
		destination: f.Destination,
		price:       f.Price,
		category:    f.Category,
		scheduled:   f.Scheduled,
		bounds:      f.Bounds,
		confidence:  f.Confidence,
		debug:       maps.Clone(f.Debug),
	}
	if f.Target != nil {
		ref := f.Target.Clone()
		r.target = &ref
	}
	return r
}

func (r Record) Origin() string { return r.origin }
func (r Record) Destination() string { return r.destination }
func (r Record) Price() int { return r.price }
func (r Record) Category() string { return r.category }

// Scheduled returns the raw scheduled time string, empty when absent.
func (r Record) Scheduled() string { return r.scheduled }
func (r Record) Bounds() uitree.Rect { return r.bounds }
func (r Record) Confidence() Confidence { return r.confidence }

// Target returns the locator of the clickable node, if one was resolved.
func (r Record) Target() (uitree.Ref, bool) {
	if r.target == nil {
		return uitree.Ref{}, false
	}
	return r.target.Clone(), true
}

// Debug returns a copy of the extraction diagnostics.
func (r Record) Debug() map[string]string {
	return maps.Clone(r.debug)
}

// Key correlates log lines about the same physical item. It is not a
// uniqueness constraint.
func (r Record) Key() string {
	return fmt.Sprintf("%s|%s|%d|%s", r.origin, r.destination, r.price, r.scheduled)
}

func (r Record) String() string {
	return fmt.Sprintf("%s -> %s %d [%s %s] (%s)", r.origin, r.destination, r.price, r.category, r.scheduled, r.confidence)
}
