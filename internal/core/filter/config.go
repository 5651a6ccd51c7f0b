// Package filter decides whether an extracted record satisfies the
// configured acceptance rules. Everything here is pure; callers supply the
// clock.
package filter

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Mode selects the acceptance branch.
type Mode string

const (
	// ModeAmountOrKeyword accepts on the base amount, or on a keyword match
	// at the lower keyword amount.
	ModeAmountOrKeyword Mode = "amount-or-keyword"
	// ModeOriginRestricted accepts only origins on the allow-list. Keywords
	// are ignored.
	ModeOriginRestricted Mode = "origin-restricted"
)

// IsValid reports whether m is a known mode.
func (m Mode) IsValid() bool {
	return m == ModeAmountOrKeyword || m == ModeOriginRestricted
}

// Window is an inclusive date-time range.
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t lies within w, bounds included.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

func (w Window) String() string {
	return fmt.Sprintf("%s..%s", w.Start.Format(DateTimeLayout), w.End.Format(DateTimeLayout))
}

// DateTimeLayout is the layout used for windows in settings and logs.
const DateTimeLayout = "2006-01-02 15:04"

// Config is one immutable snapshot of the acceptance rules. The engine asks
// for a fresh snapshot on every analysis pass.
type Config struct {
	Mode               Mode
	MinAmount          int
	KeywordMinAmount   int
	OriginMinAmount    int
	Keywords           []string
	OriginAllowList    []string
	ExcludedCategories []string
	Windows            []Window
}

// Default returns the rules used when no filters file exists.
func Default() Config {
	return Config{
		Mode:               ModeAmountOrKeyword,
		MinAmount:          20000,
		KeywordMinAmount:   15000,
		OriginMinAmount:    10000,
		OriginAllowList:    []string{"Airport", "Station"},
		ExcludedCategories: []string{"Hourly", "Charter"},
	}
}

// Clone returns a deep copy of c.
func (c Config) Clone() Config {
	out := c
	out.Keywords = append([]string(nil), c.Keywords...)
	out.OriginAllowList = append([]string(nil), c.OriginAllowList...)
	out.ExcludedCategories = append([]string(nil), c.ExcludedCategories...)
	out.Windows = append([]Window(nil), c.Windows...)
	return out
}

// Validate reports every problem with the rules.
func (c Config) Validate() error {
	var errs []error

	if !c.Mode.IsValid() {
		errs = append(errs, fmt.Errorf("mode %q is not one of %s, %s", c.Mode, ModeAmountOrKeyword, ModeOriginRestricted))
	}
	if c.MinAmount < 0 {
		errs = append(errs, fmt.Errorf("min_amount must not be negative"))
	}
	if c.KeywordMinAmount < 0 {
		errs = append(errs, fmt.Errorf("keyword_min_amount must not be negative"))
	}
	if c.OriginMinAmount < 0 {
		errs = append(errs, fmt.Errorf("origin_min_amount must not be negative"))
	}
	for i, kw := range c.Keywords {
		if strings.TrimSpace(kw) == "" {
			errs = append(errs, fmt.Errorf("keywords[%d] is blank", i))
		}
	}
	if c.Mode == ModeOriginRestricted && len(c.OriginAllowList) == 0 {
		errs = append(errs, fmt.Errorf("origin_allow_list is required in %s mode", ModeOriginRestricted))
	}
	for i, w := range c.Windows {
		if w.Start.IsZero() || w.End.IsZero() {
			errs = append(errs, fmt.Errorf("windows[%d] needs both start and end", i))
			continue
		}
		if !w.Start.Before(w.End) {
			errs = append(errs, fmt.Errorf("windows[%d] start %s is not before end %s", i,
				w.Start.Format(DateTimeLayout), w.End.Format(DateTimeLayout)))
		}
	}

	return errors.Join(errs...)
}
