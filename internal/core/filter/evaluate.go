package filter

import (
	"fmt"
	"strings"
	"time"

	"github.com/colonyops/farepilot/internal/core/record"
)

// Branch names the rule that produced an acceptance.
type Branch string

const (
	BranchNone    Branch = ""
	BranchAmount  Branch = "amount"
	BranchKeyword Branch = "keyword"
	BranchOrigin  Branch = "origin"
)

// Verdict is the outcome of evaluating one record. Reasons lists every
// failed condition of the branch that rejected the record and is empty when
// the record is accepted.
type Verdict struct {
	Accepted bool
	Branch   Branch
	Matched  string // keyword or origin marker that matched, if any
	Reasons  []string
}

// RejectReason returns "" for an accepted verdict and the joined failure
// conditions otherwise.
func (v Verdict) RejectReason() string {
	if v.Accepted {
		return ""
	}
	return strings.Join(v.Reasons, "; ")
}

func accept(b Branch, matched string) Verdict {
	return Verdict{Accepted: true, Branch: b, Matched: matched}
}

func reject(reasons ...string) Verdict {
	return Verdict{Reasons: reasons}
}

// Evaluate applies the rules in c to r. Category and time-window checks run
// first; the mode branch decides the rest.
func Evaluate(r record.Record, c Config, now time.Time) Verdict {
	if rule, ok := excluded(r.Category(), c.ExcludedCategories); ok {
		return reject(fmt.Sprintf("category %q excluded by rule %q", r.Category(), rule))
	}

	if r.Scheduled() != "" && len(c.Windows) > 0 {
		at, err := ResolveScheduled(r.Scheduled(), now)
		if err != nil {
			return reject(fmt.Sprintf("scheduled time %q unreadable", r.Scheduled()))
		}
		if !inAnyWindow(at, c.Windows) {
			return reject(fmt.Sprintf("scheduled time %s outside all %d time windows", at.Format(DateTimeLayout), len(c.Windows)))
		}
	}

	switch c.Mode {
	case ModeAmountOrKeyword:
		return evaluateAmountOrKeyword(r, c)
	case ModeOriginRestricted:
		return evaluateOriginRestricted(r, c)
	default:
		return reject(fmt.Sprintf("unknown mode %q", c.Mode))
	}
}

// RejectReason is Evaluate(...).RejectReason(). It shares the decision path
// with acceptance so the two can never disagree.
func RejectReason(r record.Record, c Config, now time.Time) string {
	return Evaluate(r, c, now).RejectReason()
}

func evaluateAmountOrKeyword(r record.Record, c Config) Verdict {
	if r.Price() >= c.MinAmount {
		return accept(BranchAmount, "")
	}

	reasons := []string{fmt.Sprintf("price %d below minimum %d", r.Price(), c.MinAmount)}

	if len(c.Keywords) == 0 {
		return reject(append(reasons, "no keywords configured")...)
	}

	kw, ok := matchAny(c.Keywords, r.Origin(), r.Destination())
	if !ok {
		return reject(append(reasons, "no keyword matches origin or destination")...)
	}
	if r.Price() >= c.KeywordMinAmount {
		return accept(BranchKeyword, kw)
	}

	return reject(append(reasons,
		fmt.Sprintf("keyword %q matched but price %d below keyword minimum %d", kw, r.Price(), c.KeywordMinAmount))...)
}

func evaluateOriginRestricted(r record.Record, c Config) Verdict {
	marker, ok := matchAny(c.OriginAllowList, r.Origin())
	priceOK := r.Price() >= c.OriginMinAmount

	if ok && priceOK {
		return accept(BranchOrigin, marker)
	}

	var reasons []string
	if !ok {
		reasons = append(reasons, fmt.Sprintf("origin %q not on allow-list", r.Origin()))
	}
	if !priceOK {
		reasons = append(reasons, fmt.Sprintf("price %d below origin minimum %d", r.Price(), c.OriginMinAmount))
	}
	return reject(reasons...)
}

// matchAny returns the first needle found, case-insensitively, in any of
// the haystacks.
func matchAny(needles []string, haystacks ...string) (string, bool) {
	for _, n := range needles {
		ln := strings.ToLower(strings.TrimSpace(n))
		if ln == "" {
			continue
		}
		for _, h := range haystacks {
			if strings.Contains(strings.ToLower(h), ln) {
				return n, true
			}
		}
	}
	return "", false
}

func excluded(category string, rules []string) (string, bool) {
	if category == "" {
		return "", false
	}
	return matchAny(rules, category)
}

func inAnyWindow(t time.Time, windows []Window) bool {
	for _, w := range windows {
		if w.Contains(t) {
			return true
		}
	}
	return false
}
