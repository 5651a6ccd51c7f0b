package farepilot

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/colonyops/farepilot/internal/data/stores"
)

// Report is the journal digest for a time window.
type Report struct {
	Since       time.Time
	Summary     stores.Summary
	Accepted    []stores.Acceptance
	Faults      []stores.Fault
	Evaluated   int
	Rejected    int
	TopRejected []ReasonCount
}

// ReasonCount tallies one rejection reason.
type ReasonCount struct {
	Reason string
	Count  int
}

const reportScan = 5000

// BuildReport collects journal rows recorded at or after since.
func (a *App) BuildReport(ctx context.Context, since time.Time) (Report, error) {
	if a.Journal == nil {
		return Report{}, errors.New("journal is not available")
	}

	r := Report{Since: since}

	var err error
	if r.Summary, err = a.Journal.SummarySince(ctx, since); err != nil {
		return Report{}, err
	}

	accepted, err := a.Journal.Acceptances(ctx, reportScan)
	if err != nil {
		return Report{}, err
	}
	r.Accepted = takeSince(accepted, since, func(x stores.Acceptance) time.Time { return x.At })

	faults, err := a.Journal.Faults(ctx, reportScan)
	if err != nil {
		return Report{}, err
	}
	r.Faults = takeSince(faults, since, func(x stores.Fault) time.Time { return x.At })

	evals, err := a.Journal.Evaluations(ctx, "", reportScan)
	if err != nil {
		return Report{}, err
	}
	counts := map[string]int{}
	var order []string
	for _, e := range takeSince(evals, since, func(x stores.Evaluation) time.Time { return x.At }) {
		r.Evaluated++
		if e.Accepted {
			continue
		}
		r.Rejected++
		reason, _, _ := strings.Cut(e.Reason, ";")
		if counts[reason] == 0 {
			order = append(order, reason)
		}
		counts[reason]++
	}
	for _, reason := range order {
		r.TopRejected = append(r.TopRejected, ReasonCount{Reason: reason, Count: counts[reason]})
	}
	slices.SortStableFunc(r.TopRejected, func(x, y ReasonCount) int { return y.Count - x.Count })
	if len(r.TopRejected) > 5 {
		r.TopRejected = r.TopRejected[:5]
	}

	return r, nil
}

// takeSince keeps the leading rows at or after since. Rows are newest first.
func takeSince[T any](rows []T, since time.Time, at func(T) time.Time) []T {
	for i, row := range rows {
		if at(row).Before(since) {
			return rows[:i]
		}
	}
	return rows
}

// Markdown renders the report as a markdown document.
func (r Report) Markdown() string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Activity since %s\n\n", r.Since.Format("2006-01-02 15:04"))
	fmt.Fprintf(&b, "- **Accepted:** %d orders, total %d\n", r.Summary.Count, r.Summary.Total)
	fmt.Fprintf(&b, "- **Evaluated:** %d records, %d rejected\n", r.Evaluated, r.Rejected)
	fmt.Fprintf(&b, "- **Faults:** %d\n", len(r.Faults))

	if len(r.Accepted) > 0 {
		b.WriteString("\n## Accepted orders\n\n")
		b.WriteString("| Time | Route | Price | Scheduled |\n|---|---|---:|---|\n")
		for _, a := range r.Accepted {
			fmt.Fprintf(&b, "| %s | %s → %s | %d | %s |\n",
				a.At.Format(time.DateTime), cell(a.Origin), cell(a.Destination), a.Price, cell(a.Scheduled))
		}
	}

	if len(r.TopRejected) > 0 {
		b.WriteString("\n## Top rejection reasons\n\n")
		for _, rc := range r.TopRejected {
			fmt.Fprintf(&b, "1. %s (%d)\n", rc.Reason, rc.Count)
		}
	}

	if len(r.Faults) > 0 {
		b.WriteString("\n## Faults\n\n")
		b.WriteString("| Time | State | Class | Message |\n|---|---|---|---|\n")
		for _, f := range r.Faults {
			fmt.Fprintf(&b, "| %s | %s | %s | %s |\n",
				f.At.Format(time.DateTime), f.State, f.Class, cell(f.Message))
		}
	}

	return b.String()
}

func cell(s string) string {
	if s == "" {
		return "-"
	}
	return strings.ReplaceAll(s, "|", `\|`)
}
