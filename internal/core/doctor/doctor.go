// Package doctor runs diagnostic checks over a farepilot installation.
package doctor

import (
	"context"
	"time"
)

// Status is the outcome of one check item. Higher is worse.
type Status string

const (
	StatusPass Status = "pass"
	StatusWarn Status = "warn"
	StatusFail Status = "fail"
)

func (s Status) rank() int {
	switch s {
	case StatusWarn:
		return 1
	case StatusFail:
		return 2
	default:
		return 0
	}
}

// CheckItem is one line within a check result.
type CheckItem struct {
	Label  string `json:"label"`
	Status Status `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// Result groups the items one check produced.
type Result struct {
	Name  string        `json:"name"`
	Items []CheckItem   `json:"items"`
	Took  time.Duration `json:"took_ns"`
}

// Worst returns the most severe item status, or pass for an empty result.
func (r Result) Worst() Status {
	worst := StatusPass
	for _, it := range r.Items {
		if it.Status.rank() > worst.rank() {
			worst = it.Status
		}
	}
	return worst
}

// Check is one diagnostic.
type Check interface {
	Name() string
	Run(ctx context.Context) Result
}

// RunAll runs checks in order. A canceled context stops before the next
// check starts.
func RunAll(ctx context.Context, checks []Check) []Result {
	results := make([]Result, 0, len(checks))
	for _, check := range checks {
		if ctx.Err() != nil {
			break
		}
		start := time.Now()
		r := check.Run(ctx)
		if r.Name == "" {
			r.Name = check.Name()
		}
		r.Took = time.Since(start)
		results = append(results, r)
	}
	return results
}

// Summary counts items by status across all results.
func Summary(results []Result) (passed, warned, failed int) {
	for _, r := range results {
		for _, item := range r.Items {
			switch item.Status {
			case StatusPass:
				passed++
			case StatusWarn:
				warned++
			case StatusFail:
				failed++
			}
		}
	}
	return passed, warned, failed
}

// Healthy reports whether no item failed.
func Healthy(results []Result) bool {
	_, _, failed := Summary(results)
	return failed == 0
}
