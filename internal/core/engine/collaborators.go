package engine

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/colonyops/farepilot/internal/core/control"
	"github.com/colonyops/farepilot/internal/core/filter"
	"github.com/colonyops/farepilot/internal/core/record"
	"github.com/colonyops/farepilot/internal/core/uitree"
)

// Device is the input side of the target. A nil error means the action was
// delivered. ErrSnapshotInvalidated and ErrPrivilegedDenied are faults; any
// other error is a soft failure the handler may retry.
type Device interface {
	Activate(ctx context.Context, node *uitree.Node) error
	SyntheticTap(ctx context.Context, x, y int) error
	PrivilegedTap(ctx context.Context, x, y int) error
	NavigateBack(ctx context.Context) error
	ScreenSize() uitree.Size
}

// FilterSource returns the current acceptance rules. It is read once per
// analysis pass and never cached.
type FilterSource interface {
	Filters() filter.Config
}

// StaticFilters serves a fixed configuration.
type StaticFilters filter.Config

func (s StaticFilters) Filters() filter.Config { return filter.Config(s).Clone() }

// Notifier is told about completed accept workflows.
type Notifier interface {
	Accepted(ctx context.Context, r record.Record)
}

// Instruments receives loop measurements.
type Instruments interface {
	Tick(state control.State)
	AnalysisDuration(d time.Duration)
}

type nopInstruments struct{}

func (nopInstruments) Tick(control.State)             {}
func (nopInstruments) AnalysisDuration(time.Duration) {}

// Timer is a pending callback.
type Timer interface {
	Stop() bool
}

// Clock schedules the loop's ticks and timeouts.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// RealClock returns the wall clock.
func RealClock() Clock { return realClock{} }

// RefreshDelay returns base seconds with ±10% jitter. rnd must return a
// value in [0, 1); nil uses math/rand.
func RefreshDelay(base float64, rnd func() float64) time.Duration {
	if rnd == nil {
		rnd = rand.Float64
	}
	ms := base * 1000 * (0.9 + rnd()*0.2)
	return time.Duration(ms * float64(time.Millisecond))
}
