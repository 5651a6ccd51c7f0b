package engine

import (
	"time"

	"github.com/colonyops/farepilot/internal/core/record"
)

// Shared is the cross-state data owned by the loop. Handlers may read and
// write it during their call only.
type Shared struct {
	// Target is the record chosen by analysis. It is cleared on entry to
	// awaiting-opportunity and error-already-taken.
	Target *record.Record

	CycleID string
	Now     time.Time // time of the current tick

	LastRefresh    time.Time
	RefreshTarget  time.Duration // jittered interval for the pending refresh, zero once it fires
	RefreshElapsed time.Duration // elapsed time when the last refresh was due
	RefreshMin     time.Duration
	RefreshMax     time.Duration

	// PauseOnFailure pauses the engine on privileged and unexpected faults
	// instead of retrying.
	PauseOnFailure bool

	Device Device
}

func (s *Shared) reset() {
	s.Target = nil
	s.CycleID = ""
	s.LastRefresh = time.Time{}
	s.RefreshTarget = 0
	s.RefreshElapsed = 0
}
