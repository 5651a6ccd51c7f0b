package engine

import (
	"time"

	"github.com/colonyops/farepilot/internal/core/control"
)

// Options tunes the scheduling loop and the handlers.
type Options struct {
	// Context is the expected snapshot context. Snapshots from anything else
	// are treated as unavailable. Empty accepts any context.
	Context string

	Delays           map[control.State]time.Duration
	DefaultDelay     time.Duration
	NoSnapshotDelay  time.Duration
	PausedDelay      time.Duration
	InvalidatedDelay time.Duration
	PrivilegedDelay  time.Duration
	FaultDelay       time.Duration

	Timeout        time.Duration
	ConfirmTimeout time.Duration
	Timeouts       map[control.State]time.Duration // per-state overrides

	RefreshInterval    float64 // seconds
	RefreshLogInterval time.Duration

	PauseOnFailure     bool
	TargetAttempts     int
	DetailGraceTicks   int
	ConfirmAttempts    int
	ConfirmStableTicks int
	ConfirmWaitTicks   int

	Screens Screens
}

// Screens holds the markers and controls used to recognize the target's
// screens.
type Screens struct {
	ListMarkers     []string
	ListContainerID string
	DetailMarkers   []string

	RefreshID    string
	RefreshTexts []string
	ActionID     string
	ActionTexts  []string
	ConfirmID    string
	ConfirmTexts []string
	DismissID    string
	DismissTexts []string

	AlreadyAssignedTexts []string
	CanceledTexts        []string

	// PrivilegedConfirm enables the privileged channel for the confirm
	// control after direct and synthetic activation fail.
	PrivilegedConfirm bool
}

// DefaultOptions returns the stock tuning.
func DefaultOptions() Options {
	return Options{
		Delays: map[control.State]time.Duration{
			control.StateIdle:                 500 * time.Millisecond,
			control.StateAwaitingOpportunity:  100 * time.Millisecond,
			control.StateListScreenDetected:   100 * time.Millisecond,
			control.StateRefreshing:           300 * time.Millisecond,
			control.StateAnalyzing:            50 * time.Millisecond,
			control.StateTargetingItem:        30 * time.Millisecond,
			control.StateDetailScreenDetected: 50 * time.Millisecond,
			control.StateAwaitingConfirmation: 50 * time.Millisecond,
			control.StateAccepted:             500 * time.Millisecond,
			control.StateErrorAlreadyTaken:    300 * time.Millisecond,
			control.StateErrorTimeout:         300 * time.Millisecond,
			control.StateErrorUnknown:         300 * time.Millisecond,
			control.StateTimeoutRecovery:      400 * time.Millisecond,
		},
		DefaultDelay:     100 * time.Millisecond,
		NoSnapshotDelay:  100 * time.Millisecond,
		PausedDelay:      time.Second,
		InvalidatedDelay: 200 * time.Millisecond,
		PrivilegedDelay:  3 * time.Second,
		FaultDelay:       time.Second,

		Timeout:        10 * time.Second,
		ConfirmTimeout: 20 * time.Second,

		RefreshInterval:    5.0,
		RefreshLogInterval: 5 * time.Second,

		TargetAttempts:     3,
		DetailGraceTicks:   3,
		ConfirmAttempts:    3,
		ConfirmStableTicks: 2,
		ConfirmWaitTicks:   10,

		Screens: Screens{
			ListMarkers:          []string{"Call list"},
			ListContainerID:      "call_list",
			DetailMarkers:        []string{"Call detail"},
			RefreshID:            "btn_refresh",
			RefreshTexts:         []string{"Refresh"},
			ActionID:             "btn_accept",
			ActionTexts:          []string{"Accept", "Take call"},
			ConfirmID:            "btn_confirm",
			ConfirmTexts:         []string{"Confirm"},
			DismissID:            "btn_dismiss",
			DismissTexts:         []string{"Close", "Dismiss"},
			AlreadyAssignedTexts: []string{"already assigned", "Already taken"},
			CanceledTexts:        []string{"canceled", "cancelled"},
		},
	}
}

// delay returns the poll delay after a tick that ended in s.
func (o Options) delay(s control.State) time.Duration {
	if d, ok := o.Delays[s]; ok && d > 0 {
		return d
	}
	return o.DefaultDelay
}

// timeout returns how long s may stay current before timing out.
func (o Options) timeout(s control.State) time.Duration {
	if d, ok := o.Timeouts[s]; ok && d > 0 {
		return d
	}
	if s == control.StateAwaitingConfirmation && o.ConfirmTimeout > 0 {
		return o.ConfirmTimeout
	}
	return o.Timeout
}
