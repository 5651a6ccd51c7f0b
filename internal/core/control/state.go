// Package control defines the engine's control states and the decisions
// state handlers return.
package control

// State is one value of the fixed control state set. Exactly one state is
// current at any instant.
type State string

const (
	StateIdle                 State = "idle"
	StateAwaitingOpportunity  State = "awaiting-opportunity"
	StateListScreenDetected   State = "list-screen-detected"
	StateRefreshing           State = "refreshing"
	StateAnalyzing            State = "analyzing"
	StateTargetingItem        State = "targeting-item"
	StateDetailScreenDetected State = "detail-screen-detected"
	StateAwaitingConfirmation State = "awaiting-confirmation"
	StateAccepted             State = "accepted"
	StateErrorAlreadyTaken    State = "error-already-taken"
	StateErrorTimeout         State = "error-timeout"
	StateErrorUnknown         State = "error-unknown"
	StateTimeoutRecovery      State = "timeout-recovery"
)

// AllStates lists every control state in pipeline order.
func AllStates() []State {
	return []State{
		StateIdle,
		StateAwaitingOpportunity,
		StateListScreenDetected,
		StateRefreshing,
		StateAnalyzing,
		StateTargetingItem,
		StateDetailScreenDetected,
		StateAwaitingConfirmation,
		StateAccepted,
		StateErrorAlreadyTaken,
		StateErrorTimeout,
		StateErrorUnknown,
		StateTimeoutRecovery,
	}
}

// IsValid reports whether s is a member of the state set.
func (s State) IsValid() bool {
	for _, st := range AllStates() {
		if st == s {
			return true
		}
	}
	return false
}

// IsError reports whether s is one of the error states.
func (s State) IsError() bool {
	switch s {
	case StateErrorAlreadyTaken, StateErrorTimeout, StateErrorUnknown:
		return true
	default:
		return false
	}
}

// ArmsTimeout reports whether entering s arms the state timeout. Idle,
// accepted and already-taken are exempt.
func (s State) ArmsTimeout() bool {
	switch s {
	case StateIdle, StateAccepted, StateErrorAlreadyTaken:
		return false
	default:
		return true
	}
}

// ClearsTarget reports whether entering s drops the targeted record.
func (s State) ClearsTarget() bool {
	return s == StateAwaitingOpportunity || s == StateErrorAlreadyTaken
}

// AutoAdvance returns the state the loop moves to before dispatch, if any.
// Timeout and already-taken always fall through to recovery so the engine
// cannot park in a terminal error.
func (s State) AutoAdvance() (State, bool) {
	switch s {
	case StateErrorTimeout, StateErrorAlreadyTaken:
		return StateTimeoutRecovery, true
	default:
		return "", false
	}
}

func (s State) String() string { return string(s) }
