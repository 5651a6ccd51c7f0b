package control

import "fmt"

// Kind discriminates the Decision variants.
type Kind int

const (
	KindNoChange Kind = iota
	KindTransition
	KindError
	KindPauseAndTransition
)

func (k Kind) String() string {
	switch k {
	case KindNoChange:
		return "no-change"
	case KindTransition:
		return "transition"
	case KindError:
		return "error"
	case KindPauseAndTransition:
		return "pause-and-transition"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Decision is the tagged result of a state handler. Construct it with
// NoChange, Transition, Fail or PauseAndTransition.
type Decision struct {
	Kind   Kind
	Next   State
	Reason string
}

// NoChange keeps the current state; the handler is re-invoked next tick.
func NoChange() Decision {
	return Decision{Kind: KindNoChange}
}

// Transition moves to next, recording reason for diagnostics.
func Transition(next State, reason string) Decision {
	return Decision{Kind: KindTransition, Next: next, Reason: reason}
}

// Transitionf is Transition with a formatted reason.
func Transitionf(next State, format string, args ...any) Decision {
	return Transition(next, fmt.Sprintf(format, args...))
}

// Fail moves to an error state. It differs from Transition only in how the
// move is classified in logs.
func Fail(errState State, reason string) Decision {
	return Decision{Kind: KindError, Next: errState, Reason: reason}
}

// Failf is Fail with a formatted reason.
func Failf(errState State, format string, args ...any) Decision {
	return Fail(errState, fmt.Sprintf(format, args...))
}

// PauseAndTransition atomically pauses the engine and moves to next.
func PauseAndTransition(next State, reason string) Decision {
	return Decision{Kind: KindPauseAndTransition, Next: next, Reason: reason}
}

// Changes reports whether applying d moves the state machine.
func (d Decision) Changes() bool {
	return d.Kind != KindNoChange
}

func (d Decision) String() string {
	if d.Kind == KindNoChange {
		return d.Kind.String()
	}
	if d.Reason == "" {
		return fmt.Sprintf("%s(%s)", d.Kind, d.Next)
	}
	return fmt.Sprintf("%s(%s: %s)", d.Kind, d.Next, d.Reason)
}
