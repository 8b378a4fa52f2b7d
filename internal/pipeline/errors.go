package pipeline

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig is returned by Init for unusable options.
	ErrInvalidConfig = errors.New("pipeline: invalid configuration")

	// ErrInvalidState is returned for a call the session cannot accept in
	// its current state.
	ErrInvalidState = errors.New("pipeline: invalid state")
)

// State is the lifecycle position of a session.
type State int

const (
	Uninitialized State = iota
	Ready
	Streaming
	Finalized
	// Failed is entered after a codec error. The session accepts no more
	// calls.
	Failed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Ready:
		return "ready"
	case Streaming:
		return "streaming"
	case Finalized:
		return "finalized"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// accepting reports whether mutators may run.
func (s State) accepting() bool {
	return s == Ready || s == Streaming
}

// StateError reports a call made in the wrong state. For a failed session
// Err holds the error that caused the failure.
type StateError struct {
	Op    string
	State State
	Err   error
}

func (e *StateError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("pipeline: %s in state %s: %v", e.Op, e.State, e.Err)
	}
	return fmt.Sprintf("pipeline: %s in state %s", e.Op, e.State)
}

// Unwrap matches ErrInvalidState and the original failure.
func (e *StateError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrInvalidState, e.Err}
	}
	return []error{ErrInvalidState}
}
