package engine

import (
	"fmt"

	"github.com/danielolaszy/tether/internal/logging"
)

// State is one stage of a sync operation.
type State string

const (
	// StateIdle is the initial state before the fetch starts.
	StateIdle State = "idle"
	// StateFetching covers the remote fetch. Cancellation is honored here.
	StateFetching State = "fetching"
	// StateComparing covers snapshot/local loading and conflict resolution.
	StateComparing State = "comparing"
	// StateAwaitingResolution blocks until manual conflicts are decided.
	// Cancellation is honored here.
	StateAwaitingResolution State = "awaiting_resolution"
	// StateApplying covers local writes and remote pushes. Cancellation is
	// refused once this state is entered.
	StateApplying State = "applying"
	// StateDone is the successful terminal state.
	StateDone State = "done"
	// StateFailed is the terminal state for any error; the snapshot base
	// keeps its last successful value.
	StateFailed State = "failed"
)

// Terminal reports whether no further transition can leave the state.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// operation tracks one sync run through the state machine.
type operation struct {
	id        string
	projectID string
	state     State
}

func (op *operation) transition(to State) error {
	if !allowedTransition(op.state, to) {
		return fmt.Errorf("invalid sync transition %s -> %s for project %s", op.state, to, op.projectID)
	}
	logging.Debug("sync transition", "operation", op.id, "project", op.projectID, "from", op.state, "to", to)
	op.state = to
	return nil
}

func allowedTransition(from, to State) bool {
	if to == StateFailed {
		return !from.Terminal()
	}
	switch from {
	case StateIdle:
		return to == StateFetching
	case StateFetching:
		return to == StateComparing
	case StateComparing:
		return to == StateAwaitingResolution || to == StateApplying
	case StateAwaitingResolution:
		return to == StateApplying
	case StateApplying:
		return to == StateDone
	default:
		return false
	}
}
