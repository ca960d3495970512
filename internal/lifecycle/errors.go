package lifecycle

import (
	"errors"
	"fmt"

	"query-scheduler/internal/domain"
)

// GuardReason explains why a guard rejected an event.
type GuardReason string

// Guard failure reasons. Permission failures are reported as
// *domain.AccessDeniedError instead.
const (
	ReasonRunning GuardReason = "query is currently running"
	ReasonBusy    GuardReason = "an operation is already in progress"
)

// GuardError reports an event rejected by a guard. The state is unchanged.
type GuardError struct {
	Event  Event
	State  State
	Reason GuardReason
}

func (e *GuardError) Error() string {
	return fmt.Sprintf("%s rejected in %s: %s", e.Event, e.State, e.Reason)
}

// TransitionError reports an event that has no transition from the current
// state. It indicates a caller bug, not a user mistake.
type TransitionError struct {
	Event Event
	State State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("illegal transition: %s in %s", e.Event, e.State)
}

var (
	// ErrNoQuery is returned when no query is selected.
	ErrNoQuery = errors.New("no scheduled query selected")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("controller closed")
)

func illegal(s State, ev Event) error {
	return &TransitionError{Event: ev, State: s}
}

// mutationGuard checks the preconditions shared by startEdit, requestDelete
// and requestRunNow.
func mutationGuard(ev Event, g Guards) error {
	if !g.CanEdit {
		return domain.ErrAccessDenied("%s requires ownership of the query", ev)
	}
	if g.Running {
		return &GuardError{Event: ev, State: Viewing(), Reason: ReasonRunning}
	}
	return nil
}
