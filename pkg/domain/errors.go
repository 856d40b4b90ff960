package domain

import (
	"errors"
	"fmt"
)

// ErrEmptyDefinition is returned when a definition is built without states.
var ErrEmptyDefinition = errors.New("definition has no states")

// ErrNoMachine is the error of the "error" event synthesized when a resolver returns no machine.
var ErrNoMachine = errors.New("resolver returned no machine")

// DefinitionError reports an invalid state declaration found at build time.
type DefinitionError struct {
	State  string
	Target string
	Reason string
}

func (e *DefinitionError) Error() string {
	if e.Target != "" {
		return fmt.Sprintf("cannot transition from %q to unknown state %q", e.State, e.Target)
	}
	return fmt.Sprintf("state %q: %s", e.State, e.Reason)
}

// UnknownInitialStateError reports an initial state missing from the state set.
type UnknownInitialStateError struct {
	Initial string
}

func (e *UnknownInitialStateError) Error() string {
	return fmt.Sprintf("initial state %q is not a known state", e.Initial)
}

// UnhandledEventError is returned by strict services for events without candidates.
type UnhandledEventError struct {
	Event string
	State string
}

func (e *UnhandledEventError) Error() string {
	return fmt.Sprintf("no transitions for event %q from the current state %q", e.Event, e.State)
}

// CascadeDepthError aborts a synchronous cascade that committed too many transitions.
type CascadeDepthError struct {
	State string
	To    string
	Limit int
}

func (e *CascadeDepthError) Error() string {
	return fmt.Sprintf("cascade exceeded %d transitions at %q -> %q", e.Limit, e.State, e.To)
}
