package domain

import "slices"

// StateKind distinguishes Plain and Invoke states.
type StateKind string

const (
	KindPlain  StateKind = "plain"
	KindInvoke StateKind = "invoke"
)

// State is a named node of a Definition.
type State struct {
	Name string
	// Transitions maps an event type to its candidates, in declaration order.
	Transitions map[string][]Transition
	// Immediates are evaluated, in order, right after the state is entered.
	Immediates []Transition
	// Final marks a sink. A child service in a final state completes its invocation.
	Final bool
	// Invoke is set for Invoke states.
	Invoke *Invoke
}

// Kind returns the state variant.
func (s *State) Kind() StateKind {
	if s.Invoke != nil {
		return KindInvoke
	}
	return KindPlain
}

// Candidates returns the transitions declared for an event type.
func (s *State) Candidates(eventType string) []Transition {
	return s.Transitions[eventType]
}

// Events returns the event types the state reacts to, sorted.
func (s *State) Events() []string {
	events := make([]string, 0, len(s.Transitions))
	for name := range s.Transitions {
		events = append(events, name)
	}
	slices.Sort(events)
	return events
}

// Targets returns every state name reachable in one step, including immediates.
func (s *State) Targets() []string {
	var targets []string
	for _, name := range s.Events() {
		for _, t := range s.Transitions[name] {
			targets = append(targets, t.To)
		}
	}
	for _, t := range s.Immediates {
		targets = append(targets, t.To)
	}
	return targets
}

func (s *State) clone() *State {
	next := *s
	next.Transitions = make(map[string][]Transition, len(s.Transitions))
	for name, candidates := range s.Transitions {
		next.Transitions[name] = slices.Clone(candidates)
	}
	next.Immediates = slices.Clone(s.Immediates)
	if s.Invoke != nil {
		inv := *s.Invoke
		next.Invoke = &inv
	}
	return &next
}
