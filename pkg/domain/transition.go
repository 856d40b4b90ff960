package domain

// Guard gates whether a transition may be taken.
type Guard func(c Context, ev Event) bool

// Reducer computes the next context from the current one and the triggering event.
type Reducer func(c Context, ev Event) Context

// Transition defines a guarded, reducing edge to another state.
// Immediates are transitions with an empty Event, evaluated right after their source is entered.
type Transition struct {
	Event    string    `json:"event,omitempty" yaml:"event,omitempty"`
	To       string    `json:"to" yaml:"to"`
	Guards   []Guard   `json:"-" yaml:"-"`
	Reducers []Reducer `json:"-" yaml:"-"`
}

// Allows evaluates the guard chain as a short-circuiting AND.
// A transition without guards is always allowed.
func (t Transition) Allows(c Context, ev Event) bool {
	for _, g := range t.Guards {
		if !g(c, ev) {
			return false
		}
	}
	return true
}

// Apply folds the context through the reducers from left to right.
func (t Transition) Apply(c Context, ev Event) Context {
	for _, r := range t.Reducers {
		c = r(c, ev)
	}
	return c
}

// Guarded reports whether the transition carries at least one guard.
func (t Transition) Guarded() bool {
	return len(t.Guards) > 0
}

// Select returns the first candidate whose guard chain passes (first match wins).
func Select(candidates []Transition, c Context, ev Event) (Transition, bool) {
	for _, t := range candidates {
		if t.Allows(c, ev) {
			return t, true
		}
	}
	return Transition{}, false
}
