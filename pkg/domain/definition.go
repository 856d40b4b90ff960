package domain

import "fmt"

// ContextFunc builds the initial context of a service from the caller-supplied
// initial context and the initial event.
type ContextFunc func(initial Context, ev Event) Context

// Definition is the immutable description of a machine.
// It can only be obtained from NewDefinition, which validates it.
type Definition struct {
	name      string
	initial   string
	order     []string
	states    map[string]*State
	contextFn ContextFunc
}

// DefinitionOption configures NewDefinition.
type DefinitionOption func(*Definition)

// WithInitialState sets the initial state. By default the first (leading) state is used.
func WithInitialState(name string) DefinitionOption {
	return func(d *Definition) {
		d.initial = name
	}
}

// WithContextFunc sets the context initializer.
func WithContextFunc(fn ContextFunc) DefinitionOption {
	return func(d *Definition) {
		d.contextFn = fn
	}
}

// WithName labels the definition for logs, metrics and diagrams.
func WithName(name string) DefinitionOption {
	return func(d *Definition) {
		d.name = name
	}
}

// NewDefinition validates the states and freezes them into a Definition.
// States are copied, so later changes to the arguments do not leak into the definition.
func NewDefinition(states []*State, opts ...DefinitionOption) (*Definition, error) {
	if len(states) == 0 {
		return nil, ErrEmptyDefinition
	}

	d := &Definition{
		order:  make([]string, 0, len(states)),
		states: make(map[string]*State, len(states)),
	}
	for _, opt := range opts {
		opt(d)
	}

	for _, s := range states {
		if s == nil {
			return nil, fmt.Errorf("nil state at position %d", len(d.order))
		}
		if _, exists := d.states[s.Name]; exists {
			return nil, &DefinitionError{State: s.Name, Reason: "duplicate state name"}
		}
		d.states[s.Name] = s.clone()
		d.order = append(d.order, s.Name)
	}

	if d.initial == "" {
		d.initial = d.order[0]
	}
	if _, ok := d.states[d.initial]; !ok {
		return nil, &UnknownInitialStateError{Initial: d.initial}
	}

	for _, name := range d.order {
		s := d.states[name]
		for _, target := range s.Targets() {
			if _, ok := d.states[target]; !ok {
				return nil, &DefinitionError{State: name, Target: target}
			}
		}
		if s.Invoke == nil {
			continue
		}
		if !s.Invoke.valid() {
			return nil, &DefinitionError{State: name, Reason: fmt.Sprintf("invoke of kind %s has no payload", s.Invoke.Kind)}
		}
		if len(s.Immediates) > 0 {
			return nil, &DefinitionError{State: name, Reason: "invoke states cannot declare immediate transitions"}
		}
	}

	return d, nil
}

// Name returns the label given with WithName, if any.
func (d *Definition) Name() string { return d.name }

// Initial returns the effective initial state name.
func (d *Definition) Initial() string { return d.initial }

// States returns the state names in declaration order.
func (d *Definition) States() []string {
	out := make([]string, len(d.order))
	copy(out, d.order)
	return out
}

// State looks up a state by name. The returned value must be treated as read-only.
func (d *Definition) State(name string) (*State, bool) {
	s, ok := d.states[name]
	return s, ok
}

// InitialContext runs the context initializer. Without one the context starts empty.
func (d *Definition) InitialContext(initial Context, ev Event) Context {
	if d.contextFn == nil {
		return Context{}
	}
	c := d.contextFn(initial.Clone(), ev)
	if c == nil {
		return Context{}
	}
	return c
}

// MissingErrorPaths lists the function-invoke states that declare no "error" transition.
// Failures of their tasks are absorbed as unhandled events.
func (d *Definition) MissingErrorPaths() []string {
	var missing []string
	for _, name := range d.order {
		s := d.states[name]
		if s.Invoke == nil || !s.Invoke.FromFunction() {
			continue
		}
		if len(s.Transitions[EventError]) == 0 {
			missing = append(missing, name)
		}
	}
	return missing
}

// Label returns the name or, for anonymous definitions, the initial state in brackets.
func (d *Definition) Label() string {
	if d.name != "" {
		return d.name
	}
	return "[" + d.initial + "]"
}
