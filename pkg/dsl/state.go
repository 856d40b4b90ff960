package dsl

import "github.com/sytabaresa/robot/pkg/domain"

// StatePart configures a state under construction.
type StatePart func(*domain.State)

// TransitionPart configures a transition under construction.
type TransitionPart func(*domain.Transition)

// Guard appends a guard to the transition's AND-chain.
func Guard[F GuardFunc](fn F) TransitionPart {
	g := AsGuard(fn)
	return func(t *domain.Transition) {
		t.Guards = append(t.Guards, g)
	}
}

// Reduce appends a reducer to the transition's fold.
func Reduce[F ReduceFunc](fn F) TransitionPart {
	r := AsReducer(fn)
	return func(t *domain.Transition) {
		t.Reducers = append(t.Reducers, r)
	}
}

// Action appends a side effect to the transition's fold. The context passes through unchanged.
func Action[F ActionFunc](fn F) TransitionPart {
	r := AsAction(fn)
	return func(t *domain.Transition) {
		t.Reducers = append(t.Reducers, r)
	}
}

// Guards appends already adapted guards.
func Guards(gs ...domain.Guard) TransitionPart {
	return func(t *domain.Transition) {
		t.Guards = append(t.Guards, gs...)
	}
}

// Reducers appends already adapted reducers.
func Reducers(rs ...domain.Reducer) TransitionPart {
	return func(t *domain.Transition) {
		t.Reducers = append(t.Reducers, rs...)
	}
}

// Transition declares an edge taken on event when its guards pass.
func Transition(event, to string, parts ...TransitionPart) StatePart {
	t := newTransition(event, to, parts)
	return func(s *domain.State) {
		if s.Transitions == nil {
			s.Transitions = make(map[string][]domain.Transition)
		}
		s.Transitions[event] = append(s.Transitions[event], t)
	}
}

// Immediate declares an edge evaluated as soon as the state is entered.
func Immediate(to string, parts ...TransitionPart) StatePart {
	t := newTransition("", to, parts)
	return func(s *domain.State) {
		s.Immediates = append(s.Immediates, t)
	}
}

func newTransition(event, to string, parts []TransitionPart) domain.Transition {
	t := domain.Transition{Event: event, To: to}
	for _, part := range parts {
		part(&t)
	}
	return t
}

// State declares a plain state. A state declared without parts is final.
func State(name string, parts ...StatePart) *domain.State {
	s := &domain.State{Name: name, Transitions: make(map[string][]domain.Transition)}
	for _, part := range parts {
		part(s)
	}
	s.Final = len(parts) == 0
	return s
}

// Final declares a final state.
func Final(name string) *domain.State {
	return State(name)
}

// Invoke declares a state that runs task on entry.
// Its result is delivered as a "done" event, its failure as an "error" event.
func Invoke(name string, task domain.Task, transitions ...StatePart) *domain.State {
	return invokeState(name, &domain.Invoke{Kind: domain.InvokeTask, Task: task}, transitions)
}

// InvokeMachine declares a state that spawns a child service of def on entry.
// The child's final context is delivered as the Data of a "done" event.
func InvokeMachine(name string, def *domain.Definition, transitions ...StatePart) *domain.State {
	return invokeState(name, &domain.Invoke{Kind: domain.InvokeMachine, Machine: def}, transitions)
}

// InvokeResolver declares a state that picks its child machine when entered.
func InvokeResolver(name string, resolver domain.Resolver, transitions ...StatePart) *domain.State {
	return invokeState(name, &domain.Invoke{Kind: domain.InvokeResolver, Resolver: resolver}, transitions)
}

func invokeState(name string, inv *domain.Invoke, transitions []StatePart) *domain.State {
	s := &domain.State{Name: name, Transitions: make(map[string][]domain.Transition), Invoke: inv}
	for _, part := range transitions {
		part(s)
	}
	return s
}
