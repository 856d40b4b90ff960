package domain

import "context"

// Task is the unit of work of a function-invoke state.
// Its result becomes the Data of a "done" event, its error the Error of an "error" event.
type Task func(ctx context.Context, c Context, ev Event) (any, error)

// Resolver picks the machine to invoke at invocation time.
type Resolver func(c Context, ev Event) *Definition

// InvokeKind tags the payload of an Invoke descriptor.
type InvokeKind int

const (
	// InvokeTask runs a Task.
	InvokeTask InvokeKind = iota + 1
	// InvokeMachine spawns a child service from a nested Definition.
	InvokeMachine
	// InvokeResolver spawns a child service from the Definition returned by a Resolver.
	InvokeResolver
)

func (k InvokeKind) String() string {
	switch k {
	case InvokeTask:
		return "task"
	case InvokeMachine:
		return "machine"
	case InvokeResolver:
		return "resolver"
	}
	return "unknown"
}

// Invoke describes the work performed when an Invoke state is entered.
// Exactly one payload field is set, matching Kind.
type Invoke struct {
	Kind     InvokeKind
	Task     Task
	Machine  *Definition
	Resolver Resolver
}

// FromFunction reports whether the invoke runs user code rather than a fixed nested machine.
// Such states should declare an "error" transition.
func (i *Invoke) FromFunction() bool {
	return i.Kind == InvokeTask || i.Kind == InvokeResolver
}

func (i *Invoke) valid() bool {
	switch i.Kind {
	case InvokeTask:
		return i.Task != nil
	case InvokeMachine:
		return i.Machine != nil
	case InvokeResolver:
		return i.Resolver != nil
	}
	return false
}
