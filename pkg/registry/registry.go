package registry

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/sytabaresa/robot/pkg/domain"
)

// Kind names a category of registered entries.
type Kind string

const (
	KindGuard    Kind = "guard"
	KindReducer  Kind = "reducer"
	KindTask     Kind = "task"
	KindResolver Kind = "resolver"
	KindMachine  Kind = "machine"
)

// NotFoundError is returned when a name is not registered.
type NotFoundError struct {
	Kind Kind
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.Name)
}

// ErrTaskFailed is the error of the builtin "fail" task.
var ErrTaskFailed = errors.New("task failed")

// Registry maps names to the callbacks and machines that declarative definitions refer to.
// It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	guards    map[string]domain.Guard
	reducers  map[string]domain.Reducer
	tasks     map[string]domain.Task
	resolvers map[string]domain.Resolver
	machines  map[string]*domain.Definition
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		guards:    make(map[string]domain.Guard),
		reducers:  make(map[string]domain.Reducer),
		tasks:     make(map[string]domain.Task),
		resolvers: make(map[string]domain.Resolver),
		machines:  make(map[string]*domain.Definition),
	}
}

// WithBuiltins registers the builtin entries and returns r.
//
//	guards:  always, never
//	tasks:   noop (returns nil), echo (returns the entering event's data), fail (returns ErrTaskFailed)
func (r *Registry) WithBuiltins() *Registry {
	r.RegisterGuard("always", func(domain.Context, domain.Event) bool { return true })
	r.RegisterGuard("never", func(domain.Context, domain.Event) bool { return false })
	r.RegisterTask("noop", func(context.Context, domain.Context, domain.Event) (any, error) { return nil, nil })
	r.RegisterTask("echo", func(_ context.Context, _ domain.Context, ev domain.Event) (any, error) { return ev.Data, nil })
	r.RegisterTask("fail", func(context.Context, domain.Context, domain.Event) (any, error) { return nil, ErrTaskFailed })
	return r
}

// RegisterGuard adds a guard. If a guard with the same name exists, it is overwritten.
func (r *Registry) RegisterGuard(name string, g domain.Guard) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.guards[name] = g
}

// RegisterReducer adds a reducer.
func (r *Registry) RegisterReducer(name string, fn domain.Reducer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reducers[name] = fn
}

// RegisterAction adds a side effect under the reducer namespace. The context passes through unchanged.
func (r *Registry) RegisterAction(name string, fn func(domain.Context, domain.Event)) {
	r.RegisterReducer(name, func(c domain.Context, ev domain.Event) domain.Context {
		fn(c, ev)
		return c
	})
}

// RegisterTask adds a task for invoke states.
func (r *Registry) RegisterTask(name string, fn domain.Task) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks[name] = fn
}

// RegisterResolver adds a resolver for invoke states that pick their machine at run time.
func (r *Registry) RegisterResolver(name string, fn domain.Resolver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resolvers[name] = fn
}

// RegisterMachine adds a definition that invoke states can refer to by name.
func (r *Registry) RegisterMachine(name string, def *domain.Definition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.machines[name] = def
}

// Guard looks up a guard by name.
func (r *Registry) Guard(name string) (domain.Guard, error) {
	return lookup(r, r.guards, KindGuard, name)
}

// Reducer looks up a reducer or action by name.
func (r *Registry) Reducer(name string) (domain.Reducer, error) {
	return lookup(r, r.reducers, KindReducer, name)
}

// Task looks up a task by name.
func (r *Registry) Task(name string) (domain.Task, error) {
	return lookup(r, r.tasks, KindTask, name)
}

// Resolver looks up a resolver by name.
func (r *Registry) Resolver(name string) (domain.Resolver, error) {
	return lookup(r, r.resolvers, KindResolver, name)
}

// Machine looks up a definition by name.
func (r *Registry) Machine(name string) (*domain.Definition, error) {
	return lookup(r, r.machines, KindMachine, name)
}

// Execute looks up a task by name and runs it.
func (r *Registry) Execute(ctx context.Context, name string, c domain.Context, ev domain.Event) (any, error) {
	fn, err := r.Task(name)
	if err != nil {
		return nil, err
	}
	return fn(ctx, c, ev)
}

// Names returns the sorted names registered under kind.
func (r *Registry) Names(kind Kind) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	switch kind {
	case KindGuard:
		return slices.Sorted(maps.Keys(r.guards))
	case KindReducer:
		return slices.Sorted(maps.Keys(r.reducers))
	case KindTask:
		return slices.Sorted(maps.Keys(r.tasks))
	case KindResolver:
		return slices.Sorted(maps.Keys(r.resolvers))
	case KindMachine:
		return slices.Sorted(maps.Keys(r.machines))
	}
	return nil
}

func lookup[T any](r *Registry, table map[string]T, kind Kind, name string) (T, error) {
	r.mu.RLock()
	v, ok := table[name]
	r.mu.RUnlock()

	if !ok {
		var zero T
		return zero, &NotFoundError{Kind: kind, Name: name}
	}
	return v, nil
}
