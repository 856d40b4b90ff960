package dsl

import (
	"fmt"
	"log/slog"

	"github.com/sytabaresa/robot/pkg/debug"
	"github.com/sytabaresa/robot/pkg/domain"
)

// Builder collects states and compiles them into a validated Definition.
type Builder struct {
	states  []*domain.State
	index   map[string]int
	initial string
	name    string
	ctxFn   domain.ContextFunc
	logger  *slog.Logger
}

// Option configures a Builder.
type Option func(*Builder)

// WithInitial overrides the initial state. By default the first state added is initial.
func WithInitial(name string) Option {
	return func(b *Builder) { b.initial = name }
}

// WithContext sets the context initializer.
func WithContext(fn domain.ContextFunc) Option {
	return func(b *Builder) { b.ctxFn = fn }
}

// WithName labels the machine.
func WithName(name string) Option {
	return func(b *Builder) { b.name = name }
}

// WithLogger sets the logger used for build-time warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Builder) { b.logger = logger }
}

// New creates a new machine builder.
func New(opts ...Option) *Builder {
	b := &Builder{
		index:  make(map[string]int),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Add appends states. A state added under an existing name replaces the earlier one in place.
func (b *Builder) Add(states ...*domain.State) *Builder {
	for _, s := range states {
		if s == nil {
			continue
		}
		if i, ok := b.index[s.Name]; ok {
			b.states[i] = s
			continue
		}
		b.index[s.Name] = len(b.states)
		b.states = append(b.states, s)
	}
	return b
}

// State adds a plain state.
func (b *Builder) State(name string, parts ...StatePart) *Builder {
	return b.Add(State(name, parts...))
}

// Final adds a final state.
func (b *Builder) Final(name string) *Builder {
	return b.Add(Final(name))
}

// Invoke adds a task-invoking state.
func (b *Builder) Invoke(name string, task domain.Task, transitions ...StatePart) *Builder {
	return b.Add(Invoke(name, task, transitions...))
}

// InvokeMachine adds a state that runs a child machine.
func (b *Builder) InvokeMachine(name string, def *domain.Definition, transitions ...StatePart) *Builder {
	return b.Add(InvokeMachine(name, def, transitions...))
}

// InvokeResolver adds a state that picks its child machine on entry.
func (b *Builder) InvokeResolver(name string, resolver domain.Resolver, transitions ...StatePart) *Builder {
	return b.Add(InvokeResolver(name, resolver, transitions...))
}

// Build validates the states and returns the definition.
// Function-invoke states lacking an "error" transition are logged as warnings.
// A Validate hook registered in package debug runs last and may veto the build.
func (b *Builder) Build() (*domain.Definition, error) {
	opts := []domain.DefinitionOption{domain.WithName(b.name)}
	if b.initial != "" {
		opts = append(opts, domain.WithInitialState(b.initial))
	}
	if b.ctxFn != nil {
		opts = append(opts, domain.WithContextFunc(b.ctxFn))
	}

	def, err := domain.NewDefinition(b.states, opts...)
	if err != nil {
		return nil, err
	}

	for _, name := range def.MissingErrorPaths() {
		b.logger.Warn("invoke state has no error transition; failures will be dropped",
			"machine", def.Label(), "state", name)
	}

	if validate := debug.Current().Validate; validate != nil {
		if err := validate(def.Initial(), def); err != nil {
			return nil, fmt.Errorf("validate %s: %w", def.Label(), err)
		}
	}
	return def, nil
}

// MustBuild is like Build but panics on error. Intended for package-level machine variables.
func (b *Builder) MustBuild() *domain.Definition {
	def, err := b.Build()
	if err != nil {
		panic(err)
	}
	return def
}

// Machine builds a definition from states. The first state is initial.
func Machine(states ...*domain.State) (*domain.Definition, error) {
	return New().Add(states...).Build()
}
