package loader

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sytabaresa/robot/pkg/domain"
	"github.com/sytabaresa/robot/pkg/dsl"
	"github.com/sytabaresa/robot/pkg/registry"
)

// Error locates a failure inside a document.
type Error struct {
	Machine string
	State   string
	Err     error
}

func (e *Error) Error() string {
	if e.State == "" {
		return fmt.Sprintf("machine %q: %v", e.Machine, e.Err)
	}
	return fmt.Sprintf("machine %q state %q: %v", e.Machine, e.State, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// ErrNoMachines is returned for documents that declare no machine.
var ErrNoMachines = errors.New("document declares no machines")

// Document holds the machines of one file, built and validated.
type Document struct {
	Entry    string
	Order    []string
	Machines map[string]*domain.Definition
}

// Main returns the entry machine.
func (d *Document) Main() *domain.Definition {
	return d.Machines[d.Entry]
}

// Machine returns a machine by name.
func (d *Document) Machine(name string) (*domain.Definition, bool) {
	def, ok := d.Machines[name]
	return def, ok
}

// Loader builds definitions from documents.
type Loader struct {
	reg    *registry.Registry
	logger *slog.Logger
}

// Option configures a Loader.
type Option func(*Loader)

// WithRegistry sets the registry names are resolved in. Built machines are registered into it.
func WithRegistry(r *registry.Registry) Option {
	return func(l *Loader) {
		if r != nil {
			l.reg = r
		}
	}
}

// WithLogger sets the logger for build warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// New creates a loader. By default names resolve against a registry holding only the builtins.
func New(opts ...Option) *Loader {
	l := &Loader{
		reg:    registry.NewRegistry().WithBuiltins(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Registry returns the registry the loader resolves names in.
func (l *Loader) Registry() *registry.Registry { return l.reg }

// Load reads and builds the document at path. JSON is accepted as a subset of YAML.
func (l *Loader) Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read definition file: %w", err)
	}
	doc, err := l.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

type rawDocument struct {
	Machine  string    `yaml:"machine"`
	Machines yaml.Node `yaml:"machines"`

	// Single-machine shorthand.
	Name    string         `yaml:"name"`
	Initial string         `yaml:"initial"`
	Context map[string]any `yaml:"context"`
	Inherit bool           `yaml:"inherit_context"`
	States  yaml.Node      `yaml:"states"`
}

type rawMachine struct {
	Initial string         `yaml:"initial"`
	Context map[string]any `yaml:"context"`
	Inherit bool           `yaml:"inherit_context"`
	States  yaml.Node      `yaml:"states"`
}

type namedState struct {
	name string
	spec *stateSpec
}

type machineSpec struct {
	name    string
	initial string
	context map[string]any
	inherit bool
	states  []namedState
}

// Parse builds the document held in data.
func (l *Loader) Parse(data []byte) (*Document, error) {
	var raw rawDocument
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}

	specs, err := collectMachines(&raw)
	if err != nil {
		return nil, err
	}
	if len(specs) == 0 {
		return nil, ErrNoMachines
	}

	doc := &Document{Machines: make(map[string]*domain.Definition, len(specs))}
	index := make(map[string]*machineSpec, len(specs))
	for _, spec := range specs {
		if _, dup := index[spec.name]; dup {
			return nil, &Error{Machine: spec.name, Err: errors.New("duplicate machine name")}
		}
		index[spec.name] = spec
		doc.Order = append(doc.Order, spec.name)
	}

	doc.Entry = raw.Machine
	if doc.Entry == "" {
		doc.Entry = doc.Order[0]
	}
	if _, ok := index[doc.Entry]; !ok {
		return nil, fmt.Errorf("entry machine %q is not declared", doc.Entry)
	}

	visiting := make(map[string]bool)
	for _, name := range doc.Order {
		if err := l.build(name, index, doc, visiting, nil); err != nil {
			return nil, err
		}
	}
	return doc, nil
}

func collectMachines(raw *rawDocument) ([]*machineSpec, error) {
	if raw.Machines.Kind == 0 {
		if raw.States.Kind == 0 {
			return nil, nil
		}
		name := raw.Name
		if name == "" {
			name = "main"
		}
		spec := &machineSpec{name: name, initial: raw.Initial, context: raw.Context, inherit: raw.Inherit}
		if err := collectStates(spec, &raw.States); err != nil {
			return nil, err
		}
		return []*machineSpec{spec}, nil
	}

	if raw.Machines.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("machines must be a mapping (line %d)", raw.Machines.Line)
	}
	var specs []*machineSpec
	for i := 0; i+1 < len(raw.Machines.Content); i += 2 {
		name := raw.Machines.Content[i].Value
		var rm rawMachine
		if err := raw.Machines.Content[i+1].Decode(&rm); err != nil {
			return nil, &Error{Machine: name, Err: err}
		}
		spec := &machineSpec{name: name, initial: rm.Initial, context: rm.Context, inherit: rm.Inherit}
		if err := collectStates(spec, &rm.States); err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func collectStates(spec *machineSpec, node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return &Error{Machine: spec.name, Err: errors.New("states must be a mapping")}
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		name := node.Content[i].Value
		var raw any
		if err := node.Content[i+1].Decode(&raw); err != nil {
			return &Error{Machine: spec.name, State: name, Err: err}
		}
		st, err := decodeState(raw)
		if err != nil {
			return &Error{Machine: spec.name, State: name, Err: err}
		}
		spec.states = append(spec.states, namedState{name: name, spec: st})
	}
	return nil
}

// build compiles a machine after the document machines it invokes.
// path tracks the machines being built to report reference cycles.
func (l *Loader) build(name string, index map[string]*machineSpec, doc *Document, visiting map[string]bool, path []string) error {
	if _, done := doc.Machines[name]; done {
		return nil
	}
	path = append(path, name)
	if visiting[name] {
		return fmt.Errorf("cycle detected in machine references: %s", strings.Join(path, " -> "))
	}
	visiting[name] = true
	defer delete(visiting, name)

	spec := index[name]
	for _, st := range spec.states {
		if st.spec.Invoke == nil || st.spec.Invoke.Machine == "" {
			continue
		}
		if _, local := index[st.spec.Invoke.Machine]; local {
			if err := l.build(st.spec.Invoke.Machine, index, doc, visiting, path); err != nil {
				return err
			}
		}
	}

	def, err := l.compile(spec, doc)
	if err != nil {
		return err
	}
	doc.Machines[name] = def
	l.reg.RegisterMachine(name, def)
	return nil
}

func (l *Loader) compile(spec *machineSpec, doc *Document) (*domain.Definition, error) {
	opts := []dsl.Option{dsl.WithName(spec.name), dsl.WithLogger(l.logger)}
	if spec.initial != "" {
		opts = append(opts, dsl.WithInitial(spec.initial))
	}
	if fn := contextFunc(spec.context, spec.inherit); fn != nil {
		opts = append(opts, dsl.WithContext(fn))
	}

	b := dsl.New(opts...)
	for _, ns := range spec.states {
		st, err := l.state(ns, doc)
		if err != nil {
			return nil, &Error{Machine: spec.name, State: ns.name, Err: err}
		}
		b.Add(st)
	}

	def, err := b.Build()
	if err != nil {
		return nil, &Error{Machine: spec.name, Err: err}
	}
	return def, nil
}

func contextFunc(defaults map[string]any, inherit bool) domain.ContextFunc {
	if len(defaults) == 0 && !inherit {
		return nil
	}
	return func(initial domain.Context, _ domain.Event) domain.Context {
		c := domain.Context(defaults).Clone()
		if inherit {
			c = c.Merge(initial)
		}
		return c
	}
}

func (l *Loader) state(ns namedState, doc *Document) (*domain.State, error) {
	var parts []dsl.StatePart
	for _, event := range sortedEvents(ns.spec.On) {
		for _, ts := range ns.spec.On[event] {
			tparts, err := l.transitionParts(ts)
			if err != nil {
				return nil, fmt.Errorf("on %q: %w", event, err)
			}
			parts = append(parts, dsl.Transition(event, ts.To, tparts...))
		}
	}
	for _, ts := range ns.spec.Always {
		tparts, err := l.transitionParts(ts)
		if err != nil {
			return nil, fmt.Errorf("always: %w", err)
		}
		parts = append(parts, dsl.Immediate(ts.To, tparts...))
	}

	if inv := ns.spec.Invoke; inv != nil {
		if err := inv.validate(); err != nil {
			return nil, err
		}
		switch {
		case inv.Task != "":
			task, err := l.reg.Task(inv.Task)
			if err != nil {
				return nil, err
			}
			return dsl.Invoke(ns.name, task, parts...), nil
		case inv.Machine != "":
			def, ok := doc.Machine(inv.Machine)
			if !ok {
				var err error
				if def, err = l.reg.Machine(inv.Machine); err != nil {
					return nil, err
				}
			}
			return dsl.InvokeMachine(ns.name, def, parts...), nil
		default:
			resolver, err := l.reg.Resolver(inv.Resolve)
			if err != nil {
				return nil, err
			}
			return dsl.InvokeResolver(ns.name, resolver, parts...), nil
		}
	}

	st := dsl.State(ns.name, parts...)
	st.Final = ns.spec.Final || ns.spec.empty()
	return st, nil
}

func (l *Loader) transitionParts(ts transitionSpec) ([]dsl.TransitionPart, error) {
	if ts.To == "" {
		return nil, errors.New("transition has no target")
	}
	var parts []dsl.TransitionPart
	for _, ref := range ts.Guard {
		g, err := l.guard(ref)
		if err != nil {
			return nil, err
		}
		parts = append(parts, dsl.Guards(g))
	}
	for _, ref := range ts.Reduce {
		r, err := l.reducer(ref)
		if err != nil {
			return nil, err
		}
		parts = append(parts, dsl.Reducers(r))
	}
	for _, name := range ts.Action {
		r, err := l.reg.Reducer(name)
		if err != nil {
			return nil, err
		}
		parts = append(parts, dsl.Reducers(r))
	}
	return parts, nil
}

func sortedEvents(on map[string][]transitionSpec) []string {
	return slices.Sorted(maps.Keys(on))
}
