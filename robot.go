package robot

import (
	"context"
	"log/slog"

	"github.com/sytabaresa/robot/internal/runtime"
	"github.com/sytabaresa/robot/pkg/domain"
)

type (
	// Service is a running machine instance.
	Service = runtime.Service
	// OnChange is notified after every committed transition of a service tree.
	OnChange = runtime.OnChange
	// Scheduler decides where invoked tasks run.
	Scheduler = runtime.Scheduler
	// Loop delivers asynchronous task outcomes on a single goroutine.
	Loop = runtime.Loop
	// LoopOption configures a Loop.
	LoopOption = runtime.LoopOption

	Definition = domain.Definition
	Context    = domain.Context
	Event      = domain.Event
	Hooks      = domain.Hooks
)

// Inline runs invoked tasks synchronously. It is the default scheduler.
var Inline Scheduler = runtime.Inline{}

// NewLoop creates a Loop scheduler.
func NewLoop(opts ...LoopOption) *Loop {
	return runtime.NewLoop(opts...)
}

// WithLoopLogger sets the logger a Loop reports delivery failures to.
func WithLoopLogger(logger *slog.Logger) LoopOption {
	return runtime.WithLoopLogger(logger)
}

// WithQueueSize sets how many outcomes a Loop buffers before task goroutines block.
func WithQueueSize(n int) LoopOption {
	return runtime.WithQueueSize(n)
}

// WithMaxConcurrentTasks caps the tasks a Loop runs at once.
func WithMaxConcurrentTasks(n int64) LoopOption {
	return runtime.WithMaxConcurrentTasks(n)
}

type config struct {
	initial    domain.Context
	event      domain.Event
	engineOpts []runtime.EngineOption
}

// Option configures Interpret.
type Option func(*config)

// WithInitialContext passes an initial context to the definition's context initializer.
// Without an initializer the service context starts empty.
func WithInitialContext(c Context) Option {
	return func(cfg *config) {
		cfg.initial = c
	}
}

// WithInitialEvent sets the event the initial state is entered with.
func WithInitialEvent(ev Event) Option {
	return func(cfg *config) {
		cfg.event = ev
	}
}

// WithLogger sets a structured logger for the runtime.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *config) {
		cfg.engineOpts = append(cfg.engineOpts, runtime.WithLogger(logger))
	}
}

// WithHooks registers hooks for this service tree, in addition to the process-wide ones.
func WithHooks(hooks Hooks) Option {
	return func(cfg *config) {
		cfg.engineOpts = append(cfg.engineOpts, runtime.WithHooks(hooks))
	}
}

// WithScheduler sets where invoked tasks run.
func WithScheduler(s Scheduler) Option {
	return func(cfg *config) {
		cfg.engineOpts = append(cfg.engineOpts, runtime.WithScheduler(s))
	}
}

// WithMaxCascadeDepth bounds the transitions committed by one synchronous cascade.
// Zero disables the bound.
func WithMaxCascadeDepth(n int) Option {
	return func(cfg *config) {
		cfg.engineOpts = append(cfg.engineOpts, runtime.WithMaxCascadeDepth(n))
	}
}

// WithStrictEvents makes Send return an error for events the current state does not handle.
func WithStrictEvents() Option {
	return func(cfg *config) {
		cfg.engineOpts = append(cfg.engineOpts, runtime.WithStrictEvents(true))
	}
}

// Interpret starts a service of def and runs the initial state's entry cascade.
func Interpret(ctx context.Context, def *Definition, onChange OnChange, opts ...Option) (*Service, error) {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}
	return runtime.NewEngine(cfg.engineOpts...).Interpret(ctx, def, onChange, cfg.initial, cfg.event)
}
