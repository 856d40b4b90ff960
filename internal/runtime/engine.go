package runtime

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/sytabaresa/robot/internal/logging"
	"github.com/sytabaresa/robot/pkg/domain"
)

// DefaultMaxCascadeDepth bounds the number of transitions committed by one synchronous cascade.
const DefaultMaxCascadeDepth = 256

// ErrNilDefinition is returned when Interpret is called without a definition.
var ErrNilDefinition = errors.New("runtime: nil definition")

// OnChange is called with the service whose state just changed.
// Notifications from child services are forwarded to their parent's callback.
type OnChange func(s *Service)

// Engine holds the configuration shared by every service it interprets.
type Engine struct {
	logger    *slog.Logger
	hooks     domain.Hooks
	scheduler Scheduler
	maxDepth  int
	strict    bool
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithHooks sets engine-scoped hooks. They run after the process-wide hooks of package debug.
func WithHooks(hooks domain.Hooks) EngineOption {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithScheduler sets where invoked tasks run. The default is Inline.
func WithScheduler(s Scheduler) EngineOption {
	return func(e *Engine) {
		if s != nil {
			e.scheduler = s
		}
	}
}

// WithMaxCascadeDepth bounds synchronous cascades. Zero disables the bound.
func WithMaxCascadeDepth(n int) EngineOption {
	return func(e *Engine) {
		e.maxDepth = n
	}
}

// WithStrictEvents makes Send fail with *domain.UnhandledEventError for events without candidates.
func WithStrictEvents(strict bool) EngineOption {
	return func(e *Engine) {
		e.strict = strict
	}
}

// NewEngine creates an engine.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		logger:    logging.NewNop(),
		scheduler: Inline{},
		maxDepth:  DefaultMaxCascadeDepth,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Interpret starts a service of def. The initial context is built by the definition's
// context initializer from initial and ev; ev is also the event the initial state is entered with.
// The initial state does not notify onChange, but every transition of the entry cascade does.
//
// When the entry cascade fails the partially advanced service is returned with the error.
func (e *Engine) Interpret(ctx context.Context, def *domain.Definition, onChange OnChange, initial domain.Context, ev domain.Event) (*Service, error) {
	if def == nil {
		return nil, ErrNilDefinition
	}
	s := e.newService(def, def.InitialContext(initial, ev), func(_ context.Context, changed *Service, _ int) error {
		if onChange != nil {
			onChange(changed)
		}
		return nil
	})

	e.logger.DebugContext(ctx, "service started", "service", s.id, "machine", def.Label(), "state", s.current)
	if err := s.enter(ctx, ev, 0); err != nil {
		return s, err
	}
	return s, nil
}

func (e *Engine) newService(def *domain.Definition, c domain.Context, notify observer) *Service {
	return &Service{
		id:      uuid.NewString(),
		engine:  e,
		def:     def,
		current: def.Initial(),
		context: c,
		notify:  notify,
	}
}
