package runtime

import (
	"context"
	"time"

	"github.com/sytabaresa/robot/pkg/domain"
)

// observer receives change notifications along with the cascade depth reached so far.
type observer func(ctx context.Context, changed *Service, depth int) error

// Service is a running instance of a definition.
type Service struct {
	id      string
	engine  *Engine
	def     *domain.Definition
	current string
	context domain.Context
	notify  observer
	parent  *Service
	child   *childLink
}

// ID returns the unique service identifier.
func (s *Service) ID() string { return s.id }

// Definition returns the definition being interpreted.
func (s *Service) Definition() *domain.Definition { return s.def }

// Current returns the name of the current state.
func (s *Service) Current() string { return s.current }

// Context returns a copy of the service context.
func (s *Service) Context() domain.Context { return s.context.Clone() }

// Child returns the attached child service, or nil.
func (s *Service) Child() *Service {
	if s.child == nil {
		return nil
	}
	return s.child.svc
}

// Parent returns the service that spawned this one, or nil for a root service.
func (s *Service) Parent() *Service { return s.parent }

// Final reports whether the current state is a final state.
func (s *Service) Final() bool {
	st := s.state()
	return st.Final && st.Invoke == nil
}

// Send delivers an event to the service and runs the resulting cascade to completion.
// Events without candidates are reported to the hooks and otherwise ignored,
// unless the engine is strict.
func (s *Service) Send(ctx context.Context, ev domain.Event) error {
	return s.dispatch(ctx, ev, 0)
}

// SendType delivers a bare-name event.
func (s *Service) SendType(ctx context.Context, name string) error {
	return s.Send(ctx, domain.NewEvent(name))
}

func (s *Service) state() *domain.State {
	st, _ := s.def.State(s.current)
	return st
}

func (s *Service) base(t domain.EventType) domain.HookBase {
	return domain.HookBase{
		Timestamp: time.Now(),
		Type:      t,
		ServiceID: s.id,
		Machine:   s.def,
	}
}

func (s *Service) dispatch(ctx context.Context, ev domain.Event, depth int) error {
	candidates := s.state().Candidates(ev.Type)
	if len(candidates) == 0 {
		s.engine.emitUnhandled(ctx, &domain.UnhandledEvent{
			HookBase: s.base(domain.HookUnhandled),
			State:    s.current,
			Event:    ev,
		})
		if s.engine.strict {
			return &domain.UnhandledEventError{Event: ev.Type, State: s.current}
		}
		return nil
	}
	return s.transition(ctx, ev, candidates, depth)
}

// transition commits the first candidate whose guards pass and enters its target.
// All guards failing is a silent no-op.
func (s *Service) transition(ctx context.Context, ev domain.Event, candidates []domain.Transition, depth int) error {
	t, ok := domain.Select(candidates, s.context, ev)
	if !ok {
		return nil
	}
	if limit := s.engine.maxDepth; limit > 0 && depth >= limit {
		return &domain.CascadeDepthError{State: s.current, To: t.To, Limit: limit}
	}

	previous := s.context
	next := t.Apply(previous.Clone(), ev)
	if next == nil {
		next = domain.Context{}
	}

	from := s.current
	s.current = t.To
	s.context = next

	s.engine.emitEnter(ctx, &domain.EnterEvent{
		HookBase: s.base(domain.HookEnter),
		From:     from,
		To:       t.To,
		Context:  next.Clone(),
		Previous: previous,
		Event:    ev,
	})

	if err := s.notify(ctx, s, depth); err != nil {
		return err
	}
	return s.enter(ctx, ev, depth+1)
}

// enter runs the entry behaviour of the current state.
func (s *Service) enter(ctx context.Context, ev domain.Event, depth int) error {
	st := s.state()
	if st.Invoke != nil {
		return s.invoke(ctx, st, ev, depth)
	}
	if len(st.Immediates) > 0 {
		return s.transition(ctx, ev, st.Immediates, depth)
	}
	return nil
}
