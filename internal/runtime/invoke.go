package runtime

import (
	"context"
	"fmt"
	"time"

	"github.com/sytabaresa/robot/pkg/domain"
)

type depthKey struct{}

// withDepth records the cascade depth for deliveries that run synchronously on the caller's stack.
func withDepth(ctx context.Context, depth int) context.Context {
	return context.WithValue(ctx, depthKey{}, depth)
}

func depthFrom(ctx context.Context) int {
	depth, _ := ctx.Value(depthKey{}).(int)
	return depth
}

// childLink is the parent's ownership record of a spawned child service.
type childLink struct {
	svc      *Service
	attached bool
}

func (s *Service) invoke(ctx context.Context, st *domain.State, ev domain.Event, depth int) error {
	switch st.Invoke.Kind {
	case domain.InvokeTask:
		return s.runTask(ctx, st, ev, depth)
	case domain.InvokeMachine:
		return s.spawn(ctx, st.Invoke.Machine, ev, depth)
	case domain.InvokeResolver:
		def := st.Invoke.Resolver(s.context.Clone(), ev)
		if def == nil {
			return s.dispatch(ctx, domain.Event{Type: domain.EventError, Error: domain.ErrNoMachine}, depth)
		}
		return s.spawn(ctx, def, ev, depth)
	}
	return fmt.Errorf("state %q: unsupported invoke kind %s", st.Name, st.Invoke.Kind)
}

// runTask schedules the task of st. Its outcome is sent back through dispatch as a
// "done" or "error" event, evaluated against whatever state is current at delivery.
func (s *Service) runTask(ctx context.Context, st *domain.State, ev domain.Event, depth int) error {
	origin := st.Name
	task := st.Invoke.Task
	snapshot := s.context.Clone()

	s.engine.emitTaskCall(ctx, &domain.TaskEvent{
		HookBase: s.base(domain.HookTaskCall),
		State:    origin,
	})

	work := func(ctx context.Context) Delivery {
		start := time.Now()
		result, err := safeRun(ctx, task, snapshot, ev)
		elapsed := time.Since(start)

		return func(ctx context.Context) error {
			s.engine.emitTaskReturn(ctx, &domain.TaskEvent{
				HookBase: s.base(domain.HookTaskReturn),
				State:    origin,
				Result:   result,
				Err:      err,
				Duration: elapsed,
			})
			if s.current != origin {
				s.engine.logger.DebugContext(ctx, "stale task completion",
					"service", s.id, "invoked_in", origin, "current", s.current)
			}

			completion := domain.Event{Type: domain.EventDone, Data: result}
			if err != nil {
				completion = domain.Event{Type: domain.EventError, Error: err}
			}
			return s.dispatch(ctx, completion, depthFrom(ctx))
		}
	}
	return s.engine.scheduler.Schedule(withDepth(ctx, depth), work)
}

func safeRun(ctx context.Context, task domain.Task, c domain.Context, ev domain.Event) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("task panic: %v", r)
		}
	}()
	return task(ctx, c, ev)
}

// spawn starts a child service of def and attaches it. A child that is final right
// after its entry cascade completes immediately; otherwise the bridge completes it
// on the first notification that finds it final.
func (s *Service) spawn(ctx context.Context, def *domain.Definition, ev domain.Event, depth int) error {
	link := &childLink{}
	bridge := func(ctx context.Context, changed *Service, depth int) error {
		if err := s.notify(ctx, changed, depth); err != nil {
			return err
		}
		if changed != link.svc || !link.attached || !changed.Final() {
			return nil
		}
		return s.completeChild(ctx, link, depth)
	}

	child := s.engine.newService(def, def.InitialContext(s.context.Clone(), ev), bridge)
	child.parent = s
	link.svc = child

	if err := child.enter(ctx, ev, depth); err != nil {
		return err
	}

	s.attach(link)
	if child.Final() {
		return s.completeChild(ctx, link, depth)
	}
	return nil
}

func (s *Service) attach(link *childLink) {
	if s.child != nil {
		s.child.attached = false
	}
	link.attached = true
	s.child = link
}

// detach releases the child and returns a copy of its final context.
func (s *Service) detach(link *childLink) domain.Context {
	link.attached = false
	if s.child == link {
		s.child = nil
	}
	return link.svc.context.Clone()
}

func (s *Service) completeChild(ctx context.Context, link *childLink, depth int) error {
	data := s.detach(link)
	s.engine.logger.DebugContext(ctx, "child completed",
		"service", s.id, "child", link.svc.id, "state", s.current)
	return s.dispatch(ctx, domain.Event{Type: domain.EventDone, Data: data}, depth)
}
