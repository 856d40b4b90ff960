package runtime

import (
	"context"

	"github.com/sytabaresa/robot/pkg/debug"
	"github.com/sytabaresa/robot/pkg/domain"
)

// hookSets returns the process-wide hooks followed by the engine hooks.
func (e *Engine) hookSets() [2]domain.Hooks {
	return [2]domain.Hooks{debug.Current(), e.hooks}
}

// safeHook runs a hook callback. A panicking hook is logged and never reaches the engine.
func (e *Engine) safeHook(ctx context.Context, name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.ErrorContext(ctx, "hook panicked", "hook", name, "panic", r)
		}
	}()
	fn()
}

func (e *Engine) emitEnter(ctx context.Context, ev *domain.EnterEvent) {
	for _, h := range e.hookSets() {
		if h.OnEnter != nil {
			e.safeHook(ctx, "OnEnter", func() { h.OnEnter(ctx, ev) })
		}
	}
}

func (e *Engine) emitUnhandled(ctx context.Context, ev *domain.UnhandledEvent) {
	e.logger.DebugContext(ctx, "unhandled event", "service", ev.ServiceID, "state", ev.State, "event", ev.Event.Type)
	for _, h := range e.hookSets() {
		if h.OnUnhandledEvent != nil {
			e.safeHook(ctx, "OnUnhandledEvent", func() { h.OnUnhandledEvent(ctx, ev) })
		}
	}
}

func (e *Engine) emitTaskCall(ctx context.Context, ev *domain.TaskEvent) {
	for _, h := range e.hookSets() {
		if h.OnTaskCall != nil {
			e.safeHook(ctx, "OnTaskCall", func() { h.OnTaskCall(ctx, ev) })
		}
	}
}

func (e *Engine) emitTaskReturn(ctx context.Context, ev *domain.TaskEvent) {
	for _, h := range e.hookSets() {
		if h.OnTaskReturn != nil {
			e.safeHook(ctx, "OnTaskReturn", func() { h.OnTaskReturn(ctx, ev) })
		}
	}
}
