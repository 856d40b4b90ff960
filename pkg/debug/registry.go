package debug

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/sytabaresa/robot/pkg/domain"
)

var current atomic.Pointer[domain.Hooks]

// Register installs the process-wide hooks, replacing any previous set.
func Register(h domain.Hooks) {
	current.Store(&h)
}

// Unregister removes the process-wide hooks.
func Unregister() {
	current.Store(nil)
}

// Current returns the registered hooks, or the zero (no-op) set.
func Current() domain.Hooks {
	if h := current.Load(); h != nil {
		return *h
	}
	return domain.Hooks{}
}

// Chain combines hook sets. Callbacks run in argument order;
// Validate runs every validator and joins their errors.
func Chain(sets ...domain.Hooks) domain.Hooks {
	var chained domain.Hooks

	var validators []func(string, *domain.Definition) error
	var unhandled []func(context.Context, *domain.UnhandledEvent)
	var enter []func(context.Context, *domain.EnterEvent)
	var taskCall, taskReturn []func(context.Context, *domain.TaskEvent)
	for _, h := range sets {
		if h.Validate != nil {
			validators = append(validators, h.Validate)
		}
		if h.OnUnhandledEvent != nil {
			unhandled = append(unhandled, h.OnUnhandledEvent)
		}
		if h.OnEnter != nil {
			enter = append(enter, h.OnEnter)
		}
		if h.OnTaskCall != nil {
			taskCall = append(taskCall, h.OnTaskCall)
		}
		if h.OnTaskReturn != nil {
			taskReturn = append(taskReturn, h.OnTaskReturn)
		}
	}

	if len(validators) > 0 {
		chained.Validate = func(initial string, def *domain.Definition) error {
			var errs []error
			for _, fn := range validators {
				if err := fn(initial, def); err != nil {
					errs = append(errs, err)
				}
			}
			return errors.Join(errs...)
		}
	}
	if len(unhandled) > 0 {
		chained.OnUnhandledEvent = func(ctx context.Context, e *domain.UnhandledEvent) {
			for _, fn := range unhandled {
				fn(ctx, e)
			}
		}
	}
	if len(enter) > 0 {
		chained.OnEnter = func(ctx context.Context, e *domain.EnterEvent) {
			for _, fn := range enter {
				fn(ctx, e)
			}
		}
	}
	chained.OnTaskCall = chainTask(taskCall)
	chained.OnTaskReturn = chainTask(taskReturn)
	return chained
}

func chainTask(fns []func(context.Context, *domain.TaskEvent)) func(context.Context, *domain.TaskEvent) {
	if len(fns) == 0 {
		return nil
	}
	return func(ctx context.Context, e *domain.TaskEvent) {
		for _, fn := range fns {
			fn(ctx, e)
		}
	}
}
