package dsl

import (
	"context"

	"github.com/sytabaresa/robot/pkg/domain"
)

// GuardFunc lists the accepted guard shapes.
type GuardFunc interface {
	func() bool | func(domain.Context) bool | func(domain.Context, domain.Event) bool
}

// ReduceFunc lists the accepted reducer shapes.
type ReduceFunc interface {
	func() domain.Context | func(domain.Context) domain.Context | func(domain.Context, domain.Event) domain.Context
}

// ActionFunc lists the accepted action shapes.
type ActionFunc interface {
	func() | func(domain.Context) | func(domain.Context, domain.Event)
}

// TaskFunc lists the accepted task shapes.
type TaskFunc interface {
	func(context.Context) (any, error) |
		func(context.Context, domain.Context) (any, error) |
		func(context.Context, domain.Context, domain.Event) (any, error)
}

// ResolveFunc lists the accepted resolver shapes.
type ResolveFunc interface {
	func() *domain.Definition | func(domain.Context) *domain.Definition | func(domain.Context, domain.Event) *domain.Definition
}

// AsGuard adapts any accepted guard shape to a domain.Guard.
// The adapter is chosen once, here, from the static type of fn.
func AsGuard[F GuardFunc](fn F) domain.Guard {
	switch f := any(fn).(type) {
	case func() bool:
		return func(domain.Context, domain.Event) bool { return f() }
	case func(domain.Context) bool:
		return func(c domain.Context, _ domain.Event) bool { return f(c) }
	case func(domain.Context, domain.Event) bool:
		return f
	}
	panic("dsl: unsupported guard shape")
}

// AsReducer adapts any accepted reducer shape to a domain.Reducer.
func AsReducer[F ReduceFunc](fn F) domain.Reducer {
	switch f := any(fn).(type) {
	case func() domain.Context:
		return func(domain.Context, domain.Event) domain.Context { return f() }
	case func(domain.Context) domain.Context:
		return func(c domain.Context, _ domain.Event) domain.Context { return f(c) }
	case func(domain.Context, domain.Event) domain.Context:
		return f
	}
	panic("dsl: unsupported reducer shape")
}

// AsAction adapts a side-effect function to a reducer that passes the context through.
func AsAction[F ActionFunc](fn F) domain.Reducer {
	var run func(domain.Context, domain.Event)
	switch f := any(fn).(type) {
	case func():
		run = func(domain.Context, domain.Event) { f() }
	case func(domain.Context):
		run = func(c domain.Context, _ domain.Event) { f(c) }
	case func(domain.Context, domain.Event):
		run = f
	default:
		panic("dsl: unsupported action shape")
	}
	return func(c domain.Context, ev domain.Event) domain.Context {
		run(c, ev)
		return c
	}
}

// ContextInit adapts a reducer-shaped initializer to a domain.ContextFunc.
func ContextInit[F ReduceFunc](fn F) domain.ContextFunc {
	return domain.ContextFunc(AsReducer(fn))
}

// Task adapts any accepted task shape to a domain.Task.
func Task[F TaskFunc](fn F) domain.Task {
	switch f := any(fn).(type) {
	case func(context.Context) (any, error):
		return func(ctx context.Context, _ domain.Context, _ domain.Event) (any, error) { return f(ctx) }
	case func(context.Context, domain.Context) (any, error):
		return func(ctx context.Context, c domain.Context, _ domain.Event) (any, error) { return f(ctx, c) }
	case func(context.Context, domain.Context, domain.Event) (any, error):
		return f
	}
	panic("dsl: unsupported task shape")
}

// Resolve adapts any accepted resolver shape to a domain.Resolver.
func Resolve[F ResolveFunc](fn F) domain.Resolver {
	switch f := any(fn).(type) {
	case func() *domain.Definition:
		return func(domain.Context, domain.Event) *domain.Definition { return f() }
	case func(domain.Context) *domain.Definition:
		return func(c domain.Context, _ domain.Event) *domain.Definition { return f(c) }
	case func(domain.Context, domain.Event) *domain.Definition:
		return f
	}
	panic("dsl: unsupported resolver shape")
}
