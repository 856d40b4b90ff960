package domain

import (
	"context"
	"time"
)

// EventType defines the category of a hook record.
type EventType string

const (
	HookEnter      EventType = "enter"
	HookUnhandled  EventType = "unhandled"
	HookTaskCall   EventType = "task_call"
	HookTaskReturn EventType = "task_return"
)

// HookBase contains common fields for all hook records.
type HookBase struct {
	Timestamp time.Time   `json:"timestamp"`
	Type      EventType   `json:"type"`
	ServiceID string      `json:"service_id"`
	Machine   *Definition `json:"-"`
}

// EnterEvent is emitted after a transition is committed and before observers are notified.
type EnterEvent struct {
	HookBase
	From     string  `json:"from"`
	To       string  `json:"to"`
	Context  Context `json:"context,omitempty"`
	Previous Context `json:"previous,omitempty"`
	Event    Event   `json:"event"`
}

// UnhandledEvent is emitted when the current state has no candidates for an event.
type UnhandledEvent struct {
	HookBase
	State string `json:"state"`
	Event Event  `json:"event"`
}

// TaskEvent is emitted around the execution of an invoked task.
type TaskEvent struct {
	HookBase
	State    string        `json:"state"`
	Result   any           `json:"result,omitempty"`
	Err      error         `json:"-"`
	Duration time.Duration `json:"duration,omitempty"`
}

// Hooks defines optional callbacks at the debugger boundary.
// Their absence never alters control flow.
type Hooks struct {
	// Validate runs once per definition at build time. A non-nil error aborts the build.
	Validate func(initial string, def *Definition) error
	// OnUnhandledEvent runs when an event has no candidates in the current state.
	OnUnhandledEvent func(context.Context, *UnhandledEvent)
	// OnEnter runs after every committed transition.
	OnEnter func(context.Context, *EnterEvent)
	// OnTaskCall runs before an invoked task is scheduled.
	OnTaskCall func(context.Context, *TaskEvent)
	// OnTaskReturn runs on the delivering goroutine once the task settled.
	OnTaskReturn func(context.Context, *TaskEvent)
}

// IsZero reports whether no callback is set.
func (h Hooks) IsZero() bool {
	return h.Validate == nil && h.OnUnhandledEvent == nil && h.OnEnter == nil &&
		h.OnTaskCall == nil && h.OnTaskReturn == nil
}
