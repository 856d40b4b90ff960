/*
Package debug is the process-wide debugger boundary of the robot runtime.

A single set of domain.Hooks can be registered for the whole process. The definition builder
calls its Validate callback once per definition, and every engine calls OnUnhandledEvent,
OnEnter and the task callbacks in addition to its own per-engine hooks. Nothing is registered
by default, and an empty registry never changes control flow.

	debug.Register(observability.LogHooks(logger))
	defer debug.Unregister()
*/
package debug
