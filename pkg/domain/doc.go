/*
Package domain contains the core definition model of the robot statechart runtime.

It defines the immutable description of a machine (Definition, State, Transition, Invoke),
the values that flow through it at runtime (Context, Event) and the observability contract
(Hooks and the hook event records). This package is kept pure: it performs no I/O, spawns no
goroutines and never calls a hook itself.

# Key Entities

  - Definition: the validated, immutable map of named states plus the initial state and an
    optional context initializer.
  - State: a Plain state (transitions, immediates, final flag) or an Invoke state (a task or a
    nested machine whose outcome becomes a "done" or "error" event).
  - Transition: a guarded, reducing edge to a target state.
  - Context: the extended state owned by a running service.
*/
package domain
