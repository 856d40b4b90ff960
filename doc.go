/*
Package robot is a statechart runtime.

A machine is an immutable Definition of named states. Plain states react to
events through guarded transitions that fold reducers over the service context,
and may declare immediate transitions that are taken as soon as the state is
entered. Invoke states run a task, or spawn a child machine, and continue
through the "done" or "error" event their outcome produces.

# Usage

Definitions are built with package dsl and run with Interpret:

	package main

	import (
		"context"
		"fmt"

		"github.com/sytabaresa/robot"
		"github.com/sytabaresa/robot/pkg/dsl"
	)

	func main() {
		def := dsl.New().
			State("off", dsl.Transition("toggle", "on")).
			State("on", dsl.Transition("toggle", "off")).
			MustBuild()

		svc, err := robot.Interpret(context.Background(), def, func(s *robot.Service) {
			fmt.Println("now", s.Current())
		})
		if err != nil {
			panic(err)
		}
		_ = svc.SendType(context.Background(), "toggle")
	}

# Concurrency

Send is synchronous: guards, reducers, hooks and the observer all run before it
returns, possibly several times when the event starts a cascade. A Service is
not safe for concurrent use. With the default scheduler tasks run inline; use a
Loop to run them in the background and deliver their outcome on one goroutine.

Tasks are never cancelled. A task whose state was left before it finished still
delivers its outcome, which is evaluated against whatever state is then current.

# Debugging

Package debug holds a process-wide set of hooks that is consulted at build time
(Validate) and on every transition, unhandled event and task. Package
observability provides ready-made hook sets for logging and Prometheus metrics.
*/
package robot
