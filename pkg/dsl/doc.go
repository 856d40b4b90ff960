/*
Package dsl provides the builder vocabulary for machine definitions.

States, transitions, guards and reducers are declared with small composable
parts instead of external files. Callbacks are accepted in any of their
supported arities; the adapter is chosen at registration time from the
static type of the function, never by probing at call time.

Example usage:

	package main

	import (
		"context"

		"github.com/sytabaresa/robot/pkg/domain"
		"github.com/sytabaresa/robot/pkg/dsl"
	)

	func main() {
		def := dsl.New(dsl.WithName("loader")).
			State("idle", dsl.Transition("fetch", "loading")).
			Invoke("loading", dsl.Task(func(ctx context.Context) (any, error) {
				return "payload", nil
			}),
				dsl.Transition(domain.EventDone, "loaded",
					dsl.Reduce(func(c domain.Context, ev domain.Event) domain.Context {
						c["data"] = ev.Data
						return c
					})),
				dsl.Transition(domain.EventError, "failed"),
			).
			Final("loaded").
			Final("failed").
			MustBuild()

		_ = def // pass to robot.Interpret(...)
	}
*/
package dsl
