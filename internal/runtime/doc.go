// Package runtime interprets machine definitions.
//
// A Service is a running instance: a current state name, a context owned by the
// service and an optional child service spawned by an invoke state. Sending an
// event selects the first candidate transition whose guards pass, folds its
// reducers over a copy of the context and enters the target state, cascading
// through immediates and invocations until the service settles.
//
// A bare Service is not safe for concurrent use. Share it through a Loop.
package runtime
