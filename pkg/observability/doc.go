/*
Package observability provides ready-made hook sets for watching services.

LogHooks reports every transition, unhandled event and task through slog.
Metrics exports the same events as Prometheus counters and histograms.
Both return a domain.Hooks value that can be passed to robot.WithHooks or
registered process-wide with debug.Register, alone or combined with debug.Chain.
*/
package observability
