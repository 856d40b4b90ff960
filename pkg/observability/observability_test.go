package observability_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sytabaresa/robot"
	"github.com/sytabaresa/robot/pkg/domain"
	"github.com/sytabaresa/robot/pkg/dsl"
	"github.com/sytabaresa/robot/pkg/observability"
)

func fetcher(t *testing.T) *domain.Definition {
	t.Helper()
	def, err := dsl.New(dsl.WithName("fetcher")).
		State("idle", dsl.Transition("fetch", "loading")).
		Invoke("loading", dsl.Task(func(_ context.Context, _ domain.Context, ev domain.Event) (any, error) {
			if ev.Data == "bad" {
				return nil, errors.New("bad request")
			}
			return "ok", nil
		}),
			dsl.Transition(domain.EventDone, "idle"),
			dsl.Transition(domain.EventError, "idle"),
		).
		Build()
	require.NoError(t, err)
	return def
}

func TestLogHooks(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	ctx := context.Background()
	svc, err := robot.Interpret(ctx, fetcher(t), nil, robot.WithHooks(observability.LogHooks(logger)))
	require.NoError(t, err)

	require.NoError(t, svc.SendType(ctx, "fetch"))
	require.NoError(t, svc.Send(ctx, robot.Event{Type: "fetch", Data: "bad"}))
	require.NoError(t, svc.SendType(ctx, "nope"))

	out := buf.String()
	assert.Contains(t, out, `msg="enter state" machine=fetcher`)
	assert.Contains(t, out, "from=idle to=loading")
	assert.Contains(t, out, `msg="task done"`)
	assert.Contains(t, out, `msg="task failed"`)
	assert.Contains(t, out, "err=\"bad request\"")
	assert.Contains(t, out, `msg="unhandled event" machine=fetcher`)
	assert.Equal(t, 4, strings.Count(out, `msg="enter state"`))
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics, err := observability.NewMetrics(reg)
	require.NoError(t, err)

	ctx := context.Background()
	svc, err := robot.Interpret(ctx, fetcher(t), nil, robot.WithHooks(metrics.Hooks()))
	require.NoError(t, err)

	require.NoError(t, svc.SendType(ctx, "fetch"))
	require.NoError(t, svc.SendType(ctx, "fetch"))
	require.NoError(t, svc.Send(ctx, robot.Event{Type: "fetch", Data: "bad"}))
	require.NoError(t, svc.SendType(ctx, "nope"))
	require.NoError(t, svc.SendType(ctx, "nope-again"))
	require.NoError(t, svc.SendType(ctx, domain.EventDone))

	expected := `
# HELP robot_transitions_total Total number of committed transitions
# TYPE robot_transitions_total counter
robot_transitions_total{from="idle",machine="fetcher",to="loading"} 3
robot_transitions_total{from="loading",machine="fetcher",to="idle"} 3
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "robot_transitions_total"))

	expected = `
# HELP robot_unhandled_events_total Total number of events without candidates in the current state
# TYPE robot_unhandled_events_total counter
robot_unhandled_events_total{event="done",machine="fetcher",state="idle"} 1
robot_unhandled_events_total{event="other",machine="fetcher",state="idle"} 2
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "robot_unhandled_events_total"))

	series, err := testutil.GatherAndCount(reg, "robot_task_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 2, series)
}

func TestNewMetrics_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := observability.NewMetrics(reg)
	require.NoError(t, err)

	_, err = observability.NewMetrics(reg)
	assert.Error(t, err)
}
