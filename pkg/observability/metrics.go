package observability

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sytabaresa/robot/pkg/domain"
)

// Metrics records service events as Prometheus series.
type Metrics struct {
	transitions  *prometheus.CounterVec
	unhandled    *prometheus.CounterVec
	taskDuration *prometheus.HistogramVec
	known        sync.Map // *domain.Definition -> map[string]bool
}

// OtherEvent labels unhandled events the machine never declares, keeping the
// series count bounded when event names come from outside the process.
const OtherEvent = "other"

// NewMetrics creates the collectors and registers them with reg.
// A nil registerer leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "robot_transitions_total",
				Help: "Total number of committed transitions",
			},
			[]string{"machine", "from", "to"},
		),
		unhandled: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "robot_unhandled_events_total",
				Help: "Total number of events without candidates in the current state",
			},
			[]string{"machine", "state", "event"},
		),
		taskDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "robot_task_duration_seconds",
				Help:    "Duration of invoked tasks",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"machine", "state", "outcome"},
		),
	}

	if reg != nil {
		for _, c := range []prometheus.Collector{m.transitions, m.unhandled, m.taskDuration} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

// Hooks returns the hook set feeding the collectors.
func (m *Metrics) Hooks() domain.Hooks {
	return domain.Hooks{
		OnEnter: func(_ context.Context, e *domain.EnterEvent) {
			m.transitions.WithLabelValues(machineLabel(e.Machine), e.From, e.To).Inc()
		},
		OnUnhandledEvent: func(_ context.Context, e *domain.UnhandledEvent) {
			m.unhandled.WithLabelValues(machineLabel(e.Machine), e.State, m.eventLabel(e.Machine, e.Event.Type)).Inc()
		},
		OnTaskReturn: func(_ context.Context, e *domain.TaskEvent) {
			outcome := domain.EventDone
			if e.Err != nil {
				outcome = domain.EventError
			}
			m.taskDuration.WithLabelValues(machineLabel(e.Machine), e.State, outcome).Observe(e.Duration.Seconds())
		},
	}
}

func (m *Metrics) eventLabel(def *domain.Definition, name string) string {
	if def == nil {
		return OtherEvent
	}
	v, ok := m.known.Load(def)
	if !ok {
		events := map[string]bool{domain.EventDone: true, domain.EventError: true}
		for _, stateName := range def.States() {
			st, _ := def.State(stateName)
			for _, ev := range st.Events() {
				events[ev] = true
			}
		}
		v, _ = m.known.LoadOrStore(def, events)
	}
	if v.(map[string]bool)[name] {
		return name
	}
	return OtherEvent
}
