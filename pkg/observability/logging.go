package observability

import (
	"context"
	"log/slog"

	"github.com/sytabaresa/robot/pkg/domain"
)

// LogHooks returns hooks that log every service event.
// Transitions and task outcomes are logged at info level, unhandled events at warn level.
func LogHooks(logger *slog.Logger) domain.Hooks {
	if logger == nil {
		logger = slog.Default()
	}
	return domain.Hooks{
		OnEnter: func(ctx context.Context, e *domain.EnterEvent) {
			logger.InfoContext(ctx, "enter state",
				"machine", machineLabel(e.Machine),
				"service", e.ServiceID,
				"from", e.From,
				"to", e.To,
				"event", e.Event.String(),
				"context", e.Context,
				"previous", e.Previous,
			)
		},
		OnUnhandledEvent: func(ctx context.Context, e *domain.UnhandledEvent) {
			logger.WarnContext(ctx, "unhandled event",
				"machine", machineLabel(e.Machine),
				"service", e.ServiceID,
				"state", e.State,
				"event", e.Event.Type,
			)
		},
		OnTaskCall: func(ctx context.Context, e *domain.TaskEvent) {
			logger.DebugContext(ctx, "task call",
				"machine", machineLabel(e.Machine),
				"service", e.ServiceID,
				"state", e.State,
			)
		},
		OnTaskReturn: func(ctx context.Context, e *domain.TaskEvent) {
			attrs := []any{
				"machine", machineLabel(e.Machine),
				"service", e.ServiceID,
				"state", e.State,
				"duration", e.Duration,
			}
			if e.Err != nil {
				logger.WarnContext(ctx, "task failed", append(attrs, "err", e.Err)...)
				return
			}
			logger.InfoContext(ctx, "task done", attrs...)
		},
	}
}

func machineLabel(def *domain.Definition) string {
	if def == nil {
		return ""
	}
	return def.Label()
}
