package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/sytabaresa/robot/internal/logging"
	"github.com/sytabaresa/robot/pkg/domain"
)

// DefaultStream is the stream records are appended to unless WithStream is used.
const DefaultStream = "robot:transitions"

// Record is one audit entry of the stream.
type Record struct {
	ID        string           `json:"id,omitempty"`
	Type      domain.EventType `json:"type"`
	Timestamp time.Time        `json:"timestamp"`
	Service   string           `json:"service"`
	Machine   string           `json:"machine"`
	From      string           `json:"from,omitempty"`
	To        string           `json:"to,omitempty"`
	State     string           `json:"state,omitempty"`
	Event     string           `json:"event,omitempty"`
	Payload   string           `json:"payload,omitempty"`
	Error     string           `json:"error,omitempty"`
}

// Publisher appends service events to a Redis stream.
type Publisher struct {
	client *backend.Client
	stream string
	maxLen int64
	logger *slog.Logger
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithStream sets the stream key.
func WithStream(stream string) Option {
	return func(p *Publisher) {
		p.stream = stream
	}
}

// WithMaxLen caps the stream length (approximate trimming). Zero keeps every record.
func WithMaxLen(n int64) Option {
	return func(p *Publisher) {
		p.maxLen = n
	}
}

// WithLogger sets the logger for publish failures.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewFromClient creates a publisher using an existing Redis client.
func NewFromClient(client *backend.Client, opts ...Option) *Publisher {
	p := &Publisher{
		client: client,
		stream: DefaultStream,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Stream returns the stream key.
func (p *Publisher) Stream() string { return p.stream }

// Hooks returns hooks publishing transitions, unhandled events and task outcomes.
// Publish failures are logged and never affect the service.
func (p *Publisher) Hooks() domain.Hooks {
	return domain.Hooks{
		OnEnter: func(ctx context.Context, e *domain.EnterEvent) {
			p.publishOrLog(ctx, Record{
				Type:      e.Type,
				Timestamp: e.Timestamp,
				Service:   e.ServiceID,
				Machine:   label(e.Machine),
				From:      e.From,
				To:        e.To,
				Event:     e.Event.Type,
				Payload:   encode(e.Context),
			})
		},
		OnUnhandledEvent: func(ctx context.Context, e *domain.UnhandledEvent) {
			p.publishOrLog(ctx, Record{
				Type:      e.Type,
				Timestamp: e.Timestamp,
				Service:   e.ServiceID,
				Machine:   label(e.Machine),
				State:     e.State,
				Event:     e.Event.Type,
			})
		},
		OnTaskReturn: func(ctx context.Context, e *domain.TaskEvent) {
			rec := Record{
				Type:      e.Type,
				Timestamp: e.Timestamp,
				Service:   e.ServiceID,
				Machine:   label(e.Machine),
				State:     e.State,
				Event:     domain.EventDone,
				Payload:   encode(e.Result),
			}
			if e.Err != nil {
				rec.Event = domain.EventError
				rec.Payload = ""
				rec.Error = e.Err.Error()
			}
			p.publishOrLog(ctx, rec)
		},
	}
}

// Publish appends a record to the stream.
func (p *Publisher) Publish(ctx context.Context, rec Record) error {
	args := &backend.XAddArgs{
		Stream: p.stream,
		Values: map[string]any{
			"type":      string(rec.Type),
			"timestamp": rec.Timestamp.UTC().Format(time.RFC3339Nano),
			"service":   rec.Service,
			"machine":   rec.Machine,
			"from":      rec.From,
			"to":        rec.To,
			"state":     rec.State,
			"event":     rec.Event,
			"payload":   rec.Payload,
			"error":     rec.Error,
		},
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}
	if err := p.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("redis error publishing record: %w", err)
	}
	return nil
}

// Records returns up to count records, oldest first. Zero means all.
func (p *Publisher) Records(ctx context.Context, count int64) ([]Record, error) {
	var (
		msgs []backend.XMessage
		err  error
	)
	if count > 0 {
		msgs, err = p.client.XRangeN(ctx, p.stream, "-", "+", count).Result()
	} else {
		msgs, err = p.client.XRange(ctx, p.stream, "-", "+").Result()
	}
	if err != nil {
		return nil, fmt.Errorf("redis error reading records: %w", err)
	}

	records := make([]Record, 0, len(msgs))
	for _, msg := range msgs {
		records = append(records, decode(msg))
	}
	return records, nil
}

func (p *Publisher) publishOrLog(ctx context.Context, rec Record) {
	if err := p.Publish(ctx, rec); err != nil {
		p.logger.ErrorContext(ctx, "failed to publish record", "stream", p.stream, "type", rec.Type, "err", err)
	}
}

func decode(msg backend.XMessage) Record {
	field := func(name string) string {
		s, _ := msg.Values[name].(string)
		return s
	}
	ts, _ := time.Parse(time.RFC3339Nano, field("timestamp"))
	return Record{
		ID:        msg.ID,
		Type:      domain.EventType(field("type")),
		Timestamp: ts,
		Service:   field("service"),
		Machine:   field("machine"),
		From:      field("from"),
		To:        field("to"),
		State:     field("state"),
		Event:     field("event"),
		Payload:   field("payload"),
		Error:     field("error"),
	}
}

func encode(v any) string {
	if v == nil {
		return ""
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

func label(def *domain.Definition) string {
	if def == nil {
		return ""
	}
	return def.Label()
}
