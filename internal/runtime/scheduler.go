package runtime

import (
	"context"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/sytabaresa/robot/internal/logging"
)

// Delivery hands the outcome of a unit of work back to its service.
// It must run on the goroutine that owns the service.
type Delivery func(ctx context.Context) error

// Work is a unit of invoked work. It runs the task and returns the delivery of its outcome.
type Work func(ctx context.Context) Delivery

// Scheduler decides where invoked tasks run and where their outcome is delivered.
type Scheduler interface {
	Schedule(ctx context.Context, w Work) error
}

// Inline runs tasks to completion on the caller's goroutine and delivers their outcome
// before returning, as part of the cascade that entered the invoking state.
type Inline struct{}

// Schedule implements Scheduler.
func (Inline) Schedule(ctx context.Context, w Work) error {
	return w(ctx)(ctx)
}

type loopItem struct {
	run     func(ctx context.Context) error
	counted bool
}

// Loop runs tasks on their own goroutines and delivers every outcome serially on the
// goroutine running Run or Settle. Do executes arbitrary closures on that goroutine,
// which makes Loop the way to share a service tree between goroutines.
type Loop struct {
	logger  *slog.Logger
	sem     *semaphore.Weighted
	queue   chan loopItem
	pending atomic.Int64
}

// LoopOption configures a Loop.
type LoopOption func(*Loop)

// WithLoopLogger sets the logger for delivery failures.
func WithLoopLogger(logger *slog.Logger) LoopOption {
	return func(l *Loop) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithMaxConcurrentTasks caps the number of tasks running at once. Zero means unbounded.
func WithMaxConcurrentTasks(n int64) LoopOption {
	return func(l *Loop) {
		if n > 0 {
			l.sem = semaphore.NewWeighted(n)
		} else {
			l.sem = nil
		}
	}
}

// WithQueueSize sets the capacity of the delivery queue.
func WithQueueSize(n int) LoopOption {
	return func(l *Loop) {
		if n >= 0 {
			l.queue = make(chan loopItem, n)
		}
	}
}

// NewLoop creates a Loop. Nothing is delivered until Run or Settle is called.
func NewLoop(opts ...LoopOption) *Loop {
	l := &Loop{
		logger: logging.NewNop(),
		queue:  make(chan loopItem, 64),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Schedule implements Scheduler. The task runs detached from ctx cancellation.
func (l *Loop) Schedule(ctx context.Context, w Work) error {
	l.pending.Add(1)
	taskCtx := context.WithoutCancel(ctx)
	go func() {
		if l.sem != nil {
			// taskCtx is never cancelled, so Acquire only returns once a slot is free.
			_ = l.sem.Acquire(taskCtx, 1)
		}
		deliver := w(taskCtx)
		if l.sem != nil {
			l.sem.Release(1)
		}
		l.queue <- loopItem{run: deliver, counted: true}
	}()
	return nil
}

// Pending returns the number of scheduled tasks whose outcome was not delivered yet.
func (l *Loop) Pending() int64 {
	return l.pending.Load()
}

// Run delivers outcomes and executes Do closures until ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case item := <-l.queue:
			l.process(ctx, item)
		}
	}
}

// Settle delivers outcomes until no task is pending, including tasks scheduled
// by the deliveries themselves. It must not run concurrently with Run.
func (l *Loop) Settle(ctx context.Context) error {
	for l.pending.Load() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case item := <-l.queue:
			l.process(ctx, item)
		}
	}
	return nil
}

// Do runs fn on the loop goroutine and waits for it. Run must be active.
func (l *Loop) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	result := make(chan error, 1)
	item := loopItem{run: func(context.Context) error {
		result <- fn(ctx)
		return nil
	}}

	select {
	case l.queue <- item:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Loop) process(ctx context.Context, item loopItem) {
	if item.counted {
		defer l.pending.Add(-1)
	}
	if err := item.run(ctx); err != nil {
		l.logger.ErrorContext(ctx, "task delivery failed", "err", err)
	}
}
