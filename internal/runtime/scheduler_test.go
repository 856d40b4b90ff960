package runtime

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sytabaresa/robot/pkg/domain"
	"github.com/sytabaresa/robot/pkg/dsl"
)

func TestLoop_DeliversOnSettle(t *testing.T) {
	release := make(chan struct{})
	def := loader(dsl.Task(func(context.Context) (any, error) {
		<-release
		return "late", nil
	}))

	loop := NewLoop()
	svc := interpret(t, def, nil, WithScheduler(loop))
	ctx := context.Background()

	require.NoError(t, svc.SendType(ctx, "fetch"))
	assert.Equal(t, "loading", svc.Current(), "task outcome is not delivered synchronously")
	assert.EqualValues(t, 1, loop.Pending())

	close(release)
	require.NoError(t, loop.Settle(ctx))

	assert.Equal(t, "loaded", svc.Current())
	assert.Equal(t, "late", svc.Context()["data"])
	assert.Zero(t, loop.Pending())
}

func TestLoop_SettleFollowsChainedTasks(t *testing.T) {
	step := dsl.Task(func(_ context.Context, c domain.Context) (any, error) {
		return c["n"].(int) + 1, nil
	})
	store := dsl.Reduce(func(c domain.Context, ev domain.Event) domain.Context {
		c["n"] = ev.Data
		return c
	})
	def := dsl.New(dsl.WithContext(func(domain.Context, domain.Event) domain.Context {
		return domain.Context{"n": 0}
	})).
		Invoke("one", step, dsl.Transition(domain.EventDone, "two", store)).
		Invoke("two", step, dsl.Transition(domain.EventDone, "three", store)).
		Final("three").
		MustBuild()

	loop := NewLoop()
	svc := interpret(t, def, nil, WithScheduler(loop))
	require.NoError(t, loop.Settle(context.Background()))

	assert.Equal(t, "three", svc.Current())
	assert.Equal(t, 2, svc.Context()["n"])
}

func TestLoop_StaleCompletionIsStillDelivered(t *testing.T) {
	release := make(chan struct{})
	def := dsl.New().
		State("idle", dsl.Transition("fetch", "loading")).
		Invoke("loading", dsl.Task(func(context.Context) (any, error) {
			<-release
			return "stale", nil
		}),
			dsl.Transition(domain.EventDone, "loaded"),
			dsl.Transition(domain.EventError, "loaded"),
			dsl.Transition("cancel", "cancelled"),
		).
		State("cancelled", dsl.Transition(domain.EventDone, "surprised")).
		Final("loaded").
		Final("surprised").
		MustBuild()

	loop := NewLoop()
	svc := interpret(t, def, nil, WithScheduler(loop))
	ctx := context.Background()

	require.NoError(t, svc.SendType(ctx, "fetch"))
	require.NoError(t, svc.SendType(ctx, "cancel"))
	assert.Equal(t, "cancelled", svc.Current())

	close(release)
	require.NoError(t, loop.Settle(ctx))
	assert.Equal(t, "surprised", svc.Current(), "the outcome matches whatever state is current")
}

func TestLoop_DoRunsOnLoop(t *testing.T) {
	def := loader(dsl.Task(func(context.Context) (any, error) { return 1, nil }))

	loop := NewLoop()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	var svc *Service
	require.NoError(t, loop.Do(ctx, func(ctx context.Context) error {
		var err error
		svc, err = NewEngine(WithScheduler(loop)).Interpret(ctx, def, nil, nil, domain.Event{})
		return err
	}))

	require.NoError(t, loop.Do(ctx, func(ctx context.Context) error {
		return svc.SendType(ctx, "fetch")
	}))

	require.Eventually(t, func() bool {
		var current string
		_ = loop.Do(ctx, func(context.Context) error {
			current = svc.Current()
			return nil
		})
		return current == "loaded"
	}, time.Second, 5*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestLoop_MaxConcurrentTasks(t *testing.T) {
	var running, peak atomic.Int32
	var wg sync.WaitGroup
	task := dsl.Task(func(context.Context) (any, error) {
		defer wg.Done()
		n := running.Add(1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		running.Add(-1)
		return nil, nil
	})
	def := dsl.New().
		Invoke("work", task, dsl.Transition(domain.EventDone, "end")).
		Final("end").
		MustBuild()

	loop := NewLoop(WithMaxConcurrentTasks(1))
	engine := NewEngine(WithScheduler(loop))

	services := make([]*Service, 4)
	wg.Add(len(services))
	for i := range services {
		svc, err := engine.Interpret(context.Background(), def, nil, nil, domain.Event{})
		require.NoError(t, err)
		services[i] = svc
	}
	wg.Wait()
	require.NoError(t, loop.Settle(context.Background()))

	assert.EqualValues(t, 1, peak.Load())
	for _, svc := range services {
		assert.Equal(t, "end", svc.Current())
	}
}

func TestLoop_SettleHonoursContext(t *testing.T) {
	block := make(chan struct{})
	t.Cleanup(func() { close(block) })
	def := loader(dsl.Task(func(context.Context) (any, error) {
		<-block
		return nil, nil
	}))

	loop := NewLoop()
	svc := interpret(t, def, nil, WithScheduler(loop))
	require.NoError(t, svc.SendType(context.Background(), "fetch"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, loop.Settle(ctx), context.DeadlineExceeded)
	assert.Equal(t, "loading", svc.Current())
}

func TestLoop_QueueSize(t *testing.T) {
	assert.Equal(t, 64, cap(NewLoop().queue))
	assert.Equal(t, 2, cap(NewLoop(WithQueueSize(2)).queue))

	// An unbuffered queue hands each outcome straight to the delivering goroutine.
	def := loader(dsl.Task(func(context.Context) (any, error) { return "ok", nil }))
	loop := NewLoop(WithQueueSize(0))
	svc := interpret(t, def, nil, WithScheduler(loop))
	ctx := context.Background()

	require.NoError(t, svc.SendType(ctx, "fetch"))
	require.NoError(t, loop.Settle(ctx))
	assert.Equal(t, "loaded", svc.Current())
	assert.Equal(t, "ok", svc.Context()["data"])
}
