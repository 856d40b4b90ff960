package debug_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/sytabaresa/robot/pkg/debug"
	"github.com/sytabaresa/robot/pkg/domain"
)

func TestRegistry(t *testing.T) {
	t.Cleanup(debug.Unregister)

	assert.True(t, debug.Current().IsZero(), "no hooks by default")

	var entered []string
	debug.Register(domain.Hooks{
		OnEnter: func(_ context.Context, e *domain.EnterEvent) { entered = append(entered, e.To) },
	})
	h := debug.Current()
	if assert.NotNil(t, h.OnEnter) {
		h.OnEnter(context.Background(), &domain.EnterEvent{To: "two"})
	}
	assert.Equal(t, []string{"two"}, entered)

	debug.Unregister()
	assert.True(t, debug.Current().IsZero())
}

func TestChain(t *testing.T) {
	var order []string
	first := domain.Hooks{
		OnEnter:  func(context.Context, *domain.EnterEvent) { order = append(order, "first") },
		Validate: func(string, *domain.Definition) error { return errors.New("first failed") },
	}
	second := domain.Hooks{
		OnEnter:          func(context.Context, *domain.EnterEvent) { order = append(order, "second") },
		OnUnhandledEvent: func(context.Context, *domain.UnhandledEvent) { order = append(order, "unhandled") },
		Validate:         func(string, *domain.Definition) error { return errors.New("second failed") },
	}

	chained := debug.Chain(first, domain.Hooks{}, second)
	chained.OnEnter(context.Background(), &domain.EnterEvent{})
	chained.OnUnhandledEvent(context.Background(), &domain.UnhandledEvent{})
	assert.Equal(t, []string{"first", "second", "unhandled"}, order)
	assert.Nil(t, chained.OnTaskCall)

	err := chained.Validate("one", nil)
	assert.ErrorContains(t, err, "first failed")
	assert.ErrorContains(t, err, "second failed")
}
