package dsl

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sytabaresa/robot/pkg/domain"
)

func TestAsGuard_Arities(t *testing.T) {
	c := domain.Context{"ok": true}
	ev := domain.Event{Type: "go", Data: 3}

	assert.True(t, AsGuard(func() bool { return true })(c, ev))
	assert.True(t, AsGuard(func(c domain.Context) bool { return c["ok"] == true })(c, ev))
	assert.True(t, AsGuard(func(_ domain.Context, ev domain.Event) bool { return ev.Data == 3 })(c, ev))
}

func TestAsReducer_Arities(t *testing.T) {
	ev := domain.Event{Type: "set", Data: "v"}

	r0 := AsReducer(func() domain.Context { return domain.Context{"fresh": true} })
	assert.Equal(t, domain.Context{"fresh": true}, r0(domain.Context{"old": 1}, ev))

	r1 := AsReducer(func(c domain.Context) domain.Context { c["n"] = 1; return c })
	assert.Equal(t, domain.Context{"n": 1}, r1(domain.Context{}, ev))

	r2 := AsReducer(func(c domain.Context, ev domain.Event) domain.Context { c["v"] = ev.Data; return c })
	assert.Equal(t, domain.Context{"v": "v"}, r2(domain.Context{}, ev))
}

func TestAsAction_PassesContextThrough(t *testing.T) {
	calls := 0
	in := domain.Context{"keep": 1}

	out := AsAction(func() { calls++ })(in, domain.Event{})
	assert.Equal(t, in, out)

	out = AsAction(func(c domain.Context) { calls++ })(in, domain.Event{})
	assert.Equal(t, in, out)

	out = AsAction(func(domain.Context, domain.Event) { calls++ })(in, domain.Event{})
	assert.Equal(t, in, out)

	assert.Equal(t, 3, calls)
}

func TestTask_Arities(t *testing.T) {
	ctx := context.Background()
	c := domain.Context{"id": 7}
	ev := domain.Event{Type: "start", Data: "x"}

	v, err := Task(func(context.Context) (any, error) { return 1, nil })(ctx, c, ev)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	v, err = Task(func(_ context.Context, c domain.Context) (any, error) { return c["id"], nil })(ctx, c, ev)
	require.NoError(t, err)
	assert.Equal(t, 7, v)

	boom := errors.New("boom")
	_, err = Task(func(context.Context, domain.Context, domain.Event) (any, error) { return nil, boom })(ctx, c, ev)
	assert.ErrorIs(t, err, boom)
}

func TestResolve_Arities(t *testing.T) {
	child, err := Machine(Final("end"))
	require.NoError(t, err)

	assert.Same(t, child, Resolve(func() *domain.Definition { return child })(nil, domain.Event{}))
	r := Resolve(func(c domain.Context) *domain.Definition {
		if c["pick"] == true {
			return child
		}
		return nil
	})
	assert.Same(t, child, r(domain.Context{"pick": true}, domain.Event{}))
	assert.Nil(t, r(domain.Context{}, domain.Event{}))
}

func TestTransition_GuardsAndReducersInOrder(t *testing.T) {
	var order []string
	st := State("a",
		Transition("go", "b",
			Guard(func() bool { order = append(order, "g1"); return true }),
			Guard(func(domain.Context) bool { order = append(order, "g2"); return true }),
			Reduce(func(c domain.Context) domain.Context { order = append(order, "r1"); c["n"] = 1; return c }),
			Action(func() { order = append(order, "a1") }),
			Reduce(func(c domain.Context) domain.Context { order = append(order, "r2"); c["n"] = c["n"].(int) + 1; return c }),
		),
	)

	tr := st.Candidates("go")[0]
	require.True(t, tr.Allows(domain.Context{}, domain.Event{}))
	out := tr.Apply(domain.Context{}, domain.Event{})

	assert.Equal(t, []string{"g1", "g2", "r1", "a1", "r2"}, order)
	assert.Equal(t, 2, out["n"])
}

func TestImmediate_IsEventless(t *testing.T) {
	st := State("check",
		Immediate("big", Guard(func(c domain.Context) bool { return c["n"].(int) > 10 })),
		Immediate("small"),
	)
	require.Len(t, st.Immediates, 2)
	assert.Empty(t, st.Immediates[0].Event)
	assert.True(t, st.Immediates[0].Guarded())
	assert.False(t, st.Immediates[1].Guarded())
	assert.False(t, st.Final)
}

func TestInvokeStates(t *testing.T) {
	child, err := Machine(Final("end"))
	require.NoError(t, err)

	task := Invoke("t", Task(func(context.Context) (any, error) { return nil, nil }))
	assert.Equal(t, domain.InvokeTask, task.Invoke.Kind)
	assert.Equal(t, domain.KindInvoke, task.Kind())
	assert.False(t, task.Final)

	m := InvokeMachine("m", child)
	assert.Equal(t, domain.InvokeMachine, m.Invoke.Kind)
	assert.Same(t, child, m.Invoke.Machine)

	r := InvokeResolver("r", Resolve(func() *domain.Definition { return child }))
	assert.Equal(t, domain.InvokeResolver, r.Invoke.Kind)
	assert.True(t, r.Invoke.FromFunction())
}
