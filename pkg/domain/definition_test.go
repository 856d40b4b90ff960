package domain

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func plain(name string, transitions ...Transition) *State {
	s := &State{Name: name, Transitions: map[string][]Transition{}}
	for _, t := range transitions {
		if t.Event == "" {
			s.Immediates = append(s.Immediates, t)
			continue
		}
		s.Transitions[t.Event] = append(s.Transitions[t.Event], t)
	}
	s.Final = len(transitions) == 0
	return s
}

func TestNewDefinition(t *testing.T) {
	t.Run("Leading State Is Initial", func(t *testing.T) {
		def, err := NewDefinition([]*State{
			plain("off", Transition{Event: "toggle", To: "on"}),
			plain("on", Transition{Event: "toggle", To: "off"}),
		})
		require.NoError(t, err)
		assert.Equal(t, "off", def.Initial())
		assert.Equal(t, []string{"off", "on"}, def.States())
	})

	t.Run("Explicit Initial State", func(t *testing.T) {
		def, err := NewDefinition([]*State{plain("one"), plain("two")}, WithInitialState("two"))
		require.NoError(t, err)
		assert.Equal(t, "two", def.Initial())
	})

	t.Run("Unknown Initial State", func(t *testing.T) {
		_, err := NewDefinition([]*State{plain("one")}, WithInitialState("oops"))
		var initErr *UnknownInitialStateError
		require.ErrorAs(t, err, &initErr)
		assert.Equal(t, "oops", initErr.Initial)
		assert.Contains(t, err.Error(), "known state")
	})

	t.Run("Unknown Transition Target", func(t *testing.T) {
		_, err := NewDefinition([]*State{plain("one", Transition{Event: "go", To: "two"})})
		var defErr *DefinitionError
		require.ErrorAs(t, err, &defErr)
		assert.Equal(t, "one", defErr.State)
		assert.Equal(t, "two", defErr.Target)
		assert.Contains(t, err.Error(), "unknown state")
	})

	t.Run("Unknown Immediate Target", func(t *testing.T) {
		_, err := NewDefinition([]*State{plain("one", Transition{To: "nowhere"})})
		var defErr *DefinitionError
		require.ErrorAs(t, err, &defErr)
		assert.Equal(t, "nowhere", defErr.Target)
	})

	t.Run("Duplicate State", func(t *testing.T) {
		_, err := NewDefinition([]*State{plain("one"), plain("one")})
		var defErr *DefinitionError
		require.ErrorAs(t, err, &defErr)
		assert.Equal(t, "one", defErr.State)
	})

	t.Run("Empty", func(t *testing.T) {
		_, err := NewDefinition(nil)
		assert.ErrorIs(t, err, ErrEmptyDefinition)
	})

	t.Run("Invoke Without Payload", func(t *testing.T) {
		_, err := NewDefinition([]*State{{Name: "work", Invoke: &Invoke{Kind: InvokeTask}}})
		var defErr *DefinitionError
		require.ErrorAs(t, err, &defErr)
		assert.Equal(t, "work", defErr.State)
	})

	t.Run("Invoke With Immediates", func(t *testing.T) {
		task := func(context.Context, Context, Event) (any, error) { return nil, nil }
		_, err := NewDefinition([]*State{
			{Name: "work", Invoke: &Invoke{Kind: InvokeTask, Task: task}, Immediates: []Transition{{To: "work"}}},
		})
		var defErr *DefinitionError
		require.ErrorAs(t, err, &defErr)
		assert.Contains(t, defErr.Reason, "immediate")
	})

	t.Run("States Are Copied", func(t *testing.T) {
		one := plain("one", Transition{Event: "go", To: "two"})
		def, err := NewDefinition([]*State{one, plain("two")})
		require.NoError(t, err)

		one.Transitions["go"][0].To = "elsewhere"
		s, ok := def.State("one")
		require.True(t, ok)
		assert.Equal(t, "two", s.Candidates("go")[0].To)
	})
}

func TestDefinition_MissingErrorPaths(t *testing.T) {
	task := func(context.Context, Context, Event) (any, error) { return nil, nil }
	child, err := NewDefinition([]*State{plain("only")})
	require.NoError(t, err)

	def, err := NewDefinition([]*State{
		{Name: "save", Invoke: &Invoke{Kind: InvokeTask, Task: task}, Transitions: map[string][]Transition{
			EventDone: {{Event: EventDone, To: "end"}},
		}},
		{Name: "guarded", Invoke: &Invoke{Kind: InvokeTask, Task: task}, Transitions: map[string][]Transition{
			EventError: {{Event: EventError, To: "end"}},
		}},
		{Name: "nested", Invoke: &Invoke{Kind: InvokeMachine, Machine: child}},
		plain("end"),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"save"}, def.MissingErrorPaths())
}

func TestDefinition_InitialContext(t *testing.T) {
	t.Run("Without Initializer", func(t *testing.T) {
		def, err := NewDefinition([]*State{plain("one")})
		require.NoError(t, err)
		assert.Equal(t, Context{}, def.InitialContext(Context{"ignored": true}, Event{}))
	})

	t.Run("Initializer Receives A Copy", func(t *testing.T) {
		initial := Context{"n": 1}
		def, err := NewDefinition([]*State{plain("one")}, WithContextFunc(func(c Context, ev Event) Context {
			c["n"] = 2
			c["event"] = ev.Type
			return c
		}))
		require.NoError(t, err)

		got := def.InitialContext(initial, NewEvent("boot"))
		assert.Equal(t, Context{"n": 2, "event": "boot"}, got)
		assert.Equal(t, 1, initial["n"])
	})
}

func TestTransition_GuardsAndReducers(t *testing.T) {
	calls := 0
	tr := Transition{
		To: "b",
		Guards: []Guard{
			func(Context, Event) bool { calls++; return false },
			func(Context, Event) bool { calls++; return true },
		},
		Reducers: []Reducer{
			func(c Context, _ Event) Context { return c.Merge(Context{"x": 1, "k": "first"}) },
			func(c Context, _ Event) Context { return c.Merge(Context{"y": 2, "k": "second"}) },
		},
	}

	assert.False(t, tr.Allows(Context{}, Event{}))
	assert.Equal(t, 1, calls, "guard chain short-circuits")
	assert.Equal(t, Context{"x": 1, "y": 2, "k": "second"}, tr.Apply(Context{}, Event{}))
}

func TestSelect_FirstMatchWins(t *testing.T) {
	yes := func(Context, Event) bool { return true }
	candidates := []Transition{
		{To: "blocked", Guards: []Guard{func(Context, Event) bool { return false }}},
		{To: "first", Guards: []Guard{yes}},
		{To: "second"},
	}
	got, ok := Select(candidates, Context{}, Event{})
	require.True(t, ok)
	assert.Equal(t, "first", got.To)

	_, ok = Select(candidates[:1], Context{}, Event{})
	assert.False(t, ok)
}
