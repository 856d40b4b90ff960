package domain

import (
	"reflect"
	"sort"
)

// ContextDelta holds the keys a transition added, changed or removed.
// Removed keys are present with a nil value, so a client can merge the
// delta into its own copy of the context.
type ContextDelta map[string]any

// DiffContext calculates the difference between previous and next.
// A nil previous yields every key of next.
func DiffContext(previous, next Context) ContextDelta {
	delta := make(ContextDelta)

	for k, newVal := range next {
		oldVal, exists := previous[k]
		if !exists || !reflect.DeepEqual(oldVal, newVal) {
			delta[k] = newVal
		}
	}

	for k := range previous {
		if _, exists := next[k]; !exists {
			delta[k] = nil
		}
	}

	if len(delta) == 0 {
		return nil
	}
	return delta
}

// IsEmpty checks if the delta contains any change.
func (d ContextDelta) IsEmpty() bool {
	return len(d) == 0
}

// Keys returns the changed keys in order.
func (d ContextDelta) Keys() []string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
