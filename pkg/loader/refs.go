package loader

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/sytabaresa/robot/pkg/domain"
)

// guard resolves a guard reference: a registered name or an inline form.
func (l *Loader) guard(ref any) (domain.Guard, error) {
	switch v := ref.(type) {
	case string:
		return l.reg.Guard(v)

	case map[string]any:
		key, arg, err := single(v)
		if err != nil {
			return nil, err
		}
		switch key {
		case "equals":
			want, ok := arg.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("equals expects a mapping, got %T", arg)
			}
			return func(c domain.Context, _ domain.Event) bool {
				for k, expected := range want {
					if !reflect.DeepEqual(c[k], expected) {
						return false
					}
				}
				return true
			}, nil
		case "not":
			inner, err := l.guard(arg)
			if err != nil {
				return nil, err
			}
			return func(c domain.Context, ev domain.Event) bool {
				return !inner(c, ev)
			}, nil
		}
		return nil, fmt.Errorf("unknown guard form %q", key)

	default:
		return nil, fmt.Errorf("invalid guard reference type: %T", v)
	}
}

// reducer resolves a reducer reference: a registered name or an inline form.
func (l *Loader) reducer(ref any) (domain.Reducer, error) {
	switch v := ref.(type) {
	case string:
		return l.reg.Reducer(v)

	case map[string]any:
		key, arg, err := single(v)
		if err != nil {
			return nil, err
		}
		switch key {
		case "assign":
			values, ok := arg.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("assign expects a mapping, got %T", arg)
			}
			return func(c domain.Context, _ domain.Event) domain.Context {
				for k, val := range values {
					c[k] = val
				}
				return c
			}, nil
		case "store":
			field, err := keyArg(key, arg)
			if err != nil {
				return nil, err
			}
			return func(c domain.Context, ev domain.Event) domain.Context {
				c[field] = ev.Data
				return c
			}, nil
		case "store_error":
			field, err := keyArg(key, arg)
			if err != nil {
				return nil, err
			}
			return func(c domain.Context, ev domain.Event) domain.Context {
				if ev.Error != nil {
					c[field] = ev.Error.Error()
				}
				return c
			}, nil
		case "unset":
			field, err := keyArg(key, arg)
			if err != nil {
				return nil, err
			}
			return func(c domain.Context, _ domain.Event) domain.Context {
				delete(c, field)
				return c
			}, nil
		}
		return nil, fmt.Errorf("unknown reducer form %q", key)

	default:
		return nil, fmt.Errorf("invalid reducer reference type: %T", v)
	}
}

// single unpacks a one-key mapping.
func single(m map[string]any) (string, any, error) {
	if len(m) != 1 {
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return "", nil, fmt.Errorf("inline reference must have exactly one key, got %v", keys)
	}
	for k, v := range m {
		return k, v, nil
	}
	return "", nil, nil
}

func keyArg(form string, arg any) (string, error) {
	s, ok := arg.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("%s expects a context key, got %v", form, arg)
	}
	return s, nil
}
