package loader

import (
	"fmt"
	"reflect"

	"github.com/mitchellh/mapstructure"
)

// stateSpec is the decoded form of one state entry.
type stateSpec struct {
	On     map[string][]transitionSpec `mapstructure:"on"`
	Always []transitionSpec            `mapstructure:"always"`
	Final  bool                        `mapstructure:"final"`
	Invoke *invokeSpec                 `mapstructure:"invoke"`
}

// transitionSpec is one candidate. A bare string decodes to {to: string}.
type transitionSpec struct {
	To     string   `mapstructure:"to"`
	Guard  []any    `mapstructure:"guard"`
	Reduce []any    `mapstructure:"reduce"`
	Action []string `mapstructure:"action"`
}

type invokeSpec struct {
	Task    string `mapstructure:"task"`
	Machine string `mapstructure:"machine"`
	Resolve string `mapstructure:"resolve"`
}

func (s *stateSpec) empty() bool {
	return len(s.On) == 0 && len(s.Always) == 0 && s.Invoke == nil
}

func (i *invokeSpec) validate() error {
	set := 0
	for _, v := range []string{i.Task, i.Machine, i.Resolve} {
		if v != "" {
			set++
		}
	}
	if set != 1 {
		return fmt.Errorf("invoke needs exactly one of task, machine or resolve")
	}
	return nil
}

var (
	transitionType = reflect.TypeOf(transitionSpec{})
	invokeType     = reflect.TypeOf(invokeSpec{})
	sliceKinds     = map[reflect.Kind]bool{reflect.Slice: true, reflect.Array: true}
)

// shorthandHook expands the shorthands of the document format: a target name for a
// transition, a task name for an invoke and a single value for a list.
func shorthandHook(from, to reflect.Type, data any) (any, error) {
	if to == transitionType && from.Kind() == reflect.String {
		return map[string]any{"to": data}, nil
	}
	if to == invokeType && from.Kind() == reflect.String {
		return map[string]any{"task": data}, nil
	}
	if to.Kind() == reflect.Slice && !sliceKinds[from.Kind()] && data != nil {
		return []any{data}, nil
	}
	return data, nil
}

func decodeState(raw any) (*stateSpec, error) {
	spec := &stateSpec{}
	if raw == nil {
		return spec, nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:  shorthandHook,
		ErrorUnused: true,
		Result:      spec,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(raw); err != nil {
		return nil, err
	}
	return spec, nil
}
