package domain

import "fmt"

// Reserved event types synthesized by the invocation subsystem.
const (
	EventDone  = "done"
	EventError = "error"
)

// Event is the input of a transition.
// Data carries the payload of a "done" event, Error the failure of an "error" event.
type Event struct {
	Type  string `json:"type" yaml:"type" mapstructure:"type"`
	Data  any    `json:"data,omitempty" yaml:"data,omitempty" mapstructure:"data"`
	Error error  `json:"-" yaml:"-" mapstructure:"-"`
}

// NewEvent creates a bare-name event.
func NewEvent(name string) Event {
	return Event{Type: name}
}

func (e Event) String() string {
	switch {
	case e.Error != nil:
		return fmt.Sprintf("%s(%v)", e.Type, e.Error)
	case e.Data != nil:
		return fmt.Sprintf("%s(%v)", e.Type, e.Data)
	}
	return e.Type
}
