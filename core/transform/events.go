package transform

import (
	"context"
	"time"
)

// EventType identifies a transform lifecycle event.
type EventType string

const (
	TransformStart   EventType = "transform:start"
	TransformSuccess EventType = "transform:success"
	TransformFailed  EventType = "transform:failed"
)

// Event is emitted around every transform run by a Registry.
type Event struct {
	Type EventType `json:"type"`
	// InvocationID is shared by the start and end events of one run.
	InvocationID string `json:"invocationId"`
	Transform    string `json:"transform"`
	// Step is the position of the transform within an Apply chain.
	Step       int     `json:"step"`
	Timestamp  int64   `json:"timestamp"` // Unix milliseconds
	InputRows  int     `json:"inputRows"`
	OutputRows int     `json:"outputRows,omitempty"`
	Duration   int64   `json:"duration,omitempty"` // milliseconds
	Error      *string `json:"error,omitempty"`
}

// EventCallback receives transform events.
type EventCallback func(ctx context.Context, event Event) error

func newEvent(typ EventType, id, transform string, step, inputRows int, start time.Time) Event {
	now := time.Now()
	ev := Event{
		Type:         typ,
		InvocationID: id,
		Transform:    transform,
		Step:         step,
		Timestamp:    now.UnixMilli(),
		InputRows:    inputRows,
	}
	if typ != TransformStart {
		ev.Duration = now.Sub(start).Milliseconds()
	}
	return ev
}

// emit publishes event on the registry bus, if any.
func (r *Registry) emit(event Event) {
	if r.bus != nil {
		r.bus.Emit(string(event.Type), event)
	}
}

// withEventEmission runs fn between a start event and a success or failure
// event sharing one invocation ID.
func (r *Registry) withEventEmission(step int, t Transform, source rowCounter, fn func() (*Result, error)) (*Result, error) {
	id := r.newID()
	start := time.Now()
	inputRows := source.HeaderCount() + source.Count()

	r.emit(newEvent(TransformStart, id, t.Type(), step, inputRows, start))

	result, err := fn()
	if err != nil {
		ev := newEvent(TransformFailed, id, t.Type(), step, inputRows, start)
		errStr := err.Error()
		ev.Error = &errStr
		r.emit(ev)
		return nil, err
	}

	ev := newEvent(TransformSuccess, id, t.Type(), step, inputRows, start)
	ev.OutputRows = len(result.Data)
	r.emit(ev)
	return result, nil
}

type rowCounter interface {
	HeaderCount() int
	Count() int
}
