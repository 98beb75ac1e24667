// Package event provides typed event sources that reductions fold into
// state.
//
// An Event is a named, synchronous broadcast: Fire calls every subscriber in
// subscription order before returning. Events hold no state of their own and
// are never recorded by tracking frames.
//
//	increment := event.New[struct{}]("increment")
//	count := reactive.Reduce(0).
//	    On(reactive.When(increment, func(c int, _ struct{}) int { return c + 1 }))
//
//	increment.Fire(struct{}{})
package event

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/vango-dev/eventreduce/internal/listeners"
	"github.com/vango-dev/eventreduce/pkg/reactive"
)

var eventIDCounter uint64

// ErrPayload is returned by FireJSON when the payload does not decode into
// the event's payload type.
var ErrPayload = errors.New("invalid payload")

// Event is a typed event source carrying a payload of type P.
// It implements reactive.Source[P].
type Event[P any] struct {
	id        uint64
	label     string
	container any
	subs      listeners.List[P]
	fired     uint64
}

// New creates an event. The label names the event in logs, reducer errors
// and devtools.
func New[P any](label string) *Event[P] {
	return &Event[P]{
		id:    atomic.AddUint64(&eventIDCounter, 1),
		label: label,
	}
}

// ID returns the unique identifier of the event.
func (e *Event[P]) ID() uint64 {
	return e.id
}

// Label returns the diagnostic label.
func (e *Event[P]) Label() string {
	if e.label != "" {
		return e.label
	}
	return fmt.Sprintf("event#%d", e.id)
}

// SetLabel replaces the diagnostic label.
func (e *Event[P]) SetLabel(label string) {
	e.label = label
}

// Container returns the object owning the event, if any.
func (e *Event[P]) Container() any {
	return e.container
}

// SetContainer records the owning object.
func (e *Event[P]) SetContainer(container any) {
	e.container = container
}

// Subscribe registers fn to receive every payload.
func (e *Event[P]) Subscribe(fn func(P)) reactive.Unsubscribe {
	return e.subs.Add(fn)
}

// SubscriberCount returns the number of live subscriptions.
func (e *Event[P]) SubscriberCount() int {
	return e.subs.Len()
}

// Fired returns how many times the event fired.
func (e *Event[P]) Fired() uint64 {
	return e.fired
}

// Fire delivers p to every subscriber, synchronously and in subscription
// order. A failing reducer panics with a *reactive.ReducerError; use
// TryFire to receive it as an error.
func (e *Event[P]) Fire(p P) {
	e.fired++
	n := e.subs.Emit(p)
	reactive.Logger().Debug("event fired",
		slog.String("event", e.Label()),
		slog.Int("subscribers", n),
	)
}

// TryFire is like Fire but returns a failure raised by a subscriber as an
// error. Subscribers after the failing one are not called.
func (e *Event[P]) TryFire(p P) error {
	return reactive.Catch(func() { e.Fire(p) })
}

// Filter returns an event that fires with the payloads of e for which
// keep returns true.
func (e *Event[P]) Filter(keep func(P) bool) *Event[P] {
	out := New[P](e.Label() + ".filter")
	e.Subscribe(func(p P) {
		if keep(p) {
			out.Fire(p)
		}
	})
	return out
}

// Map returns an event that fires with fn applied to every payload of e.
func Map[P, Q any](e *Event[P], fn func(P) Q) *Event[Q] {
	out := New[Q](e.Label() + ".map")
	e.Subscribe(func(p P) {
		out.Fire(fn(p))
	})
	return out
}

// Merge returns an event that fires whenever any of events fires.
func Merge[P any](label string, events ...*Event[P]) *Event[P] {
	out := New[P](label)
	for _, e := range events {
		e.Subscribe(out.Fire)
	}
	return out
}

// Named is implemented by every Event regardless of its payload type.
type Named interface {
	ID() uint64
	Label() string
	SetLabel(label string)
	Container() any
	SetContainer(container any)
	SubscriberCount() int
	Fired() uint64

	event()
}

func (e *Event[P]) event() {}

// Firer is an event that can be fired from a JSON payload, as done by
// devtools. It is implemented by every Event.
type Firer interface {
	Named
	FireJSON(payload []byte) error
}

// FireJSON decodes payload into P and fires e with it. An empty payload
// fires the zero P.
func (e *Event[P]) FireJSON(payload []byte) error {
	var p P
	if len(bytes.TrimSpace(payload)) > 0 {
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("event %s: %w: %v", e.Label(), ErrPayload, err)
		}
	}
	return e.TryFire(p)
}
