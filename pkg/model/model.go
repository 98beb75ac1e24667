// Package model groups reactive cells into named, introspectable state
// containers.
//
// A Model owns the cells of one piece of application state. Cells are
// attached under a key, which becomes their label, and the model becomes
// their container:
//
//	type Counter struct {
//	    *model.Model
//	    Increment *event.Event[struct{}]
//	    Count     *reactive.Reduction[int]
//	}
//
//	c := &Counter{Increment: event.New[struct{}]("")}
//	c.Model = model.New("Counter", c)
//	model.Events(c)
//	c.Count = model.MustReduced(c.Model, "Count",
//	    reactive.Reduce(0).On(reactive.When(c.Increment, inc)).Peek())
//
// Reduced accepts the value produced by a freshly built reduction and
// recovers the reduction itself, so a container can be assembled from plain
// values.
package model

import (
	"fmt"
	"log/slog"
	"reflect"

	"github.com/vango-dev/eventreduce/pkg/event"
	"github.com/vango-dev/eventreduce/pkg/reactive"
)

// Model is a named collection of cells.
type Model struct {
	name  string
	owner any
	cells map[string]reactive.Observable
	keys  []string
}

// New creates an empty model. owner is recorded as the container of every
// attached cell; it is usually the struct embedding the model.
func New(name string, owner any) *Model {
	return &Model{
		name:  name,
		owner: owner,
		cells: make(map[string]reactive.Observable),
	}
}

// Name returns the model name.
func (m *Model) Name() string {
	return m.name
}

// Owner returns the object the model belongs to.
func (m *Model) Owner() any {
	if m.owner == nil {
		return m
	}
	return m.owner
}

// Keys returns the keys of the attached cells in attachment order.
func (m *Model) Keys() []string {
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Cell returns the cell attached under key.
func (m *Model) Cell(key string) (reactive.Observable, error) {
	o, ok := m.cells[key]
	if !ok {
		return nil, &MisuseError{Model: m.name, Key: key, Reason: "no cell is attached under this key"}
	}
	return o, nil
}

// Cells returns the attached cells in attachment order.
func (m *Model) Cells() []reactive.Observable {
	out := make([]reactive.Observable, 0, len(m.keys))
	for _, k := range m.keys {
		out = append(out, m.cells[k])
	}
	return out
}

// Values returns a snapshot of every attached cell, keyed by key.
// Derivations report their cached value and are not recomputed.
func (m *Model) Values() map[string]any {
	out := make(map[string]any, len(m.cells))
	for k, o := range m.cells {
		out[k] = o.Snapshot()
	}
	return out
}

type labelled interface {
	SetLabel(label string)
	SetContainer(container any)
}

// attach labels o with key and stores it, replacing any cell previously
// attached under the same key.
func (m *Model) attach(key string, o reactive.Observable) {
	if l, ok := o.(labelled); ok {
		l.SetLabel(key)
		l.SetContainer(m.Owner())
	}
	if _, exists := m.cells[key]; !exists {
		m.keys = append(m.keys, key)
	}
	m.cells[key] = o
	reactive.Logger().Debug("cell attached",
		slog.String("model", m.name),
		slog.String("key", key),
		slog.String("kind", o.Kind().String()),
	)
}

// Reduced attaches the reduction that produced value under key.
//
// value must be the result of reading a reduction that was constructed
// immediately before the call, with no other cell constructed in between.
// Otherwise Reduced returns a *MisuseError.
func Reduced[T any](m *Model, key string, value T) (*reactive.Reduction[T], error) {
	r, err := capture[*reactive.Reduction[T]](m.name, key, "reduction", value)
	if err != nil {
		return nil, err
	}
	m.attach(key, r)
	return r, nil
}

// MustReduced is like Reduced but panics on misuse.
func MustReduced[T any](m *Model, key string, value T) *reactive.Reduction[T] {
	r, err := Reduced(m, key, value)
	if err != nil {
		panic(err)
	}
	return r
}

// DerivedFrom attaches the derivation that produced value under key, with
// the same rules as Reduced.
func DerivedFrom[T any](m *Model, key string, value T) (*reactive.Derivation[T], error) {
	d, err := capture[*reactive.Derivation[T]](m.name, key, "derivation", value)
	if err != nil {
		return nil, err
	}
	m.attach(key, d)
	return d, nil
}

// Derived returns the derivation attached under key, creating it from
// formula on first use.
func Derived[T any](m *Model, key string, formula func() T) *reactive.Derivation[T] {
	if o, ok := m.cells[key]; ok {
		if d, ok := o.(*reactive.Derivation[T]); ok {
			return d
		}
		panic(&MisuseError{Model: m.name, Key: key, Reason: fmt.Sprintf("cell is a %s, not a derivation of %T", o.Kind(), *new(T))})
	}
	d := reactive.Derive(formula, key)
	reactive.ConsumeLastAccessed()
	m.attach(key, d)
	return d
}

// Extend returns a new reduction that starts at value and follows every
// later change of the reduction that produced it. Further bindings can be
// chained on the result.
//
// value must come straight from reading a freshly constructed reduction, as
// for Reduced.
func Extend[T any](value T) (*reactive.Reduction[T], error) {
	source, err := capture[*reactive.Reduction[T]]("", "", "reduction", value)
	if err != nil {
		return nil, err
	}
	return reactive.Reduce(value).
		On(reactive.WhenChanged(source, func(_ T, v T) T { return v })), nil
}

// capture recovers the cell of type C that was constructed last and checks
// that reading it yields value.
func capture[C interface {
	reactive.Observable
	Peek() T
}, T any](model, key, want string, value T) (C, error) {
	var zero C
	misuse := func(reason string) error {
		return &MisuseError{Model: model, Key: key, Reason: reason}
	}

	last := reactive.ConsumeLastAccessed()
	if last == nil {
		return zero, misuse(fmt.Sprintf("value must come from a %s constructed immediately before", want))
	}
	c, ok := last.(C)
	if !ok {
		return zero, misuse(fmt.Sprintf("last constructed cell %s is a %s of a different type, not a %s of %T", last.Label(), last.Kind(), want, value))
	}

	var current T
	reactive.WithInnerTrackingScope(func() { current = c.Peek() })
	if !reactive.Identical(current, value) {
		return zero, misuse(fmt.Sprintf("value does not match the current value of %s", c.Label()))
	}
	return c, nil
}

// Events labels every exported event field of the struct owner points to
// with its field name and records owner as the event's container. It
// returns the number of events labelled.
func Events(owner any) int {
	rv := reflect.ValueOf(owner)
	if rv.Kind() != reflect.Pointer || rv.Elem().Kind() != reflect.Struct {
		return 0
	}
	rv = rv.Elem()
	rt := rv.Type()

	n := 0
	for i := 0; i < rt.NumField(); i++ {
		f := rt.Field(i)
		if !f.IsExported() || f.Anonymous {
			continue
		}
		fv := rv.Field(i)
		if fv.Kind() != reflect.Pointer || fv.IsNil() {
			continue
		}
		e, ok := fv.Interface().(event.Named)
		if !ok {
			continue
		}
		e.SetLabel(f.Name)
		e.SetContainer(owner)
		n++
	}
	return n
}

// EventsOf returns the exported event fields of the struct owner points to,
// keyed by field name.
func EventsOf(owner any) map[string]event.Named {
	out := make(map[string]event.Named)
	rv := reflect.ValueOf(owner)
	if rv.Kind() != reflect.Pointer || rv.Elem().Kind() != reflect.Struct {
		return out
	}
	rv = rv.Elem()
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		f := rt.Field(i)
		fv := rv.Field(i)
		if !f.IsExported() || fv.Kind() != reflect.Pointer || fv.IsNil() {
			continue
		}
		if e, ok := fv.Interface().(event.Named); ok {
			out[f.Name] = e
		}
	}
	return out
}
