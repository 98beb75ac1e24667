package reactive

import (
	"fmt"
	"log/slog"
)

// Source is an event producer a reduction can bind to.
// event.Event implements it.
type Source[P any] interface {
	Subscribe(fn func(P)) Unsubscribe
}

// ValueSource is a cell whose changes a reduction can bind to.
// Value, Derivation and Reduction implement it.
type ValueSource[P any] interface {
	Observable
	Peek() P
}

// Binding pairs an event source with a reducer for a Reduction[T].
// Build one with When or WhenChanged.
type Binding[T any] struct {
	source string
	attach func(r *Reduction[T]) Unsubscribe
}

// Source returns the label of the bound source.
func (b Binding[T]) Source() string {
	return b.source
}

// When binds an event source: every occurrence with payload p replaces the
// reduction's value v with reducer(v, p).
func When[T, P any](source Source[P], reducer func(T, P) T) Binding[T] {
	label := sourceLabel(source)
	return Binding[T]{
		source: label,
		attach: func(r *Reduction[T]) Unsubscribe {
			return source.Subscribe(func(p P) {
				r.apply(label, func(v T) T { return reducer(v, p) })
			})
		},
	}
}

// WhenChanged binds another cell: every change of source replaces the
// reduction's value v with reducer(v, source.Peek()).
//
// A derivation notifies when it is invalidated as well as when its
// recomputed value differs, so the binding remembers the last value it saw
// and skips notifications that leave the value equal under the source's
// equality.
func WhenChanged[T, P any](source ValueSource[P], reducer func(T, P) T) Binding[T] {
	label := source.Label()
	return Binding[T]{
		source: label,
		attach: func(r *Reduction[T]) Unsubscribe {
			current, same := source.Peek, policyEquals[P]
			var last P
			seen := false
			if cs, ok := source.(changeSource[P]); ok {
				same = cs.sameValue
				last, seen = cs.baseline()
			}
			return source.Subscribe(func() {
				next := current()
				if seen && same(last, next) {
					return
				}
				last, seen = next, true
				r.apply(label, func(v T) T { return reducer(v, next) })
			})
		},
	}
}

// changeSource is implemented by the cells of this package. It exposes the
// cell's own equality and its value at binding time.
type changeSource[P any] interface {
	sameValue(a, b P) bool
	baseline() (P, bool)
}

func sourceLabel(source any) string {
	if l, ok := source.(interface{ Label() string }); ok {
		return l.Label()
	}
	return fmt.Sprintf("%T", source)
}

type boundSource struct {
	source      string
	unsubscribe Unsubscribe
}

// Reduction is a cell whose value is the incremental fold of event
// occurrences through reducers, in the order the events fired.
//
// Build it with Reduce and chain On calls; read it with Get:
//
//	count := reactive.Reduce(0).
//	    On(reactive.When(increment, func(c int, _ struct{}) int { return c + 1 })).
//	    On(reactive.When(reset, func(int, struct{}) int { return 0 }))
//
// Bindings are meant to be declared before the first read. Adding one
// afterwards still works but is logged as a warning.
type Reduction[T any] struct {
	cell

	initial  T
	value    T
	equal    func(a, b T) bool
	bindings []boundSource
	sealed   bool
}

// Reduce creates a reduction starting at initial.
func Reduce[T any](initial T, opts ...Option) *Reduction[T] {
	o := buildOptions(opts)
	r := &Reduction[T]{
		cell:    newCell(KindReduction, o),
		initial: initial,
		value:   initial,
		equal:   equalFor[T](o),
	}
	setLastAccessed(r)
	return r
}

// On adds a binding and returns the reduction for chaining.
func (r *Reduction[T]) On(b Binding[T]) *Reduction[T] {
	if r.sealed {
		Logger().Warn("binding added to a reduction that was already read",
			cellAttrs(r),
			slog.String("source", b.source),
		)
	}
	r.bindings = append(r.bindings, boundSource{
		source:      b.source,
		unsubscribe: b.attach(r),
	})
	return r
}

// On binds source to r with reducer. It is the function form of
// r.On(When(source, reducer)).
func On[T, P any](r *Reduction[T], source Source[P], reducer func(T, P) T) *Reduction[T] {
	return r.On(When(source, reducer))
}

// Get returns the current value and records the read.
func (r *Reduction[T]) Get() T {
	r.sealed = true
	tracker.Record(r)
	return r.value
}

// Peek returns the current value without recording the read.
func (r *Reduction[T]) Peek() T {
	r.sealed = true
	return r.value
}

// Snapshot implements Observable.
func (r *Reduction[T]) Snapshot() any {
	return r.value
}

func (r *Reduction[T]) sameValue(a, b T) bool { return r.equal(a, b) }

// baseline does not seal r.
func (r *Reduction[T]) baseline() (T, bool) { return r.value, true }

// Initial returns the value the reduction started from.
func (r *Reduction[T]) Initial() T {
	return r.initial
}

// Bindings returns the number of attached bindings.
func (r *Reduction[T]) Bindings() int {
	return len(r.bindings)
}

// OnChange registers fn to receive every new value.
func (r *Reduction[T]) OnChange(fn func(T)) Unsubscribe {
	return r.Subscribe(func() { fn(r.value) })
}

// Dispose detaches the reduction from all of its sources. The current
// value is kept.
func (r *Reduction[T]) Dispose() {
	for _, b := range r.bindings {
		b.unsubscribe()
	}
	r.bindings = nil
}

// apply folds one occurrence into the value. A panicking reducer leaves the
// value unchanged and re-panics with a *ReducerError.
func (r *Reduction[T]) apply(source string, step func(T) T) {
	prev := r.value
	next := r.runReducer(source, func() T { return step(prev) })

	changed := !r.equal(prev, next)
	currentHooks().Reduced(r, source, changed)
	Logger().Debug("reduction advanced",
		cellAttrs(r),
		slog.String("source", source),
		slog.Bool("changed", changed),
	)
	if !changed {
		return
	}
	r.value = next
	r.notify(r)
}

func (r *Reduction[T]) runReducer(source string, fn func() T) (next T) {
	defer func() {
		if rec := recover(); rec != nil {
			panic(newReducerError(r, source, rec))
		}
	}()
	return Untracked(fn)
}
