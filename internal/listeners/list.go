// Package listeners implements the ordered callback list shared by
// observable cells and event sources.
package listeners

import "slices"

// List is an ordered set of callbacks receiving a value of type A.
// Insertion order is notification order.
//
// A List is not safe for concurrent use. It is safe for callbacks to add or
// remove entries while Emit is running: Emit iterates over a copy taken
// before the first call, and entries removed mid-flight are skipped.
type List[A any] struct {
	entries []*entry[A]
}

type entry[A any] struct {
	fn     func(A)
	active bool
}

// Add registers fn and returns a function removing exactly that
// registration. Calling the returned function more than once is a no-op.
func (l *List[A]) Add(fn func(A)) func() {
	e := &entry[A]{fn: fn, active: true}
	l.entries = append(l.entries, e)
	return func() { l.remove(e) }
}

func (l *List[A]) remove(e *entry[A]) {
	if !e.active {
		return
	}
	e.active = false
	if i := slices.Index(l.entries, e); i >= 0 {
		l.entries = slices.Delete(l.entries, i, i+1)
	}
}

// Len returns the number of live registrations.
func (l *List[A]) Len() int {
	return len(l.entries)
}

// Emit calls every live callback with a, in registration order.
// It returns the number of callbacks invoked. A panicking callback stops the
// emission and the panic propagates to the caller.
func (l *List[A]) Emit(a A) int {
	if len(l.entries) == 0 {
		return 0
	}

	// Copy before notify so callbacks can mutate the list.
	snapshot := make([]*entry[A], len(l.entries))
	copy(snapshot, l.entries)

	n := 0
	for _, e := range snapshot {
		if !e.active {
			continue
		}
		e.fn(a)
		n++
	}
	return n
}

// Clear removes every registration.
func (l *List[A]) Clear() {
	for _, e := range l.entries {
		e.active = false
	}
	l.entries = nil
}
