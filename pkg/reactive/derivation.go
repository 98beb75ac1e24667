package reactive

import (
	"log/slog"
	"time"
)

// State is the lifecycle state of a derivation.
type State uint8

const (
	// StateDirty means the cached value is missing or stale.
	StateDirty State = iota

	// StateClean means the cached value is current.
	StateClean

	// StateComputing means the formula is running.
	StateComputing
)

// String returns a human-readable name for the state.
func (s State) String() string {
	switch s {
	case StateDirty:
		return "dirty"
	case StateClean:
		return "clean"
	case StateComputing:
		return "computing"
	default:
		return "unknown"
	}
}

// refreshDepth is non-zero while a derivation notifies the subscribers
// that were waiting on its recomputed value.
var refreshDepth int

// Derivation is a cached, lazily recomputed formula over other cells.
//
// A change in any cell read by the last computation marks the derivation
// dirty and notifies its subscribers; the formula runs again only when the
// value is next read. The dependency set is rebuilt on every run, so
// conditional reads are tracked exactly.
type Derivation[T any] struct {
	cell

	formula  func() T
	value    T
	hasValue bool
	state    State
	deps     subscriptionSet
	equal    func(a, b T) bool

	computations int
}

// Derive creates a derivation. The formula does not run until the first
// read.
func Derive[T any](formula func() T, label string, opts ...Option) *Derivation[T] {
	o := buildOptions(append([]Option{WithLabel(label)}, opts...))
	d := &Derivation[T]{
		cell:    newCell(KindDerivation, o),
		formula: formula,
		equal:   equalFor[T](o),
	}
	setLastAccessed(d)
	return d
}

// Get returns the current value, recomputing it first if it is dirty, and
// records the read of this derivation (not of its dependencies) in the
// active frame.
//
// Get panics with a *CyclicDependencyError when the derivation is read
// while it is computing. Use TryGet to receive the error as a value.
func (d *Derivation[T]) Get() T {
	if d.state == StateComputing {
		panic(newCycleError(d))
	}
	tracker.Record(d)
	if d.state != StateClean {
		d.recompute()
	}
	return d.value
}

// TryGet is like Get but returns engine failures raised while computing as
// an error. The previously cached value is returned alongside the error.
func (d *Derivation[T]) TryGet() (T, error) {
	var v T
	err := Catch(func() { v = d.Get() })
	if err != nil {
		return d.value, err
	}
	return v, nil
}

// Peek returns the current value without recording the read.
// It still recomputes a dirty derivation.
func (d *Derivation[T]) Peek() T {
	return Untracked(d.Get)
}

// Snapshot implements Observable. It returns the cached value, which may be
// stale, and never recomputes.
func (d *Derivation[T]) Snapshot() any {
	return d.value
}

func (d *Derivation[T]) sameValue(a, b T) bool { return d.equal(a, b) }

// baseline computes the derivation so later invalidations can be told
// apart from value changes. A failing formula leaves no baseline.
func (d *Derivation[T]) baseline() (T, bool) {
	var v T
	err := Catch(func() { v = d.Peek() })
	return v, err == nil
}

// State returns the lifecycle state.
func (d *Derivation[T]) State() State {
	return d.state
}

// Computations returns how many times the formula completed.
func (d *Derivation[T]) Computations() int {
	return d.computations
}

// Sources returns the cells read by the last successful computation.
func (d *Derivation[T]) Sources() []Observable {
	return d.deps.sources()
}

// Dispose drops every dependency subscription and marks the derivation
// dirty. Reading it afterwards recomputes and subscribes again.
func (d *Derivation[T]) Dispose() {
	d.deps.clear()
	d.state = StateDirty
}

// markDirty is the dependency change handler.
func (d *Derivation[T]) markDirty() {
	switch d.state {
	case StateDirty:
		return
	case StateComputing:
		// A dependency refreshed by this very computation is fine; any
		// other change while computing came from the formula itself.
		if refreshDepth > 0 {
			return
		}
		panic(newCycleError(d))
	}

	d.state = StateDirty
	currentHooks().Invalidated(d)
	Logger().Debug("derivation invalidated", cellAttrs(d))
	d.notify(d)
}

// recompute runs the formula in a fresh frame and reconciles the
// dependency set. On failure the derivation is left dirty with its previous
// value and dependencies.
func (d *Derivation[T]) recompute() {
	d.state = StateComputing
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			d.state = StateDirty
			if ce, ok := r.(*CyclicDependencyError); ok {
				ce.extend(d.Label())
			}
			var err error
			if e, ok := r.(error); ok {
				err = e
			}
			currentHooks().Recomputed(d, start, time.Since(start), err)
			panic(r)
		}
	}()

	var next T
	accessed := tracker.Track(func() { next = d.formula() })
	added, removed := d.deps.sync(accessed, d.markDirty)

	prev, had := d.value, d.hasValue
	d.value, d.hasValue = next, true
	d.state = StateClean
	d.computations++

	currentHooks().Recomputed(d, start, time.Since(start), nil)
	Logger().Debug("derivation recomputed",
		cellAttrs(d),
		slog.Int("sources", len(accessed)),
		slog.Int("added", added),
		slog.Int("removed", removed),
	)

	if had && !d.equal(prev, next) {
		refreshDepth++
		defer func() { refreshDepth-- }()
		d.notify(d)
	}
}
