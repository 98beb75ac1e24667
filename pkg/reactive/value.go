package reactive

// Value is a plain observable cell.
// Reading it inside a tracked computation records the read; replacing its
// value with a different one notifies subscribers.
//
// Values are snapshots: replace them with Set or Update rather than
// mutating them in place.
type Value[T any] struct {
	cell

	value T
	equal func(a, b T) bool
}

// NewValue creates a cell holding initial.
func NewValue[T any](initial T, opts ...Option) *Value[T] {
	o := buildOptions(opts)
	v := &Value[T]{
		cell:  newCell(KindValue, o),
		value: initial,
		equal: equalFor[T](o),
	}
	setLastAccessed(v)
	return v
}

// Get returns the current value and records the read.
func (v *Value[T]) Get() T {
	tracker.Record(v)
	return v.value
}

// Peek returns the current value without recording the read.
func (v *Value[T]) Peek() T {
	return v.value
}

// Snapshot implements Observable.
func (v *Value[T]) Snapshot() any {
	return v.value
}

func (v *Value[T]) sameValue(a, b T) bool { return v.equal(a, b) }

func (v *Value[T]) baseline() (T, bool) { return v.value, true }

// Set replaces the value and notifies subscribers if it changed.
func (v *Value[T]) Set(value T) {
	if v.equal(v.value, value) {
		return
	}
	v.value = value
	v.notify(v)
}

// Update replaces the value with fn applied to the current one.
// fn runs untracked.
func (v *Value[T]) Update(fn func(T) T) {
	v.Set(Untracked(func() T { return fn(v.value) }))
}

// OnChange registers fn to receive every new value.
func (v *Value[T]) OnChange(fn func(T)) Unsubscribe {
	return v.Subscribe(func() { fn(v.value) })
}
