// Package reactive provides the dependency-tracking engine of eventreduce.
//
// The engine records which observable cells a computation reads, invalidates
// dependent computations when those cells change, and folds event
// occurrences into state values.
//
// # Core Types
//
// Value[T] is a plain observable cell:
//
//	name := reactive.NewValue("world")
//	name.Get()       // Read (recorded by the active tracking frame)
//	name.Set("you")  // Write (notifies subscribers if the value changed)
//
// Reduction[T] folds events into state:
//
//	increment := event.New[struct{}]("increment")
//	count := reactive.Reduce(1).
//	    On(reactive.When(increment, func(c int, _ struct{}) int { return c + 1 }))
//	increment.Fire(struct{}{})  // count.Get() == 2
//
// Derivation[T] is a lazily recomputed, cached formula:
//
//	tens := reactive.Derive(func() int { return count.Get() * 10 }, "tens")
//
// Watcher turns "something I read changed" into a callback:
//
//	w := reactive.Watch(func() { render(tens.Get()) }, "view")
//	stop := w.Subscribe(func() { reactive.AddReaction(rerender) })
//
// # Propagation
//
// Invalidation is pushed and recomputation is pulled. A change marks
// dependent derivations dirty and notifies their subscribers; a dirty
// derivation recomputes only when it is next read.
//
// # Equality
//
// Cells notify only when a new value differs from the old one. The default
// policy is reference equality (see Identical). DeepEqual is available per
// cell through WithEquals or globally through SetEqualityPolicy.
//
// # Concurrency
//
// The engine is single-threaded. All reads, writes, notifications and
// recomputations run synchronously on the caller's goroutine and the engine
// must be confined to one goroutine at a time. Re-entrant use (subscribing
// from inside a notification, reading derivations inside other
// computations) is supported.
package reactive
