package reactive

import "time"

// Hooks receives engine events for metrics and tracing.
// All methods are called synchronously on the engine's goroutine and must
// not read or write cells.
type Hooks interface {
	// Notified is called after a cell notified n subscribers.
	Notified(cell Observable, n int)

	// Invalidated is called when a clean derivation becomes dirty.
	Invalidated(cell Observable)

	// Recomputed is called after a derivation ran its formula. err is
	// non-nil when the formula failed.
	Recomputed(cell Observable, start time.Time, d time.Duration, err error)

	// Reduced is called after a reduction processed an event.
	Reduced(cell Observable, source string, changed bool)

	// WatcherRun is called after a watcher ran its computation.
	WatcherRun(w *Watcher, sources int, start time.Time, d time.Duration)

	// WatcherInvalidated is called when a watcher fires its callback.
	WatcherInvalidated(w *Watcher)

	// ReactionsFlushed is called after a scheduler executed n queued
	// reactions.
	ReactionsFlushed(n int, start time.Time, d time.Duration)
}

// NopHooks implements Hooks with no-ops. Embed it to implement a subset.
type NopHooks struct{}

func (NopHooks) Notified(Observable, int)                               {}
func (NopHooks) Invalidated(Observable)                                 {}
func (NopHooks) Recomputed(Observable, time.Time, time.Duration, error) {}
func (NopHooks) Reduced(Observable, string, bool)                       {}
func (NopHooks) WatcherRun(*Watcher, int, time.Time, time.Duration)     {}
func (NopHooks) WatcherInvalidated(*Watcher)                            {}
func (NopHooks) ReactionsFlushed(int, time.Time, time.Duration)         {}

var hooks Hooks = NopHooks{}

func currentHooks() Hooks {
	return hooks
}

// SetHooks installs h and returns a function restoring the previous hooks.
// A nil h installs NopHooks.
func SetHooks(h Hooks) (restore func()) {
	if h == nil {
		h = NopHooks{}
	}
	old := hooks
	hooks = h
	return func() { hooks = old }
}
