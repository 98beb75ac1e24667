package reactive

import (
	"fmt"
	"log/slog"
	"time"
)

// WatcherState is the lifecycle state of a Watcher.
type WatcherState uint8

const (
	// WatcherIdle means the watcher has never been subscribed or is running
	// its computation.
	WatcherIdle WatcherState = iota

	// WatcherWatching means the watcher is subscribed to the cells read by
	// its last run.
	WatcherWatching

	// WatcherStopped means the watcher fired or was unsubscribed and holds
	// no subscriptions.
	WatcherStopped
)

// String returns a human-readable name for the state.
func (s WatcherState) String() string {
	switch s {
	case WatcherIdle:
		return "idle"
	case WatcherWatching:
		return "watching"
	case WatcherStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Watcher runs a side-effecting computation, subscribes to exactly the
// cells it read, and reports the first later change of any of them.
//
// A watcher is one-shot: after its callback fired it holds no
// subscriptions, and Subscribe must be called again to re-run the
// computation and re-arm it.
type Watcher struct {
	id          uint64
	label       string
	computation func()

	state        WatcherState
	sources      subscriptionSet
	onInvalidate func()
	generation   uint64
	runs         int
}

// Watch creates an idle watcher around computation. The computation does
// not run until Subscribe.
func Watch(computation func(), label string) *Watcher {
	return &Watcher{
		id:          nextID(),
		label:       label,
		computation: computation,
	}
}

// ID returns the unique identifier of the watcher.
func (w *Watcher) ID() uint64 {
	return w.id
}

// Label returns the diagnostic label.
func (w *Watcher) Label() string {
	if w.label != "" {
		return w.label
	}
	return fmt.Sprintf("watcher#%d", w.id)
}

// State returns the lifecycle state.
func (w *Watcher) State() WatcherState {
	return w.state
}

// Runs returns how many times the computation completed.
func (w *Watcher) Runs() int {
	return w.runs
}

// Sources returns the cells the watcher is subscribed to.
func (w *Watcher) Sources() []Observable {
	return w.sources.sources()
}

// Subscribe runs the computation, subscribes to the cells it read and arms
// onInvalidate. The first change of any of those cells calls onInvalidate
// exactly once and stops the watcher.
//
// Calling Subscribe on a watching instance replaces the callback and
// reconciles the subscriptions with the new run; no listener is leaked.
// If the computation panics, the watcher is stopped and the panic
// propagates.
//
// The returned Unsubscribe stops the watcher if it is still in the arm it
// was issued for.
func (w *Watcher) Subscribe(onInvalidate func()) Unsubscribe {
	w.generation++
	gen := w.generation
	w.onInvalidate = nil
	w.state = WatcherIdle

	start := time.Now()
	accessed := w.run()
	w.sources.sync(accessed, w.invalidate)
	w.onInvalidate = onInvalidate
	w.state = WatcherWatching
	w.runs++

	currentHooks().WatcherRun(w, len(accessed), start, time.Since(start))
	Logger().Debug("watcher armed",
		slog.String("watcher", w.Label()),
		slog.Int("sources", len(accessed)),
		slog.Int("runs", w.runs),
	)

	return func() {
		if w.generation != gen {
			return
		}
		w.UnsubscribeFromSources()
	}
}

func (w *Watcher) run() []Observable {
	defer func() {
		if r := recover(); r != nil {
			w.sources.clear()
			w.state = WatcherStopped
			panic(r)
		}
	}()
	return tracker.Track(w.computation)
}

// UnsubscribeFromSources drops every subscription without re-running the
// computation. The armed callback, if any, will not be called.
func (w *Watcher) UnsubscribeFromSources() {
	w.sources.clear()
	w.onInvalidate = nil
	if w.state == WatcherWatching {
		w.state = WatcherStopped
	}
}

// invalidate is the source change handler.
func (w *Watcher) invalidate() {
	if w.state != WatcherWatching {
		return
	}
	cb := w.onInvalidate
	w.onInvalidate = nil
	w.state = WatcherStopped
	w.sources.clear()

	currentHooks().WatcherInvalidated(w)
	Logger().Debug("watcher invalidated", slog.String("watcher", w.Label()))

	if cb != nil {
		cb()
	}
}
