package instrument

import (
	"fmt"
	"time"

	"github.com/vango-dev/eventreduce/pkg/reactive"
)

// maxValueLen bounds the length of values recorded on spans and change
// records.
const maxValueLen = 256

func formatValue(v any) string {
	s := fmt.Sprint(v)
	if len(s) > maxValueLen {
		return s[:maxValueLen] + "…"
	}
	return s
}

// multi fans every hook call out to several hooks, in order.
type multi []reactive.Hooks

// Multi combines hooks. Nil entries are skipped.
func Multi(hooks ...reactive.Hooks) reactive.Hooks {
	out := make(multi, 0, len(hooks))
	for _, h := range hooks {
		if h != nil {
			out = append(out, h)
		}
	}
	return out
}

func (m multi) Notified(cell reactive.Observable, n int) {
	for _, h := range m {
		h.Notified(cell, n)
	}
}

func (m multi) Invalidated(cell reactive.Observable) {
	for _, h := range m {
		h.Invalidated(cell)
	}
}

func (m multi) Recomputed(cell reactive.Observable, start time.Time, d time.Duration, err error) {
	for _, h := range m {
		h.Recomputed(cell, start, d, err)
	}
}

func (m multi) Reduced(cell reactive.Observable, source string, changed bool) {
	for _, h := range m {
		h.Reduced(cell, source, changed)
	}
}

func (m multi) WatcherRun(w *reactive.Watcher, sources int, start time.Time, d time.Duration) {
	for _, h := range m {
		h.WatcherRun(w, sources, start, d)
	}
}

func (m multi) WatcherInvalidated(w *reactive.Watcher) {
	for _, h := range m {
		h.WatcherInvalidated(w)
	}
}

func (m multi) ReactionsFlushed(n int, start time.Time, d time.Duration) {
	for _, h := range m {
		h.ReactionsFlushed(n, start, d)
	}
}
