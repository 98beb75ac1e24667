package reactive

import (
	"github.com/vango-dev/eventreduce/internal/listeners"
)

// testEvent is a minimal Source used to drive reductions in tests.
type testEvent[P any] struct {
	label string
	subs  listeners.List[P]
}

func newTestEvent[P any](label string) *testEvent[P] {
	return &testEvent[P]{label: label}
}

func (e *testEvent[P]) Label() string {
	return e.label
}

func (e *testEvent[P]) Subscribe(fn func(P)) Unsubscribe {
	return e.subs.Add(fn)
}

func (e *testEvent[P]) Fire(p P) {
	e.subs.Emit(p)
}

// counter counts calls to its func.
type counter struct {
	n int
}

func (c *counter) fn() {
	c.n++
}

func labels(cells []Observable) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = c.Label()
	}
	return out
}
