// Package demo holds the counter model used by the demo and serve
// commands.
package demo

import (
	"fmt"

	"github.com/vango-dev/eventreduce/pkg/event"
	"github.com/vango-dev/eventreduce/pkg/model"
	"github.com/vango-dev/eventreduce/pkg/reactive"
	"github.com/vango-dev/eventreduce/pkg/render"
)

// Counter is a model folding increment, decrement and reset events into a
// count, with derived parity and history.
type Counter struct {
	*model.Model

	Increment *event.Event[int]
	Decrement *event.Event[int]
	Reset     *event.Event[struct{}]

	Count   *reactive.Reduction[int]
	History *reactive.Reduction[[]int]
	Parity  *reactive.Derivation[string]
	Summary *reactive.Derivation[string]
}

// NewCounter creates a counter model named name.
func NewCounter(name string) *Counter {
	c := &Counter{
		Increment: event.New[int](""),
		Decrement: event.New[int](""),
		Reset:     event.New[struct{}](""),
	}
	c.Model = model.New(name, c)
	model.Events(c)

	c.Count = model.MustReduced(c.Model, "Count", reactive.Reduce(0).
		On(reactive.When(c.Increment, func(n, by int) int { return n + by })).
		On(reactive.When(c.Decrement, func(n, by int) int { return n - by })).
		On(reactive.When(c.Reset, func(int, struct{}) int { return 0 })).
		Peek())

	c.History = model.MustReduced(c.Model, "History", reactive.Reduce([]int(nil)).
		On(reactive.WhenChanged(c.Count, func(h []int, n int) []int {
			return append(h[:len(h):len(h)], n)
		})).
		Peek())

	c.Parity = model.Derived(c.Model, "Parity", func() string {
		if c.Count.Get()%2 == 0 {
			return "even"
		}
		return "odd"
	})
	c.Summary = model.Derived(c.Model, "Summary", func() string {
		return fmt.Sprintf("%d (%s) after %d changes", c.Count.Get(), c.Parity.Get(), len(c.History.Get()))
	})
	return c
}

// View returns a component rendering the counter summary.
func (c *Counter) View() *render.Component[string] {
	return render.New(c.Name(), func() string {
		return c.Summary.Get()
	})
}
