// Package render keeps a rendered view up to date with the cells it reads.
//
// A Component runs a render function through a reactive.Watcher. When any
// cell read by the last render changes, the component requests a re-render
// through the installed reactive scheduler, so writes grouped with
// reactive.Batch produce a single re-render.
package render

import (
	"log/slog"

	"github.com/vango-dev/eventreduce/internal/listeners"
	"github.com/vango-dev/eventreduce/pkg/reactive"
)

// Component is a reactive view producing values of type T.
type Component[T any] struct {
	name    string
	render  func() T
	watcher *reactive.Watcher

	value   T
	renders int
	stop    reactive.Unsubscribe
	closed  bool
	pending bool

	listeners listeners.List[T]
}

// New creates a component. It does not render until Mount.
func New[T any](name string, render func() T) *Component[T] {
	if name == "" {
		name = "Component"
	}
	c := &Component[T]{
		name:   name,
		render: render,
	}
	c.watcher = reactive.Watch(func() { c.value = c.render() }, name)
	return c
}

// Name returns the component name.
func (c *Component[T]) Name() string {
	return c.name
}

// Mount renders the component for the first time and returns the output.
// Mounting a mounted component re-renders it.
func (c *Component[T]) Mount() T {
	c.closed = false
	c.run()
	return c.value
}

// Value returns the output of the last render.
func (c *Component[T]) Value() T {
	return c.value
}

// Renders returns how many times the component rendered.
func (c *Component[T]) Renders() int {
	return c.renders
}

// Sources returns the cells read by the last render.
func (c *Component[T]) Sources() []reactive.Observable {
	return c.watcher.Sources()
}

// OnRender registers fn to receive the output of every re-render that was
// triggered by a change.
func (c *Component[T]) OnRender(fn func(T)) reactive.Unsubscribe {
	return c.listeners.Add(fn)
}

// Close stops the component. Pending re-renders are dropped.
func (c *Component[T]) Close() {
	c.closed = true
	c.unsubscribe()
}

func (c *Component[T]) run() {
	c.renders++
	c.stop = c.watcher.Subscribe(c.invalidate)

	reactive.Logger().Debug("render",
		slog.String("component", c.name),
		slog.Int("renders", c.renders),
		slog.Any("sources", reactive.SourceTree(c.watcher.Sources())),
	)
}

func (c *Component[T]) invalidate() {
	c.unsubscribe()
	if c.pending {
		return
	}
	c.pending = true
	reactive.AddKeyedReaction(c, c.rerender)
}

func (c *Component[T]) rerender() {
	c.pending = false
	if c.closed {
		return
	}
	c.run()
	c.listeners.Emit(c.value)
}

func (c *Component[T]) unsubscribe() {
	if c.stop != nil {
		c.stop()
		c.stop = nil
	}
	c.watcher.UnsubscribeFromSources()
}
