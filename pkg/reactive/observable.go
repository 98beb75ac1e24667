package reactive

import (
	"fmt"

	"github.com/vango-dev/eventreduce/internal/listeners"
)

// Kind identifies the flavour of an observable cell.
type Kind uint8

const (
	KindValue Kind = iota + 1
	KindDerivation
	KindReduction
)

// String returns a human-readable name for the kind.
func (k Kind) String() string {
	switch k {
	case KindValue:
		return "value"
	case KindDerivation:
		return "derivation"
	case KindReduction:
		return "reduction"
	default:
		return "unknown"
	}
}

// Unsubscribe removes the registration it was returned for.
// Calling it more than once is a no-op.
type Unsubscribe func()

// Observable is the type-erased view of a cell.
// It is what tracking frames record and what watchers subscribe to.
type Observable interface {
	// ID returns the unique identifier of the cell.
	ID() uint64

	// Label returns the diagnostic name of the cell.
	Label() string

	// Container returns the object owning the cell, if any.
	// Diagnostic only.
	Container() any

	// Kind reports whether the cell is a plain value, a derivation or a
	// reduction.
	Kind() Kind

	// Subscribe registers fn to be called, synchronously and in
	// subscription order, whenever the cell changes or is invalidated.
	Subscribe(fn func()) Unsubscribe

	// SubscriberCount returns the number of live subscriptions.
	SubscriberCount() int

	// Snapshot returns the current value without recording the read and
	// without recomputing.
	Snapshot() any
}

// cell holds the identity, metadata and subscriber list shared by every
// cell kind. It is embedded in Value, Derivation and Reduction.
type cell struct {
	id        uint64
	kind      Kind
	label     string
	container any
	subs      listeners.List[struct{}]
}

func newCell(kind Kind, o options) cell {
	return cell{
		id:        nextID(),
		kind:      kind,
		label:     o.label,
		container: o.container,
	}
}

// ID returns the unique identifier for this cell.
func (c *cell) ID() uint64 {
	return c.id
}

// Kind returns the cell kind.
func (c *cell) Kind() Kind {
	return c.kind
}

// Label returns the diagnostic label, or "<kind>#<id>" when none was set.
func (c *cell) Label() string {
	if c.label != "" {
		return c.label
	}
	return fmt.Sprintf("%s#%d", c.kind, c.id)
}

// SetLabel replaces the diagnostic label. Used by container layers that
// only learn the property name after the cell was built.
func (c *cell) SetLabel(label string) {
	c.label = label
}

// Container returns the owning object, if any.
func (c *cell) Container() any {
	return c.container
}

// SetContainer records the owning object.
func (c *cell) SetContainer(container any) {
	c.container = container
}

// Subscribe registers fn to be called whenever the cell notifies.
func (c *cell) Subscribe(fn func()) Unsubscribe {
	return Unsubscribe(c.subs.Add(func(struct{}) { fn() }))
}

// SubscriberCount returns the number of live subscriptions.
func (c *cell) SubscriberCount() int {
	return c.subs.Len()
}

// notify calls every subscriber in subscription order.
// There is no batching at this layer.
func (c *cell) notify(self Observable) {
	n := c.subs.Emit(struct{}{})
	currentHooks().Notified(self, n)
}
