package reactive

import "fmt"

// Option configures a cell at construction.
type Option func(*options)

type options struct {
	label     string
	container any
	equal     any
}

func buildOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithLabel sets the diagnostic label of the cell.
func WithLabel(label string) Option {
	return func(o *options) {
		o.label = label
	}
}

// WithContainer records the object owning the cell.
// The container is only used for introspection and logging.
func WithContainer(container any) Option {
	return func(o *options) {
		o.container = container
	}
}

// WithEquals sets the equality function used to decide whether a new value
// differs from the old one. Its type parameter must match the cell's value
// type; a mismatch panics at construction.
func WithEquals[T any](fn func(a, b T) bool) Option {
	return func(o *options) {
		o.equal = fn
	}
}

// equalFor resolves the equality function for a cell of type T.
func equalFor[T any](o options) func(a, b T) bool {
	if o.equal == nil {
		return policyEquals[T]
	}
	fn, ok := o.equal.(func(a, b T) bool)
	if !ok {
		var zero T
		panic(fmt.Sprintf("eventreduce: WithEquals function %T does not match cell type %T", o.equal, zero))
	}
	return fn
}
