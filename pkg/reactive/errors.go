package reactive

import (
	"errors"
	"fmt"
	"strings"
)

// ErrCyclicDependency matches every *CyclicDependencyError with errors.Is.
var ErrCyclicDependency = errors.New("eventreduce: cyclic dependency")

// ErrReactionStorm is returned when a scheduler flush keeps queuing new
// reactions beyond its round limit. This usually means a reaction writes
// to a cell that re-triggers the same reaction.
var ErrReactionStorm = errors.New("eventreduce: reaction storm: flush round limit exceeded")

// CyclicDependencyError is raised when a derivation reads itself, directly
// or through other derivations, while computing, or is invalidated by a
// write made from its own formula.
type CyclicDependencyError struct {
	// Path lists the labels of the derivations involved, starting with the
	// derivation that was re-entered.
	Path []string

	closed bool
}

func newCycleError(o Observable) *CyclicDependencyError {
	return &CyclicDependencyError{Path: []string{o.Label()}}
}

// extend records the next derivation the error unwinds through, until the
// path reaches the re-entered derivation again.
func (e *CyclicDependencyError) extend(label string) {
	if e.closed {
		return
	}
	e.Path = append(e.Path, label)
	if label == e.Path[0] {
		e.closed = true
	}
}

// Error implements the error interface.
func (e *CyclicDependencyError) Error() string {
	// The path is collected while unwinding; print it in read order.
	path := make([]string, len(e.Path))
	for i, label := range e.Path {
		path[len(path)-1-i] = label
	}
	return "eventreduce: cyclic dependency detected: " + strings.Join(path, " → ")
}

// Is reports whether target is ErrCyclicDependency.
func (e *CyclicDependencyError) Is(target error) bool {
	return target == ErrCyclicDependency
}

// Code returns the catalogue code of the error.
func (e *CyclicDependencyError) Code() string {
	return "E006"
}

// ReducerError wraps a panic raised by a reducer. The reduction keeps the
// value it had before the event.
type ReducerError struct {
	// Reduction is the label of the reduction whose reducer failed.
	Reduction string

	// Source is the label of the event source that fired.
	Source string

	// Cause is the panic value, converted to an error when needed.
	Cause error
}

func newReducerError(reduction Observable, source string, recovered any) *ReducerError {
	cause, ok := recovered.(error)
	if !ok {
		cause = fmt.Errorf("%v", recovered)
	}
	return &ReducerError{
		Reduction: reduction.Label(),
		Source:    source,
		Cause:     cause,
	}
}

// Error implements the error interface.
func (e *ReducerError) Error() string {
	return fmt.Sprintf("eventreduce: reducer for %s on %s failed: %v", e.Reduction, e.Source, e.Cause)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *ReducerError) Unwrap() error {
	return e.Cause
}

// Code returns the catalogue code of the error.
func (e *ReducerError) Code() string {
	return "E007"
}

// Catch runs fn and returns the error it panicked with, if any.
// Panics carrying a non-error value are re-raised.
//
// Engine failures travel as panics through formulas and reducers because
// those have no error return; Catch turns them back into values at the
// boundary.
func Catch(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			e, ok := r.(error)
			if !ok {
				panic(r)
			}
			err = e
		}
	}()
	fn()
	return nil
}
