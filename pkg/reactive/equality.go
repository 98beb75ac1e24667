package reactive

import (
	"reflect"

	"github.com/google/go-cmp/cmp"
)

// EqualityPolicy selects the default comparison used by cells that were
// not given WithEquals.
type EqualityPolicy uint8

const (
	// ReferenceEquality compares with Identical. This is the default.
	ReferenceEquality EqualityPolicy = iota

	// StructuralEquality compares with DeepEqual.
	StructuralEquality
)

// String returns the configuration name of the policy.
func (p EqualityPolicy) String() string {
	switch p {
	case ReferenceEquality:
		return "reference"
	case StructuralEquality:
		return "deep"
	default:
		return "unknown"
	}
}

var equalityPolicy = ReferenceEquality

// SetEqualityPolicy changes the default policy and returns a function
// restoring the previous one. Cells resolve the policy on every comparison,
// so the change applies to existing cells without a custom equality.
func SetEqualityPolicy(p EqualityPolicy) (restore func()) {
	old := equalityPolicy
	equalityPolicy = p
	return func() { equalityPolicy = old }
}

// CurrentEqualityPolicy returns the default policy in effect.
func CurrentEqualityPolicy() EqualityPolicy {
	return equalityPolicy
}

func policyEquals[T any](a, b T) bool {
	if equalityPolicy == StructuralEquality {
		return DeepEqual(a, b)
	}
	return Identical(a, b)
}

// Identical reports whether a and b are the same value by reference.
//
// Comparable values are compared with ==. Maps compare equal only when they
// are the same map, slices only when they share the backing array and have
// the same length. Functions, and structs holding non-comparable fields,
// never compare equal, so replacing them always notifies.
func Identical[T any](a, b T) bool {
	va, vb := any(a), any(b)
	if va == nil || vb == nil {
		return va == nil && vb == nil
	}

	ta := reflect.TypeOf(va)
	if ta != reflect.TypeOf(vb) {
		return false
	}
	if ta.Comparable() {
		return comparableEqual(va, vb)
	}

	ra, rb := reflect.ValueOf(va), reflect.ValueOf(vb)
	switch ra.Kind() {
	case reflect.Slice:
		return ra.Len() == rb.Len() && ra.Pointer() == rb.Pointer()
	case reflect.Map:
		return ra.Pointer() == rb.Pointer()
	default:
		return false
	}
}

// comparableEqual compares with ==, treating a runtime panic (an interface
// field holding a non-comparable value) as "not equal".
func comparableEqual(a, b any) (eq bool) {
	defer func() {
		if recover() != nil {
			eq = false
		}
	}()
	return a == b
}

// DeepEqual reports whether a and b are structurally equal, including
// unexported fields.
func DeepEqual[T any](a, b T) bool {
	return cmp.Equal(a, b, cmp.Exporter(func(reflect.Type) bool { return true }))
}
