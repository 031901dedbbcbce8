package component

import "reflect"

type predicateKind int

const (
	predicateNever predicateKind = iota
	predicateAlways
	predicateFunc
)

// Predicate is a boolean option that may be decided per component. The zero
// value evaluates to false.
type Predicate struct {
	kind predicateKind
	fn   func(Component) bool
}

// Always returns a predicate that holds for every component.
func Always() Predicate { return Predicate{kind: predicateAlways} }

// Never returns a predicate that holds for no component.
func Never() Predicate { return Predicate{kind: predicateNever} }

// Bool lifts a literal into a predicate.
func Bool(b bool) Predicate {
	if b {
		return Always()
	}
	return Never()
}

// When returns a predicate decided by fn. A nil fn behaves like Never.
func When(fn func(Component) bool) Predicate {
	if fn == nil {
		return Never()
	}
	return Predicate{kind: predicateFunc, fn: fn}
}

// Eval decides the predicate for c.
func (p Predicate) Eval(c Component) bool {
	switch p.kind {
	case predicateAlways:
		return true
	case predicateFunc:
		return p.fn(c)
	default:
		return false
	}
}

// Equal reports whether p and other are the same predicate. Function
// predicates are equal when they wrap the same function.
func (p Predicate) Equal(other Predicate) bool {
	if p.kind != other.kind {
		return false
	}
	if p.kind != predicateFunc {
		return true
	}
	return reflect.ValueOf(p.fn).Pointer() == reflect.ValueOf(other.fn).Pointer()
}

// String renders the predicate for diagnostics.
func (p Predicate) String() string {
	switch p.kind {
	case predicateAlways:
		return "always"
	case predicateFunc:
		return "predicate"
	default:
		return "never"
	}
}
