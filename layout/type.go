package layout

// Type is a resolved type argument handed to the engine by the surrounding
// evaluator. Ref is the caller's own handle for the type and is only ever
// passed back to the caller's DropOracle.
type Type struct {
	Ref    any
	Name   string
	Layout Layout
}

// Of wraps a bare layout as an anonymous type argument.
func Of(l Layout) Type {
	return Type{Name: l.String(), Layout: l}
}

// DropOracle answers whether dropping a value of the type runs drop glue.
type DropOracle interface {
	NeedsDrop(t Type) bool
}

// DropFunc is an adapter to use ordinary functions as DropOracles.
type DropFunc func(t Type) bool

// NeedsDrop implements DropOracle.
func (f DropFunc) NeedsDrop(t Type) bool {
	return f(t)
}

// Trivial is a DropOracle for which no type needs drop.
var Trivial DropOracle = DropFunc(func(Type) bool { return false })
