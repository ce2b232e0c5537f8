package intrinsic

import (
	"sort"

	"github.com/wippyai/consteval/layout"
	"github.com/wippyai/consteval/value"
)

// Unit groups intrinsics by the evaluator unit that implements them.
type Unit uint8

const (
	UnitArith Unit = iota
	UnitAtomic
	UnitAlloc
	UnitPointer
	UnitMeta
	UnitCodec
)

func (u Unit) String() string {
	switch u {
	case UnitArith:
		return "arith"
	case UnitAtomic:
		return "atomic"
	case UnitAlloc:
		return "alloc"
	case UnitPointer:
		return "pointer"
	case UnitMeta:
		return "meta"
	case UnitCodec:
		return "codec"
	default:
		return "unknown"
	}
}

// Family is the kind of the first operand an intrinsic accepts. Resolve
// rejects calls whose first argument is of another kind before the handler
// runs; handlers check the remaining operands.
type Family uint8

const (
	FamilyNone    Family = iota // no value operands
	FamilyInt                   // integer first: arithmetic, allocation size
	FamilyBool                  // bool
	FamilyPointer               // pointer first, then counts or values
	FamilyAny                   // any layout
)

// Accepts reports whether a first operand of layout l belongs to f.
func (f Family) Accepts(l layout.Layout) bool {
	switch f {
	case FamilyInt:
		return l.Kind == layout.KindInt
	case FamilyBool:
		return l.Kind == layout.KindBool
	case FamilyPointer:
		return l.Kind == layout.KindPointer
	default:
		return true
	}
}

func (f Family) String() string {
	switch f {
	case FamilyInt:
		return "int"
	case FamilyBool:
		return "bool"
	case FamilyPointer:
		return "pointer"
	case FamilyAny:
		return "any"
	default:
		return "none"
	}
}

// Handler evaluates a resolved intrinsic call.
//
// Handlers are stateless and shared across evaluations. All mutable state
// lives in the Context.
type Handler interface {
	Handle(ctx *Context, inv *Invocation) (value.TypedValue, error)
}

// Func is an adapter to use ordinary functions as Handlers.
type Func func(ctx *Context, inv *Invocation) (value.TypedValue, error)

// Handle implements Handler.
func (f Func) Handle(ctx *Context, inv *Invocation) (value.TypedValue, error) {
	return f(ctx, inv)
}

// Descriptor is one row of the dispatch table.
type Descriptor struct {
	Handler   Handler
	Name      string
	Arity     int
	TypeArgs  int
	Callbacks int
	Unit      Unit
	Family    Family
}

// Registry maps intrinsic names to their descriptors.
type Registry struct {
	descs map[string]*Descriptor
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{descs: make(map[string]*Descriptor)}
}

// Register adds a descriptor. A descriptor already registered under the
// same name is replaced.
func (r *Registry) Register(d Descriptor) {
	r.descs[d.Name] = &d
}

// RegisterFunc registers fn under name with the given shape.
func (r *Registry) RegisterFunc(name string, unit Unit, family Family, arity, typeArgs int, fn func(*Context, *Invocation) (value.TypedValue, error)) {
	r.Register(Descriptor{
		Name:     name,
		Unit:     unit,
		Family:   family,
		Arity:    arity,
		TypeArgs: typeArgs,
		Handler:  Func(fn),
	})
}

// Get returns the descriptor for name, or nil if not registered.
func (r *Registry) Get(name string) *Descriptor {
	return r.descs[name]
}

// Has returns true if name is registered.
func (r *Registry) Has(name string) bool {
	return r.descs[name] != nil
}

// Names returns every registered name in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.descs))
	for n := range r.descs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Missing returns the names in want that have no descriptor.
func (r *Registry) Missing(want []string) []string {
	var missing []string
	for _, n := range want {
		if r.descs[n] == nil {
			missing = append(missing, n)
		}
	}
	return missing
}
