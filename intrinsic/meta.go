package intrinsic

import (
	"github.com/wippyai/consteval/errors"
	"github.com/wippyai/consteval/layout"
	"github.com/wippyai/consteval/value"
)

func registerMeta(r *Registry) {
	layoutQuery := func(name string, fn func(layout.Layout) uint64) {
		r.RegisterFunc(name, UnitMeta, FamilyNone, 0, 1, func(ctx *Context, inv *Invocation) (value.TypedValue, error) {
			return value.FromUint64(layout.Usize(), fn(inv.TypeArg(0))), nil
		})
	}
	layoutQuery("size_of", func(l layout.Layout) uint64 { return l.Size })
	layoutQuery("align_of", func(l layout.Layout) uint64 { return l.Align })
	layoutQuery("min_align_of", func(l layout.Layout) uint64 { return l.Align })
	layoutQuery("pref_align_of", func(l layout.Layout) uint64 { return l.Align })

	r.RegisterFunc("needs_drop", UnitMeta, FamilyNone, 0, 1, func(ctx *Context, inv *Invocation) (value.TypedValue, error) {
		return value.FromBool(ctx.Drop().NeedsDrop(inv.TypeArgs[0])), nil
	})

	hint := func(ctx *Context, inv *Invocation) (value.TypedValue, error) {
		if _, err := inv.Args[0].Bool(); err != nil {
			return value.TypedValue{}, err
		}
		return inv.Args[0], nil
	}
	r.RegisterFunc("likely", UnitMeta, FamilyBool, 1, -1, hint)
	r.RegisterFunc("unlikely", UnitMeta, FamilyBool, 1, -1, hint)

	r.RegisterFunc("assume", UnitMeta, FamilyBool, 1, -1, func(ctx *Context, inv *Invocation) (value.TypedValue, error) {
		ok, err := inv.Args[0].Bool()
		if err != nil {
			return value.TypedValue{}, err
		}
		if !ok {
			return value.TypedValue{}, errors.InvalidData(errors.PhaseMeta, "assumption violated")
		}
		return value.Unit, nil
	})

	r.RegisterFunc("black_box", UnitMeta, FamilyAny, 1, -1, func(ctx *Context, inv *Invocation) (value.TypedValue, error) {
		return inv.Args[0], nil
	})
	r.RegisterFunc("forget", UnitMeta, FamilyAny, 1, -1, func(ctx *Context, inv *Invocation) (value.TypedValue, error) {
		return value.Unit, nil
	})

	r.RegisterFunc("transmute", UnitCodec, FamilyAny, 1, 2, transmute)

	r.Register(Descriptor{
		Name:      "const_eval_select",
		Unit:      UnitMeta,
		Family:    FamilyAny,
		Arity:     1,
		TypeArgs:  -1,
		Callbacks: 2,
		Handler:   Func(constEvalSelect),
	})
}

// transmute reinterprets the argument's bytes as the second type argument.
func transmute(ctx *Context, inv *Invocation) (value.TypedValue, error) {
	src, dst := inv.TypeArg(0), inv.TypeArg(1)
	arg := inv.Args[0]
	if arg.Layout.Size != src.Size {
		return value.TypedValue{}, errors.LayoutMismatch(arg.Layout.Size, src.Size)
	}
	if src.Size != dst.Size {
		return value.TypedValue{}, errors.New(errors.PhaseCodec, errors.KindLayoutMismatch).
			TypeName(dst.String()).
			Detail("cannot transmute %s (%d bytes) to %s (%d bytes)", src, src.Size, dst, dst.Size).
			Build()
	}
	return value.Transmute(arg, dst)
}

// constEvalSelect always takes the compile-time branch: the first
// callback, applied to the members of the argument tuple. The runtime
// branch is never invoked.
func constEvalSelect(ctx *Context, inv *Invocation) (value.TypedValue, error) {
	args := spread(inv.Args[0])
	return inv.Callbacks[0](ctx, args)
}

// spread unpacks a tuple argument into its members. A scalar is passed
// through as the only member.
func spread(v value.TypedValue) []value.TypedValue {
	if v.Layout.IsScalar() {
		return []value.TypedValue{v}
	}
	n := v.Layout.NumFields()
	out := make([]value.TypedValue, 0, n)
	for i := 0; i < n; i++ {
		f, err := v.Field(i)
		if err != nil {
			break
		}
		out = append(out, f)
	}
	return out
}
