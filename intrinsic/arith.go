package intrinsic

import (
	"math/big"

	"github.com/wippyai/consteval/arith"
	"github.com/wippyai/consteval/errors"
	"github.com/wippyai/consteval/layout"
	"github.com/wippyai/consteval/value"
)

func registerArith(r *Registry) {
	binary := func(name string, fn func(arith.Width, *big.Int, *big.Int) *big.Int) {
		r.RegisterFunc(name, UnitArith, FamilyInt, 2, -1, func(ctx *Context, inv *Invocation) (value.TypedValue, error) {
			l, w, xs, err := intOperands(inv)
			if err != nil {
				return value.TypedValue{}, err
			}
			return value.FromBig(l, fn(w, xs[0], xs[1])), nil
		})
	}
	binary("wrapping_add", arith.WrappingAdd)
	binary("wrapping_sub", arith.WrappingSub)
	binary("wrapping_mul", arith.WrappingMul)
	binary("saturating_add", arith.SaturatingAdd)
	binary("saturating_sub", arith.SaturatingSub)

	withOverflow := func(name string, fn func(arith.Width, *big.Int, *big.Int) (*big.Int, bool)) {
		r.RegisterFunc(name, UnitArith, FamilyInt, 2, -1, func(ctx *Context, inv *Invocation) (value.TypedValue, error) {
			l, w, xs, err := intOperands(inv)
			if err != nil {
				return value.TypedValue{}, err
			}
			res, overflow := fn(w, xs[0], xs[1])
			return value.Tuple(value.FromBig(l, res), value.FromBool(overflow)), nil
		})
	}
	withOverflow("add_with_overflow", arith.AddWithOverflow)
	withOverflow("sub_with_overflow", arith.SubWithOverflow)
	withOverflow("mul_with_overflow", arith.MulWithOverflow)

	unchecked := func(name string, fn func(arith.Width, *big.Int, *big.Int) *big.Int) {
		r.RegisterFunc(name, UnitArith, FamilyInt, 2, -1, func(ctx *Context, inv *Invocation) (value.TypedValue, error) {
			l, w, xs, err := intOperands(inv)
			if err != nil {
				return value.TypedValue{}, err
			}
			res, err := arith.Checked(w, fn(w, xs[0], xs[1]))
			if err != nil {
				return value.TypedValue{}, err
			}
			return value.FromBig(l, res), nil
		})
	}
	unchecked("unchecked_add", func(_ arith.Width, a, b *big.Int) *big.Int { return new(big.Int).Add(a, b) })
	unchecked("unchecked_sub", func(_ arith.Width, a, b *big.Int) *big.Int { return new(big.Int).Sub(a, b) })
	unchecked("unchecked_mul", func(_ arith.Width, a, b *big.Int) *big.Int { return new(big.Int).Mul(a, b) })

	r.RegisterFunc("exact_div", UnitArith, FamilyInt, 2, -1, func(ctx *Context, inv *Invocation) (value.TypedValue, error) {
		l, w, xs, err := intOperands(inv)
		if err != nil {
			return value.TypedValue{}, err
		}
		q, err := arith.ExactDiv(w, xs[0], xs[1])
		if err != nil {
			return value.TypedValue{}, err
		}
		return value.FromBig(l, q), nil
	})

	count := func(name string, nonzero bool, fn func(arith.Width, *big.Int) int) {
		r.RegisterFunc(name, UnitArith, FamilyInt, 1, -1, func(ctx *Context, inv *Invocation) (value.TypedValue, error) {
			l, w, xs, err := intOperands(inv)
			if err != nil {
				return value.TypedValue{}, err
			}
			if nonzero && xs[0].Sign() == 0 {
				return value.TypedValue{}, errors.New(errors.PhaseArith, errors.KindInvalidData).
					TypeName(l.String()).
					Detail("argument must be nonzero").
					Build()
			}
			return value.FromInt64(l, int64(fn(w, xs[0]))), nil
		})
	}
	count("ctpop", false, arith.Ctpop)
	count("cttz", false, arith.Cttz)
	count("ctlz", false, arith.Ctlz)
	count("cttz_nonzero", true, arith.Cttz)
	count("ctlz_nonzero", true, arith.Ctlz)

	unary := func(name string, fn func(arith.Width, *big.Int) *big.Int) {
		r.RegisterFunc(name, UnitArith, FamilyInt, 1, -1, func(ctx *Context, inv *Invocation) (value.TypedValue, error) {
			l, w, xs, err := intOperands(inv)
			if err != nil {
				return value.TypedValue{}, err
			}
			return value.FromBig(l, fn(w, xs[0])), nil
		})
	}
	unary("bswap", arith.Bswap)
	unary("bitreverse", arith.Bitreverse)

	shift := func(name string, fn func(arith.Width, *big.Int, uint64) (*big.Int, error)) {
		r.RegisterFunc(name, UnitArith, FamilyInt, 2, -1, func(ctx *Context, inv *Invocation) (value.TypedValue, error) {
			l, w, x, n, err := shiftOperands(inv)
			if err != nil {
				return value.TypedValue{}, err
			}
			res, err := fn(w, x, n)
			if err != nil {
				return value.TypedValue{}, err
			}
			return value.FromBig(l, res), nil
		})
	}
	shift("unchecked_shl", arith.Shl)
	shift("unchecked_shr", arith.Shr)
	shift("rotate_left", func(w arith.Width, x *big.Int, n uint64) (*big.Int, error) {
		return arith.RotateLeft(w, x, uint(n%uint64(w.Bits))), nil
	})
	shift("rotate_right", func(w arith.Width, x *big.Int, n uint64) (*big.Int, error) {
		return arith.RotateRight(w, x, uint(n%uint64(w.Bits))), nil
	})
}

// intOperands decodes every argument as an integer of one shared layout.
// A type argument, when given, must name the same layout.
func intOperands(inv *Invocation) (layout.Layout, arith.Width, []*big.Int, error) {
	l := inv.Args[0].Layout
	if len(inv.TypeArgs) > 0 {
		l = inv.TypeArg(0)
	}
	w, err := arith.WidthOf(l)
	if err != nil {
		return layout.Layout{}, arith.Width{}, nil, err
	}

	xs := make([]*big.Int, len(inv.Args))
	for i, a := range inv.Args {
		if !a.Layout.SameScalar(l) {
			return layout.Layout{}, arith.Width{}, nil, errors.New(errors.PhaseArith, errors.KindArityOrTypeMismatch).
				TypeName(a.Layout.String()).
				Detail("argument %d must be %s", i, l).
				Build()
		}
		x, err := a.Big()
		if err != nil {
			return layout.Layout{}, arith.Width{}, nil, err
		}
		xs[i] = x
	}
	return l, w, xs, nil
}

// shiftOperands decodes a value and a shift amount. The amount may be any
// unsigned-valued integer type.
func shiftOperands(inv *Invocation) (layout.Layout, arith.Width, *big.Int, uint64, error) {
	l := inv.Args[0].Layout
	if len(inv.TypeArgs) > 0 {
		l = inv.TypeArg(0)
	}
	w, err := arith.WidthOf(l)
	if err != nil {
		return layout.Layout{}, arith.Width{}, nil, 0, err
	}
	if !inv.Args[0].Layout.SameScalar(l) {
		return layout.Layout{}, arith.Width{}, nil, 0, errors.TypeMismatch(errors.PhaseArith, inv.Args[0].Layout.String(), "value must be "+l.String())
	}
	x, err := inv.Args[0].Big()
	if err != nil {
		return layout.Layout{}, arith.Width{}, nil, 0, err
	}

	amt, err := inv.Args[1].Big()
	if err != nil {
		return layout.Layout{}, arith.Width{}, nil, 0, err
	}
	if amt.Sign() < 0 || !amt.IsUint64() {
		return layout.Layout{}, arith.Width{}, nil, 0, errors.Overflow(errors.PhaseArith, amt, w.String())
	}
	return l, w, x, amt.Uint64(), nil
}
