package intrinsic

import (
	"bytes"
	"math/big"

	"github.com/wippyai/consteval/arith"
	"github.com/wippyai/consteval/errors"
	"github.com/wippyai/consteval/layout"
	"github.com/wippyai/consteval/memory"
	"github.com/wippyai/consteval/value"
)

// Atomics execute as plain read-modify-write sequences on the arena.
// Evaluation is single-threaded, so every ordering collapses to the same
// behavior and a weak compare-exchange never fails spuriously.

func registerAtomic(r *Registry) {
	r.RegisterFunc("atomic_load", UnitAtomic, FamilyPointer, 1, 1, func(ctx *Context, inv *Invocation) (value.TypedValue, error) {
		p, err := atomicTarget(inv)
		if err != nil {
			return value.TypedValue{}, err
		}
		return value.Load(ctx.Arena, p, inv.TypeArg(0))
	})

	r.RegisterFunc("atomic_store", UnitAtomic, FamilyPointer, 2, 1, func(ctx *Context, inv *Invocation) (value.TypedValue, error) {
		p, err := atomicTarget(inv)
		if err != nil {
			return value.TypedValue{}, err
		}
		v, err := atomicOperand(inv, 1)
		if err != nil {
			return value.TypedValue{}, err
		}
		if err := value.Store(ctx.Arena, p, v); err != nil {
			return value.TypedValue{}, err
		}
		return value.Unit, nil
	})

	r.RegisterFunc("atomic_xchg", UnitAtomic, FamilyPointer, 2, 1, func(ctx *Context, inv *Invocation) (value.TypedValue, error) {
		return readModifyWrite(ctx, inv, func(_, v value.TypedValue) (value.TypedValue, error) {
			return v, nil
		})
	})

	cxchg := func(ctx *Context, inv *Invocation) (value.TypedValue, error) {
		p, err := atomicTarget(inv)
		if err != nil {
			return value.TypedValue{}, err
		}
		expected, err := atomicOperand(inv, 1)
		if err != nil {
			return value.TypedValue{}, err
		}
		replacement, err := atomicOperand(inv, 2)
		if err != nil {
			return value.TypedValue{}, err
		}

		cur, err := value.Load(ctx.Arena, p, inv.TypeArg(0))
		if err != nil {
			return value.TypedValue{}, err
		}
		ok := bytes.Equal(cur.Bytes, expected.Bytes)
		if ok {
			if err := value.Store(ctx.Arena, p, replacement); err != nil {
				return value.TypedValue{}, err
			}
		}
		return value.Tuple(cur, value.FromBool(ok)), nil
	}
	r.RegisterFunc("atomic_cxchg", UnitAtomic, FamilyPointer, 3, 1, cxchg)
	r.RegisterFunc("atomic_cxchgweak", UnitAtomic, FamilyPointer, 3, 1, cxchg)

	integer := func(name string, fn func(w arith.Width, old, v *big.Int) *big.Int) {
		r.RegisterFunc(name, UnitAtomic, FamilyPointer, 2, 1, func(ctx *Context, inv *Invocation) (value.TypedValue, error) {
			w, err := arith.WidthOf(inv.TypeArg(0))
			if err != nil {
				return value.TypedValue{}, errors.TypeMismatch(errors.PhaseAtomic, inv.TypeArg(0).String(), "operation needs an integer type")
			}
			return readModifyWrite(ctx, inv, func(old, v value.TypedValue) (value.TypedValue, error) {
				a, err := old.Big()
				if err != nil {
					return value.TypedValue{}, err
				}
				b, err := v.Big()
				if err != nil {
					return value.TypedValue{}, err
				}
				return value.FromBig(old.Layout, fn(w, a, b)), nil
			})
		})
	}
	integer("atomic_xadd", arith.WrappingAdd)
	integer("atomic_xsub", arith.WrappingSub)
	integer("atomic_max", func(_ arith.Width, a, b *big.Int) *big.Int { return pick(a, b, 1) })
	integer("atomic_min", func(_ arith.Width, a, b *big.Int) *big.Int { return pick(a, b, -1) })

	unsigned := func(name string, fn func(a, b *big.Int) *big.Int) {
		r.RegisterFunc(name, UnitAtomic, FamilyPointer, 2, 1, func(ctx *Context, inv *Invocation) (value.TypedValue, error) {
			t := inv.TypeArg(0)
			if t.Kind != layout.KindInt && t.Kind != layout.KindBool {
				return value.TypedValue{}, errors.TypeMismatch(errors.PhaseAtomic, t.String(), "operation needs an integer or bool type")
			}
			mask := bitMask(t)
			return readModifyWrite(ctx, inv, func(old, v value.TypedValue) (value.TypedValue, error) {
				res := fn(old.Unsigned(), v.Unsigned())
				return value.FromBig(old.Layout, res.And(res, mask)), nil
			})
		})
	}
	unsigned("atomic_and", func(a, b *big.Int) *big.Int { return new(big.Int).And(a, b) })
	unsigned("atomic_or", func(a, b *big.Int) *big.Int { return new(big.Int).Or(a, b) })
	unsigned("atomic_xor", func(a, b *big.Int) *big.Int { return new(big.Int).Xor(a, b) })
	unsigned("atomic_nand", func(a, b *big.Int) *big.Int {
		x := new(big.Int).And(a, b)
		return x.Not(x)
	})
	unsigned("atomic_umax", func(a, b *big.Int) *big.Int { return pick(a, b, 1) })
	unsigned("atomic_umin", func(a, b *big.Int) *big.Int { return pick(a, b, -1) })

	fence := func(ctx *Context, inv *Invocation) (value.TypedValue, error) {
		return value.Unit, nil
	}
	r.RegisterFunc("atomic_fence", UnitAtomic, FamilyNone, 0, 0, fence)
	r.RegisterFunc("atomic_singlethreadfence", UnitAtomic, FamilyNone, 0, 0, fence)
}

// readModifyWrite loads the target, stores fn(old, operand) and returns old.
func readModifyWrite(ctx *Context, inv *Invocation, fn func(old, v value.TypedValue) (value.TypedValue, error)) (value.TypedValue, error) {
	p, err := atomicTarget(inv)
	if err != nil {
		return value.TypedValue{}, err
	}
	v, err := atomicOperand(inv, 1)
	if err != nil {
		return value.TypedValue{}, err
	}

	old, err := value.Load(ctx.Arena, p, inv.TypeArg(0))
	if err != nil {
		return value.TypedValue{}, err
	}
	next, err := fn(old, v)
	if err != nil {
		return value.TypedValue{}, err
	}
	if err := value.Store(ctx.Arena, p, next); err != nil {
		return value.TypedValue{}, err
	}
	return old, nil
}

func atomicTarget(inv *Invocation) (memory.Pointer, error) {
	p, err := inv.Args[0].Pointer()
	if err != nil {
		return memory.Null, errors.TypeMismatch(errors.PhaseAtomic, inv.Args[0].Layout.String(), "first argument must be a pointer")
	}
	return p, nil
}

// atomicOperand returns argument i, which must have the size of the
// element type. It is relabeled with that type.
func atomicOperand(inv *Invocation, i int) (value.TypedValue, error) {
	t := inv.TypeArg(0)
	v := inv.Args[i]
	if v.Layout.Size != t.Size || (t.IsScalar() && v.Layout.Kind != t.Kind) {
		return value.TypedValue{}, errors.New(errors.PhaseAtomic, errors.KindArityOrTypeMismatch).
			TypeName(v.Layout.String()).
			Detail("argument %d must be %s", i, t).
			Build()
	}
	v.Layout = t
	return v, nil
}

// pick returns the larger of a and b when dir is 1 and the smaller when -1.
func pick(a, b *big.Int, dir int) *big.Int {
	if b.Cmp(a) == dir {
		return new(big.Int).Set(b)
	}
	return new(big.Int).Set(a)
}

func bitMask(t layout.Layout) *big.Int {
	bits := uint(t.Size * 8)
	if t.Kind == layout.KindBool {
		bits = 1
	}
	m := new(big.Int).Lsh(big.NewInt(1), bits)
	return m.Sub(m, big.NewInt(1))
}
