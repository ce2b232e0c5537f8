package intrinsic

import (
	"fmt"
	"math/big"

	"github.com/wippyai/consteval/errors"
	"github.com/wippyai/consteval/layout"
	"github.com/wippyai/consteval/memory"
	"github.com/wippyai/consteval/value"
)

func registerPointer(r *Registry) {
	r.RegisterFunc("offset", UnitPointer, FamilyPointer, 2, 1, offset)
	r.RegisterFunc("arith_offset", UnitPointer, FamilyPointer, 2, 1, arithOffset)

	r.RegisterFunc("copy", UnitPointer, FamilyPointer, 3, 1, copyElems)
	r.RegisterFunc("copy_nonoverlapping", UnitPointer, FamilyPointer, 3, 1, copyElems)
	r.RegisterFunc("write_bytes", UnitPointer, FamilyPointer, 3, 1, writeBytes)
	r.RegisterFunc("ptr_offset_from", UnitPointer, FamilyPointer, 2, 1, offsetFrom)

	load := func(ctx *Context, inv *Invocation) (value.TypedValue, error) {
		p, err := pointerArg(inv, 0)
		if err != nil {
			return value.TypedValue{}, err
		}
		return value.Load(ctx.Arena, p, inv.TypeArg(0))
	}
	store := func(ctx *Context, inv *Invocation) (value.TypedValue, error) {
		p, err := pointerArg(inv, 0)
		if err != nil {
			return value.TypedValue{}, err
		}
		v := inv.Args[1]
		if v.Layout.Size != inv.TypeArg(0).Size {
			return value.TypedValue{}, errors.LayoutMismatch(v.Layout.Size, inv.TypeArg(0).Size)
		}
		if err := value.Store(ctx.Arena, p, v); err != nil {
			return value.TypedValue{}, err
		}
		return value.Unit, nil
	}
	r.RegisterFunc("read_via_copy", UnitPointer, FamilyPointer, 1, 1, load)
	r.RegisterFunc("volatile_load", UnitPointer, FamilyPointer, 1, 1, load)
	r.RegisterFunc("write_via_move", UnitPointer, FamilyPointer, 2, 1, store)
	r.RegisterFunc("volatile_store", UnitPointer, FamilyPointer, 2, 1, store)
}

// offset moves a pointer by count elements. The result must stay within
// its allocation or one past its end.
func offset(ctx *Context, inv *Invocation) (value.TypedValue, error) {
	p, err := pointerArg(inv, 0)
	if err != nil {
		return value.TypedValue{}, err
	}
	delta, err := elemDelta(inv.Args[1], inv.TypeArg(0))
	if err != nil {
		return value.TypedValue{}, err
	}
	if delta.Sign() == 0 {
		return value.FromPointer(p), nil
	}

	next := delta.Add(delta, big.NewInt(p.Offset))
	if !next.IsInt64() {
		return value.TypedValue{}, errors.Overflow(errors.PhasePointer, next, "isize")
	}
	q := memory.Pointer{Alloc: p.Alloc, Offset: next.Int64()}
	if err := ctx.Arena.CheckInBounds(q); err != nil {
		return value.TypedValue{}, err
	}
	return value.FromPointer(q), nil
}

// arithOffset moves a pointer by count elements with wrapping arithmetic
// and no bounds check. The result is checked only when dereferenced.
func arithOffset(ctx *Context, inv *Invocation) (value.TypedValue, error) {
	p, err := pointerArg(inv, 0)
	if err != nil {
		return value.TypedValue{}, err
	}
	count, err := inv.Args[1].Big()
	if err != nil {
		return value.TypedValue{}, errors.TypeMismatch(errors.PhasePointer, inv.Args[1].Layout.String(), "count must be an integer")
	}
	// Two's complement wrap into the pointer width.
	delta := new(big.Int).Mul(count, new(big.Int).SetUint64(inv.TypeArg(0).Size))
	delta.Add(delta, big.NewInt(p.Offset))
	wrapped := value.FromBig(layout.Isize(), delta)
	off, _ := wrapped.Int64()
	return value.FromPointer(memory.Pointer{Alloc: p.Alloc, Offset: off}), nil
}

// copyElems copies count elements from src to dst. Overlapping ranges
// behave as if staged through a temporary buffer.
func copyElems(ctx *Context, inv *Invocation) (value.TypedValue, error) {
	src, err := pointerArg(inv, 0)
	if err != nil {
		return value.TypedValue{}, err
	}
	dst, err := pointerArg(inv, 1)
	if err != nil {
		return value.TypedValue{}, err
	}
	n, err := byteCount(inv.Args[2], inv.TypeArg(0))
	if err != nil {
		return value.TypedValue{}, err
	}
	if n == 0 {
		return value.Unit, nil
	}
	if err := ctx.ChargeBytes(n); err != nil {
		return value.TypedValue{}, err
	}
	if err := ctx.Arena.Copy(src, dst, n); err != nil {
		return value.TypedValue{}, err
	}
	return value.Unit, nil
}

func writeBytes(ctx *Context, inv *Invocation) (value.TypedValue, error) {
	dst, err := pointerArg(inv, 0)
	if err != nil {
		return value.TypedValue{}, err
	}
	b := inv.Args[1]
	if b.Layout.Kind != layout.KindInt || b.Layout.Size != 1 {
		return value.TypedValue{}, errors.TypeMismatch(errors.PhasePointer, b.Layout.String(), "fill byte must be u8")
	}
	n, err := byteCount(inv.Args[2], inv.TypeArg(0))
	if err != nil {
		return value.TypedValue{}, err
	}
	if n == 0 {
		return value.Unit, nil
	}
	if err := ctx.ChargeBytes(n); err != nil {
		return value.TypedValue{}, err
	}
	if err := ctx.Arena.Fill(dst, b.Bytes[0], n); err != nil {
		return value.TypedValue{}, err
	}
	return value.Unit, nil
}

// offsetFrom returns the distance from b to a in elements. Both pointers
// must lie in the same live allocation and the distance must be a whole
// number of elements.
func offsetFrom(ctx *Context, inv *Invocation) (value.TypedValue, error) {
	a, err := pointerArg(inv, 0)
	if err != nil {
		return value.TypedValue{}, err
	}
	b, err := pointerArg(inv, 1)
	if err != nil {
		return value.TypedValue{}, err
	}
	size := int64(inv.TypeArg(0).Size)
	if size == 0 {
		return value.TypedValue{}, errors.TypeMismatch(errors.PhasePointer, inv.TypeArg(0).String(), "element type must not be zero-sized")
	}
	if a.Alloc != b.Alloc {
		return value.TypedValue{}, errors.InvalidPointer(errors.PhasePointer,
			fmt.Sprintf("%s and %s are in different allocations", a, b))
	}
	for _, p := range []memory.Pointer{a, b} {
		if err := ctx.Arena.CheckInBounds(p); err != nil {
			return value.TypedValue{}, err
		}
	}
	diff := a.Offset - b.Offset
	if diff%size != 0 {
		return value.TypedValue{}, errors.InvalidPointer(errors.PhasePointer,
			fmt.Sprintf("distance %d is not a multiple of %d", diff, size))
	}
	return value.FromInt64(layout.Isize(), diff/size), nil
}

func pointerArg(inv *Invocation, i int) (memory.Pointer, error) {
	p, err := inv.Args[i].Pointer()
	if err != nil {
		return memory.Null, errors.New(errors.PhasePointer, errors.KindArityOrTypeMismatch).
			TypeName(inv.Args[i].Layout.String()).
			Detail("argument %d must be a pointer", i).
			Build()
	}
	return p, nil
}

// elemDelta returns count*size(elem) in bytes.
func elemDelta(count value.TypedValue, elem layout.Layout) (*big.Int, error) {
	n, err := count.Big()
	if err != nil {
		return nil, errors.TypeMismatch(errors.PhasePointer, count.Layout.String(), "count must be an integer")
	}
	return n.Mul(n, new(big.Int).SetUint64(elem.Size)), nil
}

// byteCount returns count*size(elem) for a non-negative count.
func byteCount(count value.TypedValue, elem layout.Layout) (uint64, error) {
	n, err := elemDelta(count, elem)
	if err != nil {
		return 0, err
	}
	if n.Sign() < 0 || !n.IsUint64() {
		return 0, errors.Overflow(errors.PhasePointer, n, "usize")
	}
	return n.Uint64(), nil
}
