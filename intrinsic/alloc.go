package intrinsic

import (
	"go.uber.org/zap"

	"github.com/wippyai/consteval/errors"
	"github.com/wippyai/consteval/memory"
	"github.com/wippyai/consteval/value"
)

// Allocator entry points, named after the symbols the global allocator
// shims resolve to.
const (
	AllocName       = "__rust_alloc"
	AllocZeroedName = "__rust_alloc_zeroed"
	DeallocName     = "__rust_dealloc"
	ReallocName     = "__rust_realloc"
)

func registerAlloc(r *Registry) {
	alloc := func(zeroed bool) func(*Context, *Invocation) (value.TypedValue, error) {
		return func(ctx *Context, inv *Invocation) (value.TypedValue, error) {
			size, align, err := sizeAlign(inv.Args[0], inv.Args[1])
			if err != nil {
				return value.TypedValue{}, err
			}
			if zeroed {
				if err := ctx.ChargeBytes(size); err != nil {
					return value.TypedValue{}, err
				}
			}

			var p memory.Pointer
			if zeroed {
				p, err = ctx.Arena.AllocateZeroed(size, align)
			} else {
				p, err = ctx.Arena.Allocate(size, align)
			}
			if err != nil {
				return value.TypedValue{}, err
			}
			return value.FromPointer(p), nil
		}
	}
	r.RegisterFunc(AllocName, UnitAlloc, FamilyInt, 2, 0, alloc(false))
	r.RegisterFunc(AllocZeroedName, UnitAlloc, FamilyInt, 2, 0, alloc(true))

	r.RegisterFunc(DeallocName, UnitAlloc, FamilyPointer, 3, 0, func(ctx *Context, inv *Invocation) (value.TypedValue, error) {
		p, err := allocPointer(inv.Args[0])
		if err != nil {
			return value.TypedValue{}, err
		}
		size, align, err := sizeAlign(inv.Args[1], inv.Args[2])
		if err != nil {
			return value.TypedValue{}, err
		}
		if err := ctx.Arena.Deallocate(p, size, align); err != nil {
			return value.TypedValue{}, err
		}
		return value.Unit, nil
	})

	r.RegisterFunc(ReallocName, UnitAlloc, FamilyPointer, 4, 0, realloc)
}

// realloc moves an allocation to a fresh region of newSize bytes. It either
// fully succeeds or leaves the old region live and unchanged.
func realloc(ctx *Context, inv *Invocation) (value.TypedValue, error) {
	p, err := allocPointer(inv.Args[0])
	if err != nil {
		return value.TypedValue{}, err
	}
	oldSize, align, err := sizeAlign(inv.Args[1], inv.Args[2])
	if err != nil {
		return value.TypedValue{}, err
	}
	newSize, err := inv.Args[3].Uint64()
	if err != nil {
		return value.TypedValue{}, errors.Wrap(errors.PhaseAlloc, errors.KindArityOrTypeMismatch, err, "new size must be usize")
	}

	if err := ctx.Arena.CheckDeallocate(p, oldSize, align); err != nil {
		return value.TypedValue{}, err
	}
	moved := min(oldSize, newSize)
	if err := ctx.ChargeBytes(moved); err != nil {
		return value.TypedValue{}, err
	}

	q, err := ctx.Arena.Allocate(newSize, align)
	if err != nil {
		return value.TypedValue{}, err
	}
	if err := ctx.Arena.Copy(p, q, moved); err != nil {
		return value.TypedValue{}, err
	}
	if err := ctx.Arena.Deallocate(p, oldSize, align); err != nil {
		return value.TypedValue{}, err
	}

	ctx.log.Debug("realloc",
		zap.Stringer("from", p),
		zap.Stringer("to", q))
	return value.FromPointer(q), nil
}

func allocPointer(v value.TypedValue) (memory.Pointer, error) {
	p, err := v.Pointer()
	if err != nil {
		return memory.Null, errors.TypeMismatch(errors.PhaseAlloc, v.Layout.String(), "expected a pointer")
	}
	return p, nil
}

func sizeAlign(s, a value.TypedValue) (uint64, uint64, error) {
	size, err := s.Uint64()
	if err != nil {
		return 0, 0, errors.Wrap(errors.PhaseAlloc, errors.KindArityOrTypeMismatch, err, "size must be usize")
	}
	align, err := a.Uint64()
	if err != nil {
		return 0, 0, errors.Wrap(errors.PhaseAlloc, errors.KindArityOrTypeMismatch, err, "align must be usize")
	}
	return size, align, nil
}
