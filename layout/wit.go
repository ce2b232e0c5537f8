package layout

import (
	"go.bytecodealliance.org/wit"
)

// WIT is a reference Layout Oracle over WebAssembly Interface Types.
// Sizes and alignments follow the canonical ABI; handles are 32-bit.
type WIT struct {
	cache map[*wit.TypeDef]Layout
}

// NewWIT creates an empty WIT oracle.
func NewWIT() *WIT {
	return &WIT{
		cache: make(map[*wit.TypeDef]Layout),
	}
}

// Type resolves t into a type argument whose Ref is t itself.
func (w *WIT) Type(t wit.Type) Type {
	l := w.Layout(t)
	return Type{Ref: t, Name: l.String(), Layout: l}
}

// Layout computes the layout of t.
func (w *WIT) Layout(t wit.Type) Layout {
	switch typ := t.(type) {
	case wit.Bool:
		return Bool()
	case wit.U8:
		return U8()
	case wit.S8:
		return I8()
	case wit.U16:
		return U16()
	case wit.S16:
		return I16()
	case wit.U32, wit.Char:
		return U32()
	case wit.S32:
		return I32()
	case wit.U64:
		return U64()
	case wit.S64:
		return I64()
	case wit.F32:
		return Float(32)
	case wit.F64:
		return Float(64)
	case wit.String:
		return Tuple(U32(), U32()) // [ptr, len]
	case *wit.TypeDef:
		return w.typeDef(typ)
	default:
		return Unit()
	}
}

func (w *WIT) typeDef(t *wit.TypeDef) Layout {
	if cached, ok := w.cache[t]; ok {
		return cached
	}

	var l Layout

	switch kind := t.Kind.(type) {
	case *wit.Record:
		members := make([]Layout, len(kind.Fields))
		for i, f := range kind.Fields {
			members[i] = w.Layout(f.Type)
		}
		l = Tuple(members...)
	case *wit.Tuple:
		members := make([]Layout, len(kind.Types))
		for i, typ := range kind.Types {
			members[i] = w.Layout(typ)
		}
		l = Tuple(members...)
	case *wit.List:
		l = Tuple(U32(), U32())
	case *wit.Variant:
		payloads := make([]wit.Type, 0, len(kind.Cases))
		for _, cs := range kind.Cases {
			payloads = append(payloads, cs.Type)
		}
		l = w.tagged(len(kind.Cases), payloads...)
	case *wit.Option:
		l = w.tagged(2, kind.Type)
	case *wit.Result:
		l = w.tagged(2, kind.OK, kind.Err)
	case *wit.Enum:
		l = Int(int(discriminantSize(len(kind.Cases))*8), false)
	case *wit.Flags:
		l = flags(len(kind.Flags))
	case *wit.Own, *wit.Borrow:
		l = U32()
	case wit.Type:
		l = w.Layout(kind)
	default:
		l = Unit()
	}

	w.cache[t] = l
	return l
}

// tagged lays out a discriminant followed by the largest payload.
func (w *WIT) tagged(numCases int, payloads ...wit.Type) Layout {
	discSize := discriminantSize(numCases)
	maxAlign := discSize
	maxSize := uint64(0)

	for _, p := range payloads {
		if p == nil {
			continue
		}
		pl := w.Layout(p)
		if pl.Align > maxAlign {
			maxAlign = pl.Align
		}
		if pl.Size > maxSize {
			maxSize = pl.Size
		}
	}

	payloadOffset := AlignTo(discSize, maxAlign)
	return Layout{
		Size:  AlignTo(payloadOffset+maxSize, maxAlign),
		Align: maxAlign,
		Kind:  KindAggregate,
	}
}

func flags(n int) Layout {
	switch {
	case n == 0:
		return Unit()
	case n <= 8:
		return U8()
	case n <= 16:
		return U16()
	case n <= 32:
		return U32()
	case n <= 64:
		return U64()
	}
	words := uint64((n + 31) / 32)
	return Layout{Size: words * 4, Align: 4, Kind: KindAggregate}
}

func discriminantSize(numCases int) uint64 {
	switch {
	case numCases <= 1<<8:
		return 1
	case numCases <= 1<<16:
		return 2
	default:
		return 4
	}
}

// NeedsDrop implements DropOracle. Strings, lists and owned handles carry
// drop glue, as does any aggregate containing one. Types not created by
// this oracle never need drop.
func (w *WIT) NeedsDrop(t Type) bool {
	wt, ok := t.Ref.(wit.Type)
	if !ok {
		return false
	}
	return needsDrop(wt)
}

func needsDrop(t wit.Type) bool {
	switch typ := t.(type) {
	case nil:
		return false
	case wit.String:
		return true
	case *wit.TypeDef:
		switch kind := typ.Kind.(type) {
		case *wit.Record:
			for _, f := range kind.Fields {
				if needsDrop(f.Type) {
					return true
				}
			}
		case *wit.Tuple:
			for _, typ := range kind.Types {
				if needsDrop(typ) {
					return true
				}
			}
		case *wit.Variant:
			for _, cs := range kind.Cases {
				if needsDrop(cs.Type) {
					return true
				}
			}
		case *wit.Option:
			return needsDrop(kind.Type)
		case *wit.Result:
			return needsDrop(kind.OK) || needsDrop(kind.Err)
		case *wit.List, *wit.Own, *wit.Resource:
			return true
		case wit.Type:
			return needsDrop(kind)
		}
	}
	return false
}
