package layout

import (
	"fmt"
	"strings"

	"github.com/wippyai/consteval/errors"
)

// PointerSize is the width of pointers and usize/isize on the modeled target.
const PointerSize = 8

// Kind identifies how the bytes of a value are interpreted.
type Kind uint8

const (
	KindAggregate Kind = iota
	KindInt
	KindBool
	KindPointer
	KindFloat
)

func (k Kind) String() string {
	switch k {
	case KindAggregate:
		return "aggregate"
	case KindInt:
		return "int"
	case KindBool:
		return "bool"
	case KindPointer:
		return "pointer"
	case KindFloat:
		return "float"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Field is a positioned member of an aggregate.
type Field struct {
	Layout Layout
	Offset uint64
}

// Layout describes the size, alignment and scalar interpretation of a type.
// Aggregates are flat byte sequences; Fields (or Elem/Count for arrays)
// give the positions of their members.
type Layout struct {
	Elem   *Layout
	Fields []Field
	Size   uint64
	Align  uint64
	Count  uint64
	Kind   Kind
	Signed bool
}

// Int returns the layout of a bits-wide integer.
func Int(bits int, signed bool) Layout {
	size := uint64(bits / 8)
	return Layout{Size: size, Align: size, Kind: KindInt, Signed: signed}
}

func U8() Layout    { return Int(8, false) }
func U16() Layout   { return Int(16, false) }
func U32() Layout   { return Int(32, false) }
func U64() Layout   { return Int(64, false) }
func U128() Layout  { return Int(128, false) }
func I8() Layout    { return Int(8, true) }
func I16() Layout   { return Int(16, true) }
func I32() Layout   { return Int(32, true) }
func I64() Layout   { return Int(64, true) }
func I128() Layout  { return Int(128, true) }
func Usize() Layout { return Int(PointerSize*8, false) }
func Isize() Layout { return Int(PointerSize*8, true) }

// Bool returns the one-byte boolean layout.
func Bool() Layout {
	return Layout{Size: 1, Align: 1, Kind: KindBool}
}

// Pointer returns the layout of a thin raw pointer.
func Pointer() Layout {
	return Layout{Size: PointerSize, Align: PointerSize, Kind: KindPointer}
}

// Float returns the layout of a bits-wide IEEE float.
func Float(bits int) Layout {
	size := uint64(bits / 8)
	return Layout{Size: size, Align: size, Kind: KindFloat}
}

// Unit returns the zero-sized layout.
func Unit() Layout {
	return Layout{Size: 0, Align: 1, Kind: KindAggregate}
}

// Tuple lays out members in order, each at its natural alignment, and rounds
// the total size up to the largest member alignment.
func Tuple(members ...Layout) Layout {
	if len(members) == 0 {
		return Unit()
	}

	fields := make([]Field, 0, len(members))
	maxAlign := uint64(1)
	offset := uint64(0)

	for _, m := range members {
		offset = AlignTo(offset, m.Align)
		fields = append(fields, Field{Layout: m, Offset: offset})
		if m.Align > maxAlign {
			maxAlign = m.Align
		}
		offset += m.Size
	}

	return Layout{
		Fields: fields,
		Size:   AlignTo(offset, maxAlign),
		Align:  maxAlign,
		Kind:   KindAggregate,
	}
}

// Array returns the layout of n consecutive elems.
func Array(elem Layout, n uint64) Layout {
	e := elem
	return Layout{
		Elem:  &e,
		Size:  elem.Size * n,
		Align: elem.Align,
		Count: n,
		Kind:  KindAggregate,
	}
}

// IsScalar reports whether the layout is an integer, bool, pointer or float.
func (l Layout) IsScalar() bool {
	return l.Kind != KindAggregate
}

// IsInt reports whether the layout is an integer.
func (l Layout) IsInt() bool {
	return l.Kind == KindInt
}

// Bits returns the width of a scalar in bits.
func (l Layout) Bits() int {
	return int(l.Size * 8)
}

// NumFields returns the number of positional members of an aggregate.
func (l Layout) NumFields() int {
	if l.Elem != nil {
		return int(l.Count)
	}
	return len(l.Fields)
}

// FieldAt returns the i-th member of an aggregate.
func (l Layout) FieldAt(i int) (Field, bool) {
	if i < 0 || i >= l.NumFields() {
		return Field{}, false
	}
	if l.Elem != nil {
		return Field{Layout: *l.Elem, Offset: uint64(i) * l.Elem.Size}, true
	}
	return l.Fields[i], true
}

// SameScalar reports whether two layouts are the same scalar type.
func (l Layout) SameScalar(o Layout) bool {
	return l.IsScalar() && l.Kind == o.Kind && l.Size == o.Size && l.Signed == o.Signed
}

// Validate checks the alignment invariant and, for integers, the width.
func (l Layout) Validate() error {
	if !IsPowerOfTwo(l.Align) {
		return errors.InvalidAlignment(errors.PhaseLayout, l.Align)
	}
	if l.Kind == KindInt {
		switch l.Size {
		case 1, 2, 4, 8, 16:
		default:
			return errors.TypeMismatch(errors.PhaseLayout, l.String(), "integer width must be 8, 16, 32, 64 or 128 bits")
		}
	}
	return nil
}

// String renders the layout the way a type would be spelled in source.
func (l Layout) String() string {
	switch l.Kind {
	case KindInt:
		if l.Signed {
			return fmt.Sprintf("i%d", l.Bits())
		}
		return fmt.Sprintf("u%d", l.Bits())
	case KindBool:
		return "bool"
	case KindPointer:
		return "ptr"
	case KindFloat:
		return fmt.Sprintf("f%d", l.Bits())
	}

	if l.Elem != nil {
		return fmt.Sprintf("[%s; %d]", l.Elem.String(), l.Count)
	}
	if len(l.Fields) == 0 {
		if l.Size == 0 {
			return "()"
		}
		return fmt.Sprintf("bytes<%d>", l.Size)
	}
	parts := make([]string, len(l.Fields))
	for i, f := range l.Fields {
		parts[i] = f.Layout.String()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// AlignTo rounds offset up to the next multiple of align.
func AlignTo(offset, align uint64) uint64 {
	if align <= 1 {
		return offset
	}
	return (offset + align - 1) &^ (align - 1)
}

// IsPowerOfTwo reports whether n is a nonzero power of two.
func IsPowerOfTwo(n uint64) bool {
	return n != 0 && n&(n-1) == 0
}
