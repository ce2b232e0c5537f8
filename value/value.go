package value

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/wippyai/consteval/errors"
	"github.com/wippyai/consteval/layout"
	"github.com/wippyai/consteval/memory"
)

// TypedValue is a byte sequence tagged with its layout. len(Bytes) always
// equals Layout.Size. Prov records which bytes hold pointers and where
// they point, keyed by offset within Bytes.
type TypedValue struct {
	Prov   memory.Provenance
	Bytes  []byte
	Layout layout.Layout
}

// Unit is the zero-sized value returned by intrinsics without a result.
var Unit = TypedValue{Layout: layout.Unit(), Bytes: []byte{}}

// New wraps raw bytes with a layout.
func New(l layout.Layout, b []byte) (TypedValue, error) {
	if uint64(len(b)) != l.Size {
		return TypedValue{}, errors.LayoutMismatch(uint64(len(b)), l.Size)
	}
	return TypedValue{Layout: l, Bytes: b}, nil
}

// Zero returns the all-zero value of a layout.
func Zero(l layout.Layout) TypedValue {
	return TypedValue{Layout: l, Bytes: make([]byte, l.Size)}
}

// FromBig encodes x in the layout's width using two's complement,
// truncating to the low Size*8 bits.
func FromBig(l layout.Layout, x *big.Int) TypedValue {
	n := int(l.Size)
	out := make([]byte, n)

	v := new(big.Int).Set(x)
	if v.Sign() < 0 {
		mod := new(big.Int).Lsh(big.NewInt(1), uint(n*8))
		v.Mod(v, mod)
	}
	be := v.Bytes()
	for i := 0; i < n && i < len(be); i++ {
		out[i] = be[len(be)-1-i]
	}
	return TypedValue{Layout: l, Bytes: out}
}

// FromInt64 encodes x in the layout's width.
func FromInt64(l layout.Layout, x int64) TypedValue {
	return FromBig(l, big.NewInt(x))
}

// FromUint64 encodes x in the layout's width.
func FromUint64(l layout.Layout, x uint64) TypedValue {
	return FromBig(l, new(big.Int).SetUint64(x))
}

// Big decodes an integer value, honoring the layout's signedness.
func (v TypedValue) Big() (*big.Int, error) {
	if v.Layout.Kind != layout.KindInt {
		return nil, errors.TypeMismatch(errors.PhaseCodec, v.Layout.String(), "expected an integer")
	}
	return v.raw(v.Layout.Signed), nil
}

// Unsigned decodes the bytes as an unsigned integer regardless of layout.
func (v TypedValue) Unsigned() *big.Int {
	return v.raw(false)
}

func (v TypedValue) raw(signed bool) *big.Int {
	n := len(v.Bytes)
	be := make([]byte, n)
	for i, b := range v.Bytes {
		be[n-1-i] = b
	}
	x := new(big.Int).SetBytes(be)
	if signed && n > 0 && v.Bytes[n-1]&0x80 != 0 {
		x.Sub(x, new(big.Int).Lsh(big.NewInt(1), uint(n*8)))
	}
	return x
}

// Uint64 decodes a non-negative integer that fits in 64 bits, such as a
// size or count argument.
func (v TypedValue) Uint64() (uint64, error) {
	x, err := v.Big()
	if err != nil {
		return 0, err
	}
	if x.Sign() < 0 || !x.IsUint64() {
		return 0, errors.Overflow(errors.PhaseCodec, x, "u64")
	}
	return x.Uint64(), nil
}

// Int64 decodes an integer that fits in 64 signed bits, such as an offset.
func (v TypedValue) Int64() (int64, error) {
	x, err := v.Big()
	if err != nil {
		return 0, err
	}
	if !x.IsInt64() {
		return 0, errors.Overflow(errors.PhaseCodec, x, "i64")
	}
	return x.Int64(), nil
}

// FromBool encodes b as a single 0 or 1 byte.
func FromBool(b bool) TypedValue {
	out := TypedValue{Layout: layout.Bool(), Bytes: []byte{0}}
	if b {
		out.Bytes[0] = 1
	}
	return out
}

// Bool decodes a boolean. Only the bytes 0 and 1 are valid.
func (v TypedValue) Bool() (bool, error) {
	if v.Layout.Kind != layout.KindBool || len(v.Bytes) != 1 {
		return false, errors.TypeMismatch(errors.PhaseCodec, v.Layout.String(), "expected bool")
	}
	switch v.Bytes[0] {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, errors.InvalidData(errors.PhaseCodec, fmt.Sprintf("invalid bool byte 0x%02x", v.Bytes[0]))
	}
}

// FromPointer encodes p. The bytes hold the offset; the allocation is kept
// as provenance.
func FromPointer(p memory.Pointer) TypedValue {
	out := TypedValue{Layout: layout.Pointer(), Bytes: make([]byte, layout.PointerSize)}
	binary.LittleEndian.PutUint64(out.Bytes, uint64(p.Offset))
	if p.Alloc != 0 {
		out.Prov = memory.Provenance{0: p.Alloc}
	}
	return out
}

// Pointer decodes a pointer value. A pointer whose bytes were produced
// without provenance decodes with Alloc == 0.
func (v TypedValue) Pointer() (memory.Pointer, error) {
	if v.Layout.Kind != layout.KindPointer || len(v.Bytes) != layout.PointerSize {
		return memory.Null, errors.TypeMismatch(errors.PhaseCodec, v.Layout.String(), "expected a pointer")
	}
	return memory.Pointer{
		Alloc:  v.Prov[0],
		Offset: int64(binary.LittleEndian.Uint64(v.Bytes)),
	}, nil
}

// Tuple packs members at the offsets of layout.Tuple(member layouts).
func Tuple(members ...TypedValue) TypedValue {
	ls := make([]layout.Layout, len(members))
	for i, m := range members {
		ls[i] = m.Layout
	}
	l := layout.Tuple(ls...)

	out := Zero(l)
	for i, m := range members {
		out.place(l.Fields[i].Offset, m)
	}
	return out
}

// Array packs elems of one layout back to back.
func Array(elem layout.Layout, elems ...TypedValue) (TypedValue, error) {
	l := layout.Array(elem, uint64(len(elems)))
	out := Zero(l)
	for i, e := range elems {
		if e.Layout.Size != elem.Size {
			return TypedValue{}, errors.LayoutMismatch(e.Layout.Size, elem.Size)
		}
		out.place(uint64(i)*elem.Size, e)
	}
	return out, nil
}

func (v *TypedValue) place(off uint64, m TypedValue) {
	copy(v.Bytes[off:], m.Bytes)
	for p, id := range m.Prov {
		if v.Prov == nil {
			v.Prov = make(memory.Provenance)
		}
		v.Prov[int64(off)+p] = id
	}
}

// Field extracts the i-th positional member of an aggregate.
func (v TypedValue) Field(i int) (TypedValue, error) {
	f, ok := v.Layout.FieldAt(i)
	if !ok {
		return TypedValue{}, errors.New(errors.PhaseCodec, errors.KindOutOfBounds).
			TypeName(v.Layout.String()).
			Detail("field %d out of range (%d fields)", i, v.Layout.NumFields()).
			Value(i).
			Build()
	}
	return v.Slice(f.Offset, f.Layout), nil
}

// Slice reinterprets the bytes at off as a value of layout l. The caller
// guarantees the range lies within v.
func (v TypedValue) Slice(off uint64, l layout.Layout) TypedValue {
	out := TypedValue{Layout: l, Bytes: make([]byte, l.Size)}
	copy(out.Bytes, v.Bytes[off:off+l.Size])
	end := int64(off + l.Size)
	for p, id := range v.Prov {
		if p >= int64(off) && p < end {
			if out.Prov == nil {
				out.Prov = make(memory.Provenance)
			}
			out.Prov[p-int64(off)] = id
		}
	}
	return out
}

// Transmute reinterprets v's bytes under dst. Sizes must match; the bytes
// are never converted.
func Transmute(v TypedValue, dst layout.Layout) (TypedValue, error) {
	if uint64(len(v.Bytes)) != dst.Size {
		return TypedValue{}, errors.LayoutMismatch(uint64(len(v.Bytes)), dst.Size)
	}
	out := TypedValue{Layout: dst, Bytes: make([]byte, len(v.Bytes))}
	copy(out.Bytes, v.Bytes)
	if len(v.Prov) > 0 {
		out.Prov = make(memory.Provenance, len(v.Prov))
		for p, id := range v.Prov {
			out.Prov[p] = id
		}
	}
	return out, nil
}

// Equal reports whether two values have the same bytes.
func (v TypedValue) Equal(o TypedValue) bool {
	if len(v.Bytes) != len(o.Bytes) {
		return false
	}
	for i := range v.Bytes {
		if v.Bytes[i] != o.Bytes[i] {
			return false
		}
	}
	if len(v.Prov) != len(o.Prov) {
		return false
	}
	for p, id := range v.Prov {
		if o.Prov[p] != id {
			return false
		}
	}
	return true
}

func (v TypedValue) String() string {
	switch v.Layout.Kind {
	case layout.KindInt:
		x, _ := v.Big()
		return fmt.Sprintf("%s: %s", x, v.Layout)
	case layout.KindBool:
		b, err := v.Bool()
		if err != nil {
			return fmt.Sprintf("<invalid bool %x>", v.Bytes)
		}
		return fmt.Sprintf("%t", b)
	case layout.KindPointer:
		p, _ := v.Pointer()
		return p.String()
	}
	return fmt.Sprintf("%s %x", v.Layout, v.Bytes)
}
