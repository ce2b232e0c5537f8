package value

import (
	"errors"
	"math/big"
	"testing"

	cerrors "github.com/wippyai/consteval/errors"
	"github.com/wippyai/consteval/layout"
	"github.com/wippyai/consteval/memory"
)

func TestIntegerEncoding(t *testing.T) {
	tests := []struct {
		name  string
		l     layout.Layout
		in    int64
		bytes []byte
		back  int64
	}{
		{"u8", layout.U8(), 250, []byte{250}, 250},
		{"i8_negative", layout.I8(), -1, []byte{0xff}, -1},
		{"u8_wraps", layout.U8(), 260, []byte{4}, 4},
		{"u8_from_negative", layout.U8(), -1, []byte{0xff}, 255},
		{"i16", layout.I16(), 0x0102, []byte{0x02, 0x01}, 0x0102},
		{"i32_min", layout.I32(), -2147483648, []byte{0, 0, 0, 0x80}, -2147483648},
		{"i64_neg29", layout.I64(), -29, []byte{0xe3, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}, -29},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := FromInt64(tt.l, tt.in)
			if string(v.Bytes) != string(tt.bytes) {
				t.Errorf("bytes = %x, want %x", v.Bytes, tt.bytes)
			}
			x, err := v.Big()
			if err != nil {
				t.Fatalf("Big: %v", err)
			}
			if x.Int64() != tt.back {
				t.Errorf("decoded %s, want %d", x, tt.back)
			}
		})
	}
}

func TestInt128(t *testing.T) {
	max := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))
	v := FromBig(layout.I128(), max)
	got, _ := v.Big()
	if got.Cmp(max) != 0 {
		t.Errorf("got %s, want %s", got, max)
	}

	neg := FromInt64(layout.I128(), -5)
	got, _ = neg.Big()
	if got.Int64() != -5 {
		t.Errorf("got %s, want -5", got)
	}
	if neg.Unsigned().BitLen() != 128 {
		t.Error("unsigned view of -5 should use all 128 bits")
	}
}

func TestBigRejectsNonInteger(t *testing.T) {
	if _, err := FromBool(true).Big(); !errors.Is(err, cerrors.ErrArityOrTypeMismatch) {
		t.Errorf("expected type mismatch, got %v", err)
	}
}

func TestUint64AndInt64(t *testing.T) {
	if _, err := FromInt64(layout.Isize(), -1).Uint64(); !errors.Is(err, cerrors.ErrOverflow) {
		t.Errorf("negative size: expected overflow, got %v", err)
	}
	n, err := FromUint64(layout.Usize(), 42).Uint64()
	if err != nil || n != 42 {
		t.Errorf("got %d, %v", n, err)
	}
	wide := FromBig(layout.U128(), new(big.Int).Lsh(big.NewInt(1), 100))
	if _, err := wide.Int64(); !errors.Is(err, cerrors.ErrOverflow) {
		t.Errorf("expected overflow, got %v", err)
	}
}

func TestBool(t *testing.T) {
	for _, b := range []bool{true, false} {
		got, err := FromBool(b).Bool()
		if err != nil || got != b {
			t.Errorf("round trip %v: got %v, %v", b, got, err)
		}
	}

	bad := TypedValue{Layout: layout.Bool(), Bytes: []byte{2}}
	if _, err := bad.Bool(); !errors.Is(err, cerrors.ErrInvalidData) {
		t.Errorf("expected invalid data, got %v", err)
	}
}

func TestPointer(t *testing.T) {
	p := memory.Pointer{Alloc: 3, Offset: -8}
	v := FromPointer(p)
	if v.Layout.Size != layout.PointerSize {
		t.Errorf("size = %d", v.Layout.Size)
	}
	got, err := v.Pointer()
	if err != nil {
		t.Fatalf("Pointer: %v", err)
	}
	if got != p {
		t.Errorf("got %v, want %v", got, p)
	}

	asInt, _ := Transmute(v, layout.Usize())
	back, _ := Transmute(asInt, layout.Pointer())
	if got, _ := back.Pointer(); got != p {
		t.Errorf("provenance lost across transmute: %v", got)
	}

	raw := FromUint64(layout.Usize(), 16)
	rp, _ := Transmute(raw, layout.Pointer())
	if got, _ := rp.Pointer(); !got.IsNull() || got.Offset != 16 {
		t.Errorf("integer-made pointer should have no provenance, got %v", got)
	}
}

func TestTransmute(t *testing.T) {
	pair := Tuple(FromInt64(layout.I16(), 1), FromInt64(layout.I16(), 1))
	v, err := Transmute(pair, layout.I32())
	if err != nil {
		t.Fatalf("Transmute: %v", err)
	}
	x, _ := v.Big()
	if x.Int64() != 0x00010001 {
		t.Errorf("got 0x%x, want 0x00010001", x)
	}

	neg := FromInt64(layout.I8(), -1)
	u, _ := Transmute(neg, layout.U8())
	x, _ = u.Big()
	if x.Int64() != 255 {
		t.Errorf("i8 -1 as u8 = %s, want 255", x)
	}

	if _, err := Transmute(pair, layout.I64()); !errors.Is(err, cerrors.ErrLayoutMismatch) {
		t.Errorf("expected layout mismatch, got %v", err)
	}
}

func TestTupleAndField(t *testing.T) {
	v := Tuple(FromInt64(layout.U8(), 7), FromInt64(layout.U32(), 9), FromBool(true))
	if v.Layout.Size != 12 {
		t.Fatalf("size = %d, want 12", v.Layout.Size)
	}

	f1, err := v.Field(1)
	if err != nil {
		t.Fatalf("Field: %v", err)
	}
	if x, _ := f1.Big(); x.Int64() != 9 {
		t.Errorf("field 1 = %s, want 9", x)
	}
	f2, _ := v.Field(2)
	if b, _ := f2.Bool(); !b {
		t.Error("field 2 should be true")
	}
	if _, err := v.Field(3); !errors.Is(err, cerrors.ErrOutOfBounds) {
		t.Errorf("expected out of bounds, got %v", err)
	}
}

func TestArray(t *testing.T) {
	elems := []TypedValue{
		FromInt64(layout.I32(), 1),
		FromInt64(layout.I32(), 2),
		FromInt64(layout.I32(), 3),
	}
	arr, err := Array(layout.I32(), elems...)
	if err != nil {
		t.Fatalf("Array: %v", err)
	}
	if arr.Layout.Size != 12 {
		t.Errorf("size = %d", arr.Layout.Size)
	}
	e2, _ := arr.Field(2)
	if x, _ := e2.Big(); x.Int64() != 3 {
		t.Errorf("elem 2 = %s", x)
	}

	if _, err := Array(layout.I32(), FromInt64(layout.I8(), 1)); !errors.Is(err, cerrors.ErrLayoutMismatch) {
		t.Errorf("expected layout mismatch, got %v", err)
	}
}

func TestPointerInsideAggregate(t *testing.T) {
	p := memory.Pointer{Alloc: 2, Offset: 4}
	fat := Tuple(FromPointer(p), FromUint64(layout.Usize(), 5))
	if fat.Prov[0] != 2 {
		t.Fatalf("prov = %v", fat.Prov)
	}
	f0, _ := fat.Field(0)
	if got, _ := f0.Pointer(); got != p {
		t.Errorf("got %v, want %v", got, p)
	}
	f1, _ := fat.Field(1)
	if len(f1.Prov) != 0 {
		t.Error("length field should carry no provenance")
	}
}

func TestLoadStore(t *testing.T) {
	m := memory.NewArena(0)
	cell, err := Materialize(m, FromInt64(layout.I32(), 2))
	if err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	if err := Store(m, cell, FromInt64(layout.I32(), 5)); err != nil {
		t.Fatalf("Store: %v", err)
	}
	v, err := Load(m, cell, layout.I32())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if x, _ := v.Big(); x.Int64() != 5 {
		t.Errorf("got %s, want 5", x)
	}

	slot, _ := m.Allocate(layout.PointerSize, layout.PointerSize)
	if err := Store(m, slot, FromPointer(cell)); err != nil {
		t.Fatalf("Store pointer: %v", err)
	}
	pv, _ := Load(m, slot, layout.Pointer())
	if got, _ := pv.Pointer(); got != cell {
		t.Errorf("loaded pointer %v, want %v", got, cell)
	}

	if _, err := Load(m, cell.Add(2), layout.I32()); !errors.Is(err, cerrors.ErrOutOfBounds) {
		t.Errorf("expected out of bounds, got %v", err)
	}
}

func TestExternalize(t *testing.T) {
	tests := []struct {
		name string
		v    TypedValue
		want int64
	}{
		{"true", FromBool(true), 1},
		{"false", FromBool(false), 0},
		{"u8", FromInt64(layout.U8(), 255), 255},
		{"i64", FromInt64(layout.I64(), -3), -3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x, err := Externalize(tt.v)
			if err != nil {
				t.Fatalf("Externalize: %v", err)
			}
			if x.Int64() != tt.want {
				t.Errorf("got %s, want %d", x, tt.want)
			}
		})
	}

	if _, err := Externalize(FromPointer(memory.Pointer{Alloc: 1})); err == nil {
		t.Error("pointers cannot be externalized")
	}
}

func TestNew(t *testing.T) {
	if _, err := New(layout.I32(), []byte{1, 2}); !errors.Is(err, cerrors.ErrLayoutMismatch) {
		t.Errorf("expected layout mismatch, got %v", err)
	}
	v, err := New(layout.U16(), []byte{1, 1})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if x, _ := v.Big(); x.Int64() != 257 {
		t.Errorf("got %s", x)
	}
}
