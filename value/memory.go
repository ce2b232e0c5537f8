package value

import (
	"math/big"

	"github.com/wippyai/consteval/errors"
	"github.com/wippyai/consteval/layout"
	"github.com/wippyai/consteval/memory"
)

// Load reads a value of layout l at p.
func Load(m *memory.Arena, p memory.Pointer, l layout.Layout) (TypedValue, error) {
	data, prov, err := m.ReadWithProvenance(p, l.Size)
	if err != nil {
		return TypedValue{}, err
	}
	return TypedValue{Layout: l, Bytes: data, Prov: prov}, nil
}

// Store writes v at p, keeping the provenance of any pointers it holds.
func Store(m *memory.Arena, p memory.Pointer, v TypedValue) error {
	return m.WriteWithProvenance(p, v.Bytes, v.Prov)
}

// Materialize places v in a fresh static allocation and returns a pointer
// to it, the way a reference or array literal is evaluated.
func Materialize(m *memory.Arena, v TypedValue) (memory.Pointer, error) {
	return m.AllocateStatic(v.Bytes, v.Prov, v.Layout.Align)
}

// Externalize returns the numeric form of a finalized constant: 1 or 0 for
// booleans and the literal value for integers.
func Externalize(v TypedValue) (*big.Int, error) {
	switch v.Layout.Kind {
	case layout.KindBool:
		b, err := v.Bool()
		if err != nil {
			return nil, err
		}
		if b {
			return big.NewInt(1), nil
		}
		return big.NewInt(0), nil
	case layout.KindInt:
		return v.Big()
	}
	return nil, errors.TypeMismatch(errors.PhaseCodec, v.Layout.String(), "only integer and bool constants can be externalized")
}
