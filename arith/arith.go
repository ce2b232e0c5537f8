// Package arith implements width- and signedness-aware integer arithmetic
// on arbitrary-precision values.
//
// Every operation takes a Width and operands already decoded to their
// mathematical values; results are again mathematical values, reduced to
// the width's representable range where the operation wraps.
package arith

import (
	"fmt"
	"math/big"
	"math/bits"

	"github.com/wippyai/consteval/errors"
	"github.com/wippyai/consteval/layout"
)

// Width is an integer width and signedness.
type Width struct {
	Bits   int
	Signed bool
}

// WidthOf extracts the width of an integer layout.
func WidthOf(l layout.Layout) (Width, error) {
	if l.Kind != layout.KindInt {
		return Width{}, errors.TypeMismatch(errors.PhaseArith, l.String(), "expected an integer")
	}
	switch l.Size {
	case 1, 2, 4, 8, 16:
		return Width{Bits: l.Bits(), Signed: l.Signed}, nil
	}
	return Width{}, errors.TypeMismatch(errors.PhaseArith, l.String(), "unsupported integer width")
}

func (w Width) String() string {
	if w.Signed {
		return fmt.Sprintf("i%d", w.Bits)
	}
	return fmt.Sprintf("u%d", w.Bits)
}

func (w Width) modulus() *big.Int {
	return new(big.Int).Lsh(big.NewInt(1), uint(w.Bits))
}

// Min returns the smallest representable value.
func (w Width) Min() *big.Int {
	if !w.Signed {
		return new(big.Int)
	}
	return new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), uint(w.Bits-1)))
}

// Max returns the largest representable value.
func (w Width) Max() *big.Int {
	shift := w.Bits
	if w.Signed {
		shift--
	}
	m := new(big.Int).Lsh(big.NewInt(1), uint(shift))
	return m.Sub(m, big.NewInt(1))
}

// InRange reports whether x is representable.
func (w Width) InRange(x *big.Int) bool {
	return x.Cmp(w.Min()) >= 0 && x.Cmp(w.Max()) <= 0
}

// Wrap reduces x modulo 2^Bits into the representable range.
func (w Width) Wrap(x *big.Int) *big.Int {
	u := w.unsigned(x)
	if w.Signed && u.Bit(w.Bits-1) == 1 {
		u.Sub(u, w.modulus())
	}
	return u
}

// unsigned returns the two's-complement bit pattern of x as a non-negative
// value below 2^Bits.
func (w Width) unsigned(x *big.Int) *big.Int {
	return new(big.Int).Mod(x, w.modulus())
}

func (w Width) clamp(x *big.Int) *big.Int {
	if lo := w.Min(); x.Cmp(lo) < 0 {
		return lo
	}
	if hi := w.Max(); x.Cmp(hi) > 0 {
		return hi
	}
	return new(big.Int).Set(x)
}

// WrappingAdd returns (a + b) mod 2^Bits.
func WrappingAdd(w Width, a, b *big.Int) *big.Int {
	return w.Wrap(new(big.Int).Add(a, b))
}

// WrappingSub returns (a - b) mod 2^Bits.
func WrappingSub(w Width, a, b *big.Int) *big.Int {
	return w.Wrap(new(big.Int).Sub(a, b))
}

// WrappingMul returns (a * b) mod 2^Bits.
func WrappingMul(w Width, a, b *big.Int) *big.Int {
	return w.Wrap(new(big.Int).Mul(a, b))
}

// SaturatingAdd returns a + b clamped to [Min, Max].
func SaturatingAdd(w Width, a, b *big.Int) *big.Int {
	return w.clamp(new(big.Int).Add(a, b))
}

// SaturatingSub returns a - b clamped to [Min, Max].
func SaturatingSub(w Width, a, b *big.Int) *big.Int {
	return w.clamp(new(big.Int).Sub(a, b))
}

// AddWithOverflow returns the wrapped sum and whether the true sum was
// outside the representable range.
func AddWithOverflow(w Width, a, b *big.Int) (*big.Int, bool) {
	sum := new(big.Int).Add(a, b)
	return w.Wrap(sum), !w.InRange(sum)
}

// SubWithOverflow returns the wrapped difference and whether it overflowed.
func SubWithOverflow(w Width, a, b *big.Int) (*big.Int, bool) {
	diff := new(big.Int).Sub(a, b)
	return w.Wrap(diff), !w.InRange(diff)
}

// MulWithOverflow returns the wrapped product and whether it overflowed.
func MulWithOverflow(w Width, a, b *big.Int) (*big.Int, bool) {
	prod := new(big.Int).Mul(a, b)
	return w.Wrap(prod), !w.InRange(prod)
}

// Ctpop counts the set bits of x's Bits-wide encoding.
func Ctpop(w Width, x *big.Int) int {
	n := 0
	for _, word := range w.unsigned(x).Bits() {
		n += bits.OnesCount(uint(word))
	}
	return n
}

// Cttz returns the index of the lowest set bit of x's encoding. Zero yields
// Bits.
func Cttz(w Width, x *big.Int) int {
	u := w.unsigned(x)
	if u.Sign() == 0 {
		return w.Bits
	}
	return int(u.TrailingZeroBits())
}

// Ctlz returns the number of leading zero bits of x's encoding. Zero yields
// Bits.
func Ctlz(w Width, x *big.Int) int {
	return w.Bits - w.unsigned(x).BitLen()
}

// Bswap reverses the byte order of x's encoding.
func Bswap(w Width, x *big.Int) *big.Int {
	n := w.Bits / 8
	buf := make([]byte, n)
	w.unsigned(x).FillBytes(buf)
	for i, j := 0, n-1; i < j; i, j = i+1, j-1 {
		buf[i], buf[j] = buf[j], buf[i]
	}
	return w.Wrap(new(big.Int).SetBytes(buf))
}

// Bitreverse reverses the bit order of x's encoding.
func Bitreverse(w Width, x *big.Int) *big.Int {
	u := w.unsigned(x)
	out := new(big.Int)
	for i := 0; i < w.Bits; i++ {
		if u.Bit(i) == 1 {
			out.SetBit(out, w.Bits-1-i, 1)
		}
	}
	return w.Wrap(out)
}

// RotateLeft rotates x's encoding left by n bits, n taken modulo Bits.
func RotateLeft(w Width, x *big.Int, n uint) *big.Int {
	n %= uint(w.Bits)
	u := w.unsigned(x)
	hi := new(big.Int).Lsh(u, n)
	lo := new(big.Int).Rsh(u, uint(w.Bits)-n)
	return w.Wrap(hi.Or(hi, lo))
}

// RotateRight rotates x's encoding right by n bits, n taken modulo Bits.
func RotateRight(w Width, x *big.Int, n uint) *big.Int {
	n %= uint(w.Bits)
	return RotateLeft(w, x, uint(w.Bits)-n)
}

// ExactDiv divides a by b. A zero divisor, a nonzero remainder or a
// quotient outside the range is an error.
func ExactDiv(w Width, a, b *big.Int) (*big.Int, error) {
	if b.Sign() == 0 {
		return nil, errors.New(errors.PhaseArith, errors.KindOverflow).
			TypeName(w.String()).
			Detail("division by zero").
			Build()
	}
	q, r := new(big.Int).QuoRem(a, b, new(big.Int))
	if r.Sign() != 0 {
		return nil, errors.New(errors.PhaseArith, errors.KindOverflow).
			TypeName(w.String()).
			Detail("%s is not divisible by %s", a, b).
			Build()
	}
	if !w.InRange(q) {
		return nil, errors.Overflow(errors.PhaseArith, q, w.String())
	}
	return q, nil
}

// Checked returns x, or an overflow error when x is not representable.
// It backs the unchecked_* family, where overflow is undefined behavior.
func Checked(w Width, x *big.Int) (*big.Int, error) {
	if !w.InRange(x) {
		return nil, errors.Overflow(errors.PhaseArith, x, w.String())
	}
	return x, nil
}

// Shl shifts x left by n bits, wrapping. n must be below Bits.
func Shl(w Width, x *big.Int, n uint64) (*big.Int, error) {
	if n >= uint64(w.Bits) {
		return nil, errors.Overflow(errors.PhaseArith, n, w.String())
	}
	return w.Wrap(new(big.Int).Lsh(x, uint(n))), nil
}

// Shr shifts x right by n bits: arithmetic for signed widths, logical for
// unsigned ones. n must be below Bits.
func Shr(w Width, x *big.Int, n uint64) (*big.Int, error) {
	if n >= uint64(w.Bits) {
		return nil, errors.Overflow(errors.PhaseArith, n, w.String())
	}
	return w.Wrap(new(big.Int).Rsh(x, uint(n))), nil
}
