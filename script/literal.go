package script

import (
	"math/big"
	"strconv"
	"strings"

	"github.com/wippyai/consteval/arith"
	"github.com/wippyai/consteval/errors"
	"github.com/wippyai/consteval/layout"
	"github.com/wippyai/consteval/value"
)

// frame holds the bindings of one function activation or the scenario
// body.
type frame struct {
	vars map[string]value.TypedValue
	last string
}

func newFrame() *frame {
	return &frame{vars: make(map[string]value.TypedValue)}
}

func (f *frame) bind(name string, v value.TypedValue) {
	f.vars[name] = v
	f.last = name
}

func invalid(format string, args ...any) error {
	return errors.New(errors.PhaseScript, errors.KindInvalidInput).
		Detail(format, args...).
		Build()
}

// lookup resolves "$name" or "$name.1.0", projecting aggregate members.
func (f *frame) lookup(ref string) (value.TypedValue, error) {
	parts := strings.Split(strings.TrimPrefix(ref, "$"), ".")
	v, ok := f.vars[parts[0]]
	if !ok {
		return value.TypedValue{}, invalid("unbound name %q", parts[0])
	}
	for _, p := range parts[1:] {
		i, err := strconv.Atoi(p)
		if err != nil {
			return value.TypedValue{}, invalid("bad field %q in %q", p, ref)
		}
		if v, err = v.Field(i); err != nil {
			return value.TypedValue{}, err
		}
	}
	return v, nil
}

func isRef(a any) bool {
	s, ok := a.(string)
	return ok && strings.HasPrefix(s, "$")
}

// splitSuffix separates "250u8" into ("250", "u8").
func splitSuffix(s string) (string, string) {
	if i := strings.IndexAny(s, "ui"); i > 0 {
		return s[:i], s[i:]
	}
	return s, ""
}

func parseInt(text string) (*big.Int, bool) {
	x, ok := new(big.Int).SetString(strings.ReplaceAll(text, "_", ""), 0)
	return x, ok
}

// natural evaluates an operand that carries its own type: a reference, a
// suffixed integer or a bool. It reports false for operands that need a
// type from context.
func (f *frame) natural(a any) (value.TypedValue, bool, error) {
	switch v := a.(type) {
	case bool:
		return value.FromBool(v), true, nil
	case string:
		if isRef(v) {
			out, err := f.lookup(v)
			return out, err == nil, err
		}
		num, suffix := splitSuffix(v)
		if suffix == "" {
			return value.TypedValue{}, false, nil
		}
		mk, ok := primitives[suffix]
		if !ok || suffix == "bool" || suffix == "ptr" {
			return value.TypedValue{}, false, invalid("bad integer suffix in %q", v)
		}
		out, err := f.encode(mk(), num)
		return out, err == nil, err
	}
	return value.TypedValue{}, false, nil
}

// encode builds a value of layout l from a literal.
func (f *frame) encode(l layout.Layout, a any) (value.TypedValue, error) {
	if isRef(a) {
		v, err := f.lookup(a.(string))
		if err != nil {
			return value.TypedValue{}, err
		}
		if v.Layout.Size != l.Size {
			return value.TypedValue{}, errors.LayoutMismatch(v.Layout.Size, l.Size)
		}
		return v, nil
	}

	switch l.Kind {
	case layout.KindInt:
		return encodeInt(l, a)

	case layout.KindBool:
		b, ok := a.(bool)
		if !ok {
			return value.TypedValue{}, invalid("expected a bool literal, got %v", a)
		}
		return value.FromBool(b), nil

	case layout.KindAggregate:
		items, ok := a.([]any)
		if !ok {
			return value.TypedValue{}, invalid("expected a list for %s, got %v", l, a)
		}
		if len(items) != l.NumFields() {
			return value.TypedValue{}, invalid("%s needs %d elements, got %d", l, l.NumFields(), len(items))
		}
		members := make([]value.TypedValue, len(items))
		for i, item := range items {
			fl, _ := l.FieldAt(i)
			m, err := f.encode(fl.Layout, item)
			if err != nil {
				return value.TypedValue{}, err
			}
			members[i] = m
		}
		if l.Elem != nil {
			return value.Array(*l.Elem, members...)
		}
		return value.Tuple(members...), nil
	}
	return value.TypedValue{}, invalid("no literal syntax for %s", l)
}

func encodeInt(l layout.Layout, a any) (value.TypedValue, error) {
	var x *big.Int
	switch v := a.(type) {
	case int:
		x = big.NewInt(int64(v))
	case uint64:
		x = new(big.Int).SetUint64(v)
	case string:
		num, suffix := splitSuffix(v)
		if suffix != "" {
			mk, ok := primitives[suffix]
			if !ok || !mk().SameScalar(l) {
				return value.TypedValue{}, invalid("literal %q used as %s", v, l)
			}
		}
		var ok bool
		if x, ok = parseInt(num); !ok {
			return value.TypedValue{}, invalid("bad integer literal %q", v)
		}
	default:
		return value.TypedValue{}, invalid("expected an integer literal, got %v", a)
	}

	w, err := arith.WidthOf(l)
	if err != nil {
		return value.TypedValue{}, err
	}
	if !w.InRange(x) {
		return value.TypedValue{}, errors.Overflow(errors.PhaseScript, x, l.String())
	}
	return value.FromBig(l, x), nil
}

// untyped evaluates a literal with no type context: integers default to
// i32 and lists become tuples.
func (f *frame) untyped(a any) (value.TypedValue, error) {
	if v, ok, err := f.natural(a); ok || err != nil {
		return v, err
	}
	if items, ok := a.([]any); ok {
		members := make([]value.TypedValue, len(items))
		for i, item := range items {
			m, err := f.untyped(item)
			if err != nil {
				return value.TypedValue{}, err
			}
			members[i] = m
		}
		return value.Tuple(members...), nil
	}
	if a == nil {
		return value.TypedValue{}, invalid("missing operand")
	}
	return encodeInt(layout.I32(), a)
}

func (f *frame) boolean(a any) (bool, error) {
	v, err := f.untyped(a)
	if err != nil {
		return false, err
	}
	return v.Bool()
}

// operands evaluates a list of operands. Operands without their own type
// take it from a typed sibling of the same kind, then from fallback, and
// finally default as in untyped.
func (f *frame) operands(args []any, fallback *layout.Layout) ([]value.TypedValue, error) {
	out := make([]value.TypedValue, len(args))
	done := make([]bool, len(args))
	var intHint, aggHint *layout.Layout

	for i, a := range args {
		v, ok, err := f.natural(a)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		out[i], done[i] = v, true
		l := v.Layout
		switch {
		case l.Kind == layout.KindInt && intHint == nil:
			intHint = &l
		case l.Kind == layout.KindAggregate && aggHint == nil:
			aggHint = &l
		}
	}
	if fallback != nil {
		switch {
		case fallback.Kind == layout.KindInt && intHint == nil:
			intHint = fallback
		case fallback.Kind == layout.KindAggregate && aggHint == nil:
			aggHint = fallback
		}
	}

	for i, a := range args {
		if done[i] {
			continue
		}
		hint := intHint
		if _, ok := a.([]any); ok {
			hint = aggHint
		}

		var err error
		if hint != nil {
			out[i], err = f.encode(*hint, a)
		} else {
			out[i], err = f.untyped(a)
		}
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}
