package intrinsic

import (
	"testing"

	"github.com/wippyai/consteval/layout"
	"github.com/wippyai/consteval/memory"
	"github.com/wippyai/consteval/value"
)

var testDispatcher = NewDispatcher()

func newTestContext() *Context {
	return NewContext(DefaultConfig())
}

func dispatch(t *testing.T, ctx *Context, c Call) value.TypedValue {
	t.Helper()
	v, err := testDispatcher.Dispatch(ctx, c)
	if err != nil {
		t.Fatalf("%s: %v", c.Name, err)
	}
	return v
}

func types(ls ...layout.Layout) []layout.Type {
	out := make([]layout.Type, len(ls))
	for i, l := range ls {
		out[i] = layout.Of(l)
	}
	return out
}

func args(vs ...value.TypedValue) []value.TypedValue {
	return vs
}

func intOf(t *testing.T, v value.TypedValue) int64 {
	t.Helper()
	n, err := v.Int64()
	if err != nil {
		t.Fatalf("decode %s: %v", v.Layout, err)
	}
	return n
}

func boolOf(t *testing.T, v value.TypedValue) bool {
	t.Helper()
	b, err := v.Bool()
	if err != nil {
		t.Fatalf("decode %s: %v", v.Layout, err)
	}
	return b
}

func field(t *testing.T, v value.TypedValue, i int) value.TypedValue {
	t.Helper()
	f, err := v.Field(i)
	if err != nil {
		t.Fatalf("field %d: %v", i, err)
	}
	return f
}

// cell places v in its own allocation and returns a pointer value to it.
func cell(t *testing.T, ctx *Context, v value.TypedValue) value.TypedValue {
	t.Helper()
	p, err := value.Materialize(ctx.Arena, v)
	if err != nil {
		t.Fatalf("materialize: %v", err)
	}
	return value.FromPointer(p)
}

func ptrOf(t *testing.T, v value.TypedValue) memory.Pointer {
	t.Helper()
	p, err := v.Pointer()
	if err != nil {
		t.Fatalf("decode pointer: %v", err)
	}
	return p
}

func i32(x int64) value.TypedValue   { return value.FromInt64(layout.I32(), x) }
func u8(x int64) value.TypedValue    { return value.FromInt64(layout.U8(), x) }
func usize(x int64) value.TypedValue { return value.FromInt64(layout.Usize(), x) }
func isize(x int64) value.TypedValue { return value.FromInt64(layout.Isize(), x) }
