package intrinsic

import (
	"github.com/wippyai/consteval/layout"
	"github.com/wippyai/consteval/value"
)

// Callback is a function the intrinsic may call back into, such as the
// compile-time branch of const_eval_select. It runs in the same Context and
// may dispatch further intrinsics.
type Callback func(ctx *Context, args []value.TypedValue) (value.TypedValue, error)

// Call is one intrinsic invocation as the evaluator presents it.
type Call struct {
	Name      string
	TypeArgs  []layout.Type
	Args      []value.TypedValue
	Callbacks []Callback
}

// Invocation is a Call resolved against its descriptor.
type Invocation struct {
	Desc      *Descriptor
	Orderings []Ordering
	Call
}

// TypeArg returns the i-th generic argument's layout.
func (inv *Invocation) TypeArg(i int) layout.Layout {
	return inv.TypeArgs[i].Layout
}
