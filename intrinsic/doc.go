// Package intrinsic evaluates compiler intrinsics during constant
// evaluation.
//
// A Dispatcher maps intrinsic names to descriptors: the unit that
// implements the intrinsic, the operand family it accepts, and how many
// value, type and callback arguments it takes. Atomic intrinsics are
// registered once per operation; their memory-ordering suffixes are parsed
// and validated at lookup time.
//
// Each top-level constant evaluation owns a Context holding its memory
// arena, nesting depth and step budget:
//
//	d := intrinsic.NewDispatcher()
//	ctx := intrinsic.NewContext(intrinsic.DefaultConfig())
//	v, err := d.Dispatch(ctx, intrinsic.Call{
//		Name: "wrapping_add",
//		Args: []value.TypedValue{
//			value.FromUint64(layout.U8(), 250),
//			value.FromUint64(layout.U8(), 10),
//		},
//	})
//
// Callbacks such as the compile-time branch of const_eval_select receive
// the same Context and may dispatch further intrinsics. Nesting is limited
// by Config.MaxDepth and total work by Config.Budget; exceeding either
// aborts the evaluation with a recursion-limit or budget error.
package intrinsic
