// Package script runs constant-evaluation scenarios written in YAML.
//
// A scenario is a straight-line program standing in for the body of a
// constant: each step calls an intrinsic, allocates a literal, loads or
// stores through a pointer, or folds a small expression, and may bind its
// value with let. Functions declared by the scenario can be passed to
// intrinsics as callbacks, so const_eval_select and other reentrant paths
// are exercised end to end.
//
//	name: wrapping_add
//	description: 10 + 250 wraps to 4 in u8
//	steps:
//	  - let: r
//	    call: wrapping_add
//	    args: [10u8, 250]
//	expect:
//	  value: 4
//
// Integer literals may carry a Rust-style suffix (250u8, -3isize). An
// unsuffixed literal takes its type from a typed sibling operand, then
// from the call's first type argument, and defaults to i32.
//
// Types are spelled u8 through u128, i8 through i128, usize, isize, bool,
// ptr, tuples such as (u16, u16) and arrays such as [i32; 5]. A scenario
// may declare named types with a layout and a drop flag, which answer
// needs_drop.
package script
