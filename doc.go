// Package consteval evaluates compiler intrinsics at compile time.
//
// Intrinsic calls are evaluated over a simulated memory arena in which
// pointers are (allocation, offset) pairs, never numeric addresses. Every
// value is a byte sequence tagged with its layout, so transmutes and
// copies preserve both the bytes and the provenance of any pointers they
// carry.
//
// # Architecture Overview
//
// The library is organized into several packages with distinct responsibilities:
//
//	consteval/           Root package with the Evaluator facade and Memory/Allocator interfaces
//	├── intrinsic/       Dispatch table, evaluation context and the intrinsic units
//	├── memory/          Allocation arena with provenance tracking
//	├── value/           Typed values and their little-endian codec
//	├── arith/           Fixed-width integer arithmetic
//	├── layout/          Size, alignment and field offsets of types
//	├── errors/          Structured error types for debugging
//	├── script/          YAML scenario runner
//	└── cmd/consteval/   Command line front end for scenarios
//
// # Quick Start
//
// Evaluate a single call:
//
//	ev := consteval.New(intrinsic.DefaultConfig())
//	n, err := ev.Eval(intrinsic.Call{
//	    Name:     "size_of",
//	    TypeArgs: []layout.Type{layout.Of(layout.I32())},
//	})
//	fmt.Println(n) // 4
//
// Calls that must share an arena run inside EvalFunc:
//
//	n, err := ev.EvalFunc(func(ctx *intrinsic.Context, d *intrinsic.Dispatcher) (value.TypedValue, error) {
//	    p, err := d.Dispatch(ctx, intrinsic.Call{Name: intrinsic.AllocName, Args: ...})
//	    ...
//	})
//
// # Limits
//
// Each evaluation is bounded by a recursion limit on nested intrinsic calls
// and by a step budget. Exceeding either fails the evaluation with
// recursion_limit_exceeded or budget_exceeded.
//
// # Thread Safety
//
// Evaluator and Dispatcher are safe for concurrent use. A Context and its
// Arena belong to a single evaluation and must not be shared between
// goroutines.
package consteval
