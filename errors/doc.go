// Package errors provides structured error types for the constant evaluator.
//
// Errors are categorized by Phase (which unit raised the error) and Kind
// (error category). The Error type includes the intrinsic being evaluated,
// the offending type name, and a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseAtomic, errors.KindArityOrTypeMismatch).
//		Intrinsic("atomic_xadd_seqcst").
//		TypeName("bool").
//		Detail("operand must be an integer").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.OutOfBounds(errors.PhaseMemory, offset, size, allocSize)
//	err := errors.UseAfterFree(errors.PhaseMemory, id)
//
// Every failure is terminal for the enclosing constant. Callers branch on
// the kind with the phase-less sentinels:
//
//	if errors.Is(err, errors.ErrOutOfBounds) { ... }
package errors
