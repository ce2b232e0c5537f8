package errors

import (
	"fmt"
	"strings"
)

// Phase indicates which unit of the engine produced the error
type Phase string

const (
	PhaseDispatch Phase = "dispatch" // name lookup and argument checks
	PhaseMemory   Phase = "memory"   // arena access
	PhaseCodec    Phase = "codec"    // value encoding/decoding
	PhaseArith    Phase = "arith"    // integer arithmetic
	PhaseAtomic   Phase = "atomic"   // read-modify-write primitives
	PhaseAlloc    Phase = "alloc"    // simulated heap
	PhasePointer  Phase = "pointer"  // pointer offset and copy
	PhaseMeta     Phase = "meta"     // layout queries and select
	PhaseLayout   Phase = "layout"   // layout construction
	PhaseEval     Phase = "eval"     // evaluation context limits
	PhaseScript   Phase = "script"   // scenario loading and execution
)

// Kind categorizes the error
type Kind string

const (
	KindUnknownIntrinsic    Kind = "unknown_intrinsic"
	KindArityOrTypeMismatch Kind = "arity_or_type_mismatch"
	KindLayoutMismatch      Kind = "layout_mismatch"
	KindInvalidAlignment    Kind = "invalid_alignment"
	KindOutOfBounds         Kind = "out_of_bounds"
	KindUseAfterFree        Kind = "use_after_free"
	KindSizeAlignMismatch   Kind = "size_align_mismatch"
	KindRecursionLimit      Kind = "recursion_limit_exceeded"
	KindBudgetExceeded      Kind = "budget_exceeded"
	KindInvalidData         Kind = "invalid_data"
	KindInvalidPointer      Kind = "invalid_pointer"
	KindOverflow            Kind = "overflow"
	KindInvalidInput        Kind = "invalid_input"
)

// Sentinel targets for errors.Is. They carry no phase, so they match an
// error of the same kind raised by any unit.
var (
	ErrUnknownIntrinsic    = &Error{Kind: KindUnknownIntrinsic}
	ErrArityOrTypeMismatch = &Error{Kind: KindArityOrTypeMismatch}
	ErrLayoutMismatch      = &Error{Kind: KindLayoutMismatch}
	ErrInvalidAlignment    = &Error{Kind: KindInvalidAlignment}
	ErrOutOfBounds         = &Error{Kind: KindOutOfBounds}
	ErrUseAfterFree        = &Error{Kind: KindUseAfterFree}
	ErrSizeAlignMismatch   = &Error{Kind: KindSizeAlignMismatch}
	ErrRecursionLimit      = &Error{Kind: KindRecursionLimit}
	ErrBudgetExceeded      = &Error{Kind: KindBudgetExceeded}
	ErrInvalidData         = &Error{Kind: KindInvalidData}
	ErrInvalidPointer      = &Error{Kind: KindInvalidPointer}
	ErrOverflow            = &Error{Kind: KindOverflow}
	ErrInvalidInput        = &Error{Kind: KindInvalidInput}
)

// Error is the structured error type used throughout the engine
type Error struct {
	Value     any
	Cause     error
	Phase     Phase
	Kind      Kind
	Intrinsic string
	TypeName  string
	Detail    string
	Path      []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Intrinsic != "" {
		b.WriteString(" in ")
		b.WriteString(e.Intrinsic)
	}

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.TypeName != "" {
		b.WriteString(": type ")
		b.WriteString(e.TypeName)
	}

	if e.Detail != "" {
		if e.TypeName != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error.
// Kinds must be equal; phases are compared only when the target sets one.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if e.Kind != t.Kind {
		return false
	}
	return t.Phase == "" || e.Phase == t.Phase
}

// KindOf returns the kind of the first *Error in err's chain, or "".
func KindOf(err error) Kind {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e.Kind
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return ""
		}
		err = u.Unwrap()
	}
	return ""
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the field path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Intrinsic sets the intrinsic name being evaluated
func (b *Builder) Intrinsic(name string) *Builder {
	b.err.Intrinsic = name
	return b
}

// TypeName sets the offending type name
func (b *Builder) TypeName(t string) *Builder {
	b.err.TypeName = t
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// UnknownIntrinsic creates an error for a name missing from the dispatch table
func UnknownIntrinsic(name string) *Error {
	return &Error{
		Phase:     PhaseDispatch,
		Kind:      KindUnknownIntrinsic,
		Intrinsic: name,
		Detail:    fmt.Sprintf("no intrinsic named %q", name),
	}
}

// ArityMismatch creates an error for a wrong number of arguments
func ArityMismatch(name string, want, got int) *Error {
	return &Error{
		Phase:     PhaseDispatch,
		Kind:      KindArityOrTypeMismatch,
		Intrinsic: name,
		Detail:    fmt.Sprintf("expected %d arguments, got %d", want, got),
		Value:     got,
	}
}

// TypeMismatch creates an error for an argument with an unusable layout
func TypeMismatch(phase Phase, typeName, detail string) *Error {
	return &Error{
		Phase:    phase,
		Kind:     KindArityOrTypeMismatch,
		TypeName: typeName,
		Detail:   detail,
	}
}

// LayoutMismatch creates a transmute size mismatch error
func LayoutMismatch(srcSize, dstSize uint64) *Error {
	return &Error{
		Phase:  PhaseCodec,
		Kind:   KindLayoutMismatch,
		Detail: fmt.Sprintf("cannot reinterpret %d bytes as a %d-byte value", srcSize, dstSize),
	}
}

// InvalidAlignment creates an error for a zero or non power-of-two alignment
func InvalidAlignment(phase Phase, align uint64) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidAlignment,
		Detail: fmt.Sprintf("alignment %d is not a nonzero power of two", align),
		Value:  align,
	}
}

// OutOfBounds creates an out of bounds error
func OutOfBounds(phase Phase, offset int64, size, length uint64) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Detail: fmt.Sprintf("access of %d bytes at offset %d out of bounds (allocation size %d)", size, offset, length),
		Value:  offset,
	}
}

// UseAfterFree creates an error for access to a dead allocation
func UseAfterFree(phase Phase, alloc uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUseAfterFree,
		Detail: fmt.Sprintf("allocation #%d is no longer live", alloc),
		Value:  alloc,
	}
}

// SizeAlignMismatch creates an error for deallocation parameters that
// disagree with the original allocation
func SizeAlignMismatch(phase Phase, size, align, wantSize, wantAlign uint64) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindSizeAlignMismatch,
		Detail: fmt.Sprintf("size %d align %d does not match allocation (size %d align %d)", size, align, wantSize, wantAlign),
	}
}

// InvalidPointer creates an error for a dereference without provenance
func InvalidPointer(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidPointer,
		Detail: detail,
	}
}

// InvalidData creates an invalid data error
func InvalidData(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidData,
		Detail: detail,
	}
}

// Overflow creates an overflow error
func Overflow(phase Phase, value any, typeName string) *Error {
	return &Error{
		Phase:    phase,
		Kind:     KindOverflow,
		TypeName: typeName,
		Detail:   fmt.Sprintf("value %v overflows %s", value, typeName),
		Value:    value,
	}
}

// RecursionLimit creates an error for nesting deeper than the context allows
func RecursionLimit(limit int) *Error {
	return &Error{
		Phase:  PhaseEval,
		Kind:   KindRecursionLimit,
		Detail: fmt.Sprintf("recursion depth exceeds %d", limit),
		Value:  limit,
	}
}

// BudgetExceeded creates an error for an exhausted step budget
func BudgetExceeded(spent int64) *Error {
	return &Error{
		Phase:  PhaseEval,
		Kind:   KindBudgetExceeded,
		Detail: fmt.Sprintf("evaluation budget exhausted after %d steps", spent),
		Value:  spent,
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// WithIntrinsic stamps the intrinsic name onto err when it is an *Error
// that does not carry one yet. Other errors are returned unchanged.
func WithIntrinsic(err error, name string) error {
	if e, ok := err.(*Error); ok && e.Intrinsic == "" {
		cp := *e
		cp.Intrinsic = name
		return &cp
	}
	return err
}
