package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:     PhaseCodec,
				Kind:      KindLayoutMismatch,
				Intrinsic: "transmute",
				Path:      []string{"arg", "0"},
				TypeName:  "(i16, i16)",
				Detail:    "cannot reinterpret",
			},
			contains: []string{"[codec]", "layout_mismatch", "in transmute", "arg.0", "(i16, i16)", "cannot reinterpret"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseMemory,
				Kind:  KindOutOfBounds,
			},
			contains: []string{"[memory]", "out_of_bounds"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseAlloc,
				Kind:   KindInvalidAlignment,
				Detail: "realloc failed",
				Cause:  errors.New("underlying error"),
			},
			contains: []string{"[alloc]", "invalid_alignment", "realloc failed", "caused by", "underlying error"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := &Error{
		Phase: PhaseMemory,
		Kind:  KindUseAfterFree,
		Cause: cause,
	}

	if !errors.Is(errors.Unwrap(err), cause) {
		t.Error("errors.Unwrap did not return cause")
	}
}

func TestError_Is(t *testing.T) {
	err := &Error{
		Phase: PhasePointer,
		Kind:  KindOutOfBounds,
	}

	if !err.Is(&Error{Phase: PhasePointer, Kind: KindOutOfBounds}) {
		t.Error("Is should match same phase and kind")
	}
	if err.Is(&Error{Phase: PhaseMemory, Kind: KindOutOfBounds}) {
		t.Error("Is should not match different phase")
	}
	if err.Is(&Error{Phase: PhasePointer, Kind: KindUseAfterFree}) {
		t.Error("Is should not match different kind")
	}
	if !errors.Is(err, ErrOutOfBounds) {
		t.Error("errors.Is should match the phase-less sentinel")
	}

	wrapped := fmt.Errorf("evaluating GOAL: %w", err)
	if !errors.Is(wrapped, ErrOutOfBounds) {
		t.Error("errors.Is should see through fmt wrapping")
	}
	if KindOf(wrapped) != KindOutOfBounds {
		t.Errorf("KindOf = %q, want %q", KindOf(wrapped), KindOutOfBounds)
	}
	if KindOf(errors.New("plain")) != "" {
		t.Error("KindOf of a plain error should be empty")
	}
}

func TestBuilder(t *testing.T) {
	cause := errors.New("root")
	err := New(PhaseAtomic, KindArityOrTypeMismatch).
		Path("arg", "1").
		Intrinsic("atomic_xadd_seqcst").
		TypeName("bool").
		Value(42).
		Cause(cause).
		Detail("expected %s, got %s", "integer", "bool").
		Build()

	if err.Phase != PhaseAtomic {
		t.Errorf("Phase = %v, want %v", err.Phase, PhaseAtomic)
	}
	if err.Kind != KindArityOrTypeMismatch {
		t.Errorf("Kind = %v, want %v", err.Kind, KindArityOrTypeMismatch)
	}
	if len(err.Path) != 2 || err.Path[0] != "arg" || err.Path[1] != "1" {
		t.Errorf("Path = %v, want [arg 1]", err.Path)
	}
	if err.Intrinsic != "atomic_xadd_seqcst" {
		t.Errorf("Intrinsic = %v", err.Intrinsic)
	}
	if err.TypeName != "bool" {
		t.Errorf("TypeName = %v, want 'bool'", err.TypeName)
	}
	if err.Value != 42 {
		t.Errorf("Value = %v, want 42", err.Value)
	}
	if !errors.Is(err.Cause, cause) {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}
	if err.Detail != "expected integer, got bool" {
		t.Errorf("Detail = %v", err.Detail)
	}
}

func TestConvenienceConstructors(t *testing.T) {
	tests := []struct {
		err  *Error
		name string
		kind Kind
	}{
		{UnknownIntrinsic("frobnicate"), "UnknownIntrinsic", KindUnknownIntrinsic},
		{ArityMismatch("wrapping_add", 2, 1), "ArityMismatch", KindArityOrTypeMismatch},
		{TypeMismatch(PhaseArith, "bool", "not an integer"), "TypeMismatch", KindArityOrTypeMismatch},
		{LayoutMismatch(4, 8), "LayoutMismatch", KindLayoutMismatch},
		{InvalidAlignment(PhaseMemory, 3), "InvalidAlignment", KindInvalidAlignment},
		{OutOfBounds(PhaseMemory, 10, 1, 5), "OutOfBounds", KindOutOfBounds},
		{UseAfterFree(PhaseMemory, 7), "UseAfterFree", KindUseAfterFree},
		{SizeAlignMismatch(PhaseAlloc, 4, 1, 8, 1), "SizeAlignMismatch", KindSizeAlignMismatch},
		{RecursionLimit(64), "RecursionLimit", KindRecursionLimit},
		{BudgetExceeded(100), "BudgetExceeded", KindBudgetExceeded},
		{InvalidPointer(PhaseCodec, "no provenance"), "InvalidPointer", KindInvalidPointer},
		{InvalidData(PhaseCodec, "bool byte 2"), "InvalidData", KindInvalidData},
		{Overflow(PhaseArith, 300, "u8"), "Overflow", KindOverflow},
		{InvalidInput(PhaseScript, "bad type"), "InvalidInput", KindInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Kind != tt.kind {
				t.Errorf("Kind = %v, want %v", tt.err.Kind, tt.kind)
			}
			if tt.err.Detail == "" {
				t.Error("Detail should not be empty")
			}
		})
	}

	if !strings.Contains(OutOfBounds(PhaseMemory, 10, 1, 5).Detail, "size 5") {
		t.Error("OutOfBounds detail should name the allocation size")
	}
}

func TestWithIntrinsic(t *testing.T) {
	base := OutOfBounds(PhaseMemory, 3, 4, 4)
	got := WithIntrinsic(base, "offset")

	var e *Error
	if !errors.As(got, &e) {
		t.Fatal("expected *Error")
	}
	if e.Intrinsic != "offset" {
		t.Errorf("Intrinsic = %q, want offset", e.Intrinsic)
	}
	if base.Intrinsic != "" {
		t.Error("WithIntrinsic must not mutate its input")
	}

	again := WithIntrinsic(got, "copy")
	if again.(*Error).Intrinsic != "offset" {
		t.Error("an existing intrinsic name should be kept")
	}

	plain := errors.New("plain")
	if WithIntrinsic(plain, "copy") != plain {
		t.Error("non-engine errors should pass through")
	}
}
