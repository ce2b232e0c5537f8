package intrinsic

import (
	"errors"
	"testing"

	"go.uber.org/zap"

	cerrors "github.com/wippyai/consteval/errors"
	"github.com/wippyai/consteval/layout"
	"github.com/wippyai/consteval/memory"
	"github.com/wippyai/consteval/value"
)

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := NewRegistry()

	called := false
	r.RegisterFunc("nop", UnitMeta, FamilyNone, 0, 0, func(ctx *Context, inv *Invocation) (value.TypedValue, error) {
		called = true
		return value.Unit, nil
	})

	if !r.Has("nop") {
		t.Error("Has should return true for registered name")
	}
	if r.Has("other") {
		t.Error("Has should return false for unregistered name")
	}

	d := NewDispatcherWith(r)
	if _, err := d.Dispatch(newTestContext(), Call{Name: "nop"}); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if !called {
		t.Error("handler should have been called")
	}
}

func TestRegistry_Missing(t *testing.T) {
	r := testDispatcher.Registry()
	want := []string{
		"size_of", "transmute", "const_eval_select", "wrapping_add",
		"saturating_add", "add_with_overflow", "needs_drop", "likely",
		"unlikely", "offset", "arith_offset", "copy", "copy_nonoverlapping",
		"ctpop", "cttz", "atomic_load", "atomic_store", "atomic_xchg",
		"atomic_cxchg", "atomic_cxchgweak", "atomic_xadd", "atomic_xsub",
		"atomic_and", "atomic_nand", "atomic_or", "atomic_xor",
		AllocName, AllocZeroedName, DeallocName, ReallocName,
	}
	if missing := r.Missing(want); len(missing) > 0 {
		t.Errorf("missing intrinsics: %v", missing)
	}

	names := r.Names()
	for i := 1; i < len(names); i++ {
		if names[i-1] >= names[i] {
			t.Fatalf("Names not sorted at %d: %q >= %q", i, names[i-1], names[i])
		}
	}
}

func TestDispatch_Errors(t *testing.T) {
	ctx := newTestContext()
	p := cell(t, ctx, i32(1))

	tests := []struct {
		name string
		call Call
		want error
	}{
		{"unknown", Call{Name: "frobnicate"}, cerrors.ErrUnknownIntrinsic},
		{"bad ordering", Call{Name: "atomic_load_sloppy", TypeArgs: types(layout.I32()), Args: args(p)}, cerrors.ErrUnknownIntrinsic},
		{"release load", Call{Name: "atomic_load_release", TypeArgs: types(layout.I32()), Args: args(p)}, cerrors.ErrUnknownIntrinsic},
		{"acquire store", Call{Name: "atomic_store_acquire", TypeArgs: types(layout.I32()), Args: args(p, i32(1))}, cerrors.ErrUnknownIntrinsic},
		{"too many orderings", Call{Name: "atomic_xadd_seqcst_seqcst", TypeArgs: types(layout.I32()), Args: args(p, i32(1))}, cerrors.ErrUnknownIntrinsic},
		{"arity", Call{Name: "wrapping_add", Args: args(u8(1))}, cerrors.ErrArityOrTypeMismatch},
		{"mixed widths", Call{Name: "wrapping_add", Args: args(u8(1), i32(1))}, cerrors.ErrArityOrTypeMismatch},
		{"not an integer", Call{Name: "ctpop", Args: args(value.FromBool(true))}, cerrors.ErrArityOrTypeMismatch},
		{"missing type arg", Call{Name: "size_of"}, cerrors.ErrArityOrTypeMismatch},
		{"missing callback", Call{Name: "const_eval_select", Args: args(value.Unit)}, cerrors.ErrArityOrTypeMismatch},
		{"atomic on pointer-less", Call{Name: "atomic_load", TypeArgs: types(layout.I32()), Args: args(i32(0))}, cerrors.ErrArityOrTypeMismatch},
		{"xadd on bool", Call{Name: "atomic_xadd", TypeArgs: types(layout.Bool()), Args: args(p, value.FromBool(true))}, cerrors.ErrArityOrTypeMismatch},
		{"transmute size", Call{Name: "transmute", TypeArgs: types(layout.U16(), layout.U32()), Args: args(value.FromInt64(layout.U16(), 1))}, cerrors.ErrLayoutMismatch},
		{"alignment", Call{Name: AllocName, Args: args(usize(4), usize(3))}, cerrors.ErrInvalidAlignment},
		{"zero alignment", Call{Name: AllocName, Args: args(usize(4), usize(0))}, cerrors.ErrInvalidAlignment},
		{"offset past end", Call{Name: "offset", TypeArgs: types(layout.I32()), Args: args(p, isize(2))}, cerrors.ErrOutOfBounds},
		{"offset before start", Call{Name: "offset", TypeArgs: types(layout.I32()), Args: args(p, isize(-1))}, cerrors.ErrOutOfBounds},
		{"exact_div remainder", Call{Name: "exact_div", Args: args(i32(7), i32(2))}, cerrors.ErrOverflow},
		{"unchecked overflow", Call{Name: "unchecked_add", Args: args(u8(200), u8(100))}, cerrors.ErrOverflow},
		{"shift too far", Call{Name: "unchecked_shl", Args: args(u8(1), u8(8))}, cerrors.ErrOverflow},
		{"invalid bool", Call{Name: "likely", Args: args(value.TypedValue{Layout: layout.Bool(), Bytes: []byte{2}})}, cerrors.ErrInvalidData},
		{"cttz_nonzero(0)", Call{Name: "cttz_nonzero", Args: args(u8(0))}, cerrors.ErrInvalidData},
		{"dealloc static", Call{Name: DeallocName, Args: args(p, usize(4), usize(4))}, cerrors.ErrInvalidPointer},
		{"pointer as alloc size", Call{Name: AllocName, Args: args(p, usize(1))}, cerrors.ErrArityOrTypeMismatch},
		{"int for likely", Call{Name: "likely", Args: args(i32(1))}, cerrors.ErrArityOrTypeMismatch},
		{"int as copy source", Call{Name: "copy", TypeArgs: types(layout.U8()), Args: args(usize(0), p, usize(1))}, cerrors.ErrArityOrTypeMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := testDispatcher.Dispatch(ctx, tt.call)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			var e *cerrors.Error
			if errors.As(err, &e) && e.Intrinsic != tt.call.Name {
				t.Errorf("error names intrinsic %q, want %q", e.Intrinsic, tt.call.Name)
			}
		})
	}
}

func TestResolve_Family(t *testing.T) {
	ctx := newTestContext()
	p := cell(t, ctx, i32(1))

	tests := []struct {
		name string
		call Call
		ok   bool
	}{
		{"alloc takes a size", Call{Name: AllocName, Args: args(usize(4), usize(4))}, true},
		{"alloc rejects a pointer", Call{Name: AllocName, Args: args(p, usize(4))}, false},
		{"dealloc takes a pointer", Call{Name: DeallocName, Args: args(p, usize(4), usize(4))}, true},
		{"dealloc rejects a size", Call{Name: DeallocName, Args: args(usize(4), usize(4), usize(4))}, false},
		{"atomic takes a pointer", Call{Name: "atomic_load_acquire", TypeArgs: types(layout.I32()), Args: args(p)}, true},
		{"atomic rejects an int", Call{Name: "atomic_load_acquire", TypeArgs: types(layout.I32()), Args: args(i32(0))}, false},
		{"assume takes a bool", Call{Name: "assume", Args: args(value.FromBool(true))}, true},
		{"black_box takes anything", Call{Name: "black_box", Args: args(p)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv, err := testDispatcher.Resolve(tt.call)
			if tt.ok {
				if err != nil {
					t.Fatalf("Resolve: %v", err)
				}
				if !inv.Desc.Family.Accepts(tt.call.Args[0].Layout) {
					t.Errorf("family %s should accept %s", inv.Desc.Family, tt.call.Args[0].Layout)
				}
				return
			}
			var e *cerrors.Error
			if !errors.As(err, &e) || e.Kind != cerrors.KindArityOrTypeMismatch || e.Phase != cerrors.PhaseDispatch {
				t.Fatalf("expected a dispatch arity_or_type_mismatch, got %v", err)
			}
		})
	}
}

func TestDispatch_UseAfterFree(t *testing.T) {
	ctx := newTestContext()
	tu := types(layout.U8())
	p := dispatch(t, ctx, Call{Name: AllocName, Args: args(usize(2), usize(1))})
	dispatch(t, ctx, Call{Name: DeallocName, Args: args(p, usize(2), usize(1))})

	for _, c := range []Call{
		{Name: "read_via_copy", TypeArgs: tu, Args: args(p)},
		{Name: "write_via_move", TypeArgs: tu, Args: args(p, u8(1))},
		{Name: "offset", TypeArgs: tu, Args: args(p, isize(1))},
		{Name: DeallocName, Args: args(p, usize(2), usize(1))},
		{Name: ReallocName, Args: args(p, usize(2), usize(1), usize(4))},
	} {
		if _, err := testDispatcher.Dispatch(ctx, c); !errors.Is(err, cerrors.ErrUseAfterFree) {
			t.Errorf("%s after free: expected use after free, got %v", c.Name, err)
		}
	}
}

func TestDispatch_SizeAlignMismatch(t *testing.T) {
	ctx := newTestContext()
	p := dispatch(t, ctx, Call{Name: AllocName, Args: args(usize(4), usize(2))})

	for _, c := range []Call{
		{Name: DeallocName, Args: args(p, usize(8), usize(2))},
		{Name: DeallocName, Args: args(p, usize(4), usize(4))},
		{Name: ReallocName, Args: args(p, usize(2), usize(2), usize(8))},
	} {
		if _, err := testDispatcher.Dispatch(ctx, c); !errors.Is(err, cerrors.ErrSizeAlignMismatch) {
			t.Errorf("%s: expected size/align mismatch, got %v", c.Name, err)
		}
	}
	if ctx.Arena.Live() != 1 {
		t.Errorf("failed calls must leave the allocation live, Live = %d", ctx.Arena.Live())
	}
}

func TestRealloc_AllOrNothing(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ArenaLimit = 10
	ctx := NewContext(cfg)
	tu := types(layout.U8())

	p := dispatch(t, ctx, Call{Name: AllocName, Args: args(usize(4), usize(1))})
	dispatch(t, ctx, Call{Name: "write_via_move", TypeArgs: tu, Args: args(p, u8(7))})

	_, err := testDispatcher.Dispatch(ctx, Call{Name: ReallocName, Args: args(p, usize(4), usize(1), usize(8))})
	if !errors.Is(err, cerrors.ErrBudgetExceeded) {
		t.Fatalf("expected arena limit error, got %v", err)
	}

	v := dispatch(t, ctx, Call{Name: "read_via_copy", TypeArgs: tu, Args: args(p)})
	if got := intOf(t, v); got != 7 {
		t.Errorf("old region changed to %d after failed realloc", got)
	}
	if ctx.Arena.Live() != 1 {
		t.Errorf("Live = %d, want 1", ctx.Arena.Live())
	}
}

func TestAllocator_HugeRequests(t *testing.T) {
	huge := value.FromUint64(layout.Usize(), ^uint64(0))

	for _, cfg := range []Config{{}, DefaultConfig()} {
		ctx := NewContext(cfg)
		if ctx.Config().ArenaLimit != DefaultConfig().ArenaLimit {
			t.Errorf("ArenaLimit = %d, want the default", ctx.Config().ArenaLimit)
		}
		p := dispatch(t, ctx, Call{Name: AllocName, Args: args(usize(1), usize(1))})

		calls := []Call{
			{Name: AllocName, Args: args(usize(1<<62), usize(1))},
			{Name: AllocName, Args: args(huge, usize(1))},
			{Name: ReallocName, Args: args(p, usize(1), usize(1), huge)},
			// Charging the zero fill exhausts the budget, so it goes last.
			{Name: AllocZeroedName, Args: args(huge, usize(1))},
		}
		for _, c := range calls {
			if _, err := testDispatcher.Dispatch(ctx, c); !errors.Is(err, cerrors.ErrBudgetExceeded) {
				t.Errorf("%s: expected budget exceeded, got %v", c.Name, err)
			}
		}
		if ctx.Arena.Live() != 1 {
			t.Errorf("Live = %d, want 1", ctx.Arena.Live())
		}
	}
}

func TestChargeBytes_Huge(t *testing.T) {
	ctx := NewContext(DefaultConfig())
	if err := ctx.ChargeBytes(^uint64(0)); !errors.Is(err, cerrors.ErrBudgetExceeded) {
		t.Fatalf("expected budget exceeded, got %v", err)
	}
	if ctx.Spent() <= 0 {
		t.Errorf("Spent = %d, want positive", ctx.Spent())
	}

	ctx = NewContext(DefaultConfig())
	if err := ctx.ChargeBytes(4097); err != nil {
		t.Fatalf("ChargeBytes: %v", err)
	}
	if ctx.Spent() != 2 {
		t.Errorf("Spent = %d, want 2", ctx.Spent())
	}
}

func TestSetLogger_Nil(t *testing.T) {
	SetLogger(nil)
	defer SetLogger(zap.NewNop())

	if Logger() == nil {
		t.Fatal("Logger() returned nil")
	}
	ctx := NewContext(DefaultConfig())
	dispatch(t, ctx, Call{Name: "likely", Args: args(value.FromBool(true))})
}

func TestRecursionLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxDepth = 8
	ctx := NewContext(cfg)

	depth := 0
	var recurse Callback
	recurse = func(ctx *Context, in []value.TypedValue) (value.TypedValue, error) {
		depth++
		return testDispatcher.Dispatch(ctx, Call{
			Name:      "const_eval_select",
			Args:      args(value.Unit),
			Callbacks: []Callback{recurse, recurse},
		})
	}

	_, err := recurse(ctx, nil)
	if !errors.Is(err, cerrors.ErrRecursionLimit) {
		t.Fatalf("expected recursion limit, got %v", err)
	}
	if depth != 9 {
		t.Errorf("callback ran %d times, want 9", depth)
	}
	if ctx.Depth() != 0 {
		t.Errorf("depth after unwinding = %d, want 0", ctx.Depth())
	}
}

func TestBudget(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Budget = 3
	ctx := NewContext(cfg)

	for i := 0; i < 3; i++ {
		dispatch(t, ctx, Call{Name: "likely", Args: args(value.FromBool(true))})
	}
	_, err := testDispatcher.Dispatch(ctx, Call{Name: "likely", Args: args(value.FromBool(true))})
	if !errors.Is(err, cerrors.ErrBudgetExceeded) {
		t.Fatalf("expected budget exceeded, got %v", err)
	}
	if ctx.Remaining() >= 0 {
		t.Errorf("Remaining = %d, want negative", ctx.Remaining())
	}
}

func TestBudget_ChargesCopies(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Budget = 20
	cfg.CopyChunk = 1
	ctx := NewContext(cfg)
	tu := types(layout.U8())

	src := dispatch(t, ctx, Call{Name: AllocZeroedName, Args: args(usize(8), usize(1))})
	dst := dispatch(t, ctx, Call{Name: AllocName, Args: args(usize(32), usize(1))})
	spent := ctx.Spent()
	if spent != 1+8+1 {
		t.Errorf("spent %d after zeroed alloc of 8 bytes and a plain alloc, want 10", spent)
	}

	_, err := testDispatcher.Dispatch(ctx, Call{Name: "copy", TypeArgs: tu, Args: args(src, dst, usize(8))})
	if err != nil {
		t.Fatalf("first copy: %v", err)
	}
	_, err = testDispatcher.Dispatch(ctx, Call{Name: "write_bytes", TypeArgs: tu, Args: args(dst, u8(1), usize(32))})
	if !errors.Is(err, cerrors.ErrBudgetExceeded) {
		t.Fatalf("expected budget exceeded, got %v", err)
	}
}

func TestContext(t *testing.T) {
	a := NewContext(DefaultConfig())
	b := NewContext(DefaultConfig())
	if a.ID() == b.ID() {
		t.Error("contexts must get distinct ids")
	}
	if a.Arena == b.Arena {
		t.Error("contexts must not share an arena")
	}

	c := NewContext(Config{})
	if got := c.Config(); got.MaxDepth != 64 || got.Budget != 1_000_000 || got.CopyChunk != 4096 {
		t.Errorf("zero config not defaulted: %+v", got)
	}

	if err := c.ChargeBytes(4097); err != nil {
		t.Fatal(err)
	}
	if c.Spent() != 2 {
		t.Errorf("ChargeBytes(4097) spent %d, want 2", c.Spent())
	}
}

func TestRecognize(t *testing.T) {
	tests := []struct {
		abi    string
		name   string
		attrs  []string
		want   string
		wantOK bool
	}{
		{ABIIntrinsic, "wrapping_add", nil, "wrapping_add", true},
		{ABIIntrinsic, "atomic_cxchg_release_seqcst", nil, "atomic_cxchg_release_seqcst", true},
		{ABIPlatformIntrinsic, "ctpop", nil, "ctpop", true},
		{ABIIntrinsic, "frobnicate", nil, "", false},
		{ABIIntrinsic, "atomic_load_release", nil, "", false},
		{"C", "wrapping_add", nil, "", false},
		{"Rust", "__rust_alloc", []string{"rustc_allocator"}, AllocName, true},
		{"Rust", "my_free", []string{"inline", "rustc_deallocator"}, DeallocName, true},
		{"Rust", "grow", []string{"rustc_reallocator"}, ReallocName, true},
		{"Rust", "calloc", []string{"rustc_allocator_zeroed"}, AllocZeroedName, true},
		{"Rust", "helper", []string{"inline"}, "", false},
	}
	for _, tt := range tests {
		got, ok := testDispatcher.Recognize(tt.abi, tt.name, tt.attrs)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("Recognize(%q, %q, %v) = (%q, %t), want (%q, %t)", tt.abi, tt.name, tt.attrs, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestParseAtomicName(t *testing.T) {
	tests := []struct {
		name      string
		op        string
		orderings []Ordering
		ok        bool
	}{
		{"atomic_load", "load", []Ordering{OrderingSeqCst}, true},
		{"atomic_load_acquire", "load", []Ordering{OrderingAcquire}, true},
		{"atomic_cxchg_release_seqcst", "cxchg", []Ordering{OrderingRelease, OrderingSeqCst}, true},
		{"atomic_cxchgweak_acquire_acquire", "cxchgweak", []Ordering{OrderingAcquire, OrderingAcquire}, true},
		{"atomic_cxchg_seqcst_release", "", nil, false},
		{"atomic_fence_acqrel", "fence", []Ordering{OrderingAcqRel}, true},
		{"atomic_xadd_relaxed_relaxed", "", nil, false},
		{"atomic_", "", nil, false},
		{"wrapping_add", "", nil, false},
	}
	for _, tt := range tests {
		got, ok := parseAtomicName(tt.name)
		if ok != tt.ok {
			t.Errorf("parseAtomicName(%q) ok = %t, want %t", tt.name, ok, tt.ok)
			continue
		}
		if !ok {
			continue
		}
		if got.op != tt.op || len(got.orderings) != len(tt.orderings) {
			t.Errorf("parseAtomicName(%q) = %+v", tt.name, got)
			continue
		}
		for i := range tt.orderings {
			if got.orderings[i] != tt.orderings[i] {
				t.Errorf("parseAtomicName(%q) ordering %d = %s, want %s", tt.name, i, got.orderings[i], tt.orderings[i])
			}
		}
	}
}

func TestPointerProvenanceSurvivesMemory(t *testing.T) {
	ctx := newTestContext()
	target := cell(t, ctx, i32(42))
	slot := dispatch(t, ctx, Call{Name: AllocName, Args: args(usize(8), usize(8))})
	tp := types(layout.Pointer())

	dispatch(t, ctx, Call{Name: "write_via_move", TypeArgs: tp, Args: args(slot, target)})
	back := dispatch(t, ctx, Call{Name: "read_via_copy", TypeArgs: tp, Args: args(slot)})
	if ptrOf(t, back) != ptrOf(t, target) {
		t.Fatalf("stored pointer %s read back as %s", ptrOf(t, target), ptrOf(t, back))
	}
	v := dispatch(t, ctx, Call{Name: "read_via_copy", TypeArgs: types(layout.I32()), Args: args(back)})
	if got := intOf(t, v); got != 42 {
		t.Errorf("*(*slot) = %d, want 42", got)
	}

	// A pointer forged from an integer has no provenance.
	forged, err := value.Transmute(usize(int64(ptrOf(t, target).Offset)), layout.Pointer())
	if err != nil {
		t.Fatal(err)
	}
	if ptrOf(t, forged).Alloc != memory.AllocID(0) {
		t.Error("transmuted integer must not gain provenance")
	}
	_, err = testDispatcher.Dispatch(ctx, Call{Name: "read_via_copy", TypeArgs: types(layout.I32()), Args: args(forged)})
	if !errors.Is(err, cerrors.ErrInvalidPointer) {
		t.Errorf("dereferencing a forged pointer: expected invalid pointer, got %v", err)
	}
}
