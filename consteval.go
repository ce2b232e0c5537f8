package consteval

import (
	"math/big"

	"github.com/wippyai/consteval/intrinsic"
	"github.com/wippyai/consteval/memory"
	"github.com/wippyai/consteval/value"
)

// Memory is the byte-level view of an evaluation's arena.
type Memory interface {
	Read(p memory.Pointer, n uint64) ([]byte, error)
	Write(p memory.Pointer, data []byte) error
	Fill(p memory.Pointer, b byte, n uint64) error
	Copy(src, dst memory.Pointer, n uint64) error
	CheckInBounds(p memory.Pointer) error
}

// Allocator creates and releases arena regions.
type Allocator interface {
	Allocate(size, align uint64) (memory.Pointer, error)
	AllocateZeroed(size, align uint64) (memory.Pointer, error)
	Deallocate(p memory.Pointer, size, align uint64) error
}

var (
	_ Memory    = (*memory.Arena)(nil)
	_ Allocator = (*memory.Arena)(nil)
)

// Evaluator runs intrinsic calls against a shared dispatch table. Each
// evaluation gets a fresh Context built from the evaluator's Config.
type Evaluator struct {
	d   *intrinsic.Dispatcher
	cfg intrinsic.Config
}

// New creates an Evaluator with the full intrinsic table.
func New(cfg intrinsic.Config) *Evaluator {
	return &Evaluator{d: intrinsic.NewDispatcher(), cfg: cfg}
}

// Dispatcher returns the evaluator's dispatch table.
func (e *Evaluator) Dispatcher() *intrinsic.Dispatcher {
	return e.d
}

// Eval evaluates a single call and externalizes its result.
func (e *Evaluator) Eval(call intrinsic.Call) (*big.Int, error) {
	return e.EvalFunc(func(ctx *intrinsic.Context, d *intrinsic.Dispatcher) (value.TypedValue, error) {
		return d.Dispatch(ctx, call)
	})
}

// EvalFunc evaluates fn in a fresh Context and externalizes the value it
// returns. All dispatches fn makes share one arena and one budget.
func (e *Evaluator) EvalFunc(fn func(ctx *intrinsic.Context, d *intrinsic.Dispatcher) (value.TypedValue, error)) (*big.Int, error) {
	ctx := intrinsic.NewContext(e.cfg)
	v, err := fn(ctx, e.d)
	if err != nil {
		return nil, err
	}
	return value.Externalize(v)
}
