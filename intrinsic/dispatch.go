package intrinsic

import (
	"strings"

	"go.uber.org/zap"

	"github.com/wippyai/consteval/errors"
	"github.com/wippyai/consteval/value"
)

// Dispatcher resolves intrinsic calls by name and routes them to their
// handler. It is immutable after construction and safe to share between
// evaluations; per-evaluation state lives in the Context.
type Dispatcher struct {
	reg *Registry
}

// NewDispatcher creates a dispatcher holding every built-in intrinsic.
func NewDispatcher() *Dispatcher {
	r := NewRegistry()
	registerArith(r)
	registerAtomic(r)
	registerAlloc(r)
	registerPointer(r)
	registerMeta(r)
	return &Dispatcher{reg: r}
}

// NewDispatcherWith creates a dispatcher over a caller-built registry.
func NewDispatcherWith(r *Registry) *Dispatcher {
	return &Dispatcher{reg: r}
}

// Registry returns the dispatch table.
func (d *Dispatcher) Registry() *Registry {
	return d.reg
}

// Known reports whether name resolves to an intrinsic, including every
// ordering-suffixed spelling of the atomics.
func (d *Dispatcher) Known(name string) bool {
	_, _, ok := d.lookup(name)
	return ok
}

func (d *Dispatcher) lookup(name string) (*Descriptor, []Ordering, bool) {
	if strings.HasPrefix(name, "atomic_") {
		an, ok := parseAtomicName(name)
		if !ok {
			return nil, nil, false
		}
		desc := d.reg.Get("atomic_" + an.op)
		return desc, an.orderings, desc != nil
	}
	desc := d.reg.Get(name)
	return desc, nil, desc != nil
}

// Resolve finds the descriptor for a call and checks its shape: argument
// count, the first argument's family, type arguments and callbacks.
func (d *Dispatcher) Resolve(call Call) (*Invocation, error) {
	desc, orderings, ok := d.lookup(call.Name)
	if !ok {
		return nil, errors.UnknownIntrinsic(call.Name)
	}
	if len(call.Args) != desc.Arity {
		return nil, errors.ArityMismatch(call.Name, desc.Arity, len(call.Args))
	}
	if len(call.Args) > 0 && !desc.Family.Accepts(call.Args[0].Layout) {
		return nil, errors.New(errors.PhaseDispatch, errors.KindArityOrTypeMismatch).
			Intrinsic(call.Name).
			TypeName(call.Args[0].Layout.String()).
			Detail("first argument must be %s", desc.Family).
			Build()
	}
	if desc.TypeArgs >= 0 && len(call.TypeArgs) != desc.TypeArgs {
		return nil, errors.New(errors.PhaseDispatch, errors.KindArityOrTypeMismatch).
			Intrinsic(call.Name).
			Detail("expected %d type arguments, got %d", desc.TypeArgs, len(call.TypeArgs)).
			Value(len(call.TypeArgs)).
			Build()
	}
	if len(call.Callbacks) != desc.Callbacks {
		return nil, errors.New(errors.PhaseDispatch, errors.KindArityOrTypeMismatch).
			Intrinsic(call.Name).
			Detail("expected %d callbacks, got %d", desc.Callbacks, len(call.Callbacks)).
			Value(len(call.Callbacks)).
			Build()
	}
	for i, cb := range call.Callbacks {
		if cb == nil {
			return nil, errors.New(errors.PhaseDispatch, errors.KindArityOrTypeMismatch).
				Intrinsic(call.Name).
				Detail("callback %d is nil", i).
				Build()
		}
	}
	return &Invocation{Desc: desc, Orderings: orderings, Call: call}, nil
}

// Dispatch evaluates one intrinsic call within ctx. Every call spends one
// budget step and one level of nesting for its duration.
func (d *Dispatcher) Dispatch(ctx *Context, call Call) (value.TypedValue, error) {
	inv, err := d.Resolve(call)
	if err != nil {
		return value.TypedValue{}, err
	}

	if err := ctx.enter(); err != nil {
		return value.TypedValue{}, errors.WithIntrinsic(err, call.Name)
	}
	defer ctx.leave()

	if err := ctx.Charge(1); err != nil {
		return value.TypedValue{}, errors.WithIntrinsic(err, call.Name)
	}

	ctx.log.Debug("dispatch",
		zap.String("intrinsic", call.Name),
		zap.Stringer("unit", inv.Desc.Unit),
		zap.Int("depth", ctx.depth),
		zap.Int64("budget", ctx.Remaining()))

	out, err := inv.Desc.Handler.Handle(ctx, inv)
	if err != nil {
		ctx.log.Debug("intrinsic failed",
			zap.String("intrinsic", call.Name),
			zap.Error(err))
		return value.TypedValue{}, errors.WithIntrinsic(err, call.Name)
	}
	return out, nil
}
