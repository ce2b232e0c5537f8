package script

import (
	"fmt"
	"math/big"
	"strings"

	"go.uber.org/zap"

	"github.com/wippyai/consteval/arith"
	"github.com/wippyai/consteval/errors"
	"github.com/wippyai/consteval/intrinsic"
	"github.com/wippyai/consteval/layout"
	"github.com/wippyai/consteval/memory"
	"github.com/wippyai/consteval/value"
)

// Runner evaluates scenarios against a Dispatcher. Each scenario gets a
// fresh Context built from the runner's Config.
type Runner struct {
	d   *intrinsic.Dispatcher
	log *zap.Logger
	cfg intrinsic.Config
}

// NewRunner creates a runner. The config's drop oracle is replaced by the
// scenario's type declarations.
func NewRunner(d *intrinsic.Dispatcher, cfg intrinsic.Config) *Runner {
	log := cfg.Logger
	if log == nil {
		log = Logger()
	}
	return &Runner{d: d, cfg: cfg, log: log}
}

// Result is the outcome of one scenario.
type Result struct {
	// Value is the externalized constant, nil when evaluation failed.
	Value *big.Int

	// Err is the evaluation error, if any.
	Err error

	Name   string
	Want   string
	Spent  int64
	Passed bool
}

// Summary is the serializable form of a Result.
type Summary struct {
	Name   string `json:"name"`
	Value  string `json:"value,omitempty"`
	Error  string `json:"error,omitempty"`
	Kind   string `json:"kind,omitempty"`
	Want   string `json:"want,omitempty"`
	Spent  int64  `json:"spent"`
	Passed bool   `json:"passed"`
}

// Summary returns the serializable form of r.
func (r *Result) Summary() Summary {
	s := Summary{Name: r.Name, Want: r.Want, Spent: r.Spent, Passed: r.Passed}
	if r.Value != nil {
		s.Value = r.Value.String()
	}
	if r.Err != nil {
		s.Error = r.Err.Error()
		s.Kind = string(errors.KindOf(r.Err))
	}
	return s
}

func (r *Result) String() string {
	switch {
	case r.Passed && r.Err == nil:
		return fmt.Sprintf("PASS %s = %s", r.Name, r.Value)
	case r.Passed:
		return fmt.Sprintf("PASS %s = error %s", r.Name, errors.KindOf(r.Err))
	case r.Err != nil:
		return fmt.Sprintf("FAIL %s: %v", r.Name, r.Err)
	default:
		return fmt.Sprintf("FAIL %s: got %s, want %s", r.Name, r.Value, r.Want)
	}
}

// Run evaluates one scenario.
func (r *Runner) Run(s *Scenario) *Result {
	res := &Result{Name: s.Name}

	cfg := r.cfg
	cfg.Drop = dropOracle
	cfg.Logger = r.log
	ctx := intrinsic.NewContext(cfg)

	v, err := r.eval(ctx, s)
	if err == nil {
		res.Value, err = value.Externalize(v)
	}
	res.Err = err
	res.Spent = ctx.Spent()
	res.check(s.Expect)

	r.log.Debug("scenario finished",
		zap.String("name", s.Name),
		zap.String("eval", ctx.ID()),
		zap.Bool("passed", res.Passed),
		zap.Int64("spent", res.Spent),
		zap.Error(res.Err))
	return res
}

// RunAll evaluates scenarios in order.
func (r *Runner) RunAll(scenarios []*Scenario) []*Result {
	out := make([]*Result, len(scenarios))
	for i, s := range scenarios {
		out[i] = r.Run(s)
	}
	return out
}

func (r *Result) check(want *Expect) {
	if want == nil {
		r.Passed = r.Err == nil
		return
	}
	if want.Error != "" {
		r.Want = "error " + want.Error
		r.Passed = r.Err != nil && string(errors.KindOf(r.Err)) == want.Error
		return
	}

	x, err := expectedValue(want.Value)
	if err != nil {
		r.Err = err
		return
	}
	r.Want = x.String()
	r.Passed = r.Err == nil && r.Value.Cmp(x) == 0
}

func expectedValue(v any) (*big.Int, error) {
	switch x := v.(type) {
	case bool:
		if x {
			return big.NewInt(1), nil
		}
		return big.NewInt(0), nil
	case int:
		return big.NewInt(int64(x)), nil
	case uint64:
		return new(big.Int).SetUint64(x), nil
	case string:
		num, _ := splitSuffix(x)
		if n, ok := parseInt(num); ok {
			return n, nil
		}
	}
	return nil, invalid("bad expected value %v", v)
}

// interp evaluates the steps of one scenario.
type interp struct {
	d     *intrinsic.Dispatcher
	named map[string]layout.Type
	funcs map[string]*Function
}

func (r *Runner) eval(ctx *intrinsic.Context, s *Scenario) (value.TypedValue, error) {
	named, err := declareTypes(s.Types)
	if err != nil {
		return value.TypedValue{}, err
	}
	in := &interp{d: r.d, named: named, funcs: make(map[string]*Function)}
	for i := range s.Functions {
		in.funcs[s.Functions[i].Name] = &s.Functions[i]
	}

	f := newFrame()
	if err := in.exec(ctx, f, s.Steps); err != nil {
		return value.TypedValue{}, err
	}

	result := s.Result
	if result == "" {
		if f.last == "" {
			return value.TypedValue{}, invalid("scenario binds no result")
		}
		result = f.last
	}
	return f.lookup(result)
}

func (in *interp) exec(ctx *intrinsic.Context, f *frame, steps []Step) error {
	for i := range steps {
		v, err := in.step(ctx, f, &steps[i])
		if err != nil {
			return err
		}
		if steps[i].Let != "" {
			f.bind(steps[i].Let, v)
		}
	}
	return nil
}

func (in *interp) step(ctx *intrinsic.Context, f *frame, st *Step) (value.TypedValue, error) {
	action, _ := st.action()
	switch action {
	case "call":
		return in.call(ctx, f, st)

	case "ref":
		t, err := parseType(st.Ref.Type, in.named)
		if err != nil {
			return value.TypedValue{}, err
		}
		v, err := f.encode(t.Layout, st.Ref.Value)
		if err != nil {
			return value.TypedValue{}, err
		}
		p, err := value.Materialize(ctx.Arena, v)
		if err != nil {
			return value.TypedValue{}, err
		}
		return value.FromPointer(p), nil

	case "load":
		t, err := parseType(st.Load.Type, in.named)
		if err != nil {
			return value.TypedValue{}, err
		}
		p, err := in.pointer(f, st.Load.Ptr)
		if err != nil {
			return value.TypedValue{}, err
		}
		return value.Load(ctx.Arena, p, t.Layout)

	case "store":
		t, err := parseType(st.Store.Type, in.named)
		if err != nil {
			return value.TypedValue{}, err
		}
		p, err := in.pointer(f, st.Store.Ptr)
		if err != nil {
			return value.TypedValue{}, err
		}
		v, err := f.encode(t.Layout, st.Store.Value)
		if err != nil {
			return value.TypedValue{}, err
		}
		return value.Unit, value.Store(ctx.Arena, p, v)

	case "value":
		return f.untyped(st.Value)

	case "add", "sub":
		ops := st.Add
		fn := arith.AddWithOverflow
		if action == "sub" {
			ops, fn = st.Sub, arith.SubWithOverflow
		}
		return checkedArith(f, action, ops, fn)

	case "eq":
		vs, err := f.operands(st.Eq, nil)
		if err != nil {
			return value.TypedValue{}, err
		}
		if len(vs) != 2 {
			return value.TypedValue{}, invalid("eq takes 2 operands, got %d", len(vs))
		}
		return value.FromBool(vs[0].Equal(vs[1])), nil

	case "and":
		vs, err := f.operands(st.And, nil)
		if err != nil {
			return value.TypedValue{}, err
		}
		all := true
		for _, v := range vs {
			b, err := v.Bool()
			if err != nil {
				return value.TypedValue{}, err
			}
			all = all && b
		}
		return value.FromBool(all), nil

	case "not":
		b, err := f.boolean(st.Not)
		if err != nil {
			return value.TypedValue{}, err
		}
		return value.FromBool(!b), nil

	case "assert":
		b, err := f.boolean(st.Assert)
		if err != nil {
			return value.TypedValue{}, err
		}
		if !b {
			return value.TypedValue{}, errors.New(errors.PhaseEval, errors.KindInvalidData).
				Detail("assertion failed: %v", st.Assert).
				Build()
		}
		return value.FromBool(true), nil

	case "field":
		return f.lookup(st.Field)

	case "fail":
		return value.TypedValue{}, errors.New(errors.PhaseEval, errors.KindInvalidInput).
			Detail("reached fail: %s", st.Fail).
			Build()
	}
	return value.TypedValue{}, invalid("step has no action")
}

func (in *interp) call(ctx *intrinsic.Context, f *frame, st *Step) (value.TypedValue, error) {
	c := intrinsic.Call{Name: st.Call}
	for _, spelling := range st.Types {
		t, err := parseType(spelling, in.named)
		if err != nil {
			return value.TypedValue{}, err
		}
		c.TypeArgs = append(c.TypeArgs, t)
	}

	var fallback *layout.Layout
	if len(c.TypeArgs) > 0 {
		fallback = &c.TypeArgs[0].Layout
	}
	args, err := f.operands(st.Args, fallback)
	if err != nil {
		return value.TypedValue{}, err
	}
	c.Args = args

	for _, name := range st.Callbacks {
		c.Callbacks = append(c.Callbacks, in.callback(in.funcs[name]))
	}
	return in.d.Dispatch(ctx, c)
}

// callback exposes a scenario function to an intrinsic. It runs in a
// fresh frame holding only its parameters.
func (in *interp) callback(fn *Function) intrinsic.Callback {
	return func(ctx *intrinsic.Context, args []value.TypedValue) (value.TypedValue, error) {
		if len(args) != len(fn.Params) {
			return value.TypedValue{}, invalid("function %s takes %d arguments, got %d", fn.Name, len(fn.Params), len(args))
		}
		f := newFrame()
		for i, p := range fn.Params {
			f.bind(p, args[i])
		}
		if err := in.exec(ctx, f, fn.Steps); err != nil {
			return value.TypedValue{}, err
		}
		if fn.Return == nil {
			return value.Unit, nil
		}
		return f.untyped(fn.Return)
	}
}

func (in *interp) pointer(f *frame, ref string) (memory.Pointer, error) {
	v, err := f.lookup(ref)
	if err != nil {
		return memory.Null, err
	}
	return v.Pointer()
}

func checkedArith(f *frame, op string, ops []any, fn func(arith.Width, *big.Int, *big.Int) (*big.Int, bool)) (value.TypedValue, error) {
	vs, err := f.operands(ops, nil)
	if err != nil {
		return value.TypedValue{}, err
	}
	if len(vs) != 2 {
		return value.TypedValue{}, invalid("%s takes 2 operands, got %d", op, len(vs))
	}
	l := vs[0].Layout
	if !vs[1].Layout.SameScalar(l) {
		return value.TypedValue{}, errors.TypeMismatch(errors.PhaseEval, vs[1].Layout.String(), op+" operands must both be "+l.String())
	}
	w, err := arith.WidthOf(l)
	if err != nil {
		return value.TypedValue{}, err
	}
	a, err := vs[0].Big()
	if err != nil {
		return value.TypedValue{}, err
	}
	b, err := vs[1].Big()
	if err != nil {
		return value.TypedValue{}, err
	}
	res, overflow := fn(w, a, b)
	if overflow {
		return value.TypedValue{}, errors.New(errors.PhaseEval, errors.KindOverflow).
			TypeName(l.String()).
			Detail("attempt to %s with overflow", op).
			Build()
	}
	return value.FromBig(l, res), nil
}

// Report renders results one line each, in order.
func Report(results []*Result) string {
	var b strings.Builder
	for _, r := range results {
		b.WriteString(r.String())
		b.WriteByte('\n')
	}
	return b.String()
}

// Failed returns the number of results that did not pass.
func Failed(results []*Result) int {
	n := 0
	for _, r := range results {
		if !r.Passed {
			n++
		}
	}
	return n
}
