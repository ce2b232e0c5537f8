package script

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/wippyai/consteval/errors"
)

// Scenario is one constant to evaluate, written as a straight-line program
// over intrinsic calls.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario checks.
	Description string `yaml:"description"`

	// Types declares named types usable in type spellings.
	Types map[string]TypeDecl `yaml:"types,omitempty"`

	// Functions can be passed to intrinsics as callbacks.
	Functions []Function `yaml:"functions,omitempty"`

	// Steps is the body of the constant.
	Steps []Step `yaml:"steps"`

	// Result names the binding that holds the constant's value. Defaults to
	// the last binding.
	Result string `yaml:"result,omitempty"`

	// Expect is the value or error the constant must produce. Without it
	// the scenario passes whenever evaluation succeeds.
	Expect *Expect `yaml:"expect,omitempty"`
}

// TypeDecl declares a named type.
type TypeDecl struct {
	// Layout is the type's representation, spelled like any other type.
	Layout string `yaml:"layout"`

	// Drop marks the type as having drop glue.
	Drop bool `yaml:"drop,omitempty"`
}

// Function is a callable a step can pass as a callback.
type Function struct {
	Name   string   `yaml:"name"`
	Params []string `yaml:"params,omitempty"`
	Steps  []Step   `yaml:"steps,omitempty"`

	// Return is an operand evaluated after the steps.
	Return any `yaml:"return,omitempty"`
}

// Step is one statement. Exactly one of the action fields is set; Let
// optionally binds the action's value.
type Step struct {
	Let string `yaml:"let,omitempty"`

	// Call dispatches an intrinsic.
	Call      string   `yaml:"call,omitempty"`
	Types     []string `yaml:"types,omitempty"`
	Args      []any    `yaml:"args,omitempty"`
	Callbacks []string `yaml:"callbacks,omitempty"`

	// Ref places a literal in a fresh allocation and yields a pointer.
	Ref *Typed `yaml:"ref,omitempty"`

	// Load reads through a pointer.
	Load *Access `yaml:"load,omitempty"`

	// Store writes through a pointer.
	Store *Access `yaml:"store,omitempty"`

	// Value binds a literal or another binding.
	Value any `yaml:"value,omitempty"`

	// Add and Sub are checked integer arithmetic. Eq compares bytes. Not
	// negates a bool and And is the conjunction of its operands.
	Add []any `yaml:"add,omitempty"`
	Sub []any `yaml:"sub,omitempty"`
	Eq  []any `yaml:"eq,omitempty"`
	And []any `yaml:"and,omitempty"`
	Not any   `yaml:"not,omitempty"`

	// Field projects an aggregate member, as in "$pair.1".
	Field string `yaml:"field,omitempty"`

	// Fail aborts evaluation with the given message when reached.
	Fail string `yaml:"fail,omitempty"`

	// Assert aborts evaluation unless its operand is true.
	Assert any `yaml:"assert,omitempty"`
}

// Typed is a literal with an explicit type.
type Typed struct {
	Type  string `yaml:"type"`
	Value any    `yaml:"value"`
}

// Access describes a load or store through a pointer operand.
type Access struct {
	Ptr   string `yaml:"ptr"`
	Type  string `yaml:"type"`
	Value any    `yaml:"value,omitempty"`
}

// Expect is the outcome a scenario must produce.
type Expect struct {
	// Value is the externalized result: an integer, or a bool.
	Value any `yaml:"value,omitempty"`

	// Error is the error kind evaluation must fail with.
	Error string `yaml:"error,omitempty"`
}

// action names the action a step performs.
func (s *Step) action() (string, int) {
	var name string
	n := 0
	set := func(ok bool, a string) {
		if ok {
			n++
			name = a
		}
	}
	set(s.Call != "", "call")
	set(s.Ref != nil, "ref")
	set(s.Load != nil, "load")
	set(s.Store != nil, "store")
	set(s.Value != nil, "value")
	set(s.Add != nil, "add")
	set(s.Sub != nil, "sub")
	set(s.Eq != nil, "eq")
	set(s.And != nil, "and")
	set(s.Not != nil, "not")
	set(s.Field != "", "field")
	set(s.Fail != "", "fail")
	set(s.Assert != nil, "assert")
	return name, n
}

// Load reads every scenario from a YAML stream. Documents are separated
// by "---". Unknown fields are rejected.
func Load(r io.Reader) ([]*Scenario, error) {
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)

	var out []*Scenario
	for {
		var s Scenario
		err := decoder.Decode(&s)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(errors.PhaseScript, errors.KindInvalidInput, err, "failed to parse YAML")
		}
		if err := validateScenario(&s); err != nil {
			return nil, err
		}
		out = append(out, &s)
	}
	if len(out) == 0 {
		return nil, errors.InvalidInput(errors.PhaseScript, "no scenarios")
	}
	return out, nil
}

// LoadFile reads and validates the scenarios in a YAML file.
func LoadFile(path string) ([]*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseScript, errors.KindInvalidInput, err, "failed to read scenario file")
	}
	scenarios, err := Load(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(errors.PhaseScript, errors.KindInvalidInput, err, path)
	}
	return scenarios, nil
}

// validateScenario checks that required fields are present and that every
// step performs exactly one action.
func validateScenario(s *Scenario) error {
	fail := func(format string, args ...any) error {
		return errors.New(errors.PhaseScript, errors.KindInvalidInput).
			Path(s.Name).
			Detail(format, args...).
			Build()
	}

	if s.Name == "" {
		return fail("name is required")
	}
	if len(s.Steps) == 0 {
		return fail("steps list is required and must be non-empty")
	}
	if s.Expect != nil && (s.Expect.Value == nil) == (s.Expect.Error == "") {
		return fail("expect needs exactly one of value or error")
	}

	seen := make(map[string]bool)
	for i, fn := range s.Functions {
		if fn.Name == "" {
			return fail("functions[%d]: name is required", i)
		}
		if seen[fn.Name] {
			return fail("functions[%d]: duplicate function %q", i, fn.Name)
		}
		seen[fn.Name] = true
	}
	for i, fn := range s.Functions {
		if err := validateSteps(fmt.Sprintf("functions[%d].steps", i), fn.Steps, seen, fail); err != nil {
			return err
		}
	}
	return validateSteps("steps", s.Steps, seen, fail)
}

func validateSteps(where string, steps []Step, funcs map[string]bool, fail func(string, ...any) error) error {
	for i := range steps {
		st := &steps[i]
		name, n := st.action()
		if n != 1 {
			return fail("%s[%d]: expected exactly one action, got %d", where, i, n)
		}
		if name != "call" && (st.Types != nil || st.Args != nil || st.Callbacks != nil) {
			return fail("%s[%d]: types, args and callbacks only apply to call", where, i)
		}
		for _, cb := range st.Callbacks {
			if !funcs[cb] {
				return fail("%s[%d]: callback %q is not a declared function", where, i, cb)
			}
		}
	}
	return nil
}
