package intrinsic

import (
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wippyai/consteval/errors"
	"github.com/wippyai/consteval/layout"
	"github.com/wippyai/consteval/memory"
)

// Config bounds one constant evaluation.
type Config struct {
	// Drop answers needs_drop. Nil means no type needs drop.
	Drop layout.DropOracle

	// Logger receives per-call debug output. Nil means the package logger.
	Logger *zap.Logger

	// MaxDepth is the deepest allowed nesting of Dispatch calls, counting
	// reentry through const_eval_select callbacks.
	MaxDepth int

	// Budget is the number of work steps the evaluation may spend. Every
	// call costs one step; byte copies and fills cost one more per
	// CopyChunk bytes.
	Budget int64

	// CopyChunk is the number of bytes moved per budget step.
	CopyChunk uint64

	// ArenaLimit caps the bytes held by live allocations.
	ArenaLimit uint64
}

// DefaultConfig returns default evaluation limits.
func DefaultConfig() Config {
	return Config{
		MaxDepth:   64,
		Budget:     1_000_000,
		CopyChunk:  4096,
		ArenaLimit: 64 << 20,
	}
}

// Context is the state of one top-level constant evaluation: its arena,
// recursion depth and remaining budget. It is never shared between
// evaluations.
type Context struct {
	Arena *memory.Arena
	drop  layout.DropOracle
	log   *zap.Logger
	id    string
	cfg   Config
	depth int
	spent int64
}

// NewContext creates a fresh evaluation context with an empty arena.
func NewContext(cfg Config) *Context {
	def := DefaultConfig()
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = def.MaxDepth
	}
	if cfg.Budget <= 0 {
		cfg.Budget = def.Budget
	}
	if cfg.CopyChunk == 0 {
		cfg.CopyChunk = def.CopyChunk
	}
	if cfg.ArenaLimit == 0 {
		cfg.ArenaLimit = def.ArenaLimit
	}

	drop := cfg.Drop
	if drop == nil {
		drop = layout.Trivial
	}
	log := cfg.Logger
	if log == nil {
		log = Logger()
	}

	id := uuid.Must(uuid.NewV7()).String()
	return &Context{
		Arena: memory.NewArena(cfg.ArenaLimit),
		drop:  drop,
		log:   log.With(zap.String("eval", id)),
		id:    id,
		cfg:   cfg,
	}
}

// ID returns the evaluation's unique id.
func (c *Context) ID() string { return c.id }

// Depth returns the current Dispatch nesting depth.
func (c *Context) Depth() int { return c.depth }

// Spent returns the number of budget steps consumed so far.
func (c *Context) Spent() int64 { return c.spent }

// Remaining returns the number of budget steps left.
func (c *Context) Remaining() int64 { return c.cfg.Budget - c.spent }

// Config returns the limits this context was created with.
func (c *Context) Config() Config { return c.cfg }

// Drop returns the drop oracle.
func (c *Context) Drop() layout.DropOracle { return c.drop }

// Log returns the context's logger.
func (c *Context) Log() *zap.Logger { return c.log }

// Charge spends steps from the budget.
func (c *Context) Charge(steps int64) error {
	c.spent += steps
	if c.spent > c.cfg.Budget {
		return errors.BudgetExceeded(c.spent)
	}
	return nil
}

// ChargeBytes spends one step per CopyChunk bytes, rounded up.
func (c *Context) ChargeBytes(n uint64) error {
	if n == 0 {
		return nil
	}
	steps := n / c.cfg.CopyChunk
	if n%c.cfg.CopyChunk != 0 {
		steps++
	}
	if steps > uint64(c.cfg.Budget) {
		steps = uint64(c.cfg.Budget) + 1
	}
	return c.Charge(int64(steps))
}

// enter increments the nesting depth; leave must follow on every path.
func (c *Context) enter() error {
	if c.depth >= c.cfg.MaxDepth {
		return errors.RecursionLimit(c.cfg.MaxDepth)
	}
	c.depth++
	return nil
}

func (c *Context) leave() {
	c.depth--
}
