// Package consteval is the compile-time abstract machine core: it
// evaluates values the compiler must know before code generation, inside
// a synthetic memory arena that reproduces the target's memory layout.
// This slice covers the trait-object machinery (vtable synthesis) and
// associated-constant resolution; full expression evaluation lives in
// the surrounding driver.
package consteval

import (
	"github.com/google/uuid"

	"github.com/vela-lang/vela/internal/defs"
	"github.com/vela-lang/vela/internal/memory"
	"github.com/vela-lang/vela/internal/target"
	"github.com/vela-lang/vela/internal/traits"
	"github.com/vela-lang/vela/internal/typesystem"
)

// LayoutEngine computes target layout for types. External collaborator.
type LayoutEngine interface {
	// SizeAndAlign returns the byte size and alignment of a type on the
	// current target. Unsized types return an error wrapping ErrUnsized.
	SizeAndAlign(t typesystem.Type) (size, align uint64, err error)
}

// InstanceResolver monomorphizes a generic item into a concrete callable
// symbol. External collaborator.
type InstanceResolver interface {
	Resolve(item defs.ItemID, substs []typesystem.Type) (defs.Instance, error)
}

// DropResolver decides whether a type needs a destructor and resolves
// its drop glue. External collaborator; the vtable synthesizer never
// makes the "needs a destructor" call itself.
type DropResolver interface {
	ResolveDropGlue(t typesystem.Type) (inst defs.Instance, needed bool, err error)
}

// EvalContext is one constant-evaluation session: an exclusively owned
// synthetic memory arena plus the read-only tables and engines the
// machine consults. Single-threaded; a fatal error poisons only the
// constant being evaluated, never the arena of unrelated constants.
type EvalContext struct {
	// ID tags this session in internal-error reports.
	ID uuid.UUID

	Memory    *memory.Memory
	Target    *target.Spec
	Defs      *defs.Registry
	Layout    LayoutEngine
	Instances InstanceResolver
	Drops     DropResolver
	Bridge    *traits.Bridge
	Env       *traits.Env
}

// Config carries the collaborators an EvalContext needs.
type Config struct {
	Target    *target.Spec
	Defs      *defs.Registry
	Layout    LayoutEngine
	Instances InstanceResolver
	Drops     DropResolver
	Selector  traits.Selector
	Env       *traits.Env
}

func NewEvalContext(cfg Config) *EvalContext {
	t := cfg.Target
	if t == nil {
		t = target.Default()
	}
	return &EvalContext{
		ID:        uuid.New(),
		Memory:    memory.New(t),
		Target:    t,
		Defs:      cfg.Defs,
		Layout:    cfg.Layout,
		Instances: cfg.Instances,
		Drops:     cfg.Drops,
		Bridge:    traits.NewBridge(cfg.Selector),
		Env:       cfg.Env,
	}
}
