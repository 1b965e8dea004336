// Package traits is the constant evaluator's bridge into trait
// selection. The evaluator needs one narrow operation — "given a trait
// reference and an environment, which implementation applies?" — so the
// selection engine hides behind the Selector interface and the two sides
// can be built and tested independently.
package traits

import (
	"fmt"
	"strings"

	"github.com/vela-lang/vela/internal/defs"
	"github.com/vela-lang/vela/internal/typesystem"
)

// Ref is a trait reference: a trait plus the concrete type arguments
// applied to it. Substs[0] is the erased self type — if an object
// Foo<Trait> is made from a value of type Foo<T>, the Ref maps T: Trait.
type Ref struct {
	Trait  string
	Substs []typesystem.Type
}

// SelfType returns the erased self type of the reference.
func (r Ref) SelfType() typesystem.Type {
	if len(r.Substs) == 0 {
		return nil
	}
	return r.Substs[0]
}

func (r Ref) String() string {
	args := make([]string, len(r.Substs))
	for i, s := range r.Substs {
		args[i] = s.String()
	}
	return fmt.Sprintf("%s<%s>", r.Trait, strings.Join(args, ", "))
}

// Bound is one in-scope generic bound (a where-clause obligation already
// assumed to hold).
type Bound struct {
	Trait string
	Args  []typesystem.Type
}

// Env is the compilation environment selection runs under: the generic
// bounds in scope at the point of the obligation. Read-only.
type Env struct {
	Bounds []Bound
}

// OutcomeKind classifies a selection result.
type OutcomeKind uint8

const (
	// SelectedImpl means selection committed to a concrete trait impl.
	SelectedImpl OutcomeKind = iota
	// SelectedParam means the obligation is discharged by a generic
	// bound in the environment, not a concrete impl. Resolution cannot
	// proceed until the bound is further specialized.
	SelectedParam
	// Ambiguous means the substitutions are not concrete enough to pick
	// an implementation yet. Not an error: more type information may
	// arrive after monomorphization.
	Ambiguous
	// NotFound means no implementation applies, or the selection engine
	// gave up. The bridge does not distinguish the two.
	NotFound
)

func (k OutcomeKind) String() string {
	switch k {
	case SelectedImpl:
		return "impl"
	case SelectedParam:
		return "param"
	case Ambiguous:
		return "ambiguous"
	case NotFound:
		return "not found"
	default:
		return "unknown"
	}
}

// Outcome is the result of one selection.
type Outcome struct {
	Kind  OutcomeKind
	Impl  *defs.ImplDef    // set for SelectedImpl
	Subst typesystem.Subst // unifier mapping the impl's vars, for SelectedImpl
}

// Selector is the external trait selection engine. Implementations must
// treat each call as an isolated query: no inference state may leak from
// one Select to the next.
type Selector interface {
	Select(ref Ref, env *Env) (Outcome, error)
}

// Bridge wraps a Selector for use by the evaluator. Any internal
// selection failure is folded into NotFound: from the evaluator's side
// "definitely no impl" and "selection gave up" both mean the constant
// cannot be evaluated at this point, and the caller decides whether the
// value is needed yet.
type Bridge struct {
	selector Selector
}

func NewBridge(s Selector) *Bridge {
	return &Bridge{selector: s}
}

func (b *Bridge) Select(ref Ref, env *Env) Outcome {
	out, err := b.selector.Select(ref, env)
	if err != nil {
		return Outcome{Kind: NotFound}
	}
	return out
}
