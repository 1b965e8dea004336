package traits

import (
	"fmt"

	"github.com/vela-lang/vela/internal/defs"
	"github.com/vela-lang/vela/internal/typesystem"
)

// UnifySelector is a unification-based selection engine over a defs
// registry. Each call builds its substitutions from scratch, so queries
// are naturally isolated.
//
// It is deliberately simple: good enough for constant evaluation and for
// tests, with the registry's overlap check guaranteeing at most one
// matching impl for concrete substitutions.
type UnifySelector struct {
	Registry *defs.Registry
}

func NewUnifySelector(r *defs.Registry) *UnifySelector {
	return &UnifySelector{Registry: r}
}

type implMatch struct {
	impl  *defs.ImplDef
	subst typesystem.Subst
}

func (s *UnifySelector) Select(ref Ref, env *Env) (Outcome, error) {
	trait, ok := s.Registry.Trait(ref.Trait)
	if !ok {
		return Outcome{}, fmt.Errorf("select: unknown trait %s", ref.Trait)
	}
	if len(ref.Substs) != trait.ParamCount {
		return Outcome{}, fmt.Errorf("select: trait %s expects %d type arguments, reference has %d",
			ref.Trait, trait.ParamCount, len(ref.Substs))
	}

	// A where-clause bound in scope discharges the obligation without
	// committing to an impl.
	if env != nil {
		for _, b := range env.Bounds {
			if b.Trait != ref.Trait || len(b.Args) != len(ref.Substs) {
				continue
			}
			if typeListsEqual(b.Args, ref.Substs) {
				return Outcome{Kind: SelectedParam}, nil
			}
		}
	}

	var matches []implMatch
	for _, impl := range s.Registry.Implementations(ref.Trait) {
		total := typesystem.Subst{}
		matched := true
		// Rename the impl's variables so they cannot collide with
		// variables in the reference, then unify pairwise.
		for i, target := range impl.TargetTypes {
			renamed := typesystem.RenameTypeVars(target, "inst")
			sub, err := typesystem.Unify(renamed.Apply(total), ref.Substs[i].Apply(total))
			if err != nil {
				matched = false
				break
			}
			total = sub.Compose(total)
		}
		if matched {
			matches = append(matches, implMatch{impl: impl, subst: total})
		}
	}

	if len(matches) == 0 {
		return Outcome{Kind: NotFound}, nil
	}

	// Insufficiently concrete substitutions cannot commit to an impl:
	// an instantiation arriving later may select a different one.
	for _, sub := range ref.Substs {
		if !typesystem.IsConcrete(sub) {
			return Outcome{Kind: Ambiguous}, nil
		}
	}

	if len(matches) > 1 {
		// The registry rejects overlapping impls, so two matches against
		// fully concrete substitutions is an engine bug.
		return Outcome{}, fmt.Errorf("select: %d impls match %s", len(matches), ref)
	}

	return Outcome{Kind: SelectedImpl, Impl: matches[0].impl, Subst: matches[0].subst}, nil
}

func typeListsEqual(a, b []typesystem.Type) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].String() != b[i].String() {
			return false
		}
	}
	return true
}
