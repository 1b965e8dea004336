package consteval

import (
	"errors"
	"testing"

	"github.com/vela-lang/vela/internal/defs"
	"github.com/vela-lang/vela/internal/traits"
	"github.com/vela-lang/vela/internal/typesystem"
)

// constFixture models:
//
//	trait Bounded { const MAX: Int; const BIAS: Int = 5 }
//	impl Bounded for Int  { const MAX: Int = 7 }   // no BIAS override
//	impl Bounded for Bool { }                      // no overrides at all
//	impl Bounded for List<a> { const MAX: Int = 0 }
type constFixture struct {
	ctx      *EvalContext
	max      defs.ItemID // trait-declared, no default
	bias     defs.ItemID // trait-declared, default body
	intMax   defs.ItemID // Int impl override
	listMax  defs.ItemID // List<a> impl override
	free     defs.ItemID
	inherent defs.ItemID
}

func newConstFixture(t *testing.T, env *traits.Env) *constFixture {
	t.Helper()
	r := defs.NewRegistry()
	if err := r.DefineTrait("Bounded", 1); err != nil {
		t.Fatalf("DefineTrait: %v", err)
	}
	max := r.DefineTraitConst("Bounded", "MAX", false)
	bias := r.DefineTraitConst("Bounded", "BIAS", true)

	intImpl, err := r.RegisterImpl("Bounded", []typesystem.Type{typesystem.TCon{Name: "Int"}})
	if err != nil {
		t.Fatalf("RegisterImpl Int: %v", err)
	}
	intMax := r.DefineImplConst(intImpl, "MAX")

	if _, err := r.RegisterImpl("Bounded", []typesystem.Type{typesystem.TCon{Name: "Bool"}}); err != nil {
		t.Fatalf("RegisterImpl Bool: %v", err)
	}

	listImpl, err := r.RegisterImpl("Bounded", []typesystem.Type{
		typesystem.TApp{Constructor: typesystem.TCon{Name: "List"}, Args: []typesystem.Type{typesystem.TVar{Name: "a"}}},
	})
	if err != nil {
		t.Fatalf("RegisterImpl List: %v", err)
	}
	listMax := r.DefineImplConst(listImpl, "MAX")

	free := r.DefineFreeConst("LIMIT")
	inherent := r.DefineInherentConst("ZERO")

	ctx := NewEvalContext(Config{
		Defs:      r,
		Layout:    fakeLayout{},
		Instances: fakeInstances{},
		Drops:     fakeDrops{},
		Selector:  traits.NewUnifySelector(r),
		Env:       env,
	})
	return &constFixture{
		ctx: ctx, max: max, bias: bias,
		intMax: intMax, listMax: listMax,
		free: free, inherent: inherent,
	}
}

func intSubsts() []typesystem.Type {
	return []typesystem.Type{typesystem.TCon{Name: "Int"}}
}

func TestResolveConcreteImplWins(t *testing.T) {
	f := newConstFixture(t, nil)

	item, _, ok, err := f.ctx.ResolveAssociatedConst(f.max, intSubsts())
	if err != nil {
		t.Fatalf("ResolveAssociatedConst: %v", err)
	}
	if !ok {
		t.Fatalf("resolution deferred, want resolved")
	}
	if item != f.intMax {
		t.Errorf("resolved item = %d, want impl override %d", item, f.intMax)
	}
}

func TestResolveDefaultOnlyKeepsOriginalReference(t *testing.T) {
	f := newConstFixture(t, nil)

	// The Int impl has no BIAS override, the trait default has a body:
	// resolution returns the original reference so evaluation later reads
	// the trait-level default.
	item, substs, ok, err := f.ctx.ResolveAssociatedConst(f.bias, intSubsts())
	if err != nil {
		t.Fatalf("ResolveAssociatedConst: %v", err)
	}
	if !ok {
		t.Fatalf("resolution deferred, want resolved")
	}
	if item != f.bias {
		t.Errorf("resolved item = %d, want original %d", item, f.bias)
	}
	if len(substs) != 1 || substs[0].String() != "Int" {
		t.Errorf("resolved substs = %v, want original [Int]", substs)
	}
}

func TestResolveNoDefaultNoOverrideDefers(t *testing.T) {
	f := newConstFixture(t, nil)

	// Bool impl provides nothing and MAX has no default body.
	_, _, ok, err := f.ctx.ResolveAssociatedConst(f.max, []typesystem.Type{typesystem.TCon{Name: "Bool"}})
	if err != nil {
		t.Fatalf("ResolveAssociatedConst: %v", err)
	}
	if ok {
		t.Errorf("resolution succeeded, want deferred/absent")
	}
}

func TestResolveAmbiguousDefers(t *testing.T) {
	f := newConstFixture(t, nil)

	_, _, ok, err := f.ctx.ResolveAssociatedConst(f.max, []typesystem.Type{typesystem.TVar{Name: "T"}})
	if err != nil {
		t.Fatalf("ResolveAssociatedConst: %v", err)
	}
	if ok {
		t.Errorf("ambiguous resolution succeeded, want deferred")
	}
}

func TestResolveParamBoundDefers(t *testing.T) {
	self := typesystem.TVar{Name: "T"}
	env := &traits.Env{Bounds: []traits.Bound{{Trait: "Bounded", Args: []typesystem.Type{self}}}}
	f := newConstFixture(t, env)

	_, _, ok, err := f.ctx.ResolveAssociatedConst(f.max, []typesystem.Type{self})
	if err != nil {
		t.Fatalf("ResolveAssociatedConst: %v", err)
	}
	if ok {
		t.Errorf("bound-only resolution succeeded, want deferred")
	}
}

func TestResolveFreeAndInherentUnchanged(t *testing.T) {
	f := newConstFixture(t, nil)

	for _, id := range []defs.ItemID{f.free, f.inherent} {
		item, substs, ok, err := f.ctx.ResolveAssociatedConst(id, nil)
		if err != nil {
			t.Fatalf("ResolveAssociatedConst(%d): %v", id, err)
		}
		if !ok || item != id || substs != nil {
			t.Errorf("ResolveAssociatedConst(%d) = %d, %v, %v; want input unchanged", id, item, substs, ok)
		}
	}
}

func TestResolveImplConstDirectReferenceUnchanged(t *testing.T) {
	f := newConstFixture(t, nil)

	// A direct reference to the impl's own item is already concrete.
	item, _, ok, err := f.ctx.ResolveAssociatedConst(f.intMax, intSubsts())
	if err != nil {
		t.Fatalf("ResolveAssociatedConst: %v", err)
	}
	if !ok || item != f.intMax {
		t.Errorf("resolved = %d, %v; want input unchanged", item, ok)
	}
}

// Pins the known simplification: the found impl item comes back with its
// own identity substitutions, not substitutions derived from the call.
func TestResolveImplConstUsesIdentitySubsts(t *testing.T) {
	f := newConstFixture(t, nil)

	listOfInt := typesystem.TApp{
		Constructor: typesystem.TCon{Name: "List"},
		Args:        []typesystem.Type{typesystem.TCon{Name: "Int"}},
	}
	item, substs, ok, err := f.ctx.ResolveAssociatedConst(f.max, []typesystem.Type{listOfInt})
	if err != nil {
		t.Fatalf("ResolveAssociatedConst: %v", err)
	}
	if !ok || item != f.listMax {
		t.Fatalf("resolved = %d, %v; want List impl override %d", item, ok, f.listMax)
	}
	if len(substs) != 1 || substs[0].String() != "a" {
		t.Errorf("substs = %v, want identity [a] (not derived from List<Int>)", substs)
	}
}

func TestAssociatedConstInstance(t *testing.T) {
	f := newConstFixture(t, nil)

	inst, err := f.ctx.AssociatedConstInstance(f.max, intSubsts())
	if err != nil {
		t.Fatalf("AssociatedConstInstance: %v", err)
	}
	if inst.Item != f.intMax {
		t.Errorf("instance item = %d, want %d", inst.Item, f.intMax)
	}

	// Needed-now semantics: a deferred value is an unimplemented trait
	// selection error.
	_, err = f.ctx.AssociatedConstInstance(f.max, []typesystem.Type{typesystem.TCon{Name: "Bool"}})
	if !errors.Is(err, ErrUnimplementedTraitSelection) {
		t.Errorf("error = %v, want ErrUnimplementedTraitSelection", err)
	}
}

// weirdSelector reports an outcome kind the bridge contract rules out.
type weirdSelector struct{}

func (weirdSelector) Select(traits.Ref, *traits.Env) (traits.Outcome, error) {
	return traits.Outcome{Kind: traits.OutcomeKind(99)}, nil
}

func TestResolveUnexpectedOutcomeIsInternalError(t *testing.T) {
	f := newConstFixture(t, nil)
	f.ctx.Bridge = traits.NewBridge(weirdSelector{})

	_, _, _, err := f.ctx.ResolveAssociatedConst(f.max, intSubsts())
	if !errors.Is(err, ErrInternal) {
		t.Errorf("error = %v, want ErrInternal", err)
	}
}
