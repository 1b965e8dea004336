package consteval

import (
	"errors"
	"fmt"
	"testing"

	"github.com/vela-lang/vela/internal/defs"
	"github.com/vela-lang/vela/internal/memory"
	"github.com/vela-lang/vela/internal/target"
	"github.com/vela-lang/vela/internal/traits"
	"github.com/vela-lang/vela/internal/typesystem"
)

// fakeLayout serves sizes keyed by type name; unknown types are unsized.
type fakeLayout map[string][2]uint64

func (f fakeLayout) SizeAndAlign(t typesystem.Type) (uint64, uint64, error) {
	if sa, ok := f[t.String()]; ok {
		return sa[0], sa[1], nil
	}
	return 0, 0, fmt.Errorf("%w: %s", ErrUnsized, t)
}

// fakeInstances monomorphizes by pairing the item with the substitutions.
type fakeInstances struct{}

func (fakeInstances) Resolve(item defs.ItemID, substs []typesystem.Type) (defs.Instance, error) {
	return defs.NewInstance(item, substs), nil
}

// fakeDrops serves drop glue for the named types only.
type fakeDrops struct {
	glue map[string]defs.Instance
}

func (f fakeDrops) ResolveDropGlue(t typesystem.Type) (defs.Instance, bool, error) {
	inst, ok := f.glue[t.String()]
	return inst, ok, nil
}

type fixture struct {
	ctx      *EvalContext
	registry *defs.Registry
	area     defs.ItemID
	name     defs.ItemID
	clone    defs.ItemID
	dropGlue defs.ItemID
}

func newFixture(t *testing.T, spec *target.Spec) *fixture {
	t.Helper()
	r := defs.NewRegistry()
	if err := r.DefineTrait("Shape", 1); err != nil {
		t.Fatalf("DefineTrait: %v", err)
	}
	// Declaration order is vtable order: area, name, clone.
	area := r.DefineTraitMethod("Shape", "area", true)
	name := r.DefineTraitMethod("Shape", "name", true)
	clone := r.DefineTraitMethod("Shape", "clone", false) // not object-safe

	if _, err := r.RegisterImpl("Shape", []typesystem.Type{typesystem.TCon{Name: "Circle"}}); err != nil {
		t.Fatalf("RegisterImpl: %v", err)
	}

	dropGlue := r.DefineDropGlue("drop_in_place<Circle>")

	ctx := NewEvalContext(Config{
		Target: spec,
		Defs:   r,
		Layout: fakeLayout{
			"Circle": {24, 8},
			"Unit":   {0, 1},
		},
		Instances: fakeInstances{},
		Drops: fakeDrops{glue: map[string]defs.Instance{
			"Circle": defs.NewInstance(dropGlue, nil),
		}},
		Selector: traits.NewUnifySelector(r),
	})
	return &fixture{ctx: ctx, registry: r, area: area, name: name, clone: clone, dropGlue: dropGlue}
}

func circleRef() traits.Ref {
	return traits.Ref{Trait: "Shape", Substs: []typesystem.Type{typesystem.TCon{Name: "Circle"}}}
}

func TestVtableHeaderLayout(t *testing.T) {
	f := newFixture(t, nil)
	circle := typesystem.TCon{Name: "Circle"}

	vt, err := f.ctx.SynthesizeVtable(circle, circleRef())
	if err != nil {
		t.Fatalf("SynthesizeVtable: %v", err)
	}

	// Exactly P*(3+N) bytes for N = 3 declared methods.
	gotSize, err := f.ctx.Memory.AllocationSize(vt.Alloc)
	if err != nil {
		t.Fatalf("AllocationSize: %v", err)
	}
	if want := uint64(8 * (3 + 3)); gotSize != want {
		t.Errorf("vtable size = %d, want %d", gotSize, want)
	}

	// Size and align read back as the layout engine computed them.
	size, align, err := f.ctx.ReadSizeAndAlign(vt)
	if err != nil {
		t.Fatalf("ReadSizeAndAlign: %v", err)
	}
	if size != 24 || align != 8 {
		t.Errorf("size, align = %d, %d; want 24, 8", size, align)
	}
}

func TestVtableDropRoundTrip(t *testing.T) {
	f := newFixture(t, nil)

	vt, err := f.ctx.SynthesizeVtable(typesystem.TCon{Name: "Circle"}, circleRef())
	if err != nil {
		t.Fatalf("SynthesizeVtable: %v", err)
	}
	inst, needed, err := f.ctx.ReadDropInstance(vt)
	if err != nil {
		t.Fatalf("ReadDropInstance: %v", err)
	}
	if !needed {
		t.Fatalf("Circle needs a destructor")
	}
	if inst.Item != f.dropGlue {
		t.Errorf("drop instance item = %d, want %d", inst.Item, f.dropGlue)
	}
}

func TestVtableNoDropIsNull(t *testing.T) {
	f := newFixture(t, nil)

	// Unit has layout but no drop glue registered.
	ref := traits.Ref{Trait: "Shape", Substs: []typesystem.Type{typesystem.TCon{Name: "Unit"}}}
	vt, err := f.ctx.SynthesizeVtable(typesystem.TCon{Name: "Unit"}, ref)
	if err != nil {
		t.Fatalf("SynthesizeVtable: %v", err)
	}
	if _, needed, err := f.ctx.ReadDropInstance(vt); err != nil || needed {
		t.Errorf("ReadDropInstance = needed %v, err %v; want no destructor", needed, err)
	}
}

func TestVtableMethodSlotOrder(t *testing.T) {
	f := newFixture(t, nil)
	ref := circleRef()

	vt, err := f.ctx.SynthesizeVtable(typesystem.TCon{Name: "Circle"}, ref)
	if err != nil {
		t.Fatalf("SynthesizeVtable: %v", err)
	}

	// Slots follow trait declaration order: area, name.
	for i, want := range []defs.ItemID{f.area, f.name} {
		inst, err := f.ctx.ReadMethodInstance(vt, i)
		if err != nil {
			t.Fatalf("ReadMethodInstance(%d): %v", i, err)
		}
		if inst.Item != want {
			t.Errorf("slot %d item = %d, want %d", i, inst.Item, want)
		}
		// Monomorphized against the reference's substitutions.
		if len(inst.Substs) != 1 || inst.Substs[0].String() != "Circle" {
			t.Errorf("slot %d substs = %v, want [Circle]", i, inst.Substs)
		}
	}
}

func TestVtableUnwrittenSlot(t *testing.T) {
	f := newFixture(t, nil)

	vt, err := f.ctx.SynthesizeVtable(typesystem.TCon{Name: "Circle"}, circleRef())
	if err != nil {
		t.Fatalf("SynthesizeVtable: %v", err)
	}
	// clone is not object-safe: slot 2 was never written and reads as
	// the zero fill, reported as unreachable.
	if _, err := f.ctx.ReadMethodInstance(vt, 2); !errors.Is(err, ErrUnreachableSlot) {
		t.Errorf("unwritten slot error = %v, want ErrUnreachableSlot", err)
	}
}

func TestVtableImmutableAfterSynthesis(t *testing.T) {
	f := newFixture(t, nil)

	vt, err := f.ctx.SynthesizeVtable(typesystem.TCon{Name: "Circle"}, circleRef())
	if err != nil {
		t.Fatalf("SynthesizeVtable: %v", err)
	}
	err = f.ctx.Memory.WritePtrSized(vt, memory.BytesVal(0xBAD))
	if !errors.Is(err, memory.ErrImmutableWrite) {
		t.Errorf("write after synthesis error = %v, want ErrImmutableWrite", err)
	}
}

func TestVtableUnsizedTypeIsInternalError(t *testing.T) {
	f := newFixture(t, nil)

	// "Slice" has no layout entry, so the layout engine reports unsized.
	ref := traits.Ref{Trait: "Shape", Substs: []typesystem.Type{typesystem.TCon{Name: "Slice"}}}
	_, err := f.ctx.SynthesizeVtable(typesystem.TCon{Name: "Slice"}, ref)
	if !errors.Is(err, ErrInternal) {
		t.Errorf("unsized vtable error = %v, want ErrInternal", err)
	}
}

func TestVtable32BitLayout(t *testing.T) {
	spec := &target.Spec{Name: "vela32", PointerSize: 4, ByteOrder: "little"}
	f := newFixture(t, spec)

	vt, err := f.ctx.SynthesizeVtable(typesystem.TCon{Name: "Circle"}, circleRef())
	if err != nil {
		t.Fatalf("SynthesizeVtable: %v", err)
	}
	gotSize, err := f.ctx.Memory.AllocationSize(vt.Alloc)
	if err != nil {
		t.Fatalf("AllocationSize: %v", err)
	}
	if want := uint64(4 * (3 + 3)); gotSize != want {
		t.Errorf("32-bit vtable size = %d, want %d", gotSize, want)
	}
	size, align, err := f.ctx.ReadSizeAndAlign(vt)
	if err != nil {
		t.Fatalf("ReadSizeAndAlign: %v", err)
	}
	if size != 24 || align != 8 {
		t.Errorf("size, align = %d, %d; want 24, 8", size, align)
	}
}

func TestReadDropRejectsNonPointerBytes(t *testing.T) {
	f := newFixture(t, nil)

	// A hand-built "vtable" whose drop slot holds a non-null integer.
	p, err := f.ctx.Memory.Allocate(8*3, 8)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if err := f.ctx.Memory.WritePtrSized(p, memory.BytesVal(0x1234)); err != nil {
		t.Fatalf("WritePtrSized: %v", err)
	}
	if _, _, err := f.ctx.ReadDropInstance(p); !errors.Is(err, ErrReadBytesAsPointer) {
		t.Errorf("bad drop slot error = %v, want ErrReadBytesAsPointer", err)
	}
}
