package consteval

import (
	"errors"
	"fmt"

	"github.com/vela-lang/vela/internal/defs"
	"github.com/vela-lang/vela/internal/memory"
	"github.com/vela-lang/vela/internal/traits"
	"github.com/vela-lang/vela/internal/typesystem"
)

// Vtable layout, for pointer width P:
//
//	offset 0      drop-glue pointer (null pattern when no destructor)
//	offset P      byte size of the concrete type
//	offset 2P     byte alignment of the concrete type
//	offset 3P+iP  pointer to trait method i, in trait declaration order
//
// Total size is P*(3+method_count). Slots of methods that cannot be
// called through the object (non-object-safe) are left at the all-zero
// fill; ReadMethodInstance reports them as unreachable instead of
// decoding garbage.

// SynthesizeVtable creates a vtable for the given concrete type and
// trait reference. This is used only for trait objects.
//
// The trait reference encodes the erased self type: when an object
// Foo<Trait> is made from a value of type Foo<T>, ref maps T: Trait. The
// concrete type must be sized — a trait object can only erase an
// already-sized type.
//
// The returned allocation is marked permanently initialized and
// immutable; no further writes are permitted.
func (ec *EvalContext) SynthesizeVtable(concrete typesystem.Type, ref traits.Ref) (memory.Pointer, error) {
	size, align, err := ec.Layout.SizeAndAlign(concrete)
	if err != nil {
		if errors.Is(err, ErrUnsized) {
			return memory.Pointer{}, internalErrorf("session %s: can't create a vtable for unsized type %s", ec.ID, concrete)
		}
		return memory.Pointer{}, err
	}

	trait, ok := ec.Defs.Trait(ref.Trait)
	if !ok {
		return memory.Pointer{}, internalErrorf("session %s: vtable for unknown trait %s", ec.ID, ref.Trait)
	}
	methods := trait.Methods

	ptrSize := ec.Memory.PointerSize()
	vtable, err := ec.Memory.Allocate(ptrSize*uint64(3+len(methods)), ptrSize)
	if err != nil {
		return memory.Pointer{}, err
	}

	dropInst, needed, err := ec.Drops.ResolveDropGlue(concrete)
	if err != nil {
		return memory.Pointer{}, err
	}
	dropVal := memory.BytesVal(0)
	if needed {
		dropVal = memory.PtrVal(ec.Memory.AllocateFunction(dropInst))
	}
	if err := ec.Memory.WritePtrSized(vtable, dropVal); err != nil {
		return memory.Pointer{}, err
	}

	sizePtr, err := ec.Memory.PointerOffset(vtable, ptrSize)
	if err != nil {
		return memory.Pointer{}, err
	}
	if err := ec.Memory.WritePtrSized(sizePtr, memory.BytesVal(size)); err != nil {
		return memory.Pointer{}, err
	}
	alignPtr, err := ec.Memory.PointerOffset(vtable, ptrSize*2)
	if err != nil {
		return memory.Pointer{}, err
	}
	if err := ec.Memory.WritePtrSized(alignPtr, memory.BytesVal(align)); err != nil {
		return memory.Pointer{}, err
	}

	for i, method := range methods {
		if !method.ObjectSafe {
			// The slot stays at the zero fill; nothing can ever call it
			// through the object.
			continue
		}
		inst, err := ec.Instances.Resolve(method.Item, ref.Substs)
		if err != nil {
			return memory.Pointer{}, err
		}
		fnPtr := ec.Memory.AllocateFunction(inst)
		methodPtr, err := ec.Memory.PointerOffset(vtable, ptrSize*uint64(3+i))
		if err != nil {
			return memory.Pointer{}, err
		}
		if err := ec.Memory.WritePtrSized(methodPtr, memory.PtrVal(fnPtr)); err != nil {
			return memory.Pointer{}, err
		}
	}

	if err := ec.Memory.MarkStaticInitialized(vtable.Alloc, memory.Immutable); err != nil {
		return memory.Pointer{}, err
	}

	return vtable, nil
}

// ReadDropInstance reads the drop-glue slot of a vtable. The all-zero
// pattern means the erased type needs no destructor.
func (ec *EvalContext) ReadDropInstance(vtable memory.Pointer) (defs.Instance, bool, error) {
	v, err := ec.Memory.ReadPtrSized(vtable)
	if err != nil {
		return defs.Instance{}, false, err
	}
	switch {
	case v.IsBytes() && v.Data == 0:
		// Some values don't need to call a drop impl, so the slot is null.
		return defs.Instance{}, false, nil
	case v.IsPtr():
		inst, err := ec.Memory.Function(v.Ptr)
		if err != nil {
			return defs.Instance{}, false, err
		}
		return inst, true, nil
	default:
		return defs.Instance{}, false, fmt.Errorf("%w: drop slot holds 0x%x", ErrReadBytesAsPointer, v.Data)
	}
}

// ReadSizeAndAlign reads the size and alignment fields of a vtable. No
// validation beyond a successful decode: callers trust the producer
// invariant.
func (ec *EvalContext) ReadSizeAndAlign(vtable memory.Pointer) (uint64, uint64, error) {
	ptrSize := ec.Memory.PointerSize()

	sizePtr, err := ec.Memory.PointerOffset(vtable, ptrSize)
	if err != nil {
		return 0, 0, err
	}
	sizeVal, err := ec.Memory.ReadPtrSized(sizePtr)
	if err != nil {
		return 0, 0, err
	}
	size, err := sizeVal.ToBytes()
	if err != nil {
		return 0, 0, err
	}

	alignPtr, err := ec.Memory.PointerOffset(vtable, ptrSize*2)
	if err != nil {
		return 0, 0, err
	}
	alignVal, err := ec.Memory.ReadPtrSized(alignPtr)
	if err != nil {
		return 0, 0, err
	}
	align, err := alignVal.ToBytes()
	if err != nil {
		return 0, 0, err
	}

	return size, align, nil
}

// ReadMethodInstance reads method slot i of a vtable. A zero slot is a
// method that was never populated (not object-safe); calling it through
// the object is a fatal error on the caller's side.
func (ec *EvalContext) ReadMethodInstance(vtable memory.Pointer, i int) (defs.Instance, error) {
	ptrSize := ec.Memory.PointerSize()
	slotPtr, err := ec.Memory.PointerOffset(vtable, ptrSize*uint64(3+i))
	if err != nil {
		return defs.Instance{}, err
	}
	v, err := ec.Memory.ReadPtrSized(slotPtr)
	if err != nil {
		return defs.Instance{}, err
	}
	switch {
	case v.IsBytes() && v.Data == 0:
		return defs.Instance{}, fmt.Errorf("%w: slot %d of %s", ErrUnreachableSlot, i, vtable)
	case v.IsPtr():
		return ec.Memory.Function(v.Ptr)
	default:
		return defs.Instance{}, fmt.Errorf("%w: method slot %d holds 0x%x", ErrReadBytesAsPointer, i, v.Data)
	}
}
