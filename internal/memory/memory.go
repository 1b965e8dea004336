// Package memory implements the synthetic memory arena the constant
// evaluator runs against. Every pointer the evaluator manipulates is a
// handle into this arena, never a real address: allocations are
// byte-addressable regions identified by an opaque id, and pointer
// values stored in them are tracked out-of-band so an integer
// bit-pattern can never silently become a pointer.
//
// An arena is exclusively owned by one evaluation thread; nothing here
// is synchronized. Allocations live for the whole compilation session —
// evaluated constants are baked into the final binary, so their backing
// memory must persist.
package memory

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/vela-lang/vela/internal/defs"
	"github.com/vela-lang/vela/internal/target"
)

var (
	// ErrOutOfBounds reports offset arithmetic or an access past the
	// declared size of an allocation. Always an internal invariant
	// violation, never user-facing.
	ErrOutOfBounds = errors.New("pointer out of bounds")

	// ErrImmutableWrite reports a write to a permanently-initialized
	// immutable allocation.
	ErrImmutableWrite = errors.New("write to immutable static memory")

	// ErrDanglingPointer reports a pointer whose allocation is unknown
	// to this arena (wrong arena, or never allocated).
	ErrDanglingPointer = errors.New("dangling or foreign pointer")

	// ErrNotAFunction reports a pointer that was expected to name a
	// function allocation but does not.
	ErrNotAFunction = errors.New("pointer is not a function pointer")

	// ErrPartialPointer reports a scalar read that overlaps part of a
	// stored pointer. Pointer bytes have no integer meaning.
	ErrPartialPointer = errors.New("read overlaps partial pointer bytes")
)

// Mutability is the mutability class of a permanently-initialized
// allocation. Vtables and evaluated constants are frozen Immutable;
// statics that the program may still write stay Mutable.
type Mutability uint8

const (
	Mutable Mutability = iota
	Immutable
)

// allocation is one region of synthetic memory. Data allocations carry
// zero-filled bytes plus a relocation table mapping byte offsets to the
// pointers stored there. Function allocations carry no bytes at all —
// they exist only to give a callable instance a pointer identity.
type allocation struct {
	bytes       []byte
	align       uint64
	relocations map[uint64]Pointer
	fn          *defs.Instance
	static      bool
	mutability  Mutability
}

// Memory is one synthetic memory arena.
type Memory struct {
	arena   uuid.UUID
	target  *target.Spec
	allocs  map[AllocID]*allocation
	nextID  AllocID
	fnPtrs  map[string]Pointer // instance key -> memoized function allocation
}

func New(t *target.Spec) *Memory {
	return &Memory{
		arena:  uuid.New(),
		target: t,
		allocs: make(map[AllocID]*allocation),
		nextID: 1,
		fnPtrs: make(map[string]Pointer),
	}
}

// Arena returns this arena's identity, used to attribute pointer misuse
// across evaluation contexts in error reports.
func (m *Memory) Arena() uuid.UUID { return m.arena }

// PointerSize returns the target pointer width in bytes.
func (m *Memory) PointerSize() uint64 { return m.target.PointerSize }

func (m *Memory) allocation(id AllocID) (*allocation, error) {
	a, ok := m.allocs[id]
	if !ok {
		return nil, fmt.Errorf("%w: no allocation %d in arena %s", ErrDanglingPointer, id, m.arena)
	}
	return a, nil
}

// Allocate reserves a fresh zero-filled region. The zero fill is part of
// the contract: slots a producer leaves unwritten read back as the
// all-zero pattern, not as undefined bytes.
func (m *Memory) Allocate(size, align uint64) (Pointer, error) {
	if align == 0 || align&(align-1) != 0 {
		return Pointer{}, fmt.Errorf("allocation alignment %d is not a power of two", align)
	}
	id := m.nextID
	m.nextID++
	m.allocs[id] = &allocation{
		bytes:       make([]byte, size),
		align:       align,
		relocations: make(map[uint64]Pointer),
	}
	return Pointer{Alloc: id}, nil
}

// AllocateFunction gives a callable instance a pointer identity.
// Repeated calls for the same instance return the same pointer.
func (m *Memory) AllocateFunction(inst defs.Instance) Pointer {
	key := inst.Key()
	if p, ok := m.fnPtrs[key]; ok {
		return p
	}
	id := m.nextID
	m.nextID++
	instCopy := inst
	m.allocs[id] = &allocation{fn: &instCopy, static: true, mutability: Immutable}
	p := Pointer{Alloc: id}
	m.fnPtrs[key] = p
	return p
}

// Function resolves a pointer back to the callable instance it names.
func (m *Memory) Function(p Pointer) (defs.Instance, error) {
	a, err := m.allocation(p.Alloc)
	if err != nil {
		return defs.Instance{}, err
	}
	if a.fn == nil || p.Offset != 0 {
		return defs.Instance{}, fmt.Errorf("%w: %s", ErrNotAFunction, p)
	}
	return *a.fn, nil
}

// PointerOffset derives a new pointer by adding a byte delta, enforcing
// that the result stays within the allocation's declared size.
func (m *Memory) PointerOffset(p Pointer, delta uint64) (Pointer, error) {
	a, err := m.allocation(p.Alloc)
	if err != nil {
		return Pointer{}, err
	}
	newOffset := p.Offset + delta
	if newOffset < p.Offset || newOffset > uint64(len(a.bytes)) {
		return Pointer{}, fmt.Errorf("%w: %s + %d exceeds size %d", ErrOutOfBounds, p, delta, len(a.bytes))
	}
	return Pointer{Alloc: p.Alloc, Offset: newOffset}, nil
}

// AllocationSize returns the declared byte size of an allocation.
func (m *Memory) AllocationSize(id AllocID) (uint64, error) {
	a, err := m.allocation(id)
	if err != nil {
		return 0, err
	}
	return uint64(len(a.bytes)), nil
}

// WritePtrSized stores one pointer-width scalar at p, preserving the
// bytes-vs-pointer tag.
func (m *Memory) WritePtrSized(p Pointer, v PrimVal) error {
	a, err := m.allocation(p.Alloc)
	if err != nil {
		return err
	}
	if a.fn != nil {
		return fmt.Errorf("%w: cannot write to function allocation %s", ErrNotAFunction, p)
	}
	if a.static && a.mutability == Immutable {
		return fmt.Errorf("%w: %s", ErrImmutableWrite, p)
	}
	size := m.PointerSize()
	if err := m.checkRange(a, p, size); err != nil {
		return err
	}

	// Any pointer previously stored in this range loses its provenance.
	clearRelocations(a, p.Offset, size)

	switch v.Kind {
	case ValPtr:
		m.putUint(a.bytes[p.Offset:p.Offset+size], v.Ptr.Offset)
		a.relocations[p.Offset] = v.Ptr
	default:
		m.putUint(a.bytes[p.Offset:p.Offset+size], v.Data)
	}
	return nil
}

// ReadPtrSized loads one pointer-width scalar from p. A stored pointer
// reads back as a pointer; plain bytes read back as bytes; a read that
// covers only part of a stored pointer is an error.
func (m *Memory) ReadPtrSized(p Pointer) (PrimVal, error) {
	a, err := m.allocation(p.Alloc)
	if err != nil {
		return PrimVal{}, err
	}
	if a.fn != nil {
		return PrimVal{}, fmt.Errorf("%w: cannot read function allocation %s as data", ErrNotAFunction, p)
	}
	size := m.PointerSize()
	if err := m.checkRange(a, p, size); err != nil {
		return PrimVal{}, err
	}
	if target, ok := a.relocations[p.Offset]; ok {
		return PtrVal(target), nil
	}
	for off := range a.relocations {
		if off < p.Offset+size && off+size > p.Offset {
			return PrimVal{}, fmt.Errorf("%w: at %s", ErrPartialPointer, p)
		}
	}
	return BytesVal(m.getUint(a.bytes[p.Offset : p.Offset+size])), nil
}

// MarkStaticInitialized freezes an allocation as permanently-initialized
// static data with the given mutability class. Once Immutable, every
// later write fails.
func (m *Memory) MarkStaticInitialized(id AllocID, mut Mutability) error {
	a, err := m.allocation(id)
	if err != nil {
		return err
	}
	a.static = true
	a.mutability = mut
	return nil
}

func (m *Memory) checkRange(a *allocation, p Pointer, size uint64) error {
	end := p.Offset + size
	if end < p.Offset || end > uint64(len(a.bytes)) {
		return fmt.Errorf("%w: %s..+%d exceeds size %d", ErrOutOfBounds, p, size, len(a.bytes))
	}
	return nil
}

func (m *Memory) putUint(b []byte, v uint64) {
	if m.PointerSize() == 4 {
		m.target.Order().PutUint32(b, uint32(v))
		return
	}
	m.target.Order().PutUint64(b, v)
}

func (m *Memory) getUint(b []byte) uint64 {
	if m.PointerSize() == 4 {
		return uint64(m.target.Order().Uint32(b))
	}
	return m.target.Order().Uint64(b)
}

func clearRelocations(a *allocation, offset, size uint64) {
	for off := range a.relocations {
		if off < offset+size && off+size > offset {
			delete(a.relocations, off)
		}
	}
}
