package memory

import "fmt"

// PrimValKind identifies what a PrimVal holds.
type PrimValKind uint8

const (
	ValBytes PrimValKind = iota // integer bit-pattern of pointer width
	ValPtr                      // synthetic pointer
)

// PrimVal is a tagged machine scalar: either an integer bit-pattern or a
// synthetic pointer. The tag is mandatory — the machine never
// reinterprets an integer as a pointer implicitly, or the reverse.
type PrimVal struct {
	Kind PrimValKind
	Data uint64  // bit-pattern for ValBytes
	Ptr  Pointer // handle for ValPtr
}

func BytesVal(v uint64) PrimVal {
	return PrimVal{Kind: ValBytes, Data: v}
}

func PtrVal(p Pointer) PrimVal {
	return PrimVal{Kind: ValPtr, Ptr: p}
}

func (v PrimVal) IsBytes() bool { return v.Kind == ValBytes }
func (v PrimVal) IsPtr() bool   { return v.Kind == ValPtr }

// ToBytes returns the integer bit-pattern, failing loudly on pointers.
func (v PrimVal) ToBytes() (uint64, error) {
	if v.Kind != ValBytes {
		return 0, fmt.Errorf("expected bytes, found pointer %s", v.Ptr)
	}
	return v.Data, nil
}

// ToPointer returns the pointer, failing loudly on bit-patterns.
func (v PrimVal) ToPointer() (Pointer, error) {
	if v.Kind != ValPtr {
		return Pointer{}, fmt.Errorf("expected pointer, found bytes 0x%x", v.Data)
	}
	return v.Ptr, nil
}

func (v PrimVal) String() string {
	if v.Kind == ValPtr {
		return v.Ptr.String()
	}
	return fmt.Sprintf("0x%x", v.Data)
}
