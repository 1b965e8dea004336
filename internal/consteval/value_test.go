package consteval

import (
	"testing"

	"github.com/vela-lang/vela/internal/memory"
)

func TestValueAccessors(t *testing.T) {
	data := memory.PtrVal(memory.Pointer{Alloc: 1})
	vtable := memory.PtrVal(memory.Pointer{Alloc: 2})

	fat := ByValPair(data, vtable)
	a, b, err := fat.Pair()
	if err != nil {
		t.Fatalf("Pair: %v", err)
	}
	if a.Ptr.Alloc != 1 || b.Ptr.Alloc != 2 {
		t.Errorf("pair = (%s, %s), want data then vtable", a, b)
	}
	if _, err := fat.Scalar(); err == nil {
		t.Errorf("Scalar on a pair should fail")
	}

	scalar := ByVal(memory.BytesVal(42))
	v, err := scalar.Scalar()
	if err != nil {
		t.Fatalf("Scalar: %v", err)
	}
	if got, _ := v.ToBytes(); got != 42 {
		t.Errorf("scalar = %d, want 42", got)
	}
	if _, _, err := scalar.Pair(); err == nil {
		t.Errorf("Pair on a scalar should fail")
	}

	ref := ByRef(memory.Pointer{Alloc: 3, Offset: 8})
	if ref.Kind != ValByRef || ref.Ref.Offset != 8 {
		t.Errorf("ByRef = %+v, want ref alloc3+8", ref)
	}
}
