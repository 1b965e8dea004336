package consteval

import (
	"fmt"

	"github.com/vela-lang/vela/internal/memory"
)

// ValueKind identifies the representation of an evaluated value.
type ValueKind uint8

const (
	ValByVal     ValueKind = iota // single machine scalar
	ValByValPair                  // two scalars (fat pointers: data + vtable)
	ValByRef                      // lives in synthetic memory
)

// Value is the evaluator's working representation of an evaluated value:
// a single scalar, a decomposed pair of scalars, or a reference into
// synthetic memory. It moves data between memory and machine-level
// operations without committing to a layout prematurely.
type Value struct {
	Kind ValueKind
	A    memory.PrimVal // first scalar (ValByVal, ValByValPair)
	B    memory.PrimVal // second scalar (ValByValPair)
	Ref  memory.Pointer // backing region (ValByRef)
}

func ByVal(v memory.PrimVal) Value {
	return Value{Kind: ValByVal, A: v}
}

// ByValPair builds a decomposed two-scalar value. Trait object fat
// pointers are the main user: data pointer first, vtable pointer second.
func ByValPair(a, b memory.PrimVal) Value {
	return Value{Kind: ValByValPair, A: a, B: b}
}

func ByRef(p memory.Pointer) Value {
	return Value{Kind: ValByRef, Ref: p}
}

// Scalar returns the single scalar of a ValByVal value.
func (v Value) Scalar() (memory.PrimVal, error) {
	if v.Kind != ValByVal {
		return memory.PrimVal{}, fmt.Errorf("value is not a single scalar")
	}
	return v.A, nil
}

// Pair returns both scalars of a ValByValPair value.
func (v Value) Pair() (memory.PrimVal, memory.PrimVal, error) {
	if v.Kind != ValByValPair {
		return memory.PrimVal{}, memory.PrimVal{}, fmt.Errorf("value is not a scalar pair")
	}
	return v.A, v.B, nil
}

func (v Value) String() string {
	switch v.Kind {
	case ValByVal:
		return v.A.String()
	case ValByValPair:
		return fmt.Sprintf("(%s, %s)", v.A, v.B)
	case ValByRef:
		return fmt.Sprintf("ref %s", v.Ref)
	default:
		return "<?>"
	}
}
