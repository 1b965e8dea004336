package memory

import "fmt"

// AllocID identifies one allocation inside an arena. IDs are never
// reused for the lifetime of the arena.
type AllocID uint64

// Pointer is a synthetic pointer: an allocation handle plus a byte
// offset into it. It is never a raw address — all arithmetic goes
// through the arena so bounds can be enforced.
type Pointer struct {
	Alloc  AllocID
	Offset uint64
}

func (p Pointer) String() string {
	return fmt.Sprintf("alloc%d+%d", p.Alloc, p.Offset)
}
