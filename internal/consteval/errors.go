package consteval

import (
	"errors"
	"fmt"
)

var (
	// ErrInternal marks invariant violations inside the machine. These
	// abort evaluation of the current constant with an internal-error
	// diagnostic and are never coerced into user-facing errors.
	ErrInternal = errors.New("internal evaluator error")

	// ErrUnimplementedTraitSelection is the user-facing failure for a
	// trait-associated constant with no implementation and no default.
	// The caller attributes it to the constant's source location.
	ErrUnimplementedTraitSelection = errors.New("unimplemented trait selection")

	// ErrReadBytesAsPointer reports pointer-typed reads that found a
	// non-pointer, non-null bit-pattern.
	ErrReadBytesAsPointer = errors.New("a memory access tried to interpret bytes as a pointer")

	// ErrUnreachableSlot reports a vtable method slot that was left
	// unwritten at synthesis time (a non-object-safe method). The slot
	// reads back as the all-zero pattern by construction.
	ErrUnreachableSlot = errors.New("vtable method slot is unreachable")

	// ErrUnsized reports a type without a statically known size where a
	// sized type is required. Layout engines return it from SizeAndAlign.
	ErrUnsized = errors.New("type has no statically known size")
)

// internalErrorf wraps an invariant violation so callers can detect it
// with errors.Is(err, ErrInternal).
func internalErrorf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInternal, fmt.Sprintf(format, args...))
}
