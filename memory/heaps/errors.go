package heaps

import (
	"errors"
	"fmt"

	"github.com/hafixo/gfx-extras/memory"
)

// NoSuitableMemoryError reports that no memory type can ever satisfy a
// request: no type whose index bit is set in the mask carries all the
// required properties. This is a configuration/usage mismatch, not a
// transient condition; retrying without changing the request is pointless.
type NoSuitableMemoryError struct {
	Mask     uint32
	Required memory.Properties
}

func (e *NoSuitableMemoryError) Error() string {
	return fmt.Sprintf("heaps: no memory type among mask 0b%b with properties %s", e.Mask, e.Required)
}

// errOutOfMemory wraps memory.ErrOutOfDeviceMemory with routing context.
// Capacity failures are transient in principle: freeing live blocks may
// allow a retry. The router performs no automatic retry.
func errOutOfMemory(context string) error {
	return fmt.Errorf("heaps: %s: %w", context, memory.ErrOutOfDeviceMemory)
}

// IsOutOfMemory reports whether err is a capacity failure, either this
// layer's budget check or the device's own exhaustion signal.
func IsOutOfMemory(err error) bool {
	return errors.Is(err, memory.ErrOutOfDeviceMemory) || errors.Is(err, memory.ErrOutOfHostMemory)
}
