package alloc

import "errors"

var (
	// ErrTooBig indicates the request exceeds the allocator's maximum block
	// size. Callers fall back to the dedicated allocator.
	ErrTooBig = errors.New("alloc: request exceeds allocator maximum block size")

	// ErrZeroSize indicates a zero-byte allocation request.
	ErrZeroSize = errors.New("alloc: zero-size allocation")

	// ErrBadAlign indicates an alignment that is not a power of two.
	ErrBadAlign = errors.New("alloc: alignment must be a power of two")

	// ErrBadConfig indicates an allocator config with non-power-of-two or
	// inconsistent sizes.
	ErrBadConfig = errors.New("alloc: invalid allocator config")
)
