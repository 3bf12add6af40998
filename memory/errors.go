package memory

import "errors"

var (
	// ErrOutOfDeviceMemory indicates the device (or this toolkit's budget
	// accounting for it) could not supply the requested bytes. Transient in
	// principle: freeing live blocks may allow a retry.
	ErrOutOfDeviceMemory = errors.New("memory: out of device memory")

	// ErrOutOfHostMemory indicates the host-side allocation backing a
	// native memory object failed.
	ErrOutOfHostMemory = errors.New("memory: out of host memory")

	// ErrNotHostVisible indicates an attempt to map memory whose type lacks
	// the HostVisible property.
	ErrNotHostVisible = errors.New("memory: memory is not host-visible")

	// ErrMappingFailed indicates the device could not map a host-visible
	// memory object.
	ErrMappingFailed = errors.New("memory: mapping failed")

	// ErrOutOfSegment indicates a requested map window falls outside the
	// block's addressable segment.
	ErrOutOfSegment = errors.New("memory: segment out of range")
)
