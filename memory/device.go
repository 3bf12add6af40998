package memory

// DeviceMemory is an opaque handle to a single native device-memory object.
// Concrete Device implementations supply their own handle type; consumers
// must not assume anything beyond the allocated size.
type DeviceMemory interface {
	// Size returns the byte size this memory object was allocated with.
	Size() Size
}

// Device is the native memory API consumed by the sub-allocation
// strategies. The routing tier never calls it directly.
//
// All calls are synchronous. Implementations are not required to be
// thread-safe; the toolkit serializes access at the router boundary.
type Device interface {
	// AllocateMemory allocates one native memory object of exactly size
	// bytes from the memory type at typeIndex.
	AllocateMemory(typeIndex uint32, size Size) (DeviceMemory, error)

	// FreeMemory releases a native memory object. The handle must not be
	// used afterwards.
	FreeMemory(mem DeviceMemory)

	// MapMemory maps [offset, offset+length) of a host-visible memory
	// object and returns the CPU-visible bytes. The window stays valid
	// until UnmapMemory.
	MapMemory(mem DeviceMemory, offset, length Size) ([]byte, error)

	// UnmapMemory unmaps a previously mapped memory object.
	UnmapMemory(mem DeviceMemory)
}
