package memory

// Segment is a byte window inside a native memory object.
type Segment struct {
	Offset Size
	Length Size
}

// Block is the capability surface common to every allocated block,
// regardless of which sub-allocation strategy produced it.
//
// A Block is a single-owner value: it is returned by the router's allocate,
// handed back to the router's free exactly once, and must not be used after
// that. Duplicating a Block double-frees and double-counts budget.
type Block interface {
	// Properties returns the capability flags of the memory type this block
	// was allocated from.
	Properties() Properties

	// Size returns the usable byte size of the block. May exceed the
	// requested size due to strategy-internal rounding.
	Size() Size

	// Memory returns the native memory object the block lives in. Several
	// blocks may share one memory object; Segment tells them apart.
	Memory() DeviceMemory

	// Segment returns the block's addressable window inside Memory().
	Segment() Segment

	// Map maps a sub-segment of the block for CPU access. segment is
	// relative to the block, not to the underlying memory object. Fails
	// with ErrNotHostVisible for device-only memory and ErrOutOfSegment
	// for windows outside the block.
	Map(device Device, segment Segment) (*MappedRange, error)
}
