package heaps

import (
	"github.com/hafixo/gfx-extras/memory"
	"github.com/hafixo/gfx-extras/memory/alloc"
)

// blockFlavor is the tagged variant identifying which strategy produced a
// block. Exactly one field is non-nil. The set of strategies is closed, so
// dispatch is a switch rather than an interface indirection.
type blockFlavor struct {
	dedicated *alloc.DedicatedBlock
	general   *alloc.GeneralBlock
	linear    *alloc.LinearBlock
}

func (f blockFlavor) size() memory.Size {
	switch {
	case f.general != nil:
		return f.general.Size()
	case f.linear != nil:
		return f.linear.Size()
	default:
		return f.dedicated.Size()
	}
}

// MemoryBlock is a block allocated from Heaps. It erases which strategy
// produced it behind the memory.Block capability surface.
//
// A MemoryBlock is a single-owner value: allocate hands it to the caller,
// Free consumes it. It must not be duplicated, used after Free, freed
// against a different Heaps instance, or outlive the Heaps that produced it.
type MemoryBlock struct {
	flavor      blockFlavor
	memoryIndex uint32
}

// MemoryType returns the index of the memory type the block was allocated
// from. The index corresponds to a bit position in allocation masks.
func (b *MemoryBlock) MemoryType() uint32 {
	return b.memoryIndex
}

// Properties implements memory.Block.
func (b *MemoryBlock) Properties() memory.Properties {
	switch {
	case b.flavor.general != nil:
		return b.flavor.general.Properties()
	case b.flavor.linear != nil:
		return b.flavor.linear.Properties()
	default:
		return b.flavor.dedicated.Properties()
	}
}

// Size implements memory.Block. This is the charge the block carries
// against its heap, after any strategy-internal rounding.
func (b *MemoryBlock) Size() memory.Size {
	return b.flavor.size()
}

// Memory implements memory.Block.
func (b *MemoryBlock) Memory() memory.DeviceMemory {
	switch {
	case b.flavor.general != nil:
		return b.flavor.general.Memory()
	case b.flavor.linear != nil:
		return b.flavor.linear.Memory()
	default:
		return b.flavor.dedicated.Memory()
	}
}

// Segment implements memory.Block.
func (b *MemoryBlock) Segment() memory.Segment {
	switch {
	case b.flavor.general != nil:
		return b.flavor.general.Segment()
	case b.flavor.linear != nil:
		return b.flavor.linear.Segment()
	default:
		return b.flavor.dedicated.Segment()
	}
}

// Map implements memory.Block.
func (b *MemoryBlock) Map(device memory.Device, segment memory.Segment) (*memory.MappedRange, error) {
	switch {
	case b.flavor.general != nil:
		return b.flavor.general.Map(device, segment)
	case b.flavor.linear != nil:
		return b.flavor.linear.Map(device, segment)
	default:
		return b.flavor.dedicated.Map(device, segment)
	}
}
