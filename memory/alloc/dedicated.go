package alloc

import (
	"github.com/hafixo/gfx-extras/memory"
)

// DedicatedAllocator performs one native allocation per block. It keeps no
// free lists and holds no memory between blocks; each DedicatedBlock owns
// its memory object outright.
type DedicatedAllocator struct {
	typeIndex  uint32
	properties memory.Properties
	atom       memory.Size
	live       uint32
}

// NewDedicated creates a dedicated allocator for the memory type at
// typeIndex.
func NewDedicated(typeIndex uint32, properties memory.Properties, nonCoherentAtom memory.Size) *DedicatedAllocator {
	return &DedicatedAllocator{
		typeIndex:  typeIndex,
		properties: properties,
		atom:       nonCoherentAtom,
	}
}

// Kind implements the strategy identification used by usage policies.
func (a *DedicatedAllocator) Kind() memory.AllocatorKind {
	return memory.KindDedicated
}

// Alloc allocates one native memory object of exactly size bytes. The
// returned block starts at offset zero, so any power-of-two alignment is
// satisfied. The second return value is the native bytes pulled from the
// device, equal to size here.
func (a *DedicatedAllocator) Alloc(device memory.Device, size, align memory.Size) (*DedicatedBlock, memory.Size, error) {
	if size == 0 {
		return nil, 0, ErrZeroSize
	}
	if !memory.IsPowerOfTwo(align) {
		return nil, 0, ErrBadAlign
	}

	mem, err := device.AllocateMemory(a.typeIndex, size)
	if err != nil {
		return nil, 0, err
	}
	a.live++

	return &DedicatedBlock{
		mem:        mem,
		size:       size,
		properties: a.properties,
		atom:       a.atom,
	}, size, nil
}

// Free releases the block's memory object and returns the charge to reclaim
// plus the native bytes released, both equal to the block size.
func (a *DedicatedAllocator) Free(device memory.Device, block *DedicatedBlock) (reclaimed, released memory.Size) {
	device.FreeMemory(block.mem)
	block.mem = nil
	a.live--
	return block.size, block.size
}

// LiveBlocks returns the number of outstanding blocks.
func (a *DedicatedAllocator) LiveBlocks() uint32 {
	return a.live
}

// Clear releases everything the allocator holds between blocks, which is
// nothing: outstanding dedicated blocks own their memory objects and can
// only be reclaimed through Free. Returns zero.
func (a *DedicatedAllocator) Clear(device memory.Device) memory.Size {
	return 0
}

// DedicatedBlock is a block backed by its own native memory object.
type DedicatedBlock struct {
	mem        memory.DeviceMemory
	size       memory.Size
	properties memory.Properties
	atom       memory.Size
}

// Properties implements memory.Block.
func (b *DedicatedBlock) Properties() memory.Properties {
	return b.properties
}

// Size implements memory.Block.
func (b *DedicatedBlock) Size() memory.Size {
	return b.size
}

// Memory implements memory.Block.
func (b *DedicatedBlock) Memory() memory.DeviceMemory {
	return b.mem
}

// Segment implements memory.Block. A dedicated block spans its whole
// memory object.
func (b *DedicatedBlock) Segment() memory.Segment {
	return memory.Segment{Offset: 0, Length: b.size}
}

// Map implements memory.Block. segment is relative to the block.
func (b *DedicatedBlock) Map(device memory.Device, segment memory.Segment) (*memory.MappedRange, error) {
	if segment.Offset+segment.Length > b.size {
		return nil, memory.ErrOutOfSegment
	}
	return memory.MapRange(device, b.mem, segment, b.atom, b.properties)
}
