package alloc

import (
	"math/bits"

	"github.com/hafixo/gfx-extras/memory"
)

const (
	// DefaultBlockSizeGranularity is the smallest block size the general
	// allocator hands out when the config leaves it zero.
	DefaultBlockSizeGranularity memory.Size = 256

	// DefaultBlocksPerChunk is the number of blocks carved from one native
	// chunk when the config leaves it zero.
	DefaultBlocksPerChunk uint32 = 32

	// DefaultMaxBlockSize caps requests the general allocator accepts when
	// the config leaves it zero. Larger requests go to the dedicated
	// allocator.
	DefaultMaxBlockSize memory.Size = 32 << 20
)

// GeneralConfig tunes the pooled allocator.
type GeneralConfig struct {
	// BlockSizeGranularity is the smallest block size handed out. Must be a
	// power of two. Zero selects DefaultBlockSizeGranularity.
	BlockSizeGranularity memory.Size

	// BlocksPerChunk is how many blocks one native chunk holds. Zero
	// selects DefaultBlocksPerChunk.
	BlocksPerChunk uint32

	// MaxBlockSize is the largest request accepted. Must be a power of two.
	// Zero selects DefaultMaxBlockSize.
	MaxBlockSize memory.Size
}

// Validate reports whether the config (after defaults) is usable.
func (c GeneralConfig) Validate() error {
	c = c.withDefaults()
	if !memory.IsPowerOfTwo(c.BlockSizeGranularity) {
		return ErrBadConfig
	}
	if !memory.IsPowerOfTwo(c.MaxBlockSize) || c.MaxBlockSize < c.BlockSizeGranularity {
		return ErrBadConfig
	}
	return nil
}

func (c GeneralConfig) withDefaults() GeneralConfig {
	if c.BlockSizeGranularity == 0 {
		c.BlockSizeGranularity = DefaultBlockSizeGranularity
	}
	if c.BlocksPerChunk == 0 {
		c.BlocksPerChunk = DefaultBlocksPerChunk
	}
	if c.MaxBlockSize == 0 {
		c.MaxBlockSize = DefaultMaxBlockSize
	}
	return c
}

// GeneralAllocator is a pooled allocator with power-of-two size classes.
// Requests are rounded up to a class block size; each class carves its
// blocks out of shared native chunks and recycles freed slots through a
// free list. A chunk whose last block is freed is returned to the device.
type GeneralAllocator struct {
	typeIndex  uint32
	properties memory.Properties
	atom       memory.Size
	config     GeneralConfig

	// classes[i] serves block size BlockSizeGranularity<<i.
	classes []sizeClass
	live    uint32
}

type sizeClass struct {
	blockSize memory.Size
	chunks    []*chunk
	free      []freeSlot
}

type chunk struct {
	mem  memory.DeviceMemory
	used uint32
}

type freeSlot struct {
	c      *chunk
	offset memory.Size
}

// NewGeneral creates a pooled allocator for the memory type at typeIndex.
func NewGeneral(typeIndex uint32, properties memory.Properties, nonCoherentAtom memory.Size, config GeneralConfig) *GeneralAllocator {
	config = config.withDefaults()
	numClasses := bits.TrailingZeros64(config.MaxBlockSize) - bits.TrailingZeros64(config.BlockSizeGranularity) + 1

	a := &GeneralAllocator{
		typeIndex:  typeIndex,
		properties: properties,
		atom:       nonCoherentAtom,
		config:     config,
		classes:    make([]sizeClass, numClasses),
	}
	for i := range a.classes {
		a.classes[i].blockSize = config.BlockSizeGranularity << uint(i)
	}
	return a
}

// Kind implements the strategy identification used by usage policies.
func (a *GeneralAllocator) Kind() memory.AllocatorKind {
	return memory.KindGeneral
}

// MaxAllocation returns the largest request Alloc accepts.
func (a *GeneralAllocator) MaxAllocation() memory.Size {
	return a.config.MaxBlockSize
}

// BlockSizeFor returns the class block size a request would be rounded up
// to, which is also the charge the resulting block would carry. The second
// return value is false when the request is too big for this allocator.
func (a *GeneralAllocator) BlockSizeFor(size, align memory.Size) (memory.Size, bool) {
	ci := a.classFor(size, align)
	if ci < 0 {
		return 0, false
	}
	return a.classes[ci].blockSize, true
}

// classFor returns the index of the smallest class whose block size covers
// both size and align, or -1 when the request is too big.
func (a *GeneralAllocator) classFor(size, align memory.Size) int {
	need := size
	if align > need {
		need = align
	}
	for i := range a.classes {
		if a.classes[i].blockSize >= need {
			return i
		}
	}
	return -1
}

// Alloc hands out a block of the smallest class covering size and align.
// Block offsets inside a chunk are multiples of the class block size, so
// any align up to the block size is satisfied. The second return value is
// the native bytes pulled from the device: the full chunk size when a new
// chunk had to be allocated, zero when a freed slot was recycled.
func (a *GeneralAllocator) Alloc(device memory.Device, size, align memory.Size) (*GeneralBlock, memory.Size, error) {
	if size == 0 {
		return nil, 0, ErrZeroSize
	}
	if !memory.IsPowerOfTwo(align) {
		return nil, 0, ErrBadAlign
	}

	ci := a.classFor(size, align)
	if ci < 0 {
		return nil, 0, ErrTooBig
	}
	class := &a.classes[ci]

	var allocated memory.Size
	if len(class.free) == 0 {
		chunkSize := class.blockSize * memory.Size(a.config.BlocksPerChunk)
		mem, err := device.AllocateMemory(a.typeIndex, chunkSize)
		if err != nil {
			return nil, 0, err
		}
		c := &chunk{mem: mem}
		class.chunks = append(class.chunks, c)
		// Slot 0 satisfies this request; the rest go on the free list.
		for i := uint32(1); i < a.config.BlocksPerChunk; i++ {
			class.free = append(class.free, freeSlot{c: c, offset: class.blockSize * memory.Size(i)})
		}
		class.free = append(class.free, freeSlot{c: c, offset: 0})
		allocated = chunkSize
	}

	slot := class.free[len(class.free)-1]
	class.free = class.free[:len(class.free)-1]
	slot.c.used++
	a.live++

	return &GeneralBlock{
		chunk:      slot.c,
		class:      ci,
		offset:     slot.offset,
		size:       class.blockSize,
		properties: a.properties,
		atom:       a.atom,
	}, allocated, nil
}

// Free recycles the block's slot. Returns the charge to reclaim (the class
// block size) and the native bytes released back to the device, which is the
// whole chunk size when this was the chunk's last live block.
func (a *GeneralAllocator) Free(device memory.Device, block *GeneralBlock) (reclaimed, released memory.Size) {
	class := &a.classes[block.class]
	c := block.chunk
	c.used--
	a.live--

	if c.used == 0 {
		released = a.dropChunk(device, class, c)
	} else {
		class.free = append(class.free, freeSlot{c: c, offset: block.offset})
	}
	return block.size, released
}

// dropChunk returns an empty chunk to the device and strips its slots from
// the class free list.
func (a *GeneralAllocator) dropChunk(device memory.Device, class *sizeClass, c *chunk) memory.Size {
	kept := class.free[:0]
	for _, slot := range class.free {
		if slot.c != c {
			kept = append(kept, slot)
		}
	}
	class.free = kept

	for i, cc := range class.chunks {
		if cc == c {
			class.chunks = append(class.chunks[:i], class.chunks[i+1:]...)
			break
		}
	}

	size := c.mem.Size()
	device.FreeMemory(c.mem)
	c.mem = nil
	return size
}

// LiveBlocks returns the number of outstanding blocks.
func (a *GeneralAllocator) LiveBlocks() uint32 {
	return a.live
}

// Clear returns every chunk to the device, including chunks that still hold
// live blocks, and reports the native bytes released. Outstanding blocks
// are invalid afterwards.
func (a *GeneralAllocator) Clear(device memory.Device) memory.Size {
	var released memory.Size
	for i := range a.classes {
		class := &a.classes[i]
		for _, c := range class.chunks {
			released += c.mem.Size()
			device.FreeMemory(c.mem)
			c.mem = nil
		}
		class.chunks = nil
		class.free = nil
	}
	return released
}

// GeneralBlock is a block occupying one slot of a pooled chunk.
type GeneralBlock struct {
	chunk      *chunk
	class      int
	offset     memory.Size
	size       memory.Size
	properties memory.Properties
	atom       memory.Size
}

// Properties implements memory.Block.
func (b *GeneralBlock) Properties() memory.Properties {
	return b.properties
}

// Size implements memory.Block. This is the class block size the request
// was rounded up to, and the amount charged against the heap.
func (b *GeneralBlock) Size() memory.Size {
	return b.size
}

// Memory implements memory.Block.
func (b *GeneralBlock) Memory() memory.DeviceMemory {
	return b.chunk.mem
}

// Segment implements memory.Block.
func (b *GeneralBlock) Segment() memory.Segment {
	return memory.Segment{Offset: b.offset, Length: b.size}
}

// Map implements memory.Block. segment is relative to the block.
func (b *GeneralBlock) Map(device memory.Device, segment memory.Segment) (*memory.MappedRange, error) {
	if segment.Offset+segment.Length > b.size {
		return nil, memory.ErrOutOfSegment
	}
	abs := memory.Segment{Offset: b.offset + segment.Offset, Length: segment.Length}
	return memory.MapRange(device, b.chunk.mem, abs, b.atom, b.properties)
}
