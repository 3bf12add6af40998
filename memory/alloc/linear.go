package alloc

import (
	"github.com/hafixo/gfx-extras/memory"
)

// DefaultLineSize is the native allocation size of one line when the config
// leaves it zero.
const DefaultLineSize memory.Size = 16 << 20

// LinearConfig tunes the ring allocator.
type LinearConfig struct {
	// LineSize is the native allocation size of one line. Must be a power
	// of two. Zero selects DefaultLineSize. Requests larger than one line
	// are rejected with ErrTooBig.
	LineSize memory.Size
}

// Validate reports whether the config (after defaults) is usable.
func (c LinearConfig) Validate() error {
	c = c.withDefaults()
	if !memory.IsPowerOfTwo(c.LineSize) {
		return ErrBadConfig
	}
	return nil
}

func (c LinearConfig) withDefaults() LinearConfig {
	if c.LineSize == 0 {
		c.LineSize = DefaultLineSize
	}
	return c
}

// LinearAllocator bump-allocates blocks out of fixed-size lines and
// reclaims whole lines only. Lines retire in FIFO order: a drained line is
// returned to the device once every older line is gone, so one long-lived
// block pins its line and every newer one. Intended for transfer blocks
// freed within a frame or two.
type LinearAllocator struct {
	typeIndex  uint32
	properties memory.Properties
	atom       memory.Size
	lineSize   memory.Size

	// lines[0] is the oldest outstanding line; base is its absolute index.
	lines []*line
	base  uint64
	live  uint32
}

type line struct {
	mem  memory.DeviceMemory
	head memory.Size
	live uint32
}

// NewLinear creates a ring allocator for the memory type at typeIndex.
func NewLinear(typeIndex uint32, properties memory.Properties, nonCoherentAtom memory.Size, config LinearConfig) *LinearAllocator {
	config = config.withDefaults()
	return &LinearAllocator{
		typeIndex:  typeIndex,
		properties: properties,
		atom:       nonCoherentAtom,
		lineSize:   config.LineSize,
	}
}

// Kind implements the strategy identification used by usage policies.
func (a *LinearAllocator) Kind() memory.AllocatorKind {
	return memory.KindLinear
}

// MaxAllocation returns the largest request Alloc accepts: one full line.
func (a *LinearAllocator) MaxAllocation() memory.Size {
	return a.lineSize
}

// Alloc bumps the current line's head, opening a fresh line when the
// aligned request does not fit behind it. A fresh line starts at offset
// zero, which satisfies any power-of-two alignment. The second return value
// is the native bytes pulled from the device: the line size when a new line
// was opened, zero otherwise.
func (a *LinearAllocator) Alloc(device memory.Device, size, align memory.Size) (*LinearBlock, memory.Size, error) {
	if size == 0 {
		return nil, 0, ErrZeroSize
	}
	if !memory.IsPowerOfTwo(align) {
		return nil, 0, ErrBadAlign
	}
	if size > a.lineSize {
		return nil, 0, ErrTooBig
	}

	var (
		ln        *line
		offset    memory.Size
		allocated memory.Size
	)
	if n := len(a.lines); n > 0 {
		ln = a.lines[n-1]
		offset = memory.AlignUp(ln.head, align)
	}
	if ln == nil || offset+size > a.lineSize {
		mem, err := device.AllocateMemory(a.typeIndex, a.lineSize)
		if err != nil {
			return nil, 0, err
		}
		ln = &line{mem: mem}
		a.lines = append(a.lines, ln)
		offset = 0
		allocated = a.lineSize
	}

	ln.head = offset + size
	ln.live++
	a.live++

	return &LinearBlock{
		mem:        ln.mem,
		line:       a.base + uint64(len(a.lines)-1),
		segment:    memory.Segment{Offset: offset, Length: size},
		properties: a.properties,
		atom:       a.atom,
	}, allocated, nil
}

// Free marks the block's line as one block lighter and retires drained
// lines from the front of the ring. Returns the charge to reclaim (the
// block size) and the native bytes of any lines released.
func (a *LinearAllocator) Free(device memory.Device, block *LinearBlock) (reclaimed, released memory.Size) {
	ln := a.lines[block.line-a.base]
	ln.live--
	a.live--

	for len(a.lines) > 0 && a.lines[0].live == 0 {
		drained := a.lines[0]
		device.FreeMemory(drained.mem)
		released += a.lineSize
		a.lines = a.lines[1:]
		a.base++
	}
	return block.segment.Length, released
}

// LiveBlocks returns the number of outstanding blocks.
func (a *LinearAllocator) LiveBlocks() uint32 {
	return a.live
}

// Clear returns every line to the device, including lines that still hold
// live blocks, and reports the native bytes released. Outstanding blocks
// are invalid afterwards.
func (a *LinearAllocator) Clear(device memory.Device) memory.Size {
	var released memory.Size
	for _, ln := range a.lines {
		device.FreeMemory(ln.mem)
		released += a.lineSize
	}
	a.lines = nil
	return released
}

// LinearBlock is a block bump-allocated from a line.
type LinearBlock struct {
	mem        memory.DeviceMemory
	line       uint64
	segment    memory.Segment
	properties memory.Properties
	atom       memory.Size
}

// Properties implements memory.Block.
func (b *LinearBlock) Properties() memory.Properties {
	return b.properties
}

// Size implements memory.Block.
func (b *LinearBlock) Size() memory.Size {
	return b.segment.Length
}

// Memory implements memory.Block.
func (b *LinearBlock) Memory() memory.DeviceMemory {
	return b.mem
}

// Segment implements memory.Block.
func (b *LinearBlock) Segment() memory.Segment {
	return b.segment
}

// Map implements memory.Block. segment is relative to the block.
func (b *LinearBlock) Map(device memory.Device, segment memory.Segment) (*memory.MappedRange, error) {
	if segment.Offset+segment.Length > b.segment.Length {
		return nil, memory.ErrOutOfSegment
	}
	abs := memory.Segment{Offset: b.segment.Offset + segment.Offset, Length: segment.Length}
	return memory.MapRange(device, b.mem, abs, b.atom, b.properties)
}
