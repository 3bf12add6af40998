// Package heaps routes device-memory allocation requests: given a mask of
// eligible memory types, a usage policy, a size and an alignment, it picks
// the best-fitting memory type, enforces the byte budget of the heap
// backing that type, and delegates the actual allocation to one of the
// sub-allocation strategies in memory/alloc.
//
// A Heaps instance is not internally synchronized. Use one instance per
// thread/queue, or guard the whole instance with a mutex; the multi-step
// selection (filter, pick, charge) is not safely interleavable.
package heaps

import (
	"errors"
	"log/slog"
	"runtime"

	"github.com/hafixo/gfx-extras/memory"
	"github.com/hafixo/gfx-extras/memory/alloc"
)

// MaxMemoryTypes is the largest number of memory types a Heaps instance can
// hold. The limit follows from the 32-bit allocation mask: bit i of the
// mask selects type i. Widening the mask type is a deliberate API change,
// not a tweak.
const MaxMemoryTypes = 32

var (
	// ErrTooManyTypes indicates more memory types than mask bits.
	ErrTooManyTypes = errors.New("heaps: more than 32 memory types")

	// ErrBadHeapIndex indicates a type config referencing a heap outside
	// the heap list. A construction-time contract violation.
	ErrBadHeapIndex = errors.New("heaps: type config references invalid heap index")

	// ErrBadAtomSize indicates a non-coherent atom size that is not a power
	// of two.
	ErrBadAtomSize = errors.New("heaps: non-coherent atom size must be a power of two")
)

// TypeConfig describes one memory type at construction, sourced from
// physical-device enumeration. The dedicated strategy is always available;
// General and Linear are enabled by supplying their configs.
type TypeConfig struct {
	Properties memory.Properties
	HeapIndex  uint32
	General    *alloc.GeneralConfig
	Linear     *alloc.LinearConfig
}

// Options tunes a Heaps instance beyond the physical-device layout.
type Options struct {
	// Logger receives allocation traces at Debug and leak diagnostics at
	// Error. Nil selects slog.Default().
	Logger *slog.Logger
}

// Heaps routes allocations across the memory types and heaps of one
// physical device.
//
// Clear must be called before the instance is discarded; discarding with
// types still present means outstanding native allocations are about to
// become unreachable, and is reported loudly instead of leaked silently.
type Heaps struct {
	types  []*memoryType
	heaps  []memoryHeap
	logger *slog.Logger
}

var _ memory.Block = (*MemoryBlock)(nil)

// New builds a Heaps instance from physical-device enumeration: one
// TypeConfig per memory type in device order, one byte size per heap, and
// the device's non-coherent atom size. Every TypeConfig.HeapIndex must
// reference a listed heap.
func New(types []TypeConfig, heapSizes []memory.Size, nonCoherentAtom memory.Size, opts *Options) (*Heaps, error) {
	if len(types) > MaxMemoryTypes {
		return nil, ErrTooManyTypes
	}
	if !memory.IsPowerOfTwo(nonCoherentAtom) {
		return nil, ErrBadAtomSize
	}

	logger := slog.Default()
	if opts != nil && opts.Logger != nil {
		logger = opts.Logger
	}

	h := &Heaps{
		heaps:  make([]memoryHeap, 0, len(heapSizes)),
		types:  make([]*memoryType, 0, len(types)),
		logger: logger,
	}
	for _, size := range heapSizes {
		h.heaps = append(h.heaps, newMemoryHeap(size))
	}
	for i, tc := range types {
		if int(tc.HeapIndex) >= len(h.heaps) {
			return nil, ErrBadHeapIndex
		}
		if tc.General != nil {
			if err := tc.General.Validate(); err != nil {
				return nil, err
			}
		}
		if tc.Linear != nil {
			if err := tc.Linear.Validate(); err != nil {
				return nil, err
			}
		}
		h.types = append(h.types, newMemoryType(uint32(i), int(tc.HeapIndex), tc.Properties, tc, nonCoherentAtom))
	}

	// Safety net for a missed Clear: Go has no guaranteed destructor, so a
	// finalizer reports the leak instead of letting native allocations
	// vanish silently.
	runtime.SetFinalizer(h, (*Heaps).leakCheck)
	return h, nil
}

func (h *Heaps) leakCheck() {
	if len(h.types) != 0 {
		h.logger.Error("heaps discarded without Clear; native allocations leaked",
			"liveTypes", len(h.types))
	}
}

// Allocate routes one allocation. Bit i of mask marks memory type i as
// eligible, mirroring the native memory-type-bits convention. usage supplies
// the required properties and the fitness ranking; size and align are in
// bytes, align a power of two.
//
// Selection runs in two phases. Phase one keeps mask-eligible types whose
// properties contain the usage's requirements; an empty result is a policy
// failure (*NoSuitableMemoryError). Phase two keeps types whose backing
// heap has size+align-1 bytes available, the worst case alignment padding
// can cost, and picks the highest fitness among them; an empty result is a
// capacity failure wrapping memory.ErrOutOfDeviceMemory. Fitness ties go to
// the lowest type index.
//
// On success exactly one heap tracker is charged; on failure no state
// changes.
func (h *Heaps) Allocate(device memory.Device, mask uint32, usage memory.Usage, size, align memory.Size) (*MemoryBlock, error) {
	required := usage.PropertiesRequired()

	chosen := -1
	var chosenFitness uint32
	suitable := false
	for i, mt := range h.types {
		if mask&(1<<uint(i)) == 0 || !mt.properties.Contains(required) {
			continue
		}
		suitable = true
		if h.heaps[mt.heapIndex].available() < size+align-1 {
			continue
		}
		if fitness := usage.Fitness(mt.properties); chosen < 0 || fitness > chosenFitness {
			chosen = i
			chosenFitness = fitness
		}
	}

	if !suitable {
		return nil, &NoSuitableMemoryError{Mask: mask, Required: required}
	}
	if chosen < 0 {
		h.logger.Error("all suitable heaps exhausted",
			"mask", mask, "required", required.String(), "size", size, "align", align)
		return nil, errOutOfMemory("all suitable heaps exhausted")
	}

	return h.allocateFrom(device, uint32(chosen), usage, size, align)
}

// allocateFrom delegates to the chosen type. The availability re-check is
// the actual safety gate; the estimate in Allocate only steers selection.
func (h *Heaps) allocateFrom(device memory.Device, memoryIndex uint32, usage memory.Usage, size, align memory.Size) (*MemoryBlock, error) {
	h.logger.Debug("allocate memory block",
		"type", memoryIndex, "size", size, "align", align)

	mt := h.types[memoryIndex]
	heap := &h.heaps[mt.heapIndex]

	// The charge can exceed the requested size when the strategy rounds up,
	// so the gate checks the exact prospective charge.
	if charge := mt.prospectiveCharge(usage, size, align); heap.available() < size || heap.available() < charge {
		return nil, errOutOfMemory("heap budget exhausted")
	}

	flavor, charged, allocated, err := mt.alloc(device, usage, size, align)
	if err != nil {
		return nil, err
	}
	heap.charge(charged, allocated)

	return &MemoryBlock{flavor: flavor, memoryIndex: memoryIndex}, nil
}

// Free returns a block produced by this instance. The block's exact charge
// is reclaimed from its heap tracker; strategy-level free problems are a
// strategy-internal concern and never surface here.
func (h *Heaps) Free(device memory.Device, block *MemoryBlock) {
	mt := h.types[block.memoryIndex]
	heap := &h.heaps[mt.heapIndex]

	reclaimed, released := mt.free(device, block.flavor)
	heap.reclaim(reclaimed, released)
}

// Clear tears the instance down: every type's strategies release the native
// memory they still hold, and the type collection drains to empty. Must be
// called exactly once, before the instance is discarded. Types still
// holding live blocks are reported at Error level.
func (h *Heaps) Clear(device memory.Device) {
	for _, mt := range h.types {
		mt.clear(device, h.logger)
	}
	h.types = h.types[:0]
	for i := range h.heaps {
		h.heaps[i].used = 0
		h.heaps[i].allocated = 0
	}
}

// Utilization snapshots used/total bytes per heap and per type. A pure
// projection: safe to call at any time, but not concurrently with Allocate
// or Free.
func (h *Heaps) Utilization() TotalUtilization {
	u := TotalUtilization{
		Heaps: make([]HeapUtilization, 0, len(h.heaps)),
		Types: make([]TypeUtilization, 0, len(h.types)),
	}
	for i := range h.heaps {
		u.Heaps = append(u.Heaps, h.heaps[i].utilization())
	}
	for _, mt := range h.types {
		u.Types = append(u.Types, mt.utilization())
	}
	return u
}
