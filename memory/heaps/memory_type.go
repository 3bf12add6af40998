package heaps

import (
	"log/slog"

	"github.com/hafixo/gfx-extras/memory"
	"github.com/hafixo/gfx-extras/memory/alloc"
)

// memoryType wraps one native memory type: its properties, its backing
// heap, and the sub-allocation strategies configured for it. The dedicated
// allocator always exists; general and linear exist only when their configs
// were supplied.
type memoryType struct {
	index      uint32
	heapIndex  int
	properties memory.Properties

	dedicated *alloc.DedicatedAllocator
	general   *alloc.GeneralAllocator
	linear    *alloc.LinearAllocator

	// Type-level accounting mirroring the heap tracker, for reporting.
	used      memory.Size
	allocated memory.Size
}

func newMemoryType(index uint32, heapIndex int, properties memory.Properties, config TypeConfig, atom memory.Size) *memoryType {
	mt := &memoryType{
		index:      index,
		heapIndex:  heapIndex,
		properties: properties,
		dedicated:  alloc.NewDedicated(index, properties, atom),
	}
	if config.General != nil {
		mt.general = alloc.NewGeneral(index, properties, atom, *config.General)
	}
	if config.Linear != nil {
		mt.linear = alloc.NewLinear(index, properties, atom, *config.Linear)
	}
	return mt
}

// pickAllocator selects the strategy for a request. Configured strategies
// whose maximum block size covers the request compete on the usage's
// AllocatorFitness; the dedicated allocator always competes. Ties go to the
// dedicated < general < linear order of registration, so identical inputs
// always pick the same strategy.
func (mt *memoryType) pickAllocator(usage memory.Usage, size, align memory.Size) memory.AllocatorKind {
	need := size
	if align > need {
		need = align
	}

	best := memory.KindDedicated
	bestFitness := usage.AllocatorFitness(memory.KindDedicated)

	if mt.general != nil && need <= mt.general.MaxAllocation() {
		if f := usage.AllocatorFitness(memory.KindGeneral); f > bestFitness {
			best, bestFitness = memory.KindGeneral, f
		}
	}
	if mt.linear != nil && size <= mt.linear.MaxAllocation() {
		if f := usage.AllocatorFitness(memory.KindLinear); f > bestFitness {
			best = memory.KindLinear
		}
	}
	return best
}

// prospectiveCharge returns the exact charge a request would carry if
// delegated right now: the class block size for the general allocator
// (which rounds up), the request size otherwise. The router checks this
// against the heap budget before delegating.
func (mt *memoryType) prospectiveCharge(usage memory.Usage, size, align memory.Size) memory.Size {
	if mt.pickAllocator(usage, size, align) == memory.KindGeneral {
		if rounded, ok := mt.general.BlockSizeFor(size, align); ok {
			return rounded
		}
	}
	return size
}

// alloc delegates the request to the selected strategy and returns the
// flavor, the bytes to charge against the heap, and the native bytes pulled
// from the device by this call.
func (mt *memoryType) alloc(device memory.Device, usage memory.Usage, size, align memory.Size) (flavor blockFlavor, charged, allocated memory.Size, err error) {
	switch mt.pickAllocator(usage, size, align) {
	case memory.KindGeneral:
		flavor.general, allocated, err = mt.general.Alloc(device, size, align)
	case memory.KindLinear:
		flavor.linear, allocated, err = mt.linear.Alloc(device, size, align)
	default:
		flavor.dedicated, allocated, err = mt.dedicated.Alloc(device, size, align)
	}
	if err != nil {
		return blockFlavor{}, 0, 0, err
	}

	charged = flavor.size()
	mt.used += charged
	mt.allocated += allocated
	return flavor, charged, allocated, nil
}

// free dispatches to the strategy that produced the flavor. Returns the
// exact charge to reclaim and the native bytes released to the device.
func (mt *memoryType) free(device memory.Device, flavor blockFlavor) (reclaimed, released memory.Size) {
	switch {
	case flavor.general != nil:
		reclaimed, released = mt.general.Free(device, flavor.general)
	case flavor.linear != nil:
		reclaimed, released = mt.linear.Free(device, flavor.linear)
	default:
		reclaimed, released = mt.dedicated.Free(device, flavor.dedicated)
	}
	mt.used -= reclaimed
	mt.allocated -= released
	return reclaimed, released
}

// liveBlocks sums outstanding blocks across the type's strategies.
func (mt *memoryType) liveBlocks() uint32 {
	n := mt.dedicated.LiveBlocks()
	if mt.general != nil {
		n += mt.general.LiveBlocks()
	}
	if mt.linear != nil {
		n += mt.linear.LiveBlocks()
	}
	return n
}

// clear releases every native resource the type's strategies still hold.
// Destructive and non-idempotent; runs exactly once during router teardown.
func (mt *memoryType) clear(device memory.Device, logger *slog.Logger) {
	if live := mt.liveBlocks(); live != 0 {
		logger.Error("clearing memory type with live blocks",
			"type", mt.index, "liveBlocks", live)
	}
	mt.dedicated.Clear(device)
	if mt.general != nil {
		mt.general.Clear(device)
	}
	if mt.linear != nil {
		mt.linear.Clear(device)
	}
}

func (mt *memoryType) utilization() TypeUtilization {
	return TypeUtilization{
		Properties: mt.properties,
		HeapIndex:  uint32(mt.heapIndex),
		Used:       mt.used,
		Allocated:  mt.allocated,
	}
}
