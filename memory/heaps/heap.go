package heaps

import (
	"fmt"

	"github.com/hafixo/gfx-extras/memory"
)

// memoryHeap tracks the budget of one physical heap.
//
// used accumulates the per-block charges the strategies report (block sizes
// after strategy-internal rounding); allocated tracks the native bytes
// currently fetched from the device, which can exceed used by chunk and
// line overhead. Availability decisions run against used.
type memoryHeap struct {
	size      memory.Size
	used      memory.Size
	allocated memory.Size
}

func newMemoryHeap(size memory.Size) memoryHeap {
	return memoryHeap{size: size}
}

func (h *memoryHeap) available() memory.Size {
	return h.size - h.used
}

// charge records an allocation: charged is the block's heap charge,
// allocated the native bytes pulled from the device by this call.
func (h *memoryHeap) charge(charged, allocated memory.Size) {
	if charged > h.available() {
		panic(fmt.Sprintf("heaps: heap overcharged: used %d + charge %d exceeds size %d",
			h.used, charged, h.size))
	}
	h.used += charged
	h.allocated += allocated
}

// reclaim records a free: charged is the exact charge the freed block
// carried, released the native bytes the strategy returned to the device.
func (h *memoryHeap) reclaim(charged, released memory.Size) {
	if charged > h.used || released > h.allocated {
		panic(fmt.Sprintf("heaps: heap over-reclaimed: used %d, allocated %d, reclaim %d/%d",
			h.used, h.allocated, charged, released))
	}
	h.used -= charged
	h.allocated -= released
}

func (h *memoryHeap) utilization() HeapUtilization {
	return HeapUtilization{
		Used:      h.used,
		Allocated: h.allocated,
		Total:     h.size,
	}
}
