// Package host implements the memory.Device contract in process, backed by
// page-aligned host memory. It exists for tests, benchmarks and tooling: a
// router wired to a host.Device behaves exactly like one wired to a native
// device, minus the GPU.
//
// The device counts live allocations and can inject failures, so tests can
// assert both budget conservation and partial-failure paths.
package host

import (
	"fmt"

	"github.com/hafixo/gfx-extras/internal/hostmem"
	"github.com/hafixo/gfx-extras/memory"
)

// memoryObject is one simulated native allocation.
type memoryObject struct {
	data   []byte
	mapped bool
}

// Size implements memory.DeviceMemory.
func (m *memoryObject) Size() memory.Size {
	return memory.Size(len(m.data))
}

// Device is an in-process memory.Device.
type Device struct {
	numTypes uint32

	live      map[*memoryObject]struct{}
	allocated memory.Size

	// failAfter < 0 disables injection; otherwise the failAfter-th next
	// AllocateMemory call fails with memory.ErrOutOfDeviceMemory.
	failAfter int
}

var _ memory.Device = (*Device)(nil)

// NewDevice creates a device reporting numTypes memory types.
func NewDevice(numTypes uint32) *Device {
	return &Device{
		numTypes:  numTypes,
		live:      make(map[*memoryObject]struct{}),
		failAfter: -1,
	}
}

// FailAfter arms failure injection: the next n calls to AllocateMemory
// succeed and the one after fails. Pass a negative n to disarm.
func (d *Device) FailAfter(n int) {
	d.failAfter = n
}

// AllocateMemory implements memory.Device.
func (d *Device) AllocateMemory(typeIndex uint32, size memory.Size) (memory.DeviceMemory, error) {
	if typeIndex >= d.numTypes {
		return nil, fmt.Errorf("host: memory type %d out of range (%d types)", typeIndex, d.numTypes)
	}
	if d.failAfter == 0 {
		d.failAfter = -1
		return nil, memory.ErrOutOfDeviceMemory
	}
	if d.failAfter > 0 {
		d.failAfter--
	}

	data, err := hostmem.Alloc(int(size))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", memory.ErrOutOfHostMemory, err)
	}

	mem := &memoryObject{data: data}
	d.live[mem] = struct{}{}
	d.allocated += size
	return mem, nil
}

// FreeMemory implements memory.Device. Freeing a handle this device did not
// produce, or freeing one twice, is a caller bug and panics.
func (d *Device) FreeMemory(mem memory.DeviceMemory) {
	obj := mem.(*memoryObject)
	if _, ok := d.live[obj]; !ok {
		panic("host: free of unknown or already-freed memory")
	}
	delete(d.live, obj)
	d.allocated -= obj.Size()
	_ = hostmem.Free(obj.data)
	obj.data = nil
}

// MapMemory implements memory.Device.
func (d *Device) MapMemory(mem memory.DeviceMemory, offset, length memory.Size) ([]byte, error) {
	obj := mem.(*memoryObject)
	if _, ok := d.live[obj]; !ok {
		return nil, memory.ErrMappingFailed
	}
	if offset+length > obj.Size() {
		return nil, memory.ErrOutOfSegment
	}
	obj.mapped = true
	return obj.data[offset : offset+length], nil
}

// UnmapMemory implements memory.Device.
func (d *Device) UnmapMemory(mem memory.DeviceMemory) {
	mem.(*memoryObject).mapped = false
}

// LiveAllocations returns the number of outstanding native allocations.
func (d *Device) LiveAllocations() int {
	return len(d.live)
}

// AllocatedBytes returns the native bytes currently allocated.
func (d *Device) AllocatedBytes() memory.Size {
	return d.allocated
}

// TestingT is the subset of *testing.T AssertEmpty needs.
type TestingT interface {
	Errorf(format string, args ...interface{})
	Helper()
}

// AssertEmpty fails the test when native allocations are still live.
// Typically deferred right after constructing the device.
func (d *Device) AssertEmpty(t TestingT) {
	t.Helper()
	if n := len(d.live); n != 0 {
		t.Errorf("host device still has %d live allocations (%d bytes)", n, d.allocated)
	}
}
