package memory

import "strings"

// Properties is a bitmask of memory capability flags reported by the device
// for a memory type. The bit values mirror the native API's memory property
// flags.
type Properties uint32

const (
	// DeviceLocal memory is the fastest for device access. It may not be
	// host-visible at all on discrete hardware.
	DeviceLocal Properties = 1 << iota

	// HostVisible memory can be mapped for CPU access.
	HostVisible

	// HostCoherent memory does not require explicit flush/invalidate calls
	// around CPU access to mapped ranges.
	HostCoherent

	// HostCached memory is cached on the host. Reads back from it are fast,
	// but it may be non-coherent.
	HostCached

	// LazilyAllocated memory is backed by physical storage on demand and
	// cannot be mapped.
	LazilyAllocated
)

// Contains reports whether every flag in sub is also set in p.
func (p Properties) Contains(sub Properties) bool {
	return p&sub == sub
}

var propertyNames = []struct {
	flag Properties
	name string
}{
	{DeviceLocal, "DEVICE_LOCAL"},
	{HostVisible, "HOST_VISIBLE"},
	{HostCoherent, "HOST_COHERENT"},
	{HostCached, "HOST_CACHED"},
	{LazilyAllocated, "LAZILY_ALLOCATED"},
}

func (p Properties) String() string {
	if p == 0 {
		return "(none)"
	}
	var parts []string
	for _, pn := range propertyNames {
		if p&pn.flag != 0 {
			parts = append(parts, pn.name)
		}
	}
	return strings.Join(parts, "|")
}
