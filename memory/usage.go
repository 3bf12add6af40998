package memory

// AllocatorKind identifies one of the sub-allocation strategies.
type AllocatorKind uint8

const (
	// KindDedicated is one native allocation per block.
	KindDedicated AllocatorKind = iota
	// KindGeneral is the pooled, size-classed allocator for long-lived
	// blocks.
	KindGeneral
	// KindLinear is the ring allocator for short-lived transfer blocks.
	KindLinear
)

func (k AllocatorKind) String() string {
	switch k {
	case KindDedicated:
		return "Dedicated"
	case KindGeneral:
		return "General"
	case KindLinear:
		return "Linear"
	}
	return "Unknown"
}

// Usage is the policy contract the router consumes to pick a memory type
// for a request. Implementations must be pure: identical inputs yield
// identical outputs.
type Usage interface {
	// PropertiesRequired returns the flags a memory type must carry to be
	// eligible at all.
	PropertiesRequired() Properties

	// Fitness ranks an eligible memory type's properties. Higher is
	// better; ties are legitimate and resolved by the router.
	Fitness(properties Properties) uint32

	// AllocatorFitness ranks a sub-allocation strategy for this usage.
	// Higher is better; zero ranks last. The memory-type wrapper still
	// falls back to the dedicated allocator when no ranked strategy can
	// take a request.
	AllocatorFitness(kind AllocatorKind) uint32
}

// StandardUsage is the built-in set of usage policies covering the common
// lifetimes a renderer needs.
type StandardUsage uint8

const (
	// Data is device-local working memory the CPU rarely or never touches:
	// textures, mesh buffers, render targets.
	Data StandardUsage = iota

	// Dynamic is memory the CPU updates and the device reads every frame:
	// uniform and instance buffers.
	Dynamic

	// Upload is staging memory for one-way CPU-to-device transfer.
	Upload

	// Download is readback memory for one-way device-to-CPU transfer.
	Download
)

func (u StandardUsage) String() string {
	switch u {
	case Data:
		return "Data"
	case Dynamic:
		return "Dynamic"
	case Upload:
		return "Upload"
	case Download:
		return "Download"
	}
	return "Unknown"
}

// PropertiesRequired implements Usage.
func (u StandardUsage) PropertiesRequired() Properties {
	switch u {
	case Data:
		return DeviceLocal
	default:
		return HostVisible
	}
}

// Fitness implements Usage. Each policy packs its preferences into
// descending bit positions so the most important preference dominates.
func (u StandardUsage) Fitness(properties Properties) uint32 {
	switch u {
	case Data:
		// Prefer memory the host cannot touch at all.
		return not(properties, HostVisible)<<3 |
			not(properties, LazilyAllocated)<<2 |
			not(properties, HostCached)<<1 |
			not(properties, HostCoherent)
	case Dynamic:
		// Written by CPU, read by device every frame.
		return has(properties, DeviceLocal)<<2 |
			has(properties, HostCoherent)<<1 |
			not(properties, HostCached)
	case Upload:
		// One-way traffic to the device; device-local wastes budget.
		return not(properties, DeviceLocal)<<2 |
			has(properties, HostCoherent)<<1 |
			not(properties, HostCached)
	case Download:
		// Read back on the CPU; cached wins.
		return not(properties, DeviceLocal)<<2 |
			has(properties, HostCached)<<1 |
			has(properties, HostCoherent)
	}
	return 0
}

// AllocatorFitness implements Usage. Long-lived usages favor the pooled
// allocator, transfer usages favor the ring allocator, and dedicated is
// always an acceptable fallback.
func (u StandardUsage) AllocatorFitness(kind AllocatorKind) uint32 {
	switch u {
	case Data, Dynamic:
		switch kind {
		case KindGeneral:
			return 2
		case KindDedicated:
			return 1
		default:
			return 0
		}
	default:
		switch kind {
		case KindLinear:
			return 2
		case KindGeneral:
			return 1
		default:
			return 0
		}
	}
}

func has(p, flag Properties) uint32 {
	if p&flag != 0 {
		return 1
	}
	return 0
}

func not(p, flag Properties) uint32 {
	return has(p, flag) ^ 1
}
