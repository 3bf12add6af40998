package memory

// MappedRange is a CPU-visible window into a host-visible memory object.
//
// For non-coherent memory the window actually mapped on the device is
// widened to non-coherent-atom boundaries; Bytes still exposes exactly the
// requested window.
type MappedRange struct {
	mem       DeviceMemory
	bytes     []byte
	requested Segment
	mapped    Segment
	coherent  bool
}

// MapRange maps the requested window of mem, widening it to atom boundaries
// when the memory is not host-coherent. requested is absolute within mem.
func MapRange(device Device, mem DeviceMemory, requested Segment, atom Size, properties Properties) (*MappedRange, error) {
	if !properties.Contains(HostVisible) {
		return nil, ErrNotHostVisible
	}
	if requested.Offset+requested.Length > mem.Size() {
		return nil, ErrOutOfSegment
	}

	coherent := properties.Contains(HostCoherent)
	mapped := requested
	if !coherent {
		start := AlignDown(requested.Offset, atom)
		end := AlignUp(requested.Offset+requested.Length, atom)
		if end > mem.Size() {
			end = mem.Size()
		}
		mapped = Segment{Offset: start, Length: end - start}
	}

	ptr, err := device.MapMemory(mem, mapped.Offset, mapped.Length)
	if err != nil {
		return nil, err
	}

	rel := requested.Offset - mapped.Offset
	return &MappedRange{
		mem:       mem,
		bytes:     ptr[rel : rel+requested.Length],
		requested: requested,
		mapped:    mapped,
		coherent:  coherent,
	}, nil
}

// Bytes returns the CPU-visible bytes of the requested window.
func (m *MappedRange) Bytes() []byte {
	return m.bytes
}

// Segment returns the requested window, absolute within Memory().
func (m *MappedRange) Segment() Segment {
	return m.requested
}

// MappedSegment returns the window actually mapped on the device. Equal to
// Segment() for coherent memory, atom-aligned otherwise.
func (m *MappedRange) MappedSegment() Segment {
	return m.mapped
}

// Memory returns the memory object the range lives in.
func (m *MappedRange) Memory() DeviceMemory {
	return m.mem
}

// Coherent reports whether the range needs no flush/invalidate discipline.
func (m *MappedRange) Coherent() bool {
	return m.coherent
}

// Unmap releases the device mapping. The range must not be used afterwards.
func (m *MappedRange) Unmap(device Device) {
	device.UnmapMemory(m.mem)
	m.bytes = nil
}
