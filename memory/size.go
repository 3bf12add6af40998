package memory

// Size is a byte count or byte offset in device memory.
//
// Matches the unsigned 64-bit DeviceSize convention used by the native APIs.
type Size = uint64

// AlignUp rounds value up to the next multiple of align.
// align must be a power of two.
func AlignUp(value, align Size) Size {
	return (value + align - 1) &^ (align - 1)
}

// AlignDown rounds value down to the previous multiple of align.
// align must be a power of two.
func AlignDown(value, align Size) Size {
	return value &^ (align - 1)
}

// IsPowerOfTwo reports whether v is a non-zero power of two.
func IsPowerOfTwo(v Size) bool {
	return v != 0 && v&(v-1) == 0
}
