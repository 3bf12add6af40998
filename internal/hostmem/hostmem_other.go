//go:build !unix

package hostmem

// Alloc returns size bytes of zeroed heap memory. Page alignment is not
// guaranteed off unix, which is fine for a simulated device.
func Alloc(size int) ([]byte, error) {
	return make([]byte, size), nil
}

// Free releases a buffer obtained from Alloc.
func Free(data []byte) error {
	return nil
}
