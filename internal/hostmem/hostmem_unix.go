//go:build unix

// Package hostmem supplies page-aligned host memory for simulated device
// allocations: anonymous mappings on unix, heap slices elsewhere.
package hostmem

import (
	"golang.org/x/sys/unix"
)

// Alloc maps size bytes of zeroed, page-aligned anonymous memory.
func Alloc(size int) ([]byte, error) {
	return unix.Mmap(-1, 0, size,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_PRIVATE|unix.MAP_ANON)
}

// Free releases a mapping obtained from Alloc.
func Free(data []byte) error {
	return unix.Munmap(data)
}
