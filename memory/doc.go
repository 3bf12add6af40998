// Package memory provides the shared vocabulary for graphics device-memory
// sub-allocation: sizes, memory property flags, the block capability surface,
// usage policies, the device contract, and mapped-range helpers.
//
// # Overview
//
// Graphics APIs expose device memory as a small set of memory types, each
// backed by a heap with a fixed byte budget and a fixed combination of
// properties (device-local, host-visible, coherent, cached). Allocating one
// native memory object per resource is slow and budget-unsafe, so renderers
// sub-allocate: large native allocations are carved into many blocks.
//
// This package holds the leaf types the rest of the toolkit is built on:
//
//   - Size, AlignUp, AlignDown: byte arithmetic
//   - Properties: memory capability bit flags
//   - Block: the capability surface every allocated block exposes
//   - Usage: the policy contract that ranks memory types for an intended use
//   - Device: the native memory API consumed by the sub-allocators
//   - MappedRange: a CPU-visible window into a host-visible block
//
// The routing tier lives in memory/heaps, the sub-allocation strategies in
// memory/alloc, and an in-process device for tests and tooling in
// memory/host.
//
// # Thread Safety
//
// Nothing in this package or its subpackages is internally synchronized.
// Callers must serialize access per router instance, either with one router
// per thread/queue or an external lock around the whole router.
package memory
