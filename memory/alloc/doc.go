// Package alloc implements the three sub-allocation strategies blocks are
// carved with: dedicated, general and linear.
//
// # Strategies
//
// DedicatedAllocator: one native allocation per block
//
//   - No sharing, no rounding; the block owns its memory object
//   - The only strategy that can satisfy arbitrarily large requests
//   - Used directly for huge blocks and as the universal fallback
//
// GeneralAllocator: pooled allocator for long-lived blocks
//
//   - Power-of-two size classes from the configured granularity upward
//   - One native chunk holds many blocks of a class; freed slots are reused
//   - Chunks whose last block is freed are returned to the device
//
// LinearAllocator: ring allocator for short-lived transfer blocks
//
//   - Bump allocation inside fixed-size lines
//   - A line is released only once every block on it has been freed and all
//     older lines are gone; out-of-order frees keep the line pinned
//   - Suited to staging uploads that are freed within a frame or two
//
// # Contract
//
// Every Alloc reports the native bytes it pulled from the device with this
// call (zero when a request was served from an existing chunk or line), and
// every block remembers the bytes charged for it; Free returns exactly that
// charge plus the native bytes released back to the device. Clear releases
// every native resource the strategy still holds and is expected to run
// exactly once, at router teardown.
//
// Allocators are not thread-safe. The routing tier in memory/heaps
// serializes access.
package alloc
