package heaps

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hafixo/gfx-extras/memory"
	"github.com/hafixo/gfx-extras/memory/alloc"
	"github.com/hafixo/gfx-extras/memory/host"
)

// twoHeapLayout is the canonical small layout: a device-local type on a
// 1KiB heap and a host-visible coherent type on a 256B heap, dedicated
// strategy only.
func twoHeapLayout() ([]TypeConfig, []memory.Size) {
	types := []TypeConfig{
		{Properties: memory.DeviceLocal, HeapIndex: 0},
		{Properties: memory.HostVisible | memory.HostCoherent, HeapIndex: 1},
	}
	return types, []memory.Size{1024, 256}
}

func Test_AllocateSelectsByProperties(t *testing.T) {
	types, heapSizes := twoHeapLayout()
	device := host.NewDevice(uint32(len(types)))
	defer device.AssertEmpty(t)

	h, err := New(types, heapSizes, 64, nil)
	require.NoError(t, err)
	defer h.Clear(device)

	block, err := h.Allocate(device, 0b11, memory.Upload, 64, 16)
	require.NoError(t, err)
	require.Equal(t, uint32(1), block.MemoryType(), "only type 1 is host-visible")
	require.True(t, block.Properties().Contains(memory.HostVisible))
	require.GreaterOrEqual(t, block.Size(), memory.Size(64))

	u := h.Utilization()
	require.GreaterOrEqual(t, u.Heaps[1].Used, memory.Size(64))
	require.Zero(t, u.Heaps[0].Used, "heap 0 must be untouched")

	h.Free(device, block)
	require.Zero(t, h.Utilization().Heaps[1].Used, "free must restore pre-allocation state")
}

func Test_CapacityFailureVsNoSuitable(t *testing.T) {
	types, heapSizes := twoHeapLayout()
	device := host.NewDevice(uint32(len(types)))
	defer device.AssertEmpty(t)

	h, err := New(types, heapSizes, 64, &Options{Logger: discardLogger()})
	require.NoError(t, err)
	defer h.Clear(device)

	// Heap 1 totals 256 bytes: a 512-byte host-visible request is a
	// capacity failure, never a policy failure.
	_, err = h.Allocate(device, 0b11, memory.Upload, 512, 16)
	require.Error(t, err)
	require.True(t, IsOutOfMemory(err))
	var nsm *NoSuitableMemoryError
	require.False(t, errors.As(err, &nsm))

	// Masking out the only host-visible type is a policy failure.
	_, err = h.Allocate(device, 0b01, memory.Upload, 64, 16)
	require.ErrorAs(t, err, &nsm)
	require.Equal(t, uint32(0b01), nsm.Mask)
	require.Equal(t, memory.HostVisible, nsm.Required)
	require.False(t, IsOutOfMemory(err), "policy and capacity failures must stay distinct")

	// Failures leave no state behind.
	u := h.Utilization()
	require.Zero(t, u.Heaps[0].Used)
	require.Zero(t, u.Heaps[1].Used)
}

func Test_MaskRespected(t *testing.T) {
	// Two identical host-visible types; the mask forces the second.
	types := []TypeConfig{
		{Properties: memory.HostVisible | memory.HostCoherent, HeapIndex: 0},
		{Properties: memory.HostVisible | memory.HostCoherent, HeapIndex: 0},
	}
	device := host.NewDevice(2)
	defer device.AssertEmpty(t)

	h, err := New(types, []memory.Size{4096}, 64, nil)
	require.NoError(t, err)
	defer h.Clear(device)

	block, err := h.Allocate(device, 0b10, memory.Upload, 64, 1)
	require.NoError(t, err)
	require.Equal(t, uint32(1), block.MemoryType())
	h.Free(device, block)
}

func Test_FitnessTieBreaksToLowestIndex(t *testing.T) {
	// Identical properties yield identical fitness; the documented
	// tie-break picks the first type in index order.
	types := []TypeConfig{
		{Properties: memory.HostVisible | memory.HostCoherent, HeapIndex: 0},
		{Properties: memory.HostVisible | memory.HostCoherent, HeapIndex: 1},
	}
	device := host.NewDevice(2)
	defer device.AssertEmpty(t)

	h, err := New(types, []memory.Size{4096, 4096}, 64, nil)
	require.NoError(t, err)
	defer h.Clear(device)

	block, err := h.Allocate(device, 0b11, memory.Upload, 64, 1)
	require.NoError(t, err)
	require.Equal(t, uint32(0), block.MemoryType())
	h.Free(device, block)
}

func Test_FitnessPrefersBetterType(t *testing.T) {
	// Dynamic prefers device-local host-visible memory over plain
	// host-visible, regardless of declaration order.
	types := []TypeConfig{
		{Properties: memory.HostVisible | memory.HostCoherent, HeapIndex: 0},
		{Properties: memory.DeviceLocal | memory.HostVisible | memory.HostCoherent, HeapIndex: 0},
	}
	device := host.NewDevice(2)
	defer device.AssertEmpty(t)

	h, err := New(types, []memory.Size{8192}, 64, nil)
	require.NoError(t, err)
	defer h.Clear(device)

	block, err := h.Allocate(device, 0b11, memory.Dynamic, 64, 1)
	require.NoError(t, err)
	require.Equal(t, uint32(1), block.MemoryType())
	h.Free(device, block)
}

func Test_ExhaustedTypeFallsToNextBest(t *testing.T) {
	// When the fittest type's heap is exhausted, selection falls back to a
	// less fit but capacity-eligible type instead of failing.
	types := []TypeConfig{
		{Properties: memory.DeviceLocal | memory.HostVisible | memory.HostCoherent, HeapIndex: 0},
		{Properties: memory.HostVisible | memory.HostCoherent, HeapIndex: 1},
	}
	device := host.NewDevice(2)
	defer device.AssertEmpty(t)

	h, err := New(types, []memory.Size{256, 4096}, 64, nil)
	require.NoError(t, err)
	defer h.Clear(device)

	first, err := h.Allocate(device, 0b11, memory.Dynamic, 200, 1)
	require.NoError(t, err)
	require.Equal(t, uint32(0), first.MemoryType())

	second, err := h.Allocate(device, 0b11, memory.Dynamic, 200, 1)
	require.NoError(t, err)
	require.Equal(t, uint32(1), second.MemoryType(), "heap 0 is exhausted")

	h.Free(device, first)
	h.Free(device, second)
}

func Test_GeneralRoundingChargesExactly(t *testing.T) {
	types := []TypeConfig{{
		Properties: memory.DeviceLocal,
		HeapIndex:  0,
		General: &alloc.GeneralConfig{
			BlockSizeGranularity: 256,
			BlocksPerChunk:       4,
			MaxBlockSize:         4096,
		},
	}}
	device := host.NewDevice(1)
	defer device.AssertEmpty(t)

	h, err := New(types, []memory.Size{1 << 20}, 64, nil)
	require.NoError(t, err)
	defer h.Clear(device)

	block, err := h.Allocate(device, 0b1, memory.Data, 100, 1)
	require.NoError(t, err)
	require.Equal(t, memory.Size(256), block.Size(), "100 bytes rounds up to the 256 class")

	u := h.Utilization()
	require.Equal(t, memory.Size(256), u.Heaps[0].Used)
	require.Equal(t, memory.Size(1024), u.Heaps[0].Allocated, "one 4-block chunk pulled")

	h.Free(device, block)
	u = h.Utilization()
	require.Zero(t, u.Heaps[0].Used)
	require.Zero(t, u.Heaps[0].Allocated, "empty chunk returned to the device")
}

func Test_RecheckBlocksOverCharge(t *testing.T) {
	// 600 bytes rounds up to a 1024-byte class block, which exceeds the
	// 1000-byte heap even though the raw request fits. The pre-delegation
	// gate must catch this and leave no state behind.
	types := []TypeConfig{{
		Properties: memory.DeviceLocal,
		HeapIndex:  0,
		General: &alloc.GeneralConfig{
			BlockSizeGranularity: 256,
			BlocksPerChunk:       1,
			MaxBlockSize:         4096,
		},
	}}
	device := host.NewDevice(1)
	defer device.AssertEmpty(t)

	h, err := New(types, []memory.Size{1000}, 64, &Options{Logger: discardLogger()})
	require.NoError(t, err)
	defer h.Clear(device)

	_, err = h.Allocate(device, 0b1, memory.Data, 600, 1)
	require.True(t, IsOutOfMemory(err))
	require.Zero(t, h.Utilization().Heaps[0].Used)
	require.Zero(t, device.LiveAllocations())
}

func Test_BudgetConservation(t *testing.T) {
	types := []TypeConfig{
		{
			Properties: memory.DeviceLocal,
			HeapIndex:  0,
			General:    &alloc.GeneralConfig{BlockSizeGranularity: 64, BlocksPerChunk: 8, MaxBlockSize: 8192},
		},
		{
			Properties: memory.HostVisible | memory.HostCoherent,
			HeapIndex:  1,
			Linear:     &alloc.LinearConfig{LineSize: 65536},
		},
	}
	device := host.NewDevice(2)
	defer device.AssertEmpty(t)

	h, err := New(types, []memory.Size{1 << 22, 1 << 22}, 64, nil)
	require.NoError(t, err)
	defer h.Clear(device)

	// Deterministic interleaving of usages, sizes and frees; after every
	// operation the heap trackers must equal the sum of live charges.
	usages := []memory.StandardUsage{memory.Data, memory.Upload, memory.Dynamic, memory.Download}
	charges := make(map[*MemoryBlock]memory.Size)
	heapOf := make(map[*MemoryBlock]int)
	var live []*MemoryBlock

	check := func() {
		t.Helper()
		want := []memory.Size{0, 0}
		for block, c := range charges {
			want[heapOf[block]] += c
		}
		u := h.Utilization()
		require.Equal(t, want[0], u.Heaps[0].Used)
		require.Equal(t, want[1], u.Heaps[1].Used)
		require.LessOrEqual(t, u.Heaps[0].Used, u.Heaps[0].Total)
		require.LessOrEqual(t, u.Heaps[1].Used, u.Heaps[1].Total)
	}

	for i := 0; i < 200; i++ {
		if i%3 == 2 && len(live) > 0 {
			block := live[0]
			live = live[1:]
			h.Free(device, block)
			delete(charges, block)
			check()
			continue
		}

		usage := usages[i%len(usages)]
		size := memory.Size(32 + 97*i%4000)
		block, err := h.Allocate(device, 0b11, usage, size, 16)
		require.NoError(t, err)
		live = append(live, block)
		charges[block] = block.Size()
		heapOf[block] = int(h.types[block.MemoryType()].heapIndex)
		check()
	}

	for _, block := range live {
		h.Free(device, block)
		delete(charges, block)
		check()
	}
}

func Test_LinearSelectedForTransferUsage(t *testing.T) {
	types := []TypeConfig{{
		Properties: memory.HostVisible | memory.HostCoherent,
		HeapIndex:  0,
		Linear:     &alloc.LinearConfig{LineSize: 4096},
	}}
	device := host.NewDevice(1)
	defer device.AssertEmpty(t)

	h, err := New(types, []memory.Size{1 << 20}, 64, nil)
	require.NoError(t, err)
	defer h.Clear(device)

	first, err := h.Allocate(device, 0b1, memory.Upload, 128, 1)
	require.NoError(t, err)
	require.Equal(t, memory.Size(4096), device.AllocatedBytes(), "one line pulled")

	second, err := h.Allocate(device, 0b1, memory.Upload, 128, 1)
	require.NoError(t, err)
	require.Equal(t, memory.Size(4096), device.AllocatedBytes(), "second block shares the line")

	h.Free(device, first)
	h.Free(device, second)
	require.Zero(t, device.AllocatedBytes(), "drained line returned")
}

func Test_OversizedTransferFallsBackToDedicated(t *testing.T) {
	types := []TypeConfig{{
		Properties: memory.HostVisible | memory.HostCoherent,
		HeapIndex:  0,
		Linear:     &alloc.LinearConfig{LineSize: 4096},
	}}
	device := host.NewDevice(1)
	defer device.AssertEmpty(t)

	h, err := New(types, []memory.Size{1 << 20}, 64, nil)
	require.NoError(t, err)
	defer h.Clear(device)

	// Bigger than a line: the type must route it to the dedicated
	// allocator instead of failing.
	block, err := h.Allocate(device, 0b1, memory.Upload, 8192, 1)
	require.NoError(t, err)
	require.Equal(t, memory.Size(8192), block.Size())
	require.Equal(t, memory.Size(8192), device.AllocatedBytes())
	h.Free(device, block)
}

func Test_ConstructionErrors(t *testing.T) {
	// Heap index out of range.
	_, err := New([]TypeConfig{{Properties: memory.DeviceLocal, HeapIndex: 3}}, []memory.Size{1024}, 64, nil)
	require.ErrorIs(t, err, ErrBadHeapIndex)

	// More types than mask bits.
	manyTypes := make([]TypeConfig, MaxMemoryTypes+1)
	for i := range manyTypes {
		manyTypes[i] = TypeConfig{Properties: memory.DeviceLocal, HeapIndex: 0}
	}
	_, err = New(manyTypes, []memory.Size{1024}, 64, nil)
	require.ErrorIs(t, err, ErrTooManyTypes)

	// Atom size must be a power of two.
	_, err = New(nil, []memory.Size{1024}, 3, nil)
	require.ErrorIs(t, err, ErrBadAtomSize)

	// Invalid strategy config surfaces at construction.
	bad := &alloc.GeneralConfig{BlockSizeGranularity: 100}
	_, err = New([]TypeConfig{{Properties: memory.DeviceLocal, HeapIndex: 0, General: bad}}, []memory.Size{1024}, 64, nil)
	require.ErrorIs(t, err, alloc.ErrBadConfig)
}

func Test_ClearReportsLiveBlocks(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	types, heapSizes := twoHeapLayout()
	device := host.NewDevice(uint32(len(types)))

	h, err := New(types, heapSizes, 64, &Options{Logger: logger})
	require.NoError(t, err)

	block, err := h.Allocate(device, 0b11, memory.Upload, 64, 1)
	require.NoError(t, err)
	_ = block // deliberately leaked into Clear

	h.Clear(device)
	require.Contains(t, buf.String(), "live blocks", "clearing with live blocks must be loud")
}

func Test_CleanTeardownIsQuiet(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	types, heapSizes := twoHeapLayout()
	device := host.NewDevice(uint32(len(types)))
	defer device.AssertEmpty(t)

	h, err := New(types, heapSizes, 64, &Options{Logger: logger})
	require.NoError(t, err)

	block, err := h.Allocate(device, 0b11, memory.Upload, 64, 1)
	require.NoError(t, err)
	h.Free(device, block)

	h.Clear(device)
	require.Empty(t, buf.String(), "clean teardown must produce no diagnostic")

	// The finalizer safety net has nothing to report either.
	h.leakCheck()
	require.Empty(t, buf.String())
}

func Test_DiscardWithoutClearIsLoud(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	types, heapSizes := twoHeapLayout()

	h, err := New(types, heapSizes, 64, &Options{Logger: logger})
	require.NoError(t, err)

	// Simulate the GC finalizer running on an uncleared instance.
	h.leakCheck()
	require.Contains(t, buf.String(), "without Clear")
}

func Test_UtilizationJSONShape(t *testing.T) {
	types, heapSizes := twoHeapLayout()
	device := host.NewDevice(uint32(len(types)))
	defer device.AssertEmpty(t)

	h, err := New(types, heapSizes, 64, nil)
	require.NoError(t, err)
	defer h.Clear(device)

	block, err := h.Allocate(device, 0b11, memory.Upload, 64, 1)
	require.NoError(t, err)
	defer h.Free(device, block)

	raw, err := h.Utilization().MarshalJSON()
	require.NoError(t, err)

	var decoded struct {
		Heaps []struct {
			Used      int64 `json:"used"`
			Allocated int64 `json:"allocated"`
			Total     int64 `json:"total"`
		} `json:"heaps"`
		Types []struct {
			Properties string `json:"properties"`
			HeapIndex  int    `json:"heapIndex"`
			Used       int64  `json:"used"`
		} `json:"types"`
	}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Len(t, decoded.Heaps, 2)
	require.Len(t, decoded.Types, 2)
	require.Equal(t, int64(64), decoded.Heaps[1].Used)
	require.Equal(t, int64(1024), decoded.Heaps[0].Total)
	require.Contains(t, decoded.Types[1].Properties, "HOST_VISIBLE")
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

func Benchmark_AllocateFree(b *testing.B) {
	types := []TypeConfig{{
		Properties: memory.DeviceLocal,
		HeapIndex:  0,
		General:    &alloc.GeneralConfig{},
	}}
	device := host.NewDevice(1)

	h, err := New(types, []memory.Size{1 << 30}, 64, nil)
	if err != nil {
		b.Fatal(err)
	}
	defer h.Clear(device)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		block, err := h.Allocate(device, 0b1, memory.Data, 256, 16)
		if err != nil {
			b.Fatal(err)
		}
		h.Free(device, block)
	}
}
