package memory_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hafixo/gfx-extras/memory"
	"github.com/hafixo/gfx-extras/memory/host"
)

func Test_AlignHelpers(t *testing.T) {
	tests := []struct {
		value, align, up, down memory.Size
	}{
		{0, 64, 0, 0},
		{1, 64, 64, 0},
		{64, 64, 64, 64},
		{65, 64, 128, 64},
		{1000, 256, 1024, 768},
		{7, 1, 7, 7},
	}
	for _, tt := range tests {
		require.Equal(t, tt.up, memory.AlignUp(tt.value, tt.align), "AlignUp(%d, %d)", tt.value, tt.align)
		require.Equal(t, tt.down, memory.AlignDown(tt.value, tt.align), "AlignDown(%d, %d)", tt.value, tt.align)
	}

	require.True(t, memory.IsPowerOfTwo(1))
	require.True(t, memory.IsPowerOfTwo(4096))
	require.False(t, memory.IsPowerOfTwo(0))
	require.False(t, memory.IsPowerOfTwo(768))
}

func Test_PropertiesContains(t *testing.T) {
	p := memory.HostVisible | memory.HostCoherent
	require.True(t, p.Contains(memory.HostVisible))
	require.True(t, p.Contains(p))
	require.True(t, p.Contains(0))
	require.False(t, p.Contains(memory.DeviceLocal))
	require.False(t, p.Contains(memory.HostVisible|memory.HostCached))
}

func Test_PropertiesString(t *testing.T) {
	require.Equal(t, "(none)", memory.Properties(0).String())
	require.Equal(t, "DEVICE_LOCAL", memory.DeviceLocal.String())
	require.Equal(t, "HOST_VISIBLE|HOST_COHERENT",
		(memory.HostVisible | memory.HostCoherent).String())
}

func Test_StandardUsageRequirements(t *testing.T) {
	require.Equal(t, memory.DeviceLocal, memory.Data.PropertiesRequired())
	for _, u := range []memory.StandardUsage{memory.Dynamic, memory.Upload, memory.Download} {
		require.Equal(t, memory.HostVisible, u.PropertiesRequired(), "%s", u)
	}
}

func Test_StandardUsageFitnessOrdering(t *testing.T) {
	deviceOnly := memory.DeviceLocal
	deviceMapped := memory.DeviceLocal | memory.HostVisible | memory.HostCoherent
	staging := memory.HostVisible | memory.HostCoherent
	readback := memory.HostVisible | memory.HostCached

	// Data wants memory the host cannot see.
	require.Greater(t, memory.Data.Fitness(deviceOnly), memory.Data.Fitness(deviceMapped))

	// Dynamic wants mapped device-local memory over plain staging.
	require.Greater(t, memory.Dynamic.Fitness(deviceMapped), memory.Dynamic.Fitness(staging))

	// Upload prefers not to burn device-local budget.
	require.Greater(t, memory.Upload.Fitness(staging), memory.Upload.Fitness(deviceMapped))

	// Download wants cached memory for CPU reads.
	require.Greater(t, memory.Download.Fitness(readback), memory.Download.Fitness(staging))
}

func Test_StandardUsageAllocatorPreference(t *testing.T) {
	for _, u := range []memory.StandardUsage{memory.Data, memory.Dynamic} {
		require.Greater(t, u.AllocatorFitness(memory.KindGeneral), u.AllocatorFitness(memory.KindDedicated), "%s", u)
		require.Greater(t, u.AllocatorFitness(memory.KindDedicated), u.AllocatorFitness(memory.KindLinear), "%s", u)
	}
	for _, u := range []memory.StandardUsage{memory.Upload, memory.Download} {
		require.Greater(t, u.AllocatorFitness(memory.KindLinear), u.AllocatorFitness(memory.KindGeneral), "%s", u)
	}
}

func Test_MapRangeCoherent(t *testing.T) {
	device := host.NewDevice(1)
	defer device.AssertEmpty(t)

	mem, err := device.AllocateMemory(0, 4096)
	require.NoError(t, err)

	mr, err := memory.MapRange(device, mem, memory.Segment{Offset: 100, Length: 50}, 64,
		memory.HostVisible|memory.HostCoherent)
	require.NoError(t, err)
	require.Len(t, mr.Bytes(), 50)
	require.True(t, mr.Coherent())
	require.Equal(t, mr.Segment(), mr.MappedSegment(), "coherent windows are not widened")
	mr.Unmap(device)

	device.FreeMemory(mem)
}

func Test_MapRangeWidensForNonCoherentAtom(t *testing.T) {
	device := host.NewDevice(1)
	defer device.AssertEmpty(t)

	mem, err := device.AllocateMemory(0, 4096)
	require.NoError(t, err)

	// HostVisible without HostCoherent: the mapped window must widen to
	// 64-byte atom boundaries while Bytes stays the requested 50.
	mr, err := memory.MapRange(device, mem, memory.Segment{Offset: 100, Length: 50}, 64,
		memory.HostVisible)
	require.NoError(t, err)
	require.False(t, mr.Coherent())
	require.Len(t, mr.Bytes(), 50)
	require.Equal(t, memory.Segment{Offset: 64, Length: 128}, mr.MappedSegment())
	mr.Unmap(device)

	device.FreeMemory(mem)
}

func Test_MapRangeRejections(t *testing.T) {
	device := host.NewDevice(1)
	defer device.AssertEmpty(t)

	mem, err := device.AllocateMemory(0, 128)
	require.NoError(t, err)

	_, err = memory.MapRange(device, mem, memory.Segment{Offset: 0, Length: 64}, 64,
		memory.DeviceLocal)
	require.ErrorIs(t, err, memory.ErrNotHostVisible)

	_, err = memory.MapRange(device, mem, memory.Segment{Offset: 100, Length: 64}, 64,
		memory.HostVisible|memory.HostCoherent)
	require.ErrorIs(t, err, memory.ErrOutOfSegment)

	device.FreeMemory(mem)
}
