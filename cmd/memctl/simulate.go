package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"

	"github.com/spf13/cobra"

	"github.com/hafixo/gfx-extras/memory"
	"github.com/hafixo/gfx-extras/memory/alloc"
	"github.com/hafixo/gfx-extras/memory/heaps"
	"github.com/hafixo/gfx-extras/memory/host"
)

var (
	simOps      int
	simSeed     int64
	simMinSize  uint64
	simMaxSize  uint64
	simDeviceMB uint64
	simHostMB   uint64
)

func init() {
	cmd := newSimulateCmd()
	cmd.Flags().IntVar(&simOps, "ops", 10000, "Number of allocate/free operations")
	cmd.Flags().Int64Var(&simSeed, "seed", 1, "Workload RNG seed")
	cmd.Flags().Uint64Var(&simMinSize, "min-size", 64, "Minimum request size in bytes")
	cmd.Flags().Uint64Var(&simMaxSize, "max-size", 1<<20, "Maximum request size in bytes")
	cmd.Flags().Uint64Var(&simDeviceMB, "device-heap", 512, "Device-local heap size in MiB")
	cmd.Flags().Uint64Var(&simHostMB, "host-heap", 256, "Host-visible heap size in MiB")
	rootCmd.AddCommand(cmd)
}

func newSimulateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "simulate",
		Short: "Run a randomized allocation workload and report utilization",
		Long: `The simulate command builds a two-heap, three-type layout resembling a
discrete GPU, runs a randomized allocate/free workload against it, and
prints the utilization report at peak and after teardown.

Example:
  memctl simulate --ops 50000 --seed 7
  memctl simulate --device-heap 1024 --max-size 4194304 -v`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate()
		},
	}
}

// discreteGPULayout mirrors a typical discrete card: one device-local heap,
// one shared host-visible heap with a coherent and a cached type.
func discreteGPULayout(deviceHeap, hostHeap memory.Size) ([]heaps.TypeConfig, []memory.Size) {
	types := []heaps.TypeConfig{
		{
			Properties: memory.DeviceLocal,
			HeapIndex:  0,
			General:    &alloc.GeneralConfig{},
		},
		{
			Properties: memory.HostVisible | memory.HostCoherent,
			HeapIndex:  1,
			General:    &alloc.GeneralConfig{},
			Linear:     &alloc.LinearConfig{},
		},
		{
			Properties: memory.HostVisible | memory.HostCached,
			HeapIndex:  1,
			Linear:     &alloc.LinearConfig{},
		},
	}
	return types, []memory.Size{deviceHeap, hostHeap}
}

func runSimulate() error {
	types, heapSizes := discreteGPULayout(simDeviceMB<<20, simHostMB<<20)
	device := host.NewDevice(uint32(len(types)))

	router, err := heaps.New(types, heapSizes, 64, nil)
	if err != nil {
		return err
	}

	rng := rand.New(rand.NewSource(simSeed))
	usages := []memory.StandardUsage{memory.Data, memory.Dynamic, memory.Upload, memory.Download}

	var (
		live     []*heaps.MemoryBlock
		allocs   int
		failures int
	)
	for i := 0; i < simOps; i++ {
		// Bias toward allocation until a pool of live blocks builds up.
		if len(live) == 0 || rng.Intn(3) != 0 {
			usage := usages[rng.Intn(len(usages))]
			size := simMinSize + uint64(rng.Int63n(int64(simMaxSize-simMinSize+1)))
			align := memory.Size(1) << uint(rng.Intn(9)) // 1..256

			block, err := router.Allocate(device, ^uint32(0), usage, size, align)
			if err != nil {
				if heaps.IsOutOfMemory(err) {
					failures++
					continue
				}
				return err
			}
			live = append(live, block)
			allocs++
		} else {
			j := rng.Intn(len(live))
			router.Free(device, live[j])
			live[j] = live[len(live)-1]
			live = live[:len(live)-1]
		}
	}

	fmt.Printf("ops=%d allocations=%d capacity-failures=%d live-at-peak=%d\n",
		simOps, allocs, failures, len(live))
	if err := printUtilization(router.Utilization()); err != nil {
		return err
	}

	for _, block := range live {
		router.Free(device, block)
	}
	router.Clear(device)

	if n := device.LiveAllocations(); n != 0 {
		return fmt.Errorf("device reports %d leaked allocations after teardown", n)
	}
	fmt.Println("teardown clean: no native allocations outstanding")
	return nil
}

func printUtilization(u heaps.TotalUtilization) error {
	raw, err := u.MarshalJSON()
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return err
	}
	buf.WriteByte('\n')
	_, err = buf.WriteTo(os.Stdout)
	return err
}
