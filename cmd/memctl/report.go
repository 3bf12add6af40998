package main

import (
	"github.com/spf13/cobra"

	"github.com/hafixo/gfx-extras/memory/heaps"
	"github.com/hafixo/gfx-extras/memory/host"
)

func init() {
	rootCmd.AddCommand(newReportCmd())
}

func newReportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Print an empty utilization report for the default layout",
		Long: `The report command constructs the default simulated layout, prints its
utilization report without running a workload, and tears it down. Useful for
checking the report shape consumed by dashboards.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			types, heapSizes := discreteGPULayout(512<<20, 256<<20)
			device := host.NewDevice(uint32(len(types)))

			router, err := heaps.New(types, heapSizes, 64, nil)
			if err != nil {
				return err
			}
			defer router.Clear(device)

			return printUtilization(router.Utilization())
		},
	}
}
