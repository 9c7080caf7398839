// Command benchmark replays the synthetic workload set through the cache
// simulator.
//
// Usage:
//
//	go run ./cmd/benchmark [flags]
//
// Flags:
//
//	-s, -E, -b  Cache geometry (default: 32 sets, direct mapped, 32B lines)
//	--csv       Output results in CSV format (default: human-readable)
//	--json      Output results in JSON format
//	--core      Run only the core workloads
//	--verify    Cross-check every run against the reference model
//	--dump      Write the generated traces into a directory
//
// Example:
//
//	# Compare two associativities in CSV
//	go run ./cmd/benchmark -E 1 --csv > direct.csv
//	go run ./cmd/benchmark -E 4 --csv > four_way.csv
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/csim/benchmarks"
)

func main() {
	config := benchmarks.DefaultConfig()

	var (
		csvOutput  bool
		jsonOutput bool
		coreOnly   bool
		dumpDir    string
	)

	cmd := &cobra.Command{
		Use:           "benchmark",
		Short:         "Replay synthetic access patterns through the cache simulator.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			config.Output = cmd.OutOrStdout()

			harness := benchmarks.NewHarness(config)
			if coreOnly {
				harness.AddBenchmarks(benchmarks.GetCoreWorkloads())
			} else {
				harness.AddBenchmarks(benchmarks.GetWorkloads())
			}

			if dumpDir != "" {
				if err := harness.DumpTraces(dumpDir); err != nil {
					return err
				}
			}

			results, err := harness.RunAll()
			if err != nil {
				return err
			}

			switch {
			case jsonOutput:
				return harness.PrintJSON(results)
			case csvOutput:
				harness.PrintCSV(results)
			default:
				harness.PrintResults(results)
			}

			return nil
		},
	}

	flags := cmd.Flags()
	flags.IntVarP(&config.Geometry.S, "set-bits", "s", config.Geometry.S, "number of set index bits")
	flags.IntVarP(&config.Geometry.E, "lines", "E", config.Geometry.E, "lines per set")
	flags.IntVarP(&config.Geometry.B, "block-bits", "b", config.Geometry.B, "number of block offset bits")
	flags.BoolVar(&csvOutput, "csv", false, "output results in CSV format")
	flags.BoolVar(&jsonOutput, "json", false, "output results in JSON format")
	flags.BoolVar(&coreOnly, "core", false, "run only the core workloads")
	flags.BoolVar(&config.Verify, "verify", false, "cross-check against the reference model")
	flags.BoolVar(&config.LenientBlocks, "lenient-blocks", false, "accept accesses wider than a cache block")
	flags.BoolVarP(&config.Verbose, "verbose", "v", false, "print each result as it completes")
	flags.StringVar(&dumpDir, "dump", "", "write generated traces into this directory")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running benchmarks: %v\n", err)
		atexit.Exit(1)
	}
	atexit.Exit(0)
}
