// Package main provides a profiling wrapper for csim to identify performance
// bottlenecks in trace replay.
package main

import (
	"errors"
	"fmt"
	"os"
	"runtime/pprof"
	"time"

	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/csim/cache"
	"github.com/sarchlab/csim/sim"
	"github.com/sarchlab/csim/trace"
)

var (
	geometry   = cache.DefaultGeometry()
	tracePath  string
	cpuProfile string
	memProfile string
	repeat     int
	stream     bool
	lenient    bool
)

func main() {
	cmd := &cobra.Command{
		Use:           "profile -t <tracefile>",
		Short:         "Replay a trace repeatedly under the Go profiler.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(*cobra.Command, []string) error {
			return profile()
		},
	}

	flags := cmd.Flags()
	flags.IntVarP(&geometry.S, "set-bits", "s", geometry.S, "number of set index bits")
	flags.IntVarP(&geometry.E, "lines", "E", geometry.E, "lines per set")
	flags.IntVarP(&geometry.B, "block-bits", "b", geometry.B, "number of block offset bits")
	flags.StringVarP(&tracePath, "trace", "t", "", "trace file to replay")
	flags.StringVar(&cpuProfile, "cpuprofile", "", "write cpu profile to file")
	flags.StringVar(&memProfile, "memprofile", "", "write memory profile to file")
	flags.IntVar(&repeat, "repeat", 10, "number of times to replay the trace")
	flags.BoolVar(&stream, "stream", false, "read the trace from disk on every replay")
	flags.BoolVar(&lenient, "lenient-blocks", false, "accept accesses wider than a cache block")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		atexit.Exit(1)
	}
	atexit.Exit(0)
}

func profile() error {
	if tracePath == "" {
		return errors.New("a trace file is required (-t)")
	}

	// Start CPU profiling if requested
	if cpuProfile != "" {
		f, err := os.Create(cpuProfile)
		if err != nil {
			return fmt.Errorf("creating CPU profile: %w", err)
		}
		defer func() { _ = f.Close() }()

		if err := pprof.StartCPUProfile(f); err != nil {
			return fmt.Errorf("starting CPU profile: %w", err)
		}
		defer pprof.StopCPUProfile()
	}

	var records []trace.Record
	if !stream {
		var err error
		records, err = trace.LoadFile(tracePath)
		if err != nil {
			return fmt.Errorf("loading trace: %w", err)
		}
	}

	fmt.Printf("Trace: %s\n", tracePath)
	fmt.Printf("Geometry: %s\n", geometry)

	start := time.Now()

	var (
		result   sim.Result
		accesses uint64
	)
	for i := 0; i < repeat; i++ {
		var err error
		result, err = replay(records)
		if err != nil {
			return err
		}
		accesses += result.Accesses()
	}

	elapsed := time.Since(start)

	// Write memory profile if requested
	if memProfile != "" {
		f, err := os.Create(memProfile)
		if err != nil {
			return fmt.Errorf("creating memory profile: %w", err)
		}
		defer func() { _ = f.Close() }()

		if err := pprof.WriteHeapProfile(f); err != nil {
			return fmt.Errorf("writing memory profile: %w", err)
		}
	}

	fmt.Printf("\nProfiling Results:\n")
	fmt.Printf("Result: %s\n", result)
	fmt.Printf("Replays: %d\n", repeat)
	fmt.Printf("Accesses simulated: %d\n", accesses)
	fmt.Printf("Elapsed time: %v\n", elapsed)
	if accesses > 0 {
		fmt.Printf("Accesses/second: %.0f\n", float64(accesses)/elapsed.Seconds())
	}

	return nil
}

// replay runs the trace once on a fresh cache, either from the records
// already in memory or streamed from the trace file.
func replay(records []trace.Record) (sim.Result, error) {
	c, err := cache.New(geometry)
	if err != nil {
		return sim.Result{}, err
	}
	var opts []sim.Option
	if lenient {
		opts = append(opts, sim.WithoutBlockBoundCheck())
	}
	engine := sim.NewEngine(c, opts...)

	if !stream {
		return engine.Run(records)
	}

	f, err := os.Open(tracePath)
	if err != nil {
		return sim.Result{}, fmt.Errorf("opening trace: %w", err)
	}
	defer func() { _ = f.Close() }()

	return engine.RunReader(trace.NewReader(f))
}
