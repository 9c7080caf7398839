// Package benchmarks provides synthetic access-pattern workloads and a
// harness that replays them through the cache simulator.
package benchmarks

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sarchlab/csim/cache"
	"github.com/sarchlab/csim/reference"
	"github.com/sarchlab/csim/sim"
	"github.com/sarchlab/csim/trace"
)

// BenchmarkResult holds the results of a single workload run.
type BenchmarkResult struct {
	// Name identifies the benchmark
	Name string `json:"name"`

	// Description explains the access pattern
	Description string `json:"description"`

	// Records is the number of trace records replayed
	Records int `json:"records"`

	Hits      uint64  `json:"hits"`
	Misses    uint64  `json:"misses"`
	Evictions uint64  `json:"evictions"`
	HitRate   float64 `json:"hit_rate"`

	// Verified is true if the run was cross-checked against the reference
	// model
	Verified bool `json:"verified"`

	// WallTime is the actual time taken to run the simulation
	WallTime time.Duration `json:"wall_time_ns"`
}

// Benchmark defines a single workload.
type Benchmark struct {
	// Name identifies the benchmark
	Name string

	// Description explains the access pattern
	Description string

	// Generate produces the trace for a cache of the given geometry
	Generate func(g cache.Geometry) []trace.Record
}

// HarnessConfig configures the benchmark harness.
type HarnessConfig struct {
	// Geometry is the cache every workload runs on
	Geometry cache.Geometry

	// Verify cross-checks every run against the reference model
	Verify bool

	// LenientBlocks accepts accesses wider than a cache block
	LenientBlocks bool

	// Output is where to write results (default: os.Stdout)
	Output io.Writer

	// Verbose enables detailed output
	Verbose bool
}

// DefaultConfig returns a default harness configuration.
func DefaultConfig() HarnessConfig {
	return HarnessConfig{
		Geometry: cache.Geometry{S: 5, E: 1, B: 5},
		Verify:   false,
		Output:   os.Stdout,
		Verbose:  false,
	}
}

// Harness runs workloads and reports results.
type Harness struct {
	config     HarnessConfig
	benchmarks []Benchmark
}

// NewHarness creates a new benchmark harness.
func NewHarness(config HarnessConfig) *Harness {
	if config.Output == nil {
		config.Output = os.Stdout
	}
	return &Harness{
		config:     config,
		benchmarks: []Benchmark{},
	}
}

// AddBenchmark adds a benchmark to the harness.
func (h *Harness) AddBenchmark(b Benchmark) {
	h.benchmarks = append(h.benchmarks, b)
}

// AddBenchmarks adds multiple benchmarks to the harness.
func (h *Harness) AddBenchmarks(benchmarks []Benchmark) {
	h.benchmarks = append(h.benchmarks, benchmarks...)
}

// RunAll executes all benchmarks and returns results. It stops at the first
// benchmark that fails.
func (h *Harness) RunAll() ([]BenchmarkResult, error) {
	if err := h.config.Geometry.Validate(); err != nil {
		return nil, err
	}

	results := make([]BenchmarkResult, 0, len(h.benchmarks))

	for _, bench := range h.benchmarks {
		result, err := h.runBenchmark(bench)
		if err != nil {
			return results, fmt.Errorf("benchmark %s: %w", bench.Name, err)
		}
		results = append(results, result)
	}

	return results, nil
}

// runBenchmark executes a single benchmark on a fresh cache.
func (h *Harness) engineOptions() []sim.Option {
	if h.config.LenientBlocks {
		return []sim.Option{sim.WithoutBlockBoundCheck()}
	}
	return nil
}

func (h *Harness) runBenchmark(bench Benchmark) (BenchmarkResult, error) {
	records := bench.Generate(h.config.Geometry)

	start := time.Now()
	var (
		result sim.Result
		err    error
	)
	if h.config.Verify {
		result, err = reference.Verify(h.config.Geometry, records, h.engineOptions()...)
	} else {
		result, err = sim.Run(h.config.Geometry, records, h.engineOptions()...)
	}
	wallTime := time.Since(start)

	if err != nil {
		return BenchmarkResult{}, err
	}

	if h.config.Verbose {
		_, _ = fmt.Fprintf(h.config.Output, "%s: %s\n", bench.Name, result)
	}

	return BenchmarkResult{
		Name:        bench.Name,
		Description: bench.Description,
		Records:     len(records),
		Hits:        result.Hits,
		Misses:      result.Misses,
		Evictions:   result.Evictions,
		HitRate:     result.HitRate(),
		Verified:    h.config.Verify,
		WallTime:    wallTime,
	}, nil
}

// DumpTraces writes the trace of every benchmark into dir as <name>.trace.
func (h *Harness) DumpTraces(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create trace directory: %w", err)
	}

	for _, bench := range h.benchmarks {
		path := filepath.Join(dir, bench.Name+".trace")

		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create trace file: %w", err)
		}

		err = trace.Write(f, bench.Generate(h.config.Geometry))
		closeErr := f.Close()
		if err != nil {
			return err
		}
		if closeErr != nil {
			return fmt.Errorf("failed to close trace file: %w", closeErr)
		}
	}

	return nil
}

// PrintResults outputs benchmark results in a human-readable format.
func (h *Harness) PrintResults(results []BenchmarkResult) {
	_, _ = fmt.Fprintln(h.config.Output, "=== csim Workload Results ===")
	_, _ = fmt.Fprintf(h.config.Output, "Geometry: %s (%d bytes)\n",
		h.config.Geometry, h.config.Geometry.Size())
	_, _ = fmt.Fprintln(h.config.Output, "")

	for _, r := range results {
		_, _ = fmt.Fprintf(h.config.Output, "Benchmark: %s\n", r.Name)
		_, _ = fmt.Fprintf(h.config.Output, "  Description: %s\n", r.Description)
		_, _ = fmt.Fprintf(h.config.Output, "  Records:   %d\n", r.Records)
		_, _ = fmt.Fprintf(h.config.Output, "  Hits:      %d\n", r.Hits)
		_, _ = fmt.Fprintf(h.config.Output, "  Misses:    %d\n", r.Misses)
		_, _ = fmt.Fprintf(h.config.Output, "  Evictions: %d\n", r.Evictions)
		_, _ = fmt.Fprintf(h.config.Output, "  Hit Rate:  %.1f%%\n", 100*r.HitRate)
		if r.Verified {
			_, _ = fmt.Fprintln(h.config.Output, "  Verified against reference model")
		}
		_, _ = fmt.Fprintf(h.config.Output, "  Wall Time: %v\n", r.WallTime)
		_, _ = fmt.Fprintln(h.config.Output, "")
	}
}

// PrintCSV outputs benchmark results in CSV format for easy comparison.
func (h *Harness) PrintCSV(results []BenchmarkResult) {
	_, _ = fmt.Fprintln(h.config.Output,
		"name,s,E,b,records,hits,misses,evictions,hit_rate")

	g := h.config.Geometry
	for _, r := range results {
		_, _ = fmt.Fprintf(h.config.Output, "%s,%d,%d,%d,%d,%d,%d,%d,%.4f\n",
			r.Name,
			g.S,
			g.E,
			g.B,
			r.Records,
			r.Hits,
			r.Misses,
			r.Evictions,
			r.HitRate,
		)
	}
}

// BenchmarkReport is the complete output format for benchmark results.
type BenchmarkReport struct {
	// Metadata about the benchmark run
	Metadata ReportMetadata `json:"metadata"`

	// Results is the list of individual benchmark results
	Results []BenchmarkResult `json:"results"`

	// Summary contains aggregate statistics
	Summary ReportSummary `json:"summary"`
}

// ReportMetadata contains information about the benchmark run.
type ReportMetadata struct {
	// Timestamp when the benchmark was run
	Timestamp string `json:"timestamp"`

	// Geometry of the simulated cache
	Geometry cache.Geometry `json:"geometry"`
}

// ReportSummary contains aggregate statistics across all benchmarks.
type ReportSummary struct {
	TotalBenchmarks int     `json:"total_benchmarks"`
	TotalHits       uint64  `json:"total_hits"`
	TotalMisses     uint64  `json:"total_misses"`
	TotalEvictions  uint64  `json:"total_evictions"`
	OverallHitRate  float64 `json:"overall_hit_rate"`

	// TotalWallTime is the total wall clock time for all benchmarks
	TotalWallTime time.Duration `json:"total_wall_time_ns"`
}

// PrintJSON outputs benchmark results in JSON format for automated comparison.
func (h *Harness) PrintJSON(results []BenchmarkResult) error {
	var total sim.Result
	var totalWallTime time.Duration
	for _, r := range results {
		total.Hits += r.Hits
		total.Misses += r.Misses
		total.Evictions += r.Evictions
		totalWallTime += r.WallTime
	}

	report := BenchmarkReport{
		Metadata: ReportMetadata{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Geometry:  h.config.Geometry,
		},
		Results: results,
		Summary: ReportSummary{
			TotalBenchmarks: len(results),
			TotalHits:       total.Hits,
			TotalMisses:     total.Misses,
			TotalEvictions:  total.Evictions,
			OverallHitRate:  total.HitRate(),
			TotalWallTime:   totalWallTime,
		},
	}

	encoder := json.NewEncoder(h.config.Output)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}
