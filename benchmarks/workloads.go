package benchmarks

import (
	"math/rand"

	"github.com/sarchlab/csim/cache"
	"github.com/sarchlab/csim/trace"
)

// maxSpan caps the address range a workload touches so that large caches
// do not produce huge traces.
const maxSpan = 1 << 20

const wordSize = 8

// baseAddr keeps generated traces away from address zero.
const baseAddr = 0x10000

// GetWorkloads returns the standard set of workloads. Each one stresses a
// different aspect of cache geometry.
func GetWorkloads() []Benchmark {
	return []Benchmark{
		sequentialScan(),
		workingSetReuse(),
		conflictStride(),
		matrixRowMajor(),
		matrixColumnMajor(),
		randomAccess(),
		readModifyWrite(),
		instructionMix(),
	}
}

// GetCoreWorkloads returns a minimal set of workloads for quick checks.
func GetCoreWorkloads() []Benchmark {
	return []Benchmark{
		sequentialScan(),
		conflictStride(),
		randomAccess(),
	}
}

// span returns factor times the cache size, clamped to [block size, maxSpan].
func span(g cache.Geometry, factor uint64) uint64 {
	n := g.Size() * factor
	if n > maxSpan || n/factor != g.Size() {
		n = maxSpan
	}
	if n < g.BlockSize() {
		n = g.BlockSize()
	}
	return n
}

func load(addr uint64) trace.Record {
	return trace.Record{Kind: trace.Load, Address: addr, Size: wordSize}
}

// 1. Sequential Scan - one load per word over four times the cache size
func sequentialScan() Benchmark {
	return Benchmark{
		Name:        "sequential_scan",
		Description: "Word-by-word loads over 4x the cache - measures spatial locality",
		Generate: func(g cache.Geometry) []trace.Record {
			n := span(g, 4)

			records := make([]trace.Record, 0, n/wordSize)
			for off := uint64(0); off < n; off += wordSize {
				records = append(records, load(baseAddr+off))
			}
			return records
		},
	}
}

// 2. Working Set Reuse - four passes over half the cache, one load per block
func workingSetReuse() Benchmark {
	return Benchmark{
		Name:        "working_set_reuse",
		Description: "Repeated passes over a working set half the cache size - measures temporal locality",
		Generate: func(g cache.Geometry) []trace.Record {
			blocks := g.NumLines() / 2
			if blocks < 1 {
				blocks = 1
			}
			if uint64(blocks)*g.BlockSize() > maxSpan {
				blocks = int(maxSpan / g.BlockSize())
			}

			var records []trace.Record
			for pass := 0; pass < 4; pass++ {
				for i := 0; i < blocks; i++ {
					records = append(records, load(baseAddr+uint64(i)*g.BlockSize()))
				}
			}
			return records
		},
	}
}

// 3. Conflict Stride - E+1 blocks that share a set, cycled in order
func conflictStride() Benchmark {
	return Benchmark{
		Name:        "conflict_stride",
		Description: "Cycles through one more block than a set holds - every access misses under LRU",
		Generate: func(g cache.Geometry) []trace.Record {
			stride := uint64(g.NumSets()) * g.BlockSize()
			ways := g.E + 1

			var records []trace.Record
			for pass := 0; pass < 8; pass++ {
				for i := 0; i < ways; i++ {
					records = append(records, load(uint64(i)*stride))
				}
			}
			return records
		},
	}
}

// matrixDim picks a square int32 matrix whose footprint is twice the cache.
func matrixDim(g cache.Geometry) uint64 {
	elems := span(g, 2) / 4
	n := uint64(1)
	for (n+1)*(n+1) <= elems {
		n++
	}
	return n
}

// 4. Matrix Row Major - row-by-row walk of an int32 matrix
func matrixRowMajor() Benchmark {
	return Benchmark{
		Name:        "matrix_row_major",
		Description: "Row-major walk of a square int32 matrix - cache-friendly order",
		Generate: func(g cache.Geometry) []trace.Record {
			n := matrixDim(g)

			records := make([]trace.Record, 0, n*n)
			for i := uint64(0); i < n; i++ {
				for j := uint64(0); j < n; j++ {
					records = append(records, trace.Record{
						Kind:    trace.Load,
						Address: baseAddr + (i*n+j)*4,
						Size:    4,
					})
				}
			}
			return records
		},
	}
}

// 5. Matrix Column Major - column-by-column stores into an int32 matrix
func matrixColumnMajor() Benchmark {
	return Benchmark{
		Name:        "matrix_column_major",
		Description: "Column-major stores into a square int32 matrix - cache-hostile order",
		Generate: func(g cache.Geometry) []trace.Record {
			n := matrixDim(g)

			records := make([]trace.Record, 0, n*n)
			for j := uint64(0); j < n; j++ {
				for i := uint64(0); i < n; i++ {
					records = append(records, trace.Record{
						Kind:    trace.Store,
						Address: baseAddr + (i*n+j)*4,
						Size:    4,
					})
				}
			}
			return records
		},
	}
}

// 6. Random Access - seeded uniform loads and stores over 8x the cache
func randomAccess() Benchmark {
	return Benchmark{
		Name:        "random_access",
		Description: "Uniformly random word accesses over 8x the cache - low locality",
		Generate: func(g cache.Geometry) []trace.Record {
			rng := rand.New(rand.NewSource(42))
			words := span(g, 8) / wordSize
			if words == 0 {
				words = 1
			}

			records := make([]trace.Record, 4096)
			for i := range records {
				kind := trace.Load
				if rng.Intn(4) == 0 {
					kind = trace.Store
				}
				records[i] = trace.Record{
					Kind:    kind,
					Address: baseAddr + uint64(rng.Int63n(int64(words)))*wordSize,
					Size:    wordSize,
				}
			}
			return records
		},
	}
}

// 7. Read Modify Write - two passes of in-place updates over the cache size
func readModifyWrite() Benchmark {
	return Benchmark{
		Name:        "read_modify_write",
		Description: "In-place word updates over the cache size - every modify hits on its store",
		Generate: func(g cache.Geometry) []trace.Record {
			n := span(g, 1)

			var records []trace.Record
			for pass := 0; pass < 2; pass++ {
				for off := uint64(0); off < n; off += wordSize {
					records = append(records, trace.Record{
						Kind:    trace.Modify,
						Address: baseAddr + off,
						Size:    wordSize,
					})
				}
			}
			return records
		},
	}
}

// 8. Instruction Mix - a load and a store between every few instruction
// fetches, as lackey traces look
func instructionMix() Benchmark {
	return Benchmark{
		Name:        "instruction_mix",
		Description: "Loads and stores interleaved with instruction fetches - fetches are ignored",
		Generate: func(g cache.Geometry) []trace.Record {
			n := span(g, 2)
			pc := uint64(0x400000)

			var records []trace.Record
			for off := uint64(0); off < n; off += wordSize {
				records = append(records,
					trace.Record{Kind: trace.Instruction, Address: pc, Size: 4},
					trace.Record{Kind: trace.Instruction, Address: pc + 4, Size: 4},
					load(baseAddr+off),
					trace.Record{Kind: trace.Instruction, Address: pc + 8, Size: 4},
					trace.Record{Kind: trace.Store, Address: 0x7ff000 + off%64, Size: wordSize},
				)
			}
			return records
		},
	}
}
