package sim_test

import (
	"bytes"
	"math/rand"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	akitasim "github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/csim/cache"
	"github.com/sarchlab/csim/sim"
	"github.com/sarchlab/csim/trace"
)

func load(addr uint64) trace.Record {
	return trace.Record{Kind: trace.Load, Address: addr, Size: 1}
}

func store(addr uint64) trace.Record {
	return trace.Record{Kind: trace.Store, Address: addr, Size: 1}
}

func modify(addr uint64) trace.Record {
	return trace.Record{Kind: trace.Modify, Address: addr, Size: 1}
}

func fetch(addr uint64) trace.Record {
	return trace.Record{Kind: trace.Instruction, Address: addr, Size: 4}
}

func parse(text string) []trace.Record {
	records, err := trace.Parse(strings.NewReader(text))
	Expect(err).NotTo(HaveOccurred())
	return records
}

// randomTrace builds a reproducible mix of data accesses and instruction
// fetches over a small address range.
func randomTrace(seed int64, n int) []trace.Record {
	rng := rand.New(rand.NewSource(seed))
	kinds := []trace.Kind{trace.Instruction, trace.Load, trace.Store, trace.Modify}

	records := make([]trace.Record, n)
	for i := range records {
		records[i] = trace.Record{
			Kind:    kinds[rng.Intn(len(kinds))],
			Address: uint64(rng.Intn(1 << 12)),
			Size:    1 + rng.Intn(sim.MaxAccessSize),
		}
	}
	return records
}

var _ = Describe("Engine", func() {
	oneLine := cache.Geometry{S: 0, E: 1, B: 0}

	DescribeTable("counting hits, misses and evictions",
		func(g cache.Geometry, text string, expected sim.Result) {
			result, err := sim.Run(g, parse(text))
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal(expected))
		},
		Entry("direct-mapped conflicts",
			oneLine, "L 10,1\nL 20,1\nL 10,1",
			sim.Result{Hits: 0, Misses: 3, Evictions: 2}),
		Entry("LRU evicts the oldest tag",
			cache.Geometry{S: 0, E: 2, B: 0}, "L 1,1\nL 2,1\nL 3,1\nL 1,1",
			sim.Result{Hits: 0, Misses: 4, Evictions: 2}),
		Entry("a revisit hits",
			oneLine, "L 5,1\nL 5,1",
			sim.Result{Hits: 1, Misses: 1, Evictions: 0}),
		Entry("a modify on a new block misses then hits",
			oneLine, "M 7,1",
			sim.Result{Hits: 1, Misses: 1, Evictions: 0}),
		Entry("a modify on a resident block hits twice",
			oneLine, "L 7,1\nM 7,1",
			sim.Result{Hits: 2, Misses: 1, Evictions: 0}),
		Entry("a modify that evicts still hits on its store",
			oneLine, "L 1,1\nM 2,1",
			sim.Result{Hits: 1, Misses: 2, Evictions: 1}),
		Entry("instruction fetches are ignored",
			oneLine, "I 10,15\nI 20,4\nL 30,1",
			sim.Result{Hits: 0, Misses: 1, Evictions: 0}),
		Entry("stores allocate like loads",
			oneLine, "S 40,1\nL 40,1",
			sim.Result{Hits: 1, Misses: 1, Evictions: 0}),
		Entry("recently used lines survive",
			cache.Geometry{S: 0, E: 2, B: 0}, "L 1,1\nL 2,1\nL 1,1\nL 3,1\nL 1,1\nL 2,1",
			sim.Result{Hits: 2, Misses: 4, Evictions: 2}),
		Entry("the classic csim example",
			cache.Geometry{S: 4, E: 1, B: 4},
			" L 10,1\n M 20,1\n L 22,1\n S 18,1\n L 110,1\n L 210,1\n M 12,1",
			sim.Result{Hits: 4, Misses: 5, Evictions: 3}),
	)

	Describe("properties over generated traces", func() {
		geometries := []cache.Geometry{
			{S: 0, E: 1, B: 0},
			{S: 2, E: 1, B: 4},
			{S: 1, E: 4, B: 3},
			{S: 4, E: 2, B: 5},
			{S: 0, E: 16, B: 6},
		}

		It("should conserve accesses", func() {
			records := randomTrace(1, 5000)

			var expected uint64
			for _, r := range records {
				switch r.Kind {
				case trace.Load, trace.Store:
					expected++
				case trace.Modify:
					expected += 2
				}
			}

			for _, g := range geometries {
				result, err := sim.Run(g, records, sim.WithoutBlockBoundCheck())
				Expect(err).NotTo(HaveOccurred())
				Expect(result.Hits + result.Misses).To(Equal(expected))
				Expect(result.Accesses()).To(Equal(expected))
				Expect(result.Evictions).To(BeNumerically("<=", result.Misses))
			}
		})

		It("should be deterministic across independent caches", func() {
			records := randomTrace(2, 5000)

			for _, g := range geometries {
				first, err := sim.Run(g, records, sim.WithoutBlockBoundCheck())
				Expect(err).NotTo(HaveOccurred())

				second, err := sim.Run(g, records, sim.WithoutBlockBoundCheck())
				Expect(err).NotTo(HaveOccurred())

				Expect(second).To(Equal(first))
			}
		})

		It("should advance the clock once per data access", func() {
			records := randomTrace(3, 1000)

			c, err := cache.New(cache.Geometry{S: 2, E: 2, B: 2})
			Expect(err).NotTo(HaveOccurred())

			result, err := sim.NewEngine(c, sim.WithoutBlockBoundCheck()).Run(records)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.Clock()).To(Equal(result.Accesses()))
		})

		It("should never evict before a set is full", func() {
			records := randomTrace(4, 1000)

			g := cache.Geometry{S: 0, E: 1 << 12, B: 0}
			result, err := sim.Run(g, records, sim.WithoutBlockBoundCheck())
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Evictions).To(BeZero())
		})
	})

	Describe("successive runs", func() {
		It("should keep the cache warm on the same engine", func() {
			c, err := cache.New(oneLine)
			Expect(err).NotTo(HaveOccurred())
			engine := sim.NewEngine(c)

			first, err := engine.Run([]trace.Record{load(0x10)})
			Expect(err).NotTo(HaveOccurred())
			Expect(first).To(Equal(sim.Result{Misses: 1}))

			second, err := engine.Run([]trace.Record{load(0x10)})
			Expect(err).NotTo(HaveOccurred())
			Expect(second).To(Equal(sim.Result{Hits: 1}))
			Expect(engine.Cache()).To(BeIdenticalTo(c))
		})
	})

	Describe("rejecting malformed records", func() {
		DescribeTable("the whole run fails",
			func(bad trace.Record, reason string) {
				records := []trace.Record{load(0x1), bad, load(0x2)}

				result, err := sim.Run(oneLine, records)
				Expect(err).To(MatchError(sim.ErrMalformedRecord))
				Expect(err.Error()).To(ContainSubstring("record 1"))
				Expect(err.Error()).To(ContainSubstring(reason))
				Expect(result).To(Equal(sim.Result{}))
			},
			Entry("unknown kind",
				trace.Record{Kind: trace.Kind('X'), Address: 0x1, Size: 1}, "unknown kind"),
			Entry("zero kind",
				trace.Record{Address: 0x1, Size: 1}, "unknown kind"),
			Entry("zero size",
				trace.Record{Kind: trace.Load, Address: 0x1, Size: 0}, "must be positive"),
			Entry("negative size",
				trace.Record{Kind: trace.Store, Address: 0x1, Size: -4}, "must be positive"),
			Entry("zero-sized instruction",
				trace.Record{Kind: trace.Instruction, Address: 0x1, Size: 0}, "must be positive"),
			Entry("negative instruction size",
				trace.Record{Kind: trace.Instruction, Address: 0x1, Size: -1}, "must be positive"),
			Entry("oversized access",
				trace.Record{Kind: trace.Modify, Address: 0x1, Size: 9}, "out of range"),
			Entry("access wider than a block",
				trace.Record{Kind: trace.Load, Address: 0x1, Size: 2}, "exceeds block size 1"),
		)

		It("should leave the cache and hooks untouched when a run is rejected", func() {
			c, err := cache.New(oneLine)
			Expect(err).NotTo(HaveOccurred())

			collector := &eventCollector{}
			engine := sim.NewEngine(c, sim.WithHook(collector))

			records := []trace.Record{load(0x1), load(0x2), {Kind: trace.Load, Address: 0x3, Size: 0}}
			result, err := engine.Run(records)
			Expect(err).To(MatchError(sim.ErrMalformedRecord))
			Expect(result).To(Equal(sim.Result{}))

			Expect(c.Clock()).To(BeZero())
			Expect(c.Set(0).Occupied()).To(BeZero())
			Expect(collector.events).To(BeEmpty())
		})

		It("should name the trace line", func() {
			records := parse(" L 10,1\n L 10,0\n")

			_, err := sim.Run(oneLine, records)
			Expect(err).To(MatchError(sim.ErrMalformedRecord))
			Expect(err.Error()).To(ContainSubstring("line 2"))
		})

		It("should reject accesses wider than a block unless lenient", func() {
			records := []trace.Record{{Kind: trace.Load, Address: 0x0, Size: 4}}
			g := cache.Geometry{S: 1, E: 1, B: 1}

			_, err := sim.Run(g, records)
			Expect(err).To(MatchError(sim.ErrMalformedRecord))
			Expect(err.Error()).To(ContainSubstring("exceeds block size 2"))

			result, err := sim.Run(g, records, sim.WithoutBlockBoundCheck())
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal(sim.Result{Misses: 1}))
		})

		It("should not bound instruction sizes by the block", func() {
			records := []trace.Record{{Kind: trace.Instruction, Address: 0x0, Size: 15}}

			result, err := sim.Run(oneLine, records)
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal(sim.Result{}))
		})

		It("should reject an invalid geometry before simulating", func() {
			_, err := sim.Run(cache.Geometry{S: 0, E: 0, B: 0}, []trace.Record{load(0x1)})
			Expect(err).To(MatchError(cache.ErrInvalidGeometry))
		})
	})

	Describe("RunReader", func() {
		It("should replay a lazily read trace", func() {
			c, err := cache.New(oneLine)
			Expect(err).NotTo(HaveOccurred())

			reader := trace.NewReader(strings.NewReader("L 10,1\nL 20,1\nL 10,1\n"))
			result, err := sim.NewEngine(c).RunReader(reader)
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal(sim.Result{Misses: 3, Evictions: 2}))
		})

		It("should fail on a trace that cannot be read", func() {
			c, err := cache.New(oneLine)
			Expect(err).NotTo(HaveOccurred())

			reader := trace.NewReader(strings.NewReader("L 10,1\nQ 20,1\n"))
			result, err := sim.NewEngine(c).RunReader(reader)
			Expect(err).To(MatchError(trace.ErrMalformedTrace))
			Expect(result).To(Equal(sim.Result{}))
		})

		It("should fail on a malformed record", func() {
			c, err := cache.New(oneLine)
			Expect(err).NotTo(HaveOccurred())

			reader := trace.NewReader(strings.NewReader("L 10,1\nL 20,16\n"))
			_, err = sim.NewEngine(c).RunReader(reader)
			Expect(err).To(MatchError(sim.ErrMalformedRecord))
		})
	})
})

type eventCollector struct {
	events []sim.AccessEvent
}

func (h *eventCollector) Func(ctx akitasim.HookCtx) {
	if ctx.Pos != sim.HookPosAccess {
		return
	}
	h.events = append(h.events, ctx.Detail.(sim.AccessEvent))
}

var _ = Describe("Hooks", func() {
	It("should report every access in order", func() {
		c, err := cache.New(cache.Geometry{S: 1, E: 1, B: 0})
		Expect(err).NotTo(HaveOccurred())

		collector := &eventCollector{}
		engine := sim.NewEngine(c, sim.WithHook(collector))

		_, err = engine.Run([]trace.Record{
			fetch(0x100),
			load(0x3),
			modify(0x5),
			store(0x3),
		})
		Expect(err).NotTo(HaveOccurred())

		Expect(collector.events).To(HaveLen(4))

		Expect(collector.events[0].Record.Kind).To(Equal(trace.Load))
		Expect(collector.events[0].Outcome).To(Equal(cache.MissWithFreeSlot))
		Expect(collector.events[0].SetIndex).To(Equal(uint64(1)))
		Expect(collector.events[0].Tag).To(Equal(uint64(1)))

		Expect(collector.events[1].Outcome).To(Equal(cache.MissWithEviction))
		Expect(collector.events[1].Pass).To(Equal(0))
		Expect(collector.events[2].Outcome).To(Equal(cache.Hit))
		Expect(collector.events[2].Pass).To(Equal(1))

		Expect(collector.events[3].Outcome).To(Equal(cache.MissWithEviction))

		for i, event := range collector.events {
			Expect(event.Clock).To(Equal(uint64(i + 1)))
		}
	})

	It("should accept hooks after construction", func() {
		c, err := cache.New(cache.Geometry{S: 0, E: 1, B: 0})
		Expect(err).NotTo(HaveOccurred())

		collector := &eventCollector{}
		engine := sim.NewEngine(c)
		engine.AcceptHook(collector)

		_, err = engine.Run([]trace.Record{load(0x1)})
		Expect(err).NotTo(HaveOccurred())
		Expect(collector.events).To(HaveLen(1))
	})

	It("should print verbose lines", func() {
		var buf bytes.Buffer

		c, err := cache.New(cache.Geometry{S: 0, E: 1, B: 0})
		Expect(err).NotTo(HaveOccurred())

		engine := sim.NewEngine(c, sim.WithHook(sim.NewVerboseHook(&buf)))
		_, err = engine.Run(parse("L 10,1\nM 20,1\nI 0,4\nL 20,1\n"))
		Expect(err).NotTo(HaveOccurred())

		Expect(buf.String()).To(Equal(
			"L 10,1 miss\n" +
				"M 20,1 miss eviction hit\n" +
				"L 20,1 hit\n"))
	})
})

var _ = Describe("Result", func() {
	It("should format the csim summary", func() {
		r := sim.Result{Hits: 4, Misses: 5, Evictions: 3}
		Expect(r.String()).To(Equal("hits:4 misses:5 evictions:3"))
	})

	It("should compute rates", func() {
		r := sim.Result{Hits: 3, Misses: 1}
		Expect(r.HitRate()).To(BeNumerically("~", 0.75))
		Expect(r.MissRate()).To(BeNumerically("~", 0.25))

		Expect(sim.Result{}.HitRate()).To(BeZero())
		Expect(sim.Result{}.MissRate()).To(BeZero())
	})

	It("should classify outcomes", func() {
		var r sim.Result
		r.Add(cache.Hit)
		r.Add(cache.MissWithFreeSlot)
		r.Add(cache.MissWithEviction)
		Expect(r).To(Equal(sim.Result{Hits: 1, Misses: 2, Evictions: 1}))
	})
})
