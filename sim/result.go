package sim

import (
	"fmt"

	"github.com/sarchlab/csim/cache"
)

// Result holds the totals of a simulation run.
type Result struct {
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Evictions uint64 `json:"evictions"`
}

// Add counts one access outcome.
func (r *Result) Add(o cache.Outcome) {
	switch o {
	case cache.Hit:
		r.Hits++
	case cache.MissWithFreeSlot:
		r.Misses++
	case cache.MissWithEviction:
		r.Misses++
		r.Evictions++
	}
}

// Accesses returns the number of cache accesses counted.
func (r Result) Accesses() uint64 {
	return r.Hits + r.Misses
}

// HitRate returns the fraction of accesses that hit, or 0 with no accesses.
func (r Result) HitRate() float64 {
	if r.Accesses() == 0 {
		return 0
	}
	return float64(r.Hits) / float64(r.Accesses())
}

// MissRate returns the fraction of accesses that missed, or 0 with no
// accesses.
func (r Result) MissRate() float64 {
	if r.Accesses() == 0 {
		return 0
	}
	return float64(r.Misses) / float64(r.Accesses())
}

// String formats the totals as csim prints its summary.
func (r Result) String() string {
	return fmt.Sprintf("hits:%d misses:%d evictions:%d",
		r.Hits, r.Misses, r.Evictions)
}
