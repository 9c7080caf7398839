// Package reference replays traces through akita's cache directory so that
// the results of the simulation engine can be cross-checked against an
// independent LRU implementation.
package reference

import (
	"errors"
	"fmt"

	akitacache "github.com/sarchlab/akita/v4/mem/cache"

	"github.com/sarchlab/csim/cache"
	"github.com/sarchlab/csim/sim"
	"github.com/sarchlab/csim/trace"
)

// MaxBlockBits is the largest block-offset width the directory can index.
const MaxBlockBits = 30

// ErrUnsupportedGeometry is returned for geometries the directory cannot
// represent.
var ErrUnsupportedGeometry = errors.New("geometry not supported by reference model")

// ErrMismatch is returned when the engine and the reference model disagree.
var ErrMismatch = errors.New("engine disagrees with reference model")

// Model is a cache built on akita's directory and LRU victim finder.
type Model struct {
	geometry  cache.Geometry
	directory *akitacache.DirectoryImpl
}

// New creates an empty reference model with the given geometry.
func New(g cache.Geometry) (*Model, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	if g.B > MaxBlockBits {
		return nil, fmt.Errorf("%w: b must be <= %d, got %d",
			ErrUnsupportedGeometry, MaxBlockBits, g.B)
	}
	if g.S > MaxBlockBits || g.E > cache.MaxLines || g.NumLines() > cache.MaxLines {
		return nil, fmt.Errorf("%w: %s has too many lines", ErrUnsupportedGeometry, g)
	}

	return &Model{
		geometry: g,
		directory: akitacache.NewDirectory(
			g.NumSets(),
			g.E,
			int(g.BlockSize()),
			akitacache.NewLRUVictimFinder(),
		),
	}, nil
}

// blockAddr returns the block-aligned address, which the directory uses as
// the tag.
func (m *Model) blockAddr(addr uint64) uint64 {
	return addr >> uint(m.geometry.B) << uint(m.geometry.B)
}

// Access performs one access at addr.
func (m *Model) Access(addr uint64) cache.Outcome {
	blockAddr := m.blockAddr(addr)

	block := m.directory.Lookup(0, blockAddr)
	if block != nil && block.IsValid {
		m.directory.Visit(block)
		return cache.Hit
	}

	outcome := cache.MissWithFreeSlot

	victim := m.directory.FindVictim(blockAddr)
	if victim.IsValid {
		outcome = cache.MissWithEviction
	}

	victim.Tag = blockAddr
	victim.IsValid = true
	m.directory.Visit(victim)

	return outcome
}

// Contains reports whether the block of addr is resident.
func (m *Model) Contains(addr uint64) bool {
	block := m.directory.Lookup(0, m.blockAddr(addr))
	return block != nil && block.IsValid
}

// Run replays records and returns the totals.
func (m *Model) Run(records []trace.Record) (sim.Result, error) {
	var result sim.Result

	for i, r := range records {
		switch r.Kind {
		case trace.Instruction:
		case trace.Load, trace.Store:
			result.Add(m.Access(r.Address))
		case trace.Modify:
			result.Add(m.Access(r.Address))
			result.Add(m.Access(r.Address))
		default:
			return sim.Result{}, fmt.Errorf("%w: record %d: unknown kind %s",
				sim.ErrMalformedRecord, i, r.Kind)
		}
	}

	return result, nil
}

// Reset empties the model.
func (m *Model) Reset() {
	m.directory.Reset()
}

// Check replays records through a fresh reference model with geometry g and
// returns ErrMismatch if its totals differ from got.
func Check(g cache.Geometry, records []trace.Record, got sim.Result) error {
	model, err := New(g)
	if err != nil {
		return err
	}

	want, err := model.Run(records)
	if err != nil {
		return err
	}

	if got != want {
		return fmt.Errorf("%w: engine %s, reference %s", ErrMismatch, got, want)
	}

	return nil
}

// Verify runs records through both the engine and the reference model with
// geometry g. It returns the engine result, and ErrMismatch if the two
// disagree.
func Verify(g cache.Geometry, records []trace.Record, opts ...sim.Option) (sim.Result, error) {
	got, err := sim.Run(g, records, opts...)
	if err != nil {
		return sim.Result{}, err
	}

	return got, Check(g, records, got)
}
