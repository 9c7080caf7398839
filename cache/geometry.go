// Package cache provides a set-associative cache model with LRU replacement
// driven by a logical access clock.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// AddressBits is the width of a simulated address.
const AddressBits = 64

// MaxLines bounds the number of lines a single cache may allocate.
const MaxLines = 1 << 26

// ErrInvalidGeometry is returned when a geometry cannot describe a cache.
var ErrInvalidGeometry = errors.New("invalid cache geometry")

// ErrCacheTooLarge is returned when a geometry asks for more lines than the
// simulator is willing to allocate.
var ErrCacheTooLarge = errors.New("cache too large")

// Geometry describes the shape of a cache.
type Geometry struct {
	// S is the number of set-index bits. The cache has 2^S sets.
	S int `json:"s"`

	// E is the associativity, the number of lines in every set.
	E int `json:"E"`

	// B is the number of block-offset bits. Every line covers 2^B bytes.
	B int `json:"b"`
}

// DefaultGeometry returns a 16-set direct-mapped cache with 16-byte lines.
func DefaultGeometry() Geometry {
	return Geometry{
		S: 4,
		E: 1,
		B: 4,
	}
}

// Validate checks that the geometry describes a cache.
func (g Geometry) Validate() error {
	if g.S < 0 {
		return fmt.Errorf("%w: s must be >= 0, got %d", ErrInvalidGeometry, g.S)
	}
	if g.E < 1 {
		return fmt.Errorf("%w: E must be >= 1, got %d", ErrInvalidGeometry, g.E)
	}
	if g.B < 0 {
		return fmt.Errorf("%w: b must be >= 0, got %d", ErrInvalidGeometry, g.B)
	}
	if g.S+g.B > AddressBits {
		return fmt.Errorf("%w: s+b must be <= %d, got %d",
			ErrInvalidGeometry, AddressBits, g.S+g.B)
	}
	return nil
}

// checkCapacity reports whether the line array fits in MaxLines.
func (g Geometry) checkCapacity() error {
	if g.S >= 32 || g.E > MaxLines ||
		uint64(1)<<uint(g.S)*uint64(g.E) > MaxLines {
		return fmt.Errorf("%w: 2^%d sets x %d ways exceeds %d lines",
			ErrCacheTooLarge, g.S, g.E, MaxLines)
	}
	return nil
}

// NumSets returns the number of sets.
func (g Geometry) NumSets() int {
	return 1 << uint(g.S)
}

// BlockSize returns the number of bytes covered by a line.
func (g Geometry) BlockSize() uint64 {
	return uint64(1) << uint(g.B)
}

// NumLines returns the total number of lines in the cache.
func (g Geometry) NumLines() int {
	return g.NumSets() * g.E
}

// Size returns the capacity of the cache in bytes.
func (g Geometry) Size() uint64 {
	return uint64(g.NumLines()) * g.BlockSize()
}

// Decode splits an address into its block offset, set index, and tag.
//
// The set index is (addr >> B) mod 2^S and the tag is (addr >> B) div 2^S.
func (g Geometry) Decode(addr uint64) (offset, setIndex, tag uint64) {
	offset = addr & (uint64(1)<<uint(g.B) - 1)
	block := addr >> uint(g.B)
	setIndex = block & (uint64(1)<<uint(g.S) - 1)
	tag = block >> uint(g.S)
	return offset, setIndex, tag
}

// String formats the geometry the way the command line takes it.
func (g Geometry) String() string {
	return fmt.Sprintf("s=%d E=%d b=%d", g.S, g.E, g.B)
}

// LoadGeometry loads a Geometry from a JSON file.
func LoadGeometry(path string) (Geometry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Geometry{}, fmt.Errorf("failed to read geometry file: %w", err)
	}

	g := DefaultGeometry()
	if err := json.Unmarshal(data, &g); err != nil {
		return Geometry{}, fmt.Errorf("failed to parse geometry: %w", err)
	}

	if err := g.Validate(); err != nil {
		return Geometry{}, err
	}

	return g, nil
}

// Save writes the geometry to a JSON file.
func (g Geometry) Save(path string) error {
	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize geometry: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write geometry file: %w", err)
	}

	return nil
}
