// Package sim replays memory access traces through a cache model.
package sim

import (
	"errors"
	"fmt"
	"io"

	akitasim "github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/csim/cache"
	"github.com/sarchlab/csim/trace"
)

// MaxAccessSize is the largest number of bytes a single data access may
// touch.
const MaxAccessSize = 8

// ErrMalformedRecord is returned when a record cannot be simulated. The run
// that met it produces no result.
var ErrMalformedRecord = errors.New("malformed access record")

// HookPosAccess marks the point right after the cache served an access.
var HookPosAccess = &akitasim.HookPos{Name: "Access"}

// AccessEvent describes one cache access. It is the Detail of the hook
// context at HookPosAccess.
type AccessEvent struct {
	Record   trace.Record
	Outcome  cache.Outcome
	Clock    uint64
	SetIndex uint64
	Tag      uint64

	// Pass is 0 for the first access of a record and 1 for the store half
	// of a Modify.
	Pass int
}

// RecordReader produces records one at a time. Next returns io.EOF after the
// last record.
type RecordReader interface {
	Next() (trace.Record, error)
}

// Option configures an Engine.
type Option func(*Engine)

// WithoutBlockBoundCheck accepts data accesses larger than a cache block.
// Lackey traces carry 8-byte accesses whatever the block size; this option
// replays them as single-block accesses.
func WithoutBlockBoundCheck() Option {
	return func(e *Engine) {
		e.lenientBlocks = true
	}
}

// WithHook registers a hook on the engine.
func WithHook(hook akitasim.Hook) Option {
	return func(e *Engine) {
		e.AcceptHook(hook)
	}
}

// Engine drives trace records through a cache and counts the outcomes.
//
// An Engine owns its cache. Successive runs on the same Engine see the cache
// as the previous run left it.
type Engine struct {
	*akitasim.HookableBase

	cache         *cache.Cache
	lenientBlocks bool
}

// NewEngine creates an Engine that simulates accesses on c.
func NewEngine(c *cache.Cache, opts ...Option) *Engine {
	e := &Engine{
		HookableBase: akitasim.NewHookableBase(),
		cache:        c,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Run builds a cache with geometry g and replays records through it.
func Run(g cache.Geometry, records []trace.Record, opts ...Option) (Result, error) {
	c, err := cache.New(g)
	if err != nil {
		return Result{}, err
	}

	return NewEngine(c, opts...).Run(records)
}

// Cache returns the simulated cache.
func (e *Engine) Cache() *cache.Cache {
	return e.cache
}

// Run replays records in order and returns the totals.
//
// Every record is validated before the first access, so a rejected run leaves
// the cache untouched and invokes no hooks.
func (e *Engine) Run(records []trace.Record) (Result, error) {
	for i, r := range records {
		if err := e.validate(i, r); err != nil {
			return Result{}, err
		}
	}

	var result Result
	for _, r := range records {
		e.apply(r, &result)
	}

	return result, nil
}

// RunReader replays records from r until it is exhausted.
//
// Records are applied as they are read. When a later record is rejected, the
// accesses of the earlier ones have already reached the cache and the hooks.
func (e *Engine) RunReader(r RecordReader) (Result, error) {
	var result Result

	for i := 0; ; i++ {
		record, err := r.Next()
		if errors.Is(err, io.EOF) {
			return result, nil
		}
		if err != nil {
			return Result{}, err
		}

		if err := e.validate(i, record); err != nil {
			return Result{}, err
		}
		e.apply(record, &result)
	}
}

func (e *Engine) apply(r trace.Record, result *Result) {
	switch r.Kind {
	case trace.Instruction:
	case trace.Load, trace.Store:
		result.Add(e.access(r, 0))
	case trace.Modify:
		result.Add(e.access(r, 0))
		result.Add(e.access(r, 1))
	}
}

func (e *Engine) access(r trace.Record, pass int) cache.Outcome {
	p := e.cache.Place(r.Address, r.Size)

	e.InvokeHook(akitasim.HookCtx{
		Domain: e,
		Pos:    HookPosAccess,
		Item:   r,
		Detail: AccessEvent{
			Record:   r,
			Outcome:  p.Outcome,
			Clock:    e.cache.Clock(),
			SetIndex: p.SetIndex,
			Tag:      p.Tag,
			Pass:     pass,
		},
	})

	return p.Outcome
}

func (e *Engine) validate(index int, r trace.Record) error {
	if !r.Kind.Valid() {
		return malformed(index, r, "unknown kind %s", r.Kind)
	}

	if r.Size < 1 {
		return malformed(index, r, "size %d must be positive", r.Size)
	}

	// Instruction fetches never reach the cache, so only data accesses are
	// bounded from above.
	if r.Kind == trace.Instruction {
		return nil
	}

	if r.Size > MaxAccessSize {
		return malformed(index, r, "size %d out of range [1, %d]", r.Size, MaxAccessSize)
	}

	if !e.lenientBlocks && uint64(r.Size) > e.cache.Geometry().BlockSize() {
		return malformed(index, r, "size %d exceeds block size %d",
			r.Size, e.cache.Geometry().BlockSize())
	}

	return nil
}

func malformed(index int, r trace.Record, format string, args ...any) error {
	where := fmt.Sprintf("record %d", index)
	if r.Line > 0 {
		where = fmt.Sprintf("record %d (line %d)", index, r.Line)
	}

	return fmt.Errorf("%w: %s: %s",
		ErrMalformedRecord, where, fmt.Sprintf(format, args...))
}
