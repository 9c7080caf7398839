package cache

// Cache is a set-associative cache with LRU replacement.
//
// Recency is tracked with a logical clock that advances by one on every
// Access. A Cache must not be used from more than one goroutine at a time.
type Cache struct {
	geometry Geometry
	sets     []Set
	clock    uint64
}

// New creates an empty cache with the given geometry.
func New(geometry Geometry) (*Cache, error) {
	if err := geometry.Validate(); err != nil {
		return nil, err
	}
	if err := geometry.checkCapacity(); err != nil {
		return nil, err
	}

	sets := make([]Set, geometry.NumSets())
	for i := range sets {
		sets[i] = newSet(geometry.E)
	}

	return &Cache{
		geometry: geometry,
		sets:     sets,
	}, nil
}

// Geometry returns the cache geometry.
func (c *Cache) Geometry() Geometry {
	return c.geometry
}

// Clock returns the number of accesses performed since creation or the last
// Reset.
func (c *Cache) Clock() uint64 {
	return c.clock
}

// NumSets returns the number of sets.
func (c *Cache) NumSets() int {
	return len(c.sets)
}

// Set returns the set at index i.
func (c *Cache) Set(i int) *Set {
	return &c.sets[i]
}

// Access performs one access of size bytes at addr.
//
// Every call advances the clock exactly once, whatever the outcome. The size
// is not used to select lines; an access is assumed to stay within a block.
func (c *Cache) Access(addr uint64, size int) Outcome {
	return c.Place(addr, size).Outcome
}

// Placement describes where an access landed.
type Placement struct {
	Outcome  Outcome
	SetIndex uint64
	Tag      uint64
}

// Place performs one access like Access and also reports the set index and
// tag the access was served with.
func (c *Cache) Place(addr uint64, size int) Placement {
	_, setIndex, tag := c.geometry.Decode(addr)

	c.clock++

	return Placement{
		Outcome:  c.sets[setIndex].Probe(tag, c.clock),
		SetIndex: setIndex,
		Tag:      tag,
	}
}

// Contains reports whether the block holding addr is resident. It does not
// count as an access.
func (c *Cache) Contains(addr uint64) bool {
	_, setIndex, tag := c.geometry.Decode(addr)
	return c.sets[setIndex].lookup(tag) >= 0
}

// Invalidate empties the line holding the block of addr. It returns false if
// the block was not resident.
func (c *Cache) Invalidate(addr uint64) bool {
	_, setIndex, tag := c.geometry.Decode(addr)

	set := &c.sets[setIndex]
	i := set.lookup(tag)
	if i < 0 {
		return false
	}

	set.lines[i] = Line{}
	return true
}

// Reset empties every line and rewinds the clock.
func (c *Cache) Reset() {
	for i := range c.sets {
		c.sets[i].reset()
	}
	c.clock = 0
}
