package cache

// Outcome classifies a single cache access.
type Outcome int

const (
	// Hit means the block was already resident.
	Hit Outcome = iota
	// MissWithFreeSlot means the block was installed into an empty line.
	MissWithFreeSlot
	// MissWithEviction means the least recently used line was replaced.
	MissWithEviction
)

// IsHit reports whether the outcome is a hit.
func (o Outcome) IsHit() bool {
	return o == Hit
}

// IsEviction reports whether the outcome replaced a resident block.
func (o Outcome) IsEviction() bool {
	return o == MissWithEviction
}

func (o Outcome) String() string {
	switch o {
	case Hit:
		return "hit"
	case MissWithFreeSlot:
		return "miss"
	case MissWithEviction:
		return "miss eviction"
	default:
		return "unknown"
	}
}

// Line is one way of a set.
type Line struct {
	// Valid is false while the line is empty.
	Valid bool
	// Tag identifies the block held by a valid line.
	Tag uint64
	// LastUsed is the logical time of the most recent access to the line.
	LastUsed uint64
}

// Set is a fixed group of lines that a range of addresses maps to.
type Set struct {
	lines []Line
}

func newSet(ways int) Set {
	return Set{lines: make([]Line, ways)}
}

// Probe looks up tag in the set at logical time now and updates the set to
// reflect the access.
//
// A matching valid line is a hit. Otherwise the block is installed into the
// first empty line, or, when the set is full, into the line with the
// smallest LastUsed. Ties go to the lowest index.
func (s *Set) Probe(tag, now uint64) Outcome {
	free := -1
	for i := range s.lines {
		line := &s.lines[i]
		if !line.Valid {
			if free < 0 {
				free = i
			}
			continue
		}
		if line.Tag == tag {
			line.LastUsed = now
			return Hit
		}
	}

	if free >= 0 {
		s.fill(free, tag, now)
		return MissWithFreeSlot
	}

	s.fill(s.victim(), tag, now)
	return MissWithEviction
}

// victim returns the index of the least recently used line of a full set.
func (s *Set) victim() int {
	victim := 0
	for i := 1; i < len(s.lines); i++ {
		if s.lines[i].LastUsed < s.lines[victim].LastUsed {
			victim = i
		}
	}
	return victim
}

func (s *Set) fill(i int, tag, now uint64) {
	s.lines[i] = Line{
		Valid:    true,
		Tag:      tag,
		LastUsed: now,
	}
}

// lookup returns the index of the valid line holding tag, or -1.
func (s *Set) lookup(tag uint64) int {
	for i := range s.lines {
		if s.lines[i].Valid && s.lines[i].Tag == tag {
			return i
		}
	}
	return -1
}

// Lines returns a copy of the lines in way order.
func (s *Set) Lines() []Line {
	lines := make([]Line, len(s.lines))
	copy(lines, s.lines)
	return lines
}

// Occupied returns the number of valid lines.
func (s *Set) Occupied() int {
	n := 0
	for _, line := range s.lines {
		if line.Valid {
			n++
		}
	}
	return n
}

func (s *Set) reset() {
	for i := range s.lines {
		s.lines[i] = Line{}
	}
}
