package cache

import (
	"errors"
	"fmt"
	"math/bits"
)

// MaxLines is the largest line table Build will allocate.
const MaxLines = 1 << 28

// ErrAllocation is returned by Build when the line table cannot be created.
var ErrAllocation = errors.New("unable to allocate memory for cache simulator")

// Outcome is the classification of a single cache access.
type Outcome uint8

const (
	// Hit means a valid line with a matching tag was found.
	Hit Outcome = iota
	// Miss means the block was placed into an open line.
	Miss
	// MissEviction means the set was full and the LRU line was replaced.
	MissEviction
)

// String returns the spelling used in verbose traces.
func (o Outcome) String() string {
	switch o {
	case Hit:
		return "hit"
	case Miss:
		return "miss"
	case MissEviction:
		return "miss eviction"
	default:
		return fmt.Sprintf("Outcome(%d)", uint8(o))
	}
}

// IsMiss reports whether the outcome counts as a miss.
func (o Outcome) IsMiss() bool {
	return o == Miss || o == MissEviction
}

// Line is one slot of a set. Tag and LastUsed are only meaningful when
// Valid is set.
type Line struct {
	Tag      uint64
	Valid    bool
	LastUsed uint64
}

// Statistics holds the running outcome counters.
type Statistics struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// Accesses returns the number of accesses classified so far.
func (s Statistics) Accesses() uint64 {
	return s.Hits + s.Misses
}

// Cache is a set-associative cache with LRU replacement.
//
// A Cache is not safe for concurrent use.
type Cache struct {
	config Config

	// One contiguous table of NumSets * Associativity lines.
	lines []Line
	sets  []set

	stats Statistics
}

// Build allocates a cache with every line invalid and all counters zero.
func Build(config Config) (*Cache, error) {
	numLines, err := tableSize(config)
	if err != nil {
		return nil, err
	}

	lines := make([]Line, numLines)
	sets := make([]set, config.NumSets())
	ways := config.Associativity()
	for i := range sets {
		start := i * ways
		end := start + ways
		sets[i] = set{lines: lines[start:end:end]}
	}

	return &Cache{
		config: config,
		lines:  lines,
		sets:   sets,
	}, nil
}

func tableSize(config Config) (int, error) {
	numSets := config.NumSets()
	hi, total := bits.Mul64(numSets, uint64(config.Associativity()))
	if hi != 0 || total > MaxLines {
		return 0, fmt.Errorf("%w: %d sets x %d ways exceeds %d lines",
			ErrAllocation, numSets, config.Associativity(), MaxLines)
	}

	return int(total), nil
}

// Config returns the cache geometry.
func (c *Cache) Config() Config {
	return c.config
}

// Stats returns a snapshot of the hit, miss and eviction counters.
func (c *Cache) Stats() Statistics {
	return c.stats
}

// Decode splits an address using the cache geometry.
func (c *Cache) Decode(addr uint64) DecodedAddress {
	return c.config.Decode(addr)
}

// Lookup decodes addr and accesses the cache with it.
func (c *Cache) Lookup(addr uint64, seq uint64) Outcome {
	return c.Access(c.config.Decode(addr), seq)
}

// Access classifies one access and updates the cache state. seq must grow
// with every call; it is the only recency signal used for LRU replacement.
//
// addr.SetIndex must be below NumSets, which Decode guarantees.
func (c *Cache) Access(addr DecodedAddress, seq uint64) Outcome {
	s := c.set(addr.SetIndex)

	open := -1
	for way := range s.lines {
		line := &s.lines[way]
		if !line.Valid {
			if open < 0 {
				open = way
			}
			continue
		}

		if line.Tag == addr.Tag {
			line.LastUsed = seq
			c.stats.Hits++
			return Hit
		}
	}

	c.stats.Misses++

	if open >= 0 {
		s.fill(open, addr.Tag, seq)
		return Miss
	}

	c.stats.Evictions++
	s.fill(s.lru(), addr.Tag, seq)

	return MissEviction
}

// Line returns a copy of the line at the given way of a set.
func (c *Cache) Line(setIndex uint64, way int) Line {
	return *c.set(setIndex).line(way)
}

func (c *Cache) set(setIndex uint64) set {
	if setIndex >= uint64(len(c.sets)) {
		panic(fmt.Sprintf("set index %d out of range [0, %d)",
			setIndex, len(c.sets)))
	}

	return c.sets[setIndex]
}
