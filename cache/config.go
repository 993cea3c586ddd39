// Package cache models a set-associative cache with LRU replacement.
//
// Addresses are split into tag, set index and block offset fields. The cache
// classifies every access as a hit, a miss, or a miss that evicts a line, and
// keeps running counters of the three outcomes.
package cache

import (
	"errors"
	"fmt"
)

// AddressWidth is the number of bits in an address.
const AddressWidth = 64

// ErrInvalidConfig is returned when cache parameters do not describe a
// partition of an address.
var ErrInvalidConfig = errors.New("invalid cache configuration")

// Config holds the geometry of a cache. It can only be created through
// NewConfig, so a Config always partitions an address exactly.
type Config struct {
	offsetBits    uint
	indexBits     uint
	associativity int
}

// NewConfig validates the cache geometry.
//
// offsetBits (b) selects a byte within a block, indexBits (s) selects a set,
// and associativity (E) is the number of lines in each set.
func NewConfig(offsetBits, indexBits, associativity int) (Config, error) {
	if offsetBits < 0 {
		return Config{}, fmt.Errorf("%w: offset bits must be >= 0, got %d",
			ErrInvalidConfig, offsetBits)
	}
	if indexBits < 0 {
		return Config{}, fmt.Errorf("%w: index bits must be >= 0, got %d",
			ErrInvalidConfig, indexBits)
	}
	if offsetBits+indexBits >= AddressWidth {
		return Config{}, fmt.Errorf(
			"%w: offset bits (%d) + index bits (%d) must be < %d",
			ErrInvalidConfig, offsetBits, indexBits, AddressWidth)
	}
	if associativity < 1 {
		return Config{}, fmt.Errorf("%w: associativity must be >= 1, got %d",
			ErrInvalidConfig, associativity)
	}

	return Config{
		offsetBits:    uint(offsetBits),
		indexBits:     uint(indexBits),
		associativity: associativity,
	}, nil
}

// OffsetBits returns the width of the block offset field.
func (c Config) OffsetBits() uint { return c.offsetBits }

// IndexBits returns the width of the set index field.
func (c Config) IndexBits() uint { return c.indexBits }

// TagBits returns the width of the tag field.
func (c Config) TagBits() uint { return AddressWidth - c.offsetBits - c.indexBits }

// Associativity returns the number of lines per set.
func (c Config) Associativity() int { return c.associativity }

// NumSets returns the number of sets, 2^IndexBits.
func (c Config) NumSets() uint64 { return uint64(1) << c.indexBits }

// BlockSize returns the number of bytes in a block, 2^OffsetBits.
func (c Config) BlockSize() uint64 { return uint64(1) << c.offsetBits }

// String renders the geometry as the usual (s, E, b) triple.
func (c Config) String() string {
	return fmt.Sprintf("s=%d E=%d b=%d", c.indexBits, c.associativity, c.offsetBits)
}

// DecodedAddress is an address split into its three fields.
type DecodedAddress struct {
	Tag         uint64
	SetIndex    uint64
	BlockOffset uint64
}

// Decode splits an address into tag, set index and block offset.
func (c Config) Decode(addr uint64) DecodedAddress {
	return DecodedAddress{
		Tag:         (addr >> (c.offsetBits + c.indexBits)) & mask(c.TagBits()),
		SetIndex:    (addr >> c.offsetBits) & mask(c.indexBits),
		BlockOffset: addr & mask(c.offsetBits),
	}
}

// Compose reassembles an address from its fields. It is the inverse of
// Decode.
func (c Config) Compose(d DecodedAddress) uint64 {
	return (d.Tag&mask(c.TagBits()))<<(c.offsetBits+c.indexBits) |
		(d.SetIndex&mask(c.indexBits))<<c.offsetBits |
		d.BlockOffset&mask(c.offsetBits)
}

// BlockNumber returns the address with the block offset dropped.
func (c Config) BlockNumber(addr uint64) uint64 {
	return addr >> c.offsetBits
}

// mask returns a value with the low width bits set.
func mask(width uint) uint64 {
	switch {
	case width == 0:
		return 0
	case width >= AddressWidth:
		return ^uint64(0)
	default:
		return (uint64(1) << width) - 1
	}
}
