// Package shadow provides a second cache model built on the Akita cache
// directory. It shares no code with package cache and serves as an oracle
// for cross-checking its outcomes.
package shadow

import (
	akitacache "github.com/sarchlab/akita/v4/mem/cache"

	"github.com/sarchlab/csim/cache"
)

// Cache tracks residency with an Akita directory and its LRU victim finder.
type Cache struct {
	// Geometry shared with the model under test
	config cache.Config

	// Akita cache directory for tag/state management
	directory *akitacache.DirectoryImpl

	// Statistics
	stats cache.Statistics
}

// New creates a shadow cache with the given geometry.
func New(config cache.Config) *Cache {
	return &Cache{
		config: config,
		directory: akitacache.NewDirectory(
			int(config.NumSets()),
			config.Associativity(),
			int(config.BlockSize()),
			akitacache.NewLRUVictimFinder(),
		),
	}
}

// Config returns the cache geometry.
func (c *Cache) Config() cache.Config {
	return c.config
}

// Stats returns the shadow model's counters.
func (c *Cache) Stats() cache.Statistics {
	return c.stats
}

// blockAddr drops the block offset bits.
func (c *Cache) blockAddr(addr uint64) uint64 {
	return addr &^ (c.config.BlockSize() - 1)
}

// Resident reports whether the block holding addr is cached.
func (c *Cache) Resident(addr uint64) bool {
	block := c.directory.Lookup(0, c.blockAddr(addr)) // PID=0
	return block != nil && block.IsValid
}

// Access classifies one access and updates the directory.
func (c *Cache) Access(addr uint64) cache.Outcome {
	blockAddr := c.blockAddr(addr)

	block := c.directory.Lookup(0, blockAddr)
	if block != nil && block.IsValid {
		c.stats.Hits++
		c.directory.Visit(block) // Update LRU
		return cache.Hit
	}

	c.stats.Misses++
	return c.handleMiss(blockAddr)
}

// handleMiss places the block into the victim chosen by the directory.
func (c *Cache) handleMiss(blockAddr uint64) cache.Outcome {
	outcome := cache.Miss

	victim := c.directory.FindVictim(blockAddr)
	if victim == nil {
		// This shouldn't happen with proper directory setup
		panic("shadow: directory returned no victim")
	}

	if victim.IsValid {
		c.stats.Evictions++
		outcome = cache.MissEviction
	}

	// Tag stores the block-aligned address
	victim.Tag = blockAddr
	victim.IsValid = true

	c.directory.Visit(victim) // Update LRU

	return outcome
}
