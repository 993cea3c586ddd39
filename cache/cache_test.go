package cache_test

import (
	"math/rand"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/csim/cache"
)

func mustBuild(b, s, e int) *cache.Cache {
	config, err := cache.NewConfig(b, s, e)
	Expect(err).NotTo(HaveOccurred())

	c, err := cache.Build(config)
	Expect(err).NotTo(HaveOccurred())

	return c
}

func lookupAll(c *cache.Cache, addrs ...uint64) []cache.Outcome {
	outcomes := make([]cache.Outcome, 0, len(addrs))
	for i, addr := range addrs {
		outcomes = append(outcomes, c.Lookup(addr, uint64(i)))
	}
	return outcomes
}

var _ = Describe("Cache", func() {
	Describe("Build", func() {
		It("should start with invalid lines and zero counters", func() {
			c := mustBuild(2, 2, 4)

			Expect(c.Stats()).To(Equal(cache.Statistics{}))
			for set := uint64(0); set < 4; set++ {
				for way := 0; way < 4; way++ {
					Expect(c.Line(set, way).Valid).To(BeFalse())
				}
			}
		})

		It("should fail to allocate an oversized table", func() {
			config, err := cache.NewConfig(4, 40, 1)
			Expect(err).NotTo(HaveOccurred())

			c, err := cache.Build(config)
			Expect(err).To(MatchError(cache.ErrAllocation))
			Expect(c).To(BeNil())
		})

		It("should fail when sets times ways overflows", func() {
			config, err := cache.NewConfig(0, 63, 4)
			Expect(err).NotTo(HaveOccurred())

			_, err = cache.Build(config)
			Expect(err).To(MatchError(cache.ErrAllocation))
		})
	})

	Describe("Access", func() {
		It("should miss then hit on the same address", func() {
			c := mustBuild(4, 2, 1)

			Expect(lookupAll(c, 0x40, 0x40)).To(Equal(
				[]cache.Outcome{cache.Miss, cache.Hit}))
		})

		It("should hit on another byte of the same block", func() {
			c := mustBuild(4, 2, 1)

			Expect(lookupAll(c, 0x40, 0x4F)).To(Equal(
				[]cache.Outcome{cache.Miss, cache.Hit}))
		})

		It("should evict on every new tag in a direct-mapped single line", func() {
			c := mustBuild(1, 0, 1)

			Expect(lookupAll(c, 0x0, 0x2, 0x0)).To(Equal([]cache.Outcome{
				cache.Miss, cache.MissEviction, cache.MissEviction,
			}))
			Expect(c.Stats()).To(Equal(cache.Statistics{
				Hits: 0, Misses: 3, Evictions: 2,
			}))
		})

		It("should fill both ways before evicting the oldest", func() {
			c := mustBuild(0, 1, 2)

			// Set 0 holds even addresses; tags are 0, 1, 2.
			Expect(lookupAll(c, 0x0, 0x2, 0x4)).To(Equal([]cache.Outcome{
				cache.Miss, cache.Miss, cache.MissEviction,
			}))

			Expect(c.Line(0, 0)).To(Equal(cache.Line{Tag: 2, Valid: true, LastUsed: 2}))
			Expect(c.Line(0, 1)).To(Equal(cache.Line{Tag: 1, Valid: true, LastUsed: 1}))
			Expect(c.Line(1, 0).Valid).To(BeFalse())
		})

		It("should evict the lowest slot after filling in slot order", func() {
			c := mustBuild(4, 0, 2)
			a, b, cc := uint64(0x000), uint64(0x100), uint64(0x200)

			Expect(c.Lookup(a, 1)).To(Equal(cache.Miss))
			Expect(c.Lookup(b, 2)).To(Equal(cache.Miss))
			Expect(c.Lookup(cc, 3)).To(Equal(cache.MissEviction))
			Expect(c.Lookup(b, 4)).To(Equal(cache.Hit))
			Expect(c.Lookup(a, 5)).To(Equal(cache.MissEviction))
		})

		It("should refresh recency on a hit", func() {
			c := mustBuild(4, 0, 2)

			c.Lookup(0x000, 1)
			c.Lookup(0x100, 2)
			Expect(c.Lookup(0x000, 3)).To(Equal(cache.Hit))
			Expect(c.Lookup(0x200, 4)).To(Equal(cache.MissEviction))

			Expect(c.Lookup(0x000, 5)).To(Equal(cache.Hit))
			Expect(c.Lookup(0x100, 6)).To(Equal(cache.MissEviction))
		})

		It("should keep sets independent", func() {
			c := mustBuild(4, 1, 1)

			Expect(lookupAll(c, 0x00, 0x10, 0x00, 0x10)).To(Equal([]cache.Outcome{
				cache.Miss, cache.Miss, cache.Hit, cache.Hit,
			}))
		})

		It("should panic on a set index outside the table", func() {
			c := mustBuild(4, 1, 1)

			Expect(func() {
				c.Access(cache.DecodedAddress{SetIndex: 2}, 0)
			}).To(Panic())
		})

		It("should keep hits plus misses equal to accesses", func() {
			r := rand.New(rand.NewSource(7))
			c := mustBuild(3, 3, 2)

			n := 5000
			for i := 0; i < n; i++ {
				c.Lookup(uint64(r.Intn(4096)), uint64(i))
			}

			stats := c.Stats()
			Expect(stats.Accesses()).To(Equal(uint64(n)))
			Expect(stats.Evictions).To(BeNumerically("<=", stats.Misses))
		})
	})

	Describe("Outcome", func() {
		It("should print the verbose vocabulary", func() {
			Expect(cache.Hit.String()).To(Equal("hit"))
			Expect(cache.Miss.String()).To(Equal("miss"))
			Expect(cache.MissEviction.String()).To(Equal("miss eviction"))
			Expect(cache.MissEviction.IsMiss()).To(BeTrue())
			Expect(cache.Hit.IsMiss()).To(BeFalse())
		})
	})
})
