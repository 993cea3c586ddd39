package cache_test

import (
	"math/rand"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/csim/cache"
)

var _ = Describe("Config", func() {
	Describe("NewConfig", func() {
		It("should derive the tag width", func() {
			config, err := cache.NewConfig(4, 5, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(config.TagBits()).To(Equal(uint(55)))
			Expect(config.NumSets()).To(Equal(uint64(32)))
			Expect(config.BlockSize()).To(Equal(uint64(16)))
			Expect(config.Associativity()).To(Equal(2))
		})

		It("should accept zero-width fields", func() {
			_, err := cache.NewConfig(0, 0, 1)
			Expect(err).NotTo(HaveOccurred())
		})

		DescribeTable("should reject invalid geometry",
			func(b, s, e int) {
				_, err := cache.NewConfig(b, s, e)
				Expect(err).To(MatchError(cache.ErrInvalidConfig))
			},
			Entry("negative offset bits", -1, 2, 1),
			Entry("negative index bits", 2, -1, 1),
			Entry("fields covering the whole address", 32, 32, 1),
			Entry("fields wider than the address", 60, 10, 1),
			Entry("zero associativity", 4, 4, 0),
		)
	})

	Describe("Decode", func() {
		It("should split an address into its fields", func() {
			config, _ := cache.NewConfig(4, 4, 1)

			d := config.Decode(0xABCD_1234)

			Expect(d.BlockOffset).To(Equal(uint64(0x4)))
			Expect(d.SetIndex).To(Equal(uint64(0x3)))
			Expect(d.Tag).To(Equal(uint64(0xABCD12)))
		})

		It("should yield zero for zero-width fields", func() {
			config, _ := cache.NewConfig(0, 0, 1)

			d := config.Decode(0xFFFF_FFFF_FFFF_FFFF)

			Expect(d.BlockOffset).To(BeZero())
			Expect(d.SetIndex).To(BeZero())
			Expect(d.Tag).To(Equal(uint64(0xFFFF_FFFF_FFFF_FFFF)))
		})

		It("should keep the top bit in a 1-bit tag", func() {
			config, _ := cache.NewConfig(62, 1, 1)

			d := config.Decode(0xC000_0000_0000_0001)

			Expect(d.Tag).To(Equal(uint64(1)))
			Expect(d.SetIndex).To(Equal(uint64(1)))
			Expect(d.BlockOffset).To(Equal(uint64(1)))
		})

		It("should round trip through Compose", func() {
			r := rand.New(rand.NewSource(42))

			for i := 0; i < 2000; i++ {
				b := r.Intn(40)
				s := r.Intn(cache.AddressWidth - b)
				config, err := cache.NewConfig(b, s, 1)
				Expect(err).NotTo(HaveOccurred())

				addr := r.Uint64()
				Expect(config.Compose(config.Decode(addr))).To(Equal(addr),
					"addr=%#x b=%d s=%d", addr, b, s)
			}
		})
	})
})

