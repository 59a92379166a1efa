package prefetch_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/ooosim/coretrace/channel"
	"github.com/ooosim/coretrace/prefetch"
)

func TestPrefetch(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Prefetch Suite")
}

type fakeCache struct {
	issued []uint64
}

func (f *fakeCache) PrefetchLine(addr uint64, _ bool, _ uint32) bool {
	f.issued = append(f.issued, addr)
	return true
}

var _ = Describe("NextLine", func() {
	It("always prefetches the following block", func() {
		cache := &fakeCache{}
		n := &prefetch.NextLine{}
		n.Initialize(cache)

		n.CacheOperate(0x1000, 0xCAFE, false, false, channel.Load, 0)

		Expect(cache.issued).To(Equal([]uint64{0x1040}))
	})
})

var _ = Describe("IPStride", func() {
	It("stays silent until a stride repeats", func() {
		cache := &fakeCache{}
		p := prefetch.NewIPStride(2)
		p.Initialize(cache)

		const ip = 0xCAFECAFE
		const base = 0xFFFF_0000
		const stride = int64(2 * 64)

		p.CacheOperate(base, ip, false, false, channel.Load, 0)
		Expect(cache.issued).To(BeEmpty())

		p.CacheOperate(uint64(int64(base)+stride), ip, false, false, channel.Load, 0)
		Expect(cache.issued).To(BeEmpty(), "a single delta is not yet a confirmed stride")
	})

	It("prefetches an arithmetic progression once the stride repeats", func() {
		cache := &fakeCache{}
		p := prefetch.NewIPStride(2)
		p.Initialize(cache)

		const ip = 0xCAFECAFE
		const base = int64(0xFFFF_0000)
		const stride = int64(64)

		p.CacheOperate(uint64(base), ip, false, false, channel.Load, 0)
		p.CacheOperate(uint64(base+stride), ip, false, false, channel.Load, 0)
		p.CacheOperate(uint64(base+2*stride), ip, false, false, channel.Load, 0)

		Expect(cache.issued).To(Equal([]uint64{
			uint64(base + 3*stride),
			uint64(base + 4*stride),
		}))
	})
})
