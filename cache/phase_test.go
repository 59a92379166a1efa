package cache_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/ooosim/coretrace/cache"
	"github.com/ooosim/coretrace/channel"
	"github.com/ooosim/coretrace/replacement"
)

var _ = Describe("BeginPhase/ROIStats", func() {
	It("discards hits and misses accumulated before the region of interest opens", func() {
		upper := channel.New("Upper", 8, 8, 8, 8)
		lower := channel.New("Lower", 8, 8, 8, 8)
		l1 := cache.New(testConfig(), upper, lower, nil, replacement.NewLRU(4, 4), nil)

		var now uint64
		upper.AddRQ(channel.Request{Address: 0x1000, Type: channel.Load, ResponseRequested: true})
		for i := 0; i < 3; i++ {
			l1.Operate(now, true)
			now++
		}
		lower.RQ = lower.RQ[:0]
		lower.Deliver(channel.Response{Address: 0x1000, Data: 0xAAAA})
		for i := 0; i < 3; i++ {
			l1.Operate(now, true)
			now++
		}
		upper.PopReturned()

		warmupMisses := l1.Stats.Misses[channel.Load]
		Expect(warmupMisses).To(BeNumerically(">", 0))

		l1.BeginPhase()

		upper.AddRQ(channel.Request{Address: 0x3000, Type: channel.Load, ResponseRequested: true})
		for i := 0; i < 3; i++ {
			l1.Operate(now, false)
			now++
		}
		lower.RQ = lower.RQ[:0]
		lower.Deliver(channel.Response{Address: 0x3000, Data: 0xBBBB})
		for i := 0; i < 3; i++ {
			l1.Operate(now, false)
			now++
		}
		upper.PopReturned()

		l1.EndPhase()

		roi := l1.ROIStats()
		Expect(roi.Misses[channel.Load]).To(Equal(uint64(1)))
		Expect(l1.Stats.Misses[channel.Load]).To(Equal(warmupMisses + 1))
	})
})
