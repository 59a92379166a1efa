package dram_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/ooosim/coretrace/channel"
	"github.com/ooosim/coretrace/dram"
)

func TestDRAM(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "DRAM Suite")
}

func smallGeometry() dram.Geometry {
	return dram.Geometry{Channels: 1, Ranks: 1, Banks: 2, Columns: 16, Rows: 16}
}

func fastTiming() dram.Timing {
	return dram.Timing{
		TCAS: 2, TRCD: 2, TRP: 2,
		DBusTurnaround: 1, DBusReturnTime: 1,
		WriteHighWatermark: 4, WriteLowWatermark: 1,
		RefreshPeriod: 0, RefreshRows: 16,
	}
}

var _ = Describe("Channel", func() {
	It("eventually delivers a read back to the requesting queue", func() {
		q := channel.New("Mem", 8, 8, 8, 8)
		ch := dram.New(smallGeometry(), fastTiming(), q)

		q.AddRQ(channel.Request{Address: 0x1000, ResponseRequested: true})

		delivered := false
		for i := 0; i < 100 && !delivered; i++ {
			ch.Operate()
			for _, r := range q.PopReturned() {
				if r.Address == 0x1000 {
					delivered = true
				}
			}
		}
		Expect(delivered).To(BeTrue())
	})

	It("records a row-buffer hit on a second access to the same row", func() {
		q := channel.New("Mem", 8, 8, 8, 8)
		ch := dram.New(smallGeometry(), fastTiming(), q)

		q.AddRQ(channel.Request{Address: 0x1000, ResponseRequested: true})
		for i := 0; i < 20; i++ {
			ch.Operate()
		}
		q.PopReturned()

		q.AddRQ(channel.Request{Address: 0x1000, ResponseRequested: true})
		for i := 0; i < 20; i++ {
			ch.Operate()
		}
		q.PopReturned()

		Expect(ch.Stats.RQRowBufferHit).To(BeNumerically(">=", uint64(1)))
	})
})

var _ = Describe("Controller", func() {
	It("routes an address to its mapped channel", func() {
		q0 := channel.New("Mem0", 8, 8, 8, 8)
		q1 := channel.New("Mem1", 8, 8, 8, 8)
		geom := dram.Geometry{Channels: 2, Ranks: 1, Banks: 2, Columns: 16, Rows: 16}
		c0 := dram.New(geom, fastTiming(), q0)
		c1 := dram.New(geom, fastTiming(), q1)
		ctrl := dram.NewController(geom, []*dram.Channel{c0, c1})

		even := uint64(0x0000)
		odd := uint64(0x0040) // one block higher selects channel 1

		Expect(ctrl.ChannelFor(even)).To(BeIdenticalTo(c0))
		Expect(ctrl.ChannelFor(odd)).To(BeIdenticalTo(c1))
	})
})
