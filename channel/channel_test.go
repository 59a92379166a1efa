package channel_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/ooosim/coretrace/channel"
)

func TestChannel(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Channel Suite")
}

var _ = Describe("Channel", func() {
	It("coalesces a read for a block already queued instead of appending a second entry", func() {
		c := channel.New("Test", 2, 2, 2, 2)

		Expect(c.AddRQ(channel.Request{Address: 0x1000, InstrDependOnMe: []uint64{1}})).To(BeTrue())
		Expect(c.AddRQ(channel.Request{Address: 0x1004, InstrDependOnMe: []uint64{2}})).To(BeTrue())

		Expect(c.RQOccupancy()).To(Equal(1))
		Expect(c.RQ[0].InstrDependOnMe).To(ConsistOf(uint64(1), uint64(2)))
	})

	It("rejects a read for a new block once the queue is full", func() {
		c := channel.New("Test", 1, 1, 1, 1)

		Expect(c.AddRQ(channel.Request{Address: 0x1000})).To(BeTrue())
		Expect(c.AddRQ(channel.Request{Address: 0x2000})).To(BeFalse())
		Expect(c.RQOccupancy()).To(Equal(1))
	})

	It("overwrites the pending data of a queued write to the same block", func() {
		c := channel.New("Test", 1, 1, 1, 1)

		Expect(c.AddWQ(channel.Request{Address: 0x3000, Data: 1})).To(BeTrue())
		Expect(c.AddWQ(channel.Request{Address: 0x3004, Data: 2})).To(BeTrue())

		Expect(c.WQOccupancy()).To(Equal(1))
		Expect(c.WQ[0].Data).To(Equal(uint64(2)))
	})

	It("round-trips a response through Deliver and PopReturned", func() {
		c := channel.New("Test", 1, 1, 1, 1)

		Expect(c.Deliver(channel.Response{Address: 0x4000, Data: 0xFF})).To(BeTrue())

		responses := c.PopReturned()
		Expect(responses).To(HaveLen(1))
		Expect(responses[0].Address).To(Equal(uint64(0x4000)))
		Expect(c.PopReturned()).To(BeEmpty())
	})
})
