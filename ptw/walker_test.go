package ptw_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/ooosim/coretrace/channel"
	"github.com/ooosim/coretrace/ptw"
	"github.com/ooosim/coretrace/vm"
)

func TestPTW(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "PTW Suite")
}

var _ = Describe("Walker", func() {
	It("walks every level of a multi-level table before delivering a translation", func() {
		vmem := vm.New(2, 4, 8)

		var lowerQueue []channel.Request
		lowerRQ := func(req channel.Request) bool {
			lowerQueue = append(lowerQueue, req)
			return true
		}

		w := ptw.New(2, vmem, lowerRQ, 4, 1, nil)
		returnTo := channel.New("Return", 4, 0, 0, 4)

		req := channel.Request{VAddress: 0x401000, CPU: 0, ResponseRequested: true}
		Expect(w.CanAcceptRead()).To(BeTrue())
		Expect(w.HandleRead(req, returnTo)).To(BeTrue())
		Expect(lowerQueue).To(HaveLen(1), "the first-level page-table-page read should be issued immediately")

		first := lowerQueue[0]
		lowerQueue = lowerQueue[1:]
		w.HandleFill(0, channel.Response{Address: first.Address, Data: 0xAAA000}, false)
		Expect(lowerQueue).To(HaveLen(1), "one level remains, so a second-level read is issued")

		second := lowerQueue[0]
		lowerQueue = lowerQueue[1:]
		Expect(second.Address).NotTo(Equal(first.Address), "the second-level read must target a different page-table page")
		w.HandleFill(0, channel.Response{Address: second.Address, Data: 0xBBB000}, false)
		Expect(lowerQueue).To(BeEmpty(), "the walk is complete; no further page-table-page read is issued")

		w.Operate(13)
		delivered := returnTo.PopReturned()
		Expect(delivered).To(HaveLen(1))
		Expect(delivered[0].VAddress).To(Equal(req.VAddress))
	})

	It("rejects a new read once the MSHR is full", func() {
		vmem := vm.New(2, 1, 1)
		lowerRQ := func(channel.Request) bool { return true }
		w := ptw.New(2, vmem, lowerRQ, 1, 1, nil)
		returnTo := channel.New("Return", 4, 0, 0, 4)

		Expect(w.HandleRead(channel.Request{VAddress: 0x1000}, returnTo)).To(BeTrue())
		Expect(w.CanAcceptRead()).To(BeFalse())
	})
})
