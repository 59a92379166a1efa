package cpu_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/ooosim/coretrace/branch"
	"github.com/ooosim/coretrace/channel"
	"github.com/ooosim/coretrace/cpu"
	"github.com/ooosim/coretrace/instr"
)

func TestCPU(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "CPU Suite")
}

func testCore() (*cpu.Core, *channel.Channel, *channel.Channel) {
	cfg := cpu.Config{
		IFetchBufferSize: 8, DecodeBufferSize: 8, DispatchBufferSize: 8,
		ROBSize: 16, LQSize: 8, SQSize: 8,
		FetchWidth: 4, DecodeWidth: 4, DispatchWidth: 4, ScheduleWidth: 4, ExecuteWidth: 4,
		LQWidth: 2, SQWidth: 2, RetireWidth: 4,
		BranchMispredictPenalty: 10,
		DIBSets: 8, DIBWays: 4, DIBWindowBits: 2,
	}
	l1i := channel.New("L1i", 8, 8, 8, 8)
	l1d := channel.New("L1d", 8, 8, 8, 8)
	return cpu.New(cfg, branch.NewBimodal(), branch.NewBasicBTB(), l1i, l1d), l1i, l1d
}

// serviceChannel stands in for a zero-latency memory level: every read
// gets an immediate response, every write is simply drained.
func serviceChannel(ch *channel.Channel) {
	for _, req := range ch.RQ {
		ch.Deliver(channel.Response{Address: req.Address, VAddress: req.VAddress, InstrDependOnMe: req.InstrDependOnMe})
	}
	ch.RQ = ch.RQ[:0]
	ch.WQ = ch.WQ[:0]
}

var _ = Describe("Core", func() {
	It("retires a simple non-memory instruction", func() {
		c, l1i, l1d := testCore()
		in := instr.New(1, 0x400000)
		c.Feed([]*instr.Instr{in})

		for i := uint64(0); i < 40; i++ {
			c.Operate(i)
			serviceChannel(l1i)
			serviceChannel(l1d)
		}

		Expect(c.NumRetired()).To(Equal(uint64(1)))
	})

	It("keeps num_retired non-decreasing across several instructions", func() {
		c, l1i, l1d := testCore()
		var batch []*instr.Instr
		for i := uint64(1); i <= 5; i++ {
			batch = append(batch, instr.New(i, 0x400000+i*4))
		}
		c.Feed(batch)

		var last uint64
		for i := uint64(0); i < 200; i++ {
			c.Operate(i)
			serviceChannel(l1i)
			serviceChannel(l1d)
			Expect(c.NumRetired()).To(BeNumerically(">=", last))
			last = c.NumRetired()
		}

		Expect(c.NumRetired()).To(Equal(uint64(5)))
	})
})
