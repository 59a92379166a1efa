package trace_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/ooosim/coretrace/branch"
	"github.com/ooosim/coretrace/trace"
)

func TestTrace(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Trace Suite")
}

var _ = Describe("ToInstr", func() {
	It("classifies an indirect branch and carries the instr_id and ip through", func() {
		rec := trace.Record{
			IP:          0x1000,
			IsBranch:    true,
			BranchTaken: true,
			SourceRegisters: []uint8{branch.RegIP, 3},
		}
		in := trace.ToInstr(42, rec)

		Expect(in.InstrID).To(Equal(uint64(42)))
		Expect(in.IP).To(Equal(uint64(0x1000)))
		Expect(in.BranchType).To(Equal(branch.Indirect))
	})

	It("classifies a return from its operand signature", func() {
		rec := trace.Record{
			IP:                   0x2000,
			IsBranch:             true,
			BranchTaken:          true,
			SourceRegisters:      []uint8{branch.RegIP, branch.RegSP},
			DestinationRegisters: []uint8{branch.RegIP},
			MemorySourceVAddrs:   []uint64{0x7fff0000},
		}
		in := trace.ToInstr(1, rec)
		Expect(in.BranchType).To(Equal(branch.Return))
	})

	It("carries memory operand vaddrs into the instruction record", func() {
		rec := trace.Record{
			IP:                      0x3000,
			MemorySourceVAddrs:      []uint64{0x5000},
			MemoryDestinationVAddrs: []uint64{0x6000},
		}
		in := trace.ToInstr(2, rec)
		Expect(in.SourceMemory).To(Equal([]uint64{0x5000}))
		Expect(in.DestinationMemory).To(Equal([]uint64{0x6000}))
		Expect(in.BranchType).To(Equal(branch.NotBranch))
	})
})
