package branch_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/ooosim/coretrace/branch"
)

func TestBranch(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Branch Suite")
}

var _ = Describe("Classify", func() {
	It("recognizes a return", func() {
		sig := branch.Signature{
			IsBranch:     true,
			Taken:        true,
			SrcRegisters: []uint8{branch.RegIP, branch.RegSP},
			DstRegisters: []uint8{branch.RegIP},
			ReadsMemory:  true,
		}
		Expect(branch.Classify(sig)).To(Equal(branch.Return))
	})

	It("recognizes a direct call", func() {
		sig := branch.Signature{
			IsBranch:     true,
			Taken:        true,
			SrcRegisters: []uint8{branch.RegIP},
			DstRegisters: []uint8{branch.RegIP, branch.RegSP},
			WritesMemory: true,
		}
		Expect(branch.Classify(sig)).To(Equal(branch.DirectCall))
	})

	It("recognizes an indirect call", func() {
		sig := branch.Signature{
			IsBranch:     true,
			Taken:        true,
			SrcRegisters: []uint8{branch.RegIP, 4},
			DstRegisters: []uint8{branch.RegIP, branch.RegSP},
			WritesMemory: true,
		}
		Expect(branch.Classify(sig)).To(Equal(branch.IndirectCall))
	})

	It("recognizes a direct jump", func() {
		sig := branch.Signature{IsBranch: true, Taken: true, SrcRegisters: []uint8{branch.RegIP}}
		Expect(branch.Classify(sig)).To(Equal(branch.DirectJump))
	})

	It("recognizes an indirect branch", func() {
		sig := branch.Signature{IsBranch: true, Taken: true, SrcRegisters: []uint8{branch.RegIP, 9}}
		Expect(branch.Classify(sig)).To(Equal(branch.Indirect))
	})

	It("recognizes a not-taken conditional", func() {
		sig := branch.Signature{IsBranch: true, Taken: false}
		Expect(branch.Classify(sig)).To(Equal(branch.Conditional))
	})

	It("recognizes a non-branch", func() {
		Expect(branch.Classify(branch.Signature{})).To(Equal(branch.NotBranch))
	})
})

var _ = Describe("Bimodal", func() {
	It("defaults to predicting taken", func() {
		b := branch.NewBimodal()
		Expect(b.Predict(0x1000)).To(BeTrue())
	})

	It("saturates down to not-taken after repeated misses", func() {
		b := branch.NewBimodal()
		for i := 0; i < 4; i++ {
			b.LastBranchResult(0x1000, 0, false, branch.Conditional)
		}
		Expect(b.Predict(0x1000)).To(BeFalse())
	})

	It("recovers to taken after enough hits", func() {
		b := branch.NewBimodal()
		for i := 0; i < 4; i++ {
			b.LastBranchResult(0x1000, 0, false, branch.Conditional)
		}
		for i := 0; i < 2; i++ {
			b.LastBranchResult(0x1000, 0, true, branch.Conditional)
		}
		Expect(b.Predict(0x1000)).To(BeTrue())
	})
})

var _ = Describe("BasicBTB", func() {
	It("predicts nothing for an unseen ip", func() {
		b := branch.NewBasicBTB()
		target, taken := b.Predict(0x1000)
		Expect(target).To(BeZero())
		Expect(taken).To(BeFalse())
	})

	It("replays a learned target", func() {
		b := branch.NewBasicBTB()
		b.Update(0x1000, 0x2000, true, branch.DirectJump)

		target, taken := b.Predict(0x1000)
		Expect(target).To(Equal(uint64(0x2000)))
		Expect(taken).To(BeTrue())
	})

	It("matches a call with its return via the stack", func() {
		b := branch.NewBasicBTB()
		b.Update(0x1000, 0x3000, true, branch.DirectCall)
		b.Update(0x2000, 0, true, branch.Return)

		target, taken := b.Predict(0x2000)
		Expect(taken).To(BeTrue())
		Expect(target).To(Equal(uint64(0x3000)))
	})
})
