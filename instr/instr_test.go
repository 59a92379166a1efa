package instr_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/ooosim/coretrace/instr"
)

func TestInstr(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Instr Suite")
}

var _ = Describe("Instr dependency tracking", func() {
	It("is satisfied when every producer has executed", func() {
		i := instr.New(10, 0x400)
		i.SourceRegisters = []uint8{1, 0, 2}
		i.RegisterProducer = []uint64{4, 0, 7}

		executed := map[uint64]bool{4: true, 7: true}
		Expect(i.AllDependenciesSatisfied(func(id uint64) bool { return executed[id] })).To(BeTrue())
	})

	It("is blocked while a producer has not executed", func() {
		i := instr.New(10, 0x400)
		i.SourceRegisters = []uint8{1, 2}
		i.RegisterProducer = []uint64{4, 7}

		executed := map[uint64]bool{4: true}
		Expect(i.AllDependenciesSatisfied(func(id uint64) bool { return executed[id] })).To(BeFalse())
	})
})

var _ = Describe("LoadQueue", func() {
	It("allocates into a free slot and releases it back", func() {
		q := instr.NewLoadQueue(4)
		idx, ok := q.FreeSlot()
		Expect(ok).To(BeTrue())

		q.Allocate(idx, instr.LSQEntry{InstrID: 1, VirtualAddress: 0x1000})
		Expect(q.Occupancy()).To(Equal(1))

		entry, present := q.Get(idx)
		Expect(present).To(BeTrue())
		Expect(entry.InstrID).To(Equal(uint64(1)))

		q.Release(idx)
		Expect(q.Occupancy()).To(Equal(0))
	})

	It("reports full once every slot is occupied", func() {
		q := instr.NewLoadQueue(2)
		i0, _ := q.FreeSlot()
		q.Allocate(i0, instr.LSQEntry{InstrID: 1})
		i1, _ := q.FreeSlot()
		q.Allocate(i1, instr.LSQEntry{InstrID: 2})

		_, ok := q.FreeSlot()
		Expect(ok).To(BeFalse())
	})
})

var _ = Describe("StoreQueue forwarding", func() {
	It("finds the closest older store to the same address", func() {
		q := instr.NewStoreQueue()
		q.Push(instr.LSQEntry{InstrID: 5, VirtualAddress: 0x2000})
		q.Push(instr.LSQEntry{InstrID: 8, VirtualAddress: 0x2000})
		q.Push(instr.LSQEntry{InstrID: 9, VirtualAddress: 0x3000})

		store, ok := q.FindForwardingStore(0x2000, 12)
		Expect(ok).To(BeTrue())
		Expect(store.InstrID).To(Equal(uint64(8)))
	})

	It("ignores stores that are not strictly older", func() {
		q := instr.NewStoreQueue()
		q.Push(instr.LSQEntry{InstrID: 20, VirtualAddress: 0x2000})

		_, ok := q.FindForwardingStore(0x2000, 10)
		Expect(ok).To(BeFalse())
	})
})
