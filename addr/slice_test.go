package addr

import (
	"testing"

	. "github.com/onsi/gomega"
)

func TestBitmask(t *testing.T) {
	g := NewWithT(t)

	g.Expect(Bitmask(0)).To(Equal(uint64(0)))
	g.Expect(Bitmask(4)).To(Equal(uint64(0xF)))
	g.Expect(Bitmask(64)).To(Equal(^uint64(0)))
}

func TestSliceBits(t *testing.T) {
	g := NewWithT(t)

	s := New(16, 0, 0xBEEF)
	hi := s.Bits(16, 8)
	g.Expect(hi.Value).To(Equal(uint64(0xBE)))
	g.Expect(hi.Upper).To(Equal(uint(16)))
	g.Expect(hi.Lower).To(Equal(uint(8)))
}

func TestOffsetAndAdd(t *testing.T) {
	g := NewWithT(t)

	a := New(8, 0, 10)
	b := New(8, 0, 4)
	g.Expect(Offset(a, b)).To(Equal(int64(6)))
	g.Expect(Offset(b, a)).To(Equal(int64(-6)))

	wrapped := New(4, 0, 15).Add(1)
	g.Expect(wrapped.Value).To(Equal(uint64(0)))
}

func TestMismatchedBoundsPanics(t *testing.T) {
	g := NewWithT(t)

	a := New(8, 0, 1)
	b := New(16, 0, 1)

	g.Expect(func() { a.Equal(b) }).To(Panic())
}

func TestPageAndBlockAddress(t *testing.T) {
	g := NewWithT(t)

	full := uint64(0x1234_5000 + 0x40)
	g.Expect(NewPageOffset(full).Value).To(Equal(uint64(0x40)))
	g.Expect(SameBlock(full, full+0x3F)).To(BeTrue())
	g.Expect(SameBlock(full, full+0x40)).To(BeFalse())
}
