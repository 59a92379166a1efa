// Package addr implements bit-range arithmetic over 64-bit addresses,
// grounded on champsim's address_slice template (inc/address.h): a value
// plus the [upper, lower) bit range it occupies, with bounds-checked
// comparison and modulo-width arithmetic.
package addr

import "fmt"

const Bits = 64

// Slice is a dynamic-extent bit range [Upper, Lower) over a 64-bit value.
// Value is always masked to fit within Upper-Lower bits.
type Slice struct {
	Value uint64
	Upper uint
	Lower uint
}

// New builds a Slice with explicit bounds, masking val to the range width.
func New(upper, lower uint, val uint64) Slice {
	if upper < lower || upper > Bits {
		panic(fmt.Sprintf("addr: invalid bounds [%d, %d)", upper, lower))
	}
	return Slice{Value: val & Bitmask(upper-lower), Upper: upper, Lower: lower}
}

// Full wraps val as a full 64-bit slice, [64, 0).
func Full(val uint64) Slice {
	return Slice{Value: val, Upper: Bits, Lower: 0}
}

// Bitmask returns a mask with the low n bits set.
func Bitmask(n uint) uint64 {
	if n >= Bits {
		return ^uint64(0)
	}
	if n == 0 {
		return 0
	}
	return (uint64(1) << n) - 1
}

// Lg2 returns the ceiling log base 2 of n (Lg2(1) == 0).
func Lg2(n uint64) uint {
	bits := uint(0)
	v := n
	for v > 1 {
		v = (v + 1) >> 1
		bits++
	}
	return bits
}

func (s Slice) mustMatch(o Slice) {
	if s.Upper != o.Upper {
		panic("addr: upper bounds do not match")
	}
	if s.Lower != o.Lower {
		panic("addr: lower bounds do not match")
	}
}

// Equal reports whether s and o carry the same value, panicking if their
// bounds differ (mismatched-bounds comparison is a programming error).
func (s Slice) Equal(o Slice) bool {
	s.mustMatch(o)
	return s.Value == o.Value
}

// Less reports whether s sorts before o, panicking on bound mismatch.
func (s Slice) Less(o Slice) bool {
	s.mustMatch(o)
	return s.Value < o.Value
}

// Add returns s shifted by delta, wrapped modulo the slice width.
func (s Slice) Add(delta int64) Slice {
	width := s.Upper - s.Lower
	return Slice{Value: uint64(int64(s.Value)+delta) & Bitmask(width), Upper: s.Upper, Lower: s.Lower}
}

// Offset returns the signed distance from other to s (s - other),
// panicking if the bounds disagree.
func Offset(s, other Slice) int64 {
	s.mustMatch(other)
	if s.Value >= other.Value {
		diff := s.Value - other.Value
		return int64(diff)
	}
	diff := other.Value - s.Value
	return -int64(diff)
}

// SliceUpper returns the sub-slice [Upper, newLower) of s.
func (s Slice) SliceUpper(newLower uint) Slice {
	return s.Bits(s.Upper-s.Lower, newLower)
}

// SliceLower returns the sub-slice [newUpper, Lower) of s.
func (s Slice) SliceLower(newUpper uint) Slice {
	return s.Bits(newUpper, 0)
}

// Bits returns the [sliceUpper, sliceLower) sub-range of s, re-based to
// start at bit 0 of the caller's reference frame plus s.Lower.
func (s Slice) Bits(sliceUpper, sliceLower uint) Slice {
	width := s.Upper - s.Lower
	if sliceLower > width || sliceUpper > width {
		panic("addr: slice range exceeds source width")
	}
	shifted := s.Value >> sliceLower
	return Slice{
		Value: shifted & Bitmask(sliceUpper - sliceLower),
		Upper: sliceUpper + s.Lower,
		Lower: sliceLower + s.Lower,
	}
}

// Splice overlays lower's low `bits` bits onto upper, returning a slice
// with upper's bounds. Mirrors champsim::splice(upper, lower, bits).
func Splice(upper, lower Slice, bits uint) Slice {
	width := upper.Upper - upper.Lower
	mask := Bitmask(bits)
	hi := upper.Value &^ mask
	lo := lower.Value & mask
	return Slice{Value: (hi | lo) & Bitmask(width), Upper: upper.Upper, Lower: upper.Lower}
}

// To64 returns the slice's value as a plain uint64; this never overflows
// since the underlying storage is already uint64, but is kept symmetrical
// with the source's bounds-checked `to<T>()` conversion.
func (s Slice) To64() uint64 {
	return s.Value
}

func (s Slice) String() string {
	return fmt.Sprintf("%#x", s.Value)
}
