package byteset

import (
	"math/bits"
)

// Set is a 256-bit bitmap of bytes. The zero value is the empty set.
//
// • Match performance: fast
//
// • ForEach performance: moderate
//
// • Usefulness: broad
//
// Set is what the virtual machine executes against; every other Matcher is
// converted to a Set at compile time.
//
type Set [4]uint64

var _ Matcher = Set{}

// DenseSet returns a Set that matches any of the given bytes.
func DenseSet(given ...byte) Matcher {
	var s Set
	for _, b := range given {
		s.Add(b)
	}
	return s
}

// Add inserts b into the set.
func (s *Set) Add(b byte) {
	s[b>>6] |= uint64(1) << (b & 63)
}

// AddRange inserts every byte in [lo, hi] into the set.
func (s *Set) AddRange(lo, hi byte) {
	forEachByte(lo, hi, s.Add)
}

// Has returns true iff b is in the set.
func (s Set) Has(b byte) bool {
	return (s[b>>6] & (uint64(1) << (b & 63))) != 0
}

func (s Set) Match(b byte) bool {
	return s.Has(b)
}

func (s Set) ForEach(f func(b byte)) {
	for i := uint(0); i < 4; i++ {
		word := s[i]
		for word != 0 {
			j := uint(bits.TrailingZeros64(word))
			f(byte(i<<6 | j))
			word &^= uint64(1) << j
		}
	}
}

func (s Set) Optimize() Matcher {
	switch s.Len() {
	case 0:
		return None()
	case 256:
		return All()
	case 1:
		var only byte
		s.ForEach(func(b byte) { only = b })
		return Exactly(only)
	}
	return s
}

func (s Set) String() string {
	return formatClass(s)
}

// Len returns the number of bytes in the set.
func (s Set) Len() int {
	n := 0
	for _, word := range s {
		n += bits.OnesCount64(word)
	}
	return n
}

// IsEmpty returns true iff the set matches no bytes at all.
func (s Set) IsEmpty() bool {
	return s == Set{}
}

// IsFull returns true iff the set matches every byte.
func (s Set) IsFull() bool {
	return s.Complement().IsEmpty()
}

// Union returns the bytes in either s or o.
func (s Set) Union(o Set) Set {
	for i := range s {
		s[i] |= o[i]
	}
	return s
}

// Intersect returns the bytes in both s and o.
func (s Set) Intersect(o Set) Set {
	for i := range s {
		s[i] &= o[i]
	}
	return s
}

// Intersects returns true iff s and o have at least one byte in common.
func (s Set) Intersects(o Set) bool {
	return !s.Intersect(o).IsEmpty()
}

// Complement returns the bytes not in s.
func (s Set) Complement() Set {
	for i := range s {
		s[i] = ^s[i]
	}
	return s
}
