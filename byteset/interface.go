// Package byteset provides predicates over single bytes, used as the operand
// of character-class expressions and for first-byte analysis of grammars.
package byteset

// Matcher decides membership of single bytes. Matchers are read-only after
// construction, so compiled programs share them freely across goroutines.
type Matcher interface {
	Match(b byte) bool

	// ForEach visits the members in ascending order, once each.
	ForEach(f func(b byte))

	// Optimize returns an equivalent Matcher that is cheaper to evaluate,
	// or the receiver itself.
	Optimize() Matcher

	// String renders the members as a PEG character class.
	String() string
}

// Bytes appends the members of m to out.
func Bytes(m Matcher, out []byte) []byte {
	m.ForEach(func(b byte) { out = append(out, b) })
	return out
}

// Dense converts any Matcher into a bitmap Set.
func Dense(m Matcher) Set {
	if s, ok := m.(Set); ok {
		return s
	}
	if s, ok := m.(*Set); ok {
		return *s
	}
	var s Set
	m.ForEach(s.Add)
	return s
}

// Equal returns true iff a and b match exactly the same bytes.
func Equal(a, b Matcher) bool {
	return Dense(a) == Dense(b)
}

func forEachByte(lo, hi byte, f func(b byte)) {
	for b := int(lo); b <= int(hi); b++ {
		f(byte(b))
	}
}

// genericForEach probes all 256 bytes.
func genericForEach(m Matcher, f func(b byte)) {
	forEachByte(0x00, 0xff, func(b byte) {
		if m.Match(b) {
			f(b)
		}
	})
}
