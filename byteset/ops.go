package byteset

// constant matches every byte (true) or none (false).
type constant bool

// All returns a Matcher that matches every byte.
func All() Matcher { return constant(true) }

// None returns a Matcher that matches no byte.
func None() Matcher { return constant(false) }

func (c constant) Match(byte) bool   { return bool(c) }
func (c constant) Optimize() Matcher { return c }

func (c constant) ForEach(f func(b byte)) {
	if c {
		forEachByte(0x00, 0xff, f)
	}
}

func (c constant) String() string {
	if c {
		return "."
	}
	return "!."
}

// single matches exactly one byte.
type single byte

// Exactly returns a Matcher for the byte b alone.
func Exactly(b byte) Matcher { return single(b) }

func (s single) Match(b byte) bool      { return b == byte(s) }
func (s single) ForEach(f func(b byte)) { f(byte(s)) }
func (s single) Optimize() Matcher      { return s }
func (s single) String() string         { return formatClass(Dense(s)) }

// Not returns a Matcher for the bytes m rejects.
func Not(m Matcher) Matcher { return &negation{inner: m} }

type negation struct {
	inner Matcher
}

func (n *negation) Match(b byte) bool      { return !n.inner.Match(b) }
func (n *negation) ForEach(f func(b byte)) { genericForEach(n, f) }
func (n *negation) String() string         { return "!" + n.inner.String() }

func (n *negation) Optimize() Matcher {
	inner := n.inner.Optimize()
	switch x := inner.(type) {
	case constant:
		return !x
	case *negation:
		return x.inner.Optimize()
	}
	return Dense(inner).Complement().Optimize()
}

// Or returns a Matcher for the bytes at least one of ms accepts.
func Or(ms ...Matcher) Matcher { return newCombination(false, ms) }

// And returns a Matcher for the bytes every one of ms accepts. With no
// arguments it matches every byte.
func And(ms ...Matcher) Matcher { return newCombination(true, ms) }

// combination is a union, or an intersection when every is set.
type combination struct {
	every bool
	list  []Matcher
}

func newCombination(every bool, ms []Matcher) *combination {
	list := make([]Matcher, len(ms))
	copy(list, ms)
	return &combination{every: every, list: list}
}

func (c *combination) Match(b byte) bool {
	for _, m := range c.list {
		if m.Match(b) != c.every {
			return !c.every
		}
	}
	return c.every
}

func (c *combination) dense() Set {
	var s Set
	if c.every {
		s = s.Complement()
	}
	for _, m := range c.list {
		if c.every {
			s = s.Intersect(Dense(m))
		} else {
			s = s.Union(Dense(m))
		}
	}
	return s
}

func (c *combination) ForEach(f func(b byte)) { c.dense().ForEach(f) }
func (c *combination) Optimize() Matcher      { return c.dense().Optimize() }
func (c *combination) String() string         { return formatClass(c.dense()) }
