package byteset

import (
	"sort"
)

// Range represents the bytes Lo, Lo+1, ..., Hi. A Range with Lo > Hi is
// empty.
type Range struct {
	Lo byte
	Hi byte
}

// Ranges returns a Matcher that matches any byte that falls in one of the
// given Range entries. This is how character classes such as [0-9a-f] are
// usually written.
func Ranges(rs ...Range) Matcher {
	return &mRange{Ranges: coalesceRanges(rs)}
}

type mRange struct {
	// Sorted by Lo, non-empty, neither overlapping nor adjacent.
	Ranges []Range
}

func (m *mRange) Match(b byte) bool {
	i := sort.Search(len(m.Ranges), func(i int) bool {
		return m.Ranges[i].Hi >= b
	})
	return i < len(m.Ranges) && m.Ranges[i].Lo <= b
}

func (m *mRange) ForEach(f func(b byte)) {
	for _, r := range m.Ranges {
		forEachByte(r.Lo, r.Hi, f)
	}
}

func (m *mRange) Optimize() Matcher {
	switch len(m.Ranges) {
	case 0:
		return None()
	case 1:
		r := m.Ranges[0]
		if r.Lo == r.Hi {
			return Exactly(r.Lo)
		}
		if r.Lo == 0x00 && r.Hi == 0xff {
			return All()
		}
	}
	return m
}

func (m *mRange) String() string {
	return formatClass(Dense(m))
}

func coalesceRanges(in []Range) []Range {
	sorted := make([]Range, 0, len(in))
	for _, r := range in {
		if r.Lo <= r.Hi {
			sorted = append(sorted, r)
		}
	}
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Lo < sorted[j].Lo
	})

	out := sorted[:0]
	for _, r := range sorted {
		if n := len(out); n != 0 && uint(out[n-1].Hi)+1 >= uint(r.Lo) {
			if r.Hi > out[n-1].Hi {
				out[n-1].Hi = r.Hi
			}
			continue
		}
		out = append(out, r)
	}
	return out
}
