package byteset

import (
	"fmt"
	"strings"
)

var classEscapes = map[byte]string{
	'\t': `\t`,
	'\n': `\n`,
	'\r': `\r`,
	'\\': `\\`,
	']':  `\]`,
	'-':  `\-`,
	'^':  `\^`,
}

// formatClass renders s as a PEG character class, collapsing runs of three
// or more consecutive bytes into a range.
func formatClass(s Set) string {
	switch {
	case s.IsEmpty():
		return "!."
	case s.IsFull():
		return "."
	}

	var buf strings.Builder
	buf.WriteByte('[')
	lo, hi, open := byte(0), byte(0), false
	flush := func() {
		writeClassByte(&buf, lo)
		switch {
		case hi == lo:
		case hi == lo+1:
			writeClassByte(&buf, hi)
		default:
			buf.WriteByte('-')
			writeClassByte(&buf, hi)
		}
	}
	s.ForEach(func(b byte) {
		if open && b == hi+1 {
			hi = b
			return
		}
		if open {
			flush()
		}
		lo, hi, open = b, b, true
	})
	flush()
	buf.WriteByte(']')
	return buf.String()
}

func writeClassByte(buf *strings.Builder, b byte) {
	if esc, found := classEscapes[b]; found {
		buf.WriteString(esc)
	} else if b >= 0x20 && b < 0x7f {
		buf.WriteByte(b)
	} else {
		fmt.Fprintf(buf, `\x%02x`, b)
	}
}
