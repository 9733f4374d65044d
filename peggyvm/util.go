package peggyvm

import (
	"bytes"
	"fmt"
	"strconv"
)

// immLengths lists the immediate sizes, indexed by their 3-bit length code.
var immLengths = [...]uint{0, 1, 2, 4, 8}

// ImmLengthDecode maps a 3-bit length code to the size of an immediate in
// bytes.
func ImmLengthDecode(b byte) (length uint, valid bool) {
	if int(b) >= len(immLengths) {
		return 0, false
	}
	return immLengths[b], true
}

// ImmLengthEncode is the inverse of ImmLengthDecode. It panics unless n is
// 0, 1, 2, 4 or 8.
func ImmLengthEncode(n int) byte {
	for code, length := range immLengths {
		if uint(n) == length {
			return byte(code)
		}
	}
	panic(fmt.Errorf("no length code for a %d-byte immediate", n))
}

func assert(cond bool, format string, args ...interface{}) {
	if !cond {
		panic(fmt.Errorf("assertion failed: "+format, args...))
	}
}

// Signed immediates travel as two's complement bit patterns.
func s2u(v int64) uint64 { return uint64(v) }
func u2s(v uint64) int64 { return int64(v) }

// writeByteLiteral renders b the way the disassembler prints BYTE operands:
// quoted when printable, as a Go escape for common controls, else as $hh.
func writeByteLiteral(buf *bytes.Buffer, b byte) {
	switch {
	case b == '\'' || b == '\\':
		fmt.Fprintf(buf, `'\%c'`, b)
	case b >= 0x20 && b < 0x7f:
		fmt.Fprintf(buf, "'%c'", b)
	case b >= 0x07 && b <= 0x0d:
		q := strconv.QuoteRune(rune(b))
		buf.WriteString(q)
	default:
		fmt.Fprintf(buf, "$%02x", b)
	}
}

// hexDump formats raw bytecode sixteen bytes per row, each row prefixed by
// its offset, ending with the total length.
func hexDump(in []byte) string {
	var buf bytes.Buffer
	for off := 0; off < len(in); off += 16 {
		end := off + 16
		if end > len(in) {
			end = len(in)
		}
		fmt.Fprintf(&buf, "%05x", off)
		for i, b := range in[off:end] {
			if i == 8 {
				buf.WriteByte(' ')
			}
			fmt.Fprintf(&buf, " %02x", b)
		}
		buf.WriteByte('\n')
	}
	fmt.Fprintf(&buf, "%05x\n", len(in))
	return buf.String()
}

// quoteLiteral renders a byte string in Go syntax.
func quoteLiteral(lit []byte) string {
	return strconv.Quote(string(lit))
}
