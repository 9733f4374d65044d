package peg

import (
	"fmt"
	"strconv"
	"strings"
)

func (e *Byte) String() string { return quoteBytes('\'', []byte{e.B}) }
func (e *Set) String() string  { return e.Set.String() }
func (e *Str) String() string  { return quoteBytes('"', e.Bytes) }
func (*Any) String() string    { return "." }
func (*Empty) String() string  { return "''" }
func (*Fail) String() string   { return "!''" }
func (e *Ref) String() string  { return e.Name }

func (e *Seq) String() string {
	parts := make([]string, len(e.Items))
	for i, item := range e.Items {
		if _, ok := item.(*Choice); ok {
			parts[i] = "(" + item.String() + ")"
		} else {
			parts[i] = item.String()
		}
	}
	return strings.Join(parts, " ")
}

func (e *Choice) String() string {
	parts := make([]string, len(e.Alts))
	for i, alt := range e.Alts {
		parts[i] = alt.String()
	}
	return strings.Join(parts, " / ")
}

func (e *Star) String() string   { return group(e.Body) + "*" }
func (e *Plus) String() string   { return group(e.Body) + "+" }
func (e *Option) String() string { return group(e.Body) + "?" }
func (e *And) String() string    { return "&" + group(e.Body) }
func (e *Not) String() string    { return "!" + group(e.Body) }

func (e *New) String() string { return "{" + shift(e.Shift) }

func (e *LeftFold) String() string {
	return "{$" + e.Label + shift(e.Shift)
}

func (e *Capture) String() string { return shift(e.Shift) + "}" }
func (e *Tag) String() string     { return "#" + e.Name }
func (e *Replace) String() string { return "`" + e.Value + "`" }

func (e *Link) String() string {
	if e.Index >= 0 {
		return fmt.Sprintf("$%s[%d](%s)", e.Label, e.Index, e.Body)
	}
	return "$" + e.Label + "(" + e.Body.String() + ")"
}

func (e *DefSymbol) String() string {
	return "<def " + e.Table + " " + e.Body.String() + ">"
}

func (e *IsSymbol) String() string {
	op := "is"
	if e.Isa {
		op = "isa"
	}
	return "<" + op + " " + e.Table + " " + e.Body.String() + ">"
}

func (e *Exists) String() string {
	if e.Symbol != nil {
		return "<exists " + e.Table + " " + quoteBytes('\'', e.Symbol) + ">"
	}
	return "<exists " + e.Table + ">"
}

func (e *MatchSymbol) String() string { return "<match " + e.Table + ">" }
func (e *Scope) String() string       { return "<block " + e.Body.String() + ">" }

func (e *Local) String() string {
	return "<local " + e.Table + " " + e.Body.String() + ">"
}

func (e *Extension) String() string { return "<ext " + e.Name + ">" }

func group(e Expr) string {
	switch x := e.(type) {
	case *Choice:
		return "(" + x.String() + ")"
	case *Seq:
		if len(x.Items) > 1 {
			return "(" + x.String() + ")"
		}
	}
	return e.String()
}

func shift(n int) string {
	if n == 0 {
		return ""
	}
	return "<" + strconv.Itoa(n) + ">"
}

func quoteBytes(q byte, bs []byte) string {
	var buf strings.Builder
	buf.WriteByte(q)
	for _, b := range bs {
		switch {
		case b == q || b == '\\':
			buf.WriteByte('\\')
			buf.WriteByte(b)
		case b == '\n':
			buf.WriteString(`\n`)
		case b == '\t':
			buf.WriteString(`\t`)
		case b == '\r':
			buf.WriteString(`\r`)
		case b >= 0x20 && b < 0x7f:
			buf.WriteByte(b)
		default:
			fmt.Fprintf(&buf, `\x%02x`, b)
		}
	}
	buf.WriteByte(q)
	return buf.String()
}
