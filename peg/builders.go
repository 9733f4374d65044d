package peg

import (
	"github.com/chronos-tachyon/go-packrat/byteset"
)

// Lit matches the literal string s.
func Lit(s string) Expr {
	switch len(s) {
	case 0:
		return &Empty{}
	case 1:
		return &Byte{B: s[0]}
	}
	return &Str{Bytes: []byte(s)}
}

// Class matches one byte accepted by any of the given matchers.
func Class(ms ...byteset.Matcher) Expr {
	if len(ms) == 1 {
		return &Set{Set: ms[0]}
	}
	return &Set{Set: byteset.Or(ms...)}
}

// Range matches one byte in [lo, hi].
func Range(lo, hi byte) Expr {
	return &Set{Set: byteset.Ranges(byteset.Range{Lo: lo, Hi: hi})}
}

// OneOf matches one byte found in chars.
func OneOf(chars string) Expr {
	return &Set{Set: byteset.DenseSet([]byte(chars)...)}
}

// AnyByte matches any single byte.
func AnyByte() Expr { return &Any{} }

// Sequence matches es in order. A single expression is returned as-is.
func Sequence(es ...Expr) Expr {
	switch len(es) {
	case 0:
		return &Empty{}
	case 1:
		return es[0]
	}
	return &Seq{Items: es}
}

// OrderedChoice tries es in order.
func OrderedChoice(es ...Expr) Expr {
	switch len(es) {
	case 0:
		return &Fail{}
	case 1:
		return es[0]
	}
	return &Choice{Alts: es}
}

// ZeroOrMore is e*, where e is the sequence of es.
func ZeroOrMore(es ...Expr) Expr { return &Star{Body: Sequence(es...)} }

// OneOrMore is e+.
func OneOrMore(es ...Expr) Expr { return &Plus{Body: Sequence(es...)} }

// Optional is e?.
func Optional(es ...Expr) Expr { return &Option{Body: Sequence(es...)} }

// Lookahead is &e.
func Lookahead(es ...Expr) Expr { return &And{Body: Sequence(es...)} }

// NotAhead is !e.
func NotAhead(es ...Expr) Expr { return &Not{Body: Sequence(es...)} }

// Call refers to another production by name.
func Call(name string) Expr { return &Ref{Name: name} }

// NewNode builds one AST node spanning es: New, es..., Capture.
func NewNode(es ...Expr) Expr {
	items := make([]Expr, 0, len(es)+2)
	items = append(items, &New{})
	items = append(items, es...)
	items = append(items, &Capture{})
	return &Seq{Items: items}
}

// FoldNode folds the node built so far into child label of a new node
// spanning es: LeftFold, es..., Capture.
func FoldNode(label string, es ...Expr) Expr {
	items := make([]Expr, 0, len(es)+2)
	items = append(items, &LeftFold{Label: label})
	items = append(items, es...)
	items = append(items, &Capture{})
	return &Seq{Items: items}
}

// TagAs sets the tag of the current node.
func TagAs(name string) Expr { return &Tag{Name: name} }

// ReplaceWith sets the value of the current node.
func ReplaceWith(value string) Expr { return &Replace{Value: value} }

// LinkAs attaches the node built by es as child label of the current node.
func LinkAs(label string, es ...Expr) Expr {
	return &Link{Label: label, Index: -1, Body: Sequence(es...)}
}

// LinkAt attaches the node built by es as child number index.
func LinkAt(index int, label string, es ...Expr) Expr {
	return &Link{Label: label, Index: index, Body: Sequence(es...)}
}

// Def adds the bytes matched by es to table.
func Def(table string, es ...Expr) Expr {
	return &DefSymbol{Table: table, Body: Sequence(es...)}
}

// Is matches es and requires the result to equal the latest symbol of table.
func Is(table string, es ...Expr) Expr {
	return &IsSymbol{Table: table, Body: Sequence(es...)}
}

// Isa matches es and requires the result to be any visible symbol of table.
func Isa(table string, es ...Expr) Expr {
	return &IsSymbol{Table: table, Body: Sequence(es...), Isa: true}
}

// ExistsIn succeeds iff table has a visible symbol.
func ExistsIn(table string) Expr { return &Exists{Table: table} }

// ExistsSymbol succeeds iff sym is a visible symbol of table.
func ExistsSymbol(table, sym string) Expr {
	return &Exists{Table: table, Symbol: []byte(sym)}
}

// MatchSym matches the latest symbol of table.
func MatchSym(table string) Expr { return &MatchSymbol{Table: table} }

// Block scopes every symbol defined by es.
func Block(es ...Expr) Expr { return &Scope{Body: Sequence(es...)} }

// LocalTo scopes es and hides the outer symbols of table.
func LocalTo(table string, es ...Expr) Expr {
	return &Local{Table: table, Body: Sequence(es...)}
}

// Ext wraps a host matcher.
func Ext(name string, fn ExtFunc) Expr {
	return &Extension{Name: name, Match: fn}
}
