// Package peg defines the parsing expression IR consumed by the peggyvm
// compiler, together with the Grammar container and the grammar optimizer.
//
// Expressions form a closed sum type: every concrete type in this file
// implements Expr, and nothing outside this package can add another. Trees
// are immutable once handed to a Grammar; the optimizer builds new trees
// rather than editing old ones, so a single expression may be shared between
// productions and between grammars.
package peg

import (
	"github.com/chronos-tachyon/go-packrat/byteset"
)

// Expr is a parsing expression.
type Expr interface {
	String() string
	isExpr()
}

// Byte matches exactly one byte with value B.
type Byte struct{ B byte }

// Set matches exactly one byte contained in Set.
type Set struct{ Set byteset.Matcher }

// Str matches the exact byte string Bytes.
type Str struct{ Bytes []byte }

// Any matches any single byte. It fails only at the end of input.
type Any struct{}

// Seq matches each of Items in turn.
type Seq struct{ Items []Expr }

// Choice tries each of Alts in order and commits to the first that matches.
//
// Predict is filled in by Optimize when every alternative needs at least one
// byte and no two alternatives can start with the same byte; the compiler
// then dispatches on the next input byte instead of trying alternatives one
// by one.
type Choice struct {
	Alts    []Expr
	Predict *Prediction
}

// Prediction maps the next input byte to the only alternative of a Choice
// that can possibly match it.
type Prediction struct {
	// Alt[b] is an index into Choice.Alts, or -1 if no alternative can
	// start with b.
	Alt [256]int16
}

// Star matches Body zero or more times, greedily.
type Star struct{ Body Expr }

// Plus matches Body one or more times, greedily.
type Plus struct{ Body Expr }

// Option matches Body zero or one times.
type Option struct{ Body Expr }

// And succeeds iff Body matches here, consuming nothing.
type And struct{ Body Expr }

// Not succeeds iff Body does not match here, consuming nothing.
type Not struct{ Body Expr }

// Ref invokes the production called Name.
type Ref struct{ Name string }

// New opens a new AST node starting at the current position plus Shift.
type New struct{ Shift int }

// LeftFold turns the node built so far into child Label of a new node that
// starts where the old one started.
type LeftFold struct {
	Shift int
	Label string
}

// Capture closes the node under construction at the current position plus
// Shift.
type Capture struct{ Shift int }

// Tag sets the tag of the node under construction.
type Tag struct{ Name string }

// Replace sets the value of the node under construction, overriding the
// captured text.
type Replace struct{ Value string }

// Link matches Body and attaches the node it built as a child of the
// enclosing node. Index < 0 appends; Index >= 0 places the child at that
// position.
type Link struct {
	Label string
	Index int
	Body  Expr
}

// DefSymbol matches Body and adds the bytes it consumed to Table.
type DefSymbol struct {
	Table string
	Body  Expr
}

// IsSymbol matches Body, then succeeds iff the bytes it consumed equal the
// latest symbol of Table (or, with Isa, any visible symbol of Table).
type IsSymbol struct {
	Table string
	Body  Expr
	Isa   bool
}

// Exists succeeds iff Table has a visible symbol, or, when Symbol is
// non-nil, iff Symbol is one of the visible symbols of Table.
type Exists struct {
	Table  string
	Symbol []byte
}

// MatchSymbol matches the latest symbol of Table literally. It succeeds
// without consuming input when Table has no visible symbol.
type MatchSymbol struct{ Table string }

// Scope matches Body; symbols defined inside are forgotten afterward.
type Scope struct{ Body Expr }

// Local is a Scope that additionally hides the outer symbols of Table while
// Body runs.
type Local struct {
	Table string
	Body  Expr
}

// ExtFunc is a host-supplied matcher. It reports how many bytes of input
// starting at pos it accepts, or ok == false to fail. It must be a pure
// function of its arguments.
type ExtFunc func(input []byte, pos int) (n int, ok bool)

// Extension runs a host-supplied matcher.
type Extension struct {
	Name  string
	Match ExtFunc
}

// Empty always succeeds without consuming input.
type Empty struct{}

// Fail always fails.
type Fail struct{}

func (*Byte) isExpr()        {}
func (*Set) isExpr()         {}
func (*Str) isExpr()         {}
func (*Any) isExpr()         {}
func (*Seq) isExpr()         {}
func (*Choice) isExpr()      {}
func (*Star) isExpr()        {}
func (*Plus) isExpr()        {}
func (*Option) isExpr()      {}
func (*And) isExpr()         {}
func (*Not) isExpr()         {}
func (*Ref) isExpr()         {}
func (*New) isExpr()         {}
func (*LeftFold) isExpr()    {}
func (*Capture) isExpr()     {}
func (*Tag) isExpr()         {}
func (*Replace) isExpr()     {}
func (*Link) isExpr()        {}
func (*DefSymbol) isExpr()   {}
func (*IsSymbol) isExpr()    {}
func (*Exists) isExpr()      {}
func (*MatchSymbol) isExpr() {}
func (*Scope) isExpr()       {}
func (*Local) isExpr()       {}
func (*Extension) isExpr()   {}
func (*Empty) isExpr()       {}
func (*Fail) isExpr()        {}

// Children returns the direct subexpressions of e, in order.
func Children(e Expr) []Expr {
	switch x := e.(type) {
	case *Seq:
		return x.Items
	case *Choice:
		return x.Alts
	case *Star:
		return []Expr{x.Body}
	case *Plus:
		return []Expr{x.Body}
	case *Option:
		return []Expr{x.Body}
	case *And:
		return []Expr{x.Body}
	case *Not:
		return []Expr{x.Body}
	case *Link:
		return []Expr{x.Body}
	case *DefSymbol:
		return []Expr{x.Body}
	case *IsSymbol:
		return []Expr{x.Body}
	case *Scope:
		return []Expr{x.Body}
	case *Local:
		return []Expr{x.Body}
	}
	return nil
}

// Walk calls f for e and every expression below it, parents first. Ref
// expressions are not followed.
func Walk(e Expr, f func(Expr)) {
	f(e)
	for _, sub := range Children(e) {
		Walk(sub, f)
	}
}

// Rewrite rebuilds e bottom-up, replacing each node x with f(x) after its
// children have been rewritten. The input tree is never modified.
func Rewrite(e Expr, f func(Expr) Expr) Expr {
	switch x := e.(type) {
	case *Seq:
		items := make([]Expr, len(x.Items))
		for i, sub := range x.Items {
			items[i] = Rewrite(sub, f)
		}
		return f(&Seq{Items: items})
	case *Choice:
		alts := make([]Expr, len(x.Alts))
		for i, sub := range x.Alts {
			alts[i] = Rewrite(sub, f)
		}
		return f(&Choice{Alts: alts, Predict: x.Predict})
	case *Star:
		return f(&Star{Body: Rewrite(x.Body, f)})
	case *Plus:
		return f(&Plus{Body: Rewrite(x.Body, f)})
	case *Option:
		return f(&Option{Body: Rewrite(x.Body, f)})
	case *And:
		return f(&And{Body: Rewrite(x.Body, f)})
	case *Not:
		return f(&Not{Body: Rewrite(x.Body, f)})
	case *Link:
		return f(&Link{Label: x.Label, Index: x.Index, Body: Rewrite(x.Body, f)})
	case *DefSymbol:
		return f(&DefSymbol{Table: x.Table, Body: Rewrite(x.Body, f)})
	case *IsSymbol:
		return f(&IsSymbol{Table: x.Table, Body: Rewrite(x.Body, f), Isa: x.Isa})
	case *Scope:
		return f(&Scope{Body: Rewrite(x.Body, f)})
	case *Local:
		return f(&Local{Table: x.Table, Body: Rewrite(x.Body, f)})
	}
	return f(e)
}
