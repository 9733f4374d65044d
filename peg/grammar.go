package peg

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/chronos-tachyon/go-packrat/byteset"
)

var (
	ErrNoStart             = errors.New("start production is not defined")
	ErrDuplicateProduction = errors.New("production defined twice")
	ErrUnresolvedRef       = errors.New("reference to undefined production")
	ErrEmptySet            = errors.New("byte set matches nothing")
	ErrNilExpr             = errors.New("nil expression")
	ErrBadName             = errors.New("production name is empty or starts with '.'")
)

// Error is a grammar defect found before compilation.
type Error struct {
	Production string
	Expr       Expr
	Err        error
}

func (e *Error) Error() string {
	var buf bytes.Buffer
	buf.WriteString("peg: ")
	if e.Production != "" {
		fmt.Fprintf(&buf, "in production %q: ", e.Production)
	}
	buf.WriteString(e.Err.Error())
	if e.Expr != nil {
		fmt.Fprintf(&buf, ": %s", e.Expr)
	}
	return buf.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Production is a named rule of a Grammar.
type Production struct {
	Name string
	Body Expr

	// Memo requests that outcomes of this production be memoized.
	Memo bool

	// MemoID is the memo point assigned by Optimize, or -1.
	MemoID int

	// Stateful is set by Optimize when the outcome of this production
	// depends on the symbol table.
	Stateful bool
}

// Grammar is an ordered collection of productions with a designated start.
type Grammar struct {
	Start       string
	Productions []*Production

	byName map[string]*Production
}

// NewGrammar returns an empty grammar that will start at production start.
func NewGrammar(start string) *Grammar {
	return &Grammar{
		Start:  start,
		byName: make(map[string]*Production),
	}
}

// Define adds a production whose body is the sequence of es.
func (g *Grammar) Define(name string, es ...Expr) *Production {
	p := &Production{Name: name, Body: Sequence(es...), MemoID: -1}
	g.add(p)
	return p
}

// Memo is Define for a production that should be memoized.
func (g *Grammar) Memo(name string, es ...Expr) *Production {
	p := g.Define(name, es...)
	p.Memo = true
	return p
}

func (g *Grammar) add(p *Production) {
	if g.byName == nil {
		g.byName = make(map[string]*Production)
	}
	if _, found := g.byName[p.Name]; !found {
		g.byName[p.Name] = p
	}
	g.Productions = append(g.Productions, p)
}

// Lookup returns the production called name, or nil.
func (g *Grammar) Lookup(name string) *Production {
	if g.byName == nil {
		return nil
	}
	return g.byName[name]
}

// Names lists the production names in definition order.
func (g *Grammar) Names() []string {
	names := make([]string, len(g.Productions))
	for i, p := range g.Productions {
		names[i] = p.Name
	}
	return names
}

// MemoPoints returns the number of memo points assigned by Optimize.
func (g *Grammar) MemoPoints() int {
	n := 0
	for _, p := range g.Productions {
		if p.MemoID >= n {
			n = p.MemoID + 1
		}
	}
	return n
}

func (g *Grammar) String() string {
	var buf bytes.Buffer
	for _, p := range g.Productions {
		buf.WriteString(p.Name)
		if p.MemoID >= 0 {
			fmt.Fprintf(&buf, " @memo(%d)", p.MemoID)
		}
		buf.WriteString(" <- ")
		buf.WriteString(p.Body.String())
		buf.WriteByte('\n')
	}
	return buf.String()
}

// Validate reports the first defect that makes g impossible to compile.
func (g *Grammar) Validate() error {
	seen := make(map[string]bool, len(g.Productions))
	for _, p := range g.Productions {
		if p.Name == "" || p.Name[0] == '.' {
			return &Error{Production: p.Name, Err: ErrBadName}
		}
		if seen[p.Name] {
			return &Error{Production: p.Name, Err: ErrDuplicateProduction}
		}
		seen[p.Name] = true
	}
	if g.Lookup(g.Start) == nil {
		return &Error{Production: g.Start, Err: ErrNoStart}
	}
	for _, p := range g.Productions {
		if err := g.validateExpr(p, p.Body); err != nil {
			return err
		}
	}
	return nil
}

func (g *Grammar) validateExpr(p *Production, e Expr) error {
	if e == nil {
		return &Error{Production: p.Name, Err: ErrNilExpr}
	}
	switch x := e.(type) {
	case *Ref:
		if g.Lookup(x.Name) == nil {
			return &Error{Production: p.Name, Expr: x, Err: ErrUnresolvedRef}
		}
	case *Set:
		if x.Set == nil || byteset.Dense(x.Set).IsEmpty() {
			return &Error{Production: p.Name, Expr: x, Err: ErrEmptySet}
		}
	case *Extension:
		if x.Match == nil {
			return &Error{Production: p.Name, Expr: x, Err: ErrNilExpr}
		}
	}
	for _, sub := range Children(e) {
		if err := g.validateExpr(p, sub); err != nil {
			return err
		}
	}
	return nil
}
