package peggyvm

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/btcsuite/btclog"
	"github.com/davecgh/go-spew/spew"

	"github.com/chronos-tachyon/go-packrat/peg"
)

var noMemo = ExecOptions{Memoize: false}

func identGrammar() *peg.Grammar {
	g := peg.NewGrammar("S")
	g.Define("S", peg.OrderedChoice(
		peg.NewNode(peg.LinkAs("id", peg.Call("A")), peg.Lit("x"), peg.TagAs("X")),
		peg.NewNode(peg.LinkAs("id", peg.Call("A")), peg.Lit("y"), peg.TagAs("Y"))))
	g.Memo("A", peg.NewNode(peg.OneOrMore(peg.Range('a', 'z')), peg.TagAs("Id")))
	return g
}

func tagGrammar() *peg.Grammar {
	g := peg.NewGrammar("Doc")
	g.Define("Doc",
		peg.Lit("<"), peg.Def("TAG", peg.Call("Name")), peg.Lit(">"),
		peg.Lit("</"), peg.Is("TAG", peg.Call("Name")), peg.Lit(">"))
	g.Define("Name", peg.OneOrMore(peg.Range('a', 'z')))
	return g
}

func TestMachine_grammars(t *testing.T) {
	type testrow struct {
		Build      func() *peg.Grammar
		Input      string
		Success    bool
		Pos        int
		Tree       string
		Unconsumed bool
	}

	data := []testrow{
		{
			Build: func() *peg.Grammar {
				g := peg.NewGrammar("Num")
				g.Define("Num", peg.OneOrMore(peg.Range('0', '9')))
				return g
			},
			Input:   "123",
			Success: true,
			Pos:     3,
			Tree:    "nil",
		},
		{
			Build: func() *peg.Grammar {
				g := peg.NewGrammar("Int")
				g.Define("Int", peg.NewNode(peg.OneOrMore(peg.Range('0', '9')), peg.TagAs("Int")))
				return g
			},
			Input:      "123x",
			Success:    true,
			Pos:        3,
			Tree:       `(#Int "123")`,
			Unconsumed: true,
		},
		{
			Build: func() *peg.Grammar {
				g := peg.NewGrammar("A")
				g.Define("A", peg.OrderedChoice(
					peg.Sequence(peg.Lookahead(peg.Lit("a")), peg.Lit("a")),
					peg.Sequence(peg.NotAhead(peg.Lit("a")), peg.AnyByte())))
				return g
			},
			Input:   "b",
			Success: true,
			Pos:     1,
			Tree:    "nil",
		},
		{
			Build:   identGrammar,
			Input:   "abcy",
			Success: true,
			Pos:     4,
			Tree:    `(#Y $id=(#Id "abc"))`,
		},
		{
			Build:   tagGrammar,
			Input:   "<a></a>",
			Success: true,
			Pos:     7,
			Tree:    "nil",
		},
		{
			Build:   tagGrammar,
			Input:   "<a></b>",
			Success: false,
			Pos:     5,
			Tree:    "nil",
		},
		{
			Build: func() *peg.Grammar {
				g := peg.NewGrammar("Sum")
				g.Define("Sum",
					peg.Call("Int"),
					peg.ZeroOrMore(peg.FoldNode("left",
						peg.Lit("+"),
						peg.LinkAs("right", peg.Call("Int")),
						peg.TagAs("Add"))))
				g.Define("Int", peg.NewNode(peg.OneOrMore(peg.Range('0', '9')), peg.TagAs("Int")))
				return g
			},
			Input:   "1+2+3",
			Success: true,
			Pos:     5,
			Tree:    `(#Add $left=(#Add $left=(#Int "1") $right=(#Int "2")) $right=(#Int "3"))`,
		},
		{
			Build: func() *peg.Grammar {
				g := peg.NewGrammar("B")
				g.Define("B", peg.OrderedChoice(
					peg.NewNode(peg.Lit("true"), peg.ReplaceWith("1"), peg.TagAs("Bool")),
					peg.NewNode(peg.Lit("false"), peg.ReplaceWith("0"), peg.TagAs("Bool"))))
				return g
			},
			Input:   "true",
			Success: true,
			Pos:     4,
			Tree:    `(#Bool "1")`,
		},
		{
			Build: func() *peg.Grammar {
				g := peg.NewGrammar("List")
				g.Define("List", peg.NewNode(
					peg.Lit("("),
					peg.LinkAt(1, "second", peg.Call("Atom")),
					peg.Lit(" "),
					peg.LinkAt(0, "first", peg.Call("Atom")),
					peg.Lit(")"),
					peg.TagAs("Pair")))
				g.Define("Atom", peg.NewNode(peg.OneOrMore(peg.Range('a', 'z')), peg.TagAs("Atom")))
				return g
			},
			Input:   "(ab cd)",
			Success: true,
			Pos:     7,
			Tree:    `(#Pair $first=(#Atom "cd") $second=(#Atom "ab"))`,
		},
	}

	for i, row := range data {
		p := mustCompile(t, row.Build(), DefaultOptions())
		for _, opts := range []ExecOptions{DefaultExecOptions(), noMemo} {
			r := run(t, p, row.Input, opts)
			if r.Success != row.Success || r.Pos != row.Pos {
				t.Errorf("%s/%03d: %q memo=%v: expected success=%v pos=%d, got %s",
					t.Name(), i, row.Input, opts.Memoize, row.Success, row.Pos, r)
				continue
			}
			if actual := r.Tree.String(); actual != row.Tree {
				t.Errorf("%s/%03d: %q memo=%v: wrong tree:\n%s", t.Name(), i, row.Input, opts.Memoize, diff(row.Tree, actual))
			}
			if r.HasUnconsumed() != row.Unconsumed {
				t.Errorf("%s/%03d: %q: expected HasUnconsumed=%v", t.Name(), i, row.Input, row.Unconsumed)
			}
		}
	}
}

func TestMachine_memoStats(t *testing.T) {
	p := mustCompile(t, identGrammar(), DefaultOptions())
	m := p.Exec([]byte("abcy"), ExecOptions{Memoize: true, Stats: true})
	if err := m.Run(); err != nil {
		t.Fatalf("%s: runtime error: %v", t.Name(), err)
	}
	if r := m.Result(); !r.Success {
		t.Fatalf("%s: expected success, got %s", t.Name(), r)
	}

	stats := m.MemoStats()
	if len(stats) != 1 {
		t.Fatalf("%s: expected 1 memo point, got %d", t.Name(), len(stats))
	}
	s := stats[0]
	if s.Name != "A" || s.Hits != 1 || s.Misses != 1 || s.FailHits != 0 {
		t.Errorf("%s: wrong counters:\n%s", t.Name(), spew.Sdump(s.Name, s.Hits, s.Misses, s.FailHits))
	}
	if n := s.Consumed.TotalCount(); n != 2 {
		t.Errorf("%s: expected 2 recorded lengths, got %d", t.Name(), n)
	}
	if hi := s.Consumed.Max(); hi != 3 {
		t.Errorf("%s: expected max length 3, got %d", t.Name(), hi)
	}
	if ratio := s.HitRatio(); ratio != 0.5 {
		t.Errorf("%s: expected hit ratio 0.5, got %v", t.Name(), ratio)
	}
	if m.MemoLen() != 1 {
		t.Errorf("%s: expected 1 memo entry, got %d", t.Name(), m.MemoLen())
	}

	m = p.Exec([]byte("abcy"), noMemo)
	if err := m.Run(); err != nil {
		t.Fatalf("%s: runtime error: %v", t.Name(), err)
	}
	if m.MemoStats() != nil || m.MemoLen() != 0 {
		t.Errorf("%s: expected no memo state without memoization", t.Name())
	}
}

func TestMachine_symbols(t *testing.T) {
	lower := func() peg.Expr { return peg.Range('a', 'z') }

	type testrow struct {
		Body    []peg.Expr
		Input   string
		Success bool
		Pos     int
	}

	data := []testrow{
		// A definition made by a failed alternative is rolled back.
		{
			Body: []peg.Expr{
				peg.OrderedChoice(peg.Sequence(peg.Def("T", lower()), peg.Lit("!")), lower()),
				peg.NotAhead(peg.ExistsIn("T")),
			},
			Input:   "a",
			Success: true,
			Pos:     1,
		},
		{
			Body: []peg.Expr{
				peg.OrderedChoice(peg.Sequence(peg.Def("T", lower()), peg.Lit("!")), lower()),
				peg.ExistsIn("T"),
			},
			Input:   "a!",
			Success: true,
			Pos:     2,
		},
		{
			Body: []peg.Expr{
				peg.OrderedChoice(peg.Sequence(peg.Def("T", lower()), peg.Lit("!")), lower()),
				peg.ExistsIn("T"),
			},
			Input:   "a",
			Success: false,
			Pos:     1,
		},

		// Blocks discard their definitions; MatchSym of an empty table
		// matches nothing.
		{
			Body:    []peg.Expr{peg.Block(peg.Def("T", lower())), peg.MatchSym("T")},
			Input:   "aa",
			Success: true,
			Pos:     1,
		},
		{
			Body:    []peg.Expr{peg.Def("T", lower()), peg.MatchSym("T")},
			Input:   "aa",
			Success: true,
			Pos:     2,
		},
		{
			Body:    []peg.Expr{peg.Def("T", lower()), peg.MatchSym("T")},
			Input:   "ab",
			Success: false,
			Pos:     1,
		},

		// LocalTo hides the outer table.
		{
			Body:    []peg.Expr{peg.Def("T", lower()), peg.LocalTo("T", peg.ExistsIn("T"))},
			Input:   "a",
			Success: false,
			Pos:     1,
		},
		{
			Body: []peg.Expr{
				peg.Def("T", lower()),
				peg.LocalTo("T", peg.Def("T", lower()), peg.MatchSym("T")),
				peg.MatchSym("T"),
			},
			Input:   "abba",
			Success: true,
			Pos:     4,
		},

		// Is compares against the latest definition, Isa against all.
		{
			Body:    []peg.Expr{peg.Def("T", lower()), peg.Def("T", lower()), peg.Lit(":"), peg.Isa("T", lower())},
			Input:   "ab:a",
			Success: true,
			Pos:     4,
		},
		{
			Body:    []peg.Expr{peg.Def("T", lower()), peg.Def("T", lower()), peg.Lit(":"), peg.Isa("T", lower())},
			Input:   "ab:c",
			Success: false,
			Pos:     3,
		},
		{
			Body:    []peg.Expr{peg.Def("T", lower()), peg.Def("T", lower()), peg.Lit(":"), peg.Is("T", lower())},
			Input:   "ab:a",
			Success: false,
			Pos:     3,
		},
		{
			Body:    []peg.Expr{peg.Def("T", lower()), peg.Def("T", lower()), peg.Lit(":"), peg.Is("T", lower())},
			Input:   "ab:b",
			Success: true,
			Pos:     4,
		},

		{
			Body:    []peg.Expr{peg.Def("T", peg.OneOrMore(lower())), peg.ExistsSymbol("T", "key")},
			Input:   "key",
			Success: true,
			Pos:     3,
		},
		{
			Body:    []peg.Expr{peg.Def("T", peg.OneOrMore(lower())), peg.ExistsSymbol("T", "key")},
			Input:   "kex",
			Success: false,
			Pos:     3,
		},
	}

	for i, row := range data {
		g := peg.NewGrammar("S")
		g.Define("S", row.Body...)
		p := mustCompile(t, g, DefaultOptions())
		r := run(t, p, row.Input, DefaultExecOptions())
		if r.Success != row.Success || r.Pos != row.Pos {
			t.Errorf("%s/%03d: %s on %q: expected success=%v pos=%d, got %s",
				t.Name(), i, g.Lookup("S").Body, row.Input, row.Success, row.Pos, r)
		}
	}
}

func TestMachine_statefulMemo(t *testing.T) {
	g := peg.NewGrammar("S")
	g.Define("S",
		peg.Lit("["), peg.Def("T", peg.Range('a', 'z')), peg.Lit("]"),
		peg.OrderedChoice(
			peg.Sequence(peg.LocalTo("T", peg.Call("M")), peg.Lit("x")),
			peg.Call("M")))
	g.Memo("M", peg.OrderedChoice(
		peg.Sequence(peg.ExistsIn("T"), peg.Range('a', 'z')),
		peg.Lit("!")))

	p := mustCompile(t, g, DefaultOptions())
	if len(p.MemoPoints) != 1 || !p.MemoPoints[0].Stateful {
		t.Fatalf("%s: expected one stateful memo point:\n%s", t.Name(), spew.Sdump(p.MemoPoints))
	}

	for _, opts := range []ExecOptions{DefaultExecOptions(), noMemo, {Memoize: true, MemoCapacity: 1}} {
		r := run(t, p, "[a]a", opts)
		if !r.Success || r.Pos != 4 {
			t.Errorf("%s: %+v: expected success at 4, got %s", t.Name(), opts, r)
		}
	}
}

// memoCalleeGrammar rejects inside a memoized callee that has already
// matched part of its input.
func memoCalleeGrammar() *peg.Grammar {
	g := peg.NewGrammar("S")
	g.Define("S", peg.Call("A"), peg.Lit("x"))
	g.Memo("A", peg.Lit("a"), peg.Range('b', 'c'))
	return g
}

// memoRetryGrammar calls the same memoized production from two
// alternatives, so the second call is answered by the memo table.
func memoRetryGrammar() *peg.Grammar {
	g := peg.NewGrammar("S")
	g.Define("S", peg.OrderedChoice(
		peg.Lit("q"),
		peg.Sequence(peg.Call("A"), peg.Lit("x")),
		peg.Sequence(peg.Call("A"), peg.Lit("y"))))
	g.Memo("A", peg.Lit("a"), peg.Range('b', 'c'))
	return g
}

func literalGrammar() *peg.Grammar {
	g := peg.NewGrammar("S")
	g.Define("S", peg.OrderedChoice(peg.Lit("x"), peg.Sequence(peg.Lit("a"), peg.Lit("b"), peg.Lit("c"))))
	return g
}

func notLiteralGrammar() *peg.Grammar {
	g := peg.NewGrammar("S")
	g.Define("S", peg.NotAhead(peg.Lit("a"), peg.Lit("b")), peg.AnyByte(), peg.AnyByte())
	return g
}

func keywordGrammar() *peg.Grammar {
	g := peg.NewGrammar("S")
	g.Define("S", peg.OrderedChoice(
		peg.Sequence(peg.Lit("i"), peg.Lit("f")),
		peg.Lit("x"),
		peg.OneOrMore(peg.Range('0', '9'))))
	return g
}

func trailingFailGrammar() *peg.Grammar {
	g := peg.NewGrammar("S")
	g.Define("S", peg.OrderedChoice(peg.Sequence(peg.Lit("a"), peg.Lit("b")), &peg.Fail{}), peg.Lit("c"))
	return g
}

func guardGrammar() *peg.Grammar {
	g := peg.NewGrammar("S")
	g.Define("S", peg.OrderedChoice(
		peg.Sequence(peg.NotAhead(peg.Lit("a"), peg.Lit("b")), peg.Lit("c")),
		peg.Lit("x")))
	return g
}

func repeatGrammar() *peg.Grammar {
	g := peg.NewGrammar("S")
	g.Define("S", peg.ZeroOrMore(peg.Lit("a"), peg.Lit("b")), peg.Lit("c"))
	return g
}

// compileModes lists every way of compiling a grammar that must not change
// what a program does.
func compileModes() []Options {
	unpredicted := DefaultOptions()
	unpredicted.OptimizeOptions.Predict = false
	unmemoized := DefaultOptions()
	unmemoized.Memoize = false
	return []Options{
		DefaultOptions(),
		unpredicted,
		unmemoized,
		{Memoize: true, Tree: true},
		{Tree: true},
	}
}

func TestMachine_rejectPos(t *testing.T) {
	type testrow struct {
		Build   func() *peg.Grammar
		Input   string
		Pos     int
		Longest int
	}

	data := []testrow{
		{memoCalleeGrammar, "ad", 1, 1},
		{memoCalleeGrammar, "abz", 2, 2},
		{memoRetryGrammar, "ad", 1, 1},
		{memoRetryGrammar, "abz", 2, 2},
		{literalGrammar, "abd", 2, 2},
		{notLiteralGrammar, "ab", 0, 2},
		{notLiteralGrammar, "a", 1, 1},
		{keywordGrammar, "ix", 0, 1},
		{keywordGrammar, "i", 0, 1},
		{trailingFailGrammar, "ax", 0, 1},
		{trailingFailGrammar, "abx", 2, 2},
		{guardGrammar, "ab", 0, 2},
		{guardGrammar, "aq", 0, 1},
		{repeatGrammar, "abax", 2, 3},
		{tagGrammar, "<a></b>", 5, 6},
	}

	for i, row := range data {
		for j, opts := range compileModes() {
			p := mustCompile(t, row.Build(), opts)
			for _, eopts := range []ExecOptions{DefaultExecOptions(), noMemo} {
				r := run(t, p, row.Input, eopts)
				if r.Success || r.Pos != row.Pos || r.Longest != row.Longest {
					t.Errorf("%s/%03d: mode %d memo=%v on %q: expected reject at %d longest=%d, got %s",
						t.Name(), i, j, eopts.Memoize, row.Input, row.Pos, row.Longest, r)
				}
			}
		}
	}
}

func TestMachine_memoFailHit(t *testing.T) {
	p := mustCompile(t, memoRetryGrammar(), DefaultOptions())
	m := p.Exec([]byte("ad"), ExecOptions{Memoize: true, Stats: true})
	if err := m.Run(); err != nil {
		t.Fatalf("%s: runtime error: %v", t.Name(), err)
	}
	if r := m.Result(); r.Success || r.Pos != 1 {
		t.Errorf("%s: expected reject at 1, got %s", t.Name(), r)
	}
	if s := m.MemoStats()[0]; s.FailHits != 1 || s.Misses != 1 {
		t.Errorf("%s: expected one miss and one failure hit:\n%s", t.Name(), spew.Sdump(s.Misses, s.FailHits))
	}
	entry, found := m.memo.Lookup(MemoKey{Point: 0, Pos: 0})
	if !found || !entry.Failed || entry.FailedAt != 1 {
		t.Errorf("%s: wrong memo entry:\n%s", t.Name(), spew.Sdump(entry))
	}
}

func TestMachine_equivalence(t *testing.T) {
	type testrow struct {
		Build  func() *peg.Grammar
		Inputs []string
	}

	data := []testrow{
		{
			Build: func() *peg.Grammar {
				g := peg.NewGrammar("S")
				g.Define("S", peg.OrderedChoice(
					peg.NewNode(peg.Lit("if"), peg.TagAs("If")),
					peg.NewNode(peg.Lit("x"), peg.TagAs("X")),
					peg.LinkAs("n", peg.Call("N"))))
				g.Define("N", peg.NewNode(peg.OneOrMore(peg.Range('0', '9')), peg.TagAs("N")))
				return g
			},
			Inputs: []string{"if", "x", "123", "y", "", "i", "ix"},
		},
		{
			Build:  identGrammar,
			Inputs: []string{"abcx", "abcy", "abcz", "y", ""},
		},
		{
			Build:  tagGrammar,
			Inputs: []string{"<a></a>", "<ab></ab>", "<a></b>", "<a>"},
		},
		{
			Build:  memoCalleeGrammar,
			Inputs: []string{"abx", "ad", "ab", "acy", "", "a"},
		},
		{
			Build:  memoRetryGrammar,
			Inputs: []string{"abx", "aby", "abz", "ad", "q", ""},
		},
		{
			Build:  literalGrammar,
			Inputs: []string{"abc", "abd", "ab", "x", "b"},
		},
		{
			Build:  notLiteralGrammar,
			Inputs: []string{"ab", "ax", "a", "ba"},
		},
		{
			Build:  trailingFailGrammar,
			Inputs: []string{"abc", "abx", "ax", "z"},
		},
		{
			Build:  guardGrammar,
			Inputs: []string{"c", "x", "ab", "aq", "ac"},
		},
		{
			Build:  repeatGrammar,
			Inputs: []string{"c", "ababc", "abax", "aba"},
		},
	}

	lru := ExecOptions{Memoize: true, MemoCapacity: 1}

	for i, row := range data {
		ref := mustCompile(t, row.Build(), DefaultOptions())
		var variants []*Program
		for _, opts := range compileModes()[1:] {
			variants = append(variants, mustCompile(t, row.Build(), opts))
		}
		for _, input := range row.Inputs {
			expected := run(t, ref, input, noMemo)
			for j, p := range variants {
				if actual := run(t, p, input, DefaultExecOptions()); !sameOutcome(expected, actual) {
					t.Errorf("%s/%03d: variant %d on %q: expected %s, got %s", t.Name(), i, j, input, expected, actual)
				}
			}
			if actual := run(t, ref, input, lru); !sameOutcome(expected, actual) {
				t.Errorf("%s/%03d: LRU memo on %q: expected %s, got %s", t.Name(), i, input, expected, actual)
			}
		}
	}
}

func TestMachine_foldShift(t *testing.T) {
	build := func(shift int) *peg.Grammar {
		g := peg.NewGrammar("Sum")
		g.Define("Sum",
			peg.Call("Int"),
			peg.ZeroOrMore(
				&peg.LeftFold{Shift: shift, Label: "left"},
				peg.Lit("+"),
				peg.LinkAs("right", peg.Call("Int")),
				peg.TagAs("Add"),
				&peg.Capture{}))
		g.Define("Int", peg.NewNode(peg.OneOrMore(peg.Range('0', '9')), peg.TagAs("Int")))
		return g
	}

	type testrow struct {
		Shift int
		Start int
		Value string
	}

	data := []testrow{
		{0, 1, "+2"},
		{-1, 0, "1+2"},
		{1, 2, "2"},
	}

	for i, row := range data {
		for _, opts := range []Options{DefaultOptions(), {Tree: true}} {
			r := run(t, mustCompile(t, build(row.Shift), opts), "1+2", DefaultExecOptions())
			n := r.Tree
			if !r.Success || n == nil || n.Start != row.Start || n.End != 3 || n.Value != row.Value {
				t.Errorf("%s/%03d: shift %d: wrong root:\n%s", t.Name(), i, row.Shift, spew.Sdump(r))
				continue
			}
			if c := n.Get("left"); c == nil || c.Start != 0 || c.End != 1 {
				t.Errorf("%s/%03d: shift %d: wrong folded child:\n%s", t.Name(), i, row.Shift, spew.Sdump(n))
			}
		}
	}
}

func TestMachine_Reset(t *testing.T) {
	p := mustCompile(t, identGrammar(), DefaultOptions())
	m := p.Exec([]byte("abcy"), DefaultExecOptions())
	if err := m.Run(); err != nil {
		t.Fatalf("%s: runtime error: %v", t.Name(), err)
	}
	first := m.Result()

	m.Reset([]byte("zzx"))
	if err := m.Run(); err != nil {
		t.Fatalf("%s: runtime error: %v", t.Name(), err)
	}
	if r := m.Result(); !r.Success || r.Tree.String() != `(#X $id=(#Id "zz"))` {
		t.Errorf("%s: wrong result after reset: %s", t.Name(), r)
	}

	m.Reset([]byte("abcy"))
	if m.State != RunningState || m.Depth() != 0 || m.MemoLen() != 0 || m.Symbols().Len() != 0 {
		t.Errorf("%s: reset left state behind: state=%s depth=%d memo=%d", t.Name(), m.State, m.Depth(), m.MemoLen())
	}
	if err := m.Run(); err != nil {
		t.Fatalf("%s: runtime error: %v", t.Name(), err)
	}
	if again := m.Result(); !sameOutcome(first, again) || first.Longest != again.Longest {
		t.Errorf("%s: expected %s, got %s", t.Name(), first, again)
	}
}

func TestMachine_noTree(t *testing.T) {
	opts := DefaultOptions()
	opts.Tree = false
	p := mustCompile(t, identGrammar(), opts)
	r := run(t, p, "abcy", DefaultExecOptions())
	if !r.Success || r.Pos != 4 || r.Tree != nil {
		t.Errorf("%s: expected treeless success at 4, got %s", t.Name(), r)
	}
	for i := range p.Code {
		switch p.Code[i].Code {
		case OpNEW, OpLFOLD, OpCAPTURE, OpTAG, OpREPLACE, OpLINKPUSH, OpLINKPOP:
			t.Errorf("%s: unexpected %s at %d", t.Name(), p.Code[i].String(), i)
		}
	}
}

func TestMachine_extension(t *testing.T) {
	digits := func(input []byte, pos int) (int, bool) {
		n := 0
		for pos+n < len(input) && input[pos+n] >= '0' && input[pos+n] <= '9' {
			n++
		}
		return n, n > 0
	}
	greedy := func(input []byte, pos int) (int, bool) {
		return len(input) - pos + 1, true
	}

	g := peg.NewGrammar("S")
	g.Define("S", peg.OrderedChoice(
		peg.Sequence(peg.Lit("#"), peg.Ext("greedy", greedy)),
		peg.Sequence(peg.Ext("digits", digits), peg.Lit(";"))))
	p := mustCompile(t, g, DefaultOptions())

	type testrow struct {
		Input   string
		Success bool
		Pos     int
	}
	data := []testrow{
		{"123;", true, 4},
		{"123", false, 3},
		{";", false, 0},
		{"#1", false, 0},
	}
	for i, row := range data {
		r := run(t, p, row.Input, DefaultExecOptions())
		if r.Success != row.Success || r.Pos != row.Pos {
			t.Errorf("%s/%03d: %q: expected success=%v pos=%d, got %s", t.Name(), i, row.Input, row.Success, row.Pos, r)
		}
	}

	unbound := *p
	unbound.Extensions = []Extension{{Name: "greedy"}, {Name: "digits"}}
	m := unbound.Exec([]byte("1;"), DefaultExecOptions())
	if err := m.Run(); !errors.Is(err, ErrUnboundExtension) {
		t.Errorf("%s: expected ErrUnboundExtension, got %v", t.Name(), err)
	}
}

func TestMachine_RunContext(t *testing.T) {
	p := mustCompile(t, tagGrammar(), DefaultOptions())

	m := p.Exec([]byte("<a></a>"), ExecOptions{Memoize: true, CheckInterval: 1})
	if err := m.RunContext(context.Background()); err != nil {
		t.Fatalf("%s: unexpected error: %v", t.Name(), err)
	}
	if r := m.Result(); !r.Success || r.Pos != 7 {
		t.Errorf("%s: expected success at 7, got %s", t.Name(), r)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m.Reset([]byte("<a></a>"))
	if err := m.RunContext(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("%s: expected context.Canceled, got %v", t.Name(), err)
	}
	if m.State != RunningState {
		t.Errorf("%s: expected a cancelled machine to stay running, got %s", t.Name(), m.State)
	}
}

func TestResult_Err(t *testing.T) {
	g := peg.NewGrammar("Lines")
	g.Define("Lines",
		peg.ZeroOrMore(peg.OneOrMore(peg.Range('a', 'z')), peg.Lit("\n")),
		peg.NotAhead(peg.AnyByte()))
	p := mustCompile(t, g, DefaultOptions())

	if err := run(t, p, "ab\ncd\n", DefaultExecOptions()).Err(); err != nil {
		t.Errorf("%s: unexpected error: %v", t.Name(), err)
	}

	r := run(t, p, "ab\ncd\nx1", DefaultExecOptions())
	var se *SyntaxError
	if !errors.As(r.Err(), &se) {
		t.Fatalf("%s: expected *SyntaxError, got %v", t.Name(), r.Err())
	}
	expected := SyntaxError{Pos: 6, Longest: 7, Line: 3, Col: 2}
	if *se != expected {
		t.Errorf("%s: wrong error:\n%s", t.Name(), diff(spew.Sdump(expected), spew.Sdump(*se)))
	}
}

func TestMachine_trace(t *testing.T) {
	var buf bytes.Buffer
	logger := btclog.NewBackend(&buf).Logger("PVM")
	logger.SetLevel(btclog.LevelTrace)
	UseLogger(logger)
	defer DisableLog()

	p := mustCompile(t, literalGrammar(), DefaultOptions())
	m := p.Exec([]byte("x"), DefaultExecOptions())
	if !m.trace {
		t.Fatalf("%s: trace flag not set at trace level", t.Name())
	}
	if err := m.Run(); err != nil {
		t.Fatalf("%s: runtime error: %v", t.Name(), err)
	}
	if !bytes.Contains(buf.Bytes(), []byte("FIRST")) {
		t.Errorf("%s: expected a trace of FIRST, got:\n%s", t.Name(), buf.String())
	}

	// The level is sampled once per parse.
	logger.SetLevel(btclog.LevelInfo)
	if !m.trace {
		t.Errorf("%s: trace flag changed without Reset", t.Name())
	}
	m.Reset([]byte("x"))
	if m.trace {
		t.Errorf("%s: trace flag survived Reset at info level", t.Name())
	}
	buf.Reset()
	if err := m.Run(); err != nil {
		t.Fatalf("%s: runtime error: %v", t.Name(), err)
	}
	if buf.Len() != 0 {
		t.Errorf("%s: unexpected output at info level:\n%s", t.Name(), buf.String())
	}
}
