package peggyvm

import (
	"bytes"
	"regexp"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/lithammer/dedent"
	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/chronos-tachyon/go-packrat/ast"
	"github.com/chronos-tachyon/go-packrat/peg"
)

var reNL = regexp.MustCompile(`(?m)^`)

func diff(l, r string) string {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(l, r, false)
	pretty := dmp.DiffPrettyText(diffs)
	return reNL.ReplaceAllLiteralString(pretty, "\t")
}

func mustCompile(t *testing.T, g *peg.Grammar, opts Options) *Program {
	t.Helper()
	p, err := Compile(g, opts)
	if err != nil {
		t.Fatalf("%s: compile error: %v", t.Name(), err)
	}
	return p
}

func run(t *testing.T, p *Program, input string, opts ExecOptions) Result {
	t.Helper()
	m := p.Exec([]byte(input), opts)
	if err := m.Run(); err != nil {
		t.Fatalf("%s: runtime error on %q: %v", t.Name(), input, err)
	}
	return m.Result()
}

// sameOutcome compares the parts of a Result that every compilation and
// execution mode must agree on.
func sameOutcome(a, b Result) bool {
	return a.Success == b.Success && a.Pos == b.Pos && a.Longest == b.Longest && ast.Equal(a.Tree, b.Tree)
}

func listing(t *testing.T, p *Program) string {
	t.Helper()
	var buf bytes.Buffer
	if _, err := p.Disassemble(&buf); err != nil {
		t.Fatalf("%s: disassemble error: %v", t.Name(), err)
	}
	return buf.String()
}

func TestImmMeta_Encode(t *testing.T) {
	m0 := ImmMeta{Type: ImmUint, Required: true}
	m1 := ImmMeta{Type: ImmUint, Required: false, PackedDefault: 0x01}
	m2 := ImmMeta{Type: ImmUint, Required: false, PackedDefault: 0xff}
	m3 := ImmMeta{Type: ImmSint, Required: true}
	m4 := ImmMeta{Type: ImmSint, Required: false, PackedDefault: 0x01}
	m5 := ImmMeta{Type: ImmSint, Required: false, PackedDefault: 0xff}

	type testrow struct {
		Meta     ImmMeta
		Value    uint64
		Expected []byte
	}

	data := []testrow{
		{m0, 0x0000000000000000, []byte{0x00}},
		{m0, 0x000000000000007f, []byte{0x7f}},
		{m0, 0x0000000000000080, []byte{0x80}},
		{m0, 0x0000000000000100, []byte{0x00, 0x01}},
		{m0, 0x000000000000ffff, []byte{0xff, 0xff}},
		{m0, 0x0000000000010000, []byte{0x00, 0x00, 0x01, 0x00}},
		{m0, 0x0000000100000000, []byte{0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00}},

		{m1, 0x0000000000000000, []byte{0x00}},
		{m1, 0x0000000000000001, nil},
		{m1, 0x0000000000000101, []byte{0x01, 0x01}},

		{m2, 0x00000000000000fe, []byte{0xfe}},
		{m2, 0x00000000000000ff, nil},

		{m3, 0x0000000000000000, []byte{0x00}},
		{m3, 0x000000000000007f, []byte{0x7f}},
		{m3, 0x0000000000000080, []byte{0x80, 0x00}},
		{m3, 0x00000000000000ff, []byte{0xff, 0x00}},
		{m3, 0xfffffffffffffffe, []byte{0xfe}},
		{m3, 0xffffffffffff7fff, []byte{0xff, 0x7f, 0xff, 0xff}},

		{m4, 0x0000000000000001, nil},
		{m4, 0xffffffffffffffff, []byte{0xff}},

		{m5, 0x0000000000000001, []byte{0x01}},
		{m5, 0xffffffffffffffff, nil},
	}

	for i, row := range data {
		expected := hexDump(row.Expected)
		actual := hexDump(row.Meta.Encode(row.Value))
		if expected != actual {
			t.Errorf("%s/%03d: wrong output:\n%s", t.Name(), i, diff(expected, actual))
			continue
		}
		decoded, err := row.Meta.Decode(row.Meta.Encode(row.Value))
		if err != nil || decoded != row.Value {
			t.Errorf("%s/%03d: decode: expected %#x, got %#x (err %v)", t.Name(), i, row.Value, decoded, err)
		}
	}
}

func TestInst_Encode(t *testing.T) {
	type testrow struct {
		Inst     Inst
		Expected []byte
	}

	data := []testrow{
		{Inst{Code: OpNOP}, []byte{0x00}},
		{Inst{Code: OpBYTE, Arg: 'a'}, []byte{0x54, 0x61}},
		{Inst{Code: OpALT, Jump: 5}, []byte{0x14, 0x05}},
		{Inst{Code: OpCOMMIT, Jump: 0x1234}, []byte{0x28, 0x34, 0x12}},
		{Inst{Code: OpNEW}, []byte{0xbc, 0x00}},
		{Inst{Code: OpNEW, Arg: -1}, []byte{0xbc, 0x40, 0xff}},
		{Inst{Code: OpLINKPOP, Arg: 2, Arg2: -1}, []byte{0xc8, 0x40, 0x02}},
		{Inst{Code: OpLINKPOP, Arg: 2, Arg2: 0}, []byte{0xc8, 0x48, 0x02, 0x00}},
		{Inst{Code: OpLOOKUP, Arg: 0, Arg2: 1, Jump: 300}, []byte{0xb6, 0x4a, 0x00, 0x01, 0x2c, 0x01}},
	}

	for i, row := range data {
		raw := row.Inst.Encode()
		if expected, actual := hexDump(row.Expected), hexDump(raw); expected != actual {
			t.Errorf("%s/%03d: %s: wrong output:\n%s", t.Name(), i, row.Inst.String(), diff(expected, actual))
			continue
		}
		in, n, err := decodeInst(raw, 0)
		if err != nil {
			t.Errorf("%s/%03d: decode error: %v", t.Name(), i, err)
			continue
		}
		if n != len(raw) || in != row.Inst {
			t.Errorf("%s/%03d: decoded %s (%d bytes), expected %s (%d bytes)", t.Name(), i, in.String(), n, row.Inst.String(), len(raw))
		}
	}
}

func TestAssembler_link(t *testing.T) {
	a := NewAssembler()
	start := a.GrabLabel("S")
	a.EmitOp(OpCALL, start, nil, nil)
	a.EmitOp(OpEXIT, 1, nil, nil)
	a.EmitOp(OpEXIT, 0, nil, nil)

	l1 := a.NewLabel()
	l2 := a.NewLabel()
	l3 := a.NewLabel()
	a.EmitProduction("S")
	a.EmitOp(OpALT, l1, nil, nil)
	a.EmitOp(OpBYTE, uint8('a'), nil, nil)
	a.EmitOp(OpJMP, l3, nil, nil)
	a.EmitLabel(l3)
	a.EmitOp(OpCOMMIT, l2, nil, nil)
	a.EmitLabel(l1)
	a.EmitOp(OpJMP, l2, nil, nil)
	a.EmitLabel(l2)
	a.EmitOp(OpRET, nil, nil, nil)

	p, err := a.Finish()
	if err != nil {
		t.Fatalf("%s: error: %v", t.Name(), err)
	}

	type testrow struct {
		Index int
		Jump  int
		Next  int
	}
	data := []testrow{
		{0, 3, 1},
		{3, 8, 4},
		{4, 0, 6},
		{6, 8, 8},
		{7, 8, 8},
	}
	for i, row := range data {
		in := p.Code[row.Index]
		if in.Jump != row.Jump || in.Next != row.Next {
			t.Errorf("%s/%03d: %05d %s: expected jump=%d next=%d, got jump=%d next=%d",
				t.Name(), i, row.Index, in.String(), row.Jump, row.Next, in.Jump, in.Next)
		}
	}

	if p.Start() != "S" {
		t.Errorf("%s: expected start S, got %q", t.Name(), p.Start())
	}
	if l := p.FindLabel(3); l.String() != "S@3" || !l.Public {
		t.Errorf("%s: expected public label S@3, got %s", t.Name(), l)
	}
	if l := p.FindLabel(5); l.Public || l.Name != ".ANON@5" {
		t.Errorf("%s: expected synthetic label at 5, got %s", t.Name(), l)
	}
	if r := p.Match([]byte("a")); !r.Success || r.Pos != 1 {
		t.Errorf("%s: wrong result: %s", t.Name(), r)
	}
}

func TestProgram_Disassemble(t *testing.T) {
	type testrow struct {
		Build    func() *peg.Grammar
		Options  Options
		Expected string
	}

	recognizer := Options{Optimize: true, OptimizeOptions: peg.DefaultOptimizeOptions()}

	data := []testrow{
		{
			Build: func() *peg.Grammar {
				g := peg.NewGrammar("Num")
				g.Define("Num", peg.OneOrMore(peg.Range('0', '9')))
				return g
			},
			Options: recognizer,
			Expected: `
			%set 0 [0-9]

				CALL Num
				EXIT 1
				EXIT 0
			Num:
				SET [0-9]
				RSET [0-9]
				RET
			`,
		},
		{
			Build: func() *peg.Grammar {
				g := peg.NewGrammar("S")
				g.Define("S", peg.OrderedChoice(peg.Lit("if"), peg.Lit("x"), peg.Call("N")))
				g.Define("N", peg.OneOrMore(peg.Range('0', '9')))
				return g
			},
			Options: recognizer,
			Expected: `
			%literal 0 "if"
			%set 0 [0-9]
			%table 0 [0-9]:.L4 [i]:.L0 [x]:.L2

				CALL S
				EXIT 1
				EXIT 0
			S:
				FIRST 0
			.L0:
				ALT .L1
				STR "if"
				COMMIT .L5
			.L1:
				FAIL
			.L2:
				ALT .L3
				BYTE 'x'
				COMMIT .L5
			.L3:
				FAIL
			.L4:
				CALL N
			.L5:
				RET
			N:
				SET [0-9]
				RSET [0-9]
				RET
			`,
		},
		{
			Build: func() *peg.Grammar {
				g := peg.NewGrammar("A")
				g.Define("A", peg.OrderedChoice(
					peg.Sequence(peg.Lookahead(peg.Lit("a")), peg.Lit("a")),
					peg.Sequence(peg.NotAhead(peg.Lit("a")), peg.AnyByte())))
				return g
			},
			Options: recognizer,
			Expected: `

				CALL A
				EXIT 1
				EXIT 0
			A:
				ALT .L2
				ALT .L0
				BYTE 'a'
				BCOMMIT .L1
			.L0:
				FAIL
			.L1:
				BYTE 'a'
				COMMIT .L3
			.L2:
				NBYTE 'a'
				ANY
			.L3:
				RET
			`,
		},
		{
			Build: func() *peg.Grammar {
				g := peg.NewGrammar("S")
				g.Define("S", peg.NewNode(peg.LinkAs("id", peg.Call("Id")), peg.TagAs("S")))
				g.Memo("Id", peg.NewNode(peg.OneOrMore(peg.Range('a', 'z'))))
				return g
			},
			Options: DefaultOptions(),
			Expected: `
			%set 0 [a-z]
			%memo 0 Id

				CALL S
				EXIT 1
				EXIT 0
			S:
				NEW
				LINKPUSH
				LOOKUP 0, .L1
				ALT .L0
				CALL Id
				MEMO 0
				JMP .L1
			.L0:
				MEMOFAIL 0
			.L1:
				LINKPOP id
				TAG S
				CAPTURE
				RET
			Id:
				NEW
				SET [a-z]
				RSET [a-z]
				CAPTURE
				RET
			`,
		},
	}

	for i, row := range data {
		p := mustCompile(t, row.Build(), row.Options)
		actual := listing(t, p)
		expected := dedent.Dedent(row.Expected)[1:]
		if actual != expected {
			t.Errorf("%s/%03d: wrong output:\n%s", t.Name(), i, diff(expected, actual))
		}
	}
}

func TestCompile_errors(t *testing.T) {
	type testrow struct {
		Build      func(g *peg.Grammar)
		Production string
		Expected   error
	}

	data := []testrow{
		{func(g *peg.Grammar) { g.Define("S", peg.Call("Missing")) }, "S", ErrUnresolvedRef},
		{func(g *peg.Grammar) { g.Define("T", peg.Lit("t")) }, "S", ErrNoStart},
		{func(g *peg.Grammar) {
			g.Define("S", peg.Lit("a"))
			g.Define("S", peg.Lit("b"))
		}, "S", ErrDuplicateProduction},
		{func(g *peg.Grammar) { g.Define("S", peg.OneOf("")) }, "S", ErrEmptySet},
		{func(g *peg.Grammar) { g.Define("S", peg.Lit("a"), nil) }, "S", ErrNilExpr},
		{func(g *peg.Grammar) {
			g.Define("S", peg.Call(".$0"), peg.Lit("b"))
			g.Define(".$0", peg.Lit("a"))
		}, ".$0", ErrBadName},
	}

	for i, row := range data {
		g := peg.NewGrammar("S")
		row.Build(g)
		p, err := Compile(g, DefaultOptions())
		if p != nil {
			t.Errorf("%s/%03d: expected no program", t.Name(), i)
		}
		ce, ok := err.(*CompileError)
		if !ok {
			t.Errorf("%s/%03d: expected *CompileError, got %T: %v", t.Name(), i, err, err)
			continue
		}
		if ce.Err != row.Expected {
			t.Errorf("%s/%03d: expected %v, got %v", t.Name(), i, row.Expected, ce.Err)
		}
		if ce.Production != row.Production {
			t.Errorf("%s/%03d: expected production %q, got %q", t.Name(), i, row.Production, ce.Production)
		}
	}
}

func TestRuntimeError(t *testing.T) {
	a := NewAssembler()
	body := a.GrabLabel("S")
	a.EmitOp(OpCALL, body, nil, nil)
	a.EmitOp(OpEXIT, 1, nil, nil)
	a.EmitOp(OpEXIT, 0, nil, nil)
	a.EmitProduction("S")
	a.EmitOp(OpCOMMIT, body, nil, nil)

	p, err := a.Finish()
	if err != nil {
		t.Fatalf("%s: error: %v", t.Name(), err)
	}
	m := p.Exec(nil, DefaultExecOptions())
	err = m.Run()
	re, ok := err.(*RuntimeError)
	if !ok {
		t.Fatalf("%s: expected *RuntimeError, got %T: %v", t.Name(), err, err)
	}
	if re.Err != ErrWrongFrame || re.Inst == nil || re.Inst.Code != OpCOMMIT {
		t.Errorf("%s: wrong error:\n%s", t.Name(), spew.Sdump(re))
	}
	if m.State != ErrorState {
		t.Errorf("%s: expected error state, got %s", t.Name(), m.State)
	}
	if err := m.Step(); err != ErrExecutionHalted {
		t.Errorf("%s: expected ErrExecutionHalted, got %v", t.Name(), err)
	}
}
