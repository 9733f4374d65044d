package peggyvm

import (
	"errors"
	"fmt"

	"github.com/chronos-tachyon/go-packrat/byteset"
	"github.com/chronos-tachyon/go-packrat/peg"
)

// Compile validates and optimizes g, then lowers it to a Program. The
// returned error is a *CompileError wrapping one of the grammar sentinels;
// no Program is produced in that case.
func Compile(g *peg.Grammar, opts Options) (*Program, error) {
	var oopts peg.OptimizeOptions
	if opts.Optimize {
		oopts = opts.OptimizeOptions
	}
	og, err := peg.Optimize(g, oopts)
	if err != nil {
		return nil, toCompileError(err)
	}

	c := &compiler{g: og, opts: opts, a: NewAssembler()}
	c.entry()
	for _, p := range og.Productions {
		c.production(p)
	}

	prog, err := c.a.Finish()
	if err != nil {
		return nil, &CompileError{Err: err}
	}
	log.Debugf("compiled %d productions to %d instructions (%d literals, %d sets, %d tables, %d memo points)",
		len(prog.Productions), len(prog.Code), len(prog.Literals), len(prog.Sets), len(prog.Tables), len(prog.MemoPoints))
	return prog, nil
}

// MustCompile is Compile, but panics on error.
func MustCompile(g *peg.Grammar, opts Options) *Program {
	prog, err := Compile(g, opts)
	if err != nil {
		panic(err)
	}
	return prog
}

func toCompileError(err error) error {
	var pe *peg.Error
	if errors.As(err, &pe) {
		return &CompileError{Production: pe.Production, Err: pe.Err}
	}
	return &CompileError{Err: err}
}

type compiler struct {
	g    *peg.Grammar
	opts Options
	a    *Assembler

	// depth is the static number of frames the code emitted so far in the
	// current production leaves on the stack.
	depth    int
	maxDepth int
}

func (c *compiler) entry() {
	c.a.EmitOp(OpCALL, c.a.GrabLabel(c.g.Start), nil, nil)
	c.a.EmitOp(OpEXIT, 1, nil, nil)
	c.a.EmitOp(OpEXIT, 0, nil, nil)
	assert(c.a.Len() == rejectIndex+1, "entry sequence has %d instructions", c.a.Len())

	if !c.opts.Memoize {
		return
	}
	for _, p := range c.g.Productions {
		if p.MemoID >= 0 {
			c.a.DeclareMemoPoint(p.MemoID, p.Name, p.Stateful)
		}
	}
}

func (c *compiler) production(p *peg.Production) {
	start := c.a.Len()
	c.depth, c.maxDepth = 0, 0
	c.a.EmitProduction(p.Name)
	c.expr(p.Body)
	c.a.EmitOp(OpRET, nil, nil, nil)
	assert(c.depth == 0, "%s: unbalanced stack depth %d", p.Name, c.depth)
	log.Debugf("%s: %d instructions, max stack depth %d", p.Name, c.a.Len()-start, c.maxDepth)
}

// emit appends one instruction and tracks the frames it pushes or pops
// along the fall-through path.
func (c *compiler) emit(code OpCode, imm0, imm1, imm2 interface{}) {
	c.a.EmitOp(code, imm0, imm1, imm2)
	switch code {
	case OpALT, OpPOS, OpLINKPUSH, OpSOPEN, OpSMASK:
		c.depth++
		if c.depth > c.maxDepth {
			c.maxDepth = c.depth
		}
	case OpCOMMIT, OpBCOMMIT, OpFAIL2X, OpMEMO, OpLINKPOP, OpSCLOSE, OpSDEF, OpSIS, OpSISA:
		c.depth--
	}
}

func (c *compiler) label(l *AsmLabel) {
	c.a.EmitLabel(l)
}

// primitive emits the single-instruction form of a one-byte or literal
// matcher, if e is one. ops holds the byte, literal and set variants.
func (c *compiler) primitive(e peg.Expr, byteOp, strOp, setOp OpCode) bool {
	switch x := e.(type) {
	case *peg.Byte:
		c.emit(byteOp, x.B, nil, nil)
	case *peg.Str:
		c.emit(strOp, c.a.DeclareLiteral(x.Bytes), nil, nil)
	case *peg.Set:
		c.emit(setOp, c.a.DeclareSet(byteset.Dense(x.Set)), nil, nil)
	case *peg.Any:
		c.emit(setOp, c.a.DeclareSet(byteset.Dense(byteset.All())), nil, nil)
	default:
		return false
	}
	return true
}

func (c *compiler) expr(e peg.Expr) {
	switch x := e.(type) {
	case *peg.Empty:
		// pass

	case *peg.Fail:
		c.emit(OpFAIL, nil, nil, nil)

	case *peg.Any:
		c.emit(OpANY, nil, nil, nil)

	case *peg.Byte, *peg.Str, *peg.Set:
		c.primitive(e, OpBYTE, OpSTR, OpSET)

	case *peg.Seq:
		for _, item := range x.Items {
			c.expr(item)
		}

	case *peg.Choice:
		if x.Predict != nil {
			c.predicted(x)
		} else {
			c.choice(x.Alts)
		}

	case *peg.Star:
		c.star(x.Body)

	case *peg.Plus:
		c.expr(x.Body)
		c.star(x.Body)

	case *peg.Option:
		if !c.primitive(x.Body, OpOBYTE, OpOSTR, OpOSET) {
			end := c.a.NewLabel()
			c.emit(OpALT, end, nil, nil)
			c.expr(x.Body)
			c.emit(OpCOMMIT, end, nil, nil)
			c.label(end)
		}

	case *peg.And:
		fail := c.a.NewLabel()
		ok := c.a.NewLabel()
		c.emit(OpALT, fail, nil, nil)
		c.expr(x.Body)
		c.emit(OpBCOMMIT, ok, nil, nil)
		c.label(fail)
		c.emit(OpFAIL, nil, nil, nil)
		c.label(ok)

	case *peg.Not:
		if _, isAny := x.Body.(*peg.Any); isAny {
			c.emit(OpNANY, nil, nil, nil)
		} else if !c.primitive(x.Body, OpNBYTE, OpNSTR, OpNSET) {
			ok := c.a.NewLabel()
			c.emit(OpALT, ok, nil, nil)
			c.expr(x.Body)
			c.emit(OpFAIL2X, nil, nil, nil)
			c.label(ok)
		}

	case *peg.Ref:
		c.call(x.Name)

	case *peg.New:
		if c.opts.Tree {
			c.emit(OpNEW, x.Shift, nil, nil)
		}

	case *peg.LeftFold:
		if c.opts.Tree {
			c.emit(OpLFOLD, c.a.DeclareName(x.Label), x.Shift, nil)
		}

	case *peg.Capture:
		if c.opts.Tree {
			c.emit(OpCAPTURE, x.Shift, nil, nil)
		}

	case *peg.Tag:
		if c.opts.Tree {
			c.emit(OpTAG, c.a.DeclareName(x.Name), nil, nil)
		}

	case *peg.Replace:
		if c.opts.Tree {
			c.emit(OpREPLACE, c.a.DeclareName(x.Value), nil, nil)
		}

	case *peg.Link:
		if !c.opts.Tree {
			c.expr(x.Body)
			break
		}
		c.emit(OpLINKPUSH, nil, nil, nil)
		c.expr(x.Body)
		c.emit(OpLINKPOP, c.a.DeclareName(x.Label), x.Index, nil)

	case *peg.DefSymbol:
		c.emit(OpPOS, nil, nil, nil)
		c.expr(x.Body)
		c.emit(OpSDEF, c.a.DeclareName(x.Table), nil, nil)

	case *peg.IsSymbol:
		c.emit(OpPOS, nil, nil, nil)
		c.expr(x.Body)
		if x.Isa {
			c.emit(OpSISA, c.a.DeclareName(x.Table), nil, nil)
		} else {
			c.emit(OpSIS, c.a.DeclareName(x.Table), nil, nil)
		}

	case *peg.Exists:
		if x.Symbol == nil {
			c.emit(OpSEXISTS, c.a.DeclareName(x.Table), nil, nil)
		} else {
			c.emit(OpSEXISTSSYM, c.a.DeclareName(x.Table), c.a.DeclareLiteral(x.Symbol), nil)
		}

	case *peg.MatchSymbol:
		c.emit(OpSMATCH, c.a.DeclareName(x.Table), nil, nil)

	case *peg.Scope:
		c.emit(OpSOPEN, nil, nil, nil)
		c.expr(x.Body)
		c.emit(OpSCLOSE, nil, nil, nil)

	case *peg.Local:
		c.emit(OpSMASK, c.a.DeclareName(x.Table), nil, nil)
		c.expr(x.Body)
		c.emit(OpSCLOSE, nil, nil, nil)

	case *peg.Extension:
		c.emit(OpEXT, c.a.DeclareExtension(x.Name, x.Match), nil, nil)

	default:
		panic(fmt.Errorf("unhandled expression type %T", e))
	}
}

// choice emits the backtracking chain: every alternative but the last runs
// under its own choice frame; the last fails through to the enclosing one.
func (c *compiler) choice(alts []peg.Expr) {
	if len(alts) == 0 {
		c.emit(OpFAIL, nil, nil, nil)
		return
	}
	end := c.a.NewLabel()
	for i, alt := range alts {
		if i == len(alts)-1 {
			c.expr(alt)
			break
		}
		next := c.a.NewLabel()
		c.emit(OpALT, next, nil, nil)
		c.expr(alt)
		c.emit(OpCOMMIT, end, nil, nil)
		c.label(next)
	}
	c.label(end)
}

// predicted emits a FIRST dispatch. At most one alternative can match any
// given first byte, so the others need not be tried. An alternative other
// than the last still runs under a choice frame: when it fails, the
// alternatives after it would have failed where the choice began, and so
// must this one.
func (c *compiler) predicted(x *peg.Choice) {
	labels := make([]*AsmLabel, len(x.Alts))
	for i := range labels {
		labels[i] = c.a.NewLabel()
	}
	var targets [256]*AsmLabel
	for b, alt := range x.Predict.Alt {
		if alt >= 0 {
			targets[b] = labels[alt]
		}
	}
	c.emit(OpFIRST, c.a.DeclareTable(&targets), nil, nil)

	end := c.a.NewLabel()
	for i, alt := range x.Alts {
		c.label(labels[i])
		if i == len(x.Alts)-1 {
			c.expr(alt)
			break
		}
		failed := c.a.NewLabel()
		c.emit(OpALT, failed, nil, nil)
		c.expr(alt)
		c.emit(OpCOMMIT, end, nil, nil)
		c.label(failed)
		c.emit(OpFAIL, nil, nil, nil)
	}
	c.label(end)
}

func (c *compiler) star(body peg.Expr) {
	if c.primitive(body, OpRBYTE, OpRSTR, OpRSET) {
		return
	}
	exit := c.a.NewLabel()
	loop := c.a.NewLabel()
	c.emit(OpALT, exit, nil, nil)
	c.label(loop)
	c.expr(body)
	c.emit(OpPCOMMIT, loop, nil, nil)
	c.label(exit)
	// The loop's choice frame is gone once control reaches exit.
	c.depth--
}

// call emits a production call, wrapped in a memo lookup when the callee
// is a memo point.
func (c *compiler) call(name string) {
	target := c.a.GrabLabel(name)
	callee := c.g.Lookup(name)
	if !c.opts.Memoize || callee.MemoID < 0 {
		c.emit(OpCALL, target, nil, nil)
		return
	}

	var stateful int
	if callee.Stateful {
		stateful = 1
	}
	skip := c.a.NewLabel()
	failed := c.a.NewLabel()
	c.emit(OpLOOKUP, callee.MemoID, stateful, skip)
	c.emit(OpALT, failed, nil, nil)
	c.emit(OpCALL, target, nil, nil)
	c.emit(OpMEMO, callee.MemoID, stateful, nil)
	c.emit(OpJMP, skip, nil, nil)
	c.label(failed)
	c.emit(OpMEMOFAIL, callee.MemoID, stateful, nil)
	c.label(skip)
}
