package peggyvm

import (
	"bytes"
	"context"

	"github.com/chronos-tachyon/go-packrat/ast"
)

type RunState uint8

const (
	RunningState RunState = iota
	SuccessState
	FailureState
	ErrorState
)

var runStateNames = []string{"running", "success", "failure", "error"}

func (s RunState) String() string {
	return runStateNames[s]
}

// Machine is the context of a match-in-progress. A Machine belongs to one
// goroutine; any number of machines may share a Program.
type Machine struct {
	// P is the program to run.
	P *Program

	// Input is the byte string being matched.
	Input []byte

	// Pos is the index into Input of the current byte. After a rejection
	// it is the position at which the last failure happened.
	Pos int

	// PC is the index into P.Code of the instruction to execute next.
	PC int

	// Longest is the furthest position any attempt has reached, counting
	// bytes that a failed literal test compared equal.
	Longest int

	// State is RunningState until an EXIT executes or Step fails.
	State RunState

	// stack holds call, choice, position, link and scope frames.
	//
	// - CALL pushes a call frame. RET pops it. It is an error to RET
	//   when any other kind of frame is on top.
	//
	// - ALT pushes a choice frame. COMMIT, PCOMMIT, BCOMMIT, FAIL2X and
	//   MEMO expect one on top.
	//
	// - fail pops frames of any kind until it reaches a choice frame and
	//   restores the position, log and symbol table saved there. If no
	//   choice frame is pending, the parse is rejected.
	//
	stack []frame

	// failPos is where the most recent failure happened, before any
	// rewinding. A rejected parse reports it as its final position.
	failPos int

	trace bool
	opts  ExecOptions
	log   *ast.Log
	sym   *SymbolTable
	memo  MemoTable
	stats []*MemoStats
	tree  *ast.Node
}

func newMachine(p *Program, input []byte, opts ExecOptions) *Machine {
	m := &Machine{
		P:    p,
		opts: opts,
		log:  ast.NewLog(input),
		sym:  NewSymbolTable(),
	}
	m.Reset(input)
	return m
}

// Reset prepares the machine to match input from the beginning. The memo
// table and statistics are discarded; the stack and log storage is reused.
func (m *Machine) Reset(input []byte) {
	m.Input = input
	m.Pos = 0
	m.PC = entryIndex
	m.Longest = 0
	m.failPos = 0
	m.trace = tracing()
	m.State = RunningState
	m.stack = m.stack[:0]
	m.log.Reset(input)
	m.sym.Rollback(0)
	m.tree = nil

	m.memo = nil
	if m.opts.Memoize {
		if m.opts.MemoCapacity > 0 {
			m.memo = NewLRUMemo(m.opts.MemoCapacity)
		} else {
			m.memo = NewMapMemo()
		}
	}

	m.stats = nil
	if m.opts.Stats {
		m.stats = make([]*MemoStats, len(m.P.MemoPoints))
		for i, mp := range m.P.MemoPoints {
			m.stats[i] = newMemoStats(mp.Name)
		}
	}
}

// Symbols exposes the symbol table.
func (m *Machine) Symbols() *SymbolTable { return m.sym }

// Depth returns the number of pending stack frames.
func (m *Machine) Depth() int { return len(m.stack) }

// MemoStats returns per-memo-point statistics, or nil unless Stats was
// requested.
func (m *Machine) MemoStats() []*MemoStats { return m.stats }

// MemoLen returns the number of memo table entries.
func (m *Machine) MemoLen() int {
	if m.memo == nil {
		return 0
	}
	return m.memo.Len()
}

func (m *Machine) push(fr frame) {
	m.stack = append(m.stack, fr)
}

func (m *Machine) pop(kind frameKind) (frame, error) {
	if len(m.stack) == 0 {
		return frame{}, ErrEmptyStack
	}
	i := len(m.stack) - 1
	fr := m.stack[i]
	if fr.kind != kind {
		return frame{}, ErrWrongFrame
	}
	m.stack = m.stack[:i]
	return fr, nil
}

func (m *Machine) choicePoint(pc int) frame {
	return frame{
		kind: choiceFrame,
		next: pc,
		pos:  m.Pos,
		log:  m.log.Mark(),
		sym:  m.sym.SavePoint(),
	}
}

func (m *Machine) restore(fr frame) {
	m.Pos = fr.pos
	m.log.Abort(fr.log)
	m.sym.Rollback(fr.sym)
}

// fail unwinds to the most recent choice frame.
func (m *Machine) fail() {
	m.failAt(m.Pos)
}

// failAt is fail for a test that gave up at pos rather than at m.Pos.
func (m *Machine) failAt(pos int) {
	m.reach(pos)
	m.failPos = pos
	for i := len(m.stack) - 1; i >= 0; i-- {
		fr := m.stack[i]
		if fr.kind == choiceFrame {
			m.stack = m.stack[:i]
			m.restore(fr)
			m.PC = fr.next
			return
		}
	}
	m.stack = m.stack[:0]
	m.Pos = pos
	m.PC = rejectIndex
}

func (m *Machine) advance(n int) {
	m.Pos += n
	m.reach(m.Pos)
}

// reach raises Longest to pos. Bytes compared by a test count as reached
// even when the test fails.
func (m *Machine) reach(pos int) {
	if pos > m.Longest {
		m.Longest = pos
	}
}

func (m *Machine) available() int {
	return len(m.Input) - m.Pos
}

func (m *Machine) peek() (byte, bool) {
	if m.Pos < len(m.Input) {
		return m.Input[m.Pos], true
	}
	return 0, false
}

// matched returns how many leading bytes of lit the input at m.Pos agrees
// with.
func (m *Machine) matched(lit []byte) int {
	rest := m.Input[m.Pos:]
	n := 0
	for n < len(lit) && n < len(rest) && lit[n] == rest[n] {
		n++
	}
	return n
}

func (m *Machine) memoKey(point int, pos int, stateful bool, sp int) MemoKey {
	key := MemoKey{Point: point, Pos: pos}
	if stateful {
		key.State = m.sym.StateAt(sp)
	}
	return key
}

func (m *Machine) halt(in *Inst, err error) error {
	m.State = ErrorState
	return &RuntimeError{Err: err, PC: m.PC, Pos: m.Pos, Inst: in}
}

// Step executes one instruction.
func (m *Machine) Step() error {
	if m.State != RunningState {
		return ErrExecutionHalted
	}
	if m.PC < 0 || m.PC >= len(m.P.Code) {
		return m.halt(nil, ErrIndexRange)
	}

	pc := m.PC
	in := &m.P.Code[pc]
	if m.trace {
		log.Tracef("%05d %-24s pos=%d depth=%d", pc, in.String(), m.Pos, len(m.stack))
	}

	m.PC = in.Next
	switch in.Code {
	case OpNOP, OpJMP:
		// pass

	case OpALT:
		m.push(m.choicePoint(in.Jump))

	case OpCOMMIT:
		if _, err := m.pop(choiceFrame); err != nil {
			return m.halt(in, err)
		}
		m.PC = in.Jump

	case OpFAIL:
		m.fail()

	case OpANY:
		if m.available() >= 1 {
			m.advance(1)
		} else {
			m.fail()
		}

	case OpBYTE:
		if b, ok := m.peek(); ok && b == byte(in.Arg) {
			m.advance(1)
		} else {
			m.fail()
		}

	case OpSTR:
		lit := m.P.Literals[in.Arg]
		if n := m.matched(lit); n == len(lit) {
			m.advance(n)
		} else {
			m.failAt(m.Pos + n)
		}

	case OpSET:
		if b, ok := m.peek(); ok && m.P.Sets[in.Arg].Has(b) {
			m.advance(1)
		} else {
			m.fail()
		}

	case OpCALL:
		m.push(frame{kind: callFrame, next: in.Next})
		m.PC = in.Jump

	case OpRET:
		fr, err := m.pop(callFrame)
		if err != nil {
			return m.halt(in, err)
		}
		m.PC = fr.next

	case OpFIRST:
		b, ok := m.peek()
		if !ok {
			m.fail()
			break
		}
		if target := m.P.Tables[in.Arg][b]; target >= 0 {
			m.PC = target
		} else {
			m.fail()
		}

	case OpPCOMMIT:
		i := len(m.stack) - 1
		if i < 0 || m.stack[i].kind != choiceFrame {
			return m.halt(in, ErrWrongFrame)
		}
		if m.stack[i].pos == m.Pos {
			// An iteration that consumed nothing would repeat forever.
			m.fail()
			break
		}
		m.stack[i].pos = m.Pos
		m.stack[i].log = m.log.Mark()
		m.stack[i].sym = m.sym.SavePoint()
		m.PC = in.Jump

	case OpBCOMMIT:
		fr, err := m.pop(choiceFrame)
		if err != nil {
			return m.halt(in, err)
		}
		m.restore(fr)
		m.PC = in.Jump

	case OpFAIL2X:
		fr, err := m.pop(choiceFrame)
		if err != nil {
			return m.halt(in, err)
		}
		m.restore(fr)
		m.fail()

	case OpPOS:
		m.push(frame{kind: posFrame, pos: m.Pos})

	case OpNBYTE:
		if b, ok := m.peek(); ok && b == byte(in.Arg) {
			m.reach(m.Pos + 1)
			m.fail()
		}

	case OpNSTR:
		lit := m.P.Literals[in.Arg]
		n := m.matched(lit)
		m.reach(m.Pos + n)
		if n == len(lit) {
			m.fail()
		}

	case OpNSET:
		if b, ok := m.peek(); ok && m.P.Sets[in.Arg].Has(b) {
			m.reach(m.Pos + 1)
			m.fail()
		}

	case OpNANY:
		if m.available() > 0 {
			m.reach(m.Pos + 1)
			m.fail()
		}

	case OpOBYTE:
		if b, ok := m.peek(); ok && b == byte(in.Arg) {
			m.advance(1)
		}

	case OpOSTR:
		lit := m.P.Literals[in.Arg]
		if n := m.matched(lit); n == len(lit) {
			m.advance(n)
		} else {
			m.reach(m.Pos + n)
		}

	case OpOSET:
		if b, ok := m.peek(); ok && m.P.Sets[in.Arg].Has(b) {
			m.advance(1)
		}

	case OpRBYTE:
		for b, ok := m.peek(); ok && b == byte(in.Arg); b, ok = m.peek() {
			m.advance(1)
		}

	case OpRSTR:
		lit := m.P.Literals[in.Arg]
		for len(lit) > 0 {
			n := m.matched(lit)
			if n < len(lit) {
				m.reach(m.Pos + n)
				break
			}
			m.advance(n)
		}

	case OpRSET:
		set := &m.P.Sets[in.Arg]
		for b, ok := m.peek(); ok && set.Has(b); b, ok = m.peek() {
			m.advance(1)
		}

	case OpEXIT:
		if in.Arg != 0 {
			m.State = SuccessState
			m.tree = m.log.Commit(0)
		} else {
			m.State = FailureState
			m.log.Abort(0)
		}
		m.PC = pc

	case OpLOOKUP:
		if m.memo == nil {
			break
		}
		key := m.memoKey(in.Arg, m.Pos, in.Arg2 != 0, m.sym.SavePoint())
		entry, found := m.memo.Lookup(key)
		var stats *MemoStats
		if m.stats != nil {
			stats = m.stats[in.Arg]
		}
		switch {
		case !found:
			if stats != nil {
				stats.Misses++
			}
		case entry.Failed:
			if stats != nil {
				stats.FailHits++
			}
			m.failAt(m.Pos + entry.FailedAt)
		default:
			if stats != nil {
				stats.Hits++
				stats.recordLength(entry.Consumed)
			}
			m.log.Replay(entry.Log)
			m.sym.Replay(entry.Symbols)
			m.advance(entry.Consumed)
			m.PC = in.Jump
		}

	case OpMEMO:
		fr, err := m.pop(choiceFrame)
		if err != nil {
			return m.halt(in, err)
		}
		if m.memo == nil {
			break
		}
		entry := &MemoEntry{
			Consumed: m.Pos - fr.pos,
			Log:      m.log.Since(fr.log),
			Symbols:  m.sym.Since(fr.sym),
		}
		m.memo.Insert(m.memoKey(in.Arg, fr.pos, in.Arg2 != 0, fr.sym), entry)
		if m.stats != nil {
			m.stats[in.Arg].recordLength(entry.Consumed)
		}

	case OpMEMOFAIL:
		// The callee's failure rewound to the call site; failPos still
		// says where it happened.
		at := m.failPos
		if m.memo != nil {
			key := m.memoKey(in.Arg, m.Pos, in.Arg2 != 0, m.sym.SavePoint())
			m.memo.Insert(key, &MemoEntry{Failed: true, FailedAt: at - m.Pos})
		}
		m.failAt(at)

	case OpNEW:
		m.log.New(m.Pos + in.Arg)

	case OpLFOLD:
		m.log.LeftFold(m.Pos+in.Arg2, m.P.Names[in.Arg])

	case OpCAPTURE:
		m.log.Capture(m.Pos + in.Arg)

	case OpTAG:
		m.log.Tag(m.P.Names[in.Arg])

	case OpREPLACE:
		m.log.Replace(m.P.Names[in.Arg])

	case OpLINKPUSH:
		m.push(frame{kind: linkFrame, log: m.log.Mark()})

	case OpLINKPOP:
		fr, err := m.pop(linkFrame)
		if err != nil {
			return m.halt(in, err)
		}
		child := m.log.Commit(fr.log)
		m.log.Link(m.P.Names[in.Arg], in.Arg2, child)

	case OpSOPEN:
		m.push(frame{kind: scopeFrame, sym: m.sym.SavePoint()})

	case OpSMASK:
		m.push(frame{kind: scopeFrame, sym: m.sym.SavePoint()})
		m.sym.AddMask(m.P.Names[in.Arg])

	case OpSCLOSE:
		fr, err := m.pop(scopeFrame)
		if err != nil {
			return m.halt(in, err)
		}
		m.sym.Rollback(fr.sym)

	case OpSDEF:
		fr, err := m.pop(posFrame)
		if err != nil {
			return m.halt(in, err)
		}
		m.sym.Add(m.P.Names[in.Arg], m.Input[fr.pos:m.Pos])

	case OpSIS, OpSISA:
		fr, err := m.pop(posFrame)
		if err != nil {
			return m.halt(in, err)
		}
		table := m.P.Names[in.Arg]
		span := m.Input[fr.pos:m.Pos]
		var ok bool
		if in.Code == OpSISA {
			ok = m.sym.Contains(table, span)
		} else {
			v, found := m.sym.Get(table)
			ok = found && bytes.Equal(v, span)
		}
		if !ok {
			m.Pos = fr.pos
			m.fail()
		}

	case OpSEXISTS:
		if _, found := m.sym.Get(m.P.Names[in.Arg]); !found {
			m.fail()
		}

	case OpSEXISTSSYM:
		if !m.sym.Contains(m.P.Names[in.Arg], m.P.Literals[in.Arg2]) {
			m.fail()
		}

	case OpSMATCH:
		v, found := m.sym.Get(m.P.Names[in.Arg])
		if !found {
			break
		}
		if n := m.matched(v); n == len(v) {
			m.advance(n)
		} else {
			m.failAt(m.Pos + n)
		}

	case OpEXT:
		fn := m.P.Extensions[in.Arg].Match
		if fn == nil {
			return m.halt(in, ErrUnboundExtension)
		}
		n, ok := fn(m.Input, m.Pos)
		if ok && n >= 0 && n <= m.available() {
			m.advance(n)
		} else {
			m.fail()
		}

	default:
		return m.halt(in, ErrUnknownOpcode)
	}
	return nil
}

// Run steps until the machine halts.
func (m *Machine) Run() error {
	for m.State == RunningState {
		if err := m.Step(); err != nil {
			return err
		}
	}
	return nil
}

// RunContext is Run, but gives up with ctx.Err() once ctx is done. The
// context is consulted every ExecOptions.CheckInterval steps.
func (m *Machine) RunContext(ctx context.Context) error {
	interval := m.opts.CheckInterval
	if interval <= 0 {
		interval = defaultCheckInterval
	}
	for n := 0; m.State == RunningState; n++ {
		if n%interval == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if err := m.Step(); err != nil {
			return err
		}
	}
	return nil
}

// Result returns the outcome of a halted machine.
func (m *Machine) Result() Result {
	return Result{
		Success: m.State == SuccessState,
		Pos:     m.Pos,
		Longest: m.Longest,
		Tree:    m.tree,
		Input:   m.Input,
	}
}
