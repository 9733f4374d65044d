package peggyvm

import (
	"bytes"
	"fmt"
	"io"
	"sort"

	"github.com/chronos-tachyon/go-packrat/byteset"
	"github.com/chronos-tachyon/go-packrat/peg"
)

// Fixed layout of every compiled program.
const (
	// entryIndex holds CALL <start>.
	entryIndex = 0

	// acceptIndex holds EXIT 1, reached when the start production returns.
	acceptIndex = 1

	// rejectIndex holds EXIT 0, reached when a failure finds no choice
	// frame.
	rejectIndex = 2
)

// JumpTable maps the next input byte to an instruction index, or -1 to
// fail.
type JumpTable [256]int

// Extension is a host matcher referenced by EXT instructions.
type Extension struct {
	Name  string
	Match peg.ExtFunc
}

// MemoPoint describes one memoized production.
type MemoPoint struct {
	Name     string
	Stateful bool
}

// Production records where a production's code starts.
type Production struct {
	Name  string
	Entry int
}

// Program is a grammar that has been compiled to an instruction graph. A
// Program is immutable and may be shared by any number of concurrently
// running machines.
type Program struct {
	// Code is the instruction arena. Code[0..2] hold the fixed entry
	// sequence; each production follows as its body and a RET.
	Code []Inst

	// Literals is a list of byte strings, referenced by the STR family
	// and by SEXISTSSYM.
	Literals [][]byte

	// Sets is a list of byte sets, referenced by the SET family.
	Sets []byteset.Set

	// Names is a list of tags, child labels, replacement values and
	// symbol table names.
	Names []string

	// Tables is a list of jump tables, referenced by FIRST.
	Tables []JumpTable

	// Extensions is a list of host matchers, referenced by EXT.
	Extensions []Extension

	// MemoPoints is a list of memoized productions, referenced by the
	// LOOKUP family.
	MemoPoints []MemoPoint

	// Productions lists every production in definition order.
	Productions []Production

	// Labels is an auxiliary list of program labels, sorted by index.
	Labels []*Label
}

// Start returns the name of the start production.
func (p *Program) Start() string {
	target := p.Code[entryIndex].Jump
	for _, prod := range p.Productions {
		if prod.Entry == target {
			return prod.Name
		}
	}
	return ""
}

// FindLabel returns the best available label for the given instruction
// index. If no label is defined there, a synthetic one is returned.
func (p *Program) FindLabel(index int) *Label {
	i := sort.Search(len(p.Labels), func(i int) bool {
		return p.Labels[i].Index >= index
	})
	if i < len(p.Labels) && p.Labels[i].Index == index {
		return p.Labels[i]
	}
	return &Label{
		Index:  index,
		Public: false,
		Name:   fmt.Sprintf(".ANON@%d", index),
	}
}

// link derives Next for every instruction and threads branch targets
// through JMP chains. It is idempotent.
func (p *Program) link() {
	for i := range p.Code {
		in := &p.Code[i]
		switch in.Code {
		case OpJMP:
			in.Jump = p.thread(in.Jump)
			in.Next = in.Jump
		case OpALT, OpCOMMIT, OpPCOMMIT, OpBCOMMIT, OpCALL, OpLOOKUP:
			in.Jump = p.thread(in.Jump)
			in.Next = p.thread(i + 1)
		default:
			in.Next = p.thread(i + 1)
		}
	}
	for t := range p.Tables {
		for b, target := range p.Tables[t] {
			if target >= 0 {
				p.Tables[t][b] = p.thread(target)
			}
		}
	}
}

func (p *Program) thread(index int) int {
	for hops := 0; hops < len(p.Code); hops++ {
		if index < 0 || index >= len(p.Code) || p.Code[index].Code != OpJMP {
			break
		}
		index = p.Code[index].Jump
	}
	return index
}

// verify checks every operand of every instruction against the pools.
func (p *Program) verify() error {
	if len(p.Code) <= rejectIndex {
		return ErrCountRange
	}
	for i := range p.Code {
		in := &p.Code[i]
		meta := in.Code.Meta()
		if meta.Illegal {
			return &RuntimeError{Err: ErrUnknownOpcode, PC: i, Inst: in}
		}
		for n, ptr := range in.slots(meta) {
			if ptr == nil {
				continue
			}
			v := *ptr
			var limit int
			switch meta.Imms()[n].Type {
			case ImmTarget:
				limit = len(p.Code)
			case ImmLiteralIdx:
				limit = len(p.Literals)
			case ImmSetIdx:
				limit = len(p.Sets)
			case ImmNameIdx:
				limit = len(p.Names)
			case ImmTableIdx:
				limit = len(p.Tables)
			case ImmMemoIdx:
				limit = len(p.MemoPoints)
			case ImmExtIdx:
				limit = len(p.Extensions)
			case ImmByte:
				limit = 256
			default:
				continue
			}
			if v < 0 || v >= limit {
				return &RuntimeError{Err: ErrIndexRange, PC: i, Inst: in}
			}
		}
	}
	for _, table := range p.Tables {
		for _, target := range table {
			if target >= len(p.Code) {
				return ErrIndexRange
			}
		}
	}
	return nil
}

// Disassemble converts the program into an assembly listing, writing the
// result to the provided writer.
func (p *Program) Disassemble(w io.Writer) (int, error) {
	var buf bytes.Buffer
	var total int

	flush := func() error {
		n, err := w.Write(buf.Bytes())
		total += n
		buf.Reset()
		return err
	}

	names := p.labelNames()

	for i, literal := range p.Literals {
		fmt.Fprintf(&buf, "%%literal %d %s\n", i, quoteLiteral(literal))
	}
	for i, set := range p.Sets {
		fmt.Fprintf(&buf, "%%set %d %s\n", i, set)
	}
	for i, table := range p.Tables {
		fmt.Fprintf(&buf, "%%table %d", i)
		writeTable(&buf, table, names)
		buf.WriteByte('\n')
	}
	for i, mp := range p.MemoPoints {
		fmt.Fprintf(&buf, "%%memo %d %s", i, mp.Name)
		if mp.Stateful {
			buf.WriteString(" stateful")
		}
		buf.WriteByte('\n')
	}
	for i, ext := range p.Extensions {
		fmt.Fprintf(&buf, "%%ext %d %s\n", i, ext.Name)
	}
	buf.WriteByte('\n')
	if err := flush(); err != nil {
		return total, err
	}

	for i := range p.Code {
		if name, found := names[i]; found {
			buf.WriteString(name)
			buf.WriteByte(':')
			buf.WriteByte('\n')
		}
		buf.WriteByte('\t')
		p.writeInst(&buf, &p.Code[i], names)
		buf.WriteByte('\n')
		if err := flush(); err != nil {
			return total, err
		}
	}
	return total, nil
}

// labelNames names every instruction that is a production entry or a
// branch target. Private targets are numbered in index order.
func (p *Program) labelNames() map[int]string {
	names := make(map[int]string)
	for _, label := range p.Labels {
		if label.Public {
			names[label.Index] = label.Name
		}
	}

	needed := make(map[int]struct{})
	for i := range p.Code {
		in := &p.Code[i]
		for n, m := range in.Code.Meta().Imms() {
			if m.Type == ImmTarget {
				ptr := in.slots(in.Code.Meta())[n]
				needed[*ptr] = struct{}{}
			}
		}
	}
	for _, table := range p.Tables {
		for _, target := range table {
			if target >= 0 {
				needed[target] = struct{}{}
			}
		}
	}

	indices := make([]int, 0, len(needed))
	for index := range needed {
		if _, found := names[index]; !found {
			indices = append(indices, index)
		}
	}
	sort.Ints(indices)
	for n, index := range indices {
		names[index] = fmt.Sprintf(".L%d", n)
	}
	return names
}

func (p *Program) writeInst(buf *bytes.Buffer, in *Inst, names map[int]string) {
	meta := in.Code.Meta()
	buf.WriteString(meta.Name)

	first := true
	imms := [3]uint64{}
	imms[0], imms[1], imms[2] = in.Imms()
	for n, m := range meta.Imms() {
		v := imms[n]
		if !m.IsPresent(v) {
			continue
		}
		if !first {
			buf.WriteByte(',')
		}
		buf.WriteByte(' ')
		first = false

		i := int(u2s(v))
		switch m.Type {
		case ImmSint:
			fmt.Fprintf(buf, "%d", i)

		case ImmByte:
			writeByteLiteral(buf, byte(v))

		case ImmTarget:
			if name, found := names[i]; found {
				buf.WriteString(name)
			} else {
				buf.WriteString(p.FindLabel(i).Name)
			}

		case ImmLiteralIdx:
			if i < len(p.Literals) {
				buf.WriteString(quoteLiteral(p.Literals[i]))
			} else {
				fmt.Fprintf(buf, "%d <bad-literal>", i)
			}

		case ImmSetIdx:
			if i < len(p.Sets) {
				buf.WriteString(p.Sets[i].String())
			} else {
				fmt.Fprintf(buf, "%d <bad-set>", i)
			}

		case ImmNameIdx:
			if i < len(p.Names) {
				buf.WriteString(p.Names[i])
			} else {
				fmt.Fprintf(buf, "%d <bad-name>", i)
			}

		case ImmExtIdx:
			if i < len(p.Extensions) {
				buf.WriteString(p.Extensions[i].Name)
			} else {
				fmt.Fprintf(buf, "%d <bad-ext>", i)
			}

		default:
			fmt.Fprintf(buf, "%d", v)
		}
	}
}

// writeTable lists each distinct target of table with the bytes that lead
// to it, in order of first byte.
func writeTable(buf *bytes.Buffer, table JumpTable, names map[int]string) {
	var order []int
	sets := make(map[int]*byteset.Set)
	for b, target := range table {
		if target < 0 {
			continue
		}
		s, found := sets[target]
		if !found {
			s = new(byteset.Set)
			sets[target] = s
			order = append(order, target)
		}
		s.Add(byte(b))
	}
	for _, target := range order {
		fmt.Fprintf(buf, " %s:%s", sets[target], names[target])
	}
}

// Exec prepares a machine that will run the program over input.
func (p *Program) Exec(input []byte, opts ExecOptions) *Machine {
	return newMachine(p, input, opts)
}

// Match runs the program over input with the default options. It panics if
// the program is malformed.
func (p *Program) Match(input []byte) Result {
	m := p.Exec(input, DefaultExecOptions())
	if err := m.Run(); err != nil {
		panic(err)
	}
	return m.Result()
}
