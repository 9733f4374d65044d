package peggyvm

import (
	"bytes"
	"fmt"

	"github.com/chronos-tachyon/go-packrat/byteset"
	"github.com/chronos-tachyon/go-packrat/peg"
)

// Assembler turns sequences of instructions and labels into Program
// objects. Operand pools are interned: declaring the same literal, set or
// name twice yields the same index.
type Assembler struct {
	// List is the list of instructions being assembled.
	List []*AsmItem

	// LabelsByName indexes every label grabbed so far.
	LabelsByName map[string]*AsmLabel

	Literals    [][]byte
	Sets        []byteset.Set
	Names       []string
	Tables      []*[256]*AsmLabel
	Extensions  []Extension
	MemoPoints  []MemoPoint
	Productions []*AsmLabel

	literalIdx map[string]int
	setIdx     map[byteset.Set]int
	nameIdx    map[string]int
	extIdx     map[string]int
	anon       int
}

// AsmItem is an instruction whose branch target may not be placed yet.
type AsmItem struct {
	Inst  Inst
	Fixup *AsmLabel
}

// AsmLabel marks an instruction index. Index is -1 until the label is
// emitted.
type AsmLabel struct {
	Name   string
	Public bool
	Index  int
}

func NewAssembler() *Assembler {
	return &Assembler{
		LabelsByName: make(map[string]*AsmLabel),
		literalIdx:   make(map[string]int),
		setIdx:       make(map[byteset.Set]int),
		nameIdx:      make(map[string]int),
		extIdx:       make(map[string]int),
	}
}

// DeclareLiteral interns lit and returns its index.
func (a *Assembler) DeclareLiteral(lit []byte) int {
	if i, found := a.literalIdx[string(lit)]; found {
		return i
	}
	i := len(a.Literals)
	a.Literals = append(a.Literals, lit)
	a.literalIdx[string(lit)] = i
	return i
}

// DeclareSet interns set and returns its index.
func (a *Assembler) DeclareSet(set byteset.Set) int {
	if i, found := a.setIdx[set]; found {
		return i
	}
	i := len(a.Sets)
	a.Sets = append(a.Sets, set)
	a.setIdx[set] = i
	return i
}

// DeclareName interns name and returns its index.
func (a *Assembler) DeclareName(name string) int {
	if i, found := a.nameIdx[name]; found {
		return i
	}
	i := len(a.Names)
	a.Names = append(a.Names, name)
	a.nameIdx[name] = i
	return i
}

// DeclareExtension registers a host matcher. Extensions are keyed by name;
// the first matcher declared under a name wins.
func (a *Assembler) DeclareExtension(name string, fn peg.ExtFunc) int {
	if i, found := a.extIdx[name]; found {
		return i
	}
	i := len(a.Extensions)
	a.Extensions = append(a.Extensions, Extension{Name: name, Match: fn})
	a.extIdx[name] = i
	return i
}

// DeclareMemoPoint registers memo point id for production name.
func (a *Assembler) DeclareMemoPoint(id int, name string, stateful bool) {
	for len(a.MemoPoints) <= id {
		a.MemoPoints = append(a.MemoPoints, MemoPoint{})
	}
	a.MemoPoints[id] = MemoPoint{Name: name, Stateful: stateful}
}

// DeclareTable registers a jump table whose entries are labels; nil
// entries fail.
func (a *Assembler) DeclareTable(targets *[256]*AsmLabel) int {
	a.Tables = append(a.Tables, targets)
	return len(a.Tables) - 1
}

// GrabLabel returns the label called name, creating it if necessary. Names
// starting with '.' are private.
func (a *Assembler) GrabLabel(name string) *AsmLabel {
	label := a.LabelsByName[name]
	if label != nil {
		return label
	}
	assert(len(name) != 0, "empty label name")
	label = &AsmLabel{
		Name:   name,
		Public: name[0] != '.',
		Index:  -1,
	}
	a.LabelsByName[name] = label
	return label
}

// NewLabel returns a fresh private label. Private names start with '.',
// which peg.Grammar.Validate rejects for productions.
func (a *Assembler) NewLabel() *AsmLabel {
	name := fmt.Sprintf(".$%d", a.anon)
	a.anon++
	return a.GrabLabel(name)
}

// EmitLabel places label at the next instruction.
func (a *Assembler) EmitLabel(label *AsmLabel) {
	assert(label.Index < 0, "label %s emitted twice", label.Name)
	label.Index = len(a.List)
}

// EmitProduction places the public label for a production and records it.
func (a *Assembler) EmitProduction(name string) {
	label := a.GrabLabel(name)
	a.EmitLabel(label)
	a.Productions = append(a.Productions, label)
}

// Len returns the number of instructions emitted so far.
func (a *Assembler) Len() int { return len(a.List) }

// EmitOp appends one instruction. Each immediate may be nil (absent or
// default), an integer, or an *AsmLabel for a branch target.
func (a *Assembler) EmitOp(code OpCode, imm0, imm1, imm2 interface{}) {
	meta := code.Meta()
	assert(!meta.Illegal, "illegal opcode %d", code)

	item := &AsmItem{Inst: Inst{Code: code}}
	var raw [3]uint64

	for n, value := range []interface{}{imm0, imm1, imm2} {
		m := meta.Imms()[n]
		t := m.Type
		switch x := value.(type) {
		case nil:
			assert(t == ImmNone || !m.Required, "nil for required immediate of %s", meta.Name)
			raw[n] = m.Default()

		case uint8:
			assert(!t.Signed(), "%T for signed immediate", x)
			raw[n] = uint64(x)

		case int:
			if t.Signed() {
				raw[n] = s2u(int64(x))
			} else {
				assert(x >= 0, "negative value for unsigned immediate")
				raw[n] = uint64(x)
			}

		case *AsmLabel:
			assert(t == ImmTarget, "label for non-target immediate of %s", meta.Name)
			assert(item.Fixup == nil, "multiple fixups for one op")
			item.Fixup = x

		default:
			panic(fmt.Errorf("illegal type %T", x))
		}
	}

	item.Inst.SetImms(raw[0], raw[1], raw[2])
	a.List = append(a.List, item)
}

// Finish resolves every label and returns the linked Program.
func (a *Assembler) Finish() (*Program, error) {
	p := &Program{
		Code:       make([]Inst, len(a.List)),
		Literals:   a.Literals,
		Sets:       a.Sets,
		Names:      a.Names,
		Extensions: a.Extensions,
		MemoPoints: a.MemoPoints,
	}

	for i, item := range a.List {
		in := item.Inst
		if item.Fixup != nil {
			assert(item.Fixup.Index >= 0, "label %s never emitted", item.Fixup.Name)
			in.Jump = item.Fixup.Index
		}
		p.Code[i] = in
	}

	for _, targets := range a.Tables {
		var table JumpTable
		for b, label := range targets {
			table[b] = -1
			if label != nil {
				assert(label.Index >= 0, "label %s never emitted", label.Name)
				table[b] = label.Index
			}
		}
		p.Tables = append(p.Tables, table)
	}

	for _, label := range a.Productions {
		p.Productions = append(p.Productions, Production{Name: label.Name, Entry: label.Index})
	}
	for _, label := range a.LabelsByName {
		if label.Index >= 0 {
			p.Labels = append(p.Labels, &Label{Index: label.Index, Public: label.Public, Name: label.Name})
		}
	}
	sortLabels(p.Labels)

	p.link()
	if err := p.verify(); err != nil {
		return nil, err
	}
	return p, nil
}

func (a *Assembler) String() string {
	var buf bytes.Buffer
	for i, item := range a.List {
		fmt.Fprintf(&buf, "%05d %s", i, item.Inst.String())
		if item.Fixup != nil {
			buf.WriteByte(' ')
			buf.WriteString(item.Fixup.Name)
		}
		buf.WriteByte('\n')
	}
	return buf.String()
}
