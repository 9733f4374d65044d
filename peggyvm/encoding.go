package peggyvm

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/chronos-tachyon/go-packrat/byteset"
	"github.com/chronos-tachyon/go-packrat/peg"
)

// Serialized programs start with magic and a version byte, followed by the
// operand pools and the instruction stream:
//
//   "PKRT" version
//   literals:    n { len bytes }
//   sets:        n { 4 x uint64 LE }
//   names:       n { len bytes }
//   tables:      n { 256 x (target+1) }
//   extensions:  n { len name }
//   memo points: n { len name, stateful byte }
//   productions: n { len name, entry }
//   labels:      n { len name, index, public byte }
//   code:        n { instruction }
//
// Every count, length and index is a uvarint. Instructions use the encoding
// described in the package documentation; branch targets are absolute
// instruction indices. Extension matchers are host code and are rebound by
// name when the program is loaded.
const (
	bytecodeMagic   = "PKRT"
	bytecodeVersion = 1
)

type encoder struct {
	buf bytes.Buffer
	tmp [binary.MaxVarintLen64]byte
}

func (e *encoder) uvarint(v uint64) {
	n := binary.PutUvarint(e.tmp[:], v)
	e.buf.Write(e.tmp[:n])
}

func (e *encoder) int(v int) {
	assert(v >= 0, "negative value %d in bytecode header", v)
	e.uvarint(uint64(v))
}

func (e *encoder) bytes(b []byte) {
	e.int(len(b))
	e.buf.Write(b)
}

func (e *encoder) bool(v bool) {
	if v {
		e.buf.WriteByte(1)
	} else {
		e.buf.WriteByte(0)
	}
}

// MarshalBinary serializes the program.
func (p *Program) MarshalBinary() ([]byte, error) {
	var e encoder
	e.buf.WriteString(bytecodeMagic)
	e.buf.WriteByte(bytecodeVersion)

	e.int(len(p.Literals))
	for _, lit := range p.Literals {
		e.bytes(lit)
	}

	e.int(len(p.Sets))
	for _, set := range p.Sets {
		for _, word := range set {
			var raw [8]byte
			binary.LittleEndian.PutUint64(raw[:], word)
			e.buf.Write(raw[:])
		}
	}

	e.int(len(p.Names))
	for _, name := range p.Names {
		e.bytes([]byte(name))
	}

	e.int(len(p.Tables))
	for _, table := range p.Tables {
		for _, target := range table {
			e.int(target + 1)
		}
	}

	e.int(len(p.Extensions))
	for _, ext := range p.Extensions {
		e.bytes([]byte(ext.Name))
	}

	e.int(len(p.MemoPoints))
	for _, mp := range p.MemoPoints {
		e.bytes([]byte(mp.Name))
		e.bool(mp.Stateful)
	}

	e.int(len(p.Productions))
	for _, prod := range p.Productions {
		e.bytes([]byte(prod.Name))
		e.int(prod.Entry)
	}

	e.int(len(p.Labels))
	for _, label := range p.Labels {
		e.bytes([]byte(label.Name))
		e.int(label.Index)
		e.bool(label.Public)
	}

	e.int(len(p.Code))
	for i := range p.Code {
		e.buf.Write(p.Code[i].Encode())
	}
	return e.buf.Bytes(), nil
}

type decoder struct {
	data []byte
	off  int
	err  error
}

func (d *decoder) fail(err error) {
	if d.err == nil {
		d.err = &DecodeError{Err: err, Offset: d.off}
	}
}

func (d *decoder) uvarint() uint64 {
	if d.err != nil {
		return 0
	}
	v, n := binary.Uvarint(d.data[d.off:])
	if n <= 0 {
		d.fail(io.ErrUnexpectedEOF)
		return 0
	}
	d.off += n
	return v
}

// count reads a length or count that must fit in the rest of the data,
// each element occupying at least minSize bytes.
func (d *decoder) count(minSize int) int {
	v := d.uvarint()
	if d.err != nil {
		return 0
	}
	if v > uint64(len(d.data)-d.off)/uint64(minSize) {
		d.fail(ErrCountRange)
		return 0
	}
	return int(v)
}

func (d *decoder) int() int {
	v := d.uvarint()
	if v > uint64(^uint(0)>>1) {
		d.fail(ErrIndexRange)
		return 0
	}
	return int(v)
}

func (d *decoder) raw(n int) []byte {
	if d.err != nil {
		return nil
	}
	if n > len(d.data)-d.off {
		d.fail(io.ErrUnexpectedEOF)
		return nil
	}
	out := d.data[d.off : d.off+n]
	d.off += n
	return out
}

func (d *decoder) bytes() []byte {
	n := d.count(1)
	out := make([]byte, n)
	copy(out, d.raw(n))
	return out
}

func (d *decoder) string() string {
	return string(d.bytes())
}

func (d *decoder) bool() bool {
	b := d.raw(1)
	return len(b) == 1 && b[0] != 0
}

// UnmarshalProgram loads a program written by MarshalBinary. exts supplies
// the host matchers for the program's extensions by name. The returned
// error is a *DecodeError.
func UnmarshalProgram(data []byte, exts map[string]peg.ExtFunc) (*Program, error) {
	d := &decoder{data: data}
	if !bytes.HasPrefix(data, []byte(bytecodeMagic)) {
		return nil, &DecodeError{Err: ErrBadMagic}
	}
	d.off = len(bytecodeMagic)
	if version := d.raw(1); d.err == nil && version[0] != bytecodeVersion {
		d.fail(ErrBadVersion)
	}

	p := &Program{}
	p.Literals = make([][]byte, d.count(1))
	for i := range p.Literals {
		p.Literals[i] = d.bytes()
	}

	p.Sets = make([]byteset.Set, d.count(32))
	for i := range p.Sets {
		raw := d.raw(32)
		if raw == nil {
			break
		}
		for w := range p.Sets[i] {
			p.Sets[i][w] = binary.LittleEndian.Uint64(raw[8*w:])
		}
	}

	p.Names = make([]string, d.count(1))
	for i := range p.Names {
		p.Names[i] = d.string()
	}

	p.Tables = make([]JumpTable, d.count(256))
	for i := range p.Tables {
		for b := range p.Tables[i] {
			p.Tables[i][b] = d.int() - 1
		}
	}

	p.Extensions = make([]Extension, d.count(1))
	for i := range p.Extensions {
		name := d.string()
		p.Extensions[i] = Extension{Name: name, Match: exts[name]}
		if d.err == nil && p.Extensions[i].Match == nil {
			d.fail(ErrUnboundExtension)
		}
	}

	p.MemoPoints = make([]MemoPoint, d.count(2))
	for i := range p.MemoPoints {
		p.MemoPoints[i].Name = d.string()
		p.MemoPoints[i].Stateful = d.bool()
	}

	p.Productions = make([]Production, d.count(2))
	for i := range p.Productions {
		p.Productions[i].Name = d.string()
		p.Productions[i].Entry = d.int()
	}

	p.Labels = make([]*Label, d.count(3))
	for i := range p.Labels {
		label := &Label{Name: d.string()}
		label.Index = d.int()
		label.Public = d.bool()
		p.Labels[i] = label
	}

	p.Code = make([]Inst, d.count(1))
	for i := range p.Code {
		if d.err != nil {
			break
		}
		in, n, err := decodeInst(d.data, d.off)
		if err == io.EOF {
			d.fail(io.ErrUnexpectedEOF)
			break
		}
		if err != nil {
			d.err = err
			break
		}
		p.Code[i] = in
		d.off += n
	}
	if d.err == nil && d.off != len(d.data) {
		d.fail(ErrUnexpectedTrailer)
	}
	if d.err != nil {
		return nil, d.err
	}

	for _, prod := range p.Productions {
		if prod.Entry >= len(p.Code) {
			return nil, &DecodeError{Err: ErrIndexRange, Offset: d.off}
		}
	}
	for _, label := range p.Labels {
		if label.Index >= len(p.Code) {
			return nil, &DecodeError{Err: ErrIndexRange, Offset: d.off}
		}
	}

	p.link()
	if err := p.verify(); err != nil {
		return nil, &DecodeError{Err: err, Offset: d.off}
	}
	return p, nil
}
