package peggyvm

import (
	"bytes"
	"fmt"
	"io"
)

// Inst is a single instruction of a compiled Program.
//
// Instructions live in the Program.Code arena and refer to one another by
// index. Every instruction has exactly one successor, Next; instructions
// that can branch also carry Jump.
type Inst struct {
	Code OpCode

	// Arg and Arg2 are the instruction's operands other than its branch
	// target, in the order the opcode metadata lists them.
	Arg  int
	Arg2 int

	// Jump is the branch target: the failure target of ALT, the resume
	// point of COMMIT and its variants, the callee of CALL, the skip target
	// of LOOKUP.
	Jump int

	// Next is the instruction executed after this one completes normally.
	// It is derived from the layout by Program.link, with JMP chains
	// already followed.
	Next int
}

// slots maps the three immediate slots of the opcode onto fields of in.
func (in *Inst) slots(meta *OpMeta) [3]*int {
	var out [3]*int
	args := []*int{&in.Arg, &in.Arg2}
	for i, m := range meta.Imms() {
		switch m.Type {
		case ImmNone:
		case ImmTarget:
			out[i] = &in.Jump
		default:
			out[i] = args[0]
			args = args[1:]
		}
	}
	return out
}

// Imms returns the instruction's immediates in encoded form.
func (in *Inst) Imms() (imm0, imm1, imm2 uint64) {
	meta := in.Code.Meta()
	var raw [3]uint64
	for i, ptr := range in.slots(meta) {
		if ptr != nil {
			raw[i] = s2u(int64(*ptr))
		}
	}
	return raw[0], raw[1], raw[2]
}

// SetImms is the inverse of Imms.
func (in *Inst) SetImms(imm0, imm1, imm2 uint64) {
	meta := in.Code.Meta()
	raw := [3]uint64{imm0, imm1, imm2}
	for i, ptr := range in.slots(meta) {
		if ptr != nil {
			*ptr = int(u2s(raw[i]))
		}
	}
}

// String provides a programmer-friendly debugging string for the Inst.
func (in *Inst) String() string {
	var buf bytes.Buffer
	meta := in.Code.Meta()
	buf.WriteString(meta.Name)
	buf.WriteByte('<')
	first := true
	imms := [3]uint64{}
	imms[0], imms[1], imms[2] = in.Imms()
	for i, m := range meta.Imms() {
		if m.IsPresent(imms[i]) {
			if !first {
				buf.WriteByte(',')
			}
			fmt.Fprintf(&buf, "%d", u2s(imms[i]))
			first = false
		}
	}
	buf.WriteByte('>')
	return buf.String()
}

// Encode returns the bytecode for in.
func (in *Inst) Encode() []byte {
	imm0, imm1, imm2 := in.Imms()
	return in.Code.Meta().Encode(imm0, imm1, imm2)
}

// decodeInst decodes one instruction from stream at offset off, returning
// the instruction and its encoded length.
func decodeInst(stream []byte, off int) (Inst, int, error) {
	var in Inst
	if off >= len(stream) {
		return in, 0, io.EOF
	}

	byte0 := stream[off]
	length := 1

	var a, b, c, d byte
	if (byte0 & 0x80) == 0x80 {
		if off+1 >= len(stream) {
			return in, 0, &DecodeError{Err: io.ErrUnexpectedEOF, Offset: off}
		}
		byte1 := stream[off+1]
		length = 2
		a = ((byte0 & 0x7e) >> 1)
		b = ((byte0 & 0x01) << 2) | ((byte1 & 0xc0) >> 6)
		c = ((byte1 & 0x38) >> 3)
		d = (byte1 & 0x07)
	} else {
		a = ((byte0 & 0x70) >> 4)
		b = ((byte0 & 0x0c) >> 2)
		c = (byte0 & 0x03)
	}

	len0, ok0 := ImmLengthDecode(b)
	len1, ok1 := ImmLengthDecode(c)
	len2, ok2 := ImmLengthDecode(d)
	if !ok0 || !ok1 || !ok2 {
		return in, 0, &DecodeError{Err: ErrBadImmediateLen, Offset: off}
	}

	i := off + length
	j := i + int(len0)
	k := j + int(len1)
	l := k + int(len2)
	if l > len(stream) {
		return in, 0, &DecodeError{Err: io.ErrUnexpectedEOF, Offset: off}
	}

	meta := OpCode(a).Meta()
	if meta.Illegal {
		return in, 0, &DecodeError{Err: ErrUnknownOpcode, Offset: off}
	}

	var imms [3]uint64
	for n, pair := range []struct {
		m   ImmMeta
		raw []byte
	}{
		{meta.Imm0, stream[i:j]},
		{meta.Imm1, stream[j:k]},
		{meta.Imm2, stream[k:l]},
	} {
		v, err := pair.m.Decode(pair.raw)
		if err != nil {
			return in, 0, &DecodeError{Err: err, Offset: off}
		}
		imms[n] = v
	}

	in.Code = meta.Code
	in.SetImms(imms[0], imms[1], imms[2])
	return in, l - off, nil
}
