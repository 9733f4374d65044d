package peggyvm

import (
	"fmt"
)

// OpCode identifies an instruction.
type OpCode uint8

// String returns the opcode's mnemonic.
func (code OpCode) String() string {
	return code.Meta().Name
}

// Meta returns the metadata for this opcode. Unknown opcodes yield a
// metadata record with Illegal set.
func (code OpCode) Meta() *OpMeta {
	if int(code) < len(opMeta) {
		return &opMeta[code]
	}
	return &OpMeta{
		Code:    code,
		Name:    fmt.Sprintf("OP%02X", uint8(code)),
		Illegal: true,
	}
}

// ImmType describes how an immediate is interpreted.
type ImmType uint8

const (
	ImmNone ImmType = iota
	ImmUint
	ImmSint
	ImmByte
	ImmTarget
	ImmLiteralIdx
	ImmSetIdx
	ImmNameIdx
	ImmTableIdx
	ImmMemoIdx
	ImmExtIdx
)

// Signed returns true iff immediates of this type are stored in 2's
// complement form.
func (t ImmType) Signed() bool {
	return immSigned[t]
}

// ImmMeta describes one immediate slot of an opcode.
type ImmMeta struct {
	Type ImmType

	// Required is true iff the immediate must always be encoded.
	Required bool

	// PackedDefault is the value assumed when an optional immediate is
	// omitted from the bytecode, in its one-byte encoded form.
	PackedDefault byte
}

// Default returns the value of an omitted immediate.
func (m ImmMeta) Default() uint64 {
	if m.Type == ImmNone || m.Required {
		return 0
	}
	if m.Type.Signed() {
		return s2u(int64(int8(m.PackedDefault)))
	}
	return uint64(m.PackedDefault)
}

// IsPresent returns true iff v would be written out for this slot.
func (m ImmMeta) IsPresent(v uint64) bool {
	if m.Type == ImmNone {
		return false
	}
	return m.Required || v != m.Default()
}

// Encode returns the shortest little-endian encoding of v, or nil when v is
// the default of an optional immediate.
func (m ImmMeta) Encode(v uint64) []byte {
	if m.Type == ImmNone {
		assert(v == 0, "value for absent immediate")
		return nil
	}

	var n int
	if m.Type.Signed() {
		s := u2s(v)
		switch {
		case s >= -0x80 && s < 0x80:
			n = 1
		case s >= -0x8000 && s < 0x8000:
			n = 2
		case s >= -0x80000000 && s < 0x80000000:
			n = 4
		default:
			n = 8
		}
	} else {
		switch {
		case v <= 0xff:
			n = 1
		case v <= 0xffff:
			n = 2
		case v <= 0xffffffff:
			n = 4
		default:
			n = 8
		}
	}

	if n == 1 && !m.Required && byte(v) == m.PackedDefault {
		return nil
	}

	out := make([]byte, n)
	for i := 0; i < n; i++ {
		out[i] = byte(v >> (8 * uint(i)))
	}
	return out
}

// Decode is the inverse of Encode.
func (m ImmMeta) Decode(raw []byte) (uint64, error) {
	if len(raw) == 0 {
		if m.Required {
			return 0, ErrMissingImmediate
		}
		return m.Default(), nil
	}
	if m.Type == ImmNone {
		return 0, ErrUnexpectedImmediate
	}
	var v uint64
	for i, b := range raw {
		v |= uint64(b) << (8 * uint(i))
	}
	if m.Type.Signed() && len(raw) < 8 {
		shift := 64 - 8*uint(len(raw))
		v = s2u(int64(v<<shift) >> shift)
	}
	return v, nil
}

// OpMeta describes an opcode: its mnemonic and the shape of its immediates.
type OpMeta struct {
	Code    OpCode
	Imm0    ImmMeta
	Imm1    ImmMeta
	Imm2    ImmMeta
	Name    string
	Illegal bool
}

// Imms returns the three immediate slots in order.
func (meta *OpMeta) Imms() [3]ImmMeta {
	return [3]ImmMeta{meta.Imm0, meta.Imm1, meta.Imm2}
}

// Encode returns the bytecode for this opcode with the given immediates.
// See the package documentation for the format.
func (meta *OpMeta) Encode(imm0, imm1, imm2 uint64) []byte {
	raw0 := meta.Imm0.Encode(imm0)
	raw1 := meta.Imm1.Encode(imm1)
	raw2 := meta.Imm2.Encode(imm2)

	short := meta.Code < 8 && len(raw2) == 0 && len(raw0) <= 4 && len(raw1) <= 4

	out := make([]byte, 0, 2+len(raw0)+len(raw1)+len(raw2))
	if short {
		b := shortLengthEncode(len(raw0))
		c := shortLengthEncode(len(raw1))
		out = append(out, byte(meta.Code)<<4|b<<2|c)
	} else {
		a := byte(meta.Code) & 0x3f
		b := ImmLengthEncode(len(raw0))
		c := ImmLengthEncode(len(raw1))
		d := ImmLengthEncode(len(raw2))
		out = append(out, 0x80|a<<1|b>>2, (b&0x03)<<6|c<<3|d)
	}
	out = append(out, raw0...)
	out = append(out, raw1...)
	out = append(out, raw2...)
	return out
}

func shortLengthEncode(n int) byte {
	switch n {
	case 0:
		return 0
	case 1:
		return 1
	case 2:
		return 2
	case 4:
		return 3
	}
	panic("invalid short immediate length")
}
