package peggyvm

const (
	OpNOP OpCode = iota
	OpALT
	OpCOMMIT
	OpFAIL
	OpANY
	OpBYTE
	OpSTR
	OpSET
	OpJMP
	OpCALL
	OpRET
	OpFIRST
	OpPCOMMIT
	OpBCOMMIT
	OpFAIL2X
	OpPOS
	OpNBYTE
	OpNSTR
	OpNSET
	OpNANY
	OpOBYTE
	OpOSTR
	OpOSET
	OpRBYTE
	OpRSTR
	OpRSET
	OpEXIT
	OpLOOKUP
	OpMEMO
	OpMEMOFAIL
	OpNEW
	OpLFOLD
	OpCAPTURE
	OpTAG
	OpREPLACE
	OpLINKPUSH
	OpLINKPOP
	OpSOPEN
	OpSMASK
	OpSCLOSE
	OpSDEF
	OpSIS
	OpSISA
	OpSEXISTS
	OpSEXISTSSYM
	OpSMATCH
	OpEXT
)

var immSigned = map[ImmType]bool{
	ImmSint: true,
}

func none() ImmMeta                      { return ImmMeta{ImmNone, false, 0} }
func required(t ImmType) ImmMeta         { return ImmMeta{t, true, 0} }
func optional(t ImmType, b byte) ImmMeta { return ImmMeta{t, false, b} }

func op0(code OpCode, name string) OpMeta {
	return OpMeta{Code: code, Imm0: none(), Imm1: none(), Imm2: none(), Name: name}
}

func op1(code OpCode, name string, imm0 ImmMeta) OpMeta {
	return OpMeta{Code: code, Imm0: imm0, Imm1: none(), Imm2: none(), Name: name}
}

func op2(code OpCode, name string, imm0, imm1 ImmMeta) OpMeta {
	return OpMeta{Code: code, Imm0: imm0, Imm1: imm1, Imm2: none(), Name: name}
}

// The eight opcodes below 8 have a one-byte encoding, so they are the ones
// executed most often.
var opMeta = []OpMeta{
	op0(OpNOP, "NOP"),
	op1(OpALT, "ALT", required(ImmTarget)),
	op1(OpCOMMIT, "COMMIT", required(ImmTarget)),
	op0(OpFAIL, "FAIL"),
	op0(OpANY, "ANY"),
	op1(OpBYTE, "BYTE", required(ImmByte)),
	op1(OpSTR, "STR", required(ImmLiteralIdx)),
	op1(OpSET, "SET", required(ImmSetIdx)),

	op1(OpJMP, "JMP", required(ImmTarget)),
	op1(OpCALL, "CALL", required(ImmTarget)),
	op0(OpRET, "RET"),
	op1(OpFIRST, "FIRST", required(ImmTableIdx)),
	op1(OpPCOMMIT, "PCOMMIT", required(ImmTarget)),
	op1(OpBCOMMIT, "BCOMMIT", required(ImmTarget)),
	op0(OpFAIL2X, "FAIL2X"),
	op0(OpPOS, "POS"),

	op1(OpNBYTE, "NBYTE", required(ImmByte)),
	op1(OpNSTR, "NSTR", required(ImmLiteralIdx)),
	op1(OpNSET, "NSET", required(ImmSetIdx)),
	op0(OpNANY, "NANY"),
	op1(OpOBYTE, "OBYTE", required(ImmByte)),
	op1(OpOSTR, "OSTR", required(ImmLiteralIdx)),
	op1(OpOSET, "OSET", required(ImmSetIdx)),
	op1(OpRBYTE, "RBYTE", required(ImmByte)),
	op1(OpRSTR, "RSTR", required(ImmLiteralIdx)),
	op1(OpRSET, "RSET", required(ImmSetIdx)),

	op1(OpEXIT, "EXIT", required(ImmUint)),
	OpMeta{
		Code: OpLOOKUP,
		Imm0: required(ImmMemoIdx),
		Imm1: optional(ImmUint, 0),
		Imm2: required(ImmTarget),
		Name: "LOOKUP",
	},
	op2(OpMEMO, "MEMO", required(ImmMemoIdx), optional(ImmUint, 0)),
	op2(OpMEMOFAIL, "MEMOFAIL", required(ImmMemoIdx), optional(ImmUint, 0)),

	op1(OpNEW, "NEW", optional(ImmSint, 0)),
	op2(OpLFOLD, "LFOLD", required(ImmNameIdx), optional(ImmSint, 0)),
	op1(OpCAPTURE, "CAPTURE", optional(ImmSint, 0)),
	op1(OpTAG, "TAG", required(ImmNameIdx)),
	op1(OpREPLACE, "REPLACE", required(ImmNameIdx)),
	op0(OpLINKPUSH, "LINKPUSH"),
	op2(OpLINKPOP, "LINKPOP", required(ImmNameIdx), optional(ImmSint, 0xff)),

	op0(OpSOPEN, "SOPEN"),
	op1(OpSMASK, "SMASK", required(ImmNameIdx)),
	op0(OpSCLOSE, "SCLOSE"),
	op1(OpSDEF, "SDEF", required(ImmNameIdx)),
	op1(OpSIS, "SIS", required(ImmNameIdx)),
	op1(OpSISA, "SISA", required(ImmNameIdx)),
	op1(OpSEXISTS, "SEXISTS", required(ImmNameIdx)),
	op2(OpSEXISTSSYM, "SEXISTSSYM", required(ImmNameIdx), required(ImmLiteralIdx)),
	op1(OpSMATCH, "SMATCH", required(ImmNameIdx)),
	op1(OpEXT, "EXT", required(ImmExtIdx)),
}

func init() {
	for i := range opMeta {
		assert(opMeta[i].Code == OpCode(i), "opMeta[%d] holds %s", i, opMeta[i].Name)
	}
}
