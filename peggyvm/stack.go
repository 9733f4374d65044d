package peggyvm

import (
	"github.com/chronos-tachyon/go-packrat/ast"
)

type frameKind uint8

const (
	// callFrame is pushed by CALL and popped by RET.
	callFrame frameKind = iota

	// choiceFrame is pushed by ALT and popped by COMMIT, BCOMMIT, FAIL2X,
	// MEMO or a failure.
	choiceFrame

	// posFrame is pushed by POS and popped by SDEF, SIS and SISA.
	posFrame

	// linkFrame is pushed by LINKPUSH and popped by LINKPOP.
	linkFrame

	// scopeFrame is pushed by SOPEN and SMASK and popped by SCLOSE.
	scopeFrame
)

var frameKindNames = []string{"call", "choice", "pos", "link", "scope"}

func (k frameKind) String() string {
	return frameKindNames[k]
}

// frame is a single frame on the machine stack. Only choice frames are
// restored by a failure; every other kind is discarded.
type frame struct {
	kind frameKind

	// next is the return address of a call frame or the failure target of
	// a choice frame.
	next int

	// pos is the input position to restore (choice) or the start of the
	// span being recorded (pos).
	pos int

	// log is the AST log checkpoint to restore (choice) or commit (link).
	log ast.Mark

	// sym is the symbol table save point to restore (choice, scope).
	sym int
}
