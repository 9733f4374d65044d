package peggyvm

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/chronos-tachyon/go-packrat/peg"
)

var (
	ErrUnknownOpcode       = errors.New("invalid instruction: unknown opcode")
	ErrBadImmediateLen     = errors.New("invalid instruction: failed to decode length of immediate")
	ErrMissingImmediate    = errors.New("invalid instruction: missing immediate where one was expected")
	ErrUnexpectedImmediate = errors.New("invalid instruction: found immediate where none was expected")
	ErrBadMagic            = errors.New("not a compiled program")
	ErrBadVersion          = errors.New("unsupported bytecode version")
	ErrUnboundExtension    = errors.New("extension has no host implementation")
	ErrExecutionHalted     = errors.New("execution already halted")
	ErrEmptyStack          = errors.New("empty stack")
	ErrWrongFrame          = errors.New("encountered stack frame of the wrong kind")
	ErrIndexRange          = errors.New("index out of range")
	ErrCountRange          = errors.New("count out of range")
	ErrUnexpectedTrailer   = errors.New("unexpected data after the last instruction")
)

// The grammar defects reported by Compile. Each CompileError wraps one of
// these.
var (
	ErrNoStart             = peg.ErrNoStart
	ErrDuplicateProduction = peg.ErrDuplicateProduction
	ErrUnresolvedRef       = peg.ErrUnresolvedRef
	ErrEmptySet            = peg.ErrEmptySet
	ErrNilExpr             = peg.ErrNilExpr
	ErrBadName             = peg.ErrBadName
)

// CompileError is a grammar defect that prevents compilation. No Program is
// produced.
type CompileError struct {
	Production string
	Err        error
}

func (e *CompileError) Error() string {
	if e.Production == "" {
		return fmt.Sprintf("github.com/chronos-tachyon/go-packrat/peggyvm: compile error: %v", e.Err)
	}
	return fmt.Sprintf("github.com/chronos-tachyon/go-packrat/peggyvm: compile error in %q: %v", e.Production, e.Err)
}

func (e *CompileError) Unwrap() error { return e.Err }

// DecodeError is an error encountered while loading serialized bytecode.
// This typically means that corrupt or hostile bytecode is being loaded.
type DecodeError struct {
	Err    error
	Offset int
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("github.com/chronos-tachyon/go-packrat/peggyvm: decode error @ offset %d: %v", e.Offset, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// RuntimeError is an error encountered during the execution of a compiled
// program. This typically means that there is a bug in the VM, or that a
// hand-built Program is malformed.
type RuntimeError struct {
	Err  error
	PC   int
	Pos  int
	Inst *Inst
}

func (e *RuntimeError) Error() string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "github.com/chronos-tachyon/go-packrat/peggyvm: runtime error @ PC %d Pos %d: ", e.PC, e.Pos)
	if e.Inst != nil {
		buf.WriteString(e.Inst.Code.Meta().Name)
		buf.WriteString(": ")
	}
	buf.WriteString(e.Err.Error())
	return buf.String()
}

func (e *RuntimeError) Unwrap() error { return e.Err }

// SyntaxError describes a rejected input.
type SyntaxError struct {
	// Pos is where the machine stood when the parse failed.
	Pos int

	// Longest is the furthest position any attempt reached.
	Longest int

	// Line and Col locate Longest, both counted from 1.
	Line int
	Col  int
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at line %d, column %d (offset %d; rejected at %d)", e.Line, e.Col, e.Longest, e.Pos)
}
