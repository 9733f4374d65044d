package peggyvm

import (
	"bytes"
	"fmt"

	"github.com/chronos-tachyon/go-packrat/ast"
)

// Result is the outcome of a Machine.
type Result struct {
	Success bool

	// Pos is the final position: the end of the match on success, or
	// where the last failure left the cursor.
	Pos int

	// Longest is the high-water mark of the cursor. It is advisory.
	Longest int

	// Tree is the AST, or nil when the program builds none.
	Tree *ast.Node

	Input []byte
}

// HasUnconsumed returns true iff the match succeeded without reaching the
// end of input.
func (r Result) HasUnconsumed() bool {
	return r.Success && r.Pos < len(r.Input)
}

// Err returns nil on success, or a *SyntaxError locating the failure.
func (r Result) Err() error {
	if r.Success {
		return nil
	}
	line, col := lineCol(r.Input, r.Longest)
	return &SyntaxError{Pos: r.Pos, Longest: r.Longest, Line: line, Col: col}
}

// String provides a programmer-friendly debugging string for the Result.
func (r Result) String() string {
	var buf bytes.Buffer
	buf.WriteByte('{')
	fmt.Fprintf(&buf, "%v %d/%d", r.Success, r.Pos, len(r.Input))
	if !r.Success {
		fmt.Fprintf(&buf, " longest=%d", r.Longest)
	}
	if r.Tree != nil {
		buf.WriteByte(' ')
		buf.WriteString(r.Tree.String())
	}
	buf.WriteByte('}')
	return buf.String()
}

// lineCol returns the 1-based line and byte column of pos.
func lineCol(input []byte, pos int) (int, int) {
	if pos > len(input) {
		pos = len(input)
	}
	head := input[:pos]
	line := 1 + bytes.Count(head, []byte{'\n'})
	col := pos + 1
	if i := bytes.LastIndexByte(head, '\n'); i >= 0 {
		col = pos - i
	}
	return line, col
}
