// Package ast holds the syntax tree produced by a successful parse and the
// transactional log the virtual machine uses to build it.
package ast

import (
	"bytes"
	"strconv"
)

// Node is one node of a syntax tree. Nodes are immutable once built by
// Log.Commit, and a subtree may be shared by several trees.
type Node struct {
	Tag   string
	Start int
	End   int

	// Value is the captured input text, or the literal set by Replace.
	Value string

	// Labels[i] names Children[i]; an unlabeled child has "".
	Labels   []string
	Children []*Node
}

// Len returns the number of children.
func (n *Node) Len() int {
	if n == nil {
		return 0
	}
	return len(n.Children)
}

// Get returns the first child labeled label, or nil.
func (n *Node) Get(label string) *Node {
	if n == nil {
		return nil
	}
	for i, l := range n.Labels {
		if l == label {
			return n.Children[i]
		}
	}
	return nil
}

// Equal reports whether a and b describe the same tree.
func Equal(a, b *Node) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Tag != b.Tag || a.Start != b.Start || a.End != b.End || a.Value != b.Value {
		return false
	}
	if len(a.Children) != len(b.Children) {
		return false
	}
	for i := range a.Children {
		if a.Labels[i] != b.Labels[i] || !Equal(a.Children[i], b.Children[i]) {
			return false
		}
	}
	return true
}

// String renders the tree as an S-expression:
//
//   (#Add $left=(#Int "1") $right=(#Int "2"))
//
// Leaves show their value; interior nodes show only their children.
func (n *Node) String() string {
	var buf bytes.Buffer
	n.format(&buf)
	return buf.String()
}

func (n *Node) format(buf *bytes.Buffer) {
	if n == nil {
		buf.WriteString("nil")
		return
	}
	buf.WriteString("(#")
	buf.WriteString(n.Tag)
	if len(n.Children) == 0 {
		buf.WriteByte(' ')
		buf.WriteString(strconv.Quote(n.Value))
	}
	for i, child := range n.Children {
		buf.WriteByte(' ')
		if l := n.Labels[i]; l != "" {
			buf.WriteByte('$')
			buf.WriteString(l)
			buf.WriteByte('=')
		}
		child.format(buf)
	}
	buf.WriteByte(')')
}
