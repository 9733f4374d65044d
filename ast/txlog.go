package ast

import (
	"fmt"
)

// Kind identifies the operation recorded by an Entry.
type Kind uint8

const (
	KindNew Kind = iota
	KindLeftFold
	KindCapture
	KindTag
	KindReplace
	KindLink
)

var kindNames = []string{"new", "lfold", "capture", "tag", "replace", "link"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Entry is one tree-construction event.
type Entry struct {
	Kind Kind

	// Pos is the input offset for New, LeftFold and Capture.
	Pos int

	// Label names the folded child for LeftFold and the linked child for
	// Link.
	Label string

	// Value is the tag name for Tag and the literal for Replace.
	Value string

	// Index is the explicit child slot for Link, or -1 to append.
	Index int

	// Node is the linked child for Link. It may be nil.
	Node *Node
}

func (e Entry) String() string {
	switch e.Kind {
	case KindNew, KindCapture:
		return fmt.Sprintf("%s %d", e.Kind, e.Pos)
	case KindLeftFold:
		return fmt.Sprintf("%s %d $%s", e.Kind, e.Pos, e.Label)
	case KindTag:
		return "tag #" + e.Value
	case KindReplace:
		return fmt.Sprintf("replace %q", e.Value)
	default:
		return fmt.Sprintf("link $%s[%d] %s", e.Label, e.Index, e.Node)
	}
}

// Mark is a checkpoint in a Log.
type Mark int

// Log is an append-only record of tree-construction events with
// checkpoint, commit and abort.
//
// Entries live in one slice: a Mark is the slice length, Abort truncates,
// and the backing array is reused by later appends.
type Log struct {
	input   []byte
	entries []Entry
}

// NewLog returns an empty log whose captures refer to input.
func NewLog(input []byte) *Log {
	return &Log{input: input}
}

// Mark returns a checkpoint for the current end of the log.
func (l *Log) Mark() Mark { return Mark(len(l.entries)) }

// Len returns the number of live entries.
func (l *Log) Len() int { return len(l.entries) }

// New opens a node starting at pos.
func (l *Log) New(pos int) {
	l.entries = append(l.entries, Entry{Kind: KindNew, Pos: pos})
}

// LeftFold makes the node built so far child label of a new node.
func (l *Log) LeftFold(pos int, label string) {
	l.entries = append(l.entries, Entry{Kind: KindLeftFold, Pos: pos, Label: label})
}

// Capture closes the current node at pos.
func (l *Log) Capture(pos int) {
	l.entries = append(l.entries, Entry{Kind: KindCapture, Pos: pos})
}

// Tag names the current node.
func (l *Log) Tag(name string) {
	l.entries = append(l.entries, Entry{Kind: KindTag, Value: name})
}

// Replace overrides the value of the current node.
func (l *Log) Replace(value string) {
	l.entries = append(l.entries, Entry{Kind: KindReplace, Value: value})
}

// Link attaches n as a child of the current node. A negative index
// appends.
func (l *Log) Link(label string, index int, n *Node) {
	l.entries = append(l.entries, Entry{Kind: KindLink, Label: label, Index: index, Node: n})
}

// Abort discards every entry recorded after m.
func (l *Log) Abort(m Mark) {
	tail := l.entries[m:]
	for i := range tail {
		tail[i] = Entry{}
	}
	l.entries = l.entries[:m]
}

// Since returns a copy of the entries recorded after m.
func (l *Log) Since(m Mark) []Entry {
	if int(m) == len(l.entries) {
		return nil
	}
	out := make([]Entry, len(l.entries)-int(m))
	copy(out, l.entries[m:])
	return out
}

// Replay appends previously recorded entries.
func (l *Log) Replay(es []Entry) {
	l.entries = append(l.entries, es...)
}

// Reset empties the log and rebinds it to input.
func (l *Log) Reset(input []byte) {
	l.Abort(0)
	l.input = input
}

type builder struct {
	open     bool
	tag      string
	start    int
	end      int
	value    string
	replaced bool
	labels   []string
	children []*Node
}

func (b *builder) link(label string, index int, n *Node) {
	if n == nil {
		return
	}
	if index < 0 {
		b.labels = append(b.labels, label)
		b.children = append(b.children, n)
		return
	}
	for len(b.children) <= index {
		b.labels = append(b.labels, "")
		b.children = append(b.children, nil)
	}
	b.labels[index] = label
	b.children[index] = n
}

func (b *builder) build(input []byte) *Node {
	n := &Node{Tag: b.tag, Start: b.start, End: b.end}
	if n.End < n.Start {
		n.End = n.Start
	}
	if b.replaced {
		n.Value = b.value
	} else if n.Start <= len(input) && n.End <= len(input) {
		n.Value = string(input[n.Start:n.End])
	}
	for i, child := range b.children {
		if child != nil {
			n.Labels = append(n.Labels, b.labels[i])
			n.Children = append(n.Children, child)
		}
	}
	return n
}

// Commit folds every entry recorded after m into one node, discards those
// entries and returns the node.
//
// A New restarts construction. A LeftFold turns the node built so far into
// the first child of a new node that starts at the LeftFold's position. When no New or
// LeftFold was recorded, the result is the last linked child, or nil.
// Explicitly indexed children whose slots are never filled are dropped.
func (l *Log) Commit(m Mark) *Node {
	var cur builder
	var loose *Node
	for _, e := range l.entries[m:] {
		switch e.Kind {
		case KindNew:
			cur = builder{open: true, start: e.Pos, end: e.Pos}
		case KindLeftFold:
			if !cur.open {
				cur = builder{open: true, start: e.Pos, end: e.Pos}
				if loose != nil {
					cur.link(e.Label, -1, loose)
				}
				continue
			}
			folded := cur.build(l.input)
			cur = builder{open: true, start: e.Pos, end: e.Pos}
			cur.link(e.Label, -1, folded)
		case KindCapture:
			if cur.open {
				cur.end = e.Pos
			}
		case KindTag:
			cur.tag = e.Value
		case KindReplace:
			cur.value = e.Value
			cur.replaced = true
		case KindLink:
			if cur.open {
				cur.link(e.Label, e.Index, e.Node)
			} else if e.Node != nil {
				loose = e.Node
			}
		}
	}
	var n *Node
	if cur.open {
		n = cur.build(l.input)
	} else {
		n = loose
	}
	l.Abort(m)
	return n
}
