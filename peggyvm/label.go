package peggyvm

import (
	"fmt"
	"sort"
)

// Label names an instruction index. Production entry points carry public
// labels; the assembler's internal branch targets are private and start
// with a '.'.
type Label struct {
	Index  int
	Public bool
	Name   string
}

func (l *Label) String() string {
	return fmt.Sprintf("%s@%d", l.Name, l.Index)
}

// sortLabels orders labels by index. At a shared index the public label
// comes first, so FindLabel prefers a production name.
func sortLabels(labels []*Label) {
	sort.SliceStable(labels, func(i, j int) bool {
		a, b := labels[i], labels[j]
		switch {
		case a.Index != b.Index:
			return a.Index < b.Index
		case a.Public != b.Public:
			return a.Public
		default:
			return a.Name < b.Name
		}
	})
}
