package peggyvm

import (
	"bytes"
)

// Symbol is one entry of a SymbolTable.
type Symbol struct {
	Table string
	Value []byte

	// Mask entries hide every older entry of the same table.
	Mask bool

	id uint64
}

// SymbolTable is a scoped table of byte strings used by context-sensitive
// grammars. It is a stack: a save point is its height, and rolling back
// truncates it.
type SymbolTable struct {
	entries []Symbol
	nextID  uint64
}

// NewSymbolTable returns an empty table.
func NewSymbolTable() *SymbolTable {
	return &SymbolTable{nextID: 1}
}

// SavePoint returns a mark for the current contents.
func (st *SymbolTable) SavePoint() int { return len(st.entries) }

// Rollback discards every entry added after sp.
func (st *SymbolTable) Rollback(sp int) {
	assert(sp <= len(st.entries), "rollback past the top of the symbol table")
	tail := st.entries[sp:]
	for i := range tail {
		tail[i] = Symbol{}
	}
	st.entries = st.entries[:sp]
}

func (st *SymbolTable) push(sym Symbol) {
	if st.nextID == 0 {
		st.nextID = 1
	}
	sym.id = st.nextID
	st.nextID++
	st.entries = append(st.entries, sym)
}

// Add defines value in table. value is retained.
func (st *SymbolTable) Add(table string, value []byte) {
	st.push(Symbol{Table: table, Value: value})
}

// AddMask hides the current entries of table until the mask is rolled back.
func (st *SymbolTable) AddMask(table string) {
	st.push(Symbol{Table: table, Mask: true})
}

// Get returns the latest visible value of table.
func (st *SymbolTable) Get(table string) ([]byte, bool) {
	for i := len(st.entries) - 1; i >= 0; i-- {
		e := &st.entries[i]
		if e.Table != table {
			continue
		}
		if e.Mask {
			return nil, false
		}
		return e.Value, true
	}
	return nil, false
}

// Contains returns true iff value is one of the visible values of table.
func (st *SymbolTable) Contains(table string, value []byte) bool {
	for i := len(st.entries) - 1; i >= 0; i-- {
		e := &st.entries[i]
		if e.Table != table {
			continue
		}
		if e.Mask {
			return false
		}
		if bytes.Equal(e.Value, value) {
			return true
		}
	}
	return false
}

// State identifies the current contents of the table. Two states are equal
// only if the contents are identical, because entry ids are never reused.
func (st *SymbolTable) State() uint64 {
	return st.StateAt(len(st.entries))
}

// StateAt returns the state the table had at save point sp.
func (st *SymbolTable) StateAt(sp int) uint64 {
	if sp == 0 {
		return 0
	}
	return st.entries[sp-1].id
}

// Since returns a copy of the entries added after sp.
func (st *SymbolTable) Since(sp int) []Symbol {
	if sp == len(st.entries) {
		return nil
	}
	out := make([]Symbol, len(st.entries)-sp)
	copy(out, st.entries[sp:])
	return out
}

// Replay adds previously recorded entries as if they were defined again.
func (st *SymbolTable) Replay(syms []Symbol) {
	for _, sym := range syms {
		st.push(Symbol{Table: sym.Table, Value: sym.Value, Mask: sym.Mask})
	}
}

// Len returns the number of entries, masks included.
func (st *SymbolTable) Len() int { return len(st.entries) }
