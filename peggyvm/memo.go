package peggyvm

import (
	"github.com/codahale/hdrhistogram"
	"github.com/golang/groupcache/lru"

	"github.com/chronos-tachyon/go-packrat/ast"
)

// MemoKey identifies one memoized outcome.
type MemoKey struct {
	Point int
	Pos   int

	// State is the symbol table state for stateful memo points, or 0.
	State uint64
}

// MemoEntry is the recorded outcome of one memoized production call. A
// successful entry carries everything the call did, so that replaying it
// is indistinguishable from running the call again. Machine.Longest is not
// recorded: the original call already raised it, and it never drops during
// a parse.
type MemoEntry struct {
	Failed bool

	// FailedAt is the offset from the call position at which a failed
	// call gave up.
	FailedAt int

	Consumed int
	Log      []ast.Entry
	Symbols  []Symbol
}

// MemoTable stores memoized outcomes for one parse. Entries are never
// replaced: the first Insert for a key wins.
type MemoTable interface {
	Lookup(key MemoKey) (*MemoEntry, bool)
	Insert(key MemoKey, entry *MemoEntry)
	Len() int
}

type mapMemo map[MemoKey]*MemoEntry

// NewMapMemo returns an unbounded MemoTable.
func NewMapMemo() MemoTable {
	return make(mapMemo)
}

func (m mapMemo) Lookup(key MemoKey) (*MemoEntry, bool) {
	e, ok := m[key]
	return e, ok
}

func (m mapMemo) Insert(key MemoKey, entry *MemoEntry) {
	if _, found := m[key]; !found {
		m[key] = entry
	}
}

func (m mapMemo) Len() int { return len(m) }

type lruMemo struct {
	cache *lru.Cache
}

// NewLRUMemo returns a MemoTable holding at most capacity entries, evicting
// the least recently used. Eviction only costs time: an evicted outcome is
// recomputed on the next call.
func NewLRUMemo(capacity int) MemoTable {
	return &lruMemo{cache: lru.New(capacity)}
}

func (m *lruMemo) Lookup(key MemoKey) (*MemoEntry, bool) {
	v, ok := m.cache.Get(key)
	if !ok {
		return nil, false
	}
	return v.(*MemoEntry), true
}

func (m *lruMemo) Insert(key MemoKey, entry *MemoEntry) {
	if _, found := m.cache.Get(key); !found {
		m.cache.Add(key, entry)
	}
}

func (m *lruMemo) Len() int { return m.cache.Len() }

// maxRecordedLength bounds the consumed-length histograms.
const maxRecordedLength = 1 << 30

// MemoStats counts how one memo point performed during a parse.
type MemoStats struct {
	Name     string
	Hits     int64
	FailHits int64
	Misses   int64

	// Consumed records the length consumed by each successful call,
	// whether computed or replayed.
	Consumed *hdrhistogram.Histogram
}

func newMemoStats(name string) *MemoStats {
	return &MemoStats{
		Name:     name,
		Consumed: hdrhistogram.New(1, maxRecordedLength, 3),
	}
}

// HitRatio returns the fraction of lookups served from the table.
func (s *MemoStats) HitRatio() float64 {
	total := s.Hits + s.FailHits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits+s.FailHits) / float64(total)
}

func (s *MemoStats) recordLength(n int) {
	if n > maxRecordedLength {
		n = maxRecordedLength
	}
	// RecordValue only fails for values outside the configured range.
	_ = s.Consumed.RecordValue(int64(n))
}
