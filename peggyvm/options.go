package peggyvm

import (
	"github.com/chronos-tachyon/go-packrat/peg"
)

// Options controls Compile.
type Options struct {
	// Optimize runs the grammar optimizer with OptimizeOptions before code
	// generation. Validation and memo point assignment happen either way.
	Optimize        bool
	OptimizeOptions peg.OptimizeOptions

	// Memoize wraps calls to memo-point productions in LOOKUP/MEMO
	// sequences. Without it, memo points are ignored.
	Memoize bool

	// Tree emits the AST instructions. Without it the program only
	// recognizes input and Result.Tree is always nil.
	Tree bool
}

// DefaultOptions returns the options used by most callers: everything on.
func DefaultOptions() Options {
	return Options{
		Optimize:        true,
		OptimizeOptions: peg.DefaultOptimizeOptions(),
		Memoize:         true,
		Tree:            true,
	}
}

// ExecOptions controls a single Machine.
type ExecOptions struct {
	// Memoize enables the memo table. When false, LOOKUP always misses and
	// outcomes are not recorded, which must not change any result.
	Memoize bool

	// MemoCapacity bounds the memo table to that many entries, evicting
	// the least recently used. Zero means unbounded.
	MemoCapacity int

	// Stats collects per-memo-point hit counts and length histograms.
	Stats bool

	// CheckInterval is the number of steps between context checks in
	// RunContext.
	CheckInterval int

	// Workers bounds the number of concurrent machines in ParseAll. Zero
	// or less means one per input.
	Workers int
}

const defaultCheckInterval = 1024

// DefaultExecOptions returns memoization on, unbounded, without stats.
func DefaultExecOptions() ExecOptions {
	return ExecOptions{
		Memoize:       true,
		CheckInterval: defaultCheckInterval,
	}
}
