package peg

import (
	"github.com/chronos-tachyon/go-packrat/byteset"
)

// FirstInfo summarizes how an expression can begin.
type FirstInfo struct {
	// Set holds every byte that the expression could consume or look
	// ahead at first. On any other byte it either fails where it started,
	// having examined nothing beyond that byte, or succeeds without
	// consuming input.
	Set byteset.Set

	// Nullable is true if the expression can succeed without consuming
	// input.
	Nullable bool
}

// Analysis caches first-byte information for every production of a grammar.
type Analysis struct {
	g     *Grammar
	prods map[string]FirstInfo
}

// Analyze computes first-byte information for g by fixpoint iteration over
// its productions. Every Ref in g must resolve.
func Analyze(g *Grammar) *Analysis {
	a := &Analysis{g: g, prods: make(map[string]FirstInfo, len(g.Productions))}
	for {
		changed := false
		for _, p := range g.Productions {
			next := a.First(p.Body)
			prev := a.prods[p.Name]
			if next != prev {
				a.prods[p.Name] = next
				changed = true
			}
		}
		if !changed {
			return a
		}
	}
}

// Production returns the first-byte information for the named production.
func (a *Analysis) Production(name string) FirstInfo {
	return a.prods[name]
}

// First returns the first-byte information for e.
func (a *Analysis) First(e Expr) FirstInfo {
	var out FirstInfo
	switch x := e.(type) {
	case *Byte:
		out.Set.Add(x.B)
	case *Set:
		out.Set = byteset.Dense(x.Set)
	case *Str:
		if len(x.Bytes) == 0 {
			out.Nullable = true
		} else {
			out.Set.Add(x.Bytes[0])
		}
	case *Any:
		out.Set = byteset.Set{}.Complement()
	case *Seq:
		out.Nullable = true
		for _, item := range x.Items {
			fi := a.First(item)
			out.Set = out.Set.Union(fi.Set)
			if !fi.Nullable {
				out.Nullable = false
				break
			}
		}
	case *Choice:
		for _, alt := range x.Alts {
			fi := a.First(alt)
			out.Set = out.Set.Union(fi.Set)
			out.Nullable = out.Nullable || fi.Nullable
		}
	case *Star:
		out.Set = a.First(x.Body).Set
		out.Nullable = true
	case *Option:
		out.Set = a.First(x.Body).Set
		out.Nullable = true
	case *Plus:
		out = a.First(x.Body)
	case *Ref:
		out = a.prods[x.Name]
	case *Link:
		out = a.First(x.Body)
	case *DefSymbol:
		out = a.First(x.Body)
	case *IsSymbol:
		out = a.First(x.Body)
	case *Scope:
		out = a.First(x.Body)
	case *Local:
		out = a.First(x.Body)
	case *And:
		out.Set = a.First(x.Body).Set
		out.Nullable = true
	case *Not:
		out.Set = a.First(x.Body).Set
		out.Nullable = true
	case *MatchSymbol, *Extension:
		out.Set = byteset.Set{}.Complement()
		out.Nullable = true
	case *Fail:
		// matches nothing
	default:
		// predicates, AST and symbol-table operators, Empty
		out.Nullable = true
	}
	return out
}

// Predict builds a prediction table for c, or returns nil if some
// alternative can match without consuming input or two alternatives can
// start with the same byte.
func (a *Analysis) Predict(c *Choice) *Prediction {
	if len(c.Alts) < 2 {
		return nil
	}
	pred := &Prediction{}
	for i := range pred.Alt {
		pred.Alt[i] = -1
	}
	var seen byteset.Set
	for i, alt := range c.Alts {
		fi := a.First(alt)
		if fi.Nullable || fi.Set.Intersects(seen) {
			return nil
		}
		seen = seen.Union(fi.Set)
		fi.Set.ForEach(func(b byte) {
			pred.Alt[b] = int16(i)
		})
	}
	return pred
}
