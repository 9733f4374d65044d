package peg

import (
	"github.com/chronos-tachyon/go-packrat/byteset"
)

// OptimizeOptions selects the rewrites performed by Optimize.
type OptimizeOptions struct {
	// Simplify enables redundant-node elimination: flattening, literal
	// merging and single-byte class folding.
	Simplify bool

	// Predict enables first-byte prediction tables on choices whose
	// alternatives cannot overlap.
	Predict bool

	// AutoMemo assigns memo points to productions referenced from at least
	// AutoMemoMinRefs sites, in addition to productions marked Memo.
	AutoMemo        bool
	AutoMemoMinRefs int
}

// DefaultOptimizeOptions returns the options used when the caller has no
// preference.
func DefaultOptimizeOptions() OptimizeOptions {
	return OptimizeOptions{
		Simplify:        true,
		Predict:         true,
		AutoMemoMinRefs: 2,
	}
}

// Optimize validates g and returns a rewritten copy annotated with
// prediction tables, memo points and statefulness. g is not modified.
func Optimize(g *Grammar, opts OptimizeOptions) (*Grammar, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}

	out := NewGrammar(g.Start)
	for _, p := range g.Productions {
		body := p.Body
		if opts.Simplify {
			body = Rewrite(body, simplify)
		}
		out.add(&Production{Name: p.Name, Body: body, Memo: p.Memo, MemoID: -1})
	}

	a := Analyze(out)
	for _, p := range out.Productions {
		name := p.Name
		p.Body = Rewrite(p.Body, func(e Expr) Expr {
			c, ok := e.(*Choice)
			if !ok {
				return e
			}
			c.Predict = nil
			if opts.Predict {
				c.Predict = a.Predict(c)
				if c.Predict != nil {
					log.Debugf("%s: predicting choice of %d alternatives", name, len(c.Alts))
				}
			}
			return c
		})
	}

	assignMemoPoints(out, opts)
	markStateful(out)
	return out, nil
}

func assignMemoPoints(g *Grammar, opts OptimizeOptions) {
	refs := make(map[string]int, len(g.Productions))
	for _, p := range g.Productions {
		Walk(p.Body, func(e Expr) {
			if r, ok := e.(*Ref); ok {
				refs[r.Name]++
			}
		})
	}
	minRefs := opts.AutoMemoMinRefs
	if minRefs < 1 {
		minRefs = 2
	}
	next := 0
	for _, p := range g.Productions {
		auto := opts.AutoMemo && refs[p.Name] >= minRefs && !isPrimitive(p.Body)
		if p.Memo || auto {
			p.MemoID = next
			next++
			log.Debugf("%s: memo point %d (%d references)", p.Name, p.MemoID, refs[p.Name])
		}
	}
}

// markStateful flags every production whose outcome can depend on the
// contents of the symbol table.
func markStateful(g *Grammar) {
	for _, p := range g.Productions {
		Walk(p.Body, func(e Expr) {
			switch e.(type) {
			case *IsSymbol, *Exists, *MatchSymbol:
				p.Stateful = true
			}
		})
	}
	for {
		changed := false
		for _, p := range g.Productions {
			if p.Stateful {
				continue
			}
			Walk(p.Body, func(e Expr) {
				if r, ok := e.(*Ref); ok && g.Lookup(r.Name).Stateful {
					p.Stateful = true
				}
			})
			changed = changed || p.Stateful
		}
		if !changed {
			return
		}
	}
}

func isPrimitive(e Expr) bool {
	switch e.(type) {
	case *Byte, *Set, *Str, *Any, *Empty, *Fail:
		return true
	}
	return false
}

func simplify(e Expr) Expr {
	switch x := e.(type) {
	case *Set:
		d := byteset.Dense(x.Set)
		switch {
		case d.Len() == 1:
			return &Byte{B: onlyByte(d)}
		case d.IsFull():
			return &Any{}
		}
	case *Str:
		switch len(x.Bytes) {
		case 0:
			return &Empty{}
		case 1:
			return &Byte{B: x.Bytes[0]}
		}
	case *Seq:
		return simplifySeq(x)
	case *Choice:
		return simplifyChoice(x)
	case *Not:
		if inner, ok := x.Body.(*Not); ok {
			return &And{Body: inner.Body}
		}
	case *Star:
		if _, ok := x.Body.(*Empty); ok {
			return x.Body
		}
	case *Option:
		if _, ok := x.Body.(*Empty); ok {
			return x.Body
		}
	}
	return e
}

func simplifySeq(x *Seq) Expr {
	flat := make([]Expr, 0, len(x.Items))
	var add func(Expr)
	add = func(item Expr) {
		switch y := item.(type) {
		case *Seq:
			for _, sub := range y.Items {
				add(sub)
			}
		case *Empty:
		default:
			flat = append(flat, item)
		}
	}
	for _, item := range x.Items {
		add(item)
	}

	items := make([]Expr, 0, len(flat))
	for _, item := range flat {
		lit, ok := literalBytes(item)
		if ok && len(items) > 0 {
			if prev, ok := literalBytes(items[len(items)-1]); ok {
				joined := make([]byte, 0, len(prev)+len(lit))
				joined = append(joined, prev...)
				joined = append(joined, lit...)
				items[len(items)-1] = &Str{Bytes: joined}
				continue
			}
		}
		items = append(items, item)
	}

	switch len(items) {
	case 0:
		return &Empty{}
	case 1:
		return items[0]
	}
	return &Seq{Items: items}
}

// simplifyChoice flattens nested choices, merges neighbouring byte classes
// and drops alternatives that cannot change the outcome. A Fail that ends
// the choice stays: it moves the failure of the whole choice back to where
// the choice began.
func simplifyChoice(x *Choice) Expr {
	alts := make([]Expr, 0, len(x.Alts))
	trailingFail := false
	var add func(Expr) bool
	add = func(alt Expr) bool {
		switch y := alt.(type) {
		case *Choice:
			for _, sub := range y.Alts {
				if !add(sub) {
					return false
				}
			}
			return true
		case *Fail:
			trailingFail = true
			return true
		}
		trailingFail = false
		if n := len(alts); n > 0 {
			prev, ok1 := singleByteSet(alts[n-1])
			cur, ok2 := singleByteSet(alt)
			if ok1 && ok2 {
				alts[n-1] = setExpr(prev.Union(cur))
				return true
			}
		}
		alts = append(alts, alt)
		_, isEmpty := alt.(*Empty)
		return !isEmpty
	}
	for _, alt := range x.Alts {
		if !add(alt) {
			break
		}
	}
	if trailingFail && len(alts) > 0 {
		alts = append(alts, &Fail{})
	}

	switch len(alts) {
	case 0:
		return &Fail{}
	case 1:
		return alts[0]
	}
	return &Choice{Alts: alts}
}

func literalBytes(e Expr) ([]byte, bool) {
	switch x := e.(type) {
	case *Byte:
		return []byte{x.B}, true
	case *Str:
		return x.Bytes, true
	}
	return nil, false
}

func singleByteSet(e Expr) (byteset.Set, bool) {
	var s byteset.Set
	switch x := e.(type) {
	case *Byte:
		s.Add(x.B)
	case *Set:
		s = byteset.Dense(x.Set)
	case *Any:
		s = s.Complement()
	default:
		return s, false
	}
	return s, true
}

func setExpr(s byteset.Set) Expr {
	switch {
	case s.Len() == 1:
		return &Byte{B: onlyByte(s)}
	case s.IsFull():
		return &Any{}
	}
	return &Set{Set: s}
}

func onlyByte(s byteset.Set) byte {
	var only byte
	s.ForEach(func(b byte) { only = b })
	return only
}
