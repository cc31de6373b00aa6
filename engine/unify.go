package engine

import (
	"math"
	"math/big"
	"strings"
)

// maxDepth bounds recursion over term structure. Cyclic terms built without
// the occurs check would otherwise overflow the goroutine stack, which is not
// recoverable.
const maxDepth = 1 << 16

type depthExceeded struct{ op string }

func (d depthExceeded) Error() string {
	return d.op + ": term nesting too deep (cyclic term?)"
}

type trailEntry struct {
	v    *Var
	undo func()
}

type trail struct {
	entries []trailEntry
}

func (tr *trail) mark() int { return len(tr.entries) }

func (tr *trail) bind(v *Var, t Term) {
	v.ref = t
	tr.entries = append(tr.entries, trailEntry{v: v})
}

func (tr *trail) onUndo(fn func()) {
	tr.entries = append(tr.entries, trailEntry{undo: fn})
}

func (tr *trail) undoTo(mark int) {
	for i := len(tr.entries) - 1; i >= mark; i-- {
		e := tr.entries[i]
		if e.v != nil {
			e.v.ref = nil
		} else if e.undo != nil {
			e.undo()
		}
		tr.entries[i] = trailEntry{}
	}
	tr.entries = tr.entries[:mark]
}

// unify unifies a and b, recording bindings on the trail. On failure the
// caller is responsible for undoing to a mark taken before the call.
func (tr *trail) unify(a, b Term) bool {
	type pair struct{ a, b Term }
	stack := []pair{{a, b}}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		x, y := Deref(p.a), Deref(p.b)
		if vx, ok := x.(*Var); ok {
			if vy, ok := y.(*Var); ok {
				if vx == vy {
					continue
				}
				// bind the younger variable to the older one
				if vx.id < vy.id {
					tr.bind(vy, vx)
				} else {
					tr.bind(vx, vy)
				}
				continue
			}
			tr.bind(vx, y)
			continue
		}
		if vy, ok := y.(*Var); ok {
			tr.bind(vy, x)
			continue
		}
		switch x := x.(type) {
		case Atom:
			if ya, ok := y.(Atom); !ok || x != ya {
				return false
			}
		case Int:
			if yi, ok := y.(Int); !ok || x.v.Cmp(yi.v) != 0 {
				return false
			}
		case Rat:
			if yr, ok := y.(Rat); !ok || x.v.Cmp(yr.v) != 0 {
				return false
			}
		case Float:
			if yf, ok := y.(Float); !ok || x != yf {
				return false
			}
		case String:
			if ys, ok := y.(String); !ok || x != ys {
				return false
			}
		case *Compound:
			yc, ok := y.(*Compound)
			if !ok || x.Functor != yc.Functor || len(x.Args) != len(yc.Args) {
				return false
			}
			for i := len(x.Args) - 1; i >= 0; i-- {
				stack = append(stack, pair{x.Args[i], yc.Args[i]})
			}
		default:
			return false
		}
	}
	return true
}

// typeRank orders term classes in the standard order of terms.
func typeRank(t Term) int {
	switch t.(type) {
	case *Var:
		return 0
	case Int, Rat, Float:
		return 1
	case Atom:
		return 3
	case String:
		return 4
	default:
		return 5
	}
}

// Compare orders two terms by the standard order of terms and returns -1, 0
// or 1.
func Compare(a, b Term) int {
	return compareDepth(a, b, 0)
}

func compareDepth(a, b Term, depth int) int {
	if depth > maxDepth {
		panic(depthExceeded{op: "compare"})
	}
	for {
		a, b = Deref(a), Deref(b)
		ra, rb := typeRank(a), typeRank(b)
		if ra != rb {
			return sign(ra - rb)
		}
		switch x := a.(type) {
		case *Var:
			y := b.(*Var)
			return sign64(x.id - y.id)
		case Atom:
			return strings.Compare(string(x), string(b.(Atom)))
		case String:
			return strings.Compare(string(x), string(b.(String)))
		case Int, Rat, Float:
			if c := compareNum(a, b); c != 0 {
				return c
			}
			// equal by value: Float precedes Int
			_, fa := a.(Float)
			_, fb := b.(Float)
			switch {
			case fa && !fb:
				return -1
			case !fa && fb:
				return 1
			}
			return 0
		case *Compound:
			y := b.(*Compound)
			if len(x.Args) != len(y.Args) {
				return sign(len(x.Args) - len(y.Args))
			}
			if x.Functor != y.Functor {
				return strings.Compare(string(x.Functor), string(y.Functor))
			}
			last := len(x.Args) - 1
			for i := 0; i < last; i++ {
				if c := compareDepth(x.Args[i], y.Args[i], depth+1); c != 0 {
					return c
				}
			}
			// iterate on the last argument so long lists do not recurse
			a, b = x.Args[last], y.Args[last]
			depth++
			continue
		}
		return 0
	}
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	}
	return 0
}

func sign64(n int64) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	}
	return 0
}

func toRat(t Term) *big.Rat {
	switch t := t.(type) {
	case Int:
		return new(big.Rat).SetInt(t.v)
	case Rat:
		return t.v
	}
	return nil
}

// compareNum compares two numbers by value.
func compareNum(a, b Term) int {
	fa, aIsFloat := a.(Float)
	fb, bIsFloat := b.(Float)
	switch {
	case aIsFloat && bIsFloat:
		return compareFloat(float64(fa), float64(fb))
	case aIsFloat:
		return -compareExactFloat(b, float64(fa))
	case bIsFloat:
		return compareExactFloat(a, float64(fb))
	}
	if ia, ok := a.(Int); ok {
		if ib, ok := b.(Int); ok {
			return ia.v.Cmp(ib.v)
		}
	}
	return toRat(a).Cmp(toRat(b))
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// compareExactFloat compares an exact number with a float.
func compareExactFloat(exact Term, f float64) int {
	switch {
	case f != f: // NaN
		return -1
	case math.IsInf(f, 1):
		return -1
	case math.IsInf(f, -1):
		return 1
	}
	r, ok := new(big.Rat).SetString(big.NewFloat(f).Text('g', -1))
	if !ok {
		return 0
	}
	return toRat(exact).Cmp(r)
}

// copyTerm returns a copy of t with fresh variables. mapping is shared across
// calls so that several terms can be copied consistently.
func copyTerm(t Term, mapping map[*Var]*Var) Term {
	return copyDepth(t, mapping, 0)
}

func copyDepth(t Term, mapping map[*Var]*Var, depth int) Term {
	if depth > maxDepth {
		panic(depthExceeded{op: "copy_term"})
	}
	t = Deref(t)
	switch x := t.(type) {
	case *Var:
		if nv, ok := mapping[x]; ok {
			return nv
		}
		nv := NewVar("")
		mapping[x] = nv
		return nv
	case *Compound:
		if _, ok := isCons(x); ok {
			// copy list spines iteratively
			items, tail := ListSlice(x)
			out := make([]Term, len(items))
			for i, it := range items {
				out[i] = copyDepth(it, mapping, depth+1)
			}
			return ListWithTail(copyDepth(tail, mapping, depth+1), out...)
		}
		args := make([]Term, len(x.Args))
		for i, a := range x.Args {
			args[i] = copyDepth(a, mapping, depth+1)
		}
		return &Compound{Functor: x.Functor, Args: args}
	}
	return t
}

// resolve returns t with all bound variables replaced by their values.
// Unbound variables are kept.
func resolve(t Term) Term {
	return resolveDepth(t, 0)
}

func resolveDepth(t Term, depth int) Term {
	if depth > maxDepth {
		panic(depthExceeded{op: "resolve"})
	}
	t = Deref(t)
	c, ok := t.(*Compound)
	if !ok {
		return t
	}
	if _, ok := isCons(c); ok {
		items, tail := ListSlice(c)
		out := make([]Term, len(items))
		for i, it := range items {
			out[i] = resolveDepth(it, depth+1)
		}
		return ListWithTail(resolveDepth(tail, depth+1), out...)
	}
	args := make([]Term, len(c.Args))
	for i, a := range c.Args {
		args[i] = resolveDepth(a, depth+1)
	}
	return &Compound{Functor: c.Functor, Args: args}
}

// termVars appends the distinct unbound variables of t in depth-first,
// left-to-right order.
func termVars(t Term, acc []*Var, seen map[*Var]bool) []*Var {
	stack := []Term{t}
	for len(stack) > 0 {
		x := Deref(stack[len(stack)-1])
		stack = stack[:len(stack)-1]
		switch x := x.(type) {
		case *Var:
			if !seen[x] {
				seen[x] = true
				acc = append(acc, x)
			}
		case *Compound:
			for i := len(x.Args) - 1; i >= 0; i-- {
				stack = append(stack, x.Args[i])
			}
		}
	}
	return acc
}
