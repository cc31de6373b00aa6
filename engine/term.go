package engine

import (
	"math/big"
	"strconv"
	"sync/atomic"
)

// Term is a Prolog term. The concrete types are Atom, Int, Rat, Float,
// String, *Var and *Compound.
type Term interface {
	term()
}

// Atom is a Prolog atom.
type Atom string

// Int is an arbitrary precision integer. The wrapped value is never mutated.
type Int struct {
	v *big.Int
}

// Rat is a rational number whose denominator is greater than one.
// Integral values are always represented as Int.
type Rat struct {
	v *big.Rat
}

// Float is a double precision float.
type Float float64

// String is a Prolog string object.
type String string

// Var is a logic variable. A bound variable forwards to its value.
type Var struct {
	ref  Term
	name string
	id   int64
}

// Compound is a structure with a functor name and at least one argument.
type Compound struct {
	Functor Atom
	Args    []Term
}

// clauseVar is a variable slot inside a stored clause. It never escapes the
// database; calls rename it to a fresh *Var.
type clauseVar int

func (Atom) term()      {}
func (Int) term()       {}
func (Rat) term()       {}
func (Float) term()     {}
func (String) term()    {}
func (*Var) term()      {}
func (*Compound) term() {}
func (clauseVar) term() {}

const (
	atomNil   Atom = "[]"
	atomDot   Atom = "."
	atomCurly Atom = "{}"
	atomTrue  Atom = "true"
	atomFail  Atom = "fail"
	atomEmpty Atom = ""
	atomMinus Atom = "-"
	atomComma Atom = ","
	atomUser  Atom = "user"
	atomError Atom = "error"
)

var varCounter atomic.Int64

// NewVar returns a fresh unbound variable. name may be empty.
func NewVar(name string) *Var {
	return &Var{id: varCounter.Add(1), name: name}
}

// ID returns the variable's unique id.
func (v *Var) ID() int64 { return v.id }

// Name returns the source name of the variable, or a generated name.
func (v *Var) Name() string {
	if v.name != "" {
		return v.name
	}
	return "_G" + strconv.FormatInt(v.id, 10)
}

// Bound reports whether the variable has a value.
func (v *Var) Bound() bool { return v.ref != nil }

// NewInt returns an Int holding n.
func NewInt(n int64) Int { return Int{v: big.NewInt(n)} }

// NewBigInt returns an Int holding a copy of n.
func NewBigInt(n *big.Int) Int { return Int{v: new(big.Int).Set(n)} }

// Big returns the integer value. Callers must not modify it.
func (i Int) Big() *big.Int { return i.v }

// String returns the decimal form.
func (i Int) String() string { return i.v.String() }

// NewRat returns r normalized: an Int when the denominator is one.
func NewRat(r *big.Rat) Term {
	if r.IsInt() {
		return Int{v: new(big.Int).Set(r.Num())}
	}
	return Rat{v: new(big.Rat).Set(r)}
}

// Big returns the rational value. Callers must not modify it.
func (r Rat) Big() *big.Rat { return r.v }

// Num returns the numerator in lowest terms.
func (r Rat) Num() *big.Int { return r.v.Num() }

// Denom returns the denominator in lowest terms.
func (r Rat) Denom() *big.Int { return r.v.Denom() }

// NewCompound builds a compound term. With no arguments it returns the atom.
func NewCompound(functor Atom, args ...Term) Term {
	if len(args) == 0 {
		return functor
	}
	return &Compound{Functor: functor, Args: args}
}

func comp(functor Atom, args ...Term) *Compound {
	return &Compound{Functor: functor, Args: args}
}

// Arity returns the number of arguments.
func (c *Compound) Arity() int { return len(c.Args) }

// Cons builds a list cell.
func Cons(head, tail Term) Term {
	return &Compound{Functor: atomDot, Args: []Term{head, tail}}
}

// List builds a proper list.
func List(items ...Term) Term {
	return ListWithTail(atomNil, items...)
}

// ListWithTail builds a list of items ending in tail.
func ListWithTail(tail Term, items ...Term) Term {
	l := tail
	for i := len(items) - 1; i >= 0; i-- {
		l = Cons(items[i], l)
	}
	return l
}

// Deref follows variable bindings until it reaches a non-variable or an
// unbound variable.
func Deref(t Term) Term {
	for {
		v, ok := t.(*Var)
		if !ok || v.ref == nil {
			return t
		}
		t = v.ref
	}
}

func isCons(t Term) (*Compound, bool) {
	c, ok := t.(*Compound)
	if !ok || c.Functor != atomDot || len(c.Args) != 2 {
		return nil, false
	}
	return c, true
}

// ListSlice returns the elements of a proper list. The second result is the
// dereferenced tail: atom [] for a proper list, otherwise the offending tail.
func ListSlice(t Term) ([]Term, Term) {
	var items []Term
	t = Deref(t)
	for {
		c, ok := isCons(t)
		if !ok {
			return items, t
		}
		items = append(items, c.Args[0])
		t = Deref(c.Args[1])
	}
}

// IsCallable reports whether t is an atom or compound.
func IsCallable(t Term) bool {
	switch t.(type) {
	case Atom, *Compound:
		return true
	}
	return false
}

func isNumber(t Term) bool {
	switch t.(type) {
	case Int, Rat, Float:
		return true
	}
	return false
}

func isAtomic(t Term) bool {
	switch t.(type) {
	case Atom, Int, Rat, Float, String:
		return true
	}
	return false
}

// Indicator returns Name/Arity for a callable term.
func Indicator(t Term) Term {
	switch t := t.(type) {
	case Atom:
		return comp("/", t, NewInt(0))
	case *Compound:
		return comp("/", t.Functor, NewInt(int64(len(t.Args))))
	}
	return t
}

func nameArity(t Term) (Atom, int, bool) {
	switch t := t.(type) {
	case Atom:
		return t, 0, true
	case *Compound:
		return t.Functor, len(t.Args), true
	}
	return "", 0, false
}
