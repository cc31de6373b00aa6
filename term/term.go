package term

import (
	"math/big"
)

// Kind classifies a Term. The numbering is part of the C surface.
type Kind uint8

const (
	KindInteger Kind = iota
	KindRational
	KindFloat
	KindAtom
	KindString
	KindList
	KindCompound
	KindVariable
)

func (k Kind) String() string {
	switch k {
	case KindInteger:
		return "integer"
	case KindRational:
		return "rational"
	case KindFloat:
		return "float"
	case KindAtom:
		return "atom"
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindCompound:
		return "compound"
	case KindVariable:
		return "variable"
	default:
		return "unknown"
	}
}

// Term is an immutable snapshot of an engine term. It holds no reference
// into the machine that produced it.
type Term interface {
	Kind() Kind
	isTerm()
}

// Integer is an arbitrary precision integer.
type Integer struct {
	v *big.Int
}

// NewInteger returns an Integer holding a copy of n.
func NewInteger(n *big.Int) Integer {
	return Integer{v: new(big.Int).Set(n)}
}

// Int64 returns an Integer holding n.
func Int64(n int64) Integer {
	return Integer{v: big.NewInt(n)}
}

// Big returns a copy of the value.
func (i Integer) Big() *big.Int {
	if i.v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(i.v)
}

// Decimal returns the value in base 10.
func (i Integer) Decimal() string {
	if i.v == nil {
		return "0"
	}
	return i.v.String()
}

// Equal reports whether both integers hold the same value.
func (i Integer) Equal(o Integer) bool {
	return i.Big().Cmp(o.Big()) == 0
}

// Rational is a fraction in lowest terms whose denominator is greater than
// one.
type Rational struct {
	num, den *big.Int
}

// NewRational returns r as a Rational. ok is false when r is integral.
func NewRational(r *big.Rat) (Rational, bool) {
	if r.IsInt() {
		return Rational{}, false
	}
	return Rational{num: new(big.Int).Set(r.Num()), den: new(big.Int).Set(r.Denom())}, true
}

// Num returns a copy of the numerator.
func (r Rational) Num() *big.Int {
	if r.num == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(r.num)
}

// Denom returns a copy of the denominator.
func (r Rational) Denom() *big.Int {
	if r.den == nil {
		return big.NewInt(1)
	}
	return new(big.Int).Set(r.den)
}

// Equal reports whether both fractions are the same.
func (r Rational) Equal(o Rational) bool {
	return r.Num().Cmp(o.Num()) == 0 && r.Denom().Cmp(o.Denom()) == 0
}

// Float is an IEEE 754 double.
type Float float64

// Atom is an atom's text.
type Atom string

// String is a string object's text.
type String string

// List is a proper list.
type List []Term

// Compound is a structure with a functor and at least one argument.
type Compound struct {
	Functor string
	Args    []Term
}

// Variable is an unbound variable, identified by name only.
type Variable string

func (Integer) Kind() Kind  { return KindInteger }
func (Rational) Kind() Kind { return KindRational }
func (Float) Kind() Kind    { return KindFloat }
func (Atom) Kind() Kind     { return KindAtom }
func (String) Kind() Kind   { return KindString }
func (List) Kind() Kind     { return KindList }
func (Compound) Kind() Kind { return KindCompound }
func (Variable) Kind() Kind { return KindVariable }

func (Integer) isTerm()  {}
func (Rational) isTerm() {}
func (Float) isTerm()    {}
func (Atom) isTerm()     {}
func (String) isTerm()   {}
func (List) isTerm()     {}
func (Compound) isTerm() {}
func (Variable) isTerm() {}
