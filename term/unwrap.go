package term

import (
	"github.com/wippyai/prolog-runtime/errors"
)

// Every Unwrap function is total: on a kind mismatch it returns the zero
// value of each output together with a type mismatch error.

func mismatch(t Term, want Kind) error {
	got := "nil"
	if t != nil {
		got = t.Kind().String()
	}
	return errors.TypeMismatch(errors.PhaseDecode, nil, want.String(), got)
}

// UnwrapInteger returns the decimal text of an Integer.
func UnwrapInteger(t Term) (string, error) {
	i, ok := t.(Integer)
	if !ok {
		return "", mismatch(t, KindInteger)
	}
	return i.Decimal(), nil
}

// UnwrapRational returns the numerator and denominator of a Rational in
// base 10.
func UnwrapRational(t Term) (num, den string, err error) {
	r, ok := t.(Rational)
	if !ok {
		return "", "", mismatch(t, KindRational)
	}
	return r.Num().String(), r.Denom().String(), nil
}

// UnwrapFloat returns the value of a Float.
func UnwrapFloat(t Term) (float64, error) {
	f, ok := t.(Float)
	if !ok {
		return 0, mismatch(t, KindFloat)
	}
	return float64(f), nil
}

// UnwrapAtom returns the text of an Atom.
func UnwrapAtom(t Term) (string, error) {
	a, ok := t.(Atom)
	if !ok {
		return "", mismatch(t, KindAtom)
	}
	return string(a), nil
}

// UnwrapString returns the text of a String.
func UnwrapString(t Term) (string, error) {
	s, ok := t.(String)
	if !ok {
		return "", mismatch(t, KindString)
	}
	return string(s), nil
}

// UnwrapList returns the elements of a List in a new slice whose capacity
// equals its length.
func UnwrapList(t Term) ([]Term, error) {
	l, ok := t.(List)
	if !ok {
		return nil, mismatch(t, KindList)
	}
	return exact(l), nil
}

// UnwrapCompound returns the functor and the arguments of a Compound. The
// argument slice is new and its capacity equals its length.
func UnwrapCompound(t Term) (functor string, args []Term, err error) {
	c, ok := t.(Compound)
	if !ok {
		return "", nil, mismatch(t, KindCompound)
	}
	return c.Functor, exact(c.Args), nil
}

// UnwrapVariable returns the name of a Variable.
func UnwrapVariable(t Term) (string, error) {
	v, ok := t.(Variable)
	if !ok {
		return "", mismatch(t, KindVariable)
	}
	return string(v), nil
}

func exact(items []Term) []Term {
	out := make([]Term, len(items))
	copy(out, items)
	return out
}
