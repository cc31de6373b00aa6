package engine

import (
	"math"
	"math/big"
)

// maxPowBits bounds the size of integer powers and shifts.
const maxPowBits = 1 << 24

var bigOne = big.NewInt(1)

func (s *solver) eval(t Term) (Term, error) {
	return s.evalDepth(t, 0)
}

func (s *solver) evalDepth(t Term, depth int) (Term, error) {
	if depth > maxDepth {
		panic(depthExceeded{op: "is"})
	}
	t = Deref(t)
	switch x := t.(type) {
	case Int, Rat:
		return x, nil
	case Float:
		return x, nil
	case *Var:
		return nil, instantiationError()
	case Atom:
		return evalConst(x)
	case String:
		if r := []rune(string(x)); len(r) == 1 {
			return NewInt(int64(r[0])), nil
		}
		return nil, typeError("evaluable", x)
	case *Compound:
		if c, ok := isCons(x); ok {
			if Deref(c.Args[1]) != atomNil {
				return nil, typeError("evaluable", Indicator(x))
			}
			return s.evalDepth(c.Args[0], depth+1)
		}
		switch len(x.Args) {
		case 1:
			fn, ok := unaryOps[x.Functor]
			if !ok {
				return nil, typeError("evaluable", Indicator(x))
			}
			a, err := s.evalDepth(x.Args[0], depth+1)
			if err != nil {
				return nil, err
			}
			return fn(a)
		case 2:
			fn, ok := binaryOps[x.Functor]
			if !ok {
				return nil, typeError("evaluable", Indicator(x))
			}
			a, err := s.evalDepth(x.Args[0], depth+1)
			if err != nil {
				return nil, err
			}
			b, err := s.evalDepth(x.Args[1], depth+1)
			if err != nil {
				return nil, err
			}
			if x.Functor == "/" && s.e.flagAtom("prefer_rationals") == "true" {
				return ratDivide(a, b)
			}
			return fn(a, b)
		}
		return nil, typeError("evaluable", Indicator(x))
	}
	return nil, typeError("evaluable", t)
}

func evalConst(a Atom) (Term, error) {
	switch a {
	case "pi":
		return Float(math.Pi), nil
	case "e":
		return Float(math.E), nil
	case "inf", "infinite":
		return Float(math.Inf(1)), nil
	case "nan":
		return Float(math.NaN()), nil
	case "epsilon":
		return Float(math.Nextafter(1, 2) - 1), nil
	case "max_tagged_integer":
		return NewInt(1<<60 - 1), nil
	case "[]":
		return nil, typeError("evaluable", a)
	}
	return nil, typeError("evaluable", Indicator(a))
}

type unaryFn func(Term) (Term, error)
type binaryFn func(Term, Term) (Term, error)

var unaryOps map[Atom]unaryFn
var binaryOps map[Atom]binaryFn

func init() {
	unaryOps = map[Atom]unaryFn{
		"-":                     arithNeg,
		"+":                     func(a Term) (Term, error) { return a, nil },
		"abs":                   arithAbs,
		"sign":                  arithSign,
		"sqrt":                  floatFn(math.Sqrt, func(x float64) bool { return x >= 0 }),
		"sin":                   floatFn(math.Sin, nil),
		"cos":                   floatFn(math.Cos, nil),
		"tan":                   floatFn(math.Tan, nil),
		"asin":                  floatFn(math.Asin, func(x float64) bool { return x >= -1 && x <= 1 }),
		"acos":                  floatFn(math.Acos, func(x float64) bool { return x >= -1 && x <= 1 }),
		"atan":                  floatFn(math.Atan, nil),
		"sinh":                  floatFn(math.Sinh, nil),
		"cosh":                  floatFn(math.Cosh, nil),
		"tanh":                  floatFn(math.Tanh, nil),
		"asinh":                 floatFn(math.Asinh, nil),
		"acosh":                 floatFn(math.Acosh, func(x float64) bool { return x >= 1 }),
		"atanh":                 floatFn(math.Atanh, func(x float64) bool { return x > -1 && x < 1 }),
		"exp":                   floatFn(math.Exp, nil),
		"log":                   floatFn(math.Log, func(x float64) bool { return x > 0 }),
		"log2":                  floatFn(math.Log2, func(x float64) bool { return x > 0 }),
		"float":                 func(a Term) (Term, error) { return toFloat(a) },
		"integer":               arithInteger,
		"float_integer_part":    floatFn(func(x float64) float64 { i, _ := math.Modf(x); return i }, nil),
		"float_fractional_part": floatFn(func(x float64) float64 { _, f := math.Modf(x); return f }, nil),
		"truncate":              roundFn(roundTrunc),
		"round":                 roundFn(roundNearest),
		"ceiling":               roundFn(roundCeil),
		"floor":                 roundFn(roundFloor),
		"\\":                    intFn1(func(x *big.Int) (*big.Int, error) { return new(big.Int).Not(x), nil }),
		"msb":                   intFn1(arithMsb),
		"numerator":             arithNumerator,
		"denominator":           arithDenominator,
		"rational":              arithRational,
		"rationalize":           arithRational,
		"succ":                  func(a Term) (Term, error) { return arithAdd(a, NewInt(1)) },
	}

	binaryOps = map[Atom]binaryFn{
		"+":        arithAdd,
		"-":        arithSub,
		"*":        arithMul,
		"/":        arithDiv,
		"//":       intFn2(arithIntDiv),
		"mod":      intFn2(arithMod),
		"rem":      intFn2(arithRem),
		"div":      intFn2(arithFloorDiv),
		"min":      func(a, b Term) (Term, error) { return pick(a, b, -1), nil },
		"max":      func(a, b Term) (Term, error) { return pick(a, b, 1), nil },
		"**":       arithPow,
		"^":        arithCaret,
		"rdiv":     arithRdiv,
		">>":       intFn2(arithShr),
		"<<":       intFn2(arithShl),
		"/\\":      intFn2(func(x, y *big.Int) (*big.Int, error) { return new(big.Int).And(x, y), nil }),
		"\\/":      intFn2(func(x, y *big.Int) (*big.Int, error) { return new(big.Int).Or(x, y), nil }),
		"xor":      intFn2(func(x, y *big.Int) (*big.Int, error) { return new(big.Int).Xor(x, y), nil }),
		"gcd":      intFn2(func(x, y *big.Int) (*big.Int, error) { return new(big.Int).GCD(nil, nil, new(big.Int).Abs(x), new(big.Int).Abs(y)), nil }),
		"atan2":    floatFn2(math.Atan2),
		"atan":     floatFn2(math.Atan2),
		"copysign": floatFn2(math.Copysign),
		"log":      floatFn2(func(b, x float64) float64 { return math.Log(x) / math.Log(b) }),
	}
}

func toFloat(t Term) (Float, error) {
	switch x := t.(type) {
	case Float:
		return x, nil
	case Int:
		f, _ := new(big.Float).SetInt(x.v).Float64()
		if math.IsInf(f, 0) {
			return 0, evaluationError("float_overflow")
		}
		return Float(f), nil
	case Rat:
		f, _ := x.v.Float64()
		if math.IsInf(f, 0) {
			return 0, evaluationError("float_overflow")
		}
		return Float(f), nil
	}
	return 0, typeError("evaluable", t)
}

// checkFloat rejects results that overflowed or became undefined from finite
// inputs.
func checkFloat(f float64, inputs ...float64) (Term, error) {
	for _, in := range inputs {
		if math.IsInf(in, 0) || math.IsNaN(in) {
			return Float(f), nil
		}
	}
	switch {
	case math.IsNaN(f):
		return nil, evaluationError("undefined")
	case math.IsInf(f, 0):
		return nil, evaluationError("float_overflow")
	}
	return Float(f), nil
}

func floatFn(fn func(float64) float64, domain func(float64) bool) unaryFn {
	return func(a Term) (Term, error) {
		f, err := toFloat(a)
		if err != nil {
			return nil, err
		}
		if domain != nil && !domain(float64(f)) && !math.IsNaN(float64(f)) {
			return nil, evaluationError("undefined")
		}
		return checkFloat(fn(float64(f)), float64(f))
	}
}

func floatFn2(fn func(float64, float64) float64) binaryFn {
	return func(a, b Term) (Term, error) {
		x, err := toFloat(a)
		if err != nil {
			return nil, err
		}
		y, err := toFloat(b)
		if err != nil {
			return nil, err
		}
		return checkFloat(fn(float64(x), float64(y)), float64(x), float64(y))
	}
}

func intFn1(fn func(*big.Int) (*big.Int, error)) unaryFn {
	return func(a Term) (Term, error) {
		x, ok := a.(Int)
		if !ok {
			return nil, typeError("integer", a)
		}
		r, err := fn(x.v)
		if err != nil {
			return nil, err
		}
		return Int{v: r}, nil
	}
}

func intFn2(fn func(*big.Int, *big.Int) (*big.Int, error)) binaryFn {
	return func(a, b Term) (Term, error) {
		x, ok := a.(Int)
		if !ok {
			return nil, typeError("integer", a)
		}
		y, ok := b.(Int)
		if !ok {
			return nil, typeError("integer", b)
		}
		r, err := fn(x.v, y.v)
		if err != nil {
			return nil, err
		}
		return Int{v: r}, nil
	}
}

type roundMode uint8

const (
	roundTrunc roundMode = iota
	roundNearest
	roundCeil
	roundFloor
)

func roundFn(mode roundMode) unaryFn {
	return func(a Term) (Term, error) {
		switch x := a.(type) {
		case Int:
			return x, nil
		case Rat:
			return Int{v: roundRat(x.v, mode)}, nil
		case Float:
			f := float64(x)
			switch mode {
			case roundTrunc:
				f = math.Trunc(f)
			case roundNearest:
				f = math.Round(f)
			case roundCeil:
				f = math.Ceil(f)
			case roundFloor:
				f = math.Floor(f)
			}
			return floatToInt(f)
		}
		return nil, typeError("evaluable", a)
	}
}

// roundRat rounds exactly. The denominator is always positive, so Div is
// floor division.
func roundRat(r *big.Rat, mode roundMode) *big.Int {
	n, d := r.Num(), r.Denom()
	switch mode {
	case roundTrunc:
		return new(big.Int).Quo(n, d)
	case roundFloor:
		return new(big.Int).Div(n, d)
	case roundCeil:
		q := new(big.Int).Div(new(big.Int).Neg(n), d)
		return q.Neg(q)
	}
	// halves round away from zero
	q := new(big.Int).Lsh(new(big.Int).Abs(n), 1)
	q.Add(q, d)
	q.Div(q, new(big.Int).Lsh(d, 1))
	if n.Sign() < 0 {
		q.Neg(q)
	}
	return q
}

func floatToInt(f float64) (Term, error) {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return nil, evaluationError("undefined")
	}
	bf := new(big.Float).SetFloat64(f)
	i, _ := bf.Int(nil)
	return Int{v: i}, nil
}

func arithInteger(a Term) (Term, error) {
	return roundFn(roundNearest)(a)
}

func arithNeg(a Term) (Term, error) {
	switch x := a.(type) {
	case Int:
		return Int{v: new(big.Int).Neg(x.v)}, nil
	case Rat:
		return Rat{v: new(big.Rat).Neg(x.v)}, nil
	case Float:
		return -x, nil
	}
	return nil, typeError("evaluable", a)
}

func arithAbs(a Term) (Term, error) {
	switch x := a.(type) {
	case Int:
		return Int{v: new(big.Int).Abs(x.v)}, nil
	case Rat:
		return Rat{v: new(big.Rat).Abs(x.v)}, nil
	case Float:
		return Float(math.Abs(float64(x))), nil
	}
	return nil, typeError("evaluable", a)
}

func arithSign(a Term) (Term, error) {
	switch x := a.(type) {
	case Int:
		return NewInt(int64(x.v.Sign())), nil
	case Rat:
		return NewInt(int64(x.v.Sign())), nil
	case Float:
		switch {
		case x > 0:
			return Float(1), nil
		case x < 0:
			return Float(-1), nil
		}
		return x, nil
	}
	return nil, typeError("evaluable", a)
}

func arithMsb(x *big.Int) (*big.Int, error) {
	if x.Sign() <= 0 {
		return nil, typeError("positive_integer", Int{v: x})
	}
	return big.NewInt(int64(x.BitLen() - 1)), nil
}

func arithNumerator(a Term) (Term, error) {
	switch x := a.(type) {
	case Int:
		return x, nil
	case Rat:
		return Int{v: new(big.Int).Set(x.v.Num())}, nil
	}
	return nil, typeError("rational", a)
}

func arithDenominator(a Term) (Term, error) {
	switch a.(type) {
	case Int:
		return NewInt(1), nil
	case Rat:
		return Int{v: new(big.Int).Set(a.(Rat).v.Denom())}, nil
	}
	return nil, typeError("rational", a)
}

func arithRational(a Term) (Term, error) {
	switch x := a.(type) {
	case Int, Rat:
		return x, nil
	case Float:
		if math.IsInf(float64(x), 0) || math.IsNaN(float64(x)) {
			return nil, evaluationError("undefined")
		}
		r := new(big.Rat)
		r.SetFloat64(float64(x))
		return NewRat(r), nil
	}
	return nil, typeError("evaluable", a)
}

// numeric classes for binary operations
func classify(a, b Term) (isFloat, isRat bool) {
	_, fa := a.(Float)
	_, fb := b.(Float)
	_, ra := a.(Rat)
	_, rb := b.(Rat)
	return fa || fb, ra || rb
}

func arithAdd(a, b Term) (Term, error) {
	isF, isR := classify(a, b)
	switch {
	case isF:
		return floatOp(a, b, func(x, y float64) float64 { return x + y })
	case isR:
		return NewRat(new(big.Rat).Add(toRat(a), toRat(b))), nil
	}
	return Int{v: new(big.Int).Add(a.(Int).v, b.(Int).v)}, nil
}

func arithSub(a, b Term) (Term, error) {
	isF, isR := classify(a, b)
	switch {
	case isF:
		return floatOp(a, b, func(x, y float64) float64 { return x - y })
	case isR:
		return NewRat(new(big.Rat).Sub(toRat(a), toRat(b))), nil
	}
	return Int{v: new(big.Int).Sub(a.(Int).v, b.(Int).v)}, nil
}

func arithMul(a, b Term) (Term, error) {
	isF, isR := classify(a, b)
	switch {
	case isF:
		return floatOp(a, b, func(x, y float64) float64 { return x * y })
	case isR:
		return NewRat(new(big.Rat).Mul(toRat(a), toRat(b))), nil
	}
	return Int{v: new(big.Int).Mul(a.(Int).v, b.(Int).v)}, nil
}

func floatOp(a, b Term, fn func(x, y float64) float64) (Term, error) {
	x, err := toFloat(a)
	if err != nil {
		return nil, err
	}
	y, err := toFloat(b)
	if err != nil {
		return nil, err
	}
	return checkFloat(fn(float64(x), float64(y)), float64(x), float64(y))
}

func isZero(t Term) bool {
	switch x := t.(type) {
	case Int:
		return x.v.Sign() == 0
	case Rat:
		return x.v.Sign() == 0
	case Float:
		return x == 0
	}
	return false
}

func arithDiv(a, b Term) (Term, error) {
	if isZero(b) {
		return nil, evaluationError("zero_divisor")
	}
	isF, isR := classify(a, b)
	switch {
	case isF:
		return floatOp(a, b, func(x, y float64) float64 { return x / y })
	case isR:
		return NewRat(new(big.Rat).Quo(toRat(a), toRat(b))), nil
	}
	x, y := a.(Int).v, b.(Int).v
	q, r := new(big.Int).QuoRem(x, y, new(big.Int))
	if r.Sign() == 0 {
		return Int{v: q}, nil
	}
	return floatOp(a, b, func(x, y float64) float64 { return x / y })
}

func ratDivide(a, b Term) (Term, error) {
	if _, isF := classify(a, b); isF {
		return arithDiv(a, b)
	}
	return arithRdiv(a, b)
}

func arithRdiv(a, b Term) (Term, error) {
	for _, t := range []Term{a, b} {
		if _, ok := t.(Float); ok {
			return nil, typeError("rational", t)
		}
	}
	if isZero(b) {
		return nil, evaluationError("zero_divisor")
	}
	return NewRat(new(big.Rat).Quo(toRat(a), toRat(b))), nil
}

func arithIntDiv(x, y *big.Int) (*big.Int, error) {
	if y.Sign() == 0 {
		return nil, evaluationError("zero_divisor")
	}
	return new(big.Int).Quo(x, y), nil
}

func arithRem(x, y *big.Int) (*big.Int, error) {
	if y.Sign() == 0 {
		return nil, evaluationError("zero_divisor")
	}
	return new(big.Int).Rem(x, y), nil
}

// arithMod returns the remainder with the sign of the divisor.
func arithMod(x, y *big.Int) (*big.Int, error) {
	if y.Sign() == 0 {
		return nil, evaluationError("zero_divisor")
	}
	r := new(big.Int).Rem(x, y)
	if r.Sign() != 0 && r.Sign() != y.Sign() {
		r.Add(r, y)
	}
	return r, nil
}

func arithFloorDiv(x, y *big.Int) (*big.Int, error) {
	m, err := arithMod(x, y)
	if err != nil {
		return nil, err
	}
	d := new(big.Int).Sub(x, m)
	return d.Quo(d, y), nil
}

func arithShr(x, y *big.Int) (*big.Int, error) {
	if !y.IsInt64() {
		return nil, representationError("max_integer")
	}
	n := y.Int64()
	if n < 0 {
		return arithShl(x, new(big.Int).Neg(y))
	}
	if n > maxPowBits {
		if x.Sign() < 0 {
			return big.NewInt(-1), nil
		}
		return new(big.Int), nil
	}
	return new(big.Int).Rsh(x, uint(n)), nil
}

func arithShl(x, y *big.Int) (*big.Int, error) {
	if !y.IsInt64() {
		return nil, representationError("max_integer")
	}
	n := y.Int64()
	if n < 0 {
		return arithShr(x, new(big.Int).Neg(y))
	}
	if n > maxPowBits {
		return nil, resourceError("memory")
	}
	return new(big.Int).Lsh(x, uint(n)), nil
}

func resourceError(what Atom) *Exception {
	return throwTerm(comp("resource_error", what), nil)
}

func pick(a, b Term, want int) Term {
	if c := compareNum(a, b); c == 0 || c == want {
		return a
	}
	return b
}

// intPow raises an exact base to a non-negative integer exponent.
func intPow(base Term, exp *big.Int) (Term, error) {
	switch x := base.(type) {
	case Int:
		if x.v.CmpAbs(bigOne) <= 0 {
			if x.v.Sign() < 0 && exp.Bit(0) == 0 {
				return NewInt(1), nil
			}
			return x, nil
		}
		if !exp.IsInt64() || int64(x.v.BitLen())*exp.Int64() > maxPowBits {
			return nil, resourceError("memory")
		}
		return Int{v: new(big.Int).Exp(x.v, exp, nil)}, nil
	case Rat:
		if !exp.IsInt64() || int64(x.v.Num().BitLen()+x.v.Denom().BitLen())*exp.Int64() > maxPowBits {
			return nil, resourceError("memory")
		}
		n := new(big.Int).Exp(x.v.Num(), exp, nil)
		d := new(big.Int).Exp(x.v.Denom(), exp, nil)
		return NewRat(new(big.Rat).SetFrac(n, d)), nil
	}
	return nil, typeError("evaluable", base)
}

// exactPow handles exact bases with integer exponents, inverting for
// negative exponents.
func exactPow(a Term, e Int) (Term, error) {
	if e.v.Sign() >= 0 {
		return intPow(a, e.v)
	}
	if isZero(a) {
		return nil, evaluationError("zero_divisor")
	}
	p, err := intPow(a, new(big.Int).Neg(e.v))
	if err != nil {
		return nil, err
	}
	return NewRat(new(big.Rat).Inv(toRat(p))), nil
}

func arithPow(a, b Term) (Term, error) {
	if e, ok := b.(Int); ok {
		if _, isF := a.(Float); !isF {
			if _, isInt := a.(Int); isInt && e.v.Sign() < 0 {
				return floatOp(a, b, math.Pow)
			}
			return exactPow(a, e)
		}
	}
	return floatOp(a, b, math.Pow)
}

func arithCaret(a, b Term) (Term, error) {
	if e, ok := b.(Int); ok {
		if _, isF := a.(Float); !isF {
			return exactPow(a, e)
		}
	}
	return floatOp(a, b, math.Pow)
}

func arithCompare(s *solver, a, b Term) (int, error) {
	x, err := s.eval(a)
	if err != nil {
		return 0, err
	}
	y, err := s.eval(b)
	if err != nil {
		return 0, err
	}
	return compareNum(x, y), nil
}

func init() {
	defBuiltin("is", 2, func(s *solver, args []Term, _ *module) (bool, error) {
		v, err := s.eval(args[1])
		if err != nil {
			return false, err
		}
		return s.unify(args[0], v), nil
	})
	cmp := func(name Atom, ok func(int) bool) {
		defBuiltin(name, 2, func(s *solver, args []Term, _ *module) (bool, error) {
			c, err := arithCompare(s, args[0], args[1])
			if err != nil {
				return false, err
			}
			return ok(c), nil
		})
	}
	cmp("=:=", func(c int) bool { return c == 0 })
	cmp("=\\=", func(c int) bool { return c != 0 })
	cmp("<", func(c int) bool { return c < 0 })
	cmp(">", func(c int) bool { return c > 0 })
	cmp("=<", func(c int) bool { return c <= 0 })
	cmp(">=", func(c int) bool { return c >= 0 })

	defBuiltin("succ", 2, func(s *solver, args []Term, _ *module) (bool, error) {
		a, b := Deref(args[0]), Deref(args[1])
		if x, ok := a.(Int); ok {
			if x.v.Sign() < 0 {
				return false, typeError("not_less_than_zero", x)
			}
			return s.unify(b, Int{v: new(big.Int).Add(x.v, bigOne)}), nil
		}
		if _, ok := a.(*Var); !ok {
			return false, typeError("integer", a)
		}
		y, err := mustInt(b)
		if err != nil {
			return false, err
		}
		if y.v.Sign() < 0 {
			return false, typeError("not_less_than_zero", y)
		}
		if y.v.Sign() == 0 {
			return false, nil
		}
		return s.unify(a, Int{v: new(big.Int).Sub(y.v, bigOne)}), nil
	})
	defBuiltin("plus", 3, func(s *solver, args []Term, _ *module) (bool, error) {
		x, y, z := Deref(args[0]), Deref(args[1]), Deref(args[2])
		xi, xok := x.(Int)
		yi, yok := y.(Int)
		zi, zok := z.(Int)
		switch {
		case xok && yok:
			return s.unify(z, Int{v: new(big.Int).Add(xi.v, yi.v)}), nil
		case xok && zok:
			return s.unify(y, Int{v: new(big.Int).Sub(zi.v, xi.v)}), nil
		case yok && zok:
			return s.unify(x, Int{v: new(big.Int).Sub(zi.v, yi.v)}), nil
		}
		return false, instantiationError()
	})
	defControl("between", 3, func(s *solver, args []Term, _ *module, _ int, next *cont) (bool, error) {
		lo, err := mustInt(args[0])
		if err != nil {
			return false, err
		}
		hiT := Deref(args[1])
		var hi *big.Int
		if a, ok := hiT.(Atom); !ok || (a != "inf" && a != "infinite") {
			h, err := mustInt(hiT)
			if err != nil {
				return false, err
			}
			hi = h.v
		}
		x := Deref(args[2])
		switch xv := x.(type) {
		case Int:
			ok := xv.v.Cmp(lo.v) >= 0 && (hi == nil || xv.v.Cmp(hi) <= 0)
			if ok {
				s.cont = next
			}
			return ok, nil
		case *Var:
		default:
			return false, typeError("integer", x)
		}
		if hi != nil && lo.v.Cmp(hi) > 0 {
			return false, nil
		}
		return s.resume(func(i int) (bool, bool) {
			v := new(big.Int).Add(lo.v, big.NewInt(int64(i)))
			more := hi == nil || v.Cmp(hi) < 0
			return s.unify(x, Int{v: v}), more
		}, 0, next), nil
	})
}
