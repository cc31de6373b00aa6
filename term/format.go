package term

import (
	"math"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Format renders t as canonical Prolog text: operators are written in
// functional notation, atoms and strings are quoted where needed and lists
// use bracket notation.
func Format(t Term) string {
	var b strings.Builder
	write(&b, t)
	return b.String()
}

func write(b *strings.Builder, t Term) {
	switch x := t.(type) {
	case Integer:
		b.WriteString(x.Decimal())
	case Rational:
		b.WriteString(x.Num().String())
		b.WriteString(" rdiv ")
		b.WriteString(x.Denom().String())
	case Float:
		b.WriteString(formatFloat(float64(x)))
	case Atom:
		b.WriteString(quoteAtom(string(x)))
	case String:
		b.WriteString(quote(string(x), '"'))
	case List:
		b.WriteByte('[')
		for i, e := range x {
			if i > 0 {
				b.WriteByte(',')
			}
			write(b, e)
		}
		b.WriteByte(']')
	case Compound:
		b.WriteString(quoteAtom(x.Functor))
		b.WriteByte('(')
		for i, a := range x.Args {
			if i > 0 {
				b.WriteByte(',')
			}
			write(b, a)
		}
		b.WriteByte(')')
	case Variable:
		b.WriteString(string(x))
	case nil:
		b.WriteString("<nil>")
	}
}

func formatFloat(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "1.0Inf"
	case math.IsInf(f, -1):
		return "-1.0Inf"
	case math.IsNaN(f):
		return "1.5NaN"
	}
	if a := math.Abs(f); a != 0 && (a < 1e-4 || a >= 1e15) {
		mant, exp, _ := strings.Cut(strconv.FormatFloat(f, 'e', -1, 64), "e")
		if !strings.Contains(mant, ".") {
			mant += ".0"
		}
		sign := ""
		if exp[0] == '-' {
			sign = "-"
		}
		return mant + "e" + sign + strings.TrimLeft(exp, "+-0")
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

func quoteAtom(s string) string {
	switch s {
	case "[]", "{}", "!", ";":
		return s
	case ",":
		return "','"
	case "":
		return "''"
	}
	if symbolic(s) {
		return s
	}
	r, _ := utf8.DecodeRuneInString(s)
	if unicode.IsLower(r) {
		plain := true
		for _, c := range s {
			if c != '_' && !unicode.IsLetter(c) && !unicode.IsDigit(c) {
				plain = false
				break
			}
		}
		if plain {
			return s
		}
	}
	return quote(s, '\'')
}

func symbolic(s string) bool {
	for _, r := range s {
		if !strings.ContainsRune("+-*/\\^<>=~:.?@#&$", r) {
			return false
		}
	}
	return true
}

func quote(s string, q rune) string {
	var b strings.Builder
	b.WriteRune(q)
	for _, r := range s {
		switch r {
		case q, '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if unicode.IsControl(r) {
				b.WriteString(`\x` + strconv.FormatInt(int64(r), 16) + `\`)
			} else {
				b.WriteRune(r)
			}
		}
	}
	b.WriteRune(q)
	return b.String()
}
