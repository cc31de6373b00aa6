package engine

import (
	"io"
	"strings"
	"unicode"
	"unicode/utf8"
)

// textOf returns the text of an atomic term or of a code or character list.
func textOf(t Term) (string, error) {
	t = Deref(t)
	switch x := t.(type) {
	case *Var:
		return "", instantiationError()
	case Atom:
		return string(x), nil
	case String:
		return string(x), nil
	case Int, Float, Rat:
		return FormatTerm(x, false), nil
	case *Compound:
		if _, ok := isCons(x); ok {
			return listText(x)
		}
	}
	return "", typeError("atomic", t)
}

// listText decodes a proper list of character codes or one-char atoms.
func listText(t Term) (string, error) {
	items, tail := ListSlice(t)
	if _, ok := tail.(*Var); ok {
		return "", instantiationError()
	}
	if tail != atomNil {
		return "", typeError("list", t)
	}
	var b strings.Builder
	for _, it := range items {
		switch x := Deref(it).(type) {
		case *Var:
			return "", instantiationError()
		case Int:
			if !x.v.IsInt64() || x.v.Int64() < 0 || x.v.Int64() > unicode.MaxRune {
				return "", representationError("character_code")
			}
			b.WriteRune(rune(x.v.Int64()))
		case Atom:
			r, size := utf8.DecodeRuneInString(string(x))
			if size == 0 || size != len(x) {
				return "", typeError("character", x)
			}
			b.WriteRune(r)
		default:
			return "", typeError("character", x)
		}
	}
	return b.String(), nil
}

// parseNumber reads text as a single number literal with an optional sign.
func parseNumber(text string) (Term, bool) {
	l := newLexer(text)
	t, err := l.next()
	if err != nil {
		return nil, false
	}
	neg := false
	if t.kind == tName && (t.text == "-" || t.text == "+") {
		neg = t.text == "-"
		if t, err = l.next(); err != nil || t.layout {
			return nil, false
		}
	}
	var n Term
	switch t.kind {
	case tInt:
		i := NewBigInt(t.ival)
		if neg {
			i.v.Neg(i.v)
		}
		n = i
	case tFloat:
		f := Float(t.fval)
		if neg {
			f = -f
		}
		n = f
	default:
		return nil, false
	}
	if end, err := l.next(); err != nil || end.kind != tEOF {
		return nil, false
	}
	return n, true
}

func mustParseNumber(text string) (Term, error) {
	n, ok := parseNumber(text)
	if !ok {
		return nil, throwTerm(comp("syntax_error", Atom("illegal_number")), nil)
	}
	return n, nil
}

// parseTerm reads text as one term using the engine's operators and flags.
// A missing final end token is supplied.
func (e *Engine) parseTerm(text string) (Term, []VarName, error) {
	src := text
	if trimmed := strings.TrimRightFunc(text, unicode.IsSpace); !strings.HasSuffix(trimmed, ".") {
		src = trimmed + " ."
	}
	p := newParser(src, e.ops, e.flagAtom("double_quotes"))
	t, err := p.readClause()
	if err == io.EOF {
		return nil, nil, syntaxError(&syntaxErr{msg: "unexpected end of file", line: 1, col: 1})
	}
	if err != nil {
		return nil, nil, toException(err)
	}
	vars := p.vars
	if _, err := p.readClause(); err != io.EOF {
		return nil, nil, syntaxError(&syntaxErr{msg: "end of clause expected", line: 1, col: 1})
	}
	return t, vars, nil
}

func isUnbound(t Term) bool {
	_, ok := Deref(t).(*Var)
	return ok
}

func atomOf(s string) Term   { return Atom(s) }
func stringOf(s string) Term { return String(s) }

// textToList converts between a text-valued first argument and a list.
func textToList(mk, list func(string) Term) builtinFn {
	return func(s *solver, args []Term, _ *module) (bool, error) {
		if !isUnbound(args[0]) {
			text, err := textOf(args[0])
			if err != nil {
				return false, err
			}
			return s.unify(args[1], list(text)), nil
		}
		text, err := textOf(args[1])
		if err != nil {
			return false, err
		}
		return s.unify(args[0], mk(text)), nil
	}
}

func numberToList(list func(string) Term) builtinFn {
	return func(s *solver, args []Term, _ *module) (bool, error) {
		if text, err := textOf(args[1]); err == nil {
			n, err := mustParseNumber(text)
			if err != nil {
				return false, err
			}
			return s.unify(args[0], n), nil
		} else if isUnbound(args[0]) {
			return false, err
		}
		n := Deref(args[0])
		if !isNumber(n) {
			return false, typeError("number", n)
		}
		return s.unify(args[1], list(FormatTerm(n, false))), nil
	}
}

// convert relates a text-valued first argument to a second one of another
// text type.
func convert(from, to func(string) Term) builtinFn {
	return func(s *solver, args []Term, _ *module) (bool, error) {
		if !isUnbound(args[0]) {
			text, err := textOf(args[0])
			if err != nil {
				return false, err
			}
			return s.unify(args[1], to(text)), nil
		}
		text, err := textOf(args[1])
		if err != nil {
			return false, err
		}
		return s.unify(args[0], from(text)), nil
	}
}

func textLength(s *solver, args []Term, _ *module) (bool, error) {
	text, err := textOf(args[0])
	if err != nil {
		return false, err
	}
	switch n := Deref(args[1]).(type) {
	case *Var:
	case Int:
		if n.v.Sign() < 0 {
			return false, domainError("not_less_than_zero", n)
		}
	default:
		return false, typeError("integer", n)
	}
	return s.unify(args[1], NewInt(int64(utf8.RuneCountInString(text)))), nil
}

func caseMap(fn func(string) string, mk func(string) Term) builtinFn {
	return func(s *solver, args []Term, _ *module) (bool, error) {
		text, err := textOf(args[0])
		if err != nil {
			return false, err
		}
		return s.unify(args[1], mk(fn(text))), nil
	}
}

// concat implements atom_concat/3 and string_concat/3. With an unbound
// prefix or suffix it enumerates every split of the whole.
func concat(mk func(string) Term) controlFn {
	return func(s *solver, args []Term, _ *module, _ int, next *cont) (bool, error) {
		if !isUnbound(args[0]) && !isUnbound(args[1]) {
			a, err := textOf(args[0])
			if err != nil {
				return false, err
			}
			b, err := textOf(args[1])
			if err != nil {
				return false, err
			}
			if !s.unify(args[2], mk(a+b)) {
				return false, nil
			}
			s.cont = next
			return true, nil
		}
		whole, err := textOf(args[2])
		if err != nil {
			return false, err
		}
		runes := []rune(whole)
		return s.alternatives(next, len(runes)+1, func(i int) bool {
			return s.unify(args[0], mk(string(runes[:i]))) && s.unify(args[1], mk(string(runes[i:])))
		}), nil
	}
}

type span struct{ before, length int }

// spans yields the (before, length) pairs of a text of n characters that
// agree with the bound values; -1 marks an unbound one.
func spans(n, before, length, after int) func() (span, bool) {
	bLo, bHi := 0, n
	if before >= 0 {
		bLo, bHi = before, before
	}
	b, l := bLo, -1
	return func() (span, bool) {
		for b <= bHi {
			lLo, lHi := 0, n-b
			if length >= 0 {
				lLo, lHi = max(lLo, length), min(lHi, length)
			}
			if after >= 0 {
				x := n - b - after
				lLo, lHi = max(lLo, x), min(lHi, x)
			}
			l++
			if l < lLo {
				l = lLo
			}
			if l <= lHi {
				return span{b, l}, true
			}
			b++
			l = -1
		}
		return span{}, false
	}
}

// lazily succeeds once for each value produced by it that try accepts.
func lazily[T any](s *solver, next *cont, it func() (T, bool), try func(T) bool) bool {
	cur, ok := it()
	if !ok {
		return false
	}
	return s.resume(func(int) (bool, bool) {
		v := cur
		var more bool
		cur, more = it()
		return try(v), more
	}, 0, next)
}

func optionalCount(t Term) (int, error) {
	switch x := Deref(t).(type) {
	case *Var:
		return -1, nil
	case Int:
		if x.v.Sign() < 0 {
			return 0, domainError("not_less_than_zero", x)
		}
		if !x.v.IsInt64() {
			return 0, representationError("max_integer")
		}
		return int(x.v.Int64()), nil
	default:
		return 0, typeError("integer", x)
	}
}

// subText implements sub_atom/5 and sub_string/5.
func subText(mk func(string) Term) controlFn {
	return func(s *solver, args []Term, _ *module, _ int, next *cont) (bool, error) {
		text, err := textOf(args[0])
		if err != nil {
			return false, err
		}
		var counts [3]int
		for i := range counts {
			if counts[i], err = optionalCount(args[i+1]); err != nil {
				return false, err
			}
		}
		runes := []rune(text)
		var want []rune
		if !isUnbound(args[4]) {
			sub, err := textOf(args[4])
			if err != nil {
				return false, err
			}
			want = []rune(sub)
			if counts[1] >= 0 && counts[1] != len(want) {
				return false, nil
			}
			counts[1] = len(want)
		}
		it := spans(len(runes), counts[0], counts[1], counts[2])
		return lazily(s, next, it, func(sp span) bool {
			part := runes[sp.before : sp.before+sp.length]
			if want != nil && string(part) != string(want) {
				return false
			}
			return s.unify(args[1], NewInt(int64(sp.before))) &&
				s.unify(args[2], NewInt(int64(sp.length))) &&
				s.unify(args[3], NewInt(int64(len(runes)-sp.before-sp.length))) &&
				s.unify(args[4], mk(string(part)))
		}), nil
	}
}

func atomicListConcat(items []Term, sep string) (string, error) {
	parts := make([]string, len(items))
	for i, it := range items {
		it = Deref(it)
		if !isAtomic(it) {
			if _, isVar := it.(*Var); isVar {
				return "", instantiationError()
			}
			return "", typeError("atomic", it)
		}
		text, err := textOf(it)
		if err != nil {
			return "", err
		}
		parts[i] = text
	}
	return strings.Join(parts, sep), nil
}

func splitString(s *solver, args []Term, _ *module) (bool, error) {
	text, err := textOf(args[0])
	if err != nil {
		return false, err
	}
	seps, err := textOf(args[1])
	if err != nil {
		return false, err
	}
	pad, err := textOf(args[2])
	if err != nil {
		return false, err
	}
	var fields []string
	if seps == "" {
		fields = []string{text}
	} else {
		start := 0
		for i, r := range text {
			if strings.ContainsRune(seps, r) {
				fields = append(fields, text[start:i])
				start = i + utf8.RuneLen(r)
			}
		}
		fields = append(fields, text[start:])
	}
	out := make([]Term, len(fields))
	for i, f := range fields {
		out[i] = String(strings.Trim(f, pad))
	}
	return s.unify(args[3], List(out...)), nil
}

func init() {
	defBuiltin("atom_codes", 2, textToList(atomOf, codeList))
	defBuiltin("atom_chars", 2, textToList(atomOf, charList))
	defBuiltin("string_codes", 2, textToList(stringOf, codeList))
	defBuiltin("string_chars", 2, textToList(stringOf, charList))
	defBuiltin("number_codes", 2, numberToList(codeList))
	defBuiltin("number_chars", 2, numberToList(charList))
	defBuiltin("atom_string", 2, convert(atomOf, stringOf))
	defBuiltin("string_to_atom", 2, convert(stringOf, atomOf))
	defBuiltin("atom_length", 2, textLength)
	defBuiltin("string_length", 2, textLength)
	defBuiltin("upcase_atom", 2, caseMap(strings.ToUpper, atomOf))
	defBuiltin("downcase_atom", 2, caseMap(strings.ToLower, atomOf))
	defBuiltin("string_upper", 2, caseMap(strings.ToUpper, stringOf))
	defBuiltin("string_lower", 2, caseMap(strings.ToLower, stringOf))
	defControl("atom_concat", 3, concat(atomOf))
	defControl("string_concat", 3, concat(stringOf))
	defControl("sub_atom", 5, subText(atomOf))
	defControl("sub_string", 5, subText(stringOf))
	defBuiltin("split_string", 4, splitString)

	defBuiltin("char_code", 2, func(s *solver, args []Term, _ *module) (bool, error) {
		switch c := Deref(args[0]).(type) {
		case Atom:
			r, size := utf8.DecodeRuneInString(string(c))
			if size == 0 || size != len(c) {
				return false, typeError("character", c)
			}
			return s.unify(args[1], NewInt(int64(r))), nil
		case *Var:
			code, err := mustSmallInt(args[1])
			if err != nil {
				return false, err
			}
			if code < 0 || code > unicode.MaxRune {
				return false, representationError("character_code")
			}
			return s.unify(c, Atom(string(rune(code)))), nil
		default:
			return false, typeError("character", c)
		}
	})
	defBuiltin("atom_number", 2, func(s *solver, args []Term, _ *module) (bool, error) {
		if isUnbound(args[0]) {
			n := Deref(args[1])
			if _, isVar := n.(*Var); isVar {
				return false, instantiationError()
			}
			if !isNumber(n) {
				return false, typeError("number", n)
			}
			return s.unify(args[0], Atom(FormatTerm(n, false))), nil
		}
		text, err := mustAtom(args[0])
		if err != nil {
			return false, err
		}
		n, ok := parseNumber(string(text))
		return ok && s.unify(args[1], n), nil
	})
	defBuiltin("number_string", 2, func(s *solver, args []Term, _ *module) (bool, error) {
		if !isUnbound(args[1]) {
			text, err := textOf(args[1])
			if err != nil {
				return false, err
			}
			n, err := mustParseNumber(strings.TrimSpace(text))
			if err != nil {
				return false, err
			}
			return s.unify(args[0], n), nil
		}
		n := Deref(args[0])
		if _, isVar := n.(*Var); isVar {
			return false, instantiationError()
		}
		if !isNumber(n) {
			return false, typeError("number", n)
		}
		return s.unify(args[1], String(FormatTerm(n, false))), nil
	})
	defBuiltin("string_code", 3, func(s *solver, args []Term, _ *module) (bool, error) {
		i, err := mustSmallInt(args[0])
		if err != nil {
			return false, err
		}
		text, err := textOf(args[1])
		if err != nil {
			return false, err
		}
		runes := []rune(text)
		if i < 1 || i > len(runes) {
			return false, nil
		}
		return s.unify(args[2], NewInt(int64(runes[i-1]))), nil
	})
	termText := func(mk func(string) Term) builtinFn {
		return func(s *solver, args []Term, _ *module) (bool, error) {
			if !isUnbound(args[0]) || isUnbound(args[1]) {
				return s.unify(args[1], mk(FormatTerm(args[0], true))), nil
			}
			text, err := textOf(args[1])
			if err != nil {
				return false, err
			}
			t, _, err := s.e.parseTerm(text)
			if err != nil {
				return false, err
			}
			return s.unify(args[0], t), nil
		}
	}
	defBuiltin("term_to_atom", 2, termText(atomOf))
	defBuiltin("term_string", 2, termText(stringOf))
	defBuiltin("atomic_list_concat", 2, func(s *solver, args []Term, _ *module) (bool, error) {
		items, err := mustList(args[0])
		if err != nil {
			return false, err
		}
		text, err := atomicListConcat(items, "")
		if err != nil {
			return false, err
		}
		return s.unify(args[1], Atom(text)), nil
	})
	defBuiltin("atomic_list_concat", 3, func(s *solver, args []Term, _ *module) (bool, error) {
		sep, err := textOf(args[1])
		if err != nil {
			return false, err
		}
		if items, err := mustList(args[0]); err == nil {
			if text, err := atomicListConcat(items, sep); err == nil {
				return s.unify(args[2], Atom(text)), nil
			} else if isUnbound(args[2]) {
				return false, err
			}
		}
		if sep == "" {
			return false, instantiationError()
		}
		whole, err := textOf(args[2])
		if err != nil {
			return false, err
		}
		parts := strings.Split(whole, sep)
		out := make([]Term, len(parts))
		for i, p := range parts {
			out[i] = Atom(p)
		}
		return s.unify(args[0], List(out...)), nil
	})
}
