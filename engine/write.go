package engine

import (
	"io"
	"math"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

type writeOptions struct {
	quoted     bool
	ignoreOps  bool
	numberVars bool
	maxDepth   int
}

type termWriter struct {
	b    strings.Builder
	ops  *opTable
	opts writeOptions
	last rune
}

// FormatTerm renders t in standard operator notation. With quoted set,
// atoms and strings are quoted where needed so that the text reads back as
// the same term.
func FormatTerm(t Term, quoted bool) string {
	return formatTerm(t, defaultOpTable, writeOptions{quoted: quoted, numberVars: true})
}

func formatTerm(t Term, ops *opTable, opts writeOptions) string {
	w := &termWriter{ops: ops, opts: opts}
	w.write(t, 1200, 0)
	return w.b.String()
}

func isSymbolText(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !isSymbolChar(r) {
			return false
		}
	}
	return true
}

func isAlnumRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// emit appends a token, separating it from the previous one when the two
// would otherwise read as a single token.
func (w *termWriter) emit(s string) {
	if s == "" {
		return
	}
	first, _ := utf8.DecodeRuneInString(s)
	if w.last != 0 {
		if (isAlnumRune(w.last) && isAlnumRune(first)) ||
			(isSymbolChar(w.last) && isSymbolChar(first)) {
			w.b.WriteByte(' ')
		}
	}
	w.b.WriteString(s)
	w.last, _ = utf8.DecodeLastRuneInString(s)
}

func (w *termWriter) space() {
	w.b.WriteByte(' ')
	w.last = ' '
}

func (w *termWriter) write(t Term, prec, depth int) {
	if depth > maxDepth {
		panic(depthExceeded{"write"})
	}
	if w.opts.maxDepth > 0 && depth >= w.opts.maxDepth {
		w.emit("...")
		return
	}
	t = Deref(t)
	switch x := t.(type) {
	case *Var:
		w.emit("_G" + strconv.FormatInt(x.id, 10))
	case Atom:
		w.writeAtom(x, prec)
	case Int:
		w.emit(x.v.String())
	case Float:
		w.emit(formatFloat(float64(x)))
	case Rat:
		if prec < 400 {
			w.emit("(")
		}
		w.emit(x.Num().String())
		w.emit(" rdiv ")
		w.emit(x.Denom().String())
		if prec < 400 {
			w.emit(")")
		}
	case String:
		if w.opts.quoted {
			w.emit(quoteText(string(x), '"'))
		} else {
			w.b.WriteString(string(x))
			if r, _ := utf8.DecodeLastRuneInString(string(x)); r != utf8.RuneError {
				w.last = r
			}
		}
	case *Compound:
		w.writeCompound(x, prec, depth)
	default:
		w.emit("<?>")
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
	abs := math.Abs(f)
	if abs != 0 && (abs < 1e-4 || abs >= 1e15) {
		s := strconv.FormatFloat(f, 'e', -1, 64)
		mant, exp, _ := strings.Cut(s, "e")
		if !strings.Contains(mant, ".") {
			mant += ".0"
		}
		neg := strings.HasPrefix(exp, "-")
		exp = strings.TrimLeft(exp, "+-0")
		if neg {
			exp = "-" + exp
		}
		return mant + "e" + exp
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

func (w *termWriter) writeAtom(a Atom, prec int) {
	text := string(a)
	if w.opts.quoted {
		text = quoteAtom(a)
	}
	if prec < 1200 && w.ops.isOp(a) && !w.opts.ignoreOps {
		if def, ok := w.maxOp(a); ok && def > prec {
			w.emit("(")
			w.emit(text)
			w.emit(")")
			return
		}
	}
	w.emit(text)
}

func (w *termWriter) maxOp(a Atom) (int, bool) {
	best, found := 0, false
	for _, m := range []map[Atom]opDef{w.ops.prefix, w.ops.infix, w.ops.postfix} {
		if d, ok := m[a]; ok {
			found = true
			best = max(best, d.prec)
		}
	}
	return best, found
}

func (w *termWriter) writeCompound(c *Compound, prec, depth int) {
	if _, ok := isCons(c); ok {
		w.writeList(c, depth)
		return
	}
	if w.opts.numberVars && c.Functor == "$VAR" && len(c.Args) == 1 {
		if n, ok := Deref(c.Args[0]).(Int); ok && n.v.IsInt64() && n.v.Sign() >= 0 {
			i := n.v.Int64()
			name := string(rune('A' + i%26))
			if i >= 26 {
				name += strconv.FormatInt(i/26, 10)
			}
			w.emit(name)
			return
		}
	}
	if !w.opts.ignoreOps {
		if c.Functor == atomCurly && len(c.Args) == 1 {
			w.emit("{")
			w.write(c.Args[0], 1200, depth+1)
			w.emit("}")
			return
		}
		if len(c.Args) == 2 {
			if def, ok := w.ops.infix[c.Functor]; ok {
				w.writeInfix(c, def, prec, depth)
				return
			}
		}
		if len(c.Args) == 1 {
			if def, ok := w.ops.prefix[c.Functor]; ok {
				w.writePrefix(c, def, prec, depth)
				return
			}
			if def, ok := w.ops.postfix[c.Functor]; ok {
				lp, _ := def.argPrec()
				open := def.prec > prec
				if open {
					w.emit("(")
				}
				w.write(c.Args[0], lp, depth+1)
				w.emit(w.atomText(c.Functor))
				if open {
					w.emit(")")
				}
				return
			}
		}
	}
	w.emit(w.atomText(c.Functor))
	w.b.WriteByte('(')
	w.last = '('
	for i, a := range c.Args {
		if i > 0 {
			w.emit(",")
		}
		w.write(a, 999, depth+1)
	}
	w.emit(")")
}

func (w *termWriter) atomText(a Atom) string {
	if w.opts.quoted {
		return quoteAtom(a)
	}
	return string(a)
}

func (w *termWriter) writeInfix(c *Compound, def opDef, prec, depth int) {
	lp, rp := def.argPrec()
	open := def.prec > prec
	if open {
		w.emit("(")
	}
	w.write(c.Args[0], lp, depth+1)
	switch name := c.Functor; {
	case name == atomComma:
		w.emit(",")
	case isSymbolText(string(name)) || name == "|":
		w.emit(w.atomText(name))
	default:
		w.space()
		w.emit(w.atomText(name))
		w.space()
	}
	w.write(c.Args[1], rp, depth+1)
	if open {
		w.emit(")")
	}
}

func (w *termWriter) writePrefix(c *Compound, def opDef, prec, depth int) {
	_, rp := def.argPrec()
	open := def.prec > prec
	if open {
		w.emit("(")
	}
	w.emit(w.atomText(c.Functor))
	arg := Deref(c.Args[0])
	if isNumber(arg) || !isSymbolText(string(c.Functor)) || w.termPrec(arg) > rp {
		w.space()
	} else if a, ok := arg.(Atom); ok && w.ops.isOp(a) {
		w.space()
	}
	w.write(arg, rp, depth+1)
	if open {
		w.emit(")")
	}
}

// termPrec returns the precedence t is written with.
func (w *termWriter) termPrec(t Term) int {
	if w.opts.ignoreOps {
		return 0
	}
	switch x := t.(type) {
	case Atom:
		p, _ := w.maxOp(x)
		return p
	case *Compound:
		if _, ok := isCons(x); ok {
			return 0
		}
		var def opDef
		var ok bool
		switch len(x.Args) {
		case 1:
			if def, ok = w.ops.prefix[x.Functor]; !ok {
				def, ok = w.ops.postfix[x.Functor]
			}
		case 2:
			def, ok = w.ops.infix[x.Functor]
		}
		if ok {
			return def.prec
		}
	}
	return 0
}

func (w *termWriter) writeList(c *Compound, depth int) {
	w.emit("[")
	var t Term = c
	first := true
	for n := 0; ; n++ {
		cell, ok := isCons(t)
		if !ok {
			break
		}
		if !first {
			w.emit(",")
		}
		if w.opts.maxDepth > 0 && n >= w.opts.maxDepth {
			w.emit("...")
			w.emit("]")
			return
		}
		first = false
		w.write(cell.Args[0], 999, depth+1)
		t = Deref(cell.Args[1])
	}
	if t != atomNil {
		w.emit("|")
		w.write(t, 999, depth+1)
	}
	w.emit("]")
}

// quoteAtom returns the atom in a form that reads back as the same atom.
func quoteAtom(a Atom) string {
	s := string(a)
	switch s {
	case "[]", "{}", "!", ";":
		return s
	case "":
		return "''"
	}
	if isSymbolText(s) {
		return s
	}
	r, _ := utf8.DecodeRuneInString(s)
	if unicode.IsLower(r) {
		plain := true
		for _, c := range s {
			if !isAlnumRune(c) {
				plain = false
				break
			}
		}
		if plain {
			return s
		}
	}
	return quoteText(s, '\'')
}

func quoteText(s string, q rune) string {
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
		case '\r':
			b.WriteString(`\r`)
		case '\a':
			b.WriteString(`\a`)
		case '\b':
			b.WriteString(`\b`)
		case '\f':
			b.WriteString(`\f`)
		case '\v':
			b.WriteString(`\v`)
		case 0:
			b.WriteString(`\0\`)
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

func (s *solver) write(t Term, opts writeOptions) {
	io.WriteString(s.e.out, formatTerm(t, s.e.ops, opts))
}

func parseWriteOptions(t Term) (writeOptions, error) {
	var opts writeOptions
	items, err := mustList(t)
	if err != nil {
		return opts, err
	}
	for _, it := range items {
		c, ok := Deref(it).(*Compound)
		if !ok || len(c.Args) != 1 {
			if _, isVar := Deref(it).(*Var); isVar {
				return opts, instantiationError()
			}
			return opts, domainError("write_option", it)
		}
		switch c.Functor {
		case "quoted", "ignore_ops", "numbervars":
			v, err := mustAtom(c.Args[0])
			if err != nil {
				return opts, err
			}
			if v != "true" && v != "false" {
				return opts, domainError("write_option", it)
			}
			on := v == "true"
			switch c.Functor {
			case "quoted":
				opts.quoted = on
			case "ignore_ops":
				opts.ignoreOps = on
			default:
				opts.numberVars = on
			}
		case "max_depth":
			n, err := mustSmallInt(c.Args[0])
			if err != nil {
				return opts, err
			}
			opts.maxDepth = n
		default:
			return opts, domainError("write_option", it)
		}
	}
	return opts, nil
}

// checkStream accepts the standard output aliases. Every alias writes to the
// engine's output.
func checkStream(t Term) error {
	switch x := Deref(t).(type) {
	case *Var:
		return instantiationError()
	case Atom:
		if x == "user_output" || x == "user_error" {
			return nil
		}
		return existenceError("stream", x)
	default:
		return domainError("stream_or_alias", x)
	}
}

func writeBuiltin(opts writeOptions, newline bool) (builtinFn, builtinFn) {
	one := func(s *solver, args []Term, _ *module) (bool, error) {
		s.write(args[0], opts)
		if newline {
			io.WriteString(s.e.out, "\n")
		}
		return true, nil
	}
	two := func(s *solver, args []Term, mod *module) (bool, error) {
		if err := checkStream(args[0]); err != nil {
			return false, err
		}
		return one(s, args[1:], mod)
	}
	return one, two
}

func init() {
	for _, d := range []struct {
		name    Atom
		opts    writeOptions
		newline bool
	}{
		{"write", writeOptions{numberVars: true}, false},
		{"print", writeOptions{quoted: true, numberVars: true}, false},
		{"writeln", writeOptions{numberVars: true}, true},
		{"writeq", writeOptions{quoted: true, numberVars: true}, false},
		{"write_canonical", writeOptions{quoted: true, ignoreOps: true}, false},
	} {
		one, two := writeBuiltin(d.opts, d.newline)
		defBuiltin(d.name, 1, one)
		defBuiltin(d.name, 2, two)
	}
	defBuiltin("write_term", 2, func(s *solver, args []Term, _ *module) (bool, error) {
		opts, err := parseWriteOptions(args[1])
		if err != nil {
			return false, err
		}
		s.write(args[0], opts)
		return true, nil
	})
	defBuiltin("write_term", 3, func(s *solver, args []Term, _ *module) (bool, error) {
		if err := checkStream(args[0]); err != nil {
			return false, err
		}
		opts, err := parseWriteOptions(args[2])
		if err != nil {
			return false, err
		}
		s.write(args[1], opts)
		return true, nil
	})
	defBuiltin("nl", 0, func(s *solver, _ []Term, _ *module) (bool, error) {
		io.WriteString(s.e.out, "\n")
		return true, nil
	})
	defBuiltin("nl", 1, func(s *solver, args []Term, _ *module) (bool, error) {
		if err := checkStream(args[0]); err != nil {
			return false, err
		}
		io.WriteString(s.e.out, "\n")
		return true, nil
	})
	defBuiltin("tab", 1, func(s *solver, args []Term, _ *module) (bool, error) {
		v, err := s.eval(args[0])
		if err != nil {
			return false, err
		}
		n, err := mustSmallInt(v)
		if err != nil {
			return false, err
		}
		io.WriteString(s.e.out, strings.Repeat(" ", max(n, 0)))
		return true, nil
	})
	defBuiltin("put_char", 1, func(s *solver, args []Term, _ *module) (bool, error) {
		a, err := mustAtom(args[0])
		if err != nil {
			return false, err
		}
		if utf8.RuneCountInString(string(a)) != 1 {
			return false, typeError("character", a)
		}
		io.WriteString(s.e.out, string(a))
		return true, nil
	})
	defBuiltin("format", 1, func(s *solver, args []Term, _ *module) (bool, error) {
		return true, s.format(s.e.out, args[0], atomNil)
	})
	defBuiltin("format", 2, func(s *solver, args []Term, _ *module) (bool, error) {
		return true, s.format(s.e.out, args[0], args[1])
	})
	defBuiltin("format", 3, func(s *solver, args []Term, _ *module) (bool, error) {
		if sink, ok := Deref(args[0]).(*Compound); ok {
			var b strings.Builder
			if err := s.format(&b, args[1], args[2]); err != nil {
				return false, err
			}
			return unifySink(s, sink, b.String())
		}
		if err := checkStream(args[0]); err != nil {
			return false, err
		}
		return true, s.format(s.e.out, args[1], args[2])
	})
	defControl("with_output_to", 2, func(s *solver, args []Term, mod *module, _ int, next *cont) (bool, error) {
		sink, ok := Deref(args[0]).(*Compound)
		if !ok || len(sink.Args) != 1 {
			if isUnbound(args[0]) {
				return false, instantiationError()
			}
			return false, domainError("output_sink", args[0])
		}
		var b strings.Builder
		saved := s.e.out
		s.e.out = &b
		found, err := s.once(args[1], mod)
		s.e.out = saved
		if err != nil || !found {
			return false, err
		}
		ok, err = unifySink(s, sink, b.String())
		if !ok || err != nil {
			return false, err
		}
		s.cont = next
		return true, nil
	})
}

func unifySink(s *solver, sink *Compound, text string) (bool, error) {
	if len(sink.Args) != 1 {
		return false, domainError("output_sink", sink)
	}
	switch sink.Functor {
	case "atom":
		return s.unify(sink.Args[0], Atom(text)), nil
	case "string":
		return s.unify(sink.Args[0], String(text)), nil
	case "codes":
		return s.unify(sink.Args[0], codeList(text)), nil
	case "chars":
		return s.unify(sink.Args[0], charList(text)), nil
	}
	return false, domainError("output_sink", sink)
}

func formatError(msg string) *Exception {
	return throwTerm(comp("format", String(msg)), nil)
}

// format writes the directives of fmtText applied to args to out.
func (s *solver) format(out io.Writer, fmtText, args Term) error {
	text, err := textOf(fmtText)
	if err != nil {
		return err
	}
	var queue []Term
	if items, tail := ListSlice(args); tail == atomNil {
		queue = items
	} else {
		queue = []Term{args}
	}
	pop := func(d rune) (Term, error) {
		if len(queue) == 0 {
			return nil, formatError("not enough arguments for ~" + string(d))
		}
		t := queue[0]
		queue = queue[1:]
		return Deref(t), nil
	}
	var b strings.Builder
	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r != '~' {
			b.WriteRune(r)
			continue
		}
		i++
		if i >= len(runes) {
			return formatError("truncated format directive")
		}
		num := -1
		if runes[i] == '*' {
			t, err := pop('*')
			if err != nil {
				return err
			}
			if num, err = mustSmallInt(t); err != nil {
				return err
			}
			i++
		} else if runes[i] == '`' && i+2 < len(runes) {
			num = int(runes[i+1])
			i += 2
		} else {
			start := i
			for i < len(runes) && runes[i] >= '0' && runes[i] <= '9' {
				i++
			}
			if i > start {
				num, _ = strconv.Atoi(string(runes[start:i]))
			}
		}
		if i >= len(runes) {
			return formatError("truncated format directive")
		}
		d := runes[i]
		switch d {
		case '~':
			b.WriteByte('~')
		case 'n':
			b.WriteString(strings.Repeat("\n", max(num, 1)))
		case 't', '|', '+':
			// column alignment is not supported
		case 'w', 'p', 'q', 'a':
			t, err := pop(d)
			if err != nil {
				return err
			}
			opts := writeOptions{numberVars: true, quoted: d == 'q' || d == 'p'}
			if d == 'a' && !isAtomic(t) {
				return formatError("~a expects an atomic argument")
			}
			b.WriteString(formatTerm(t, s.e.ops, opts))
		case 'd', 'D':
			t, err := pop(d)
			if err != nil {
				return err
			}
			n, ok := t.(Int)
			if !ok {
				return formatError("~" + string(d) + " expects an integer argument")
			}
			b.WriteString(formatDecimal(n, max(num, 0), d == 'D'))
		case 'f', 'e', 'g':
			t, err := pop(d)
			if err != nil {
				return err
			}
			v, err := s.eval(t)
			if err != nil {
				return err
			}
			f, err := toFloat(v)
			if err != nil {
				return err
			}
			if num < 0 {
				num = 6
			}
			b.WriteString(strconv.FormatFloat(float64(f), byte(d), num, 64))
		case 's':
			t, err := pop(d)
			if err != nil {
				return err
			}
			str, err := textOf(t)
			if err != nil {
				return err
			}
			b.WriteString(str)
		case 'c':
			t, err := pop(d)
			if err != nil {
				return err
			}
			code, err := mustSmallInt(t)
			if err != nil {
				return err
			}
			b.WriteString(strings.Repeat(string(rune(code)), max(num, 1)))
		case 'r', 'R':
			t, err := pop(d)
			if err != nil {
				return err
			}
			n, ok := t.(Int)
			if !ok {
				return formatError("~r expects an integer argument")
			}
			if num < 2 || num > 36 {
				return formatError("~r radix must be between 2 and 36")
			}
			digits := n.v.Text(num)
			if d == 'R' {
				digits = strings.ToUpper(digits)
			}
			b.WriteString(digits)
		case 'i':
			if _, err := pop(d); err != nil {
				return err
			}
		default:
			return formatError("unknown directive ~" + string(d))
		}
	}
	if len(queue) > 0 {
		return formatError("too many arguments")
	}
	_, err = io.WriteString(out, b.String())
	return err
}

// formatDecimal renders n with frac digits after an inserted decimal point,
// optionally grouping the integer part in thousands.
func formatDecimal(n Int, frac int, group bool) string {
	digits := new(strings.Builder)
	abs := n.v.String()
	neg := strings.HasPrefix(abs, "-")
	abs = strings.TrimPrefix(abs, "-")
	if len(abs) <= frac {
		abs = strings.Repeat("0", frac-len(abs)+1) + abs
	}
	whole, part := abs[:len(abs)-frac], abs[len(abs)-frac:]
	if group {
		var g []string
		for len(whole) > 3 {
			g = append([]string{whole[len(whole)-3:]}, g...)
			whole = whole[:len(whole)-3]
		}
		whole = strings.Join(append([]string{whole}, g...), ",")
	}
	if neg {
		digits.WriteByte('-')
	}
	digits.WriteString(whole)
	if frac > 0 {
		digits.WriteByte('.')
		digits.WriteString(part)
	}
	return digits.String()
}
