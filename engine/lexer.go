package engine

import (
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

type tokKind uint8

const (
	tEOF tokKind = iota
	tName
	tVar
	tInt
	tFloat
	tStr
	tBackq
	tPunct // ( ) [ ] { } , |
	tEnd
)

type token struct {
	kind   tokKind
	text   string
	ival   *big.Int
	fval   float64
	quoted bool
	layout bool // layout text precedes the token
	line   int
	col    int
}

func (t token) String() string {
	switch t.kind {
	case tEOF:
		return "end of file"
	case tEnd:
		return "end of clause"
	case tInt:
		return t.ival.String()
	case tFloat:
		return strconv.FormatFloat(t.fval, 'g', -1, 64)
	}
	return t.text
}

type lexer struct {
	src  string
	pos  int
	line int
	col  int

	peeked []token
	last   tokKind
}

func newLexer(src string) *lexer {
	return &lexer{src: src, line: 1, col: 1}
}

type syntaxErr struct {
	msg  string
	line int
	col  int
}

func (e *syntaxErr) Error() string {
	return fmt.Sprintf("syntax error: %s at line %d, column %d", e.msg, e.line, e.col)
}

func (l *lexer) errorf(format string, args ...any) *syntaxErr {
	return &syntaxErr{msg: fmt.Sprintf(format, args...), line: l.line, col: l.col}
}

func (l *lexer) peekRune() rune {
	if l.pos >= len(l.src) {
		return -1
	}
	r, _ := utf8.DecodeRuneInString(l.src[l.pos:])
	return r
}

func (l *lexer) peekRuneAt(off int) rune {
	p := l.pos
	for i := 0; i < off; i++ {
		if p >= len(l.src) {
			return -1
		}
		_, n := utf8.DecodeRuneInString(l.src[p:])
		p += n
	}
	if p >= len(l.src) {
		return -1
	}
	r, _ := utf8.DecodeRuneInString(l.src[p:])
	return r
}

func (l *lexer) nextRune() rune {
	if l.pos >= len(l.src) {
		return -1
	}
	r, n := utf8.DecodeRuneInString(l.src[l.pos:])
	l.pos += n
	if r == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return r
}

func isSymbolChar(r rune) bool {
	return strings.ContainsRune("+-*/\\^<>=~:.?@#&$", r)
}

func isAlnum(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func isLayout(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\f' || r == '\v' || unicode.IsSpace(r)
}

// skipLayout consumes whitespace and comments and reports whether any was
// found.
func (l *lexer) skipLayout() (bool, error) {
	skipped := false
	for {
		r := l.peekRune()
		switch {
		case r == -1:
			return skipped, nil
		case isLayout(r):
			l.nextRune()
			skipped = true
		case r == '%':
			for r != '\n' && r != -1 {
				r = l.nextRune()
			}
			skipped = true
		case r == '/' && l.peekRuneAt(1) == '*':
			l.nextRune()
			l.nextRune()
			for {
				c := l.nextRune()
				if c == -1 {
					return skipped, l.errorf("unterminated block comment")
				}
				if c == '*' && l.peekRune() == '/' {
					l.nextRune()
					break
				}
			}
			skipped = true
		default:
			return skipped, nil
		}
	}
}

func (l *lexer) peek() (token, error) {
	if len(l.peeked) == 0 {
		t, err := l.scan()
		if err != nil {
			return token{}, err
		}
		l.peeked = append(l.peeked, t)
	}
	return l.peeked[0], nil
}

// peek2 returns the token after the next one.
func (l *lexer) peek2() (token, error) {
	if _, err := l.peek(); err != nil {
		return token{}, err
	}
	if len(l.peeked) < 2 {
		t, err := l.scan()
		if err != nil {
			return token{}, err
		}
		l.peeked = append(l.peeked, t)
	}
	return l.peeked[1], nil
}

func (l *lexer) next() (token, error) {
	t, err := l.peek()
	if err != nil {
		return token{}, err
	}
	l.peeked = l.peeked[1:]
	l.last = t.kind
	return t, nil
}

// skipClause discards input up to and including the next end token so that
// reading can resume after a syntax error.
func (l *lexer) skipClause() {
	l.peeked = nil
	for {
		t, err := l.scan()
		if err != nil {
			if l.pos >= len(l.src) {
				return
			}
			l.nextRune()
			continue
		}
		if t.kind == tEnd || t.kind == tEOF {
			return
		}
	}
}

func (l *lexer) scan() (token, error) {
	layout, err := l.skipLayout()
	if err != nil {
		return token{}, err
	}
	tok := token{layout: layout, line: l.line, col: l.col}
	r := l.peekRune()
	switch {
	case r == -1:
		tok.kind = tEOF
		return tok, nil
	case unicode.IsDigit(r):
		return l.scanNumber(tok)
	case r == '_' || unicode.IsUpper(r):
		start := l.pos
		for isAlnum(l.peekRune()) {
			l.nextRune()
		}
		tok.kind = tVar
		tok.text = l.src[start:l.pos]
		return tok, nil
	case unicode.IsLetter(r):
		start := l.pos
		for isAlnum(l.peekRune()) {
			l.nextRune()
		}
		tok.kind = tName
		tok.text = l.src[start:l.pos]
		return tok, nil
	case r == '\'':
		l.nextRune()
		s, err := l.scanQuoted('\'')
		if err != nil {
			return token{}, err
		}
		tok.kind = tName
		tok.text = s
		tok.quoted = true
		return tok, nil
	case r == '"':
		l.nextRune()
		s, err := l.scanQuoted('"')
		if err != nil {
			return token{}, err
		}
		tok.kind = tStr
		tok.text = s
		return tok, nil
	case r == '`':
		l.nextRune()
		s, err := l.scanQuoted('`')
		if err != nil {
			return token{}, err
		}
		tok.kind = tBackq
		tok.text = s
		return tok, nil
	case r == '(':
		l.nextRune()
		tok.kind = tPunct
		tok.text = "("
		return tok, nil
	case strings.ContainsRune(")[]{},|", r):
		l.nextRune()
		tok.kind = tPunct
		tok.text = string(r)
		if r == '|' && l.peekRune() == '|' {
			l.nextRune()
			tok.kind = tName
			tok.text = "||"
		}
		return tok, nil
	case r == '!' || r == ';':
		l.nextRune()
		tok.kind = tName
		tok.text = string(r)
		return tok, nil
	case r == '.':
		n := l.peekRuneAt(1)
		if n == -1 || isLayout(n) || n == '%' {
			l.nextRune()
			tok.kind = tEnd
			tok.text = "."
			return tok, nil
		}
		fallthrough
	case isSymbolChar(r):
		start := l.pos
		for isSymbolChar(l.peekRune()) {
			l.nextRune()
		}
		tok.kind = tName
		tok.text = l.src[start:l.pos]
		return tok, nil
	}
	return token{}, l.errorf("illegal character %q", r)
}

// scanQuoted reads a quoted item after its opening quote.
func (l *lexer) scanQuoted(q rune) (string, error) {
	var sb strings.Builder
	for {
		r := l.nextRune()
		switch r {
		case -1:
			return "", l.errorf("unterminated quoted")
		case q:
			if l.peekRune() == q {
				l.nextRune()
				sb.WriteRune(q)
				continue
			}
			return sb.String(), nil
		case '\\':
			c, skip, err := l.scanEscape()
			if err != nil {
				return "", err
			}
			if !skip {
				sb.WriteRune(c)
			}
		default:
			sb.WriteRune(r)
		}
	}
}

// scanEscape reads an escape sequence after the backslash. skip is set for a
// line continuation.
func (l *lexer) scanEscape() (r rune, skip bool, err error) {
	c := l.nextRune()
	switch c {
	case 'n':
		return '\n', false, nil
	case 't':
		return '\t', false, nil
	case 'r':
		return '\r', false, nil
	case 'a':
		return '\a', false, nil
	case 'b':
		return '\b', false, nil
	case 'f':
		return '\f', false, nil
	case 'v':
		return '\v', false, nil
	case 'e':
		return 0x1b, false, nil
	case 's':
		return ' ', false, nil
	case '0', '1', '2', '3', '4', '5', '6', '7':
		digits := string(c)
		for {
			d := l.nextRune()
			if d == '\\' {
				break
			}
			if d < '0' || d > '7' {
				return 0, false, l.errorf("invalid octal escape")
			}
			digits += string(d)
		}
		n, perr := strconv.ParseInt(digits, 8, 32)
		if perr != nil {
			return 0, false, l.errorf("invalid octal escape")
		}
		return rune(n), false, nil
	case 'x':
		digits := ""
		for {
			d := l.nextRune()
			if d == '\\' {
				break
			}
			if !strings.ContainsRune("0123456789abcdefABCDEF", d) {
				return 0, false, l.errorf("invalid hex escape")
			}
			digits += string(d)
		}
		n, perr := strconv.ParseInt(digits, 16, 32)
		if perr != nil {
			return 0, false, l.errorf("invalid hex escape")
		}
		return rune(n), false, nil
	case '\n':
		return 0, true, nil
	case '\\', '\'', '"', '`':
		return c, false, nil
	}
	return 0, false, l.errorf("undefined escape sequence \\%c", c)
}

func (l *lexer) scanNumber(tok token) (token, error) {
	start := l.pos
	if l.peekRune() == '0' {
		switch l.peekRuneAt(1) {
		case '\'':
			l.nextRune()
			l.nextRune()
			r := l.nextRune()
			switch {
			case r == -1:
				return token{}, l.errorf("unexpected end of file")
			case r == '\\':
				c, skip, err := l.scanEscape()
				if err != nil {
					return token{}, err
				}
				if skip {
					return token{}, l.errorf("invalid character code")
				}
				r = c
			case r == '\'' && l.peekRune() == '\'':
				l.nextRune()
			}
			tok.kind = tInt
			tok.ival = big.NewInt(int64(r))
			return tok, nil
		case 'x', 'o', 'b':
			base := map[rune]int{'x': 16, 'o': 8, 'b': 2}[l.peekRuneAt(1)]
			if isDigitIn(l.peekRuneAt(2), base) {
				l.nextRune()
				l.nextRune()
				ds := l.pos
				for isDigitIn(l.peekRune(), base) {
					l.nextRune()
				}
				n, _ := new(big.Int).SetString(l.src[ds:l.pos], base)
				tok.kind = tInt
				tok.ival = n
				return tok, nil
			}
		}
	}
	for unicode.IsDigit(l.peekRune()) || (l.peekRune() == '_' && unicode.IsDigit(l.peekRuneAt(1))) {
		l.nextRune()
	}
	isFloat := false
	if l.peekRune() == '.' && unicode.IsDigit(l.peekRuneAt(1)) {
		isFloat = true
		l.nextRune()
		for unicode.IsDigit(l.peekRune()) {
			l.nextRune()
		}
	}
	if e := l.peekRune(); e == 'e' || e == 'E' {
		n := l.peekRuneAt(1)
		if unicode.IsDigit(n) || ((n == '+' || n == '-') && unicode.IsDigit(l.peekRuneAt(2))) {
			isFloat = true
			l.nextRune()
			if n == '+' || n == '-' {
				l.nextRune()
			}
			for unicode.IsDigit(l.peekRune()) {
				l.nextRune()
			}
		}
	}
	text := strings.ReplaceAll(l.src[start:l.pos], "_", "")
	if isFloat {
		if strings.HasPrefix(l.src[l.pos:], "Inf") {
			l.pos += 3
			l.col += 3
			tok.kind = tFloat
			tok.fval = math.Inf(1)
			return tok, nil
		}
		if strings.HasPrefix(l.src[l.pos:], "NaN") {
			l.pos += 3
			l.col += 3
			tok.kind = tFloat
			tok.fval = math.NaN()
			return tok, nil
		}
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return token{}, l.errorf("invalid float %s", text)
		}
		tok.kind = tFloat
		tok.fval = f
		return tok, nil
	}
	if l.peekRune() == '\'' {
		// radix notation R'digits
		if base, err := strconv.Atoi(text); err == nil && base >= 2 && base <= 36 && isDigitIn(l.peekRuneAt(1), base) {
			l.nextRune()
			ds := l.pos
			for isDigitIn(l.peekRune(), base) {
				l.nextRune()
			}
			n, _ := new(big.Int).SetString(l.src[ds:l.pos], base)
			tok.kind = tInt
			tok.ival = n
			return tok, nil
		}
	}
	n, ok := new(big.Int).SetString(text, 10)
	if !ok {
		return token{}, l.errorf("invalid integer %s", text)
	}
	tok.kind = tInt
	tok.ival = n
	return tok, nil
}

func isDigitIn(r rune, base int) bool {
	var v int
	switch {
	case r >= '0' && r <= '9':
		v = int(r - '0')
	case r >= 'a' && r <= 'z':
		v = int(r-'a') + 10
	case r >= 'A' && r <= 'Z':
		v = int(r-'A') + 10
	default:
		return false
	}
	return v < base
}
