package engine

import (
	"io"
	"math/big"
)

// VarName pairs a source variable name with its variable.
type VarName struct {
	Name string
	Var  *Var
}

type parser struct {
	lex    *lexer
	ops    *opTable
	dq     Atom
	vars   []VarName
	varMap map[string]*Var
}

func newParser(src string, ops *opTable, doubleQuotes Atom) *parser {
	return &parser{lex: newLexer(src), ops: ops, dq: doubleQuotes}
}

// readClause reads the next clause terminated by an end token. It returns
// io.EOF when the input holds no further clauses. After a syntax error the
// rest of the offending clause is skipped.
func (p *parser) readClause() (Term, error) {
	p.vars = nil
	p.varMap = make(map[string]*Var)
	tok, err := p.lex.peek()
	if err != nil {
		p.lex.skipClause()
		return nil, err
	}
	if tok.kind == tEOF {
		return nil, io.EOF
	}
	t, err := p.parse(1200)
	if err == nil {
		tok, err = p.lex.next()
		if err == nil && tok.kind != tEnd {
			err = p.errorAt(tok, "operator expected, got %s", tok)
		}
	}
	if err != nil {
		if p.lex.last != tEnd {
			p.lex.skipClause()
		}
		return nil, err
	}
	return t, nil
}

func (p *parser) errorAt(t token, format string, args ...any) *syntaxErr {
	e := p.lex.errorf(format, args...)
	e.line, e.col = t.line, t.col
	return e
}

func (p *parser) expect(text string) error {
	t, err := p.lex.next()
	if err != nil {
		return err
	}
	if t.kind != tPunct || t.text != text {
		return p.errorAt(t, "expected %q, got %s", text, t)
	}
	return nil
}

func (p *parser) variable(name string) *Var {
	if name == "_" {
		return NewVar("")
	}
	if v, ok := p.varMap[name]; ok {
		return v
	}
	v := NewVar(name)
	p.varMap[name] = v
	p.vars = append(p.vars, VarName{Name: name, Var: v})
	return v
}

func (p *parser) parse(max int) (Term, error) {
	left, prec, err := p.parsePrimary(max)
	if err != nil {
		return nil, err
	}
	return p.parseInfix(left, prec, max)
}

func (p *parser) parseInfix(left Term, leftPrec, max int) (Term, error) {
	for {
		t, err := p.lex.peek()
		if err != nil {
			return nil, err
		}
		var name Atom
		switch {
		case t.kind == tName:
			name = Atom(t.text)
		case t.kind == tPunct && (t.text == "," || t.text == "|"):
			name = Atom(t.text)
		default:
			return left, nil
		}
		if def, ok := p.ops.infix[name]; ok {
			la, ra := def.argPrec()
			if def.prec <= max && leftPrec <= la {
				p.lex.next()
				right, err := p.parse(ra)
				if err != nil {
					return nil, err
				}
				if name == "|" {
					name = ";"
				}
				left = &Compound{Functor: name, Args: []Term{left, right}}
				leftPrec = def.prec
				continue
			}
		}
		if def, ok := p.ops.postfix[name]; ok {
			la, _ := def.argPrec()
			if def.prec <= max && leftPrec <= la {
				p.lex.next()
				left = &Compound{Functor: name, Args: []Term{left}}
				leftPrec = def.prec
				continue
			}
		}
		return left, nil
	}
}

func (p *parser) parsePrimary(max int) (Term, int, error) {
	t, err := p.lex.next()
	if err != nil {
		return nil, 0, err
	}
	switch t.kind {
	case tInt:
		return Int{v: t.ival}, 0, nil
	case tFloat:
		return Float(t.fval), 0, nil
	case tVar:
		return p.variable(t.text), 0, nil
	case tStr:
		return p.doubleQuoted(t.text), 0, nil
	case tBackq:
		return codeList(t.text), 0, nil
	case tName:
		return p.parseName(t, max)
	case tPunct:
		switch t.text {
		case "(":
			inner, err := p.parse(1200)
			if err != nil {
				return nil, 0, err
			}
			return inner, 0, p.expect(")")
		case "[":
			nx, err := p.lex.peek()
			if err != nil {
				return nil, 0, err
			}
			if nx.kind == tPunct && nx.text == "]" {
				p.lex.next()
				return p.parseName(token{kind: tName, text: string(atomNil), line: t.line, col: t.col}, max)
			}
			return p.parseList()
		case "{":
			nx, err := p.lex.peek()
			if err != nil {
				return nil, 0, err
			}
			if nx.kind == tPunct && nx.text == "}" {
				p.lex.next()
				return p.parseName(token{kind: tName, text: string(atomCurly), line: t.line, col: t.col}, max)
			}
			inner, err := p.parse(1200)
			if err != nil {
				return nil, 0, err
			}
			if err := p.expect("}"); err != nil {
				return nil, 0, err
			}
			return comp(atomCurly, inner), 0, nil
		}
	case tEnd:
		return nil, 0, p.errorAt(t, "unexpected end of clause")
	case tEOF:
		return nil, 0, p.errorAt(t, "unexpected end of file")
	}
	return nil, 0, p.errorAt(t, "unexpected %s", t)
}

func (p *parser) parseList() (Term, int, error) {
	var items []Term
	for {
		item, err := p.parse(999)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, item)
		t, err := p.lex.next()
		if err != nil {
			return nil, 0, err
		}
		if t.kind != tPunct {
			return nil, 0, p.errorAt(t, "expected ',' '|' or ']' in list, got %s", t)
		}
		switch t.text {
		case ",":
			continue
		case "|":
			tail, err := p.parse(999)
			if err != nil {
				return nil, 0, err
			}
			if err := p.expect("]"); err != nil {
				return nil, 0, err
			}
			return ListWithTail(tail, items...), 0, nil
		case "]":
			return List(items...), 0, nil
		}
		return nil, 0, p.errorAt(t, "expected ',' '|' or ']' in list, got %s", t)
	}
}

func (p *parser) parseArgs() ([]Term, error) {
	var args []Term
	for {
		a, err := p.parse(999)
		if err != nil {
			return nil, err
		}
		args = append(args, a)
		t, err := p.lex.next()
		if err != nil {
			return nil, err
		}
		if t.kind == tPunct && t.text == "," {
			continue
		}
		if t.kind == tPunct && t.text == ")" {
			return args, nil
		}
		return nil, p.errorAt(t, "expected ',' or ')' in arguments, got %s", t)
	}
}

func (p *parser) parseName(t token, max int) (Term, int, error) {
	name := Atom(t.text)
	nx, err := p.lex.peek()
	if err != nil {
		return nil, 0, err
	}
	if nx.kind == tPunct && nx.text == "(" && !nx.layout {
		p.lex.next()
		args, err := p.parseArgs()
		if err != nil {
			return nil, 0, err
		}
		return &Compound{Functor: name, Args: args}, 0, nil
	}
	if name == atomMinus && !t.quoted && !nx.layout && (nx.kind == tInt || nx.kind == tFloat) {
		p.lex.next()
		if nx.kind == tInt {
			return Int{v: new(big.Int).Neg(nx.ival)}, 0, nil
		}
		return Float(-nx.fval), 0, nil
	}
	if def, ok := p.ops.prefix[name]; ok && !t.quoted && p.startsTerm(nx) {
		prec := def.prec
		_, argMax := def.argPrec()
		if prec > max {
			prec = max
			if argMax > max {
				argMax = max
			}
		}
		arg, err := p.parse(argMax)
		if err != nil {
			return nil, 0, err
		}
		return &Compound{Functor: name, Args: []Term{arg}}, prec, nil
	}
	return name, 0, nil
}

// startsTerm reports whether t can begin an operand of a prefix operator.
func (p *parser) startsTerm(t token) bool {
	switch t.kind {
	case tInt, tFloat, tVar, tStr, tBackq:
		return true
	case tPunct:
		return t.text == "(" || t.text == "[" || t.text == "{"
	case tName:
		name := Atom(t.text)
		if t.quoted {
			return true
		}
		if _, infix := p.ops.infix[name]; infix {
			if _, prefix := p.ops.prefix[name]; !prefix {
				// a following '(' makes it a compound operand
				nx, err := p.lex.peek2()
				return err == nil && nx.kind == tPunct && nx.text == "(" && !nx.layout
			}
		}
		return true
	}
	return false
}

func (p *parser) doubleQuoted(s string) Term {
	switch p.dq {
	case "codes":
		return codeList(s)
	case "chars":
		return charList(s)
	case "atom":
		return Atom(s)
	}
	return String(s)
}

func codeList(s string) Term {
	items := make([]Term, 0, len(s))
	for _, r := range s {
		items = append(items, NewInt(int64(r)))
	}
	return List(items...)
}

func charList(s string) Term {
	items := make([]Term, 0, len(s))
	for _, r := range s {
		items = append(items, Atom(string(r)))
	}
	return List(items...)
}

// ReadTerm parses a single clause from text using the default operator table.
func ReadTerm(text string) (Term, []VarName, error) {
	p := newParser(text, defaultOpTable, "string")
	t, err := p.readClause()
	if err != nil {
		return nil, nil, toException(err)
	}
	return t, p.vars, nil
}

var defaultOpTable = newOpTable()
