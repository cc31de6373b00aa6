package engine

import "sort"

type opType uint8

const (
	opXFX opType = iota
	opXFY
	opYFX
	opFY
	opFX
	opXF
	opYF
)

var opTypeNames = map[opType]Atom{
	opXFX: "xfx", opXFY: "xfy", opYFX: "yfx",
	opFY: "fy", opFX: "fx", opXF: "xf", opYF: "yf",
}

func parseOpType(a Atom) (opType, bool) {
	for t, n := range opTypeNames {
		if n == a {
			return t, true
		}
	}
	return 0, false
}

func (t opType) prefix() bool  { return t == opFY || t == opFX }
func (t opType) postfix() bool { return t == opXF || t == opYF }

type opDef struct {
	prec int
	typ  opType
}

// argPrec returns the maximum precedence of the left and right operands.
func (d opDef) argPrec() (left, right int) {
	switch d.typ {
	case opXFX:
		return d.prec - 1, d.prec - 1
	case opXFY:
		return d.prec - 1, d.prec
	case opYFX:
		return d.prec, d.prec - 1
	case opFY:
		return 0, d.prec
	case opFX:
		return 0, d.prec - 1
	case opXF:
		return d.prec - 1, 0
	case opYF:
		return d.prec, 0
	}
	return 0, 0
}

type opTable struct {
	prefix  map[Atom]opDef
	infix   map[Atom]opDef
	postfix map[Atom]opDef
}

func newOpTable() *opTable {
	t := &opTable{
		prefix:  make(map[Atom]opDef),
		infix:   make(map[Atom]opDef),
		postfix: make(map[Atom]opDef),
	}
	for _, o := range defaultOps {
		for _, name := range o.names {
			t.add(name, o.prec, o.typ)
		}
	}
	return t
}

var defaultOps = []struct {
	prec  int
	typ   opType
	names []Atom
}{
	{1200, opXFX, []Atom{":-", "-->"}},
	{1200, opFX, []Atom{":-", "?-"}},
	{1150, opFX, []Atom{"dynamic", "discontiguous", "initialization", "multifile", "meta_predicate"}},
	{1100, opXFY, []Atom{";", "|"}},
	{1050, opXFY, []Atom{"->", "*->"}},
	{1000, opXFY, []Atom{","}},
	{900, opFY, []Atom{"\\+"}},
	{700, opXFX, []Atom{"=", "\\=", "==", "\\==", "@<", "@>", "@=<", "@>=", "=..", "is", "=:=", "=\\=", "<", ">", "=<", ">=", "=@=", "\\=@="}},
	{600, opXFY, []Atom{":"}},
	{500, opYFX, []Atom{"+", "-", "/\\", "\\/", "xor"}},
	{400, opYFX, []Atom{"*", "/", "//", "rem", "mod", "div", "<<", ">>", "rdiv"}},
	{200, opXFX, []Atom{"**"}},
	{200, opXFY, []Atom{"^"}},
	{200, opFY, []Atom{"-", "+", "\\"}},
}

// add defines or, with prec 0, removes an operator.
func (t *opTable) add(name Atom, prec int, typ opType) {
	m := t.infix
	switch {
	case typ.prefix():
		m = t.prefix
	case typ.postfix():
		m = t.postfix
	}
	if prec == 0 {
		delete(m, name)
		return
	}
	m[name] = opDef{prec: prec, typ: typ}
}

func (t *opTable) clone() *opTable {
	c := &opTable{
		prefix:  make(map[Atom]opDef, len(t.prefix)),
		infix:   make(map[Atom]opDef, len(t.infix)),
		postfix: make(map[Atom]opDef, len(t.postfix)),
	}
	for k, v := range t.prefix {
		c.prefix[k] = v
	}
	for k, v := range t.infix {
		c.infix[k] = v
	}
	for k, v := range t.postfix {
		c.postfix[k] = v
	}
	return c
}

func (t *opTable) isOp(name Atom) bool {
	_, p := t.prefix[name]
	_, i := t.infix[name]
	_, s := t.postfix[name]
	return p || i || s
}

type opEntry struct {
	name Atom
	def  opDef
}

// all returns every operator definition sorted by name, then type.
func (t *opTable) all() []opEntry {
	var out []opEntry
	for _, m := range []map[Atom]opDef{t.prefix, t.infix, t.postfix} {
		for n, d := range m {
			out = append(out, opEntry{name: n, def: d})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].name != out[j].name {
			return out[i].name < out[j].name
		}
		return out[i].def.typ < out[j].def.typ
	})
	return out
}
