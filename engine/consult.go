package engine

import (
	"context"
	_ "embed"
	"fmt"
	"io"

	"go.uber.org/zap"
)

//go:embed lib/lists.pl
var listsLibrary string

func (e *Engine) loadLibrary() error {
	return e.Consult("lists", listsLibrary)
}

type consult struct {
	e       *Engine
	mod     *module
	init    []Term
	clauses int
}

// Consult reads program text into module. Clauses are added to what the
// module already holds. A syntax error or an exception raised by a directive
// stops the load; clauses read before it stay loaded. Goals given to
// initialization/1 run once the whole text has been read.
func (e *Engine) Consult(module, text string) error {
	c := &consult{e: e, mod: e.module(Atom(module))}
	p := newParser(text, e.ops, e.flagAtom("double_quotes"))
	for {
		p.dq = e.flagAtom("double_quotes")
		t, err := p.readClause()
		if err == io.EOF {
			break
		}
		if err != nil {
			return toException(err)
		}
		if err := c.handle(t); err != nil {
			return err
		}
	}
	for _, g := range c.init {
		if err := c.directive(g); err != nil {
			return err
		}
	}
	e.log.Debug("consulted",
		zap.String("module", string(c.mod.name)),
		zap.Int("clauses", c.clauses))
	return nil
}

func (c *consult) handle(t Term) error {
	if d, ok := t.(*Compound); ok && len(d.Args) == 1 && (d.Functor == ":-" || d.Functor == "?-") {
		return c.directive(d.Args[0])
	}
	if r, ok := t.(*Compound); ok && r.Functor == "-->" && len(r.Args) == 2 {
		var err error
		if t, err = dcgRule(r.Args[0], r.Args[1]); err != nil {
			return err
		}
	}
	return c.addClause(t)
}

func (c *consult) addClause(t Term) error {
	t, m, err := c.e.qualified(t, c.mod)
	if err != nil {
		return err
	}
	head, body, err := splitClause(t)
	if err != nil {
		return err
	}
	head, m, err = c.e.qualified(head, m)
	if err != nil {
		return err
	}
	name, arity, ok := nameArity(head)
	if !ok {
		return typeError("callable", head)
	}
	p, err := c.e.definePredicate(m, predKey{name, arity})
	if err != nil {
		return err
	}
	p.addClause(compileClause(head, body), false)
	c.clauses++
	return nil
}

func (c *consult) directive(d Term) error {
	d = Deref(d)
	if x, ok := d.(*Compound); ok {
		switch {
		case x.Functor == "module" && len(x.Args) == 2:
			return c.moduleDecl(x.Args[0], x.Args[1])
		case x.Functor == "initialization" && (len(x.Args) == 1 || len(x.Args) == 2):
			c.init = append(c.init, x.Args[0])
			return nil
		case (x.Functor == "use_module" || x.Functor == "ensure_loaded") && len(x.Args) >= 1:
			c.useModule(x.Args[0])
			return nil
		case x.Functor == "discontiguous" || x.Functor == "multifile":
			return nil
		case x.Functor == "meta_predicate" && len(x.Args) == 1:
			return c.metaPredicate(x.Args[0])
		}
	}
	ok, err := c.e.once(d, c.mod)
	if err != nil {
		return err
	}
	if !ok {
		c.e.log.Warn("directive failed",
			zap.String("module", string(c.mod.name)),
			zap.String("goal", FormatTerm(d, true)))
	}
	return nil
}

// moduleDecl switches the rest of the text into module name and limits what
// it exports.
func (c *consult) moduleDecl(name, exports Term) error {
	n, err := mustAtom(name)
	if err != nil {
		return err
	}
	items, err := mustList(exports)
	if err != nil {
		return err
	}
	m := c.e.module(n)
	if m.exports == nil {
		m.exports = make(map[predKey]bool)
	}
	for _, it := range items {
		if op, ok := Deref(it).(*Compound); ok && op.Functor == "op" && len(op.Args) == 3 {
			if _, err := c.e.once(op, m); err != nil {
				return err
			}
			continue
		}
		k, err := indicatorKey(it)
		if err != nil {
			return err
		}
		m.exports[k] = true
	}
	c.mod = m
	return nil
}

// useModule imports an already loaded module. library(Name) names the
// bundled library of that name.
func (c *consult) useModule(spec Term) {
	spec = Deref(spec)
	if lib, ok := spec.(*Compound); ok && lib.Functor == "library" && len(lib.Args) == 1 {
		spec = Deref(lib.Args[0])
	}
	name, ok := spec.(Atom)
	if !ok {
		return
	}
	m, ok := c.e.modules[name]
	if !ok || m == c.mod || c.mod.imports1(m) {
		return
	}
	c.mod.imports = append(c.mod.imports, m)
}

func (c *consult) metaPredicate(specs Term) error {
	for _, spec := range conjList(specs) {
		spec, m, err := c.e.qualified(spec, c.mod)
		if err != nil {
			return err
		}
		h, ok := spec.(*Compound)
		if !ok {
			return typeError("compound", spec)
		}
		p, err := c.e.definePredicate(m, predKey{h.Functor, len(h.Args)})
		if err != nil {
			return err
		}
		p.meta = make([]Term, len(h.Args))
		for i, a := range h.Args {
			p.meta[i] = Deref(a)
		}
	}
	return nil
}

// once runs goal to its first solution and undoes its bindings.
func (e *Engine) once(goal Term, mod *module) (found bool, err error) {
	s := newSolver(context.Background(), e, wrapVarGoals(goal), mod)
	defer s.release()
	defer func() {
		if r := recover(); r != nil {
			found, err = false, recoverFault(r)
		}
	}()
	return s.next()
}

// recoverFault converts a recovered panic into a Fault.
func recoverFault(r any) error {
	if d, ok := r.(depthExceeded); ok {
		return &Fault{Reason: FaultDepth, Detail: d.Error()}
	}
	return &Fault{Reason: FaultPanic, Detail: fmt.Sprint(r)}
}

// dcgRule translates Head --> Body into a clause. A pushback list in
// Head, Pushback --> Body is prepended to the remaining input.
func dcgRule(head, body Term) (Term, error) {
	s0, s := NewVar(""), NewVar("")
	var pushback Term
	if h, ok := Deref(head).(*Compound); ok && h.Functor == atomComma && len(h.Args) == 2 {
		head, pushback = h.Args[0], h.Args[1]
	}
	if _, err := mustCallable(head); err != nil {
		return nil, err
	}
	nh, err := addArgs(head, []Term{s0, s})
	if err != nil {
		return nil, err
	}
	if pushback == nil {
		nb, err := dcgBody(body, s0, s)
		if err != nil {
			return nil, err
		}
		return comp(":-", nh, nb), nil
	}
	mid := NewVar("")
	nb, err := dcgBody(body, s0, mid)
	if err != nil {
		return nil, err
	}
	pb, err := dcgTerminals(pushback, s, mid)
	if err != nil {
		return nil, err
	}
	return comp(":-", nh, comp(atomComma, nb, pb)), nil
}

func dcgTerminals(list, s0, s Term) (Term, error) {
	if str, ok := Deref(list).(String); ok {
		list = codeList(string(str))
	}
	items, tail := ListSlice(list)
	if tail != atomNil {
		return nil, typeError("list", list)
	}
	return comp("=", s0, ListWithTail(s, items...)), nil
}

// dcgBody translates a grammar body threading the difference list s0-s.
func dcgBody(b, s0, s Term) (Term, error) {
	b = Deref(b)
	switch x := b.(type) {
	case *Var:
		return comp("phrase", x, s0, s), nil
	case String:
		return dcgTerminals(x, s0, s)
	case Atom:
		switch x {
		case atomNil, atomCurly:
			return comp("=", s0, s), nil
		case "!":
			return comp(atomComma, x, comp("=", s0, s)), nil
		}
		return comp(x, s0, s), nil
	case *Compound:
		if _, ok := isCons(x); ok {
			return dcgTerminals(x, s0, s)
		}
		switch {
		case x.Functor == atomComma && len(x.Args) == 2:
			mid := NewVar("")
			l, err := dcgBody(x.Args[0], s0, mid)
			if err != nil {
				return nil, err
			}
			r, err := dcgBody(x.Args[1], mid, s)
			if err != nil {
				return nil, err
			}
			return comp(atomComma, l, r), nil
		case (x.Functor == ";" || x.Functor == "|") && len(x.Args) == 2:
			l, err := dcgBody(x.Args[0], s0, s)
			if err != nil {
				return nil, err
			}
			r, err := dcgBody(x.Args[1], s0, s)
			if err != nil {
				return nil, err
			}
			return comp(";", l, r), nil
		case x.Functor == "->" && len(x.Args) == 2:
			mid := NewVar("")
			l, err := dcgBody(x.Args[0], s0, mid)
			if err != nil {
				return nil, err
			}
			r, err := dcgBody(x.Args[1], mid, s)
			if err != nil {
				return nil, err
			}
			return comp("->", l, r), nil
		case x.Functor == "\\+" && len(x.Args) == 1:
			g, err := dcgBody(x.Args[0], s0, NewVar(""))
			if err != nil {
				return nil, err
			}
			return comp(atomComma, comp("\\+", g), comp("=", s0, s)), nil
		case x.Functor == atomCurly && len(x.Args) == 1:
			return comp(atomComma, x.Args[0], comp("=", s0, s)), nil
		case x.Functor == "call" && len(x.Args) >= 1:
			args := append(append([]Term(nil), x.Args...), s0, s)
			return &Compound{Functor: "call", Args: args}, nil
		}
		return addArgs(x, []Term{s0, s})
	}
	return nil, typeError("callable", b)
}

func phrase(s *solver, args []Term, mod *module, _ int, next *cont) (bool, error) {
	rest := Term(atomNil)
	if len(args) == 3 {
		rest = args[2]
	}
	if err := checkListOrPartial(args[1]); err != nil {
		return false, err
	}
	g, gm, err := s.e.qualified(args[0], mod)
	if err != nil {
		return false, err
	}
	if _, err := mustCallable(g); err != nil {
		return false, err
	}
	body, err := dcgBody(g, args[1], rest)
	if err != nil {
		return false, err
	}
	s.cont = &cont{kind: kGoal, goal: body, mod: gm, cutB: len(s.cps), next: next}
	return true, nil
}

func init() {
	defControl("phrase", 2, phrase)
	defControl("phrase", 3, phrase)
}
