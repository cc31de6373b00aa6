package engine

import (
	"sort"
)

type predKey struct {
	name  Atom
	arity int
}

func (k predKey) indicator() Term {
	return comp("/", k.name, NewInt(int64(k.arity)))
}

type module struct {
	name    Atom
	preds   map[predKey]*predicate
	exports map[predKey]bool // nil exports everything
	imports []*module
}

func newModule(name Atom) *module {
	return &module{name: name, preds: make(map[predKey]*predicate)}
}

func (m *module) exported(k predKey) bool {
	return m.exports == nil || m.exports[k]
}

func (m *module) imports1(o *module) bool {
	for _, im := range m.imports {
		if im == o {
			return true
		}
	}
	return false
}

type predicate struct {
	key           predKey
	module        *module
	clauses       []*clause
	dynamic       bool
	discontiguous bool
	meta          []Term // meta_predicate argument specifiers
}

// addClause appends or prepends c. The clause slice is replaced rather than
// mutated so that running calls keep their snapshot.
func (p *predicate) addClause(c *clause, front bool) {
	n := make([]*clause, 0, len(p.clauses)+1)
	if front {
		n = append(n, c)
		n = append(n, p.clauses...)
	} else {
		n = append(n, p.clauses...)
		n = append(n, c)
	}
	p.clauses = n
}

func (p *predicate) removeClause(c *clause) {
	n := make([]*clause, 0, len(p.clauses))
	for _, o := range p.clauses {
		if o != c {
			n = append(n, o)
		}
	}
	c.erased = true
	p.clauses = n
}

type argKey struct {
	kind  uint8 // 0 none, 1 atom, 2 number, 3 string, 4 compound
	name  string
	arity int
}

func keyOf(t Term) argKey {
	switch x := Deref(t).(type) {
	case Atom:
		return argKey{kind: 1, name: string(x)}
	case Int:
		return argKey{kind: 2, name: x.v.String()}
	case Rat:
		return argKey{kind: 2, name: x.v.String()}
	case Float:
		return argKey{kind: 2, name: FormatTerm(x, false)}
	case String:
		return argKey{kind: 3, name: string(x)}
	case *Compound:
		return argKey{kind: 4, name: string(x.Functor), arity: len(x.Args)}
	}
	return argKey{}
}

func firstArgKey(head Term) argKey {
	if c, ok := Deref(head).(*Compound); ok {
		return keyOf(c.Args[0])
	}
	return argKey{}
}

func (k argKey) compatible(o argKey) bool {
	return k.kind == 0 || o.kind == 0 || k == o
}

type clause struct {
	head   Term
	body   Term
	nvars  int
	key    argKey
	erased bool
}

// ground wraps a variable-free subterm of a stored clause so renaming can
// share it.
type ground struct {
	t Term
}

func (ground) term() {}

func compileClause(head, body Term) *clause {
	m := make(map[*Var]clauseVar)
	h, _ := toClauseTerm(head, m, 0)
	b, _ := toClauseTerm(body, m, 0)
	return &clause{head: unground(h), body: unground(b), nvars: len(m), key: firstArgKey(head)}
}

func unground(t Term) Term {
	if g, ok := t.(ground); ok {
		return g.t
	}
	return t
}

func toClauseTerm(t Term, m map[*Var]clauseVar, depth int) (Term, bool) {
	if depth > maxDepth {
		panic(depthExceeded{op: "assert"})
	}
	t = Deref(t)
	switch x := t.(type) {
	case *Var:
		cv, ok := m[x]
		if !ok {
			cv = clauseVar(len(m))
			m[x] = cv
		}
		return cv, true
	case *Compound:
		args := make([]Term, len(x.Args))
		hasVars := false
		for i, a := range x.Args {
			var v bool
			args[i], v = toClauseTerm(a, m, depth+1)
			hasVars = hasVars || v
		}
		if !hasVars {
			for i := range args {
				args[i] = unground(args[i])
			}
			return ground{t: &Compound{Functor: x.Functor, Args: args}}, false
		}
		return &Compound{Functor: x.Functor, Args: args}, true
	}
	return t, false
}

// instantiate returns the clause head and body with fresh variables.
func (c *clause) instantiate() (Term, Term) {
	if c.nvars == 0 {
		return c.head, c.body
	}
	vars := make([]*Var, c.nvars)
	return rename(c.head, vars), rename(c.body, vars)
}

func rename(t Term, vars []*Var) Term {
	switch x := t.(type) {
	case clauseVar:
		if vars[x] == nil {
			vars[x] = NewVar("")
		}
		return vars[x]
	case ground:
		return x.t
	case *Compound:
		args := make([]Term, len(x.Args))
		changed := false
		for i, a := range x.Args {
			args[i] = rename(a, vars)
			if args[i] != a {
				changed = true
			}
		}
		if !changed {
			return x
		}
		return &Compound{Functor: x.Functor, Args: args}
	}
	return t
}

// module returns the named module, creating it on first use. New modules are
// imported into user.
func (e *Engine) module(name Atom) *module {
	if m, ok := e.modules[name]; ok {
		return m
	}
	m := newModule(name)
	e.modules[name] = m
	if e.user != nil && name != atomUser && !e.user.imports1(m) {
		e.user.imports = append(e.user.imports, m)
	}
	return m
}

// lookup resolves a predicate visible from m: its own predicates, then the
// exports of its imports, then user.
func (e *Engine) lookup(m *module, k predKey) *predicate {
	if p, ok := m.preds[k]; ok {
		return p
	}
	for _, im := range m.imports {
		if p, ok := im.preds[k]; ok && im.exported(k) {
			return p
		}
	}
	if m != e.user {
		return e.lookup(e.user, k)
	}
	return nil
}

func isBuiltin(k predKey) bool {
	if _, ok := controls[k]; ok {
		return true
	}
	_, ok := builtins[k]
	return ok
}

// definePredicate returns the predicate k local to m, creating it.
func (e *Engine) definePredicate(m *module, k predKey) (*predicate, error) {
	if isBuiltin(k) {
		return nil, permissionError("modify", "static_procedure", k.indicator())
	}
	p, ok := m.preds[k]
	if !ok {
		p = &predicate{key: k, module: m}
		m.preds[k] = p
	}
	return p, nil
}

func splitClause(t Term) (head, body Term, err error) {
	t = Deref(t)
	if c, ok := t.(*Compound); ok && c.Functor == ":-" && len(c.Args) == 2 {
		head, body = Deref(c.Args[0]), Deref(c.Args[1])
	} else {
		head, body = t, atomTrue
	}
	switch head.(type) {
	case *Var:
		return nil, nil, instantiationError()
	case Atom, *Compound:
	default:
		return nil, nil, typeError("callable", head)
	}
	if _, ok := body.(*Var); !ok && !IsCallable(body) {
		return nil, nil, typeError("callable", body)
	}
	return head, wrapVarGoals(body), nil
}

// qualified strips Module:Term qualification, resolving the module.
func (e *Engine) qualified(t Term, m *module) (Term, *module, error) {
	t = Deref(t)
	for {
		c, ok := t.(*Compound)
		if !ok || c.Functor != ":" || len(c.Args) != 2 {
			return t, m, nil
		}
		name, err := mustAtom(c.Args[0])
		if err != nil {
			return nil, nil, err
		}
		m = e.module(name)
		t = Deref(c.Args[1])
	}
}

// assertClause adds a clause from assert/1 family calls.
func (e *Engine) assertClause(t Term, m *module, front bool) error {
	t, m, err := e.qualified(t, m)
	if err != nil {
		return err
	}
	head, body, err := splitClause(t)
	if err != nil {
		return err
	}
	head, m, err = e.qualified(head, m)
	if err != nil {
		return err
	}
	name, arity, ok := nameArity(head)
	if !ok {
		if _, isVar := head.(*Var); isVar {
			return instantiationError()
		}
		return typeError("callable", head)
	}
	k := predKey{name, arity}
	p, ok := m.preds[k]
	if !ok {
		if p, err = e.definePredicate(m, k); err != nil {
			return err
		}
		p.dynamic = true
	} else if !p.dynamic && len(p.clauses) > 0 {
		return permissionError("modify", "static_procedure", k.indicator())
	}
	p.addClause(compileClause(head, body), front)
	return nil
}

// declareDynamic marks Name/Arity as dynamic in m.
func (e *Engine) declareDynamic(spec Term, m *module) error {
	spec, m, err := e.qualified(spec, m)
	if err != nil {
		return err
	}
	for _, pi := range conjList(spec) {
		pi, pm, err := e.qualified(pi, m)
		if err != nil {
			return err
		}
		k, err := indicatorKey(pi)
		if err != nil {
			return err
		}
		p, err := e.definePredicate(pm, k)
		if err != nil {
			return err
		}
		p.dynamic = true
	}
	return nil
}

// conjList flattens (A, B) and proper lists into their elements.
func conjList(t Term) []Term {
	t = Deref(t)
	if items, tail := ListSlice(t); tail == atomNil {
		return items
	}
	var out []Term
	for {
		c, ok := t.(*Compound)
		if !ok || c.Functor != atomComma || len(c.Args) != 2 {
			return append(out, t)
		}
		out = append(out, Deref(c.Args[0]))
		t = Deref(c.Args[1])
	}
}

func indicatorKey(t Term) (predKey, error) {
	t = Deref(t)
	c, ok := t.(*Compound)
	if !ok {
		if _, isVar := t.(*Var); isVar {
			return predKey{}, instantiationError()
		}
		return predKey{}, typeError("predicate_indicator", t)
	}
	if (c.Functor != "/" && c.Functor != "//") || len(c.Args) != 2 {
		return predKey{}, typeError("predicate_indicator", t)
	}
	name, err := mustAtom(c.Args[0])
	if err != nil {
		return predKey{}, err
	}
	arity, err := mustSmallInt(c.Args[1])
	if err != nil {
		return predKey{}, err
	}
	if arity < 0 {
		return predKey{}, domainError("not_less_than_zero", c.Args[1])
	}
	if c.Functor == "//" {
		arity += 2
	}
	return predKey{name, arity}, nil
}

// wrapVarGoals replaces variable goals in control positions with call/1.
func wrapVarGoals(t Term) Term {
	t = Deref(t)
	switch x := t.(type) {
	case *Var:
		return comp("call", x)
	case *Compound:
		switch {
		case len(x.Args) == 2 && (x.Functor == atomComma || x.Functor == ";" || x.Functor == "->" || x.Functor == "*->"):
			return comp(x.Functor, wrapVarGoals(x.Args[0]), wrapVarGoals(x.Args[1]))
		}
	}
	return t
}

// predicates returns the keys visible in m, sorted.
func (e *Engine) predicates(m *module) []*predicate {
	seen := make(map[predKey]bool)
	var out []*predicate
	add := func(mm *module, exportedOnly bool) {
		for k, p := range mm.preds {
			if seen[k] || (exportedOnly && !mm.exported(k)) {
				continue
			}
			if len(p.clauses) == 0 && !p.dynamic {
				continue
			}
			seen[k] = true
			out = append(out, p)
		}
	}
	add(m, false)
	for _, im := range m.imports {
		add(im, true)
	}
	if m != e.user {
		add(e.user, false)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].key.name != out[j].key.name {
			return out[i].key.name < out[j].key.name
		}
		return out[i].key.arity < out[j].key.arity
	})
	return out
}
