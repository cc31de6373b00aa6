package engine

import "sort"

func init() {
	// unification and comparison
	defBuiltin("=", 2, func(s *solver, args []Term, _ *module) (bool, error) {
		return s.unify(args[0], args[1]), nil
	})
	defBuiltin("\\=", 2, func(s *solver, args []Term, _ *module) (bool, error) {
		mark := s.mark()
		ok := s.unify(args[0], args[1])
		s.undoTo(mark)
		return !ok, nil
	})
	defBuiltin("unify_with_occurs_check", 2, func(s *solver, args []Term, _ *module) (bool, error) {
		mark := s.mark()
		if !s.unify(args[0], args[1]) {
			return false, nil
		}
		if !acyclic(args[0]) {
			s.undoTo(mark)
			return false, nil
		}
		return true, nil
	})
	defBuiltin("==", 2, func(s *solver, args []Term, _ *module) (bool, error) {
		return Compare(args[0], args[1]) == 0, nil
	})
	defBuiltin("\\==", 2, func(s *solver, args []Term, _ *module) (bool, error) {
		return Compare(args[0], args[1]) != 0, nil
	})
	defBuiltin("=@=", 2, func(s *solver, args []Term, _ *module) (bool, error) {
		return variant(args[0], args[1]), nil
	})
	defBuiltin("\\=@=", 2, func(s *solver, args []Term, _ *module) (bool, error) {
		return !variant(args[0], args[1]), nil
	})
	order := func(name Atom, ok func(int) bool) {
		defBuiltin(name, 2, func(s *solver, args []Term, _ *module) (bool, error) {
			return ok(Compare(args[0], args[1])), nil
		})
	}
	order("@<", func(c int) bool { return c < 0 })
	order("@>", func(c int) bool { return c > 0 })
	order("@=<", func(c int) bool { return c <= 0 })
	order("@>=", func(c int) bool { return c >= 0 })
	defBuiltin("compare", 3, func(s *solver, args []Term, _ *module) (bool, error) {
		o := Deref(args[0])
		switch x := o.(type) {
		case *Var:
		case Atom:
			if x != "<" && x != "=" && x != ">" {
				return false, domainError("order", o)
			}
		default:
			return false, typeError("atom", o)
		}
		var r Atom
		switch Compare(args[1], args[2]) {
		case -1:
			r = "<"
		case 0:
			r = "="
		default:
			r = ">"
		}
		return s.unify(o, r), nil
	})

	// type checks
	typeCheck := func(name Atom, ok func(Term) bool) {
		defBuiltin(name, 1, func(s *solver, args []Term, _ *module) (bool, error) {
			return ok(Deref(args[0])), nil
		})
	}
	typeCheck("var", func(t Term) bool { _, ok := t.(*Var); return ok })
	typeCheck("nonvar", func(t Term) bool { _, ok := t.(*Var); return !ok })
	typeCheck("atom", func(t Term) bool { _, ok := t.(Atom); return ok })
	typeCheck("number", isNumber)
	typeCheck("integer", func(t Term) bool { _, ok := t.(Int); return ok })
	typeCheck("float", func(t Term) bool { _, ok := t.(Float); return ok })
	typeCheck("rational", func(t Term) bool {
		switch t.(type) {
		case Int, Rat:
			return true
		}
		return false
	})
	typeCheck("atomic", isAtomic)
	typeCheck("compound", func(t Term) bool { _, ok := t.(*Compound); return ok })
	typeCheck("callable", IsCallable)
	typeCheck("is_list", func(t Term) bool { _, tail := ListSlice(t); return tail == atomNil })
	typeCheck("string", func(t Term) bool { _, ok := t.(String); return ok })
	typeCheck("ground", func(t Term) bool { return len(termVars(t, nil, make(map[*Var]bool))) == 0 })
	typeCheck("acyclic_term", acyclic)

	// term construction
	defBuiltin("functor", 3, biFunctor)
	defControl("arg", 3, ctlArg)
	defBuiltin("=..", 2, biUniv)
	defBuiltin("copy_term", 2, func(s *solver, args []Term, _ *module) (bool, error) {
		return s.unify(args[1], copyTerm(args[0], make(map[*Var]*Var))), nil
	})
	defBuiltin("term_variables", 2, func(s *solver, args []Term, _ *module) (bool, error) {
		vars := termVars(args[0], nil, make(map[*Var]bool))
		items := make([]Term, len(vars))
		for i, v := range vars {
			items[i] = v
		}
		return s.unify(args[1], List(items...)), nil
	})
	defBuiltin("setarg", 3, func(s *solver, args []Term, _ *module) (bool, error) {
		n, err := mustSmallInt(args[0])
		if err != nil {
			return false, err
		}
		c, ok := Deref(args[1]).(*Compound)
		if !ok {
			return false, typeError("compound", args[1])
		}
		if n < 1 || n > len(c.Args) {
			return false, nil
		}
		old := c.Args[n-1]
		c.Args[n-1] = Deref(args[2])
		s.onUndo(func() { c.Args[n-1] = old })
		return true, nil
	})

	// lists
	defControl("length", 2, ctlLength)
	defBuiltin("msort", 2, func(s *solver, args []Term, _ *module) (bool, error) {
		items, err := mustList(args[0])
		if err != nil {
			return false, err
		}
		sorted := append([]Term(nil), items...)
		stableSortBy(sorted, Compare)
		return s.unify(args[1], List(sorted...)), nil
	})
	defBuiltin("sort", 2, func(s *solver, args []Term, _ *module) (bool, error) {
		items, err := mustList(args[0])
		if err != nil {
			return false, err
		}
		return s.unify(args[1], List(sortUnique(items)...)), nil
	})
	defBuiltin("sort", 4, biSort4)
	defBuiltin("keysort", 2, func(s *solver, args []Term, _ *module) (bool, error) {
		items, err := mustList(args[0])
		if err != nil {
			return false, err
		}
		for _, it := range items {
			c, ok := Deref(it).(*Compound)
			if _, isVar := Deref(it).(*Var); isVar {
				return false, instantiationError()
			}
			if !ok || c.Functor != "-" || len(c.Args) != 2 {
				return false, typeError("pair", it)
			}
		}
		sorted := append([]Term(nil), items...)
		stableSortBy(sorted, func(a, b Term) int {
			return Compare(Deref(a).(*Compound).Args[0], Deref(b).(*Compound).Args[0])
		})
		return s.unify(args[1], List(sorted...)), nil
	})

	// database
	defBuiltin("assert", 1, func(s *solver, args []Term, mod *module) (bool, error) {
		return true, s.e.assertClause(args[0], mod, false)
	})
	defBuiltin("assertz", 1, func(s *solver, args []Term, mod *module) (bool, error) {
		return true, s.e.assertClause(args[0], mod, false)
	})
	defBuiltin("asserta", 1, func(s *solver, args []Term, mod *module) (bool, error) {
		return true, s.e.assertClause(args[0], mod, true)
	})
	defControl("retract", 1, ctlRetract)
	defControl("clause", 2, ctlClause)
	defBuiltin("retractall", 1, func(s *solver, args []Term, mod *module) (bool, error) {
		head, m, err := s.e.qualified(args[0], mod)
		if err != nil {
			return false, err
		}
		if _, err := mustCallable(head); err != nil {
			return false, err
		}
		name, arity, _ := nameArity(head)
		k := predKey{name, arity}
		p, ok := m.preds[k]
		if !ok {
			p, err = s.e.definePredicate(m, k)
			if err != nil {
				return false, err
			}
			p.dynamic = true
			return true, nil
		}
		if !p.dynamic {
			return false, permissionError("modify", "static_procedure", k.indicator())
		}
		for _, c := range p.clauses {
			h, _ := c.instantiate()
			mark := s.mark()
			if s.unify(h, head) {
				p.removeClause(c)
			}
			s.undoTo(mark)
		}
		return true, nil
	})
	defBuiltin("abolish", 1, func(s *solver, args []Term, mod *module) (bool, error) {
		pi, m, err := s.e.qualified(args[0], mod)
		if err != nil {
			return false, err
		}
		k, err := indicatorKey(pi)
		if err != nil {
			return false, err
		}
		if isBuiltin(k) {
			return false, permissionError("modify", "static_procedure", k.indicator())
		}
		if p, ok := m.preds[k]; ok {
			if !p.dynamic {
				return false, permissionError("modify", "static_procedure", k.indicator())
			}
			delete(m.preds, k)
		}
		return true, nil
	})
	defBuiltin("dynamic", 1, func(s *solver, args []Term, mod *module) (bool, error) {
		return true, s.e.declareDynamic(args[0], mod)
	})
	defBuiltin("discontiguous", 1, func(s *solver, args []Term, mod *module) (bool, error) {
		return true, nil
	})
	defControl("current_predicate", 1, ctlCurrentPredicate)

	// flags and operators
	defBuiltin("set_prolog_flag", 2, func(s *solver, args []Term, _ *module) (bool, error) {
		name, err := mustAtom(args[0])
		if err != nil {
			return false, err
		}
		if _, isVar := Deref(args[1]).(*Var); isVar {
			return false, instantiationError()
		}
		return true, s.e.setFlag(name, args[1])
	})
	defControl("current_prolog_flag", 2, func(s *solver, args []Term, _ *module, _ int, next *cont) (bool, error) {
		names := s.e.flagNames()
		return s.alternatives(next, len(names), func(i int) bool {
			return s.unify(args[0], names[i]) && s.unify(args[1], s.e.flags[names[i]])
		}), nil
	})
	defBuiltin("op", 3, biOp)
	defControl("current_op", 3, func(s *solver, args []Term, _ *module, _ int, next *cont) (bool, error) {
		ops := s.e.ops.all()
		return s.alternatives(next, len(ops), func(i int) bool {
			o := ops[i]
			return s.unify(args[0], NewInt(int64(o.def.prec))) &&
				s.unify(args[1], opTypeNames[o.def.typ]) &&
				s.unify(args[2], o.name)
		}), nil
	})

	// global variables
	defBuiltin("nb_setval", 2, func(s *solver, args []Term, _ *module) (bool, error) {
		key, err := mustAtom(args[0])
		if err != nil {
			return false, err
		}
		s.e.globals[key] = copyTerm(args[1], make(map[*Var]*Var))
		return true, nil
	})
	defBuiltin("b_setval", 2, func(s *solver, args []Term, _ *module) (bool, error) {
		key, err := mustAtom(args[0])
		if err != nil {
			return false, err
		}
		old, had := s.e.globals[key]
		s.e.globals[key] = Deref(args[1])
		s.onUndo(func() {
			if had {
				s.e.globals[key] = old
			} else {
				delete(s.e.globals, key)
			}
		})
		return true, nil
	})
	getval := func(s *solver, args []Term, _ *module) (bool, error) {
		key, err := mustAtom(args[0])
		if err != nil {
			return false, err
		}
		v, ok := s.e.globals[key]
		if !ok {
			return false, existenceError("variable", key)
		}
		return s.unify(args[1], v), nil
	}
	defBuiltin("nb_getval", 2, getval)
	defBuiltin("b_getval", 2, getval)
}

func biFunctor(s *solver, args []Term, _ *module) (bool, error) {
	t := Deref(args[0])
	switch x := t.(type) {
	case *Var:
		name := Deref(args[1])
		n, err := mustSmallInt(args[2])
		if err != nil {
			return false, err
		}
		if n < 0 {
			return false, domainError("not_less_than_zero", args[2])
		}
		if _, isVar := name.(*Var); isVar {
			return false, instantiationError()
		}
		if n == 0 {
			if !isAtomic(name) {
				return false, typeError("atomic", name)
			}
			return s.unify(x, name), nil
		}
		if c, ok := name.(*Compound); ok {
			return false, typeError("atomic", c)
		}
		a, ok := name.(Atom)
		if !ok {
			return false, typeError("atom", name)
		}
		fargs := make([]Term, n)
		for i := range fargs {
			fargs[i] = NewVar("")
		}
		return s.unify(x, &Compound{Functor: a, Args: fargs}), nil
	case *Compound:
		return s.unify(args[1], x.Functor) && s.unify(args[2], NewInt(int64(len(x.Args)))), nil
	default:
		return s.unify(args[1], x) && s.unify(args[2], NewInt(0)), nil
	}
}

func ctlArg(s *solver, args []Term, _ *module, _ int, next *cont) (bool, error) {
	c, ok := Deref(args[1]).(*Compound)
	if !ok {
		if _, isVar := Deref(args[1]).(*Var); isVar {
			return false, instantiationError()
		}
		return false, typeError("compound", args[1])
	}
	switch n := Deref(args[0]).(type) {
	case Int:
		i := int(n.v.Int64())
		if !n.v.IsInt64() || i < 1 || i > len(c.Args) {
			return false, nil
		}
		if !s.unify(args[2], c.Args[i-1]) {
			return false, nil
		}
		s.cont = next
		return true, nil
	case *Var:
		return s.alternatives(next, len(c.Args), func(i int) bool {
			return s.unify(n, NewInt(int64(i+1))) && s.unify(args[2], c.Args[i])
		}), nil
	default:
		return false, typeError("integer", n)
	}
}

func biUniv(s *solver, args []Term, _ *module) (bool, error) {
	t := Deref(args[0])
	switch x := t.(type) {
	case *Var:
		items, err := mustList(args[1])
		if err != nil {
			return false, err
		}
		if len(items) == 0 {
			return false, domainError("non_empty_list", atomNil)
		}
		head := Deref(items[0])
		if len(items) == 1 {
			if _, isVar := head.(*Var); isVar {
				return false, instantiationError()
			}
			return s.unify(x, head), nil
		}
		a, ok := head.(Atom)
		if !ok {
			if _, isVar := head.(*Var); isVar {
				return false, instantiationError()
			}
			return false, typeError("atom", head)
		}
		return s.unify(x, &Compound{Functor: a, Args: append([]Term(nil), items[1:]...)}), nil
	case *Compound:
		items := make([]Term, 0, len(x.Args)+1)
		items = append(items, x.Functor)
		items = append(items, x.Args...)
		return s.unify(args[1], List(items...)), nil
	default:
		return s.unify(args[1], List(x)), nil
	}
}

func ctlLength(s *solver, args []Term, _ *module, _ int, next *cont) (bool, error) {
	items, tail := ListSlice(args[0])
	n := Deref(args[1])
	switch nv := n.(type) {
	case Int:
		if nv.v.Sign() < 0 {
			return false, domainError("not_less_than_zero", n)
		}
	case *Var:
	default:
		return false, typeError("integer", n)
	}
	switch tv := tail.(type) {
	case Atom:
		if tv != atomNil {
			return false, nil
		}
		if !s.unify(n, NewInt(int64(len(items)))) {
			return false, nil
		}
		s.cont = next
		return true, nil
	case *Var:
		if ni, ok := n.(Int); ok {
			want, err := mustSmallInt(ni)
			if err != nil {
				return false, err
			}
			if want < len(items) {
				return false, nil
			}
			if !s.unify(tv, freshList(want-len(items))) {
				return false, nil
			}
			s.cont = next
			return true, nil
		}
		if nv, ok := n.(*Var); ok && nv == tv {
			return false, resourceError("memory")
		}
		return s.resume(func(i int) (bool, bool) {
			return s.unify(tv, freshList(i)) && s.unify(n, NewInt(int64(len(items)+i))), true
		}, 0, next), nil
	}
	return false, nil
}

func freshList(n int) Term {
	items := make([]Term, n)
	for i := range items {
		items[i] = NewVar("")
	}
	return List(items...)
}

func ctlRetract(s *solver, args []Term, mod *module, _ int, next *cont) (bool, error) {
	t, m, err := s.e.qualified(args[0], mod)
	if err != nil {
		return false, err
	}
	head, body := t, Term(atomTrue)
	if c, ok := t.(*Compound); ok && c.Functor == ":-" && len(c.Args) == 2 {
		head, body = Deref(c.Args[0]), c.Args[1]
	}
	head, m, err = s.e.qualified(head, m)
	if err != nil {
		return false, err
	}
	if _, err := mustCallable(head); err != nil {
		return false, err
	}
	name, arity, _ := nameArity(head)
	k := predKey{name, arity}
	p, ok := m.preds[k]
	if !ok {
		return false, nil
	}
	if !p.dynamic {
		return false, permissionError("modify", "static_procedure", k.indicator())
	}
	clauses := p.clauses
	return s.alternatives(next, len(clauses), func(i int) bool {
		c := clauses[i]
		if c.erased {
			return false
		}
		h, b := c.instantiate()
		if s.unify(head, h) && s.unify(body, b) {
			p.removeClause(c)
			return true
		}
		return false
	}), nil
}

func ctlClause(s *solver, args []Term, mod *module, _ int, next *cont) (bool, error) {
	head, m, err := s.e.qualified(args[0], mod)
	if err != nil {
		return false, err
	}
	if _, err := mustCallable(head); err != nil {
		return false, err
	}
	if b := Deref(args[1]); !IsCallable(b) {
		if _, isVar := b.(*Var); !isVar {
			return false, typeError("callable", b)
		}
	}
	name, arity, _ := nameArity(head)
	k := predKey{name, arity}
	if isBuiltin(k) {
		return false, permissionError("access", "private_procedure", k.indicator())
	}
	p := s.e.lookup(m, k)
	if p == nil {
		return false, nil
	}
	clauses := p.clauses
	return s.alternatives(next, len(clauses), func(i int) bool {
		h, b := clauses[i].instantiate()
		return s.unify(head, h) && s.unify(args[1], b)
	}), nil
}

func ctlCurrentPredicate(s *solver, args []Term, mod *module, _ int, next *cont) (bool, error) {
	spec, m, err := s.e.qualified(args[0], mod)
	if err != nil {
		return false, err
	}
	switch x := spec.(type) {
	case *Var:
	case *Compound:
		if x.Functor != "/" || len(x.Args) != 2 {
			return false, typeError("predicate_indicator", spec)
		}
	default:
		return false, typeError("predicate_indicator", spec)
	}
	preds := s.e.predicates(m)
	return s.alternatives(next, len(preds), func(i int) bool {
		return s.unify(spec, preds[i].key.indicator())
	}), nil
}

func biOp(s *solver, args []Term, _ *module) (bool, error) {
	p, err := mustSmallInt(args[0])
	if err != nil {
		return false, err
	}
	if p < 0 || p > 1200 {
		return false, domainError("operator_priority", args[0])
	}
	ta, err := mustAtom(args[1])
	if err != nil {
		return false, err
	}
	typ, ok := parseOpType(ta)
	if !ok {
		return false, domainError("operator_specifier", ta)
	}
	names := Deref(args[2])
	var list []Term
	if a, ok := names.(Atom); ok && a != atomNil {
		list = []Term{a}
	} else if list, err = mustList(names); err != nil {
		return false, err
	}
	for _, n := range list {
		a, err := mustAtom(n)
		if err != nil {
			return false, err
		}
		if a == atomComma {
			return false, permissionError("modify", "operator", a)
		}
		s.e.ops.add(a, p, typ)
	}
	return true, nil
}

func biSort4(s *solver, args []Term, _ *module) (bool, error) {
	key, err := mustSmallInt(args[0])
	if err != nil {
		return false, err
	}
	if key < 0 {
		return false, domainError("not_less_than_zero", args[0])
	}
	ord, err := mustAtom(args[1])
	if err != nil {
		return false, err
	}
	items, err := mustList(args[2])
	if err != nil {
		return false, err
	}
	keyOf := func(t Term) (Term, error) {
		if key == 0 {
			return t, nil
		}
		c, ok := Deref(t).(*Compound)
		if !ok {
			return nil, typeError("compound", t)
		}
		if key > len(c.Args) {
			return nil, typeError("compound", t)
		}
		return c.Args[key-1], nil
	}
	keys := make([]Term, len(items))
	for i, it := range items {
		if keys[i], err = keyOf(it); err != nil {
			return false, err
		}
	}
	idx := make([]int, len(items))
	for i := range idx {
		idx[i] = i
	}
	var cmp func(a, b int) bool
	dedup := false
	switch ord {
	case "@<":
		cmp, dedup = func(a, b int) bool { return Compare(keys[a], keys[b]) < 0 }, true
	case "@=<":
		cmp = func(a, b int) bool { return Compare(keys[a], keys[b]) < 0 }
	case "@>":
		cmp, dedup = func(a, b int) bool { return Compare(keys[a], keys[b]) > 0 }, true
	case "@>=":
		cmp = func(a, b int) bool { return Compare(keys[a], keys[b]) > 0 }
	default:
		return false, domainError("order", ord)
	}
	sort.SliceStable(idx, func(i, j int) bool { return cmp(idx[i], idx[j]) })
	out := make([]Term, 0, len(items))
	for n, i := range idx {
		if dedup && n > 0 && Compare(keys[idx[n-1]], keys[i]) == 0 {
			continue
		}
		out = append(out, items[i])
	}
	return s.unify(args[3], List(out...)), nil
}

func stableSortBy(items []Term, cmp func(a, b Term) int) {
	sort.SliceStable(items, func(i, j int) bool { return cmp(items[i], items[j]) < 0 })
}

// sortUnique sorts by standard order and removes duplicates.
func sortUnique(items []Term) []Term {
	sorted := append([]Term(nil), items...)
	stableSortBy(sorted, Compare)
	out := sorted[:0]
	for i, t := range sorted {
		if i > 0 && Compare(out[len(out)-1], t) == 0 {
			continue
		}
		out = append(out, t)
	}
	return out
}

// variant reports whether a and b are equal up to variable renaming.
func variant(a, b Term) bool {
	ab := make(map[*Var]*Var)
	ba := make(map[*Var]*Var)
	type pair struct{ a, b Term }
	stack := []pair{{a, b}}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		x, y := Deref(p.a), Deref(p.b)
		vx, xIsVar := x.(*Var)
		vy, yIsVar := y.(*Var)
		if xIsVar || yIsVar {
			if !xIsVar || !yIsVar {
				return false
			}
			if m, ok := ab[vx]; ok && m != vy {
				return false
			}
			if m, ok := ba[vy]; ok && m != vx {
				return false
			}
			ab[vx], ba[vy] = vy, vx
			continue
		}
		cx, xc := x.(*Compound)
		cy, yc := y.(*Compound)
		if xc || yc {
			if !xc || !yc || cx.Functor != cy.Functor || len(cx.Args) != len(cy.Args) {
				return false
			}
			for i := range cx.Args {
				stack = append(stack, pair{cx.Args[i], cy.Args[i]})
			}
			continue
		}
		if Compare(x, y) != 0 {
			return false
		}
	}
	return true
}

// acyclic reports whether t has no cycles through bound variables.
func acyclic(t Term) bool {
	const (
		visiting = 1
		done     = 2
	)
	state := make(map[*Compound]int)
	type frame struct {
		c *Compound
		i int
	}
	root, ok := Deref(t).(*Compound)
	if !ok {
		return true
	}
	stack := []frame{{c: root}}
	state[root] = visiting
	for len(stack) > 0 {
		f := &stack[len(stack)-1]
		if f.i == len(f.c.Args) {
			state[f.c] = done
			stack = stack[:len(stack)-1]
			continue
		}
		child, ok := Deref(f.c.Args[f.i]).(*Compound)
		f.i++
		if !ok {
			continue
		}
		switch state[child] {
		case visiting:
			return false
		case done:
			continue
		}
		state[child] = visiting
		stack = append(stack, frame{c: child})
	}
	return true
}
