package engine

type builtinFn func(s *solver, args []Term, mod *module) (bool, error)

// controlFn implements goals that manage the continuation or leave
// choicepoints. On success it must set s.cont.
type controlFn func(s *solver, args []Term, mod *module, cutB int, next *cont) (bool, error)

var (
	builtins = make(map[predKey]builtinFn)
	controls = make(map[predKey]controlFn)
)

func defBuiltin(name Atom, arity int, fn builtinFn) {
	builtins[predKey{name, arity}] = fn
}

func defControl(name Atom, arity int, fn controlFn) {
	controls[predKey{name, arity}] = fn
}

func init() {
	defControl("true", 0, func(s *solver, _ []Term, _ *module, _ int, next *cont) (bool, error) {
		s.cont = next
		return true, nil
	})
	defControl("otherwise", 0, controls[predKey{"true", 0}])
	defControl("fail", 0, failControl)
	defControl("false", 0, failControl)
	defControl("!", 0, func(s *solver, _ []Term, _ *module, cutB int, next *cont) (bool, error) {
		s.cutTo(cutB)
		s.cont = next
		return true, nil
	})
	defControl(",", 2, func(s *solver, args []Term, mod *module, cutB int, next *cont) (bool, error) {
		s.cont = &cont{kind: kGoal, goal: args[0], mod: mod, cutB: cutB,
			next: &cont{kind: kGoal, goal: args[1], mod: mod, cutB: cutB, next: next}}
		return true, nil
	})
	defControl(";", 2, disjunction)
	defControl("|", 2, disjunction)
	defControl("->", 2, func(s *solver, args []Term, mod *module, cutB int, next *cont) (bool, error) {
		s.ifThenElse(args[0], args[1], atomFail, mod, cutB, next)
		return true, nil
	})
	defControl("*->", 2, func(s *solver, args []Term, mod *module, cutB int, next *cont) (bool, error) {
		s.cont = &cont{kind: kGoal, goal: args[0], mod: mod, cutB: len(s.cps),
			next: &cont{kind: kGoal, goal: args[1], mod: mod, cutB: cutB, next: next}}
		return true, nil
	})
	defControl("\\+", 1, negation)
	defControl("not", 1, negation)
	defControl("call", 1, func(s *solver, args []Term, mod *module, _ int, next *cont) (bool, error) {
		g, err := mustCallable(args[0])
		if err != nil {
			return false, err
		}
		s.cont = &cont{kind: kGoal, goal: wrapVarGoals(g), mod: mod, cutB: len(s.cps), next: next}
		return true, nil
	})
	for n := 2; n <= 8; n++ {
		defControl("call", n, callN)
	}
	defControl("once", 1, func(s *solver, args []Term, mod *module, cutB int, next *cont) (bool, error) {
		s.ifThenElse(comp("call", args[0]), atomTrue, atomFail, mod, cutB, next)
		return true, nil
	})
	defControl("ignore", 1, func(s *solver, args []Term, mod *module, cutB int, next *cont) (bool, error) {
		s.ifThenElse(comp("call", args[0]), atomTrue, atomTrue, mod, cutB, next)
		return true, nil
	})
	defControl("forall", 2, func(s *solver, args []Term, mod *module, cutB int, next *cont) (bool, error) {
		return negation(s, []Term{comp(atomComma, comp("call", args[0]), comp("\\+", comp("call", args[1])))}, mod, cutB, next)
	})
	defControl(":", 2, func(s *solver, args []Term, mod *module, cutB int, next *cont) (bool, error) {
		name, err := mustAtom(args[0])
		if err != nil {
			return false, err
		}
		s.cont = &cont{kind: kGoal, goal: args[1], mod: s.e.module(name), cutB: cutB, next: next}
		return true, nil
	})
	defControl("catch", 3, func(s *solver, args []Term, mod *module, _ int, next *cont) (bool, error) {
		cp := &choicepoint{kind: cpCatch, mark: s.mark(), next: next, mod: mod,
			catcher: args[1], recovery: args[2], active: true}
		s.push(cp)
		s.cont = &cont{kind: kGoal, goal: comp("call", args[0]), mod: mod, cutB: len(s.cps),
			next: &cont{kind: kPopCatch, cp: cp, next: next}}
		return true, nil
	})
	defBuiltin("throw", 1, func(s *solver, args []Term, _ *module) (bool, error) {
		ball := Deref(args[0])
		if _, ok := ball.(*Var); ok {
			return false, instantiationError()
		}
		return false, &Exception{Ball: copyTerm(ball, make(map[*Var]*Var))}
	})
	defBuiltin("halt", 0, func(s *solver, _ []Term, _ *module) (bool, error) {
		return false, &Fault{Reason: FaultHalt}
	})
	defBuiltin("halt", 1, func(s *solver, args []Term, _ *module) (bool, error) {
		code, err := mustInt(args[0])
		if err != nil {
			return false, err
		}
		return false, &Fault{Reason: FaultHalt, Detail: "exit code " + code.String()}
	})

	defBuiltin("findall", 3, func(s *solver, args []Term, mod *module) (bool, error) {
		if err := checkListOrPartial(args[2]); err != nil {
			return false, err
		}
		results, err := s.collect(args[0], args[1], mod)
		if err != nil {
			return false, err
		}
		return s.unify(args[2], List(results...)), nil
	})
	defBuiltin("findall", 4, func(s *solver, args []Term, mod *module) (bool, error) {
		results, err := s.collect(args[0], args[1], mod)
		if err != nil {
			return false, err
		}
		return s.unify(args[2], ListWithTail(args[3], results...)), nil
	})
	defControl("bagof", 3, func(s *solver, args []Term, mod *module, _ int, next *cont) (bool, error) {
		return s.bagof(args, mod, next, false)
	})
	defControl("setof", 3, func(s *solver, args []Term, mod *module, _ int, next *cont) (bool, error) {
		return s.bagof(args, mod, next, true)
	})
	defBuiltin("aggregate_all", 3, aggregateAll)

	defControl("repeat", 0, func(s *solver, _ []Term, _ *module, _ int, next *cont) (bool, error) {
		return s.resume(func(int) (bool, bool) { return true, true }, 0, next), nil
	})
}

func failControl(*solver, []Term, *module, int, *cont) (bool, error) {
	return false, nil
}

func disjunction(s *solver, args []Term, mod *module, cutB int, next *cont) (bool, error) {
	left := Deref(args[0])
	if c, ok := left.(*Compound); ok && len(c.Args) == 2 {
		switch c.Functor {
		case "->":
			s.ifThenElse(c.Args[0], c.Args[1], args[1], mod, cutB, next)
			return true, nil
		case "*->":
			s.softIfThenElse(c.Args[0], c.Args[1], args[1], mod, cutB, next)
			return true, nil
		}
	}
	s.push(&choicepoint{kind: cpGoal, mark: s.mark(), next: next, mod: mod, alt: args[1], altCutB: cutB})
	s.cont = &cont{kind: kGoal, goal: left, mod: mod, cutB: cutB, next: next}
	return true, nil
}

func negation(s *solver, args []Term, mod *module, cutB int, next *cont) (bool, error) {
	s.ifThenElse(comp("call", args[0]), atomFail, atomTrue, mod, cutB, next)
	return true, nil
}

// ifThenElse pushes the else branch, runs cond with a local cut barrier and
// commits to then on its first solution.
func (s *solver) ifThenElse(cond, then, els Term, mod *module, cutB int, next *cont) {
	b := len(s.cps)
	s.push(&choicepoint{kind: cpGoal, mark: s.mark(), next: next, mod: mod, alt: els, altCutB: cutB})
	s.cont = &cont{kind: kGoal, goal: cond, mod: mod, cutB: b + 1,
		next: &cont{kind: kCutTo, cutB: b,
			next: &cont{kind: kGoal, goal: then, mod: mod, cutB: cutB, next: next}}}
}

// softIfThenElse is ifThenElse keeping the choicepoints of cond.
func (s *solver) softIfThenElse(cond, then, els Term, mod *module, cutB int, next *cont) {
	cp := &choicepoint{kind: cpGoal, mark: s.mark(), next: next, mod: mod, alt: els, altCutB: cutB}
	s.push(cp)
	s.cont = &cont{kind: kGoal, goal: cond, mod: mod, cutB: len(s.cps),
		next: &cont{kind: kSoftCut, cp: cp,
			next: &cont{kind: kGoal, goal: then, mod: mod, cutB: cutB, next: next}}}
}

func callN(s *solver, args []Term, mod *module, _ int, next *cont) (bool, error) {
	g, err := mustCallable(args[0])
	if err != nil {
		return false, err
	}
	g, gm, err := s.e.qualified(g, mod)
	if err != nil {
		return false, err
	}
	goal, err := addArgs(g, args[1:])
	if err != nil {
		return false, err
	}
	s.cont = &cont{kind: kGoal, goal: goal, mod: gm, cutB: len(s.cps), next: next}
	return true, nil
}

// addArgs appends extra arguments to a callable term.
func addArgs(g Term, extra []Term) (Term, error) {
	switch x := Deref(g).(type) {
	case Atom:
		return &Compound{Functor: x, Args: append([]Term(nil), extra...)}, nil
	case *Compound:
		args := make([]Term, 0, len(x.Args)+len(extra))
		args = append(args, x.Args...)
		args = append(args, extra...)
		return &Compound{Functor: x.Functor, Args: args}, nil
	case *Var:
		return nil, instantiationError()
	default:
		return nil, typeError("callable", x)
	}
}

func checkListOrPartial(t Term) error {
	_, tail := ListSlice(t)
	switch tail.(type) {
	case *Var:
		return nil
	case Atom:
		if tail == atomNil {
			return nil
		}
	}
	return typeError("list", t)
}

// stripCaret removes V^ prefixes from a bagof goal, returning the goal and
// the existentially quantified variables.
func stripCaret(g Term) (Term, []*Var) {
	var ex []*Var
	seen := make(map[*Var]bool)
	g = Deref(g)
	for {
		c, ok := g.(*Compound)
		if !ok || c.Functor != "^" || len(c.Args) != 2 {
			return g, ex
		}
		ex = termVars(c.Args[0], ex, seen)
		g = Deref(c.Args[1])
	}
}

func (s *solver) bagof(args []Term, mod *module, next *cont, set bool) (bool, error) {
	template := args[0]
	goal, ex := stripCaret(args[1])
	if _, err := mustCallable(goal); err != nil {
		return false, err
	}
	bound := make(map[*Var]bool)
	for _, v := range termVars(template, nil, make(map[*Var]bool)) {
		bound[v] = true
	}
	for _, v := range ex {
		bound[v] = true
	}
	var free []Term
	for _, v := range termVars(goal, nil, make(map[*Var]bool)) {
		if !bound[v] {
			free = append(free, v)
		}
	}
	witness := NewCompound("v", free...)
	results, err := s.collect(comp("-", witness, template), goal, mod)
	if err != nil {
		return false, err
	}
	if len(results) == 0 {
		return false, nil
	}
	finish := func(items []Term) Term {
		if set {
			items = sortUnique(items)
		}
		return List(items...)
	}
	if len(free) == 0 {
		items := make([]Term, len(results))
		for i, r := range results {
			items[i] = r.(*Compound).Args[1]
		}
		return s.unify(args[2], finish(items)) && s.setNext(next), nil
	}

	type group struct {
		witness Term
		items   []Term
	}
	sorted := append([]Term(nil), results...)
	stableSortBy(sorted, func(a, b Term) int {
		return Compare(a.(*Compound).Args[0], b.(*Compound).Args[0])
	})
	var groups []*group
	for _, r := range sorted {
		pair := r.(*Compound)
		if n := len(groups); n > 0 && variant(groups[n-1].witness, pair.Args[0]) {
			groups[n-1].items = append(groups[n-1].items, pair.Args[1])
			continue
		}
		groups = append(groups, &group{witness: pair.Args[0], items: []Term{pair.Args[1]}})
	}
	return s.alternatives(next, len(groups), func(i int) bool {
		g := groups[i]
		return s.unify(witness, g.witness) && s.unify(args[2], finish(g.items))
	}), nil
}

// setNext sets the continuation and reports success.
func (s *solver) setNext(next *cont) bool {
	s.cont = next
	return true
}

func aggregateAll(s *solver, args []Term, mod *module) (bool, error) {
	spec := Deref(args[0])
	if a, ok := spec.(Atom); ok && a == "count" {
		results, err := s.collect(atomTrue, args[1], mod)
		if err != nil {
			return false, err
		}
		return s.unify(args[2], NewInt(int64(len(results)))), nil
	}
	c, ok := spec.(*Compound)
	if !ok || len(c.Args) != 1 {
		if _, isVar := spec.(*Var); isVar {
			return false, instantiationError()
		}
		return false, domainError("aggregate_spec", spec)
	}
	results, err := s.collect(c.Args[0], args[1], mod)
	if err != nil {
		return false, err
	}
	switch c.Functor {
	case "count":
		return s.unify(args[2], NewInt(int64(len(results)))), nil
	case "bag":
		return s.unify(args[2], List(results...)), nil
	case "set":
		return s.unify(args[2], List(sortUnique(results)...)), nil
	case "sum", "max", "min":
		if len(results) == 0 {
			if c.Functor == "sum" {
				return s.unify(args[2], NewInt(0)), nil
			}
			return false, nil
		}
		var acc Term
		for i, r := range results {
			v, err := s.eval(r)
			if err != nil {
				return false, err
			}
			if i == 0 {
				acc = v
				continue
			}
			switch c.Functor {
			case "sum":
				acc, err = arithAdd(acc, v)
				if err != nil {
					return false, err
				}
			case "max":
				if compareNum(v, acc) > 0 {
					acc = v
				}
			case "min":
				if compareNum(v, acc) < 0 {
					acc = v
				}
			}
		}
		return s.unify(args[2], acc), nil
	}
	return false, domainError("aggregate_spec", spec)
}
