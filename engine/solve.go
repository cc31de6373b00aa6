package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

type contKind uint8

const (
	kGoal contKind = iota
	kCutTo
	kSoftCut
	kPopCatch
)

// cont is a linked continuation: the goals left to run after the current one.
type cont struct {
	kind contKind
	goal Term
	mod  *module
	cutB int // choicepoint height a cut in goal returns to
	cp   *choicepoint
	next *cont
}

type cpKind uint8

const (
	cpClauses cpKind = iota
	cpGoal
	cpRedo
	cpCatch
	cpBarrier
)

type choicepoint struct {
	kind cpKind
	mark int
	next *cont

	// cpClauses
	goal    Term
	mod     *module
	clauses []*clause
	idx     int

	// cpGoal
	alt     Term
	altCutB int

	// cpRedo
	gen func(i int) (ok, more bool)

	// cpCatch
	catcher  Term
	recovery Term
	active   bool
}

const (
	// cancellation is checked every tickMask+1 inferences
	tickMask = 1023
	// maxSubDepth bounds nesting of findall and friends
	maxSubDepth = 4096
)

type solver struct {
	trail
	e       *Engine
	ctx     context.Context
	cps     []*choicepoint
	cont    *cont
	started bool
	steps   *int64
	depth   int
}

func newSolver(ctx context.Context, e *Engine, goal Term, mod *module) *solver {
	var steps int64
	return &solver{
		e:     e,
		ctx:   ctx,
		cont:  &cont{kind: kGoal, goal: goal, mod: mod},
		steps: &steps,
	}
}

// sub returns a solver for goal sharing this solver's limits.
func (s *solver) sub(goal Term, mod *module) (*solver, error) {
	if s.depth >= maxSubDepth {
		return nil, &Fault{Reason: FaultDepth, Detail: "nested meta-calls too deep"}
	}
	return &solver{
		e:     s.e,
		ctx:   s.ctx,
		cont:  &cont{kind: kGoal, goal: goal, mod: mod},
		steps: s.steps,
		depth: s.depth + 1,
	}, nil
}

// next produces the next solution. It returns false when no further
// solutions exist.
func (s *solver) next() (bool, error) {
	if !s.started {
		s.started = true
		return s.run()
	}
	if !s.backtrack() {
		return false, nil
	}
	return s.run()
}

// release undoes all bindings made by the solver and drops its choicepoints.
func (s *solver) release() {
	s.undoTo(0)
	s.cps = nil
	s.cont = nil
}

func (s *solver) tick() error {
	*s.steps++
	n := *s.steps
	if s.e.limit > 0 && n > s.e.limit {
		return &Fault{Reason: FaultLimit, Detail: fmt.Sprintf("exceeded %d inferences", s.e.limit)}
	}
	if n&tickMask == 0 && s.ctx != nil {
		if err := s.ctx.Err(); err != nil {
			return &Fault{Reason: FaultCancelled, Detail: err.Error()}
		}
	}
	return nil
}

func (s *solver) run() (bool, error) {
	for {
		c := s.cont
		if c == nil {
			return true, nil
		}
		s.cont = c.next
		ok := true
		var err error
		switch c.kind {
		case kGoal:
			if err = s.tick(); err == nil {
				ok, err = s.call(c.goal, c.mod, c.cutB, c.next)
			}
		case kCutTo:
			s.cutTo(c.cutB)
		case kSoftCut:
			c.cp.kind = cpBarrier
		case kPopCatch:
			s.exitCatch(c.cp)
		}
		if err != nil {
			ex, isEx := err.(*Exception)
			if !isEx {
				return false, err
			}
			if ok, err = s.throw(ex.Ball); err != nil {
				return false, err
			}
		}
		if !ok && !s.backtrack() {
			return false, nil
		}
	}
}

func (s *solver) push(cp *choicepoint) {
	s.cps = append(s.cps, cp)
}

func (s *solver) cutTo(height int) {
	if height < len(s.cps) {
		for i := height; i < len(s.cps); i++ {
			s.cps[i] = nil
		}
		s.cps = s.cps[:height]
	}
}

func (s *solver) pop() *choicepoint {
	cp := s.cps[len(s.cps)-1]
	s.cps[len(s.cps)-1] = nil
	s.cps = s.cps[:len(s.cps)-1]
	return cp
}

// backtrack resumes the most recent choicepoint that still has an
// alternative. It returns false when none is left.
func (s *solver) backtrack() bool {
	for len(s.cps) > 0 {
		cp := s.pop()
		s.undoTo(cp.mark)
		switch cp.kind {
		case cpClauses:
			if s.tryClauses(cp.goal, cp.mod, cp.clauses, cp.idx, cp.next) {
				return true
			}
		case cpGoal:
			s.cont = &cont{kind: kGoal, goal: cp.alt, mod: cp.mod, cutB: cp.altCutB, next: cp.next}
			return true
		case cpRedo:
			if s.resume(cp.gen, cp.idx, cp.next) {
				return true
			}
		}
	}
	return false
}

// exitCatch deactivates a catch frame once its goal has succeeded.
func (s *solver) exitCatch(cp *choicepoint) {
	if n := len(s.cps); n > 0 && s.cps[n-1] == cp {
		s.pop()
		return
	}
	if cp.active {
		cp.active = false
		s.onUndo(func() { cp.active = true })
	}
}

// throw unwinds to the innermost active catch/3 whose catcher unifies with
// ball. It returns the exception when none does.
func (s *solver) throw(ball Term) (bool, error) {
	ball = copyTerm(ball, make(map[*Var]*Var))
	for len(s.cps) > 0 {
		cp := s.pop()
		if cp.kind != cpCatch || !cp.active {
			continue
		}
		s.undoTo(cp.mark)
		mark := s.mark()
		if s.unify(cp.catcher, ball) {
			s.cont = &cont{kind: kGoal, goal: cp.recovery, mod: cp.mod, cutB: len(s.cps), next: cp.next}
			return true, nil
		}
		s.undoTo(mark)
	}
	return false, &Exception{Ball: ball}
}

// call runs one goal.
func (s *solver) call(goal Term, mod *module, cutB int, next *cont) (bool, error) {
	goal = Deref(goal)
	var name Atom
	var args []Term
	switch g := goal.(type) {
	case Atom:
		name = g
	case *Compound:
		name, args = g.Functor, g.Args
	case *Var:
		return false, instantiationError()
	default:
		return false, typeError("callable", goal)
	}
	k := predKey{name, len(args)}
	if ctl, ok := controls[k]; ok {
		ok, err := ctl(s, args, mod, cutB, next)
		return ok, withContext(err, k)
	}
	if b, ok := builtins[k]; ok {
		ok, err := b(s, args, mod)
		if ok && err == nil {
			s.cont = next
		}
		return ok, withContext(err, k)
	}
	p := s.e.lookup(mod, k)
	if p == nil || (len(p.clauses) == 0 && !p.dynamic) {
		switch s.e.flagAtom("unknown") {
		case "fail":
			return false, nil
		case "warning":
			s.e.log.Warn("unknown procedure",
				zap.String("module", string(mod.name)),
				zap.String("procedure", FormatTerm(k.indicator(), true)))
			return false, nil
		}
		return false, existenceError("procedure", k.indicator())
	}
	if p.meta != nil && p.module != mod {
		goal = qualifyMeta(goal, p.meta, mod)
	}
	return s.tryClauses(goal, p.module, p.clauses, 0, next), nil
}

// withContext fills the unbound context of an error(Formal, Context) raised
// by a builtin with context(Name/Arity, _).
func withContext(err error, k predKey) error {
	ex, ok := err.(*Exception)
	if !ok || !ex.raised {
		return err
	}
	c, ok := ex.Ball.(*Compound)
	if !ok || c.Functor != atomError || len(c.Args) != 2 {
		return err
	}
	if v, ok := c.Args[1].(*Var); !ok || v.Bound() {
		return err
	}
	return &Exception{Ball: comp(atomError, c.Args[0], comp("context", k.indicator(), NewVar("")))}
}

// qualifyMeta prefixes the meta arguments of goal with the calling module so
// that the callee runs them in the caller's context.
func qualifyMeta(goal Term, specs []Term, mod *module) Term {
	c, ok := goal.(*Compound)
	if !ok || len(c.Args) != len(specs) {
		return goal
	}
	args := make([]Term, len(c.Args))
	for i, a := range c.Args {
		args[i] = a
		switch spec := specs[i].(type) {
		case Int:
		case Atom:
			if spec != ":" && spec != "^" {
				continue
			}
		default:
			continue
		}
		if q, ok := Deref(a).(*Compound); ok && q.Functor == ":" && len(q.Args) == 2 {
			continue
		}
		args[i] = comp(":", mod.name, a)
	}
	return &Compound{Functor: c.Functor, Args: args}
}

// tryClauses resolves goal against clauses starting at start, leaving a
// choicepoint when further candidates remain.
func (s *solver) tryClauses(goal Term, mod *module, clauses []*clause, start int, next *cont) bool {
	key := firstArgKey(goal)
	i := nextClause(clauses, start, key)
	for i >= 0 {
		j := nextClause(clauses, i+1, key)
		mark := s.mark()
		cutB := len(s.cps)
		head, body := clauses[i].instantiate()
		if s.unify(head, goal) {
			if j >= 0 {
				s.push(&choicepoint{kind: cpClauses, mark: mark, next: next, goal: goal, mod: mod, clauses: clauses, idx: j})
			}
			if body == atomTrue {
				s.cont = next
			} else {
				s.cont = &cont{kind: kGoal, goal: body, mod: mod, cutB: cutB, next: next}
			}
			return true
		}
		s.undoTo(mark)
		i = j
	}
	return false
}

func nextClause(clauses []*clause, start int, key argKey) int {
	for i := start; i < len(clauses); i++ {
		if clauses[i].key.compatible(key) {
			return i
		}
	}
	return -1
}

// resume drives a generator from index i. gen binds the i-th alternative
// and reports whether it succeeded and whether more alternatives follow.
func (s *solver) resume(gen func(i int) (bool, bool), i int, next *cont) bool {
	mark := s.mark()
	for {
		ok, more := gen(i)
		i++
		if ok {
			if more {
				s.push(&choicepoint{kind: cpRedo, mark: mark, next: next, gen: gen, idx: i})
			}
			s.cont = next
			return true
		}
		s.undoTo(mark)
		if !more {
			return false
		}
	}
}

// alternatives succeeds once for each i in [0, n) for which try succeeds.
func (s *solver) alternatives(next *cont, n int, try func(i int) bool) bool {
	if n <= 0 {
		return false
	}
	return s.resume(func(i int) (bool, bool) {
		return try(i), i < n-1
	}, 0, next)
}

// unifyEach succeeds once for each candidate unifying with t.
func (s *solver) unifyEach(next *cont, t Term, candidates []Term) bool {
	return s.alternatives(next, len(candidates), func(i int) bool {
		return s.unify(t, candidates[i])
	})
}

// once runs goal in a sub-solver and reports whether it has a solution,
// keeping the bindings of the first one.
func (s *solver) once(goal Term, mod *module) (bool, error) {
	sub, err := s.sub(goal, mod)
	if err != nil {
		return false, err
	}
	ok, err := sub.next()
	if err != nil || !ok {
		sub.release()
		return false, err
	}
	// move the solution's bindings onto this solver's trail
	s.entries = append(s.entries, sub.entries...)
	return true, nil
}

// collect runs goal to exhaustion and returns a copy of template for each
// solution. All bindings are undone afterwards.
func (s *solver) collect(template, goal Term, mod *module) ([]Term, error) {
	sub, err := s.sub(goal, mod)
	if err != nil {
		return nil, err
	}
	defer sub.release()
	var out []Term
	for {
		ok, err := sub.next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, copyTerm(template, make(map[*Var]*Var)))
	}
}
