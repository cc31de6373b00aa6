package machine

import (
	"iter"
	"strings"

	"go.uber.org/zap"

	"github.com/wippyai/prolog-runtime/engine"
	"github.com/wippyai/prolog-runtime/term"
)

// QueryState pulls the answers of one query. It holds its machine
// exclusively until Close.
//
// Next yields the answers in the engine's search order. A query without
// solutions yields a single False leaf; a query with solutions never yields
// a trailing False. Prolog exceptions and engine faults arrive as an
// Exception leaf that ends the query.
type QueryState struct {
	m       *Machine
	q       *engine.Query
	log     *zap.Logger
	pending *LeafAnswer
	answers int
	done    bool
	closed  bool
}

// Next returns the next leaf answer, or false once the query is exhausted.
// After exhaustion or Close it keeps returning false without touching the
// engine.
func (qs *QueryState) Next() (*LeafAnswer, bool) {
	if qs.done || qs.closed {
		return nil, false
	}
	if qs.pending != nil {
		leaf := qs.pending
		qs.pending = nil
		qs.finish()
		return leaf, true
	}

	found, err := qs.q.Next()
	if err != nil {
		qs.finish()
		switch e := err.(type) {
		case *engine.Exception:
			return qs.exception(e.Ball), true
		case *engine.Fault:
			qs.log.Warn("query fault", zap.String("reason", e.Reason), zap.String("detail", e.Detail))
			return qs.exception(e.Term()), true
		default:
			f := &engine.Fault{Reason: engine.FaultPanic, Detail: err.Error()}
			return qs.exception(f.Term()), true
		}
	}
	if !found {
		qs.finish()
		if qs.answers == 0 {
			qs.answers++
			return &LeafAnswer{kind: KindFalse}, true
		}
		return nil, false
	}

	qs.answers++
	leaf, fault := qs.answer()
	if fault != nil {
		qs.finish()
		qs.log.Warn("answer fault", zap.String("reason", fault.Reason), zap.String("detail", fault.Detail))
		return qs.exception(fault.Term()), true
	}
	return leaf, true
}

// answer snapshots the bindings of the current solution. Variables named
// with a leading underscore and variables left unbound are omitted.
func (qs *QueryState) answer() (*LeafAnswer, *engine.Fault) {
	var items []Binding
	for _, v := range qs.q.Vars() {
		if strings.HasPrefix(v.Name, "_") {
			continue
		}
		if _, unbound := engine.Deref(v.Var).(*engine.Var); unbound {
			continue
		}
		t, fault := snapshot(v.Var)
		if fault != nil {
			return nil, fault
		}
		items = append(items, Binding{Name: v.Name, Value: t})
	}
	if len(items) == 0 {
		return &LeafAnswer{kind: KindTrue}, nil
	}
	return answerLeaf(newBindings(items)), nil
}

func (qs *QueryState) exception(ball engine.Term) *LeafAnswer {
	t, fault := snapshot(ball)
	if fault != nil {
		t = term.Compound{Functor: "error", Args: []term.Term{
			term.Compound{Functor: "system_error", Args: []term.Term{term.Atom(fault.Reason)}},
			term.String("exception " + fault.Detail),
		}}
	}
	return exceptionLeaf(t)
}

func (qs *QueryState) finish() {
	if qs.done {
		return
	}
	qs.done = true
	if qs.q != nil {
		qs.q.Close()
	}
	qs.log.Debug("query finished", zap.Int("answers", qs.answers))
}

// Exhausted reports whether Next will return no further answers.
func (qs *QueryState) Exhausted() bool {
	return qs.done && qs.pending == nil
}

// Close abandons the query and releases the machine. Closing twice is a
// no-op.
func (qs *QueryState) Close() {
	if qs.closed {
		return
	}
	qs.finish()
	qs.closed = true
	qs.m.busy.Store(false)
}

// All iterates over the remaining leaf answers and closes the query when
// the loop ends.
func (qs *QueryState) All() iter.Seq[*LeafAnswer] {
	return func(yield func(*LeafAnswer) bool) {
		defer qs.Close()
		for {
			leaf, ok := qs.Next()
			if !ok || !yield(leaf) {
				return
			}
		}
	}
}
