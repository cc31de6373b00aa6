package machine

import (
	"fmt"

	"github.com/wippyai/prolog-runtime/engine"
	"github.com/wippyai/prolog-runtime/term"
)

const (
	// maxMarshalDepth bounds argument nesting; list spines do not count.
	maxMarshalDepth = 1 << 14
	// maxMarshalNodes bounds the size of one snapshot.
	maxMarshalNodes = 1 << 24
)

type marshalLimit struct{}

// unknownTerm carries an engine value the marshaller has no mapping for.
type unknownTerm struct{ t engine.Term }

// marshaller copies engine terms into snapshots. Cyclic and oversized terms
// exhaust its budget.
type marshaller struct {
	nodes int
}

// snapshot copies t. A cyclic or oversized term is reported as a depth_limit
// fault and a value with no snapshot form as a panic fault.
func snapshot(t engine.Term) (st term.Term, fault *engine.Fault) {
	m := &marshaller{}
	defer func() {
		switch r := recover().(type) {
		case nil:
		case marshalLimit:
			st, fault = nil, &engine.Fault{Reason: engine.FaultDepth, Detail: "term is cyclic or too large"}
		case unknownTerm:
			st, fault = nil, &engine.Fault{Reason: engine.FaultPanic, Detail: fmt.Sprintf("no snapshot form for %T", r.t)}
		default:
			panic(r)
		}
	}()
	return m.term(t, 0), nil
}

func (m *marshaller) visit(depth int) {
	m.nodes++
	if depth > maxMarshalDepth || m.nodes > maxMarshalNodes {
		panic(marshalLimit{})
	}
}

func (m *marshaller) term(t engine.Term, depth int) term.Term {
	m.visit(depth)
	switch x := engine.Deref(t).(type) {
	case engine.Int:
		return term.NewInteger(x.Big())
	case engine.Rat:
		if r, ok := term.NewRational(x.Big()); ok {
			return r
		}
		return term.NewInteger(x.Big().Num())
	case engine.Float:
		return term.Float(x)
	case engine.Atom:
		if x == "[]" {
			return term.List{}
		}
		return term.Atom(x)
	case engine.String:
		return term.String(x)
	case *engine.Var:
		return term.Variable(x.Name())
	case *engine.Compound:
		if items, ok := m.list(x, depth); ok {
			return items
		}
		args := make([]term.Term, len(x.Args))
		for i, a := range x.Args {
			args[i] = m.term(a, depth+1)
		}
		return term.Compound{Functor: string(x.Functor), Args: args}
	default:
		panic(unknownTerm{t: x})
	}
}

// list converts a proper list. Partial lists are left to the compound path.
func (m *marshaller) list(c *engine.Compound, depth int) (term.List, bool) {
	n := 0
	var t engine.Term = c
	for {
		cell, ok := t.(*engine.Compound)
		if !ok || cell.Functor != "." || len(cell.Args) != 2 {
			break
		}
		m.visit(depth)
		n++
		t = engine.Deref(cell.Args[1])
	}
	if a, ok := t.(engine.Atom); !ok || a != "[]" {
		return nil, false
	}
	items := make(term.List, 0, n)
	t = c
	for i := 0; i < n; i++ {
		cell := t.(*engine.Compound)
		items = append(items, m.term(cell.Args[0], depth+1))
		t = engine.Deref(cell.Args[1])
	}
	return items, true
}
