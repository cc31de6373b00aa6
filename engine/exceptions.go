package engine

import (
	"fmt"
)

// Exception is a ball thrown by throw/1 or by a builtin and not caught by
// any catch/3 goal.
type Exception struct {
	Ball Term
	// raised marks errors built by a builtin whose context is still open.
	raised bool
}

func (e *Exception) Error() string {
	return "uncaught exception: " + FormatTerm(e.Ball, true)
}

// Fault is an engine-level failure that is not a Prolog exception: a halt,
// an exhausted resource limit, a cancelled context or a recovered panic.
// Faults cannot be caught by catch/3.
type Fault struct {
	Reason string
	Detail string
}

func (f *Fault) Error() string {
	if f.Detail == "" {
		return "engine fault: " + f.Reason
	}
	return fmt.Sprintf("engine fault: %s: %s", f.Reason, f.Detail)
}

// Term returns the fault as error(system_error(Reason), Detail).
func (f *Fault) Term() Term {
	return comp(atomError, comp("system_error", Atom(f.Reason)), String(f.Detail))
}

const (
	FaultHalt      = "halt"
	FaultLimit     = "inference_limit"
	FaultCancelled = "cancelled"
	FaultPanic     = "panic"
	FaultDepth     = "depth_limit"
)

func throwTerm(formal Term, ctx Term) *Exception {
	if ctx == nil {
		ctx = NewVar("")
	}
	return &Exception{Ball: comp(atomError, formal, ctx), raised: true}
}

func instantiationError() *Exception {
	return throwTerm(Atom("instantiation_error"), nil)
}

func typeError(typ Atom, culprit Term) *Exception {
	return throwTerm(comp("type_error", typ, culprit), nil)
}

func domainError(domain Atom, culprit Term) *Exception {
	return throwTerm(comp("domain_error", domain, culprit), nil)
}

func existenceError(kind Atom, culprit Term) *Exception {
	return throwTerm(comp("existence_error", kind, culprit), nil)
}

func permissionError(action, typ Atom, culprit Term) *Exception {
	return throwTerm(comp("permission_error", action, typ, culprit), nil)
}

func representationError(what Atom) *Exception {
	return throwTerm(comp("representation_error", what), nil)
}

func evaluationError(what Atom) *Exception {
	return throwTerm(comp("evaluation_error", what), nil)
}

func syntaxError(e *syntaxErr) *Exception {
	return throwTerm(comp("syntax_error", Atom(e.msg)),
		comp("position", NewInt(int64(e.line)), NewInt(int64(e.col))))
}

// toException converts an error raised while reading into an exception.
func toException(err error) error {
	if se, ok := err.(*syntaxErr); ok {
		return syntaxError(se)
	}
	return err
}

// callable argument checks shared by builtins

func mustCallable(t Term) (Term, error) {
	t = Deref(t)
	switch t.(type) {
	case *Var:
		return nil, instantiationError()
	case Atom, *Compound:
		return t, nil
	}
	return nil, typeError("callable", t)
}

func mustAtom(t Term) (Atom, error) {
	t = Deref(t)
	switch x := t.(type) {
	case *Var:
		return "", instantiationError()
	case Atom:
		return x, nil
	}
	return "", typeError("atom", t)
}

func mustInt(t Term) (Int, error) {
	t = Deref(t)
	switch x := t.(type) {
	case *Var:
		return Int{}, instantiationError()
	case Int:
		return x, nil
	}
	return Int{}, typeError("integer", t)
}

// mustSmallInt returns an integer argument that fits an int.
func mustSmallInt(t Term) (int, error) {
	i, err := mustInt(t)
	if err != nil {
		return 0, err
	}
	if !i.v.IsInt64() || i.v.Int64() > int64(maxInt) || i.v.Int64() < int64(minInt) {
		return 0, representationError("max_integer")
	}
	return int(i.v.Int64()), nil
}

const (
	maxInt = int(^uint(0) >> 1)
	minInt = -maxInt - 1
)

// mustList returns the items of a proper list.
func mustList(t Term) ([]Term, error) {
	items, tail := ListSlice(t)
	switch tail.(type) {
	case *Var:
		return nil, instantiationError()
	case Atom:
		if tail == atomNil {
			return items, nil
		}
	}
	return nil, typeError("list", t)
}
