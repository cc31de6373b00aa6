package ffi

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/wippyai/prolog-runtime/errors"
	"github.com/wippyai/prolog-runtime/machine"
	"github.com/wippyai/prolog-runtime/term"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newSurface(t *testing.T) *Surface {
	t.Helper()
	s := New(DefaultOptions())
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func ok(t *testing.T, s *Surface, st Status) {
	t.Helper()
	require.Equal(t, StatusSuccess, st, "last error: %v", s.LastError())
}

func failsWith(t *testing.T, s *Surface, st Status, kind errors.Kind) {
	t.Helper()
	require.Equal(t, StatusError, st)
	var e *errors.Error
	require.True(t, stderrors.As(s.LastError(), &e), "last error: %v", s.LastError())
	assert.Equal(t, kind, e.Kind)
}

func newMachine(t *testing.T, s *Surface) Handle {
	t.Helper()
	b, st := s.MachineBuilderNew()
	ok(t, s, st)
	m, st := s.MachineBuilderBuild(b)
	ok(t, s, st)
	return m
}

func text(t *testing.T, s *Surface, h Handle) string {
	t.Helper()
	v, st := s.Text(h)
	ok(t, s, st)
	ok(t, s, s.StringDrop(h))
	return v
}

func TestFullSequence(t *testing.T) {
	s := newSurface(t)
	m := newMachine(t, s)

	ok(t, s, s.MachineConsultModuleString(m, "facts", `
		parent(tom, bob).
		parent(bob, ann).
		parent(bob, pat).
		grandparent(X, Z) :- parent(X, Y), parent(Y, Z).
	`))

	q, st := s.MachineRunQuery(m, "grandparent(tom, Who).")
	ok(t, s, st)

	var got []string
	for {
		l, st := s.QueryStateNextAnswer(q)
		ok(t, s, st)
		if l == 0 {
			break
		}
		kind, st := s.LeafAnswerKind(l)
		ok(t, s, st)
		require.Equal(t, machine.KindAnswer, kind)

		b, st := s.LeafAnswerUnwrapBindings(l)
		ok(t, s, st)
		who, st := s.BindingsGet(b, "Who")
		ok(t, s, st)

		k, st := s.TermKind(who)
		ok(t, s, st)
		require.Equal(t, term.KindAtom, k)
		name, st := s.TermUnwrapAtom(who)
		ok(t, s, st)
		got = append(got, text(t, s, name))

		ok(t, s, s.TermDrop(who))
		ok(t, s, s.BindingsDrop(b))
		ok(t, s, s.LeafAnswerDrop(l))
	}
	assert.Equal(t, []string{"ann", "pat"}, got)

	// Exhausted queries keep answering with the zero handle.
	l, st := s.QueryStateNextAnswer(q)
	ok(t, s, st)
	assert.Zero(t, l)

	ok(t, s, s.QueryStateDrop(q))
	ok(t, s, s.MachineDrop(m))
	assert.Empty(t, s.Outstanding())
}

func TestFalseLeaf(t *testing.T) {
	s := newSurface(t)
	m := newMachine(t, s)

	q, st := s.MachineRunQuery(m, "member(x, [a, b]).")
	ok(t, s, st)
	l, st := s.QueryStateNextAnswer(q)
	ok(t, s, st)
	kind, st := s.LeafAnswerKind(l)
	ok(t, s, st)
	assert.Equal(t, machine.KindFalse, kind)

	b, st := s.LeafAnswerUnwrapBindings(l)
	failsWith(t, s, st, errors.KindTypeMismatch)
	assert.Zero(t, b)
	e, st := s.LeafAnswerUnwrapException(l)
	failsWith(t, s, st, errors.KindTypeMismatch)
	assert.Zero(t, e)

	ok(t, s, s.LeafAnswerDrop(l))
	l, st = s.QueryStateNextAnswer(q)
	ok(t, s, st)
	assert.Zero(t, l)
	ok(t, s, s.QueryStateDrop(q))
	ok(t, s, s.MachineDrop(m))
	assert.Empty(t, s.Outstanding())
}

func TestExceptionLeaf(t *testing.T) {
	s := newSurface(t)
	m := newMachine(t, s)

	q, st := s.MachineRunQuery(m, "throw(oops).")
	ok(t, s, st)
	l, st := s.QueryStateNextAnswer(q)
	ok(t, s, st)
	kind, st := s.LeafAnswerKind(l)
	ok(t, s, st)
	require.Equal(t, machine.KindException, kind)

	e, st := s.LeafAnswerUnwrapException(l)
	ok(t, s, st)
	a, st := s.TermUnwrapAtom(e)
	ok(t, s, st)
	assert.Equal(t, "oops", text(t, s, a))

	ok(t, s, s.TermDrop(e))
	ok(t, s, s.LeafAnswerDrop(l))
	ok(t, s, s.QueryStateDrop(q))
	ok(t, s, s.MachineDrop(m))
	assert.Empty(t, s.Outstanding())
}

func TestTermUnwrap(t *testing.T) {
	s := newSurface(t)
	m := newMachine(t, s)

	q, st := s.MachineRunQuery(m,
		`I = 123456789012345678901234567890, F = 2.5, R is 1 rdiv 3, S = "hi", C = point(1, x), L = [a, b, c].`)
	ok(t, s, st)
	l, st := s.QueryStateNextAnswer(q)
	ok(t, s, st)
	b, st := s.LeafAnswerUnwrapBindings(l)
	ok(t, s, st)

	get := func(name string) Handle {
		h, st := s.BindingsGet(b, name)
		ok(t, s, st)
		t.Cleanup(func() { _ = s.TermDrop(h) })
		return h
	}

	i, st := s.TermUnwrapInteger(get("I"))
	ok(t, s, st)
	assert.Equal(t, "123456789012345678901234567890", text(t, s, i))

	f, st := s.TermUnwrapFloat(get("F"))
	ok(t, s, st)
	assert.Equal(t, 2.5, f)

	num, den, st := s.TermUnwrapRational(get("R"))
	ok(t, s, st)
	assert.Equal(t, "1", text(t, s, num))
	assert.Equal(t, "3", text(t, s, den))

	str, st := s.TermUnwrapString(get("S"))
	ok(t, s, st)
	assert.Equal(t, "hi", text(t, s, str))

	functor, args, n, st := s.TermUnwrapCompound(get("C"))
	ok(t, s, st)
	assert.Equal(t, "point", text(t, s, functor))
	require.Equal(t, 2, n)
	hs, st := s.Elements(args)
	ok(t, s, st)
	one, st := s.TermUnwrapInteger(hs[0])
	ok(t, s, st)
	assert.Equal(t, "1", text(t, s, one))
	x, st := s.TermUnwrapAtom(hs[1])
	ok(t, s, st)
	assert.Equal(t, "x", text(t, s, x))
	for _, h := range hs {
		ok(t, s, s.TermDrop(h))
	}
	ok(t, s, s.ListDrop(args, n))

	list, n, st := s.TermUnwrapList(get("L"))
	ok(t, s, st)
	require.Equal(t, 3, n)
	hs, st = s.Elements(list)
	ok(t, s, st)
	ok(t, s, s.ListDrop(list, n))
	var atoms []string
	for _, h := range hs {
		a, st := s.TermUnwrapAtom(h)
		ok(t, s, st)
		atoms = append(atoms, text(t, s, a))
		ok(t, s, s.TermDrop(h))
	}
	assert.Equal(t, []string{"a", "b", "c"}, atoms)

	ok(t, s, s.BindingsDrop(b))
	ok(t, s, s.LeafAnswerDrop(l))
	ok(t, s, s.QueryStateDrop(q))
}

func TestUnwrapMismatchLeavesOutputsZero(t *testing.T) {
	s := newSurface(t)
	h := s.terms.Insert(term.Atom("a"))

	i, st := s.TermUnwrapInteger(h)
	failsWith(t, s, st, errors.KindTypeMismatch)
	assert.Zero(t, i)

	f, st := s.TermUnwrapFloat(h)
	failsWith(t, s, st, errors.KindTypeMismatch)
	assert.Zero(t, f)

	num, den, st := s.TermUnwrapRational(h)
	failsWith(t, s, st, errors.KindTypeMismatch)
	assert.Zero(t, num)
	assert.Zero(t, den)

	list, n, st := s.TermUnwrapList(h)
	failsWith(t, s, st, errors.KindTypeMismatch)
	assert.Zero(t, list)
	assert.Zero(t, n)

	functor, args, n, st := s.TermUnwrapCompound(h)
	failsWith(t, s, st, errors.KindTypeMismatch)
	assert.Zero(t, functor)
	assert.Zero(t, args)
	assert.Zero(t, n)

	v, st := s.TermUnwrapVariable(h)
	failsWith(t, s, st, errors.KindTypeMismatch)
	assert.Zero(t, v)

	ok(t, s, s.TermDrop(h))
	assert.Empty(t, s.Outstanding())
}

func TestDoubleRelease(t *testing.T) {
	s := newSurface(t)

	b, st := s.MachineBuilderNew()
	ok(t, s, st)
	ok(t, s, s.MachineBuilderDrop(b))
	failsWith(t, s, s.MachineBuilderDrop(b), errors.KindInvalidHandle)

	h := s.texts.Insert("x")
	ok(t, s, s.StringDrop(h))
	failsWith(t, s, s.StringDrop(h), errors.KindInvalidHandle)

	arr := s.arrays.Insert([]Handle{})
	ok(t, s, s.ListDrop(arr, 0))
	failsWith(t, s, s.ListDrop(arr, 0), errors.KindInvalidHandle)

	assert.Empty(t, s.Outstanding())
}

func TestListDropLengthMismatch(t *testing.T) {
	s := newSurface(t)
	arr := s.arrays.Insert(make([]Handle, 2))

	failsWith(t, s, s.ListDrop(arr, 3), errors.KindInvalidInput)
	assert.Equal(t, map[string]int{"list": 1}, s.Outstanding())

	ok(t, s, s.ListDrop(arr, 2))
	assert.Empty(t, s.Outstanding())
}

func TestWrongKindHandle(t *testing.T) {
	s := newSurface(t)
	m := newMachine(t, s)

	_, st := s.LeafAnswerKind(m)
	failsWith(t, s, st, errors.KindInvalidHandle)
	failsWith(t, s, s.TermDrop(m), errors.KindInvalidHandle)
	failsWith(t, s, s.QueryStateDrop(m), errors.KindInvalidHandle)

	// The machine survives misdirected releases.
	assert.Equal(t, map[string]int{"machine": 1}, s.Outstanding())

	_, st = s.MachineRunQuery(0, "true.")
	failsWith(t, s, st, errors.KindInvalidHandle)

	ok(t, s, s.MachineDrop(m))
}

func TestStaleHandleAfterReuse(t *testing.T) {
	s := newSurface(t)

	old := s.terms.Insert(term.Atom("old"))
	ok(t, s, s.TermDrop(old))
	fresh := s.terms.Insert(term.Atom("fresh"))
	require.NotEqual(t, old, fresh)

	_, st := s.TermKind(old)
	failsWith(t, s, st, errors.KindInvalidHandle)

	a, st := s.TermUnwrapAtom(fresh)
	ok(t, s, st)
	assert.Equal(t, "fresh", text(t, s, a))
	ok(t, s, s.TermDrop(fresh))
}

func TestMachineDropWhileQueryLive(t *testing.T) {
	s := newSurface(t)
	m := newMachine(t, s)

	q, st := s.MachineRunQuery(m, "true.")
	ok(t, s, st)

	failsWith(t, s, s.MachineDrop(m), errors.KindOutstandingBorrow)

	_, st = s.MachineRunQuery(m, "true.")
	failsWith(t, s, st, errors.KindBusy)
	failsWith(t, s, s.MachineConsultModuleString(m, "user", "a."), errors.KindBusy)

	ok(t, s, s.QueryStateDrop(q))
	ok(t, s, s.MachineDrop(m))
	assert.Empty(t, s.Outstanding())
}

func TestBuilderConsumedByBuild(t *testing.T) {
	s := newSurface(t)

	b, st := s.MachineBuilderNew()
	ok(t, s, st)
	m, st := s.MachineBuilderBuild(b)
	ok(t, s, st)

	_, st = s.MachineBuilderBuild(b)
	failsWith(t, s, st, errors.KindInvalidHandle)
	failsWith(t, s, s.MachineBuilderDrop(b), errors.KindInvalidHandle)

	ok(t, s, s.MachineDrop(m))
	assert.Empty(t, s.Outstanding())
}

func TestConsultErrors(t *testing.T) {
	s := newSurface(t)
	m := newMachine(t, s)

	failsWith(t, s, s.MachineConsultModuleString(m, "user", "p :- ."), errors.KindSyntax)
	failsWith(t, s, s.MachineConsultModuleString(m, "user", "p(\xff)."), errors.KindInvalidUTF8)

	_, st := s.MachineRunQuery(m, "\xff.")
	failsWith(t, s, st, errors.KindInvalidUTF8)

	ok(t, s, s.MachineDrop(m))
}

func TestPanicBecomesStatus(t *testing.T) {
	s := newSurface(t)
	l := s.leaves.Insert((*machine.LeafAnswer)(nil))

	kind, st := s.LeafAnswerKind(l)
	assert.Equal(t, StatusPanic, st)
	assert.Zero(t, kind)
	var e *errors.Error
	require.True(t, stderrors.As(s.LastError(), &e))
	assert.Equal(t, errors.KindEngineFault, e.Kind)
	assert.Equal(t, errors.PhaseBoundary, e.Phase)

	ok(t, s, s.LeafAnswerDrop(l))
}

func TestCloseReleasesEverything(t *testing.T) {
	s := New(DefaultOptions())
	m := newMachine(t, s)
	_, st := s.MachineRunQuery(m, "member(X, [1, 2]).")
	ok(t, s, st)
	_ = s.texts.Insert("leaked")

	require.NoError(t, s.Close())
	assert.Empty(t, s.Outstanding())

	_, st = s.MachineBuilderNew()
	failsWith(t, s, st, errors.KindClosed)
}

func TestHandleEventsAreLogged(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	opts := DefaultOptions()
	opts.Logger = zap.New(core)
	s := New(opts)
	t.Cleanup(func() { _ = s.Close() })

	h := s.texts.Insert("x")
	ok(t, s, s.StringDrop(h))

	created := logs.FilterMessage("handle created").All()
	require.Len(t, created, 1)
	assert.Equal(t, "string", created[0].ContextMap()["kind"])
	assert.Len(t, logs.FilterMessage("handle dropped").All(), 1)
}

func TestLastErrorText(t *testing.T) {
	s := newSurface(t)

	h, st := s.LastErrorText()
	ok(t, s, st)
	assert.Zero(t, h)

	assert.Equal(t, StatusError, s.Reject(errors.InvalidInput(errors.PhaseBoundary, "query is NULL")))
	h, st = s.LastErrorText()
	ok(t, s, st)
	msg := text(t, s, h)
	assert.Contains(t, msg, "query is NULL")
	assert.Empty(t, s.Outstanding())
}

func TestCloseDropsQueriesBeforeMachines(t *testing.T) {
	s := New(DefaultOptions())
	m := newMachine(t, s)
	q, st := s.MachineRunQuery(m, "member(X, [1, 2]).")
	ok(t, s, st)
	l, st := s.QueryStateNextAnswer(q)
	ok(t, s, st)
	ok(t, s, s.LeafAnswerDrop(l))
	// Slot order puts m before its query and other after it.
	other := newMachine(t, s)
	_, st = s.MachineRunQuery(other, "true.")
	ok(t, s, st)

	require.NoError(t, s.Close())
	assert.Empty(t, s.Outstanding())
}

func TestQueryStateDropReturnsBorrow(t *testing.T) {
	s := newSurface(t)
	m := newMachine(t, s)
	q, st := s.MachineRunQuery(m, "member(X, [1, 2]).")
	ok(t, s, st)
	require.True(t, s.table.Borrowed(m))

	ok(t, s, s.QueryStateDrop(q))
	assert.False(t, s.table.Borrowed(m))
	failsWith(t, s, s.QueryStateDrop(q), errors.KindInvalidHandle)

	q, st = s.MachineRunQuery(m, "true.")
	ok(t, s, st)
	ok(t, s, s.QueryStateDrop(q))
	ok(t, s, s.MachineDrop(m))
	assert.Empty(t, s.Outstanding())
}

func TestSetLoggerNil(t *testing.T) {
	prev := Logger()
	t.Cleanup(func() { SetLogger(prev) })

	SetLogger(nil)
	s := newSurface(t)
	m := newMachine(t, s)
	ok(t, s, s.MachineDrop(m))
}
