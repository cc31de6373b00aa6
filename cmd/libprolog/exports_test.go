//go:build cgo

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/prolog-runtime/ffi"
	"github.com/wippyai/prolog-runtime/machine"
)

var success = status(ffi.StatusSuccess)

func requireOK(t *testing.T, rc any) {
	t.Helper()
	require.Equal(t, success, rc, "last error: %v", surface().LastError())
}

// startQuery builds a machine, consults program into user and runs query.
func startQuery(t *testing.T, program, query string) (m, q cHandle) {
	t.Helper()
	b := prolog_machine_builder_new()
	require.NotZero(t, b)
	mh := prolog_machine_builder_build(b)
	require.NotZero(t, mh)

	if program != "" {
		mod, src := cText("user"), cText(program)
		defer freeCText(mod)
		defer freeCText(src)
		requireOK(t, prolog_machine_consult_module_string(mh, mod, src))
	}

	text := cText(query)
	defer freeCText(text)
	qs := handleSlot()
	requireOK(t, prolog_machine_run_query(mh, text, qs))
	require.NotZero(t, *qs)
	return mh, *qs
}

// firstBinding returns the term bound to name in the first answer of q.
func firstBinding(t *testing.T, q cHandle, name string) (leaf, bindings, term cHandle) {
	t.Helper()
	l := handleSlot()
	requireOK(t, prolog_query_state_next_answer(q, l))
	require.NotZero(t, *l)

	b := handleSlot()
	requireOK(t, prolog_leaf_answer_unwrap_bindings(*l, b))

	variable := cText(name)
	defer freeCText(variable)
	tm := handleSlot()
	requireOK(t, prolog_bindings_get(*b, variable, tm))
	return *l, *b, *tm
}

func release(t *testing.T, m, q, leaf, bindings, term cHandle) {
	t.Helper()
	requireOK(t, prolog_term_drop(term))
	requireOK(t, prolog_bindings_drop(bindings))
	requireOK(t, prolog_leaf_answer_drop(leaf))
	requireOK(t, prolog_query_state_drop(q))
	requireOK(t, prolog_machine_drop(m))
	assert.Empty(t, surface().Outstanding())
}

func lastError(t *testing.T) string {
	t.Helper()
	p := prolog_last_error()
	require.NotNil(t, p)
	msg := goText(p)
	requireOK(t, prolog_string_drop(p))
	return msg
}

func TestListAnswers(t *testing.T) {
	m, q := startQuery(t, "", "member(A, [1, 2, 3]).")

	var got []string
	for {
		l := handleSlot()
		requireOK(t, prolog_query_state_next_answer(q, l))
		if *l == 0 {
			break
		}
		require.Equal(t, int(machine.KindAnswer), int(prolog_leaf_answer_kind(*l)))

		b := handleSlot()
		requireOK(t, prolog_leaf_answer_unwrap_bindings(*l, b))
		name := cText("A")
		a := handleSlot()
		requireOK(t, prolog_bindings_get(*b, name, a))
		freeCText(name)

		digits := textSlot()
		requireOK(t, prolog_term_unwrap_integer(*a, digits))
		got = append(got, goText(*digits))
		requireOK(t, prolog_string_drop(*digits))

		requireOK(t, prolog_term_drop(*a))
		requireOK(t, prolog_bindings_drop(*b))
		requireOK(t, prolog_leaf_answer_drop(*l))
	}
	assert.Equal(t, []string{"1", "2", "3"}, got)

	requireOK(t, prolog_query_state_drop(q))
	requireOK(t, prolog_machine_drop(m))
	assert.Empty(t, surface().Outstanding())
}

func TestUnwrapList(t *testing.T) {
	m, q := startQuery(t, "", "L = [1, 2, 3].")
	leaf, bindings, term := firstBinding(t, q, "L")

	items, n := listSlot()
	requireOK(t, prolog_term_unwrap_list(term, items, n))
	require.EqualValues(t, 3, *n)

	// A wrong length leaves the list live.
	assert.Equal(t, status(ffi.StatusError), prolog_list_drop(*items, *n-1))
	assert.Contains(t, lastError(t), "length")

	var got []string
	for _, h := range cItems(*items, *n) {
		digits := textSlot()
		requireOK(t, prolog_term_unwrap_integer(h, digits))
		got = append(got, goText(*digits))
		requireOK(t, prolog_string_drop(*digits))
		requireOK(t, prolog_term_drop(h))
	}
	assert.Equal(t, []string{"1", "2", "3"}, got)
	requireOK(t, prolog_list_drop(*items, *n))
	assert.Equal(t, status(ffi.StatusError), prolog_list_drop(*items, *n))

	release(t, m, q, leaf, bindings, term)
}

func TestUnwrapCompoundAndRational(t *testing.T) {
	m, q := startQuery(t, "", "R is 1 rdiv 3, T = point(R, 2.5).")
	leaf, bindings, term := firstBinding(t, q, "T")

	functor := textSlot()
	args, n := listSlot()
	requireOK(t, prolog_term_unwrap_compound(term, functor, args, n))
	assert.Equal(t, "point", goText(*functor))
	requireOK(t, prolog_string_drop(*functor))
	require.EqualValues(t, 2, *n)

	hs := cItems(*args, *n)
	num, den := textSlot(), textSlot()
	requireOK(t, prolog_term_unwrap_rational(hs[0], num, den))
	assert.Equal(t, "1", goText(*num))
	assert.Equal(t, "3", goText(*den))
	requireOK(t, prolog_string_drop(*num))
	requireOK(t, prolog_string_drop(*den))

	f := floatSlot()
	requireOK(t, prolog_term_unwrap_float(hs[1], f))
	assert.EqualValues(t, 2.5, *f)

	for _, h := range hs {
		requireOK(t, prolog_term_drop(h))
	}
	requireOK(t, prolog_list_drop(*args, *n))

	release(t, m, q, leaf, bindings, term)
}

func TestStringDrop(t *testing.T) {
	requireOK(t, prolog_string_drop(nil))
	requireOK(t, prolog_list_drop(nil, 0))

	m, q := startQuery(t, "", "A = hello.")
	leaf, bindings, term := firstBinding(t, q, "A")

	atom := textSlot()
	requireOK(t, prolog_term_unwrap_atom(term, atom))
	assert.Equal(t, "hello", goText(*atom))
	requireOK(t, prolog_string_drop(*atom))
	assert.Equal(t, status(ffi.StatusError), prolog_string_drop(*atom))
	assert.Contains(t, lastError(t), "already released")

	release(t, m, q, leaf, bindings, term)
}

func TestNullArguments(t *testing.T) {
	m, q := startQuery(t, "", "R is 1 rdiv 2.")
	leaf, bindings, term := firstBinding(t, q, "R")

	num := textSlot()
	assert.Equal(t, status(ffi.StatusError), prolog_term_unwrap_rational(term, num, nil))
	assert.Nil(t, *num)
	assert.Equal(t, status(ffi.StatusError), prolog_term_unwrap_float(term, nil))
	assert.Equal(t, status(ffi.StatusError), prolog_query_state_next_answer(q, nil))
	assert.Equal(t, status(ffi.StatusError), prolog_machine_run_query(m, nil, handleSlot()))
	assert.Contains(t, lastError(t), "NULL")

	// A kind mismatch leaves every output NULL.
	functor := textSlot()
	args, n := listSlot()
	assert.Equal(t, status(ffi.StatusError), prolog_term_unwrap_compound(term, functor, args, n))
	assert.Nil(t, *functor)
	assert.Nil(t, *args)
	assert.Zero(t, *n)

	assert.Equal(t, kindInvalid, int(prolog_term_kind(0)))
	assert.Equal(t, kindInvalid, int(prolog_leaf_answer_kind(0)))

	release(t, m, q, leaf, bindings, term)
}

func TestTextWithNul(t *testing.T) {
	m, q := startQuery(t, "", "atom_codes(A, [0'a, 0, 0'b]).")
	leaf, bindings, term := firstBinding(t, q, "A")

	atom := textSlot()
	assert.Equal(t, status(ffi.StatusError), prolog_term_unwrap_atom(term, atom))
	assert.Nil(t, *atom)
	assert.Contains(t, lastError(t), "NUL byte at offset 1")

	release(t, m, q, leaf, bindings, term)
}

func TestMachineDropWhileQueryLive(t *testing.T) {
	m, q := startQuery(t, "p(1).", "p(X).")

	assert.Equal(t, status(ffi.StatusError), prolog_machine_drop(m))
	assert.Contains(t, lastError(t), "outstanding_borrow")

	requireOK(t, prolog_query_state_drop(q))
	requireOK(t, prolog_machine_drop(m))
	assert.Empty(t, surface().Outstanding())
}
