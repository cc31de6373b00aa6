package main

/*
#include <stdint.h>
#include <stdlib.h>
*/
import "C"

import (
	"github.com/wippyai/prolog-runtime/errors"
	"github.com/wippyai/prolog-runtime/ffi"
)

// kindInvalid is returned by the kind accessors for an invalid handle.
const kindInvalid = -1

func status(st ffi.Status) C.int {
	return C.int(st)
}

func handle(h C.uintptr_t) ffi.Handle {
	return ffi.Handle(h)
}

// goString copies a NUL-terminated input. NULL is rejected.
func goString(s *ffi.Surface, p *C.char, name string) (string, bool) {
	if p == nil {
		s.Reject(errors.New(errors.PhaseBoundary, errors.KindInvalidInput).
			Path(name).
			Detail("NULL pointer").
			Build())
		return "", false
	}
	return goText(p), true
}

func nullOutput(s *ffi.Surface, name string) C.int {
	return status(s.Reject(errors.New(errors.PhaseBoundary, errors.KindInvalidInput).
		Path(name).
		Detail("NULL output pointer").
		Build()))
}

// textOut hands text buffer h to C through out.
func textOut(s *ffi.Surface, h ffi.Handle, st ffi.Status, out **C.char) C.int {
	if st != ffi.StatusSuccess {
		return status(st)
	}
	p, st := allocs.cString(s, h)
	if st != ffi.StatusSuccess {
		s.StringDrop(h)
		return status(st)
	}
	*out = p
	return status(ffi.StatusSuccess)
}

// listOut hands array h of n term handles to C through out and len.
func listOut(s *ffi.Surface, h ffi.Handle, n int, out **C.uintptr_t, length *C.uintptr_t) C.int {
	p, st := allocs.cList(s, h)
	if st != ffi.StatusSuccess {
		return status(st)
	}
	*out = p
	*length = C.uintptr_t(n)
	return status(ffi.StatusSuccess)
}

//export prolog_machine_builder_new
func prolog_machine_builder_new() C.uintptr_t {
	s := surface()
	if initErr != nil {
		s.Reject(initErr)
		return 0
	}
	h, _ := s.MachineBuilderNew()
	return C.uintptr_t(h)
}

//export prolog_machine_builder_drop
func prolog_machine_builder_drop(b C.uintptr_t) C.int {
	return status(surface().MachineBuilderDrop(handle(b)))
}

//export prolog_machine_builder_build
func prolog_machine_builder_build(b C.uintptr_t) C.uintptr_t {
	h, _ := surface().MachineBuilderBuild(handle(b))
	return C.uintptr_t(h)
}

//export prolog_machine_drop
func prolog_machine_drop(m C.uintptr_t) C.int {
	return status(surface().MachineDrop(handle(m)))
}

//export prolog_machine_consult_module_string
func prolog_machine_consult_module_string(m C.uintptr_t, module, program *C.char) C.int {
	s := surface()
	mod, ok := goString(s, module, "module")
	if !ok {
		return status(ffi.StatusError)
	}
	src, ok := goString(s, program, "program")
	if !ok {
		return status(ffi.StatusError)
	}
	return status(s.MachineConsultModuleString(handle(m), mod, src))
}

//export prolog_machine_run_query
func prolog_machine_run_query(m C.uintptr_t, query *C.char, queryState *C.uintptr_t) C.int {
	s := surface()
	if queryState == nil {
		return nullOutput(s, "query_state")
	}
	*queryState = 0
	q, ok := goString(s, query, "query")
	if !ok {
		return status(ffi.StatusError)
	}
	h, st := s.MachineRunQuery(handle(m), q)
	*queryState = C.uintptr_t(h)
	return status(st)
}

//export prolog_query_state_drop
func prolog_query_state_drop(q C.uintptr_t) C.int {
	return status(surface().QueryStateDrop(handle(q)))
}

//export prolog_query_state_next_answer
func prolog_query_state_next_answer(q C.uintptr_t, leafAnswer *C.uintptr_t) C.int {
	s := surface()
	if leafAnswer == nil {
		return nullOutput(s, "leaf_answer")
	}
	h, st := s.QueryStateNextAnswer(handle(q))
	*leafAnswer = C.uintptr_t(h)
	return status(st)
}

//export prolog_leaf_answer_drop
func prolog_leaf_answer_drop(l C.uintptr_t) C.int {
	return status(surface().LeafAnswerDrop(handle(l)))
}

//export prolog_leaf_answer_kind
func prolog_leaf_answer_kind(l C.uintptr_t) C.int {
	k, st := surface().LeafAnswerKind(handle(l))
	if st != ffi.StatusSuccess {
		return kindInvalid
	}
	return C.int(k)
}

//export prolog_leaf_answer_unwrap_exception
func prolog_leaf_answer_unwrap_exception(l C.uintptr_t, term *C.uintptr_t) C.int {
	s := surface()
	if term == nil {
		return nullOutput(s, "term")
	}
	h, st := s.LeafAnswerUnwrapException(handle(l))
	*term = C.uintptr_t(h)
	return status(st)
}

//export prolog_leaf_answer_unwrap_bindings
func prolog_leaf_answer_unwrap_bindings(l C.uintptr_t, bindings *C.uintptr_t) C.int {
	s := surface()
	if bindings == nil {
		return nullOutput(s, "bindings")
	}
	h, st := s.LeafAnswerUnwrapBindings(handle(l))
	*bindings = C.uintptr_t(h)
	return status(st)
}

//export prolog_bindings_drop
func prolog_bindings_drop(b C.uintptr_t) C.int {
	return status(surface().BindingsDrop(handle(b)))
}

//export prolog_bindings_get
func prolog_bindings_get(b C.uintptr_t, variable *C.char, term *C.uintptr_t) C.int {
	s := surface()
	if term == nil {
		return nullOutput(s, "term")
	}
	*term = 0
	name, ok := goString(s, variable, "variable")
	if !ok {
		return status(ffi.StatusError)
	}
	h, st := s.BindingsGet(handle(b), name)
	*term = C.uintptr_t(h)
	return status(st)
}

//export prolog_term_drop
func prolog_term_drop(t C.uintptr_t) C.int {
	return status(surface().TermDrop(handle(t)))
}

//export prolog_term_kind
func prolog_term_kind(t C.uintptr_t) C.int {
	k, st := surface().TermKind(handle(t))
	if st != ffi.StatusSuccess {
		return kindInvalid
	}
	return C.int(k)
}

//export prolog_term_unwrap_integer
func prolog_term_unwrap_integer(t C.uintptr_t, bigInteger **C.char) C.int {
	s := surface()
	if bigInteger == nil {
		return nullOutput(s, "big_integer")
	}
	*bigInteger = nil
	h, st := s.TermUnwrapInteger(handle(t))
	return textOut(s, h, st, bigInteger)
}

//export prolog_term_unwrap_float
func prolog_term_unwrap_float(t C.uintptr_t, out *C.double) C.int {
	s := surface()
	if out == nil {
		return nullOutput(s, "float")
	}
	f, st := s.TermUnwrapFloat(handle(t))
	*out = C.double(f)
	return status(st)
}

//export prolog_term_unwrap_rational
func prolog_term_unwrap_rational(t C.uintptr_t, numerator, denominator **C.char) C.int {
	s := surface()
	if numerator == nil || denominator == nil {
		return nullOutput(s, "numerator")
	}
	*numerator, *denominator = nil, nil
	num, den, st := s.TermUnwrapRational(handle(t))
	if st != ffi.StatusSuccess {
		return status(st)
	}
	if rc := textOut(s, num, st, numerator); rc != status(ffi.StatusSuccess) {
		s.StringDrop(den)
		return rc
	}
	if rc := textOut(s, den, st, denominator); rc != status(ffi.StatusSuccess) {
		allocs.freeString(s, *numerator)
		*numerator = nil
		return rc
	}
	return status(ffi.StatusSuccess)
}

//export prolog_term_unwrap_atom
func prolog_term_unwrap_atom(t C.uintptr_t, atom **C.char) C.int {
	s := surface()
	if atom == nil {
		return nullOutput(s, "atom")
	}
	*atom = nil
	h, st := s.TermUnwrapAtom(handle(t))
	return textOut(s, h, st, atom)
}

//export prolog_term_unwrap_string
func prolog_term_unwrap_string(t C.uintptr_t, str **C.char) C.int {
	s := surface()
	if str == nil {
		return nullOutput(s, "string")
	}
	*str = nil
	h, st := s.TermUnwrapString(handle(t))
	return textOut(s, h, st, str)
}

//export prolog_term_unwrap_variable
func prolog_term_unwrap_variable(t C.uintptr_t, variable **C.char) C.int {
	s := surface()
	if variable == nil {
		return nullOutput(s, "variable")
	}
	*variable = nil
	h, st := s.TermUnwrapVariable(handle(t))
	return textOut(s, h, st, variable)
}

//export prolog_term_unwrap_list
func prolog_term_unwrap_list(t C.uintptr_t, termList **C.uintptr_t, length *C.uintptr_t) C.int {
	s := surface()
	if termList == nil || length == nil {
		return nullOutput(s, "term_list")
	}
	*termList, *length = nil, 0
	h, n, st := s.TermUnwrapList(handle(t))
	if st != ffi.StatusSuccess {
		return status(st)
	}
	return listOut(s, h, n, termList, length)
}

//export prolog_term_unwrap_compound
func prolog_term_unwrap_compound(t C.uintptr_t, functor **C.char, args **C.uintptr_t, length *C.uintptr_t) C.int {
	s := surface()
	if functor == nil || args == nil || length == nil {
		return nullOutput(s, "functor")
	}
	*functor, *args, *length = nil, nil, 0
	name, list, n, st := s.TermUnwrapCompound(handle(t))
	if st != ffi.StatusSuccess {
		return status(st)
	}
	if rc := textOut(s, name, st, functor); rc != status(ffi.StatusSuccess) {
		return rc
	}
	if rc := listOut(s, list, n, args, length); rc != status(ffi.StatusSuccess) {
		allocs.freeString(s, *functor)
		*functor = nil
		return rc
	}
	return status(ffi.StatusSuccess)
}

//export prolog_string_drop
func prolog_string_drop(str *C.char) C.int {
	s := surface()
	if str == nil {
		return status(ffi.StatusSuccess)
	}
	return status(allocs.freeString(s, str))
}

//export prolog_list_drop
func prolog_list_drop(list *C.uintptr_t, length C.uintptr_t) C.int {
	s := surface()
	if list == nil {
		return status(ffi.StatusSuccess)
	}
	return status(allocs.freeList(s, list, int(length)))
}

//export prolog_last_error
func prolog_last_error() *C.char {
	s := surface()
	h, st := s.LastErrorText()
	if st != ffi.StatusSuccess || h == 0 {
		return nil
	}
	p, st := allocs.cString(s, h)
	if st != ffi.StatusSuccess {
		s.StringDrop(h)
		return nil
	}
	return p
}
