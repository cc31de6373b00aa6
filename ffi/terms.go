package ffi

import (
	"go.uber.org/zap"

	"github.com/wippyai/prolog-runtime/errors"
	"github.com/wippyai/prolog-runtime/resource"
	"github.com/wippyai/prolog-runtime/term"
)

// TermDrop releases a term handle.
func (s *Surface) TermDrop(t Handle) (st Status) {
	defer s.guard(&st)
	if _, ok := s.terms.Remove(t); !ok {
		return s.invalid(typeTerm, t)
	}
	return StatusSuccess
}

// TermKind classifies a term.
func (s *Surface) TermKind(t Handle) (k term.Kind, st Status) {
	defer s.guard(&st)
	v, ok := s.terms.Get(t)
	if !ok {
		return 0, s.invalid(typeTerm, t)
	}
	return v.Kind(), StatusSuccess
}

// text unwraps t with fn and stores the result as a new text buffer.
func (s *Surface) text(t Handle, fn func(term.Term) (string, error)) (Handle, Status) {
	v, ok := s.terms.Get(t)
	if !ok {
		return 0, s.invalid(typeTerm, t)
	}
	text, err := fn(v)
	if err != nil {
		return 0, s.fail(err)
	}
	return s.texts.Insert(text), StatusSuccess
}

// TermUnwrapInteger returns the decimal text of an integer term.
func (s *Surface) TermUnwrapInteger(t Handle) (h Handle, st Status) {
	defer s.guard(&st)
	return s.text(t, term.UnwrapInteger)
}

// TermUnwrapFloat returns the value of a float term.
func (s *Surface) TermUnwrapFloat(t Handle) (f float64, st Status) {
	defer s.guard(&st)
	v, ok := s.terms.Get(t)
	if !ok {
		return 0, s.invalid(typeTerm, t)
	}
	f, err := term.UnwrapFloat(v)
	if err != nil {
		return 0, s.fail(err)
	}
	return f, StatusSuccess
}

// TermUnwrapRational returns numerator and denominator text buffers of a
// rational term.
func (s *Surface) TermUnwrapRational(t Handle) (num, den Handle, st Status) {
	defer s.guard(&st)
	v, ok := s.terms.Get(t)
	if !ok {
		return 0, 0, s.invalid(typeTerm, t)
	}
	n, d, err := term.UnwrapRational(v)
	if err != nil {
		return 0, 0, s.fail(err)
	}
	return s.texts.Insert(n), s.texts.Insert(d), StatusSuccess
}

// TermUnwrapAtom returns the text of an atom term.
func (s *Surface) TermUnwrapAtom(t Handle) (h Handle, st Status) {
	defer s.guard(&st)
	return s.text(t, term.UnwrapAtom)
}

// TermUnwrapString returns the text of a string term.
func (s *Surface) TermUnwrapString(t Handle) (h Handle, st Status) {
	defer s.guard(&st)
	return s.text(t, term.UnwrapString)
}

// TermUnwrapVariable returns the name of a variable term.
func (s *Surface) TermUnwrapVariable(t Handle) (h Handle, st Status) {
	defer s.guard(&st)
	return s.text(t, term.UnwrapVariable)
}

// TermUnwrapList returns an array of new term handles, one per element.
func (s *Surface) TermUnwrapList(t Handle) (list Handle, n int, st Status) {
	defer s.guard(&st)
	v, ok := s.terms.Get(t)
	if !ok {
		return 0, 0, s.invalid(typeTerm, t)
	}
	items, err := term.UnwrapList(v)
	if err != nil {
		return 0, 0, s.fail(err)
	}
	return s.array(items), len(items), StatusSuccess
}

// TermUnwrapCompound returns the functor text and an array of new term
// handles, one per argument.
func (s *Surface) TermUnwrapCompound(t Handle) (functor, args Handle, n int, st Status) {
	defer s.guard(&st)
	v, ok := s.terms.Get(t)
	if !ok {
		return 0, 0, 0, s.invalid(typeTerm, t)
	}
	name, items, err := term.UnwrapCompound(v)
	if err != nil {
		return 0, 0, 0, s.fail(err)
	}
	return s.texts.Insert(name), s.array(items), len(items), StatusSuccess
}

func (s *Surface) array(items []term.Term) Handle {
	hs := make([]Handle, len(items))
	for i, it := range items {
		hs[i] = s.terms.Insert(it)
	}
	return s.arrays.Insert(hs)
}

// Text returns the contents of a text buffer.
func (s *Surface) Text(h Handle) (text string, st Status) {
	defer s.guard(&st)
	v, ok := s.texts.Get(h)
	if !ok {
		return "", s.invalid(typeText, h)
	}
	return v, StatusSuccess
}

// Elements returns a copy of the handles stored in an array.
func (s *Surface) Elements(list Handle) (hs []Handle, st Status) {
	defer s.guard(&st)
	v, ok := s.arrays.Get(list)
	if !ok {
		return nil, s.invalid(typeArray, list)
	}
	out := make([]Handle, len(v))
	copy(out, v)
	return out, StatusSuccess
}

// StringDrop releases a text buffer.
func (s *Surface) StringDrop(h Handle) (st Status) {
	defer s.guard(&st)
	if _, ok := s.texts.Remove(h); !ok {
		return s.invalid(typeText, h)
	}
	return StatusSuccess
}

// ListDrop releases the storage of an array of n handles. The term handles
// it holds stay live and must be dropped separately, before or after.
func (s *Surface) ListDrop(list Handle, n int) (st Status) {
	defer s.guard(&st)
	v, ok := s.arrays.Get(list)
	if !ok {
		return s.invalid(typeArray, list)
	}
	if len(v) != n {
		return s.fail(errors.New(errors.PhaseRelease, errors.KindInvalidInput).
			Resource(typeNames[typeArray]).
			Handle(uint32(list)).
			Detail("length %d does not match array of %d", n, len(v)).
			Build())
	}
	s.arrays.Remove(list)
	return StatusSuccess
}

// eventLogger reports handle lifecycle events at debug level.
type eventLogger struct {
	log *zap.Logger
}

func (l *eventLogger) OnResourceEvent(e resource.Event) {
	if ce := l.log.Check(zap.DebugLevel, "handle "+e.Type.String()); ce != nil {
		ce.Write(
			zap.Uint32("handle", uint32(e.Handle)),
			zap.String("kind", typeNames[e.TypeID]))
	}
}
