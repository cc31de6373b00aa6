package machine

import (
	"iter"
	"strings"

	"github.com/wippyai/prolog-runtime/errors"
	"github.com/wippyai/prolog-runtime/term"
)

// LeafKind classifies a LeafAnswer. The numbering is part of the C surface.
type LeafKind uint8

const (
	KindTrue LeafKind = iota
	KindFalse
	KindAnswer
	KindException
)

func (k LeafKind) String() string {
	switch k {
	case KindTrue:
		return "true"
	case KindFalse:
		return "false"
	case KindAnswer:
		return "answer"
	case KindException:
		return "exception"
	default:
		return "unknown"
	}
}

// LeafAnswer is the outcome of one query step. It shares nothing with the
// query that produced it.
type LeafAnswer struct {
	bindings  *Bindings
	exception term.Term
	kind      LeafKind
}

func answerLeaf(b *Bindings) *LeafAnswer {
	return &LeafAnswer{kind: KindAnswer, bindings: b}
}

func exceptionLeaf(t term.Term) *LeafAnswer {
	return &LeafAnswer{kind: KindException, exception: t}
}

// Kind returns the classification of the answer.
func (a *LeafAnswer) Kind() LeafKind {
	return a.kind
}

// Bindings returns the variable bindings of an Answer leaf. Other kinds
// return a type mismatch error and nil.
func (a *LeafAnswer) Bindings() (*Bindings, error) {
	if a.kind != KindAnswer {
		return nil, errors.TypeMismatch(errors.PhaseAnswer, nil, KindAnswer.String(), a.kind.String())
	}
	return a.bindings, nil
}

// Exception returns the term carried by an Exception leaf. Other kinds
// return a type mismatch error and nil.
func (a *LeafAnswer) Exception() (term.Term, error) {
	if a.kind != KindException {
		return nil, errors.TypeMismatch(errors.PhaseAnswer, nil, KindException.String(), a.kind.String())
	}
	return a.exception, nil
}

// String renders the answer the way a toplevel prints it.
func (a *LeafAnswer) String() string {
	switch a.kind {
	case KindTrue:
		return "true"
	case KindFalse:
		return "false"
	case KindException:
		return "error: " + term.Format(a.exception)
	}
	return a.bindings.String()
}

// Binding is one variable of an answer.
type Binding struct {
	Name  string
	Value term.Term
}

// Bindings maps the variable names of an answer to their values, in the
// order the variables first appear in the query.
type Bindings struct {
	items []Binding
	index map[string]int
}

func newBindings(items []Binding) *Bindings {
	b := &Bindings{items: items, index: make(map[string]int, len(items))}
	for i, it := range items {
		b.index[it.Name] = i
	}
	return b
}

// Get returns the value bound to name. An unknown name returns a not found
// error and nil.
func (b *Bindings) Get(name string) (term.Term, error) {
	i, ok := b.index[name]
	if !ok {
		return nil, errors.NotFound(errors.PhaseAnswer, "variable", name)
	}
	return b.items[i].Value, nil
}

// Len returns the number of bound variables.
func (b *Bindings) Len() int {
	return len(b.items)
}

// Names returns the variable names in query order.
func (b *Bindings) Names() []string {
	names := make([]string, len(b.items))
	for i, it := range b.items {
		names[i] = it.Name
	}
	return names
}

// All iterates over the bindings in query order.
func (b *Bindings) All() iter.Seq2[string, term.Term] {
	return func(yield func(string, term.Term) bool) {
		for _, it := range b.items {
			if !yield(it.Name, it.Value) {
				return
			}
		}
	}
}

// String renders the bindings as "X = 1, Y = a".
func (b *Bindings) String() string {
	var sb strings.Builder
	for i, it := range b.items {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(it.Name)
		sb.WriteString(" = ")
		sb.WriteString(term.Format(it.Value))
	}
	return sb.String()
}
