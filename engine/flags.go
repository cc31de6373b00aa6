package engine

import "sort"

type flagSpec struct {
	values   []Atom // allowed atom values; nil accepts any term
	readOnly bool
}

var flagSpecs = map[Atom]flagSpec{
	"bounded":                   {readOnly: true},
	"double_quotes":             {values: []Atom{"codes", "chars", "atom", "string"}},
	"unknown":                   {values: []Atom{"error", "fail", "warning"}},
	"debug":                     {values: []Atom{"false", "true"}},
	"max_arity":                 {readOnly: true},
	"integer_rounding_function": {readOnly: true},
	"prefer_rationals":          {values: []Atom{"false", "true"}},
}

func defaultFlags() map[Atom]Term {
	return map[Atom]Term{
		"bounded":                   Atom("false"),
		"double_quotes":             Atom("string"),
		"unknown":                   Atom("error"),
		"debug":                     Atom("false"),
		"max_arity":                 Atom("unbounded"),
		"integer_rounding_function": Atom("toward_zero"),
		"prefer_rationals":          Atom("false"),
	}
}

func (e *Engine) setFlag(name Atom, value Term) error {
	value = Deref(value)
	spec, ok := flagSpecs[name]
	if !ok {
		return domainError("prolog_flag", name)
	}
	if spec.readOnly {
		return permissionError("modify", "flag", name)
	}
	if spec.values != nil {
		a, ok := value.(Atom)
		if !ok {
			return domainError("flag_value", comp("+", name, value))
		}
		valid := false
		for _, v := range spec.values {
			if v == a {
				valid = true
				break
			}
		}
		if !valid {
			return domainError("flag_value", comp("+", name, value))
		}
	}
	e.flags[name] = value
	return nil
}

func (e *Engine) flagAtom(name Atom) Atom {
	a, _ := e.flags[name].(Atom)
	return a
}

func (e *Engine) flagNames() []Atom {
	names := make([]Atom, 0, len(e.flags))
	for n := range e.flags {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}
