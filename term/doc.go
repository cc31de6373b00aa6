// Package term defines the snapshot terms handed out across the boundary.
//
// A Term is one of eight kinds:
//
//	Integer   - arbitrary precision integer, read back as decimal text
//	Rational  - numerator and denominator in lowest terms, denominator > 1
//	Float     - 64-bit IEEE 754 value
//	Atom      - atom text
//	String    - string object text
//	List      - proper list of terms
//	Compound  - functor text and one or more argument terms
//	Variable  - name of a variable left unbound by the answer
//
// Terms are immutable values that share nothing with the engine, so they stay
// valid after the query and machine that produced them are closed.
//
// The Unwrap functions are total. Each either matches the term's kind and
// returns every output, or returns the zero value of every output and a
// type mismatch error from the errors package:
//
//	n, err := term.UnwrapInteger(t)
//	if err != nil {
//	    // t is not an Integer; n is ""
//	}
//
// Partial lists, whose tail is unbound or not a list, are reported as the
// '.'/2 compounds they are made of.
package term
