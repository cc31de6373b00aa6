package engine

import (
	"bytes"
	"context"
	"errors"
	"math"
	"math/big"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T, opts ...func(*Options)) *Engine {
	t.Helper()
	o := DefaultOptions()
	o.Output = &bytes.Buffer{}
	for _, fn := range opts {
		fn(&o)
	}
	e, err := New(o)
	require.NoError(t, err)
	return e
}

// solve renders every solution of query as "Name=Value,..." over the bound
// named variables, or "true" when none is bound.
func solve(t *testing.T, e *Engine, query string) []string {
	t.Helper()
	q, err := e.Query(context.Background(), query)
	require.NoError(t, err)
	defer q.Close()
	var out []string
	for {
		ok, err := q.Next()
		require.NoError(t, err, query)
		if !ok {
			return out
		}
		var parts []string
		for _, v := range q.Vars() {
			if _, unbound := Deref(v.Var).(*Var); unbound || strings.HasPrefix(v.Name, "_") {
				continue
			}
			parts = append(parts, v.Name+"="+FormatTerm(v.Var, true))
		}
		if len(parts) == 0 {
			out = append(out, "true")
		} else {
			out = append(out, strings.Join(parts, ","))
		}
	}
}

// solveErr runs query until it fails or returns an error.
func solveErr(t *testing.T, e *Engine, query string) error {
	t.Helper()
	q, err := e.Query(context.Background(), query)
	require.NoError(t, err)
	defer q.Close()
	for {
		ok, err := q.Next()
		if err != nil || !ok {
			return err
		}
	}
}

func mustConsult(t *testing.T, e *Engine, module, text string) {
	t.Helper()
	require.NoError(t, e.Consult(module, text))
}

func TestSolve(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"append enumerates", "append(X, Y, [1,2])", []string{"X=[],Y=[1,2]", "X=[1],Y=[2]", "X=[1,2],Y=[]"}},
		{"conjunction filters", "member(X, [a,b,c]), X \\= b", []string{"X=a", "X=c"}},
		{"if-then-else commits", "( member(X, [1,2,3]), X > 1 -> Y = yes ; Y = no )", []string{"X=2,Y=yes"}},
		{"else branch", "( fail -> Y = yes ; Y = no )", []string{"Y=no"}},
		{"negation", "\\+ member(d, [a,b])", []string{"true"}},
		{"negation fails", "\\+ member(a, [a,b])", nil},
		{"soft cut keeps alternatives", "( member(X, [1,2]) *-> true ; X = none )", []string{"X=1", "X=2"}},
		{"disjunction order", "( X = 1 ; X = 2 )", []string{"X=1", "X=2"}},
		{"once", "once(member(X, [a,b]))", []string{"X=a"}},
		{"ignore", "ignore(fail)", []string{"true"}},
		{"forall", "forall(member(X, [1,2]), X > 0)", []string{"true"}},
		{"between", "between(1, 3, X)", []string{"X=1", "X=2", "X=3"}},
		{"call/N", "call(append([1]), [2], L)", []string{"L=[1,2]"}},
		{"catch", "catch(throw(my), E, true)", []string{"E=my"}},
		{"catch rethrows unmatched", "catch(catch(throw(a), b, true), X, true)", []string{"X=a"}},
		{"catch type error", "catch(_ is foo + 1, error(E, _), true)", []string{"E=type_error(evaluable,foo/0)"}},
		{"findall", "findall(X-Y, member(X-Y, [1-a,2-b]), L)", []string{"L=[1-a,2-b]"}},
		{"findall empty", "findall(X, fail, L)", []string{"L=[]"}},
		{"bagof groups", "bagof(X, member(X-K, [1-a,2-b,3-a]), L)", []string{"K=a,L=[1,3]", "K=b,L=[2]"}},
		{"bagof caret", "bagof(X, K^member(X-K, [1-a,2-b]), L)", []string{"L=[1,2]"}},
		{"bagof fails on empty", "bagof(X, fail, L)", nil},
		{"setof", "setof(X, member(X, [c,a,b,a]), L)", []string{"L=[a,b,c]"}},
		{"aggregate count", "aggregate_all(count, member(_, [a,b]), N)", []string{"N=2"}},
		{"aggregate sum", "aggregate_all(sum(X), member(X, [1,2,3]), S)", []string{"S=6"}},
		{"aggregate max", "aggregate_all(max(X), member(X, [1,3,2]), M)", []string{"M=3"}},
		{"length", "length([a,b], N)", []string{"N=2"}},
		{"sort", "sort([c,a,b,a], L)", []string{"L=[a,b,c]"}},
		{"msort", "msort([b,a,b], L)", []string{"L=[a,b,b]"}},
		{"keysort is stable", "keysort([b-1,a-2,b-0], L)", []string{"L=[a-2,b-1,b-0]"}},
		{"sort/4", "sort(0, @>=, [1,3,2,3], L)", []string{"L=[3,3,2,1]"}},
		{"functor", "functor(foo(a,b), N, A)", []string{"N=foo,A=2"}},
		{"univ", "X =.. [f, a, b]", []string{"X=f(a,b)"}},
		{"arg enumerates", "arg(N, f(a,b), b)", []string{"N=2"}},
		{"compare", "compare(O, 1, a)", []string{"O=<"}},
		{"standard order", "msort([b, 1, \"s\", f(x), 2.0, a], L)", []string{"L=[1,2.0,a,b,\"s\",f(x)]"}},
		{"variant", "f(A, B) =@= f(C, D)", []string{"true"}},
		{"lists library", "reverse([1,2,3], R), nth0(1, R, E), last(R, L)", []string{"R=[3,2,1],E=2,L=1"}},
		{"maplist", "maplist(succ, [1,2], L)", []string{"L=[2,3]"}},
		{"foldl", "foldl(plus, [1,2,3], 0, S)", []string{"S=6"}},
		{"numlist", "numlist(1, 4, L), sum_list(L, S)", []string{"L=[1,2,3,4],S=10"}},
		{"select", "select(b, [a,b,c], R)", []string{"R=[a,c]"}},
		{"current flag", "current_prolog_flag(double_quotes, X)", []string{"X=string"}},
		{"global variables", "nb_setval(k, f(1)), nb_getval(k, V)", []string{"V=f(1)"}},
		{"string literal", "X = \"hi\", string(X)", []string{"X=\"hi\""}},
		{"module qualified call", "lists:append([a], [b], L)", []string{"L=[a,b]"}},
	}

	e := newTestEngine(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, solve(t, e, tt.query))
		})
	}
}

func TestArithmetic(t *testing.T) {
	tests := []struct {
		expr string
		want string
	}{
		{"2 ** 100", "1267650600228229401496703205376"},
		{"7 / 2", "3.5"},
		{"6 / 2", "3"},
		{"1 rdiv 3 + 1 rdiv 6", "1 rdiv 2"},
		{"max(1, 2.0)", "2.0"},
		{"10 mod -3", "-2"},
		{"-7 // 2", "-3"},
		{"5.0", "5.0"},
		{"2 ^ 3", "8"},
		{"abs(-3)", "3"},
		{"sign(-2.5)", "-1.0"},
		{"truncate(3.7)", "3"},
		{"round(2.5)", "3"},
		{"ceiling(2.1)", "3"},
		{"floor(-2.1)", "-3"},
		{"7 rem -2", "1"},
		{"1 << 70", "1180591620717411303424"},
		{"0xff /\\ 0x0f", "15"},
		{"min(3, 1)", "1"},
		{"gcd(12, 18)", "6"},
		{"\"a\" + 0", "97"},
		{"1.0e20", "1.0e20"},
	}

	e := newTestEngine(t)
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			assert.Equal(t, []string{"X=" + tt.want}, solve(t, e, "X is "+tt.expr))
		})
	}
}

func TestArithmeticErrors(t *testing.T) {
	tests := []struct {
		expr string
		want string
	}{
		{"1 / 0", "evaluation_error(zero_divisor)"},
		{"1 mod 0", "evaluation_error(zero_divisor)"},
		{"foo + 1", "type_error(evaluable,foo/0)"},
		{"_ + 1", "instantiation_error"},
		{"1 << a", "type_error(evaluable,a/0)"},
	}

	e := newTestEngine(t)
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got := solve(t, e, "catch(_ is "+tt.expr+", error(E, _), true)")
			assert.Equal(t, []string{"E=" + tt.want}, got)
		})
	}
}

func TestTextBuiltins(t *testing.T) {
	tests := []struct {
		query string
		want  []string
	}{
		{"atom_codes(abc, L)", []string{"L=[97,98,99]"}},
		{"atom_codes(A, [0'h, 0'i])", []string{"A=hi"}},
		{"atom_chars(abc, L)", []string{"L=[a,b,c]"}},
		{"atom_length('héllo', N)", []string{"N=5"}},
		{"sub_atom(abcab, B, 2, A, ab)", []string{"B=0,A=3", "B=3,A=0"}},
		{"sub_atom(abc, 1, 1, _, S)", []string{"S=b"}},
		{"atom_concat(X, Y, ab)", []string{"X='',Y=ab", "X=a,Y=b", "X=ab,Y=''"}},
		{"atom_concat(ab, cd, X)", []string{"X=abcd"}},
		{"atomic_list_concat(L, ',', 'a,b,c')", []string{"L=[a,b,c]"}},
		{"atomic_list_concat([a, 1, \"s\"], X)", []string{"X=a1s"}},
		{"atomic_list_concat([a, b], '-', X)", []string{"X='a-b'"}},
		{"upcase_atom(abc, X)", []string{"X='ABC'"}},
		{"atom_number('12', N)", []string{"N=12"}},
		{"atom_number('-1.5', N)", []string{"N=-1.5"}},
		{"atom_number(foo, N)", nil},
		{"number_codes(N, \"42\")", []string{"N=42"}},
		{"atom_string(A, \"xy\")", []string{"A=xy"}},
		{"string_chars(S, [a,b])", []string{"S=\"ab\""}},
		{"string_concat(\"ab\", \"cd\", S)", []string{"S=\"abcd\""}},
		{"string_length(\"abc\", N)", []string{"N=3"}},
		{"split_string(\"a b  c\", \" \", \"\", L)", []string{`L=["a","b","","c"]`}},
		{"split_string(\"  hi  \", \"\", \" \", L)", []string{`L=["hi"]`}},
		{"char_code(C, 0'x)", []string{"C=x"}},
		{"term_to_atom(T, 'foo(X, bar)'), T = foo(1, B)", []string{"T=foo(1,bar),B=bar"}},
		{"term_to_atom(f(x, y), A)", []string{"A='f(x,y)'"}},
		{"number_string(N, \" 42 \")", []string{"N=42"}},
	}

	e := newTestEngine(t)
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, solve(t, e, tt.query))
		})
	}
}

func TestOutput(t *testing.T) {
	var buf bytes.Buffer
	e := newTestEngine(t, func(o *Options) { o.Output = &buf })

	solve(t, e, "write(f('A', \"s\", [1])), nl, writeq(f('A', \"s\")), nl, print(-(1)), nl")
	assert.Equal(t, "f(A,s,[1])\nf('A',\"s\")\n- 1\n", buf.String())

	buf.Reset()
	solve(t, e, "format(\"~w and ~a: ~d~n\", [g(x), y, 42])")
	assert.Equal(t, "g(x) and y: 42\n", buf.String())

	assert.Equal(t, []string{`S="f(x)-b\n"`},
		solve(t, e, "with_output_to(string(S), format(\"~w-~a~n\", [f(x), b]))"))
	assert.Equal(t, []string{"A='3.14'"}, solve(t, e, "format(atom(A), \"~2d\", [314])"))
	assert.Equal(t, []string{"A='1,234,567'"}, solve(t, e, "format(atom(A), \"~D\", [1234567])"))
}

func TestConsultModules(t *testing.T) {
	e := newTestEngine(t)
	mustConsult(t, e, "geo", `
:- module(geo, [area/2]).
area(sq(S), A) :- A is S * S.
helper(1).
`)

	assert.Equal(t, []string{"A=9"}, solve(t, e, "area(sq(3), A)"))
	assert.Equal(t, []string{"X=1"}, solve(t, e, "geo:helper(X)"))
	assert.Equal(t, []string{"PI=helper/1"},
		solve(t, e, "catch(helper(_), error(existence_error(procedure, PI), _), true)"))

	mustConsult(t, e, "app", `
double(X, Y) :- Y is X * 2.
run(L, R) :- maplist(double, L, R).
`)
	assert.Equal(t, []string{"R=[2,4]"}, solve(t, e, "run([1,2], R)"))
	assert.Contains(t, e.Modules(), "geo")
	assert.Equal(t, 2, e.ClauseCount("app"))
}

func TestConsultKeepsClausesBeforeError(t *testing.T) {
	e := newTestEngine(t)
	err := e.Consult("user", "a(1).\na(2).\nb( .\na(3).")
	var ex *Exception
	require.ErrorAs(t, err, &ex)
	assert.Contains(t, FormatTerm(ex.Ball, true), "syntax_error")

	assert.Equal(t, []string{"X=1", "X=2"}, solve(t, e, "a(X)"))
}

func TestConsultDirectives(t *testing.T) {
	e := newTestEngine(t)
	mustConsult(t, e, "user", `
:- dynamic(counter/1).
:- set_prolog_flag(double_quotes, codes).
w("ab").
:- set_prolog_flag(double_quotes, string).
:- initialization(assertz(counter(0))).
:- op(700, xfx, ===>).
rule(a ===> b).
`)
	assert.Equal(t, []string{"X=[97,98]"}, solve(t, e, "w(X)"))
	assert.Equal(t, []string{"N=0"}, solve(t, e, "counter(N)"))
	assert.Equal(t, []string{"X=a,Y=b"}, solve(t, e, "rule(X ===> Y)"))
}

func TestConsultDirectiveException(t *testing.T) {
	e := newTestEngine(t)
	err := e.Consult("user", "p(1).\n:- throw(stop).\np(2).")
	var ex *Exception
	require.ErrorAs(t, err, &ex)
	assert.Equal(t, Atom("stop"), ex.Ball)
	assert.Equal(t, []string{"X=1"}, solve(t, e, "p(X)"))
}

func TestDCG(t *testing.T) {
	e := newTestEngine(t)
	mustConsult(t, e, "user", `
greeting --> [hello], name.
name --> [world].
name --> [prolog].
digits([D|T]) --> digit(D), digits(T).
digits([D]) --> digit(D).
digit(D) --> [D], { code_type_digit(D) }.
code_type_digit(D) :- D >= 0'0, D =< 0'9.
`)
	assert.Equal(t, []string{"X=world", "X=prolog"}, solve(t, e, "phrase(greeting, [hello, X])"))
	assert.Equal(t, []string{"Ds=[49,50],R=[97]", "Ds=[49],R=[50,97]"},
		solve(t, e, "atom_codes('12a', _Cs), phrase(digits(Ds), _Cs, R)"))
	assert.Equal(t, []string{"Ds=[49,50]"},
		solve(t, e, "atom_codes('12', _Cs), phrase(digits(Ds), _Cs)"))
}

func TestDatabase(t *testing.T) {
	e := newTestEngine(t)
	assert.Equal(t, []string{"X=1,Y=2"},
		solve(t, e, "assertz(counter(1)), retract(counter(X)), assertz(counter(2)), counter(Y)"))

	assert.Equal(t, []string{"L=[1,2]"},
		solve(t, e, "assertz(q(1)), ( q(_), assertz(q(2)), fail ; true ), findall(Y, q(Y), L)"))

	assert.Equal(t, []string{"true"}, solve(t, e, "asserta(r(2)), asserta(r(1)), retractall(r(2))"))
	assert.Equal(t, []string{"X=1"}, solve(t, e, "r(X)"))

	assert.Equal(t, []string{"B=true"}, solve(t, e, "clause(r(1), B)"))
	assert.Equal(t, []string{"true"}, solve(t, e, "abolish(r/1)"))

	mustConsult(t, e, "user", "fixed(1).")
	assert.Equal(t, []string{"E=permission_error(modify,static_procedure,fixed/1)"},
		solve(t, e, "catch(assertz(fixed(2)), error(E, _), true)"))
}

func TestUnknownProcedure(t *testing.T) {
	e := newTestEngine(t)
	err := solveErr(t, e, "nope(1)")
	var ex *Exception
	require.ErrorAs(t, err, &ex)
	assert.True(t, strings.HasPrefix(FormatTerm(ex.Ball, true), "error(existence_error(procedure,nope/1),"))

	assert.Nil(t, solve(t, e, "set_prolog_flag(unknown, fail), nope(1)"))
}

func TestDeepRecursion(t *testing.T) {
	e := newTestEngine(t)
	mustConsult(t, e, "user", `
count(N, N) :- !.
count(I, N) :- I1 is I + 1, count(I1, N).
len([], 0).
len([_|T], N) :- len(T, M), N is M + 1.
`)
	assert.Equal(t, []string{"true"}, solve(t, e, "count(0, 200000)"))
	assert.Equal(t, []string{"N=50000"}, solve(t, e, "numlist(1, 50000, _L), len(_L, N)"))
}

func TestFaults(t *testing.T) {
	t.Run("inference limit", func(t *testing.T) {
		e := newTestEngine(t, func(o *Options) { o.MaxInferences = 1000 })
		var f *Fault
		require.ErrorAs(t, solveErr(t, e, "repeat, fail"), &f)
		assert.Equal(t, FaultLimit, f.Reason)
	})

	t.Run("cancelled context", func(t *testing.T) {
		e := newTestEngine(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		q, err := e.Query(ctx, "repeat, fail")
		require.NoError(t, err)
		defer q.Close()
		_, err = q.Next()
		var f *Fault
		require.ErrorAs(t, err, &f)
		assert.Equal(t, FaultCancelled, f.Reason)
	})

	t.Run("halt is not catchable", func(t *testing.T) {
		e := newTestEngine(t)
		var f *Fault
		require.ErrorAs(t, solveErr(t, e, "catch(halt, _, true)"), &f)
		assert.Equal(t, FaultHalt, f.Reason)
	})

	t.Run("cyclic term", func(t *testing.T) {
		e := newTestEngine(t)
		var f *Fault
		require.ErrorAs(t, solveErr(t, e, "X = f(X), write(X)"), &f)
		assert.Equal(t, FaultDepth, f.Reason)
	})

	t.Run("fault term", func(t *testing.T) {
		f := &Fault{Reason: FaultLimit, Detail: "exceeded 10 inferences"}
		assert.Equal(t, `error(system_error(inference_limit),"exceeded 10 inferences")`,
			FormatTerm(f.Term(), true))
	})
}

func TestQueryLifecycle(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.Query(context.Background(), "foo(")
	var ex *Exception
	require.ErrorAs(t, err, &ex)
	assert.True(t, strings.HasPrefix(FormatTerm(ex.Ball, true), "error(syntax_error("))

	q, err := e.Query(context.Background(), "member(X, [1,2,3]).")
	require.NoError(t, err)
	require.Len(t, q.Vars(), 1)
	assert.Equal(t, "X", q.Vars()[0].Name)

	ok, err := q.Next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "1", FormatTerm(q.Vars()[0].Var, true))

	q.Close()
	assert.False(t, q.Vars()[0].Var.Bound())
	ok, err = q.Next()
	assert.NoError(t, err)
	assert.False(t, ok)

	q, err = e.Query(context.Background(), "throw(oops)")
	require.NoError(t, err)
	_, err = q.Next()
	require.True(t, errors.As(err, &ex))
	assert.Equal(t, Atom("oops"), ex.Ball)
	ok, err = q.Next()
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestQueryVarsSurviveTrailingCheck(t *testing.T) {
	e := newTestEngine(t)
	q, err := e.Query(context.Background(), "X = f(Y), Z = 1")
	require.NoError(t, err)
	defer q.Close()

	var names []string
	for _, v := range q.Vars() {
		names = append(names, v.Name)
	}
	assert.Equal(t, []string{"X", "Y", "Z"}, names)
}

func TestCompareExactWithInfinity(t *testing.T) {
	huge := Int{v: new(big.Int).Exp(big.NewInt(10), big.NewInt(400), nil)}
	assert.Equal(t, -1, compareNum(huge, Float(math.Inf(1))))
	assert.Equal(t, 1, compareNum(huge, Float(math.Inf(-1))))
	assert.Equal(t, 1, compareNum(Float(math.Inf(1)), huge))
	assert.Equal(t, 1, compareNum(huge, Float(1e308)))
	assert.Equal(t, 0, compareNum(NewInt(2), Float(2)))
}
