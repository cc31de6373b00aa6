// Package engine provides the embedded Prolog interpreter behind the machine
// package.
//
// The engine reads standard Prolog text, stores clauses per module and solves
// goals with a resumable, pull-based solver. The boundary packages only use
// the exported surface: Engine, Query, Term and the two error types.
//
// # Architecture
//
//	Engine     - Knowledge base: modules, flags, operator table, globals
//	Query      - A goal being solved; Next yields one solution at a time
//	Term       - Atom, Int, Rat, Float, String, *Var, *Compound
//	Exception  - An uncaught Prolog exception carrying its ball term
//	Fault      - An engine failure that catch/3 cannot intercept
//
// # Solving
//
// The solver keeps an explicit continuation list, a choicepoint stack and a
// trail of bindings. Nothing recurses on the Go stack per inference, so deep
// recursion in Prolog code is limited only by memory. Cut removes
// choicepoints down to the height recorded when the clause was entered;
// if-then-else, negation and call/N act as cut barriers.
//
// Usage:
//
//	e, err := engine.New(engine.DefaultOptions())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := e.Consult("user", "parent(tom, bob)."); err != nil {
//	    log.Fatal(err)
//	}
//	q, err := e.Query(ctx, "parent(X, Y)")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer q.Close()
//	for {
//	    ok, err := q.Next()
//	    if err != nil || !ok {
//	        break
//	    }
//	    for _, v := range q.Vars() {
//	        fmt.Println(v.Name, "=", engine.FormatTerm(v.Var, true))
//	    }
//	}
//
// # Modules
//
// Text consulted under a module name lands in that module. A module is
// imported into user when first created; a module/2 directive limits the
// imported predicates to its export list. The bundled lists library is
// consulted into module lists by New unless Options.NoLibrary is set.
//
// # Limits
//
// Options.MaxInferences bounds the inferences of one query and the query's
// context is checked periodically; either condition ends the query with a
// *Fault. Panics inside the solver and terms nested beyond the depth guard
// are recovered and reported as faults too.
//
// # Thread Safety
//
// An Engine and its queries must be used by one goroutine at a time.
package engine
