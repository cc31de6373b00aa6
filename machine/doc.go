// Package machine is the safe Go API over the embedded Prolog engine.
//
// # Quick Start
//
//	m, err := machine.NewBuilder().Build()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer m.Close()
//
//	if err := m.Consult("facts", "a(1). a(2)."); err != nil {
//	    log.Fatal(err)
//	}
//
//	qs, err := m.RunQuery(ctx, "a(X).")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for leaf := range qs.All() {
//	    fmt.Println(leaf) // X = 1, then X = 2
//	}
//
// # Lifecycle
//
//	Builder     - One-shot configuration, consumed by Build or Discard
//	Machine     - Knowledge base; consult is additive and never rolled back
//	QueryState  - Pull iterator over one query; borrows its machine
//	LeafAnswer  - True, False, Answer with Bindings, or Exception with a term
//	Bindings    - Immutable name to term.Term snapshot of one answer
//
// A machine runs one query at a time. RunQuery marks the machine busy until
// the QueryState is closed; Consult, RunQuery and Close fail with a busy
// error in the meantime.
//
// # Answers
//
// A query with no solutions yields exactly one False leaf and then
// exhaustion. A query with solutions yields one True or Answer leaf per
// solution and then exhaustion, with no trailing False. Bindings list the
// variables bound by the solution; variables whose names start with an
// underscore and variables left unbound are omitted, and a solution that
// binds nothing is a True leaf.
//
// Uncaught exceptions, syntax errors in the query text and engine faults
// (inference limit, cancelled context, halt, recovered panics, cyclic
// answers) end the query with an Exception leaf. Faults carry
// error(system_error(Reason), Detail).
//
// # Configuration
//
// Config is loaded from YAML with LoadConfig, or from the file named by the
// PROLOG_RUNTIME_CONFIG environment variable with ConfigFromEnv:
//
//	double_quotes: codes
//	unknown: fail
//	max_inferences: 1000000
//	log_level: debug
//	modules:
//	  - name: facts
//	    file: facts.pl
//	  - name: rules
//	    source: "grandparent(X, Z) :- parent(X, Y), parent(Y, Z)."
//
// # Thread Safety
//
// The busy flag is atomic, so concurrent misuse is rejected rather than
// racing. Otherwise a machine and its query state are meant to be driven by
// one goroutine at a time.
package machine
