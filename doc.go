// Package prologruntime embeds a Prolog engine behind a safe Go API and a
// flat, handle-based C surface.
//
// # Architecture Overview
//
// The library is organized into several packages with distinct responsibilities:
//
//	prologruntime/
//	├── engine/          Prolog interpreter: reader, solver, builtins, lists library
//	├── term/            Immutable term trees handed out of the engine
//	├── machine/         Builder, Machine, QueryState, LeafAnswer and Bindings
//	├── ffi/             Handle-based surface with explicit release
//	├── resource/        Generation-tagged handle table
//	├── errors/          Structured error types for debugging
//	└── cmd/
//	    ├── libprolog/   C shared library exporting the surface
//	    └── run/         CLI and interactive REPL
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
//	err = m.Each(ctx, "a(X).", func(leaf *machine.LeafAnswer) bool {
//	    fmt.Println(leaf) // X = 1, then X = 2
//	    return true
//	})
//
// # Answers
//
// Every step of a query yields one leaf answer: True, False, Answer (with
// bindings) or Exception (with a term). Engine faults such as an exhausted
// inference budget or a cancelled context arrive as Exception leaves too, so
// callers handle every failure through one path.
//
// # C Library
//
// Build with:
//
//	go build -buildmode=c-shared -o libprolog.so ./cmd/libprolog
//
// The header is cmd/libprolog/prolog.h. Every pointer, string and list the
// library returns is owned by the caller and released exactly once with its
// drop function. See examples/c for the full sequence.
//
// # Error Handling
//
// All errors use the structured errors package:
//
//	var e *errors.Error
//	if stderrors.As(err, &e) {
//	    fmt.Println(e.Phase, e.Kind)
//	}
//
// # Thread Safety
//
// A machine runs one query at a time and rejects concurrent use with a busy
// error. The ffi handle table is safe for concurrent use.
package prologruntime
