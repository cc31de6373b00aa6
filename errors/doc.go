// Package errors provides structured error types for the prolog-runtime library.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type includes rich context: term path, resource kind, handle and cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseDecode, errors.KindTypeMismatch).
//		Path("args", "1").
//		Resource("term").
//		Detail("expected integer, got atom").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.TypeMismatch(errors.PhaseDecode, path, "integer", "atom")
//	err := errors.InvalidHandle(errors.PhaseRelease, "term", h)
//
// All errors implement the standard error interface and support errors.Is/As.
// Two errors match under errors.Is when their Phase and Kind agree, so the
// package-level sentinels (ErrMachineBusy, ErrBuilderConsumed, ...) can be used
// as targets regardless of the detail attached to a particular failure.
package errors
