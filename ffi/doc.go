// Package ffi is the flat, handle-based surface behind the C library.
//
// Every resource crossing the boundary lives in one handle table:
//
//	machine_builder  - consumed by MachineBuilderBuild or MachineBuilderDrop
//	machine          - borrowed by each live query_state
//	query_state      - yields leaf_answer handles, zero on exhaustion
//	leaf_answer      - unwraps to bindings or an exception term
//	bindings         - looks up terms by variable name
//	term             - unwraps to text, floats and lists of terms
//	string           - text buffer, released with StringDrop
//	list             - array of term handles, released with ListDrop
//
// Handles are 24-bit slot indexes tagged with an 8-bit generation, so a
// handle released and reused reports invalid_handle instead of aliasing the
// new resource. Every call returns a Status; panics are recovered into
// StatusPanic and never cross the boundary. LastError holds the structured
// error behind the last failure.
//
// Outstanding lists live resources per kind. A program that releases
// everything it was handed leaves it empty.
package ffi
