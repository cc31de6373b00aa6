// Package resource provides opaque handle management for values that cross
// the flat boundary.
//
// Every machine, query state, answer, bindings snapshot, term, text buffer and
// term array handed to a caller outside Go is represented by a Handle in a
// table. The caller owns the handle and must release it exactly once.
//
// # Resource Lifecycle
//
// Handles follow three operations:
//
//	create  - Ownership transfer to the caller
//	borrow  - Temporary exclusive use by a dependent resource
//	drop    - Explicit destruction of an owned resource
//
// # Handle Table
//
// The UnifiedTable maps integer handles to Go values:
//
//	table := resource.NewTable()
//
//	// Insert a value, get a handle
//	handle := table.Insert(typeID, myValue)
//
//	// Retrieve value by handle
//	value, ok := table.Get(handle)
//
//	// Remove and get value (for ownership transfer)
//	value, ok := table.Remove(handle)
//
// # Type Safety
//
// Handles are typed - each resource type gets a unique type ID:
//
//	const MachineTypeID = 2
//	const TermTypeID = 6
//
//	// Type-checked retrieval
//	value, ok := table.GetTyped(machineHandle, MachineTypeID) // ok
//	value, ok := table.GetTyped(machineHandle, TermTypeID)    // !ok
//
// Typed[T] wraps a table for a single type ID.
//
// # Stale Handles
//
// Slots are reused after release, but each slot carries a generation that is
// part of the handle. Releasing a handle twice, or using it after release,
// fails instead of reaching whatever now occupies the slot.
//
// # Borrows
//
// A handle with outstanding borrows cannot be removed. A query state borrows
// its machine handle so the machine cannot be released underneath it.
//
// # Observers
//
// Register observers to track resource lifecycle events:
//
//	table.Subscribe(myObserver)
//
// # Memory Management
//
// Resources are not automatically garbage collected. Callers must explicitly
// Remove each handle. Failure to do so will leak memory. Close releases
// everything still live.
package resource
