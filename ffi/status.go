package ffi

import (
	"github.com/wippyai/prolog-runtime/resource"
)

// Status is the result of every fallible surface call. The numbering is part
// of the C surface.
type Status int32

const (
	StatusSuccess Status = iota
	StatusError
	StatusPanic
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	case StatusPanic:
		return "panic"
	default:
		return "unknown"
	}
}

// Handle names a live surface resource. The zero handle is never valid and
// stands for "no resource".
type Handle = resource.Handle

// Resource kinds held in the handle table.
const (
	typeBuilder uint32 = iota + 1
	typeMachine
	typeQuery
	typeLeaf
	typeBindings
	typeTerm
	typeText
	typeArray
)

var typeNames = map[uint32]string{
	typeBuilder:  "machine_builder",
	typeMachine:  "machine",
	typeQuery:    "query_state",
	typeLeaf:     "leaf_answer",
	typeBindings: "bindings",
	typeTerm:     "term",
	typeText:     "string",
	typeArray:    "list",
}
