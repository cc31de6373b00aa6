package main

/*
#include <stdint.h>
#include <stdlib.h>
*/
import "C"

import "unsafe"

// C-side storage for callers written in Go, such as the package tests.

// cHandle is a surface handle as the exports pass it.
type cHandle = C.uintptr_t

func cText(s string) *C.char { return C.CString(s) }

func freeCText(p *C.char) { C.free(unsafe.Pointer(p)) }

func goText(p *C.char) string { return C.GoString(p) }

func handleSlot() *cHandle { return new(cHandle) }

func textSlot() **C.char { return new(*C.char) }

func floatSlot() *C.double { return new(C.double) }

func listSlot() (**C.uintptr_t, *C.uintptr_t) {
	return new(*C.uintptr_t), new(C.uintptr_t)
}

// cItems views the n handles of a list handed out by listOut.
func cItems(p *C.uintptr_t, n C.uintptr_t) []C.uintptr_t {
	return unsafe.Slice(p, int(n))
}
