package main

/*
#include <stdint.h>
#include <stdlib.h>
*/
import "C"

import (
	"strings"
	"sync"
	"unsafe"

	"github.com/wippyai/prolog-runtime/errors"
	"github.com/wippyai/prolog-runtime/ffi"
)

// cAllocs tracks C buffers handed to the caller and the surface handle each
// one mirrors. The buffer is freed when the caller releases it; the handle is
// released with it.
type cAllocs struct {
	mu      sync.Mutex
	strings map[unsafe.Pointer]ffi.Handle
	lists   map[unsafe.Pointer]ffi.Handle
}

var allocs = &cAllocs{
	strings: make(map[unsafe.Pointer]ffi.Handle),
	lists:   make(map[unsafe.Pointer]ffi.Handle),
}

// cString copies text buffer h into C memory. Text holding a NUL byte has
// no C string form and is rejected.
func (a *cAllocs) cString(s *ffi.Surface, h ffi.Handle) (*C.char, ffi.Status) {
	text, st := s.Text(h)
	if st != ffi.StatusSuccess {
		return nil, st
	}
	if i := strings.IndexByte(text, 0); i >= 0 {
		return nil, s.Reject(errors.New(errors.PhaseBoundary, errors.KindUnsupported).
			Resource("string").
			Handle(uint32(h)).
			Detail("text holds a NUL byte at offset %d", i).
			Build())
	}
	p := C.CString(text)
	a.mu.Lock()
	a.strings[unsafe.Pointer(p)] = h
	a.mu.Unlock()
	return p, ffi.StatusSuccess
}

// cList copies the handles of array h into an exact-length C array. An empty
// array still gets a distinct allocation so it can be released.
func (a *cAllocs) cList(s *ffi.Surface, h ffi.Handle) (*C.uintptr_t, ffi.Status) {
	hs, st := s.Elements(h)
	if st != ffi.StatusSuccess {
		return nil, st
	}
	size := C.size_t(max(len(hs), 1)) * C.size_t(unsafe.Sizeof(C.uintptr_t(0)))
	p := (*C.uintptr_t)(C.malloc(size))
	out := unsafe.Slice(p, len(hs))
	for i, e := range hs {
		out[i] = C.uintptr_t(e)
	}
	a.mu.Lock()
	a.lists[unsafe.Pointer(p)] = h
	a.mu.Unlock()
	return p, ffi.StatusSuccess
}

func (a *cAllocs) freeString(s *ffi.Surface, p *C.char) ffi.Status {
	a.mu.Lock()
	h, ok := a.strings[unsafe.Pointer(p)]
	delete(a.strings, unsafe.Pointer(p))
	a.mu.Unlock()
	if !ok {
		return s.Reject(errors.New(errors.PhaseRelease, errors.KindInvalidHandle).
			Resource("string").
			Detail("%p was not returned by this library or was already released", p).
			Build())
	}
	st := s.StringDrop(h)
	C.free(unsafe.Pointer(p))
	return st
}

func (a *cAllocs) freeList(s *ffi.Surface, p *C.uintptr_t, n int) ffi.Status {
	a.mu.Lock()
	h, ok := a.lists[unsafe.Pointer(p)]
	a.mu.Unlock()
	if !ok {
		return s.Reject(errors.New(errors.PhaseRelease, errors.KindInvalidHandle).
			Resource("list").
			Detail("%p was not returned by this library or was already released", p).
			Build())
	}
	if st := s.ListDrop(h, n); st != ffi.StatusSuccess {
		return st
	}
	a.mu.Lock()
	delete(a.lists, unsafe.Pointer(p))
	a.mu.Unlock()
	C.free(unsafe.Pointer(p))
	return ffi.StatusSuccess
}
