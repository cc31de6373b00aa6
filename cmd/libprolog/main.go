// Command libprolog builds the C library:
//
//	go build -buildmode=c-shared -o libprolog.so ./cmd/libprolog
//
// The C declarations live in prolog.h next to this file. Opaque pointers in
// the header are surface handles; Go exports them as uintptr_t.
//
// The library reads its configuration from the file named by
// PROLOG_RUNTIME_CONFIG on first use. A configuration that fails to load
// makes every prolog_machine_builder_new call fail; prolog_last_error
// describes why.
package main

import (
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/prolog-runtime/ffi"
	"github.com/wippyai/prolog-runtime/machine"
)

var (
	surfaceOnce sync.Once
	surf        *ffi.Surface
	initErr     error
	log         *zap.Logger
)

func surface() *ffi.Surface {
	surfaceOnce.Do(func() {
		cfg, err := machine.ConfigFromEnv()
		if err != nil {
			initErr = err
			cfg = machine.DefaultConfig()
		}
		log, err = cfg.NewLogger()
		if err != nil {
			log = zap.NewNop()
		}
		if initErr != nil {
			log.Error("load configuration", zap.Error(initErr))
		}
		machine.SetLogger(log)
		ffi.SetLogger(log)
		surf = ffi.New(ffi.Options{Config: cfg, Logger: log, Output: os.Stdout})
	})
	return surf
}

func main() {}
