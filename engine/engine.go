package engine

import (
	"io"
	"os"

	"go.uber.org/zap"
)

// Options configures an Engine.
type Options struct {
	// DoubleQuotes selects how "text" is read: string, codes, chars or atom.
	DoubleQuotes string
	// Unknown selects what calling an unknown procedure does: error or fail.
	Unknown string
	// MaxInferences bounds the inferences of a single query. Zero means no
	// limit.
	MaxInferences int64
	// NoLibrary skips loading the bundled lists library.
	NoLibrary bool
	// Output receives text written by write/1 and friends.
	Output io.Writer
	Logger *zap.Logger
}

// DefaultOptions returns the default engine configuration.
func DefaultOptions() Options {
	return Options{
		DoubleQuotes: "string",
		Unknown:      "error",
		Output:       os.Stdout,
	}
}

// Engine holds a knowledge base and the runtime state shared by its queries.
// An Engine is not safe for concurrent use.
type Engine struct {
	ops     *opTable
	flags   map[Atom]Term
	modules map[Atom]*module
	user    *module
	globals map[Atom]Term
	out     io.Writer
	log     *zap.Logger
	limit   int64
}

// New creates an engine with the given options.
func New(opts Options) (*Engine, error) {
	e := &Engine{
		ops:     newOpTable(),
		modules: make(map[Atom]*module),
		globals: make(map[Atom]Term),
		out:     opts.Output,
		log:     opts.Logger,
		limit:   opts.MaxInferences,
	}
	if e.out == nil {
		e.out = io.Discard
	}
	if e.log == nil {
		e.log = Logger()
	}
	e.user = e.module(atomUser)
	e.flags = defaultFlags()
	if opts.DoubleQuotes != "" {
		if err := e.setFlag("double_quotes", Atom(opts.DoubleQuotes)); err != nil {
			return nil, err
		}
	}
	if opts.Unknown != "" {
		if err := e.setFlag("unknown", Atom(opts.Unknown)); err != nil {
			return nil, err
		}
	}
	if !opts.NoLibrary {
		if err := e.loadLibrary(); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// SetOutput redirects text written by the output builtins.
func (e *Engine) SetOutput(w io.Writer) {
	if w == nil {
		w = io.Discard
	}
	e.out = w
}

// Modules returns the names of the loaded modules.
func (e *Engine) Modules() []string {
	out := make([]string, 0, len(e.modules))
	for name := range e.modules {
		out = append(out, string(name))
	}
	return out
}

// ClauseCount returns the number of clauses stored in module.
func (e *Engine) ClauseCount(module string) int {
	m, ok := e.modules[Atom(module)]
	if !ok {
		return 0
	}
	n := 0
	for _, p := range m.preds {
		n += len(p.clauses)
	}
	return n
}
