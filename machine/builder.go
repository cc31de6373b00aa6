package machine

import (
	"io"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wippyai/prolog-runtime/engine"
	"github.com/wippyai/prolog-runtime/errors"
)

// Builder collects machine configuration. It is consumed by the first call
// to Build or Discard.
type Builder struct {
	cfg      Config
	log      *zap.Logger
	out      io.Writer
	consumed atomic.Bool
}

// Option configures a Builder.
type Option func(*Builder)

// NewBuilder returns a builder holding the default configuration with opts
// applied in order.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{cfg: DefaultConfig()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// WithConfig replaces the whole configuration. Options given after it
// override single fields.
func WithConfig(cfg Config) Option {
	return func(b *Builder) {
		b.cfg = cfg
		b.cfg.Modules = append([]ModuleSource(nil), cfg.Modules...)
	}
}

// WithDoubleQuotes sets the double_quotes flag.
func WithDoubleQuotes(mode string) Option {
	return func(b *Builder) { b.cfg.DoubleQuotes = mode }
}

// WithUnknown sets the unknown flag.
func WithUnknown(policy string) Option {
	return func(b *Builder) { b.cfg.Unknown = policy }
}

// WithMaxInferences bounds the inferences of each query.
func WithMaxInferences(n int64) Option {
	return func(b *Builder) { b.cfg.MaxInferences = n }
}

// WithoutLibrary skips the bundled lists library.
func WithoutLibrary() Option {
	return func(b *Builder) {
		off := false
		b.cfg.Library = &off
	}
}

// WithModule consults source into module when the machine is built.
func WithModule(module, source string) Option {
	return func(b *Builder) {
		b.cfg.Modules = append(b.cfg.Modules, ModuleSource{Name: module, Source: source})
	}
}

// WithLogger sets the logger of the machine and its queries.
func WithLogger(l *zap.Logger) Option {
	return func(b *Builder) { b.log = l }
}

// WithOutput sets where write/1 and friends print. Output is discarded by
// default.
func WithOutput(w io.Writer) Option {
	return func(b *Builder) { b.out = w }
}

// Build consumes the builder and returns a new machine. The builder cannot
// be used again even when Build fails.
func (b *Builder) Build() (*Machine, error) {
	if !b.consumed.CompareAndSwap(false, true) {
		return nil, errors.Consumed(errors.PhaseBuild, "machine builder")
	}
	if err := b.cfg.Validate(); err != nil {
		return nil, err
	}

	log := b.log
	if log == nil {
		log = Logger()
	}
	id := uuid.New()
	log = log.With(zap.String("machine", id.String()))

	eng, err := engine.New(engine.Options{
		DoubleQuotes:  b.cfg.DoubleQuotes,
		Unknown:       b.cfg.Unknown,
		MaxInferences: b.cfg.MaxInferences,
		NoLibrary:     !b.cfg.library(),
		Output:        b.out,
		Logger:        log,
	})
	if err != nil {
		return nil, errors.Wrap(errors.PhaseBuild, errors.KindEngineFault, err, "create engine")
	}

	m := &Machine{id: id, eng: eng, log: log}
	for _, src := range b.cfg.Modules {
		text, err := src.text()
		if err != nil {
			return nil, err
		}
		if err := m.Consult(src.Name, text); err != nil {
			return nil, errors.Wrap(errors.PhaseBuild, errors.KindInvalidInput, err, "consult "+src.Name)
		}
	}

	log.Debug("machine built",
		zap.Int("modules", len(b.cfg.Modules)),
		zap.Int64("max_inferences", b.cfg.MaxInferences))
	return m, nil
}

// Discard consumes the builder without building a machine.
func (b *Builder) Discard() error {
	if !b.consumed.CompareAndSwap(false, true) {
		return errors.Consumed(errors.PhaseRelease, "machine builder")
	}
	return nil
}

// Consumed reports whether Build or Discard has been called.
func (b *Builder) Consumed() bool {
	return b.consumed.Load()
}
