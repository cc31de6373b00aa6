package machine

import (
	"context"
	"slices"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wippyai/prolog-runtime/engine"
	"github.com/wippyai/prolog-runtime/errors"
)

// Machine owns a knowledge base and runs queries against it. At most one
// query may be live at a time; Consult and RunQuery fail while one is.
type Machine struct {
	id     uuid.UUID
	eng    *engine.Engine
	log    *zap.Logger
	busy   atomic.Bool
	closed atomic.Bool
}

// ID returns the unique id of the machine.
func (m *Machine) ID() string {
	return m.id.String()
}

// Busy reports whether a query is live or a consult is running.
func (m *Machine) Busy() bool {
	return m.busy.Load()
}

// Modules returns the sorted names of the loaded modules.
func (m *Machine) Modules() []string {
	names := m.eng.Modules()
	slices.Sort(names)
	return names
}

// Consult parses source and adds its clauses to module. Clauses loaded
// before a syntax error or a failing directive stay loaded.
func (m *Machine) Consult(module, source string) (err error) {
	if m.closed.Load() {
		return errors.Closed(errors.PhaseConsult, "machine")
	}
	if err := errors.CheckUTF8(errors.PhaseConsult, "module", module); err != nil {
		return err
	}
	if err := errors.CheckUTF8(errors.PhaseConsult, "source", source); err != nil {
		return err
	}
	if !m.busy.CompareAndSwap(false, true) {
		return errors.Busy(errors.PhaseConsult, "machine", "a query is live")
	}
	defer m.busy.Store(false)
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("consult panicked", zap.String("module", module), zap.Any("panic", r))
			err = errors.Fault(errors.PhaseConsult, r)
		}
	}()

	before := m.eng.ClauseCount(module)
	if err := m.eng.Consult(module, source); err != nil {
		m.log.Debug("consult failed",
			zap.String("module", module),
			zap.Int("clauses", m.eng.ClauseCount(module)-before),
			zap.Error(err))
		return consultError(module, err)
	}
	m.log.Debug("consulted",
		zap.String("module", module),
		zap.Int("clauses", m.eng.ClauseCount(module)-before))
	return nil
}

func consultError(module string, err error) error {
	kind := errors.KindInvalidInput
	var value any
	switch e := err.(type) {
	case *engine.Exception:
		if isSyntaxError(e.Ball) {
			kind = errors.KindSyntax
		}
		if t, fault := snapshot(e.Ball); fault == nil {
			value = t
		}
	case *engine.Fault:
		kind = errors.KindEngineFault
	}
	return errors.New(errors.PhaseConsult, kind).
		Path(module).
		Value(value).
		Cause(err).
		Build()
}

func isSyntaxError(ball engine.Term) bool {
	c, ok := engine.Deref(ball).(*engine.Compound)
	if !ok || c.Functor != "error" || len(c.Args) != 2 {
		return false
	}
	f, ok := engine.Deref(c.Args[0]).(*engine.Compound)
	return ok && f.Functor == "syntax_error"
}

// RunQuery starts solving query in the user module. The machine stays
// borrowed by the returned QueryState until it is closed. A syntax error in
// query is reported as an Exception leaf by the first Next.
func (m *Machine) RunQuery(ctx context.Context, query string) (qs *QueryState, err error) {
	if m.closed.Load() {
		return nil, errors.Closed(errors.PhaseQuery, "machine")
	}
	if err := errors.CheckUTF8(errors.PhaseQuery, "query", query); err != nil {
		return nil, err
	}
	if !m.busy.CompareAndSwap(false, true) {
		return nil, errors.Busy(errors.PhaseQuery, "machine", "a query is already live")
	}
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("query start panicked", zap.Any("panic", r))
			m.busy.Store(false)
			qs, err = nil, errors.Fault(errors.PhaseQuery, r)
		}
	}()

	qs = &QueryState{
		m:   m,
		log: m.log.With(zap.String("query", uuid.NewString())),
	}
	q, qerr := m.eng.Query(ctx, query)
	switch e := qerr.(type) {
	case nil:
		qs.q = q
	case *engine.Exception:
		qs.pending = qs.exception(e.Ball)
	case *engine.Fault:
		qs.pending = qs.exception(e.Term())
	default:
		m.busy.Store(false)
		return nil, errors.Wrap(errors.PhaseQuery, errors.KindEngineFault, qerr, "start query")
	}
	qs.log.Debug("query started", zap.String("text", query))
	return qs, nil
}

// Each runs query and calls fn with every leaf answer until the query is
// exhausted or fn returns false. The query is closed on every path.
func (m *Machine) Each(ctx context.Context, query string, fn func(*LeafAnswer) bool) error {
	qs, err := m.RunQuery(ctx, query)
	if err != nil {
		return err
	}
	for leaf := range qs.All() {
		if !fn(leaf) {
			break
		}
	}
	return nil
}

// Close releases the machine. It fails while a query is live. Closing a
// closed machine is a no-op.
func (m *Machine) Close() error {
	if !m.busy.CompareAndSwap(false, true) {
		return errors.Busy(errors.PhaseRelease, "machine", "a query is live")
	}
	defer m.busy.Store(false)
	if m.closed.CompareAndSwap(false, true) {
		m.log.Debug("machine closed")
	}
	return nil
}
