package ffi

import (
	"context"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/prolog-runtime/errors"
	"github.com/wippyai/prolog-runtime/machine"
	"github.com/wippyai/prolog-runtime/resource"
	"github.com/wippyai/prolog-runtime/term"
)

// Options configures a Surface.
type Options struct {
	// Config is applied to every machine builder the surface creates.
	Config machine.Config
	Logger *zap.Logger
	// Output receives text written by Prolog output predicates.
	Output io.Writer
}

// DefaultOptions returns the default surface configuration.
func DefaultOptions() Options {
	return Options{Config: machine.DefaultConfig()}
}

// queryEntry is a live query state and the machine handle it borrows.
type queryEntry struct {
	qs      *machine.QueryState
	machine Handle
	table   *resource.UnifiedTable
}

// Drop abandons the query and returns the machine borrow. The table calls
// it when the query handle is removed.
func (q *queryEntry) Drop() {
	q.qs.Close()
	q.table.ReturnBorrow(q.machine)
}

// Surface is the flat, handle-based boundary. Every method returns a Status;
// on any status other than StatusSuccess every other output is its zero
// value and LastError describes the failure.
//
// Each handle, text buffer and array a method returns is owned by the
// caller and must be released exactly once with its drop method. Releasing
// twice, or passing a handle of the wrong kind, fails with StatusError.
type Surface struct {
	opts     Options
	log      *zap.Logger
	ctx      context.Context
	cancel   context.CancelFunc
	table    *resource.UnifiedTable
	builders *resource.Typed[*machine.Builder]
	machines *resource.Typed[*machine.Machine]
	queries  *resource.Typed[*queryEntry]
	leaves   *resource.Typed[*machine.LeafAnswer]
	bindings *resource.Typed[*machine.Bindings]
	terms    *resource.Typed[term.Term]
	texts    *resource.Typed[string]
	arrays   *resource.Typed[[]Handle]

	errMu   sync.Mutex
	lastErr error
}

// New creates a surface with an empty handle table.
func New(opts Options) *Surface {
	log := opts.Logger
	if log == nil {
		log = Logger()
	}
	table := resource.NewTable()
	s := &Surface{
		opts:     opts,
		log:      log,
		table:    table,
		builders: resource.NewTyped[*machine.Builder](table, typeBuilder),
		machines: resource.NewTyped[*machine.Machine](table, typeMachine),
		queries:  resource.NewTyped[*queryEntry](table, typeQuery),
		leaves:   resource.NewTyped[*machine.LeafAnswer](table, typeLeaf),
		bindings: resource.NewTyped[*machine.Bindings](table, typeBindings),
		terms:    resource.NewTyped[term.Term](table, typeTerm),
		texts:    resource.NewTyped[string](table, typeText),
		arrays:   resource.NewTyped[[]Handle](table, typeArray),
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	table.Subscribe(&eventLogger{log: log})
	return s
}

// LastError returns the error behind the most recent non-success status.
func (s *Surface) LastError() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.lastErr
}

// Reject records err as the last error and returns StatusError. Layers that
// validate input before reaching the surface report through it.
func (s *Surface) Reject(err error) Status {
	return s.fail(err)
}

// LastErrorText returns the last error message as a text buffer, or the zero
// handle when no call has failed.
func (s *Surface) LastErrorText() (h Handle, st Status) {
	defer s.guard(&st)
	err := s.LastError()
	if err == nil {
		return 0, StatusSuccess
	}
	return s.texts.Insert(err.Error()), StatusSuccess
}

func (s *Surface) fail(err error) Status {
	s.errMu.Lock()
	s.lastErr = err
	s.errMu.Unlock()
	return StatusError
}

// guard turns a panic in a surface method into StatusPanic.
func (s *Surface) guard(st *Status) {
	if r := recover(); r != nil {
		s.log.Error("boundary panic", zap.Any("panic", r))
		s.errMu.Lock()
		s.lastErr = errors.Fault(errors.PhaseBoundary, r)
		s.errMu.Unlock()
		*st = StatusPanic
	}
}

func (s *Surface) invalid(kind uint32, h Handle) Status {
	return s.fail(errors.InvalidHandle(errors.PhaseBoundary, typeNames[kind], uint32(h)))
}

// Outstanding returns the number of live resources per kind. Kinds with no
// live resources are omitted.
func (s *Surface) Outstanding() map[string]int {
	out := make(map[string]int)
	for typeID, n := range s.table.Counts() {
		if n > 0 {
			out[typeNames[typeID]] = n
		}
	}
	return out
}

// Close releases every live resource. Query states are closed before the
// machines they borrow.
func (s *Surface) Close() error {
	s.cancel()
	var machines []*machine.Machine
	s.machines.Each(func(_ Handle, m *machine.Machine) bool {
		machines = append(machines, m)
		return true
	})
	s.table.Clear()
	for _, m := range machines {
		_ = m.Close()
	}
	return s.table.Close()
}

// MachineBuilderNew returns a builder configured from the surface options.
func (s *Surface) MachineBuilderNew() (h Handle, st Status) {
	defer s.guard(&st)
	b := machine.NewBuilder(
		machine.WithConfig(s.opts.Config),
		machine.WithLogger(s.log),
		machine.WithOutput(s.opts.Output),
	)
	h = s.builders.Insert(b)
	if h == 0 {
		return 0, s.fail(errors.Closed(errors.PhaseBoundary, "surface"))
	}
	return h, StatusSuccess
}

// MachineBuilderDrop releases a builder that was never built.
func (s *Surface) MachineBuilderDrop(b Handle) (st Status) {
	defer s.guard(&st)
	builder, ok := s.builders.Remove(b)
	if !ok {
		return s.invalid(typeBuilder, b)
	}
	_ = builder.Discard()
	return StatusSuccess
}

// MachineBuilderBuild consumes the builder handle and returns a machine.
// The builder handle is released even when the build fails.
func (s *Surface) MachineBuilderBuild(b Handle) (h Handle, st Status) {
	defer s.guard(&st)
	builder, ok := s.builders.Remove(b)
	if !ok {
		return 0, s.invalid(typeBuilder, b)
	}
	m, err := builder.Build()
	if err != nil {
		return 0, s.fail(err)
	}
	return s.machines.Insert(m), StatusSuccess
}

// MachineDrop releases a machine. It fails while a query state derived from
// the machine is live.
func (s *Surface) MachineDrop(m Handle) (st Status) {
	defer s.guard(&st)
	if _, ok := s.machines.Get(m); !ok {
		return s.invalid(typeMachine, m)
	}
	if s.table.Borrowed(m) {
		return s.fail(errors.New(errors.PhaseRelease, errors.KindOutstandingBorrow).
			Resource(typeNames[typeMachine]).
			Handle(uint32(m)).
			Detail("a query state is live").
			Build())
	}
	mach, ok := s.machines.Remove(m)
	if !ok {
		return s.invalid(typeMachine, m)
	}
	if err := mach.Close(); err != nil {
		return s.fail(err)
	}
	return StatusSuccess
}

// MachineConsultModuleString adds program to module.
func (s *Surface) MachineConsultModuleString(m Handle, module, program string) (st Status) {
	defer s.guard(&st)
	mach, ok := s.machines.Get(m)
	if !ok {
		return s.invalid(typeMachine, m)
	}
	if err := mach.Consult(module, program); err != nil {
		return s.fail(err)
	}
	return StatusSuccess
}

// MachineRunQuery starts query on the machine. The machine handle is
// borrowed until the returned query state is dropped.
func (s *Surface) MachineRunQuery(m Handle, query string) (h Handle, st Status) {
	defer s.guard(&st)
	mach, ok := s.machines.Get(m)
	if !ok {
		return 0, s.invalid(typeMachine, m)
	}
	qs, err := mach.RunQuery(s.ctx, query)
	if err != nil {
		return 0, s.fail(err)
	}
	if !s.table.Borrow(m) {
		qs.Close()
		return 0, s.invalid(typeMachine, m)
	}
	entry := &queryEntry{qs: qs, machine: m, table: s.table}
	if h = s.queries.Insert(entry); h == 0 {
		entry.Drop()
		return 0, s.fail(errors.Closed(errors.PhaseBoundary, "surface"))
	}
	return h, StatusSuccess
}

// QueryStateDrop abandons the query and returns the machine borrow.
func (s *Surface) QueryStateDrop(q Handle) (st Status) {
	defer s.guard(&st)
	if _, ok := s.queries.Remove(q); !ok {
		return s.invalid(typeQuery, q)
	}
	return StatusSuccess
}

// QueryStateNextAnswer advances the query. On exhaustion it succeeds and
// returns the zero handle.
func (s *Surface) QueryStateNextAnswer(q Handle) (h Handle, st Status) {
	defer s.guard(&st)
	entry, ok := s.queries.Get(q)
	if !ok {
		return 0, s.invalid(typeQuery, q)
	}
	leaf, ok := entry.qs.Next()
	if !ok {
		return 0, StatusSuccess
	}
	return s.leaves.Insert(leaf), StatusSuccess
}

// LeafAnswerDrop releases a leaf answer.
func (s *Surface) LeafAnswerDrop(l Handle) (st Status) {
	defer s.guard(&st)
	if _, ok := s.leaves.Remove(l); !ok {
		return s.invalid(typeLeaf, l)
	}
	return StatusSuccess
}

// LeafAnswerKind classifies a leaf answer.
func (s *Surface) LeafAnswerKind(l Handle) (k machine.LeafKind, st Status) {
	defer s.guard(&st)
	leaf, ok := s.leaves.Get(l)
	if !ok {
		return 0, s.invalid(typeLeaf, l)
	}
	return leaf.Kind(), StatusSuccess
}

// LeafAnswerUnwrapException returns the exception term of an Exception
// leaf as a new term handle.
func (s *Surface) LeafAnswerUnwrapException(l Handle) (h Handle, st Status) {
	defer s.guard(&st)
	leaf, ok := s.leaves.Get(l)
	if !ok {
		return 0, s.invalid(typeLeaf, l)
	}
	t, err := leaf.Exception()
	if err != nil {
		return 0, s.fail(err)
	}
	return s.terms.Insert(t), StatusSuccess
}

// LeafAnswerUnwrapBindings returns the bindings of an Answer leaf as a new
// bindings handle.
func (s *Surface) LeafAnswerUnwrapBindings(l Handle) (h Handle, st Status) {
	defer s.guard(&st)
	leaf, ok := s.leaves.Get(l)
	if !ok {
		return 0, s.invalid(typeLeaf, l)
	}
	b, err := leaf.Bindings()
	if err != nil {
		return 0, s.fail(err)
	}
	return s.bindings.Insert(b), StatusSuccess
}

// BindingsDrop releases a bindings handle.
func (s *Surface) BindingsDrop(b Handle) (st Status) {
	defer s.guard(&st)
	if _, ok := s.bindings.Remove(b); !ok {
		return s.invalid(typeBindings, b)
	}
	return StatusSuccess
}

// BindingsGet returns the term bound to variable as a new term handle.
func (s *Surface) BindingsGet(b Handle, variable string) (h Handle, st Status) {
	defer s.guard(&st)
	bindings, ok := s.bindings.Get(b)
	if !ok {
		return 0, s.invalid(typeBindings, b)
	}
	t, err := bindings.Get(variable)
	if err != nil {
		return 0, s.fail(err)
	}
	return s.terms.Insert(t), StatusSuccess
}
