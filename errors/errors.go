package errors

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseBuild    Phase = "build"    // builder consumption
	PhaseConsult  Phase = "consult"  // loading clauses into a module
	PhaseQuery    Phase = "query"    // starting or stepping a query
	PhaseAnswer   Phase = "answer"   // leaf answer and bindings access
	PhaseDecode   Phase = "decode"   // term unwrapping
	PhaseRelease  Phase = "release"  // handle release
	PhaseBoundary Phase = "boundary" // flat surface entry points
	PhaseConfig   Phase = "config"   // configuration loading
	PhaseEngine   Phase = "engine"   // inside the engine
)

// Kind categorizes the error
type Kind string

const (
	KindTypeMismatch      Kind = "type_mismatch"
	KindNotFound          Kind = "not_found"
	KindInvalidHandle     Kind = "invalid_handle"
	KindConsumed          Kind = "consumed"
	KindBusy              Kind = "busy"
	KindClosed            Kind = "closed"
	KindInvalidUTF8       Kind = "invalid_utf8"
	KindInvalidInput      Kind = "invalid_input"
	KindSyntax            Kind = "syntax"
	KindEngineFault       Kind = "engine_fault"
	KindOutstandingBorrow Kind = "outstanding_borrow"
	KindUnsupported       Kind = "unsupported"
	KindIO                Kind = "io"
)

// Error is the structured error type used throughout the module
type Error struct {
	Value    any
	Cause    error
	Phase    Phase
	Kind     Kind
	Resource string
	Detail   string
	Path     []string
	Handle   uint32
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.Resource != "" {
		b.WriteString(": ")
		b.WriteString(e.Resource)
		if e.Handle != 0 {
			fmt.Fprintf(&b, " handle %#x", e.Handle)
		}
	}

	if e.Detail != "" {
		if e.Resource != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the term path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Resource sets the resource kind name
func (b *Builder) Resource(name string) *Builder {
	b.err.Resource = name
	return b
}

// Handle sets the offending handle
func (b *Builder) Handle(h uint32) *Builder {
	b.err.Handle = h
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Sentinels for errors.Is checks.
var (
	ErrBuilderConsumed = &Error{Phase: PhaseBuild, Kind: KindConsumed}
	ErrMachineBusy     = &Error{Phase: PhaseQuery, Kind: KindBusy}
	ErrConsultBusy     = &Error{Phase: PhaseConsult, Kind: KindBusy}
	ErrMachineClosed   = &Error{Phase: PhaseQuery, Kind: KindClosed}
	ErrNoBindings      = &Error{Phase: PhaseAnswer, Kind: KindTypeMismatch}
	ErrUnboundName     = &Error{Phase: PhaseAnswer, Kind: KindNotFound}
	ErrTermMismatch    = &Error{Phase: PhaseDecode, Kind: KindTypeMismatch}
	ErrInvalidHandle   = &Error{Phase: PhaseBoundary, Kind: KindInvalidHandle}
)

// Convenience constructors for common error patterns

// TypeMismatch creates a type mismatch error
func TypeMismatch(phase Phase, path []string, want, got string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindTypeMismatch,
		Path:   path,
		Detail: fmt.Sprintf("expected %s, got %s", want, got),
	}
}

// InvalidUTF8 creates an invalid UTF-8 error
func InvalidUTF8(phase Phase, path []string, data []byte) *Error {
	preview := data
	if len(preview) > 32 {
		preview = preview[:32]
	}
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidUTF8,
		Path:   path,
		Detail: fmt.Sprintf("invalid UTF-8 sequence: %x", preview),
	}
}

// CheckUTF8 returns an InvalidUTF8 error when s is not valid UTF-8.
func CheckUTF8(phase Phase, name, s string) error {
	if utf8.ValidString(s) {
		return nil
	}
	return InvalidUTF8(phase, []string{name}, []byte(s))
}

// InvalidHandle creates an error for a stale, foreign or mistyped handle
func InvalidHandle(phase Phase, resource string, h uint32) *Error {
	return &Error{
		Phase:    phase,
		Kind:     KindInvalidHandle,
		Resource: resource,
		Handle:   h,
		Detail:   "handle is not live or names another resource kind",
	}
}

// NotFound creates a lookup failure error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Path:   []string{name},
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// Busy creates an exclusivity violation error
func Busy(phase Phase, resource, detail string) *Error {
	return &Error{
		Phase:    phase,
		Kind:     KindBusy,
		Resource: resource,
		Detail:   detail,
	}
}

// Consumed creates an error for use of a consumed one-shot value
func Consumed(phase Phase, resource string) *Error {
	return &Error{
		Phase:    phase,
		Kind:     KindConsumed,
		Resource: resource,
		Detail:   "already consumed",
	}
}

// Closed creates an error for use of a released value
func Closed(phase Phase, resource string) *Error {
	return &Error{
		Phase:    phase,
		Kind:     KindClosed,
		Resource: resource,
		Detail:   "already closed",
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what + " not supported",
	}
}

// Fault creates an engine fault error from a recovered panic value
func Fault(phase Phase, recovered any) *Error {
	e := &Error{
		Phase:  phase,
		Kind:   KindEngineFault,
		Value:  recovered,
		Detail: fmt.Sprint(recovered),
	}
	if err, ok := recovered.(error); ok {
		e.Cause = err
	}
	return e
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// Config wraps a configuration loading failure
func Config(detail string, cause error) *Error {
	return Wrap(PhaseConfig, KindIO, cause, detail)
}
