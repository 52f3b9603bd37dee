package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseLoad   Phase = "load"   // backend library loading
	PhaseParse  Phase = "parse"  // IR parsing
	PhaseEngine Phase = "engine" // engine creation
	PhaseLookup Phase = "lookup" // function resolution
	PhaseModule Phase = "module" // module adoption/removal
	PhaseExec   Phase = "exec"   // function invocation
)

// Kind categorizes the error
type Kind string

const (
	KindJITNotEnabled    Kind = "jit_not_enabled"
	KindFunctionNotFound Kind = "function_not_found"
	KindModuleNotOwned   Kind = "module_not_owned"
	KindIncorrectOwner   Kind = "incorrect_module_owner"
	KindAlreadyOwned     Kind = "already_owned"
	KindBackend          Kind = "backend"
	KindNotFound         Kind = "not_found"
	KindInvalidInput     Kind = "invalid_input"
)

// Error is the structured error type used throughout the library
type Error struct {
	Cause  error
	Phase  Phase
	Kind   Kind
	Name   string // function or module name, when one is involved
	Detail string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Name != "" {
		b.WriteByte(' ')
		b.WriteString(fmt.Sprintf("%q", e.Name))
	}

	if e.Detail != "" {
		b.WriteString(": ")
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

// Is reports whether target matches this error. Two Errors match when
// their Phase and Kind agree, so sentinel comparisons like
// errors.Is(err, errors.FunctionNotFound("")) work regardless of the
// name and detail carried.
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

// Name sets the function or module name involved
func (b *Builder) Name(name string) *Builder {
	b.err.Name = name
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

// Convenience constructors for the error families callers match on

// JITNotEnabled reports a function lookup on an engine constructed
// without JIT capability.
func JITNotEnabled() *Error {
	return &Error{
		Phase:  PhaseLookup,
		Kind:   KindJITNotEnabled,
		Detail: "execution engine does not have JIT functionality enabled",
	}
}

// FunctionNotFound reports a function name the engine cannot resolve.
func FunctionNotFound(name string) *Error {
	return &Error{
		Phase:  PhaseLookup,
		Kind:   KindFunctionNotFound,
		Name:   name,
		Detail: "function not found in execution engine",
	}
}

// ModuleNotOwned reports a removal attempt on a module no engine owns.
func ModuleNotOwned() *Error {
	return &Error{
		Phase:  PhaseModule,
		Kind:   KindModuleNotOwned,
		Detail: "module is not owned by an execution engine",
	}
}

// IncorrectModuleOwner reports a removal attempt by an engine that is
// not the module's owner.
func IncorrectModuleOwner() *Error {
	return &Error{
		Phase:  PhaseModule,
		Kind:   KindIncorrectOwner,
		Detail: "module is not owned by this execution engine",
	}
}

// AlreadyOwned reports an adoption attempt on a module some engine
// already owns.
func AlreadyOwned() *Error {
	return &Error{
		Phase:  PhaseModule,
		Kind:   KindAlreadyOwned,
		Detail: "module is already owned by an execution engine",
	}
}

// Backend wraps an opaque backend diagnostic string. The text is not
// parsed, only carried.
func Backend(phase Phase, diag string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindBackend,
		Detail: diag,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Name:   name,
		Detail: fmt.Sprintf("%s not found", what),
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

// Load creates a backend library loading error
func Load(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindBackend,
		Detail: detail,
		Cause:  cause,
	}
}

// ParseFailed creates an IR parsing error carrying the backend diagnostic
func ParseFailed(name, diag string) *Error {
	return &Error{
		Phase:  PhaseParse,
		Kind:   KindBackend,
		Name:   name,
		Detail: diag,
	}
}
