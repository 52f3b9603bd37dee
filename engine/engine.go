package engine

import (
	"sync/atomic"

	llvmruntime "github.com/wippyai/llvm-runtime"
	"github.com/wippyai/llvm-runtime/errors"
	"github.com/wippyai/llvm-runtime/values"
)

// LinkInMCJIT registers the MCJIT execution strategy with the backend.
// Process-wide and idempotent; must run before a JIT engine is created.
func LinkInMCJIT(api llvmruntime.EngineAPI) {
	api.LinkInMCJIT()
}

// LinkInInterpreter registers the interpreter execution strategy with
// the backend. Process-wide and idempotent.
func LinkInInterpreter(api llvmruntime.EngineAPI) {
	api.LinkInInterpreter()
}

// ExecutionEngine is a clonable view of one native execution engine.
//
// Cloning is a pointer copy plus an atomic increment, so copies are
// cheap to hand around. The native engine is disposed when the last
// clone and the last Symbol resolved from it are closed.
type ExecutionEngine struct {
	handle     *SharedHandle
	targetData *values.TargetData
	jitMode    bool
	closed     atomic.Bool
}

// New wraps a raw engine handle produced by a backend creation call.
// The jitMode flag is fixed for the engine's entire lifetime and all
// clones. A nil ref is a programming error in the collaborator layer
// and panics.
func New(api llvmruntime.API, ref llvmruntime.ExecutionEngineRef, jitMode bool) *ExecutionEngine {
	if ref.IsNil() {
		panic("engine: nil execution engine ref")
	}

	td := values.NewTargetData(api, api.GetExecutionEngineTargetData(ref))

	return &ExecutionEngine{
		handle:     newSharedHandle(api, ref),
		targetData: td,
		jitMode:    jitMode,
	}
}

// Clone returns a new view sharing the same native engine. The clone
// must be closed independently.
func (e *ExecutionEngine) Clone() *ExecutionEngine {
	return &ExecutionEngine{
		handle:     e.handle.Retain(),
		targetData: e.targetData,
		jitMode:    e.jitMode,
	}
}

// JITMode reports whether the engine was constructed with JIT
// capability.
func (e *ExecutionEngine) JITMode() bool {
	return e.jitMode
}

// Handle returns the shared engine handle. Mostly useful for identity
// checks and tests.
func (e *ExecutionEngine) Handle() *SharedHandle {
	return e.handle
}

// Close drops this view's claim on the native engine. The cached
// target data descriptor is forgotten, never independently disposed:
// engine disposal frees it transitively. Safe to call more than once
// on the same view.
func (e *ExecutionEngine) Close() {
	if !e.closed.CompareAndSwap(false, true) {
		return
	}
	e.targetData.Forget()
	e.handle.Release()
}

// AddGlobalMapping binds a symbolic value to a raw address, typically
// an externally compiled function's entry point, so JIT-compiled code
// calling that symbol resolves to addr.
func (e *ExecutionEngine) AddGlobalMapping(value values.AnyValue, addr uintptr) {
	e.handle.api.AddGlobalMapping(e.handle.ref, value.Raw(), addr)
}

// AddModule adopts a module into the engine. Fails if any engine
// already owns it.
//
// The native registration happens before the ownership check and is
// not reverted on failure, matching backend behavior: a rejected
// module is still registered with this engine at the native layer.
// Callers treating adoption failure as fatal are unaffected; callers
// that continue using the module must be aware of the extra
// registration.
func (e *ExecutionEngine) AddModule(m *Module) error {
	e.handle.api.AddModule(e.handle.ref, m.ref)

	if m.owner != nil {
		return errors.AlreadyOwned()
	}

	m.owner = e.handle.Retain()
	debugf("engine %#x adopted module %q", uintptr(e.handle.ref), m.name)
	return nil
}

// RemoveModule detaches a module from the engine that owns it.
// Validation runs first: an unowned module fails with ModuleNotOwned,
// a module owned by a different engine fails with
// IncorrectModuleOwner. Identity is the underlying native handle, so
// all clones of one engine are interchangeable here.
//
// A backend-level removal failure is wrapped and returned with the
// ownership state untouched; the backend keeps such a module with the
// engine. On success the module's native ref is replaced with the
// detached handle and the ownership slot is cleared.
func (e *ExecutionEngine) RemoveModule(m *Module) error {
	switch {
	case m.owner == nil:
		return errors.ModuleNotOwned()
	case m.owner.Raw() != e.handle.Raw():
		return errors.IncorrectModuleOwner()
	}

	detached, diag, ok := e.handle.api.RemoveModule(e.handle.ref, m.ref)
	if !ok {
		return errors.Backend(errors.PhaseModule, diag)
	}

	m.ref = detached
	m.owner.Release()
	m.owner = nil
	debugf("engine %#x detached module %q", uintptr(e.handle.ref), m.name)
	return nil
}

// GetFunctionValue resolves a function descriptor by name through the
// engine. Requires JIT mode.
func (e *ExecutionEngine) GetFunctionValue(name string) (*values.FunctionValue, error) {
	if !e.jitMode {
		return nil, errors.JITNotEnabled()
	}

	ref, ok := e.handle.api.FindFunction(e.handle.ref, name)
	if !ok {
		return nil, errors.FunctionNotFound(name)
	}

	fn, ok := values.NewFunctionValue(ref)
	if !ok {
		return nil, errors.FunctionNotFound(name)
	}
	return fn, nil
}

// RunFunction invokes a function through the backend's generic-value
// bridge and returns the owned result.
//
// The caller asserts the function is safe to invoke with these
// arguments; there is no error path, and misuse is undefined behavior
// at the native layer.
func (e *ExecutionEngine) RunFunction(fn *values.FunctionValue, args []*values.GenericValue) *values.GenericValue {
	refs := make([]llvmruntime.GenericValueRef, len(args))
	for i, a := range args {
		refs[i] = a.Raw()
	}

	result := e.handle.api.RunFunction(e.handle.ref, fn.Raw(), refs)
	return values.WrapGenericValue(e.handle.api, result)
}

// RunFunctionAsMain invokes a function with argc/argv conventions and
// returns its exit code.
//
// The environment vector is always empty; env passthrough is not
// implemented.
func (e *ExecutionEngine) RunFunctionAsMain(fn *values.FunctionValue, args []string) int {
	return e.handle.api.RunFunctionAsMain(e.handle.ref, fn.Raw(), args, nil)
}

// FreeMachineCode releases compiled machine code for one function
// without affecting the engine. Any Symbol previously resolved for
// that function dangles afterwards; nothing in the type system guards
// against calling it.
func (e *ExecutionEngine) FreeMachineCode(fn *values.FunctionValue) {
	e.handle.api.FreeMachineCodeForFunction(e.handle.ref, fn.Raw())
}

// RunStaticConstructors runs static initializers for all modules owned
// by the engine.
func (e *ExecutionEngine) RunStaticConstructors() {
	e.handle.api.RunStaticConstructors(e.handle.ref)
}

// RunStaticDestructors runs static finalizers for all modules owned by
// the engine.
func (e *ExecutionEngine) RunStaticDestructors() {
	e.handle.api.RunStaticDestructors(e.handle.ref)
}

// TargetData returns the engine's cached target data descriptor. It
// exists for the whole life of this view; asking a closed view is a
// programming error and panics.
func (e *ExecutionEngine) TargetData() *values.TargetData {
	if e.closed.Load() {
		panic("engine: TargetData called on closed engine")
	}
	return e.targetData
}
