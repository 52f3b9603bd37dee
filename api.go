package llvmruntime

// Ref types are opaque, address-stable handles to backend-owned state.
// A ref is never zero for a live resource; equality is pointer identity.
// The zero value means "no resource".

// ExecutionEngineRef is a handle to a native execution engine.
type ExecutionEngineRef uintptr

// ModuleRef is a handle to a native IR module.
type ModuleRef uintptr

// ValueRef is a handle to a native IR value (including functions).
type ValueRef uintptr

// GenericValueRef is a handle to a native generic value used by the
// interpreter and the JIT invocation bridge.
type GenericValueRef uintptr

// TargetDataRef is a handle to a native target data-layout descriptor.
type TargetDataRef uintptr

// ContextRef is a handle to a native IR context.
type ContextRef uintptr

// TypeRef is a handle to a native IR type.
type TypeRef uintptr

// IsNil reports whether the ref holds no resource.
func (r ExecutionEngineRef) IsNil() bool { return r == 0 }

// IsNil reports whether the ref holds no resource.
func (r ModuleRef) IsNil() bool { return r == 0 }

// IsNil reports whether the ref holds no resource.
func (r ValueRef) IsNil() bool { return r == 0 }

// IsNil reports whether the ref holds no resource.
func (r GenericValueRef) IsNil() bool { return r == 0 }

// IsNil reports whether the ref holds no resource.
func (r TargetDataRef) IsNil() bool { return r == 0 }

// IsNil reports whether the ref holds no resource.
func (r ContextRef) IsNil() bool { return r == 0 }

// IsNil reports whether the ref holds no resource.
func (r TypeRef) IsNil() bool { return r == 0 }

// OptLevel selects the code generation optimization level for JIT
// engine creation. Values match the backend's numbering.
type OptLevel uint

const (
	OptNone       OptLevel = 0
	OptLess       OptLevel = 1
	OptDefault    OptLevel = 2
	OptAggressive OptLevel = 3
)

// EngineAPI is the execution-engine slice of the native boundary.
// All calls are blocking native calls with no cancellation.
type EngineAPI interface {
	// LinkInMCJIT registers the MCJIT execution strategy with the
	// backend. Process-wide and idempotent.
	LinkInMCJIT()

	// LinkInInterpreter registers the interpreter execution strategy
	// with the backend. Process-wide and idempotent.
	LinkInInterpreter()

	// CreateJITCompilerForModule creates a JIT engine seeded with mod.
	// On failure ok is false and diag carries the backend diagnostic.
	// On success the engine takes ownership of mod at the native layer.
	CreateJITCompilerForModule(mod ModuleRef, opt OptLevel) (ee ExecutionEngineRef, diag string, ok bool)

	// CreateInterpreterForModule creates an interpreter engine seeded
	// with mod.
	CreateInterpreterForModule(mod ModuleRef) (ee ExecutionEngineRef, diag string, ok bool)

	// DisposeExecutionEngine frees the engine and everything it owns,
	// including adopted modules and the target data descriptor.
	DisposeExecutionEngine(ee ExecutionEngineRef)

	// AddModule registers mod with the engine. Never fails at the
	// native layer.
	AddModule(ee ExecutionEngineRef, mod ModuleRef)

	// RemoveModule detaches mod from the engine. On success it returns
	// the detached module ref, which replaces the caller's. On failure
	// ok is false and diag carries the backend diagnostic; the module
	// stays with the engine.
	RemoveModule(ee ExecutionEngineRef, mod ModuleRef) (detached ModuleRef, diag string, ok bool)

	// FindFunction resolves a function descriptor by name. ok is false
	// when the engine knows no such function.
	FindFunction(ee ExecutionEngineRef, name string) (fn ValueRef, ok bool)

	// GetFunctionAddress resolves the machine-code address of a
	// compiled function. Zero means not found, but on some backend
	// versions the call can crash outright for unknown names, so
	// callers probe with FindFunction first.
	GetFunctionAddress(ee ExecutionEngineRef, name string) uint64

	// AddGlobalMapping binds a symbolic value to a raw address so
	// JIT-compiled code calling that symbol resolves to addr.
	AddGlobalMapping(ee ExecutionEngineRef, value ValueRef, addr uintptr)

	// FreeMachineCodeForFunction releases compiled machine code for one
	// function without touching the engine.
	FreeMachineCodeForFunction(ee ExecutionEngineRef, fn ValueRef)

	// RunStaticConstructors runs static initializers for all modules
	// owned by the engine.
	RunStaticConstructors(ee ExecutionEngineRef)

	// RunStaticDestructors runs static finalizers for all modules owned
	// by the engine.
	RunStaticDestructors(ee ExecutionEngineRef)

	// RunFunction invokes fn with the given generic arguments and
	// returns an owned generic result. Misuse is undefined behavior at
	// the native layer; there is no error path.
	RunFunction(ee ExecutionEngineRef, fn ValueRef, args []GenericValueRef) GenericValueRef

	// RunFunctionAsMain invokes fn with argc/argv/envp conventions and
	// returns the process-style exit code.
	RunFunctionAsMain(ee ExecutionEngineRef, fn ValueRef, argv []string, envp []string) int

	// GetExecutionEngineTargetData returns the engine's target data
	// descriptor. The descriptor is owned by the engine and dies with it.
	GetExecutionEngineTargetData(ee ExecutionEngineRef) TargetDataRef
}

// GenericValueAPI is the generic-value slice of the native boundary.
type GenericValueAPI interface {
	CreateGenericValueOfInt(t TypeRef, n uint64, signed bool) GenericValueRef
	CreateGenericValueOfFloat(t TypeRef, n float64) GenericValueRef
	GenericValueIntWidth(gv GenericValueRef) uint32
	GenericValueToInt(gv GenericValueRef, signed bool) uint64
	GenericValueToFloat(t TypeRef, gv GenericValueRef) float64
	DisposeGenericValue(gv GenericValueRef)
}

// TargetDataAPI is the data-layout slice of the native boundary.
type TargetDataAPI interface {
	PointerSize(td TargetDataRef) uint32
	CopyStringRepOfTargetData(td TargetDataRef) string
	DisposeTargetData(td TargetDataRef)
}

// ModuleAPI is the IR slice of the native boundary. It is the minimum
// surface the runtime facade and the CLI need: parsing IR, naming and
// walking functions, and the primitive types generic values are built
// from. IR construction beyond this is out of scope.
type ModuleAPI interface {
	ContextCreate() ContextRef
	ContextDispose(ctx ContextRef)

	// ParseIRInContext parses textual or bitcode IR into a module. On
	// failure ok is false and diag carries the backend diagnostic.
	ParseIRInContext(ctx ContextRef, data []byte, name string) (mod ModuleRef, diag string, ok bool)

	DisposeModule(mod ModuleRef)
	GetNamedFunction(mod ModuleRef, name string) ValueRef
	FirstFunction(mod ModuleRef) ValueRef
	NextFunction(fn ValueRef) ValueRef
	ValueName(v ValueRef) string
	CountParams(fn ValueRef) uint32

	Int32TypeInContext(ctx ContextRef) TypeRef
	Int64TypeInContext(ctx ContextRef) TypeRef
	DoubleTypeInContext(ctx ContextRef) TypeRef
}

// SymbolBinder turns a resolved machine-code address into a callable Go
// function. fnPtr must be a non-nil pointer to a function variable; on
// success the variable is set to a func that calls straight into addr.
type SymbolBinder interface {
	BindFunction(fnPtr any, addr uintptr) error
}

// API is the full native boundary consumed by this library. The native
// package implements it over libLLVM via purego; the nativetest package
// implements it in memory for tests.
type API interface {
	EngineAPI
	GenericValueAPI
	TargetDataAPI
	ModuleAPI
	SymbolBinder
}
