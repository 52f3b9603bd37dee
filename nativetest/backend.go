package nativetest

import (
	"fmt"
	"reflect"
	"sync"

	llvmruntime "github.com/wippyai/llvm-runtime"
)

type fakeFunc struct {
	name   string
	impl   reflect.Value
	addr   uint64
	params uint32
}

type fakeModule struct {
	name     string
	funcs    []*fakeFunc
	disposed bool
}

type fakeEngine struct {
	modules    map[llvmruntime.ModuleRef]bool
	targetData llvmruntime.TargetDataRef
	disposed   bool
}

type fakeGeneric struct {
	typ  llvmruntime.TypeRef
	ival uint64
	fval float64
}

type typeInfo struct {
	width   uint32
	isFloat bool
}

// Backend is a scriptable in-memory llvmruntime.API.
//
// Failure injection fields may be set between calls. All methods are
// mutex-guarded so tests can exercise concurrent clone/close paths.
type Backend struct {
	mu sync.Mutex

	next     uintptr
	nextAddr uint64

	contexts map[llvmruntime.ContextRef]bool
	modules  map[llvmruntime.ModuleRef]*fakeModule
	engines  map[llvmruntime.ExecutionEngineRef]*fakeEngine
	values   map[llvmruntime.ValueRef]*fakeFunc
	generics map[llvmruntime.GenericValueRef]*fakeGeneric
	types    map[llvmruntime.TypeRef]typeInfo
	byAddr   map[uint64]*fakeFunc

	engineDisposals     int
	targetDataDisposals int
	linkedMCJIT         int
	linkedInterp        int

	globalMappings map[llvmruntime.ValueRef]uintptr
	freedCode      map[llvmruntime.ValueRef]int
	ctorRuns       int
	dtorRuns       int

	lastMainArgv []string
	lastMainEnvp []string

	// FailEngineDiag, when non-empty, makes engine creation fail with
	// that diagnostic.
	FailEngineDiag string

	// FailRemoveDiag, when non-empty, makes RemoveModule fail with that
	// diagnostic.
	FailRemoveDiag string

	// FailParseDiag, when non-empty, makes ParseIRInContext fail with
	// that diagnostic.
	FailParseDiag string

	// CrashOnUnknownAddress makes GetFunctionAddress panic for unknown
	// names, reproducing the backend versions that crash instead of
	// returning zero. The descriptor-probe workaround in the engine
	// layer must keep this from ever firing.
	CrashOnUnknownAddress bool
}

// New creates an empty backend.
func New() *Backend {
	return &Backend{
		next:           1,
		nextAddr:       0x1000,
		contexts:       make(map[llvmruntime.ContextRef]bool),
		modules:        make(map[llvmruntime.ModuleRef]*fakeModule),
		engines:        make(map[llvmruntime.ExecutionEngineRef]*fakeEngine),
		values:         make(map[llvmruntime.ValueRef]*fakeFunc),
		generics:       make(map[llvmruntime.GenericValueRef]*fakeGeneric),
		types:          make(map[llvmruntime.TypeRef]typeInfo),
		byAddr:         make(map[uint64]*fakeFunc),
		globalMappings: make(map[llvmruntime.ValueRef]uintptr),
		freedCode:      make(map[llvmruntime.ValueRef]int),
	}
}

func (b *Backend) alloc() uintptr {
	r := b.next
	b.next++
	return r
}

// NewModule registers an empty module and returns its ref.
func (b *Backend) NewModule(name string) llvmruntime.ModuleRef {
	b.mu.Lock()
	defer b.mu.Unlock()
	ref := llvmruntime.ModuleRef(b.alloc())
	b.modules[ref] = &fakeModule{name: name}
	return ref
}

// AddFunction registers impl as a function of mod and returns its
// descriptor ref. impl must be a func; its parameter count is what
// CountParams reports.
func (b *Backend) AddFunction(mod llvmruntime.ModuleRef, name string, impl any) llvmruntime.ValueRef {
	v := reflect.ValueOf(impl)
	if v.Kind() != reflect.Func {
		panic("nativetest: AddFunction impl must be a func")
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	m, ok := b.modules[mod]
	if !ok {
		panic("nativetest: AddFunction on unknown module")
	}

	addr := b.nextAddr
	b.nextAddr += 0x10
	fn := &fakeFunc{
		name:   name,
		impl:   v,
		addr:   addr,
		params: uint32(v.Type().NumIn()),
	}
	m.funcs = append(m.funcs, fn)
	ref := llvmruntime.ValueRef(b.alloc())
	b.values[ref] = fn
	b.byAddr[addr] = fn
	return ref
}

// EngineDisposals returns how many times any engine was disposed.
func (b *Backend) EngineDisposals() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.engineDisposals
}

// TargetDataDisposals returns how many times a target data descriptor
// was independently disposed.
func (b *Backend) TargetDataDisposals() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.targetDataDisposals
}

// LastMainEnvp returns the envp vector seen by the last
// RunFunctionAsMain call.
func (b *Backend) LastMainEnvp() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastMainEnvp
}

// LastMainArgv returns the argv vector seen by the last
// RunFunctionAsMain call.
func (b *Backend) LastMainArgv() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastMainArgv
}

// GlobalMapping returns the address mapped for value, if any.
func (b *Backend) GlobalMapping(v llvmruntime.ValueRef) (uintptr, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	addr, ok := b.globalMappings[v]
	return addr, ok
}

// FreedCodeCount returns how many times machine code was freed for fn.
func (b *Backend) FreedCodeCount(fn llvmruntime.ValueRef) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.freedCode[fn]
}

// CtorRuns returns how many times static constructors ran.
func (b *Backend) CtorRuns() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ctorRuns
}

// DtorRuns returns how many times static destructors ran.
func (b *Backend) DtorRuns() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dtorRuns
}

// EngineOwnsModule reports whether the native engine currently holds mod.
func (b *Backend) EngineOwnsModule(ee llvmruntime.ExecutionEngineRef, mod llvmruntime.ModuleRef) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.engines[ee]
	return ok && e.modules[mod]
}

// LinkedMCJIT reports how many times LinkInMCJIT was called.
func (b *Backend) LinkedMCJIT() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.linkedMCJIT
}

func (b *Backend) LinkInMCJIT() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.linkedMCJIT++
}

func (b *Backend) LinkInInterpreter() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.linkedInterp++
}

func (b *Backend) createEngine(mod llvmruntime.ModuleRef) (llvmruntime.ExecutionEngineRef, string, bool) {
	if b.FailEngineDiag != "" {
		return 0, b.FailEngineDiag, false
	}
	if _, ok := b.modules[mod]; !ok {
		return 0, "unknown module", false
	}
	td := llvmruntime.TargetDataRef(b.alloc())
	ee := llvmruntime.ExecutionEngineRef(b.alloc())
	b.engines[ee] = &fakeEngine{
		modules:    map[llvmruntime.ModuleRef]bool{mod: true},
		targetData: td,
	}
	return ee, "", true
}

func (b *Backend) CreateJITCompilerForModule(mod llvmruntime.ModuleRef, opt llvmruntime.OptLevel) (llvmruntime.ExecutionEngineRef, string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.createEngine(mod)
}

func (b *Backend) CreateInterpreterForModule(mod llvmruntime.ModuleRef) (llvmruntime.ExecutionEngineRef, string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.createEngine(mod)
}

func (b *Backend) DisposeExecutionEngine(ee llvmruntime.ExecutionEngineRef) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.engines[ee]
	if !ok {
		panic("nativetest: dispose of unknown engine")
	}
	if e.disposed {
		panic("nativetest: double dispose of engine")
	}
	e.disposed = true
	b.engineDisposals++
	for mod := range e.modules {
		if m, ok := b.modules[mod]; ok {
			m.disposed = true
		}
	}
}

func (b *Backend) AddModule(ee llvmruntime.ExecutionEngineRef, mod llvmruntime.ModuleRef) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e := b.mustEngine(ee)
	e.modules[mod] = true
}

func (b *Backend) RemoveModule(ee llvmruntime.ExecutionEngineRef, mod llvmruntime.ModuleRef) (llvmruntime.ModuleRef, string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.FailRemoveDiag != "" {
		return 0, b.FailRemoveDiag, false
	}
	e := b.mustEngine(ee)
	if !e.modules[mod] {
		return 0, "module not registered with engine", false
	}
	delete(e.modules, mod)

	// The real backend hands back a fresh module handle on removal.
	old := b.modules[mod]
	detached := llvmruntime.ModuleRef(b.alloc())
	b.modules[detached] = &fakeModule{name: old.name, funcs: old.funcs}
	return detached, "", true
}

func (b *Backend) FindFunction(ee llvmruntime.ExecutionEngineRef, name string) (llvmruntime.ValueRef, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e := b.mustEngine(ee)
	for mod := range e.modules {
		for _, fn := range b.modules[mod].funcs {
			if fn.name == name {
				return b.refForFunc(fn), true
			}
		}
	}
	return 0, false
}

func (b *Backend) refForFunc(fn *fakeFunc) llvmruntime.ValueRef {
	for ref, f := range b.values {
		if f == fn {
			return ref
		}
	}
	ref := llvmruntime.ValueRef(b.alloc())
	b.values[ref] = fn
	return ref
}

func (b *Backend) GetFunctionAddress(ee llvmruntime.ExecutionEngineRef, name string) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	e := b.mustEngine(ee)
	for mod := range e.modules {
		for _, fn := range b.modules[mod].funcs {
			if fn.name == name {
				return fn.addr
			}
		}
	}
	if b.CrashOnUnknownAddress {
		panic(fmt.Sprintf("nativetest: backend crash on address lookup of unknown function %q", name))
	}
	return 0
}

func (b *Backend) AddGlobalMapping(ee llvmruntime.ExecutionEngineRef, v llvmruntime.ValueRef, addr uintptr) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.mustEngine(ee)
	b.globalMappings[v] = addr
}

func (b *Backend) FreeMachineCodeForFunction(ee llvmruntime.ExecutionEngineRef, fn llvmruntime.ValueRef) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.mustEngine(ee)
	b.freedCode[fn]++
}

func (b *Backend) RunStaticConstructors(ee llvmruntime.ExecutionEngineRef) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.mustEngine(ee)
	b.ctorRuns++
}

func (b *Backend) RunStaticDestructors(ee llvmruntime.ExecutionEngineRef) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.mustEngine(ee)
	b.dtorRuns++
}

func (b *Backend) RunFunction(ee llvmruntime.ExecutionEngineRef, fn llvmruntime.ValueRef, args []llvmruntime.GenericValueRef) llvmruntime.GenericValueRef {
	b.mu.Lock()
	f, ok := b.values[fn]
	if !ok {
		b.mu.Unlock()
		panic("nativetest: RunFunction on unknown function")
	}
	in := make([]reflect.Value, len(args))
	ft := f.impl.Type()
	for i, gref := range args {
		g, ok := b.generics[gref]
		if !ok {
			b.mu.Unlock()
			panic("nativetest: RunFunction with unknown generic value")
		}
		in[i] = genericToArg(ft.In(i), g)
	}
	b.mu.Unlock()

	// Invoke outside the lock; guest code may call back into the API.
	out := f.impl.Call(in)

	b.mu.Lock()
	defer b.mu.Unlock()
	ref := llvmruntime.GenericValueRef(b.alloc())
	b.generics[ref] = resultToGeneric(out)
	return ref
}

func genericToArg(t reflect.Type, g *fakeGeneric) reflect.Value {
	switch t.Kind() {
	case reflect.Float64, reflect.Float32:
		return reflect.ValueOf(g.fval).Convert(t)
	default:
		return reflect.ValueOf(g.ival).Convert(t)
	}
}

func resultToGeneric(out []reflect.Value) *fakeGeneric {
	if len(out) == 0 {
		return &fakeGeneric{}
	}
	v := out[0]
	switch v.Kind() {
	case reflect.Float32, reflect.Float64:
		return &fakeGeneric{fval: v.Float()}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return &fakeGeneric{ival: uint64(v.Int())}
	default:
		return &fakeGeneric{ival: v.Uint()}
	}
}

func (b *Backend) RunFunctionAsMain(ee llvmruntime.ExecutionEngineRef, fn llvmruntime.ValueRef, argv []string, envp []string) int {
	b.mu.Lock()
	f, ok := b.values[fn]
	b.lastMainArgv = append([]string(nil), argv...)
	b.lastMainEnvp = append([]string(nil), envp...)
	b.mu.Unlock()
	if !ok {
		panic("nativetest: RunFunctionAsMain on unknown function")
	}

	if impl, ok := f.impl.Interface().(func([]string) int); ok {
		return impl(argv)
	}
	if impl, ok := f.impl.Interface().(func() int); ok {
		return impl()
	}
	panic("nativetest: main impl must be func([]string) int or func() int")
}

func (b *Backend) GetExecutionEngineTargetData(ee llvmruntime.ExecutionEngineRef) llvmruntime.TargetDataRef {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.mustEngine(ee).targetData
}

func (b *Backend) mustEngine(ee llvmruntime.ExecutionEngineRef) *fakeEngine {
	e, ok := b.engines[ee]
	if !ok {
		panic("nativetest: unknown engine ref")
	}
	if e.disposed {
		panic("nativetest: use of disposed engine")
	}
	return e
}

func (b *Backend) CreateGenericValueOfInt(t llvmruntime.TypeRef, n uint64, signed bool) llvmruntime.GenericValueRef {
	b.mu.Lock()
	defer b.mu.Unlock()
	ref := llvmruntime.GenericValueRef(b.alloc())
	b.generics[ref] = &fakeGeneric{typ: t, ival: n}
	return ref
}

func (b *Backend) CreateGenericValueOfFloat(t llvmruntime.TypeRef, n float64) llvmruntime.GenericValueRef {
	b.mu.Lock()
	defer b.mu.Unlock()
	ref := llvmruntime.GenericValueRef(b.alloc())
	b.generics[ref] = &fakeGeneric{typ: t, fval: n}
	return ref
}

func (b *Backend) GenericValueIntWidth(gv llvmruntime.GenericValueRef) uint32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	g := b.generics[gv]
	if g == nil {
		return 0
	}
	if info, ok := b.types[g.typ]; ok {
		return info.width
	}
	return 64
}

func (b *Backend) GenericValueToInt(gv llvmruntime.GenericValueRef, signed bool) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if g := b.generics[gv]; g != nil {
		return g.ival
	}
	return 0
}

func (b *Backend) GenericValueToFloat(t llvmruntime.TypeRef, gv llvmruntime.GenericValueRef) float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if g := b.generics[gv]; g != nil {
		return g.fval
	}
	return 0
}

func (b *Backend) DisposeGenericValue(gv llvmruntime.GenericValueRef) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.generics[gv]; !ok {
		panic("nativetest: double dispose of generic value")
	}
	delete(b.generics, gv)
}

func (b *Backend) PointerSize(td llvmruntime.TargetDataRef) uint32 {
	return 8
}

func (b *Backend) CopyStringRepOfTargetData(td llvmruntime.TargetDataRef) string {
	return "e-m:e-p270:32:32-p271:32:32-p272:64:64-i64:64-f80:128-n8:16:32:64-S128"
}

func (b *Backend) DisposeTargetData(td llvmruntime.TargetDataRef) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.targetDataDisposals++
}

func (b *Backend) ContextCreate() llvmruntime.ContextRef {
	b.mu.Lock()
	defer b.mu.Unlock()
	ref := llvmruntime.ContextRef(b.alloc())
	b.contexts[ref] = true
	return ref
}

func (b *Backend) ContextDispose(ctx llvmruntime.ContextRef) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.contexts, ctx)
}

func (b *Backend) ParseIRInContext(ctx llvmruntime.ContextRef, data []byte, name string) (llvmruntime.ModuleRef, string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.FailParseDiag != "" {
		return 0, b.FailParseDiag, false
	}
	if len(data) == 0 {
		return 0, "empty input", false
	}
	ref := llvmruntime.ModuleRef(b.alloc())
	b.modules[ref] = &fakeModule{name: name}
	return ref, "", true
}

func (b *Backend) DisposeModule(mod llvmruntime.ModuleRef) {
	b.mu.Lock()
	defer b.mu.Unlock()
	m, ok := b.modules[mod]
	if !ok {
		panic("nativetest: dispose of unknown module")
	}
	if m.disposed {
		panic("nativetest: double dispose of module")
	}
	m.disposed = true
}

func (b *Backend) GetNamedFunction(mod llvmruntime.ModuleRef, name string) llvmruntime.ValueRef {
	b.mu.Lock()
	defer b.mu.Unlock()
	m, ok := b.modules[mod]
	if !ok {
		return 0
	}
	for _, fn := range m.funcs {
		if fn.name == name {
			return b.refForFunc(fn)
		}
	}
	return 0
}

func (b *Backend) FirstFunction(mod llvmruntime.ModuleRef) llvmruntime.ValueRef {
	b.mu.Lock()
	defer b.mu.Unlock()
	m, ok := b.modules[mod]
	if !ok || len(m.funcs) == 0 {
		return 0
	}
	return b.refForFunc(m.funcs[0])
}

func (b *Backend) NextFunction(fn llvmruntime.ValueRef) llvmruntime.ValueRef {
	b.mu.Lock()
	defer b.mu.Unlock()
	f, ok := b.values[fn]
	if !ok {
		return 0
	}
	for _, m := range b.modules {
		for i, mf := range m.funcs {
			if mf == f && i+1 < len(m.funcs) {
				return b.refForFunc(m.funcs[i+1])
			}
		}
	}
	return 0
}

func (b *Backend) ValueName(v llvmruntime.ValueRef) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if f, ok := b.values[v]; ok {
		return f.name
	}
	return ""
}

func (b *Backend) CountParams(fn llvmruntime.ValueRef) uint32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if f, ok := b.values[fn]; ok {
		return f.params
	}
	return 0
}

func (b *Backend) typeRef(width uint32, isFloat bool) llvmruntime.TypeRef {
	for ref, info := range b.types {
		if info.width == width && info.isFloat == isFloat {
			return ref
		}
	}
	ref := llvmruntime.TypeRef(b.alloc())
	b.types[ref] = typeInfo{width: width, isFloat: isFloat}
	return ref
}

func (b *Backend) Int32TypeInContext(ctx llvmruntime.ContextRef) llvmruntime.TypeRef {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.typeRef(32, false)
}

func (b *Backend) Int64TypeInContext(ctx llvmruntime.ContextRef) llvmruntime.TypeRef {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.typeRef(64, false)
}

func (b *Backend) DoubleTypeInContext(ctx llvmruntime.ContextRef) llvmruntime.TypeRef {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.typeRef(64, true)
}

// BindFunction assigns the registered Go function behind addr to
// *fnPtr. The declared signature must match the registered one.
func (b *Backend) BindFunction(fnPtr any, addr uintptr) error {
	v := reflect.ValueOf(fnPtr)
	if !v.IsValid() || v.Kind() != reflect.Ptr || v.Elem().Kind() != reflect.Func {
		return fmt.Errorf("nativetest: fnPtr must be a non-nil pointer to a function variable")
	}

	b.mu.Lock()
	f, ok := b.byAddr[uint64(addr)]
	b.mu.Unlock()
	if !ok {
		return fmt.Errorf("nativetest: no function at address %#x", addr)
	}
	if f.impl.Type() != v.Elem().Type() {
		return fmt.Errorf("nativetest: signature mismatch binding %q: have %s, want %s",
			f.name, v.Elem().Type(), f.impl.Type())
	}
	v.Elem().Set(f.impl)
	return nil
}

var _ llvmruntime.API = (*Backend)(nil)
