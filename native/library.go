//go:build darwin || linux || freebsd

package native

import (
	"fmt"
	"reflect"
	goruntime "runtime"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"

	llvmruntime "github.com/wippyai/llvm-runtime"
	"github.com/wippyai/llvm-runtime/errors"
)

// Sonames probed by Default, most specific first. Versioned names cover
// distro packages that ship no unversioned symlink.
var defaultPaths = []string{
	"libLLVM.so",
	"libLLVM-18.so",
	"libLLVM-17.so",
	"libLLVM-16.so",
	"libLLVM-15.so",
	"libLLVM.dylib",
	"/opt/homebrew/opt/llvm/lib/libLLVM.dylib",
	"/usr/local/opt/llvm/lib/libLLVM.dylib",
}

var (
	defaultLib  *Library
	defaultErr  error
	defaultOnce sync.Once
)

// Default loads the backend library from the usual locations. The load
// happens once per process; subsequent calls return the same Library.
func Default() (*Library, error) {
	defaultOnce.Do(func() {
		var errs []error
		for _, path := range defaultPaths {
			lib, err := Open(path)
			if err == nil {
				defaultLib = lib
				return
			}
			errs = append(errs, err)
		}
		defaultErr = errors.Load(fmt.Sprintf("no usable libLLVM found (tried %d paths)", len(defaultPaths)), errs[len(errs)-1])
	})
	return defaultLib, defaultErr
}

// Library is a loaded libLLVM image. It implements llvmruntime.API.
// All methods are safe to call from any goroutine as far as this layer
// is concerned; backend-level serialization requirements are the
// caller's problem.
type Library struct {
	handle uintptr

	linkInMCJIT                  func()
	linkInInterpreter            func()
	createJITCompilerForModule   func(out *llvmruntime.ExecutionEngineRef, mod llvmruntime.ModuleRef, opt uint32, outErr **byte) int32
	createInterpreterForModule   func(out *llvmruntime.ExecutionEngineRef, mod llvmruntime.ModuleRef, outErr **byte) int32
	disposeExecutionEngine       func(ee llvmruntime.ExecutionEngineRef)
	addModule                    func(ee llvmruntime.ExecutionEngineRef, mod llvmruntime.ModuleRef)
	removeModule                 func(ee llvmruntime.ExecutionEngineRef, mod llvmruntime.ModuleRef, out *llvmruntime.ModuleRef, outErr **byte) int32
	findFunction                 func(ee llvmruntime.ExecutionEngineRef, name string, out *llvmruntime.ValueRef) int32
	getFunctionAddress           func(ee llvmruntime.ExecutionEngineRef, name string) uint64
	addGlobalMapping             func(ee llvmruntime.ExecutionEngineRef, v llvmruntime.ValueRef, addr uintptr)
	freeMachineCodeForFunction   func(ee llvmruntime.ExecutionEngineRef, fn llvmruntime.ValueRef)
	runStaticConstructors        func(ee llvmruntime.ExecutionEngineRef)
	runStaticDestructors         func(ee llvmruntime.ExecutionEngineRef)
	runFunction                  func(ee llvmruntime.ExecutionEngineRef, fn llvmruntime.ValueRef, nargs uint32, args *llvmruntime.GenericValueRef) llvmruntime.GenericValueRef
	runFunctionAsMain            func(ee llvmruntime.ExecutionEngineRef, fn llvmruntime.ValueRef, argc uint32, argv **byte, envp **byte) int32
	getExecutionEngineTargetData func(ee llvmruntime.ExecutionEngineRef) llvmruntime.TargetDataRef

	createGenericValueOfInt   func(t llvmruntime.TypeRef, n uint64, signed int32) llvmruntime.GenericValueRef
	createGenericValueOfFloat func(t llvmruntime.TypeRef, n float64) llvmruntime.GenericValueRef
	genericValueIntWidth      func(gv llvmruntime.GenericValueRef) uint32
	genericValueToInt         func(gv llvmruntime.GenericValueRef, signed int32) uint64
	genericValueToFloat       func(t llvmruntime.TypeRef, gv llvmruntime.GenericValueRef) float64
	disposeGenericValue       func(gv llvmruntime.GenericValueRef)

	pointerSize               func(td llvmruntime.TargetDataRef) uint32
	copyStringRepOfTargetData func(td llvmruntime.TargetDataRef) *byte
	disposeTargetData         func(td llvmruntime.TargetDataRef)

	contextCreate      func() llvmruntime.ContextRef
	contextDispose     func(ctx llvmruntime.ContextRef)
	createMemoryBuffer func(data *byte, length uintptr, name string) uintptr
	parseIRInContext   func(ctx llvmruntime.ContextRef, buf uintptr, out *llvmruntime.ModuleRef, outErr **byte) int32
	disposeModule      func(mod llvmruntime.ModuleRef)
	getNamedFunction   func(mod llvmruntime.ModuleRef, name string) llvmruntime.ValueRef
	getFirstFunction   func(mod llvmruntime.ModuleRef) llvmruntime.ValueRef
	getNextFunction    func(fn llvmruntime.ValueRef) llvmruntime.ValueRef
	getValueName       func(v llvmruntime.ValueRef) *byte
	countParams        func(fn llvmruntime.ValueRef) uint32
	int32TypeInContext func(ctx llvmruntime.ContextRef) llvmruntime.TypeRef
	int64TypeInContext func(ctx llvmruntime.ContextRef) llvmruntime.TypeRef
	doubleTypeInCtx    func(ctx llvmruntime.ContextRef) llvmruntime.TypeRef

	disposeMessage func(msg *byte)
}

// Open loads the backend library at path and resolves every symbol the
// library uses. Missing symbols surface as a panic from purego at
// registration time, which matches how version-incompatible backends
// should fail: loudly, at startup.
func Open(path string) (*Library, error) {
	handle, err := purego.Dlopen(path, purego.RTLD_GLOBAL|purego.RTLD_LAZY)
	if err != nil {
		return nil, errors.Load("dlopen "+path, err)
	}

	l := &Library{handle: handle}

	purego.RegisterLibFunc(&l.linkInMCJIT, handle, "LLVMLinkInMCJIT")
	purego.RegisterLibFunc(&l.linkInInterpreter, handle, "LLVMLinkInInterpreter")
	purego.RegisterLibFunc(&l.createJITCompilerForModule, handle, "LLVMCreateJITCompilerForModule")
	purego.RegisterLibFunc(&l.createInterpreterForModule, handle, "LLVMCreateInterpreterForModule")
	purego.RegisterLibFunc(&l.disposeExecutionEngine, handle, "LLVMDisposeExecutionEngine")
	purego.RegisterLibFunc(&l.addModule, handle, "LLVMAddModule")
	purego.RegisterLibFunc(&l.removeModule, handle, "LLVMRemoveModule")
	purego.RegisterLibFunc(&l.findFunction, handle, "LLVMFindFunction")
	purego.RegisterLibFunc(&l.getFunctionAddress, handle, "LLVMGetFunctionAddress")
	purego.RegisterLibFunc(&l.addGlobalMapping, handle, "LLVMAddGlobalMapping")
	purego.RegisterLibFunc(&l.freeMachineCodeForFunction, handle, "LLVMFreeMachineCodeForFunction")
	purego.RegisterLibFunc(&l.runStaticConstructors, handle, "LLVMRunStaticConstructors")
	purego.RegisterLibFunc(&l.runStaticDestructors, handle, "LLVMRunStaticDestructors")
	purego.RegisterLibFunc(&l.runFunction, handle, "LLVMRunFunction")
	purego.RegisterLibFunc(&l.runFunctionAsMain, handle, "LLVMRunFunctionAsMain")
	purego.RegisterLibFunc(&l.getExecutionEngineTargetData, handle, "LLVMGetExecutionEngineTargetData")

	purego.RegisterLibFunc(&l.createGenericValueOfInt, handle, "LLVMCreateGenericValueOfInt")
	purego.RegisterLibFunc(&l.createGenericValueOfFloat, handle, "LLVMCreateGenericValueOfFloat")
	purego.RegisterLibFunc(&l.genericValueIntWidth, handle, "LLVMGenericValueIntWidth")
	purego.RegisterLibFunc(&l.genericValueToInt, handle, "LLVMGenericValueToInt")
	purego.RegisterLibFunc(&l.genericValueToFloat, handle, "LLVMGenericValueToFloat")
	purego.RegisterLibFunc(&l.disposeGenericValue, handle, "LLVMDisposeGenericValue")

	purego.RegisterLibFunc(&l.pointerSize, handle, "LLVMPointerSize")
	purego.RegisterLibFunc(&l.copyStringRepOfTargetData, handle, "LLVMCopyStringRepOfTargetData")
	purego.RegisterLibFunc(&l.disposeTargetData, handle, "LLVMDisposeTargetData")

	purego.RegisterLibFunc(&l.contextCreate, handle, "LLVMContextCreate")
	purego.RegisterLibFunc(&l.contextDispose, handle, "LLVMContextDispose")
	purego.RegisterLibFunc(&l.createMemoryBuffer, handle, "LLVMCreateMemoryBufferWithMemoryRangeCopy")
	purego.RegisterLibFunc(&l.parseIRInContext, handle, "LLVMParseIRInContext")
	purego.RegisterLibFunc(&l.disposeModule, handle, "LLVMDisposeModule")
	purego.RegisterLibFunc(&l.getNamedFunction, handle, "LLVMGetNamedFunction")
	purego.RegisterLibFunc(&l.getFirstFunction, handle, "LLVMGetFirstFunction")
	purego.RegisterLibFunc(&l.getNextFunction, handle, "LLVMGetNextFunction")
	purego.RegisterLibFunc(&l.getValueName, handle, "LLVMGetValueName")
	purego.RegisterLibFunc(&l.countParams, handle, "LLVMCountParams")
	purego.RegisterLibFunc(&l.int32TypeInContext, handle, "LLVMInt32TypeInContext")
	purego.RegisterLibFunc(&l.int64TypeInContext, handle, "LLVMInt64TypeInContext")
	purego.RegisterLibFunc(&l.doubleTypeInCtx, handle, "LLVMDoubleTypeInContext")

	purego.RegisterLibFunc(&l.disposeMessage, handle, "LLVMDisposeMessage")

	return l, nil
}

// takeMessage copies a backend-owned diagnostic and releases it.
func (l *Library) takeMessage(msg *byte) string {
	if msg == nil {
		return ""
	}
	s := goString(msg)
	l.disposeMessage(msg)
	return s
}

// goString copies a NUL-terminated C string.
func goString(p *byte) string {
	if p == nil {
		return ""
	}
	var n int
	for ptr := unsafe.Pointer(p); *(*byte)(ptr) != 0; ptr = unsafe.Add(ptr, 1) {
		n++
	}
	return string(unsafe.Slice(p, n))
}

// cStrings builds a NUL-terminated array of NUL-terminated strings.
// The returned backing slices must stay referenced while the array is
// in native hands.
func cStrings(args []string) (**byte, [][]byte) {
	bufs := make([][]byte, len(args))
	ptrs := make([]*byte, len(args)+1)
	for i, a := range args {
		bufs[i] = append([]byte(a), 0)
		ptrs[i] = &bufs[i][0]
	}
	return &ptrs[0], bufs
}

func (l *Library) LinkInMCJIT()       { l.linkInMCJIT() }
func (l *Library) LinkInInterpreter() { l.linkInInterpreter() }

func (l *Library) CreateJITCompilerForModule(mod llvmruntime.ModuleRef, opt llvmruntime.OptLevel) (llvmruntime.ExecutionEngineRef, string, bool) {
	var ee llvmruntime.ExecutionEngineRef
	var msg *byte
	if l.createJITCompilerForModule(&ee, mod, uint32(opt), &msg) != 0 {
		return 0, l.takeMessage(msg), false
	}
	return ee, "", true
}

func (l *Library) CreateInterpreterForModule(mod llvmruntime.ModuleRef) (llvmruntime.ExecutionEngineRef, string, bool) {
	var ee llvmruntime.ExecutionEngineRef
	var msg *byte
	if l.createInterpreterForModule(&ee, mod, &msg) != 0 {
		return 0, l.takeMessage(msg), false
	}
	return ee, "", true
}

func (l *Library) DisposeExecutionEngine(ee llvmruntime.ExecutionEngineRef) {
	l.disposeExecutionEngine(ee)
}

func (l *Library) AddModule(ee llvmruntime.ExecutionEngineRef, mod llvmruntime.ModuleRef) {
	l.addModule(ee, mod)
}

func (l *Library) RemoveModule(ee llvmruntime.ExecutionEngineRef, mod llvmruntime.ModuleRef) (llvmruntime.ModuleRef, string, bool) {
	var detached llvmruntime.ModuleRef
	var msg *byte
	if l.removeModule(ee, mod, &detached, &msg) != 0 {
		return 0, l.takeMessage(msg), false
	}
	return detached, "", true
}

func (l *Library) FindFunction(ee llvmruntime.ExecutionEngineRef, name string) (llvmruntime.ValueRef, bool) {
	var fn llvmruntime.ValueRef
	// LLVMFindFunction returns 0 on success.
	if l.findFunction(ee, name, &fn) != 0 {
		return 0, false
	}
	return fn, !fn.IsNil()
}

func (l *Library) GetFunctionAddress(ee llvmruntime.ExecutionEngineRef, name string) uint64 {
	return l.getFunctionAddress(ee, name)
}

func (l *Library) AddGlobalMapping(ee llvmruntime.ExecutionEngineRef, v llvmruntime.ValueRef, addr uintptr) {
	l.addGlobalMapping(ee, v, addr)
}

func (l *Library) FreeMachineCodeForFunction(ee llvmruntime.ExecutionEngineRef, fn llvmruntime.ValueRef) {
	l.freeMachineCodeForFunction(ee, fn)
}

func (l *Library) RunStaticConstructors(ee llvmruntime.ExecutionEngineRef) {
	l.runStaticConstructors(ee)
}

func (l *Library) RunStaticDestructors(ee llvmruntime.ExecutionEngineRef) {
	l.runStaticDestructors(ee)
}

func (l *Library) RunFunction(ee llvmruntime.ExecutionEngineRef, fn llvmruntime.ValueRef, args []llvmruntime.GenericValueRef) llvmruntime.GenericValueRef {
	var first *llvmruntime.GenericValueRef
	if len(args) > 0 {
		first = &args[0]
	}
	return l.runFunction(ee, fn, uint32(len(args)), first)
}

func (l *Library) RunFunctionAsMain(ee llvmruntime.ExecutionEngineRef, fn llvmruntime.ValueRef, argv []string, envp []string) int {
	argvPtr, argvBufs := cStrings(argv)
	envpPtr, envpBufs := cStrings(envp)
	code := l.runFunctionAsMain(ee, fn, uint32(len(argv)), argvPtr, envpPtr)
	goruntime.KeepAlive(argvBufs)
	goruntime.KeepAlive(envpBufs)
	return int(code)
}

func (l *Library) GetExecutionEngineTargetData(ee llvmruntime.ExecutionEngineRef) llvmruntime.TargetDataRef {
	return l.getExecutionEngineTargetData(ee)
}

func (l *Library) CreateGenericValueOfInt(t llvmruntime.TypeRef, n uint64, signed bool) llvmruntime.GenericValueRef {
	return l.createGenericValueOfInt(t, n, boolToInt(signed))
}

func (l *Library) CreateGenericValueOfFloat(t llvmruntime.TypeRef, n float64) llvmruntime.GenericValueRef {
	return l.createGenericValueOfFloat(t, n)
}

func (l *Library) GenericValueIntWidth(gv llvmruntime.GenericValueRef) uint32 {
	return l.genericValueIntWidth(gv)
}

func (l *Library) GenericValueToInt(gv llvmruntime.GenericValueRef, signed bool) uint64 {
	return l.genericValueToInt(gv, boolToInt(signed))
}

func (l *Library) GenericValueToFloat(t llvmruntime.TypeRef, gv llvmruntime.GenericValueRef) float64 {
	return l.genericValueToFloat(t, gv)
}

func (l *Library) DisposeGenericValue(gv llvmruntime.GenericValueRef) {
	l.disposeGenericValue(gv)
}

func (l *Library) PointerSize(td llvmruntime.TargetDataRef) uint32 {
	return l.pointerSize(td)
}

func (l *Library) CopyStringRepOfTargetData(td llvmruntime.TargetDataRef) string {
	return l.takeMessage(l.copyStringRepOfTargetData(td))
}

func (l *Library) DisposeTargetData(td llvmruntime.TargetDataRef) {
	l.disposeTargetData(td)
}

func (l *Library) ContextCreate() llvmruntime.ContextRef {
	return l.contextCreate()
}

func (l *Library) ContextDispose(ctx llvmruntime.ContextRef) {
	l.contextDispose(ctx)
}

func (l *Library) ParseIRInContext(ctx llvmruntime.ContextRef, data []byte, name string) (llvmruntime.ModuleRef, string, bool) {
	if len(data) == 0 {
		return 0, "empty input", false
	}
	// The buffer is consumed by the parse call in both outcomes.
	buf := l.createMemoryBuffer(&data[0], uintptr(len(data)), name)
	var mod llvmruntime.ModuleRef
	var msg *byte
	if l.parseIRInContext(ctx, buf, &mod, &msg) != 0 {
		return 0, l.takeMessage(msg), false
	}
	return mod, "", true
}

func (l *Library) DisposeModule(mod llvmruntime.ModuleRef) {
	l.disposeModule(mod)
}

func (l *Library) GetNamedFunction(mod llvmruntime.ModuleRef, name string) llvmruntime.ValueRef {
	return l.getNamedFunction(mod, name)
}

func (l *Library) FirstFunction(mod llvmruntime.ModuleRef) llvmruntime.ValueRef {
	return l.getFirstFunction(mod)
}

func (l *Library) NextFunction(fn llvmruntime.ValueRef) llvmruntime.ValueRef {
	return l.getNextFunction(fn)
}

func (l *Library) ValueName(v llvmruntime.ValueRef) string {
	// Backend-owned string, not released.
	return goString(l.getValueName(v))
}

func (l *Library) CountParams(fn llvmruntime.ValueRef) uint32 {
	return l.countParams(fn)
}

func (l *Library) Int32TypeInContext(ctx llvmruntime.ContextRef) llvmruntime.TypeRef {
	return l.int32TypeInContext(ctx)
}

func (l *Library) Int64TypeInContext(ctx llvmruntime.ContextRef) llvmruntime.TypeRef {
	return l.int64TypeInContext(ctx)
}

func (l *Library) DoubleTypeInContext(ctx llvmruntime.ContextRef) llvmruntime.TypeRef {
	return l.doubleTypeInCtx(ctx)
}

// BindFunction points *fnPtr at a Go func that calls straight into the
// machine code at addr. fnPtr must be a non-nil pointer to a function
// variable; the signature contract is entirely the caller's.
func (l *Library) BindFunction(fnPtr any, addr uintptr) error {
	v := reflect.ValueOf(fnPtr)
	if !v.IsValid() || v.Kind() != reflect.Ptr || v.Elem().Kind() != reflect.Func {
		return errors.InvalidInput(errors.PhaseLookup, "fnPtr must be a non-nil pointer to a function variable")
	}
	if addr == 0 {
		return errors.InvalidInput(errors.PhaseLookup, "cannot bind address zero")
	}
	purego.RegisterFunc(fnPtr, addr)
	return nil
}

func boolToInt(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

var _ llvmruntime.API = (*Library)(nil)
