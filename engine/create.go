package engine

import (
	llvmruntime "github.com/wippyai/llvm-runtime"
	"github.com/wippyai/llvm-runtime/errors"
)

// CreateJITCompiler builds a JIT execution engine seeded with m. The
// MCJIT strategy is linked in first. On success the engine owns the
// module, exactly as if AddModule had succeeded, so a later AddModule
// of the same module fails with AlreadyOwned.
func CreateJITCompiler(api llvmruntime.API, m *Module, opt llvmruntime.OptLevel) (*ExecutionEngine, error) {
	return createEngine(api, m, true, func() (llvmruntime.ExecutionEngineRef, string, bool) {
		LinkInMCJIT(api)
		return api.CreateJITCompilerForModule(m.Raw(), opt)
	})
}

// CreateInterpreter builds an interpreter execution engine seeded with
// m. Function address lookup is unavailable on the result; use
// RunFunction. On success the engine owns the module.
func CreateInterpreter(api llvmruntime.API, m *Module) (*ExecutionEngine, error) {
	return createEngine(api, m, false, func() (llvmruntime.ExecutionEngineRef, string, bool) {
		LinkInInterpreter(api)
		return api.CreateInterpreterForModule(m.Raw())
	})
}

func createEngine(api llvmruntime.API, m *Module, jitMode bool, create func() (llvmruntime.ExecutionEngineRef, string, bool)) (*ExecutionEngine, error) {
	if m.Owned() {
		return nil, errors.AlreadyOwned()
	}

	ref, diag, ok := create()
	if !ok {
		return nil, errors.Backend(errors.PhaseEngine, diag)
	}

	e := New(api, ref, jitMode)
	m.owner = e.handle.Retain()
	debugf("created engine %#x (jit=%v) for module %q", uintptr(ref), jitMode, m.name)
	return e, nil
}
