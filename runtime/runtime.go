package runtime

import (
	llvmruntime "github.com/wippyai/llvm-runtime"
	"github.com/wippyai/llvm-runtime/engine"
	"github.com/wippyai/llvm-runtime/errors"
	"github.com/wippyai/llvm-runtime/values"
)

// Runtime bundles a native API with one IR context and hands out
// modules and execution engines.
type Runtime struct {
	api    llvmruntime.API
	ctx    llvmruntime.ContextRef
	closed bool
}

// NewWithAPI creates a runtime over an already-loaded backend.
func NewWithAPI(api llvmruntime.API) *Runtime {
	return &Runtime{
		api: api,
		ctx: api.ContextCreate(),
	}
}

// API returns the backend the runtime was built over.
func (r *Runtime) API() llvmruntime.API {
	return r.api
}

// Close disposes the runtime's IR context. Engines and modules created
// from this runtime must be closed first.
func (r *Runtime) Close() {
	if r.closed {
		return
	}
	r.closed = true
	r.api.ContextDispose(r.ctx)
}

// ParseIR parses textual or bitcode IR into a module.
func (r *Runtime) ParseIR(data []byte, name string) (*engine.Module, error) {
	if len(data) == 0 {
		return nil, errors.InvalidInput(errors.PhaseParse, "empty IR input")
	}

	ref, diag, ok := r.api.ParseIRInContext(r.ctx, data, name)
	if !ok {
		return nil, errors.ParseFailed(name, diag)
	}
	return engine.NewModule(r.api, ref, name), nil
}

// CreateJITEngine builds a JIT execution engine seeded with m. The
// engine owns the module afterwards.
func (r *Runtime) CreateJITEngine(m *engine.Module, opt llvmruntime.OptLevel) (*engine.ExecutionEngine, error) {
	return engine.CreateJITCompiler(r.api, m, opt)
}

// CreateInterpreterEngine builds an interpreter execution engine seeded
// with m. The engine owns the module afterwards.
func (r *Runtime) CreateInterpreterEngine(m *engine.Module) (*engine.ExecutionEngine, error) {
	return engine.CreateInterpreter(r.api, m)
}

// Int32 builds a generic value holding a signed 32-bit integer.
func (r *Runtime) Int32(n int32) *values.GenericValue {
	return values.NewInt(r.api, r.api.Int32TypeInContext(r.ctx), uint64(n), true)
}

// Int64 builds a generic value holding a signed 64-bit integer.
func (r *Runtime) Int64(n int64) *values.GenericValue {
	return values.NewInt(r.api, r.api.Int64TypeInContext(r.ctx), uint64(n), true)
}

// Double builds a generic value holding a 64-bit float.
func (r *Runtime) Double(n float64) *values.GenericValue {
	return values.NewFloat(r.api, r.api.DoubleTypeInContext(r.ctx), n)
}

// DoubleType returns the context's f64 type ref, needed to extract
// float results from generic values.
func (r *Runtime) DoubleType() llvmruntime.TypeRef {
	return r.api.DoubleTypeInContext(r.ctx)
}
