package engine

import (
	llvmruntime "github.com/wippyai/llvm-runtime"
	"github.com/wippyai/llvm-runtime/errors"
	"github.com/wippyai/llvm-runtime/values"
)

// Module is an IR module with a single-owner adoption slot. The native
// ref is a mutable cell: a successful RemoveModule replaces it with the
// detached handle the backend returns.
//
// The owner slot is written by AddModule/RemoveModule without locking;
// racing adoption of one module from multiple goroutines is a caller
// bug, not something this layer defends against.
type Module struct {
	api   llvmruntime.API
	ref   llvmruntime.ModuleRef
	owner *SharedHandle
	name  string
}

// NewModule wraps a native module ref. A nil ref is a collaborator bug.
func NewModule(api llvmruntime.API, ref llvmruntime.ModuleRef, name string) *Module {
	if ref.IsNil() {
		panic("engine: nil module ref")
	}
	return &Module{api: api, ref: ref, name: name}
}

// Name returns the module's name.
func (m *Module) Name() string {
	return m.name
}

// Raw returns the current native module ref.
func (m *Module) Raw() llvmruntime.ModuleRef {
	return m.ref
}

// Owned reports whether some engine currently owns the module.
func (m *Module) Owned() bool {
	return m.owner != nil
}

// Function resolves a named function descriptor in the module.
func (m *Module) Function(name string) (*values.FunctionValue, error) {
	fn, ok := values.NewFunctionValue(m.api.GetNamedFunction(m.ref, name))
	if !ok {
		return nil, errors.NotFound(errors.PhaseLookup, "function", name)
	}
	return fn, nil
}

// FunctionInfo describes one function in a module listing.
type FunctionInfo struct {
	Name   string
	Params uint32
}

// Functions lists the module's functions in definition order.
func (m *Module) Functions() []FunctionInfo {
	var out []FunctionInfo
	for fn := m.api.FirstFunction(m.ref); !fn.IsNil(); fn = m.api.NextFunction(fn) {
		out = append(out, FunctionInfo{
			Name:   m.api.ValueName(fn),
			Params: m.api.CountParams(fn),
		})
	}
	return out
}

// Close releases the module. An unowned module disposes its native
// representation; an owned module only drops its claim on the owning
// engine, since the engine owns the native memory and will free it.
// Safe to call more than once.
func (m *Module) Close() {
	if m.ref.IsNil() {
		return
	}
	if m.owner != nil {
		m.owner.Release()
		m.owner = nil
	} else {
		m.api.DisposeModule(m.ref)
	}
	m.ref = 0
}
