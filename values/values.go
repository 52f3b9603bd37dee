package values

import (
	llvmruntime "github.com/wippyai/llvm-runtime"
)

// AnyValue is anything that can hand out its raw native value ref.
// It is the capability AddGlobalMapping needs from the value layer.
type AnyValue interface {
	Raw() llvmruntime.ValueRef
}

// FunctionValue is a typed borrow of a function descriptor owned by its
// module. It does not keep anything alive.
type FunctionValue struct {
	ref llvmruntime.ValueRef
}

// NewFunctionValue wraps a function descriptor ref. Returns false when
// the ref is nil, which callers map to their own not-found error.
func NewFunctionValue(ref llvmruntime.ValueRef) (*FunctionValue, bool) {
	if ref.IsNil() {
		return nil, false
	}
	return &FunctionValue{ref: ref}, true
}

// Raw returns the native function descriptor.
func (f *FunctionValue) Raw() llvmruntime.ValueRef {
	return f.ref
}

// GenericValue owns a native generic value used as an interpreter/JIT
// bridge argument or result. Dispose releases it; at most once.
type GenericValue struct {
	api llvmruntime.GenericValueAPI
	ref llvmruntime.GenericValueRef
}

// NewInt creates a generic value holding an integer of type t.
func NewInt(api llvmruntime.GenericValueAPI, t llvmruntime.TypeRef, n uint64, signed bool) *GenericValue {
	return WrapGenericValue(api, api.CreateGenericValueOfInt(t, n, signed))
}

// NewFloat creates a generic value holding a float of type t.
func NewFloat(api llvmruntime.GenericValueAPI, t llvmruntime.TypeRef, n float64) *GenericValue {
	return WrapGenericValue(api, api.CreateGenericValueOfFloat(t, n))
}

// WrapGenericValue takes ownership of an existing native generic value.
// A nil ref is a collaborator bug, not a runtime condition.
func WrapGenericValue(api llvmruntime.GenericValueAPI, ref llvmruntime.GenericValueRef) *GenericValue {
	if ref.IsNil() {
		panic("values: nil generic value ref")
	}
	return &GenericValue{api: api, ref: ref}
}

// Raw returns the native generic value ref for marshaling.
func (g *GenericValue) Raw() llvmruntime.GenericValueRef {
	return g.ref
}

// Int extracts the integer payload.
func (g *GenericValue) Int(signed bool) uint64 {
	return g.api.GenericValueToInt(g.ref, signed)
}

// IntWidth returns the bit width of the integer payload.
func (g *GenericValue) IntWidth() uint32 {
	return g.api.GenericValueIntWidth(g.ref)
}

// Float extracts the float payload, interpreted as type t.
func (g *GenericValue) Float(t llvmruntime.TypeRef) float64 {
	return g.api.GenericValueToFloat(t, g.ref)
}

// Dispose releases the native value. Safe to call more than once.
func (g *GenericValue) Dispose() {
	if g.ref.IsNil() {
		return
	}
	g.api.DisposeGenericValue(g.ref)
	g.ref = 0
}
