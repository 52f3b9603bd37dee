package engine

import (
	"sync/atomic"

	llvmruntime "github.com/wippyai/llvm-runtime"
)

// SharedHandle wraps a native execution engine ref under shared
// ownership. Every holder (engine clone, symbol, adopting module)
// counts as one claim; the native engine is disposed exactly once, on
// the 1 to 0 transition. A disposed handle is terminal.
//
// Cloning never revalidates the ref; it only bumps the counter.
type SharedHandle struct {
	api    llvmruntime.API
	ref    llvmruntime.ExecutionEngineRef
	claims atomic.Int64
}

func newSharedHandle(api llvmruntime.API, ref llvmruntime.ExecutionEngineRef) *SharedHandle {
	if ref.IsNil() {
		panic("engine: nil execution engine ref")
	}
	h := &SharedHandle{api: api, ref: ref}
	h.claims.Store(1)
	return h
}

// Raw returns the underlying native ref. Ownership identity is defined
// by this value: clones of one engine compare equal through it.
func (h *SharedHandle) Raw() llvmruntime.ExecutionEngineRef {
	return h.ref
}

// Retain adds a claim and returns the handle for chaining.
func (h *SharedHandle) Retain() *SharedHandle {
	if h.claims.Add(1) <= 1 {
		panic("engine: retain of disposed engine handle")
	}
	return h
}

// Release drops a claim. The claim that brings the count to zero
// disposes the native engine; the atomic decrement picks a single
// winner, so disposal cannot fire twice even under concurrent release.
func (h *SharedHandle) Release() {
	n := h.claims.Add(-1)
	if n < 0 {
		panic("engine: release of disposed engine handle")
	}
	if n == 0 {
		debugf("disposing execution engine %#x", uintptr(h.ref))
		h.api.DisposeExecutionEngine(h.ref)
	}
}

// Claims returns the current claim count. Test and debug aid.
func (h *SharedHandle) Claims() int64 {
	return h.claims.Load()
}
