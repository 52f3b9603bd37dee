package values

import (
	"sync/atomic"

	llvmruntime "github.com/wippyai/llvm-runtime"
)

// TargetData describes the data layout of the target an engine compiles
// for. An engine's cached TargetData is owned by the engine at the
// native layer: disposing the engine frees it transitively. Forget
// exists so the owner can suppress the independent destructor right
// before the engine itself goes away; running both would double-free.
type TargetData struct {
	api       llvmruntime.TargetDataAPI
	ref       llvmruntime.TargetDataRef
	forgotten atomic.Bool
}

// NewTargetData wraps a target data ref. A nil ref is a collaborator
// bug, not a runtime condition.
func NewTargetData(api llvmruntime.TargetDataAPI, ref llvmruntime.TargetDataRef) *TargetData {
	if ref.IsNil() {
		panic("values: nil target data ref")
	}
	return &TargetData{api: api, ref: ref}
}

// Raw returns the native target data ref.
func (t *TargetData) Raw() llvmruntime.TargetDataRef {
	return t.ref
}

// PointerSize returns the pointer size in bytes for the target.
func (t *TargetData) PointerSize() uint32 {
	return t.api.PointerSize(t.ref)
}

// String returns the target's data layout string.
func (t *TargetData) String() string {
	return t.api.CopyStringRepOfTargetData(t.ref)
}

// Forget suppresses the independent destructor: after Forget, Dispose
// is a no-op. Called by the resource that owns this descriptor
// transitively, right before its own disposal.
func (t *TargetData) Forget() {
	t.forgotten.Store(true)
}

// Dispose releases the descriptor unless it was forgotten. Disposing at
// most once; repeated calls are no-ops.
func (t *TargetData) Dispose() {
	if t.forgotten.Swap(true) {
		return
	}
	t.api.DisposeTargetData(t.ref)
}
