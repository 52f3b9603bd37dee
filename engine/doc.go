// Package engine implements the execution-engine object model and its
// ownership protocol.
//
// # Architecture
//
// The package provides four types:
//
//	ExecutionEngine - a clonable view of one native engine
//	SharedHandle    - the reference-counted native engine handle
//	Module          - an IR module with a single-owner adoption slot
//	Symbol[F]       - a typed, callable handle resolved from the engine
//
// # Lifetime Protocol
//
// Every ExecutionEngine clone and every Symbol holds one claim on the
// SharedHandle. The native engine is disposed exactly once, when the
// last claim is released. A Module adopted by an engine also holds a
// claim until it is removed or closed, because the engine owns the
// module's native memory and must outlive it.
//
// The engine's cached TargetData is owned by the engine at the native
// layer. When the last claim drops, the descriptor is forgotten rather
// than disposed: engine disposal frees it transitively, and running its
// own destructor too would double-free.
//
// # Module Ownership
//
// A module is owned by at most one engine at a time. AddModule claims
// it and fails if some engine already owns it; RemoveModule validates
// the caller is the current owner (by underlying native handle, so all
// clones of one engine are interchangeable) before detaching.
//
// Known backend behavior kept as is: AddModule registers the module at
// the native layer before checking the ownership flag, so a rejected
// adoption still leaves the module registered natively. See the
// AddModule doc comment.
//
// # Thread Safety
//
// Claim counting is atomic; Clone and Close are safe from any
// goroutine. Module adoption, removal, global mappings, machine-code
// freeing and invocation are not synchronized here. Callers sharing one
// engine/module pair across goroutines must serialize those calls.
package engine
