// Package nativetest provides an in-memory implementation of
// llvmruntime.API so the ownership and lifetime machinery can be tested
// without a libLLVM install.
//
// Functions registered with AddFunction are real Go functions. Resolved
// "machine code addresses" are registry keys, and BindFunction hands the
// registered Go function back, so a Symbol resolved against this
// backend is genuinely callable.
//
// The backend keeps disposal counters and panics on double dispose,
// which is exactly the class of bug the engine layer exists to prevent.
package nativetest
