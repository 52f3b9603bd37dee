// Package native binds the LLVM C API at runtime through purego.
//
// The backend shared library is loaded with dlopen, so no cgo and no
// build-time LLVM toolchain are required. Open loads an explicit path;
// Default probes the usual sonames once per process.
//
// Library implements llvmruntime.API. Every method is a direct,
// blocking native call; nothing here retries, synchronizes, or
// interprets backend state beyond converting C strings and out
// parameters to Go values. Diagnostic strings returned through char**
// out parameters are copied and released with LLVMDisposeMessage before
// returning.
//
// Symbol binding (BindFunction) relies on purego.RegisterFunc, which
// builds a Go func that calls straight into a resolved machine-code
// address. The caller owns the contract that the Go signature matches
// the native one.
package native
