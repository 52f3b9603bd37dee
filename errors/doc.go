// Package errors provides structured error types for the llvm-runtime library.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type carries the function or module name involved, a detail message, and
// a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseModule, errors.KindBackend).
//		Name("my_module").
//		Detail("remove rejected by backend").
//		Build()
//
// Or use convenience constructors for the families callers match on:
//
//	err := errors.FunctionNotFound("answer")
//	err := errors.ModuleNotOwned()
//
// All errors implement the standard error interface and support errors.Is/As.
// Matching ignores names and details, so sentinel-style checks work:
//
//	if errors.Is(err, llvmerrors.FunctionNotFound("")) { ... }
//
// Backend diagnostics are carried as opaque text, never parsed.
package errors
