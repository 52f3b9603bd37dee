// Package llvmruntime provides ownership-aware Go bindings to the LLVM
// execution-engine C API (MCJIT and interpreter).
//
// The library gives callers a typed object model over the raw opaque
// handles libLLVM hands out, and enforces the lifetime protocol binding
// execution engines, the modules they adopt, and the function pointers
// resolved from compiled code. No native resource is freed while still
// referenced, and disposal of a shared engine fires exactly once.
//
// # Architecture Overview
//
// The library is organized into several packages with distinct responsibilities:
//
//	llvmruntime/         Root package with Ref types and the API boundary interfaces
//	├── runtime/         High-level API for loading IR and creating engines
//	├── engine/          Execution engine, module ownership, typed symbols
//	├── values/          Function, generic value and target data wrappers
//	├── native/          purego dlopen binding to libLLVM
//	├── nativetest/      In-memory backend for tests (no libLLVM required)
//	└── errors/          Structured error types for debugging
//
// # Quick Start
//
// Load IR and run a JIT-compiled function:
//
//	rt, err := runtime.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Close()
//
//	mod, err := rt.ParseIR(irBytes, "example")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	ee, err := rt.CreateJITEngine(mod, llvmruntime.OptDefault)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer ee.Close()
//
//	answer, err := engine.GetFunction[func() int64](ee, "answer")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer answer.Close()
//	fmt.Println(answer.Func()()) // 42
//
// # Ownership Model
//
// An ExecutionEngine is a cheap, clonable view of one native engine.
// All clones, plus every Symbol resolved from the engine, share one
// reference-counted handle; the native engine is disposed when the last
// holder closes. A module belongs to at most one engine at a time:
// AddModule claims it, RemoveModule detaches it, and mismatched claims
// are reported as errors rather than corrupting native state.
//
// # Thread Safety
//
// Handle reference counting is atomic, so engine clones and symbols may
// be closed from any goroutine. Everything else (module adoption and
// removal, global mappings, machine-code freeing, invocation) performs
// unsynchronized native calls; callers mutating the same engine/module
// pair from multiple goroutines must serialize those calls themselves.
package llvmruntime
