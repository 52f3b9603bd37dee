// Package runtime provides the high-level API for loading IR and
// running it on a JIT or interpreter execution engine.
//
// # Quick Start
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
//	defer mod.Close()
//
//	ee, err := rt.CreateJITEngine(mod, llvmruntime.OptDefault)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer ee.Close()
//
//	sym, err := engine.GetFunction[func() int64](ee, "answer")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer sym.Close()
//	fmt.Println(sym.Func()())
//
// New loads libLLVM through the native package; NewWithAPI accepts any
// llvmruntime.API, which is how tests run against the nativetest
// backend.
//
// # Argument Values
//
// The Int32/Int64/Double helpers build generic values for
// ExecutionEngine.RunFunction, the invocation path that works on both
// interpreter and JIT engines:
//
//	res := ee.RunFunction(fn, []*values.GenericValue{rt.Int64(2), rt.Int64(40)})
//	defer res.Dispose()
//	fmt.Println(int64(res.Int(true)))
//
// # Thread Safety
//
// A Runtime owns one native IR context. Contexts are not thread-safe;
// parse and engine creation calls on one Runtime must be serialized by
// the caller.
package runtime
