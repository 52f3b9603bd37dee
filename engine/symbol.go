package engine

import (
	"fmt"
	"reflect"
	"sync/atomic"
	"unsafe"

	"github.com/wippyai/llvm-runtime/errors"
)

// maxSymbolParams bounds the callable signatures GetFunction accepts.
// The permitted arities form a closed set; anything wider is a
// programming error, not a runtime condition.
const maxSymbolParams = 13

// Symbol is a typed, callable handle resolved from an execution
// engine. It holds a claim on the engine's shared handle, so the
// engine cannot be fully disposed while the symbol is alive.
//
// It does not protect the specific function's machine code:
// FreeMachineCode on the same function leaves the symbol dangling.
type Symbol[F any] struct {
	handle *SharedHandle
	fn     F
	addr   uintptr
	closed atomic.Bool
}

// GetFunction resolves a compiled function by name as a callable of
// type F.
//
// F must be a function type whose signature and calling convention
// match the compiled function exactly; the wrapper performs no
// validation at call time, so a mismatch is undefined behavior. F's
// shape (a func of at most maxSymbolParams parameters, pointer-sized)
// is asserted here, as a contract check rather than an error.
//
// The address lookup is always preceded by a descriptor probe: some
// backend versions crash on direct address resolution of a nonexistent
// name, so a zero-address sentinel alone cannot be trusted.
func GetFunction[F any](e *ExecutionEngine, name string) (*Symbol[F], error) {
	if !e.jitMode {
		return nil, errors.JITNotEnabled()
	}

	if _, err := e.GetFunctionValue(name); err != nil {
		return nil, err
	}

	addr := e.handle.api.GetFunctionAddress(e.handle.ref, name)
	if addr == 0 {
		return nil, errors.FunctionNotFound(name)
	}

	var fn F
	assertFunctionShape(reflect.TypeOf(fn), unsafe.Sizeof(fn))

	if err := e.handle.api.BindFunction(&fn, uintptr(addr)); err != nil {
		return nil, errors.New(errors.PhaseLookup, errors.KindInvalidInput).
			Name(name).
			Detail("bind resolved address").
			Cause(err).
			Build()
	}

	return &Symbol[F]{
		handle: e.handle.Retain(),
		fn:     fn,
		addr:   uintptr(addr),
	}, nil
}

func assertFunctionShape(t reflect.Type, size uintptr) {
	if t == nil || t.Kind() != reflect.Func {
		panic(fmt.Sprintf("engine: symbol type must be a function, got %v", t))
	}
	if size != unsafe.Sizeof(uintptr(0)) {
		panic(fmt.Sprintf("engine: symbol type %v must have the size of a function pointer", t))
	}
	if t.NumIn() > maxSymbolParams {
		panic(fmt.Sprintf("engine: symbol type %v exceeds %d parameters", t, maxSymbolParams))
	}
}

// Func returns the callable. Invocation goes straight into the
// resolved machine code with no further checks.
func (s *Symbol[F]) Func() F {
	return s.fn
}

// Raw returns the resolved machine-code address.
func (s *Symbol[F]) Raw() uintptr {
	return s.addr
}

// Close releases the symbol's claim on the engine. If this was the
// last claim overall, the native engine is disposed. Safe to call more
// than once.
func (s *Symbol[F]) Close() {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}
	s.handle.Release()
}
