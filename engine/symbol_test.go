package engine

import (
	"errors"
	"testing"

	llvmerrors "github.com/wippyai/llvm-runtime/errors"
	"github.com/wippyai/llvm-runtime/nativetest"
)

func TestGetFunction_Answer(t *testing.T) {
	_, e, m := newJITEngine(t)
	defer m.Close()
	defer e.Close()

	sym, err := GetFunction[func() int64](e, "answer")
	if err != nil {
		t.Fatalf("GetFunction: %v", err)
	}
	defer sym.Close()

	if got := sym.Func()(); got != 42 {
		t.Errorf("answer() = %d, want 42", got)
	}
	if sym.Raw() == 0 {
		t.Errorf("resolved address is zero")
	}
}

func TestGetFunction_WithArguments(t *testing.T) {
	b := nativetest.New()
	ref := b.NewModule("math")
	b.AddFunction(ref, "mul", func(a, c int32) int32 { return a * c })

	m := NewModule(b, ref, "math")
	defer m.Close()

	e, err := CreateJITCompiler(b, m, 2)
	if err != nil {
		t.Fatalf("create jit engine: %v", err)
	}
	defer e.Close()

	sym, err := GetFunction[func(int32, int32) int32](e, "mul")
	if err != nil {
		t.Fatalf("GetFunction: %v", err)
	}
	defer sym.Close()

	if got := sym.Func()(6, 7); got != 42 {
		t.Errorf("mul(6, 7) = %d, want 42", got)
	}
}

func TestGetFunction_MissDoesNotReachAddressLookup(t *testing.T) {
	b, e, m := newJITEngine(t)
	defer m.Close()
	defer e.Close()

	// Asking the address resolver for an unknown name is fatal in some
	// backend builds. The descriptor probe must short-circuit first.
	b.CrashOnUnknownAddress = true

	_, err := GetFunction[func() int64](e, "missing")
	if !errors.Is(err, llvmerrors.FunctionNotFound("missing")) {
		t.Fatalf("GetFunction = %v, want FunctionNotFound", err)
	}
}

func TestGetFunction_NonFunctionTypePanics(t *testing.T) {
	_, e, m := newJITEngine(t)
	defer m.Close()
	defer e.Close()

	defer func() {
		if recover() == nil {
			t.Fatalf("non-function type parameter did not panic")
		}
	}()
	GetFunction[int](e, "answer")
}

func TestSymbol_KeepsEngineAlive(t *testing.T) {
	b, e, m := newJITEngine(t)

	sym, err := GetFunction[func() int64](e, "answer")
	if err != nil {
		t.Fatalf("GetFunction: %v", err)
	}

	e.Close()
	m.Close()
	if got := b.EngineDisposals(); got != 0 {
		t.Fatalf("engine disposed while symbol live: disposals = %d", got)
	}

	if got := sym.Func()(); got != 42 {
		t.Errorf("answer() after engine close = %d, want 42", got)
	}

	sym.Close()
	if got := b.EngineDisposals(); got != 1 {
		t.Fatalf("disposals after symbol close = %d, want 1", got)
	}
}

func TestSymbol_CloseIdempotent(t *testing.T) {
	b, e, m := newJITEngine(t)
	defer m.Close()
	defer e.Close()

	sym, err := GetFunction[func() int64](e, "answer")
	if err != nil {
		t.Fatalf("GetFunction: %v", err)
	}

	sym.Close()
	sym.Close()

	m.Close()
	e.Close()
	if got := b.EngineDisposals(); got != 1 {
		t.Fatalf("disposals = %d, want 1", got)
	}
}
