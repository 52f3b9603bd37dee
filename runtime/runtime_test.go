package runtime

import (
	stderrors "errors"
	"testing"

	llvmruntime "github.com/wippyai/llvm-runtime"
	"github.com/wippyai/llvm-runtime/engine"
	"github.com/wippyai/llvm-runtime/errors"
	"github.com/wippyai/llvm-runtime/nativetest"
	"github.com/wippyai/llvm-runtime/values"
)

const sampleIR = `
define i64 @answer() {
  ret i64 42
}
`

func TestRuntime_ParseIR(t *testing.T) {
	b := nativetest.New()
	rt := NewWithAPI(b)
	defer rt.Close()

	m, err := rt.ParseIR([]byte(sampleIR), "sample")
	if err != nil {
		t.Fatalf("ParseIR: %v", err)
	}
	defer m.Close()

	if m.Name() != "sample" {
		t.Errorf("Name = %q, want %q", m.Name(), "sample")
	}
	if m.Raw().IsNil() {
		t.Errorf("nil module ref")
	}
}

func TestRuntime_ParseIREmptyInput(t *testing.T) {
	b := nativetest.New()
	rt := NewWithAPI(b)
	defer rt.Close()

	_, err := rt.ParseIR(nil, "empty")
	if !stderrors.Is(err, errors.InvalidInput(errors.PhaseParse, "")) {
		t.Fatalf("ParseIR(nil) = %v, want InvalidInput", err)
	}
}

func TestRuntime_ParseIRFailure(t *testing.T) {
	b := nativetest.New()
	b.FailParseDiag = "expected top-level entity"

	rt := NewWithAPI(b)
	defer rt.Close()

	_, err := rt.ParseIR([]byte("garbage"), "bad")
	if !stderrors.Is(err, errors.Backend(errors.PhaseParse, "")) {
		t.Fatalf("ParseIR = %v, want parse failure", err)
	}

	var perr *errors.Error
	if !stderrors.As(err, &perr) {
		t.Fatalf("error type = %T", err)
	}
	if perr.Detail != "expected top-level entity" {
		t.Errorf("diagnostic = %q", perr.Detail)
	}
}

func TestRuntime_JITScenario(t *testing.T) {
	b := nativetest.New()
	rt := NewWithAPI(b)
	defer rt.Close()

	m, err := rt.ParseIR([]byte(sampleIR), "sample")
	if err != nil {
		t.Fatalf("ParseIR: %v", err)
	}
	defer m.Close()

	b.AddFunction(m.Raw(), "answer", func() int64 { return 42 })

	e, err := rt.CreateJITEngine(m, llvmruntime.OptDefault)
	if err != nil {
		t.Fatalf("CreateJITEngine: %v", err)
	}
	defer e.Close()

	if !e.JITMode() {
		t.Fatalf("engine not in jit mode")
	}
	if b.LinkedMCJIT() == 0 {
		t.Errorf("mcjit never linked in")
	}

	sym, err := engine.GetFunction[func() int64](e, "answer")
	if err != nil {
		t.Fatalf("GetFunction: %v", err)
	}
	defer sym.Close()

	if got := sym.Func()(); got != 42 {
		t.Errorf("answer() = %d, want 42", got)
	}
}

func TestRuntime_InterpreterScenario(t *testing.T) {
	b := nativetest.New()
	rt := NewWithAPI(b)
	defer rt.Close()

	m, err := rt.ParseIR([]byte(sampleIR), "sample")
	if err != nil {
		t.Fatalf("ParseIR: %v", err)
	}
	defer m.Close()

	b.AddFunction(m.Raw(), "add", func(x, y int64) int64 { return x + y })

	e, err := rt.CreateInterpreterEngine(m)
	if err != nil {
		t.Fatalf("CreateInterpreterEngine: %v", err)
	}
	defer e.Close()

	if e.JITMode() {
		t.Fatalf("interpreter engine reports jit mode")
	}

	fn, err := m.Function("add")
	if err != nil {
		t.Fatalf("resolve add: %v", err)
	}

	a := rt.Int64(40)
	defer a.Dispose()
	c := rt.Int64(2)
	defer c.Dispose()

	res := e.RunFunction(fn, []*values.GenericValue{a, c})
	defer res.Dispose()

	if got := int64(res.Int(true)); got != 42 {
		t.Errorf("add(40, 2) = %d, want 42", got)
	}
}

func TestRuntime_CreateEngineFailure(t *testing.T) {
	b := nativetest.New()
	b.FailEngineDiag = "target does not support mc emission"

	rt := NewWithAPI(b)
	defer rt.Close()

	m, err := rt.ParseIR([]byte(sampleIR), "sample")
	if err != nil {
		t.Fatalf("ParseIR: %v", err)
	}
	defer m.Close()

	_, err = rt.CreateJITEngine(m, llvmruntime.OptNone)
	if !stderrors.Is(err, errors.Backend(errors.PhaseEngine, "")) {
		t.Fatalf("CreateJITEngine = %v, want engine failure", err)
	}
	if m.Owned() {
		t.Errorf("failed creation left module owned")
	}
}

func TestRuntime_CreateEngineOnOwnedModule(t *testing.T) {
	b := nativetest.New()
	rt := NewWithAPI(b)
	defer rt.Close()

	m, err := rt.ParseIR([]byte(sampleIR), "sample")
	if err != nil {
		t.Fatalf("ParseIR: %v", err)
	}
	defer m.Close()

	e, err := rt.CreateJITEngine(m, llvmruntime.OptNone)
	if err != nil {
		t.Fatalf("CreateJITEngine: %v", err)
	}
	defer e.Close()

	if _, err := rt.CreateInterpreterEngine(m); !stderrors.Is(err, errors.AlreadyOwned()) {
		t.Fatalf("second engine over owned module = %v, want AlreadyOwned", err)
	}
}

func TestRuntime_ValueHelpers(t *testing.T) {
	b := nativetest.New()
	rt := NewWithAPI(b)
	defer rt.Close()

	i32 := rt.Int32(-7)
	defer i32.Dispose()
	if got := int32(i32.Int(true)); got != -7 {
		t.Errorf("Int32 roundtrip = %d, want -7", got)
	}
	if got := i32.IntWidth(); got != 32 {
		t.Errorf("Int32 width = %d, want 32", got)
	}

	i64 := rt.Int64(1 << 40)
	defer i64.Dispose()
	if got := int64(i64.Int(true)); got != 1<<40 {
		t.Errorf("Int64 roundtrip = %d", got)
	}

	d := rt.Double(2.5)
	defer d.Dispose()
	if got := d.Float(rt.DoubleType()); got != 2.5 {
		t.Errorf("Double roundtrip = %v, want 2.5", got)
	}
}

func TestRuntime_CloseIdempotent(t *testing.T) {
	rt := NewWithAPI(nativetest.New())
	rt.Close()
	rt.Close()
}
