package engine

import (
	"errors"
	"sync"
	"testing"

	llvmruntime "github.com/wippyai/llvm-runtime"
	llvmerrors "github.com/wippyai/llvm-runtime/errors"
	"github.com/wippyai/llvm-runtime/nativetest"
	"github.com/wippyai/llvm-runtime/values"
)

// newJITEngine builds a JIT engine over a module containing a
// zero-argument "answer" function returning 42.
func newJITEngine(t *testing.T) (*nativetest.Backend, *ExecutionEngine, *Module) {
	t.Helper()

	b := nativetest.New()
	ref := b.NewModule("test")
	b.AddFunction(ref, "answer", func() int64 { return 42 })

	m := NewModule(b, ref, "test")
	e, err := CreateJITCompiler(b, m, llvmruntime.OptNone)
	if err != nil {
		t.Fatalf("create jit engine: %v", err)
	}
	return b, e, m
}

func TestNew_NilRefPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("New with nil ref did not panic")
		}
	}()
	New(nativetest.New(), 0, true)
}

func TestEngine_JITModeFixedAcrossClones(t *testing.T) {
	_, e, m := newJITEngine(t)
	defer m.Close()
	defer e.Close()

	c := e.Clone()
	defer c.Close()

	if !e.JITMode() || !c.JITMode() {
		t.Errorf("jit mode not preserved across clones")
	}
}

func TestEngine_DisposalFiresExactlyOnce(t *testing.T) {
	b, e, m := newJITEngine(t)

	c1 := e.Clone()
	c2 := c1.Clone()

	e.Close()
	c1.Close()
	if got := b.EngineDisposals(); got != 0 {
		t.Fatalf("disposals after closing 2 of 3 clones = %d, want 0", got)
	}

	c2.Close()
	if got := b.EngineDisposals(); got != 0 {
		t.Fatalf("disposals with module claim still live = %d, want 0", got)
	}

	m.Close()
	if got := b.EngineDisposals(); got != 1 {
		t.Fatalf("disposals after last claim = %d, want 1", got)
	}
}

func TestEngine_CloseIdempotent(t *testing.T) {
	b, e, m := newJITEngine(t)

	e.Close()
	e.Close()
	e.Close()
	if got := b.EngineDisposals(); got != 0 {
		t.Fatalf("repeat close over-released: disposals = %d", got)
	}

	m.Close()
	if got := b.EngineDisposals(); got != 1 {
		t.Fatalf("disposals = %d, want 1", got)
	}
}

func TestEngine_ConcurrentCloneClose(t *testing.T) {
	b, e, m := newJITEngine(t)

	const n = 64
	clones := make([]*ExecutionEngine, n)
	for i := range clones {
		clones[i] = e.Clone()
	}

	var wg sync.WaitGroup
	for _, c := range clones {
		wg.Add(1)
		go func(c *ExecutionEngine) {
			defer wg.Done()
			c.Close()
		}(c)
	}
	wg.Wait()

	e.Close()
	m.Close()
	if got := b.EngineDisposals(); got != 1 {
		t.Fatalf("disposals = %d, want exactly 1", got)
	}
}

func TestAddModule_SingleOwnership(t *testing.T) {
	b, ea, ma := newJITEngine(t)
	defer ma.Close()
	defer ea.Close()

	mb := NewModule(b, b.NewModule("extra"), "extra")
	defer mb.Close()

	if err := ea.AddModule(mb); err != nil {
		t.Fatalf("first add: %v", err)
	}
	if !mb.Owned() {
		t.Fatalf("module not marked owned after add")
	}

	if err := ea.AddModule(mb); !errors.Is(err, llvmerrors.AlreadyOwned()) {
		t.Fatalf("second add = %v, want AlreadyOwned", err)
	}

	// Ownership must be unchanged: the first owner can still remove.
	if err := ea.RemoveModule(mb); err != nil {
		t.Fatalf("remove after rejected re-add: %v", err)
	}
}

func TestAddModule_NativeRegistrationNotReverted(t *testing.T) {
	b, ea, ma := newJITEngine(t)
	defer ma.Close()
	defer ea.Close()

	_, eb, mbSeed := newJITEngine(t)
	defer mbSeed.Close()
	defer eb.Close()

	shared := NewModule(b, b.NewModule("shared"), "shared")
	defer shared.Close()

	if err := ea.AddModule(shared); err != nil {
		t.Fatalf("add to A: %v", err)
	}
	if err := eb.AddModule(shared); !errors.Is(err, llvmerrors.AlreadyOwned()) {
		t.Fatalf("add to B = %v, want AlreadyOwned", err)
	}

	// The rejected adoption still registered the module with B at the
	// native layer. Kept behavior, not a bug in this layer.
	if !b.EngineOwnsModule(eb.Handle().Raw(), shared.Raw()) {
		t.Errorf("native registration was reverted on rejected adoption")
	}
}

func TestRemoveModule_NotOwned(t *testing.T) {
	b, e, m := newJITEngine(t)
	defer m.Close()
	defer e.Close()

	orphan := NewModule(b, b.NewModule("orphan"), "orphan")
	defer orphan.Close()

	if err := e.RemoveModule(orphan); !errors.Is(err, llvmerrors.ModuleNotOwned()) {
		t.Fatalf("remove unowned = %v, want ModuleNotOwned", err)
	}
}

func TestRemoveModule_IncorrectOwner(t *testing.T) {
	b, ea, ma := newJITEngine(t)
	defer ma.Close()
	defer ea.Close()

	_, eb, mb := newJITEngine(t)
	defer mb.Close()
	defer eb.Close()

	extra := NewModule(b, b.NewModule("extra"), "extra")
	defer extra.Close()

	if err := ea.AddModule(extra); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := eb.RemoveModule(extra); !errors.Is(err, llvmerrors.IncorrectModuleOwner()) {
		t.Fatalf("remove by non-owner = %v, want IncorrectModuleOwner", err)
	}
	if !extra.Owned() {
		t.Errorf("failed removal cleared ownership")
	}
}

func TestRemoveModule_ThroughClone(t *testing.T) {
	b, e, m := newJITEngine(t)
	defer m.Close()
	defer e.Close()

	extra := NewModule(b, b.NewModule("extra"), "extra")
	defer extra.Close()

	if err := e.AddModule(extra); err != nil {
		t.Fatalf("add: %v", err)
	}

	// Identity is the underlying native handle, so a clone is the same
	// owner.
	c := e.Clone()
	defer c.Close()
	if err := c.RemoveModule(extra); err != nil {
		t.Fatalf("remove through clone: %v", err)
	}
	if extra.Owned() {
		t.Errorf("module still owned after removal")
	}
}

func TestRemoveModule_BackendFailureLeavesOwnership(t *testing.T) {
	b, e, m := newJITEngine(t)
	defer m.Close()
	defer e.Close()

	extra := NewModule(b, b.NewModule("extra"), "extra")
	defer extra.Close()

	if err := e.AddModule(extra); err != nil {
		t.Fatalf("add: %v", err)
	}

	before := extra.Raw()
	b.FailRemoveDiag = "simulated removal failure"
	err := e.RemoveModule(extra)
	b.FailRemoveDiag = ""

	if !errors.Is(err, llvmerrors.Backend(llvmerrors.PhaseModule, "")) {
		t.Fatalf("remove = %v, want backend error", err)
	}
	if !extra.Owned() {
		t.Errorf("backend failure cleared ownership")
	}
	if extra.Raw() != before {
		t.Errorf("backend failure replaced native ref")
	}
}

func TestRemoveModule_ReplacesNativeRef(t *testing.T) {
	b, e, m := newJITEngine(t)
	defer m.Close()
	defer e.Close()

	extra := NewModule(b, b.NewModule("extra"), "extra")
	defer extra.Close()

	if err := e.AddModule(extra); err != nil {
		t.Fatalf("add: %v", err)
	}

	before := extra.Raw()
	if err := e.RemoveModule(extra); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if extra.Raw() == before {
		t.Errorf("native ref not replaced with detached handle")
	}
	if extra.Owned() {
		t.Errorf("module still owned after removal")
	}
}

func TestGetFunctionValue_JITGate(t *testing.T) {
	b := nativetest.New()
	ref := b.NewModule("interp")
	b.AddFunction(ref, "answer", func() int64 { return 42 })

	m := NewModule(b, ref, "interp")
	defer m.Close()

	e, err := CreateInterpreter(b, m)
	if err != nil {
		t.Fatalf("create interpreter: %v", err)
	}
	defer e.Close()

	// The function exists, but the engine has no JIT capability.
	if _, err := e.GetFunctionValue("answer"); !errors.Is(err, llvmerrors.JITNotEnabled()) {
		t.Fatalf("GetFunctionValue = %v, want JITNotEnabled", err)
	}
	if _, err := GetFunction[func() int64](e, "answer"); !errors.Is(err, llvmerrors.JITNotEnabled()) {
		t.Fatalf("GetFunction = %v, want JITNotEnabled", err)
	}
}

func TestGetFunctionValue_Found(t *testing.T) {
	_, e, m := newJITEngine(t)
	defer m.Close()
	defer e.Close()

	fn, err := e.GetFunctionValue("answer")
	if err != nil {
		t.Fatalf("GetFunctionValue: %v", err)
	}
	if fn.Raw().IsNil() {
		t.Errorf("resolved descriptor is nil")
	}
}

func TestRunFunction(t *testing.T) {
	b := nativetest.New()
	ref := b.NewModule("math")
	b.AddFunction(ref, "add", func(a, bn int64) int64 { return a + bn })

	m := NewModule(b, ref, "math")
	defer m.Close()

	e, err := CreateInterpreter(b, m)
	if err != nil {
		t.Fatalf("create interpreter: %v", err)
	}
	defer e.Close()

	fn, err := m.Function("add")
	if err != nil {
		t.Fatalf("resolve add: %v", err)
	}

	ctx := b.ContextCreate()
	defer b.ContextDispose(ctx)
	i64 := b.Int64TypeInContext(ctx)

	a := values.NewInt(b, i64, 40, true)
	defer a.Dispose()
	c := values.NewInt(b, i64, 2, true)
	defer c.Dispose()

	res := e.RunFunction(fn, []*values.GenericValue{a, c})
	defer res.Dispose()

	if got := int64(res.Int(true)); got != 42 {
		t.Errorf("add(40, 2) = %d, want 42", got)
	}
}

func TestRunFunctionAsMain_EmptyEnvironment(t *testing.T) {
	b := nativetest.New()
	ref := b.NewModule("prog")
	b.AddFunction(ref, "main", func(argv []string) int { return len(argv) })

	m := NewModule(b, ref, "prog")
	defer m.Close()

	e, err := CreateJITCompiler(b, m, llvmruntime.OptNone)
	if err != nil {
		t.Fatalf("create jit engine: %v", err)
	}
	defer e.Close()

	fn, err := m.Function("main")
	if err != nil {
		t.Fatalf("resolve main: %v", err)
	}

	code := e.RunFunctionAsMain(fn, []string{"prog", "-x"})
	if code != 2 {
		t.Errorf("exit code = %d, want 2", code)
	}

	// Env passthrough is not implemented; the vector must be empty
	// regardless of the host environment.
	if envp := b.LastMainEnvp(); len(envp) != 0 {
		t.Errorf("envp = %v, want empty", envp)
	}
	if argv := b.LastMainArgv(); len(argv) != 2 || argv[0] != "prog" {
		t.Errorf("argv = %v", argv)
	}
}

func TestAddGlobalMapping(t *testing.T) {
	_, e, m := newJITEngine(t)
	defer m.Close()
	defer e.Close()

	fn, err := m.Function("answer")
	if err != nil {
		t.Fatalf("resolve answer: %v", err)
	}

	e.AddGlobalMapping(fn, 0xdeadbeef)

	b := e.Handle().api.(*nativetest.Backend)
	if addr, ok := b.GlobalMapping(fn.Raw()); !ok || addr != 0xdeadbeef {
		t.Errorf("mapping = %#x, %v", addr, ok)
	}
}

func TestFreeMachineCode(t *testing.T) {
	b, e, m := newJITEngine(t)
	defer m.Close()
	defer e.Close()

	fn, err := m.Function("answer")
	if err != nil {
		t.Fatalf("resolve answer: %v", err)
	}

	e.FreeMachineCode(fn)
	if got := b.FreedCodeCount(fn.Raw()); got != 1 {
		t.Errorf("freed count = %d, want 1", got)
	}

	// Releasing machine code must not touch the engine.
	if got := b.EngineDisposals(); got != 0 {
		t.Errorf("engine disposed by FreeMachineCode")
	}
}

func TestStaticConstructorsAndDestructors(t *testing.T) {
	b, e, m := newJITEngine(t)
	defer m.Close()
	defer e.Close()

	e.RunStaticConstructors()
	e.RunStaticConstructors()
	e.RunStaticDestructors()

	if b.CtorRuns() != 2 || b.DtorRuns() != 1 {
		t.Errorf("ctors = %d, dtors = %d", b.CtorRuns(), b.DtorRuns())
	}
}

func TestTargetData(t *testing.T) {
	b, e, m := newJITEngine(t)
	defer m.Close()

	td := e.TargetData()
	if td.PointerSize() != 8 {
		t.Errorf("pointer size = %d, want 8", td.PointerSize())
	}
	if td.String() == "" {
		t.Errorf("empty layout string")
	}

	e.Close()
	m.Close()

	// Engine teardown must not run the descriptor's own destructor;
	// the engine disposal frees it transitively.
	if got := b.TargetDataDisposals(); got != 0 {
		t.Errorf("target data independently disposed %d times", got)
	}

	defer func() {
		if recover() == nil {
			t.Fatalf("TargetData on closed engine did not panic")
		}
	}()
	e.TargetData()
}
