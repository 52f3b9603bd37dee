package errors

import (
	"errors"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:  PhaseLookup,
				Kind:   KindFunctionNotFound,
				Name:   "answer",
				Detail: "function not found in execution engine",
			},
			contains: []string{"[lookup]", "function_not_found", `"answer"`, "not found"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseModule,
				Kind:  KindModuleNotOwned,
			},
			contains: []string{"[module]", "module_not_owned"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseLoad,
				Kind:   KindBackend,
				Detail: "dlopen libLLVM",
				Cause:  errors.New("no such file"),
			},
			contains: []string{"[load]", "backend", "dlopen libLLVM", "caused by", "no such file"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := Load("open backend", cause)

	if !errors.Is(err, cause) {
		t.Errorf("errors.Is did not find the cause through Unwrap")
	}
	if errors.Unwrap(err) != cause {
		t.Errorf("Unwrap() = %v, want %v", errors.Unwrap(err), cause)
	}
}

func TestError_Is_MatchesPhaseAndKind(t *testing.T) {
	err := FunctionNotFound("nonexistent")

	if !errors.Is(err, FunctionNotFound("")) {
		t.Errorf("FunctionNotFound sentinel did not match")
	}
	if errors.Is(err, JITNotEnabled()) {
		t.Errorf("FunctionNotFound matched JITNotEnabled")
	}
	if errors.Is(err, ModuleNotOwned()) {
		t.Errorf("FunctionNotFound matched ModuleNotOwned")
	}
}

func TestError_Is_RemovalFamily(t *testing.T) {
	if errors.Is(ModuleNotOwned(), IncorrectModuleOwner()) {
		t.Errorf("ModuleNotOwned matched IncorrectModuleOwner")
	}
	if !errors.Is(Backend(PhaseModule, "some diagnostic"), Backend(PhaseModule, "")) {
		t.Errorf("backend errors with same phase did not match")
	}
	if errors.Is(Backend(PhaseModule, "x"), Backend(PhaseExec, "x")) {
		t.Errorf("backend errors with different phases matched")
	}
}

func TestBuilder(t *testing.T) {
	cause := errors.New("boom")
	err := New(PhaseModule, KindBackend).
		Name("mod").
		Detail("remove rejected (code %d)", 1).
		Cause(cause).
		Build()

	if err.Phase != PhaseModule || err.Kind != KindBackend {
		t.Fatalf("builder lost phase/kind: %+v", err)
	}
	if err.Name != "mod" {
		t.Errorf("Name = %q, want %q", err.Name, "mod")
	}
	if err.Detail != "remove rejected (code 1)" {
		t.Errorf("Detail = %q", err.Detail)
	}
	if err.Cause != cause {
		t.Errorf("Cause not preserved")
	}
}
