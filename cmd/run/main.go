//go:build darwin || linux || freebsd

package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/term"

	llvmruntime "github.com/wippyai/llvm-runtime"
	"github.com/wippyai/llvm-runtime/engine"
	"github.com/wippyai/llvm-runtime/runtime"
	"github.com/wippyai/llvm-runtime/values"
)

func main() {
	var (
		irFile      = flag.String("ir", "", "Path to LLVM IR file (.ll)")
		libPath     = flag.String("lib", "", "Explicit libLLVM path (default: search well-known sonames)")
		funcName    = flag.String("func", "", "Function to call (optional)")
		funcArgs    = flag.String("args", "", "Arguments (comma-separated, decimal point selects double)")
		asMain      = flag.Bool("main", false, "Run the function as main() with -argv")
		cliArgs     = flag.String("argv", "", "argv for -main (comma-separated, argv[0] included)")
		interp      = flag.Bool("interp", false, "Use the interpreter instead of the JIT")
		optLevel    = flag.Int("opt", 2, "JIT optimization level (0-3)")
		list        = flag.Bool("list", false, "List module functions and exit")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
		verbose     = flag.Bool("v", false, "Verbose engine logging")
	)
	flag.Parse()

	if *irFile == "" {
		fmt.Fprintln(os.Stderr, "Usage: run -ir <file.ll> [-func name] [-args 1,2.5,...]")
		fmt.Fprintln(os.Stderr, "       run -ir <file.ll> -main [-argv prog,a,b]")
		fmt.Fprintln(os.Stderr, "       run -ir <file.ll> -list")
		fmt.Fprintln(os.Stderr, "       run -ir <file.ll> -i  (interactive mode)")
		os.Exit(1)
	}

	if *verbose {
		logger, err := zap.NewDevelopment()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		engine.SetLogger(logger)
	}

	if *interactive {
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			fmt.Fprintln(os.Stderr, "Error: interactive mode requires a terminal")
			os.Exit(1)
		}
		if err := runInteractive(*irFile, *libPath); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(*irFile, *libPath, *funcName, *funcArgs, *cliArgs, *asMain, *interp, *optLevel, *list); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRuntime(libPath string) (*runtime.Runtime, error) {
	if libPath != "" {
		return runtime.NewWithLibrary(libPath)
	}
	return runtime.New()
}

func run(irFile, libPath, funcName, argsStr, argvStr string, asMain, interp bool, optLevel int, listOnly bool) error {
	data, err := os.ReadFile(irFile)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	rt, err := newRuntime(libPath)
	if err != nil {
		return fmt.Errorf("create runtime: %w", err)
	}
	defer rt.Close()

	mod, err := rt.ParseIR(data, moduleName(irFile))
	if err != nil {
		return fmt.Errorf("parse: %w", err)
	}
	defer mod.Close()

	funcs := mod.Functions()
	fmt.Printf("Module: %s\n", irFile)
	fmt.Printf("Functions: %d\n\n", len(funcs))
	for _, f := range funcs {
		fmt.Printf("  %s/%d\n", f.Name, f.Params)
	}

	if listOnly {
		return nil
	}

	var ee *engine.ExecutionEngine
	if interp {
		ee, err = rt.CreateInterpreterEngine(mod)
	} else {
		ee, err = rt.CreateJITEngine(mod, llvmruntime.OptLevel(optLevel))
	}
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}
	defer ee.Close()

	// Without -func, fall back to conventional entry points.
	if funcName == "" {
		for _, name := range []string{"main", "_start", "run"} {
			for _, f := range funcs {
				if f.Name == name {
					funcName = name
					break
				}
			}
			if funcName != "" {
				break
			}
		}
		if funcName == "" && len(funcs) == 1 {
			funcName = funcs[0].Name
		}
		if funcName == "" {
			fmt.Printf("\nNo function specified and no conventional entry point found.\n")
			fmt.Printf("Use -func to specify a function to call.\n")
			return nil
		}
	}

	fn, err := mod.Function(funcName)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", funcName, err)
	}

	if asMain {
		argv := []string{funcName}
		if argvStr != "" {
			argv = strings.Split(argvStr, ",")
		}
		fmt.Printf("\nRunning %s as main, argv=%v...\n", funcName, argv)
		code := ee.RunFunctionAsMain(fn, argv)
		fmt.Printf("Exit code: %d\n", code)
		return nil
	}

	args, err := parseArgs(rt, argsStr)
	if err != nil {
		return err
	}
	defer disposeAll(args)

	fmt.Printf("\nCalling %s(%s)...\n", funcName, argsStr)
	res := ee.RunFunction(fn, args)
	defer res.Dispose()

	fmt.Printf("Result: %s\n", formatResult(rt, res))
	return nil
}

// parseArgs builds generic values from a comma-separated list. A token
// containing a decimal point becomes a double, anything else an i64.
func parseArgs(rt *runtime.Runtime, argsStr string) ([]*values.GenericValue, error) {
	if argsStr == "" {
		return nil, nil
	}
	var out []*values.GenericValue
	for _, tok := range strings.Split(argsStr, ",") {
		tok = strings.TrimSpace(tok)
		if strings.Contains(tok, ".") {
			f, err := strconv.ParseFloat(tok, 64)
			if err != nil {
				disposeAll(out)
				return nil, fmt.Errorf("argument %q: %w", tok, err)
			}
			out = append(out, rt.Double(f))
			continue
		}
		n, err := strconv.ParseInt(tok, 10, 64)
		if err != nil {
			disposeAll(out)
			return nil, fmt.Errorf("argument %q: %w", tok, err)
		}
		out = append(out, rt.Int64(n))
	}
	return out, nil
}

func disposeAll(gvs []*values.GenericValue) {
	for _, gv := range gvs {
		gv.Dispose()
	}
}

// formatResult renders a generic value. Integer results carry their own
// width; anything without one is read back as a double.
func formatResult(rt *runtime.Runtime, res *values.GenericValue) string {
	if w := res.IntWidth(); w > 0 {
		return fmt.Sprintf("%d (i%d)", int64(res.Int(true)), w)
	}
	return fmt.Sprintf("%g (double)", res.Float(rt.DoubleType()))
}

func moduleName(path string) string {
	base := path
	if i := strings.LastIndexByte(base, '/'); i >= 0 {
		base = base[i+1:]
	}
	return strings.TrimSuffix(base, ".ll")
}
