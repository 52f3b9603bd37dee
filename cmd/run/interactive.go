//go:build darwin || linux || freebsd

package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/llvm-runtime/engine"
	"github.com/wippyai/llvm-runtime/runtime"
	"github.com/wippyai/llvm-runtime/values"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	funcStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	typeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type interactiveModel struct {
	err      error
	rt       *runtime.Runtime
	mod      *engine.Module
	ee       *engine.ExecutionEngine
	filename string
	libPath  string
	result   string
	funcs    []engine.FunctionInfo
	inputs   []textinput.Model
	selected int
	focusIdx int
	state    modelState
}

type modelState int

const (
	stateSelectFunc modelState = iota
	stateInputArgs
	stateShowResult
)

func newInteractiveModel(filename, libPath string) *interactiveModel {
	return &interactiveModel{
		filename: filename,
		libPath:  libPath,
		state:    stateSelectFunc,
	}
}

type loadedMsg struct {
	err   error
	rt    *runtime.Runtime
	mod   *engine.Module
	ee    *engine.ExecutionEngine
	funcs []engine.FunctionInfo
}

type callResultMsg struct {
	err    error
	result string
}

func (m *interactiveModel) Init() tea.Cmd {
	return m.loadModule
}

func (m *interactiveModel) loadModule() tea.Msg {
	data, err := os.ReadFile(m.filename)
	if err != nil {
		return loadedMsg{err: err}
	}

	rt, err := newRuntime(m.libPath)
	if err != nil {
		return loadedMsg{err: err}
	}

	mod, err := rt.ParseIR(data, moduleName(m.filename))
	if err != nil {
		rt.Close()
		return loadedMsg{err: err}
	}

	// The interpreter runs functions of any signature through generic
	// values; the JIT path restricts RunFunction to main-shaped ones.
	ee, err := rt.CreateInterpreterEngine(mod)
	if err != nil {
		mod.Close()
		rt.Close()
		return loadedMsg{err: err}
	}

	return loadedMsg{rt: rt, mod: mod, ee: ee, funcs: mod.Functions()}
}

func (m *interactiveModel) shutdown() {
	if m.ee != nil {
		m.ee.Close()
	}
	if m.mod != nil {
		m.mod.Close()
	}
	if m.rt != nil {
		m.rt.Close()
	}
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.shutdown()
			return m, tea.Quit

		case "up", "k":
			if m.state == stateSelectFunc && m.selected > 0 {
				m.selected--
			}

		case "down", "j":
			if m.state == stateSelectFunc && m.selected < len(m.funcs)-1 {
				m.selected++
			}

		case "enter":
			switch m.state {
			case stateSelectFunc:
				m.prepareInputs()
				if len(m.inputs) == 0 {
					return m, m.callFunction
				}
				m.state = stateInputArgs

			case stateInputArgs:
				return m, m.callFunction

			case stateShowResult:
				m.state = stateSelectFunc
				m.result = ""
				m.err = nil
			}

		case "tab":
			if m.state == stateInputArgs && len(m.inputs) > 1 {
				m.inputs[m.focusIdx].Blur()
				m.focusIdx = (m.focusIdx + 1) % len(m.inputs)
				m.inputs[m.focusIdx].Focus()
			}

		case "esc":
			switch m.state {
			case stateInputArgs:
				m.state = stateSelectFunc
				m.inputs = nil
			case stateShowResult:
				m.state = stateSelectFunc
				m.result = ""
				m.err = nil
			}
		}

	case loadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.rt = msg.rt
		m.mod = msg.mod
		m.ee = msg.ee
		m.funcs = msg.funcs

	case callResultMsg:
		m.result = msg.result
		m.err = msg.err
		m.state = stateShowResult
	}

	if m.state == stateInputArgs {
		var cmds []tea.Cmd
		for i := range m.inputs {
			var cmd tea.Cmd
			m.inputs[i], cmd = m.inputs[i].Update(msg)
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)
	}

	return m, nil
}

func (m *interactiveModel) prepareInputs() {
	f := m.funcs[m.selected]
	m.inputs = make([]textinput.Model, f.Params)
	for i := range m.inputs {
		ti := textinput.New()
		ti.Placeholder = "i64 or double"
		ti.Prompt = fmt.Sprintf("arg%d: ", i)
		ti.Width = 40
		if i == 0 {
			ti.Focus()
		}
		m.inputs[i] = ti
	}
	m.focusIdx = 0
}

func (m *interactiveModel) callFunction() tea.Msg {
	if m.ee == nil {
		return callResultMsg{err: fmt.Errorf("module not loaded")}
	}

	f := m.funcs[m.selected]
	fn, err := m.mod.Function(f.Name)
	if err != nil {
		return callResultMsg{err: err}
	}

	args := make([]*values.GenericValue, len(m.inputs))
	for i, input := range m.inputs {
		gv, err := convertArg(m.rt, input.Value())
		if err != nil {
			disposeAll(args[:i])
			return callResultMsg{err: err}
		}
		args[i] = gv
	}
	defer disposeAll(args)

	res := m.ee.RunFunction(fn, args)
	defer res.Dispose()

	return callResultMsg{result: formatResult(m.rt, res)}
}

func convertArg(rt *runtime.Runtime, value string) (*values.GenericValue, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return rt.Int64(0), nil
	}
	if strings.Contains(value, ".") {
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("argument %q: %w", value, err)
		}
		return rt.Double(f), nil
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("argument %q: %w", value, err)
	}
	return rt.Int64(n), nil
}

func (m *interactiveModel) View() string {
	if m.err != nil && m.state != stateShowResult {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err))
	}

	if len(m.funcs) == 0 {
		return "Loading module..."
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("IR Runner"))
	b.WriteString(" ")
	b.WriteString(m.filename)
	b.WriteString("\n\n")

	switch m.state {
	case stateSelectFunc:
		b.WriteString("Select a function to call:\n\n")
		for i, f := range m.funcs {
			cursor := "  "
			if i == m.selected {
				cursor = "> "
				b.WriteString(selectedStyle.Render(cursor + formatFunc(f)))
			} else {
				b.WriteString(cursor + formatFunc(f))
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter call • q quit"))

	case stateInputArgs:
		f := m.funcs[m.selected]
		b.WriteString(fmt.Sprintf("Calling %s\n\n", funcStyle.Render(f.Name)))
		for _, input := range m.inputs {
			b.WriteString(input.View())
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("tab next field • enter call • esc back"))

	case stateShowResult:
		f := m.funcs[m.selected]
		b.WriteString(fmt.Sprintf("Result of %s:\n\n", funcStyle.Render(f.Name)))
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		} else {
			b.WriteString(resultStyle.Render(m.result))
		}
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter continue • q quit"))
	}

	return b.String()
}

func formatFunc(f engine.FunctionInfo) string {
	var params []string
	for i := uint32(0); i < f.Params; i++ {
		params = append(params, typeStyle.Render(fmt.Sprintf("arg%d", i)))
	}
	return funcStyle.Render(f.Name) + "(" + strings.Join(params, ", ") + ")"
}

func runInteractive(filename, libPath string) error {
	p := tea.NewProgram(newInteractiveModel(filename, libPath), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
