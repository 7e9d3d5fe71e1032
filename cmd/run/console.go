package main

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wippyai/wasm-preparsed/internal/cli"
	"github.com/wippyai/wasm-preparsed/ir"
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

	ledOnStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFD700"))

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#7D56F4")).
			Padding(0, 1)
)

const logLines = 8

// logBuffer keeps the last lines written by the console's logger.
type logBuffer struct {
	lines []string
	mu    sync.Mutex
}

func (b *logBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, line := range strings.Split(strings.TrimRight(string(p), "\n"), "\n") {
		b.lines = append(b.lines, line)
	}
	if n := len(b.lines) - logLines; n > 0 {
		b.lines = append(b.lines[:0], b.lines[n:]...)
	}
	return len(p), nil
}

func (b *logBuffer) Sync() error { return nil }

func (b *logBuffer) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.lines...)
}

type consoleModel struct {
	ctx     context.Context
	err     error
	flags   *cli.Flags
	session *session
	logs    *logBuffer
	logger  *zap.Logger
	src     source
	result  string
	funcs   []funcInfo
	inputs  []textinput.Model
	fuel    uint64

	selected int
	focusIdx int
	state    consoleState
}

type funcInfo struct {
	name    string
	params  []api.ValueType
	results []api.ValueType
}

type consoleState int

const (
	stateSelectFunc consoleState = iota
	stateInputArgs
	stateShowResult
)

type loadedMsg struct {
	err     error
	session *session
	funcs   []funcInfo
}

type callResultMsg struct {
	err    error
	result string
}

func newConsoleModel(ctx context.Context, flags *cli.Flags, src source, fuel uint64, level zapcore.LevelEnabler) *consoleModel {
	logs := &logBuffer{}
	enc := zap.NewDevelopmentEncoderConfig()
	enc.TimeKey = ""
	logger := zap.New(zapcore.NewCore(zapcore.NewConsoleEncoder(enc), logs, level))
	cli.Install(logger)
	return &consoleModel{
		ctx:    ctx,
		flags:  flags,
		src:    src,
		fuel:   fuel,
		logs:   logs,
		logger: logger,
		state:  stateSelectFunc,
	}
}

func (m *consoleModel) Init() tea.Cmd {
	return m.load
}

func (m *consoleModel) load() tea.Msg {
	s, err := openSession(m.ctx, m.flags, m.src, m.fuel, m.logger)
	if err != nil {
		return loadedMsg{err: err}
	}
	var funcs []funcInfo
	for _, e := range s.module.Exports {
		if e.Kind != ir.ExportFunc {
			continue
		}
		fn, err := s.rt.Instance().Func(e.Name)
		if err != nil {
			continue
		}
		def := fn.Definition()
		funcs = append(funcs, funcInfo{name: def.Name, params: def.Params, results: def.Results})
	}
	sort.Slice(funcs, func(i, j int) bool { return funcs[i].name < funcs[j].name })
	return loadedMsg{session: s, funcs: funcs}
}

func (m *consoleModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m.quit()

		case "q":
			if m.state != stateInputArgs {
				return m.quit()
			}

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
				if len(m.funcs) == 0 {
					return m, nil
				}
				m.prepareInputs()
				if len(m.inputs) == 0 {
					return m, m.call
				}
				m.state = stateInputArgs
				return m, nil

			case stateInputArgs:
				return m, m.call

			case stateShowResult:
				m.reset()
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
				m.reset()
			}
		}

	case loadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.session = msg.session
		m.funcs = msg.funcs

	case callResultMsg:
		m.result = msg.result
		m.err = msg.err
		m.state = stateShowResult
	}

	if m.state == stateInputArgs {
		cmds := make([]tea.Cmd, len(m.inputs))
		for i := range m.inputs {
			m.inputs[i], cmds[i] = m.inputs[i].Update(msg)
		}
		return m, tea.Batch(cmds...)
	}
	return m, nil
}

func (m *consoleModel) quit() (tea.Model, tea.Cmd) {
	if m.session != nil {
		m.session.Close()
		m.session = nil
	}
	return m, tea.Quit
}

func (m *consoleModel) reset() {
	m.state = stateSelectFunc
	m.result = ""
	m.err = nil
}

func (m *consoleModel) prepareInputs() {
	f := m.funcs[m.selected]
	m.inputs = make([]textinput.Model, len(f.params))
	for i, p := range f.params {
		ti := textinput.New()
		ti.Placeholder = api.ValueTypeName(p)
		ti.Prompt = fmt.Sprintf("arg%d: ", i)
		ti.Width = 40
		if i == 0 {
			ti.Focus()
		}
		m.inputs[i] = ti
	}
	m.focusIdx = 0
}

func (m *consoleModel) call() tea.Msg {
	if m.session == nil {
		return callResultMsg{err: fmt.Errorf("module not loaded")}
	}
	f := m.funcs[m.selected]
	args := make([]uint64, len(m.inputs))
	for i, input := range m.inputs {
		v, err := parseValue(input.Value(), f.params[i])
		if err != nil {
			return callResultMsg{err: fmt.Errorf("arg%d: %w", i, err)}
		}
		args[i] = v
	}

	results, err := m.session.rt.Run(m.ctx, f.name, args...)
	if err != nil {
		return callResultMsg{err: err}
	}
	return callResultMsg{result: "(" + formatValues(results, f.results) + ")"}
}

func (m *consoleModel) View() string {
	if m.err != nil && m.state != stateShowResult {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err))
	}
	if m.session == nil {
		return "Loading module..."
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Device Console"))
	b.WriteString(" ")
	b.WriteString(m.src.path)
	b.WriteString("\n\n")
	b.WriteString(m.devicePanel())
	b.WriteString("\n\n")

	switch m.state {
	case stateSelectFunc:
		b.WriteString("Select an export to call:\n\n")
		for i, f := range m.funcs {
			if i == m.selected {
				b.WriteString(selectedStyle.Render("> " + formatFunc(f)))
			} else {
				b.WriteString("  " + formatFunc(f))
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter call • q quit"))

	case stateInputArgs:
		f := m.funcs[m.selected]
		b.WriteString(fmt.Sprintf("Calling %s\n\n", funcStyle.Render(f.name)))
		for _, input := range m.inputs {
			b.WriteString(input.View())
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("tab next field • enter call • esc back"))

	case stateShowResult:
		f := m.funcs[m.selected]
		b.WriteString(fmt.Sprintf("Result of %s:\n\n", funcStyle.Render(f.name)))
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		} else {
			b.WriteString(resultStyle.Render(m.result))
		}
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter continue • q quit"))
	}

	if lines := m.logs.Lines(); len(lines) > 0 {
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render(strings.Join(lines, "\n")))
	}
	return b.String()
}

func (m *consoleModel) devicePanel() string {
	st := m.session.rt.Store()
	s := st.Data()
	led := "○ off"
	if s.LED {
		led = ledOnStyle.Render("● on")
	}
	fuel := "unmetered"
	if left, err := st.Fuel(); err == nil {
		fuel = fmt.Sprintf("%d left", left)
	}
	pin := "-"
	if s.Initialized {
		pin = fmt.Sprint(s.Pin)
	}
	return panelStyle.Render(fmt.Sprintf("LED %s   pin %s   switches %d   messages %d   fuel %s",
		led, pin, s.Switches, s.Messages, fuel))
}

func formatFunc(f funcInfo) string {
	params := make([]string, len(f.params))
	for i, p := range f.params {
		params[i] = typeStyle.Render(api.ValueTypeName(p))
	}
	result := ""
	if len(f.results) > 0 {
		results := make([]string, len(f.results))
		for i, r := range f.results {
			results[i] = typeStyle.Render(api.ValueTypeName(r))
		}
		result = " -> " + strings.Join(results, ", ")
	}
	return funcStyle.Render(f.name) + "(" + strings.Join(params, ", ") + ")" + result
}

func runConsole(ctx context.Context, flags *cli.Flags, src source, fuel uint64) error {
	level, err := flags.Level()
	if err != nil {
		return err
	}
	p := tea.NewProgram(newConsoleModel(ctx, flags, src, fuel, level), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err = p.Run()
	return err
}
