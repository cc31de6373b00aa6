package main

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/prolog-runtime/machine"
)

// replAnswers bounds each REPL query when no --max-answers is given.
const replAnswers = 20

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	queryStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	outputStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#DDDDDD"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

// outputBuffer collects text the machine writes while a query runs.
type outputBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *outputBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

// Drain returns and clears the collected text.
func (b *outputBuffer) Drain() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.buf.String()
	b.buf.Reset()
	return s
}

type interactiveModel struct {
	m       *machine.Machine
	out     *outputBuffer
	cancel  context.CancelFunc
	input   textinput.Model
	view    viewport.Model
	log     []string
	history []string
	recall  int
	limit   int
	ready   bool
	running bool
}

type answersMsg struct {
	err     error
	query   string
	answers string
	output  string
}

func newInteractiveModel(m *machine.Machine, out *outputBuffer, limit int) *interactiveModel {
	if limit <= 0 {
		limit = replAnswers
	}
	ti := textinput.New()
	ti.Prompt = "?- "
	ti.Placeholder = "member(X, [a, b])."
	ti.Focus()
	return &interactiveModel{m: m, out: out, input: ti, limit: limit}
}

func (m *interactiveModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		height := max(msg.Height-4, 1)
		if !m.ready {
			m.view = viewport.New(msg.Width, height)
			m.ready = true
		} else {
			m.view.Width = msg.Width
			m.view.Height = height
		}
		m.input.Width = msg.Width - len(m.input.Prompt) - 1
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			if m.running {
				m.cancel()
				return m, nil
			}
			return m, tea.Quit

		case "ctrl+d", "esc":
			if !m.running {
				return m, tea.Quit
			}
			return m, nil

		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if m.running || q == "" {
				return m, nil
			}
			m.history = append(m.history, q)
			m.recall = len(m.history)
			m.input.Reset()
			m.running = true
			return m, m.runQuery(q)

		case "up":
			if m.recall > 0 {
				m.recall--
				m.input.SetValue(m.history[m.recall])
				m.input.CursorEnd()
			}
			return m, nil

		case "down":
			if m.recall < len(m.history)-1 {
				m.recall++
				m.input.SetValue(m.history[m.recall])
				m.input.CursorEnd()
			} else {
				m.recall = len(m.history)
				m.input.Reset()
			}
			return m, nil

		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.view, cmd = m.view.Update(msg)
			return m, cmd
		}

	case answersMsg:
		m.running = false
		m.cancel = nil
		m.log = append(m.log, queryStyle.Render("?- "+msg.query))
		if msg.output != "" {
			m.log = append(m.log, outputStyle.Render(strings.TrimRight(msg.output, "\n")))
		}
		if msg.err != nil {
			m.log = append(m.log, errorStyle.Render(fmt.Sprintf("Error: %v", msg.err)))
		} else {
			m.log = append(m.log, resultStyle.Render(strings.TrimRight(msg.answers, "\n")))
		}
		m.log = append(m.log, "")
		m.refresh()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *interactiveModel) refresh() {
	if !m.ready {
		return
	}
	m.view.SetContent(strings.Join(m.log, "\n"))
	m.view.GotoBottom()
}

func (m *interactiveModel) runQuery(q string) tea.Cmd {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	mach, out, limit := m.m, m.out, m.limit
	return func() tea.Msg {
		defer cancel()
		answers, err := renderAnswers(ctx, mach, q, limit)
		return answersMsg{query: q, answers: answers, output: out.Drain(), err: err}
	}
}

func (m *interactiveModel) View() string {
	if !m.ready {
		return "Starting..."
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Prolog"))
	b.WriteString(" ")
	b.WriteString(strings.Join(m.m.Modules(), ", "))
	b.WriteString("\n")
	b.WriteString(m.view.View())
	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n")
	if m.running {
		b.WriteString(helpStyle.Render("running • ctrl+c cancel"))
	} else {
		b.WriteString(helpStyle.Render("enter run • ↑/↓ history • pgup/pgdown scroll • esc quit"))
	}
	return b.String()
}

func runInteractive(m *machine.Machine, out *outputBuffer, limit int) error {
	p := tea.NewProgram(newInteractiveModel(m, out, limit), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
