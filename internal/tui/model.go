package tui

import (
	"context"
	"fmt"
	"iter"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/dshills/pdfqa-mcp/internal/agent"
)

// ChatPort is the TUI-facing subset of the agent.
type ChatPort interface {
	AskQuestionStream(ctx context.Context, question string) iter.Seq[string]
	ProcessDocument(ctx context.Context, path string) bool
	Stats(ctx context.Context) agent.Stats
	ClearKnowledgeBase(ctx context.Context) bool
}

const helpText = "Commands: /add <file.pdf>  /stats  /clear  /quit   Esc stops an answer"

type role int

const (
	roleUser role = iota
	roleAssistant
	roleSystem
)

type entry struct {
	role role
	text string
}

type fragmentMsg struct {
	stream int
	text   string
	done   bool
}

type statsMsg agent.Stats

type clearedMsg bool

type ingestedMsg struct {
	path string
	ok   bool
}

// Model is the Bubble Tea model for the chat UI.
type Model struct {
	ctx      context.Context
	port     ChatPort
	title    string
	input    textinput.Model
	viewport viewport.Model
	history  []entry
	status   string
	ready    bool

	streaming bool
	streamID  int
	fragments <-chan string
	cancel    context.CancelFunc
}

// New creates a chat model backed by port.
func New(ctx context.Context, port ChatPort, title string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question about your PDFs"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{ctx: ctx, port: port, title: title, input: ti, viewport: vp, status: helpText}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key, window and background result messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, bh := transcriptStyle.GetFrameSize()
		_, qh := inputStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 // header, status, input box, spacer
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, msg.Height-reserved-bh)
		m.refresh()
		return m, nil

	case fragmentMsg:
		if !m.streaming || msg.stream != m.streamID {
			return m, nil
		}
		if msg.done {
			m.finishStream("Ready")
			return m, nil
		}
		m.appendToAnswer(msg.text)
		m.refresh()
		return m, m.waitFragment()

	case statsMsg:
		m.addSystem(fmt.Sprintf("Collection %q holds %d chunks.", msg.CollectionName, msg.DocumentCount))
		m.status = "Ready"
		return m, nil

	case clearedMsg:
		if msg {
			m.addSystem("Knowledge base cleared.")
		} else {
			m.addSystem("Failed to clear the knowledge base.")
		}
		m.status = "Ready"
		return m, nil

	case ingestedMsg:
		if msg.ok {
			m.addSystem(fmt.Sprintf("Processed %s.", msg.path))
		} else {
			m.addSystem(fmt.Sprintf("Could not process %s.", msg.path))
		}
		m.status = "Ready"
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			m.finishStream("")
			return m, tea.Quit
		}
		if msg.Type == tea.KeyEsc && m.streaming {
			m.appendToAnswer(" [stopped]")
			m.finishStream("Stopped")
			return m, nil
		}
		if msg.Type == tea.KeyEnter {
			return m.submit()
		}
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" || m.streaming {
		return m, nil
	}
	m.input.Reset()

	command, arg, _ := strings.Cut(text, " ")
	switch command {
	case "/quit", "/exit":
		return m, tea.Quit
	case "/stats":
		m.status = "Counting..."
		return m, func() tea.Msg { return statsMsg(m.port.Stats(m.ctx)) }
	case "/clear":
		m.status = "Clearing..."
		return m, func() tea.Msg { return clearedMsg(m.port.ClearKnowledgeBase(m.ctx)) }
	case "/add":
		path := strings.TrimSpace(arg)
		if path == "" {
			m.addSystem("Usage: /add <file.pdf>")
			return m, nil
		}
		m.status = "Processing " + path + "..."
		return m, func() tea.Msg { return ingestedMsg{path: path, ok: m.port.ProcessDocument(m.ctx, path)} }
	case "/help":
		m.addSystem(helpText)
		return m, nil
	}

	m.history = append(m.history, entry{role: roleUser, text: text}, entry{role: roleAssistant})
	ctx, cancel := context.WithCancel(m.ctx)
	m.streamID++
	m.fragments = pump(ctx, m.port.AskQuestionStream(ctx, text))
	m.cancel = cancel
	m.streaming = true
	m.status = "Thinking..."
	m.refresh()
	return m, m.waitFragment()
}

// pump drains seq on its own goroutine. The channel closes when seq ends or ctx is done.
func pump(ctx context.Context, seq iter.Seq[string]) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		for fragment := range seq {
			select {
			case out <- fragment:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// waitFragment receives the next answer fragment off the UI goroutine
func (m Model) waitFragment() tea.Cmd {
	id, fragments := m.streamID, m.fragments
	return func() tea.Msg {
		text, ok := <-fragments
		return fragmentMsg{stream: id, text: text, done: !ok}
	}
}

// finishStream cancels the producer without waiting for it
func (m *Model) finishStream(status string) {
	if m.cancel != nil {
		m.cancel()
	}
	m.fragments, m.cancel = nil, nil
	m.streaming = false
	if status != "" {
		m.status = status
	}
	m.refresh()
}

func (m *Model) appendToAnswer(text string) {
	if n := len(m.history); n > 0 && m.history[n-1].role == roleAssistant {
		m.history[n-1].text += text
	}
}

func (m *Model) addSystem(text string) {
	m.history = append(m.history, entry{role: roleSystem, text: text})
	m.refresh()
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

// View renders the header, transcript, input box and status line.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := headerStyle.Render(m.title)
	transcript := transcriptStyle.Render(m.viewport.View())
	input := inputStyle.Render(m.input.View())
	status := statusStyle.Render(m.status)
	return header + "\n" + transcript + "\n" + input + "\n" + status
}

func (m Model) renderTranscript() string {
	if len(m.history) == 0 {
		return mutedStyle.Render("Upload PDFs with /add, then ask a question.")
	}
	width := max(20, m.viewport.Width-4)
	var b strings.Builder
	for i, e := range m.history {
		if i > 0 {
			b.WriteString("\n\n")
		}
		switch e.role {
		case roleUser:
			b.WriteString(userStyle.Render("You: "))
			b.WriteString(lipgloss.NewStyle().Width(width).Render(e.text))
		case roleAssistant:
			b.WriteString(assistantStyle.Render("Assistant: "))
			text := e.text
			if text == "" && m.streaming && i == len(m.history)-1 {
				text = mutedStyle.Render("...")
			}
			b.WriteString(lipgloss.NewStyle().Width(width).Render(text))
		case roleSystem:
			b.WriteString(mutedStyle.Render(e.text))
		}
	}
	return b.String()
}

var (
	headerStyle     = lipgloss.NewStyle().Bold(true)
	transcriptStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	statusStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	mutedStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	userStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	assistantStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
)

// Run starts the chat UI in the alternate screen and blocks until it exits.
func Run(ctx context.Context, port ChatPort, title string) error {
	p := tea.NewProgram(New(ctx, port, title), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
