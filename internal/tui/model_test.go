package tui

import (
	"context"
	"iter"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/pdfqa-mcp/internal/agent"
)

type fakePort struct {
	fragments []string
	asked     string
	added     string
	cleared   bool
}

func (f *fakePort) AskQuestionStream(_ context.Context, q string) iter.Seq[string] {
	f.asked = q
	return func(yield func(string) bool) {
		for _, s := range f.fragments {
			if !yield(s) {
				return
			}
		}
	}
}

func (f *fakePort) ProcessDocument(_ context.Context, path string) bool {
	f.added = path
	return strings.HasSuffix(path, ".pdf")
}

func (f *fakePort) Stats(context.Context) agent.Stats {
	return agent.Stats{DocumentCount: 12, CollectionName: "pdf_documents"}
}

func (f *fakePort) ClearKnowledgeBase(context.Context) bool {
	f.cleared = true
	return true
}

func sized(port ChatPort) Model {
	m := New(context.Background(), port, "PDF Q/A Agent")
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 30})
	return updated.(Model)
}

func enter(t *testing.T, m Model, text string) (Model, tea.Cmd) {
	t.Helper()
	m.input.SetValue(text)
	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	return updated.(Model), cmd
}

// drain runs cmd and feeds the resulting messages back until the model is idle
func drain(m Model, cmd tea.Cmd) Model {
	for cmd != nil {
		msg := cmd()
		var updated tea.Model
		updated, cmd = m.Update(msg)
		m = updated.(Model)
	}
	return m
}

func TestModel_View(t *testing.T) {
	m := New(context.Background(), &fakePort{}, "PDF Q/A Agent")
	assert.Equal(t, "Loading...", m.View())

	m = sized(&fakePort{})
	view := m.View()
	assert.Contains(t, view, "PDF Q/A Agent")
	assert.Contains(t, view, "/stats")
}

func TestModel_StreamsAnswer(t *testing.T) {
	port := &fakePort{fragments: []string{"Ten ", "years."}}
	m, cmd := enter(t, sized(port), "How long is the warranty?")
	require.NotNil(t, cmd)
	assert.True(t, m.streaming)
	assert.Equal(t, "How long is the warranty?", port.asked)
	assert.Empty(t, m.input.Value())

	m = drain(m, cmd)
	assert.False(t, m.streaming)
	require.Len(t, m.history, 2)
	assert.Equal(t, roleUser, m.history[0].role)
	assert.Equal(t, "Ten years.", m.history[1].text)
	assert.Equal(t, "Ready", m.status)
}

func TestModel_EscStopsStream(t *testing.T) {
	port := &fakePort{fragments: []string{"one", "two", "three"}}
	m, cmd := enter(t, sized(port), "question")

	updated, _ := m.Update(cmd())
	m = updated.(Model)
	assert.Equal(t, "one", m.history[1].text)

	updated, _ = m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	m = updated.(Model)
	assert.False(t, m.streaming)
	assert.Equal(t, "one [stopped]", m.history[1].text)
	assert.Equal(t, "Stopped", m.status)

	// A late fragment after stopping is ignored
	updated, _ = m.Update(fragmentMsg{text: "late"})
	assert.Equal(t, "one [stopped]", updated.(Model).history[1].text)
}

// slowPort yields one fragment per question, then waits for release or cancellation
type slowPort struct {
	fakePort
	release   chan struct{}
	cancelled chan struct{}
}

func newSlowPort() *slowPort {
	return &slowPort{release: make(chan struct{}), cancelled: make(chan struct{}, 4)}
}

func (p *slowPort) AskQuestionStream(ctx context.Context, q string) iter.Seq[string] {
	return func(yield func(string) bool) {
		if !yield("answer to " + q) {
			return
		}
		select {
		case <-p.release:
			yield(" (late)")
		case <-ctx.Done():
			p.cancelled <- struct{}{}
		}
	}
}

func TestModel_EscWhileWaitingForToken(t *testing.T) {
	port := newSlowPort()
	m, cmd := enter(t, sized(port), "first")

	updated, cmd := m.Update(cmd())
	m = updated.(Model)
	require.NotNil(t, cmd)
	assert.Equal(t, "answer to first", m.history[1].text)

	// The next receive is in flight while the producer waits on a slow token
	pending := make(chan tea.Msg, 1)
	go func() { pending <- cmd() }()

	escaped := make(chan Model, 1)
	go func() {
		updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
		escaped <- updated.(Model)
	}()

	select {
	case m = <-escaped:
	case <-time.After(2 * time.Second):
		t.Fatal("Esc blocked the UI")
	}
	assert.False(t, m.streaming)
	assert.Equal(t, "answer to first [stopped]", m.history[1].text)

	select {
	case <-port.cancelled:
	case <-time.After(2 * time.Second):
		t.Fatal("stream context was not cancelled")
	}

	var stale tea.Msg
	select {
	case stale = <-pending:
	case <-time.After(2 * time.Second):
		t.Fatal("pending receive never returned")
	}

	// A second question starts before the stale message from the first stream arrives
	m, cmd = enter(t, m, "second")
	updated, _ = m.Update(stale)
	m = updated.(Model)
	assert.True(t, m.streaming)
	assert.Equal(t, "", m.history[3].text)

	updated, _ = m.Update(cmd())
	m = updated.(Model)
	assert.Equal(t, "answer to second", m.history[3].text)
	assert.Equal(t, "answer to first [stopped]", m.history[1].text)

	close(port.release)
	m = drain(m, m.waitFragment())
	assert.False(t, m.streaming)
	assert.Equal(t, "answer to second (late)", m.history[3].text)
}

func TestModel_Commands(t *testing.T) {
	port := &fakePort{}
	m := sized(port)

	m, cmd := enter(t, m, "/stats")
	m = drain(m, cmd)
	assert.Contains(t, m.history[len(m.history)-1].text, "12 chunks")

	m, cmd = enter(t, m, "/add /tmp/manual.pdf")
	m = drain(m, cmd)
	assert.Equal(t, "/tmp/manual.pdf", port.added)
	assert.Equal(t, "Processed /tmp/manual.pdf.", m.history[len(m.history)-1].text)

	m, cmd = enter(t, m, "/add")
	assert.Nil(t, cmd)
	assert.Equal(t, "Usage: /add <file.pdf>", m.history[len(m.history)-1].text)

	m, cmd = enter(t, m, "/clear")
	m = drain(m, cmd)
	assert.True(t, port.cleared)
	assert.Equal(t, "Knowledge base cleared.", m.history[len(m.history)-1].text)

	_, cmd = enter(t, m, "/quit")
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestModel_IgnoresBlankInput(t *testing.T) {
	m, cmd := enter(t, sized(&fakePort{}), "   ")
	assert.Nil(t, cmd)
	assert.Empty(t, m.history)
}
