// Package chat implements the interactive terminal chat session.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/avlane/chatterm/internal/chat"
	"github.com/avlane/chatterm/internal/history"
)

// Searcher runs full-text search over the local transcript. Nil disables
// the /search command.
type Searcher interface {
	Search(ctx context.Context, threadID, query string, limit int) ([]history.SearchResult, error)
}

// Model is the bubbletea model for one thread's chat session.
type Model struct {
	controller *chat.Controller
	searcher   Searcher
	thread     chat.Thread
	modelID    string

	viewport viewport.Model
	input    textarea.Model
	spin     spinner.Model

	width   int
	height  int
	ready   bool
	err     error
	notice  string
	results []history.SearchResult
}

type genDoneMsg struct{ err error }

type tickMsg time.Time

// New creates the chat model for the given thread.
func New(controller *chat.Controller, searcher Searcher, thread chat.Thread, modelID string) Model {
	input := textarea.New()
	input.Placeholder = "Send a message (/help for commands)"
	input.Prompt = "┃ "
	input.SetHeight(2)
	input.CharLimit = 0
	input.ShowLineNumbers = false
	input.Focus()

	spin := spinner.New()
	spin.Spinner = spinner.MiniDot

	return Model{
		controller: controller,
		searcher:   searcher,
		thread:     thread,
		modelID:    modelID,
		input:      input,
		spin:       spin,
	}
}

func (m Model) Init() tea.Cmd {
	return textarea.Blink
}

func tickCmd() tea.Cmd {
	return tea.Tick(80*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		headerHeight := 2
		footerHeight := m.input.Height() + 2
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-headerHeight-footerHeight)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - headerHeight - footerHeight
		}
		m.input.SetWidth(msg.Width - 2)
		m.refreshViewport()

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			m.controller.Stop()
			return m, tea.Quit
		case tea.KeyEsc:
			// Stop is safe to race against natural completion.
			m.controller.Stop()
			return m, nil
		case tea.KeyCtrlK:
			if err := m.controller.Clear(m.thread.ID); err != nil {
				m.err = err
			} else {
				m.notice = "conversation cleared"
				m.results = nil
			}
			m.refreshViewport()
			return m, nil
		case tea.KeyEnter:
			if msg.Alt {
				break // Alt+Enter inserts a newline via the textarea below.
			}
			return m.submit()
		}

	case tickMsg:
		m.refreshViewport()
		if m.controller.IsGenerating() {
			cmds = append(cmds, tickCmd())
		}

	case genDoneMsg:
		if msg.err != nil {
			m.err = msg.err
		}
		m.refreshViewport()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		if m.controller.IsGenerating() {
			cmds = append(cmds, cmd)
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// submit sends the composed message or runs a slash command.
func (m Model) submit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return m, nil
	}

	if strings.HasPrefix(text, "/") {
		return m.runCommand(text)
	}

	if m.controller.IsGenerating() {
		m.notice = "still generating — press Esc to stop first"
		return m, nil
	}

	m.input.Reset()
	m.err = nil
	m.notice = ""
	m.results = nil

	controller := m.controller
	threadID := m.thread.ID
	modelID := m.modelID
	start := func() tea.Msg {
		return genDoneMsg{err: controller.Start(context.Background(), threadID, text, modelID)}
	}
	return m, tea.Batch(start, m.spin.Tick, tickCmd())
}

// runCommand handles slash commands.
func (m Model) runCommand(text string) (tea.Model, tea.Cmd) {
	m.input.Reset()
	name, arg, _ := strings.Cut(strings.TrimPrefix(text, "/"), " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "quit", "q", "exit":
		m.controller.Stop()
		return m, tea.Quit
	case "clear", "c":
		if err := m.controller.Clear(m.thread.ID); err != nil {
			m.err = err
		} else {
			m.notice = "conversation cleared"
			m.results = nil
		}
	case "model", "m":
		if arg != "" {
			m.modelID = arg
			m.notice = "model set to " + arg
		} else {
			m.notice = "model: " + m.modelID
		}
	case "search", "s":
		if m.searcher == nil {
			m.err = errors.New("local history is disabled; /search unavailable")
			break
		}
		if arg == "" {
			m.notice = "usage: /search <query>"
			break
		}
		results, err := m.searcher.Search(context.Background(), m.thread.ID, arg, 10)
		if err != nil {
			m.err = err
			break
		}
		m.results = results
		m.notice = fmt.Sprintf("%d match(es) for %q", len(results), arg)
	case "regenerate", "retry":
		m.err = m.controller.Regenerate(m.thread.ID)
	case "help", "h", "?":
		m.notice = "commands: /clear /model [id] /search <query> /quit — Esc stops streaming, Ctrl+K clears"
	default:
		m.notice = "unknown command: /" + name
	}

	m.refreshViewport()
	return m, nil
}

// refreshViewport re-renders the conversation into the viewport, pinned to
// the bottom while content grows.
func (m *Model) refreshViewport() {
	if !m.ready {
		return
	}
	atBottom := m.viewport.AtBottom()
	m.viewport.SetContent(m.renderConversation())
	if atBottom {
		m.viewport.GotoBottom()
	}
}

func (m Model) View() string {
	if !m.ready {
		return "loading…"
	}

	var b strings.Builder
	b.WriteString(m.headerView())
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(m.statusView())
	b.WriteString("\n")
	b.WriteString(m.input.View())
	return b.String()
}

func (m Model) headerView() string {
	title := m.thread.Title
	if title == "" {
		title = m.thread.ID
	}
	return headerStyle.Width(m.width).Render(fmt.Sprintf("%s · %s", title, m.modelID))
}

func (m Model) statusView() string {
	switch {
	case m.controller.IsGenerating():
		return statusStyle.Render(m.spin.View() + " generating… (Esc to stop)")
	case m.err != nil:
		return errorStyle.Render("error: " + m.err.Error())
	case m.notice != "":
		return statusStyle.Render(m.notice)
	}
	return statusStyle.Render("Enter to send · Ctrl+C to quit")
}
