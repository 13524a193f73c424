package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/avlane/chatterm/internal/chat"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	userLabelStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39"))

	assistantLabelStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("213"))

	stoppedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Italic(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("203"))

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	snippetStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("229"))
)

// renderConversation renders the thread's messages, and any pending search
// results, as viewport content.
func (m Model) renderConversation() string {
	messages, err := m.controller.Messages(m.thread.ID)
	if err != nil {
		return errorStyle.Render(err.Error())
	}

	var b strings.Builder
	for i, msg := range messages {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(renderMessage(msg, m.spin.View()))
		b.WriteString("\n")
	}

	if len(m.results) > 0 {
		b.WriteString("\n")
		b.WriteString(statusStyle.Render("── search results ──"))
		b.WriteString("\n")
		for _, r := range m.results {
			b.WriteString(fmt.Sprintf("%s %s\n",
				statusStyle.Render(string(r.Role)+":"),
				snippetStyle.Render(r.Snippet)))
		}
	}

	if b.Len() == 0 {
		return statusStyle.Render("no messages yet — say something")
	}
	return b.String()
}

// renderMessage formats one message with its role label. A partial message
// carries the spinner; a stopped one keeps its visible marker dimmed.
func renderMessage(msg chat.Message, spinnerView string) string {
	var label string
	switch msg.Role {
	case chat.RoleUser:
		label = userLabelStyle.Render("you")
	case chat.RoleAssistant:
		label = assistantLabelStyle.Render("assistant")
	default:
		label = string(msg.Role)
	}

	content := msg.Content
	if msg.Stopped {
		content = strings.TrimSuffix(content, chat.StoppedMarker) + stoppedStyle.Render(chat.StoppedMarker)
	}
	if msg.Partial {
		if content == "" {
			content = spinnerView
		} else {
			content += " " + spinnerView
		}
	}

	return label + "\n" + content
}
