// Package ui shows short-lived notifications under the main view.
package ui

import (
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Lifetime is how long a notification stays on screen.
const Lifetime = 3 * time.Second

// Notification is shown for Lifetime.
type Notification string

type clearMsg struct {
	seq int
}

// Notify returns a command that shows text.
func Notify(text string) tea.Cmd {
	return func() tea.Msg {
		return Notification(text)
	}
}

// Model holds the notification currently shown.
type Model struct {
	text string
	seq  int
}

func (m *Model) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case Notification:
		m.text = string(msg)
		m.seq++
		seq := m.seq
		return tea.Tick(Lifetime, func(time.Time) tea.Msg {
			return clearMsg{seq: seq}
		})
	case clearMsg:
		// a newer notification restarted the timer
		if msg.seq == m.seq {
			m.text = ""
		}
	}
	return nil
}

// Text is the notification shown, or "".
func (m *Model) Text() string {
	return m.text
}

var faint = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))

// View appends the notification to the last line of content.
func (m *Model) View(content string) string {
	if m.text == "" {
		return content
	}

	lines := strings.Split(content, "\n")
	lines[len(lines)-1] += "  " + faint.Render(m.text)
	return strings.Join(lines, "\n")
}
