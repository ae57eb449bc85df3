// Package tui is the terminal front end: it fetches the catalog, starts the feed and renders it
// one reel per screen.
package tui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// Options configure a run of the feed.
type Options struct {
	// ID opens the feed at this item.
	ID string

	// Continue opens the feed at the remembered location. ID takes precedence.
	Continue bool

	// Endpoint overrides catalog.endpoint.
	Endpoint string
}

// Run shows the feed until the user quits.
func Run(options *Options) error {
	bubble := newBubble(options)

	program := tea.NewProgram(bubble, tea.WithAltScreen(), tea.WithMouseCellMotion())
	bubble.send = program.Send

	_, err := program.Run()
	bubble.shutdown()
	return err
}
