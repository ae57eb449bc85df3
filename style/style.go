// Package style composes lipgloss styles into plain string renderers.
package style

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/reels-cli/reels/color"
)

func New() lipgloss.Style {
	return lipgloss.NewStyle()
}

// Colored is a style with the given foreground and background. Empty colors are left unset.
func Colored(fg, bg lipgloss.Color) lipgloss.Style {
	return New().Foreground(fg).Background(bg)
}

// Fg renders strings in c.
func Fg(c lipgloss.Color) func(string) string {
	return func(s string) string { return Colored(c, "").Render(s) }
}

var (
	Faint = func(s string) string { return New().Faint(true).Render(s) }
	Bold  = func(s string) string { return New().Bold(true).Render(s) }
)

// Title is the banner heading every screen.
var Title = func(s string) string {
	return Colored(color.New("230"), AccentColor).Bold(true).Padding(0, 1).Render(s)
}

var ErrorTitle = func(s string) string {
	return Colored(color.New("230"), color.Red).Bold(true).Padding(0, 1).Render(s)
}

// Tag renders a padded label, used for badges.
func Tag(fg, bg lipgloss.Color) func(string) string {
	return func(s string) string { return Colored(fg, bg).Padding(0, 1).Render(s) }
}
