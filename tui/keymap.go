package tui

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/reels-cli/reels/color"
	"github.com/reels-cli/reels/style"
)

// statefulKeymap holds every binding; help shows the ones that apply to the current state.
type statefulKeymap struct {
	state state

	quit, forceQuit,
	up, down,
	prevMatch, nextMatch,
	playPause,
	back, forward,
	jump, confirm, cancel,
	retry,
	showHelp key.Binding
}

func (k *statefulKeymap) setState(newState state) {
	k.state = newState
}

func newStatefulKeymap() *statefulKeymap {
	return &statefulKeymap{
		quit: key.NewBinding(
			key.WithKeys("q"),
			key.WithHelp("q", "quit"),
		),
		forceQuit: key.NewBinding(
			key.WithKeys("ctrl+c", "ctrl+d"),
			key.WithHelp("ctrl+c", "quit"),
		),
		up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "previous"),
		),
		down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "next"),
		),
		prevMatch: key.NewBinding(
			key.WithKeys("up", "ctrl+p"),
			key.WithHelp("↑", "previous match"),
		),
		nextMatch: key.NewBinding(
			key.WithKeys("down", "ctrl+n", "tab"),
			key.WithHelp("↓", "next match"),
		),
		playPause: key.NewBinding(
			key.WithKeys(" "),
			key.WithHelp(style.Fg(color.Orange)("space"), style.Fg(color.Orange)("play/pause")),
		),
		back: key.NewBinding(
			key.WithKeys("["),
			key.WithHelp("[", "history back"),
		),
		forward: key.NewBinding(
			key.WithKeys("]"),
			key.WithHelp("]", "history forward"),
		),
		jump: key.NewBinding(
			key.WithKeys("g"),
			key.WithHelp("g", "jump"),
		),
		confirm: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "go"),
		),
		cancel: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "cancel"),
		),
		retry: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "retry"),
		),
		showHelp: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
	}
}

func (k *statefulKeymap) help() ([]key.Binding, []key.Binding) {
	h := func(bindings ...key.Binding) []key.Binding {
		return bindings
	}

	to2 := func(a []key.Binding) ([]key.Binding, []key.Binding) {
		return a, a
	}

	switch k.state {
	case loadingState:
		return to2(h(k.forceQuit))
	case errorState:
		return to2(h(k.retry, k.quit))
	case feedState:
		return h(k.playPause, k.up, k.down, k.showHelp, k.quit),
			h(k.playPause, k.up, k.down, k.back, k.forward, k.jump, k.showHelp, k.quit)
	case jumpState:
		return to2(h(k.confirm, k.prevMatch, k.nextMatch, k.cancel))
	default:
		return to2(h())
	}
}

func (k *statefulKeymap) ShortHelp() []key.Binding {
	short, _ := k.help()
	return short
}

func (k *statefulKeymap) FullHelp() [][]key.Binding {
	_, full := k.help()
	return [][]key.Binding{full}
}
