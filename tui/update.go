package tui

import (
	"errors"
	"fmt"

	bubblesKey "github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/reels-cli/reels/catalog"
	"github.com/reels-cli/reels/feed"
	"github.com/reels-cli/reels/internal/ui"
	"github.com/reels-cli/reels/key"
	"github.com/reels-cli/reels/log"
	"github.com/reels-cli/reels/util"
	"github.com/spf13/viper"
)

func (b *statefulBubble) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	if cmd := b.notifier.Update(msg); cmd != nil {
		cmds = append(cmds, cmd)
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		b.resize(msg.Width, msg.Height)
	case tea.KeyMsg:
		if bubblesKey.Matches(msg, b.keymap.forceQuit) {
			return b, tea.Quit
		}
	case spinner.TickMsg:
		var cmd tea.Cmd
		b.spinnerC, cmd = b.spinnerC.Update(msg)
		cmds = append(cmds, cmd)
	case snapshotMsg:
		cmds = append(cmds, b.onSnapshot(feed.Snapshot(msg)))
	}

	var cmd tea.Cmd
	switch b.state {
	case loadingState:
		cmd = b.updateLoading(msg)
	case errorState:
		cmd = b.updateError(msg)
	case feedState:
		cmd = b.updateFeed(msg)
	case jumpState:
		cmd = b.updateJump(msg)
	}

	return b, tea.Batch(append(cmds, cmd)...)
}

func (b *statefulBubble) updateLoading(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case catalogMsg:
		if err := b.startFeed(msg); err != nil {
			b.raiseError(err)
			return nil
		}
		b.newState(feedState)
	case catalogFailedMsg:
		log.Errorf("catalog: %s", msg.err)
		b.raiseError(msg.err)
	}
	return nil
}

func (b *statefulBubble) updateError(msg tea.Msg) tea.Cmd {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return nil
	}

	switch {
	case bubblesKey.Matches(keyMsg, b.keymap.quit):
		return tea.Quit
	case bubblesKey.Matches(keyMsg, b.keymap.retry):
		var fetchErr *catalog.FetchError
		if !errors.As(b.lastError, &fetchErr) && !errors.Is(b.lastError, catalog.ErrMalformed) {
			return nil
		}

		b.lastError = nil
		b.statesHistory = util.Stack[state]{}
		b.setState(loadingState)
		return tea.Batch(b.spinnerC.Tick, b.fetchCatalog())
	}
	return nil
}

func (b *statefulBubble) updateFeed(msg tea.Msg) tea.Cmd {
	if b.stack == nil {
		return nil
	}

	switch msg := msg.(type) {
	case tea.MouseMsg:
		if msg.Action != tea.MouseActionPress {
			return nil
		}

		step := viper.GetFloat64(key.TUIScrollStep)
		switch msg.Button {
		case tea.MouseButtonWheelUp:
			b.stack.do(func(c *feed.Controller) { c.ScrollBy(-step) })
		case tea.MouseButtonWheelDown:
			b.stack.do(func(c *feed.Controller) { c.ScrollBy(step) })
		case tea.MouseButtonLeft:
			b.stack.do(func(c *feed.Controller) { c.TogglePlayPause() })
		}
	case tea.KeyMsg:
		switch {
		case bubblesKey.Matches(msg, b.keymap.quit):
			return tea.Quit
		case bubblesKey.Matches(msg, b.keymap.up):
			b.stack.do(func(c *feed.Controller) { c.NavigateUp() })
		case bubblesKey.Matches(msg, b.keymap.down):
			b.stack.do(func(c *feed.Controller) { c.NavigateDown() })
		case bubblesKey.Matches(msg, b.keymap.playPause):
			b.stack.do(func(c *feed.Controller) { c.TogglePlayPause() })
		case bubblesKey.Matches(msg, b.keymap.back):
			if !b.stack.history.Back() {
				return ui.Notify("Start of history")
			}
			return ui.Notify("Back to " + b.stack.history.Current())
		case bubblesKey.Matches(msg, b.keymap.forward):
			if !b.stack.history.Forward() {
				return ui.Notify("End of history")
			}
			return ui.Notify("Forward to " + b.stack.history.Current())
		case bubblesKey.Matches(msg, b.keymap.jump):
			b.inputC.SetValue("")
			b.matches, b.cursor = nil, 0
			b.newState(jumpState)
			return b.inputC.Focus()
		case bubblesKey.Matches(msg, b.keymap.showHelp):
			b.helpC.ShowAll = !b.helpC.ShowAll
		}
	}
	return nil
}

func (b *statefulBubble) updateJump(msg tea.Msg) tea.Cmd {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case bubblesKey.Matches(msg, b.keymap.cancel):
			b.inputC.Blur()
			b.previousState()
			return nil
		case bubblesKey.Matches(msg, b.keymap.prevMatch):
			if b.cursor > 0 {
				b.cursor--
			}
			return nil
		case bubblesKey.Matches(msg, b.keymap.nextMatch):
			if b.cursor < len(b.matches)-1 {
				b.cursor++
			}
			return nil
		case bubblesKey.Matches(msg, b.keymap.confirm):
			return b.confirmJump()
		}
	}

	var cmd tea.Cmd
	b.inputC, cmd = b.inputC.Update(msg)
	b.matches = rankItems(b.inputC.Value(), b.items)
	if b.cursor >= len(b.matches) {
		b.cursor = 0
	}
	return cmd
}

func (b *statefulBubble) confirmJump() tea.Cmd {
	b.inputC.Blur()
	b.previousState()

	if len(b.matches) == 0 {
		return ui.Notify(fmt.Sprintf("No reel matches %q", b.inputC.Value()))
	}

	// Jumps are pushed so that back and forward can return across them. The history listener
	// moves the feed.
	b.stack.history.Navigate(b.stack.sync.URL(b.matches[b.cursor].ID))
	return nil
}

// onSnapshot keeps the latest feed state and raises notifications for what changed.
func (b *statefulBubble) onSnapshot(snapshot feed.Snapshot) tea.Cmd {
	b.snapshot, b.synced = snapshot, true

	active, ok := snapshot.Active()
	if !ok {
		return nil
	}

	current, ok := active.Session.Get()
	if !ok || !current.AutoplayBlocked {
		return nil
	}
	if b.blocked == active.Item.ID {
		return nil
	}
	b.blocked = active.Item.ID
	return ui.Notify("Autoplay blocked, press space to play")
}
