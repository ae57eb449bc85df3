package tui

import (
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/reels-cli/reels/feed"
	"github.com/reels-cli/reels/internal/ui"
	"github.com/reels-cli/reels/media"
	"github.com/reels-cli/reels/style"
	"github.com/reels-cli/reels/util"
)

// statefulBubble is the whole UI model. Feed state arrives as snapshots from the loop; every
// change to the feed is posted back to it.
type statefulBubble struct {
	state         state
	statesHistory util.Stack[state]

	keymap *statefulKeymap

	// components
	spinnerC  spinner.Model
	progressC progress.Model
	bufferC   progress.Model
	helpC     help.Model
	inputC    textinput.Model
	notifier  *ui.Model

	items    []media.Item
	snapshot feed.Snapshot
	synced   bool
	matches  []media.Item
	cursor   int

	// blocked is the item an autoplay notification was last shown for
	blocked string

	stack *stack
	send  func(tea.Msg)

	lastError     error
	width, height int

	options *Options
}

func (b *statefulBubble) raiseError(err error) {
	b.lastError = err
	b.newState(errorState)
}

func (b *statefulBubble) setState(s state) {
	b.state = s
	b.keymap.setState(s)
}

// newState moves to s, remembering the state it left unless that was the loading screen.
func (b *statefulBubble) newState(s state) {
	if b.state == s {
		return
	}

	if b.state != loadingState {
		b.statesHistory.Push(b.state)
	}
	b.setState(s)
}

func (b *statefulBubble) previousState() {
	if b.statesHistory.Len() > 0 {
		b.setState(b.statesHistory.Pop())
	}
}

func (b *statefulBubble) resize(width, height int) {
	x, y := paddingStyle.GetFrameSize()

	b.width = width - x
	b.height = height - y

	b.progressC.Width = util.Max(b.width-16, 10)
	b.bufferC.Width = b.progressC.Width
	b.helpC.Width = b.width
	b.inputC.Width = util.Max(b.width-len(b.inputC.Prompt)-1, 10)

	if b.stack != nil && b.height > 0 {
		rows := float64(b.height)
		b.stack.do(func(c *feed.Controller) {
			c.SetViewport(rows)
		})
	}
}

func newBubble(options *Options) *statefulBubble {
	bubble := statefulBubble{
		statesHistory: util.Stack[state]{},
		keymap:        newStatefulKeymap(),
		notifier:      &ui.Model{},
		options:       options,
		send:          func(tea.Msg) {},
	}

	bubble.helpC = help.New()

	bubble.spinnerC = spinner.New()
	bubble.spinnerC.Spinner = spinner.Dot
	bubble.spinnerC.Style = lipgloss.NewStyle().Foreground(style.AccentColor)

	bubble.progressC = progress.New(
		progress.WithSolidFill(string(style.SuccessColor)),
		progress.WithoutPercentage(),
	)
	bubble.bufferC = progress.New(
		progress.WithSolidFill(string(style.FaintColor)),
		progress.WithoutPercentage(),
	)

	bubble.inputC = textinput.New()
	bubble.inputC.Placeholder = "id or part of a playlist url"
	bubble.inputC.CharLimit = 120
	bubble.inputC.Prompt = "Jump to: "

	bubble.setState(loadingState)

	if w, h, err := util.TerminalSize(); err == nil {
		bubble.resize(w, h)
	}
	return &bubble
}
