package tui

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/truncate"
	"github.com/muesli/reflow/wrap"
	"github.com/reels-cli/reels/color"
	"github.com/reels-cli/reels/feed"
	"github.com/reels-cli/reels/icon"
	"github.com/reels-cli/reels/key"
	"github.com/reels-cli/reels/media"
	"github.com/reels-cli/reels/network"
	"github.com/reels-cli/reels/session"
	"github.com/reels-cli/reels/style"
	"github.com/reels-cli/reels/util"
	"github.com/spf13/viper"
)

var paddingStyle = lipgloss.NewStyle().Padding(1, 2)

// railRadius is how many neighbours on each side the dot rail shows.
const railRadius = 7

func (b *statefulBubble) View() string {
	var output string

	switch b.state {
	case loadingState:
		output = b.viewLoading()
	case errorState:
		output = b.viewError()
	case feedState:
		output = b.viewFeed()
	case jumpState:
		output = b.viewJump()
	default:
		output = "Unknown state"
	}

	return b.notifier.View(output)
}

func (b *statefulBubble) viewLoading() string {
	return b.renderLines(true, []string{
		style.Title("Reels"),
		"",
		b.spinnerC.View() + " Loading videos",
	})
}

func (b *statefulBubble) viewError() string {
	detail := "unknown error"
	if b.lastError != nil {
		detail = b.lastError.Error()
	}

	return b.renderLines(true, []string{
		style.ErrorTitle("Failed to load videos"),
		"",
		wrap.String(style.Fg(color.Red)(detail), util.Max(b.width, 20)),
		"",
		style.Faint("Press r to retry"),
	})
}

func (b *statefulBubble) viewFeed() string {
	if !b.synced {
		return b.viewLoading()
	}

	snapshot := b.snapshot
	if len(snapshot.Items) == 0 {
		return b.renderLines(true, []string{style.Title("Reels"), "", style.Faint("No videos")})
	}

	active, _ := snapshot.Active()
	lines := []string{
		b.header(snapshot, active),
		"",
	}

	lines = append(lines, statusLines(active, snapshot.Paused, b.spinnerC.View())...)

	if current, ok := active.Session.Get(); ok && current.Duration > 0 {
		fraction := util.Clamp(current.Position/current.Duration, 0, 1)
		lines = append(lines,
			"",
			b.progressC.ViewAs(fraction)+" "+progressLabel(current.Position, current.Duration),
			b.bufferC.ViewAs(current.Buffered)+" "+style.Faint(fmt.Sprintf("buffer %d%%", int(math.Round(current.Buffered*100)))),
		)
	}

	if viper.GetBool(key.TUIShowURLs) {
		lines = append(lines, "", b.truncate(style.Faint(active.Item.URL)))
	}

	if badges := preloadBadges(snapshot); len(badges) > 0 {
		lines = append(lines, "")
		lines = append(lines, badges...)
	}

	lines = append(lines, "", rail(snapshot, railRadius))
	if scroll := scrollLabel(snapshot); scroll != "" {
		lines = append(lines, style.Faint(scroll))
	}
	if b.stack != nil {
		lines = append(lines, b.truncate(style.Faint(icon.Get(icon.Location)+" "+b.stack.sync.Location())))
	}

	return b.renderLines(true, lines)
}

func (b *statefulBubble) header(snapshot feed.Snapshot, active feed.ItemView) string {
	left := fmt.Sprintf(
		"%s %s %s",
		style.Title("Reels"),
		style.Bold(fmt.Sprintf("%d / %d", snapshot.Current+1, len(snapshot.Items))),
		style.Fg(color.Purple)("#"+active.Item.ID),
	)
	right := networkBadge(snapshot.Quality)

	gap := b.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	return left + strings.Repeat(" ", gap) + right
}

func (b *statefulBubble) viewJump() string {
	lines := []string{
		style.Title("Jump"),
		"",
		b.inputC.View(),
		"",
	}

	if b.inputC.Value() != "" && len(b.matches) == 0 {
		lines = append(lines, style.Faint("No matches"))
	}

	for i, item := range b.matches {
		line := fmt.Sprintf("#%s %s", item.ID, style.Faint(item.URL))
		if i == b.cursor {
			line = style.Fg(style.AccentColor)("> ") + line
		} else {
			line = "  " + line
		}
		lines = append(lines, b.truncate(line))
	}

	return b.renderLines(true, lines)
}

func (b *statefulBubble) truncate(s string) string {
	if b.width <= 0 {
		return s
	}
	return truncate.StringWithTail(s, uint(b.width), "…")
}

func (b *statefulBubble) renderLines(addHelp bool, lines []string) string {
	h := len(lines)
	l := strings.Join(lines, "\n")
	if addHelp {
		if b.height > h {
			l += strings.Repeat("\n", b.height-h)
		}
		l += b.helpC.View(b.keymap)
	}

	return paddingStyle.Render(l)
}

// networkBadge shows the effective connection type and downlink, colored by tier.
func networkBadge(q network.Quality) string {
	text := fmt.Sprintf("%s %s %.1f Mbps", icon.Get(icon.Network), strings.ToUpper(q.EffectiveType), q.Downlink)

	var bg lipgloss.Color
	switch q.Tier {
	case network.Low:
		bg = style.ErrorColor
	case network.Medium:
		bg = style.WarningColor
	default:
		bg = style.SuccessColor
	}
	return style.Tag(style.Base, bg)(strings.TrimSpace(text))
}

// statusLines describe the active item: loading, unloaded, failed, or its play state and quality.
func statusLines(view feed.ItemView, paused bool, spinner string) []string {
	if view.Mode == media.None {
		return []string{style.Faint("Scroll to load")}
	}

	current, ok := view.Session.Get()
	if !ok {
		return []string{spinner + " Loading"}
	}

	switch current.Status {
	case session.Errored:
		return []string{
			style.Fg(color.Red)(icon.Get(icon.Fail) + " Unable to load video"),
			style.Faint("Please check your connection"),
		}
	case session.Idle, session.Initializing, session.Loading, session.Preloading, session.Destroyed:
		if !current.SegmentsReady {
			return []string{spinner + " Loading"}
		}
	}

	var line string
	if paused || !current.Playing {
		line = style.Fg(color.Yellow)(icon.Get(icon.Pause) + " Paused")
	} else {
		line = style.Fg(color.Green)(icon.Get(icon.Play) + " Playing")
	}

	if current.Height > 0 {
		line += "  " + style.Faint(fmt.Sprintf("%dp", current.Height))
	}
	return []string{line}
}

func progressLabel(position, duration float64) string {
	return fmt.Sprintf("%s / %s", media.FormatTime(position), media.FormatTime(duration))
}

// preloadBadge is "⚡ Ready", with the resume point when moving forward onto a saved item.
func preloadBadge(view feed.ItemView, direction media.Direction) (string, bool) {
	current, ok := view.Session.Get()
	if view.Mode != media.Preload || !ok || !current.Preloaded {
		return "", false
	}

	badge := icon.Get(icon.Ready) + " Ready"
	if view.Saved > 0 && direction == media.Forward {
		badge += " @ " + media.FormatTime(view.Saved)
	}
	return badge, true
}

func preloadBadges(snapshot feed.Snapshot) []string {
	var lines []string
	for i, view := range snapshot.Items {
		badge, ok := preloadBadge(view, snapshot.Direction)
		if !ok {
			continue
		}

		label := "Next"
		if i < snapshot.Current {
			label = "Previous"
		}
		lines = append(lines, fmt.Sprintf(
			"%s %s %s",
			style.Faint(label),
			style.Fg(color.Purple)("#"+view.Item.ID),
			style.Fg(style.SuccessColor)(badge),
		))
	}
	return lines
}

// rail draws one dot per item around the current one. Items with a saved position are marked.
func rail(snapshot feed.Snapshot, radius int) string {
	n := len(snapshot.Items)
	from := util.Clamp(snapshot.Current-radius, 0, util.Max(n-1, 0))
	to := util.Clamp(snapshot.Current+radius, 0, util.Max(n-1, 0))

	var dots []string
	if from > 0 {
		dots = append(dots, style.Faint("…"))
	}
	for i := from; i <= to && i < n; i++ {
		switch {
		case i == snapshot.Current:
			dots = append(dots, style.Fg(style.AccentColor)(icon.Get(icon.Current)))
		case snapshot.Items[i].Saved > 0:
			dots = append(dots, style.Fg(style.Peach)(icon.Get(icon.Saved)))
		default:
			dots = append(dots, style.Faint(icon.Get(icon.Item)))
		}
	}
	if to < n-1 {
		dots = append(dots, style.Faint("…"))
	}
	return strings.Join(dots, " ")
}

// scrollLabel shows the in-flight scroll position while it differs from the current item.
func scrollLabel(snapshot feed.Snapshot) string {
	if math.Abs(snapshot.Offset-float64(snapshot.Current)) < 0.01 && !snapshot.Scrolling {
		return ""
	}
	return fmt.Sprintf("↕ %.1f / %d", snapshot.Offset+1, len(snapshot.Items))
}
