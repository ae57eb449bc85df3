package feed

import (
	"time"

	"github.com/reels-cli/reels/media"
)

const (
	// PreloadWindow is how many items ahead of the current one are preloaded.
	PreloadWindow = 2

	// ScrollDebounce is the quiet period after which a scroll counts as settled.
	ScrollDebounce = 80 * time.Millisecond

	// ScrollSettle is how long a programmatic scroll takes before its navigation commits.
	ScrollSettle = 250 * time.Millisecond
)

// ModeOf derives the load mode of the item at index when current is the active index of a feed
// of n items.
func ModeOf(index, current, n int) media.LoadMode {
	switch {
	case index < 0 || index >= n:
		return media.None
	case index == current:
		return media.Full
	case index > current && index <= current+PreloadWindow:
		return media.Preload
	default:
		return media.None
	}
}
