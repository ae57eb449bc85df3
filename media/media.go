// Package media holds the feed's domain types shared by the catalog, the feed controller,
// playback sessions and location sync.
package media

import (
	"fmt"
	"math"
)

// Item is a single playable entry of the feed. Items are created once from the catalog and
// never mutated.
type Item struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

func (i Item) String() string {
	return fmt.Sprintf("#%s %s", i.ID, i.URL)
}

// LoadMode controls how aggressively a session fetches data for an item.
type LoadMode int

const (
	None LoadMode = iota
	Preload
	Full
)

func (m LoadMode) String() string {
	switch m {
	case Preload:
		return "preload"
	case Full:
		return "full"
	default:
		return "none"
	}
}

// Direction is the direction of the navigation that made an item current.
type Direction int

const (
	Forward Direction = iota
	Backward
)

func (d Direction) String() string {
	if d == Backward {
		return "backward"
	}
	return "forward"
}

// DirectionOf infers the direction of a move from one index to another.
func DirectionOf(from, to int) Direction {
	if to < from {
		return Backward
	}
	return Forward
}

// FormatTime renders seconds as M:SS.
func FormatTime(seconds float64) string {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		return "0:00"
	}
	total := int(seconds)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
