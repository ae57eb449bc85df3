// Package icon renders the symbols of the feed and the CLI in the variant picked by icons.variant.
package icon

import (
	"github.com/reels-cli/reels/key"
	"github.com/spf13/viper"
)

const (
	emoji   = "emoji"
	nerd    = "nerd"
	plain   = "plain"
	kaomoji = "kaomoji"
	squares = "squares"
)

// AvailableVariants lists every value icons.variant accepts.
func AvailableVariants() []string {
	return []string{emoji, nerd, plain, kaomoji, squares}
}

// Icon names a symbol.
type Icon int

const (
	Success Icon = iota
	Fail
	Progress
	Play
	Pause
	Ready
	Current
	Saved
	Item
	Network
	Warning
	Location
)

type iconDef struct {
	emoji   string
	nerd    string
	plain   string
	kaomoji string
	squares string
}

func (d *iconDef) Get() string {
	switch viper.GetString(key.IconsVariant) {
	case emoji:
		return d.emoji
	case nerd:
		return d.nerd
	case plain:
		return d.plain
	case kaomoji:
		return d.kaomoji
	case squares:
		return d.squares
	default:
		return ""
	}
}

var icons = map[Icon]*iconDef{
	Success: {
		emoji:   "🎉",
		nerd:    "",
		plain:   "✓",
		kaomoji: "(ᵔ◡ᵔ)",
		squares: "🟩",
	},
	Fail: {
		emoji:   "💀",
		nerd:    "",
		plain:   "✗",
		kaomoji: "(╯°□°）╯︵ ┻━┻",
		squares: "🟥",
	},
	Progress: {
		emoji:   "⏳",
		nerd:    "",
		plain:   "…",
		kaomoji: "(・_・ヾ",
		squares: "🟦",
	},
	Play: {
		emoji:   "▶️",
		nerd:    "",
		plain:   "▶",
		kaomoji: "ヽ(>∀<☆)ノ",
		squares: "🟩",
	},
	Pause: {
		emoji:   "⏸️",
		nerd:    "",
		plain:   "❚❚",
		kaomoji: "(-_-) zzZ",
		squares: "🟨",
	},
	Ready: {
		emoji:   "⚡",
		nerd:    "",
		plain:   "⚡",
		kaomoji: "(•̀ᴗ•́)و",
		squares: "🟪",
	},
	Current: {
		emoji:   "🔵",
		nerd:    "",
		plain:   "●",
		kaomoji: "◉",
		squares: "■",
	},
	Saved: {
		emoji:   "🟠",
		nerd:    "",
		plain:   "◍",
		kaomoji: "◎",
		squares: "▣",
	},
	Item: {
		emoji:   "⚪",
		nerd:    "",
		plain:   "○",
		kaomoji: "○",
		squares: "□",
	},
	Network: {
		emoji:   "📶",
		nerd:    "",
		plain:   "≋",
		kaomoji: "((( )))",
		squares: "🟦",
	},
	Warning: {
		emoji:   "⚠️",
		nerd:    "",
		plain:   "!",
		kaomoji: "(⊙_⊙;)",
		squares: "🟧",
	},
	Location: {
		emoji:   "🔗",
		nerd:    "",
		plain:   "@",
		kaomoji: "(っ˘ڡ˘ς)",
		squares: "🟫",
	},
}

// Get renders i in the configured variant, or "" for an unknown variant.
func Get(i Icon) string {
	def, ok := icons[i]
	if !ok {
		return ""
	}
	return def.Get()
}
