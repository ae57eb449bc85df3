package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"

	"github.com/charmbracelet/lipgloss"
	"github.com/reels-cli/reels/constant"
	"github.com/reels-cli/reels/icon"
	"github.com/reels-cli/reels/key"
	"github.com/reels-cli/reels/style"
	"github.com/spf13/viper"
)

// CheckDependencies exits unless the configured mpv can be found.
func CheckDependencies() {
	binary := viper.GetString(key.PlayerMPV)
	if binary == "" {
		binary = "mpv"
	}

	if _, err := exec.LookPath(binary); err != nil {
		printMissingDependencyError(binary)
		os.Exit(1)
	}
}

func installHint() string {
	switch runtime.GOOS {
	case constant.Darwin:
		return "brew install mpv"
	case constant.Linux:
		return "sudo apt install mpv"
	case constant.Windows:
		return "scoop install mpv"
	default:
		return ""
	}
}

func printMissingDependencyError(dep string) {
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(style.ErrorColor).
		Padding(1, 2).
		Margin(1, 0)

	title := style.New().Bold(true).Foreground(style.ErrorColor).Render(fmt.Sprintf("%s Missing player", icon.Get(icon.Fail)))
	body := style.New().Foreground(style.Text).Render(fmt.Sprintf("reels shows every reel in mpv, but %q was not found in your PATH.", dep))

	suggestion := ""
	if hint := installHint(); hint != "" {
		suggestion = fmt.Sprintf("\n\nTo install it, try running:\n  %s", style.New().Foreground(style.AccentColor).Bold(true).Render(hint))
	}
	suggestion += fmt.Sprintf("\n\nOr point %s at it.", style.Bold(key.PlayerMPV))

	fmt.Println(box.Render(
		lipgloss.JoinVertical(lipgloss.Left,
			title,
			"",
			body,
			suggestion,
		),
	))
}
