package version

import (
	"fmt"

	"github.com/reels-cli/reels/color"
	"github.com/reels-cli/reels/constant"
	"github.com/reels-cli/reels/icon"
	"github.com/reels-cli/reels/key"
	"github.com/reels-cli/reels/style"
	"github.com/reels-cli/reels/util"
	"github.com/spf13/viper"
)

// Notify prints a note when a newer release than the running one exists.
func Notify() {
	if !viper.GetBool(key.CliVersionCheck) {
		return
	}

	erase := util.PrintErasable(fmt.Sprintf("%s Checking for a new version...", icon.Get(icon.Progress)))
	latest, err := Latest()
	erase()
	if err != nil {
		return
	}
	if comp, err := Compare(latest, constant.Version); err != nil || comp <= 0 {
		return
	}

	fmt.Printf(`
%s New version is available %s %s
%s

`,
		style.Fg(color.Green)("▇▇▇"),
		style.Bold(latest),
		style.Faint(fmt.Sprintf("(You're on %s)", constant.Version)),
		style.Faint("https://github.com/reels-cli/reels/releases/tag/v"+latest),
	)
}
