package main

import (
	"github.com/reels-cli/reels/cmd"
	"github.com/reels-cli/reels/config"
	"github.com/reels-cli/reels/log"
	"github.com/samber/lo"
)

func main() {
	lo.Must0(config.Setup())
	lo.Must0(log.Setup())

	cmd.Execute()
}
