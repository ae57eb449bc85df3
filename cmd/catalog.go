package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/reels-cli/reels/catalog"
	"github.com/reels-cli/reels/color"
	"github.com/reels-cli/reels/icon"
	"github.com/reels-cli/reels/key"
	"github.com/reels-cli/reels/location"
	"github.com/reels-cli/reels/media"
	"github.com/reels-cli/reels/style"
	"github.com/reels-cli/reels/util"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	rootCmd.AddCommand(catalogCmd)
	catalogCmd.SetOut(os.Stdout)
	catalogCmd.Flags().BoolP("json", "j", false, "Print as JSON")
}

type catalogEntry struct {
	ID       string `json:"id"`
	URL      string `json:"url"`
	Location string `json:"location"`
}

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "List the reels of the feed",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		timeout := time.Duration(viper.GetInt(key.CatalogTimeout)) * time.Second
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		erase := util.PrintErasable(fmt.Sprintf("%s Loading videos...", icon.Get(icon.Progress)))
		items, err := catalog.Fetch(ctx, viper.GetString(key.CatalogEndpoint))
		erase()
		handleErr(err)

		base := viper.GetString(key.LocationBase)
		entries := lo.Map(items, func(item media.Item, _ int) catalogEntry {
			return catalogEntry{ID: item.ID, URL: item.URL, Location: location.Format(base, item.ID)}
		})

		if lo.Must(cmd.Flags().GetBool("json")) {
			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			handleErr(encoder.Encode(entries))
			return
		}

		for _, entry := range entries {
			cmd.Printf("%s %s\n", style.Fg(color.Purple)("#"+entry.ID), entry.URL)
		}
		cmd.Println(style.Faint(util.Quantify(len(entries), "reel", "reels")))
	},
}
