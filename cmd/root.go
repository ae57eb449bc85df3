// Package cmd is the reels command line.
package cmd

import (
	"fmt"
	"os"
	"strings"

	cc "github.com/ivanpirog/coloredcobra"
	"github.com/reels-cli/reels/color"
	"github.com/reels-cli/reels/constant"
	"github.com/reels-cli/reels/icon"
	"github.com/reels-cli/reels/key"
	"github.com/reels-cli/reels/log"
	"github.com/reels-cli/reels/style"
	"github.com/reels-cli/reels/tui"
	"github.com/reels-cli/reels/util"
	"github.com/reels-cli/reels/version"
	"github.com/reels-cli/reels/where"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	rootCmd.Flags().BoolP("version", "v", false, "Print the application version")

	rootCmd.PersistentFlags().StringP("icons", "I", "", "Icons variant (emoji, nerd, plain, kaomoji, squares)")
	lo.Must0(rootCmd.RegisterFlagCompletionFunc("icons", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return icon.AvailableVariants(), cobra.ShellCompDirectiveDefault
	}))
	lo.Must0(viper.BindPFlag(key.IconsVariant, rootCmd.PersistentFlags().Lookup("icons")))

	rootCmd.PersistentFlags().String("endpoint", "", "Catalog endpoint returning the list of playlist URLs")
	lo.Must0(viper.BindPFlag(key.CatalogEndpoint, rootCmd.PersistentFlags().Lookup("endpoint")))

	rootCmd.Flags().String("id", "", "Open the feed at the reel with this id")
	rootCmd.Flags().BoolP("continue", "c", false, "Open the feed at the last watched reel")
	rootCmd.MarkFlagsMutuallyExclusive("id", "continue")

	rootCmd.Flags().Bool("native-hls", false, "Let mpv fetch HLS itself instead of the built-in engine")
	lo.Must0(viper.BindPFlag(key.PlayerNativeHLS, rootCmd.Flags().Lookup("native-hls")))

	rootCmd.Flags().Bool("autoplay", true, "Start playback without a key press")
	lo.Must0(viper.BindPFlag(key.PlayerAutoplay, rootCmd.Flags().Lookup("autoplay")))

	helpFunc := rootCmd.HelpFunc()
	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		helpFunc(cmd, args)
		version.Notify()
	})

	// stale mpv sockets from crashed runs
	go func() {
		_ = util.Delete(where.Sockets())
	}()
}

var rootCmd = &cobra.Command{
	Use:   constant.Reels,
	Short: "A vertical video feed in your terminal",
	Long: constant.AsciiArtLogo + "\n" +
		style.New().Italic(true).Foreground(color.HiRed).Render("    - A vertical video feed in your terminal"),
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		if cmd.Flags().Changed("version") {
			versionCmd.Run(versionCmd, args)
			return
		}

		CheckDependencies()

		options := tui.Options{
			ID:       lo.Must(cmd.Flags().GetString("id")),
			Continue: lo.Must(cmd.Flags().GetBool("continue")),
		}
		handleErr(tui.Run(&options))
	},
}

// Execute runs the command named by os.Args.
func Execute() {
	if viper.GetBool(key.CliColored) {
		cc.Init(&cc.Config{
			RootCmd:       rootCmd,
			Headings:      cc.HiCyan + cc.Bold + cc.Underline,
			Commands:      cc.HiYellow + cc.Bold,
			Example:       cc.Italic,
			ExecName:      cc.Bold,
			Flags:         cc.Bold,
			FlagsDataType: cc.Italic + cc.HiBlue,
		})
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func handleErr(err error) {
	if err != nil {
		log.Error(err)
		_, _ = fmt.Fprintf(os.Stderr, "%s %s\n", icon.Get(icon.Fail), strings.Trim(err.Error(), " \n"))
		os.Exit(1)
	}
}
