package main

import (
	"time"

	"github.com/spf13/cobra"
)

// now is replaced in tests.
var now = time.Now

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "gardenctl",
		Short:         "Operate the garden-tender bot",
		Long:          "gardenctl fetches Grow A Garden stock on demand, prints reset countdowns, migrates the bot database and manages the stored Twitch chat token.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.AddCommand(
		newStockCmd(),
		newResetsCmd(),
		newDBCmd(),
		newTokenCmd(),
	)
	return rootCmd
}
