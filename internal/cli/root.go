// Package cli implements the teamd command tree.
package cli

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// version can be overridden at build time via:
	// go build -ldflags "-X github.com/tnsengimana/autonomous-teams/internal/cli.version=1.2.3"
	version = "0.3.0"
	logo    = "\n" +
		"  _                           _\n" +
		" | |_ ___  __ _ _ __ ___   __| |\n" +
		" | __/ _ \\/ _` | '_ ` _ \\ / _` |\n" +
		" | ||  __/ (_| | | | | | | (_| |\n" +
		"  \\__\\___|\\__,_|_| |_| |_|\\__,_|\n"
)

var rootCmd = &cobra.Command{
	Use:   "teamd",
	Short: "teamd - autonomous agent teams",
	Long:  color.CyanString(logo) + "\nA daemon that runs teams of autonomous agents over a shared task queue and knowledge graph.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
