package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KLM-Nandhu/bentsblog/internal"
)

var (
	version = "dev" // overridden at build time via -ldflags
	commit  = ""
	date    = ""
)

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Example: `  # Show version information
  bentsblog version`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("%s v%s (commit: %s, built %s)\n", internal.AppName, version, commit, date)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
