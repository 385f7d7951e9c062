package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
)

// pathsCmd represents the paths command
var pathsCmd = &cobra.Command{
	Use:   "paths",
	Short: "Show paths used by the application",
	Example: `  # Show all application paths
  bentsblog paths`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Config directory: %s\n", config.ConfigDir)
		fmt.Printf("Data directory: %s\n", config.DataDir)
		fmt.Printf("Cache directory: %s\n", config.CacheDir)
		fmt.Printf("Temporary audio directory: %s\n", config.TempDir)
		fmt.Printf("Prompt templates: %s, %s\n",
			filepath.Join(config.ConfigDir, "reorganize.txt"),
			filepath.Join(config.ConfigDir, "blog.txt"))
		fmt.Printf("MCP log: %s\n", filepath.Join(config.CacheDir, "mcp.log"))
	},
}

func init() {
	rootCmd.AddCommand(pathsCmd)
}
