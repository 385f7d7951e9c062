package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// metadataCmd represents the metadata command
var metadataCmd = &cobra.Command{
	Use:   "metadata [URL]",
	Short: "Get metadata from YouTube video",
	Long: `Get metadata from YouTube video.

Uses the YouTube Data API when YOUTUBE_API_KEY is set, yt-dlp otherwise.`,
	Example: `  # Get metadata from YouTube video
  bentsblog metadata "https://www.youtube.com/watch?v=tAP1eZYEuKA"
  bentsblog metadata tAP1eZYEuKA

  # Save metadata to file
  bentsblog metadata tAP1eZYEuKA -o metadata.json

  # Format output as pretty JSON
  bentsblog metadata tAP1eZYEuKA --pretty`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		videoID, err := videoIDArg(args[0])
		if err != nil {
			return err
		}

		app, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		metadata, err := app.Metadata(cmd.Context(), videoID)
		if err != nil {
			return err
		}

		pretty, _ := cmd.Flags().GetBool("pretty")
		jsonData, err := marshalJSON(metadata, pretty)
		if err != nil {
			return fmt.Errorf("error converting metadata to JSON: %w", err)
		}

		outputFile, _ := cmd.Flags().GetString("output")
		if outputFile != "" {
			return writeOutput(outputFile, jsonData)
		}

		_, err = fmt.Fprintln(os.Stdout, string(jsonData))
		return err
	},
}

func init() {
	metadataCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
	metadataCmd.Flags().Bool("pretty", false, "Format output as pretty JSON")
	rootCmd.AddCommand(metadataCmd)
}
