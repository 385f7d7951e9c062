package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/KLM-Nandhu/bentsblog/internal"
	"github.com/KLM-Nandhu/bentsblog/internal/transcript"
)

// transcriptCmd represents the transcript command
var transcriptCmd = &cobra.Command{
	Use:   "transcript [URL]",
	Short: "Fetch the transcript of a YouTube video",
	Long: `Fetch the transcript of a YouTube video.

The configured retrieval methods are shuffled and tried one at a time, with a
short random pause between attempts, until one returns a non-empty transcript.`,
	Example: `  # Print the transcript, one timestamped entry per line
  bentsblog transcript tAP1eZYEuKA

  # Save segments as JSON
  bentsblog transcript tAP1eZYEuKA --json -o transcript.json

  # Only try specific methods
  bentsblog transcript tAP1eZYEuKA --methods direct,ytdlp`,
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

		t, method, err := fetchTranscript(cmd.Context(), app, videoID)
		if err != nil {
			return fmt.Errorf("%s: %w", internal.UserMessage(err), err)
		}
		logger.WithFields(map[string]any{"method": method, "segments": len(t)}).Info("transcript fetched")

		asJSON, _ := cmd.Flags().GetBool("json")
		joined, _ := cmd.Flags().GetBool("joined")
		var data []byte
		switch {
		case asJSON:
			data, err = marshalJSON(struct {
				VideoID  string                `json:"video_id"`
				Method   string                `json:"method"`
				Segments transcript.Transcript `json:"segments"`
			}{videoID, method, t}, true)
			if err != nil {
				return fmt.Errorf("encoding transcript: %w", err)
			}
		case joined:
			data = []byte(transcript.Text(t) + "\n")
		default:
			data = []byte(transcriptLines(t))
		}

		output, _ := cmd.Flags().GetString("output")
		if output != "" {
			return writeOutput(output, data)
		}
		_, err = os.Stdout.Write(data)
		return err
	},
}

func init() {
	internal.AddTranscriptionFlags(transcriptCmd)
	transcriptCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
	transcriptCmd.Flags().Bool("json", false, "Output segments as JSON")
	transcriptCmd.Flags().Bool("joined", false, "Output entries joined on one line, as sent to the LLM")
	rootCmd.AddCommand(transcriptCmd)
}
