package cmd

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/KLM-Nandhu/bentsblog/internal"
	"github.com/KLM-Nandhu/bentsblog/internal/transcript"
)

var methodDescriptions = map[string]string{
	"direct":                   "caption track listing and timedtext download",
	"proxy":                    "same as direct, through a public proxy",
	"browser":                  "headless Chrome renders the watch page",
	"relay":                    "third-party transcript service",
	"headers":                  "browser-like TLS fingerprint and headers",
	"ytdlp":                    "yt-dlp subtitle download",
	internal.WhisperMethodName: "download audio and transcribe with OpenAI Whisper (paid)",
}

// methodsCmd lists the transcript retrieval methods.
var methodsCmd = &cobra.Command{
	Use:   "methods",
	Short: "List transcript retrieval methods",
	Example: `  # Show which methods are enabled
  bentsblog methods

  # Check the effect of flags
  bentsblog methods --methods direct,ytdlp --fallback-whisper`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		enabled := app.Methods()
		for _, name := range append(slices.Clone(transcript.KnownMethods), internal.WhisperMethodName) {
			mark := " "
			if slices.Contains(enabled, name) {
				mark = "*"
			}
			fmt.Printf("%s %-8s %s\n", mark, name, methodDescriptions[name])
		}
		return nil
	},
}

func init() {
	internal.AddTranscriptionFlags(methodsCmd)
	rootCmd.AddCommand(methodsCmd)
}
