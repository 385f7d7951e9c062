package cmd

import (
	"fmt"
	"os"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"

	"github.com/KLM-Nandhu/bentsblog/internal"
)

// cpCmd copies the transcript to the system clipboard instead of printing to stdout.
var cpCmd = &cobra.Command{
	Use:   "cp [URL]",
	Short: "Copy a transcript or blog post to the clipboard",
	Example: `  # Copy the transcript
  bentsblog cp "https://www.youtube.com/watch?v=tAP1eZYEuKA"
  bentsblog cp tAP1eZYEuKA

  # Copy the generated blog post as Markdown
  bentsblog cp tAP1eZYEuKA --blog`,
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

		var content, what string
		if blog, _ := cmd.Flags().GetBool("blog"); blog {
			if err := internal.ValidateOpenAIRequirements(config); err != nil {
				return err
			}
			res, err := app.Generate(cmd.Context(), videoID)
			if err != nil {
				return fmt.Errorf("%s: %w", internal.UserMessage(err), err)
			}
			content, what = app.Renderer().Markdown(res), "Blog post"
		} else {
			t, _, err := fetchTranscript(cmd.Context(), app, videoID)
			if err != nil {
				return fmt.Errorf("%s: %w", internal.UserMessage(err), err)
			}
			content, what = transcriptLines(t), "Transcript"
		}

		if err := clipboard.WriteAll(content); err != nil {
			return fmt.Errorf("copying to clipboard: %w", err)
		}

		if !config.Quiet {
			fmt.Fprintf(os.Stderr, "%s copied to clipboard\n", what)
		}
		return nil
	},
}

func init() {
	internal.AddTranscriptionFlags(cpCmd)
	internal.AddOpenAIFlags(cpCmd)
	cpCmd.Flags().Bool("blog", false, "Copy the generated blog post instead of the transcript")
	rootCmd.AddCommand(cpCmd)
}
