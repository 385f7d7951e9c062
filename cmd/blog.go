package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KLM-Nandhu/bentsblog/internal"
)

// blogCmd represents the blog command
var blogCmd = &cobra.Command{
	Use:   "blog [URL]",
	Short: "Generate a blog post from a YouTube video",
	Long: `Generate a blog post from a YouTube video.

The transcript is reorganized by an LLM in fixed windows, then a second
call drafts a Markdown article with an introduction, key points and a
conclusion. Video metadata and the top comments are included in the output.`,
	Example: `  # Print the post rendered for the terminal
  bentsblog blog tAP1eZYEuKA

  # Write the HTML page, including the organized transcript
  bentsblog blog tAP1eZYEuKA -o post.html --with-transcript

  # Emit the whole result as JSON
  bentsblog blog tAP1eZYEuKA --json

  # Use a custom blog prompt template
  bentsblog blog tAP1eZYEuKA --prompt ./my-blog-prompt.txt`,
	Args: cobra.ExactArgs(1),
}

func addOutputFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("output", "o", "", "Output file; .html, .json or .md selects the format (default: stdout)")
	cmd.Flags().Bool("html", false, "Output the rendered HTML page")
	cmd.Flags().Bool("json", false, "Output the full result as JSON")
	cmd.Flags().Bool("with-transcript", false, "Include the organized transcript in HTML output")
}

// runGenerate writes a blog post for the video named by args[0].
func runGenerate(cmd *cobra.Command, args []string) error {
	if err := internal.ValidateOpenAIRequirements(config); err != nil {
		return err
	}

	videoID, err := videoIDArg(args[0])
	if err != nil {
		return err
	}

	app, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx := cmd.Context()
	res, err := app.Generate(ctx, videoID)
	if err != nil && offerWhisper(app, err) {
		t, werr := app.TranscribeWithWhisper(ctx, videoID)
		if werr != nil {
			return fmt.Errorf("transcribing with whisper: %w", werr)
		}
		res, err = app.GenerateWith(ctx, videoID, t, internal.WhisperMethodName)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", internal.UserMessage(err), err)
	}

	return writeResult(cmd, app, res)
}

func writeResult(cmd *cobra.Command, app *internal.App, res *internal.BlogResult) error {
	output, _ := cmd.Flags().GetString("output")
	asHTML, _ := cmd.Flags().GetBool("html")
	asJSON, _ := cmd.Flags().GetBool("json")
	withTranscript, _ := cmd.Flags().GetBool("with-transcript")

	switch strings.ToLower(filepath.Ext(output)) {
	case ".html", ".htm":
		asHTML = true
	case ".json":
		asJSON = true
	}

	renderer := app.Renderer()
	var data []byte
	var err error
	switch {
	case asJSON:
		data, err = marshalJSON(res, true)
	case asHTML:
		data, err = renderer.BlogHTML(res, withTranscript)
	case output != "":
		data = []byte(renderer.Markdown(res))
	default:
		return internal.WriteMarkdown(os.Stdout, renderer.Markdown(res))
	}
	if err != nil {
		return err
	}

	if output == "" {
		_, err := os.Stdout.Write(data)
		return err
	}
	if err := writeOutput(output, data); err != nil {
		return err
	}
	if !config.Quiet {
		fmt.Fprintf(os.Stderr, "Blog post written to %s (generated in %.2f seconds)\n", output, res.Elapsed.Seconds())
	}
	return nil
}

func init() {
	blogCmd.RunE = runGenerate
	internal.AddTranscriptionFlags(blogCmd)
	internal.AddOpenAIFlags(blogCmd)
	addOutputFlags(blogCmd)
	rootCmd.AddCommand(blogCmd)
}
