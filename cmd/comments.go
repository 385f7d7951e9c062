package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KLM-Nandhu/bentsblog/internal"
)

// commentsCmd represents the comments command
var commentsCmd = &cobra.Command{
	Use:   "comments [URL]",
	Short: "Show the top comments of a YouTube video",
	Long: `Show the top comments of a YouTube video in relevance order.

Requires a YouTube Data API key (YOUTUBE_API_KEY).`,
	Example: `  # Show the top 5 comments
  bentsblog comments tAP1eZYEuKA

  # Show 20 comments as JSON
  bentsblog comments tAP1eZYEuKA --limit 20 --json`,
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

		limit, _ := cmd.Flags().GetInt("limit")
		comments, err := app.Comments(cmd.Context(), videoID, limit)
		if err != nil {
			return fmt.Errorf("%s: %w", internal.UserMessage(err), err)
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			data, err := marshalJSON(comments, true)
			if err != nil {
				return fmt.Errorf("encoding comments: %w", err)
			}
			_, err = fmt.Fprintln(os.Stdout, string(data))
			return err
		}

		if len(comments) == 0 {
			fmt.Fprintln(os.Stderr, "No comments.")
			return nil
		}
		var b strings.Builder
		for _, c := range comments {
			fmt.Fprintf(&b, "**%s** (%d likes)\n\n%s\n\n---\n\n", c.Author, c.LikeCount, internal.CommentMarkdown(c))
		}
		return internal.WriteMarkdown(os.Stdout, b.String())
	},
}

func init() {
	commentsCmd.Flags().Int("limit", 5, "Maximum number of comments")
	commentsCmd.Flags().Bool("json", false, "Output comments as JSON")
	rootCmd.AddCommand(commentsCmd)
}
