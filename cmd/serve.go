package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/KLM-Nandhu/bentsblog/internal"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve blog posts over HTTP",
	Long: `Serve a small web front end and JSON API.

Routes:
  GET /                        form to submit a video URL
  GET /blog?v=<url or id>      generated blog post page
  GET /api/transcript/<id>     transcript segments and the method that produced them
  GET /api/metadata/<id>       video metadata
  GET /api/comments/<id>       top comments (?limit=N)
  GET /healthz                 liveness check`,
	Example: `  # Serve on the configured address (default :8080)
  bentsblog serve

  # Serve on another port with a longer generation timeout
  bentsblog serve --addr :9000 --timeout 15m`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			config.ServeAddr = addr
		}
		timeout, _ := cmd.Flags().GetDuration("timeout")

		app, err := newApp(cmd, internal.WithUI(internal.NewSilentUIManager()))
		if err != nil {
			return err
		}
		defer app.Close()

		if config.OpenAIAPIKey == "" {
			logger.Warn("OPENAI_API_KEY is not set; /blog will fail but the transcript API still works")
		}
		logger.WithField("methods", app.Methods()).Info("transcript methods registered")

		return internal.NewServer(app, logger, timeout).Start(cmd.Context(), config.ServeAddr)
	},
}

func init() {
	internal.AddTranscriptionFlags(serveCmd)
	internal.AddOpenAIFlags(serveCmd)
	serveCmd.Flags().String("addr", "", "Listen address (default from config serve_addr)")
	serveCmd.Flags().Duration("timeout", 10*time.Minute, "Per-request timeout for blog generation")
	rootCmd.AddCommand(serveCmd)
}
