package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/KLM-Nandhu/bentsblog/internal"
)

var (
	config   *internal.Config
	logger   *logrus.Logger
	logClose = func() error { return nil }
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "bentsblog [YouTube URL or ID]",
	Short: "Turn YouTube videos into blog posts",
	Long: `bentsblog turns a YouTube video into a blog post.

It fetches the video's metadata, transcript and top comments, reorganizes
the transcript with an LLM and drafts an article from it. Transcripts are
retrieved by trying several independent methods in random order until one
succeeds.`,
	Example: `  # Write a blog post for a video (default behavior)
  bentsblog "https://www.youtube.com/watch?v=tAP1eZYEuKA"
  bentsblog tAP1eZYEuKA

  # Save the rendered HTML page
  bentsblog tAP1eZYEuKA -o post.html

  # Use a specific OpenAI model for both steps
  bentsblog "https://youtu.be/tAP1eZYEuKA" --model gpt-4o

  # Add Whisper transcription to the retrieval methods (costs money)
  bentsblog tAP1eZYEuKA --fallback-whisper`,
	SilenceUsage: true,
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return logClose()
	},
	Args: cobra.ExactArgs(1),
}

// setup loads the configuration and builds the logger once flags are parsed.
func setup(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := internal.InitConfig(configFile)
	if err != nil {
		return err
	}
	config = cfg

	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		config.Verbose = true
	}
	if quiet, _ := cmd.Flags().GetBool("quiet"); quiet {
		config.Quiet = true
	}

	logger, logClose = internal.NewLogger(config, logModeFor(cmd))

	if err := internal.EnsureDirs(config.ConfigDir, config.DataDir, config.CacheDir); err != nil {
		return fmt.Errorf("creating XDG directories: %w", err)
	}

	created, err := internal.EnsureDefaultFiles(config.ConfigDir)
	if err != nil {
		logger.WithError(err).Warn("failed to write default config files")
	}
	for _, path := range created {
		logger.WithField("path", path).Info("wrote default file")
	}
	return nil
}

func logModeFor(cmd *cobra.Command) internal.LogMode {
	for c := cmd; c != nil; c = c.Parent() {
		switch c {
		case serveCmd:
			return internal.LogServer
		case mcpCmd:
			if cmd == mcpCmd {
				return internal.LogMCP
			}
		}
	}
	return internal.LogCLI
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case <-sigCh:
			fmt.Fprintln(os.Stderr, "\nReceived interrupt signal. Cleaning up and shutting down...")
			cancel()
		case <-ctx.Done():
			return
		}

		// A second signal, or cleanup taking too long, forces exit.
		select {
		case <-sigCh:
		case <-time.After(5 * time.Second):
			fmt.Fprintln(os.Stderr, "Warning: shutdown timed out, forcing exit")
		}
		os.Exit(1)
	}()

	err := rootCmd.ExecuteContext(ctx)

	if config != nil && logger != nil {
		if cleanupErr := internal.CleanupTempDir(logger, config.TempDir); cleanupErr != nil {
			logger.WithError(cleanupErr).Warn("cleaning up temporary files")
		}
	}
	return err
}

func init() {
	// Assigned here: these reach rootCmd and would otherwise form an initialization cycle.
	rootCmd.PersistentPreRunE = setup
	rootCmd.RunE = runGenerate

	internal.AddTranscriptionFlags(rootCmd)
	internal.AddOpenAIFlags(rootCmd)
	addOutputFlags(rootCmd)
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output for debugging")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "Only print errors and the generated content")
	rootCmd.PersistentFlags().String("config", "", "Config file (default is $XDG_CONFIG_HOME/bentsblog/config.toml)")
}
