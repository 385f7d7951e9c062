package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/KLM-Nandhu/bentsblog/internal"
	"github.com/KLM-Nandhu/bentsblog/internal/transcript"
)

// newApp applies command flags to the config and builds the App.
func newApp(cmd *cobra.Command, opts ...internal.AppOption) (*internal.App, error) {
	if err := internal.ApplyFlags(cmd, config); err != nil {
		return nil, err
	}
	opts = append([]internal.AppOption{internal.WithWhisperFallback(internal.WhisperFallback(cmd))}, opts...)
	return internal.NewApp(config, logger, opts...)
}

// videoIDArg resolves a command argument to a video ID, suggesting a command for likely typos.
func videoIDArg(arg string) (string, error) {
	parsed := internal.ParseArg(arg)
	if parsed.IsValid() {
		return parsed.ID, nil
	}
	if parsed.ContentType == internal.ContentTypeCommand {
		names := make([]string, 0, len(rootCmd.Commands()))
		for _, c := range rootCmd.Commands() {
			names = append(names, c.Name())
		}
		return "", fmt.Errorf("'%s' doesn't look like a YouTube URL or video ID: %s", arg, parsed.SuggestCorrection(names))
	}
	return "", parsed.Error
}

// interactive reports whether the user can answer prompts.
func interactive() bool {
	return isatty.IsTerminal(os.Stdin.Fd()) && !config.Quiet
}

// fetchTranscript runs the retrieval methods, offering paid Whisper
// transcription when every method failed and Whisper was not already tried.
func fetchTranscript(ctx context.Context, app *internal.App, videoID string) (transcript.Transcript, string, error) {
	t, method, err := app.Transcript(ctx, videoID)
	if err == nil {
		return t, method, nil
	}
	if !offerWhisper(app, err) {
		return nil, "", err
	}

	t, werr := app.TranscribeWithWhisper(ctx, videoID)
	if werr != nil {
		return nil, "", fmt.Errorf("%w (whisper: %v)", err, werr)
	}
	return t, internal.WhisperMethodName, nil
}

func offerWhisper(app *internal.App, err error) bool {
	if !errors.Is(err, transcript.ErrAllMethodsExhausted) || !interactive() || config.OpenAIAPIKey == "" {
		return false
	}
	for _, m := range app.Methods() {
		if m == internal.WhisperMethodName {
			return false
		}
	}
	return internal.AskUser("No transcript could be fetched. Transcribe the audio with OpenAI Whisper ($$$)?")
}

// transcriptLines formats one "HH:MM:SS: text" entry per line.
func transcriptLines(t transcript.Transcript) string {
	var b strings.Builder
	for _, s := range t {
		fmt.Fprintf(&b, "%s: %s\n", transcript.FormatTimestamp(s.Start), s.Text)
	}
	return b.String()
}

// marshalJSON encodes v, indented when pretty is set.
func marshalJSON(v any, pretty bool) ([]byte, error) {
	if pretty {
		return json.MarshalIndent(v, "", "  ")
	}
	return json.Marshal(v)
}

// writeOutput writes data to path, creating parent directories.
func writeOutput(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := internal.EnsureDirs(dir); err != nil {
			return err
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
