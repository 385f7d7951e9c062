package internal

import (
	"fmt"

	"github.com/spf13/cobra"
)

// AddTranscriptionFlags adds flags related to transcript retrieval
func AddTranscriptionFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("fallback-whisper", false, "Add Whisper audio transcription to the retrieval methods (costs money)")
	cmd.Flags().StringSlice("methods", nil, "Retrieval methods to try (direct, proxy, browser, relay, headers, ytdlp, whisper)")
	cmd.Flags().StringSlice("lang", nil, "Preferred caption languages in order")
}

// AddOpenAIFlags adds flags related to OpenAI API functionality
func AddOpenAIFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("model", "m", "", "OpenAI model for both reorganizing and writing")
	cmd.Flags().String("reorganize-model", "", "OpenAI model for reorganizing the transcript")
	cmd.Flags().String("blog-model", "", "OpenAI model for writing the blog post")
	cmd.Flags().StringP("prompt", "p", "", "Custom blog prompt template (string or file path)")
	cmd.Flags().String("reorganize-prompt", "", "Custom reorganize prompt template (string or file path)")
}

// ApplyFlags copies explicitly set command flags onto config and revalidates it.
func ApplyFlags(cmd *cobra.Command, config *Config) error {
	flags := cmd.Flags()
	setString := func(name string, dst *string) error {
		if f := flags.Lookup(name); f == nil || !f.Changed {
			return nil
		}
		v, err := flags.GetString(name)
		if err != nil {
			return fmt.Errorf("failed to get %s flag: %w", name, err)
		}
		*dst = v
		return nil
	}
	setSlice := func(name string, dst *[]string) error {
		if f := flags.Lookup(name); f == nil || !f.Changed {
			return nil
		}
		v, err := flags.GetStringSlice(name)
		if err != nil {
			return fmt.Errorf("failed to get %s flag: %w", name, err)
		}
		*dst = v
		return nil
	}

	var model string
	if err := setString("model", &model); err != nil {
		return err
	}
	if model != "" {
		config.ReorganizeModel = model
		config.BlogModel = model
	}

	for _, s := range []struct {
		name string
		dst  *string
	}{
		{"reorganize-model", &config.ReorganizeModel},
		{"blog-model", &config.BlogModel},
		{"prompt", &config.BlogPrompt},
		{"reorganize-prompt", &config.ReorganizePrompt},
	} {
		if err := setString(s.name, s.dst); err != nil {
			return err
		}
	}
	if err := setSlice("methods", &config.Methods); err != nil {
		return err
	}
	if err := setSlice("lang", &config.Languages); err != nil {
		return err
	}

	return config.Validate()
}

// WhisperFallback reports whether --fallback-whisper was given.
func WhisperFallback(cmd *cobra.Command) bool {
	enabled, _ := cmd.Flags().GetBool("fallback-whisper")
	return enabled
}

// ValidateOpenAIRequirements validates the OpenAI API key from config
func ValidateOpenAIRequirements(config *Config) error {
	return ValidateOpenAIAPIKey(config.OpenAIAPIKey)
}
