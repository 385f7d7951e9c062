package internal

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
)

// Prompt template names; each has an embedded default and an optional
// override file of the same name in the config directory.
const (
	PromptReorganize = "reorganize"
	PromptBlog       = "blog"
)

const (
	reorganizeSystemPrompt = "You are a helpful assistant that organizes video transcripts without altering their content."
	blogSystemPrompt       = "You are a skilled content writer who creates engaging and informative blog posts from YouTube video transcripts."
)

// PromptData for template injection
type PromptData struct {
	Title       string
	Channel     string
	Description string
	Transcript  string
}

// PromptManager handles loading and processing prompt templates
type PromptManager struct {
	configDir string
	overrides map[string]string
}

// NewPromptManager creates a prompt manager. Overrides map a template name to
// either a file path or an inline template string.
func NewPromptManager(configDir string, overrides map[string]string) *PromptManager {
	pm := &PromptManager{configDir: configDir, overrides: map[string]string{}}
	for name, setting := range overrides {
		if setting != "" {
			pm.overrides[name] = setting
		}
	}
	return pm
}

// ReorganizePrompt builds the prompt for one transcript window.
func (pm *PromptManager) ReorganizePrompt(chunk string) (string, error) {
	return pm.render(PromptReorganize, PromptData{Transcript: chunk})
}

// BlogPrompt builds the article prompt from the organized transcript excerpt and video metadata.
func (pm *PromptManager) BlogPrompt(excerpt string, info *VideoInfo) (string, error) {
	data := PromptData{Transcript: excerpt}
	if info != nil {
		data.Title = info.Title
		data.Channel = info.Channel
		data.Description = info.Description
	}
	return pm.render(PromptBlog, data)
}

// templateSource resolves a template: explicit override, then the config
// directory copy, then the embedded default.
func (pm *PromptManager) templateSource(name string) (string, error) {
	if setting, ok := pm.overrides[name]; ok {
		if IsLikelyFilePath(setting) && FileExists(setting) {
			content, err := os.ReadFile(setting)
			if err != nil {
				return "", fmt.Errorf("reading prompt template: %w", err)
			}
			return string(content), nil
		}
		return setting, nil
	}

	if pm.configDir != "" {
		path := filepath.Join(pm.configDir, name+".txt")
		if FileExists(path) {
			content, err := os.ReadFile(path)
			if err != nil {
				return "", fmt.Errorf("reading prompt template: %w", err)
			}
			return string(content), nil
		}
	}

	content, err := defaultFS.ReadFile("defaults/" + name + ".txt")
	if err != nil {
		return "", fmt.Errorf("unknown prompt template %q: %w", name, err)
	}
	return string(content), nil
}

func (pm *PromptManager) render(name string, data PromptData) (string, error) {
	source, err := pm.templateSource(name)
	if err != nil {
		return "", err
	}

	tmpl, err := template.New(name).Parse(source)
	if err != nil {
		return "", fmt.Errorf("parsing %s prompt template: %w", name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("executing %s prompt template: %w", name, err)
	}
	return buf.String(), nil
}

// IsLikelyFilePath uses heuristics to determine if a string is likely a file path
func IsLikelyFilePath(s string) bool {
	if strings.Contains(s, "{{") {
		return false
	}

	if strings.Contains(s, "/") || strings.Contains(s, "\\") {
		return true
	}

	if strings.HasSuffix(s, ".txt") || strings.HasSuffix(s, ".md") ||
		strings.HasSuffix(s, ".template") || strings.HasSuffix(s, ".tmpl") {
		return true
	}

	if len(s) > 200 {
		return false
	}

	// No spaces or newlines reads as a bare file name
	return !strings.Contains(s, " ") && !strings.Contains(s, "\n")
}
