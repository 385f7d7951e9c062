package internal

import (
	"bufio"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"
)

// ErrInvalidVideo is returned when an argument is neither a video ID nor a YouTube video URL.
var ErrInvalidVideo = errors.New("not a YouTube video ID or URL")

var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// path prefixes that carry the video ID as the next path element
var videoPathPrefixes = []string{"shorts", "embed", "live", "v", "e"}

// ParseVideoArg normalizes a YouTube video ID or URL into a video ID.
// Accepted forms: bare IDs, watch?v= URLs, youtu.be short links and
// /shorts/, /embed/, /live/ paths on any youtube.com subdomain.
func ParseVideoArg(arg string) (string, error) {
	arg = strings.TrimSpace(arg)
	if IsValidYouTubeID(arg) {
		return arg, nil
	}

	raw := arg
	if !strings.Contains(raw, "://") && (strings.HasPrefix(raw, "youtu") || strings.Contains(raw, "youtube.com")) {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("%w: %s", ErrInvalidVideo, arg)
	}

	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	var id string
	switch {
	case host == "youtu.be":
		id = strings.Trim(u.Path, "/")
	case host == "youtube.com" || strings.HasSuffix(host, ".youtube.com") || host == "youtube-nocookie.com":
		if v := u.Query().Get("v"); v != "" {
			id = v
			break
		}
		parts := strings.Split(strings.Trim(u.Path, "/"), "/")
		if len(parts) == 2 {
			for _, prefix := range videoPathPrefixes {
				if parts[0] == prefix {
					id = parts[1]
				}
			}
		}
	default:
		return "", fmt.Errorf("%w: not a YouTube URL: %s", ErrInvalidVideo, arg)
	}

	if !IsValidYouTubeID(id) {
		return "", fmt.Errorf("%w: could not extract video ID from %s", ErrInvalidVideo, arg)
	}
	return id, nil
}

// WatchURL returns the canonical watch page URL for a video ID.
func WatchURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + url.QueryEscape(videoID)
}

// AskUser is a variable that holds the function for asking user confirmation
// This allows it to be replaced in tests
var AskUser = func(message string) bool {
	fmt.Fprintf(os.Stderr, "%s (y/N): ", message)
	scanner := bufio.NewScanner(os.Stdin)
	if scanner.Scan() {
		response := strings.ToLower(strings.TrimSpace(scanner.Text()))
		return strings.HasPrefix(response, "y")
	}
	if err := scanner.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "Error reading input: %v\n", err)
	}
	return false
}

// CleanupTempDir purges files from a temporary directory
func CleanupTempDir(log logrus.FieldLogger, tempDir string) error {
	if _, err := os.Stat(tempDir); os.IsNotExist(err) {
		return nil
	}

	entries, err := os.ReadDir(tempDir)
	if err != nil {
		return fmt.Errorf("reading temp directory: %w", err)
	}

	for _, entry := range entries {
		filePath := filepath.Join(tempDir, entry.Name())
		if err := os.RemoveAll(filePath); err != nil {
			log.WithError(err).WithField("path", filePath).Warn("failed to remove temporary file")
		}
	}

	if err := os.Remove(tempDir); err != nil {
		log.WithError(err).WithField("path", tempDir).Debug("could not remove temp directory")
	}
	return nil
}

// FileExists checks if a file exists
func FileExists(filename string) bool {
	_, err := os.Stat(filename)
	return !os.IsNotExist(err)
}

// EnsureDirs creates directories if needed
func EnsureDirs(dirs ...string) error {
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	return nil
}

// cleanupFiles removes temporary files
func cleanupFiles(log logrus.FieldLogger, files ...string) {
	for _, file := range files {
		if err := os.Remove(file); err != nil && !os.IsNotExist(err) {
			log.WithError(err).WithField("file", file).Warn("failed to remove file")
		}
	}
}

// IsValidYouTubeID checks if a string looks like a valid YouTube video ID
func IsValidYouTubeID(id string) bool {
	return videoIDPattern.MatchString(id)
}

// IsLikelyCommand checks if a string looks like it might be a mistyped command
func IsLikelyCommand(arg string) bool {
	if strings.Contains(arg, "/") || strings.Contains(arg, ".") {
		return false
	}
	return len(arg) <= 10 && !IsValidYouTubeID(arg)
}

// ValidateOpenAIAPIKey checks if the OpenAI API key is set and returns a standardized error if not
func ValidateOpenAIAPIKey(apiKey string) error {
	if apiKey == "" {
		return fmt.Errorf("OpenAI API key is required - set it in config.toml or OPENAI_API_KEY environment variable")
	}
	return nil
}

// TruncateRunes returns the first n runes of s; n <= 0 returns s unchanged.
func TruncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
