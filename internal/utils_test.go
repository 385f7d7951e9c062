package internal

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVideoArg(t *testing.T) {
	tests := []struct {
		name string
		arg  string
		want string
	}{
		{"bare id", "dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"bare id with spaces", "  dQw4w9WgXcQ\n", "dQw4w9WgXcQ"},
		{"watch url", "https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"watch url with extra params", "https://www.youtube.com/watch?list=PL123&v=dQw4w9WgXcQ&t=42s", "dQw4w9WgXcQ"},
		{"no scheme", "youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"mobile", "https://m.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"short link", "https://youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"short link with time", "youtu.be/dQw4w9WgXcQ?t=10", "dQw4w9WgXcQ"},
		{"shorts", "https://www.youtube.com/shorts/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"embed", "https://www.youtube.com/embed/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"live", "https://www.youtube.com/live/dQw4w9WgXcQ?feature=share", "dQw4w9WgXcQ"},
		{"nocookie", "https://www.youtube-nocookie.com/embed/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseVideoArg(tt.arg)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseVideoArgRejects(t *testing.T) {
	for _, arg := range []string{
		"",
		"short",
		"https://vimeo.com/123456789",
		"https://www.youtube.com/watch?v=tooshort",
		"https://www.youtube.com/playlist?list=PL590L5WQmH8fJ54F369BLDSqIwcs-TCfs",
		"https://www.youtube.com/@channel",
		"https://youtu.be/",
	} {
		t.Run(arg, func(t *testing.T) {
			_, err := ParseVideoArg(arg)
			assert.ErrorIs(t, err, ErrInvalidVideo)
		})
	}
}

func TestWatchURL(t *testing.T) {
	assert.Equal(t, "https://www.youtube.com/watch?v=dQw4w9WgXcQ", WatchURL("dQw4w9WgXcQ"))
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "héll", TruncateRunes("héllo", 4))
	assert.Equal(t, "héllo", TruncateRunes("héllo", 5))
	assert.Equal(t, "héllo", TruncateRunes("héllo", 50))
	assert.Equal(t, "héllo", TruncateRunes("héllo", 0))
	assert.Equal(t, "日本", TruncateRunes("日本語", 2))
}

func TestIsLikelyCommand(t *testing.T) {
	assert.True(t, IsLikelyCommand("transcrpt"))
	assert.True(t, IsLikelyCommand("serv"))
	assert.False(t, IsLikelyCommand("dQw4w9WgXcQ"))
	assert.False(t, IsLikelyCommand("youtu.be/x"))
	assert.False(t, IsLikelyCommand("averyveryverylongargument"))
}

func TestValidateOpenAIAPIKey(t *testing.T) {
	assert.Error(t, ValidateOpenAIAPIKey(""))
	assert.NoError(t, ValidateOpenAIAPIKey("sk-test"))
}

func TestCleanupTempDir(t *testing.T) {
	log, _ := test.NewNullLogger()
	dir := filepath.Join(t.TempDir(), "temp_chunks")
	require.NoError(t, EnsureDirs(filepath.Join(dir, "nested")))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "chunk_000.mp3"), []byte("x"), 0644))

	require.NoError(t, CleanupTempDir(log, dir))
	assert.False(t, FileExists(dir))

	// missing directory is not an error
	require.NoError(t, CleanupTempDir(log, dir))
}

func TestCleanupFilesLogsFailures(t *testing.T) {
	log, hook := test.NewNullLogger()
	dir := t.TempDir()
	file := filepath.Join(dir, "a.mp3")
	require.NoError(t, os.WriteFile(file, nil, 0644))

	cleanupFiles(log, file, filepath.Join(dir, "missing.mp3"))
	assert.False(t, FileExists(file))
	for _, e := range hook.AllEntries() {
		assert.NotEqual(t, logrus.WarnLevel, e.Level, "missing files are not worth a warning")
	}
}
