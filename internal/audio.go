package internal

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// CommandRunner executes external commands
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// DefaultCommandRunner implements CommandRunner
type DefaultCommandRunner struct{}

func (r *DefaultCommandRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	return cmd.CombinedOutput()
}

// AudioChunk is one piece of a split audio file.
type AudioChunk struct {
	Path     string
	Start    float64
	Duration float64
}

// Audio handles audio file operations using FFmpeg
type Audio struct {
	cmdRunner CommandRunner
	tempDir   string
	log       logrus.FieldLogger
}

// NewAudio creates a new audio processor
func NewAudio(cmdRunner CommandRunner, tempDir string, log logrus.FieldLogger) *Audio {
	return &Audio{
		cmdRunner: cmdRunner,
		tempDir:   tempDir,
		log:       log,
	}
}

// Duration returns the audio file duration in seconds
func (a *Audio) Duration(ctx context.Context, audioFile string) (float64, error) {
	output, err := a.cmdRunner.Run(ctx, "ffprobe",
		"-i", audioFile,
		"-show_entries", "format=duration",
		"-v", "quiet",
		"-of", "csv=p=0")
	if err != nil {
		return 0, fmt.Errorf("ffprobe failed: %w\nOutput: %s", err, string(output))
	}

	duration, err := strconv.ParseFloat(strings.TrimSpace(string(output)), 64)
	if err != nil {
		return 0, fmt.Errorf("parsing duration: %w", err)
	}
	return duration, nil
}

// SplitBySize splits audioFile into as many equal-length chunks as needed to
// keep each under limit bytes. A file already under the limit is returned as
// a single chunk covering its whole duration.
func (a *Audio) SplitBySize(ctx context.Context, audioFile string, limit int64) ([]AudioChunk, error) {
	info, err := os.Stat(audioFile)
	if err != nil {
		return nil, fmt.Errorf("getting audio file info: %w", err)
	}

	duration, err := a.Duration(ctx, audioFile)
	if err != nil {
		return nil, fmt.Errorf("getting audio duration: %w", err)
	}

	numChunks := int(math.Ceil(float64(info.Size()) / float64(limit)))
	if numChunks <= 1 {
		return []AudioChunk{{Path: audioFile, Duration: duration}}, nil
	}
	return a.Split(ctx, audioFile, duration, numChunks)
}

// Split divides an audio file into numChunks consecutive pieces
func (a *Audio) Split(ctx context.Context, audioFile string, duration float64, numChunks int) ([]AudioChunk, error) {
	if err := EnsureDirs(a.tempDir); err != nil {
		return nil, fmt.Errorf("creating temp directory: %w", err)
	}

	chunkDuration := int(math.Ceil(duration / float64(numChunks)))
	chunks := make([]AudioChunk, 0, numChunks)

	for i := range numChunks {
		start := i * chunkDuration
		output := filepath.Join(a.tempDir, fmt.Sprintf("%s_chunk_%d.mp3", filepath.Base(audioFile), i))

		if err := a.Chunk(ctx, audioFile, start, chunkDuration, output); err != nil {
			cleanupChunks(a.log, chunks)
			return nil, fmt.Errorf("creating chunk %d: %w", i, err)
		}

		length := float64(chunkDuration)
		if remaining := duration - float64(start); remaining < length {
			length = remaining
		}
		chunks = append(chunks, AudioChunk{Path: output, Start: float64(start), Duration: length})
	}

	a.log.WithFields(logrus.Fields{"file": audioFile, "chunks": numChunks}).Debug("split audio")
	return chunks, nil
}

// Chunk extracts a segment from an audio file
func (a *Audio) Chunk(ctx context.Context, audioFile string, start, duration int, output string) error {
	cmdOutput, err := a.cmdRunner.Run(ctx, "ffmpeg",
		"-v", "quiet",
		"-i", audioFile,
		"-ss", strconv.Itoa(start),
		"-t", strconv.Itoa(duration),
		"-c:a", "copy",
		"-y", output)
	if err != nil {
		return fmt.Errorf("ffmpeg failed: %w\nOutput: %s", err, string(cmdOutput))
	}
	return nil
}

func cleanupChunks(log logrus.FieldLogger, chunks []AudioChunk) {
	paths := make([]string, len(chunks))
	for i, c := range chunks {
		paths[i] = c.Path
	}
	cleanupFiles(log, paths...)
}
