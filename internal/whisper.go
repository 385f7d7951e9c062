package internal

import (
	"context"
	"fmt"
	"os"
	"slices"

	"github.com/sirupsen/logrus"

	"github.com/KLM-Nandhu/bentsblog/internal/transcript"
)

// WhisperMethodName is the retrieval method that transcribes the audio track.
const WhisperMethodName = "whisper"

// AudioDownloader fetches a video's audio track into dir and returns the file path.
type AudioDownloader func(ctx context.Context, dir, videoID string, log logrus.FieldLogger) (string, error)

// WhisperMethod is a paid retrieval method: it downloads the audio with
// yt-dlp and transcribes it with OpenAI Whisper.
type WhisperMethod struct {
	ai       *AI
	dir      string
	download AudioDownloader
	log      logrus.FieldLogger
}

// NewWhisperMethod creates the audio transcription method.
func NewWhisperMethod(ai *AI, dir string, log logrus.FieldLogger) *WhisperMethod {
	return &WhisperMethod{ai: ai, dir: dir, download: DownloadAudio, log: log}
}

func (w *WhisperMethod) Name() string { return WhisperMethodName }

func (w *WhisperMethod) Fetch(ctx context.Context, videoID string) (transcript.Transcript, error) {
	audioFile, err := w.download(ctx, w.dir, videoID, w.log)
	if err != nil {
		return nil, fmt.Errorf("downloading audio: %w", err)
	}
	defer func() {
		if err := os.Remove(audioFile); err != nil && !os.IsNotExist(err) {
			w.log.WithError(err).WithField("file", audioFile).Warn("failed to remove audio file")
		}
	}()

	return w.ai.TranscribeAudio(ctx, audioFile)
}

// splitWhisper removes the whisper entry from method names, reporting whether it was present.
func splitWhisper(names []string) ([]string, bool) {
	if !slices.Contains(names, WhisperMethodName) {
		return names, false
	}
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n != WhisperMethodName {
			out = append(out, n)
		}
	}
	return out, true
}
