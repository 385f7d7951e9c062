package transcript

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/asticode/go-astisub"
	"github.com/lrstanley/go-ytdlp"
)

var (
	installMu sync.Mutex
	installed bool

	installYtdlp = func(ctx context.Context) error {
		_, err := ytdlp.Install(ctx, nil)
		return err
	}
)

// EnsureYtdlp resolves a yt-dlp binary, downloading one into the cache on
// first use when none is on PATH. Only success is remembered; a failed or
// cancelled install is attempted again by the next caller.
func EnsureYtdlp(ctx context.Context) error {
	installMu.Lock()
	defer installMu.Unlock()
	if installed {
		return nil
	}
	if err := installYtdlp(ctx); err != nil {
		return fmt.Errorf("installing yt-dlp: %w", err)
	}
	installed = true
	return nil
}

// Ytdlp downloads manual or auto-generated subtitles with yt-dlp.
type Ytdlp struct {
	Languages []string
	// TempDir is where subtitle files are written; empty uses os.TempDir.
	TempDir string
}

func (y *Ytdlp) Name() string { return "ytdlp" }

func (y *Ytdlp) Fetch(ctx context.Context, videoID string) (Transcript, error) {
	if err := EnsureYtdlp(ctx); err != nil {
		return nil, err
	}
	dir, err := os.MkdirTemp(y.TempDir, "subs-")
	if err != nil {
		return nil, fmt.Errorf("creating subtitle directory: %w", err)
	}
	defer os.RemoveAll(dir)

	dl := ytdlp.New().
		WriteSubs().
		WriteAutoSubs().
		SubLangs(strings.Join(languagesOrDefault(y.Languages), ",")).
		ConvertSubs("srt").
		SkipDownload().
		NoPlaylist().
		Output(filepath.Join(dir, "%(id)s"))

	result, err := dl.Run(ctx, watchURL+videoID)
	if err != nil {
		if result != nil && result.Stderr != "" {
			return nil, fmt.Errorf("yt-dlp subtitles: %w: %s", err, strings.TrimSpace(result.Stderr))
		}
		return nil, fmt.Errorf("yt-dlp subtitles: %w", err)
	}

	files, err := filepath.Glob(filepath.Join(dir, videoID+"*.srt"))
	if err != nil || len(files) == 0 {
		return nil, fmt.Errorf("no subtitle files written for %s", videoID)
	}

	f, err := os.Open(files[0])
	if err != nil {
		return nil, fmt.Errorf("opening subtitles: %w", err)
	}
	defer f.Close()
	return parseSRT(f)
}

// parseSRT reads SubRip captions, dropping the rolling repeats auto-generated
// captions produce.
func parseSRT(r io.Reader) (Transcript, error) {
	subs, err := astisub.ReadFromSRT(r)
	if err != nil {
		return nil, fmt.Errorf("parsing SRT: %w", err)
	}

	var t Transcript
	prev := ""
	for _, item := range subs.Items {
		lines := make([]string, 0, len(item.Lines))
		for _, line := range item.Lines {
			if s := strings.TrimSpace(line.String()); s != "" {
				lines = append(lines, s)
			}
		}
		text := strings.Join(lines, " ")
		if text == "" {
			continue
		}
		if prev != "" && (strings.Contains(text, prev) || strings.Contains(prev, text)) {
			prev = text
			continue
		}
		prev = text
		t = append(t, Segment{
			Text:     text,
			Start:    item.StartAt.Seconds(),
			Duration: (item.EndAt - item.StartAt).Seconds(),
		})
	}
	return t, nil
}
