package transcript

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
)

const (
	transcriptButton   = "button[aria-label='Show transcript']"
	segmentsContainer  = "div#segments-container"
	segmentsExtraction = `Array.from(document.querySelectorAll("div#segments-container ytd-transcript-segment-renderer, div#segments-container div.segment")).map(el => {
	const ts = el.querySelector(".segment-timestamp");
	const text = el.querySelector(".segment-text, yt-formatted-string.segment-text");
	return {ts: ts ? ts.innerText.trim() : "", text: text ? text.innerText.trim() : ""};
})`
)

// Browser drives a headless Chrome through the watch page and reads the
// transcript panel. Segment durations are unknown and reported as zero.
type Browser struct {
	// ExecPath selects the Chrome binary; empty uses the default lookup.
	ExecPath string
	// Wait bounds each wait for page elements.
	Wait time.Duration
	// WatchURL overrides the watch page prefix; the video ID is appended.
	WatchURL string
}

func (b *Browser) Name() string { return "browser" }

type panelSegment struct {
	TS   string `json:"ts"`
	Text string `json:"text"`
}

func (b *Browser) Fetch(ctx context.Context, videoID string) (Transcript, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Headless,
		chromedp.DisableGPU,
		chromedp.UserAgent(chromeUserAgent),
		chromedp.WindowSize(1280, 900),
	)
	if b.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(b.ExecPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	taskCtx, cancelTask := chromedp.NewContext(allocCtx)
	defer cancelTask()

	prefix := b.WatchURL
	if prefix == "" {
		prefix = watchURL
	}
	if err := chromedp.Run(taskCtx, chromedp.Navigate(prefix+videoID)); err != nil {
		return nil, fmt.Errorf("opening watch page: %w", err)
	}
	if err := b.waitAndRun(taskCtx,
		chromedp.WaitVisible(transcriptButton, chromedp.ByQuery),
		chromedp.Click(transcriptButton, chromedp.ByQuery),
	); err != nil {
		return nil, fmt.Errorf("opening transcript panel: %w", err)
	}

	var raw []panelSegment
	if err := b.waitAndRun(taskCtx,
		chromedp.WaitVisible(segmentsContainer, chromedp.ByQuery),
		chromedp.Evaluate(segmentsExtraction, &raw),
	); err != nil {
		return nil, fmt.Errorf("reading transcript panel: %w", err)
	}
	return panelTranscript(raw), nil
}

// waitAndRun runs actions with the element wait bound applied.
func (b *Browser) waitAndRun(ctx context.Context, actions ...chromedp.Action) error {
	wait := b.Wait
	if wait <= 0 {
		wait = 10 * time.Second
	}
	waitCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()
	return chromedp.Run(waitCtx, actions...)
}

// panelTranscript converts scraped panel rows, dropping rows whose timestamp
// cannot be parsed.
func panelTranscript(rows []panelSegment) Transcript {
	t := make(Transcript, 0, len(rows))
	for _, row := range rows {
		start, err := ParseTimestamp(row.TS)
		if err != nil {
			continue
		}
		t = append(t, Segment{Text: row.Text, Start: start})
	}
	return t
}
