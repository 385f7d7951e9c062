package transcript

import (
	"context"
	"net/http"
	"time"
)

// Direct asks the public player endpoint for captions with no indirection.
type Direct struct {
	Client    HTTPDoer
	PlayerURL string
	Languages []string
}

// NewDirect creates a direct method with its own HTTP client.
func NewDirect(timeout time.Duration, languages []string) *Direct {
	return &Direct{
		Client:    &http.Client{Timeout: timeout},
		Languages: languages,
	}
}

func (d *Direct) Name() string { return "direct" }

func (d *Direct) Fetch(ctx context.Context, videoID string) (Transcript, error) {
	it := innertube{
		client:    d.Client,
		playerURL: d.PlayerURL,
		languages: languagesOrDefault(d.Languages),
	}
	return it.fetch(ctx, videoID)
}
