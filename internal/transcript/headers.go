package transcript

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	fhttp "github.com/bogdanfinn/fhttp"
	tls_client "github.com/bogdanfinn/tls-client"
	"github.com/bogdanfinn/tls-client/profiles"
)

// browserHeaders is the header set a desktop Chrome sends for a top-level navigation.
var browserHeaders = map[string]string{
	"accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
	"accept-language":           "en-US,en;q=0.9",
	"user-agent":                chromeUserAgent,
	"upgrade-insecure-requests": "1",
	"te":                        "trailers",
}

var browserHeaderOrder = []string{
	"accept",
	"accept-language",
	"upgrade-insecure-requests",
	"te",
	"cookie",
	"user-agent",
}

// Headers loads the watch page with a Chrome TLS fingerprint and browser
// headers, then follows the caption track embedded in the page.
type Headers struct {
	Timeout   time.Duration
	Languages []string
	// WatchURL overrides the watch page prefix; the video ID is appended.
	WatchURL string
}

func (h *Headers) Name() string { return "headers" }

func (h *Headers) Fetch(ctx context.Context, videoID string) (Transcript, error) {
	timeout := h.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	client, err := tls_client.NewHttpClient(nil,
		tls_client.WithTimeoutSeconds(int(timeout.Seconds())),
		tls_client.WithClientProfile(profiles.Chrome_131),
		tls_client.WithCookieJar(tls_client.NewCookieJar()),
	)
	if err != nil {
		return nil, fmt.Errorf("tls-client init: %w", err)
	}
	defer client.CloseIdleConnections()

	prefix := h.WatchURL
	if prefix == "" {
		prefix = watchURL
	}
	page, err := h.get(ctx, client, prefix+videoID, "")
	if err != nil {
		return nil, fmt.Errorf("watch page: %w", err)
	}

	player, err := playerResponseFromPage(page)
	if err != nil {
		return nil, err
	}
	tracks, err := player.tracks()
	if err != nil {
		return nil, err
	}
	track, ok := pickTrack(tracks, languagesOrDefault(h.Languages))
	if !ok {
		return nil, errors.New("no caption track usable without a browser session")
	}

	data, err := h.get(ctx, client, track.BaseURL, prefix+videoID)
	if err != nil {
		return nil, fmt.Errorf("timedtext: %w", err)
	}
	return parseTimedText(data)
}

func (h *Headers) get(ctx context.Context, client tls_client.HttpClient, target, referer string) ([]byte, error) {
	req, err := fhttp.NewRequestWithContext(ctx, fhttp.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, v := range browserHeaders {
		req.Header.Set(k, v)
	}
	if referer != "" {
		req.Header.Set("referer", referer)
	}
	req.Header[fhttp.HeaderOrderKey] = browserHeaderOrder

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tls request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != fhttp.StatusOK {
		return nil, newHTTPError(target, resp.StatusCode, resp.Body)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxPlayerBytes*2))
}

// playerResponseFromPage finds the inline script carrying ytInitialPlayerResponse.
func playerResponseFromPage(page []byte) (*playerResponse, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(page)))
	if err != nil {
		return nil, fmt.Errorf("parsing watch page: %w", err)
	}

	var script string
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := s.Text()
		if strings.Contains(text, "ytInitialPlayerResponse") {
			script = text
			return false
		}
		return true
	})
	if script == "" {
		if doc.Find("form[action*='consent']").Length() > 0 {
			return nil, errors.New("watch page is a consent interstitial")
		}
		return nil, errors.New("ytInitialPlayerResponse not found in watch page")
	}
	return playerResponseFromHTML(script)
}
