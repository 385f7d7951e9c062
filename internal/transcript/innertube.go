package transcript

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"strconv"
	"strings"
)

const (
	innertubePlayerURL = "https://www.youtube.com/youtubei/v1/player"
	watchURL           = "https://www.youtube.com/watch?v="
	androidVersion     = "20.10.38"
	androidUserAgent   = "com.google.android.youtube/" + androidVersion + " (Linux; U; Android 11) gzip"
	chromeUserAgent    = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

	maxPlayerBytes    = 3 << 20
	maxTimedTextBytes = 2 << 20
)

// DefaultLanguages is the caption language preference used when none is configured.
var DefaultLanguages = []string{"en"}

// HTTPDoer is the subset of *http.Client the methods need.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPError is a non-2xx response from an upstream endpoint.
type HTTPError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: HTTP %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("%s: HTTP %d: %s", e.URL, e.StatusCode, e.Body)
}

// Retryable reports whether the status is worth retrying.
func (e *HTTPError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

func newHTTPError(url string, status int, body io.Reader) *HTTPError {
	snippet, _ := io.ReadAll(io.LimitReader(body, 256))
	return &HTTPError{URL: url, StatusCode: status, Body: strings.TrimSpace(string(snippet))}
}

type playerRequest struct {
	VideoID        string        `json:"videoId"`
	Context        playerContext `json:"context"`
	RacyCheckOk    bool          `json:"racyCheckOk"`
	ContentCheckOk bool          `json:"contentCheckOk"`
}

type playerContext struct {
	Client playerClient `json:"client"`
}

type playerClient struct {
	ClientName        string `json:"clientName"`
	ClientVersion     string `json:"clientVersion"`
	AndroidSdkVersion int    `json:"androidSdkVersion,omitempty"`
	Hl                string `json:"hl,omitempty"`
	Gl                string `json:"gl,omitempty"`
}

type playerResponse struct {
	Captions *struct {
		TracklistRenderer struct {
			CaptionTracks []captionTrack `json:"captionTracks"`
		} `json:"playerCaptionsTracklistRenderer"`
	} `json:"captions"`
	PlayabilityStatus *struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	} `json:"playabilityStatus"`
}

type captionTrack struct {
	BaseURL      string `json:"baseUrl"`
	LanguageCode string `json:"languageCode"`
	Kind         string `json:"kind"`
}

// tracks returns the caption tracks or an error naming why there are none.
func (p *playerResponse) tracks() ([]captionTrack, error) {
	if p.Captions == nil || len(p.Captions.TracklistRenderer.CaptionTracks) == 0 {
		if p.PlayabilityStatus != nil && p.PlayabilityStatus.Reason != "" {
			return nil, fmt.Errorf("captions unavailable: %s", p.PlayabilityStatus.Reason)
		}
		return nil, errors.New("no caption tracks in player response")
	}
	return p.Captions.TracklistRenderer.CaptionTracks, nil
}

// needsPoToken reports whether a track URL only works from a real browser session.
func needsPoToken(baseURL string) bool {
	return strings.Contains(baseURL, "&exp=xpe")
}

// pickTrack prefers a manual track in a preferred language, then an
// auto-generated one, then any English track, then the first usable one.
func pickTrack(tracks []captionTrack, langs []string) (captionTrack, bool) {
	usable := make([]captionTrack, 0, len(tracks))
	for _, t := range tracks {
		if t.BaseURL != "" && !needsPoToken(t.BaseURL) {
			usable = append(usable, t)
		}
	}
	if len(usable) == 0 {
		return captionTrack{}, false
	}
	for _, lang := range langs {
		for _, t := range usable {
			if t.LanguageCode == lang && t.Kind != "asr" {
				return t, true
			}
		}
	}
	for _, lang := range langs {
		for _, t := range usable {
			if t.LanguageCode == lang {
				return t, true
			}
		}
	}
	for _, t := range usable {
		if strings.HasPrefix(t.LanguageCode, "en") {
			return t, true
		}
	}
	return usable[0], true
}

// innertube fetches captions through the ANDROID player endpoint.
type innertube struct {
	client    HTTPDoer
	playerURL string
	languages []string
}

func (it innertube) fetch(ctx context.Context, videoID string) (Transcript, error) {
	player, err := it.player(ctx, videoID)
	if err != nil {
		return nil, err
	}
	tracks, err := player.tracks()
	if err != nil {
		return nil, err
	}
	track, ok := pickTrack(tracks, it.languages)
	if !ok {
		return nil, errors.New("no caption track usable without a browser session")
	}
	return it.timedText(ctx, track.BaseURL)
}

func (it innertube) player(ctx context.Context, videoID string) (*playerResponse, error) {
	body, err := json.Marshal(playerRequest{
		VideoID: videoID,
		Context: playerContext{Client: playerClient{
			ClientName:        "ANDROID",
			ClientVersion:     androidVersion,
			AndroidSdkVersion: 30,
			Hl:                "en",
			Gl:                "US",
		}},
		RacyCheckOk:    true,
		ContentCheckOk: true,
	})
	if err != nil {
		return nil, err
	}

	endpoint := it.playerURL
	if endpoint == "" {
		endpoint = innertubePlayerURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint+"?prettyPrint=false", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building player request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", androidUserAgent)
	req.Header.Set("X-Youtube-Client-Name", "3")
	req.Header.Set("X-Youtube-Client-Version", androidVersion)

	resp, err := it.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("player request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, newHTTPError(endpoint, resp.StatusCode, resp.Body)
	}

	var player playerResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxPlayerBytes)).Decode(&player); err != nil {
		return nil, fmt.Errorf("decoding player response: %w", err)
	}
	return &player, nil
}

func (it innertube) timedText(ctx context.Context, trackURL string) (Transcript, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, trackURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building timedtext request: %w", err)
	}
	req.Header.Set("User-Agent", chromeUserAgent)

	resp, err := it.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("timedtext request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, newHTTPError("timedtext", resp.StatusCode, resp.Body)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxTimedTextBytes))
	if err != nil {
		return nil, fmt.Errorf("reading timedtext: %w", err)
	}
	return parseTimedText(data)
}

type timedTextDoc struct {
	XMLName xml.Name
	Lines   []struct {
		Start string `xml:"start,attr"`
		Dur   string `xml:"dur,attr"`
		Text  string `xml:",chardata"`
	} `xml:"text"`
	Body struct {
		Paras []struct {
			T     int64  `xml:"t,attr"`
			D     int64  `xml:"d,attr"`
			Text  string `xml:",chardata"`
			Spans []struct {
				Text string `xml:",chardata"`
			} `xml:"s"`
		} `xml:"p"`
	} `xml:"body"`
}

// parseTimedText decodes both the srv3 format (<p t d> in milliseconds) and
// the legacy format (<text start dur> in seconds).
func parseTimedText(data []byte) (Transcript, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyTranscript
	}

	var doc timedTextDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing timedtext: %w", err)
	}

	var t Transcript
	for _, line := range doc.Lines {
		start, _ := strconv.ParseFloat(line.Start, 64)
		dur, _ := strconv.ParseFloat(line.Dur, 64)
		t = append(t, Segment{Text: cleanCaption(line.Text), Start: start, Duration: dur})
	}
	for _, p := range doc.Body.Paras {
		text := p.Text
		for _, s := range p.Spans {
			text += s.Text
		}
		t = append(t, Segment{
			Text:     cleanCaption(text),
			Start:    float64(p.T) / 1000,
			Duration: float64(p.D) / 1000,
		})
	}
	return t.Normalize(), nil
}

// cleanCaption unescapes entities and collapses whitespace.
func cleanCaption(s string) string {
	return strings.Join(strings.Fields(html.UnescapeString(s)), " ")
}

// playerResponseFromHTML extracts ytInitialPlayerResponse from a watch page script.
func playerResponseFromHTML(script string) (*playerResponse, error) {
	const marker = "ytInitialPlayerResponse"
	idx := strings.Index(script, marker)
	if idx < 0 {
		return nil, errors.New("ytInitialPlayerResponse not found")
	}
	raw, err := extractJSONObject(script[idx+len(marker):])
	if err != nil {
		return nil, err
	}
	var player playerResponse
	if err := json.Unmarshal([]byte(raw), &player); err != nil {
		return nil, fmt.Errorf("decoding ytInitialPlayerResponse: %w", err)
	}
	return &player, nil
}

// extractJSONObject returns the first balanced {...} object in s, honouring strings.
func extractJSONObject(s string) (string, error) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", errors.New("no JSON object")
	}
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return s[start : i+1], nil
			}
		}
	}
	return "", errors.New("unterminated JSON object")
}

func languagesOrDefault(langs []string) []string {
	if len(langs) == 0 {
		return DefaultLanguages
	}
	return langs
}
