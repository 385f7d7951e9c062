package transcript

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const legacyTimedText = `<?xml version="1.0" encoding="utf-8" ?><transcript>
<text start="0.5" dur="1.5">it&amp;#39;s   here</text>
<text start="2" dur="2.25">second &amp;amp; last</text>
<text start="4" dur="1"> </text>
</transcript>`

const srv3TimedText = `<?xml version="1.0" encoding="utf-8" ?><timedtext format="3"><body>
<p t="1000" d="2500">plain line</p>
<p t="4000" d="1000"><s>word</s><s t="300"> by</s><s t="600"> word</s></p>
</body></timedtext>`

func TestParseTimedText(t *testing.T) {
	t.Run("legacy", func(t *testing.T) {
		got, err := parseTimedText([]byte(legacyTimedText))
		require.NoError(t, err)
		assert.Equal(t, Transcript{
			{Text: "it's here", Start: 0.5, Duration: 1.5},
			{Text: "second & last", Start: 2, Duration: 2.25},
		}, got)
	})

	t.Run("srv3", func(t *testing.T) {
		got, err := parseTimedText([]byte(srv3TimedText))
		require.NoError(t, err)
		assert.Equal(t, Transcript{
			{Text: "plain line", Start: 1, Duration: 2.5},
			{Text: "word by word", Start: 4, Duration: 1},
		}, got)
	})

	t.Run("blank body", func(t *testing.T) {
		_, err := parseTimedText([]byte("  "))
		assert.ErrorIs(t, err, ErrEmptyTranscript)
	})

	t.Run("not xml", func(t *testing.T) {
		_, err := parseTimedText([]byte("<html"))
		assert.Error(t, err)
	})
}

func TestPickTrack(t *testing.T) {
	manualDE := captionTrack{BaseURL: "u/de", LanguageCode: "de"}
	asrEN := captionTrack{BaseURL: "u/en-asr", LanguageCode: "en", Kind: "asr"}
	manualEN := captionTrack{BaseURL: "u/en", LanguageCode: "en"}
	enGB := captionTrack{BaseURL: "u/en-gb", LanguageCode: "en-GB"}
	poToken := captionTrack{BaseURL: "u/fr?x=1&exp=xpe", LanguageCode: "fr"}

	tests := []struct {
		name   string
		tracks []captionTrack
		langs  []string
		want   captionTrack
		ok     bool
	}{
		{name: "manual beats asr", tracks: []captionTrack{asrEN, manualEN}, langs: []string{"en"}, want: manualEN, ok: true},
		{name: "asr in preferred language", tracks: []captionTrack{manualDE, asrEN}, langs: []string{"en"}, want: asrEN, ok: true},
		{name: "language order", tracks: []captionTrack{manualEN, manualDE}, langs: []string{"de", "en"}, want: manualDE, ok: true},
		{name: "any english", tracks: []captionTrack{manualDE, enGB}, langs: []string{"es"}, want: enGB, ok: true},
		{name: "first usable", tracks: []captionTrack{poToken, manualDE}, langs: []string{"fr"}, want: manualDE, ok: true},
		{name: "only po token tracks", tracks: []captionTrack{poToken}, langs: []string{"fr"}, ok: false},
		{name: "none", langs: []string{"en"}, ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := pickTrack(tt.tracks, tt.langs)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

// newInnertubeServer serves a player endpoint at /player and captions at /timedtext.
func newInnertubeServer(t *testing.T, player func(base string) any) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	mux.HandleFunc("/player", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method", http.StatusMethodNotAllowed)
			return
		}
		var req playerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.VideoID != "dQw4w9WgXcQ" || req.Context.Client.ClientName != "ANDROID" {
			http.Error(w, "unexpected request", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(player("http://" + r.Host))
	})
	mux.HandleFunc("/timedtext", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, legacyTimedText)
	})
	return srv
}

func playerWithTracks(base string) any {
	return map[string]any{
		"captions": map[string]any{
			"playerCaptionsTracklistRenderer": map[string]any{
				"captionTracks": []map[string]string{
					{"baseUrl": base + "/timedtext?lang=en", "languageCode": "en", "kind": "asr"},
				},
			},
		},
	}
}

func TestDirectFetch(t *testing.T) {
	srv := newInnertubeServer(t, playerWithTracks)

	d := &Direct{Client: srv.Client(), PlayerURL: srv.URL + "/player"}
	assert.Equal(t, "direct", d.Name())

	got, err := d.Fetch(context.Background(), "dQw4w9WgXcQ")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "it's here", got[0].Text)
}

func TestDirectFetchUnplayable(t *testing.T) {
	srv := newInnertubeServer(t, func(string) any {
		return map[string]any{
			"playabilityStatus": map[string]string{"status": "LOGIN_REQUIRED", "reason": "Sign in to confirm you're not a bot"},
		}
	})

	d := &Direct{Client: srv.Client(), PlayerURL: srv.URL + "/player"}
	_, err := d.Fetch(context.Background(), "dQw4w9WgXcQ")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a bot")
}

func TestDirectFetchHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	d := &Direct{Client: srv.Client(), PlayerURL: srv.URL}
	_, err := d.Fetch(context.Background(), "dQw4w9WgXcQ")

	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusTooManyRequests, httpErr.StatusCode)
	assert.True(t, httpErr.Retryable())
}

func TestExtractJSONObject(t *testing.T) {
	got, err := extractJSONObject(` = {"a":{"b":"}"},"c":"\"{"};var x = 1;`)
	require.NoError(t, err)
	assert.Equal(t, `{"a":{"b":"}"},"c":"\"{"}`, got)

	_, err = extractJSONObject(`= {"a":1`)
	assert.Error(t, err)
	_, err = extractJSONObject(`nothing here`)
	assert.Error(t, err)
}

func TestPlayerResponseFromPage(t *testing.T) {
	page := `<html><head><script>var other = 1;</script></head><body>
<script>var ytInitialPlayerResponse = {"captions":{"playerCaptionsTracklistRenderer":{"captionTracks":[{"baseUrl":"https://example.test/tt","languageCode":"en"}]}}};var meta = {};</script>
</body></html>`

	player, err := playerResponseFromPage([]byte(page))
	require.NoError(t, err)
	tracks, err := player.tracks()
	require.NoError(t, err)
	require.Len(t, tracks, 1)
	assert.Equal(t, "https://example.test/tt", tracks[0].BaseURL)

	_, err = playerResponseFromPage([]byte(`<html><body><form action="https://consent.youtube.com/save"></form></body></html>`))
	assert.ErrorContains(t, err, "consent")
}
