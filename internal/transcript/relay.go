package transcript

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Relay asks a third-party transcript service. URL may contain an {id}
// placeholder; otherwise the video ID is sent as the "video_id" query parameter.
type Relay struct {
	URL    string
	APIKey string
	Client HTTPDoer
}

// NewRelay creates a relay method.
func NewRelay(rawURL, apiKey string, timeout time.Duration) *Relay {
	return &Relay{URL: rawURL, APIKey: apiKey, Client: &http.Client{Timeout: timeout}}
}

func (r *Relay) Name() string { return "relay" }

func (r *Relay) Fetch(ctx context.Context, videoID string) (Transcript, error) {
	if r.URL == "" {
		return nil, errors.New("relay URL not configured")
	}
	endpoint, err := r.endpoint(videoID)
	if err != nil {
		return nil, err
	}

	operation := func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		req.Header.Set("Accept", "application/json")
		if r.APIKey != "" {
			req.Header.Set("Authorization", "Bearer "+r.APIKey)
			req.Header.Set("X-API-Key", r.APIKey)
		}
		resp, err := r.Client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			httpErr := newHTTPError(endpoint, resp.StatusCode, resp.Body)
			if httpErr.Retryable() {
				return nil, httpErr
			}
			return nil, backoff.Permanent(httpErr)
		}
		return io.ReadAll(io.LimitReader(resp.Body, maxPlayerBytes))
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = 4 * time.Second
	body, err := backoff.Retry(ctx, operation, backoff.WithBackOff(bo), backoff.WithMaxTries(3))
	if err != nil {
		return nil, fmt.Errorf("relay request: %w", err)
	}
	return decodeRelay(body)
}

func (r *Relay) endpoint(videoID string) (string, error) {
	if strings.Contains(r.URL, "{id}") {
		return strings.ReplaceAll(r.URL, "{id}", url.PathEscape(videoID)), nil
	}
	u, err := url.Parse(r.URL)
	if err != nil {
		return "", fmt.Errorf("invalid relay URL: %w", err)
	}
	q := u.Query()
	q.Set("video_id", videoID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// decodeRelay accepts either a bare segment array or an object wrapping it
// under "segments" or "transcript".
func decodeRelay(body []byte) (Transcript, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, ErrEmptyTranscript
	}

	if body[0] == '[' {
		var t Transcript
		if err := json.Unmarshal(body, &t); err != nil {
			return nil, fmt.Errorf("decoding relay segments: %w", err)
		}
		return t, nil
	}

	var wrapped struct {
		Segments   Transcript `json:"segments"`
		Transcript Transcript `json:"transcript"`
		Error      string     `json:"error"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, fmt.Errorf("decoding relay response: %w", err)
	}
	if wrapped.Error != "" {
		return nil, fmt.Errorf("relay: %s", wrapped.Error)
	}
	if len(wrapped.Segments) > 0 {
		return wrapped.Segments, nil
	}
	return wrapped.Transcript, nil
}
