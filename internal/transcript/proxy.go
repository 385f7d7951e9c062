package transcript

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// DefaultProxyListURL serves a plain-text list of free HTTP proxies, one host:port per line.
const DefaultProxyListURL = "https://api.proxyscrape.com/v2/?request=displayproxies&protocol=http&timeout=10000&country=all&ssl=all&anonymity=all"

// Proxy retries the player lookup through each proxy of a freshly fetched list.
type Proxy struct {
	ListURL    string
	MaxProxies int
	Timeout    time.Duration
	Languages  []string
	// PlayerURL overrides the player endpoint.
	PlayerURL string
	// ListClient fetches the proxy list.
	ListClient HTTPDoer
}

func (p *Proxy) Name() string { return "proxy" }

func (p *Proxy) Fetch(ctx context.Context, videoID string) (Transcript, error) {
	proxies, err := p.proxies(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching proxy list: %w", err)
	}
	if len(proxies) == 0 {
		return nil, errors.New("proxy list is empty")
	}

	var errs []error
	for _, proxy := range proxies {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		t, err := p.fetchVia(ctx, proxy, videoID)
		if err == nil && !t.IsEmpty() {
			return t, nil
		}
		if err == nil {
			err = ErrEmptyTranscript
		}
		errs = append(errs, fmt.Errorf("via %s: %w", proxy.Host, err))
	}
	return nil, errors.Join(errs...)
}

func (p *Proxy) fetchVia(ctx context.Context, proxy *url.URL, videoID string) (Transcript, error) {
	transport := &http.Transport{
		Proxy:               http.ProxyURL(proxy),
		TLSHandshakeTimeout: p.timeout(),
	}
	defer transport.CloseIdleConnections()

	it := innertube{
		client:    &http.Client{Transport: transport, Timeout: p.timeout()},
		playerURL: p.PlayerURL,
		languages: languagesOrDefault(p.Languages),
	}
	return it.fetch(ctx, videoID)
}

func (p *Proxy) timeout() time.Duration {
	if p.Timeout <= 0 {
		return 10 * time.Second
	}
	return p.Timeout
}

// proxies downloads the proxy list, retrying transient failures.
func (p *Proxy) proxies(ctx context.Context) ([]*url.URL, error) {
	listURL := p.ListURL
	if listURL == "" {
		listURL = DefaultProxyListURL
	}
	client := p.ListClient
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}

	operation := func() ([]*url.URL, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, listURL, nil)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			httpErr := newHTTPError(listURL, resp.StatusCode, resp.Body)
			if httpErr.Retryable() {
				return nil, httpErr
			}
			return nil, backoff.Permanent(httpErr)
		}
		return parseProxyList(resp.Body, p.MaxProxies)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = 5 * time.Second
	return backoff.Retry(ctx, operation, backoff.WithBackOff(bo), backoff.WithMaxTries(3))
}

// parseProxyList reads host:port lines (optionally with a scheme), skipping blanks and comments.
func parseProxyList(r io.Reader, limit int) ([]*url.URL, error) {
	var out []*url.URL
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !strings.Contains(line, "://") {
			line = "http://" + line
		}
		u, err := url.Parse(line)
		if err != nil || u.Host == "" {
			continue
		}
		out = append(out, u)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, scanner.Err()
}
