package transcript

import (
	"fmt"
	"time"
)

// DefaultRelayURL is the relay endpoint used when none is configured.
const DefaultRelayURL = "https://api.transcriptservice.com/v1/youtube/{id}"

// DefaultMethods names the strategies registered when none are configured.
var DefaultMethods = []string{"direct", "proxy", "browser", "relay", "headers"}

// KnownMethods names every built-in strategy NewMethod accepts.
var KnownMethods = []string{"direct", "proxy", "browser", "relay", "headers", "ytdlp"}

// MethodOptions carries the settings the built-in methods read.
type MethodOptions struct {
	Languages    []string
	HTTPTimeout  time.Duration
	ProxyListURL string
	MaxProxies   int
	ProxyTimeout time.Duration
	RelayURL     string
	RelayAPIKey  string
	BrowserPath  string
	BrowserWait  time.Duration
	TempDir      string
}

// NewMethod builds a built-in method by name.
func NewMethod(name string, opts MethodOptions) (Method, error) {
	timeout := opts.HTTPTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	switch name {
	case "direct":
		return NewDirect(timeout, opts.Languages), nil
	case "proxy":
		return &Proxy{
			ListURL:    opts.ProxyListURL,
			MaxProxies: opts.MaxProxies,
			Timeout:    opts.ProxyTimeout,
			Languages:  opts.Languages,
		}, nil
	case "browser":
		return &Browser{ExecPath: opts.BrowserPath, Wait: opts.BrowserWait}, nil
	case "relay":
		relayURL := opts.RelayURL
		if relayURL == "" {
			relayURL = DefaultRelayURL
		}
		return NewRelay(relayURL, opts.RelayAPIKey, timeout), nil
	case "headers":
		return &Headers{Timeout: timeout, Languages: opts.Languages}, nil
	case "ytdlp":
		return &Ytdlp{Languages: opts.Languages, TempDir: opts.TempDir}, nil
	default:
		return nil, fmt.Errorf("unknown transcript method %q", name)
	}
}

// BuildRegistry creates a registry from method names, in order. Extra methods
// that are not built in (such as audio transcription) are appended as given.
func BuildRegistry(names []string, opts MethodOptions, extra ...Method) (*Registry, error) {
	if len(names) == 0 {
		names = DefaultMethods
	}
	seen := make(map[string]bool, len(names))
	methods := make([]Method, 0, len(names)+len(extra))
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true
		m, err := NewMethod(name, opts)
		if err != nil {
			return nil, err
		}
		methods = append(methods, m)
	}
	for _, m := range extra {
		if m != nil && !seen[m.Name()] {
			seen[m.Name()] = true
			methods = append(methods, m)
		}
	}
	return NewRegistry(methods...), nil
}
