package transcript

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProxyList(t *testing.T) {
	in := "1.2.3.4:8080\r\n\n# comment\nhttp://5.6.7.8:3128\nsocks5://9.9.9.9:1080\n[::1\n10.0.0.1:80\n"

	got, err := parseProxyList(strings.NewReader(in), 0)
	require.NoError(t, err)
	hosts := make([]string, len(got))
	for i, u := range got {
		hosts[i] = u.Scheme + "://" + u.Host
	}
	assert.Equal(t, []string{"http://1.2.3.4:8080", "http://5.6.7.8:3128", "socks5://9.9.9.9:1080", "http://10.0.0.1:80"}, hosts)

	limited, err := parseProxyList(strings.NewReader(in), 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

// TestProxyFetchRoutesThroughProxy runs a fake forward proxy that answers the
// player and timedtext requests itself. The first listed proxy is unreachable.
func TestProxyFetchRoutesThroughProxy(t *testing.T) {
	var proxied atomic.Int32
	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		proxied.Add(1)
		assert.Equal(t, "innertube.test", r.URL.Host, "request must arrive in proxy form")
		switch r.URL.Path {
		case "/player":
			_ = json.NewEncoder(w).Encode(playerWithTracks("http://innertube.test"))
		case "/timedtext":
			fmt.Fprint(w, srv3TimedText)
		default:
			http.NotFound(w, r)
		}
	}))
	defer proxy.Close()

	list := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "127.0.0.1:1\n%s\n", strings.TrimPrefix(proxy.URL, "http://"))
	}))
	defer list.Close()

	p := &Proxy{
		ListURL:   list.URL,
		Timeout:   2 * time.Second,
		PlayerURL: "http://innertube.test/player",
	}
	assert.Equal(t, "proxy", p.Name())

	got, err := p.Fetch(context.Background(), "dQw4w9WgXcQ")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "plain line", got[0].Text)
	assert.EqualValues(t, 2, proxied.Load())
}

func TestProxyFetchAllProxiesFail(t *testing.T) {
	list := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "127.0.0.1:1\n127.0.0.1:2\n")
	}))
	defer list.Close()

	p := &Proxy{ListURL: list.URL, Timeout: time.Second, PlayerURL: "http://innertube.test/player"}
	_, err := p.Fetch(context.Background(), "dQw4w9WgXcQ")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "127.0.0.1:1")
	assert.Contains(t, err.Error(), "127.0.0.1:2")
}

func TestProxyFetchEmptyList(t *testing.T) {
	list := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer list.Close()

	_, err := (&Proxy{ListURL: list.URL}).Fetch(context.Background(), "dQw4w9WgXcQ")
	assert.ErrorContains(t, err, "empty")
}

func TestProxyListNotFoundIsPermanent(t *testing.T) {
	var calls atomic.Int32
	list := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer list.Close()

	_, err := (&Proxy{ListURL: list.URL}).Fetch(context.Background(), "dQw4w9WgXcQ")
	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.EqualValues(t, 1, calls.Load())
}
