package pool

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/wolvever/httpx-transport-go/internal/config"
	"github.com/wolvever/httpx-transport-go/pkg/httpcore"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := New(config.DefaultConfig().Pool, config.Timeout{Connect: 5 * time.Second})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { e.Close() })
	return e
}

func TestEngineLeaseLifetime(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("hello"))
	}))
	defer srv.Close()

	e := newTestEngine(t)
	u, _ := url.Parse(srv.URL)
	key := HostKey(u.Scheme, u.Host)

	req, _ := http.NewRequest("GET", srv.URL, nil)
	resp, err := e.RoundTrip(req)
	if err != nil {
		t.Fatal(err)
	}

	// The lease is held while the body is open.
	if got := e.Lent(key); got != 1 {
		t.Errorf("Lent = %d with open body, want 1", got)
	}

	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	if got := e.Lent(key); got != 0 {
		t.Errorf("Lent = %d after body close, want 0", got)
	}
}

func TestEngineLeaseReleasedOnError(t *testing.T) {
	e := newTestEngine(t)

	// Nothing listens on this port.
	req, _ := http.NewRequest("GET", "http://127.0.0.1:1/", nil)
	_, err := e.RoundTrip(req)
	if err == nil {
		t.Fatal("want dial failure")
	}

	if got := e.Lent(HostKey("http", "127.0.0.1:1")); got != 0 {
		t.Errorf("Lent = %d after failed attempt, want 0", got)
	}

	te := httpcore.Classify(err)
	if te.Kind != httpcore.KindConnection {
		t.Errorf("dial failure classified as %v, want connection", te.Kind)
	}
	if te.Phase != httpcore.PhaseConnect {
		t.Errorf("phase = %q, want connect", te.Phase)
	}
}

func TestEngineDoubleBodyCloseReleasesOnce(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("x"))
	}))
	defer srv.Close()

	e := newTestEngine(t)
	u, _ := url.Parse(srv.URL)
	key := HostKey(u.Scheme, u.Host)

	req, _ := http.NewRequest("GET", srv.URL, nil)
	resp, err := e.RoundTrip(req)
	if err != nil {
		t.Fatal(err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	resp.Body.Close()

	if got := e.Lent(key); got != 0 {
		t.Errorf("Lent = %d, double close must not go negative", got)
	}
}

func TestEngineReusesConnections(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	e := newTestEngine(t)

	seen := make(map[string]bool)
	for i := 0; i < 5; i++ {
		req, _ := http.NewRequest("GET", srv.URL, nil)
		resp, err := e.RoundTrip(req)
		if err != nil {
			t.Fatal(err)
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		seen[req.URL.Host] = true
	}
	// Sequential keep-alive requests to one host should not grow the
	// lease count.
	u, _ := url.Parse(srv.URL)
	if got := e.Lent(HostKey(u.Scheme, u.Host)); got != 0 {
		t.Errorf("Lent = %d after all bodies closed, want 0", got)
	}
	_ = seen
}

func TestEngineHTTP2Disabled(t *testing.T) {
	cfg := config.DefaultConfig().Pool
	cfg.DisableHTTP2 = true
	e, err := New(cfg, config.Timeout{})
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	if e.transport.TLSClientConfig != nil {
		for _, proto := range e.transport.TLSClientConfig.NextProtos {
			if proto == "h2" {
				t.Error("h2 offered with HTTP/2 disabled")
			}
		}
	}
}

func TestEngineDialThrottle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	cfg := config.DefaultConfig().Pool
	cfg.DialRate = 1000
	e, err := New(cfg, config.Timeout{})
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	req, _ := http.NewRequest("GET", srv.URL, nil)
	resp, err := e.RoundTrip(req)
	if err != nil {
		t.Fatal(err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}

func TestEngineErrorChainSurvivesTransport(t *testing.T) {
	e := newTestEngine(t)
	req, _ := http.NewRequest("GET", "http://127.0.0.1:1/", nil)
	_, err := e.RoundTrip(req)
	if err == nil {
		t.Fatal("want error")
	}
	// The typed classification attached in the dialer must survive the
	// engine's own wrapping.
	if !errors.Is(err, httpcore.ErrConnection) {
		t.Errorf("typed dial error lost: %v", err)
	}
}
