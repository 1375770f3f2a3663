// Package pool owns the connection pool engine: keep-alive sockets,
// TLS sessions, and HTTP/2 multiplexing, lazily shared by every
// request in the process. Framing is delegated to net/http; this
// package adds lease accounting, dial classification, and a dial
// throttle on top.
package pool

import (
	"context"
	"crypto/tls"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/time/rate"

	"github.com/wolvever/httpx-transport-go/internal/config"
	"github.com/wolvever/httpx-transport-go/pkg/httpcore"
)

// Engine hands out connections to the pipeline. A connection is leased
// for the life of a request, response body included, and never to two
// requests at once; the engine's idle set keeps at most
// MaxIdlePerHost connections per host and closes entries past the
// idle age threshold.
type Engine struct {
	transport *http.Transport
	limiter   *rate.Limiter

	mu     sync.Mutex
	leases map[string]int
}

// New builds an engine from the pool and timeout configuration. ALPN
// prefers HTTP/2 when both ends support it unless DisableHTTP2 is set.
func New(pcfg config.Pool, tcfg config.Timeout) (*Engine, error) {
	e := &Engine{
		leases: make(map[string]int),
	}
	if pcfg.DialRate > 0 {
		e.limiter = rate.NewLimiter(rate.Limit(pcfg.DialRate), 1)
	}

	dialer := &net.Dialer{
		Timeout:   tcfg.Connect,
		KeepAlive: 30 * time.Second,
	}

	e.transport = &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			if e.limiter != nil {
				if err := e.limiter.Wait(ctx); err != nil {
					return nil, httpcore.NewError(httpcore.KindCancelled, "dial throttle", err)
				}
			}
			conn, err := dialer.DialContext(ctx, network, addr)
			if err != nil {
				// Classify here so DNS/connect failures keep their
				// identity through the engine's error wrapping.
				return nil, httpcore.Classify(err)
			}
			return newPhaseConn(conn, tcfg.Read, tcfg.Write), nil
		},
		MaxIdleConns:        pcfg.MaxIdlePerHost * 4,
		MaxIdleConnsPerHost: pcfg.MaxIdlePerHost,
		IdleConnTimeout:     pcfg.IdleConnTimeout,
		TLSHandshakeTimeout: pcfg.TLSHandshakeTimeout,
		// The host library handles content decoding itself.
		DisableCompression: true,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: pcfg.TLSInsecure,
		},
	}

	if !pcfg.DisableHTTP2 {
		if err := http2.ConfigureTransport(e.transport); err != nil {
			return nil, httpcore.NewError(httpcore.KindInternal, "configure http2", err)
		}
	}

	return e, nil
}

// RoundTrip sends one request attempt on a leased connection. The lease
// is held until the response body is closed (or immediately returned on
// failure), so lent-out counts never exceed in-flight requests.
func (e *Engine) RoundTrip(req *http.Request) (*http.Response, error) {
	key := hostKey(req)
	e.lease(key)

	resp, err := e.transport.RoundTrip(req)
	if err != nil {
		e.release(key)
		return nil, err
	}

	var once sync.Once
	resp.Body = &leasedBody{
		rc: resp.Body,
		release: func() {
			once.Do(func() { e.release(key) })
		},
	}
	return resp, nil
}

// Lent returns the number of connections currently lent out for the
// host key of req-style "scheme://host" form.
func (e *Engine) Lent(key string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.leases[key]
}

// FlushIdle drops every idle connection. Called after protocol errors
// so a poisoned connection is never reused.
func (e *Engine) FlushIdle() {
	e.transport.CloseIdleConnections()
}

// Close drains the idle set. In-flight requests finish on their own
// leases.
func (e *Engine) Close() error {
	e.transport.CloseIdleConnections()
	return nil
}

func (e *Engine) lease(key string) {
	e.mu.Lock()
	e.leases[key]++
	e.mu.Unlock()
}

func (e *Engine) release(key string) {
	e.mu.Lock()
	if e.leases[key] > 0 {
		e.leases[key]--
	}
	e.mu.Unlock()
}

// HostKey returns the lease key for a URL scheme and host.
func HostKey(scheme, host string) string { return scheme + "://" + host }

func hostKey(req *http.Request) string {
	return HostKey(req.URL.Scheme, req.URL.Host)
}

// leasedBody ties the connection lease to the response body lifetime.
type leasedBody struct {
	rc      io.ReadCloser
	release func()
}

func (b *leasedBody) Read(p []byte) (int, error) {
	n, err := b.rc.Read(p)
	if err != nil && err != io.EOF {
		// Mid-stream failure: the engine discards the connection; drop
		// the lease now rather than waiting for Close.
		b.release()
	}
	return n, err
}

func (b *leasedBody) Close() error {
	err := b.rc.Close()
	b.release()
	return err
}
