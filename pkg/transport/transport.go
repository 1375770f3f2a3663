// Package transport is the engine the host HTTP library delegates
// socket-level work to: a process-shared connection pool wrapped in a
// timeout/retry/trace/metrics pipeline, with entry points matching the
// host's await-style and synchronous calling conventions. Cookies,
// redirects, and authentication stay with the host.
package transport

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolvever/httpx-transport-go/internal/config"
	"github.com/wolvever/httpx-transport-go/internal/pipeline"
	"github.com/wolvever/httpx-transport-go/internal/pool"
	"github.com/wolvever/httpx-transport-go/pkg/httpcore"
)

// Version is stamped by the build; it feeds the default User-Agent.
var Version = "dev"

// Transport drives requests through the middleware pipeline into the
// connection pool engine. It is safe for concurrent use and meant to
// live for the process lifetime.
type Transport struct {
	cfg      *config.Config
	engine   *pool.Engine
	chain    *pipeline.Chain
	metrics  *pipeline.Metrics
	gatherer prometheus.Gatherer
	srv      *http.Server
	closed   atomic.Bool
}

// Option configures optional collaborators.
type Option func(*options)

type options struct {
	registerer prometheus.Registerer
	sink       pipeline.SpanSink
}

// WithRegisterer registers the transport's metrics against reg instead
// of a private registry.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// WithSpanSink routes trace spans to sink.
func WithSpanSink(sink pipeline.SpanSink) Option {
	return func(o *options) { o.sink = sink }
}

// New builds a transport from cfg (nil means defaults). Any failure
// here is the single initialization-failure outcome: no partial or
// degraded instance is ever returned, so the host can fall back to its
// own default transport.
func New(cfg *config.Config, opts ...Option) (*Transport, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	t := &Transport{cfg: cfg}

	if o.registerer == nil {
		reg := prometheus.NewRegistry()
		o.registerer = reg
		t.gatherer = reg
	}
	t.metrics = pipeline.NewMetrics(o.registerer)

	engine, err := pool.New(cfg.Pool, cfg.Timeout)
	if err != nil {
		return nil, err
	}
	t.engine = engine

	final := func(ctx context.Context, req *http.Request) (*http.Response, error) {
		return engine.RoundTrip(req.WithContext(ctx))
	}
	t.chain = pipeline.NewChain(final,
		pipeline.NewTimeoutStage(cfg.Timeout),
		pipeline.NewRetryStage(cfg.Retry, t.metrics),
		pipeline.NewTraceStage(o.sink),
		pipeline.NewMetricsStage(t.metrics),
	)

	if cfg.Metrics.Enabled {
		t.serveMetrics()
	}

	return t, nil
}

// Do executes one request synchronously: the calling goroutine blocks
// until a response, a typed error, or cancellation via ctx.
func (t *Transport) Do(ctx context.Context, req *httpcore.Request) (*httpcore.Response, error) {
	return t.do(ctx, req)
}

// Submit starts the request and returns a handle the caller can await
// or cancel. The handle resolves exactly once.
func (t *Transport) Submit(ctx context.Context, req *httpcore.Request) (*Pending, error) {
	// Only bounded, non-blocking validation happens on the caller's
	// side of the bridge.
	if err := req.Validate(); err != nil {
		return nil, err
	}
	cctx, cancel := context.WithCancel(ctx)
	p := &Pending{ch: make(chan outcome, 1), cancel: cancel}
	go func() {
		resp, err := t.do(cctx, req)
		p.ch <- outcome{resp: resp, err: err}
	}()
	return p, nil
}

// Engine exposes the pool engine for lease inspection.
func (t *Transport) Engine() *pool.Engine { return t.engine }

// Close tears the transport down: the idle pool is drained and the
// metrics endpoint stops. In-flight requests finish on their own.
func (t *Transport) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}
	if t.srv != nil {
		t.srv.Close()
	}
	return t.engine.Close()
}

func (t *Transport) do(ctx context.Context, req *httpcore.Request) (resp *httpcore.Response, err error) {
	// A panic anywhere below must never crash the host process.
	defer func() {
		if r := recover(); r != nil {
			resp = nil
			err = httpcore.NewError(httpcore.KindInternal, "transport", fmt.Errorf("panic: %v", r))
		}
	}()

	if t.closed.Load() {
		return nil, httpcore.NewError(httpcore.KindInternal, "transport", fmt.Errorf("transport is closed"))
	}

	start := time.Now()
	st := &pipeline.State{
		Start:              start,
		Attempts:           1,
		Replayable:         req.Replayable(),
		TotalTimeout:       t.resolveTimeout(req),
		MaxAttempts:        req.IntExt(httpcore.ExtMaxAttempts),
		RetryNonIdempotent: req.BoolExt(httpcore.ExtRetryNonIdempotent),
	}
	ctx = pipeline.WithState(ctx, st)

	hreq, err := req.HTTPRequest(ctx, t.userAgent())
	if err != nil {
		return nil, err
	}

	hresp, err := t.chain.Do(ctx, hreq)
	if err != nil {
		te := httpcore.Classify(err)
		if te.Attempts == 0 {
			cp := *te
			cp.Attempts = st.Attempts
			te = &cp
		}
		if te.Kind == httpcore.KindProtocol {
			// Never reuse a connection that produced malformed framing.
			t.engine.FlushIdle()
		}
		return nil, te
	}

	out := &httpcore.Response{
		StatusCode: hresp.StatusCode,
		Header:     httpcore.HeaderFromHTTP(hresp.Header),
		Extensions: map[string]any{
			httpcore.ExtAttempts:    st.Attempts,
			httpcore.ExtElapsed:     time.Since(start),
			httpcore.ExtHTTPVersion: hresp.Proto,
		},
	}

	if req.BoolExt(httpcore.ExtStream) {
		out.Stream = httpcore.NewBodyStream(hresp.Body, t.cfg.Stream.BufferChunks, t.cfg.Stream.ChunkSize, nil)
		return out, nil
	}

	body, rerr := io.ReadAll(hresp.Body)
	hresp.Body.Close()
	if rerr != nil {
		te := httpcore.Classify(rerr)
		cp := *te
		cp.Attempts = st.Attempts
		return nil, &cp
	}
	out.Content = body
	return out, nil
}

// resolveTimeout applies the per-request overrides: the timeout
// extension wins over the descriptor field, which wins over the
// configured default (applied downstream by the timeout stage).
func (t *Transport) resolveTimeout(req *httpcore.Request) time.Duration {
	if d := req.DurationExt(httpcore.ExtTimeout); d > 0 {
		return d
	}
	return req.Timeout
}

func (t *Transport) userAgent() string {
	if t.cfg.UserAgent != "" {
		return t.cfg.UserAgent
	}
	return "httpx-transport-go/" + Version
}

func (t *Transport) serveMetrics() {
	handler := promhttp.Handler()
	if t.gatherer != nil {
		handler = promhttp.HandlerFor(t.gatherer, promhttp.HandlerOpts{})
	}
	mux := http.NewServeMux()
	mux.Handle(t.cfg.Metrics.Path, handler)
	t.srv = &http.Server{Addr: t.cfg.Metrics.Address, Handler: mux}
	go func() {
		if err := t.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("[transport] metrics server error: %v", err)
		}
	}()
	log.Printf("[transport] metrics exposed on %s%s", t.cfg.Metrics.Address, t.cfg.Metrics.Path)
}
