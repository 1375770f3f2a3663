// Package bench drives a fixed number of concurrent requests through a
// transport and reports latency statistics.
package bench

import (
	"context"
	"io"
	"log"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/wolvever/httpx-transport-go/internal/stats"
	"github.com/wolvever/httpx-transport-go/pkg/httpcore"
	"github.com/wolvever/httpx-transport-go/pkg/transport"
)

// Options configure one bench run.
type Options struct {
	URL         string
	Method      string
	Header      httpcore.Header
	Body        []byte
	Requests    int
	Concurrency int
	// Rate caps requests per second. Zero means unlimited.
	Rate float64
	// Stream consumes responses through the streaming bridge instead of
	// buffering them.
	Stream bool
}

// Runner fans Options.Requests out over a bounded worker set.
type Runner struct {
	t       *transport.Transport
	opts    Options
	rec     *stats.Recorder
	limiter *rate.Limiter

	// OnSnapshot, when set, receives a snapshot roughly every 200ms
	// while the run is active (feeds the live dashboard).
	OnSnapshot func(stats.Snapshot)
}

// New creates a runner. Concurrency and request count are normalized
// to at least one.
func New(t *transport.Transport, opts Options) *Runner {
	if opts.Requests < 1 {
		opts.Requests = 1
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.Method == "" {
		opts.Method = "GET"
	}
	r := &Runner{t: t, opts: opts, rec: stats.NewRecorder()}
	if opts.Rate > 0 {
		r.limiter = rate.NewLimiter(rate.Limit(opts.Rate), 1)
	}
	return r
}

// Run executes the configured number of requests and returns the final
// snapshot. It stops early when ctx is cancelled.
func (r *Runner) Run(ctx context.Context) stats.Snapshot {
	jobs := make(chan struct{}, r.opts.Concurrency)
	var wg sync.WaitGroup

	for i := 0; i < r.opts.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range jobs {
				r.one(ctx)
			}
		}()
	}

	stop := make(chan struct{})
	if r.OnSnapshot != nil {
		go r.publish(stop)
	}

feed:
	for i := 0; i < r.opts.Requests; i++ {
		select {
		case jobs <- struct{}{}:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()
	close(stop)

	snap := r.rec.Snapshot()
	if r.OnSnapshot != nil {
		r.OnSnapshot(snap)
	}
	log.Printf("[bench] finished: %d requests, %d errors, %.1f req/s",
		snap.Total, snap.Errors, snap.RPS)
	return snap
}

func (r *Runner) one(ctx context.Context) {
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return
		}
	}

	req := &httpcore.Request{
		Method: r.opts.Method,
		URL:    r.opts.URL,
		Header: r.opts.Header.Clone(),
		Body:   r.opts.Body,
	}
	if r.opts.Stream {
		req.Extensions = map[string]any{httpcore.ExtStream: true}
	}

	start := time.Now()
	resp, err := r.t.Do(ctx, req)
	if err != nil {
		r.rec.Record(time.Since(start), 0, true)
		return
	}

	var bytes int64
	if resp.Stream != nil {
		n, serr := io.Copy(io.Discard, resp.Stream)
		resp.Stream.Close()
		bytes = n
		if serr != nil {
			r.rec.Record(time.Since(start), bytes, true)
			return
		}
	} else {
		bytes = int64(len(resp.Content))
	}

	r.rec.Record(time.Since(start), bytes, resp.StatusCode >= 400)
}

func (r *Runner) publish(stop <-chan struct{}) {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			r.OnSnapshot(r.rec.Snapshot())
		}
	}
}
