package pipeline

import (
	"context"
	"io"
	"math/rand"
	"net/http"
	"time"

	"github.com/wolvever/httpx-transport-go/internal/config"
	"github.com/wolvever/httpx-transport-go/pkg/httpcore"
)

// drainLimit bounds how much of a retried response body is read before
// the connection is released back to the pool.
const drainLimit = 256 << 10

// RetryStage re-invokes the inner chain after a backoff when a failure
// is classified retryable: connection-establishment errors always,
// phase timeouts and peer aborts for idempotent methods, and configured
// status codes. It is the only stage that recovers failures; everything
// else passes through with an attempt-count annotation.
type RetryStage struct {
	cfg     config.Retry
	metrics *Metrics
}

func NewRetryStage(cfg config.Retry, metrics *Metrics) *RetryStage {
	return &RetryStage{cfg: cfg, metrics: metrics}
}

func (s *RetryStage) Name() string { return "retry" }

func (s *RetryStage) Handle(ctx context.Context, req *http.Request, next Next) (*http.Response, error) {
	st := StateFrom(ctx)

	max := st.MaxAttempts
	if max <= 0 {
		max = s.cfg.MaxAttempts
	}
	if !st.Replayable {
		// A one-shot body cannot be resent byte-identically.
		max = 1
	}

	for attempt := 1; ; attempt++ {
		st.Attempts = attempt

		areq := req
		if attempt > 1 {
			var err error
			if areq, err = s.replay(req); err != nil {
				return nil, annotate(err, attempt)
			}
			if s.metrics != nil {
				s.metrics.RetriesTotal.Inc()
			}
		}

		resp, err := next(ctx, areq)
		if err != nil {
			if attempt < max && ctx.Err() == nil && s.retryableError(err, req, st) {
				if werr := s.backoff(ctx, attempt); werr != nil {
					return nil, annotate(werr, attempt)
				}
				continue
			}
			return nil, annotate(err, attempt)
		}

		if attempt < max && s.retryableStatus(resp.StatusCode, req, st) {
			// Release the connection cleanly before the next attempt.
			io.Copy(io.Discard, io.LimitReader(resp.Body, drainLimit))
			resp.Body.Close()
			if werr := s.backoff(ctx, attempt); werr != nil {
				return nil, annotate(werr, attempt)
			}
			continue
		}

		return resp, nil
	}
}

// replay clones the request with a fresh body for the next attempt.
func (s *RetryStage) replay(req *http.Request) (*http.Request, error) {
	areq := req.Clone(req.Context())
	if req.GetBody == nil {
		areq.Body = nil
		return areq, nil
	}
	rc, err := req.GetBody()
	if err != nil {
		return nil, httpcore.NewError(httpcore.KindInternal, "replay body", err)
	}
	areq.Body = rc
	return areq, nil
}

func (s *RetryStage) retryableError(err error, req *http.Request, st *State) bool {
	te := httpcore.Classify(err)
	idem := httpcore.Idempotent(req.Method) || st.RetryNonIdempotent

	switch te.Kind {
	case httpcore.KindConnection:
		return true
	case httpcore.KindTimeout:
		// Total-deadline breaches never reach here: the timeout stage
		// sits outside and its cancellation ends the loop via ctx.
		return idem
	case httpcore.KindTransport:
		return idem && httpcore.AbortedByPeer(err)
	default:
		return false
	}
}

func (s *RetryStage) retryableStatus(code int, req *http.Request, st *State) bool {
	if !httpcore.Idempotent(req.Method) && !st.RetryNonIdempotent {
		return false
	}
	for _, c := range s.cfg.RetryOnStatus {
		if c == code {
			return true
		}
	}
	return false
}

// backoff sleeps for an exponentially growing, fully jittered delay.
func (s *RetryStage) backoff(ctx context.Context, attempt int) error {
	d := s.cfg.BaseBackoff << (attempt - 1)
	if d > s.cfg.MaxBackoff || d <= 0 {
		d = s.cfg.MaxBackoff
	}
	d = time.Duration(rand.Int63n(int64(d)) + 1)

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return &httpcore.Error{Kind: httpcore.KindCancelled, Op: "retry backoff", Err: ctx.Err()}
	case <-t.C:
		return nil
	}
}

func annotate(err error, attempts int) error {
	cp := *httpcore.Classify(err)
	cp.Attempts = attempts
	return &cp
}
