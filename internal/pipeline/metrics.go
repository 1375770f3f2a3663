package pipeline

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the transport.
type Metrics struct {
	AttemptsTotal   *prometheus.CounterVec
	AttemptDuration *prometheus.HistogramVec
	InFlight        prometheus.Gauge
	RetriesTotal    prometheus.Counter
	BytesRead       prometheus.Counter
	BytesWritten    prometheus.Counter
}

// NewMetrics creates and registers all metrics against reg. Pass
// prometheus.DefaultRegisterer for process-wide scraping or a fresh
// registry in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		AttemptsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "httpx_transport",
				Name:      "attempts_total",
				Help:      "Total request attempts by method and status class",
			},
			[]string{"method", "class"},
		),
		AttemptDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "httpx_transport",
				Name:      "attempt_duration_seconds",
				Help:      "Attempt latency histogram",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to ~16s
			},
			[]string{"method"},
		),
		InFlight: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: "httpx_transport",
				Name:      "requests_in_flight",
				Help:      "Current number of attempts being processed",
			},
		),
		RetriesTotal: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "httpx_transport",
				Name:      "retries_total",
				Help:      "Total retry attempts",
			},
		),
		BytesRead: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "httpx_transport",
				Name:      "body_bytes_read_total",
				Help:      "Response body bytes delivered to callers",
			},
		),
		BytesWritten: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "httpx_transport",
				Name:      "body_bytes_written_total",
				Help:      "Request body bytes sent",
			},
		),
	}
}

// MetricsStage records attempt count, latency, status class, and byte
// counts for every attempt that reaches the engine.
type MetricsStage struct {
	m *Metrics
}

func NewMetricsStage(m *Metrics) *MetricsStage {
	return &MetricsStage{m: m}
}

func (s *MetricsStage) Name() string { return "metrics" }

func (s *MetricsStage) Handle(ctx context.Context, req *http.Request, next Next) (*http.Response, error) {
	s.m.InFlight.Inc()
	start := time.Now()

	resp, err := next(ctx, req)

	s.m.InFlight.Dec()
	s.m.AttemptDuration.WithLabelValues(req.Method).Observe(time.Since(start).Seconds())
	if req.ContentLength > 0 {
		s.m.BytesWritten.Add(float64(req.ContentLength))
	}

	if err != nil {
		s.m.AttemptsTotal.WithLabelValues(req.Method, "error").Inc()
		return nil, err
	}

	s.m.AttemptsTotal.WithLabelValues(req.Method, statusClass(resp.StatusCode)).Inc()
	resp.Body = &countingBody{rc: resp.Body, counter: s.m.BytesRead}
	return resp, nil
}

func statusClass(code int) string {
	if code < 100 || code > 599 {
		return "other"
	}
	return fmt.Sprintf("%dxx", code/100)
}

// countingBody feeds delivered body bytes into the read counter.
type countingBody struct {
	rc      io.ReadCloser
	counter prometheus.Counter
}

func (b *countingBody) Read(p []byte) (int, error) {
	n, err := b.rc.Read(p)
	if n > 0 {
		b.counter.Add(float64(n))
	}
	return n, err
}

func (b *countingBody) Close() error { return b.rc.Close() }
