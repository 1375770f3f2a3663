package pipeline

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log"
	"net/http"
	"time"
)

// Span describes one attempt for the tracing sink. Every attempt of a
// request shares one trace id; each gets its own span id.
type Span struct {
	TraceID    string
	SpanID     string
	Method     string
	URL        string
	Attempt    int
	StatusCode int
	Err        error
	Start      time.Time
	Duration   time.Duration
}

// SpanSink receives completed spans. It is an external collaborator;
// the stage only writes to it.
type SpanSink interface {
	Record(Span)
}

// NopSink discards all spans.
type NopSink struct{}

func (NopSink) Record(Span) {}

// LogSink writes spans to the process log.
type LogSink struct{}

func (LogSink) Record(sp Span) {
	status := "ok"
	if sp.Err != nil {
		status = sp.Err.Error()
	}
	log.Printf("[trace] %s %s attempt=%d trace=%s span=%s code=%d dur=%s status=%s",
		sp.Method, sp.URL, sp.Attempt, sp.TraceID, sp.SpanID, sp.StatusCode, sp.Duration, status)
}

// TraceStage creates a span per attempt, injects the W3C traceparent
// header into the outgoing request, and records span status on
// completion or failure.
type TraceStage struct {
	sink SpanSink
}

func NewTraceStage(sink SpanSink) *TraceStage {
	if sink == nil {
		sink = NopSink{}
	}
	return &TraceStage{sink: sink}
}

func (s *TraceStage) Name() string { return "trace" }

func (s *TraceStage) Handle(ctx context.Context, req *http.Request, next Next) (*http.Response, error) {
	st := StateFrom(ctx)
	if st.TraceID == "" {
		st.TraceID = genTraceID()
	}

	sp := Span{
		TraceID: st.TraceID,
		SpanID:  genSpanID(),
		Method:  req.Method,
		URL:     req.URL.String(),
		Attempt: st.Attempts,
		Start:   time.Now(),
	}
	req.Header.Set("Traceparent", formatTraceparent(sp.TraceID, sp.SpanID))

	resp, err := next(ctx, req)

	sp.Duration = time.Since(sp.Start)
	sp.Err = err
	if resp != nil {
		sp.StatusCode = resp.StatusCode
	}
	s.sink.Record(sp)

	return resp, err
}

func genTraceID() string {
	var b [16]byte
	for {
		if _, err := rand.Read(b[:]); err == nil && !allZero(b[:]) {
			return hex.EncodeToString(b[:])
		}
	}
}

func genSpanID() string {
	var b [8]byte
	for {
		if _, err := rand.Read(b[:]); err == nil && !allZero(b[:]) {
			return hex.EncodeToString(b[:])
		}
	}
}

func allZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}

func formatTraceparent(traceID, spanID string) string {
	return "00-" + traceID + "-" + spanID + "-01"
}
