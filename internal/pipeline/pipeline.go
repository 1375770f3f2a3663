// Package pipeline implements the request-processing chain wrapped
// around the pool engine: timeout enforcement, retry with backoff,
// trace span injection, and metrics recording, composed in that fixed
// order. Stages share a per-request State and never share anything
// across requests.
package pipeline

import (
	"context"
	"net/http"
	"time"
)

// Next is the continuation a stage calls to hand the request to the
// next stage (innermost: the pool engine).
type Next func(ctx context.Context, req *http.Request) (*http.Response, error)

// Stage is one composable unit of the chain. A stage may inspect or
// swap the request before calling next and the response after; a
// failure from next passes through unchanged in kind unless the stage
// explicitly recovers it.
type Stage interface {
	Name() string
	Handle(ctx context.Context, req *http.Request, next Next) (*http.Response, error)
}

// State is the per-request ephemeral context. It is created at
// pipeline entry and only ever touched by the single goroutine driving
// the request.
type State struct {
	Start time.Time

	// Resolved per-request overrides.
	TotalTimeout       time.Duration
	MaxAttempts        int // 0 means use the configured cap
	RetryNonIdempotent bool
	Replayable         bool

	// Attempts is maintained by the retry stage; 1 on the only attempt
	// of an unretried request.
	Attempts int

	// TraceID is assigned by the trace stage on the first attempt and
	// shared by every attempt's span.
	TraceID string
}

type stateKey struct{}

// WithState stores the per-request state in ctx.
func WithState(ctx context.Context, s *State) context.Context {
	return context.WithValue(ctx, stateKey{}, s)
}

// StateFrom extracts the per-request state, allocating a throwaway one
// when the chain is driven without it (tests).
func StateFrom(ctx context.Context) *State {
	if s, ok := ctx.Value(stateKey{}).(*State); ok {
		return s
	}
	return &State{Start: time.Now(), Attempts: 1, Replayable: true}
}

// Chain is a fixed, ordered composition of stages around a final
// continuation. Ordering is decided at construction; it is not
// runtime-reconfigurable.
type Chain struct {
	do Next
}

// NewChain composes stages outermost first around final.
func NewChain(final Next, stages ...Stage) *Chain {
	do := final
	for i := len(stages) - 1; i >= 0; i-- {
		stage := stages[i]
		inner := do
		do = func(ctx context.Context, req *http.Request) (*http.Response, error) {
			return stage.Handle(ctx, req, inner)
		}
	}
	return &Chain{do: do}
}

// Do drives one request through every stage.
func (c *Chain) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	return c.do(ctx, req)
}
