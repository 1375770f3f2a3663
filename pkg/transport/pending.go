package transport

import (
	"context"
	"sync"

	"github.com/wolvever/httpx-transport-go/pkg/httpcore"
)

type outcome struct {
	resp *httpcore.Response
	err  error
}

// Pending is the single opaque handle for an in-flight request. It
// resolves to exactly one terminal outcome, never more, never zero.
// The host associates it with whatever suspension primitive its
// runtime provides.
type Pending struct {
	ch     chan outcome
	cancel context.CancelFunc

	mu   sync.Mutex
	done bool
	out  outcome
}

// Await suspends until the request resolves or ctx is cancelled. A
// cancellation aborts the in-flight attempt and then waits out the
// short grace period until the pipeline acknowledges; the
// acknowledgment is the terminal outcome. Await may be called again
// after resolution and returns the same outcome.
func (p *Pending) Await(ctx context.Context) (*httpcore.Response, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done {
		return p.out.resp, p.out.err
	}

	select {
	case out := <-p.ch:
		p.resolve(out)
	case <-ctx.Done():
		p.cancel()
		// The cancelled pipeline unwinds at its current suspension
		// point; its acknowledgment is the one outcome delivered.
		p.resolve(<-p.ch)
	}
	return p.out.resp, p.out.err
}

// Wait blocks the calling goroutine until resolution, matching the
// host's synchronous call convention.
func (p *Pending) Wait() (*httpcore.Response, error) {
	return p.Await(context.Background())
}

// Cancel signals the in-flight attempt to abort. The terminal outcome
// still arrives through Await or Wait.
func (p *Pending) Cancel() { p.cancel() }

func (p *Pending) resolve(out outcome) {
	p.done = true
	p.out = out
}
