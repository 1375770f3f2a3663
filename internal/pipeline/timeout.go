package pipeline

import (
	"context"
	"io"
	"net/http"

	"github.com/wolvever/httpx-transport-go/internal/config"
	"github.com/wolvever/httpx-transport-go/pkg/httpcore"
)

// TimeoutStage enforces the total deadline over the whole attempt tree.
// The connect, read, and write phases are enforced closer to the socket
// (dialer timeout and per-operation conn deadlines); any breach there
// surfaces here already classified with its phase.
type TimeoutStage struct {
	cfg config.Timeout
}

func NewTimeoutStage(cfg config.Timeout) *TimeoutStage {
	return &TimeoutStage{cfg: cfg}
}

func (s *TimeoutStage) Name() string { return "timeout" }

func (s *TimeoutStage) Handle(ctx context.Context, req *http.Request, next Next) (*http.Response, error) {
	st := StateFrom(ctx)
	total := st.TotalTimeout
	if total == 0 {
		total = s.cfg.Total
	}
	if total <= 0 {
		return next(ctx, req)
	}

	tctx, cancel := context.WithTimeout(ctx, total)
	resp, err := next(tctx, req.WithContext(tctx))
	if err != nil {
		cancel()
		if tctx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			return nil, &httpcore.Error{Kind: httpcore.KindTimeout, Phase: httpcore.PhaseTotal, Err: err}
		}
		return nil, err
	}

	// The deadline covers body streaming too, so the context must stay
	// alive until the body is closed.
	resp.Body = &cancelBody{rc: resp.Body, cancel: cancel}
	return resp, nil
}

type cancelBody struct {
	rc     io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelBody) Read(p []byte) (int, error) { return b.rc.Read(p) }

func (b *cancelBody) Close() error {
	err := b.rc.Close()
	b.cancel()
	return err
}
