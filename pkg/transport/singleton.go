package transport

import (
	"os"
	"sync"
	"sync/atomic"

	"github.com/wolvever/httpx-transport-go/internal/config"
)

// The process-wide transport: created on first use, shared by every
// call, torn down only at process exit. Pooled connections and timer
// goroutines are not safely inherited across fork-like events, so the
// instance is keyed on process identity and rebuilt when stale rather
// than trusted implicitly.
var (
	defaultPtr atomic.Pointer[Transport]
	defaultPID atomic.Int64
	defaultMu  sync.Mutex
)

// Default returns the shared transport, building it on first use from
// the config file named by HTTPXGO_CONFIG (defaults when unset).
// Double-checked: the fast path is lock-free, and concurrent first
// calls race only for the lock, not the build. A build failure leaves
// no partial instance behind; the next call retries.
func Default() (*Transport, error) {
	pid := int64(os.Getpid())
	if t := defaultPtr.Load(); t != nil && defaultPID.Load() == pid {
		return t, nil
	}

	defaultMu.Lock()
	defer defaultMu.Unlock()

	if t := defaultPtr.Load(); t != nil && defaultPID.Load() == pid {
		return t, nil
	}
	if defaultPtr.Load() != nil {
		// Stale after a fork-like event: the inherited pool's sockets
		// belong to the parent, so drop the reference without closing.
		defaultPtr.Store(nil)
	}

	cfg, err := config.Load(os.Getenv("HTTPXGO_CONFIG"))
	if err != nil {
		return nil, err
	}
	t, err := New(cfg)
	if err != nil {
		return nil, err
	}
	defaultPID.Store(pid)
	defaultPtr.Store(t)
	return t, nil
}

// ResetDefault closes and forgets the shared transport. Intended for
// tests and for hosts that re-configure at runtime.
func ResetDefault() {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if t := defaultPtr.Load(); t != nil {
		t.Close()
		defaultPtr.Store(nil)
		defaultPID.Store(0)
	}
}
