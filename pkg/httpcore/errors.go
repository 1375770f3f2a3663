package httpcore

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"strings"
	"syscall"

	"golang.org/x/net/http2"
)

// Kind partitions transport failures the way the host library's own
// exception vocabulary does, so each kind maps 1:1 onto a host error.
type Kind int

const (
	// KindConnection covers DNS, TCP connect, and TLS failures that
	// happen before any request bytes were sent.
	KindConnection Kind = iota + 1
	// KindTimeout covers phase-specific deadline breaches.
	KindTimeout
	// KindTransport covers mid-stream read/write failures on an
	// established connection.
	KindTransport
	// KindProtocol covers malformed response framing.
	KindProtocol
	// KindCancelled covers caller-initiated abandonment.
	KindCancelled
	// KindInternal covers unexpected failures, including recovered
	// panics. It must never crash the host process.
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindConnection:
		return "connection"
	case KindTimeout:
		return "timeout"
	case KindTransport:
		return "transport"
	case KindProtocol:
		return "protocol"
	case KindCancelled:
		return "cancelled"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Phase identifies which request phase a timeout belongs to.
type Phase string

const (
	PhaseConnect Phase = "connect"
	PhaseWrite   Phase = "write"
	PhaseRead    Phase = "read"
	PhaseTotal   Phase = "total"
)

// Error is the typed failure returned by every transport operation.
type Error struct {
	Kind     Kind
	Phase    Phase // set for KindTimeout and connection-establishment errors
	Op       string
	Attempts int // attempts consumed when the error was produced, 0 if unknown
	Err      error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("httpcore: ")
	b.WriteString(e.Kind.String())
	if e.Phase != "" {
		b.WriteString(" (" + string(e.Phase) + ")")
	}
	if e.Op != "" {
		b.WriteString(" during " + e.Op)
	}
	if e.Attempts > 1 {
		fmt.Fprintf(&b, " after %d attempts", e.Attempts)
	}
	if e.Err != nil {
		b.WriteString(": " + e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Timeout and Temporary let *Error satisfy net.Error so it can travel
// back through the engine's connection plumbing untouched.
func (e *Error) Timeout() bool   { return e.Kind == KindTimeout }
func (e *Error) Temporary() bool { return e.Kind == KindConnection || e.Kind == KindTimeout }

// Is matches errors by kind, so callers can write
// errors.Is(err, httpcore.ErrTimeout).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Phase == "" || t.Phase == e.Phase)
}

// Kind sentinels for errors.Is matching.
var (
	ErrConnection = &Error{Kind: KindConnection}
	ErrTimeout    = &Error{Kind: KindTimeout}
	ErrTransport  = &Error{Kind: KindTransport}
	ErrProtocol   = &Error{Kind: KindProtocol}
	ErrCancelled  = &Error{Kind: KindCancelled}
	ErrInternal   = &Error{Kind: KindInternal}
)

// ErrStreamClosed is returned by BodyStream pulls after Close.
var ErrStreamClosed = errors.New("httpcore: body stream closed")

// NewError wraps err with a kind and operation tag.
func NewError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Classify maps an arbitrary error from the engine onto the taxonomy.
// Errors that already carry a Kind pass through unchanged.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	var te *Error
	if errors.As(err, &te) {
		return te
	}

	// Strip the engine's URL wrapper but keep the cause chain intact.
	var ue *url.Error
	if errors.As(err, &ue) && ue.Err != nil {
		if inner := Classify(ue.Err); inner != nil {
			inner.Err = err
			return inner
		}
	}

	switch {
	case errors.Is(err, context.Canceled):
		return &Error{Kind: KindCancelled, Err: err}
	case errors.Is(err, context.DeadlineExceeded):
		return &Error{Kind: KindTimeout, Phase: PhaseTotal, Err: err}
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return &Error{Kind: KindConnection, Phase: PhaseConnect, Op: "resolve", Err: err}
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		phase := PhaseRead
		switch opErr.Op {
		case "dial":
			if opErr.Timeout() {
				return &Error{Kind: KindTimeout, Phase: PhaseConnect, Op: "dial", Err: err}
			}
			return &Error{Kind: KindConnection, Phase: PhaseConnect, Op: "dial", Err: err}
		case "write":
			phase = PhaseWrite
		}
		if opErr.Timeout() {
			return &Error{Kind: KindTimeout, Phase: phase, Err: err}
		}
		return &Error{Kind: KindTransport, Phase: phase, Err: err}
	}

	if isTLSError(err) {
		return &Error{Kind: KindConnection, Phase: PhaseConnect, Op: "tls handshake", Err: err}
	}

	var h2Stream http2.StreamError
	if errors.As(err, &h2Stream) {
		return &Error{Kind: KindProtocol, Err: err}
	}
	var h2Conn http2.ConnectionError
	if errors.As(err, &h2Conn) {
		return &Error{Kind: KindProtocol, Err: err}
	}

	// The engine reports framing violations with "malformed" in the
	// message and has no exported type for them.
	if strings.Contains(err.Error(), "malformed") {
		return &Error{Kind: KindProtocol, Err: err}
	}

	// A generic timeout from the engine (e.g. its TLS handshake timer).
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{Kind: KindTimeout, Phase: PhaseTotal, Err: err}
	}

	return &Error{Kind: KindTransport, Err: err}
}

func isTLSError(err error) bool {
	var (
		recordErr tls.RecordHeaderError
		verifyErr *tls.CertificateVerificationError
		authErr   x509.UnknownAuthorityError
		hostErr   x509.HostnameError
		certErr   x509.CertificateInvalidError
	)
	return errors.As(err, &recordErr) ||
		errors.As(err, &verifyErr) ||
		errors.As(err, &authErr) ||
		errors.As(err, &hostErr) ||
		errors.As(err, &certErr)
}

// AbortedByPeer reports whether err looks like the remote end dropped
// the connection before or during the response. The retry stage treats
// these like connection-establishment failures for idempotent methods.
func AbortedByPeer(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE)
}
