package httpcore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Well-known extension keys. Unknown keys are carried but ignored.
const (
	// ExtStream requests a streamed response body instead of a fully
	// buffered one.
	ExtStream = "stream"
	// ExtTimeout overrides the configured total timeout for one call.
	// Accepts a time.Duration, a duration string, or seconds as a number.
	ExtTimeout = "timeout"
	// ExtRetryNonIdempotent permits retrying a non-idempotent method.
	ExtRetryNonIdempotent = "retry_non_idempotent"
	// ExtMaxAttempts overrides the configured retry attempt cap.
	ExtMaxAttempts = "max_attempts"

	// Extension keys attached to responses by the pipeline.
	ExtAttempts    = "attempts"
	ExtElapsed     = "elapsed"
	ExtHTTPVersion = "http_version"
)

// Request describes one HTTP call. It is treated as immutable once
// handed to the transport; the marshalling boundary clones what it
// needs before the pipeline runs.
type Request struct {
	Method string
	URL    string
	Header Header

	// Body is a fixed, replayable byte buffer. Leave nil and set
	// GetBody for a lazy producer.
	Body []byte

	// GetBody produces the body reader and must be restartable: when
	// retries are enabled it is called once per attempt.
	GetBody func() (io.ReadCloser, error)

	// BodyReader is a one-shot lazy body. Requests carrying only a
	// BodyReader cannot be replayed, so the retry stage skips them.
	BodyReader io.ReadCloser

	// Timeout overrides the configured total timeout. Zero means use
	// the transport default. The ExtTimeout extension wins over both.
	Timeout time.Duration

	// Extensions carries opaque per-call configuration for pipeline
	// stages and pipeline-attached response metadata.
	Extensions map[string]any
}

// Validate performs the bounded, non-blocking checks the marshalling
// boundary is allowed to do: method and URL shape only.
func (r *Request) Validate() error {
	if r.Method != "" && !validMethod(r.Method) {
		return NewError(KindProtocol, "validate", fmt.Errorf("invalid method %q", r.Method))
	}
	u, err := url.Parse(r.URL)
	if err != nil {
		return NewError(KindProtocol, "validate", fmt.Errorf("invalid url: %w", err))
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return NewError(KindProtocol, "validate", fmt.Errorf("unsupported scheme %q", u.Scheme))
	}
	if u.Host == "" {
		return NewError(KindProtocol, "validate", fmt.Errorf("url %q has no host", r.URL))
	}
	return nil
}

// HTTPRequest converts the descriptor into the engine's request form.
// Headers are copied without reordering; a fixed body is wrapped so the
// retry stage can replay it byte-identically.
func (r *Request) HTTPRequest(ctx context.Context, userAgent string) (*http.Request, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}

	method := r.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	switch {
	case r.GetBody != nil:
		rc, err := r.GetBody()
		if err != nil {
			return nil, NewError(KindInternal, "body producer", err)
		}
		body = rc
	case r.BodyReader != nil:
		body = r.BodyReader
	case r.Body != nil:
		body = bytes.NewReader(r.Body)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.URL, body)
	if err != nil {
		return nil, NewError(KindInternal, "build request", err)
	}

	if r.GetBody != nil {
		req.GetBody = r.GetBody
		req.ContentLength = -1
	}

	for _, e := range r.Header {
		if e.Name == "" {
			continue
		}
		// Host is not a regular field on the engine's request.
		if strings.EqualFold(e.Name, "Host") {
			req.Host = e.Value
			continue
		}
		req.Header.Add(e.Name, e.Value)
	}

	if userAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", userAgent)
	}

	return req, nil
}

// Replayable reports whether every retry attempt can resend an
// identical body.
func (r *Request) Replayable() bool {
	return r.BodyReader == nil
}

// BoolExt reads a boolean extension, tolerating absent or mistyped
// values the way the original transport does.
func (r *Request) BoolExt(key string) bool {
	v, ok := r.Extensions[key]
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// DurationExt reads a duration extension given as a time.Duration, a
// duration string, or seconds as an int or float. Returns 0 when the
// key is absent or unusable.
func (r *Request) DurationExt(key string) time.Duration {
	v, ok := r.Extensions[key]
	if !ok {
		return 0
	}
	switch t := v.(type) {
	case time.Duration:
		if t > 0 {
			return t
		}
	case string:
		if d, err := time.ParseDuration(t); err == nil && d > 0 {
			return d
		}
	case int:
		if t > 0 {
			return time.Duration(t) * time.Second
		}
	case int64:
		if t > 0 {
			return time.Duration(t) * time.Second
		}
	case float64:
		if t > 0 {
			return time.Duration(t * float64(time.Second))
		}
	}
	return 0
}

// IntExt reads an integer extension, 0 when absent or unusable.
func (r *Request) IntExt(key string) int {
	v, ok := r.Extensions[key]
	if !ok {
		return 0
	}
	switch t := v.(type) {
	case int:
		return t
	case int64:
		return int(t)
	case float64:
		return int(t)
	}
	return 0
}

func validMethod(m string) bool {
	if m == "" {
		return false
	}
	for i := 0; i < len(m); i++ {
		c := m[i]
		if (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || c == '-' {
			continue
		}
		return false
	}
	return true
}

// Idempotent reports whether method is safe to retry without explicit
// permission, per RFC 9110 idempotent method semantics.
func Idempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace,
		http.MethodPut, http.MethodDelete, "":
		return true
	}
	return false
}
