package httpcore

// Response is the completed-call descriptor handed back to the caller.
// It is created exactly once per completed request and frozen before it
// leaves the transport.
type Response struct {
	StatusCode int
	Header     Header

	// Content holds the fully buffered body when streaming was not
	// requested. Nil in streaming mode.
	Content []byte

	// Stream is the open body handle in streaming mode. The caller owns
	// it and must Close it to release the underlying connection.
	Stream *BodyStream

	// Extensions carries pipeline-attached metadata such as ExtAttempts,
	// ExtElapsed, and ExtHTTPVersion.
	Extensions map[string]any
}

// Attempts returns the attempt count the pipeline recorded, 1 when the
// request succeeded without retries.
func (r *Response) Attempts() int {
	if n, ok := r.Extensions[ExtAttempts].(int); ok && n > 0 {
		return n
	}
	return 1
}
