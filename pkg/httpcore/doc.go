// Package httpcore defines the wire-level request/response descriptors,
// the streaming body handle, and the error taxonomy shared by the
// transport engine and its callers.
//
// Types here mirror the host library's own request/response vocabulary:
// a Request is an immutable description of one HTTP call, a Response is
// produced exactly once per completed call, and a BodyStream hands the
// response body to the caller one chunk at a time.
package httpcore
