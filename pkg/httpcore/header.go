package httpcore

import (
	"net/http"
	"sort"
	"strings"
)

// HeaderEntry is a single name/value pair.
type HeaderEntry struct {
	Name  string
	Value string
}

// Header is an ordered multimap of header fields. Unlike net/http's
// Header it preserves insertion order and duplicate names; name
// comparison is case-insensitive.
type Header []HeaderEntry

// Get returns the first value for name, or "" if absent.
func (h Header) Get(name string) string {
	for _, e := range h {
		if strings.EqualFold(e.Name, name) {
			return e.Value
		}
	}
	return ""
}

// Values returns all values for name in order.
func (h Header) Values(name string) []string {
	var vv []string
	for _, e := range h {
		if strings.EqualFold(e.Name, name) {
			vv = append(vv, e.Value)
		}
	}
	return vv
}

// Has reports whether name is present.
func (h Header) Has(name string) bool {
	for _, e := range h {
		if strings.EqualFold(e.Name, name) {
			return true
		}
	}
	return false
}

// Add appends a field, keeping any existing fields with the same name.
func (h *Header) Add(name, value string) {
	*h = append(*h, HeaderEntry{Name: name, Value: value})
}

// Set replaces every field named name with a single field. The new
// field takes the position of the first replaced one, or is appended
// when name was absent.
func (h *Header) Set(name, value string) {
	out := (*h)[:0]
	placed := false
	for _, e := range *h {
		if strings.EqualFold(e.Name, name) {
			if !placed {
				out = append(out, HeaderEntry{Name: name, Value: value})
				placed = true
			}
			continue
		}
		out = append(out, e)
	}
	if !placed {
		out = append(out, HeaderEntry{Name: name, Value: value})
	}
	*h = out
}

// Del removes every field named name.
func (h *Header) Del(name string) {
	out := (*h)[:0]
	for _, e := range *h {
		if !strings.EqualFold(e.Name, name) {
			out = append(out, e)
		}
	}
	*h = out
}

// Clone returns a copy that shares no storage with h.
func (h Header) Clone() Header {
	if h == nil {
		return nil
	}
	out := make(Header, len(h))
	copy(out, h)
	return out
}

// HeaderFromHTTP converts a net/http header map. The engine's map does
// not retain cross-name wire order, so names come back in sorted form;
// values within a name keep their received order.
func HeaderFromHTTP(hh http.Header) Header {
	names := make([]string, 0, len(hh))
	for name := range hh {
		names = append(names, name)
	}
	sort.Strings(names)

	var h Header
	for _, name := range names {
		for _, v := range hh[name] {
			h = append(h, HeaderEntry{Name: name, Value: v})
		}
	}
	return h
}
