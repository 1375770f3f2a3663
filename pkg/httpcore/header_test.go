package httpcore

import (
	"net/http"
	"reflect"
	"testing"
)

func TestHeaderOrderAndDuplicates(t *testing.T) {
	var h Header
	h.Add("Accept", "text/html")
	h.Add("X-Custom", "one")
	h.Add("Accept", "application/json")

	if got := h.Get("accept"); got != "text/html" {
		t.Errorf("Get(accept) = %q, want %q", got, "text/html")
	}
	if got := h.Values("ACCEPT"); !reflect.DeepEqual(got, []string{"text/html", "application/json"}) {
		t.Errorf("Values(ACCEPT) = %v", got)
	}
	if len(h) != 3 {
		t.Fatalf("len = %d, want 3", len(h))
	}
	// Duplicates stay in insertion order.
	if h[0].Name != "Accept" || h[1].Name != "X-Custom" || h[2].Name != "Accept" {
		t.Errorf("order lost: %v", h)
	}
}

func TestHeaderSet(t *testing.T) {
	var h Header
	h.Add("Accept", "text/html")
	h.Add("X-Custom", "one")
	h.Add("Accept", "application/json")

	h.Set("accept", "text/plain")
	if got := h.Values("Accept"); !reflect.DeepEqual(got, []string{"text/plain"}) {
		t.Errorf("Values after Set = %v", got)
	}
	// The replacement takes the first occurrence's position.
	if h[0].Value != "text/plain" || h[1].Name != "X-Custom" {
		t.Errorf("Set changed positions: %v", h)
	}

	h.Set("New-Name", "v")
	if h[len(h)-1].Name != "New-Name" {
		t.Errorf("Set of absent name should append: %v", h)
	}
}

func TestHeaderDel(t *testing.T) {
	var h Header
	h.Add("A", "1")
	h.Add("B", "2")
	h.Add("a", "3")

	h.Del("A")
	if h.Has("A") {
		t.Error("Del left entries behind")
	}
	if !h.Has("B") {
		t.Error("Del removed unrelated entry")
	}
}

func TestHeaderClone(t *testing.T) {
	var h Header
	h.Add("A", "1")
	c := h.Clone()
	c.Set("A", "changed")
	if h.Get("A") != "1" {
		t.Error("Clone shares storage with original")
	}

	var nilH Header
	if nilH.Clone() != nil {
		t.Error("Clone of nil should be nil")
	}
}

func TestHeaderFromHTTP(t *testing.T) {
	hh := http.Header{}
	hh.Add("Zeta", "z")
	hh.Add("Alpha", "a1")
	hh.Add("Alpha", "a2")

	h := HeaderFromHTTP(hh)
	want := Header{
		{Name: "Alpha", Value: "a1"},
		{Name: "Alpha", Value: "a2"},
		{Name: "Zeta", Value: "z"},
	}
	if !reflect.DeepEqual(h, want) {
		t.Errorf("HeaderFromHTTP = %v, want %v", h, want)
	}
}
