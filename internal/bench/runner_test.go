package bench

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/wolvever/httpx-transport-go/pkg/transport"
)

func TestRunnerCompletesAllRequests(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	tr, err := transport.New(nil)
	if err != nil {
		t.Fatal(err)
	}
	defer tr.Close()

	runner := New(tr, Options{URL: srv.URL, Requests: 20, Concurrency: 4})
	snap := runner.Run(context.Background())

	if hits.Load() != 20 {
		t.Errorf("server hits = %d, want 20", hits.Load())
	}
	if snap.Total != 20 {
		t.Errorf("snapshot total = %d, want 20", snap.Total)
	}
	if snap.Errors != 0 {
		t.Errorf("errors = %d, want 0", snap.Errors)
	}
	if snap.BytesRead != 40 {
		t.Errorf("bytes read = %d, want 40", snap.BytesRead)
	}
}

func TestRunnerStreamMode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(make([]byte, 2048))
	}))
	defer srv.Close()

	tr, err := transport.New(nil)
	if err != nil {
		t.Fatal(err)
	}
	defer tr.Close()

	runner := New(tr, Options{URL: srv.URL, Requests: 5, Concurrency: 2, Stream: true})
	snap := runner.Run(context.Background())

	if snap.BytesRead != 5*2048 {
		t.Errorf("bytes read = %d, want %d", snap.BytesRead, 5*2048)
	}
}

func TestRunnerCountsErrorStatuses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	tr, err := transport.New(nil)
	if err != nil {
		t.Fatal(err)
	}
	defer tr.Close()

	runner := New(tr, Options{URL: srv.URL, Requests: 3, Concurrency: 1})
	snap := runner.Run(context.Background())

	if snap.Errors != 3 {
		t.Errorf("errors = %d, want 3", snap.Errors)
	}
}

func TestRunnerNormalizesOptions(t *testing.T) {
	tr, err := transport.New(nil)
	if err != nil {
		t.Fatal(err)
	}
	defer tr.Close()

	r := New(tr, Options{URL: "http://example.com/"})
	if r.opts.Requests != 1 || r.opts.Concurrency != 1 || r.opts.Method != "GET" {
		t.Errorf("normalized opts = %+v", r.opts)
	}
}
