package httpcore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

type trackedReader struct {
	io.Reader
	closed atomic.Bool
}

func (r *trackedReader) Close() error {
	r.closed.Store(true)
	return nil
}

func TestBodyStreamDelivery(t *testing.T) {
	src := bytes.Repeat([]byte("x"), 10*1024)
	rc := &trackedReader{Reader: bytes.NewReader(src)}

	var doneCalls atomic.Int32
	s := NewBodyStream(rc, 4, 1024, func() { doneCalls.Add(1) })

	var got []byte
	ctx := context.Background()
	for {
		chunk, err := s.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		if len(chunk) > 1024 {
			t.Fatalf("chunk of %d bytes exceeds chunk size", len(chunk))
		}
		got = append(got, chunk...)
	}

	if !bytes.Equal(got, src) {
		t.Errorf("delivered %d bytes, want %d", len(got), len(src))
	}
	if s.BytesRead() != int64(len(src)) {
		t.Errorf("BytesRead = %d, want %d", s.BytesRead(), len(src))
	}

	// EOF is terminal and repeatable.
	if _, err := s.Next(ctx); err != io.EOF {
		t.Errorf("second pull after EOF = %v, want io.EOF", err)
	}
	if !rc.closed.Load() {
		t.Error("underlying body not closed after exhaustion")
	}
	// onDone runs in the pump goroutine right after the channel closes.
	deadline := time.Now().Add(time.Second)
	for doneCalls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if doneCalls.Load() != 1 {
		t.Errorf("onDone ran %d times, want 1", doneCalls.Load())
	}
}

func TestBodyStreamClose(t *testing.T) {
	// An endless body: the pump would produce forever without Close.
	rc := &trackedReader{Reader: &endlessReader{}}
	s := NewBodyStream(rc, 2, 512, nil)

	if _, err := s.Next(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	if _, err := s.Next(context.Background()); err != ErrStreamClosed {
		t.Errorf("pull after Close = %v, want ErrStreamClosed", err)
	}
	// Close is idempotent.
	if err := s.Close(); err != nil {
		t.Errorf("second Close = %v", err)
	}
	if !rc.closed.Load() {
		t.Error("underlying body not closed")
	}
}

type endlessReader struct{}

func (endlessReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 'z'
	}
	return len(p), nil
}

type failAfterReader struct {
	data []byte
	err  error
}

func (r *failAfterReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, r.err
	}
	n := copy(p, r.data)
	r.data = r.data[n:]
	return n, nil
}

func TestBodyStreamMidStreamError(t *testing.T) {
	cause := errors.New("connection reset by peer")
	rc := io.NopCloser(&failAfterReader{data: []byte("partial"), err: cause})
	s := NewBodyStream(rc, 2, 4, nil)

	ctx := context.Background()
	var total int
	var got error
	for {
		chunk, err := s.Next(ctx)
		if err != nil {
			got = err
			break
		}
		total += len(chunk)
	}

	if total != len("partial") {
		t.Errorf("delivered %d bytes before failure, want %d", total, len("partial"))
	}
	var te *Error
	if !errors.As(got, &te) {
		t.Fatalf("mid-stream error %v is not typed", got)
	}
	// The failure is terminal and repeats.
	if _, err := s.Next(ctx); err != got {
		t.Errorf("repeat pull = %v, want same terminal error", err)
	}
}

func TestBodyStreamContextCancel(t *testing.T) {
	// A body that never produces: the pull must unblock via ctx alone.
	r, _ := io.Pipe()
	s := NewBodyStream(io.NopCloser(r), 2, 512, nil)
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := s.Next(ctx)
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("pull under cancelled ctx = %v, want cancelled kind", err)
	}
}

func TestBodyStreamBackpressure(t *testing.T) {
	var reads atomic.Int64
	counting := readFunc(func(p []byte) (int, error) {
		reads.Add(1)
		for i := range p {
			p[i] = 'a'
		}
		return len(p), nil
	})
	s := NewBodyStream(io.NopCloser(counting), 2, 512, nil)
	defer s.Close()

	// Without consumption the pump can run at most buffer+1 reads ahead
	// (the buffered chunks plus one blocked in flight).
	time.Sleep(50 * time.Millisecond)
	if n := reads.Load(); n > 3 {
		t.Errorf("pump ran %d reads ahead of consumer, want <= 3", n)
	}
}

type readFunc func(p []byte) (int, error)

func (f readFunc) Read(p []byte) (int, error) { return f(p) }

func TestBodyStreamReader(t *testing.T) {
	rc := io.NopCloser(strings.NewReader("hello stream reader"))
	s := NewBodyStream(rc, 2, 4, nil)

	data, err := io.ReadAll(s)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "hello stream reader" {
		t.Errorf("ReadAll = %q", data)
	}
}
