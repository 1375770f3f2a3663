package httpcore

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
)

const (
	// DefaultStreamBuffer is how many chunks production may run ahead of
	// consumption before the pump blocks.
	DefaultStreamBuffer = 32
	// DefaultChunkSize is the read size for one pull.
	DefaultChunkSize = 32 * 1024
)

type chunk struct {
	data []byte
	err  error
}

// BodyStream exposes a response body as a pull-based, single-pass
// sequence of byte chunks. A bounded buffer caps how far the underlying
// connection read may run ahead of the consumer, so large bodies never
// accumulate in memory. At most one consumer may pull at a time.
type BodyStream struct {
	ch   chan chunk
	stop chan struct{}
	rc   io.ReadCloser

	closeOnce sync.Once
	doneOnce  sync.Once
	onDone    func()

	mu       sync.Mutex
	terminal error // io.EOF after exhaustion, ErrStreamClosed after Close
	leftover []byte
	bytes    atomic.Int64
}

// NewBodyStream starts pumping rc into a buffer of bufChunks chunks of
// up to chunkSize bytes. onDone runs exactly once when the stream ends
// for any reason; it is where the connection lease is released.
func NewBodyStream(rc io.ReadCloser, bufChunks, chunkSize int, onDone func()) *BodyStream {
	if bufChunks <= 0 {
		bufChunks = DefaultStreamBuffer
	}
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	s := &BodyStream{
		ch:     make(chan chunk, bufChunks),
		stop:   make(chan struct{}),
		rc:     rc,
		onDone: onDone,
	}
	go s.pump(chunkSize)
	return s
}

func (s *BodyStream) pump(chunkSize int) {
	defer func() {
		s.rc.Close()
		close(s.ch)
		s.finish()
	}()

	for {
		buf := make([]byte, chunkSize)
		n, err := s.rc.Read(buf)
		if n > 0 {
			select {
			case s.ch <- chunk{data: buf[:n]}:
			case <-s.stop:
				return
			}
		}
		if err != nil {
			if err != io.EOF {
				select {
				case s.ch <- chunk{err: Classify(err)}:
				case <-s.stop:
				}
			}
			return
		}
	}
}

// Next returns the next chunk. It returns (nil, io.EOF) after the last
// chunk, the classified transport error if the body failed mid-stream,
// and ErrStreamClosed after Close. ctx cancellation abandons the pull
// without consuming a chunk.
func (s *BodyStream) Next(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	if s.terminal != nil {
		err := s.terminal
		s.mu.Unlock()
		return nil, err
	}
	s.mu.Unlock()

	select {
	case <-ctx.Done():
		return nil, &Error{Kind: KindCancelled, Op: "stream pull", Err: ctx.Err()}
	case c, ok := <-s.ch:
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.terminal != nil {
			return nil, s.terminal
		}
		switch {
		case !ok:
			s.terminal = io.EOF
			return nil, io.EOF
		case c.err != nil:
			s.terminal = c.err
			return nil, c.err
		default:
			s.bytes.Add(int64(len(c.data)))
			return c.data, nil
		}
	}
}

// Read makes the stream usable as an io.Reader. It shares the
// single-consumer budget with Next.
func (s *BodyStream) Read(p []byte) (int, error) {
	s.mu.Lock()
	if len(s.leftover) > 0 {
		n := copy(p, s.leftover)
		s.leftover = s.leftover[n:]
		s.mu.Unlock()
		return n, nil
	}
	s.mu.Unlock()

	data, err := s.Next(context.Background())
	if err != nil {
		if err == ErrStreamClosed {
			return 0, io.EOF
		}
		return 0, err
	}
	n := copy(p, data)
	if n < len(data) {
		s.mu.Lock()
		s.leftover = data[n:]
		s.mu.Unlock()
	}
	return n, nil
}

// Close abandons the stream. Further pulls observe ErrStreamClosed and
// the underlying connection is released per protocol rules: the engine
// discards an HTTP/1.1 connection with an unread body and resets an
// HTTP/2 stream.
func (s *BodyStream) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		if s.terminal == nil {
			s.terminal = ErrStreamClosed
		}
		s.mu.Unlock()
		close(s.stop)
		s.rc.Close()
	})
	return nil
}

// BytesRead returns how many body bytes have been delivered to the
// consumer so far.
func (s *BodyStream) BytesRead() int64 { return s.bytes.Load() }

func (s *BodyStream) finish() {
	s.doneOnce.Do(func() {
		if s.onDone != nil {
			s.onDone()
		}
	})
}
