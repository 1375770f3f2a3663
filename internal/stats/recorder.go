// Package stats collects client-side latency and throughput figures
// for the bench command.
package stats

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Recorder accumulates per-request results. Safe for concurrent use.
type Recorder struct {
	mu        sync.Mutex
	hist      *hdrhistogram.Histogram // microseconds
	total     int64
	errors    int64
	bytesRead int64
	start     time.Time
}

// NewRecorder creates a recorder tracking latencies from 1µs to 60s at
// three significant figures.
func NewRecorder() *Recorder {
	return &Recorder{
		hist:  hdrhistogram.New(1, int64(60*time.Second/time.Microsecond), 3),
		start: time.Now(),
	}
}

// Record adds one completed request.
func (r *Recorder) Record(latency time.Duration, bytes int64, isError bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.total++
	r.bytesRead += bytes
	if isError {
		r.errors++
		return
	}
	// Out-of-range values are clamped by the histogram; ignore the error.
	_ = r.hist.RecordValue(int64(latency / time.Microsecond))
}

// Snapshot is a point-in-time view of the recorder.
type Snapshot struct {
	Total     int64
	Errors    int64
	BytesRead int64
	Elapsed   time.Duration
	RPS       float64

	P50  time.Duration
	P95  time.Duration
	P99  time.Duration
	Max  time.Duration
	Mean time.Duration
}

// Snapshot captures the current state.
func (r *Recorder) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	elapsed := time.Since(r.start)
	s := Snapshot{
		Total:     r.total,
		Errors:    r.errors,
		BytesRead: r.bytesRead,
		Elapsed:   elapsed,
		P50:       time.Duration(r.hist.ValueAtQuantile(50)) * time.Microsecond,
		P95:       time.Duration(r.hist.ValueAtQuantile(95)) * time.Microsecond,
		P99:       time.Duration(r.hist.ValueAtQuantile(99)) * time.Microsecond,
		Max:       time.Duration(r.hist.Max()) * time.Microsecond,
		Mean:      time.Duration(r.hist.Mean()) * time.Microsecond,
	}
	if secs := elapsed.Seconds(); secs > 0 {
		s.RPS = float64(r.total) / secs
	}
	return s
}

// ErrorRate returns the error percentage of a snapshot.
func (s Snapshot) ErrorRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Errors) / float64(s.Total) * 100
}
