package progress

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
)

// Tracker counts processed bytes and periodically prints a status line.
// A nil *Tracker is valid and ignores every call, so library code can
// report progress unconditionally.
type Tracker struct {
	out       io.Writer
	interval  time.Duration
	processed atomic.Uint64
	total     atomic.Uint64

	mu      sync.Mutex
	done    chan struct{}
	stopped chan struct{}
}

// New returns a tracker printing to out every interval.
func New(out io.Writer, interval time.Duration) *Tracker {
	if interval <= 0 {
		interval = time.Second
	}
	return &Tracker{out: out, interval: interval}
}

// SetTotal sets the expected number of bytes.
func (t *Tracker) SetTotal(size uint64) {
	if t == nil {
		return
	}
	t.total.Store(size)
}

// AddBytes adds processed bytes to the counter
func (t *Tracker) AddBytes(n uint64) {
	if t == nil || n == 0 {
		return
	}
	t.processed.Add(n)
}

// Processed returns the bytes counted so far.
func (t *Tracker) Processed() uint64 {
	if t == nil {
		return 0
	}
	return t.processed.Load()
}

// Start launches the reporting goroutine. Calling Start twice is a no-op.
func (t *Tracker) Start() {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done != nil {
		return
	}
	t.done = make(chan struct{})
	t.stopped = make(chan struct{})
	go t.logger(t.done, t.stopped)
}

// Stop stops the reporting goroutine and prints a final summary.
func (t *Tracker) Stop() {
	if t == nil {
		return
	}
	t.mu.Lock()
	done, stopped := t.done, t.stopped
	t.done, t.stopped = nil, nil
	t.mu.Unlock()
	if done == nil {
		return
	}
	close(done)
	<-stopped
}

// Line renders the current status.
func (t *Tracker) Line(rate uint64) string {
	current := t.processed.Load()
	total := t.total.Load()
	if total == 0 {
		return fmt.Sprintf("Processed %s | Rate: %s/s", humanize.IBytes(current), humanize.IBytes(rate))
	}
	pct := float64(current) / float64(total) * 100
	return fmt.Sprintf("Processed %s of %s (%.1f%%) | Rate: %s/s",
		humanize.IBytes(current), humanize.IBytes(total), pct, humanize.IBytes(rate))
}

// logger logs processing progress periodically
func (t *Tracker) logger(done <-chan struct{}, stopped chan<- struct{}) {
	defer close(stopped)
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	var prevBytes uint64
	startTime := time.Now()
	for {
		select {
		case <-ticker.C:
			currentBytes := t.processed.Load()
			rate := uint64(float64(currentBytes-prevBytes) / t.interval.Seconds())
			prevBytes = currentBytes
			fmt.Fprintln(t.out, t.Line(rate))
		case <-done:
			elapsed := time.Since(startTime).Seconds()
			if elapsed < 0.001 {
				elapsed = 0.001 // Avoid division by zero
			}
			total := t.processed.Load()
			fmt.Fprintf(t.out, "Completed processing %s in %.1f seconds (avg rate: %s/s)\n",
				humanize.IBytes(total), elapsed, humanize.IBytes(uint64(float64(total)/elapsed)))
			return
		}
	}
}

// Writer is a writer that tracks bytes written for progress reporting
type Writer struct {
	W       io.Writer
	Tracker *Tracker
}

// Write implements io.Writer and tracks bytes written
func (pw *Writer) Write(p []byte) (n int, err error) {
	n, err = pw.W.Write(p)
	if err == nil && n > 0 {
		pw.Tracker.AddBytes(uint64(n))
	}
	return
}
