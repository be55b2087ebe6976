package progress

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// syncBuffer guards a bytes.Buffer written by the logger goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestNilTracker(t *testing.T) {
	t.Parallel()

	var tr *Tracker
	tr.SetTotal(10)
	tr.AddBytes(5)
	tr.Start()
	tr.Stop()
	require.Zero(t, tr.Processed())

	var buf bytes.Buffer
	w := &Writer{W: &buf}
	n, err := w.Write([]byte("abc"))
	require.NoError(t, err)
	require.Equal(t, 3, n)
}

func TestLine(t *testing.T) {
	t.Parallel()

	tr := New(&bytes.Buffer{}, time.Second)
	tr.AddBytes(1024)
	require.Equal(t, "Processed 1.0 KiB | Rate: 0 B/s", tr.Line(0))

	tr.SetTotal(2048)
	require.Equal(t, "Processed 1.0 KiB of 2.0 KiB (50.0%) | Rate: 512 B/s", tr.Line(512))
}

func TestWriterCounts(t *testing.T) {
	t.Parallel()

	tr := New(&bytes.Buffer{}, time.Second)
	var dst bytes.Buffer
	w := &Writer{W: &dst, Tracker: tr}
	for range 4 {
		_, err := w.Write(make([]byte, 256))
		require.NoError(t, err)
	}
	require.Equal(t, uint64(1024), tr.Processed())
	require.Equal(t, 1024, dst.Len())
}

// TestStartStop tests periodic lines and the final summary
func TestStartStop(t *testing.T) {
	t.Parallel()

	out := &syncBuffer{}
	tr := New(out, 10*time.Millisecond)
	tr.SetTotal(100)
	tr.Start()
	tr.Start()
	tr.AddBytes(100)

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "Processed 100 B of 100 B (100.0%)")
	}, time.Second, 5*time.Millisecond)

	tr.Stop()
	tr.Stop()
	require.Contains(t, out.String(), "Completed processing 100 B in")
}
