// Package output provides a line-atomic writer: spec.md §5 requires
// that writes to the supervisor's output sink from multiple goroutines
// (Launcher, Reporter, Termination Controller) never interleave
// mid-line.
package output

import (
	"io"
	"sync"
)

// LineWriter serializes Write calls to an underlying io.Writer with a
// mutex, so that concurrent single-line writes never interleave.
type LineWriter struct {
	mu sync.Mutex
	w  io.Writer
}

// New wraps w in a LineWriter.
func New(w io.Writer) *LineWriter {
	return &LineWriter{w: w}
}

// Write implements io.Writer. Callers are expected to pass one line
// (or one logically-atomic chunk of report output) per call, as the
// Reporter, Launcher, and Termination Controller packages do.
func (l *LineWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
