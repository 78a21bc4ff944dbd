package testhelpers

import (
	"io"
	"strings"
	"testing"
)

// Writer writes log lines to tb.Log so that they only show up for failing tests.
type Writer struct {
	tb       testing.TB
	testDone chan struct{}
}

// NewWriter creates a Writer bound to the lifetime of tb.
func NewWriter(tb testing.TB) io.Writer {
	w := &Writer{
		tb:       tb,
		testDone: make(chan struct{}),
	}
	tb.Cleanup(func() {
		close(w.testDone)
	})
	return w
}

// Write implements io.Writer by writing to t.Log.
func (w *Writer) Write(p []byte) (int, error) {
	select {
	case <-w.testDone:
		// A goroutine outlived its test, usually a server that was not shut down in t.Cleanup.
		panic("testwriter: write after test completion: " + strings.TrimSpace(string(p)))
	default:
		if output := strings.TrimSuffix(string(p), "\n"); output != "" {
			w.tb.Log(output)
		}
		return len(p), nil
	}
}
