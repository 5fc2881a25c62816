package build

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/fatih/color"
)

// Console prefixes for subprocess output.
var (
	buildPrefix   = color.New(color.FgCyan, color.Bold).Sprint("webdev build:")
	installPrefix = color.New(color.FgMagenta, color.Bold).Sprint("webdev install:")
)

// maxLineLength caps a single buffered line; longer output is split.
const maxLineLength = 64 * 1024

// tailBuffer keeps the last n lines written to it.
type tailBuffer struct {
	mu    sync.Mutex
	lines []string
	next  int
	full  bool
}

func newTailBuffer(n int) *tailBuffer {
	if n <= 0 {
		n = 1
	}
	return &tailBuffer{lines: make([]string, n)}
}

func (t *tailBuffer) add(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lines[t.next] = line
	t.next = (t.next + 1) % len(t.lines)
	if t.next == 0 {
		t.full = true
	}
}

// Lines returns the buffered lines, oldest first.
func (t *tailBuffer) Lines() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.full {
		return append([]string(nil), t.lines[:t.next]...)
	}
	out := make([]string, 0, len(t.lines))
	out = append(out, t.lines[t.next:]...)
	return append(out, t.lines[:t.next]...)
}

// outputSink fans completed lines out to the console, the logger and the tail.
type outputSink struct {
	mu      sync.Mutex
	console io.Writer
	prefix  string
	logger  *slog.Logger
	tail    *tailBuffer
}

func (s *outputSink) line(stream, text string) {
	s.tail.add(text)
	if s.console != nil {
		s.mu.Lock()
		fmt.Fprintf(s.console, "%s %s\n", s.prefix, text)
		s.mu.Unlock()
	}
	s.logger.Log(context.Background(), slog.LevelDebug, "build output", "stream", stream, "line", text)
}

// lineWriter splits a byte stream into lines for an outputSink. exec runs one
// copy goroutine per stream, so stdout and stderr are drained concurrently.
type lineWriter struct {
	sink   *outputSink
	stream string
	buf    []byte
}

func (w *lineWriter) Write(p []byte) (int, error) {
	n := len(p)
	for len(p) > 0 {
		i := bytes.IndexByte(p, '\n')
		if i < 0 {
			w.buf = append(w.buf, p...)
			if len(w.buf) >= maxLineLength {
				w.emit()
			}
			break
		}
		w.buf = append(w.buf, p[:i]...)
		w.emit()
		p = p[i+1:]
	}
	return n, nil
}

// Flush emits any trailing partial line.
func (w *lineWriter) Flush() {
	if len(w.buf) > 0 {
		w.emit()
	}
}

func (w *lineWriter) emit() {
	w.sink.line(w.stream, string(bytes.TrimRight(w.buf, "\r")))
	w.buf = w.buf[:0]
}
