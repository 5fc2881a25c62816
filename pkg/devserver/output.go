package devserver

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"
)

var (
	devPrefix     = color.New(color.FgGreen, color.Bold).Sprint("webdev dev:")
	installPrefix = color.New(color.FgMagenta, color.Bold).Sprint("webdev install:")
)

// lineWriter prefixes each complete line before passing it on.
type lineWriter struct {
	mu     sync.Mutex
	out    io.Writer
	prefix string
	buf    bytes.Buffer
}

func newLineWriter(out io.Writer, prefix string) *lineWriter {
	return &lineWriter{out: out, prefix: prefix}
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf.Write(p)
	for {
		line, err := w.buf.ReadBytes('\n')
		if err != nil {
			// incomplete line stays buffered
			w.buf.Reset()
			w.buf.Write(line)
			break
		}
		fmt.Fprintf(w.out, "%s %s", w.prefix, line)
	}
	return len(p), nil
}
