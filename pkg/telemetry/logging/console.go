package logging

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

const consoleTimeFormat = "15:04:05.000"

// consoleHandler writes one human-readable line per record:
//
//	12:04:05.120 INFO  build finished job_id=... duration=1.2s
type consoleHandler struct {
	opts   slog.HandlerOptions
	mu     *sync.Mutex
	w      io.Writer
	attrs  []byte
	groups []string
	colors map[slog.Level]*color.Color
	faint  *color.Color
}

func newConsoleHandler(w io.Writer, opts *slog.HandlerOptions, noColor bool) *consoleHandler {
	h := &consoleHandler{
		mu: &sync.Mutex{},
		w:  w,
		colors: map[slog.Level]*color.Color{
			slog.LevelDebug: color.New(color.FgMagenta),
			slog.LevelInfo:  color.New(color.FgCyan),
			slog.LevelWarn:  color.New(color.FgYellow),
			slog.LevelError: color.New(color.FgRed, color.Bold),
		},
		faint: color.New(color.Faint),
	}
	if opts != nil {
		h.opts = *opts
	}
	for _, c := range h.colors {
		applyColorMode(c, noColor)
	}
	applyColorMode(h.faint, noColor)
	return h
}

func applyColorMode(c *color.Color, noColor bool) {
	if noColor {
		c.DisableColor()
	}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	minLevel := slog.LevelInfo
	if h.opts.Level != nil {
		minLevel = h.opts.Level.Level()
	}
	return level >= minLevel
}

func (h *consoleHandler) Handle(_ context.Context, r slog.Record) error {
	var buf bytes.Buffer

	if !r.Time.IsZero() {
		buf.WriteString(h.faint.Sprint(r.Time.Format(consoleTimeFormat)))
		buf.WriteByte(' ')
	}
	buf.WriteString(h.levelColor(r.Level).Sprintf("%-5s", r.Level.String()))
	buf.WriteByte(' ')

	if h.opts.AddSource && r.PC != 0 {
		frames := runtime.CallersFrames([]uintptr{r.PC})
		f, _ := frames.Next()
		buf.WriteString(h.faint.Sprintf("%s:%d ", shortFile(f.File), f.Line))
	}

	msg := slog.StringValue(r.Message)
	if h.opts.ReplaceAttr != nil {
		msg = h.opts.ReplaceAttr(nil, slog.Attr{Key: slog.MessageKey, Value: msg}).Value
	}
	buf.WriteString(msg.String())

	buf.Write(h.attrs)
	r.Attrs(func(a slog.Attr) bool {
		h.appendAttr(&buf, h.groups, a)
		return true
	})
	buf.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(buf.Bytes())
	return err
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	h2 := *h
	buf := bytes.NewBuffer(append([]byte(nil), h.attrs...))
	for _, a := range attrs {
		h.appendAttr(buf, h.groups, a)
	}
	h2.attrs = buf.Bytes()
	return &h2
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	h2 := *h
	h2.groups = append(append([]string(nil), h.groups...), name)
	return &h2
}

func (h *consoleHandler) levelColor(level slog.Level) *color.Color {
	switch {
	case level >= slog.LevelError:
		return h.colors[slog.LevelError]
	case level >= slog.LevelWarn:
		return h.colors[slog.LevelWarn]
	case level >= slog.LevelInfo:
		return h.colors[slog.LevelInfo]
	default:
		return h.colors[slog.LevelDebug]
	}
}

func (h *consoleHandler) appendAttr(buf *bytes.Buffer, groups []string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if h.opts.ReplaceAttr != nil && a.Value.Kind() != slog.KindGroup {
		a = h.opts.ReplaceAttr(groups, a)
		a.Value = a.Value.Resolve()
	}
	if a.Equal(slog.Attr{}) {
		return
	}

	if a.Value.Kind() == slog.KindGroup {
		sub := groups
		if a.Key != "" {
			sub = append(append([]string(nil), groups...), a.Key)
		}
		for _, ga := range a.Value.Group() {
			h.appendAttr(buf, sub, ga)
		}
		return
	}

	key := a.Key
	if len(groups) > 0 {
		key = strings.Join(groups, ".") + "." + key
	}
	buf.WriteByte(' ')
	buf.WriteString(h.faint.Sprint(key + "="))
	buf.WriteString(formatValue(a.Value))
}

func formatValue(v slog.Value) string {
	var s string
	switch v.Kind() {
	case slog.KindString:
		s = v.String()
	case slog.KindDuration:
		s = v.Duration().String()
	case slog.KindTime:
		s = v.Time().Format(time.RFC3339Nano)
	default:
		s = fmt.Sprint(v.Any())
	}
	if s == "" || strings.ContainsAny(s, " \t\n\"=") {
		return strconv.Quote(s)
	}
	return s
}

func shortFile(path string) string {
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		if j := strings.LastIndexByte(path[:i], '/'); j >= 0 {
			return path[j+1:]
		}
	}
	return path
}
