package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func captureDefaultLogger(t *testing.T, level slog.Level) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: level})))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

func TestLoggingMiddleware(t *testing.T) {
	t.Run("logs completed requests", func(t *testing.T) {
		buf := captureDefaultLogger(t, slog.LevelInfo)

		wrapped := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if GetStartTime(r.Context()).IsZero() {
				t.Error("start time missing from context")
			}
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte("missing"))
		}))

		wrapped.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/assets/app.js", nil))

		out := buf.String()
		for _, want := range []string{
			`msg="request completed"`,
			"level=WARN",
			"status=404",
			"path=/assets/app.js",
			"bytes=7",
		} {
			if !strings.Contains(out, want) {
				t.Errorf("log output missing %q:\n%s", want, out)
			}
		}
	})

	t.Run("server errors log at error level", func(t *testing.T) {
		buf := captureDefaultLogger(t, slog.LevelInfo)

		wrapped := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		wrapped.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

		if !strings.Contains(buf.String(), "level=ERROR") {
			t.Errorf("expected ERROR level, got:\n%s", buf.String())
		}
	})

	t.Run("redacts credentials in debug records", func(t *testing.T) {
		buf := captureDefaultLogger(t, slog.LevelDebug)

		wrapped := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer s3cret-token")
		req.Header.Set("Cookie", "session=abc123")
		wrapped.ServeHTTP(httptest.NewRecorder(), req)

		out := buf.String()
		if !strings.Contains(out, `msg="request started"`) {
			t.Fatalf("missing debug start record:\n%s", out)
		}
		if strings.Contains(out, "s3cret-token") || strings.Contains(out, "abc123") {
			t.Errorf("credentials leaked into logs:\n%s", out)
		}
	})
}

func TestGetStartTime(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if got := GetStartTime(req.Context()); !got.Equal(time.Time{}) {
		t.Errorf("GetStartTime() = %v, want zero", got)
	}
}
