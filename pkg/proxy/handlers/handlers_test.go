package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"mercator-hq/webdev/pkg/history"
	"mercator-hq/webdev/pkg/proxy/types"
	"mercator-hq/webdev/pkg/router"
)

type fakeController struct {
	status      router.Status
	rebuildErr  error
	rebuilds    int
	invalidated int
}

func (f *fakeController) Status() router.Status { return f.status }

func (f *fakeController) Rebuild(ctx context.Context) error {
	f.rebuilds++
	return f.rebuildErr
}

func (f *fakeController) Invalidate() { f.invalidated++ }

type fakeHistory struct {
	records []history.Record
	err     error
	limit   int
}

func (f *fakeHistory) List(ctx context.Context, limit int) ([]history.Record, error) {
	f.limit = limit
	if f.err != nil {
		return nil, f.err
	}
	if limit < len(f.records) {
		return f.records[:limit], nil
	}
	return f.records, nil
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) types.ErrorResponse {
	t.Helper()
	var resp types.ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	return resp
}

func TestStatusHandler(t *testing.T) {
	ctrl := &fakeController{status: router.Status{JobID: "job-1", State: "succeeded", Published: true}}
	h := NewStatusHandler(ctrl)

	t.Run("returns status", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/_webdev/status", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		var got router.Status
		if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
			t.Fatal(err)
		}
		if got.JobID != "job-1" || !got.Published {
			t.Errorf("body = %+v", got)
		}
	})

	t.Run("rejects POST", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/_webdev/status", nil))

		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("status = %d, want 405", rec.Code)
		}
		if allow := rec.Header().Get("Allow"); allow != "GET, HEAD" {
			t.Errorf("Allow = %q", allow)
		}
	})
}

func TestRebuildHandler(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		ctrl := &fakeController{status: router.Status{JobID: "j", State: "succeeded", Published: true}}
		h := NewRebuildHandler(ctrl, nil)

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/_webdev/rebuild", nil))

		if rec.Code != http.StatusOK {
			t.Errorf("status = %d", rec.Code)
		}
		if ctrl.rebuilds != 1 {
			t.Errorf("rebuilds = %d", ctrl.rebuilds)
		}
	})

	t.Run("failure", func(t *testing.T) {
		ctrl := &fakeController{
			rebuildErr: errors.New("build abc failed: /usr/bin/pnpm run build exited 1 in /tmp/webdev-build-123"),
			status:     router.Status{JobID: "abc", State: "failed"},
		}
		h := NewRebuildHandler(ctrl, nil)

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/_webdev/rebuild", nil))

		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("status = %d, want 500", rec.Code)
		}
		resp := decodeError(t, rec)
		if resp.Error.Code != CodeBuildFailed {
			t.Errorf("code = %q", resp.Error.Code)
		}
		if !strings.Contains(resp.Error.Message, "abc") {
			t.Errorf("message = %q, want the job id", resp.Error.Message)
		}
		for _, leak := range []string{"/usr/bin", "/tmp/webdev-build-123"} {
			if strings.Contains(resp.Error.Message, leak) {
				t.Errorf("message %q leaks %q", resp.Error.Message, leak)
			}
		}
	})

	t.Run("GET not allowed", func(t *testing.T) {
		ctrl := &fakeController{}
		h := NewRebuildHandler(ctrl, nil)

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/_webdev/rebuild", nil))

		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("status = %d", rec.Code)
		}
		if ctrl.rebuilds != 0 {
			t.Error("GET must not trigger a rebuild")
		}
	})
}

func TestInvalidateHandler(t *testing.T) {
	ctrl := &fakeController{}
	h := NewInvalidateHandler(ctrl)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/_webdev/invalidate", nil))

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
	if ctrl.invalidated != 1 {
		t.Errorf("invalidated = %d", ctrl.invalidated)
	}
}

func TestBuildsHandler(t *testing.T) {
	now := time.Now()
	hist := &fakeHistory{records: []history.Record{
		{JobID: "c", State: "succeeded", StartedAt: now},
		{JobID: "b", State: "failed", StartedAt: now.Add(-time.Minute)},
		{JobID: "a", State: "succeeded", StartedAt: now.Add(-2 * time.Minute)},
	}}
	h := NewBuildsHandler(hist)

	tests := []struct {
		name      string
		query     string
		wantCode  int
		wantLimit int
		wantCount int
	}{
		{"default limit", "", http.StatusOK, DefaultBuildsLimit, 3},
		{"explicit limit", "?limit=2", http.StatusOK, 2, 2},
		{"capped limit", "?limit=100000", http.StatusOK, MaxBuildsLimit, 3},
		{"zero limit", "?limit=0", http.StatusBadRequest, 0, 0},
		{"non-numeric limit", "?limit=all", http.StatusBadRequest, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hist.limit = 0
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/_webdev/builds"+tt.query, nil))

			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if tt.wantCode != http.StatusOK {
				return
			}
			if hist.limit != tt.wantLimit {
				t.Errorf("List limit = %d, want %d", hist.limit, tt.wantLimit)
			}
			var body struct {
				Builds []history.Record `json:"builds"`
			}
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatal(err)
			}
			if len(body.Builds) != tt.wantCount {
				t.Errorf("builds = %d, want %d", len(body.Builds), tt.wantCount)
			}
		})
	}

	t.Run("empty history is an empty array", func(t *testing.T) {
		h := NewBuildsHandler(&fakeHistory{})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/_webdev/builds", nil))

		if !strings.Contains(rec.Body.String(), `"builds":[]`) {
			t.Errorf("body = %s", rec.Body.String())
		}
	})

	t.Run("store error", func(t *testing.T) {
		h := NewBuildsHandler(&fakeHistory{err: errors.New("database is locked")})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/_webdev/builds", nil))

		if rec.Code != http.StatusInternalServerError {
			t.Errorf("status = %d", rec.Code)
		}
		if strings.Contains(rec.Body.String(), "locked") {
			t.Error("store error leaked to the client")
		}
	})
}
