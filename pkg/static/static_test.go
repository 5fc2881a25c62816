package static

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"mercator-hq/webdev/pkg/publish"
)

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestServer_Serve(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"index.html":      "home",
		"app.js":          "console.log(1)",
		"docs/index.html": "docs",
		"nodocs/readme":   "x",
	})
	s := New(root)

	tests := []struct {
		name         string
		method       string
		path         string
		wantHit      bool
		wantStatus   int
		wantBody     string
		wantLocation string
	}{
		{"root index", http.MethodGet, "/", true, http.StatusOK, "home", ""},
		{"file", http.MethodGet, "/app.js", true, http.StatusOK, "console.log(1)", ""},
		{"head", http.MethodHead, "/app.js", true, http.StatusOK, "", ""},
		{"nested index", http.MethodGet, "/docs/", true, http.StatusOK, "docs", ""},
		{"directory redirect", http.MethodGet, "/docs", true, http.StatusMovedPermanently, "", "/docs/"},
		{"directory without index", http.MethodGet, "/nodocs/", false, 0, "", ""},
		{"directory without index, no slash", http.MethodGet, "/nodocs", false, 0, "", ""},
		{"missing", http.MethodGet, "/api/users", false, 0, "", ""},
		{"post", http.MethodPost, "/app.js", false, 0, "", ""},
		{"escape attempt", http.MethodGet, "/../../etc/passwd", false, 0, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			rec := httptest.NewRecorder()

			hit := s.Serve(rec, req)
			if hit != tt.wantHit {
				t.Fatalf("Serve() = %v, want %v", hit, tt.wantHit)
			}
			if !hit {
				if rec.Body.Len() != 0 || len(rec.Header()) != 0 {
					t.Error("a miss must not write to the response")
				}
				return
			}
			if rec.Code != tt.wantStatus {
				t.Errorf("Status code = %v, want %v", rec.Code, tt.wantStatus)
			}
			if tt.wantBody != "" && rec.Body.String() != tt.wantBody {
				t.Errorf("body = %q, want %q", rec.Body.String(), tt.wantBody)
			}
			if tt.wantLocation != "" && rec.Header().Get("Location") != tt.wantLocation {
				t.Errorf("Location = %q, want %q", rec.Header().Get("Location"), tt.wantLocation)
			}
			if tt.wantStatus == http.StatusOK && rec.Header().Get("Cache-Control") != "no-cache" {
				t.Errorf("Cache-Control = %q, want no-cache", rec.Header().Get("Cache-Control"))
			}
		})
	}
}

func TestServer_MissingRoot(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "dist"))
	if s.Serve(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil)) {
		t.Error("Serve() = true for a missing asset root")
	}
}

func TestServer_CustomIndex(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"default.htm": "custom"})

	rec := httptest.NewRecorder()
	if !New(root, WithIndex("default.htm")).Serve(rec, httptest.NewRequest(http.MethodGet, "/", nil)) {
		t.Fatal("Serve() = false, want custom index")
	}
	if rec.Body.String() != "custom" {
		t.Errorf("body = %q, want custom", rec.Body.String())
	}
}

func TestServer_WithPublisher(t *testing.T) {
	if runtime.GOOS != "linux" && runtime.GOOS != "darwin" {
		t.Skip("atomic exchange is only available on linux and darwin")
	}
	work := t.TempDir()
	pub, err := publish.New(filepath.Join(work, "dist"))
	if err != nil {
		t.Fatal(err)
	}
	s := New(pub.Root(), WithPublisher(pub))

	if s.Serve(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil)) {
		t.Fatal("Serve() = true before anything was published")
	}

	staging := filepath.Join(work, "staging")
	writeFiles(t, staging, map[string]string{"index.html": "published"})
	if err := pub.Publish(staging); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	rec := httptest.NewRecorder()
	if !s.Serve(rec, httptest.NewRequest(http.MethodGet, "/", nil)) {
		t.Fatal("Serve() = false after publish")
	}
	if rec.Body.String() != "published" {
		t.Errorf("body = %q, want published", rec.Body.String())
	}
}

func TestServer_ServeHTTP(t *testing.T) {
	s := New(t.TempDir())
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("Status code = %v, want %v", rec.Code, http.StatusNotFound)
	}
}
